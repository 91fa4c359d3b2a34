// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package lin

// vector.go provides the 3 and 4 element float32 vectors.

// V3 is a 3 element vector. This can also be used as a point.
type V3 struct {
	X float32 // increments as X moves to the right.
	Y float32 // increments as Y moves up.
	Z float32 // increments as Z moves out of the screen (right handed).
}

// V3One is the unit scale vector.
var V3One = V3{1, 1, 1}

// Eq (==) returns true if each element in v has the same value as the
// corresponding element in a.
func (v V3) Eq(a V3) bool { return v.X == a.X && v.Y == a.Y && v.Z == a.Z }

// Aeq (~=) almost-equals returns true if all elements of v are within
// Epsilon of the corresponding elements of a.
func (v V3) Aeq(a V3) bool {
	return Aeq(v.X, a.X) && Aeq(v.Y, a.Y) && Aeq(v.Z, a.Z)
}

// Add returns v + a.
func (v V3) Add(a V3) V3 { return V3{v.X + a.X, v.Y + a.Y, v.Z + a.Z} }

// Sub returns v - a.
func (v V3) Sub(a V3) V3 { return V3{v.X - a.X, v.Y - a.Y, v.Z - a.Z} }

// Scale returns v with each element multiplied by s.
func (v V3) Scale(s float32) V3 { return V3{v.X * s, v.Y * s, v.Z * s} }

// Mul returns the element-wise product of v and a.
func (v V3) Mul(a V3) V3 { return V3{v.X * a.X, v.Y * a.Y, v.Z * a.Z} }

// Dot returns the dot product of v and a.
func (v V3) Dot(a V3) float32 { return v.X*a.X + v.Y*a.Y + v.Z*a.Z }

// Cross returns the vector perpendicular to both v and a.
func (v V3) Cross(a V3) V3 {
	return V3{
		v.Y*a.Z - v.Z*a.Y,
		v.Z*a.X - v.X*a.Z,
		v.X*a.Y - v.Y*a.X,
	}
}

// Len returns the length of the vector.
func (v V3) Len() float32 { return Sqrt(v.Dot(v)) }

// Norm returns the unit vector in the direction of v.
// The zero vector is returned unchanged.
func (v V3) Norm() V3 {
	l := v.Len()
	if l < Epsilon {
		return v
	}
	return v.Scale(1 / l)
}

// Lerp returns the vector interpolated from v to a by fraction t.
func (v V3) Lerp(a V3, t float32) V3 {
	return V3{Lerp(v.X, a.X, t), Lerp(v.Y, a.Y, t), Lerp(v.Z, a.Z, t)}
}

// Min returns the element-wise minimum of v and a.
func (v V3) Min(a V3) V3 {
	return V3{min(v.X, a.X), min(v.Y, a.Y), min(v.Z, a.Z)}
}

// Max returns the element-wise maximum of v and a.
func (v V3) Max(a V3) V3 {
	return V3{max(v.X, a.X), max(v.Y, a.Y), max(v.Z, a.Z)}
}

// =============================================================================

// V4 is a 4 element vector, commonly a color or a point where W is 1.
type V4 struct {
	X float32
	Y float32
	Z float32
	W float32
}

// Eq (==) returns true if each element in v has the same value as the
// corresponding element in a.
func (v V4) Eq(a V4) bool {
	return v.X == a.X && v.Y == a.Y && v.Z == a.Z && v.W == a.W
}
