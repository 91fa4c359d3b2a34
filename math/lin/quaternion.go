// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package lin

// quaternion.go provides rotation math.
// For a nice explanation of quaternions see http://3dgep.com/?p=1815

// Q is a unit length quaternion representing a 3D rotation.
type Q struct {
	X float32 // X component of the rotation axis.
	Y float32 // Y component of the rotation axis.
	Z float32 // Z component of the rotation axis.
	W float32 // Cosine of half the rotation angle.
}

// QI is the identity rotation.
var QI = Q{0, 0, 0, 1}

// QAxisAngle returns the rotation of angle radians about the given
// unit axis.
func QAxisAngle(axis V3, angle float32) Q {
	s := Sin(angle / 2)
	return Q{axis.X * s, axis.Y * s, axis.Z * s, Cos(angle / 2)}
}

// Eq (==) returns true if each element in q has the same value as the
// corresponding element in r.
func (q Q) Eq(r Q) bool {
	return q.X == r.X && q.Y == r.Y && q.Z == r.Z && q.W == r.W
}

// Aeq (~=) almost-equals returns true if all elements of q are within
// Epsilon of the corresponding elements of r.
func (q Q) Aeq(r Q) bool {
	return Aeq(q.X, r.X) && Aeq(q.Y, r.Y) && Aeq(q.Z, r.Z) && Aeq(q.W, r.W)
}

// Mul returns the rotation r followed by the rotation q.
// Quaternion multiplication is not commutative.
func (q Q) Mul(r Q) Q {
	return Q{
		q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
		q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
	}
}

// Dot returns the 4D dot product of q and r.
func (q Q) Dot(r Q) float32 { return q.X*r.X + q.Y*r.Y + q.Z*r.Z + q.W*r.W }

// Norm returns q scaled to unit length. The zero quaternion returns
// the identity.
func (q Q) Norm() Q {
	l := Sqrt(q.Dot(q))
	if l < Epsilon {
		return QI
	}
	inv := 1 / l
	return Q{q.X * inv, q.Y * inv, q.Z * inv, q.W * inv}
}

// Inv returns the inverse rotation. Valid for unit quaternions where
// the inverse is the conjugate.
func (q Q) Inv() Q { return Q{-q.X, -q.Y, -q.Z, q.W} }

// Rotate returns the vector v rotated by q.
func (q Q) Rotate(v V3) V3 {
	// v' = v + q.w*t + cross(q.xyz, t) where t = 2*cross(q.xyz, v)
	u := V3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// Slerp returns the spherical interpolation from q to r by fraction t.
// Falls back to normalized linear interpolation when the rotations are
// nearly parallel.
func (q Q) Slerp(r Q, t float32) Q {
	cos := q.Dot(r)
	if cos < 0 { // take the short way around.
		r = Q{-r.X, -r.Y, -r.Z, -r.W}
		cos = -cos
	}
	if cos > 1-Epsilon {
		return Q{
			Lerp(q.X, r.X, t),
			Lerp(q.Y, r.Y, t),
			Lerp(q.Z, r.Z, t),
			Lerp(q.W, r.W, t),
		}.Norm()
	}
	angle := Acos(cos)
	sin := Sin(angle)
	wq := Sin((1-t)*angle) / sin
	wr := Sin(t*angle) / sin
	return Q{
		q.X*wq + r.X*wr,
		q.Y*wq + r.Y*wr,
		q.Z*wq + r.Z*wr,
		q.W*wq + r.W*wr,
	}
}
