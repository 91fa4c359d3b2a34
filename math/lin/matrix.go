// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package lin

// matrix.go provides the 4x3 affine transform used for entity and bone
// matrices. Affine transforms never need a projective row, so storing
// 12 floats instead of 16 saves a quarter of the transform bandwidth.

// M43 is a row-major 4x3 affine transform: a 3x3 linear part and a
// translation column. The implicit fourth row is [0 0 0 1].
//
//	[ Xx Xy Xz Tx ]
//	[ Yx Yy Yz Ty ]
//	[ Zx Zy Zz Tz ]
type M43 struct {
	Xx, Xy, Xz, Tx float32
	Yx, Yy, Yz, Ty float32
	Zx, Zy, Zz, Tz float32
}

// M43I is the identity transform.
var M43I = M43{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
}

// NewTRS composes translation, rotation, and scale into one affine
// transform equal to T * R * S.
func NewTRS(pos V3, rot Q, scale V3) M43 {
	x2, y2, z2 := rot.X+rot.X, rot.Y+rot.Y, rot.Z+rot.Z
	xx, xy, xz := rot.X*x2, rot.X*y2, rot.X*z2
	yy, yz, zz := rot.Y*y2, rot.Y*z2, rot.Z*z2
	wx, wy, wz := rot.W*x2, rot.W*y2, rot.W*z2
	return M43{
		(1 - (yy + zz)) * scale.X, (xy - wz) * scale.Y, (xz + wy) * scale.Z, pos.X,
		(xy + wz) * scale.X, (1 - (xx + zz)) * scale.Y, (yz - wx) * scale.Z, pos.Y,
		(xz - wy) * scale.X, (yz + wx) * scale.Y, (1 - (xx + yy)) * scale.Z, pos.Z,
	}
}

// Mul returns the affine concatenation m * a: transform by a first,
// then by m.
func (m M43) Mul(a M43) M43 {
	return M43{
		m.Xx*a.Xx + m.Xy*a.Yx + m.Xz*a.Zx,
		m.Xx*a.Xy + m.Xy*a.Yy + m.Xz*a.Zy,
		m.Xx*a.Xz + m.Xy*a.Yz + m.Xz*a.Zz,
		m.Xx*a.Tx + m.Xy*a.Ty + m.Xz*a.Tz + m.Tx,

		m.Yx*a.Xx + m.Yy*a.Yx + m.Yz*a.Zx,
		m.Yx*a.Xy + m.Yy*a.Yy + m.Yz*a.Zy,
		m.Yx*a.Xz + m.Yy*a.Yz + m.Yz*a.Zz,
		m.Yx*a.Tx + m.Yy*a.Ty + m.Yz*a.Tz + m.Ty,

		m.Zx*a.Xx + m.Zy*a.Yx + m.Zz*a.Zx,
		m.Zx*a.Xy + m.Zy*a.Yy + m.Zz*a.Zy,
		m.Zx*a.Xz + m.Zy*a.Yz + m.Zz*a.Zz,
		m.Zx*a.Tx + m.Zy*a.Ty + m.Zz*a.Tz + m.Tz,
	}
}

// TransformPoint returns the point p transformed by m.
func (m M43) TransformPoint(p V3) V3 {
	return V3{
		m.Xx*p.X + m.Xy*p.Y + m.Xz*p.Z + m.Tx,
		m.Yx*p.X + m.Yy*p.Y + m.Yz*p.Z + m.Ty,
		m.Zx*p.X + m.Zy*p.Y + m.Zz*p.Z + m.Tz,
	}
}

// TransformDir returns the direction d transformed by the linear part
// of m. Translation is ignored.
func (m M43) TransformDir(d V3) V3 {
	return V3{
		m.Xx*d.X + m.Xy*d.Y + m.Xz*d.Z,
		m.Yx*d.X + m.Yy*d.Y + m.Yz*d.Z,
		m.Zx*d.X + m.Zy*d.Y + m.Zz*d.Z,
	}
}

// Translation returns the translation column.
func (m M43) Translation() V3 { return V3{m.Tx, m.Ty, m.Tz} }

// Det returns the determinant of the linear part.
func (m M43) Det() float32 {
	return m.Xx*(m.Yy*m.Zz-m.Yz*m.Zy) -
		m.Xy*(m.Yx*m.Zz-m.Yz*m.Zx) +
		m.Xz*(m.Yx*m.Zy-m.Yy*m.Zx)
}

// Inverse returns the affine inverse of m. ok is false when the linear
// part is singular (eg: a zero scale axis), in which case the identity
// is returned and the caller must not apply it.
func (m M43) Inverse() (inv M43, ok bool) {
	det := m.Det()
	if Abs(det) < Epsilon {
		return M43I, false
	}
	id := 1 / det

	// inverse of the 3x3 linear part via the adjugate.
	inv.Xx = (m.Yy*m.Zz - m.Yz*m.Zy) * id
	inv.Xy = (m.Xz*m.Zy - m.Xy*m.Zz) * id
	inv.Xz = (m.Xy*m.Yz - m.Xz*m.Yy) * id
	inv.Yx = (m.Yz*m.Zx - m.Yx*m.Zz) * id
	inv.Yy = (m.Xx*m.Zz - m.Xz*m.Zx) * id
	inv.Yz = (m.Xz*m.Yx - m.Xx*m.Yz) * id
	inv.Zx = (m.Yx*m.Zy - m.Yy*m.Zx) * id
	inv.Zy = (m.Xy*m.Zx - m.Xx*m.Zy) * id
	inv.Zz = (m.Xx*m.Yy - m.Xy*m.Yx) * id

	// inverse translation: -linv * t
	t := m.Translation()
	inv.Tx = -(inv.Xx*t.X + inv.Xy*t.Y + inv.Xz*t.Z)
	inv.Ty = -(inv.Yx*t.X + inv.Yy*t.Y + inv.Yz*t.Z)
	inv.Tz = -(inv.Zx*t.X + inv.Zy*t.Y + inv.Zz*t.Z)
	return inv, true
}

// Aeq (~=) almost-equals returns true if all elements of m are within
// Epsilon of the corresponding elements of a.
func (m M43) Aeq(a M43) bool {
	return Aeq(m.Xx, a.Xx) && Aeq(m.Xy, a.Xy) && Aeq(m.Xz, a.Xz) && Aeq(m.Tx, a.Tx) &&
		Aeq(m.Yx, a.Yx) && Aeq(m.Yy, a.Yy) && Aeq(m.Yz, a.Yz) && Aeq(m.Ty, a.Ty) &&
		Aeq(m.Zx, a.Zx) && Aeq(m.Zy, a.Zy) && Aeq(m.Zz, a.Zz) && Aeq(m.Tz, a.Tz)
}

// =============================================================================

// Aabb is an axis aligned bounding box.
type Aabb struct {
	Min V3
	Max V3
}

// AabbEmpty returns a box that expands to contain the first point
// added to it.
func AabbEmpty() Aabb {
	const big = float32(3.4e38)
	return Aabb{Min: V3{big, big, big}, Max: V3{-big, -big, -big}}
}

// Expand grows the box to contain the box a.
func (b Aabb) Expand(a Aabb) Aabb {
	return Aabb{Min: b.Min.Min(a.Min), Max: b.Max.Max(a.Max)}
}

// ExpandPoint grows the box to contain the point p.
func (b Aabb) ExpandPoint(p V3) Aabb {
	return Aabb{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

// Center returns the middle of the box.
func (b Aabb) Center() V3 { return b.Min.Add(b.Max).Scale(0.5) }
