// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package lin

import (
	"math"
	"testing"
)

func TestVector(t *testing.T) {
	t.Run("cross follows the right hand rule", func(t *testing.T) {
		x, y := V3{1, 0, 0}, V3{0, 1, 0}
		if got := x.Cross(y); !got.Aeq(V3{0, 0, 1}) {
			t.Errorf("expected +Z, got %v", got)
		}
	})
	t.Run("lerp midpoint", func(t *testing.T) {
		a, b := V3{0, 0, 0}, V3{2, 4, 6}
		if got := a.Lerp(b, 0.5); !got.Aeq(V3{1, 2, 3}) {
			t.Errorf("expected midpoint, got %v", got)
		}
	})
	t.Run("norm of zero vector is zero", func(t *testing.T) {
		var z V3
		if got := z.Norm(); !got.Eq(z) {
			t.Errorf("expected zero vector, got %v", got)
		}
	})
}

func TestQuaternion(t *testing.T) {
	halfPi := float32(math.Pi / 2)
	t.Run("axis angle rotates a vector", func(t *testing.T) {
		q := QAxisAngle(V3{0, 0, 1}, halfPi) // quarter turn about Z.
		if got := q.Rotate(V3{1, 0, 0}); !got.Aeq(V3{0, 1, 0}) {
			t.Errorf("expected +Y, got %v", got)
		}
	})
	t.Run("inverse undoes a rotation", func(t *testing.T) {
		q := QAxisAngle(V3{0, 1, 0}.Norm(), 1.1)
		v := V3{1, 2, 3}
		if got := q.Inv().Rotate(q.Rotate(v)); !got.Aeq(v) {
			t.Errorf("expected original vector, got %v", got)
		}
	})
	t.Run("slerp endpoints and midpoint", func(t *testing.T) {
		a := QI
		b := QAxisAngle(V3{0, 0, 1}, halfPi)
		if got := a.Slerp(b, 0); !got.Aeq(a) {
			t.Errorf("expected start rotation, got %v", got)
		}
		if got := a.Slerp(b, 1); !got.Aeq(b) {
			t.Errorf("expected end rotation, got %v", got)
		}
		mid := a.Slerp(b, 0.5)
		want := QAxisAngle(V3{0, 0, 1}, halfPi/2)
		if !mid.Aeq(want) {
			t.Errorf("expected half rotation %v, got %v", want, mid)
		}
	})
}

func TestMatrix(t *testing.T) {
	t.Run("TRS composes in T R S order", func(t *testing.T) {
		m := NewTRS(V3{10, 0, 0}, QAxisAngle(V3{0, 0, 1}, float32(math.Pi/2)), V3{2, 2, 2})
		// point (1,0,0): scaled to (2,0,0), rotated to (0,2,0), moved to (10,2,0).
		if got := m.TransformPoint(V3{1, 0, 0}); !got.Aeq(V3{10, 2, 0}) {
			t.Errorf("expected (10,2,0), got %v", got)
		}
	})
	t.Run("mul concatenates parent child", func(t *testing.T) {
		parent := NewTRS(V3{10, 0, 0}, QI, V3One)
		child := NewTRS(V3{1, 0, 0}, QI, V3One)
		abs := parent.Mul(child)
		if got := abs.Translation(); !got.Aeq(V3{11, 0, 0}) {
			t.Errorf("expected (11,0,0), got %v", got)
		}
	})
	t.Run("inverse round trips a point", func(t *testing.T) {
		m := NewTRS(V3{1, 2, 3}, QAxisAngle(V3{0, 1, 0}, 0.7), V3{2, 3, 4})
		inv, ok := m.Inverse()
		if !ok {
			t.Fatalf("expected invertible transform")
		}
		p := V3{5, -2, 9}
		if got := inv.TransformPoint(m.TransformPoint(p)); !got.Aeq(p) {
			t.Errorf("expected original point, got %v", got)
		}
	})
	t.Run("zero scale is reported singular", func(t *testing.T) {
		m := NewTRS(V3{}, QI, V3{0, 1, 1})
		if _, ok := m.Inverse(); ok {
			t.Errorf("expected singular transform")
		}
	})
}

func TestAabb(t *testing.T) {
	t.Run("empty box expands to first point", func(t *testing.T) {
		b := AabbEmpty().ExpandPoint(V3{1, 2, 3})
		if !b.Min.Eq(V3{1, 2, 3}) || !b.Max.Eq(V3{1, 2, 3}) {
			t.Errorf("expected collapsed box at point, got %v", b)
		}
	})
	t.Run("expand merges boxes", func(t *testing.T) {
		a := Aabb{Min: V3{0, 0, 0}, Max: V3{1, 1, 1}}
		b := Aabb{Min: V3{-1, 0, 0}, Max: V3{0, 2, 0.5}}
		m := a.Expand(b)
		if !m.Min.Eq(V3{-1, 0, 0}) || !m.Max.Eq(V3{1, 2, 1}) {
			t.Errorf("expected merged bounds, got %v", m)
		}
	})
}
