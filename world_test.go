// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package sfg

import (
	"testing"

	"github.com/gazed/sfg/math/lin"
)

func testWorld() *World {
	s := settingsDefaults
	s.MaxEntities = 64
	s.MaxTraits = 16
	return NewWorld(&s)
}

func TestEntityLifecycle(t *testing.T) {
	t.Run("created entities start clean", func(t *testing.T) {
		w := testWorld()
		e := w.CreateEntity("thing")
		if !w.IsValid(e) || w.Name(e) != "thing" {
			t.Fatalf("expected live named entity")
		}
		if got := w.Transform(e); !got.Aeq(lin.M43I) {
			t.Errorf("expected identity local transform, got %v", got)
		}
	})
	t.Run("hierarchy destroy relinks siblings", func(t *testing.T) {
		w := testWorld()
		p := w.CreateEntity("p")
		c1 := w.CreateEntity("c1")
		c2 := w.CreateEntity("c2")
		g := w.CreateEntity("g")
		w.AddChild(p, c1)
		w.AddChild(p, c2) // c2 becomes head: list is c2, c1.
		w.AddChild(c1, g)

		before := w.Len()
		w.DestroyEntity(c1) // destroys c1 and grandchild g.
		if w.Len() != before-2 {
			t.Errorf("expected live count to drop by 2, got %d -> %d", before, w.Len())
		}
		if w.IsValid(c1) || w.IsValid(g) {
			t.Errorf("expected c1 and g to be dead")
		}
		if got := w.FirstChild(p); got != c2 {
			t.Errorf("expected first child c2, got %v", got)
		}
		if w.PrevSibling(c2).Alive() || w.NextSibling(c2).Alive() {
			t.Errorf("expected c2 to be an only child")
		}
	})
	t.Run("destroying the head child reassigns first_child", func(t *testing.T) {
		w := testWorld()
		p := w.CreateEntity("p")
		c1 := w.CreateEntity("c1")
		c2 := w.CreateEntity("c2")
		w.AddChild(p, c1)
		w.AddChild(p, c2) // head is c2.
		w.DestroyEntity(c2)
		if got := w.FirstChild(p); got != c1 {
			t.Errorf("expected first child c1 after head destroy, got %v", got)
		}
	})
}

func TestTransforms(t *testing.T) {
	t.Run("set position shows in the local transform", func(t *testing.T) {
		w := testWorld()
		e := w.CreateEntity("e")
		w.SetPosition(e, lin.V3{X: 1, Y: 2, Z: 3})
		if got := w.Transform(e).Translation(); !got.Aeq(lin.V3{X: 1, Y: 2, Z: 3}) {
			t.Errorf("expected translation (1,2,3), got %v", got)
		}
	})
	t.Run("abs transforms chain through parents", func(t *testing.T) {
		w := testWorld()
		p := w.CreateEntity("p")
		c := w.CreateEntity("c")
		w.AddChild(p, c)
		w.SetPosition(p, lin.V3{X: 10})
		w.SetPosition(c, lin.V3{X: 1})
		if got := w.TransformAbs(c).Translation(); !got.Aeq(lin.V3{X: 11}) {
			t.Errorf("expected abs (11,0,0), got %v", got)
		}

		// moving the parent re-dirties the child chain.
		w.SetPosition(p, lin.V3{})
		if got := w.TransformAbs(c).Translation(); !got.Aeq(lin.V3{X: 1}) {
			t.Errorf("expected abs (1,0,0), got %v", got)
		}
		// flags clear after the read.
		pm := w.metas.Get(p.Index())
		cm := w.metas.Get(c.Index())
		if pm.flags&absTransformDirty != 0 || cm.flags&absTransformDirty != 0 {
			t.Errorf("expected dirty flags to clear after abs read")
		}
	})
	t.Run("set abs position resolves to local", func(t *testing.T) {
		w := testWorld()
		p := w.CreateEntity("p")
		c := w.CreateEntity("c")
		w.AddChild(p, c)
		w.SetPosition(p, lin.V3{X: 10})
		w.SetPositionAbs(c, lin.V3{X: 11})
		if got := w.Position(c); !got.Aeq(lin.V3{X: 1}) {
			t.Errorf("expected local (1,0,0), got %v", got)
		}
	})
	t.Run("singular parent scale leaves abs setters unapplied", func(t *testing.T) {
		w := testWorld()
		p := w.CreateEntity("p")
		c := w.CreateEntity("c")
		w.AddChild(p, c)
		w.SetScale(p, lin.V3{X: 0, Y: 1, Z: 1})
		w.SetScaleAbs(c, lin.V3{X: 5, Y: 5, Z: 5})
		if got := w.Scale(c); !got.Aeq(lin.V3One) {
			t.Errorf("expected scale unmodified under singular parent, got %v", got)
		}
		w.SetPositionAbs(c, lin.V3{X: 7})
		if got := w.Position(c); !got.Aeq(lin.V3{}) {
			t.Errorf("expected position unmodified under singular parent, got %v", got)
		}
	})
	t.Run("abs rotation composes and resolves", func(t *testing.T) {
		w := testWorld()
		p := w.CreateEntity("p")
		c := w.CreateEntity("c")
		w.AddChild(p, c)
		quarter := lin.QAxisAngle(lin.V3{Z: 1}, 1.5707964)
		w.SetRotation(p, quarter)
		w.SetRotationAbs(c, quarter)
		if got := w.Rotation(c); !got.Aeq(lin.QI) {
			t.Errorf("expected identity local rotation, got %v", got)
		}
		if got := w.RotationAbs(c); !got.Aeq(quarter) {
			t.Errorf("expected abs quarter turn, got %v", got)
		}
	})
}

func TestInterpolation(t *testing.T) {
	w := testWorld()
	e := w.CreateEntity("e")
	w.SetPosition(e, lin.V3{X: 0})
	w.storePrevTransforms() // prev = 0.
	w.SetPosition(e, lin.V3{X: 10})

	mid := w.InterpolatedTransformAbs(e, 0.5)
	if got := mid.Translation(); !got.Aeq(lin.V3{X: 5}) {
		t.Errorf("expected midpoint (5,0,0), got %v", got)
	}
	end := w.InterpolatedTransformAbs(e, 1)
	if got := end.Translation(); !got.Aeq(lin.V3{X: 10}) {
		t.Errorf("expected endpoint (10,0,0), got %v", got)
	}
}

func TestTraits(t *testing.T) {
	t.Run("traits record their owner", func(t *testing.T) {
		w := testWorld()
		e := w.CreateEntity("lit")
		h := w.AddLight(e, Light{Intensity: 2})
		if got := w.Lights().Get(h); got.Entity != e || got.Intensity != 2 {
			t.Errorf("expected owning entity and intensity, got %#v", got)
		}
		w.RemoveLight(h)
		if w.Lights().Len() != 0 {
			t.Errorf("expected empty light view after remove")
		}
	})
	t.Run("mesh renderer expands the entity bounds", func(t *testing.T) {
		s := settingsDefaults
		s.MaxEntities = 16
		w := NewWorld(&s)
		res := newResources(&s)
		res.chunk = w.chunk
		w.res = res

		mh := res.CreateModelFromRaw(&ModelRaw{
			Name: "box", Hash: 1,
			TotalAabb: lin.Aabb{Min: lin.V3{X: -1, Y: -1, Z: -1}, Max: lin.V3{X: 1, Y: 1, Z: 1}},
		})
		e := w.CreateEntity("e")
		w.AddMeshRenderer(e, MeshRenderer{Model: mh})
		box := w.Aabb(e)
		if !box.Min.Aeq(lin.V3{X: -1, Y: -1, Z: -1}) || !box.Max.Aeq(lin.V3{X: 1, Y: 1, Z: 1}) {
			t.Errorf("expected bounds expanded by model aabb, got %v", *box)
		}
	})
}
