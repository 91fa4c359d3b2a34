// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package sfg

import (
	"testing"

	"github.com/gazed/sfg/data"
	"github.com/gazed/sfg/math/lin"
	"github.com/gazed/sfg/memory"
)

func testResources() *Resources {
	s := settingsDefaults
	s.MaxResources = 64
	r := newResources(&s)
	r.chunk = memory.NewChunk(1 << 20)
	return r
}

func TestStorages(t *testing.T) {
	t.Run("same hash returns the same handle", func(t *testing.T) {
		r := testResources()
		a, created := r.CreateTexture(42)
		if !created {
			t.Fatalf("expected first create")
		}
		b, created := r.CreateTexture(42)
		if created || a != b {
			t.Errorf("expected idempotent create, got %v %v", a, b)
		}
	})
	t.Run("destroy unregisters the hash", func(t *testing.T) {
		r := testResources()
		a, _ := r.CreateTexture(7)
		r.DestroyTexture(a)
		b, created := r.CreateTexture(7)
		if !created || a == b {
			t.Errorf("expected a fresh handle after destroy")
		}
	})
	t.Run("handles are type distinguished", func(t *testing.T) {
		r := testResources()
		th, _ := r.CreateTexture(1)
		mh, _ := r.CreateMesh(1)
		// same index and generation, different types: the compiler
		// rejects r.GetMesh(th); the hashes live in separate maps.
		if th.Index() != mh.Index() {
			t.Errorf("expected independent pools to hand out slot 0 twice")
		}
	})
}

func TestModelCascade(t *testing.T) {
	raw := &ModelRaw{
		Name: "rig", Hash: 99,
		Nodes: []ModelNode{
			{Scale: lin.V3One, Parent: -1, MeshIndex: 0},
			{Scale: lin.V3One, Parent: 0, MeshIndex: 1},
		},
		Meshes: []MeshRes{
			{Name: "a", VertexCount: 3},
			{Name: "b", VertexCount: 6},
		},
		Skins:      []SkinRes{{Name: "skin", Joints: []uint16{0, 1}}},
		Animations: []AnimationRes{{Name: "walk", Duration: 1.5}},
		TotalAabb:  lin.Aabb{Min: lin.V3{X: -2}, Max: lin.V3{X: 2}},
	}

	t.Run("create allocates child resources", func(t *testing.T) {
		r := testResources()
		h := r.CreateModelFromRaw(raw)
		m := r.GetModel(h)
		if m.meshCount != 2 || m.skinCount != 1 || m.animCount != 1 || m.nodeCount != 2 {
			t.Fatalf("expected counts 2/1/1/2, got %d/%d/%d/%d",
				m.meshCount, m.skinCount, m.animCount, m.nodeCount)
		}
		meshes := r.ModelMeshes(h)
		if r.GetMesh(meshes[0]).Name != "a" || r.GetMesh(meshes[1]).Name != "b" {
			t.Errorf("expected contiguous mesh handles in creation order")
		}
		nodes := r.ModelNodes(h)
		if nodes[1].Parent != 0 {
			t.Errorf("expected node records to survive the chunk copy")
		}
		if again := r.CreateModelFromRaw(raw); again != h {
			t.Errorf("expected idempotent model create")
		}
	})
	t.Run("destroy cascades and frees children", func(t *testing.T) {
		r := testResources()
		h := r.CreateModelFromRaw(raw)
		meshes := r.ModelMeshes(h)
		r.DestroyModel(h)
		if r.models.pool.IsValid(h) {
			t.Errorf("expected model slot freed")
		}
		for _, mh := range meshes {
			if r.meshes.pool.IsValid(mh) {
				t.Errorf("expected owned mesh freed")
			}
		}
		if r.meshes.pool.Len() != 0 || r.skins.pool.Len() != 0 || r.animations.pool.Len() != 0 {
			t.Errorf("expected all child resources freed")
		}
	})
	t.Run("double destroy panics", func(t *testing.T) {
		r := testResources()
		h := r.CreateModelFromRaw(raw)
		m := *r.GetModel(h) // copy before the slot is zeroed.
		r.DestroyModel(h)
		defer func() {
			if recover() == nil {
				t.Errorf("expected panic on double destroy")
			}
		}()
		// re-inject the stale record to simulate a second destroy
		// through a dangling reference.
		h2 := r.models.pool.Allocate()
		*r.models.pool.Get(h2) = m
		r.DestroyModel(h2)
	})
	t.Run("model payload round trips", func(t *testing.T) {
		payload := encodeModelRaw(raw)
		got, err := parseModelRaw(payload)
		if err != nil {
			t.Fatalf("parse: %s", err)
		}
		if len(got.Nodes) != 2 || len(got.Meshes) != 2 || len(got.Skins) != 1 || len(got.Animations) != 1 {
			t.Fatalf("expected container counts to round trip")
		}
		if got.Meshes[1].Name != "b" || got.Animations[0].Duration != 1.5 {
			t.Errorf("expected field values to round trip")
		}
		if !got.TotalAabb.Min.Aeq(raw.TotalAabb.Min) {
			t.Errorf("expected aabb to round trip")
		}
		// through the file container as well.
		unwrapped, err := data.Decompress(data.Compress(payload))
		if err != nil {
			t.Fatalf("container: %s", err)
		}
		if _, err := parseModelRaw(unwrapped); err != nil {
			t.Errorf("expected contained payload to parse: %s", err)
		}
	})
}
