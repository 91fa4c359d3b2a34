// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package sfg

// trait.go provides typed components attached to entities. Each trait
// type has its own pool view and a small type id; traits carry their
// owning entity handle so view iteration can reach entity data.

import (
	"github.com/gazed/sfg/math/lin"
	"github.com/gazed/sfg/memory"
)

// TraitID identifies a trait type. Values are small so trait sets can
// live in a 32 bit mask.
type TraitID uint8

const (
	traitMeshRenderer TraitID = iota
	traitLight
	traitIDs // end of trait ids - must be less than 32.
)

// TraitView stores one trait type in its own pool.
type TraitView[T any] struct {
	id   TraitID
	pool *memory.Pool[T]
}

// NewTraitView reserves a view with the given trait capacity.
func NewTraitView[T any](id TraitID, capacity int) *TraitView[T] {
	return &TraitView[T]{id: id, pool: memory.NewPool[T](capacity)}
}

// ID returns the view's trait type id.
func (v *TraitView[T]) ID() TraitID { return v.id }

// Get returns the trait behind a live handle.
func (v *TraitView[T]) Get(h memory.Handle[T]) *T { return v.pool.Get(h) }

// Range visits every live trait.
func (v *TraitView[T]) Range(visit func(h memory.Handle[T], t *T) bool) {
	v.pool.Range(visit)
}

// Len returns the live trait count.
func (v *TraitView[T]) Len() int { return v.pool.Len() }

// =============================================================================
// mesh renderer

// MeshRenderer draws a model at its entity's transform.
type MeshRenderer struct {
	Entity EntityHandle
	Model  ModelHandle
}

// onAdd expands the owning entity's bounds by the model's bounds.
func (t *MeshRenderer) onAdd(w *World) {
	if w.res == nil || !w.res.models.pool.IsValid(t.Model) {
		return
	}
	model := w.res.models.pool.Get(t.Model)
	box := w.Aabb(t.Entity)
	*box = box.Expand(model.TotalAabb)
}

func (t *MeshRenderer) onRemove(w *World) {}

// AddMeshRenderer attaches a mesh renderer trait.
func (w *World) AddMeshRenderer(entity EntityHandle, initial MeshRenderer) memory.Handle[MeshRenderer] {
	w.check(entity)
	h := w.meshRenderers.pool.Allocate()
	trait := w.meshRenderers.pool.Get(h)
	*trait = initial
	trait.Entity = entity
	trait.onAdd(w)
	return h
}

// RemoveMeshRenderer detaches the trait.
func (w *World) RemoveMeshRenderer(h memory.Handle[MeshRenderer]) {
	trait := w.meshRenderers.pool.Get(h)
	trait.onRemove(w)
	w.meshRenderers.pool.Free(h)
}

// MeshRenderers exposes the view for iteration.
func (w *World) MeshRenderers() *TraitView[MeshRenderer] { return w.meshRenderers }

// =============================================================================
// light

// Light colors the scene from its entity's position.
type Light struct {
	Entity    EntityHandle
	Color     lin.V4
	Intensity float32
	Radius    float32
}

func (t *Light) onAdd(w *World)    {}
func (t *Light) onRemove(w *World) {}

// AddLight attaches a light trait.
func (w *World) AddLight(entity EntityHandle, initial Light) memory.Handle[Light] {
	w.check(entity)
	h := w.lights.pool.Allocate()
	trait := w.lights.pool.Get(h)
	*trait = initial
	trait.Entity = entity
	trait.onAdd(w)
	return h
}

// RemoveLight detaches the trait.
func (w *World) RemoveLight(h memory.Handle[Light]) {
	trait := w.lights.pool.Get(h)
	trait.onRemove(w)
	w.lights.pool.Free(h)
}

// Lights exposes the view for iteration.
func (w *World) Lights() *TraitView[Light] { return w.lights }
