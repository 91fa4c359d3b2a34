// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package sfg

// world.go provides the entity store: structure-of-arrays entity
// data, the family tree, and the dirty-aware transform hierarchy.
// Entity fields live in parallel arrays for cache friendly iteration;
// one generational pool hands out the indices. See:
// http://bitsquid.blogspot.ca/2014/08/building-data-oriented-entity-system.html

import (
	"github.com/gazed/sfg/math/lin"
	"github.com/gazed/sfg/memory"
)

// Entity is the handle marker for world entities.
type Entity struct{}

// EntityHandle references one live entity. The zero handle is null.
type EntityHandle = memory.Handle[Entity]

// entity flags track which cached transforms need recomputation.
type entityFlags uint16

const (
	localTransformDirty entityFlags = 1 << iota
	absTransformDirty
	absRotationDirty
)

// entityMeta carries the name reference and the dirty flags.
type entityMeta struct {
	name  memory.TextRef
	flags entityFlags
}

// family links entities into a tree. Parent and sibling references
// are handles, never pointers: validity is checked against the
// generational pool on every dereference.
type family struct {
	parent      EntityHandle
	firstChild  EntityHandle
	prevSibling EntityHandle
	nextSibling EntityHandle
}

// World owns the entity arrays, the trait views, and the shared
// allocators. All mutation happens on the update goroutine; the
// render thread only sees data marshalled into render frames.
type World struct {
	res *Resources // resource lookups for trait hooks.

	entities *memory.Pool[Entity]

	// parallel arrays indexed by entity slot.
	metas        *memory.Simple[entityMeta]
	positions    *memory.Simple[lin.V3]
	prevPosition *memory.Simple[lin.V3]
	rotations    *memory.Simple[lin.Q]
	prevRotation *memory.Simple[lin.Q]
	scales       *memory.Simple[lin.V3]
	prevScale    *memory.Simple[lin.V3]
	aabbs        *memory.Simple[lin.Aabb]
	locals       *memory.Simple[lin.M43]
	abs          *memory.Simple[lin.M43]
	absRotations *memory.Simple[lin.Q]
	families     *memory.Simple[family]

	// trait views, one pool per trait type.
	meshRenderers *TraitView[MeshRenderer]
	lights        *TraitView[Light]

	chunk *memory.Chunk // model owned spans.
	names *memory.Text  // entity names.
}

// NewWorld reserves entity storage per the settings capacities.
func NewWorld(s *Settings) *World {
	n := s.MaxEntities
	w := &World{
		entities:     memory.NewPool[Entity](n),
		metas:        memory.NewSimple[entityMeta](n),
		positions:    memory.NewSimple[lin.V3](n),
		prevPosition: memory.NewSimple[lin.V3](n),
		rotations:    memory.NewSimple[lin.Q](n),
		prevRotation: memory.NewSimple[lin.Q](n),
		scales:       memory.NewSimple[lin.V3](n),
		prevScale:    memory.NewSimple[lin.V3](n),
		aabbs:        memory.NewSimple[lin.Aabb](n),
		locals:       memory.NewSimple[lin.M43](n),
		abs:          memory.NewSimple[lin.M43](n),
		absRotations: memory.NewSimple[lin.Q](n),
		families:     memory.NewSimple[family](n),
		chunk:        memory.NewChunk(s.ChunkBytes),
		names:        memory.NewText(s.NameBytes),
	}
	w.meshRenderers = NewTraitView[MeshRenderer](traitMeshRenderer, s.MaxTraits)
	w.lights = NewTraitView[Light](traitLight, s.MaxTraits)
	return w
}

// CreateEntity allocates an entity at the origin with identity
// rotation and unit scale.
func (w *World) CreateEntity(name string) EntityHandle {
	h := w.entities.Allocate()
	i := h.Index()
	if i >= w.metas.Cap() {
		w.growArrays(w.entities.Cap())
	}
	w.metas.Set(i, entityMeta{
		name:  w.names.Allocate(name),
		flags: localTransformDirty | absTransformDirty | absRotationDirty,
	})
	w.positions.Set(i, lin.V3{})
	w.prevPosition.Set(i, lin.V3{})
	w.rotations.Set(i, lin.QI)
	w.prevRotation.Set(i, lin.QI)
	w.scales.Set(i, lin.V3One)
	w.prevScale.Set(i, lin.V3One)
	w.aabbs.Set(i, lin.AabbEmpty())
	w.locals.Set(i, lin.M43I)
	w.abs.Set(i, lin.M43I)
	w.absRotations.Set(i, lin.QI)
	w.families.Set(i, family{})
	return h
}

// growArrays keeps the parallel arrays in step with pool growth.
func (w *World) growArrays(capacity int) {
	w.metas.Grow(capacity)
	w.positions.Grow(capacity)
	w.prevPosition.Grow(capacity)
	w.rotations.Grow(capacity)
	w.prevRotation.Grow(capacity)
	w.scales.Grow(capacity)
	w.prevScale.Grow(capacity)
	w.aabbs.Grow(capacity)
	w.locals.Grow(capacity)
	w.abs.Grow(capacity)
	w.absRotations.Grow(capacity)
	w.families.Grow(capacity)
}

// DestroyEntity removes the entity and every descendant. The entity
// detaches from its parent's child list first, then children are
// destroyed recursively.
func (w *World) DestroyEntity(h EntityHandle) {
	w.detach(h)
	w.destroyRecursive(h)
}

func (w *World) destroyRecursive(h EntityHandle) {
	fam := w.families.Get(h.Index())
	child := fam.firstChild
	for child.Alive() && w.entities.IsValid(child) {
		next := w.families.Get(child.Index()).nextSibling
		w.destroyRecursive(child)
		child = next
	}
	meta := w.metas.Get(h.Index())
	w.names.Deallocate(meta.name)
	w.entities.Free(h)
}

// IsValid reports whether the handle references a live entity.
func (w *World) IsValid(h EntityHandle) bool { return w.entities.IsValid(h) }

// Len returns the live entity count.
func (w *World) Len() int { return w.entities.Len() }

// Name returns the entity's name.
func (w *World) Name(h EntityHandle) string {
	w.check(h)
	return w.names.Get(w.metas.Get(h.Index()).name)
}

// Aabb returns the entity's bounds for trait hooks to expand.
func (w *World) Aabb(h EntityHandle) *lin.Aabb {
	w.check(h)
	return w.aabbs.Get(h.Index())
}

func (w *World) check(h EntityHandle) {
	if !w.entities.IsValid(h) {
		panic("sfg: stale entity handle")
	}
}

// =============================================================================
// family tree

// AddChild links child under parent, detaching it from any previous
// parent. The child becomes the head of the parent's child list.
func (w *World) AddChild(parent, child EntityHandle) {
	w.check(parent)
	w.check(child)
	w.detach(child)

	pf := w.families.Get(parent.Index())
	cf := w.families.Get(child.Index())
	cf.parent = parent
	cf.prevSibling = EntityHandle{}
	cf.nextSibling = pf.firstChild
	if pf.firstChild.Alive() {
		w.families.Get(pf.firstChild.Index()).prevSibling = child
	}
	pf.firstChild = child
	w.markAbsDirty(child, true)
}

// RemoveChild detaches child from parent, leaving it parentless.
func (w *World) RemoveChild(parent, child EntityHandle) {
	w.check(parent)
	w.check(child)
	if w.families.Get(child.Index()).parent != parent {
		return
	}
	w.detach(child)
	w.markAbsDirty(child, true)
}

// detach unlinks the entity from its parent's child list, relinking
// siblings and reassigning first_child when removing the head.
func (w *World) detach(h EntityHandle) {
	fam := w.families.Get(h.Index())
	if !fam.parent.Alive() || !w.entities.IsValid(fam.parent) {
		fam.parent = EntityHandle{}
		return
	}
	pf := w.families.Get(fam.parent.Index())
	if pf.firstChild == h {
		pf.firstChild = fam.nextSibling
	}
	if fam.prevSibling.Alive() {
		w.families.Get(fam.prevSibling.Index()).nextSibling = fam.nextSibling
	}
	if fam.nextSibling.Alive() {
		w.families.Get(fam.nextSibling.Index()).prevSibling = fam.prevSibling
	}
	fam.parent = EntityHandle{}
	fam.prevSibling = EntityHandle{}
	fam.nextSibling = EntityHandle{}
}

// Parent returns the entity's parent, the zero handle at the root.
func (w *World) Parent(h EntityHandle) EntityHandle {
	w.check(h)
	return w.families.Get(h.Index()).parent
}

// FirstChild returns the head of the entity's child list.
func (w *World) FirstChild(h EntityHandle) EntityHandle {
	w.check(h)
	return w.families.Get(h.Index()).firstChild
}

// NextSibling walks the child list.
func (w *World) NextSibling(h EntityHandle) EntityHandle {
	w.check(h)
	return w.families.Get(h.Index()).nextSibling
}

// PrevSibling walks the child list backwards.
func (w *World) PrevSibling(h EntityHandle) EntityHandle {
	w.check(h)
	return w.families.Get(h.Index()).prevSibling
}

// visitChildren calls visit for each direct child.
func (w *World) visitChildren(h EntityHandle, visit func(EntityHandle)) {
	child := w.families.Get(h.Index()).firstChild
	for child.Alive() && w.entities.IsValid(child) {
		next := w.families.Get(child.Index()).nextSibling
		visit(child)
		child = next
	}
}

// =============================================================================
// transforms

// SetPosition moves the entity in parent space.
func (w *World) SetPosition(h EntityHandle, p lin.V3) {
	w.check(h)
	w.positions.Set(h.Index(), p)
	w.markLocalDirty(h, false)
}

// SetRotation orients the entity in parent space.
func (w *World) SetRotation(h EntityHandle, q lin.Q) {
	w.check(h)
	w.rotations.Set(h.Index(), q)
	w.markLocalDirty(h, true)
}

// SetScale scales the entity in parent space. Zero scale is allowed:
// bounds may collapse but no transform math divides by it.
func (w *World) SetScale(h EntityHandle, s lin.V3) {
	w.check(h)
	w.scales.Set(h.Index(), s)
	w.markLocalDirty(h, false)
}

// Position returns the entity's parent space position.
func (w *World) Position(h EntityHandle) lin.V3 {
	w.check(h)
	return *w.positions.Get(h.Index())
}

// Rotation returns the entity's parent space rotation.
func (w *World) Rotation(h EntityHandle) lin.Q {
	w.check(h)
	return *w.rotations.Get(h.Index())
}

// Scale returns the entity's parent space scale.
func (w *World) Scale(h EntityHandle) lin.V3 {
	w.check(h)
	return *w.scales.Get(h.Index())
}

// markLocalDirty flags the entity's local matrix and the absolute
// matrices of the entity and every descendant.
func (w *World) markLocalDirty(h EntityHandle, rotation bool) {
	meta := w.metas.Get(h.Index())
	meta.flags |= localTransformDirty
	w.markAbsDirty(h, rotation)
}

// markAbsDirty flags the absolute transform of the entity and all
// descendants via the child visitor.
func (w *World) markAbsDirty(h EntityHandle, rotation bool) {
	meta := w.metas.Get(h.Index())
	meta.flags |= absTransformDirty
	if rotation {
		meta.flags |= absRotationDirty
	}
	w.visitChildren(h, func(child EntityHandle) {
		w.markAbsDirty(child, rotation)
	})
}

// Transform returns the entity's local matrix, recomputing T*R*S iff
// it was flagged dirty.
func (w *World) Transform(h EntityHandle) lin.M43 {
	w.check(h)
	i := h.Index()
	meta := w.metas.Get(i)
	if meta.flags&localTransformDirty != 0 {
		w.locals.Set(i, lin.NewTRS(*w.positions.Get(i), *w.rotations.Get(i), *w.scales.Get(i)))
		meta.flags &^= localTransformDirty
	}
	return *w.locals.Get(i)
}

// TransformAbs returns the entity's world matrix. Parents recompute
// first, so the chain rebuilds from the root and every dirty flag on
// the path clears.
func (w *World) TransformAbs(h EntityHandle) lin.M43 {
	w.check(h)
	i := h.Index()
	meta := w.metas.Get(i)
	if meta.flags&absTransformDirty != 0 {
		local := w.Transform(h)
		parent := w.families.Get(i).parent
		if parent.Alive() && w.entities.IsValid(parent) {
			w.abs.Set(i, w.TransformAbs(parent).Mul(local))
		} else {
			w.abs.Set(i, local)
		}
		meta.flags &^= absTransformDirty
	}
	return *w.abs.Get(i)
}

// RotationAbs returns the entity's world rotation, recomputing the
// ancestor chain iff flagged dirty.
func (w *World) RotationAbs(h EntityHandle) lin.Q {
	w.check(h)
	i := h.Index()
	meta := w.metas.Get(i)
	if meta.flags&absRotationDirty != 0 {
		rot := *w.rotations.Get(i)
		parent := w.families.Get(i).parent
		if parent.Alive() && w.entities.IsValid(parent) {
			rot = w.RotationAbs(parent).Mul(rot)
		}
		w.absRotations.Set(i, rot)
		meta.flags &^= absRotationDirty
	}
	return *w.absRotations.Get(i)
}

// PositionAbs returns the entity's world position.
func (w *World) PositionAbs(h EntityHandle) lin.V3 {
	return w.TransformAbs(h).Translation()
}

// scaleAbs is the component product of the ancestor scales.
func (w *World) scaleAbs(h EntityHandle) lin.V3 {
	s := *w.scales.Get(h.Index())
	parent := w.families.Get(h.Index()).parent
	if parent.Alive() && w.entities.IsValid(parent) {
		s = w.scaleAbs(parent).Mul(s)
	}
	return s
}

// SetPositionAbs resolves a world position to parent space by
// left-multiplying with the parent's inverse. Returns without
// modification when the parent's transform is singular.
func (w *World) SetPositionAbs(h EntityHandle, p lin.V3) {
	w.check(h)
	parent := w.families.Get(h.Index()).parent
	if parent.Alive() && w.entities.IsValid(parent) {
		inv, ok := w.TransformAbs(parent).Inverse()
		if !ok {
			return
		}
		p = inv.TransformPoint(p)
	}
	w.SetPosition(h, p)
}

// SetRotationAbs resolves a world rotation to parent space using the
// parent's conjugate.
func (w *World) SetRotationAbs(h EntityHandle, q lin.Q) {
	w.check(h)
	parent := w.families.Get(h.Index()).parent
	if parent.Alive() && w.entities.IsValid(parent) {
		q = w.RotationAbs(parent).Inv().Mul(q)
	}
	w.SetRotation(h, q)
}

// SetScaleAbs resolves a world scale to parent space. Returns without
// modification when an ancestor scale component is zero, which would
// need a division by zero to undo.
func (w *World) SetScaleAbs(h EntityHandle, s lin.V3) {
	w.check(h)
	parent := w.families.Get(h.Index()).parent
	if parent.Alive() && w.entities.IsValid(parent) {
		ps := w.scaleAbs(parent)
		if lin.Abs(ps.X) < lin.Epsilon || lin.Abs(ps.Y) < lin.Epsilon || lin.Abs(ps.Z) < lin.Epsilon {
			return
		}
		s = lin.V3{X: s.X / ps.X, Y: s.Y / ps.Y, Z: s.Z / ps.Z}
	}
	w.SetScale(h, s)
}

// =============================================================================
// interpolation

// storePrevTransforms snapshots current TRS before each fixed tick so
// frames can interpolate between the last two simulation states.
// Called by the update loop.
func (w *World) storePrevTransforms() {
	w.entities.Range(func(h EntityHandle, _ *Entity) bool {
		i := h.Index()
		w.prevPosition.Set(i, *w.positions.Get(i))
		w.prevRotation.Set(i, *w.rotations.Get(i))
		w.prevScale.Set(i, *w.scales.Get(i))
		return true
	})
}

// InterpolatedTransformAbs returns the world matrix at fraction t
// between the previous and current simulation states. The render
// side picks t = accumulator/interval for smooth motion between
// fixed ticks.
func (w *World) InterpolatedTransformAbs(h EntityHandle, t float32) lin.M43 {
	w.check(h)
	i := h.Index()
	local := lin.NewTRS(
		w.prevPosition.Get(i).Lerp(*w.positions.Get(i), t),
		w.prevRotation.Get(i).Slerp(*w.rotations.Get(i), t),
		w.prevScale.Get(i).Lerp(*w.scales.Get(i), t),
	)
	parent := w.families.Get(i).parent
	if parent.Alive() && w.entities.IsValid(parent) {
		return w.InterpolatedTransformAbs(parent, t).Mul(local)
	}
	return local
}
