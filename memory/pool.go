// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package memory

// pool.go provides generational slot pools.
// Generational ids follow the data oriented entity systems described at:
// http://bitsquid.blogspot.ca/2014/08/building-data-oriented-entity-system.html

import (
	"log/slog"
)

// Handle references one slot of a Pool. A handle is alive once it has
// been returned from Allocate and stays alive until passed to Free.
// The generation distinguishes the current occupant of a slot from any
// previous occupant, so stale handles are caught on every access.
//
// The type parameter ties a handle to the pool element type: a mesh
// handle cannot be used to fetch a texture.
type Handle[T any] struct {
	index uint16 // slot number within the pool.
	gen   uint16 // slot generation when allocated. Zero is never alive.
}

// Alive returns true for handles returned from Pool.Allocate.
// The zero Handle is never alive.
func (h Handle[T]) Alive() bool { return h.gen != 0 }

// Index returns the slot number for array lookups.
func (h Handle[T]) Index() int { return int(h.index) }

// Generation returns the slot generation the handle was created with.
func (h Handle[T]) Generation() uint16 { return h.gen }

// Pack flattens the handle for wire formats and command payloads.
func (h Handle[T]) Pack() uint32 { return uint32(h.index) | uint32(h.gen)<<16 }

// Unpack restores a handle flattened with Pack.
func Unpack[T any](v uint32) Handle[T] {
	return Handle[T]{index: uint16(v), gen: uint16(v >> 16)}
}

// HandleAt builds a handle from raw parts. Intended for pool owners
// reconstructing handles for known-live slots, eg: Range callbacks.
func HandleAt[T any](index int, gen uint16) Handle[T] {
	return Handle[T]{index: uint16(index), gen: gen}
}

// Pool hands out generational Handles to slots of T. Freed slot
// indices are reused LIFO; each reuse bumps the slot generation so
// handles to the previous occupant fail validation.
//
// Growth copies slots with a shallow slice copy: pooled types must not
// hold pointers into their own slot storage.
type Pool[T any] struct {
	slots  []T      // slot data indexed by Handle.index.
	gens   []uint16 // current generation per slot, starts at 1.
	active []bool   // true while a slot is allocated.
	free   []uint16 // LIFO stack of freed slot indices below head.
	head   uint32   // high-water slot count: slots 0..head-1 have been used.
	live   uint32   // currently allocated slots.
}

// NewPool reserves a pool with the given slot capacity.
// Capacity zero is a design error and panics.
func NewPool[T any](capacity int) *Pool[T] {
	if capacity <= 0 {
		panic("memory: pool capacity must be positive")
	}
	p := &Pool[T]{
		slots:  make([]T, capacity),
		gens:   make([]uint16, capacity),
		active: make([]bool, capacity),
		free:   make([]uint16, 0, capacity),
	}
	for i := range p.gens {
		p.gens[i] = 1
	}
	return p
}

// Allocate returns a handle to a zeroed slot. Freed indices are reused
// before fresh ones. The pool doubles its capacity when every slot is
// in use, keeping all previously returned handles valid.
func (p *Pool[T]) Allocate() Handle[T] {
	var index uint16
	if n := len(p.free); n > 0 {
		index = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		if p.head == uint32(len(p.slots)) {
			p.grow()
		}
		index = uint16(p.head)
		p.head++
	}
	var zero T
	p.slots[index] = zero
	p.active[index] = true
	p.live++
	return Handle[T]{index: index, gen: p.gens[index]}
}

// Get returns the slot for a live handle. The reference is stable
// until the slot is freed; only pool growth relocates the backing
// array. Get panics on a stale or dead handle.
func (p *Pool[T]) Get(h Handle[T]) *T {
	if !p.IsValid(h) {
		panic("memory: stale pool handle")
	}
	return &p.slots[h.index]
}

// IsValid reports whether the handle references its original
// allocation: the slot must still be active on the same generation.
func (p *Pool[T]) IsValid(h Handle[T]) bool {
	if !h.Alive() || uint32(h.index) >= p.head {
		return false
	}
	return p.active[h.index] && p.gens[h.index] == h.gen
}

// Free releases the slot behind a live handle. The slot generation is
// bumped, invalidating the handle and any copies, and the index is
// pushed for reuse. Free panics on a stale or dead handle.
func (p *Pool[T]) Free(h Handle[T]) {
	if !p.IsValid(h) {
		panic("memory: freeing stale pool handle")
	}
	index := h.index
	var zero T
	p.slots[index] = zero
	p.gens[index]++
	if p.gens[index] == 0 {
		p.gens[index] = 1 // skip the never-alive generation on wrap.
	}
	p.active[index] = false
	p.free = append(p.free, index)
	p.live--
}

// Len returns the number of live slots.
func (p *Pool[T]) Len() int { return int(p.live) }

// Cap returns the current slot capacity.
func (p *Pool[T]) Cap() int { return len(p.slots) }

// Range calls visit for each live slot until visit returns false.
// Slots must not be allocated or freed during the walk.
func (p *Pool[T]) Range(visit func(h Handle[T], t *T) bool) {
	for i := uint32(0); i < p.head; i++ {
		if !p.active[i] {
			continue
		}
		h := Handle[T]{index: uint16(i), gen: p.gens[i]}
		if !visit(h, &p.slots[i]) {
			return
		}
	}
}

// grow doubles capacity, copying slot data, generations, and the
// free-list into the new backing arrays.
func (p *Pool[T]) grow() {
	prev := len(p.slots)
	next := prev * 2
	slog.Debug("memory: pool grow", "from", prev, "to", next)

	slots := make([]T, next)
	copy(slots, p.slots)
	gens := make([]uint16, next)
	copy(gens, p.gens)
	active := make([]bool, next)
	copy(active, p.active)
	free := make([]uint16, len(p.free), next)
	copy(free, p.free)

	for i := prev; i < next; i++ {
		gens[i] = 1
	}
	p.slots, p.gens, p.active, p.free = slots, gens, active, free
}

// Pool
// =============================================================================
// Simple provides plain index addressed slots.

// Simple is a fixed array of T addressed directly by slot index.
// It backs structure-of-arrays data where one generational pool hands
// out the indices and parallel Simple arrays carry the fields.
type Simple[T any] struct {
	slots []T
}

// NewSimple reserves capacity slots of T.
func NewSimple[T any](capacity int) *Simple[T] {
	return &Simple[T]{slots: make([]T, capacity)}
}

// Get returns the slot at index. Callers are expected to hold a live
// generational handle for the index; bounds are still checked.
func (s *Simple[T]) Get(index int) *T { return &s.slots[index] }

// Set overwrites the slot at index.
func (s *Simple[T]) Set(index int, t T) { s.slots[index] = t }

// Grow extends the array to the given capacity, keeping existing data.
// Called when the owning generational pool grows.
func (s *Simple[T]) Grow(capacity int) {
	if capacity <= len(s.slots) {
		return
	}
	slots := make([]T, capacity)
	copy(slots, s.slots)
	s.slots = slots
}

// Cap returns the slot capacity.
func (s *Simple[T]) Cap() int { return len(s.slots) }
