// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package memory

import (
	"testing"
)

// check the generational pool handle lifecycle.
func TestPool(t *testing.T) {
	type widget struct{ v int }

	t.Run("zero handle is not alive", func(t *testing.T) {
		p := NewPool[widget](4)
		var h Handle[widget]
		if h.Alive() {
			t.Errorf("expected zero handle to be dead")
		}
		if p.IsValid(h) {
			t.Errorf("expected zero handle to be invalid")
		}
	})
	t.Run("generation reuse invalidates stale handles", func(t *testing.T) {
		p := NewPool[widget](4)
		a := p.Allocate()
		if a.Index() != 0 || a.Generation() != 1 {
			t.Errorf("expected index 0 gen 1, got %d %d", a.Index(), a.Generation())
		}
		p.Get(a).v = 7
		p.Free(a)
		b := p.Allocate()
		if b.Index() != 0 || b.Generation() != 2 {
			t.Errorf("expected index 0 gen 2, got %d %d", b.Index(), b.Generation())
		}
		if p.IsValid(a) {
			t.Errorf("expected stale handle to be invalid")
		}
		if got := p.Get(b).v; got != 0 {
			t.Errorf("expected reused slot to be zeroed, got %d", got)
		}
	})
	t.Run("get on stale handle panics", func(t *testing.T) {
		p := NewPool[widget](4)
		a := p.Allocate()
		p.Free(a)
		defer func() {
			if recover() == nil {
				t.Errorf("expected panic on stale get")
			}
		}()
		p.Get(a)
	})
	t.Run("free list plus live equals head", func(t *testing.T) {
		p := NewPool[widget](8)
		var hs []Handle[widget]
		for i := 0; i < 6; i++ {
			hs = append(hs, p.Allocate())
		}
		p.Free(hs[1])
		p.Free(hs[4])
		if len(p.free)+p.Len() != int(p.head) {
			t.Errorf("invariant broken: free %d live %d head %d",
				len(p.free), p.Len(), p.head)
		}
	})
	t.Run("free is LIFO", func(t *testing.T) {
		p := NewPool[widget](8)
		a, b := p.Allocate(), p.Allocate()
		p.Free(a)
		p.Free(b)
		if got := p.Allocate(); got.Index() != b.Index() {
			t.Errorf("expected last freed index %d, got %d", b.Index(), got.Index())
		}
	})
	t.Run("grow doubles and keeps handles valid", func(t *testing.T) {
		p := NewPool[widget](2)
		a := p.Allocate()
		b := p.Allocate()
		p.Get(a).v = 1
		p.Get(b).v = 2
		c := p.Allocate() // triggers growth.
		if p.Cap() != 4 {
			t.Errorf("expected capacity 4 after grow, got %d", p.Cap())
		}
		if p.Get(a).v != 1 || p.Get(b).v != 2 {
			t.Errorf("expected prior slots to survive growth")
		}
		if !p.IsValid(c) || c.Index() != 2 {
			t.Errorf("expected new slot index 2, got %d", c.Index())
		}
	})
	t.Run("range visits live slots only", func(t *testing.T) {
		p := NewPool[widget](4)
		a, b, c := p.Allocate(), p.Allocate(), p.Allocate()
		_ = a
		_ = c
		p.Free(b)
		visited := 0
		p.Range(func(h Handle[widget], w *widget) bool {
			visited++
			return true
		})
		if visited != 2 {
			t.Errorf("expected 2 live slots, visited %d", visited)
		}
	})
}

// Tests
// =============================================================================
// Benchmarks.

// go test -bench=.
// Hammer the pool with allocate/free pairs.
func BenchmarkPoolAllocateFree(b *testing.B) {
	p := NewPool[[16]byte](64)
	for cnt := 0; cnt < b.N; cnt++ {
		h := p.Allocate()
		p.Free(h)
	}
}
