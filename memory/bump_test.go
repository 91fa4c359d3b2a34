// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package memory

import (
	"testing"
)

func TestBump(t *testing.T) {
	t.Run("allocations are aligned", func(t *testing.T) {
		b := NewBump(256)
		b.Allocate(3, 1)
		if b.Head() != 3 {
			t.Errorf("expected head 3, got %d", b.Head())
		}
		b.Allocate(8, 16)
		if b.Head() != 24 { // 3 rounded up to 16, plus 8.
			t.Errorf("expected head 24, got %d", b.Head())
		}
	})
	t.Run("reset rewinds the head", func(t *testing.T) {
		b := NewBump(64)
		b.Allocate(60, 1)
		b.Reset()
		if b.Head() != 0 {
			t.Errorf("expected head 0 after reset, got %d", b.Head())
		}
		if got := b.Allocate(64, 1); len(got) != 64 {
			t.Errorf("expected full arena after reset")
		}
	})
	t.Run("exhaustion panics", func(t *testing.T) {
		b := NewBump(16)
		defer func() {
			if recover() == nil {
				t.Errorf("expected panic on exhausted arena")
			}
		}()
		b.Allocate(17, 1)
	})
}

func TestChunk(t *testing.T) {
	t.Run("refs address into the arena", func(t *testing.T) {
		c := NewChunk(64)
		a := c.Allocate(8)
		b := c.Allocate(8)
		if a.Offset != 0 || b.Offset != 8 {
			t.Errorf("expected sequential offsets, got %d %d", a.Offset, b.Offset)
		}
		copy(c.Bytes(a), []byte("abcdefgh"))
		if string(c.Bytes(a)) != "abcdefgh" {
			t.Errorf("expected bytes to round trip")
		}
	})
	t.Run("freed holes are reused first fit", func(t *testing.T) {
		c := NewChunk(64)
		a := c.Allocate(16)
		c.Allocate(16)
		c.Free(a)
		d := c.Allocate(8) // fits in the hole left by a.
		if d.Offset != 0 {
			t.Errorf("expected hole reuse at offset 0, got %d", d.Offset)
		}
		e := c.Allocate(8) // remainder of the split hole.
		if e.Offset != 8 {
			t.Errorf("expected split hole remainder at 8, got %d", e.Offset)
		}
		if c.Head() != 32 {
			t.Errorf("expected head unchanged at 32, got %d", c.Head())
		}
	})
	t.Run("reused regions are zeroed", func(t *testing.T) {
		c := NewChunk(64)
		a := c.Allocate(8)
		copy(c.Bytes(a), []byte("junkjunk"))
		c.Free(a)
		b := c.Allocate(8)
		for _, by := range c.Bytes(b) {
			if by != 0 {
				t.Errorf("expected zeroed reuse, got %q", c.Bytes(b))
				break
			}
		}
	})
}

func TestText(t *testing.T) {
	t.Run("strings round trip", func(t *testing.T) {
		ta := NewText(64)
		a := ta.Allocate("hello")
		b := ta.Allocate("world")
		if ta.Get(a) != "hello" || ta.Get(b) != "world" {
			t.Errorf("expected stored strings, got %q %q", ta.Get(a), ta.Get(b))
		}
		if ta.Head() != 12 { // two strings plus terminators.
			t.Errorf("expected head 12, got %d", ta.Head())
		}
	})
	t.Run("holes are reused by length", func(t *testing.T) {
		ta := NewText(64)
		a := ta.Allocate("abcde")
		ta.Allocate("fg")
		ta.Deallocate(a)
		c := ta.Allocate("xyz") // fits the 6 byte hole.
		if ta.Get(c) != "xyz" {
			t.Errorf("expected hole reuse, got %q", ta.Get(c))
		}
		if c.offset != 0 {
			t.Errorf("expected reuse at offset 0, got %d", c.offset)
		}
	})
	t.Run("empty string is the zero ref", func(t *testing.T) {
		ta := NewText(16)
		if ref := ta.Allocate(""); ref.Valid() {
			t.Errorf("expected invalid ref for empty string")
		}
	})
}
