// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package memory

// text.go provides the string arena used for entity names and the
// debug console line ring.

// TextRef identifies a string stored in a Text arena.
// The zero TextRef is the empty string.
type TextRef struct {
	offset uint32
	size   uint32 // stored bytes excluding the terminator.
}

// Valid returns true for refs returned from Allocate.
func (t TextRef) Valid() bool { return t.size != 0 }

// textHole is a freed region keyed by the stored string length.
type textHole struct {
	offset uint32
	size   uint32 // bytes including the terminator.
}

// Text is a fixed character arena storing zero-terminated strings.
// Allocations scan the hole list for the first region at least as
// large as the request before bumping the head.
type Text struct {
	raw   []byte
	head  uint32
	holes []textHole
}

// NewText reserves a text arena of the given byte capacity.
func NewText(capacity uint32) *Text {
	return &Text{raw: make([]byte, capacity)}
}

// Allocate stores text and returns its ref. Panics when the arena is
// exhausted: name storage is sized at startup.
func (t *Text) Allocate(text string) TextRef {
	if len(text) == 0 {
		return TextRef{}
	}
	need := uint32(len(text)) + 1 // zero terminator.
	for i, h := range t.holes {
		if h.size < need {
			continue
		}
		ref := TextRef{offset: h.offset, size: uint32(len(text))}
		if h.size == need {
			t.holes = append(t.holes[:i], t.holes[i+1:]...)
		} else {
			t.holes[i].offset += need
			t.holes[i].size -= need
		}
		t.store(ref.offset, text)
		return ref
	}
	if t.head+need > uint32(len(t.raw)) {
		panic("memory: text arena exhausted")
	}
	ref := TextRef{offset: t.head, size: uint32(len(text))}
	t.store(ref.offset, text)
	t.head += need
	return ref
}

// Get returns the stored string.
func (t *Text) Get(ref TextRef) string {
	if !ref.Valid() {
		return ""
	}
	return string(t.raw[ref.offset : ref.offset+ref.size])
}

// Deallocate returns the string's region to the hole list, keyed by
// the stored length.
func (t *Text) Deallocate(ref TextRef) {
	if !ref.Valid() {
		return
	}
	t.holes = append(t.holes, textHole{offset: ref.offset, size: ref.size + 1})
}

// Head returns the high-water mark in bytes.
func (t *Text) Head() uint32 { return t.head }

// Reset drops every stored string and hole.
func (t *Text) Reset() {
	t.head = 0
	t.holes = t.holes[:0]
}

// store writes the string bytes and terminator.
func (t *Text) store(offset uint32, text string) {
	copy(t.raw[offset:], text)
	t.raw[offset+uint32(len(text))] = 0
}
