// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package memory

// chunk.go provides the offset addressed arena used for resource
// owned spans, eg: a model's node and mesh handle arrays.

// ChunkRef identifies an allocation within a Chunk arena by offset
// instead of pointer so the backing block can relocate when the arena
// grows. The zero ChunkRef is the null allocation.
type ChunkRef struct {
	Offset uint32 // byte offset into the arena.
	Size   uint32 // allocation size in bytes. Zero means null.
}

// Valid returns true for refs returned from Allocate.
func (c ChunkRef) Valid() bool { return c.Size != 0 }

// chunkHole is a freed region available for reuse.
type chunkHole struct {
	offset uint32
	size   uint32
}

// Chunk is a bump arena whose allocations are addressed by ChunkRef.
// Freed regions go on a hole list and are reused first-fit before the
// head advances. Holes are not coalesced: allocation patterns are
// create-once spans freed together with their owning resource.
type Chunk struct {
	raw   []byte
	head  uint32
	holes []chunkHole
}

// NewChunk reserves a chunk arena of the given byte size.
func NewChunk(size uint32) *Chunk {
	return &Chunk{raw: make([]byte, size)}
}

// Allocate returns a ref to size bytes, reusing the first hole large
// enough before bumping the head. Panics when the arena is exhausted.
func (c *Chunk) Allocate(size uint32) ChunkRef {
	if size == 0 {
		return ChunkRef{}
	}
	for i, h := range c.holes {
		if h.size < size {
			continue
		}
		ref := ChunkRef{Offset: h.offset, Size: size}
		if h.size == size {
			c.holes = append(c.holes[:i], c.holes[i+1:]...)
		} else {
			c.holes[i].offset += size
			c.holes[i].size -= size
		}
		clear(c.raw[ref.Offset : ref.Offset+ref.Size])
		return ref
	}
	if c.head+size > uint32(len(c.raw)) {
		panic("memory: chunk arena exhausted")
	}
	ref := ChunkRef{Offset: c.head, Size: size}
	c.head += size
	return ref
}

// Free returns the region behind ref to the hole list.
func (c *Chunk) Free(ref ChunkRef) {
	if !ref.Valid() {
		return
	}
	c.holes = append(c.holes, chunkHole{offset: ref.Offset, size: ref.Size})
}

// Bytes returns the allocation's backing bytes. The slice is only
// valid until the next Allocate, which may relocate on growth in
// future revisions; callers keep the ChunkRef, not the slice.
func (c *Chunk) Bytes(ref ChunkRef) []byte {
	return c.raw[ref.Offset : ref.Offset+ref.Size : ref.Offset+ref.Size]
}

// Head returns the high-water mark in bytes.
func (c *Chunk) Head() uint32 { return c.head }

// Reset drops every allocation and hole.
func (c *Chunk) Reset() {
	c.head = 0
	c.holes = c.holes[:0]
}
