// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package render

// frame.go provides the per in-flight-frame recording container.
// There are FramesInFlight frames: the update loop records one while
// the render thread consumes the other, so their bump arenas never
// overlap in time.

import (
	"fmt"
	"unsafe"

	"github.com/gazed/sfg/memory"
)

// FrameDefinition fixes the per-frame capacities. Capacities are set
// once at startup; exceeding them while recording is a design error
// that panics.
type FrameDefinition struct {
	ArenaSize      uint32 // bump arena bytes backing all frame data.
	StreamSize     uint32 // command bytes per stream.
	MaxStreams     uint32 // command streams per frame.
	MaxSubmissions uint32 // submit descriptors per frame.
}

// DefaultFrameDefinition sizes a frame for a typical scene.
var DefaultFrameDefinition = FrameDefinition{
	ArenaSize:      4 * 1024 * 1024,
	StreamSize:     128 * 1024,
	MaxStreams:     16,
	MaxSubmissions: 8,
}

// SemaphoreValue pairs a timeline semaphore with a counter value for
// submit-time waits and signals.
type SemaphoreValue struct {
	Semaphore SemaphoreHandle
	Value     uint64
}

// SubmitDesc instructs the backend to execute command streams on a
// queue, gated by wait pairs and producing signal pairs. The slices
// are placed in the frame arena by Submit.
type SubmitDesc struct {
	Queue   QueueHandle
	Streams []*Stream
	Waits   []SemaphoreValue
	Signals []SemaphoreValue
}

// Frame holds one in-flight frame's command streams and submissions,
// all backed by a single bump arena. Reset rewinds the arena and
// re-places the stream and submission arrays inside it so every byte
// of per-frame data releases at once.
type Frame struct {
	def     FrameDefinition
	arena   *memory.Bump
	streams []Stream     // arena buffers, re-placed each Reset.
	submits []SubmitDesc // filled by Submit, cleared each Reset.

	streamsUsed uint32
	submitsUsed uint32
}

// NewFrame allocates a frame per the definition and performs the
// initial Reset.
func NewFrame(def FrameDefinition) *Frame {
	if def.ArenaSize < def.StreamSize*def.MaxStreams {
		panic("render: frame arena smaller than its command streams")
	}
	f := &Frame{
		def:     def,
		arena:   memory.NewBump(def.ArenaSize),
		streams: make([]Stream, def.MaxStreams),
		submits: make([]SubmitDesc, 0, def.MaxSubmissions),
	}
	f.Reset()
	return f
}

// Reset rewinds the bump arena and re-allocates each stream's byte
// buffer inside it. Called by the render thread after consuming the
// frame, never while the frame is being recorded.
func (f *Frame) Reset() {
	f.arena.Reset()
	for i := range f.streams {
		buf := f.arena.Allocate(f.def.StreamSize, 8)
		f.streams[i].buf = buf[:0]
	}
	f.submits = f.submits[:0]
	f.streamsUsed = 0
	f.submitsUsed = 0
}

// GetStream returns the next unused command stream. Panics past the
// frame's stream cap.
func (f *Frame) GetStream() *Stream {
	if f.streamsUsed >= f.def.MaxStreams {
		panic(fmt.Sprintf("render: frame stream cap %d exceeded", f.def.MaxStreams))
	}
	s := &f.streams[f.streamsUsed]
	f.streamsUsed++
	return s
}

// Submit appends a submit descriptor, copying its slices into the
// frame arena so the caller may reuse its own. Panics past the
// frame's submission cap.
func (f *Frame) Submit(desc SubmitDesc) {
	if f.submitsUsed >= f.def.MaxSubmissions {
		panic(fmt.Sprintf("render: frame submission cap %d exceeded", f.def.MaxSubmissions))
	}
	placed := SubmitDesc{Queue: desc.Queue}
	_, placed.Streams = PlaceSpan(f, desc.Streams)
	_, placed.Waits = PlaceSpan(f, desc.Waits)
	_, placed.Signals = PlaceSpan(f, desc.Signals)
	f.submits = append(f.submits, placed)
	f.submitsUsed++
}

// Submissions returns the recorded submit descriptors in order.
func (f *Frame) Submissions() []SubmitDesc { return f.submits }

// Allocator exposes the frame arena so callers can place variable
// length aux data next to the commands that reference it.
func (f *Frame) Allocator() *memory.Bump { return f.arena }

// =============================================================================
// arena spans

// PlaceSpan copies items into the frame arena and returns the arena
// offset plus a typed view of the placed data. T must be a plain data
// struct: the bytes are reinterpreted, not marshalled.
func PlaceSpan[T any](f *Frame, items []T) (uint32, []T) {
	if len(items) == 0 {
		return NoneOffset, nil
	}
	var t T
	stride := uint32(unsafe.Sizeof(t))
	alignment := uint32(unsafe.Alignof(t))
	offset, raw := f.arena.AllocateOffset(stride*uint32(len(items)), alignment)
	span := unsafe.Slice((*T)(unsafe.Pointer(&raw[0])), len(items))
	copy(span, items)
	return offset, span
}

// Place copies one value into the frame arena.
func Place[T any](f *Frame, item T) (uint32, *T) {
	offset, span := PlaceSpan(f, []T{item})
	return offset, &span[0]
}

// ViewSpan returns count items previously placed at offset. Used by
// backends while translating commands that carry arena references.
func ViewSpan[T any](f *Frame, offset uint32, count int) []T {
	if offset == NoneOffset || count == 0 {
		return nil
	}
	var t T
	stride := uint32(unsafe.Sizeof(t))
	raw := f.arena.Bytes(offset, stride*uint32(count))
	return unsafe.Slice((*T)(unsafe.Pointer(&raw[0])), count)
}

// View returns one item previously placed at offset.
func View[T any](f *Frame, offset uint32) *T {
	return &ViewSpan[T](f, offset, 1)[0]
}

// PlaceBytes copies raw bytes into the frame arena, returning the
// arena offset. Used for push constant data.
func PlaceBytes(f *Frame, p []byte) uint32 {
	if len(p) == 0 {
		return NoneOffset
	}
	offset, raw := f.arena.AllocateOffset(uint32(len(p)), 4)
	copy(raw, p)
	return offset
}

// ViewBytes returns size bytes previously placed at offset.
func ViewBytes(f *Frame, offset, size uint32) []byte {
	if offset == NoneOffset || size == 0 {
		return nil
	}
	return f.arena.Bytes(offset, size)
}
