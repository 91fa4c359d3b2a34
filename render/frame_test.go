// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package render

import (
	"testing"
)

func TestFrame(t *testing.T) {
	t.Run("submit at cap succeeds, one past panics", func(t *testing.T) {
		f := NewFrame(testFrameDefinition)
		s := f.GetStream()
		desc := SubmitDesc{Streams: []*Stream{s}}
		for i := uint32(0); i < testFrameDefinition.MaxSubmissions; i++ {
			f.Submit(desc)
		}
		if got := len(f.Submissions()); got != int(testFrameDefinition.MaxSubmissions) {
			t.Fatalf("expected %d submissions, got %d", testFrameDefinition.MaxSubmissions, got)
		}
		defer func() {
			if recover() == nil {
				t.Errorf("expected panic past submission cap")
			}
		}()
		f.Submit(desc)
	})
	t.Run("stream cap panics", func(t *testing.T) {
		f := NewFrame(testFrameDefinition)
		for i := uint32(0); i < testFrameDefinition.MaxStreams; i++ {
			f.GetStream()
		}
		defer func() {
			if recover() == nil {
				t.Errorf("expected panic past stream cap")
			}
		}()
		f.GetStream()
	})
	t.Run("reset rewinds arena and clears recordings", func(t *testing.T) {
		f := NewFrame(testFrameDefinition)
		s := f.GetStream()
		s.Add(&Dispatch{GroupsX: 1})
		f.Submit(SubmitDesc{Streams: []*Stream{s}})
		used := f.Allocator().Head()

		f.Reset()
		if len(f.Submissions()) != 0 {
			t.Errorf("expected no submissions after reset")
		}
		s2 := f.GetStream()
		if !s2.IsEmpty() {
			t.Errorf("expected empty stream after reset")
		}
		// arena head returns to just the stream buffers.
		streams := testFrameDefinition.StreamSize * testFrameDefinition.MaxStreams
		if f.Allocator().Head() != streams {
			t.Errorf("expected head %d after reset, got %d (was %d)",
				streams, f.Allocator().Head(), used)
		}
	})
	t.Run("submit slices are copied into the arena", func(t *testing.T) {
		f := NewFrame(testFrameDefinition)
		s := f.GetStream()
		waits := []SemaphoreValue{{Value: 3}}
		f.Submit(SubmitDesc{Streams: []*Stream{s}, Waits: waits})
		waits[0].Value = 99 // caller reuse must not alias the frame.
		if got := f.Submissions()[0].Waits[0].Value; got != 3 {
			t.Errorf("expected placed wait value 3, got %d", got)
		}
	})
	t.Run("placed spans view back", func(t *testing.T) {
		f := NewFrame(testFrameDefinition)
		off, _ := PlaceSpan(f, []TextureBarrier{{State: StatePresent}, {State: StateShaderRead}})
		got := ViewSpan[TextureBarrier](f, off, 2)
		if got[0].State != StatePresent || got[1].State != StateShaderRead {
			t.Errorf("expected placed barriers to view back, got %#v", got)
		}
	})
	t.Run("placed bytes view back", func(t *testing.T) {
		f := NewFrame(testFrameDefinition)
		off := PlaceBytes(f, []byte{1, 2, 3, 4})
		if got := ViewBytes(f, off, 4); got[3] != 4 {
			t.Errorf("expected placed bytes to view back, got %v", got)
		}
	})
}
