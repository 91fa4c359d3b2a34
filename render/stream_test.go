// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package render

import (
	"testing"

	"github.com/gazed/sfg/math/lin"
	"github.com/gazed/sfg/memory"
)

// testFrameDefinition keeps test arenas small.
var testFrameDefinition = FrameDefinition{
	ArenaSize:      64 * 1024,
	StreamSize:     4 * 1024,
	MaxStreams:     4,
	MaxSubmissions: 2,
}

// record and decode a representative frame worth of commands.
func TestStreamRoundTrip(t *testing.T) {
	f := NewFrame(testFrameDefinition)
	s := f.GetStream()

	attOffset, _ := PlaceSpan(f, []ColorAttachment{{
		ClearColor: lin.V4{X: 0.2, Y: 0.3, Z: 0.4, W: 1},
		Load:       LoadOpClear,
		Store:      StoreOpStore,
	}})
	s.Add(&BeginRenderPass{
		ColorAttachments:     attOffset,
		Depth:                NoneOffset,
		ColorAttachmentCount: 1,
	})
	s.Add(&SetViewport{X: 0, Y: 0, Width: 1280, Height: 720, MinDepth: 0, MaxDepth: 1})
	s.Add(&BindPipeline{Shader: memory.Unpack[Shader](7 | 1<<16)})
	s.Add(&DrawIndexedInstanced{IndexCountPerInstance: 36, InstanceCount: 1})
	s.Add(&EndRenderPass{})

	var got []Command
	if err := s.Decode(func(c Command) bool {
		got = append(got, c)
		return true
	}); err != nil {
		t.Fatalf("decode: %s", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 commands, got %d", len(got))
	}

	brp, ok := got[0].(*BeginRenderPass)
	if !ok || brp.ColorAttachmentCount != 1 {
		t.Errorf("expected BeginRenderPass with one attachment, got %#v", got[0])
	}
	atts := ViewSpan[ColorAttachment](f, brp.ColorAttachments, int(brp.ColorAttachmentCount))
	if !atts[0].ClearColor.Eq(lin.V4{X: 0.2, Y: 0.3, Z: 0.4, W: 1}) {
		t.Errorf("expected clear color to survive, got %v", atts[0].ClearColor)
	}
	vp, ok := got[1].(*SetViewport)
	if !ok || vp.Width != 1280 || vp.Height != 720 || vp.MaxDepth != 1 {
		t.Errorf("expected 1280x720 viewport, got %#v", got[1])
	}
	bp, ok := got[2].(*BindPipeline)
	if !ok || bp.Shader.Index() != 7 {
		t.Errorf("expected pipeline 7, got %#v", got[2])
	}
	di, ok := got[3].(*DrawIndexedInstanced)
	if !ok || di.IndexCountPerInstance != 36 || di.InstanceCount != 1 ||
		di.StartIndexLocation != 0 || di.BaseVertexLocation != 0 || di.StartInstanceLocation != 0 {
		t.Errorf("expected draw of 36 indices, got %#v", got[3])
	}
	if _, ok := got[4].(*EndRenderPass); !ok {
		t.Errorf("expected EndRenderPass, got %#v", got[4])
	}
}

// every command type must encode exactly its declared size.
func TestCommandSizes(t *testing.T) {
	for ct := CommandType(0); ct < commandTypes; ct++ {
		c := newCommand(ct)
		if c == nil {
			t.Fatalf("no constructor for command type %d", ct)
		}
		e := &enc{buf: make([]byte, 0, 64)}
		c.encode(e)
		if uint32(len(e.buf)) != c.size() {
			t.Errorf("command %d encoded %d bytes, declared %d", ct, len(e.buf), c.size())
		}
	}
}

// commands play back in insertion order.
func TestStreamOrder(t *testing.T) {
	f := NewFrame(testFrameDefinition)
	s := f.GetStream()
	for i := 0; i < 10; i++ {
		s.Add(&Dispatch{GroupsX: uint32(i)})
	}
	i := uint32(0)
	if err := s.Decode(func(c Command) bool {
		if d := c.(*Dispatch); d.GroupsX != i {
			t.Errorf("expected dispatch %d, got %d", i, d.GroupsX)
		}
		i++
		return true
	}); err != nil {
		t.Fatalf("decode: %s", err)
	}
	if i != 10 {
		t.Errorf("expected 10 commands, got %d", i)
	}
}

func TestStreamOverflow(t *testing.T) {
	def := testFrameDefinition
	def.StreamSize = 16 // three 5 byte EndRenderPass records fit, a fourth does not.
	f := NewFrame(def)
	s := f.GetStream()
	s.Add(&EndRenderPass{}) // 5 bytes.
	s.Add(&EndRenderPass{}) // 10 bytes.
	s.Add(&EndRenderPass{}) // 15 bytes.
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on stream overflow")
		}
	}()
	s.Add(&EndRenderPass{}) // 20 bytes > 16.
}
