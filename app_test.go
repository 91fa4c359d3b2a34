// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package sfg

import (
	"testing"
	"time"

	"github.com/gazed/sfg/render"
)

// frameCounter records which frames the engine hands out.
type frameCounter struct {
	DelegateBase
	generated []*render.Frame
}

func (fc *frameCounter) OnGenerateFrame(eng *Engine, frame *render.Frame, interp float64) {
	fc.generated = append(fc.generated, frame)
	s := frame.GetStream()
	s.Add(&render.Dispatch{GroupsX: uint32(len(fc.generated))})
	frame.Submit(render.SubmitDesc{Streams: []*render.Stream{s}})
}

// handoffEngine builds just enough engine for frame pacing tests:
// no window, no backend.
func handoffEngine(app Delegate) *Engine {
	eng := &Engine{
		settings:   settingsDefaults,
		app:        app,
		frameAvail: make(chan uint32, render.FramesInFlight),
		frameFree:  make(chan uint32, render.FramesInFlight),
	}
	def := render.FrameDefinition{
		ArenaSize: 64 * 1024, StreamSize: 4 * 1024, MaxStreams: 4, MaxSubmissions: 2,
	}
	for i := range eng.frames {
		eng.frames[i] = render.NewFrame(def)
		eng.frameFree <- uint32(i)
	}
	eng.console = newConsole(8)
	return eng
}

// Double-buffered handoff: the producer records two frames without
// blocking, the consumer executes both in order, and both frames
// reset before a third production.
func TestFrameHandoff(t *testing.T) {
	app := &frameCounter{}
	eng := handoffEngine(app)

	eng.produceFrame(0.25)
	eng.produceFrame(0.50)
	if len(app.generated) != 2 {
		t.Fatalf("expected two productions without blocking, got %d", len(app.generated))
	}
	if app.generated[0] == app.generated[1] {
		t.Fatalf("expected distinct frames for back to back productions")
	}

	// consume both in order, checking submissions execute once each.
	var executed []uint32
	for want := 0; want < 2; want++ {
		i := <-eng.frameAvail
		frame := eng.frames[i]
		subs := frame.Submissions()
		if len(subs) != 1 {
			t.Fatalf("expected one submission per frame, got %d", len(subs))
		}
		err := subs[0].Streams[0].Decode(func(c render.Command) bool {
			executed = append(executed, c.(*render.Dispatch).GroupsX)
			return true
		})
		if err != nil {
			t.Fatalf("decode: %s", err)
		}
		frame.Reset()
		eng.frameFree <- i
	}
	if len(executed) != 2 || executed[0] != 1 || executed[1] != 2 {
		t.Fatalf("expected submissions executed once, in order, got %v", executed)
	}

	// both frames are reset and reusable: a third production takes a
	// free token immediately.
	done := make(chan struct{})
	go func() {
		eng.produceFrame(0.75)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected third production to proceed after resets")
	}
	if len(app.generated) != 3 {
		t.Errorf("expected three productions, got %d", len(app.generated))
	}
}

// The producer blocks while both frames are in flight.
func TestFrameBackpressure(t *testing.T) {
	app := &frameCounter{}
	eng := handoffEngine(app)
	eng.produceFrame(0)
	eng.produceFrame(0)

	blocked := make(chan struct{})
	go func() {
		eng.produceFrame(0) // must wait for a free token.
		close(blocked)
	}()
	select {
	case <-blocked:
		t.Fatalf("expected production to block with both frames in flight")
	case <-time.After(50 * time.Millisecond):
	}

	i := <-eng.frameAvail
	eng.frames[i].Reset()
	eng.frameFree <- i
	select {
	case <-blocked:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected production to resume after a frame freed")
	}
}
