// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

// Package device provides minimal platform access to an application
// window and user input. The main thread pumps OS messages into a
// bounded event queue; the engine update loop drains the queue. The
// application is responsible for any windowing constructs like
// buttons, dialogs, or text boxes.
//
// Big thanks to GLFW (http://www.glfw.org) from which the minimalist
// API philosophy was borrowed along with which OS specific API's
// mattered.
//
// Package device is provided as part of the sfg rendering engine SDK.
package device

import (
	"sync"
	"sync/atomic"
)

// Device wraps one OS window and its input stream. Expected usage:
//
//	dev := device.New("title", 0, 0, 1280, 720, true)
//	if err := dev.Open(); err != nil { ... }
//	// main thread, frequently:
//	dev.Pump()
//	// update thread:
//	for ev, ok := dev.Poll(); ok; ev, ok = dev.Poll() { ... }
//	dev.Dispose()
type Device struct {
	nl     native      // os specific window and message pump.
	events *eventQueue // main thread enqueues, update thread drains.
	alive  atomic.Bool // false once the window closes.

	title    string
	x, y     int32
	w, h     uint32
	windowed bool
}

// New returns a Device for the platform. The window is not created
// until Open.
func New(title string, x, y int32, w, h uint32, windowed bool) *Device {
	if w < minWindowSize {
		w = minWindowSize
	}
	if h < minWindowSize {
		h = minWindowSize
	}
	d := &Device{
		title:    title,
		x:        x,
		y:        y,
		w:        w,
		h:        h,
		windowed: windowed,
		events:   newEventQueue(),
	}
	d.nl = nativeLayer(d)
	return d
}

// minWindowSize keeps degenerate configurations visible.
const minWindowSize = 100

// Open creates and shows the window.
func (d *Device) Open() error {
	if err := d.nl.open(); err != nil {
		return err
	}
	d.alive.Store(true)
	return nil
}

// Pump processes pending OS messages once, translating them into
// queued events. Expected to be called frequently from the main
// thread; long gaps make input visibly laggy.
func (d *Device) Pump() {
	if d.alive.Load() {
		d.nl.pump()
	}
}

// Poll removes and returns the oldest queued event.
func (d *Device) Poll() (Event, bool) { return d.events.poll() }

// IsAlive returns true until the window has been closed.
func (d *Device) IsAlive() bool { return d.alive.Load() }

// Size returns the current drawable size in pixels.
func (d *Device) Size() (w, h uint32) { return d.w, d.h }

// Dispose destroys the window and releases OS resources.
func (d *Device) Dispose() {
	d.alive.Store(false)
	d.nl.dispose()
}

// SurfaceInfo returns the two OS handles a render backend needs to
// create its presentation surface: HINSTANCE and HWND on Windows, the
// NSWindow and CAMetalLayer on macOS.
func (d *Device) SurfaceInfo() (a, b uintptr) { return d.nl.surface() }

// push translates and enqueues one native event. Called by the
// native layers from the main thread.
func (d *Device) push(ev Event) {
	switch ev.Kind {
	case KindClose:
		d.alive.Store(false)
	case KindResize:
		d.w, d.h = ev.Width, ev.Height
	}
	d.events.push(ev)
}

// native specifies the methods each OS layer must implement. Each
// layer compiles only on its platform as per
// http://golang.org/pkg/go/build/
type native interface {
	open() error     // create and show the window.
	pump()           // drain pending OS messages into the queue.
	dispose()        // destroy the window.
	surface() (a, b uintptr)
}

// Device
// =============================================================================
// event queue

// eventQueueSize bounds the window event queue. The 257th enqueue
// drops the oldest event rather than stalling the OS pump.
const eventQueueSize = 256

// eventQueue is a bounded single-producer single-consumer ring:
// the main thread enqueues, the update thread drains.
type eventQueue struct {
	mu   sync.Mutex
	ring [eventQueueSize]Event
	head uint32 // next slot to read.
	used uint32 // occupied slots.
}

func newEventQueue() *eventQueue { return &eventQueue{} }

// push appends an event, dropping the oldest when full.
func (q *eventQueue) push(ev Event) {
	q.mu.Lock()
	if q.used == eventQueueSize {
		q.head = (q.head + 1) % eventQueueSize // drop oldest.
		q.used--
	}
	q.ring[(q.head+q.used)%eventQueueSize] = ev
	q.used++
	q.mu.Unlock()
}

// poll removes the oldest event, returning false when empty.
func (q *eventQueue) poll() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.used == 0 {
		return Event{}, false
	}
	ev := q.ring[q.head]
	q.head = (q.head + 1) % eventQueueSize
	q.used--
	return ev, true
}
