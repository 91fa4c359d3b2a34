// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package sfg

// console.go provides the debug console and its overlay controller.
// The console mirrors the last log lines and dispatches typed
// commands; the overlay controller turns an immediate-mode builder's
// draw buffer into GPU buffers and recorded draw commands each frame.

import (
	"math"
	"strings"
	"sync"

	"github.com/gazed/sfg/device"
	"github.com/gazed/sfg/memory"
	"github.com/gazed/sfg/render"
)

// consoleState is the console's small visibility state machine.
type consoleState uint8

const (
	consoleInvisible consoleState = iota
	consoleVisible
)

// Console shows the last N log lines and runs registered commands.
// One console exists per engine, reachable through Engine.Console.
type Console struct {
	mu    sync.Mutex
	state consoleState

	// line ring: text refs into the console's own string arena.
	text    *memory.Text
	lines   []memory.TextRef
	head    int // next ring slot to overwrite.
	count   int
	input   []rune // current command line.
	history []string

	// commands keyed by hashed name.
	commands map[uint64]ConsoleCommand

	overlay *overlayController
}

// ConsoleCommand runs when its name is entered. Args are the
// whitespace separated words after the command name.
type ConsoleCommand func(eng *Engine, args []string)

func newConsole(lineCap int) *Console {
	c := &Console{
		text:     memory.NewText(uint32(lineCap) * 256),
		lines:    make([]memory.TextRef, lineCap),
		commands: map[uint64]ConsoleCommand{},
		overlay:  &overlayController{},
	}
	c.Register("help", func(eng *Engine, args []string) {
		c.Log(LogInfo, "commands: help, clear, entities, close")
	})
	c.Register("clear", func(eng *Engine, args []string) { c.clear() })
	c.Register("entities", func(eng *Engine, args []string) {
		c.Log(LogInfo, "live entities: "+itoa(eng.world.Len()))
	})
	c.Register("close", func(eng *Engine, args []string) { eng.RequestClose() })
	return c
}

// Toggle flips console visibility. Bound to the grave key.
func (c *Console) Toggle() {
	c.mu.Lock()
	if c.state == consoleInvisible {
		c.state = consoleVisible
	} else {
		c.state = consoleInvisible
	}
	c.mu.Unlock()
}

// IsVisible reports the console state.
func (c *Console) IsVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == consoleVisible
}

// Register installs a command under the given name.
func (c *Console) Register(name string, cmd ConsoleCommand) {
	c.mu.Lock()
	c.commands[hashName(name)] = cmd
	c.mu.Unlock()
}

// Log implements LogSink: each line lands in the ring, evicting the
// oldest line's storage when the ring wraps.
func (c *Console) Log(level LogLevel, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old := c.lines[c.head]; old.Valid() {
		c.text.Deallocate(old)
	}
	c.lines[c.head] = c.text.Allocate(message)
	c.head = (c.head + 1) % len(c.lines)
	if c.count < len(c.lines) {
		c.count++
	}
}

// Lines returns the buffered lines, oldest first.
func (c *Console) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, c.count)
	start := (c.head - c.count + len(c.lines)) % len(c.lines)
	for i := 0; i < c.count; i++ {
		ref := c.lines[(start+i)%len(c.lines)]
		out = append(out, c.text.Get(ref))
	}
	return out
}

func (c *Console) clear() {
	c.mu.Lock()
	for i := range c.lines {
		if c.lines[i].Valid() {
			c.text.Deallocate(c.lines[i])
			c.lines[i] = memory.TextRef{}
		}
	}
	c.head, c.count = 0, 0
	c.mu.Unlock()
}

// OnKey feeds key events while the console is visible. Printable
// input builds the command line; return dispatches it.
func (c *Console) OnKey(ev device.Event) {
	if !c.IsVisible() || ev.Action == device.Released {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case ev.Code == device.KeyBackspace:
		if len(c.input) > 0 {
			c.input = c.input[:len(c.input)-1]
		}
	case ev.Code >= device.KeyA && ev.Code <= device.KeyZ:
		c.input = append(c.input, rune('a'+int(ev.Code-device.KeyA)))
	case ev.Code >= device.Key0 && ev.Code <= device.Key9:
		c.input = append(c.input, rune('0'+int(ev.Code-device.Key0)))
	case ev.Code == device.KeySpace:
		c.input = append(c.input, ' ')
	}
}

// Submit dispatches the pending command line. Exposed for the return
// key handling and for tests.
func (c *Console) Submit(eng *Engine) {
	c.mu.Lock()
	line := strings.TrimSpace(string(c.input))
	c.input = c.input[:0]
	if line != "" {
		c.history = append(c.history, line)
	}
	c.mu.Unlock()
	if line == "" {
		return
	}
	words := strings.Fields(line)
	c.mu.Lock()
	cmd, ok := c.commands[hashName(words[0])]
	c.mu.Unlock()
	if !ok {
		c.Log(LogWarning, "unknown command: "+words[0])
		return
	}
	cmd(eng, words[1:])
}

// generate records the console overlay into the frame when visible.
func (c *Console) generate(eng *Engine, frame *render.Frame) {
	if !c.IsVisible() {
		return
	}
	c.overlay.generate(eng, frame)
}

// =============================================================================
// overlay controller

// OverlayVertex matches the overlay shader's input layout.
type OverlayVertex struct {
	X, Y float32
	U, V float32
	RGBA uint32
}

// OverlayDrawCall draws a range of the ingested index data with one
// atlas texture.
type OverlayDrawCall struct {
	IndexStart uint32
	IndexCount uint32
	Atlas      TexHandle
}

// OverlayBuffer is one frame of built GUI geometry.
type OverlayBuffer struct {
	Vertices  []OverlayVertex
	Indices   []uint32
	DrawCalls []OverlayDrawCall
}

// OverlayBuilder is the immediate-mode GUI collaborator. Build runs
// once per produced frame while the console is visible. The interface
// has no atlas callback: baked glyph atlases are queued for upload
// through Console.RegisterAtlas.
type OverlayBuilder interface {
	Build(eng *Engine) OverlayBuffer
}

// overlayController copies built geometry into two host-visible ring
// buffers and records indexed draws on a dedicated command stream.
type overlayController struct {
	builder  OverlayBuilder
	shader   render.ShaderHandle
	vertices [render.FramesInFlight]render.BufferHandle
	indices  [render.FramesInFlight]render.BufferHandle
	groups   map[TexHandle]render.BindGroupHandle // atlas bindings.
	slot     uint32
}

const overlayBufferBytes = 512 * 1024

// SetBuilder installs the GUI builder and its draw pipeline.
func (c *Console) SetBuilder(b OverlayBuilder, shader render.ShaderHandle) {
	c.overlay.builder = b
	c.overlay.shader = shader
}

// SetAtlasBinding associates an uploaded atlas with the bind group
// the overlay shader samples it through.
func (c *Console) SetAtlasBinding(atlas TexHandle, group render.BindGroupHandle) {
	if c.overlay.groups == nil {
		c.overlay.groups = map[TexHandle]render.BindGroupHandle{}
	}
	c.overlay.groups[atlas] = group
}

// RegisterAtlas queues a builder-baked atlas for GPU upload.
func (c *Console) RegisterAtlas(eng *Engine, name string, mips []render.TextureUpload) TexHandle {
	h, created := eng.resources.CreateTexture(hashName(name))
	if created {
		t := eng.resources.GetTexture(h)
		t.Name = name
		t.Hash = hashName(name)
		t.Mips = mips
		eng.resources.QueueTextureUpload(h)
	}
	return h
}

// generate ingests one draw buffer and records its draws.
func (oc *overlayController) generate(eng *Engine, frame *render.Frame) {
	if oc.builder == nil {
		return
	}
	buf := oc.builder.Build(eng)
	if len(buf.DrawCalls) == 0 {
		return
	}
	oc.slot = (oc.slot + 1) % render.FramesInFlight
	if !oc.vertices[oc.slot].Alive() {
		oc.vertices[oc.slot] = eng.backend.CreateBuffer(render.BufferDesc{
			Name: "overlay vtx", Size: overlayBufferBytes,
			Type: render.BufferVertex, Storage: render.StorageHostVisible,
		})
		oc.indices[oc.slot] = eng.backend.CreateBuffer(render.BufferDesc{
			Name: "overlay idx", Size: overlayBufferBytes,
			Type: render.BufferIndex, Storage: render.StorageHostVisible,
		})
	}
	if !oc.upload(eng, buf) {
		return
	}

	s := frame.GetStream()
	attOffset, _ := render.PlaceSpan(frame, []render.ColorAttachment{{
		Target: eng.target,
		Load:   render.LoadOpLoad,
		Store:  render.StoreOpStore,
	}})
	s.Add(&render.BeginRenderPass{
		ColorAttachments:     attOffset,
		Depth:                render.NoneOffset,
		ColorAttachmentCount: 1,
	})
	w, h := eng.dev.Size()
	s.Add(&render.SetViewport{Width: uint16(w), Height: uint16(h), MaxDepth: 1})
	s.Add(&render.SetScissors{Width: uint16(w), Height: uint16(h)})
	if oc.shader.Alive() {
		s.Add(&render.BindPipeline{Shader: oc.shader})
	}
	s.Add(&render.BindVertexBuffers{
		Buffer:     oc.vertices[oc.slot],
		VertexSize: uint16(vertexSize()),
	})
	s.Add(&render.BindIndexBuffers{Buffer: oc.indices[oc.slot], BitDepth: 32})
	for _, call := range buf.DrawCalls {
		if group, ok := oc.groups[call.Atlas]; ok {
			s.Add(&render.BindGroupCommand{Group: group})
		}
		s.Add(&render.DrawIndexedInstanced{
			IndexCountPerInstance: call.IndexCount,
			InstanceCount:         1,
			StartIndexLocation:    call.IndexStart,
		})
	}
	s.Add(&render.EndRenderPass{})
	frame.Submit(render.SubmitDesc{Streams: []*render.Stream{s}})
}

// upload copies built geometry into the frame's ring buffer slot.
func (oc *overlayController) upload(eng *Engine, buf OverlayBuffer) bool {
	vsize := uint32(len(buf.Vertices)) * vertexSize()
	isize := uint32(len(buf.Indices)) * 4
	if vsize > overlayBufferBytes || isize > overlayBufferBytes {
		logError("sfg: overlay geometry exceeds ring buffer",
			"vertices", len(buf.Vertices), "indices", len(buf.Indices))
		return false
	}
	vmap, err := eng.backend.Map(oc.vertices[oc.slot])
	if err != nil {
		return false
	}
	at := 0
	for _, v := range buf.Vertices {
		at += putF32(vmap[at:], v.X)
		at += putF32(vmap[at:], v.Y)
		at += putF32(vmap[at:], v.U)
		at += putF32(vmap[at:], v.V)
		at += putU32(vmap[at:], v.RGBA)
	}
	eng.backend.Unmap(oc.vertices[oc.slot])

	imap, err := eng.backend.Map(oc.indices[oc.slot])
	if err != nil {
		return false
	}
	at = 0
	for _, i := range buf.Indices {
		at += putU32(imap[at:], i)
	}
	eng.backend.Unmap(oc.indices[oc.slot])
	return true
}

func vertexSize() uint32 { return 20 } // 4 floats + packed color.

func putF32(b []byte, v float32) int { return putU32(b, math.Float32bits(v)) }

func putU32(b []byte, v uint32) int {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	return 4
}

// itoa avoids pulling strconv into the hot log path for one use.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits [20]byte
	at := len(digits)
	for n > 0 {
		at--
		digits[at] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		at--
		digits[at] = '-'
	}
	return string(digits[at:])
}
