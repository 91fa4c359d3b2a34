// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package sfg

// app.go owns the three engine threads and frame pacing:
//   - Main thread pumps OS messages at roughly 1kHz.
//   - Update goroutine runs the fixed timestep simulation and records
//     render frames.
//   - Render goroutine translates recorded frames into backend
//     submissions and presents.
// The loop shape follows:
//     http://gafferongames.com/game-physics/fix-your-timestep

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gazed/sfg/device"
	"github.com/gazed/sfg/render"
)

func init() {
	// the OS window and its message pump must stay on the startup
	// thread. See: https://github.com/golang/go/wiki/LockOSThread
	runtime.LockOSThread()
}

// Engine is where everything starts. It owns the window, the render
// backend, the world, and the resource manager, and drives the
// application through its Delegate.
type Engine struct {
	settings Settings
	app      Delegate
	dev      *device.Device
	backend  render.Backend

	world     *World
	resources *Resources
	console   *Console

	swapchain render.SwapchainHandle
	target    render.RenderTargetHandle

	// frame handoff: the update goroutine records into one of
	// FramesInFlight frames and publishes its index; the render
	// goroutine consumes and resets it.
	frames     [render.FramesInFlight]*render.Frame
	frameIndex atomic.Uint32 // published with release semantics.
	frameAvail chan uint32   // producer -> renderer.
	frameFree  chan uint32   // renderer -> producer after reset.

	shouldClose atomic.Bool
	backendUp   chan error // render goroutine reports initialization.
	workers     sync.WaitGroup
}

// New creates the engine and its window. Fails if app is nil or the
// platform window cannot be created. The expected usage is:
//
//	eng, err := sfg.New(app, sfg.Title("game"))
//	if err != nil { ... }
//	err = eng.Run() // blocks until close.
func New(app Delegate, options ...Option) (*Engine, error) {
	if app == nil {
		return nil, fmt.Errorf("sfg: no delegate. Shutting down")
	}
	eng := &Engine{
		settings:   applyOptions(options),
		app:        app,
		backend:    render.New(),
		frameAvail: make(chan uint32, render.FramesInFlight),
		frameFree:  make(chan uint32, render.FramesInFlight),
		backendUp:  make(chan error, 1),
	}
	s := &eng.settings
	eng.dev = device.New(s.Title, s.X, s.Y, s.W, s.H, s.Windowed)
	if err := eng.dev.Open(); err != nil {
		return nil, fmt.Errorf("sfg: open window: %w", err)
	}
	for i := range eng.frames {
		eng.frames[i] = render.NewFrame(s.Frame)
		eng.frameFree <- uint32(i)
	}
	eng.world = NewWorld(s)
	eng.resources = newResources(s)
	eng.resources.chunk = eng.world.chunk // models share the world arena.
	eng.world.res = eng.resources
	eng.console = newConsole(s.ConsoleLines)
	slog.SetDefault(slog.New(newLogFan(eng.console)))
	return eng, nil
}

// World returns the entity store.
func (eng *Engine) World() *World { return eng.world }

// Resources returns the resource manager.
func (eng *Engine) Resources() *Resources { return eng.resources }

// Console returns the debug console.
func (eng *Engine) Console() *Console { return eng.console }

// Backend returns the GPU backend for resource creation.
func (eng *Engine) Backend() render.Backend { return eng.backend }

// Device returns the OS window.
func (eng *Engine) Device() *device.Device { return eng.dev }

// Swapchain returns the main window's presentation target.
func (eng *Engine) Swapchain() render.RenderTargetHandle { return eng.target }

// RequestClose asks both worker loops to stop. Safe from any thread.
func (eng *Engine) RequestClose() { eng.shouldClose.Store(true) }

// Run starts the worker goroutines and pumps the OS until close.
// It does not return until the engine shuts down.
func (eng *Engine) Run() error {
	eng.workers.Add(1)
	go eng.renderLoop()
	if err := <-eng.backendUp; err != nil {
		eng.shouldClose.Store(true)
		eng.workers.Wait()
		eng.dev.Dispose()
		device.ErrorBox(eng.settings.Title, err.Error())
		return fmt.Errorf("sfg: backend: %w", err)
	}

	// swapchain and main render target exist before the first tick.
	var err error
	w, h := eng.dev.Size()
	eng.swapchain, err = eng.backend.CreateSwapchain(render.SwapchainDesc{
		Name: eng.settings.Title, Width: w, Height: h, VSync: eng.settings.VSync,
	})
	if err != nil {
		eng.shouldClose.Store(true)
		eng.workers.Wait()
		eng.shutdown()
		return fmt.Errorf("sfg: swapchain: %w", err)
	}
	eng.target = eng.backend.CreateRenderTarget(render.RenderTargetDesc{
		Name: "window", Swapchain: eng.swapchain,
	})

	if err := eng.app.OnInitialize(eng); err != nil {
		eng.shouldClose.Store(true)
		eng.workers.Wait()
		eng.shutdown()
		return fmt.Errorf("sfg: delegate initialize: %w", err)
	}
	eng.workers.Add(1)
	go eng.updateLoop()

	// main thread: pump the OS at ~1kHz. An accumulator keeps the
	// average pump cadence without letting stalls spiral.
	const pumpInterval = time.Millisecond
	acc := time.Duration(0)
	prev := time.Now()
	for !eng.shouldClose.Load() {
		eng.dev.Pump()
		if !eng.dev.IsAlive() {
			eng.RequestClose()
			break
		}
		now := time.Now()
		acc += now.Sub(prev)
		prev = now
		if acc < pumpInterval {
			time.Sleep(pumpInterval - acc)
		} else {
			acc -= pumpInterval
			if acc > 8*pumpInterval {
				acc = 8 * pumpInterval // cap after an OS stall.
			}
		}
	}
	eng.workers.Wait()
	eng.app.OnShutdown(eng)
	eng.shutdown()
	return nil
}

// shutdown tears down in reverse initialization order.
func (eng *Engine) shutdown() {
	eng.resources.drainDestroys(eng.backend)
	if eng.target.Alive() {
		eng.backend.DestroyRenderTarget(eng.target)
	}
	if eng.swapchain.Alive() {
		eng.backend.DestroySwapchain(eng.swapchain)
	}
	eng.backend.Shutdown()
	eng.dev.Dispose()
}

// =============================================================================
// update goroutine

// updateLoop advances the simulation at the fixed rate and records
// interpolated render frames.
func (eng *Engine) updateLoop() {
	defer eng.workers.Done()
	interval := time.Second / time.Duration(eng.settings.FixedUpdateRate)
	dt := interval.Seconds()
	maxAcc := time.Duration(eng.settings.MaxAccumulatedUpdates) * interval

	acc := time.Duration(0)
	prev := time.Now()
	for !eng.shouldClose.Load() {
		now := time.Now()
		acc += now.Sub(prev)
		prev = now
		if acc > maxAcc {
			acc = maxAcc // bound catch-up after stalls.
		}

		ticked := false
		for acc >= interval {
			acc -= interval
			eng.drainEvents()
			eng.world.storePrevTransforms()
			eng.app.OnTick(eng, dt)
			ticked = true
		}
		if ticked {
			interp := acc.Seconds() / interval.Seconds()
			if sim, ok := eng.app.(Simulator); ok {
				sim.OnSimulate(eng, acc.Seconds())
			}
			eng.produceFrame(interp)
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// drainEvents feeds queued window events to the delegate.
func (eng *Engine) drainEvents() {
	for ev, ok := eng.dev.Poll(); ok; ev, ok = eng.dev.Poll() {
		switch ev.Kind {
		case device.KindKey:
			if ev.Code == device.KeyGrave && ev.Action == device.Pressed {
				eng.console.Toggle()
			}
			if ev.Code == device.KeyReturn && ev.Action == device.Pressed && eng.console.IsVisible() {
				eng.console.Submit(eng)
			}
			eng.console.OnKey(ev)
			eng.app.OnKey(eng, ev.Code, ev.Action, ev.ScanCode)
		case device.KindMouseButton:
			eng.app.OnMouse(eng, ev.Code, ev.Action, ev.X, ev.Y)
		case device.KindMouseDelta:
			eng.app.OnMouseDelta(eng, ev.DeltaX, ev.DeltaY)
		case device.KindMouseWheel:
			eng.app.OnMouseWheel(eng, ev.Wheel)
		case device.KindResize:
			if ev.Width > 0 && ev.Height > 0 && eng.swapchain.Alive() {
				if err := eng.backend.RecreateSwapchain(eng.swapchain, ev.Width, ev.Height); err != nil {
					slog.Error("sfg: swapchain recreate", "err", err)
				}
			}
			eng.app.OnWindowEvent(eng, ev)
		case device.KindClose:
			eng.RequestClose()
			eng.app.OnWindowEvent(eng, ev)
		default:
			eng.app.OnWindowEvent(eng, ev)
		}
	}
}

// produceFrame records one render frame and hands it to the render
// goroutine. Blocks while both frames are in flight, which is the
// backpressure that keeps the CPU at most FramesInFlight ahead.
func (eng *Engine) produceFrame(interp float64) {
	var i uint32
	select {
	case i = <-eng.frameFree:
	default:
		// both frames in flight: wait for the renderer, watching
		// for close so shutdown cannot deadlock.
		select {
		case i = <-eng.frameFree:
		case <-time.After(time.Second):
			if eng.shouldClose.Load() {
				return
			}
			i = <-eng.frameFree
		}
	}
	frame := eng.frames[i]
	eng.app.OnGenerateFrame(eng, frame, interp)
	eng.console.generate(eng, frame)
	eng.frameIndex.Store(i) // release: pairs with the renderer's load.
	eng.frameAvail <- i     // the frame-available semaphore.
}

// =============================================================================
// render goroutine

// renderLoop initializes the backend, then consumes published frames
// until close. Runtime submit errors drop the frame and continue; a
// lost device is fatal.
func (eng *Engine) renderLoop() {
	defer eng.workers.Done()
	if err := eng.backend.Initialize(eng.dev); err != nil {
		eng.backendUp <- err
		return
	}
	eng.backendUp <- nil

	for !eng.shouldClose.Load() {
		var i uint32
		select {
		case i = <-eng.frameAvail:
		case <-time.After(100 * time.Millisecond):
			continue // re-check shouldClose.
		}
		_ = eng.frameIndex.Load() // acquire: pairs with the producer's store.
		eng.resources.uploadPending(eng.backend)
		if err := eng.backend.Render(eng.frames[i]); err != nil {
			slog.Error("sfg: device lost", "err", err)
			eng.RequestClose()
		}
		eng.resources.drainDestroys(eng.backend)
		eng.frames[i].Reset()
		eng.frameFree <- i
	}

	// consume pending frames to completion so the GPU is not left
	// mid-submission at shutdown.
	for {
		select {
		case i := <-eng.frameAvail:
			if err := eng.backend.Render(eng.frames[i]); err == nil {
				eng.frames[i].Reset()
			}
			eng.frameFree <- i
		default:
			return
		}
	}
}
