// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package sfg

// delegate.go declares the engine-to-application callbacks.

import (
	"github.com/gazed/sfg/device"
	"github.com/gazed/sfg/render"
)

// Delegate is implemented by the embedding application and installed
// with New. OnInitialize and OnShutdown run on the thread that calls
// Engine.Run; every other hook runs on the update goroutine.
// OnGenerateFrame's frame is consumed by the render goroutine
// afterwards, so the application must not keep references into it.
type Delegate interface {
	// OnInitialize runs once after the engine subsystems are up and
	// before the first tick.
	OnInitialize(eng *Engine) error

	// OnShutdown runs once after the worker loops stop and before
	// the backend tears down.
	OnShutdown(eng *Engine)

	// OnTick advances the simulation at the fixed update rate.
	OnTick(eng *Engine, deltaSeconds float64)

	// OnGenerateFrame records one render frame. Interpolation is the
	// fraction of the fixed interval elapsed since the last tick,
	// used to smooth between previous and current transforms.
	OnGenerateFrame(eng *Engine, frame *render.Frame, interpolation float64)

	// Input hooks, delivered before the tick that observes them.
	OnKey(eng *Engine, code device.InputCode, action device.Action, scanCode uint32)
	OnMouse(eng *Engine, code device.InputCode, action device.Action, x, y int32)
	OnMouseDelta(eng *Engine, dx, dy float32)
	OnMouseWheel(eng *Engine, delta float32)
	OnWindowEvent(eng *Engine, ev device.Event)
}

// Simulator is an optional extension: OnSimulate runs every produced
// frame with the interpolated time, between fixed ticks.
type Simulator interface {
	OnSimulate(eng *Engine, deltaSeconds float64)
}

// DelegateBase provides no-op hooks so applications only implement
// what they need.
type DelegateBase struct{}

func (DelegateBase) OnInitialize(eng *Engine) error { return nil }
func (DelegateBase) OnShutdown(eng *Engine)         {}
func (DelegateBase) OnTick(eng *Engine, deltaSeconds float64) {}
func (DelegateBase) OnGenerateFrame(eng *Engine, frame *render.Frame, interpolation float64) {}
func (DelegateBase) OnKey(eng *Engine, code device.InputCode, action device.Action, scanCode uint32) {
}
func (DelegateBase) OnMouse(eng *Engine, code device.InputCode, action device.Action, x, y int32) {}
func (DelegateBase) OnMouseDelta(eng *Engine, dx, dy float32)                                     {}
func (DelegateBase) OnMouseWheel(eng *Engine, delta float32)                                      {}
func (DelegateBase) OnWindowEvent(eng *Engine, ev device.Event)                                   {}
