// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

//go:build darwin && !ios

package device

// The apple (macos) native layer. Cocoa is driven through the
// Objective-C runtime; the window hosts a CAMetalLayer that the Metal
// render backend draws into.

import (
	"fmt"
	"log/slog"

	"github.com/gazed/sfg/internal/objc"
)

// NSEvent type constants limited to what the pump translates.
const (
	nsEventKeyDown          = 10
	nsEventKeyUp            = 11
	nsEventLeftMouseDown    = 1
	nsEventLeftMouseUp      = 2
	nsEventRightMouseDown   = 3
	nsEventRightMouseUp     = 4
	nsEventOtherMouseDown   = 25
	nsEventOtherMouseUp     = 26
	nsEventMouseMoved       = 5
	nsEventLeftMouseDragged = 6
	nsEventScrollWheel      = 22

	nsWindowStyleTitled      = 1 << 0
	nsWindowStyleClosable    = 1 << 1
	nsWindowStyleResizable   = 1 << 3
	nsWindowStyleBorderless  = 0
	nsBackingStoreBuffered   = 2
	nsEventMaskAny           = ^uint64(0)
	nsAppActivationRegular   = 0
	distantPastNone          = 0
)

// macDevice is the macos implementation of the native interface.
type macDevice struct {
	dev        *Device
	app        objc.ID // NSApplication
	window     objc.ID // NSWindow
	view       objc.ID // NSView hosting the metal layer.
	metalLayer objc.ID // CAMetalLayer
}

// nativeLayer gets a reference to the native operating system. Each
// native layer implements this factory method. Compiling leaves only
// the one that matches the current platform.
func nativeLayer(d *Device) native { return &macDevice{dev: d} }

func (m *macDevice) open() error {
	if err := objc.Init(); err != nil {
		return err
	}
	if _, err := objc.LoadFramework("/System/Library/Frameworks/AppKit.framework/AppKit"); err != nil {
		return err
	}
	if _, err := objc.LoadFramework("/System/Library/Frameworks/QuartzCore.framework/QuartzCore"); err != nil {
		return err
	}

	m.app = objc.SendClass(objc.GetClass("NSApplication"), objc.Sel("sharedApplication"))
	if m.app == 0 {
		return fmt.Errorf("device: NSApplication unavailable")
	}
	objc.Send(m.app, objc.Sel("setActivationPolicy:"), objc.I64(nsAppActivationRegular))

	style := uint64(nsWindowStyleTitled | nsWindowStyleClosable | nsWindowStyleResizable)
	if !m.dev.windowed {
		style = nsWindowStyleBorderless
	}
	frame := objc.CGRect{
		X: float64(m.dev.x), Y: float64(m.dev.y),
		W: float64(m.dev.w), H: float64(m.dev.h),
	}
	win := objc.SendClass(objc.GetClass("NSWindow"), objc.Sel("alloc"))
	m.window = objc.Send(win,
		objc.Sel("initWithContentRect:styleMask:backing:defer:"),
		objc.Struct(frame, objc.CGRectType),
		objc.U64(style),
		objc.U64(nsBackingStoreBuffered),
		objc.B(false))
	if m.window == 0 {
		return fmt.Errorf("device: NSWindow init failed")
	}
	title := objc.NSString(m.dev.title)
	objc.Send(m.window, objc.Sel("setTitle:"), objc.P(uintptr(title)))
	objc.Release(title)

	// back the content view with a CAMetalLayer for the renderer.
	m.view = objc.Send(m.window, objc.Sel("contentView"))
	m.metalLayer = objc.SendClass(objc.GetClass("CAMetalLayer"), objc.Sel("layer"))
	objc.Send(m.view, objc.Sel("setWantsLayer:"), objc.B(true))
	objc.Send(m.view, objc.Sel("setLayer:"), objc.P(uintptr(m.metalLayer)))

	objc.Send(m.window, objc.Sel("makeKeyAndOrderFront:"), objc.P(0))
	objc.Send(m.app, objc.Sel("activateIgnoringOtherApps:"), objc.B(true))
	objc.Send(m.app, objc.Sel("finishLaunching"))
	return nil
}

// pump drains pending Cocoa events, translating them into queued
// engine events.
func (m *macDevice) pump() {
	pool := objc.NewAutoreleasePool()
	defer objc.Drain(pool)
	for {
		ev := objc.Send(m.app,
			objc.Sel("nextEventMatchingMask:untilDate:inMode:dequeue:"),
			objc.U64(nsEventMaskAny),
			objc.P(distantPastNone), // do not wait.
			objc.P(uintptr(defaultRunLoopMode())),
			objc.B(true))
		if ev == 0 {
			return
		}
		m.translate(ev)
		objc.Send(m.app, objc.Sel("sendEvent:"), objc.P(uintptr(ev)))
	}
}

// runLoopMode caches the NSDefaultRunLoopMode string.
var runLoopMode objc.ID

func defaultRunLoopMode() objc.ID {
	if runLoopMode == 0 {
		runLoopMode = objc.NSString("kCFRunLoopDefaultMode")
	}
	return runLoopMode
}

// translate maps one NSEvent to an engine event.
func (m *macDevice) translate(ev objc.ID) {
	kind := objc.SendU64(ev, objc.Sel("type"))
	switch kind {
	case nsEventKeyDown:
		action := Pressed
		if objc.SendB(ev, objc.Sel("isARepeat")) {
			action = Repeated
		}
		code := uint32(objc.SendU64(ev, objc.Sel("keyCode")))
		m.dev.push(Event{
			Kind: KindKey, Action: action,
			Code: macToCode[code], ScanCode: code,
		})
	case nsEventKeyUp:
		code := uint32(objc.SendU64(ev, objc.Sel("keyCode")))
		m.dev.push(Event{
			Kind: KindKey, Action: Released,
			Code: macToCode[code], ScanCode: code,
		})
	case nsEventLeftMouseDown:
		m.mouse(MouseLeft, Pressed)
	case nsEventLeftMouseUp:
		m.mouse(MouseLeft, Released)
	case nsEventRightMouseDown:
		m.mouse(MouseRight, Pressed)
	case nsEventRightMouseUp:
		m.mouse(MouseRight, Released)
	case nsEventOtherMouseDown:
		m.mouse(MouseMiddle, Pressed)
	case nsEventOtherMouseUp:
		m.mouse(MouseMiddle, Released)
	case nsEventMouseMoved, nsEventLeftMouseDragged:
		dx := float32(objc.SendF64(ev, objc.Sel("deltaX")))
		dy := float32(objc.SendF64(ev, objc.Sel("deltaY")))
		m.dev.push(Event{Kind: KindMouseDelta, DeltaX: dx, DeltaY: dy})
	case nsEventScrollWheel:
		dy := float32(objc.SendF64(ev, objc.Sel("scrollingDeltaY")))
		m.dev.push(Event{Kind: KindMouseWheel, Wheel: dy})
	}

	// window close is observed rather than delegated.
	if !objc.SendB(m.window, objc.Sel("isVisible")) {
		m.dev.push(Event{Kind: KindClose})
	}
}

func (m *macDevice) mouse(code InputCode, action Action) {
	m.dev.push(Event{Kind: KindMouseButton, Action: action, Code: code})
}

func (m *macDevice) dispose() {
	if m.window != 0 {
		objc.Send(m.window, objc.Sel("close"))
		m.window = 0
	}
}

// surface exposes the NSWindow and CAMetalLayer the Metal backend
// draws into.
func (m *macDevice) surface() (a, b uintptr) {
	return uintptr(m.window), uintptr(m.metalLayer)
}

// macToCode translates macos virtual key codes (HIToolbox kVK_*).
var macToCode = map[uint32]InputCode{
	0x1D: Key0, 0x12: Key1, 0x13: Key2, 0x14: Key3, 0x15: Key4,
	0x17: Key5, 0x16: Key6, 0x1A: Key7, 0x1C: Key8, 0x19: Key9,

	0x00: KeyA, 0x0B: KeyB, 0x08: KeyC, 0x02: KeyD, 0x0E: KeyE,
	0x03: KeyF, 0x05: KeyG, 0x04: KeyH, 0x22: KeyI, 0x26: KeyJ,
	0x28: KeyK, 0x25: KeyL, 0x2E: KeyM, 0x2D: KeyN, 0x1F: KeyO,
	0x23: KeyP, 0x0C: KeyQ, 0x0F: KeyR, 0x01: KeyS, 0x11: KeyT,
	0x20: KeyU, 0x09: KeyV, 0x0D: KeyW, 0x07: KeyX, 0x10: KeyY,
	0x06: KeyZ,

	0x7A: KeyF1, 0x78: KeyF2, 0x63: KeyF3, 0x76: KeyF4,
	0x60: KeyF5, 0x61: KeyF6, 0x62: KeyF7, 0x64: KeyF8,
	0x65: KeyF9, 0x6D: KeyF10, 0x67: KeyF11, 0x6F: KeyF12,

	0x31: KeySpace,
	0x24: KeyReturn,
	0x30: KeyTab,
	0x35: KeyEscape,
	0x33: KeyBackspace,
	0x75: KeyDelete,
	0x32: KeyGrave,

	0x7B: KeyLeft,
	0x7C: KeyRight,
	0x7E: KeyUp,
	0x7D: KeyDown,
	0x73: KeyHome,
	0x77: KeyEnd,
	0x74: KeyPageUp,
	0x79: KeyPageDown,

	0x38: KeyLeftShift,
	0x3C: KeyRightShift,
	0x3B: KeyLeftControl,
	0x3E: KeyRightControl,
	0x3A: KeyLeftAlt,
	0x3D: KeyRightAlt,
}

// ErrorBox logs fatal startup failures; message boxes are a windows
// convention.
func ErrorBox(title, text string) { slog.Error(text, "title", title) }
