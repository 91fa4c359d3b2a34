// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package device

// The microsoft (windows) native layer. The window class, message
// pump, and input translation speak Win32 directly through x/sys;
// there is no C in this layer.

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	pRegisterClassEx = user32.NewProc("RegisterClassExW")
	pCreateWindowEx  = user32.NewProc("CreateWindowExW")
	pDefWindowProc   = user32.NewProc("DefWindowProcW")
	pDestroyWindow   = user32.NewProc("DestroyWindow")
	pShowWindow      = user32.NewProc("ShowWindow")
	pPeekMessage     = user32.NewProc("PeekMessageW")
	pTranslateMsg    = user32.NewProc("TranslateMessage")
	pDispatchMsg     = user32.NewProc("DispatchMessageW")
	pAdjustRect      = user32.NewProc("AdjustWindowRect")
	pLoadCursor      = user32.NewProc("LoadCursorW")
	pMessageBox      = user32.NewProc("MessageBoxW")
	pGetModuleHandle = kernel32.NewProc("GetModuleHandleW")
)

// ErrorBox shows a native message box for fatal startup failures.
func ErrorBox(title, text string) {
	t, err1 := windows.UTF16PtrFromString(title)
	m, err2 := windows.UTF16PtrFromString(text)
	if err1 != nil || err2 != nil {
		return
	}
	const mbIconError = 0x10
	pMessageBox.Call(0,
		uintptr(unsafe.Pointer(m)), uintptr(unsafe.Pointer(t)), mbIconError)
}

// win32 constants limited to what the pump needs.
const (
	wsOverlappedWindow = 0x00CF0000
	wsPopup            = 0x80000000
	wsVisible          = 0x10000000

	swShow = 5

	pmRemove = 0x0001

	wmDestroy     = 0x0002
	wmSize        = 0x0005
	wmSetFocus    = 0x0007
	wmKillFocus   = 0x0008
	wmClose       = 0x0010
	wmKeyDown     = 0x0100
	wmKeyUp       = 0x0101
	wmSysKeyDown  = 0x0104
	wmSysKeyUp    = 0x0105
	wmMouseMove   = 0x0200
	wmLButtonDown = 0x0201
	wmLButtonUp   = 0x0202
	wmRButtonDown = 0x0204
	wmRButtonUp   = 0x0205
	wmMButtonDown = 0x0207
	wmMButtonUp   = 0x0208
	wmMouseWheel  = 0x020A

	idcArrow = 32512
)

type wndClassEx struct {
	size       uint32
	style      uint32
	wndProc    uintptr
	clsExtra   int32
	wndExtra   int32
	instance   windows.Handle
	icon       windows.Handle
	cursor     windows.Handle
	background windows.Handle
	menuName   *uint16
	className  *uint16
	iconSm     windows.Handle
}

type msg struct {
	hwnd    windows.HWND
	message uint32
	wparam  uintptr
	lparam  uintptr
	time    uint32
	pt      struct{ x, y int32 }
}

type rect struct{ left, top, right, bottom int32 }

// winDevice is the windows implementation of the native interface.
type winDevice struct {
	dev       *Device
	hinstance windows.Handle
	hwnd      windows.HWND
	classAtom uint16
	lastX     int32 // previous mouse position for delta events.
	lastY     int32
	hasMouse  bool
}

// activeWin routes WndProc callbacks back to the device. One window
// per process, like the original host.
var activeWin *winDevice

// nativeLayer gets a reference to the native operating system. Each
// native layer implements this factory method. Compiling leaves only
// the one that matches the current platform.
func nativeLayer(d *Device) native { return &winDevice{dev: d} }

func (w *winDevice) open() error {
	hinst, _, _ := pGetModuleHandle.Call(0)
	w.hinstance = windows.Handle(hinst)

	className, err := windows.UTF16PtrFromString(w.dev.title + "Class")
	if err != nil {
		return fmt.Errorf("device: window class name: %w", err)
	}
	cursor, _, _ := pLoadCursor.Call(0, idcArrow)
	wc := wndClassEx{
		size:      uint32(unsafe.Sizeof(wndClassEx{})),
		style:     0x0020 | 0x0002 | 0x0001, // CS_OWNDC|CS_HREDRAW|CS_VREDRAW
		wndProc:   windows.NewCallback(wndProc),
		instance:  w.hinstance,
		cursor:    windows.Handle(cursor),
		className: className,
	}
	atom, _, lastErr := pRegisterClassEx.Call(uintptr(unsafe.Pointer(&wc)))
	if atom == 0 {
		return fmt.Errorf("device: RegisterClassEx: %w", lastErr)
	}
	w.classAtom = uint16(atom)

	style := uintptr(wsOverlappedWindow)
	if !w.dev.windowed {
		style = wsPopup
	}
	r := rect{
		left:   w.dev.x,
		top:    w.dev.y,
		right:  w.dev.x + int32(w.dev.w),
		bottom: w.dev.y + int32(w.dev.h),
	}
	pAdjustRect.Call(uintptr(unsafe.Pointer(&r)), style, 0)

	title, err := windows.UTF16PtrFromString(w.dev.title)
	if err != nil {
		return fmt.Errorf("device: window title: %w", err)
	}
	activeWin = w
	hwnd, _, lastErr := pCreateWindowEx.Call(
		0,
		uintptr(unsafe.Pointer(className)),
		uintptr(unsafe.Pointer(title)),
		style|wsVisible,
		uintptr(r.left), uintptr(r.top),
		uintptr(r.right-r.left), uintptr(r.bottom-r.top),
		0, 0, uintptr(w.hinstance), 0)
	if hwnd == 0 {
		return fmt.Errorf("device: CreateWindowEx: %w", lastErr)
	}
	w.hwnd = windows.HWND(hwnd)
	pShowWindow.Call(hwnd, swShow)
	return nil
}

// pump drains pending window messages. Each message lands in wndProc
// which translates it into a queued engine event.
func (w *winDevice) pump() {
	var m msg
	for {
		ret, _, _ := pPeekMessage.Call(
			uintptr(unsafe.Pointer(&m)), uintptr(w.hwnd), 0, 0, pmRemove)
		if ret == 0 {
			return
		}
		pTranslateMsg.Call(uintptr(unsafe.Pointer(&m)))
		pDispatchMsg.Call(uintptr(unsafe.Pointer(&m)))
	}
}

func (w *winDevice) dispose() {
	if w.hwnd != 0 {
		pDestroyWindow.Call(uintptr(w.hwnd))
		w.hwnd = 0
	}
	activeWin = nil
}

// surface exposes the handles the Vulkan backend needs for
// vkCreateWin32SurfaceKHR.
func (w *winDevice) surface() (a, b uintptr) {
	return uintptr(w.hinstance), uintptr(w.hwnd)
}

// wndProc is the window callback. It runs on the main thread inside
// DispatchMessage and only translates and enqueues; no engine state
// is touched from here.
func wndProc(hwnd windows.HWND, message uint32, wparam, lparam uintptr) uintptr {
	w := activeWin
	if w == nil {
		ret, _, _ := pDefWindowProc.Call(uintptr(hwnd), uintptr(message), wparam, lparam)
		return ret
	}
	switch message {
	case wmClose, wmDestroy:
		w.dev.push(Event{Kind: KindClose})
		return 0
	case wmSize:
		w.dev.push(Event{
			Kind:   KindResize,
			Width:  uint32(lparam & 0xFFFF),
			Height: uint32((lparam >> 16) & 0xFFFF),
		})
		return 0
	case wmSetFocus:
		w.dev.push(Event{Kind: KindFocus, Gained: true})
		return 0
	case wmKillFocus:
		w.dev.push(Event{Kind: KindFocus, Gained: false})
		return 0
	case wmKeyDown, wmSysKeyDown:
		action := Pressed
		if lparam&(1<<30) != 0 {
			action = Repeated // bit 30: key was already down.
		}
		w.dev.push(Event{
			Kind:     KindKey,
			Action:   action,
			Code:     vkToCode[uint32(wparam)],
			ScanCode: uint32(lparam>>16) & 0xFF,
		})
		return 0
	case wmKeyUp, wmSysKeyUp:
		w.dev.push(Event{
			Kind:     KindKey,
			Action:   Released,
			Code:     vkToCode[uint32(wparam)],
			ScanCode: uint32(lparam>>16) & 0xFF,
		})
		return 0
	case wmLButtonDown, wmRButtonDown, wmMButtonDown:
		w.dev.push(Event{
			Kind:   KindMouseButton,
			Action: Pressed,
			Code:   mouseCode(message),
			X:      int32(int16(lparam & 0xFFFF)),
			Y:      int32(int16((lparam >> 16) & 0xFFFF)),
		})
		return 0
	case wmLButtonUp, wmRButtonUp, wmMButtonUp:
		w.dev.push(Event{
			Kind:   KindMouseButton,
			Action: Released,
			Code:   mouseCode(message),
			X:      int32(int16(lparam & 0xFFFF)),
			Y:      int32(int16((lparam >> 16) & 0xFFFF)),
		})
		return 0
	case wmMouseMove:
		x := int32(int16(lparam & 0xFFFF))
		y := int32(int16((lparam >> 16) & 0xFFFF))
		if w.hasMouse {
			w.dev.push(Event{
				Kind:   KindMouseDelta,
				DeltaX: float32(x - w.lastX),
				DeltaY: float32(y - w.lastY),
			})
		}
		w.lastX, w.lastY, w.hasMouse = x, y, true
		return 0
	case wmMouseWheel:
		delta := float32(int16(wparam>>16)) / 120 // WHEEL_DELTA
		w.dev.push(Event{Kind: KindMouseWheel, Wheel: delta})
		return 0
	}
	ret, _, _ := pDefWindowProc.Call(uintptr(hwnd), uintptr(message), wparam, lparam)
	return ret
}

// mouseCode maps button messages to input codes.
func mouseCode(message uint32) InputCode {
	switch message {
	case wmLButtonDown, wmLButtonUp:
		return MouseLeft
	case wmRButtonDown, wmRButtonUp:
		return MouseRight
	}
	return MouseMiddle
}

// vkToCode translates windows virtual key codes:
// http://msdn.microsoft.com/en-ca/library/windows/desktop/dd375731
var vkToCode = map[uint32]InputCode{
	0x30: Key0, 0x31: Key1, 0x32: Key2, 0x33: Key3, 0x34: Key4,
	0x35: Key5, 0x36: Key6, 0x37: Key7, 0x38: Key8, 0x39: Key9,

	0x41: KeyA, 0x42: KeyB, 0x43: KeyC, 0x44: KeyD, 0x45: KeyE,
	0x46: KeyF, 0x47: KeyG, 0x48: KeyH, 0x49: KeyI, 0x4A: KeyJ,
	0x4B: KeyK, 0x4C: KeyL, 0x4D: KeyM, 0x4E: KeyN, 0x4F: KeyO,
	0x50: KeyP, 0x51: KeyQ, 0x52: KeyR, 0x53: KeyS, 0x54: KeyT,
	0x55: KeyU, 0x56: KeyV, 0x57: KeyW, 0x58: KeyX, 0x59: KeyY,
	0x5A: KeyZ,

	0x70: KeyF1, 0x71: KeyF2, 0x72: KeyF3, 0x73: KeyF4,
	0x74: KeyF5, 0x75: KeyF6, 0x76: KeyF7, 0x77: KeyF8,
	0x78: KeyF9, 0x79: KeyF10, 0x7A: KeyF11, 0x7B: KeyF12,

	0x20: KeySpace,
	0x0D: KeyReturn,
	0x09: KeyTab,
	0x1B: KeyEscape,
	0x08: KeyBackspace,
	0x2E: KeyDelete,
	0xC0: KeyGrave, // VK_OEM_3

	0x25: KeyLeft,
	0x27: KeyRight,
	0x26: KeyUp,
	0x28: KeyDown,
	0x24: KeyHome,
	0x23: KeyEnd,
	0x21: KeyPageUp,
	0x22: KeyPageDown,

	0xA0: KeyLeftShift,
	0xA1: KeyRightShift,
	0xA2: KeyLeftControl,
	0xA3: KeyRightControl,
	0xA4: KeyLeftAlt,
	0xA5: KeyRightAlt,
}
