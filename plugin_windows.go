// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package sfg

// plugin_windows.go loads plugin DLLs through the Win32 loader.

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// pluginLib holds the DLL and its two required exports.
type pluginLib struct {
	dll     *windows.DLL
	destroy *windows.Proc
}

func loadPluginLib(eng *Engine, path string) (pluginLib, uintptr, error) {
	dll, err := windows.LoadDLL(path)
	if err != nil {
		return pluginLib{}, 0, fmt.Errorf("sfg: load plugin %s: %w", path, err)
	}
	create, err := dll.FindProc("CreatePlugin")
	if err != nil {
		dll.Release()
		return pluginLib{}, 0, fmt.Errorf("sfg: plugin %s missing CreatePlugin: %w", path, err)
	}
	destroy, err := dll.FindProc("DestroyPlugin")
	if err != nil {
		dll.Release()
		return pluginLib{}, 0, fmt.Errorf("sfg: plugin %s missing DestroyPlugin: %w", path, err)
	}

	cpath := append([]byte(path), 0)
	_, hwnd := eng.dev.SurfaceInfo()
	handle, _, _ := create.Call(
		uintptr(unsafe.Pointer(&cpath[0])),
		uintptr(unsafe.Pointer(eng)),
		hwnd)
	if handle == 0 {
		dll.Release()
		return pluginLib{}, 0, fmt.Errorf("sfg: plugin %s CreatePlugin returned nil", path)
	}
	return pluginLib{dll: dll, destroy: destroy}, handle, nil
}

func unloadPluginLib(p *Plugin) {
	if p.lib.destroy != nil {
		p.lib.destroy.Call(p.handle)
	}
	if p.lib.dll != nil {
		p.lib.dll.Release()
	}
	p.handle = 0
}
