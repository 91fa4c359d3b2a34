// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package sfg

// plugin.go declares the hot-loadable plugin surface. Plugins are
// native libraries exporting:
//
//	CreatePlugin(path *char, eng *Engine, platformHandle uintptr) uintptr
//	DestroyPlugin(plugin uintptr)
//
// The returned plugin pointer is opaque to the engine. PluginHooks
// below declares load and unload notifications; LoadPlugin and
// UnloadPlugin do not call them.

// Plugin is one loaded plugin library.
type Plugin struct {
	Path   string
	handle uintptr // plugin object returned by CreatePlugin.
	lib    pluginLib
}

// PluginHooks is implemented by in-process plugin shims that want
// lifecycle notification alongside the native exports.
type PluginHooks interface {
	OnLoaded(eng *Engine)
	OnUnloaded(eng *Engine)
}

// LoadPlugin loads the library at path and calls its CreatePlugin
// export with the engine and the native window handle.
func (eng *Engine) LoadPlugin(path string) (*Plugin, error) {
	lib, handle, err := loadPluginLib(eng, path)
	if err != nil {
		return nil, err
	}
	return &Plugin{Path: path, handle: handle, lib: lib}, nil
}

// UnloadPlugin calls DestroyPlugin and releases the library.
func (eng *Engine) UnloadPlugin(p *Plugin) {
	if p == nil {
		return
	}
	unloadPluginLib(p)
}
