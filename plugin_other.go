// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

//go:build !windows

package sfg

// Plugin DLL hot loading is a windows editor workflow; other
// platforms link plugins in-process.

import "fmt"

type pluginLib struct{}

func loadPluginLib(eng *Engine, path string) (pluginLib, uintptr, error) {
	return pluginLib{}, 0, fmt.Errorf("sfg: native plugins unsupported on this platform")
}

func unloadPluginLib(p *Plugin) {}
