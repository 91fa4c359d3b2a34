// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

//go:build !windows && !darwin

package device

// Stub native layer for unsupported platforms: the engine targets
// Windows (Vulkan) and macOS (Metal). The stub keeps the package and
// its tests buildable elsewhere.

import (
	"fmt"
	"runtime"
)

type stubDevice struct{}

func nativeLayer(d *Device) native { return &stubDevice{} }

func (s *stubDevice) open() error {
	return fmt.Errorf("device: unsupported platform %s", runtime.GOOS)
}
func (s *stubDevice) pump()                    {}
func (s *stubDevice) dispose()                 {}
func (s *stubDevice) surface() (a, b uintptr) { return 0, 0 }

// ErrorBox is a no-op on unsupported platforms.
func ErrorBox(title, text string) {}
