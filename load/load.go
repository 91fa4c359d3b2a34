// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

// Package load locates and decodes asset files into the formats the
// engine uploads to the GPU. Decoding runs on the update goroutine;
// nothing here touches the graphics card.
//
// Package load is provided as part of the sfg rendering engine SDK.
package load

import (
	"fmt"
	"os"
	"path/filepath"
)

// Locator finds asset files across a set of search directories in
// registration order.
type Locator struct {
	dirs []string
}

// NewLocator searches the working directory by default.
func NewLocator(dirs ...string) *Locator {
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	return &Locator{dirs: dirs}
}

// AddDir appends a search directory.
func (l *Locator) AddDir(dir string) { l.dirs = append(l.dirs, dir) }

// Find returns the first existing path for name.
func (l *Locator) Find(name string) (string, error) {
	for _, dir := range l.dirs {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("load: %s not found in %v", name, l.dirs)
}
