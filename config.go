// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package sfg

// config.go reduces the New API footprint using functional options.
// See: http://dave.cheney.net/2014/10/17/functional-options-for-friendly-apis

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gazed/sfg/render"
)

// Settings contains configuration attributes that can be set by the
// application before running the engine loop. Zero values fall back
// to the defaults below.
type Settings struct {
	Title    string `yaml:"title"`    // window title and app name.
	Windowed bool   `yaml:"windowed"` // true to run in a window.
	X        int32  `yaml:"x"`        // window top left in pixels.
	Y        int32  `yaml:"y"`        //  ""
	W        uint32 `yaml:"w"`        // window width and height.
	H        uint32 `yaml:"h"`        //  ""
	VSync    bool   `yaml:"vsync"`

	// FixedUpdateRate is the simulation tick rate in Hz.
	FixedUpdateRate uint32 `yaml:"fixed_update_rate"`

	// MaxAccumulatedUpdates caps catch-up ticks after a stall so a
	// long OS pause does not spiral.
	MaxAccumulatedUpdates uint32 `yaml:"max_accumulated_updates"`

	// Frame fixes the per-frame recording capacities.
	Frame render.FrameDefinition `yaml:"-"`

	// Pool capacities for world and resource storages.
	MaxEntities   int `yaml:"max_entities"`
	MaxResources  int `yaml:"max_resources"`
	MaxTraits     int `yaml:"max_traits"`
	ChunkBytes    uint32 `yaml:"chunk_bytes"`
	NameBytes     uint32 `yaml:"name_bytes"`
	ConsoleLines  int    `yaml:"console_lines"`
}

// settingsDefaults provide reasonable values so the engine runs even
// if nothing is configured.
var settingsDefaults = Settings{
	Title:                 "sfg",
	Windowed:              true,
	W:                     1280,
	H:                     720,
	VSync:                 true,
	FixedUpdateRate:       60,
	MaxAccumulatedUpdates: 5,
	Frame:                 render.DefaultFrameDefinition,
	MaxEntities:           4096,
	MaxResources:          1024,
	MaxTraits:             1024,
	ChunkBytes:            4 * 1024 * 1024,
	NameBytes:             256 * 1024,
	ConsoleLines:          256,
}

// Option updates one Settings attribute before startup.
type Option func(*Settings)

// Title names the window and the graphics API application. The
// SFG_APPNAME environment variable overrides it.
func Title(title string) Option { return func(s *Settings) { s.Title = title } }

// Size places the application window.
func Size(x, y int32, w, h uint32) Option {
	return func(s *Settings) { s.X, s.Y, s.W, s.H = x, y, w, h }
}

// Windowed runs in a window instead of full screen.
func Windowed() Option { return func(s *Settings) { s.Windowed = true } }

// FullScreen runs borderless full screen.
func FullScreen() Option { return func(s *Settings) { s.Windowed = false } }

// FixedUpdateRate sets the simulation tick rate in Hz.
func FixedUpdateRate(hz uint32) Option {
	return func(s *Settings) {
		if hz > 0 {
			s.FixedUpdateRate = hz
		}
	}
}

// FrameDefinition overrides the per-frame recording capacities.
func FrameDefinition(def render.FrameDefinition) Option {
	return func(s *Settings) { s.Frame = def }
}

// Capacities overrides the world pool sizes.
func Capacities(entities, resources, traits int) Option {
	return func(s *Settings) {
		s.MaxEntities, s.MaxResources, s.MaxTraits = entities, resources, traits
	}
}

// LoadSettings reads settings from a yaml file, returning the
// defaults when the file does not exist.
func LoadSettings(path string) (Settings, error) {
	s := settingsDefaults
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("sfg: read settings %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return settingsDefaults, fmt.Errorf("sfg: parse settings %s: %w", path, err)
	}
	return s, nil
}

// applyOptions folds the options over the defaults and the env override.
func applyOptions(opts []Option) Settings {
	s := settingsDefaults
	for _, opt := range opts {
		opt(&s)
	}
	if name := os.Getenv("SFG_APPNAME"); name != "" {
		s.Title = name
	}
	return s
}
