// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package sfg

import (
	"testing"

	"github.com/gazed/sfg/device"
)

func TestConsole(t *testing.T) {
	t.Run("visibility toggles", func(t *testing.T) {
		c := newConsole(8)
		if c.IsVisible() {
			t.Fatalf("expected console to start hidden")
		}
		c.Toggle()
		if !c.IsVisible() {
			t.Errorf("expected console visible after toggle")
		}
		c.Toggle()
		if c.IsVisible() {
			t.Errorf("expected console hidden after second toggle")
		}
	})
	t.Run("line ring keeps the last N lines", func(t *testing.T) {
		c := newConsole(3)
		c.Log(LogInfo, "one")
		c.Log(LogInfo, "two")
		c.Log(LogInfo, "three")
		c.Log(LogInfo, "four") // evicts one.
		lines := c.Lines()
		if len(lines) != 3 || lines[0] != "two" || lines[2] != "four" {
			t.Errorf("expected last three lines oldest first, got %v", lines)
		}
	})
	t.Run("typed commands dispatch", func(t *testing.T) {
		c := newConsole(8)
		c.Toggle()
		ran := ""
		c.Register("spawn", func(eng *Engine, args []string) {
			ran = "spawn"
			if len(args) != 1 || args[0] != "5" {
				t.Errorf("expected args [5], got %v", args)
			}
		})
		for _, code := range []device.InputCode{
			device.KeyS, device.KeyP, device.KeyA, device.KeyW, device.KeyN,
			device.KeySpace, device.Key5,
		} {
			c.OnKey(device.Event{Kind: device.KindKey, Action: device.Pressed, Code: code})
		}
		c.Submit(nil)
		if ran != "spawn" {
			t.Errorf("expected spawn command to run")
		}
	})
	t.Run("unknown commands log a warning", func(t *testing.T) {
		c := newConsole(8)
		c.Toggle()
		c.input = []rune("nope")
		c.Submit(nil)
		lines := c.Lines()
		if len(lines) != 1 || lines[0] != "unknown command: nope" {
			t.Errorf("expected unknown command warning, got %v", lines)
		}
	})
	t.Run("backspace edits the input line", func(t *testing.T) {
		c := newConsole(8)
		c.Toggle()
		c.OnKey(device.Event{Kind: device.KindKey, Action: device.Pressed, Code: device.KeyA})
		c.OnKey(device.Event{Kind: device.KindKey, Action: device.Pressed, Code: device.KeyB})
		c.OnKey(device.Event{Kind: device.KindKey, Action: device.Pressed, Code: device.KeyBackspace})
		if string(c.input) != "a" {
			t.Errorf("expected input a, got %q", string(c.input))
		}
	})
}
