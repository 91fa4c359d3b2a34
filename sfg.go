// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

// Package sfg is a real-time rendering engine SDK for desktop systems.
// It presents windows, accepts input, and drives a two-thread
// simulation/rendering pipeline that produces GPU command submissions
// each frame. Engine functionality includes:
//   - Fixed-timestep simulation with interpolated render frames.
//   - A backend abstracted GPU resource manager with generational
//     handles; Vulkan on Windows and Metal on macOS.
//   - Recorded command streams and timeline-semaphore submissions.
//   - A world entity store with hierarchical transforms.
//   - Hot-loadable application plugins.
//
// The embedding application implements Delegate and hands it to New:
//
//	eng, err := sfg.New(app, sfg.Title("game"), sfg.Size(0, 0, 1280, 720))
//	if err != nil { ... }
//	eng.Run() // does not return until shutdown.
//
// Package dependencies are:
//   - Vulkan or Metal for graphics card access. See package render.
//   - WinAPI or Cocoa for windowing and input.   See package device.
package sfg

// Design note: concurrency follows "share memory by communicating"
// where practical: the update loop owns world state and marshals what
// the render thread needs into per-frame containers; handoff is one
// published index plus a semaphore channel.
