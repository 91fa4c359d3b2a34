// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

// Package render provides access to 3D graphics hardware behind one
// backend contract with two implementations: Vulkan on Windows and
// Metal on macOS. The main steps involved are:
//   - Create the Backend for the platform and Initialize it.
//   - Create GPU resources (textures, buffers, shaders, bind groups).
//   - Each frame, record command streams and submissions into a Frame.
//   - Hand the Frame to Backend.Render which translates the streams
//     to native commands, submits with timeline semaphores, and
//     presents any swapchains that were written to.
//
// Package render is provided as part of the sfg rendering engine SDK.
package render

import (
	"github.com/gazed/sfg/device"
)

// FramesInFlight is the number of logical render frames the CPU can
// record ahead of the GPU. One is recorded while the other renders.
const FramesInFlight = 2

// BackBufferCount is the number of swapchain images requested from
// the presentation engine.
const BackBufferCount = 3

// Backend is the contract between the frame recorder and the graphics
// API. Implementations translate recorded command streams into native
// commands. The backend pointer lives for the program's lifetime.
type Backend interface {
	// Initialize selects a device, creates queues and the in-flight
	// frame synchronization. Called once from the render thread
	// before the first frame.
	Initialize(dev *device.Device) error

	// Shutdown tears down the device. The Vulkan backend waits for
	// the device to idle and destroys every resource still in its
	// pools first; the Metal backend releases only its command queue
	// and device, and resources not destroyed earlier are not released.
	Shutdown()

	// Render walks the frame's submissions in order, translates each
	// command stream, submits to the queue named by the descriptor,
	// and presents swapchains written this frame. Transient errors
	// drop the frame; a lost device returns ErrDeviceLost.
	Render(f *Frame) error

	// Swapchains present to an OS window surface.
	CreateSwapchain(desc SwapchainDesc) (SwapchainHandle, error)
	RecreateSwapchain(h SwapchainHandle, width, height uint32) error
	DestroySwapchain(h SwapchainHandle)

	// Textures, samplers and buffers.
	CreateTexture(desc TextureDesc) TextureHandle
	DestroyTexture(h TextureHandle)
	CreateSampler(desc SamplerDesc) SamplerHandle
	DestroySampler(h SamplerHandle)
	CreateBuffer(desc BufferDesc) BufferHandle
	DestroyBuffer(h BufferHandle)

	// Map exposes host-visible buffer memory. Valid only for buffers
	// created with host-visible storage.
	Map(h BufferHandle) ([]byte, error)
	Unmap(h BufferHandle)

	// Shaders combine per-stage blobs with the full pipeline state.
	CreateShader(desc ShaderDesc) ShaderHandle
	DestroyShader(h ShaderHandle)

	// Bind groups address textures, samplers, and buffers by slot.
	// Layouts are content hashed so duplicate layouts share.
	CreateBindGroup(desc BindGroupDesc) BindGroupHandle
	DestroyBindGroup(h BindGroupHandle)

	// Render targets wrap a swapchain or own FramesInFlight textures.
	CreateRenderTarget(desc RenderTargetDesc) RenderTargetHandle
	DestroyRenderTarget(h RenderTargetHandle)

	// Queues and timeline semaphores.
	GraphicsQueue() QueueHandle
	TransferQueue() QueueHandle
	ComputeQueue() QueueHandle
	CreateSemaphore() SemaphoreHandle
	DestroySemaphore(h SemaphoreHandle)

	// Wait blocks the CPU until the timeline semaphore reaches value,
	// polling at the given millisecond interval.
	Wait(h SemaphoreHandle, value uint64, sleepMs uint32)

	// UploadTexture copies texture mip data to the GPU before the next frame
	// that references it.
	UploadTexture(h TextureHandle, mips []TextureUpload)
}
