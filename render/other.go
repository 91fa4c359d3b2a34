// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

//go:build !windows && !darwin

package render

// Stub backend for unsupported platforms: the SDK targets Windows
// (Vulkan) and macOS (Metal). The stub keeps the recorder and its
// tests buildable elsewhere.

import (
	"fmt"
	"runtime"

	"github.com/gazed/sfg/device"
)

// New returns the platform render backend.
func New() Backend { return &stubBackend{} }

type stubBackend struct{}

func (sr *stubBackend) Initialize(dev *device.Device) error {
	return fmt.Errorf("render: unsupported platform %s", runtime.GOOS)
}
func (sr *stubBackend) Shutdown()                 {}
func (sr *stubBackend) Render(f *Frame) error     { return nil }
func (sr *stubBackend) CreateSwapchain(desc SwapchainDesc) (SwapchainHandle, error) {
	return SwapchainHandle{}, fmt.Errorf("render: unsupported platform")
}
func (sr *stubBackend) RecreateSwapchain(h SwapchainHandle, w, hgt uint32) error { return nil }
func (sr *stubBackend) DestroySwapchain(h SwapchainHandle)                       {}
func (sr *stubBackend) CreateTexture(desc TextureDesc) TextureHandle             { return TextureHandle{} }
func (sr *stubBackend) DestroyTexture(h TextureHandle)                           {}
func (sr *stubBackend) CreateSampler(desc SamplerDesc) SamplerHandle             { return SamplerHandle{} }
func (sr *stubBackend) DestroySampler(h SamplerHandle)                           {}
func (sr *stubBackend) CreateBuffer(desc BufferDesc) BufferHandle                { return BufferHandle{} }
func (sr *stubBackend) DestroyBuffer(h BufferHandle)                             {}
func (sr *stubBackend) Map(h BufferHandle) ([]byte, error) {
	return nil, fmt.Errorf("render: unsupported platform")
}
func (sr *stubBackend) Unmap(h BufferHandle)                                  {}
func (sr *stubBackend) CreateShader(desc ShaderDesc) ShaderHandle             { return ShaderHandle{} }
func (sr *stubBackend) DestroyShader(h ShaderHandle)                          {}
func (sr *stubBackend) CreateBindGroup(desc BindGroupDesc) BindGroupHandle   { return BindGroupHandle{} }
func (sr *stubBackend) DestroyBindGroup(h BindGroupHandle)                   {}
func (sr *stubBackend) CreateRenderTarget(desc RenderTargetDesc) RenderTargetHandle {
	return RenderTargetHandle{}
}
func (sr *stubBackend) DestroyRenderTarget(h RenderTargetHandle)       {}
func (sr *stubBackend) GraphicsQueue() QueueHandle                     { return QueueHandle{} }
func (sr *stubBackend) TransferQueue() QueueHandle                     { return QueueHandle{} }
func (sr *stubBackend) ComputeQueue() QueueHandle                      { return QueueHandle{} }
func (sr *stubBackend) CreateSemaphore() SemaphoreHandle               { return SemaphoreHandle{} }
func (sr *stubBackend) DestroySemaphore(h SemaphoreHandle)             {}
func (sr *stubBackend) Wait(h SemaphoreHandle, value uint64, ms uint32) {}
func (sr *stubBackend) UploadTexture(h TextureHandle, mips []TextureUpload) {}
