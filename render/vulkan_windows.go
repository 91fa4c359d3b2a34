// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

//go:build windows

package render

// vulkan_windows.go contains the windows specific Vulkan pieces: the
// loader, the Win32 surface, and the raw 1.2 structures the published
// bindings predate. Those are laid out by hand and called through
// fetched proc addresses.

import (
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/sys/windows"
)

// instanceExtensions are needed for the VkInstance.
var instanceExtensions = []string{
	"VK_KHR_surface\x00",
	"VK_KHR_win32_surface\x00",
}

// deviceExtensions are needed for the VkDevice.
var deviceExtensions = []string{
	"VK_KHR_swapchain\x00",
}

var vulkanDLL = windows.NewLazySystemDLL("vulkan-1.dll")

// initVulkanLoader points the bindings at the system loader.
func initVulkanLoader() error {
	if err := vulkanDLL.Load(); err != nil {
		return fmt.Errorf("render: vulkan loader: %w", err)
	}
	proc := vulkanDLL.NewProc("vkGetInstanceProcAddr")
	if err := proc.Find(); err != nil {
		return fmt.Errorf("render: vkGetInstanceProcAddr: %w", err)
	}
	vk.SetGetInstanceProcAddr(unsafe.Pointer(proc.Addr()))
	return vk.Init()
}

// appNameFromEnv names the Vulkan application after the env override
// or the compile-time default.
func appNameFromEnv() string {
	if name := os.Getenv("SFG_APPNAME"); name != "" {
		return name
	}
	return "sfg"
}

// =============================================================================
// Win32 surface

// win32SurfaceCreateInfo mirrors VkWin32SurfaceCreateInfoKHR.
type win32SurfaceCreateInfo struct {
	sType     uint32
	pNext     unsafe.Pointer
	flags     uint32
	hinstance uintptr
	hwnd      uintptr
}

const stypeWin32SurfaceCreateInfo = 1000009000

// createSurface associates the vulkan instance with the OS window.
// The surface extension entry point is fetched from the instance.
func (vr *vulkanBackend) createSurface() error {
	hinstance, hwnd := vr.osdev.SurfaceInfo()
	if hinstance == 0 || hwnd == 0 {
		return fmt.Errorf("render: window surface info unavailable")
	}
	addr := instanceProc(vr.instance, "vkCreateWin32SurfaceKHR")
	if addr == 0 {
		return fmt.Errorf("render: vkCreateWin32SurfaceKHR unavailable")
	}
	info := win32SurfaceCreateInfo{
		sType:     stypeWin32SurfaceCreateInfo,
		hinstance: hinstance,
		hwnd:      hwnd,
	}
	var surface uint64
	ret, _, _ := syscall.SyscallN(addr,
		uintptr(unsafe.Pointer(vr.instance)),
		uintptr(unsafe.Pointer(&info)),
		0,
		uintptr(unsafe.Pointer(&surface)))
	if vk.Result(ret) != vk.Success {
		return fmt.Errorf("render: vkCreateWin32SurfaceKHR %d", ret)
	}
	vr.surface = vk.SurfaceFromPointer(uintptr(surface))
	return nil
}

// instanceProc fetches an instance level entry point.
func instanceProc(instance vk.Instance, name string) uintptr {
	proc := vulkanDLL.NewProc("vkGetInstanceProcAddr")
	cname := append([]byte(name), 0)
	addr, _, _ := proc.Call(
		uintptr(unsafe.Pointer(instance)),
		uintptr(unsafe.Pointer(&cname[0])))
	return addr
}

// =============================================================================
// timeline semaphores (Vulkan 1.2)

// structure types and enums absent from the published bindings.
const (
	stypeSemaphoreTypeCreateInfo        = 1000207002
	stypeTimelineSemaphoreSubmitInfo    = 1000207003
	stypeSemaphoreWaitInfo              = 1000207004
	stypeTimelineSemaphoreFeatures      = 1000207000
	semaphoreTypeTimeline               = 1
)

// vkSemaphoreTypeCreateInfo mirrors VkSemaphoreTypeCreateInfo.
type vkSemaphoreTypeCreateInfo struct {
	sType         uint32
	_             uint32 // C struct padding before pNext.
	pNext         unsafe.Pointer
	semaphoreType uint32
	_             uint32
	initialValue  uint64
}

// vkTimelineSemaphoreSubmitInfo mirrors VkTimelineSemaphoreSubmitInfo.
type vkTimelineSemaphoreSubmitInfo struct {
	sType            uint32
	_                uint32
	pNext            unsafe.Pointer
	waitValueCount   uint32
	_                uint32
	pWaitValues      *uint64
	signalValueCount uint32
	_                uint32
	pSignalValues    *uint64
}

// vkPhysicalDeviceTimelineSemaphoreFeatures mirrors the 1.2 feature
// struct chained into device creation.
type vkPhysicalDeviceTimelineSemaphoreFeatures struct {
	sType             uint32
	_                 uint32
	pNext             unsafe.Pointer
	timelineSemaphore uint32
	_                 uint32
}

// vkSemaphoreWaitInfo mirrors VkSemaphoreWaitInfo.
type vkSemaphoreWaitInfo struct {
	sType          uint32
	_              uint32
	pNext          unsafe.Pointer
	flags          uint32
	semaphoreCount uint32
	pSemaphores    *vk.Semaphore
	pValues        *uint64
}

var procWaitSemaphores uintptr

// loadDeviceProcs fetches the device level 1.2 entry points once the
// logical device exists.
func loadDeviceProcs(dev vk.Device) {
	proc := vulkanDLL.NewProc("vkGetDeviceProcAddr")
	cname := append([]byte("vkWaitSemaphores"), 0)
	procWaitSemaphores, _, _ = proc.Call(
		uintptr(unsafe.Pointer(dev)),
		uintptr(unsafe.Pointer(&cname[0])))
	if procWaitSemaphores == 0 {
		slog.Warn("vulkan: vkWaitSemaphores unavailable")
	}
}

// waitTimelineSemaphore blocks up to timeoutNs for the semaphore to
// reach value. Returns true once reached.
func waitTimelineSemaphore(dev vk.Device, sem vk.Semaphore, value, timeoutNs uint64) bool {
	if procWaitSemaphores == 0 {
		return true // no entry point: pretend signaled, logged at init.
	}
	info := vkSemaphoreWaitInfo{
		sType:          stypeSemaphoreWaitInfo,
		semaphoreCount: 1,
		pSemaphores:    &sem,
		pValues:        &value,
	}
	ret, _, _ := syscall.SyscallN(procWaitSemaphores,
		uintptr(unsafe.Pointer(dev)),
		uintptr(unsafe.Pointer(&info)),
		uintptr(timeoutNs))
	return vk.Result(ret) == vk.Success
}
