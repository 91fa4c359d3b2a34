// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

//go:build darwin && !ios

package render

// metal.go is the Metal backend. Metal is driven through the
// Objective-C runtime (internal/objc) so no cgo is involved. Resource
// creation lives in metal_resources.go.
//
// Metal tracks most resource hazards itself, so recorded barriers
// mostly reduce to state bookkeeping; the interesting translation
// work is render pass encoders and timeline semaphores, which map to
// MTLSharedEvent.

import (
	"fmt"
	"log/slog"
	"os"
	"time"
	"unsafe"

	"github.com/gazed/sfg/device"
	"github.com/gazed/sfg/internal/objc"
	"github.com/gazed/sfg/memory"
)

// New returns the platform render backend: Metal on macOS.
func New() Backend { return &metalBackend{} }

// metalBackend implements Backend on the Metal API.
type metalBackend struct {
	osdev *device.Device

	dev      objc.ID // id<MTLDevice>
	queue    objc.ID // id<MTLCommandQueue>
	anisotropy bool

	queues     *memory.Pool[metalQueue]
	semaphores *memory.Pool[metalSemaphore]
	textures   *memory.Pool[metalTexture]
	samplers   *memory.Pool[metalSampler]
	buffers    *memory.Pool[metalBuffer]
	shaders    *memory.Pool[metalShader]
	groups     *memory.Pool[metalBindGroup]
	targets    *memory.Pool[metalRenderTarget]
	swapchains *memory.Pool[metalSwapchain]

	graphicsH QueueHandle
	transferH QueueHandle
	computeH  QueueHandle

	tracker    *stateTracker
	frameIndex uint32

	// translation state while walking one stream.
	cmdBuffer   objc.ID // id<MTLCommandBuffer>
	renderEnc   objc.ID // id<MTLRenderCommandEncoder>, 0 outside passes.
	computeEnc  objc.ID // id<MTLComputeCommandEncoder>
	blitEnc     objc.ID // id<MTLBlitCommandEncoder>
	curShader   ShaderHandle
	curIndexBuf objc.ID
	curIndexOff uint64
	curIndex16  bool
	drawables   []metalDrawable
}

// metalQueue exists so queue handles stay uniform across backends:
// Metal uses one hardware queue for graphics, transfer, and compute,
// the graphics-family fallback of the queue selection contract.
type metalQueue struct {
	queue objc.ID
}

// metalSemaphore wraps an MTLSharedEvent: a monotonic 64 bit counter
// usable across queues and the CPU, exactly the timeline contract.
type metalSemaphore struct {
	event objc.ID // id<MTLSharedEvent>
	last  uint64
}

// metalDrawable is a CAMetalLayer drawable acquired this frame.
type metalDrawable struct {
	handle   SwapchainHandle
	drawable objc.ID
}

var (
	metalLib unsafe.Pointer

	selCommandBuffer = "commandBuffer"
	selCommit        = "commit"
)

// Initialize selects the system GPU and creates the command queue.
func (mr *metalBackend) Initialize(dev *device.Device) (err error) {
	mr.osdev = dev
	mr.tracker = newStateTracker()

	mr.queues = memory.NewPool[metalQueue](4)
	mr.semaphores = memory.NewPool[metalSemaphore](32)
	mr.textures = memory.NewPool[metalTexture](256)
	mr.samplers = memory.NewPool[metalSampler](20)
	mr.buffers = memory.NewPool[metalBuffer](256)
	mr.shaders = memory.NewPool[metalShader](64)
	mr.groups = memory.NewPool[metalBindGroup](128)
	mr.targets = memory.NewPool[metalRenderTarget](32)
	mr.swapchains = memory.NewPool[metalSwapchain](2)

	if err = objc.Init(); err != nil {
		return err
	}
	if metalLib, err = objc.LoadFramework("/System/Library/Frameworks/Metal.framework/Metal"); err != nil {
		return err
	}
	sym, err := objc.Symbol(metalLib, "MTLCreateSystemDefaultDevice")
	if err != nil {
		return err
	}
	mr.dev = objc.CallFn(sym)
	if mr.dev == 0 {
		return fmt.Errorf("render: no metal device")
	}
	// Metal 3 support gate: family check mirrors the Vulkan API
	// level requirement.
	const mtlGPUFamilyMetal3 = 5001
	if !objc.SendB(mr.dev, objc.Sel("supportsFamily:"), objc.I64(mtlGPUFamilyMetal3)) {
		return fmt.Errorf("render: device does not support Metal 3")
	}
	mr.anisotropy = true // all Metal 3 devices.

	mr.queue = objc.Send(mr.dev, objc.Sel("newCommandQueue"))
	if mr.queue == 0 {
		return fmt.Errorf("render: newCommandQueue failed")
	}
	label := objc.NSString(appName())
	objc.Send(mr.queue, objc.Sel("setLabel:"), objc.P(uintptr(label)))
	objc.Release(label)

	// one hardware queue serves all three roles.
	h := mr.queues.Allocate()
	mr.queues.Get(h).queue = mr.queue
	qh := cvt[metalQueue, Queue](h)
	mr.graphicsH, mr.transferH, mr.computeH = qh, qh, qh

	name := objc.GoString(objc.Send(mr.dev, objc.Sel("name")))
	slog.Info("metal initialized", "device", name)
	return nil
}

func appName() string {
	if name := os.Getenv("SFG_APPNAME"); name != "" {
		return name
	}
	return "sfg"
}

// Shutdown releases the queue and device. Pool resources are
// reference counted by the runtime and released individually by their
// destroy calls before shutdown.
func (mr *metalBackend) Shutdown() {
	if mr.queue != 0 {
		objc.Release(mr.queue)
		mr.queue = 0
	}
	if mr.dev != 0 {
		objc.Release(mr.dev)
		mr.dev = 0
	}
}

// =============================================================================
// queues and timeline semaphores

func (mr *metalBackend) GraphicsQueue() QueueHandle { return mr.graphicsH }
func (mr *metalBackend) TransferQueue() QueueHandle { return mr.transferH }
func (mr *metalBackend) ComputeQueue() QueueHandle  { return mr.computeH }

func (mr *metalBackend) CreateSemaphore() SemaphoreHandle {
	event := objc.Send(mr.dev, objc.Sel("newSharedEvent"))
	if event == 0 {
		slog.Error("metal: newSharedEvent failed")
		return SemaphoreHandle{}
	}
	h := mr.semaphores.Allocate()
	mr.semaphores.Get(h).event = event
	return cvt[metalSemaphore, Semaphore](h)
}

func (mr *metalBackend) DestroySemaphore(h SemaphoreHandle) {
	ih := cvt[Semaphore, metalSemaphore](h)
	objc.Release(mr.semaphores.Get(ih).event)
	mr.semaphores.Free(ih)
}

// Wait polls the shared event's signaled value.
func (mr *metalBackend) Wait(h SemaphoreHandle, value uint64, sleepMs uint32) {
	ih := cvt[Semaphore, metalSemaphore](h)
	event := mr.semaphores.Get(ih).event
	for objc.SendU64(event, objc.Sel("signaledValue")) < value {
		time.Sleep(time.Duration(sleepMs) * time.Millisecond)
	}
}

// =============================================================================
// frame rendering

// Render walks the frame's submissions. Each submission becomes one
// command buffer: waits are encoded before the translated encoders
// and signals after, which preserves the timeline contract.
func (mr *metalBackend) Render(f *Frame) error {
	mr.frameIndex = (mr.frameIndex + 1) % FramesInFlight
	mr.drawables = mr.drawables[:0]

	pool := objc.NewAutoreleasePool()
	defer objc.Drain(pool)

	for si, desc := range f.Submissions() {
		if err := mr.submit(f, &desc, si == len(f.Submissions())-1); err != nil {
			if err == ErrDeviceLost {
				return err
			}
			slog.Error("metal: submit failed, frame dropped", "err", err)
			return nil
		}
	}
	return nil
}

func (mr *metalBackend) submit(f *Frame, desc *SubmitDesc, last bool) error {
	cb := objc.Send(mr.queue, objc.Sel(selCommandBuffer))
	if cb == 0 {
		return ErrDeviceLost
	}
	objc.Retain(cb)
	defer objc.Release(cb)
	mr.cmdBuffer = cb

	for _, w := range desc.Waits {
		ih := cvt[Semaphore, metalSemaphore](w.Semaphore)
		objc.Send(cb, objc.Sel("encodeWaitForEvent:value:"),
			objc.P(uintptr(mr.semaphores.Get(ih).event)), objc.U64(w.Value))
	}

	for _, s := range desc.Streams {
		if s.IsEmpty() {
			continue
		}
		var terr error
		err := s.Decode(func(c Command) bool {
			if terr = mr.record(f, c); terr != nil {
				return false
			}
			return true
		})
		mr.endEncoders()
		if err != nil {
			return err
		}
		if terr != nil {
			return terr
		}
	}

	for _, s := range desc.Signals {
		ih := cvt[Semaphore, metalSemaphore](s.Semaphore)
		ms := mr.semaphores.Get(ih)
		ms.last = s.Value
		objc.Send(cb, objc.Sel("encodeSignalEvent:value:"),
			objc.P(uintptr(ms.event)), objc.U64(s.Value))
	}

	// the frame's last submission presents acquired drawables.
	if last {
		for _, d := range mr.drawables {
			objc.Send(cb, objc.Sel("presentDrawable:"), objc.P(uintptr(d.drawable)))
		}
	}
	objc.Send(cb, objc.Sel(selCommit))
	if last {
		for _, d := range mr.drawables {
			objc.Release(d.drawable)
		}
		mr.drawables = mr.drawables[:0]
	}
	mr.cmdBuffer = 0
	return nil
}

// endEncoders closes whichever encoder is open.
func (mr *metalBackend) endEncoders() {
	if mr.renderEnc != 0 {
		objc.Send(mr.renderEnc, objc.Sel("endEncoding"))
		mr.renderEnc = 0
	}
	if mr.computeEnc != 0 {
		objc.Send(mr.computeEnc, objc.Sel("endEncoding"))
		mr.computeEnc = 0
	}
	if mr.blitEnc != 0 {
		objc.Send(mr.blitEnc, objc.Sel("endEncoding"))
		mr.blitEnc = 0
	}
}
