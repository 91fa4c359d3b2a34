// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

//go:build windows

package render

// vulkan.go is the Vulkan backend. It is organized with initialization
// near the top of the file and frame rendering at the bottom with
// rough groupings along the way. Resource creation lives in
// vulkan_resources.go and OS specifics in vulkan_windows.go.

import (
	"fmt"
	"log/slog"
	"time"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/gazed/sfg/device"
	"github.com/gazed/sfg/memory"
)

// New returns the platform render backend: Vulkan on Windows.
func New() Backend { return &vulkanBackend{} }

// vulkanBackend implements Backend on the Vulkan API.
// Variables are grouped by the method that initializes them.
type vulkanBackend struct {
	osdev *device.Device

	// createInstance initializes the root of the vulkan hierarchy.
	instance vk.Instance
	surface  vk.Surface

	// selectPhysicalDevice picks a GPU with API >= 1.2, preferring discrete.
	gpu                    vk.PhysicalDevice
	memProps               vk.PhysicalDeviceMemoryProperties
	graphicsQIndex         uint32
	transferQIndex         uint32
	computeQIndex          uint32
	deviceLocalHostVisible bool // true for device local host visible heaps.
	anisotropy             bool

	// createLogicalDevice initializes GPU queue access.
	dev       vk.Device
	graphicsQ vk.Queue
	transferQ vk.Queue
	computeQ  vk.Queue

	// resource pools keyed by generational handles.
	queues     *memory.Pool[vulkanQueue]
	semaphores *memory.Pool[vulkanSemaphore]
	textures   *memory.Pool[vulkanTexture]
	samplers   *memory.Pool[vulkanSampler]
	buffers    *memory.Pool[vulkanBuffer]
	shaders    *memory.Pool[vulkanShader]
	groups     *memory.Pool[vulkanBindGroup]
	targets    *memory.Pool[vulkanRenderTarget]
	swapchains *memory.Pool[vulkanSwapchain]

	graphicsH QueueHandle
	transferH QueueHandle
	computeH  QueueHandle

	// bind group layouts are content hashed so duplicates share.
	layoutCache map[uint64]vk.DescriptorSetLayout
	descPool    vk.DescriptorPool

	// render passes and framebuffers derived from recorded
	// attachments, cached by their compatibility key.
	passCache map[uint64]vk.RenderPass
	fbCache   map[uint64]vk.Framebuffer

	// per in-flight-frame command recording.
	cmdPool    vk.CommandPool
	frames     [FramesInFlight]vulkanFrame
	frameIndex uint32

	tracker *stateTracker

	// translation state while walking one command stream.
	curShader    ShaderHandle
	curPass      vk.RenderPass
	boundTargets []presentRecord // swapchains written this frame.
}

// vulkanQueue maps a queue handle to a device queue.
type vulkanQueue struct {
	queue  vk.Queue
	family uint32
}

// vulkanSemaphore is a timeline semaphore plus its last known value.
type vulkanSemaphore struct {
	sem  vk.Semaphore
	last uint64
}

// vulkanFrame holds the per in-flight-frame command buffers.
type vulkanFrame struct {
	buffers []vk.CommandBuffer // one per translated stream, reused.
	used    int
	fence   vk.Fence // signaled when the frame's submits retire.
}

// presentRecord remembers a swapchain written during translation.
type presentRecord struct {
	handle SwapchainHandle
	image  uint32
}

// Initialize selects a device and prepares queue submission. Called
// once from the render thread.
func (vr *vulkanBackend) Initialize(dev *device.Device) (err error) {
	vr.osdev = dev
	vr.tracker = newStateTracker()
	vr.layoutCache = map[uint64]vk.DescriptorSetLayout{}
	vr.passCache = map[uint64]vk.RenderPass{}
	vr.fbCache = map[uint64]vk.Framebuffer{}

	vr.queues = memory.NewPool[vulkanQueue](4)
	vr.semaphores = memory.NewPool[vulkanSemaphore](32)
	vr.textures = memory.NewPool[vulkanTexture](256)
	vr.samplers = memory.NewPool[vulkanSampler](20)
	vr.buffers = memory.NewPool[vulkanBuffer](256)
	vr.shaders = memory.NewPool[vulkanShader](64)
	vr.groups = memory.NewPool[vulkanBindGroup](128)
	vr.targets = memory.NewPool[vulkanRenderTarget](32)
	vr.swapchains = memory.NewPool[vulkanSwapchain](2)

	if err = initVulkanLoader(); err != nil {
		return err
	}
	if err = vr.createInstance(); err != nil {
		return err
	}
	if err = vr.createSurface(); err != nil {
		return err
	}
	if err = vr.selectPhysicalDevice(); err != nil {
		return err
	}
	if err = vr.createLogicalDevice(); err != nil {
		return err
	}
	if err = vr.createCommandPools(); err != nil {
		return err
	}
	slog.Info("vulkan initialized",
		"graphicsQ", vr.graphicsQIndex,
		"transferQ", vr.transferQIndex,
		"computeQ", vr.computeQIndex,
		"deviceLocalHostVisible", vr.deviceLocalHostVisible)
	return nil
}

// createInstance initializes the vulkan root object.
func (vr *vulkanBackend) createInstance() error {
	appName := appNameFromEnv() + "\x00"
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:            vk.StructureTypeApplicationInfo,
			ApiVersion:       vk.MakeVersion(1, 2, 0),
			PApplicationName: appName,
			PEngineName:      "sfg\x00",
		},
		EnabledExtensionCount:   uint32(len(instanceExtensions)),
		PpEnabledExtensionNames: instanceExtensions,
	}, nil, &vr.instance)
	if ret != vk.Success {
		return fmt.Errorf("render: vkCreateInstance %d", ret)
	}
	vk.InitInstance(vr.instance)
	return nil
}

// selectPhysicalDevice prefers a discrete GPU with API level 1.2,
// then records memory heap and feature availability.
func (vr *vulkanBackend) selectPhysicalDevice() error {
	var count uint32
	vk.EnumeratePhysicalDevices(vr.instance, &count, nil)
	if count == 0 {
		return fmt.Errorf("render: no vulkan devices")
	}
	gpus := make([]vk.PhysicalDevice, count)
	vk.EnumeratePhysicalDevices(vr.instance, &count, gpus)

	best := vk.PhysicalDevice(nil)
	bestScore := -1
	for _, gpu := range gpus {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(gpu, &props)
		props.Deref()
		if props.ApiVersion < vk.MakeVersion(1, 2, 0) {
			continue
		}
		score := 0
		if props.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			score += 100
		}
		if score > bestScore {
			best, bestScore = gpu, score
		}
	}
	if best == nil {
		return fmt.Errorf("render: no vulkan device meets API level 1.2")
	}
	vr.gpu = best

	var feats vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(vr.gpu, &feats)
	feats.Deref()
	vr.anisotropy = feats.SamplerAnisotropy == vk.True

	vk.GetPhysicalDeviceMemoryProperties(vr.gpu, &vr.memProps)
	vr.memProps.Deref()
	for i := uint32(0); i < vr.memProps.MemoryTypeCount; i++ {
		mt := vr.memProps.MemoryTypes[i]
		mt.Deref()
		flags := vk.MemoryPropertyFlagBits(mt.PropertyFlags)
		const want = vk.MemoryPropertyDeviceLocalBit | vk.MemoryPropertyHostVisibleBit
		if flags&want == want {
			vr.deviceLocalHostVisible = true
		}
	}
	return vr.selectQueueFamilies()
}

// selectQueueFamilies picks graphics, transfer, and compute families
// preferring dedicated, falling back to separated, falling back to
// the graphics family.
func (vr *vulkanBackend) selectQueueFamilies() error {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(vr.gpu, &count, nil)
	fams := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(vr.gpu, &count, fams)

	const none = ^uint32(0)
	graphics, transfer, compute := none, none, none
	for i := range fams {
		fams[i].Deref()
		flags := vk.QueueFlagBits(fams[i].QueueFlags)
		if graphics == none && flags&vk.QueueGraphicsBit != 0 {
			graphics = uint32(i)
		}
		// dedicated transfer: transfer without graphics or compute.
		if flags&vk.QueueTransferBit != 0 &&
			flags&(vk.QueueGraphicsBit|vk.QueueComputeBit) == 0 {
			transfer = uint32(i)
		}
		// dedicated compute: compute without graphics.
		if flags&vk.QueueComputeBit != 0 && flags&vk.QueueGraphicsBit == 0 {
			compute = uint32(i)
		}
	}
	if graphics == none {
		return fmt.Errorf("render: no graphics queue family")
	}
	// separated fallback: any family with the capability.
	if transfer == none {
		for i := range fams {
			flags := vk.QueueFlagBits(fams[i].QueueFlags)
			if uint32(i) != graphics && flags&vk.QueueTransferBit != 0 {
				transfer = uint32(i)
				break
			}
		}
	}
	if compute == none {
		for i := range fams {
			flags := vk.QueueFlagBits(fams[i].QueueFlags)
			if uint32(i) != graphics && flags&vk.QueueComputeBit != 0 {
				compute = uint32(i)
				break
			}
		}
	}
	// graphics family fallback.
	if transfer == none {
		transfer = graphics
	}
	if compute == none {
		compute = graphics
	}
	vr.graphicsQIndex, vr.transferQIndex, vr.computeQIndex = graphics, transfer, compute
	return nil
}

// createLogicalDevice creates the device with timeline semaphores
// enabled and fetches one queue per chosen family.
func (vr *vulkanBackend) createLogicalDevice() error {
	unique := map[uint32]bool{
		vr.graphicsQIndex: true,
		vr.transferQIndex: true,
		vr.computeQIndex:  true,
	}
	priority := []float32{1}
	infos := make([]vk.DeviceQueueCreateInfo, 0, len(unique))
	for fam := range unique {
		infos = append(infos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: fam,
			QueueCount:       1,
			PQueuePriorities: priority,
		})
	}

	// timeline semaphores arrived in 1.2; the published bindings
	// predate them so the feature struct is laid out by hand and
	// chained through PNext.
	timeline := vkPhysicalDeviceTimelineSemaphoreFeatures{
		sType:             stypeTimelineSemaphoreFeatures,
		timelineSemaphore: vk.True,
	}
	features := vk.PhysicalDeviceFeatures{}
	if vr.anisotropy {
		features.SamplerAnisotropy = vk.True
	}
	ret := vk.CreateDevice(vr.gpu, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		PNext:                   unsafe.Pointer(&timeline),
		QueueCreateInfoCount:    uint32(len(infos)),
		PQueueCreateInfos:       infos,
		EnabledExtensionCount:   uint32(len(deviceExtensions)),
		PpEnabledExtensionNames: deviceExtensions,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
	}, nil, &vr.dev)
	if ret != vk.Success {
		return fmt.Errorf("render: vkCreateDevice %d", ret)
	}

	vk.GetDeviceQueue(vr.dev, vr.graphicsQIndex, 0, &vr.graphicsQ)
	vk.GetDeviceQueue(vr.dev, vr.transferQIndex, 0, &vr.transferQ)
	vk.GetDeviceQueue(vr.dev, vr.computeQIndex, 0, &vr.computeQ)
	loadDeviceProcs(vr.dev)

	vr.graphicsH = vr.addQueue(vr.graphicsQ, vr.graphicsQIndex)
	vr.transferH = vr.addQueue(vr.transferQ, vr.transferQIndex)
	vr.computeH = vr.addQueue(vr.computeQ, vr.computeQIndex)
	return nil
}

func (vr *vulkanBackend) addQueue(q vk.Queue, family uint32) QueueHandle {
	h := vr.queues.Allocate()
	*vr.queues.Get(h) = vulkanQueue{queue: q, family: family}
	return cvt[vulkanQueue, Queue](h)
}

// createCommandPools prepares per-frame command buffer recording and
// the frame retirement fences.
func (vr *vulkanBackend) createCommandPools() error {
	ret := vk.CreateCommandPool(vr.dev, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: vr.graphicsQIndex,
	}, nil, &vr.cmdPool)
	if ret != vk.Success {
		return fmt.Errorf("render: vkCreateCommandPool %d", ret)
	}
	for i := range vr.frames {
		var fence vk.Fence
		vk.CreateFence(vr.dev, &vk.FenceCreateInfo{
			SType: vk.StructureTypeFenceCreateInfo,
			Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
		}, nil, &fence)
		vr.frames[i].fence = fence
	}
	return nil
}

// Shutdown destroys everything in reverse creation order. No
// resource must outlive the device.
func (vr *vulkanBackend) Shutdown() {
	if vr.dev == nil {
		return
	}
	vk.DeviceWaitIdle(vr.dev)

	vr.swapchains.Range(func(h memory.Handle[vulkanSwapchain], s *vulkanSwapchain) bool {
		vr.destroySwapchain(s)
		return true
	})
	vr.targets.Range(func(h memory.Handle[vulkanRenderTarget], t *vulkanRenderTarget) bool {
		vr.destroyTargetTextures(t)
		return true
	})
	vr.groups.Range(func(h memory.Handle[vulkanBindGroup], g *vulkanBindGroup) bool {
		return true // sets are freed with the descriptor pool.
	})
	vr.shaders.Range(func(h memory.Handle[vulkanShader], s *vulkanShader) bool {
		vr.destroyShader(s)
		return true
	})
	vr.buffers.Range(func(h memory.Handle[vulkanBuffer], b *vulkanBuffer) bool {
		vr.destroyBuffer(b)
		return true
	})
	vr.samplers.Range(func(h memory.Handle[vulkanSampler], s *vulkanSampler) bool {
		vk.DestroySampler(vr.dev, s.sampler, nil)
		return true
	})
	vr.textures.Range(func(h memory.Handle[vulkanTexture], t *vulkanTexture) bool {
		vr.destroyTexture(t)
		return true
	})
	vr.semaphores.Range(func(h memory.Handle[vulkanSemaphore], s *vulkanSemaphore) bool {
		vk.DestroySemaphore(vr.dev, s.sem, nil)
		return true
	})
	for _, rp := range vr.passCache {
		vk.DestroyRenderPass(vr.dev, rp, nil)
	}
	for _, fb := range vr.fbCache {
		vk.DestroyFramebuffer(vr.dev, fb, nil)
	}
	for _, dl := range vr.layoutCache {
		vk.DestroyDescriptorSetLayout(vr.dev, dl, nil)
	}
	if vr.descPool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(vr.dev, vr.descPool, nil)
	}
	for i := range vr.frames {
		vk.DestroyFence(vr.dev, vr.frames[i].fence, nil)
	}
	vk.DestroyCommandPool(vr.dev, vr.cmdPool, nil)
	vk.DestroyDevice(vr.dev, nil)
	vr.dev = nil
	vk.DestroySurface(vr.instance, vr.surface, nil)
	vk.DestroyInstance(vr.instance, nil)
	vr.instance = nil
}

// =============================================================================
// queues and timeline semaphores

func (vr *vulkanBackend) GraphicsQueue() QueueHandle { return vr.graphicsH }
func (vr *vulkanBackend) TransferQueue() QueueHandle { return vr.transferH }
func (vr *vulkanBackend) ComputeQueue() QueueHandle  { return vr.computeH }

// CreateSemaphore returns a timeline semaphore starting at zero.
func (vr *vulkanBackend) CreateSemaphore() SemaphoreHandle {
	typeInfo := vkSemaphoreTypeCreateInfo{
		sType:         stypeSemaphoreTypeCreateInfo,
		semaphoreType: semaphoreTypeTimeline,
	}
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(vr.dev, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
		PNext: unsafe.Pointer(&typeInfo),
	}, nil, &sem)
	if ret != vk.Success {
		slog.Error("vulkan: create timeline semaphore", "ret", ret)
		return SemaphoreHandle{}
	}
	h := vr.semaphores.Allocate()
	vr.semaphores.Get(h).sem = sem
	return cvt[vulkanSemaphore, Semaphore](h)
}

func (vr *vulkanBackend) DestroySemaphore(h SemaphoreHandle) {
	ih := cvt[Semaphore, vulkanSemaphore](h)
	vk.DestroySemaphore(vr.dev, vr.semaphores.Get(ih).sem, nil)
	vr.semaphores.Free(ih)
}

// Wait blocks until the timeline semaphore reaches value.
func (vr *vulkanBackend) Wait(h SemaphoreHandle, value uint64, sleepMs uint32) {
	ih := cvt[Semaphore, vulkanSemaphore](h)
	sem := vr.semaphores.Get(ih).sem
	for !waitTimelineSemaphore(vr.dev, sem, value, uint64(sleepMs)*1_000_000) {
		time.Sleep(time.Duration(sleepMs) * time.Millisecond)
	}
}

// =============================================================================
// frame rendering

// Render walks the frame's submissions, translates each command
// stream to native commands, submits, and presents.
func (vr *vulkanBackend) Render(f *Frame) error {
	subs := f.Submissions()
	if len(subs) == 0 {
		return nil // nothing recorded; keep the frame fence signaled.
	}
	frame := &vr.frames[vr.frameIndex]
	vr.frameIndex = (vr.frameIndex + 1) % FramesInFlight

	// wait for this frame slot's previous submits to retire so its
	// command buffers are reusable.
	vk.WaitForFences(vr.dev, 1, []vk.Fence{frame.fence}, vk.True, ^uint64(0))
	vk.ResetFences(vr.dev, 1, []vk.Fence{frame.fence})
	frame.used = 0
	vr.boundTargets = vr.boundTargets[:0]

	for si := range subs {
		if err := vr.submit(f, frame, &subs[si], si == len(subs)-1); err != nil {
			if err == ErrDeviceLost {
				return err
			}
			slog.Error("vulkan: submit failed, frame dropped", "err", err)
			return nil
		}
	}
	vr.present()
	return nil
}

// submit translates one SubmitDesc and queues it.
func (vr *vulkanBackend) submit(f *Frame, frame *vulkanFrame, desc *SubmitDesc, last bool) error {
	queue := vr.graphicsQ
	if vr.queues.IsValid(cvt[Queue, vulkanQueue](desc.Queue)) {
		queue = vr.queues.Get(cvt[Queue, vulkanQueue](desc.Queue)).queue
	}

	cmds := make([]vk.CommandBuffer, 0, len(desc.Streams))
	for _, s := range desc.Streams {
		if s.IsEmpty() {
			continue
		}
		cb, err := vr.translate(f, frame, s)
		if err != nil {
			return err
		}
		cmds = append(cmds, cb)
	}

	waits := make([]vk.Semaphore, 0, len(desc.Waits)+len(vr.boundTargets))
	waitValues := make([]uint64, 0, cap(waits))
	waitStages := make([]vk.PipelineStageFlags, 0, cap(waits))
	for _, w := range desc.Waits {
		ih := cvt[Semaphore, vulkanSemaphore](w.Semaphore)
		waits = append(waits, vr.semaphores.Get(ih).sem)
		waitValues = append(waitValues, w.Value)
		waitStages = append(waitStages, vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit))
	}
	signals := make([]vk.Semaphore, 0, len(desc.Signals)+len(vr.boundTargets))
	signalValues := make([]uint64, 0, cap(signals))
	for _, s := range desc.Signals {
		ih := cvt[Semaphore, vulkanSemaphore](s.Semaphore)
		vs := vr.semaphores.Get(ih)
		vs.last = s.Value
		signals = append(signals, vs.sem)
		signalValues = append(signalValues, s.Value)
	}

	// the last submission of the frame waits on swapchain acquires
	// and signals the binary present semaphores (value 0 entries in
	// the timeline arrays).
	if last {
		for _, pr := range vr.boundTargets {
			sc := vr.swapchains.Get(cvt[Swapchain, vulkanSwapchain](pr.handle))
			waits = append(waits, sc.acquired[sc.frame])
			waitValues = append(waitValues, 0)
			waitStages = append(waitStages, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit))
			signals = append(signals, sc.rendered[sc.frame])
			signalValues = append(signalValues, 0)
		}
	}

	timeline := vkTimelineSemaphoreSubmitInfo{
		sType: stypeTimelineSemaphoreSubmitInfo,
	}
	if len(waitValues) > 0 {
		timeline.waitValueCount = uint32(len(waitValues))
		timeline.pWaitValues = &waitValues[0]
	}
	if len(signalValues) > 0 {
		timeline.signalValueCount = uint32(len(signalValues))
		timeline.pSignalValues = &signalValues[0]
	}
	info := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		PNext:                unsafe.Pointer(&timeline),
		WaitSemaphoreCount:   uint32(len(waits)),
		PWaitSemaphores:      waits,
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   uint32(len(cmds)),
		PCommandBuffers:      cmds,
		SignalSemaphoreCount: uint32(len(signals)),
		PSignalSemaphores:    signals,
	}
	fence := vk.NullFence
	if last {
		fence = vr.frames[(vr.frameIndex+FramesInFlight-1)%FramesInFlight].fence
	}
	switch ret := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{info}, fence); ret {
	case vk.Success:
		return nil
	case vk.ErrorDeviceLost:
		return ErrDeviceLost
	default:
		return fmt.Errorf("render: vkQueueSubmit %d", ret)
	}
}

// present queues the swapchains written this frame.
func (vr *vulkanBackend) present() {
	for _, pr := range vr.boundTargets {
		sc := vr.swapchains.Get(cvt[Swapchain, vulkanSwapchain](pr.handle))
		ret := vk.QueuePresent(vr.graphicsQ, &vk.PresentInfo{
			SType:              vk.StructureTypePresentInfo,
			WaitSemaphoreCount: 1,
			PWaitSemaphores:    []vk.Semaphore{sc.rendered[sc.frame]},
			SwapchainCount:     1,
			PSwapchains:        []vk.Swapchain{sc.swapchain},
			PImageIndices:      []uint32{pr.image},
		})
		sc.frame = (sc.frame + 1) % FramesInFlight
		switch ret {
		case vk.Success:
		case vk.Suboptimal, vk.ErrorOutOfDate:
			slog.Warn("vulkan: swapchain out of date on present")
		default:
			slog.Error("vulkan: vkQueuePresent", "ret", ret)
		}
	}
	vr.boundTargets = vr.boundTargets[:0]
}
