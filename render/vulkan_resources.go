// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

//go:build windows

package render

// vulkan_resources.go creates and destroys the Vulkan resources
// behind the backend handles: images, samplers, buffers, descriptor
// sets, render targets, and swapchains. Pipelines are built in
// vulkan_commands.go.

import (
	"fmt"
	"hash/crc64"
	"log/slog"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// vulkanTexture is an image, its memory, and its views.
type vulkanTexture struct {
	desc   TextureDesc
	image  vk.Image
	mem    vk.DeviceMemory
	views  []vk.ImageView
	layout vk.ImageLayout // last transitioned layout.
}

type vulkanSampler struct {
	sampler vk.Sampler
}

type vulkanBuffer struct {
	desc   BufferDesc
	buffer vk.Buffer
	mem    vk.DeviceMemory
	mapped []byte // non-nil while mapped.
}

type vulkanShader struct {
	desc       ShaderDesc
	modules    []vk.ShaderModule
	layouts    []vk.DescriptorSetLayout // shared via layoutCache.
	pipeLayout vk.PipelineLayout
	pipeline   vk.Pipeline
	compute    bool
}

type vulkanBindGroup struct {
	set    vk.DescriptorSet
	layout vk.DescriptorSetLayout
}

// vulkanRenderTarget wraps a swapchain or owns FramesInFlight
// textures.
type vulkanRenderTarget struct {
	desc     RenderTargetDesc
	textures [FramesInFlight]TextureHandle // owned unless swapchain.
}

// vulkanSwapchain is a presentation surface and its images.
type vulkanSwapchain struct {
	desc      SwapchainDesc
	swapchain vk.Swapchain
	format    vk.Format
	images    []vk.Image
	views     []vk.ImageView
	acquired  [FramesInFlight]vk.Semaphore // binary, image acquired.
	rendered  [FramesInFlight]vk.Semaphore // binary, ready to present.
	frame     uint32                       // in-flight sync slot.
	image     uint32                       // last acquired image index.
}

// =============================================================================
// memory

// findMemoryType returns a memory type index satisfying the
// requirement bits and wanted property flags.
func (vr *vulkanBackend) findMemoryType(typeBits uint32, props vk.MemoryPropertyFlagBits) (uint32, error) {
	for i := uint32(0); i < vr.memProps.MemoryTypeCount; i++ {
		mt := vr.memProps.MemoryTypes[i]
		mt.Deref()
		if typeBits&(1<<i) == 0 {
			continue
		}
		if vk.MemoryPropertyFlagBits(mt.PropertyFlags)&props == props {
			return i, nil
		}
	}
	return 0, fmt.Errorf("render: no memory type for bits %x props %x", typeBits, props)
}

// =============================================================================
// textures

var vkFormats = map[Format]vk.Format{
	FormatR8Unorm:           vk.FormatR8Unorm,
	FormatR8G8Unorm:         vk.FormatR8g8Unorm,
	FormatR8G8B8A8Unorm:     vk.FormatR8g8b8a8Unorm,
	FormatR8G8B8A8Srgb:      vk.FormatR8g8b8a8Srgb,
	FormatB8G8R8A8Unorm:     vk.FormatB8g8r8a8Unorm,
	FormatB8G8R8A8Srgb:      vk.FormatB8g8r8a8Srgb,
	FormatR16G16B16A16Float: vk.FormatR16g16b16a16Sfloat,
	FormatR32G32Float:       vk.FormatR32g32Sfloat,
	FormatR32G32B32Float:    vk.FormatR32g32b32Sfloat,
	FormatR32G32B32A32Float: vk.FormatR32g32b32a32Sfloat,
	FormatD32Float:          vk.FormatD32Sfloat,
	FormatD24UnormS8:        vk.FormatD24UnormS8Uint,
}

func textureUsage(flags TextureFlags) vk.ImageUsageFlags {
	var usage vk.ImageUsageFlagBits
	if flags&TextureColorAtt != 0 {
		usage |= vk.ImageUsageColorAttachmentBit
	}
	if flags&(TextureDepthAtt|TextureStencilAtt) != 0 {
		usage |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if flags&TextureSampled != 0 {
		usage |= vk.ImageUsageSampledBit
	}
	if flags&TextureTransferSrc != 0 {
		usage |= vk.ImageUsageTransferSrcBit
	}
	if flags&TextureTransferDst != 0 {
		usage |= vk.ImageUsageTransferDstBit
	}
	return vk.ImageUsageFlags(usage)
}

// CreateTexture allocates an image, binds memory, and builds the
// requested views. A dead handle is returned on failure.
func (vr *vulkanBackend) CreateTexture(desc TextureDesc) TextureHandle {
	imageType := vk.ImageType2d
	if desc.Depth > 1 {
		imageType = vk.ImageType3d
	} else if desc.Height <= 1 && desc.Width > 1 {
		imageType = vk.ImageType1d
	}
	if desc.MipLevels == 0 {
		desc.MipLevels = 1
	}
	if desc.ArrayLevels == 0 {
		desc.ArrayLevels = 1
	}
	if desc.SampleCount == 0 {
		desc.SampleCount = 1
	}
	var image vk.Image
	ret := vk.CreateImage(vr.dev, &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: imageType,
		Format:    vkFormats[desc.Format],
		Extent: vk.Extent3D{
			Width:  uint32(desc.Width),
			Height: uint32(max(desc.Height, 1)),
			Depth:  uint32(max(desc.Depth, 1)),
		},
		MipLevels:   uint32(desc.MipLevels),
		ArrayLayers: uint32(desc.ArrayLevels),
		Samples:     vk.SampleCountFlagBits(desc.SampleCount),
		Tiling:      vk.ImageTilingOptimal,
		Usage:       textureUsage(desc.Flags),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &image)
	if ret != vk.Success {
		slog.Error("vulkan: vkCreateImage", "name", desc.Name, "ret", ret)
		return TextureHandle{}
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(vr.dev, image, &reqs)
	reqs.Deref()
	typeIndex, err := vr.findMemoryType(reqs.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		vk.DestroyImage(vr.dev, image, nil)
		slog.Error("vulkan: texture memory", "name", desc.Name, "err", err)
		return TextureHandle{}
	}
	var mem vk.DeviceMemory
	ret = vk.AllocateMemory(vr.dev, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: typeIndex,
	}, nil, &mem)
	if ret != vk.Success {
		vk.DestroyImage(vr.dev, image, nil)
		slog.Error("vulkan: vkAllocateMemory", "name", desc.Name, "ret", ret)
		return TextureHandle{}
	}
	vk.BindImageMemory(vr.dev, image, mem, 0)

	aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	if desc.Flags&TextureDepthAtt != 0 {
		aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
		if desc.Flags&TextureStencilAtt != 0 {
			aspect |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
		}
	}
	views := make([]vk.ImageView, 0, len(desc.Views))
	for _, v := range desc.Views {
		viewType := vk.ImageViewType2d
		if v.IsCubemap {
			viewType = vk.ImageViewTypeCube
		} else if desc.Depth > 1 {
			viewType = vk.ImageViewType3d
		}
		mips := uint32(v.MipCount)
		if mips == 0 {
			mips = uint32(desc.MipLevels)
		}
		layers := uint32(v.LayerCount)
		if layers == 0 {
			layers = uint32(desc.ArrayLevels)
		}
		var view vk.ImageView
		vk.CreateImageView(vr.dev, &vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    image,
			ViewType: viewType,
			Format:   vkFormats[desc.Format],
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     aspect,
				BaseMipLevel:   uint32(v.BaseMip),
				LevelCount:     mips,
				BaseArrayLayer: uint32(v.BaseLayer),
				LayerCount:     layers,
			},
		}, nil, &view)
		views = append(views, view)
	}

	h := vr.textures.Allocate()
	*vr.textures.Get(h) = vulkanTexture{
		desc:   desc,
		image:  image,
		mem:    mem,
		views:  views,
		layout: vk.ImageLayoutUndefined,
	}
	return cvt[vulkanTexture, Texture](h)
}

func (vr *vulkanBackend) destroyTexture(t *vulkanTexture) {
	for _, v := range t.views {
		vk.DestroyImageView(vr.dev, v, nil)
	}
	vk.DestroyImage(vr.dev, t.image, nil)
	vk.FreeMemory(vr.dev, t.mem, nil)
}

func (vr *vulkanBackend) DestroyTexture(h TextureHandle) {
	ih := cvt[Texture, vulkanTexture](h)
	vr.destroyTexture(vr.textures.Get(ih))
	vr.tracker.forgetTexture(h)
	vr.textures.Free(ih)
}

// =============================================================================
// samplers

func (vr *vulkanBackend) CreateSampler(desc SamplerDesc) SamplerHandle {
	filter := func(f Filter) vk.Filter {
		if f == FilterNearest {
			return vk.FilterNearest
		}
		return vk.FilterLinear
	}
	address := map[AddressMode]vk.SamplerAddressMode{
		AddressRepeat:      vk.SamplerAddressModeRepeat,
		AddressMirror:      vk.SamplerAddressModeMirroredRepeat,
		AddressClampEdge:   vk.SamplerAddressModeClampToEdge,
		AddressClampBorder: vk.SamplerAddressModeClampToBorder,
		AddressMirrorClamp: vk.SamplerAddressModeMirrorClampToEdge,
	}[desc.Address]
	mip := vk.SamplerMipmapModeLinear
	if desc.Mipmap == MipmapNearest {
		mip = vk.SamplerMipmapModeNearest
	}
	border := map[BorderColor]vk.BorderColor{
		BorderTransparentBlack: vk.BorderColorFloatTransparentBlack,
		BorderOpaqueBlack:      vk.BorderColorFloatOpaqueBlack,
		BorderOpaqueWhite:      vk.BorderColorFloatOpaqueWhite,
	}[desc.Border]

	info := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    filter(desc.MagFilter),
		MinFilter:    filter(desc.MinFilter),
		MipmapMode:   mip,
		AddressModeU: address,
		AddressModeV: address,
		AddressModeW: address,
		MipLodBias:   desc.LodBias,
		MinLod:       desc.MinLod,
		MaxLod:       desc.MaxLod,
		BorderColor:  border,
	}
	if desc.Anisotropy > 0 && vr.anisotropy {
		info.AnisotropyEnable = vk.True
		info.MaxAnisotropy = float32(desc.Anisotropy)
	}
	var sampler vk.Sampler
	if ret := vk.CreateSampler(vr.dev, &info, nil, &sampler); ret != vk.Success {
		slog.Error("vulkan: vkCreateSampler", "name", desc.Name, "ret", ret)
		return SamplerHandle{}
	}
	h := vr.samplers.Allocate()
	vr.samplers.Get(h).sampler = sampler
	return cvt[vulkanSampler, Sampler](h)
}

func (vr *vulkanBackend) DestroySampler(h SamplerHandle) {
	ih := cvt[Sampler, vulkanSampler](h)
	vk.DestroySampler(vr.dev, vr.samplers.Get(ih).sampler, nil)
	vr.samplers.Free(ih)
}

// =============================================================================
// buffers

func bufferUsage(t BufferType) vk.BufferUsageFlags {
	var usage vk.BufferUsageFlagBits
	switch t {
	case BufferVertex:
		usage = vk.BufferUsageVertexBufferBit
	case BufferIndex:
		usage = vk.BufferUsageIndexBufferBit
	case BufferUniform:
		usage = vk.BufferUsageUniformBufferBit
	case BufferStorage:
		usage = vk.BufferUsageStorageBufferBit
	case BufferIndirect:
		usage = vk.BufferUsageIndirectBufferBit
	}
	// transfer both ways so staged uploads and readbacks work.
	usage |= vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit
	return vk.BufferUsageFlags(usage)
}

func (vr *vulkanBackend) CreateBuffer(desc BufferDesc) BufferHandle {
	var buffer vk.Buffer
	ret := vk.CreateBuffer(vr.dev, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       bufferUsage(desc.Type),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buffer)
	if ret != vk.Success {
		slog.Error("vulkan: vkCreateBuffer", "name", desc.Name, "ret", ret)
		return BufferHandle{}
	}

	props := vk.MemoryPropertyDeviceLocalBit
	switch desc.Storage {
	case StorageHostVisible:
		props = vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	case StorageHostVisibleDeviceLocal:
		if vr.deviceLocalHostVisible {
			props = vk.MemoryPropertyDeviceLocalBit | vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
		} else {
			props = vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
		}
	}
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(vr.dev, buffer, &reqs)
	reqs.Deref()
	typeIndex, err := vr.findMemoryType(reqs.MemoryTypeBits, props)
	if err != nil {
		vk.DestroyBuffer(vr.dev, buffer, nil)
		slog.Error("vulkan: buffer memory", "name", desc.Name, "err", err)
		return BufferHandle{}
	}
	var mem vk.DeviceMemory
	ret = vk.AllocateMemory(vr.dev, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: typeIndex,
	}, nil, &mem)
	if ret != vk.Success {
		vk.DestroyBuffer(vr.dev, buffer, nil)
		slog.Error("vulkan: vkAllocateMemory", "name", desc.Name, "ret", ret)
		return BufferHandle{}
	}
	vk.BindBufferMemory(vr.dev, buffer, mem, 0)

	h := vr.buffers.Allocate()
	*vr.buffers.Get(h) = vulkanBuffer{desc: desc, buffer: buffer, mem: mem}
	return cvt[vulkanBuffer, Buffer](h)
}

func (vr *vulkanBackend) destroyBuffer(b *vulkanBuffer) {
	if b.mapped != nil {
		vk.UnmapMemory(vr.dev, b.mem)
		b.mapped = nil
	}
	vk.DestroyBuffer(vr.dev, b.buffer, nil)
	vk.FreeMemory(vr.dev, b.mem, nil)
}

func (vr *vulkanBackend) DestroyBuffer(h BufferHandle) {
	ih := cvt[Buffer, vulkanBuffer](h)
	vr.destroyBuffer(vr.buffers.Get(ih))
	vr.tracker.forgetBuffer(h)
	vr.buffers.Free(ih)
}

// Map exposes host-visible buffer memory.
func (vr *vulkanBackend) Map(h BufferHandle) ([]byte, error) {
	ih := cvt[Buffer, vulkanBuffer](h)
	b := vr.buffers.Get(ih)
	if b.desc.Storage == StorageDeviceLocal {
		return nil, fmt.Errorf("render: map of device local buffer %s", b.desc.Name)
	}
	if b.mapped != nil {
		return b.mapped, nil
	}
	var ptr unsafe.Pointer
	ret := vk.MapMemory(vr.dev, b.mem, 0, vk.DeviceSize(b.desc.Size), 0, &ptr)
	if ret != vk.Success {
		return nil, fmt.Errorf("render: vkMapMemory %d", ret)
	}
	b.mapped = unsafe.Slice((*byte)(ptr), b.desc.Size)
	return b.mapped, nil
}

func (vr *vulkanBackend) Unmap(h BufferHandle) {
	ih := cvt[Buffer, vulkanBuffer](h)
	b := vr.buffers.Get(ih)
	if b.mapped != nil {
		vk.UnmapMemory(vr.dev, b.mem)
		b.mapped = nil
	}
}

// UploadTexture stages mip data into a host-visible buffer and
// records the copy on the graphics queue immediately. Called between
// frames before the first frame that references the texture.
func (vr *vulkanBackend) UploadTexture(h TextureHandle, mips []TextureUpload) {
	total := uint32(0)
	for _, m := range mips {
		total += uint32(len(m.Data))
	}
	staging := vr.CreateBuffer(BufferDesc{
		Name:    "staging",
		Size:    total,
		Type:    BufferStorage,
		Storage: StorageHostVisible,
	})
	if !staging.Alive() {
		return
	}
	defer vr.DestroyBuffer(staging)
	mapped, err := vr.Map(staging)
	if err != nil {
		slog.Error("vulkan: upload map", "err", err)
		return
	}
	at := uint32(0)
	offsets := make([]uint32, len(mips))
	for i, m := range mips {
		offsets[i] = at
		copy(mapped[at:], m.Data)
		at += uint32(len(m.Data))
	}
	vr.Unmap(staging)

	ih := cvt[Texture, vulkanTexture](h)
	tex := vr.textures.Get(ih)
	sb := cvt[Buffer, vulkanBuffer](staging)
	cb := vr.beginOneShot()
	vr.imageBarrier(cb, tex, vk.ImageLayoutTransferDstOptimal)
	for i, m := range mips {
		vk.CmdCopyBufferToImage(cb, vr.buffers.Get(sb).buffer, tex.image,
			vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{{
				BufferOffset: vk.DeviceSize(offsets[i]),
				ImageSubresource: vk.ImageSubresourceLayers{
					AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
					MipLevel:   uint32(i),
					LayerCount: 1,
				},
				ImageExtent: vk.Extent3D{
					Width:  uint32(m.Width),
					Height: uint32(m.Height),
					Depth:  1,
				},
			}})
	}
	vr.imageBarrier(cb, tex, vk.ImageLayoutShaderReadOnlyOptimal)
	vr.endOneShot(cb)
}

// =============================================================================
// bind group layouts and groups

// hashLayout content-hashes a layout so duplicates share.
func hashLayout(bindings []LayoutBinding) uint64 {
	raw := make([]byte, 0, len(bindings)*4)
	for _, b := range bindings {
		raw = append(raw, b.Slot, byte(b.Type), b.Stages, b.Count)
	}
	return crc64.Checksum(raw, layoutHashTable)
}

var layoutHashTable = crc64.MakeTable(crc64.ISO)

var vkDescriptorTypes = map[BindingType]vk.DescriptorType{
	BindingTexture: vk.DescriptorTypeSampledImage,
	BindingSampler: vk.DescriptorTypeSampler,
	BindingUniform: vk.DescriptorTypeUniformBuffer,
	BindingStorage: vk.DescriptorTypeStorageBuffer,
}

// descriptorSetLayout returns the cached layout for the bindings,
// creating it on first use.
func (vr *vulkanBackend) descriptorSetLayout(bindings []LayoutBinding) vk.DescriptorSetLayout {
	key := hashLayout(bindings)
	if dl, ok := vr.layoutCache[key]; ok {
		return dl
	}
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		stages := vk.ShaderStageFlagBits(0)
		if b.Stages&(1<<StageVertex) != 0 {
			stages |= vk.ShaderStageVertexBit
		}
		if b.Stages&(1<<StageFragment) != 0 {
			stages |= vk.ShaderStageFragmentBit
		}
		if b.Stages&(1<<StageCompute) != 0 {
			stages |= vk.ShaderStageComputeBit
		}
		count := uint32(b.Count)
		if count == 0 {
			count = 1
		}
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         uint32(b.Slot),
			DescriptorType:  vkDescriptorTypes[b.Type],
			DescriptorCount: count,
			StageFlags:      vk.ShaderStageFlags(stages),
		}
	}
	var dl vk.DescriptorSetLayout
	vk.CreateDescriptorSetLayout(vr.dev, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}, nil, &dl)
	vr.layoutCache[key] = dl
	return dl
}

// descriptorPool lazily creates the shared pool.
func (vr *vulkanBackend) descriptorPool() vk.DescriptorPool {
	if vr.descPool != vk.NullDescriptorPool {
		return vr.descPool
	}
	sizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeSampledImage, DescriptorCount: 512},
		{Type: vk.DescriptorTypeSampler, DescriptorCount: 64},
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: 256},
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: 256},
	}
	vk.CreateDescriptorPool(vr.dev, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       512,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, nil, &vr.descPool)
	return vr.descPool
}

func (vr *vulkanBackend) CreateBindGroup(desc BindGroupDesc) BindGroupHandle {
	layout := vr.descriptorSetLayout(desc.Layout)
	sets := make([]vk.DescriptorSet, 1)
	ret := vk.AllocateDescriptorSets(vr.dev, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     vr.descriptorPool(),
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}, &sets[0])
	if ret != vk.Success {
		slog.Error("vulkan: vkAllocateDescriptorSets", "name", desc.Name, "ret", ret)
		return BindGroupHandle{}
	}

	writes := make([]vk.WriteDescriptorSet, 0, len(desc.Entries))
	for _, e := range desc.Entries {
		w := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          sets[0],
			DstBinding:      uint32(e.Slot),
			DescriptorCount: 1,
			DescriptorType:  vkDescriptorTypes[e.Type],
		}
		switch e.Type {
		case BindingTexture:
			t := vr.textures.Get(cvt[Texture, vulkanTexture](e.Texture))
			w.PImageInfo = []vk.DescriptorImageInfo{{
				ImageView:   t.views[e.View],
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}}
		case BindingSampler:
			s := vr.samplers.Get(cvt[Sampler, vulkanSampler](e.Sampler))
			w.PImageInfo = []vk.DescriptorImageInfo{{Sampler: s.sampler}}
		case BindingUniform, BindingStorage:
			b := vr.buffers.Get(cvt[Buffer, vulkanBuffer](e.Buffer))
			size := vk.DeviceSize(e.Size)
			if size == 0 {
				size = vk.DeviceSize(b.desc.Size)
			}
			w.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: b.buffer,
				Offset: vk.DeviceSize(e.Offset),
				Range:  size,
			}}
		}
		writes = append(writes, w)
	}
	vk.UpdateDescriptorSets(vr.dev, uint32(len(writes)), writes, 0, nil)

	h := vr.groups.Allocate()
	*vr.groups.Get(h) = vulkanBindGroup{set: sets[0], layout: layout}
	return cvt[vulkanBindGroup, BindGroup](h)
}

func (vr *vulkanBackend) DestroyBindGroup(h BindGroupHandle) {
	ih := cvt[BindGroup, vulkanBindGroup](h)
	g := vr.groups.Get(ih)
	vk.FreeDescriptorSets(vr.dev, vr.descPool, 1, &g.set)
	vr.groups.Free(ih)
}

// =============================================================================
// render targets

func (vr *vulkanBackend) CreateRenderTarget(desc RenderTargetDesc) RenderTargetHandle {
	h := vr.targets.Allocate()
	t := vr.targets.Get(h)
	t.desc = desc
	if !desc.Swapchain.Alive() {
		for i := 0; i < FramesInFlight; i++ {
			t.textures[i] = vr.CreateTexture(desc.Texture)
		}
	}
	return cvt[vulkanRenderTarget, RenderTarget](h)
}

func (vr *vulkanBackend) destroyTargetTextures(t *vulkanRenderTarget) {
	if t.desc.Swapchain.Alive() {
		return
	}
	for i := 0; i < FramesInFlight; i++ {
		if t.textures[i].Alive() {
			vr.DestroyTexture(t.textures[i])
		}
	}
}

func (vr *vulkanBackend) DestroyRenderTarget(h RenderTargetHandle) {
	ih := cvt[RenderTarget, vulkanRenderTarget](h)
	vr.destroyTargetTextures(vr.targets.Get(ih))
	vr.targets.Free(ih)
}

// =============================================================================
// swapchains

func (vr *vulkanBackend) CreateSwapchain(desc SwapchainDesc) (SwapchainHandle, error) {
	h := vr.swapchains.Allocate()
	sc := vr.swapchains.Get(h)
	sc.desc = desc
	if err := vr.buildSwapchain(sc, desc.Width, desc.Height, vk.NullSwapchain); err != nil {
		vr.swapchains.Free(h)
		return SwapchainHandle{}, err
	}
	for i := 0; i < FramesInFlight; i++ {
		vk.CreateSemaphore(vr.dev, &vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}, nil, &sc.acquired[i])
		vk.CreateSemaphore(vr.dev, &vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}, nil, &sc.rendered[i])
	}
	return cvt[vulkanSwapchain, Swapchain](h), nil
}

// buildSwapchain creates the swapchain images and views, handing off
// the old swapchain on recreation.
func (vr *vulkanBackend) buildSwapchain(sc *vulkanSwapchain, width, height uint32, old vk.Swapchain) error {
	var caps vk.SurfaceCapabilities
	vk.GetPhysicalDeviceSurfaceCapabilities(vr.gpu, vr.surface, &caps)
	caps.Deref()

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(vr.gpu, vr.surface, &formatCount, nil)
	formats := make([]vk.SurfaceFormat, formatCount)
	vk.GetPhysicalDeviceSurfaceFormats(vr.gpu, vr.surface, &formatCount, formats)
	chosen := formats[0]
	chosen.Deref()
	for i := range formats {
		formats[i].Deref()
		if formats[i].Format == vk.FormatB8g8r8a8Unorm {
			chosen = formats[i]
			break
		}
	}

	mode := vk.PresentModeFifo // always available, vsync.
	if !sc.desc.VSync {
		var modeCount uint32
		vk.GetPhysicalDeviceSurfacePresentModes(vr.gpu, vr.surface, &modeCount, nil)
		modes := make([]vk.PresentMode, modeCount)
		vk.GetPhysicalDeviceSurfacePresentModes(vr.gpu, vr.surface, &modeCount, modes)
		for _, m := range modes {
			if m == vk.PresentModeMailbox {
				mode = m
				break
			}
		}
	}

	imageCount := uint32(BackBufferCount)
	if imageCount < caps.MinImageCount {
		imageCount = caps.MinImageCount
	}
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	var swapchain vk.Swapchain
	ret := vk.CreateSwapchain(vr.dev, &vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         vr.surface,
		MinImageCount:   imageCount,
		ImageFormat:     chosen.Format,
		ImageColorSpace: chosen.ColorSpace,
		ImageExtent:     vk.Extent2D{Width: width, Height: height},
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     vk.SurfaceTransformIdentityBit,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      mode,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}, nil, &swapchain)
	if ret != vk.Success {
		return fmt.Errorf("render: vkCreateSwapchainKHR %d", ret)
	}
	if old != vk.NullSwapchain {
		for _, v := range sc.views {
			vk.DestroyImageView(vr.dev, v, nil)
		}
		vk.DestroySwapchain(vr.dev, old, nil)
	}
	sc.swapchain = swapchain
	sc.format = chosen.Format

	var count uint32
	vk.GetSwapchainImages(vr.dev, swapchain, &count, nil)
	sc.images = make([]vk.Image, count)
	vk.GetSwapchainImages(vr.dev, swapchain, &count, sc.images)
	sc.views = make([]vk.ImageView, count)
	for i, img := range sc.images {
		vk.CreateImageView(vr.dev, &vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    img,
			ViewType: vk.ImageViewType2d,
			Format:   chosen.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}, nil, &sc.views[i])
	}
	sc.desc.Width, sc.desc.Height = width, height
	return nil
}

func (vr *vulkanBackend) RecreateSwapchain(h SwapchainHandle, width, height uint32) error {
	ih := cvt[Swapchain, vulkanSwapchain](h)
	sc := vr.swapchains.Get(ih)
	vk.DeviceWaitIdle(vr.dev)
	return vr.buildSwapchain(sc, width, height, sc.swapchain)
}

func (vr *vulkanBackend) destroySwapchain(sc *vulkanSwapchain) {
	for _, v := range sc.views {
		vk.DestroyImageView(vr.dev, v, nil)
	}
	vk.DestroySwapchain(vr.dev, sc.swapchain, nil)
	for i := 0; i < FramesInFlight; i++ {
		vk.DestroySemaphore(vr.dev, sc.acquired[i], nil)
		vk.DestroySemaphore(vr.dev, sc.rendered[i], nil)
	}
}

func (vr *vulkanBackend) DestroySwapchain(h SwapchainHandle) {
	ih := cvt[Swapchain, vulkanSwapchain](h)
	vr.destroySwapchain(vr.swapchains.Get(ih))
	vr.swapchains.Free(ih)
}

// =============================================================================
// one shot command buffers for uploads

func (vr *vulkanBackend) beginOneShot() vk.CommandBuffer {
	cbs := make([]vk.CommandBuffer, 1)
	vk.AllocateCommandBuffers(vr.dev, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        vr.cmdPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, cbs)
	vk.BeginCommandBuffer(cbs[0], &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	return cbs[0]
}

func (vr *vulkanBackend) endOneShot(cb vk.CommandBuffer) {
	vk.EndCommandBuffer(cb)
	vk.QueueSubmit(vr.graphicsQ, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb},
	}}, vk.NullFence)
	vk.QueueWaitIdle(vr.graphicsQ)
	vk.FreeCommandBuffers(vr.dev, vr.cmdPool, 1, []vk.CommandBuffer{cb})
}

// imageBarrier transitions a whole image between layouts during
// uploads. In-frame transitions go through the recorded Barrier
// command instead.
func (vr *vulkanBackend) imageBarrier(cb vk.CommandBuffer, t *vulkanTexture, layout vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           t.layout,
		NewLayout:           layout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               t.image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: uint32(t.desc.MipLevels),
			LayerCount: uint32(t.desc.ArrayLevels),
		},
	}
	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	t.layout = layout
}
