// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

//go:build darwin && !ios

package render

// metal_resources.go creates the Metal resources behind the backend
// handles. Command translation lives in metal_commands.go.

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/go-webgpu/goffi/types"

	"github.com/gazed/sfg/internal/objc"
)

type metalTexture struct {
	desc    TextureDesc
	texture objc.ID   // id<MTLTexture>
	views   []objc.ID // texture views, views[0] is the texture itself.
}

type metalSampler struct {
	sampler objc.ID // id<MTLSamplerState>
}

type metalBuffer struct {
	desc   BufferDesc
	buffer objc.ID // id<MTLBuffer>
}

type metalShader struct {
	desc       ShaderDesc
	library    objc.ID
	pipeline   objc.ID // render or compute pipeline state.
	depthState objc.ID // id<MTLDepthStencilState>, 0 when no depth.
	compute    bool
	primitive  uint64 // MTLPrimitiveType derived from topology.
}

// metalBindGroup keeps the entries; Metal binds resources directly on
// the encoder when the group command executes.
type metalBindGroup struct {
	desc BindGroupDesc
}

type metalRenderTarget struct {
	desc     RenderTargetDesc
	textures [FramesInFlight]TextureHandle
}

type metalSwapchain struct {
	desc  SwapchainDesc
	layer objc.ID // CAMetalLayer from the device layer.
}

// Metal enum values, limited to what the backend speaks.
const (
	mtlStorageShared  = 0
	mtlStoragePrivate = 2 << 4 // MTLResourceStorageModeShift.

	mtlUsageShaderRead   = 1
	mtlUsageShaderWrite  = 2
	mtlUsageRenderTarget = 4

	mtlLoadDontCare  = 0
	mtlLoadLoad      = 1
	mtlLoadClear     = 2
	mtlStoreDontCare = 0
	mtlStoreStore    = 1
	mtlStoreResolve  = 2

	mtlPixelBGRA8 = 80
)

var mtlFormats = map[Format]uint64{
	FormatR8Unorm:           10,
	FormatR8G8Unorm:         30,
	FormatR8G8B8A8Unorm:     70,
	FormatR8G8B8A8Srgb:      71,
	FormatB8G8R8A8Unorm:     80,
	FormatB8G8R8A8Srgb:      81,
	FormatR16G16B16A16Float: 115,
	FormatR32G32Float:       105,
	FormatR32G32B32Float:    125, // no packed RGB32; widened to RGBA32.
	FormatR32G32B32A32Float: 125,
	FormatD32Float:          252,
	FormatD24UnormS8:        255,
}

// mtlRegionType describes MTLRegion {origin, size} for by-value calls.
var mtlRegionType = &types.TypeDescriptor{
	Kind:    types.StructType,
	Members: []*types.TypeDescriptor{objc.MTLOriginType, objc.MTLSizeType},
}

type mtlRegion struct {
	ox, oy, oz uint64
	w, h, d    uint64
}

type mtlViewport struct {
	x, y, w, h, znear, zfar float64
}

type mtlScissor struct {
	x, y, w, h uint64
}

type mtlClearColor struct {
	r, g, b, a float64
}

// =============================================================================
// textures

// CreateTexture builds an MTLTexture and its views. Sampled textures
// use shared storage so mip uploads go through replaceRegion;
// attachments are private.
func (mr *metalBackend) CreateTexture(desc TextureDesc) TextureHandle {
	if desc.MipLevels == 0 {
		desc.MipLevels = 1
	}
	if desc.ArrayLevels == 0 {
		desc.ArrayLevels = 1
	}
	if desc.SampleCount == 0 {
		desc.SampleCount = 1
	}
	td := objc.SendClass(objc.GetClass("MTLTextureDescriptor"), objc.Sel("new"))
	objc.Send(td, objc.Sel("setPixelFormat:"), objc.U64(mtlFormats[desc.Format]))
	objc.Send(td, objc.Sel("setWidth:"), objc.U64(uint64(desc.Width)))
	objc.Send(td, objc.Sel("setHeight:"), objc.U64(uint64(max(desc.Height, 1))))
	objc.Send(td, objc.Sel("setDepth:"), objc.U64(uint64(max(desc.Depth, 1))))
	objc.Send(td, objc.Sel("setMipmapLevelCount:"), objc.U64(uint64(desc.MipLevels)))
	objc.Send(td, objc.Sel("setArrayLength:"), objc.U64(uint64(desc.ArrayLevels)))
	objc.Send(td, objc.Sel("setSampleCount:"), objc.U64(uint64(desc.SampleCount)))

	usage := uint64(0)
	storage := uint64(mtlStorageShared)
	if desc.Flags&TextureSampled != 0 {
		usage |= mtlUsageShaderRead
	}
	if desc.Flags&(TextureColorAtt|TextureDepthAtt|TextureStencilAtt) != 0 {
		usage |= mtlUsageRenderTarget
		storage = mtlStoragePrivate
	}
	objc.Send(td, objc.Sel("setUsage:"), objc.U64(usage))
	objc.Send(td, objc.Sel("setResourceOptions:"), objc.U64(storage))

	texture := objc.Send(mr.dev, objc.Sel("newTextureWithDescriptor:"), objc.P(uintptr(td)))
	objc.Release(td)
	if texture == 0 {
		slog.Error("metal: newTextureWithDescriptor failed", "name", desc.Name)
		return TextureHandle{}
	}

	views := make([]objc.ID, 0, len(desc.Views))
	for i, v := range desc.Views {
		if i == 0 && v.BaseMip == 0 && v.BaseLayer == 0 && !v.IsCubemap {
			views = append(views, texture) // whole-resource view.
			continue
		}
		mips := uint64(v.MipCount)
		if mips == 0 {
			mips = uint64(desc.MipLevels)
		}
		layers := uint64(v.LayerCount)
		if layers == 0 {
			layers = uint64(desc.ArrayLevels)
		}
		viewType := uint64(2) // MTLTextureType2D
		if v.IsCubemap {
			viewType = 5 // MTLTextureTypeCube
		}
		view := objc.Send(texture,
			objc.Sel("newTextureViewWithPixelFormat:textureType:levels:slices:"),
			objc.U64(mtlFormats[desc.Format]),
			objc.U64(viewType),
			objc.Struct(struct{ loc, len uint64 }{uint64(v.BaseMip), mips}, objc.NSRangeType),
			objc.Struct(struct{ loc, len uint64 }{uint64(v.BaseLayer), layers}, objc.NSRangeType))
		views = append(views, view)
	}

	h := mr.textures.Allocate()
	*mr.textures.Get(h) = metalTexture{desc: desc, texture: texture, views: views}
	return cvt[metalTexture, Texture](h)
}

func (mr *metalBackend) DestroyTexture(h TextureHandle) {
	ih := cvt[Texture, metalTexture](h)
	t := mr.textures.Get(ih)
	for _, v := range t.views {
		if v != t.texture {
			objc.Release(v)
		}
	}
	objc.Release(t.texture)
	mr.tracker.forgetTexture(h)
	mr.textures.Free(ih)
}

// UploadTexture copies mip data through replaceRegion. Valid for
// shared-storage sampled textures.
func (mr *metalBackend) UploadTexture(h TextureHandle, mips []TextureUpload) {
	ih := cvt[Texture, metalTexture](h)
	t := mr.textures.Get(ih)
	for mip, m := range mips {
		if len(m.Data) == 0 {
			continue
		}
		region := mtlRegion{w: uint64(m.Width), h: uint64(m.Height), d: 1}
		objc.Send(t.texture,
			objc.Sel("replaceRegion:mipmapLevel:withBytes:bytesPerRow:"),
			objc.Struct(region, mtlRegionType),
			objc.U64(uint64(mip)),
			objc.P(uintptr(unsafe.Pointer(&m.Data[0]))),
			objc.U64(uint64(m.Width)*uint64(m.Bpp)))
	}
}

// =============================================================================
// samplers

func (mr *metalBackend) CreateSampler(desc SamplerDesc) SamplerHandle {
	sd := objc.SendClass(objc.GetClass("MTLSamplerDescriptor"), objc.Sel("new"))
	filter := func(f Filter) uint64 {
		if f == FilterNearest {
			return 0 // MTLSamplerMinMagFilterNearest
		}
		return 1
	}
	objc.Send(sd, objc.Sel("setMinFilter:"), objc.U64(filter(desc.MinFilter)))
	objc.Send(sd, objc.Sel("setMagFilter:"), objc.U64(filter(desc.MagFilter)))
	mip := uint64(2) // MTLSamplerMipFilterLinear
	if desc.Mipmap == MipmapNearest {
		mip = 1
	}
	objc.Send(sd, objc.Sel("setMipFilter:"), objc.U64(mip))
	address := map[AddressMode]uint64{
		AddressClampEdge:   0,
		AddressMirrorClamp: 1,
		AddressRepeat:      2,
		AddressMirror:      3,
		AddressClampBorder: 5,
	}[desc.Address]
	objc.Send(sd, objc.Sel("setSAddressMode:"), objc.U64(address))
	objc.Send(sd, objc.Sel("setTAddressMode:"), objc.U64(address))
	objc.Send(sd, objc.Sel("setRAddressMode:"), objc.U64(address))
	objc.Send(sd, objc.Sel("setLodMinClamp:"), objc.F64(float64(desc.MinLod)))
	objc.Send(sd, objc.Sel("setLodMaxClamp:"), objc.F64(float64(desc.MaxLod)))
	if desc.Anisotropy > 0 && mr.anisotropy {
		objc.Send(sd, objc.Sel("setMaxAnisotropy:"), objc.U64(uint64(desc.Anisotropy)))
	}
	sampler := objc.Send(mr.dev, objc.Sel("newSamplerStateWithDescriptor:"), objc.P(uintptr(sd)))
	objc.Release(sd)
	if sampler == 0 {
		slog.Error("metal: newSamplerStateWithDescriptor failed", "name", desc.Name)
		return SamplerHandle{}
	}
	h := mr.samplers.Allocate()
	mr.samplers.Get(h).sampler = sampler
	return cvt[metalSampler, Sampler](h)
}

func (mr *metalBackend) DestroySampler(h SamplerHandle) {
	ih := cvt[Sampler, metalSampler](h)
	objc.Release(mr.samplers.Get(ih).sampler)
	mr.samplers.Free(ih)
}

// =============================================================================
// buffers

func (mr *metalBackend) CreateBuffer(desc BufferDesc) BufferHandle {
	options := uint64(mtlStoragePrivate)
	if desc.Storage != StorageDeviceLocal {
		// Apple silicon unified memory: shared is device local too,
		// the host-visible-device-local case falls out naturally.
		options = mtlStorageShared
	}
	buffer := objc.Send(mr.dev, objc.Sel("newBufferWithLength:options:"),
		objc.U64(uint64(desc.Size)), objc.U64(options))
	if buffer == 0 {
		slog.Error("metal: newBufferWithLength failed", "name", desc.Name)
		return BufferHandle{}
	}
	h := mr.buffers.Allocate()
	*mr.buffers.Get(h) = metalBuffer{desc: desc, buffer: buffer}
	return cvt[metalBuffer, Buffer](h)
}

func (mr *metalBackend) DestroyBuffer(h BufferHandle) {
	ih := cvt[Buffer, metalBuffer](h)
	objc.Release(mr.buffers.Get(ih).buffer)
	mr.tracker.forgetBuffer(h)
	mr.buffers.Free(ih)
}

// Map returns the buffer contents. Shared storage buffers are always
// mapped on Metal; there is no unmap work.
func (mr *metalBackend) Map(h BufferHandle) ([]byte, error) {
	ih := cvt[Buffer, metalBuffer](h)
	b := mr.buffers.Get(ih)
	if b.desc.Storage == StorageDeviceLocal {
		return nil, fmt.Errorf("render: map of device local buffer %s", b.desc.Name)
	}
	ptr := objc.Send(b.buffer, objc.Sel("contents"))
	if ptr == 0 {
		return nil, fmt.Errorf("render: buffer %s has no contents", b.desc.Name)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), b.desc.Size), nil
}

func (mr *metalBackend) Unmap(h BufferHandle) {}

// =============================================================================
// shaders

// CreateShader compiles the MSL source blobs and builds the pipeline
// state.
func (mr *metalBackend) CreateShader(desc ShaderDesc) ShaderHandle {
	s := metalShader{desc: desc}
	source := ""
	for _, blob := range desc.Blobs {
		source += string(blob.Code) + "\n"
		if blob.Stage == StageCompute {
			s.compute = true
		}
	}
	src := objc.NSString(source)
	var errObj objc.ID
	s.library = objc.Send(mr.dev, objc.Sel("newLibraryWithSource:options:error:"),
		objc.P(uintptr(src)), objc.P(0), objc.P(uintptr(unsafe.Pointer(&errObj))))
	objc.Release(src)
	if s.library == 0 {
		slog.Error("metal: shader compile failed", "name", desc.Name,
			"err", objc.GoString(objc.Send(errObj, objc.Sel("localizedDescription"))))
		return ShaderHandle{}
	}

	if s.compute {
		if !mr.buildComputePipeline(&s) {
			return ShaderHandle{}
		}
	} else if !mr.buildRenderPipeline(&s) {
		return ShaderHandle{}
	}
	switch desc.Topology {
	case TopologyPointList:
		s.primitive = 0
	case TopologyLineList:
		s.primitive = 1
	case TopologyTriangleStrip:
		s.primitive = 4
	default:
		s.primitive = 3 // triangles.
	}
	h := mr.shaders.Allocate()
	*mr.shaders.Get(h) = s
	return cvt[metalShader, Shader](h)
}

func (mr *metalBackend) function(library objc.ID, name string) objc.ID {
	if name == "" {
		name = "main0"
	}
	ns := objc.NSString(name)
	fn := objc.Send(library, objc.Sel("newFunctionWithName:"), objc.P(uintptr(ns)))
	objc.Release(ns)
	return fn
}

func (mr *metalBackend) buildComputePipeline(s *metalShader) bool {
	entry := s.desc.Blobs[0].Entry
	fn := mr.function(s.library, entry)
	if fn == 0 {
		slog.Error("metal: compute entry missing", "name", s.desc.Name)
		return false
	}
	var errObj objc.ID
	s.pipeline = objc.Send(mr.dev, objc.Sel("newComputePipelineStateWithFunction:error:"),
		objc.P(uintptr(fn)), objc.P(uintptr(unsafe.Pointer(&errObj))))
	objc.Release(fn)
	return s.pipeline != 0
}

var mtlBlendFactors = map[BlendFactor]uint64{
	BlendZero:             0,
	BlendOne:              1,
	BlendSrcAlpha:         4,
	BlendOneMinusSrcAlpha: 5,
	BlendDstAlpha:         8,
	BlendOneMinusDstAlpha: 9,
}

var mtlBlendOps = map[BlendOp]uint64{
	BlendAdd:      0,
	BlendSubtract: 1,
	BlendMin:      3,
	BlendMax:      4,
}

// vertex attribute formats, MTLVertexFormat values.
var mtlVertexFormats = map[Format]uint64{
	FormatR8G8B8A8Unorm:     9,  // uchar4Normalized
	FormatR32G32Float:       29, // float2
	FormatR32G32B32Float:    30, // float3
	FormatR32G32B32A32Float: 31, // float4
}

func (mr *metalBackend) buildRenderPipeline(s *metalShader) bool {
	desc := &s.desc
	pd := objc.SendClass(objc.GetClass("MTLRenderPipelineDescriptor"), objc.Sel("new"))
	defer objc.Release(pd)

	for _, blob := range desc.Blobs {
		fn := mr.function(s.library, blob.Entry)
		if fn == 0 {
			slog.Error("metal: shader entry missing", "name", desc.Name)
			return false
		}
		switch blob.Stage {
		case StageVertex:
			objc.Send(pd, objc.Sel("setVertexFunction:"), objc.P(uintptr(fn)))
		case StageFragment:
			objc.Send(pd, objc.Sel("setFragmentFunction:"), objc.P(uintptr(fn)))
		}
		objc.Release(fn)
	}

	if len(desc.Inputs) > 0 {
		vd := objc.SendClass(objc.GetClass("MTLVertexDescriptor"), objc.Sel("vertexDescriptor"))
		attrs := objc.Send(vd, objc.Sel("attributes"))
		for _, in := range desc.Inputs {
			attr := objc.Send(attrs, objc.Sel("objectAtIndexedSubscript:"), objc.U64(uint64(in.Location)))
			objc.Send(attr, objc.Sel("setFormat:"), objc.U64(mtlVertexFormats[in.Format]))
			objc.Send(attr, objc.Sel("setOffset:"), objc.U64(uint64(in.Offset)))
			objc.Send(attr, objc.Sel("setBufferIndex:"), objc.U64(uint64(in.Binding)))
		}
		layouts := objc.Send(vd, objc.Sel("layouts"))
		layout := objc.Send(layouts, objc.Sel("objectAtIndexedSubscript:"), objc.U64(0))
		objc.Send(layout, objc.Sel("setStride:"), objc.U64(uint64(desc.VertexStride)))
		objc.Send(pd, objc.Sel("setVertexDescriptor:"), objc.P(uintptr(vd)))
	}

	colors := objc.Send(pd, objc.Sel("colorAttachments"))
	for i, att := range desc.ColorAttachments {
		ca := objc.Send(colors, objc.Sel("objectAtIndexedSubscript:"), objc.U64(uint64(i)))
		objc.Send(ca, objc.Sel("setPixelFormat:"), objc.U64(mtlFormats[att.Format]))
		if att.BlendEnabled {
			objc.Send(ca, objc.Sel("setBlendingEnabled:"), objc.B(true))
			objc.Send(ca, objc.Sel("setSourceRGBBlendFactor:"), objc.U64(mtlBlendFactors[att.SrcColorFactor]))
			objc.Send(ca, objc.Sel("setDestinationRGBBlendFactor:"), objc.U64(mtlBlendFactors[att.DstColorFactor]))
			objc.Send(ca, objc.Sel("setRgbBlendOperation:"), objc.U64(mtlBlendOps[att.ColorOp]))
			objc.Send(ca, objc.Sel("setSourceAlphaBlendFactor:"), objc.U64(mtlBlendFactors[att.SrcAlphaFactor]))
			objc.Send(ca, objc.Sel("setDestinationAlphaBlendFactor:"), objc.U64(mtlBlendFactors[att.DstAlphaFactor]))
			objc.Send(ca, objc.Sel("setAlphaBlendOperation:"), objc.U64(mtlBlendOps[att.AlphaOp]))
		}
	}
	if desc.DepthStencil.Format != FormatUndefined {
		objc.Send(pd, objc.Sel("setDepthAttachmentPixelFormat:"),
			objc.U64(mtlFormats[desc.DepthStencil.Format]))
	}
	if desc.SampleCount > 1 {
		objc.Send(pd, objc.Sel("setRasterSampleCount:"), objc.U64(uint64(desc.SampleCount)))
	}

	var errObj objc.ID
	s.pipeline = objc.Send(mr.dev, objc.Sel("newRenderPipelineStateWithDescriptor:error:"),
		objc.P(uintptr(pd)), objc.P(uintptr(unsafe.Pointer(&errObj))))
	if s.pipeline == 0 {
		slog.Error("metal: pipeline failed", "name", desc.Name,
			"err", objc.GoString(objc.Send(errObj, objc.Sel("localizedDescription"))))
		return false
	}

	if desc.DepthStencil.DepthTest || desc.DepthStencil.DepthWrite {
		dd := objc.SendClass(objc.GetClass("MTLDepthStencilDescriptor"), objc.Sel("new"))
		compare := map[CompareOp]uint64{
			CompareNever: 0, CompareLess: 1, CompareEqual: 2, CompareLessEqual: 3,
			CompareGreater: 4, CompareNotEqual: 5, CompareGreaterEqual: 6, CompareAlways: 7,
		}[desc.DepthStencil.DepthCompare]
		objc.Send(dd, objc.Sel("setDepthCompareFunction:"), objc.U64(compare))
		objc.Send(dd, objc.Sel("setDepthWriteEnabled:"), objc.B(desc.DepthStencil.DepthWrite))
		s.depthState = objc.Send(mr.dev, objc.Sel("newDepthStencilStateWithDescriptor:"), objc.P(uintptr(dd)))
		objc.Release(dd)
	}
	return true
}

func (mr *metalBackend) DestroyShader(h ShaderHandle) {
	ih := cvt[Shader, metalShader](h)
	s := mr.shaders.Get(ih)
	if s.depthState != 0 {
		objc.Release(s.depthState)
	}
	objc.Release(s.pipeline)
	objc.Release(s.library)
	mr.shaders.Free(ih)
}

// =============================================================================
// bind groups, render targets, swapchains

func (mr *metalBackend) CreateBindGroup(desc BindGroupDesc) BindGroupHandle {
	h := mr.groups.Allocate()
	mr.groups.Get(h).desc = desc
	return cvt[metalBindGroup, BindGroup](h)
}

func (mr *metalBackend) DestroyBindGroup(h BindGroupHandle) {
	mr.groups.Free(cvt[BindGroup, metalBindGroup](h))
}

func (mr *metalBackend) CreateRenderTarget(desc RenderTargetDesc) RenderTargetHandle {
	h := mr.targets.Allocate()
	t := mr.targets.Get(h)
	t.desc = desc
	if !desc.Swapchain.Alive() {
		for i := 0; i < FramesInFlight; i++ {
			t.textures[i] = mr.CreateTexture(desc.Texture)
		}
	}
	return cvt[metalRenderTarget, RenderTarget](h)
}

func (mr *metalBackend) DestroyRenderTarget(h RenderTargetHandle) {
	ih := cvt[RenderTarget, metalRenderTarget](h)
	t := mr.targets.Get(ih)
	if !t.desc.Swapchain.Alive() {
		for i := 0; i < FramesInFlight; i++ {
			if t.textures[i].Alive() {
				mr.DestroyTexture(t.textures[i])
			}
		}
	}
	mr.targets.Free(ih)
}

// CreateSwapchain adopts the CAMetalLayer created by the device
// layer and sizes its drawables.
func (mr *metalBackend) CreateSwapchain(desc SwapchainDesc) (SwapchainHandle, error) {
	_, layer := mr.osdev.SurfaceInfo()
	if layer == 0 {
		return SwapchainHandle{}, fmt.Errorf("render: no CAMetalLayer")
	}
	h := mr.swapchains.Allocate()
	sc := mr.swapchains.Get(h)
	sc.desc = desc
	sc.layer = objc.ID(layer)
	objc.Send(sc.layer, objc.Sel("setDevice:"), objc.P(uintptr(mr.dev)))
	objc.Send(sc.layer, objc.Sel("setPixelFormat:"), objc.U64(mtlPixelBGRA8))
	objc.Send(sc.layer, objc.Sel("setMaximumDrawableCount:"), objc.U64(BackBufferCount))
	mr.sizeLayer(sc, desc.Width, desc.Height)
	objc.Send(sc.layer, objc.Sel("setDisplaySyncEnabled:"), objc.B(desc.VSync))
	return cvt[metalSwapchain, Swapchain](h), nil
}

func (mr *metalBackend) sizeLayer(sc *metalSwapchain, width, height uint32) {
	size := struct{ w, h float64 }{float64(width), float64(height)}
	objc.Send(sc.layer, objc.Sel("setDrawableSize:"), objc.Struct(size, objc.CGSizeType))
	sc.desc.Width, sc.desc.Height = width, height
}

func (mr *metalBackend) RecreateSwapchain(h SwapchainHandle, width, height uint32) error {
	ih := cvt[Swapchain, metalSwapchain](h)
	mr.sizeLayer(mr.swapchains.Get(ih), width, height)
	return nil
}

func (mr *metalBackend) DestroySwapchain(h SwapchainHandle) {
	// the layer belongs to the window; nothing to destroy here.
	mr.swapchains.Free(cvt[Swapchain, metalSwapchain](h))
}
