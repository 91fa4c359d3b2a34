// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package render

// types.go declares the backend-agnostic resource descriptors and the
// typed handles the recorder speaks in.

import (
	"errors"

	"github.com/gazed/sfg/memory"
)

// ErrDeviceLost is returned from Backend.Render when the GPU device
// is gone. The application loop treats it as fatal and shuts down.
var ErrDeviceLost = errors.New("render: device lost")

// cvt re-types a handle between the public marker types and a
// backend's internal pool types. Index and generation carry over.
func cvt[From, To any](h memory.Handle[From]) memory.Handle[To] {
	return memory.Unpack[To](h.Pack())
}

// Marker types give each resource family its own handle type:
// a TextureHandle cannot be passed where a BufferHandle is expected.
type (
	Texture      struct{}
	Sampler      struct{}
	Buffer       struct{}
	Shader       struct{}
	BindGroup    struct{}
	RenderTarget struct{}
	Swapchain    struct{}
	Queue        struct{}
	Semaphore    struct{}
)

type (
	TextureHandle      = memory.Handle[Texture]
	SamplerHandle      = memory.Handle[Sampler]
	BufferHandle       = memory.Handle[Buffer]
	ShaderHandle       = memory.Handle[Shader]
	BindGroupHandle    = memory.Handle[BindGroup]
	RenderTargetHandle = memory.Handle[RenderTarget]
	SwapchainHandle    = memory.Handle[Swapchain]
	QueueHandle        = memory.Handle[Queue]
	SemaphoreHandle    = memory.Handle[Semaphore]
)

// =============================================================================
// texture

// Format enumerates the texture and vertex formats the backends map
// to their native equivalents.
type Format uint8

const (
	FormatUndefined Format = iota
	FormatR8Unorm
	FormatR8G8Unorm
	FormatR8G8B8A8Unorm
	FormatR8G8B8A8Srgb
	FormatB8G8R8A8Unorm
	FormatB8G8R8A8Srgb
	FormatR16G16B16A16Float
	FormatR32G32Float
	FormatR32G32B32Float
	FormatR32G32B32A32Float
	FormatD32Float
	FormatD24UnormS8
)

// TextureFlags describe how a texture may be used.
type TextureFlags uint16

const (
	TextureColorAtt TextureFlags = 1 << iota
	TextureDepthAtt
	TextureStencilAtt
	TextureSampled
	TextureTransferSrc
	TextureTransferDst
)

// TextureView selects a mip/layer range of a texture for attachment
// or sampling.
type TextureView struct {
	BaseMip    uint8
	MipCount   uint8
	BaseLayer  uint8
	LayerCount uint8
	IsCubemap  bool
}

// TextureDesc describes a 1D, 2D, or 3D texture.
type TextureDesc struct {
	Name        string
	Width       uint16
	Height      uint16
	Depth       uint16 // 1 for 2D textures.
	MipLevels   uint8
	ArrayLevels uint8
	SampleCount uint8 // 1, 2, 4, 8 for MSAA attachments.
	Format      Format
	Flags       TextureFlags
	Views       []TextureView // at least one view.
}

// TextureUpload carries one mip level of CPU pixel data destined for
// the GPU.
type TextureUpload struct {
	Data     []byte
	Width    uint16
	Height   uint16
	Bpp      uint8 // bytes per pixel.
	Channels uint8
}

// =============================================================================
// sampler

// Filter selects texel filtering.
type Filter uint8

const (
	FilterLinear Filter = iota
	FilterNearest
	FilterAnisotropic
)

// AddressMode selects texture coordinate wrapping.
type AddressMode uint8

const (
	AddressRepeat AddressMode = iota
	AddressMirror
	AddressClampEdge
	AddressClampBorder
	AddressMirrorClamp
)

// MipmapMode selects filtering between mip levels.
type MipmapMode uint8

const (
	MipmapLinear MipmapMode = iota
	MipmapNearest
)

// BorderColor is used with AddressClampBorder.
type BorderColor uint8

const (
	BorderTransparentBlack BorderColor = iota
	BorderOpaqueBlack
	BorderOpaqueWhite
)

// SamplerDesc describes texel fetch behavior.
type SamplerDesc struct {
	Name        string
	MinFilter   Filter
	MagFilter   Filter
	Address     AddressMode
	Mipmap      MipmapMode
	Border      BorderColor
	MinLod      float32
	MaxLod      float32
	LodBias     float32
	Anisotropy  uint8 // 0 disables.
}

// =============================================================================
// buffer

// BufferType determines the usage flags inferred for a buffer.
type BufferType uint8

const (
	BufferVertex BufferType = iota
	BufferIndex
	BufferUniform
	BufferStorage
	BufferIndirect
)

// BufferStorageMode selects the memory heap for a buffer.
type BufferStorageMode uint8

const (
	StorageDeviceLocal BufferStorageMode = iota
	StorageHostVisible
	StorageHostVisibleDeviceLocal
)

// BufferDesc describes a GPU buffer resource.
type BufferDesc struct {
	Name    string
	Size    uint32
	Type    BufferType
	Storage BufferStorageMode
}

// =============================================================================
// shader / pipeline

// Topology selects primitive assembly.
type Topology uint8

const (
	TopologyTriangleList Topology = iota
	TopologyTriangleStrip
	TopologyLineList
	TopologyPointList
)

// CullMode selects which faces are discarded.
type CullMode uint8

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

// FrontFace selects the winding considered front facing.
type FrontFace uint8

const (
	FrontCCW FrontFace = iota
	FrontCW
)

// PolygonMode selects fill or wireframe rasterization.
type PolygonMode uint8

const (
	PolygonFill PolygonMode = iota
	PolygonLine
)

// CompareOp is used for depth and stencil tests.
type CompareOp uint8

const (
	CompareNever CompareOp = iota
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
)

// BlendFactor and BlendOp describe color blending.
type BlendFactor uint8

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcAlpha
	BlendOneMinusSrcAlpha
	BlendDstAlpha
	BlendOneMinusDstAlpha
)

type BlendOp uint8

const (
	BlendAdd BlendOp = iota
	BlendSubtract
	BlendMin
	BlendMax
)

// ShaderStage identifies one stage blob of a pipeline.
type ShaderStage uint8

const (
	StageVertex ShaderStage = iota
	StageFragment
	StageCompute
)

// StageBlob is shader code for one stage: SPIR-V words for the
// Vulkan backend, MSL source for Metal.
type StageBlob struct {
	Stage ShaderStage
	Code  []byte
	Entry string // entry point, "main" when empty ("main0" on Metal).
}

// VertexInput describes one vertex attribute.
type VertexInput struct {
	Location uint8
	Binding  uint8
	Offset   uint16
	Format   Format
}

// ColorAttachmentDesc describes one pipeline color target and its
// blend state.
type ColorAttachmentDesc struct {
	Format         Format
	BlendEnabled   bool
	SrcColorFactor BlendFactor
	DstColorFactor BlendFactor
	ColorOp        BlendOp
	SrcAlphaFactor BlendFactor
	DstAlphaFactor BlendFactor
	AlphaOp        BlendOp
}

// DepthStencilDesc describes the pipeline depth-stencil state.
type DepthStencilDesc struct {
	DepthTest    bool
	DepthWrite   bool
	DepthCompare CompareOp
	StencilTest  bool
	Format       Format
}

// BindingType enumerates what a bind group slot holds.
type BindingType uint8

const (
	BindingTexture BindingType = iota
	BindingSampler
	BindingUniform
	BindingStorage
)

// LayoutBinding describes one slot of a bind group layout. Layouts
// are content hashed from their bindings so duplicates share.
type LayoutBinding struct {
	Slot    uint8
	Type    BindingType
	Stages  uint8 // bitmask of 1<<ShaderStage.
	Count   uint8 // array size, 1 for single bindings.
}

// ShaderDesc is the full pipeline description.
type ShaderDesc struct {
	Name             string
	Blobs            []StageBlob
	Inputs           []VertexInput
	VertexStride     uint16
	ColorAttachments []ColorAttachmentDesc
	DepthStencil     DepthStencilDesc
	Topology         Topology
	Cull             CullMode
	Front            FrontFace
	Polygon          PolygonMode
	SampleCount      uint8
	DepthBias        float32
	DepthBiasClamp   float32
	DepthBiasSlope   float32
	Layouts          [][]LayoutBinding // one layout per bind group set.
	PushConstantSize uint16
}

// =============================================================================
// bind group

// BindGroupEntry assigns one resource to a layout slot.
type BindGroupEntry struct {
	Slot    uint8
	Type    BindingType
	Texture TextureHandle
	View    uint8 // texture view index for BindingTexture.
	Sampler SamplerHandle
	Buffer  BufferHandle
	Offset  uint32
	Size    uint32
}

// BindGroupDesc describes a group of resources bound together.
type BindGroupDesc struct {
	Name    string
	Layout  []LayoutBinding
	Entries []BindGroupEntry
}

// =============================================================================
// render target / swapchain

// SwapchainDesc describes a presentation surface.
type SwapchainDesc struct {
	Name   string
	Width  uint32
	Height uint32
	VSync  bool
}

// RenderTargetDesc describes either a swapchain wrapper or a set of
// FramesInFlight owned textures. Destroying the target cascades to
// owned textures.
type RenderTargetDesc struct {
	Name      string
	Swapchain SwapchainHandle // set for swapchain wrappers.
	Texture   TextureDesc     // used when Swapchain is not alive.
	IsDepth   bool
}
