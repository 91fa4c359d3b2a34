// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package render

// commands.go declares the recorded command payloads. Commands are
// plain structs encoded into a Stream as [type u8][size u32][payload]
// with fixed little-endian field layouts and no padding. Variable
// length data (attachment lists, barrier lists, constant bytes) lives
// in the frame's bump arena and is referenced by arena offset.

import (
	"github.com/gazed/sfg/math/lin"
)

// CommandType tags each recorded command.
type CommandType uint8

const (
	CmdBeginRenderPass CommandType = iota
	CmdEndRenderPass
	CmdSetViewport
	CmdSetScissors
	CmdBindPipeline
	CmdDrawInstanced
	CmdDrawIndexedInstanced
	CmdDrawIndexedIndirect
	CmdCopyResource
	CmdCopyBufferToTexture2D
	CmdCopyTexture2DToTexture2D
	CmdBindVertexBuffers
	CmdBindIndexBuffers
	CmdBindGroupCmd
	CmdBindConstants
	CmdDispatch
	CmdBarrier
	commandTypes // end of command types - must be last.
)

// Command is implemented by every recorded payload.
type Command interface {
	Type() CommandType
	size() uint32
	encode(w *enc)
	decode(r *dec)
}

// NoneOffset marks an absent arena reference.
const NoneOffset = ^uint32(0)

// =============================================================================
// render pass

// LoadOp selects what happens to an attachment at pass begin.
type LoadOp uint8

const (
	LoadOpLoad LoadOp = iota
	LoadOpClear
	LoadOpDontCare
)

// StoreOp selects what happens to an attachment at pass end.
type StoreOp uint8

const (
	StoreOpStore StoreOp = iota
	StoreOpDontCare
)

// ResolveMode selects how MSAA samples collapse into the resolve
// attachment.
type ResolveMode uint8

const (
	ResolveNone ResolveMode = iota
	ResolveAvg
	ResolveMin
)

// ColorAttachment describes one color target of a render pass. These
// are placed in the frame arena and referenced from BeginRenderPass.
type ColorAttachment struct {
	ClearColor     lin.V4
	Target         RenderTargetHandle
	ViewIndex      uint8
	Load           LoadOp
	Store          StoreOp
	Resolve        ResolveMode
	ResolveView    uint8
	ResolveTexture TextureHandle
}

// DepthAttachment describes the optional depth-stencil target.
type DepthAttachment struct {
	Target       RenderTargetHandle
	ClearDepth   float32
	ClearStencil uint32
	ViewIndex    uint8
	DepthLoad    LoadOp
	DepthStore   StoreOp
	StencilLoad  LoadOp
	StencilStore StoreOp
}

// BeginRenderPass starts a render pass. ColorAttachments is an arena
// offset to ColorAttachmentCount ColorAttachment values; Depth is an
// arena offset to one DepthAttachment or NoneOffset.
type BeginRenderPass struct {
	ColorAttachments     uint32
	Depth                uint32
	ColorAttachmentCount uint8
}

func (c *BeginRenderPass) Type() CommandType { return CmdBeginRenderPass }
func (c *BeginRenderPass) size() uint32      { return 9 }
func (c *BeginRenderPass) encode(w *enc) {
	w.u32(c.ColorAttachments)
	w.u32(c.Depth)
	w.u8(c.ColorAttachmentCount)
}
func (c *BeginRenderPass) decode(r *dec) {
	c.ColorAttachments = r.u32()
	c.Depth = r.u32()
	c.ColorAttachmentCount = r.u8()
}

// EndRenderPass ends the current render pass.
type EndRenderPass struct{}

func (c *EndRenderPass) Type() CommandType { return CmdEndRenderPass }
func (c *EndRenderPass) size() uint32      { return 0 }
func (c *EndRenderPass) encode(w *enc)  {}
func (c *EndRenderPass) decode(r *dec)  {}

// =============================================================================
// fixed state

// SetViewport sets the rasterizer viewport.
type SetViewport struct {
	X        float32
	Y        float32
	Width    uint16
	Height   uint16
	MinDepth float32
	MaxDepth float32
}

func (c *SetViewport) Type() CommandType { return CmdSetViewport }
func (c *SetViewport) size() uint32      { return 20 }
func (c *SetViewport) encode(w *enc) {
	w.f32(c.X)
	w.f32(c.Y)
	w.u16(c.Width)
	w.u16(c.Height)
	w.f32(c.MinDepth)
	w.f32(c.MaxDepth)
}
func (c *SetViewport) decode(r *dec) {
	c.X = r.f32()
	c.Y = r.f32()
	c.Width = r.u16()
	c.Height = r.u16()
	c.MinDepth = r.f32()
	c.MaxDepth = r.f32()
}

// SetScissors sets the scissor rectangle.
type SetScissors struct {
	X      uint32
	Y      uint32
	Width  uint16
	Height uint16
}

func (c *SetScissors) Type() CommandType { return CmdSetScissors }
func (c *SetScissors) size() uint32      { return 12 }
func (c *SetScissors) encode(w *enc) {
	w.u32(c.X)
	w.u32(c.Y)
	w.u16(c.Width)
	w.u16(c.Height)
}
func (c *SetScissors) decode(r *dec) {
	c.X = r.u32()
	c.Y = r.u32()
	c.Width = r.u16()
	c.Height = r.u16()
}

// BindPipeline makes a shader pipeline current.
type BindPipeline struct {
	Shader ShaderHandle
}

func (c *BindPipeline) Type() CommandType { return CmdBindPipeline }
func (c *BindPipeline) size() uint32      { return 4 }
func (c *BindPipeline) encode(w *enc)  { w.u32(c.Shader.Pack()) }
func (c *BindPipeline) decode(r *dec)  { c.Shader = unpack[Shader](r.u32()) }

// =============================================================================
// draws

// DrawInstanced draws non-indexed geometry.
type DrawInstanced struct {
	VertexCountPerInstance uint32
	InstanceCount          uint32
	StartVertexLocation    uint32
	StartInstanceLocation  uint32
}

func (c *DrawInstanced) Type() CommandType { return CmdDrawInstanced }
func (c *DrawInstanced) size() uint32      { return 16 }
func (c *DrawInstanced) encode(w *enc) {
	w.u32(c.VertexCountPerInstance)
	w.u32(c.InstanceCount)
	w.u32(c.StartVertexLocation)
	w.u32(c.StartInstanceLocation)
}
func (c *DrawInstanced) decode(r *dec) {
	c.VertexCountPerInstance = r.u32()
	c.InstanceCount = r.u32()
	c.StartVertexLocation = r.u32()
	c.StartInstanceLocation = r.u32()
}

// DrawIndexedInstanced draws indexed geometry.
type DrawIndexedInstanced struct {
	IndexCountPerInstance uint32
	InstanceCount         uint32
	StartIndexLocation    uint32
	BaseVertexLocation    uint32
	StartInstanceLocation uint32
}

func (c *DrawIndexedInstanced) Type() CommandType { return CmdDrawIndexedInstanced }
func (c *DrawIndexedInstanced) size() uint32      { return 20 }
func (c *DrawIndexedInstanced) encode(w *enc) {
	w.u32(c.IndexCountPerInstance)
	w.u32(c.InstanceCount)
	w.u32(c.StartIndexLocation)
	w.u32(c.BaseVertexLocation)
	w.u32(c.StartInstanceLocation)
}
func (c *DrawIndexedInstanced) decode(r *dec) {
	c.IndexCountPerInstance = r.u32()
	c.InstanceCount = r.u32()
	c.StartIndexLocation = r.u32()
	c.BaseVertexLocation = r.u32()
	c.StartInstanceLocation = r.u32()
}

// DrawIndexedIndirect reads draw parameters from an indirect buffer.
type DrawIndexedIndirect struct {
	IndirectBuffer BufferHandle
	BufferOffset   uint32
	Count          uint16
}

func (c *DrawIndexedIndirect) Type() CommandType { return CmdDrawIndexedIndirect }
func (c *DrawIndexedIndirect) size() uint32      { return 10 }
func (c *DrawIndexedIndirect) encode(w *enc) {
	w.u32(c.IndirectBuffer.Pack())
	w.u32(c.BufferOffset)
	w.u16(c.Count)
}
func (c *DrawIndexedIndirect) decode(r *dec) {
	c.IndirectBuffer = unpack[Buffer](r.u32())
	c.BufferOffset = r.u32()
	c.Count = r.u16()
}

// =============================================================================
// copies

// CopyResource copies one whole buffer to another.
type CopyResource struct {
	Source      BufferHandle
	Destination BufferHandle
}

func (c *CopyResource) Type() CommandType { return CmdCopyResource }
func (c *CopyResource) size() uint32      { return 8 }
func (c *CopyResource) encode(w *enc) {
	w.u32(c.Source.Pack())
	w.u32(c.Destination.Pack())
}
func (c *CopyResource) decode(r *dec) {
	c.Source = unpack[Buffer](r.u32())
	c.Destination = unpack[Buffer](r.u32())
}

// CopyBufferToTexture2D copies staged mip data to a texture. Uploads
// is an arena offset to MipLevels TextureCopyRegion values.
type CopyBufferToTexture2D struct {
	Destination TextureHandle
	Uploads     uint32
	MipLevels   uint8
	DestSlice   uint16
}

func (c *CopyBufferToTexture2D) Type() CommandType { return CmdCopyBufferToTexture2D }
func (c *CopyBufferToTexture2D) size() uint32      { return 11 }
func (c *CopyBufferToTexture2D) encode(w *enc) {
	w.u32(c.Destination.Pack())
	w.u32(c.Uploads)
	w.u8(c.MipLevels)
	w.u16(c.DestSlice)
}
func (c *CopyBufferToTexture2D) decode(r *dec) {
	c.Destination = unpack[Texture](r.u32())
	c.Uploads = r.u32()
	c.MipLevels = r.u8()
	c.DestSlice = r.u16()
}

// TextureCopyRegion locates one mip level of staged pixel data within
// a staging buffer. Placed in the frame arena.
type TextureCopyRegion struct {
	Staging BufferHandle
	Offset  uint32
	Width   uint16
	Height  uint16
	Bpp     uint8
}

// CopyTexture2DToTexture2D copies between texture subresources.
type CopyTexture2DToTexture2D struct {
	Source    TextureHandle
	Dest      TextureHandle
	SrcLayer  uint8
	DestLayer uint8
	SrcMip    uint8
	DestMip   uint8
}

func (c *CopyTexture2DToTexture2D) Type() CommandType { return CmdCopyTexture2DToTexture2D }
func (c *CopyTexture2DToTexture2D) size() uint32      { return 12 }
func (c *CopyTexture2DToTexture2D) encode(w *enc) {
	w.u32(c.Source.Pack())
	w.u32(c.Dest.Pack())
	w.u8(c.SrcLayer)
	w.u8(c.DestLayer)
	w.u8(c.SrcMip)
	w.u8(c.DestMip)
}
func (c *CopyTexture2DToTexture2D) decode(r *dec) {
	c.Source = unpack[Texture](r.u32())
	c.Dest = unpack[Texture](r.u32())
	c.SrcLayer = r.u8()
	c.DestLayer = r.u8()
	c.SrcMip = r.u8()
	c.DestMip = r.u8()
}

// =============================================================================
// binds

// BindVertexBuffers binds one vertex buffer to an input slot.
type BindVertexBuffers struct {
	Buffer     BufferHandle
	Slot       uint8
	VertexSize uint16
	Offset     uint64
}

func (c *BindVertexBuffers) Type() CommandType { return CmdBindVertexBuffers }
func (c *BindVertexBuffers) size() uint32      { return 15 }
func (c *BindVertexBuffers) encode(w *enc) {
	w.u32(c.Buffer.Pack())
	w.u8(c.Slot)
	w.u16(c.VertexSize)
	w.u64(c.Offset)
}
func (c *BindVertexBuffers) decode(r *dec) {
	c.Buffer = unpack[Buffer](r.u32())
	c.Slot = r.u8()
	c.VertexSize = r.u16()
	c.Offset = r.u64()
}

// BindIndexBuffers binds the index buffer. BitDepth is 16 or 32.
type BindIndexBuffers struct {
	Buffer   BufferHandle
	Offset   uint64
	BitDepth uint8
}

func (c *BindIndexBuffers) Type() CommandType { return CmdBindIndexBuffers }
func (c *BindIndexBuffers) size() uint32      { return 13 }
func (c *BindIndexBuffers) encode(w *enc) {
	w.u32(c.Buffer.Pack())
	w.u64(c.Offset)
	w.u8(c.BitDepth)
}
func (c *BindIndexBuffers) decode(r *dec) {
	c.Buffer = unpack[Buffer](r.u32())
	c.Offset = r.u64()
	c.BitDepth = r.u8()
}

// BindGroupCommand binds a resource group to its layout set.
type BindGroupCommand struct {
	Group BindGroupHandle
	Set   uint8
}

func (c *BindGroupCommand) Type() CommandType { return CmdBindGroupCmd }
func (c *BindGroupCommand) size() uint32      { return 5 }
func (c *BindGroupCommand) encode(w *enc) {
	w.u32(c.Group.Pack())
	w.u8(c.Set)
}
func (c *BindGroupCommand) decode(r *dec) {
	c.Group = unpack[BindGroup](r.u32())
	c.Set = r.u8()
}

// BindConstants writes inline push constants to the last bound
// pipeline. Data is an arena offset to Size bytes.
type BindConstants struct {
	Data   uint32
	Offset uint16
	Size   uint16
}

func (c *BindConstants) Type() CommandType { return CmdBindConstants }
func (c *BindConstants) size() uint32      { return 8 }
func (c *BindConstants) encode(w *enc) {
	w.u32(c.Data)
	w.u16(c.Offset)
	w.u16(c.Size)
}
func (c *BindConstants) decode(r *dec) {
	c.Data = r.u32()
	c.Offset = r.u16()
	c.Size = r.u16()
}

// =============================================================================
// compute and barriers

// Dispatch launches a compute grid.
type Dispatch struct {
	GroupsX uint32
	GroupsY uint32
	GroupsZ uint32
}

func (c *Dispatch) Type() CommandType { return CmdDispatch }
func (c *Dispatch) size() uint32      { return 12 }
func (c *Dispatch) encode(w *enc) {
	w.u32(c.GroupsX)
	w.u32(c.GroupsY)
	w.u32(c.GroupsZ)
}
func (c *Dispatch) decode(r *dec) {
	c.GroupsX = r.u32()
	c.GroupsY = r.u32()
	c.GroupsZ = r.u32()
}

// TextureState names the destination state of a texture barrier. The
// backend derives the source state from its per-resource tracker.
type TextureState uint8

const (
	StateColorAtt TextureState = 1 << iota
	StateDepthAtt
	StateShaderRead
	StatePresent
	StateTransferSrc
	StateTransferDst
)

// TextureBarrier transitions one texture to a destination state.
// Placed in the frame arena and referenced from Barrier.
type TextureBarrier struct {
	Texture     TextureHandle
	Target      RenderTargetHandle // used when IsSwapchain, Texture otherwise.
	State       TextureState
	IsSwapchain bool
}

// ResourceBarrier transitions one buffer between transfer states.
type ResourceBarrier struct {
	Buffer BufferHandle
	State  TextureState
}

// Barrier batches texture and buffer transitions into one native
// barrier. TextureBarriers and ResourceBarriers are arena offsets.
type Barrier struct {
	TextureBarriers      uint32
	ResourceBarriers     uint32
	TextureBarrierCount  uint16
	ResourceBarrierCount uint16
}

func (c *Barrier) Type() CommandType { return CmdBarrier }
func (c *Barrier) size() uint32      { return 12 }
func (c *Barrier) encode(w *enc) {
	w.u32(c.TextureBarriers)
	w.u32(c.ResourceBarriers)
	w.u16(c.TextureBarrierCount)
	w.u16(c.ResourceBarrierCount)
}
func (c *Barrier) decode(r *dec) {
	c.TextureBarriers = r.u32()
	c.ResourceBarriers = r.u32()
	c.TextureBarrierCount = r.u16()
	c.ResourceBarrierCount = r.u16()
}

// newCommand returns a zero command for a decoded type tag.
func newCommand(t CommandType) Command {
	switch t {
	case CmdBeginRenderPass:
		return &BeginRenderPass{}
	case CmdEndRenderPass:
		return &EndRenderPass{}
	case CmdSetViewport:
		return &SetViewport{}
	case CmdSetScissors:
		return &SetScissors{}
	case CmdBindPipeline:
		return &BindPipeline{}
	case CmdDrawInstanced:
		return &DrawInstanced{}
	case CmdDrawIndexedInstanced:
		return &DrawIndexedInstanced{}
	case CmdDrawIndexedIndirect:
		return &DrawIndexedIndirect{}
	case CmdCopyResource:
		return &CopyResource{}
	case CmdCopyBufferToTexture2D:
		return &CopyBufferToTexture2D{}
	case CmdCopyTexture2DToTexture2D:
		return &CopyTexture2DToTexture2D{}
	case CmdBindVertexBuffers:
		return &BindVertexBuffers{}
	case CmdBindIndexBuffers:
		return &BindIndexBuffers{}
	case CmdBindGroupCmd:
		return &BindGroupCommand{}
	case CmdBindConstants:
		return &BindConstants{}
	case CmdDispatch:
		return &Dispatch{}
	case CmdBarrier:
		return &Barrier{}
	}
	return nil
}
