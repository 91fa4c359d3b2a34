// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

//go:build windows

package render

// vulkan_commands.go translates recorded command streams into native
// Vulkan commands and builds the pipelines they bind.

import (
	"fmt"
	"log/slog"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// =============================================================================
// shaders / pipelines

// CreateShader builds the shader modules and the full pipeline state
// object. A dead handle is returned on failure.
func (vr *vulkanBackend) CreateShader(desc ShaderDesc) ShaderHandle {
	s := vulkanShader{desc: desc}
	for _, blob := range desc.Blobs {
		var module vk.ShaderModule
		ret := vk.CreateShaderModule(vr.dev, &vk.ShaderModuleCreateInfo{
			SType:    vk.StructureTypeShaderModuleCreateInfo,
			CodeSize: uint(len(blob.Code)),
			PCode:    sliceUint32(blob.Code),
		}, nil, &module)
		if ret != vk.Success {
			slog.Error("vulkan: vkCreateShaderModule", "name", desc.Name, "ret", ret)
			return ShaderHandle{}
		}
		s.modules = append(s.modules, module)
		if blob.Stage == StageCompute {
			s.compute = true
		}
	}

	for _, bindings := range desc.Layouts {
		s.layouts = append(s.layouts, vr.descriptorSetLayout(bindings))
	}
	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(s.layouts)),
		PSetLayouts:    s.layouts,
	}
	if desc.PushConstantSize > 0 {
		layoutInfo.PushConstantRangeCount = 1
		layoutInfo.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageAllGraphics | vk.ShaderStageComputeBit),
			Size:       uint32(desc.PushConstantSize),
		}}
	}
	if ret := vk.CreatePipelineLayout(vr.dev, &layoutInfo, nil, &s.pipeLayout); ret != vk.Success {
		slog.Error("vulkan: vkCreatePipelineLayout", "name", desc.Name, "ret", ret)
		return ShaderHandle{}
	}

	var err error
	if s.compute {
		err = vr.buildComputePipeline(&s)
	} else {
		err = vr.buildGraphicsPipeline(&s)
	}
	if err != nil {
		slog.Error("vulkan: pipeline", "name", desc.Name, "err", err)
		return ShaderHandle{}
	}
	h := vr.shaders.Allocate()
	*vr.shaders.Get(h) = s
	return cvt[vulkanShader, Shader](h)
}

var vkStages = map[ShaderStage]vk.ShaderStageFlagBits{
	StageVertex:   vk.ShaderStageVertexBit,
	StageFragment: vk.ShaderStageFragmentBit,
	StageCompute:  vk.ShaderStageComputeBit,
}

func (vr *vulkanBackend) buildComputePipeline(s *vulkanShader) error {
	entry := s.desc.Blobs[0].Entry
	if entry == "" {
		entry = "main"
	}
	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateComputePipelines(vr.dev, vk.NullPipelineCache, 1,
		[]vk.ComputePipelineCreateInfo{{
			SType: vk.StructureTypeComputePipelineCreateInfo,
			Stage: vk.PipelineShaderStageCreateInfo{
				SType:  vk.StructureTypePipelineShaderStageCreateInfo,
				Stage:  vk.ShaderStageComputeBit,
				Module: s.modules[0],
				PName:  entry + "\x00",
			},
			Layout: s.pipeLayout,
		}}, nil, pipelines)
	if ret != vk.Success {
		return fmt.Errorf("vkCreateComputePipelines %d", ret)
	}
	s.pipeline = pipelines[0]
	return nil
}

func (vr *vulkanBackend) buildGraphicsPipeline(s *vulkanShader) error {
	desc := &s.desc
	stages := make([]vk.PipelineShaderStageCreateInfo, len(desc.Blobs))
	for i, blob := range desc.Blobs {
		entry := blob.Entry
		if entry == "" {
			entry = "main"
		}
		stages[i] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vkStages[blob.Stage],
			Module: s.modules[i],
			PName:  entry + "\x00",
		}
	}

	attrs := make([]vk.VertexInputAttributeDescription, len(desc.Inputs))
	for i, in := range desc.Inputs {
		attrs[i] = vk.VertexInputAttributeDescription{
			Location: uint32(in.Location),
			Binding:  uint32(in.Binding),
			Format:   vkFormats[in.Format],
			Offset:   uint32(in.Offset),
		}
	}
	var bindings []vk.VertexInputBindingDescription
	if desc.VertexStride > 0 {
		bindings = []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    uint32(desc.VertexStride),
			InputRate: vk.VertexInputRateVertex,
		}}
	}

	topology := map[Topology]vk.PrimitiveTopology{
		TopologyTriangleList:  vk.PrimitiveTopologyTriangleList,
		TopologyTriangleStrip: vk.PrimitiveTopologyTriangleStrip,
		TopologyLineList:      vk.PrimitiveTopologyLineList,
		TopologyPointList:     vk.PrimitiveTopologyPointList,
	}[desc.Topology]
	cull := map[CullMode]vk.CullModeFlagBits{
		CullNone:  vk.CullModeNone,
		CullBack:  vk.CullModeBackBit,
		CullFront: vk.CullModeFrontBit,
	}[desc.Cull]
	front := vk.FrontFaceCounterClockwise
	if desc.Front == FrontCW {
		front = vk.FrontFaceClockwise
	}
	polygon := vk.PolygonModeFill
	if desc.Polygon == PolygonLine {
		polygon = vk.PolygonModeLine
	}

	blends := make([]vk.PipelineColorBlendAttachmentState, len(desc.ColorAttachments))
	colorFormats := make([]vk.Format, len(desc.ColorAttachments))
	for i, att := range desc.ColorAttachments {
		colorFormats[i] = vkFormats[att.Format]
		state := vk.PipelineColorBlendAttachmentState{
			ColorWriteMask: vk.ColorComponentFlags(
				vk.ColorComponentRBit | vk.ColorComponentGBit |
					vk.ColorComponentBBit | vk.ColorComponentABit),
		}
		if att.BlendEnabled {
			state.BlendEnable = vk.True
			state.SrcColorBlendFactor = vkBlendFactor(att.SrcColorFactor)
			state.DstColorBlendFactor = vkBlendFactor(att.DstColorFactor)
			state.ColorBlendOp = vkBlendOp(att.ColorOp)
			state.SrcAlphaBlendFactor = vkBlendFactor(att.SrcAlphaFactor)
			state.DstAlphaBlendFactor = vkBlendFactor(att.DstAlphaFactor)
			state.AlphaBlendOp = vkBlendOp(att.AlphaOp)
		}
		blends[i] = state
	}

	depthFormat := vk.FormatUndefined
	if desc.DepthStencil.Format != FormatUndefined {
		depthFormat = vkFormats[desc.DepthStencil.Format]
	}
	samples := desc.SampleCount
	if samples == 0 {
		samples = 1
	}
	pass := vr.renderPassFor(colorFormats, depthFormat, samples)

	depth := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthCompareOp:   vkCompareOp(desc.DepthStencil.DepthCompare),
		StencilTestEnable: vk.False,
	}
	if desc.DepthStencil.DepthTest {
		depth.DepthTestEnable = vk.True
	}
	if desc.DepthStencil.DepthWrite {
		depth.DepthWriteEnable = vk.True
	}

	raster := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: polygon,
		CullMode:    vk.CullModeFlags(cull),
		FrontFace:   front,
		LineWidth:   1,
	}
	if desc.DepthBias != 0 || desc.DepthBiasSlope != 0 {
		raster.DepthBiasEnable = vk.True
		raster.DepthBiasConstantFactor = desc.DepthBias
		raster.DepthBiasClamp = desc.DepthBiasClamp
		raster.DepthBiasSlopeFactor = desc.DepthBiasSlope
	}

	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateGraphicsPipelines(vr.dev, vk.NullPipelineCache, 1,
		[]vk.GraphicsPipelineCreateInfo{{
			SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
			StageCount: uint32(len(stages)),
			PStages:    stages,
			PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
				SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
				VertexBindingDescriptionCount:   uint32(len(bindings)),
				PVertexBindingDescriptions:      bindings,
				VertexAttributeDescriptionCount: uint32(len(attrs)),
				PVertexAttributeDescriptions:    attrs,
			},
			PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
				SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
				Topology: topology,
			},
			PViewportState: &vk.PipelineViewportStateCreateInfo{
				SType:         vk.StructureTypePipelineViewportStateCreateInfo,
				ViewportCount: 1,
				ScissorCount:  1,
			},
			PRasterizationState: &raster,
			PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
				SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
				RasterizationSamples: vk.SampleCountFlagBits(samples),
			},
			PDepthStencilState: &depth,
			PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
				SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
				AttachmentCount: uint32(len(blends)),
				PAttachments:    blends,
			},
			PDynamicState: &vk.PipelineDynamicStateCreateInfo{
				SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
				DynamicStateCount: 2,
				PDynamicStates: []vk.DynamicState{
					vk.DynamicStateViewport,
					vk.DynamicStateScissor,
				},
			},
			Layout:     s.pipeLayout,
			RenderPass: pass,
		}}, nil, pipelines)
	if ret != vk.Success {
		return fmt.Errorf("vkCreateGraphicsPipelines %d", ret)
	}
	s.pipeline = pipelines[0]
	return nil
}

func vkBlendFactor(f BlendFactor) vk.BlendFactor {
	switch f {
	case BlendOne:
		return vk.BlendFactorOne
	case BlendSrcAlpha:
		return vk.BlendFactorSrcAlpha
	case BlendOneMinusSrcAlpha:
		return vk.BlendFactorOneMinusSrcAlpha
	case BlendDstAlpha:
		return vk.BlendFactorDstAlpha
	case BlendOneMinusDstAlpha:
		return vk.BlendFactorOneMinusDstAlpha
	}
	return vk.BlendFactorZero
}

func vkBlendOp(o BlendOp) vk.BlendOp {
	switch o {
	case BlendSubtract:
		return vk.BlendOpSubtract
	case BlendMin:
		return vk.BlendOpMin
	case BlendMax:
		return vk.BlendOpMax
	}
	return vk.BlendOpAdd
}

func vkCompareOp(o CompareOp) vk.CompareOp {
	switch o {
	case CompareLess:
		return vk.CompareOpLess
	case CompareEqual:
		return vk.CompareOpEqual
	case CompareLessEqual:
		return vk.CompareOpLessOrEqual
	case CompareGreater:
		return vk.CompareOpGreater
	case CompareNotEqual:
		return vk.CompareOpNotEqual
	case CompareGreaterEqual:
		return vk.CompareOpGreaterOrEqual
	case CompareAlways:
		return vk.CompareOpAlways
	}
	return vk.CompareOpNever
}

func (vr *vulkanBackend) destroyShader(s *vulkanShader) {
	vk.DestroyPipeline(vr.dev, s.pipeline, nil)
	vk.DestroyPipelineLayout(vr.dev, s.pipeLayout, nil)
	for _, m := range s.modules {
		vk.DestroyShaderModule(vr.dev, m, nil)
	}
}

func (vr *vulkanBackend) DestroyShader(h ShaderHandle) {
	ih := cvt[Shader, vulkanShader](h)
	vr.destroyShader(vr.shaders.Get(ih))
	vr.shaders.Free(ih)
}

// sliceUint32 views SPIR-V bytes as the word slice the API wants.
func sliceUint32(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) | uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
	}
	return words
}

// =============================================================================
// render pass / framebuffer caches

// renderPassFor returns a cached pass compatible with the given
// formats. Load ops are clear for owned targets; compatibility in
// Vulkan ignores them.
func (vr *vulkanBackend) renderPassFor(colors []vk.Format, depth vk.Format, samples uint8) vk.RenderPass {
	key := uint64(depth)<<32 | uint64(samples)<<24
	for i, f := range colors {
		key ^= uint64(f) << (uint(i) * 8)
	}
	if pass, ok := vr.passCache[key]; ok {
		return pass
	}

	atts := make([]vk.AttachmentDescription, 0, len(colors)+1)
	colorRefs := make([]vk.AttachmentReference, len(colors))
	for i, f := range colors {
		colorRefs[i] = vk.AttachmentReference{
			Attachment: uint32(i),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}
		atts = append(atts, vk.AttachmentDescription{
			Format:        f,
			Samples:       vk.SampleCountFlagBits(samples),
			LoadOp:        vk.AttachmentLoadOpClear,
			StoreOp:       vk.AttachmentStoreOpStore,
			InitialLayout: vk.ImageLayoutUndefined,
			FinalLayout:   vk.ImageLayoutColorAttachmentOptimal,
		})
	}
	sub := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorRefs)),
		PColorAttachments:    colorRefs,
	}
	if depth != vk.FormatUndefined {
		atts = append(atts, vk.AttachmentDescription{
			Format:        depth,
			Samples:       vk.SampleCountFlagBits(samples),
			LoadOp:        vk.AttachmentLoadOpClear,
			StoreOp:       vk.AttachmentStoreOpDontCare,
			InitialLayout: vk.ImageLayoutUndefined,
			FinalLayout:   vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
		sub.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: uint32(len(colors)),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
	}
	var pass vk.RenderPass
	vk.CreateRenderPass(vr.dev, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(atts)),
		PAttachments:    atts,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{sub},
	}, nil, &pass)
	vr.passCache[key] = pass
	return pass
}

// framebufferFor returns a cached framebuffer for the pass and views.
// Render pass and image view handles are non-dispatchable 64 bit
// values, so they hash directly.
func (vr *vulkanBackend) framebufferFor(pass vk.RenderPass, views []vk.ImageView, w, h uint32) vk.Framebuffer {
	key := uint64(pass) ^ uint64(w)<<40 ^ uint64(h)<<20
	for _, v := range views {
		key ^= uint64(v)
	}
	if fb, ok := vr.fbCache[key]; ok {
		return fb
	}
	var fb vk.Framebuffer
	vk.CreateFramebuffer(vr.dev, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           w,
		Height:          h,
		Layers:          1,
	}, nil, &fb)
	vr.fbCache[key] = fb
	return fb
}

// =============================================================================
// stream translation

// translate records one command stream into a reusable command
// buffer from the frame's pool.
func (vr *vulkanBackend) translate(f *Frame, frame *vulkanFrame, s *Stream) (vk.CommandBuffer, error) {
	if frame.used == len(frame.buffers) {
		cbs := make([]vk.CommandBuffer, 1)
		ret := vk.AllocateCommandBuffers(vr.dev, &vk.CommandBufferAllocateInfo{
			SType:              vk.StructureTypeCommandBufferAllocateInfo,
			CommandPool:        vr.cmdPool,
			Level:              vk.CommandBufferLevelPrimary,
			CommandBufferCount: 1,
		}, cbs)
		if ret != vk.Success {
			return nil, fmt.Errorf("render: vkAllocateCommandBuffers %d", ret)
		}
		frame.buffers = append(frame.buffers, cbs[0])
	}
	cb := frame.buffers[frame.used]
	frame.used++

	vk.ResetCommandBuffer(cb, 0)
	vk.BeginCommandBuffer(cb, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	var terr error
	err := s.Decode(func(c Command) bool {
		if terr = vr.record(f, cb, c); terr != nil {
			return false
		}
		return true
	})
	vk.EndCommandBuffer(cb)
	if err != nil {
		return nil, err
	}
	return cb, terr
}

// record translates one decoded command.
func (vr *vulkanBackend) record(f *Frame, cb vk.CommandBuffer, c Command) error {
	switch cmd := c.(type) {
	case *BeginRenderPass:
		return vr.beginPass(f, cb, cmd)
	case *EndRenderPass:
		vk.CmdEndRenderPass(cb)
	case *SetViewport:
		vk.CmdSetViewport(cb, 0, 1, []vk.Viewport{{
			X:        cmd.X,
			Y:        cmd.Y,
			Width:    float32(cmd.Width),
			Height:   float32(cmd.Height),
			MinDepth: cmd.MinDepth,
			MaxDepth: cmd.MaxDepth,
		}})
	case *SetScissors:
		vk.CmdSetScissor(cb, 0, 1, []vk.Rect2D{{
			Offset: vk.Offset2D{X: int32(cmd.X), Y: int32(cmd.Y)},
			Extent: vk.Extent2D{Width: uint32(cmd.Width), Height: uint32(cmd.Height)},
		}})
	case *BindPipeline:
		s := vr.shaders.Get(cvt[Shader, vulkanShader](cmd.Shader))
		bind := vk.PipelineBindPointGraphics
		if s.compute {
			bind = vk.PipelineBindPointCompute
		}
		vk.CmdBindPipeline(cb, bind, s.pipeline)
		vr.curShader = cmd.Shader
	case *DrawInstanced:
		vk.CmdDraw(cb, cmd.VertexCountPerInstance, cmd.InstanceCount,
			cmd.StartVertexLocation, cmd.StartInstanceLocation)
	case *DrawIndexedInstanced:
		vk.CmdDrawIndexed(cb, cmd.IndexCountPerInstance, cmd.InstanceCount,
			cmd.StartIndexLocation, int32(cmd.BaseVertexLocation), cmd.StartInstanceLocation)
	case *DrawIndexedIndirect:
		b := vr.buffers.Get(cvt[Buffer, vulkanBuffer](cmd.IndirectBuffer))
		vk.CmdDrawIndexedIndirect(cb, b.buffer, vk.DeviceSize(cmd.BufferOffset),
			uint32(cmd.Count), 20) // sizeof VkDrawIndexedIndirectCommand.
	case *CopyResource:
		src := vr.buffers.Get(cvt[Buffer, vulkanBuffer](cmd.Source))
		dst := vr.buffers.Get(cvt[Buffer, vulkanBuffer](cmd.Destination))
		vk.CmdCopyBuffer(cb, src.buffer, dst.buffer, 1, []vk.BufferCopy{{
			Size: vk.DeviceSize(min(src.desc.Size, dst.desc.Size)),
		}})
	case *CopyBufferToTexture2D:
		tex := vr.textures.Get(cvt[Texture, vulkanTexture](cmd.Destination))
		regions := ViewSpan[TextureCopyRegion](f, cmd.Uploads, int(cmd.MipLevels))
		for mip, r := range regions {
			b := vr.buffers.Get(cvt[Buffer, vulkanBuffer](r.Staging))
			vk.CmdCopyBufferToImage(cb, b.buffer, tex.image,
				vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{{
					BufferOffset: vk.DeviceSize(r.Offset),
					ImageSubresource: vk.ImageSubresourceLayers{
						AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
						MipLevel:       uint32(mip),
						BaseArrayLayer: uint32(cmd.DestSlice),
						LayerCount:     1,
					},
					ImageExtent: vk.Extent3D{
						Width:  uint32(r.Width),
						Height: uint32(r.Height),
						Depth:  1,
					},
				}})
		}
	case *CopyTexture2DToTexture2D:
		src := vr.textures.Get(cvt[Texture, vulkanTexture](cmd.Source))
		dst := vr.textures.Get(cvt[Texture, vulkanTexture](cmd.Dest))
		vk.CmdCopyImage(cb,
			src.image, vk.ImageLayoutTransferSrcOptimal,
			dst.image, vk.ImageLayoutTransferDstOptimal,
			1, []vk.ImageCopy{{
				SrcSubresource: vk.ImageSubresourceLayers{
					AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
					MipLevel:       uint32(cmd.SrcMip),
					BaseArrayLayer: uint32(cmd.SrcLayer),
					LayerCount:     1,
				},
				DstSubresource: vk.ImageSubresourceLayers{
					AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
					MipLevel:       uint32(cmd.DestMip),
					BaseArrayLayer: uint32(cmd.DestLayer),
					LayerCount:     1,
				},
				Extent: vk.Extent3D{
					Width:  uint32(src.desc.Width) >> cmd.SrcMip,
					Height: uint32(src.desc.Height) >> cmd.SrcMip,
					Depth:  1,
				},
			}})
	case *BindVertexBuffers:
		b := vr.buffers.Get(cvt[Buffer, vulkanBuffer](cmd.Buffer))
		vk.CmdBindVertexBuffers(cb, uint32(cmd.Slot), 1,
			[]vk.Buffer{b.buffer}, []vk.DeviceSize{vk.DeviceSize(cmd.Offset)})
	case *BindIndexBuffers:
		b := vr.buffers.Get(cvt[Buffer, vulkanBuffer](cmd.Buffer))
		indexType := vk.IndexTypeUint32
		if cmd.BitDepth == 16 {
			indexType = vk.IndexTypeUint16
		}
		vk.CmdBindIndexBuffer(cb, b.buffer, vk.DeviceSize(cmd.Offset), indexType)
	case *BindGroupCommand:
		g := vr.groups.Get(cvt[BindGroup, vulkanBindGroup](cmd.Group))
		s := vr.shaders.Get(cvt[Shader, vulkanShader](vr.curShader))
		bind := vk.PipelineBindPointGraphics
		if s.compute {
			bind = vk.PipelineBindPointCompute
		}
		vk.CmdBindDescriptorSets(cb, bind, s.pipeLayout,
			uint32(cmd.Set), 1, []vk.DescriptorSet{g.set}, 0, nil)
	case *BindConstants:
		s := vr.shaders.Get(cvt[Shader, vulkanShader](vr.curShader))
		data := ViewBytes(f, cmd.Data, uint32(cmd.Size))
		vk.CmdPushConstants(cb, s.pipeLayout,
			vk.ShaderStageFlags(vk.ShaderStageAllGraphics|vk.ShaderStageComputeBit),
			uint32(cmd.Offset), uint32(cmd.Size), unsafe.Pointer(&data[0]))
	case *Dispatch:
		vk.CmdDispatch(cb, cmd.GroupsX, cmd.GroupsY, cmd.GroupsZ)
	case *Barrier:
		vr.barrier(f, cb, cmd)
	default:
		return fmt.Errorf("render: unhandled command %T", c)
	}
	return nil
}

// beginPass resolves attachments, acquires swapchain images on first
// use, and begins a cached render pass.
func (vr *vulkanBackend) beginPass(f *Frame, cb vk.CommandBuffer, cmd *BeginRenderPass) error {
	atts := ViewSpan[ColorAttachment](f, cmd.ColorAttachments, int(cmd.ColorAttachmentCount))

	views := make([]vk.ImageView, 0, len(atts)+1)
	formats := make([]vk.Format, 0, len(atts))
	clears := make([]vk.ClearValue, 0, len(atts)+1)
	width, height := uint32(0), uint32(0)
	samples := uint8(1)

	for _, att := range atts {
		target := vr.targets.Get(cvt[RenderTarget, vulkanRenderTarget](att.Target))
		if target.desc.Swapchain.Alive() {
			sc := vr.swapchains.Get(cvt[Swapchain, vulkanSwapchain](target.desc.Swapchain))
			if err := vr.acquire(target.desc.Swapchain, sc); err != nil {
				return err
			}
			views = append(views, sc.views[sc.image])
			formats = append(formats, sc.format)
			width, height = sc.desc.Width, sc.desc.Height
		} else {
			th := target.textures[vr.frameIndex]
			tex := vr.textures.Get(cvt[Texture, vulkanTexture](th))
			views = append(views, tex.views[att.ViewIndex])
			formats = append(formats, vkFormats[tex.desc.Format])
			width, height = uint32(tex.desc.Width), uint32(tex.desc.Height)
			if tex.desc.SampleCount > samples {
				samples = tex.desc.SampleCount
			}
		}
		var clear vk.ClearValue
		clear.SetColor([]float32{
			att.ClearColor.X, att.ClearColor.Y, att.ClearColor.Z, att.ClearColor.W,
		})
		clears = append(clears, clear)
	}

	depthFormat := vk.FormatUndefined
	if cmd.Depth != NoneOffset {
		datt := View[DepthAttachment](f, cmd.Depth)
		target := vr.targets.Get(cvt[RenderTarget, vulkanRenderTarget](datt.Target))
		th := target.textures[vr.frameIndex]
		tex := vr.textures.Get(cvt[Texture, vulkanTexture](th))
		views = append(views, tex.views[datt.ViewIndex])
		depthFormat = vkFormats[tex.desc.Format]
		var clear vk.ClearValue
		clear.SetDepthStencil(datt.ClearDepth, datt.ClearStencil)
		clears = append(clears, clear)
	}

	pass := vr.renderPassFor(formats, depthFormat, samples)
	fb := vr.framebufferFor(pass, views, width, height)
	vk.CmdBeginRenderPass(cb, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: fb,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: width, Height: height},
		},
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}, vk.SubpassContentsInline)
	vr.curPass = pass
	return nil
}

// acquire grabs the next swapchain image once per frame.
func (vr *vulkanBackend) acquire(h SwapchainHandle, sc *vulkanSwapchain) error {
	for _, pr := range vr.boundTargets {
		if pr.handle == h {
			return nil // already acquired this frame.
		}
	}
	ret := vk.AcquireNextImage(vr.dev, sc.swapchain, ^uint64(0),
		sc.acquired[sc.frame], vk.NullFence, &sc.image)
	switch ret {
	case vk.Success, vk.Suboptimal:
	case vk.ErrorOutOfDate:
		return fmt.Errorf("render: swapchain out of date")
	case vk.ErrorDeviceLost:
		return ErrDeviceLost
	default:
		return fmt.Errorf("render: vkAcquireNextImageKHR %d", ret)
	}
	vr.boundTargets = append(vr.boundTargets, presentRecord{handle: h, image: sc.image})
	return nil
}

// =============================================================================
// barriers

// texture states map to layouts, access masks, and stages.
func stateToLayout(s TextureState) (vk.ImageLayout, vk.AccessFlags, vk.PipelineStageFlags) {
	switch s {
	case StateColorAtt:
		return vk.ImageLayoutColorAttachmentOptimal,
			vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	case StateDepthAtt:
		return vk.ImageLayoutDepthStencilAttachmentOptimal,
			vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
	case StateShaderRead:
		return vk.ImageLayoutShaderReadOnlyOptimal,
			vk.AccessFlags(vk.AccessShaderReadBit),
			vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	case StatePresent:
		return vk.ImageLayoutPresentSrc,
			vk.AccessFlags(0),
			vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	case StateTransferSrc:
		return vk.ImageLayoutTransferSrcOptimal,
			vk.AccessFlags(vk.AccessTransferReadBit),
			vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case StateTransferDst:
		return vk.ImageLayoutTransferDstOptimal,
			vk.AccessFlags(vk.AccessTransferWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	}
	return vk.ImageLayoutUndefined, 0,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
}

// barrier batches the recorded transitions into one native call,
// deriving source states from the tracker.
func (vr *vulkanBackend) barrier(f *Frame, cb vk.CommandBuffer, cmd *Barrier) {
	texBarriers := ViewSpan[TextureBarrier](f, cmd.TextureBarriers, int(cmd.TextureBarrierCount))
	bufBarriers := ViewSpan[ResourceBarrier](f, cmd.ResourceBarriers, int(cmd.ResourceBarrierCount))

	srcStages := vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	dstStages := vk.PipelineStageFlags(0)
	images := make([]vk.ImageMemoryBarrier, 0, len(texBarriers))
	for _, tb := range texBarriers {
		newLayout, dstAccess, dstStage := stateToLayout(tb.State)
		var image vk.Image
		var oldLayout vk.ImageLayout
		var aspect vk.ImageAspectFlags
		if tb.IsSwapchain {
			target := vr.targets.Get(cvt[RenderTarget, vulkanRenderTarget](tb.Target))
			sc := vr.swapchains.Get(cvt[Swapchain, vulkanSwapchain](target.desc.Swapchain))
			image = sc.images[sc.image]
			oldLayout = vk.ImageLayoutColorAttachmentOptimal
			aspect = vk.ImageAspectFlags(vk.ImageAspectColorBit)
		} else {
			tex := vr.textures.Get(cvt[Texture, vulkanTexture](tb.Texture))
			prev := vr.tracker.textureState(tb.Texture, tb.State)
			oldLayout, _, _ = stateToLayout(prev)
			image = tex.image
			aspect = vk.ImageAspectFlags(vk.ImageAspectColorBit)
			if tex.desc.Flags&TextureDepthAtt != 0 {
				aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
			}
			tex.layout = newLayout
		}
		dstStages |= dstStage
		images = append(images, vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			DstAccessMask:       dstAccess,
			OldLayout:           oldLayout,
			NewLayout:           newLayout,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               image,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: aspect,
				LevelCount: vk.RemainingMipLevels,
				LayerCount: vk.RemainingArrayLayers,
			},
		})
	}

	buffers := make([]vk.BufferMemoryBarrier, 0, len(bufBarriers))
	for _, bb := range bufBarriers {
		b := vr.buffers.Get(cvt[Buffer, vulkanBuffer](bb.Buffer))
		vr.tracker.bufferState(bb.Buffer, bb.State)
		_, dstAccess, dstStage := stateToLayout(bb.State)
		dstStages |= dstStage
		buffers = append(buffers, vk.BufferMemoryBarrier{
			SType:               vk.StructureTypeBufferMemoryBarrier,
			DstAccessMask:       dstAccess,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Buffer:              b.buffer,
			Size:                vk.DeviceSize(b.desc.Size),
		})
	}
	if dstStages == 0 {
		dstStages = vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	}
	srcStages = vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	vk.CmdPipelineBarrier(cb, srcStages, dstStages, 0,
		0, nil,
		uint32(len(buffers)), buffers,
		uint32(len(images)), images)
}
