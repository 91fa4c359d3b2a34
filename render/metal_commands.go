// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

//go:build darwin && !ios

package render

// metal_commands.go translates decoded commands onto Metal encoders.
// One render or compute or blit encoder is open at a time; switching
// command categories ends the current encoder.

import (
	"fmt"
	"unsafe"

	"github.com/gazed/sfg/internal/objc"
)

// pushConstantSlot is the buffer argument table index reserved for
// inline constants, mirroring the bind group slots below it.
const pushConstantSlot = 30

// record translates one decoded command.
func (mr *metalBackend) record(f *Frame, c Command) error {
	switch cmd := c.(type) {
	case *BeginRenderPass:
		return mr.beginPass(f, cmd)
	case *EndRenderPass:
		mr.endEncoders()
	case *SetViewport:
		vp := mtlViewport{
			x: float64(cmd.X), y: float64(cmd.Y),
			w: float64(cmd.Width), h: float64(cmd.Height),
			znear: float64(cmd.MinDepth), zfar: float64(cmd.MaxDepth),
		}
		objc.Send(mr.renderEnc, objc.Sel("setViewport:"), objc.Struct(vp, objc.MTLViewportType))
	case *SetScissors:
		sc := mtlScissor{
			x: uint64(cmd.X), y: uint64(cmd.Y),
			w: uint64(cmd.Width), h: uint64(cmd.Height),
		}
		objc.Send(mr.renderEnc, objc.Sel("setScissorRect:"), objc.Struct(sc, objc.MTLScissorRectType))
	case *BindPipeline:
		mr.bindPipeline(cmd.Shader)
	case *DrawInstanced:
		s := mr.shaders.Get(cvt[Shader, metalShader](mr.curShader))
		objc.Send(mr.renderEnc,
			objc.Sel("drawPrimitives:vertexStart:vertexCount:instanceCount:baseInstance:"),
			objc.U64(s.primitive),
			objc.U64(uint64(cmd.StartVertexLocation)),
			objc.U64(uint64(cmd.VertexCountPerInstance)),
			objc.U64(uint64(cmd.InstanceCount)),
			objc.U64(uint64(cmd.StartInstanceLocation)))
	case *DrawIndexedInstanced:
		s := mr.shaders.Get(cvt[Shader, metalShader](mr.curShader))
		indexType, indexSize := uint64(1), uint64(4)
		if mr.curIndex16 {
			indexType, indexSize = 0, 2
		}
		objc.Send(mr.renderEnc,
			objc.Sel("drawIndexedPrimitives:indexCount:indexType:indexBuffer:indexBufferOffset:instanceCount:baseVertex:baseInstance:"),
			objc.U64(s.primitive),
			objc.U64(uint64(cmd.IndexCountPerInstance)),
			objc.U64(indexType),
			objc.P(uintptr(mr.curIndexBuf)),
			objc.U64(mr.curIndexOff+uint64(cmd.StartIndexLocation)*indexSize),
			objc.U64(uint64(cmd.InstanceCount)),
			objc.I64(int64(cmd.BaseVertexLocation)),
			objc.U64(uint64(cmd.StartInstanceLocation)))
	case *DrawIndexedIndirect:
		s := mr.shaders.Get(cvt[Shader, metalShader](mr.curShader))
		b := mr.buffers.Get(cvt[Buffer, metalBuffer](cmd.IndirectBuffer))
		indexType := uint64(1)
		if mr.curIndex16 {
			indexType = 0
		}
		// Metal encodes one indirect draw per call.
		const stride = 20 // MTLDrawIndexedPrimitivesIndirectArguments.
		for i := uint64(0); i < uint64(cmd.Count); i++ {
			objc.Send(mr.renderEnc,
				objc.Sel("drawIndexedPrimitives:indexType:indexBuffer:indexBufferOffset:indirectBuffer:indirectBufferOffset:"),
				objc.U64(s.primitive),
				objc.U64(indexType),
				objc.P(uintptr(mr.curIndexBuf)),
				objc.U64(mr.curIndexOff),
				objc.P(uintptr(b.buffer)),
				objc.U64(uint64(cmd.BufferOffset)+i*stride))
		}
	case *CopyResource:
		src := mr.buffers.Get(cvt[Buffer, metalBuffer](cmd.Source))
		dst := mr.buffers.Get(cvt[Buffer, metalBuffer](cmd.Destination))
		blit := mr.blit()
		objc.Send(blit,
			objc.Sel("copyFromBuffer:sourceOffset:toBuffer:destinationOffset:size:"),
			objc.P(uintptr(src.buffer)), objc.U64(0),
			objc.P(uintptr(dst.buffer)), objc.U64(0),
			objc.U64(uint64(min(src.desc.Size, dst.desc.Size))))
	case *CopyBufferToTexture2D:
		tex := mr.textures.Get(cvt[Texture, metalTexture](cmd.Destination))
		regions := ViewSpan[TextureCopyRegion](f, cmd.Uploads, int(cmd.MipLevels))
		blit := mr.blit()
		for mip, r := range regions {
			b := mr.buffers.Get(cvt[Buffer, metalBuffer](r.Staging))
			size := struct{ w, h, d uint64 }{uint64(r.Width), uint64(r.Height), 1}
			objc.Send(blit,
				objc.Sel("copyFromBuffer:sourceOffset:sourceBytesPerRow:sourceBytesPerImage:sourceSize:toTexture:destinationSlice:destinationLevel:destinationOrigin:"),
				objc.P(uintptr(b.buffer)),
				objc.U64(uint64(r.Offset)),
				objc.U64(uint64(r.Width)*uint64(r.Bpp)),
				objc.U64(uint64(r.Width)*uint64(r.Height)*uint64(r.Bpp)),
				objc.Struct(size, objc.MTLSizeType),
				objc.P(uintptr(tex.texture)),
				objc.U64(uint64(cmd.DestSlice)),
				objc.U64(uint64(mip)),
				objc.Struct(struct{ x, y, z uint64 }{}, objc.MTLOriginType))
		}
	case *CopyTexture2DToTexture2D:
		src := mr.textures.Get(cvt[Texture, metalTexture](cmd.Source))
		dst := mr.textures.Get(cvt[Texture, metalTexture](cmd.Dest))
		blit := mr.blit()
		objc.Send(blit,
			objc.Sel("copyFromTexture:sourceSlice:sourceLevel:toTexture:destinationSlice:destinationLevel:sliceCount:levelCount:"),
			objc.P(uintptr(src.texture)),
			objc.U64(uint64(cmd.SrcLayer)), objc.U64(uint64(cmd.SrcMip)),
			objc.P(uintptr(dst.texture)),
			objc.U64(uint64(cmd.DestLayer)), objc.U64(uint64(cmd.DestMip)),
			objc.U64(1), objc.U64(1))
	case *BindVertexBuffers:
		b := mr.buffers.Get(cvt[Buffer, metalBuffer](cmd.Buffer))
		objc.Send(mr.renderEnc, objc.Sel("setVertexBuffer:offset:atIndex:"),
			objc.P(uintptr(b.buffer)), objc.U64(cmd.Offset), objc.U64(uint64(cmd.Slot)))
	case *BindIndexBuffers:
		b := mr.buffers.Get(cvt[Buffer, metalBuffer](cmd.Buffer))
		mr.curIndexBuf = b.buffer
		mr.curIndexOff = cmd.Offset
		mr.curIndex16 = cmd.BitDepth == 16
	case *BindGroupCommand:
		mr.bindGroup(cmd.Group)
	case *BindConstants:
		data := ViewBytes(f, cmd.Data, uint32(cmd.Size))
		if mr.computeEnc != 0 {
			objc.Send(mr.computeEnc, objc.Sel("setBytes:length:atIndex:"),
				objc.P(uintptr(unsafe.Pointer(&data[0]))),
				objc.U64(uint64(cmd.Size)), objc.U64(pushConstantSlot))
		} else {
			objc.Send(mr.renderEnc, objc.Sel("setVertexBytes:length:atIndex:"),
				objc.P(uintptr(unsafe.Pointer(&data[0]))),
				objc.U64(uint64(cmd.Size)), objc.U64(pushConstantSlot))
			objc.Send(mr.renderEnc, objc.Sel("setFragmentBytes:length:atIndex:"),
				objc.P(uintptr(unsafe.Pointer(&data[0]))),
				objc.U64(uint64(cmd.Size)), objc.U64(pushConstantSlot))
		}
	case *Dispatch:
		enc := mr.computeEncoder()
		s := mr.shaders.Get(cvt[Shader, metalShader](mr.curShader))
		objc.Send(enc, objc.Sel("setComputePipelineState:"), objc.P(uintptr(s.pipeline)))
		groups := struct{ x, y, z uint64 }{uint64(cmd.GroupsX), uint64(cmd.GroupsY), uint64(cmd.GroupsZ)}
		threads := struct{ x, y, z uint64 }{8, 8, 1}
		objc.Send(enc, objc.Sel("dispatchThreadgroups:threadsPerThreadgroup:"),
			objc.Struct(groups, objc.MTLSizeType),
			objc.Struct(threads, objc.MTLSizeType))
	case *Barrier:
		// Metal tracks hazards on its own resources; record the
		// destination states so cross-frame queries stay coherent.
		for _, tb := range ViewSpan[TextureBarrier](f, cmd.TextureBarriers, int(cmd.TextureBarrierCount)) {
			if !tb.IsSwapchain {
				mr.tracker.textureState(tb.Texture, tb.State)
			}
		}
		for _, bb := range ViewSpan[ResourceBarrier](f, cmd.ResourceBarriers, int(cmd.ResourceBarrierCount)) {
			mr.tracker.bufferState(bb.Buffer, bb.State)
		}
	default:
		return fmt.Errorf("render: unhandled command %T", c)
	}
	return nil
}

// bindPipeline sets the render pipeline and depth state on the open
// render encoder. Compute pipelines bind lazily at dispatch.
func (mr *metalBackend) bindPipeline(h ShaderHandle) {
	mr.curShader = h
	s := mr.shaders.Get(cvt[Shader, metalShader](h))
	if s.compute || mr.renderEnc == 0 {
		return
	}
	objc.Send(mr.renderEnc, objc.Sel("setRenderPipelineState:"), objc.P(uintptr(s.pipeline)))
	if s.depthState != 0 {
		objc.Send(mr.renderEnc, objc.Sel("setDepthStencilState:"), objc.P(uintptr(s.depthState)))
	}
	cull := map[CullMode]uint64{CullNone: 0, CullFront: 1, CullBack: 2}[s.desc.Cull]
	objc.Send(mr.renderEnc, objc.Sel("setCullMode:"), objc.U64(cull))
	winding := uint64(1) // counter clockwise.
	if s.desc.Front == FrontCW {
		winding = 0
	}
	objc.Send(mr.renderEnc, objc.Sel("setFrontFacingWinding:"), objc.U64(winding))
	if s.desc.Polygon == PolygonLine {
		objc.Send(mr.renderEnc, objc.Sel("setTriangleFillMode:"), objc.U64(1))
	}
}

// bindGroup walks the group entries and binds each resource at its
// slot for both vertex and fragment stages (or the compute stage).
func (mr *metalBackend) bindGroup(h BindGroupHandle) {
	g := mr.groups.Get(cvt[BindGroup, metalBindGroup](h))
	for _, e := range g.desc.Entries {
		switch e.Type {
		case BindingTexture:
			t := mr.textures.Get(cvt[Texture, metalTexture](e.Texture))
			view := t.views[e.View]
			if mr.computeEnc != 0 {
				objc.Send(mr.computeEnc, objc.Sel("setTexture:atIndex:"),
					objc.P(uintptr(view)), objc.U64(uint64(e.Slot)))
				continue
			}
			objc.Send(mr.renderEnc, objc.Sel("setFragmentTexture:atIndex:"),
				objc.P(uintptr(view)), objc.U64(uint64(e.Slot)))
		case BindingSampler:
			s := mr.samplers.Get(cvt[Sampler, metalSampler](e.Sampler))
			if mr.computeEnc != 0 {
				objc.Send(mr.computeEnc, objc.Sel("setSamplerState:atIndex:"),
					objc.P(uintptr(s.sampler)), objc.U64(uint64(e.Slot)))
				continue
			}
			objc.Send(mr.renderEnc, objc.Sel("setFragmentSamplerState:atIndex:"),
				objc.P(uintptr(s.sampler)), objc.U64(uint64(e.Slot)))
		case BindingUniform, BindingStorage:
			b := mr.buffers.Get(cvt[Buffer, metalBuffer](e.Buffer))
			if mr.computeEnc != 0 {
				objc.Send(mr.computeEnc, objc.Sel("setBuffer:offset:atIndex:"),
					objc.P(uintptr(b.buffer)), objc.U64(uint64(e.Offset)), objc.U64(uint64(e.Slot)))
				continue
			}
			objc.Send(mr.renderEnc, objc.Sel("setVertexBuffer:offset:atIndex:"),
				objc.P(uintptr(b.buffer)), objc.U64(uint64(e.Offset)), objc.U64(uint64(e.Slot)))
			objc.Send(mr.renderEnc, objc.Sel("setFragmentBuffer:offset:atIndex:"),
				objc.P(uintptr(b.buffer)), objc.U64(uint64(e.Offset)), objc.U64(uint64(e.Slot)))
		}
	}
}

// beginPass builds an MTLRenderPassDescriptor from the recorded
// attachments and opens a render encoder.
func (mr *metalBackend) beginPass(f *Frame, cmd *BeginRenderPass) error {
	mr.endEncoders()
	rp := objc.SendClass(objc.GetClass("MTLRenderPassDescriptor"), objc.Sel("renderPassDescriptor"))
	colors := objc.Send(rp, objc.Sel("colorAttachments"))

	atts := ViewSpan[ColorAttachment](f, cmd.ColorAttachments, int(cmd.ColorAttachmentCount))
	for i, att := range atts {
		ca := objc.Send(colors, objc.Sel("objectAtIndexedSubscript:"), objc.U64(uint64(i)))
		target := mr.targets.Get(cvt[RenderTarget, metalRenderTarget](att.Target))
		var texture objc.ID
		if target.desc.Swapchain.Alive() {
			drawable, err := mr.acquire(target.desc.Swapchain)
			if err != nil {
				return err
			}
			texture = objc.Send(drawable, objc.Sel("texture"))
		} else {
			th := target.textures[mr.frameIndex]
			t := mr.textures.Get(cvt[Texture, metalTexture](th))
			texture = t.views[att.ViewIndex]
		}
		objc.Send(ca, objc.Sel("setTexture:"), objc.P(uintptr(texture)))
		load := uint64(mtlLoadLoad)
		switch att.Load {
		case LoadOpClear:
			load = mtlLoadClear
		case LoadOpDontCare:
			load = mtlLoadDontCare
		}
		objc.Send(ca, objc.Sel("setLoadAction:"), objc.U64(load))
		store := uint64(mtlStoreStore)
		if att.Store == StoreOpDontCare {
			store = mtlStoreDontCare
		}
		if att.Resolve != ResolveNone && att.ResolveTexture.Alive() {
			rt := mr.textures.Get(cvt[Texture, metalTexture](att.ResolveTexture))
			objc.Send(ca, objc.Sel("setResolveTexture:"), objc.P(uintptr(rt.views[att.ResolveView])))
			store = mtlStoreResolve
		}
		objc.Send(ca, objc.Sel("setStoreAction:"), objc.U64(store))
		clear := mtlClearColor{
			r: float64(att.ClearColor.X), g: float64(att.ClearColor.Y),
			b: float64(att.ClearColor.Z), a: float64(att.ClearColor.W),
		}
		objc.Send(ca, objc.Sel("setClearColor:"), objc.Struct(clear, objc.MTLClearColorType))
	}

	if cmd.Depth != NoneOffset {
		datt := View[DepthAttachment](f, cmd.Depth)
		da := objc.Send(rp, objc.Sel("depthAttachment"))
		target := mr.targets.Get(cvt[RenderTarget, metalRenderTarget](datt.Target))
		th := target.textures[mr.frameIndex]
		t := mr.textures.Get(cvt[Texture, metalTexture](th))
		objc.Send(da, objc.Sel("setTexture:"), objc.P(uintptr(t.views[datt.ViewIndex])))
		load := uint64(mtlLoadClear)
		if datt.DepthLoad == LoadOpLoad {
			load = mtlLoadLoad
		}
		objc.Send(da, objc.Sel("setLoadAction:"), objc.U64(load))
		objc.Send(da, objc.Sel("setClearDepth:"), objc.F64(float64(datt.ClearDepth)))
		store := uint64(mtlStoreDontCare)
		if datt.DepthStore == StoreOpStore {
			store = mtlStoreStore
		}
		objc.Send(da, objc.Sel("setStoreAction:"), objc.U64(store))
	}

	mr.renderEnc = objc.Send(mr.cmdBuffer,
		objc.Sel("renderCommandEncoderWithDescriptor:"), objc.P(uintptr(rp)))
	if mr.renderEnc == 0 {
		return fmt.Errorf("render: renderCommandEncoder failed")
	}
	// re-apply the bound pipeline if one was set before the pass.
	if mr.curShader.Alive() {
		mr.bindPipeline(mr.curShader)
	}
	return nil
}

// acquire grabs the swapchain's drawable once per frame.
func (mr *metalBackend) acquire(h SwapchainHandle) (objc.ID, error) {
	for _, d := range mr.drawables {
		if d.handle == h {
			return d.drawable, nil
		}
	}
	sc := mr.swapchains.Get(cvt[Swapchain, metalSwapchain](h))
	drawable := objc.Send(sc.layer, objc.Sel("nextDrawable"))
	if drawable == 0 {
		return 0, fmt.Errorf("render: nextDrawable returned nil")
	}
	objc.Retain(drawable)
	mr.drawables = append(mr.drawables, metalDrawable{handle: h, drawable: drawable})
	return drawable, nil
}

// blit returns the open blit encoder, ending any render or compute
// encoder first.
func (mr *metalBackend) blit() objc.ID {
	if mr.blitEnc != 0 {
		return mr.blitEnc
	}
	mr.endEncoders()
	mr.blitEnc = objc.Send(mr.cmdBuffer, objc.Sel("blitCommandEncoder"))
	return mr.blitEnc
}

// computeEncoder returns the open compute encoder, ending others.
func (mr *metalBackend) computeEncoder() objc.ID {
	if mr.computeEnc != 0 {
		return mr.computeEnc
	}
	mr.endEncoders()
	mr.computeEnc = objc.Send(mr.cmdBuffer, objc.Sel("computeCommandEncoder"))
	return mr.computeEnc
}
