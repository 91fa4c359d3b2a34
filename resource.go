// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package sfg

// resource.go is the resource manager: one typed storage per resource
// type, each pairing a generational pool with a content-hash map so
// loading the same file twice returns the same handle.

import (
	"hash/crc64"
	"log/slog"
	"os"
	"sync"

	"github.com/gazed/sfg/load"
	"github.com/gazed/sfg/memory"
	"github.com/gazed/sfg/render"
)

// resourceFlags track a resource's GPU lifecycle.
type resourceFlags uint8

const (
	resourcePendingUpload resourceFlags = 1 << iota
	resourceHwExists
)

// storage pairs a pool with the hash → handle map.
type storage[T any] struct {
	pool   *memory.Pool[T]
	byHash map[uint64]memory.Handle[T]
}

func newStorage[T any](capacity int) *storage[T] {
	return &storage[T]{
		pool:   memory.NewPool[T](capacity),
		byHash: map[uint64]memory.Handle[T]{},
	}
}

// create returns the existing handle for hash, or allocates a new
// slot. created reports which happened.
func (s *storage[T]) create(hash uint64) (h memory.Handle[T], created bool) {
	if h, ok := s.byHash[hash]; ok && s.pool.IsValid(h) {
		return h, false
	}
	h = s.pool.Allocate()
	if hash != 0 {
		s.byHash[hash] = h
	}
	return h, true
}

// free releases the slot and unregisters its hash.
func (s *storage[T]) free(h memory.Handle[T]) {
	for hash, stored := range s.byHash {
		if stored == h {
			delete(s.byHash, hash)
			break
		}
	}
	s.pool.Free(h)
}

// =============================================================================
// resource types

// TextureRes is a CPU-side texture: decoded mip data awaiting upload
// plus the GPU handle once created.
type TextureRes struct {
	Name  string
	Hash  uint64
	Mips  []render.TextureUpload
	GPU   render.TextureHandle
	Flags resourceFlags
}

// MeshRes owns vertex and index data and the GPU buffers built from
// them.
type MeshRes struct {
	Name        string
	Vertices    []byte
	Indices     []byte
	VertexCount uint32
	IndexCount  uint32
	VertexGPU   render.BufferHandle
	IndexGPU    render.BufferHandle
	Flags       resourceFlags
}

// ShaderRes wraps a pipeline description and its GPU pipeline.
type ShaderRes struct {
	Name  string
	Desc  render.ShaderDesc
	GPU   render.ShaderHandle
	Flags resourceFlags
}

// MaterialRes binds a shader with its textures and sampler.
type MaterialRes struct {
	Name     string
	Shader   ShaderHandle
	Textures []TexHandle
	Sampler  SamplerRefHandle
}

// SamplerRes wraps a sampler description and its GPU state.
type SamplerRes struct {
	Name string
	Desc render.SamplerDesc
	GPU  render.SamplerHandle
}

// AnimationRes stores keyframed channels for one clip.
type AnimationRes struct {
	Name     string
	Duration float32
	Channels []AnimationChannel
}

// AnimationChannel animates one node's TRS component.
type AnimationChannel struct {
	Node      uint16
	Component uint8 // 0 position, 1 rotation, 2 scale.
	Times     []float32
	Values    []float32
}

// SkinRes stores joint bindings for skinned meshes.
type SkinRes struct {
	Name          string
	Joints        []uint16
	InverseBind   []float32 // 12 floats per joint, 4x3 affine.
	RootJoint     uint16
}

// typed handles for each storage.
type (
	TexHandle        = memory.Handle[TextureRes]
	MeshHandle       = memory.Handle[MeshRes]
	ShaderHandle     = memory.Handle[ShaderRes]
	MaterialHandle   = memory.Handle[MaterialRes]
	SamplerRefHandle = memory.Handle[SamplerRes]
	AnimationHandle  = memory.Handle[AnimationRes]
	SkinHandle       = memory.Handle[SkinRes]
	ModelHandle      = memory.Handle[ModelRes]
)

// =============================================================================
// manager

// pendingUpload queues texture data for the render thread.
type pendingUpload struct {
	texture TexHandle
}

// Resources owns the typed storages plus the upload and deferred
// destroy queues. Creates and destroys happen on the update thread;
// the render thread looks resources up during command translation,
// so destruction of anything referenced by an in-flight frame is
// deferred and drained at frame boundaries.
type Resources struct {
	textures   *storage[TextureRes]
	meshes     *storage[MeshRes]
	models     *storage[ModelRes]
	shaders    *storage[ShaderRes]
	materials  *storage[MaterialRes]
	animations *storage[AnimationRes]
	skins      *storage[SkinRes]
	samplers   *storage[SamplerRes]

	chunk *memory.Chunk // world-wide model span arena, set by Engine.

	mu       sync.Mutex
	uploads  []pendingUpload
	destroys []func(render.Backend)
}

func newResources(s *Settings) *Resources {
	n := s.MaxResources
	return &Resources{
		textures:   newStorage[TextureRes](n),
		meshes:     newStorage[MeshRes](n),
		models:     newStorage[ModelRes](n),
		shaders:    newStorage[ShaderRes](64),
		materials:  newStorage[MaterialRes](n),
		animations: newStorage[AnimationRes](n),
		skins:      newStorage[SkinRes](n),
		samplers:   newStorage[SamplerRes](20),
	}
}

// hashName produces the content hash for load-by-path idempotence.
func hashName(name string) uint64 {
	return crc64.Checksum([]byte(name), resourceHashTable)
}

var resourceHashTable = crc64.MakeTable(crc64.ECMA)

// =============================================================================
// textures

// CreateTexture returns a handle for the hash, reusing any existing
// resource with the same hash.
func (r *Resources) CreateTexture(hash uint64) (TexHandle, bool) {
	return r.textures.create(hash)
}

// GetTexture asserts validity and returns the resource. The
// reference is stable until the slot is freed.
func (r *Resources) GetTexture(h TexHandle) *TextureRes { return r.textures.pool.Get(h) }

// QueueTextureUpload marks the texture pending and queues it for the
// render thread.
func (r *Resources) QueueTextureUpload(h TexHandle) {
	t := r.textures.pool.Get(h)
	t.Flags |= resourcePendingUpload
	r.mu.Lock()
	r.uploads = append(r.uploads, pendingUpload{texture: h})
	r.mu.Unlock()
}

// LoadTexture decodes an image file on first load and queues its mip
// chain for GPU upload. Loading the same path twice returns the same
// handle. On failure nothing is registered: the loader logs the error
// and returns a dead handle.
func (r *Resources) LoadTexture(path string) TexHandle {
	hash := hashName(path)
	if h, ok := r.textures.byHash[hash]; ok && r.textures.pool.IsValid(h) {
		return h
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		logError("sfg: load texture", "path", path, "err", err)
		return TexHandle{}
	}
	mips, err := load.Image(raw, true)
	if err != nil {
		logError("sfg: decode texture", "path", path, "err", err)
		return TexHandle{}
	}
	h, _ := r.textures.create(hash)
	t := r.textures.pool.Get(h)
	t.Name = path
	t.Hash = hash
	t.Mips = make([]render.TextureUpload, len(mips))
	for i, m := range mips {
		t.Mips[i] = render.TextureUpload{
			Data: m.Data, Width: m.Width, Height: m.Height,
			Bpp: m.Bpp, Channels: m.Channels,
		}
	}
	r.QueueTextureUpload(h)
	return h
}

// DestroyTexture defers GPU destruction to the next frame boundary
// and frees the slot.
func (r *Resources) DestroyTexture(h TexHandle) {
	t := r.textures.pool.Get(h)
	if gpu := t.GPU; gpu.Alive() {
		r.deferDestroy(func(b render.Backend) { b.DestroyTexture(gpu) })
	}
	r.textures.free(h)
}

// =============================================================================
// meshes, shaders, materials, samplers, animations, skins

func (r *Resources) CreateMesh(hash uint64) (MeshHandle, bool) { return r.meshes.create(hash) }
func (r *Resources) GetMesh(h MeshHandle) *MeshRes             { return r.meshes.pool.Get(h) }

// DestroyMesh releases the GPU buffers at the frame boundary.
func (r *Resources) DestroyMesh(h MeshHandle) {
	m := r.meshes.pool.Get(h)
	if v, i := m.VertexGPU, m.IndexGPU; v.Alive() || i.Alive() {
		r.deferDestroy(func(b render.Backend) {
			if v.Alive() {
				b.DestroyBuffer(v)
			}
			if i.Alive() {
				b.DestroyBuffer(i)
			}
		})
	}
	r.meshes.free(h)
}

func (r *Resources) CreateShader(hash uint64) (ShaderHandle, bool) { return r.shaders.create(hash) }
func (r *Resources) GetShader(h ShaderHandle) *ShaderRes           { return r.shaders.pool.Get(h) }
func (r *Resources) DestroyShader(h ShaderHandle) {
	s := r.shaders.pool.Get(h)
	if gpu := s.GPU; gpu.Alive() {
		r.deferDestroy(func(b render.Backend) { b.DestroyShader(gpu) })
	}
	r.shaders.free(h)
}

func (r *Resources) CreateMaterial(hash uint64) (MaterialHandle, bool) {
	return r.materials.create(hash)
}
func (r *Resources) GetMaterial(h MaterialHandle) *MaterialRes { return r.materials.pool.Get(h) }
func (r *Resources) DestroyMaterial(h MaterialHandle)          { r.materials.free(h) }

func (r *Resources) CreateSampler(hash uint64) (SamplerRefHandle, bool) {
	return r.samplers.create(hash)
}
func (r *Resources) GetSampler(h SamplerRefHandle) *SamplerRes { return r.samplers.pool.Get(h) }
func (r *Resources) DestroySampler(h SamplerRefHandle) {
	s := r.samplers.pool.Get(h)
	if gpu := s.GPU; gpu.Alive() {
		r.deferDestroy(func(b render.Backend) { b.DestroySampler(gpu) })
	}
	r.samplers.free(h)
}

func (r *Resources) CreateAnimation(hash uint64) (AnimationHandle, bool) {
	return r.animations.create(hash)
}
func (r *Resources) GetAnimation(h AnimationHandle) *AnimationRes { return r.animations.pool.Get(h) }
func (r *Resources) DestroyAnimation(h AnimationHandle)           { r.animations.free(h) }

func (r *Resources) CreateSkin(hash uint64) (SkinHandle, bool) { return r.skins.create(hash) }
func (r *Resources) GetSkin(h SkinHandle) *SkinRes             { return r.skins.pool.Get(h) }
func (r *Resources) DestroySkin(h SkinHandle)                  { r.skins.free(h) }

// =============================================================================
// render thread drains

// uploadPending creates GPU textures for queued uploads. Runs on the
// render thread before the frame that references them.
func (r *Resources) uploadPending(b render.Backend) {
	r.mu.Lock()
	uploads := r.uploads
	r.uploads = nil
	r.mu.Unlock()
	for _, u := range uploads {
		if !r.textures.pool.IsValid(u.texture) {
			continue // destroyed before first upload.
		}
		t := r.textures.pool.Get(u.texture)
		if !t.GPU.Alive() {
			mips := uint8(len(t.Mips))
			if mips == 0 {
				slog.Error("sfg: texture upload without data", "name", t.Name)
				continue
			}
			t.GPU = b.CreateTexture(render.TextureDesc{
				Name:      t.Name,
				Width:     t.Mips[0].Width,
				Height:    t.Mips[0].Height,
				Depth:     1,
				MipLevels: mips,
				Format:    render.FormatR8G8B8A8Unorm,
				Flags:     render.TextureSampled | render.TextureTransferDst,
				Views:     []render.TextureView{{}},
			})
		}
		b.UploadTexture(t.GPU, t.Mips)
		t.Flags &^= resourcePendingUpload
		t.Flags |= resourceHwExists
	}
}

// deferDestroy queues backend destruction until the current frame is
// consumed, implementing the pin-until-frame-boundary rule.
func (r *Resources) deferDestroy(destroy func(render.Backend)) {
	r.mu.Lock()
	r.destroys = append(r.destroys, destroy)
	r.mu.Unlock()
}

// drainDestroys runs deferred destruction. Called by the render
// thread after frame consumption and once at shutdown.
func (r *Resources) drainDestroys(b render.Backend) {
	r.mu.Lock()
	destroys := r.destroys
	r.destroys = nil
	r.mu.Unlock()
	for _, destroy := range destroys {
		destroy(b)
	}
}
