// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package sfg

// model.go provides the composite model resource: a parsed model_raw
// becomes pool handles for each owned mesh, skin, and animation, with
// the handle spans and node records living in the world's chunk
// arena. Destroy reverses creation exactly once per model.

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/gazed/sfg/data"
	"github.com/gazed/sfg/math/lin"
	"github.com/gazed/sfg/memory"
)

// ModelNode is one node of a model's hierarchy. Parent indexes into
// the model's node span, -1 at roots. MeshIndex indexes the model's
// mesh span, -1 for transform-only nodes.
type ModelNode struct {
	Position  lin.V3
	Rotation  lin.Q
	Scale     lin.V3
	Parent    int16
	MeshIndex int16
}

// ModelRes owns spans of child resources in the world chunk arena.
type ModelRes struct {
	Name          string
	TotalAabb     lin.Aabb
	MaterialCount uint16
	Flags         resourceFlags

	nodes      memory.ChunkRef // ModelNode records.
	meshes     memory.ChunkRef // packed MeshHandle values.
	skins      memory.ChunkRef // packed SkinHandle values.
	animations memory.ChunkRef // packed AnimationHandle values.

	nodeCount uint16
	meshCount uint16
	skinCount uint16
	animCount uint16

	destroyed bool
}

// ModelRaw is the parser output handed to CreateModelFromRaw.
type ModelRaw struct {
	Name          string
	Hash          uint64
	Nodes         []ModelNode
	Meshes        []MeshRes
	Skins         []SkinRes
	Animations    []AnimationRes
	TotalAabb     lin.Aabb
	MaterialCount uint16
}

// chunkSpan views a chunk allocation as a typed slice. T must be a
// plain data struct.
func chunkSpan[T any](c *memory.Chunk, ref memory.ChunkRef, count int) []T {
	if count == 0 || !ref.Valid() {
		return nil
	}
	raw := c.Bytes(ref)
	return unsafe.Slice((*T)(unsafe.Pointer(&raw[0])), count)
}

// chunkAlloc reserves a chunk span for count values of T.
func chunkAlloc[T any](c *memory.Chunk, count int) memory.ChunkRef {
	if count == 0 {
		return memory.ChunkRef{}
	}
	var t T
	return c.Allocate(uint32(unsafe.Sizeof(t)) * uint32(count))
}

// =============================================================================
// create / destroy cascade

// CreateModelFromRaw allocates handles for each owned child resource
// and stores them contiguously in the chunk arena. Loading the same
// hash twice returns the first model.
func (r *Resources) CreateModelFromRaw(raw *ModelRaw) ModelHandle {
	h, created := r.models.create(raw.Hash)
	if !created {
		return h
	}
	m := r.models.pool.Get(h)
	m.Name = raw.Name
	m.TotalAabb = raw.TotalAabb
	m.MaterialCount = raw.MaterialCount
	m.nodeCount = uint16(len(raw.Nodes))
	m.meshCount = uint16(len(raw.Meshes))
	m.skinCount = uint16(len(raw.Skins))
	m.animCount = uint16(len(raw.Animations))

	// creation order: nodes, meshes, skins, animations.
	m.nodes = chunkAlloc[ModelNode](r.chunk, len(raw.Nodes))
	copy(chunkSpan[ModelNode](r.chunk, m.nodes, len(raw.Nodes)), raw.Nodes)

	m.meshes = chunkAlloc[uint32](r.chunk, len(raw.Meshes))
	meshSpan := chunkSpan[uint32](r.chunk, m.meshes, len(raw.Meshes))
	for i := range raw.Meshes {
		mh, _ := r.meshes.create(raw.Hash ^ uint64(i+1))
		*r.meshes.pool.Get(mh) = raw.Meshes[i]
		meshSpan[i] = mh.Pack()
	}

	m.skins = chunkAlloc[uint32](r.chunk, len(raw.Skins))
	skinSpan := chunkSpan[uint32](r.chunk, m.skins, len(raw.Skins))
	for i := range raw.Skins {
		sh, _ := r.skins.create(raw.Hash ^ uint64(i+1)<<16)
		*r.skins.pool.Get(sh) = raw.Skins[i]
		skinSpan[i] = sh.Pack()
	}

	m.animations = chunkAlloc[uint32](r.chunk, len(raw.Animations))
	animSpan := chunkSpan[uint32](r.chunk, m.animations, len(raw.Animations))
	for i := range raw.Animations {
		ah, _ := r.animations.create(raw.Hash ^ uint64(i+1)<<32)
		*r.animations.pool.Get(ah) = raw.Animations[i]
		animSpan[i] = ah.Pack()
	}

	m.Flags = resourcePendingUpload | resourceHwExists
	return h
}

// GetModel asserts validity and returns the resource.
func (r *Resources) GetModel(h ModelHandle) *ModelRes { return r.models.pool.Get(h) }

// ModelMeshes returns the model's owned mesh handles.
func (r *Resources) ModelMeshes(h ModelHandle) []MeshHandle {
	m := r.models.pool.Get(h)
	packed := chunkSpan[uint32](r.chunk, m.meshes, int(m.meshCount))
	out := make([]MeshHandle, len(packed))
	for i, p := range packed {
		out[i] = memory.Unpack[MeshRes](p)
	}
	return out
}

// ModelNodes returns the model's node records.
func (r *Resources) ModelNodes(h ModelHandle) []ModelNode {
	m := r.models.pool.Get(h)
	return chunkSpan[ModelNode](r.chunk, m.nodes, int(m.nodeCount))
}

// DestroyModel cascades destruction to owned child resources in the
// order skins, animations, meshes, nodes, freeing each chunk span.
// Must be called
// exactly once per model; a second call panics.
func (r *Resources) DestroyModel(h ModelHandle) {
	m := r.models.pool.Get(h)
	if m.destroyed {
		panic("sfg: model destroyed twice: " + m.Name)
	}
	m.destroyed = true

	for _, p := range chunkSpan[uint32](r.chunk, m.skins, int(m.skinCount)) {
		r.DestroySkin(memory.Unpack[SkinRes](p))
	}
	r.chunk.Free(m.skins)

	for _, p := range chunkSpan[uint32](r.chunk, m.animations, int(m.animCount)) {
		r.DestroyAnimation(memory.Unpack[AnimationRes](p))
	}
	r.chunk.Free(m.animations)

	for _, p := range chunkSpan[uint32](r.chunk, m.meshes, int(m.meshCount)) {
		r.DestroyMesh(memory.Unpack[MeshRes](p))
	}
	r.chunk.Free(m.meshes)

	r.chunk.Free(m.nodes)
	r.models.free(h)
}

// =============================================================================
// engine model format

// LoadModel reads a model container, parsing on first load and
// returning the existing handle on repeats. A dead handle and a
// logged error result from unreadable or malformed files.
func (r *Resources) LoadModel(path string) ModelHandle {
	hash := hashName(path)
	if h, ok := r.models.byHash[hash]; ok && r.models.pool.IsValid(h) {
		return h
	}
	file, err := os.ReadFile(path)
	if err != nil {
		logError("sfg: load model", "path", path, "err", err)
		return ModelHandle{}
	}
	payload, err := data.Decompress(file)
	if err != nil {
		logError("sfg: model container", "path", path, "err", err)
		return ModelHandle{}
	}
	raw, err := parseModelRaw(payload)
	if err != nil {
		logError("sfg: model parse", "path", path, "err", err)
		return ModelHandle{}
	}
	raw.Name = path
	raw.Hash = hash
	return r.CreateModelFromRaw(raw)
}

// parseModelRaw decodes the engine's serialized model payload.
// Layout is count-prefixed containers throughout.
func parseModelRaw(payload []byte) (*ModelRaw, error) {
	in := data.NewIStream(payload)
	raw := &ModelRaw{}

	raw.TotalAabb.Min = readV3(in)
	raw.TotalAabb.Max = readV3(in)
	raw.MaterialCount = in.ReadU16()

	for n := in.ReadCount(); n > 0; n-- {
		node := ModelNode{
			Position:  readV3(in),
			Rotation:  readQ(in),
			Scale:     readV3(in),
			Parent:    in.ReadI16(),
			MeshIndex: in.ReadI16(),
		}
		raw.Nodes = append(raw.Nodes, node)
	}
	for n := in.ReadCount(); n > 0; n-- {
		mesh := MeshRes{Name: in.ReadString()}
		mesh.VertexCount = in.ReadU32()
		mesh.IndexCount = in.ReadU32()
		mesh.Vertices = make([]byte, in.ReadCount())
		in.ReadRaw(mesh.Vertices)
		mesh.Indices = make([]byte, in.ReadCount())
		in.ReadRaw(mesh.Indices)
		raw.Meshes = append(raw.Meshes, mesh)
	}
	for n := in.ReadCount(); n > 0; n-- {
		skin := SkinRes{Name: in.ReadString(), RootJoint: in.ReadU16()}
		for j := in.ReadCount(); j > 0; j-- {
			skin.Joints = append(skin.Joints, in.ReadU16())
		}
		for j := in.ReadCount(); j > 0; j-- {
			skin.InverseBind = append(skin.InverseBind, in.ReadF32())
		}
		raw.Skins = append(raw.Skins, skin)
	}
	for n := in.ReadCount(); n > 0; n-- {
		anim := AnimationRes{Name: in.ReadString(), Duration: in.ReadF32()}
		for c := in.ReadCount(); c > 0; c-- {
			ch := AnimationChannel{Node: in.ReadU16(), Component: in.ReadU8()}
			for t := in.ReadCount(); t > 0; t-- {
				ch.Times = append(ch.Times, in.ReadF32())
			}
			for v := in.ReadCount(); v > 0; v-- {
				ch.Values = append(ch.Values, in.ReadF32())
			}
			anim.Channels = append(anim.Channels, ch)
		}
		raw.Animations = append(raw.Animations, anim)
	}
	if in.Err() != nil {
		return nil, fmt.Errorf("sfg: model payload: %w", in.Err())
	}
	return raw, nil
}

// encodeModelRaw writes the serialized form read by parseModelRaw.
// Used by asset tooling and tests.
func encodeModelRaw(raw *ModelRaw) []byte {
	out := data.NewOStream(4096)
	writeV3(out, raw.TotalAabb.Min)
	writeV3(out, raw.TotalAabb.Max)
	out.WriteU16(raw.MaterialCount)

	out.WriteCount(len(raw.Nodes))
	for _, node := range raw.Nodes {
		writeV3(out, node.Position)
		writeQ(out, node.Rotation)
		writeV3(out, node.Scale)
		out.WriteI16(node.Parent)
		out.WriteI16(node.MeshIndex)
	}
	out.WriteCount(len(raw.Meshes))
	for _, mesh := range raw.Meshes {
		out.WriteString(mesh.Name)
		out.WriteU32(mesh.VertexCount)
		out.WriteU32(mesh.IndexCount)
		out.WriteCount(len(mesh.Vertices))
		out.WriteRaw(mesh.Vertices)
		out.WriteCount(len(mesh.Indices))
		out.WriteRaw(mesh.Indices)
	}
	out.WriteCount(len(raw.Skins))
	for _, skin := range raw.Skins {
		out.WriteString(skin.Name)
		out.WriteU16(skin.RootJoint)
		out.WriteCount(len(skin.Joints))
		for _, j := range skin.Joints {
			out.WriteU16(j)
		}
		out.WriteCount(len(skin.InverseBind))
		for _, f := range skin.InverseBind {
			out.WriteF32(f)
		}
	}
	out.WriteCount(len(raw.Animations))
	for _, anim := range raw.Animations {
		out.WriteString(anim.Name)
		out.WriteF32(anim.Duration)
		out.WriteCount(len(anim.Channels))
		for _, ch := range anim.Channels {
			out.WriteU16(ch.Node)
			out.WriteU8(ch.Component)
			out.WriteCount(len(ch.Times))
			for _, t := range ch.Times {
				out.WriteF32(t)
			}
			out.WriteCount(len(ch.Values))
			for _, v := range ch.Values {
				out.WriteF32(v)
			}
		}
	}
	return out.Bytes()
}

func readV3(in *data.IStream) lin.V3 {
	return lin.V3{X: in.ReadF32(), Y: in.ReadF32(), Z: in.ReadF32()}
}

func readQ(in *data.IStream) lin.Q {
	return lin.Q{X: in.ReadF32(), Y: in.ReadF32(), Z: in.ReadF32(), W: in.ReadF32()}
}

func writeV3(out *data.OStream, v lin.V3) {
	out.WriteF32(v.X)
	out.WriteF32(v.Y)
	out.WriteF32(v.Z)
}

func writeQ(out *data.OStream, q lin.Q) {
	out.WriteF32(q.X)
	out.WriteF32(q.Y)
	out.WriteF32(q.Z)
	out.WriteF32(q.W)
}
