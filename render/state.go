// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package render

// state.go tracks per-resource GPU states between barriers. Recorded
// barriers only name the destination state; the backend derives the
// source from the last transition it issued.

// stateTracker remembers the last known state of each texture and
// buffer, keyed by packed handle. Owned by a backend and accessed
// only from the render thread.
type stateTracker struct {
	textures map[uint32]TextureState
	buffers  map[uint32]TextureState
}

func newStateTracker() *stateTracker {
	return &stateTracker{
		textures: map[uint32]TextureState{},
		buffers:  map[uint32]TextureState{},
	}
}

// textureState returns the last recorded state, defaulting to
// undefined (zero) for first use, and records the new state.
func (st *stateTracker) textureState(h TextureHandle, next TextureState) (prev TextureState) {
	key := h.Pack()
	prev = st.textures[key]
	st.textures[key] = next
	return prev
}

// bufferState mirrors textureState for buffer resources.
func (st *stateTracker) bufferState(h BufferHandle, next TextureState) (prev TextureState) {
	key := h.Pack()
	prev = st.buffers[key]
	st.buffers[key] = next
	return prev
}

// forgetTexture drops tracking for a destroyed resource.
func (st *stateTracker) forgetTexture(h TextureHandle) { delete(st.textures, h.Pack()) }

// forgetBuffer drops tracking for a destroyed resource.
func (st *stateTracker) forgetBuffer(h BufferHandle) { delete(st.buffers, h.Pack()) }
