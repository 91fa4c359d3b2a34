// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

// Package memory provides the allocators backing per-frame transient data
// and long lived engine resources:
//   - Bump   : linear arena reset wholesale each frame.
//   - Pool   : generational slots handed out as Handles, doubling in
//     capacity when every slot is in use.
//   - Simple : index addressed slots without generations.
//   - Chunk  : bump arena returning {offset,size} handles so the backing
//     block can relocate on growth.
//   - Text   : null-terminated string arena with hole reuse.
//
// Package memory is provided as part of the sfg rendering engine SDK.
package memory

// align rounds n up to the next multiple of a. Alignment a must be
// a power of two.
func align(n, a uint32) uint32 { return (n + a - 1) &^ (a - 1) }
