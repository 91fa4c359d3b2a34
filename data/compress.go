// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package data

// compress.go wraps engine file payloads in the LZ4 container format.
// Small payloads are not worth the decode cost and huge ones blow the
// block compressor, so compression only applies inside a byte range.

import (
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// Payloads inside this range are LZ4 compressed; everything else is
// stored as-is.
const (
	compressMin = 750_000
	compressMax = 150_000_000
)

// container trailer: [u8 is_compressed][u32 uncompressed_size].
const trailerSize = 5

// Compress wraps payload in a file container. The returned buffer is
// the (possibly compressed) payload followed by the trailer.
func Compress(payload []byte) []byte {
	size := len(payload)
	if size >= compressMin && size <= compressMax {
		dst := make([]byte, lz4.CompressBlockBound(size)+trailerSize)
		var c lz4.Compressor
		n, err := c.CompressBlock(payload, dst)
		if err == nil && n > 0 && n < size {
			out := NewOStream(n + trailerSize)
			out.WriteRaw(dst[:n])
			out.WriteU8(1)
			out.WriteU32(uint32(size))
			return out.Bytes()
		}
		// incompressible, fall through and store.
	}
	out := NewOStream(size + trailerSize)
	out.WriteRaw(payload)
	out.WriteU8(0)
	out.WriteU32(uint32(size))
	return out.Bytes()
}

// Decompress unwraps a file container, returning the original payload.
func Decompress(container []byte) ([]byte, error) {
	if len(container) < trailerSize {
		return nil, fmt.Errorf("data: container smaller than trailer")
	}
	body := container[:len(container)-trailerSize]
	in := NewIStream(container[len(container)-trailerSize:])
	compressed := in.ReadU8() == 1
	size := int(in.ReadU32())
	if !compressed {
		if size != len(body) {
			return nil, fmt.Errorf("data: stored size %d does not match body %d", size, len(body))
		}
		return body, nil
	}
	payload := make([]byte, size)
	n, err := lz4.UncompressBlock(body, payload)
	if err != nil {
		return nil, fmt.Errorf("data: lz4 decompress: %w", err)
	}
	if n != size {
		return nil, fmt.Errorf("data: decompressed %d bytes, trailer said %d", n, size)
	}
	return payload, nil
}
