// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

// Package data provides the byte stream readers and writers used for
// engine file formats, plus the LZ4 file container wrapper.
//
// Containers are laid out as [u32 count][T0][T1]...[Tn-1] and strings
// as [u32 bytes][utf-8 bytes]. Arithmetic values are written through
// the stream's byte order, little-endian unless changed with SetOrder;
// raw writes bypass it.
//
// Package data is provided as part of the sfg rendering engine SDK.
package data

import (
	"encoding/binary"
	"math"
)

// OStream is a grow-on-demand byte writer with endianness-aware
// arithmetic primitives. NewOStream returns a little-endian writer; the
// zero OStream has no byte order set and its arithmetic writes panic.
type OStream struct {
	buf   []byte
	order binary.AppendByteOrder
}

// NewOStream returns a writer with the given initial capacity.
func NewOStream(capacity int) *OStream {
	return &OStream{buf: make([]byte, 0, capacity), order: binary.LittleEndian}
}

// SetOrder switches the byte order for subsequent arithmetic writes.
func (o *OStream) SetOrder(order binary.AppendByteOrder) { o.order = order }

// Bytes returns the written data. The slice aliases the stream.
func (o *OStream) Bytes() []byte { return o.buf }

// Len returns the number of written bytes.
func (o *OStream) Len() int { return len(o.buf) }

// Reset drops the written data, keeping the allocation.
func (o *OStream) Reset() { o.buf = o.buf[:0] }

func (o *OStream) WriteU8(v uint8)  { o.buf = append(o.buf, v) }
func (o *OStream) WriteI8(v int8)   { o.WriteU8(uint8(v)) }
func (o *OStream) WriteU16(v uint16) {
	o.buf = o.order.AppendUint16(o.buf, v)
}
func (o *OStream) WriteI16(v int16) { o.WriteU16(uint16(v)) }
func (o *OStream) WriteU32(v uint32) {
	o.buf = o.order.AppendUint32(o.buf, v)
}
func (o *OStream) WriteI32(v int32) { o.WriteU32(uint32(v)) }
func (o *OStream) WriteU64(v uint64) {
	o.buf = o.order.AppendUint64(o.buf, v)
}
func (o *OStream) WriteI64(v int64) { o.WriteU64(uint64(v)) }
func (o *OStream) WriteF32(v float32) {
	o.WriteU32(math.Float32bits(v))
}
func (o *OStream) WriteF64(v float64) {
	o.WriteU64(math.Float64bits(v))
}
func (o *OStream) WriteBool(v bool) {
	if v {
		o.WriteU8(1)
		return
	}
	o.WriteU8(0)
}

// WriteRaw appends bytes without byte order handling.
func (o *OStream) WriteRaw(p []byte) { o.buf = append(o.buf, p...) }

// WriteString writes [u32 bytes][utf-8 bytes].
func (o *OStream) WriteString(s string) {
	o.WriteU32(uint32(len(s)))
	o.buf = append(o.buf, s...)
}

// WriteCount begins a container: [u32 count] followed by the elements
// written by the caller.
func (o *OStream) WriteCount(n int) { o.WriteU32(uint32(n)) }
