// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package render

// stream.go records commands into per-frame byte buffers.

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gazed/sfg/memory"
)

// Stream is a raw command byte buffer inside the owning frame's bump
// arena. Commands play back in insertion order; the backend never
// reorders within a stream.
type Stream struct {
	buf []byte // arena backed, cap fixed at frame reset.
}

// Add encodes one command as [type u8][size u32][payload]. Panics when
// the stream's arena slice is full: stream capacities are part of the
// frame definition and overruns are design errors.
func (s *Stream) Add(c Command) {
	size := c.size()
	need := len(s.buf) + 5 + int(size)
	if need > cap(s.buf) {
		panic(fmt.Sprintf("render: command stream overflow: %d > %d", need, cap(s.buf)))
	}
	at := len(s.buf)
	s.buf = s.buf[:need]
	s.buf[at] = byte(c.Type())
	binary.LittleEndian.PutUint32(s.buf[at+1:], size)
	c.encode(&enc{buf: s.buf[at+5 : at+5 : need]})
}

// Len returns the recorded byte count.
func (s *Stream) Len() int { return len(s.buf) }

// IsEmpty returns true when nothing has been recorded.
func (s *Stream) IsEmpty() bool { return len(s.buf) == 0 }

// Decode walks the recorded commands in insertion order, calling
// visit for each until visit returns false. An error is returned for
// a malformed stream, eg: a size that disagrees with the type tag.
func (s *Stream) Decode(visit func(c Command) bool) error {
	at := 0
	for at < len(s.buf) {
		if at+5 > len(s.buf) {
			return fmt.Errorf("render: truncated command header at %d", at)
		}
		t := CommandType(s.buf[at])
		size := binary.LittleEndian.Uint32(s.buf[at+1:])
		c := newCommand(t)
		if c == nil {
			return fmt.Errorf("render: unknown command type %d at %d", t, at)
		}
		if size != c.size() {
			return fmt.Errorf("render: command %d size %d, expected %d", t, size, c.size())
		}
		if at+5+int(size) > len(s.buf) {
			return fmt.Errorf("render: truncated command payload at %d", at)
		}
		c.decode(&dec{buf: s.buf[at+5 : at+5+int(size)]})
		if !visit(c) {
			return nil
		}
		at += 5 + int(size)
	}
	return nil
}

// =============================================================================
// payload cursors

// enc appends fixed-layout little-endian payload fields.
type enc struct {
	buf []byte
}

func (e *enc) u8(v uint8)   { e.buf = append(e.buf, v) }
func (e *enc) u16(v uint16) { e.buf = binary.LittleEndian.AppendUint16(e.buf, v) }
func (e *enc) u32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }
func (e *enc) u64(v uint64) { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }
func (e *enc) f32(v float32) {
	e.u32(math.Float32bits(v))
}

// dec reads fixed-layout little-endian payload fields.
type dec struct {
	buf []byte
	at  int
}

func (d *dec) u8() uint8 {
	v := d.buf[d.at]
	d.at++
	return v
}
func (d *dec) u16() uint16 {
	v := binary.LittleEndian.Uint16(d.buf[d.at:])
	d.at += 2
	return v
}
func (d *dec) u32() uint32 {
	v := binary.LittleEndian.Uint32(d.buf[d.at:])
	d.at += 4
	return v
}
func (d *dec) u64() uint64 {
	v := binary.LittleEndian.Uint64(d.buf[d.at:])
	d.at += 8
	return v
}
func (d *dec) f32() float32 { return math.Float32frombits(d.u32()) }

// unpack restores a typed handle from its packed wire form.
func unpack[T any](v uint32) memory.Handle[T] { return memory.Unpack[T](v) }
