// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package data

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestStreams(t *testing.T) {
	t.Run("arithmetic round trip", func(t *testing.T) {
		o := NewOStream(64)
		o.WriteU32(0xDEADBEEF)
		o.WriteString("hello")
		o.WriteF32(1.5)
		o.WriteBool(true)
		o.WriteI16(-42)

		i := NewIStream(o.Bytes())
		if v := i.ReadU32(); v != 0xDEADBEEF {
			t.Errorf("expected 0xDEADBEEF, got %#x", v)
		}
		if s := i.ReadString(); s != "hello" {
			t.Errorf("expected hello, got %q", s)
		}
		if f := i.ReadF32(); f != 1.5 {
			t.Errorf("expected 1.5, got %f", f)
		}
		if !i.ReadBool() {
			t.Errorf("expected true")
		}
		if v := i.ReadI16(); v != -42 {
			t.Errorf("expected -42, got %d", v)
		}
		if i.Err() != nil {
			t.Errorf("unexpected stream error %s", i.Err())
		}
	})
	t.Run("short reads fail the stream", func(t *testing.T) {
		i := NewIStream([]byte{1, 2})
		i.ReadU32()
		if i.Err() == nil {
			t.Errorf("expected short read error")
		}
		if v := i.ReadU8(); v != 0 {
			t.Errorf("expected zero after failure, got %d", v)
		}
	})
	t.Run("big endian order", func(t *testing.T) {
		o := NewOStream(8)
		o.SetOrder(binary.BigEndian)
		o.WriteU16(0x0102)
		if !bytes.Equal(o.Bytes(), []byte{1, 2}) {
			t.Errorf("expected big endian bytes, got %v", o.Bytes())
		}
	})
	t.Run("seek and skip", func(t *testing.T) {
		i := NewIStream([]byte{0, 0, 0, 7})
		i.Skip(3)
		if v := i.ReadU8(); v != 7 {
			t.Errorf("expected 7, got %d", v)
		}
		i.Seek(0)
		if i.Remaining() != 4 {
			t.Errorf("expected 4 remaining, got %d", i.Remaining())
		}
	})
	t.Run("container count", func(t *testing.T) {
		o := NewOStream(16)
		vals := []uint16{3, 5, 9}
		o.WriteCount(len(vals))
		for _, v := range vals {
			o.WriteU16(v)
		}
		i := NewIStream(o.Bytes())
		n := i.ReadCount()
		if n != 3 {
			t.Fatalf("expected count 3, got %d", n)
		}
		for c := 0; c < n; c++ {
			if got := i.ReadU16(); got != vals[c] {
				t.Errorf("expected %d, got %d", vals[c], got)
			}
		}
	})
}

func TestCompress(t *testing.T) {
	t.Run("small payloads stored as-is", func(t *testing.T) {
		payload := []byte("tiny")
		c := Compress(payload)
		if c[len(c)-trailerSize] != 0 {
			t.Errorf("expected uncompressed flag")
		}
		got, err := Decompress(c)
		if err != nil {
			t.Fatalf("decompress: %s", err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("expected byte equal payload")
		}
	})
	t.Run("large payloads compress and round trip", func(t *testing.T) {
		payload := bytes.Repeat([]byte("abcdefgh"), compressMin/8+1)
		c := Compress(payload)
		if c[len(c)-trailerSize] != 1 {
			t.Errorf("expected compressed flag")
		}
		if len(c) >= len(payload) {
			t.Errorf("expected repetitive payload to shrink: %d -> %d",
				len(payload), len(c))
		}
		got, err := Decompress(c)
		if err != nil {
			t.Fatalf("decompress: %s", err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("expected byte equal payload after round trip")
		}
	})
	t.Run("stream through container", func(t *testing.T) {
		o := NewOStream(32)
		o.WriteU32(0xDEADBEEF)
		o.WriteString("hello")
		o.WriteF32(1.5)
		got, err := Decompress(Compress(o.Bytes()))
		if err != nil {
			t.Fatalf("decompress: %s", err)
		}
		i := NewIStream(got)
		if i.ReadU32() != 0xDEADBEEF || i.ReadString() != "hello" || i.ReadF32() != 1.5 {
			t.Errorf("expected field equal round trip")
		}
	})
	t.Run("single byte payload", func(t *testing.T) {
		got, err := Decompress(Compress([]byte{0x42}))
		if err != nil || len(got) != 1 || got[0] != 0x42 {
			t.Errorf("expected single byte round trip, got %v %v", got, err)
		}
	})
}
