// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2022 Datadog, Inc.

package pproflite

import (
	"io"
)

const (
	wireVarint = 0
	wireBytes  = 2
)

// Buffer is an append-only protobuf writer. Scalar fields are always written,
// including zero values.
type Buffer struct {
	data []byte
	// Scratch space for nested messages, reused across calls.
	nested *Buffer
}

// Bytes returns the encoded data. It stays valid until the next write.
func (b *Buffer) Bytes() []byte { return b.data }

func (b *Buffer) Len() int { return len(b.data) }

func (b *Buffer) Reset() { b.data = b.data[:0] }

// Varint appends v as a base 128 varint, without a tag.
func (b *Buffer) Varint(v uint64) {
	for v >= 0x80 {
		b.data = append(b.data, byte(v)|0x80)
		v >>= 7
	}
	b.data = append(b.data, byte(v))
}

func (b *Buffer) tag(field, wire int) {
	b.Varint(uint64(field)<<3 | uint64(wire))
}

// Uint64 writes a varint field.
func (b *Buffer) Uint64(field int, v uint64) {
	b.tag(field, wireVarint)
	b.Varint(v)
}

// Int64 writes a varint field. Negative values take ten bytes.
func (b *Buffer) Int64(field int, v int64) {
	b.Uint64(field, uint64(v))
}

// Int32 writes a varint field holding the 32-bit two's complement pattern of
// v. Negative values take five bytes.
func (b *Buffer) Int32(field int, v int32) {
	b.Uint64(field, uint64(uint32(v)))
}

func (b *Buffer) Bool(field int, v bool) {
	var x uint64
	if v {
		x = 1
	}
	b.Uint64(field, x)
}

// String writes a length-delimited field. Empty strings are written too, the
// string table depends on it.
func (b *Buffer) String(field int, s string) {
	b.tag(field, wireBytes)
	b.Varint(uint64(len(s)))
	b.data = append(b.data, s...)
}

func (b *Buffer) BytesField(field int, p []byte) {
	b.tag(field, wireBytes)
	b.Varint(uint64(len(p)))
	b.data = append(b.data, p...)
}

// Message writes the fields appended by fn as an embedded message.
func (b *Buffer) Message(field int, fn func(*Buffer)) {
	m := b.acquire()
	fn(m)
	b.BytesField(field, m.data)
}

// PackedUint64 writes vals as a single packed field. Nothing is written for
// an empty slice.
func (b *Buffer) PackedUint64(field int, vals []uint64) {
	if len(vals) == 0 {
		return
	}
	m := b.acquire()
	for _, v := range vals {
		m.Varint(v)
	}
	b.BytesField(field, m.data)
}

// PackedInt64 is PackedUint64 for signed values.
func (b *Buffer) PackedInt64(field int, vals []int64) {
	if len(vals) == 0 {
		return
	}
	m := b.acquire()
	for _, v := range vals {
		m.Varint(uint64(v))
	}
	b.BytesField(field, m.data)
}

// acquire returns the scratch buffer for a nested message. fn passed to
// Message must only write to the buffer it is given.
func (b *Buffer) acquire() *Buffer {
	if b.nested == nil {
		b.nested = new(Buffer)
	}
	b.nested.Reset()
	return b.nested
}

// NewEncoder returns an encoder writing top-level profile fields to w.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{}
	e.Reset(w)
	return e
}

// Encoder writes one profile field at a time. It is not safe for concurrent
// use.
type Encoder struct {
	w   io.Writer
	buf Buffer
}

func (e *Encoder) Reset(w io.Writer) {
	e.w = w
	e.buf.Reset()
}

// Encode writes f to the underlying writer.
func (e *Encoder) Encode(f Field) error {
	e.buf.Reset()
	f.encode(&e.buf)
	_, err := e.w.Write(e.buf.Bytes())
	return err
}
