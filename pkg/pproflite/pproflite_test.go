// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2022 Datadog, Inc.

package pproflite_test

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/google/pprof/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/grafana/pf2/pkg/pproflite"
)

func TestBuffer_Varint(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 300, math.MaxUint32, math.MaxUint64} {
		var b pproflite.Buffer
		b.Varint(v)
		actual, n := protowire.ConsumeVarint(b.Bytes())
		require.Equal(t, b.Len(), n)
		assert.Equal(t, v, actual)
		assert.Equal(t, protowire.SizeVarint(v), b.Len())
	}
}

func TestBuffer_Scalars(t *testing.T) {
	var b pproflite.Buffer
	b.Int32(1, -5)
	b.Int64(2, math.MinInt64)
	b.Uint64(3, 42)
	b.Bool(4, true)
	b.Bool(5, false)
	b.String(6, "")
	b.String(7, "héllo")
	b.BytesField(8, []byte{0xca, 0xfe})

	data := b.Bytes()
	next := func(num protowire.Number, typ protowire.Type) {
		t.Helper()
		n, tp, l := protowire.ConsumeTag(data)
		require.Greater(t, l, 0)
		require.Equal(t, num, n)
		require.Equal(t, typ, tp)
		data = data[l:]
	}
	varint := func() uint64 {
		t.Helper()
		v, l := protowire.ConsumeVarint(data)
		require.Greater(t, l, 0)
		data = data[l:]
		return v
	}
	bytesField := func() []byte {
		t.Helper()
		v, l := protowire.ConsumeBytes(data)
		require.Greater(t, l, 0)
		data = data[l:]
		return v
	}

	next(1, protowire.VarintType)
	// Negative int32 keeps its 32-bit pattern: five bytes.
	v, l := protowire.ConsumeVarint(data)
	require.Equal(t, 5, l)
	data = data[l:]
	assert.Equal(t, int32(-5), int32(v))
	next(2, protowire.VarintType)
	assert.Equal(t, int64(math.MinInt64), int64(varint()))
	next(3, protowire.VarintType)
	assert.Equal(t, uint64(42), varint())
	next(4, protowire.VarintType)
	assert.Equal(t, uint64(1), varint())
	next(5, protowire.VarintType)
	assert.Equal(t, uint64(0), varint())
	next(6, protowire.BytesType)
	assert.Empty(t, bytesField())
	next(7, protowire.BytesType)
	assert.Equal(t, "héllo", string(bytesField()))
	next(8, protowire.BytesType)
	assert.Equal(t, []byte{0xca, 0xfe}, bytesField())
	assert.Empty(t, data)
}

func TestBuffer_Packed(t *testing.T) {
	var b pproflite.Buffer
	b.PackedUint64(1, nil)
	b.PackedInt64(2, []int64{})
	assert.Equal(t, 0, b.Len())

	b.PackedUint64(1, []uint64{1, 300})
	b.PackedInt64(2, []int64{-1, 7})

	data := b.Bytes()
	num, typ, n := protowire.ConsumeTag(data)
	require.Equal(t, protowire.Number(1), num)
	require.Equal(t, protowire.BytesType, typ)
	data = data[n:]
	packed, n := protowire.ConsumeBytes(data)
	require.Greater(t, n, 0)
	data = data[n:]
	assert.Equal(t, []uint64{1, 300}, consumeVarints(t, packed))

	num, typ, n = protowire.ConsumeTag(data)
	require.Equal(t, protowire.Number(2), num)
	require.Equal(t, protowire.BytesType, typ)
	packed, _ = protowire.ConsumeBytes(data[n:])
	assert.Equal(t, []uint64{math.MaxUint64, 7}, consumeVarints(t, packed))
}

func TestBuffer_Message(t *testing.T) {
	var b pproflite.Buffer
	b.Message(1, func(b *pproflite.Buffer) {
		b.Uint64(1, 1)
		b.Message(2, func(b *pproflite.Buffer) {
			b.String(1, "inner")
		})
		b.PackedUint64(3, []uint64{5})
	})

	outer, typ, n := protowire.ConsumeField(b.Bytes())
	require.Equal(t, b.Len(), n)
	require.Equal(t, protowire.Number(1), outer)
	require.Equal(t, protowire.BytesType, typ)

	_, _, n = protowire.ConsumeTag(b.Bytes())
	msg, _ := protowire.ConsumeBytes(b.Bytes()[n:])

	var expected pproflite.Buffer
	expected.Uint64(1, 1)
	var inner pproflite.Buffer
	inner.String(1, "inner")
	expected.BytesField(2, inner.Bytes())
	expected.BytesField(3, []byte{5})
	assert.Equal(t, expected.Bytes(), msg)

	b.Reset()
	assert.Equal(t, 0, b.Len())
}

func TestEncoder(t *testing.T) {
	var buf bytes.Buffer
	e := pproflite.NewEncoder(&buf)

	strings := []string{"", "samples", "count", "cpu", "nanoseconds", "main", "main.rb", "drop", "keep", "comment"}
	fields := []pproflite.Field{
		pproflite.SampleType{ValueType: pproflite.ValueType{Type: 1, Unit: 2}},
		pproflite.SampleType{ValueType: pproflite.ValueType{Type: 3, Unit: 4}},
		pproflite.Sample{LocationID: []uint64{1}, Value: []int64{1, 10_000_000}},
		pproflite.Sample{LocationID: []uint64{2, 1}, Value: []int64{1, 10_000_000}, Label: []pproflite.Label{{Key: 3, Str: 5}}},
		pproflite.Mapping{ID: 1, MemoryStart: 0x1000, MemoryLimit: 0x2000, Filename: 6, HasFunctions: true},
		pproflite.Location{ID: 1, MappingID: 1, Address: 0x1010, Line: []pproflite.Line{{FunctionID: 1, Line: 3}}},
		pproflite.Location{ID: 2, Line: []pproflite.Line{{FunctionID: 1, Line: 7}}},
		pproflite.Function{ID: 1, Name: 5, SystemName: 5, FileName: 6, StartLine: 1},
	}
	for _, s := range strings {
		fields = append(fields, pproflite.StringTable{Value: s})
	}
	fields = append(fields,
		pproflite.DropFrames{Value: 7},
		pproflite.KeepFrames{Value: 8},
		pproflite.TimeNanos{Value: 1737730800000000000},
		pproflite.DurationNanos{Value: 20_000_000},
		pproflite.PeriodType{ValueType: pproflite.ValueType{Type: 3, Unit: 4}},
		pproflite.Period{Value: 10_000_000},
		pproflite.Comment{Value: 9},
		pproflite.DefaultSampleType{Value: 3},
	)
	for _, f := range fields {
		require.NoError(t, e.Encode(f))
	}

	p, err := profile.ParseData(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, p.SampleType, 2)
	assert.Equal(t, "samples", p.SampleType[0].Type)
	assert.Equal(t, "nanoseconds", p.SampleType[1].Unit)
	require.Len(t, p.Sample, 2)
	assert.Equal(t, []int64{1, 10_000_000}, p.Sample[1].Value)
	assert.Equal(t, []string{"main"}, p.Sample[1].Label["cpu"])
	require.Len(t, p.Sample[1].Location, 2)
	assert.Equal(t, uint64(2), p.Sample[1].Location[0].ID)
	assert.Equal(t, int64(7), p.Sample[1].Location[0].Line[0].Line)
	require.Len(t, p.Mapping, 1)
	assert.Equal(t, "main.rb", p.Mapping[0].File)
	require.Len(t, p.Location, 2)
	assert.Equal(t, uint64(0x1010), p.Location[0].Address)
	require.Len(t, p.Function, 1)
	assert.Equal(t, "main", p.Function[0].Name)
	assert.Equal(t, "main.rb", p.Function[0].Filename)
	assert.Equal(t, "drop", p.DropFrames)
	assert.Equal(t, "keep", p.KeepFrames)
	assert.Equal(t, int64(1737730800000000000), p.TimeNanos)
	assert.Equal(t, int64(20_000_000), p.DurationNanos)
	assert.Equal(t, "cpu", p.PeriodType.Type)
	assert.Equal(t, int64(10_000_000), p.Period)
	assert.Equal(t, []string{"comment"}, p.Comments)
	assert.Equal(t, "cpu", p.DefaultSampleType)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestEncoder_WriteError(t *testing.T) {
	e := pproflite.NewEncoder(failingWriter{})
	require.ErrorIs(t, e.Encode(pproflite.Period{Value: 1}), io.ErrClosedPipe)

	var buf bytes.Buffer
	e.Reset(&buf)
	require.NoError(t, e.Encode(pproflite.Period{Value: 1}))
	assert.Equal(t, []byte{12 << 3, 1}, buf.Bytes())
}

func consumeVarints(t *testing.T, data []byte) []uint64 {
	t.Helper()
	var vals []uint64
	for len(data) > 0 {
		v, n := protowire.ConsumeVarint(data)
		require.Greater(t, n, 0)
		vals = append(vals, v)
		data = data[n:]
	}
	return vals
}

func BenchmarkEncoder(b *testing.B) {
	e := pproflite.NewEncoder(io.Discard)
	s := pproflite.Sample{LocationID: []uint64{5, 4, 3, 2, 1}, Value: []int64{1, 10_000_000}}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := e.Encode(s); err != nil {
			b.Fatal(err)
		}
	}
}
