// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2022 Datadog, Inc.

// Package pproflite implements allocation-light pprof encoding.
package pproflite

// Top-level field numbers of the Profile message.
const (
	fieldSampleType        = 1
	fieldSample            = 2
	fieldMapping           = 3
	fieldLocation          = 4
	fieldFunction          = 5
	fieldStringTable       = 6
	fieldDropFrames        = 7
	fieldKeepFrames        = 8
	fieldTimeNanos         = 9
	fieldDurationNanos     = 10
	fieldPeriodType        = 11
	fieldPeriod            = 12
	fieldComment           = 13
	fieldDefaultSampleType = 14
)

// Field holds the value of a top-level profile.proto Profile.* field.
type Field interface {
	field() int
	encode(*Buffer)
}

// SampleType names one entry of Sample.Value. Type and Unit index the string
// table.
type SampleType struct {
	ValueType
}

func (SampleType) field() int { return fieldSampleType }

func (f SampleType) encode(b *Buffer) { b.Message(f.field(), f.ValueType.encode) }

// Sample is one stack with its values. LocationID is leaf first.
type Sample struct {
	LocationID []uint64
	Value      []int64
	Label      []Label
}

func (Sample) field() int { return fieldSample }

func (f Sample) encode(b *Buffer) {
	b.Message(f.field(), func(b *Buffer) {
		b.PackedUint64(1, f.LocationID)
		b.PackedInt64(2, f.Value)
		for i := range f.Label {
			b.Message(3, f.Label[i].encode)
		}
	})
}

// Label carries either a string value (Str) or a numeric one (Num, NumUnit).
type Label struct {
	Key     int64
	Str     int64
	Num     int64
	NumUnit int64
}

func (f Label) encode(b *Buffer) {
	b.Int64(1, f.Key)
	if f.Str != 0 {
		b.Int64(2, f.Str)
	} else {
		b.Int64(3, f.Num)
		if f.NumUnit != 0 {
			b.Int64(4, f.NumUnit)
		}
	}
}

// Mapping describes a mapped binary.
type Mapping struct {
	ID              uint64
	MemoryStart     uint64
	MemoryLimit     uint64
	FileOffset      uint64
	Filename        int64
	BuildID         int64
	HasFunctions    bool
	HasFilenames    bool
	HasLineNumbers  bool
	HasInlineFrames bool
}

func (Mapping) field() int { return fieldMapping }

func (f Mapping) encode(b *Buffer) {
	b.Message(f.field(), func(b *Buffer) {
		b.Uint64(1, f.ID)
		b.Uint64(2, f.MemoryStart)
		b.Uint64(3, f.MemoryLimit)
		b.Uint64(4, f.FileOffset)
		b.Int64(5, f.Filename)
		b.Int64(6, f.BuildID)
		b.Bool(7, f.HasFunctions)
		b.Bool(8, f.HasFilenames)
		b.Bool(9, f.HasLineNumbers)
		b.Bool(10, f.HasInlineFrames)
	})
}

// Location is a program counter, or the lines inlined at it.
type Location struct {
	ID        uint64
	MappingID uint64
	Address   uint64
	Line      []Line
	IsFolded  bool
}

func (Location) field() int { return fieldLocation }

func (f Location) encode(b *Buffer) {
	b.Message(f.field(), func(b *Buffer) {
		b.Uint64(1, f.ID)
		b.Uint64(2, f.MappingID)
		b.Uint64(3, f.Address)
		for i := range f.Line {
			b.Message(4, f.Line[i].encode)
		}
		b.Bool(5, f.IsFolded)
	})
}

type Line struct {
	FunctionID uint64
	Line       int64
}

func (f Line) encode(b *Buffer) {
	b.Uint64(1, f.FunctionID)
	b.Int64(2, f.Line)
}

// Function names and file names are string table indexes.
type Function struct {
	ID         uint64
	Name       int64
	SystemName int64
	FileName   int64
	StartLine  int64
}

func (Function) field() int { return fieldFunction }

func (f Function) encode(b *Buffer) {
	b.Message(f.field(), func(b *Buffer) {
		b.Uint64(1, f.ID)
		b.Int64(2, f.Name)
		b.Int64(3, f.SystemName)
		b.Int64(4, f.FileName)
		b.Int64(5, f.StartLine)
	})
}

// StringTable appends one entry to the string table. The first entry encoded
// must be the empty string.
type StringTable struct{ Value string }

func (StringTable) field() int { return fieldStringTable }

func (f StringTable) encode(b *Buffer) { b.String(f.field(), f.Value) }

// DropFrames and KeepFrames index regular expressions in the string table.
type DropFrames struct{ Value int64 }

func (DropFrames) field() int { return fieldDropFrames }

func (f DropFrames) encode(b *Buffer) { b.Int64(f.field(), f.Value) }

type KeepFrames struct{ Value int64 }

func (KeepFrames) field() int { return fieldKeepFrames }

func (f KeepFrames) encode(b *Buffer) { b.Int64(f.field(), f.Value) }

type TimeNanos struct{ Value int64 }

func (TimeNanos) field() int { return fieldTimeNanos }

func (f TimeNanos) encode(b *Buffer) { b.Int64(f.field(), f.Value) }

type DurationNanos struct{ Value int64 }

func (DurationNanos) field() int { return fieldDurationNanos }

func (f DurationNanos) encode(b *Buffer) { b.Int64(f.field(), f.Value) }

// PeriodType describes Period.
type PeriodType struct {
	ValueType
}

func (PeriodType) field() int { return fieldPeriodType }

func (f PeriodType) encode(b *Buffer) { b.Message(f.field(), f.ValueType.encode) }

type Period struct{ Value int64 }

func (Period) field() int { return fieldPeriod }

func (f Period) encode(b *Buffer) { b.Int64(f.field(), f.Value) }

// Comment indexes a free form note in the string table.
type Comment struct{ Value int64 }

func (Comment) field() int { return fieldComment }

func (f Comment) encode(b *Buffer) { b.Int64(f.field(), f.Value) }

type DefaultSampleType struct{ Value int64 }

func (DefaultSampleType) field() int { return fieldDefaultSampleType }

func (f DefaultSampleType) encode(b *Buffer) { b.Int64(f.field(), f.Value) }

type ValueType struct {
	Type int64
	Unit int64
}

func (f ValueType) encode(b *Buffer) {
	b.Int64(1, f.Type)
	b.Int64(2, f.Unit)
}
