package model

import (
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// The raw dump keeps the profile between a profiling run and a later
// reporting step. Nullable fields are written as null.
type dumpProfile struct {
	StartTimestampNs     int64          `json:"start_timestamp_ns"`
	DurationNs           int64          `json:"duration_ns"`
	IntervalNs           int64          `json:"interval_ns"`
	CollectedSampleCount uint64         `json:"collected_sample_count"`
	DroppedSampleCount   uint64         `json:"dropped_sample_count"`
	Samples              []dumpSample   `json:"samples"`
	Locations            []dumpLocation `json:"locations"`
	Functions            []dumpFunction `json:"functions"`
}

type dumpSample struct {
	Stack       []int    `json:"stack"`
	NativeStack []int    `json:"native_stack"`
	ThreadID    ThreadID `json:"thread_id"`
	ElapsedNs   int64    `json:"elapsed_ns"`
}

type dumpLocation struct {
	FunctionIndex int     `json:"function_index"`
	Lineno        *int32  `json:"lineno"`
	Address       *uint64 `json:"address"`
}

type dumpFunction struct {
	Implementation Implementation `json:"implementation"`
	Name           *string        `json:"name"`
	Filename       *string        `json:"filename"`
	StartLineno    *int32         `json:"start_lineno"`
	StartAddress   *uint64        `json:"start_address"`
}

// WriteDump serializes p into w.
func WriteDump(w io.Writer, p *Profile) error {
	d := dumpProfile{
		StartTimestampNs:     unixNano(p.StartTime),
		DurationNs:           int64(p.Duration),
		IntervalNs:           int64(p.Interval),
		CollectedSampleCount: p.CollectedSampleCount,
		DroppedSampleCount:   p.DroppedSampleCount,
		Samples:              make([]dumpSample, len(p.Samples)),
		Locations:            make([]dumpLocation, len(p.Locations)),
		Functions:            make([]dumpFunction, len(p.Functions)),
	}
	for i, s := range p.Samples {
		d.Samples[i] = dumpSample{
			Stack:       nonNil(s.Stack),
			NativeStack: nonNil(s.NativeStack),
			ThreadID:    s.ThreadID,
			ElapsedNs:   int64(s.ElapsedTime),
		}
	}
	for i, l := range p.Locations {
		d.Locations[i] = dumpLocation(l)
	}
	for i, f := range p.Functions {
		d.Functions[i] = dumpFunction{
			Implementation: f.Implementation,
			Name:           f.Name,
			Filename:       f.Filename,
			StartLineno:    f.StartLine,
			StartAddress:   f.StartAddress,
		}
	}
	if err := json.NewEncoder(w).Encode(&d); err != nil {
		return errors.Wrap(err, "encode profile dump")
	}
	return nil
}

// ReadDump decodes a profile written by WriteDump.
func ReadDump(r io.Reader) (*Profile, error) {
	var d dumpProfile
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, errors.Wrap(err, "decode profile dump")
	}
	p := &Profile{
		StartTime:            fromUnixNano(d.StartTimestampNs),
		Duration:             time.Duration(d.DurationNs),
		Interval:             time.Duration(d.IntervalNs),
		CollectedSampleCount: d.CollectedSampleCount,
		DroppedSampleCount:   d.DroppedSampleCount,
		Samples:              make([]Sample, len(d.Samples)),
		Locations:            make([]Location, len(d.Locations)),
		Functions:            make([]Function, len(d.Functions)),
	}
	for i, s := range d.Samples {
		p.Samples[i] = Sample{
			ElapsedTime: time.Duration(s.ElapsedNs),
			ThreadID:    s.ThreadID,
			Stack:       nonNil(s.Stack),
			NativeStack: nonNil(s.NativeStack),
		}
	}
	for i, l := range d.Locations {
		p.Locations[i] = Location(l)
	}
	for i, f := range d.Functions {
		p.Functions[i] = Function{
			Name:           f.Name,
			Filename:       f.Filename,
			StartLine:      f.StartLineno,
			StartAddress:   f.StartAddress,
			Implementation: f.Implementation,
		}
	}
	return p, nil
}

// A zero start time is written as 0, which reads back as the zero time.
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func nonNil(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}
