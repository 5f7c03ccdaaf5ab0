package model

import (
	"fmt"
	"time"
)

// ThreadID identifies a sampled thread of the managed runtime.
type ThreadID uint64

// Implementation tells whether a function runs on the interpreter or is
// native machine code.
type Implementation uint8

const (
	Interpreted Implementation = iota
	Native
)

func (i Implementation) String() string {
	switch i {
	case Interpreted:
		return "interpreted"
	case Native:
		return "native"
	default:
		return fmt.Sprintf("implementation(%d)", uint8(i))
	}
}

func (i Implementation) MarshalText() ([]byte, error) {
	switch i {
	case Interpreted, Native:
		return []byte(i.String()), nil
	}
	return nil, fmt.Errorf("unknown implementation %d", uint8(i))
}

func (i *Implementation) UnmarshalText(b []byte) error {
	switch string(b) {
	case "interpreted", "ruby":
		*i = Interpreted
	case "native":
		*i = Native
	default:
		return fmt.Errorf("unknown implementation %q", string(b))
	}
	return nil
}

// Function is a distinct callable. Nil fields are unknown.
type Function struct {
	Name      *string
	Filename  *string
	StartLine *int32
	// StartAddress is set only for interpreted functions that bridge into
	// native code.
	StartAddress   *uint64
	Implementation Implementation
}

// Location is a single call site.
type Location struct {
	FunctionIndex int
	Lineno        *int32
	Address       *uint64
}

// Sample is one capture event. Stack and NativeStack hold location indices,
// leaf first.
type Sample struct {
	ElapsedTime time.Duration
	ThreadID    ThreadID
	Stack       []int
	NativeStack []int
}

// Profile is the result of one sampling session. It is mutable only while
// the session that owns it is active.
type Profile struct {
	StartTime time.Time
	Duration  time.Duration
	Interval  time.Duration

	CollectedSampleCount uint64
	DroppedSampleCount   uint64

	Functions []Function
	Locations []Location
	Samples   []Sample
}

// Function returns the function of the location at index loc.
// The profile must be valid.
func (p *Profile) Function(loc int) *Function {
	return &p.Functions[p.Locations[loc].FunctionIndex]
}

// Validate checks that every location and function reference resolves.
func (p *Profile) Validate() error {
	for i, loc := range p.Locations {
		if loc.FunctionIndex < 0 || loc.FunctionIndex >= len(p.Functions) {
			return &MalformedProfileError{
				Reason: fmt.Sprintf("location %d references function %d (have %d)", i, loc.FunctionIndex, len(p.Functions)),
			}
		}
	}
	for i, s := range p.Samples {
		if err := p.validateStack(i, "stack", s.Stack); err != nil {
			return err
		}
		if err := p.validateStack(i, "native_stack", s.NativeStack); err != nil {
			return err
		}
	}
	return nil
}

func (p *Profile) validateStack(sample int, kind string, stack []int) error {
	for _, idx := range stack {
		if idx < 0 || idx >= len(p.Locations) {
			return &MalformedProfileError{
				Reason: fmt.Sprintf("sample %d: %s references location %d (have %d)", sample, kind, idx, len(p.Locations)),
			}
		}
	}
	return nil
}
