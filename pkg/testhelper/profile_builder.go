package testhelper

import (
	"time"

	"github.com/samber/lo"

	"github.com/grafana/pf2/pkg/model"
)

// ProfileBuilder assembles model.Profile values for tests.
type ProfileBuilder struct {
	*model.Profile
}

// NewProfileBuilder creates a new ProfileBuilder with the given nanoseconds
// start timestamp and duration.
func NewProfileBuilder(ts int64, duration time.Duration) *ProfileBuilder {
	return &ProfileBuilder{
		Profile: &model.Profile{
			StartTime: time.Unix(0, ts),
			Duration:  duration,
			Functions: []model.Function{},
			Locations: []model.Location{},
			Samples:   []model.Sample{},
		},
	}
}

// InterpretedFunction adds an interpreted function and returns its index.
func (m *ProfileBuilder) InterpretedFunction(name, filename string, startLine int32) int {
	m.Functions = append(m.Functions, model.Function{
		Name:           lo.ToPtr(name),
		Filename:       lo.ToPtr(filename),
		StartLine:      lo.ToPtr(startLine),
		Implementation: model.Interpreted,
	})
	return len(m.Functions) - 1
}

// BridgeFunction adds an interpreted function implemented in native code at
// startAddress.
func (m *ProfileBuilder) BridgeFunction(name string, startAddress uint64) int {
	m.Functions = append(m.Functions, model.Function{
		Name:           lo.ToPtr(name),
		StartAddress:   lo.ToPtr(startAddress),
		Implementation: model.Interpreted,
	})
	return len(m.Functions) - 1
}

// NativeFunction adds a native function. A zero startAddress is left unset.
func (m *ProfileBuilder) NativeFunction(name string, startAddress uint64) int {
	fn := model.Function{
		Name:           lo.ToPtr(name),
		Implementation: model.Native,
	}
	if startAddress != 0 {
		fn.StartAddress = lo.ToPtr(startAddress)
	}
	m.Functions = append(m.Functions, fn)
	return len(m.Functions) - 1
}

// Location adds a location of the function fn at lineno and returns its index.
func (m *ProfileBuilder) Location(fn int, lineno int32) int {
	m.Locations = append(m.Locations, model.Location{
		FunctionIndex: fn,
		Lineno:        lo.ToPtr(lineno),
	})
	return len(m.Locations) - 1
}

// NativeLocation adds a location of the native function fn at address.
func (m *ProfileBuilder) NativeLocation(fn int, address uint64) int {
	m.Locations = append(m.Locations, model.Location{
		FunctionIndex: fn,
		Address:       lo.ToPtr(address),
	})
	return len(m.Locations) - 1
}

// ForStacks adds a sample of thread tid. Both stacks are leaf first.
func (m *ProfileBuilder) ForStacks(tid model.ThreadID, elapsed time.Duration, stack, native []int) *ProfileBuilder {
	if stack == nil {
		stack = []int{}
	}
	if native == nil {
		native = []int{}
	}
	m.Samples = append(m.Samples, model.Sample{
		ElapsedTime: elapsed,
		ThreadID:    tid,
		Stack:       stack,
		NativeStack: native,
	})
	return m
}

// SimpleProfile returns the five-function, two-sample profile used across
// emitter tests: foo..quux in main.rb with stacks [2,1,0] and [4,3,2,1,0].
func SimpleProfile() *model.Profile {
	b := NewProfileBuilder(1737730800000000, 15*time.Second)
	for i, name := range []string{"foo", "bar", "baz", "qux", "quux"} {
		line := int32(10 * (i + 1))
		b.Location(b.InterpretedFunction(name, "main.rb", line), line)
	}
	b.ForStacks(1, time.Millisecond, []int{2, 1, 0}, nil)
	b.ForStacks(1, 2*time.Millisecond, []int{4, 3, 2, 1, 0}, nil)
	return b.Profile
}
