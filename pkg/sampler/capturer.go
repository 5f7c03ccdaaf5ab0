// Package sampler drives an external stack capture engine: it schedules
// captures for the target threads, deduplicates symbols and accumulates the
// captured samples until the sampler is stopped.
package sampler

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/grafana/pf2/pkg/model"
)

// ErrDropped is returned by a Capturer when the thread could not be
// interrupted safely. The capture is counted as dropped.
var ErrDropped = errors.New("sample dropped")

// Limits are applied to every registered thread.
type Limits struct {
	MaxDepth       int
	MaxNativeDepth int
	TimeMode       TimeMode
}

// Capturer is implemented by the runtime specific engine taking stack
// snapshots.
type Capturer interface {
	// LiveThreads returns the threads alive at the time of the call.
	LiveThreads() []model.ThreadID
	// CurrentThread returns the calling thread.
	CurrentThread() model.ThreadID
	// RegisterThread prepares tid for sampling.
	RegisterThread(tid model.ThreadID, limits Limits) error
	// Capture takes a snapshot of both stacks of tid. Functions and locations
	// are resolved through symbols; the returned stacks are leaf first and
	// index into it. ThreadID and ElapsedTime are filled in by the sampler.
	Capture(tid model.ThreadID, symbols *SymbolTable) (model.Sample, error)
}

// TimeMode selects the clock driving the sampling interval.
type TimeMode int

const (
	CPUTime TimeMode = iota
	WallTime
)

func (m TimeMode) String() string {
	switch m {
	case CPUTime:
		return "cpu"
	case WallTime:
		return "wall"
	default:
		return fmt.Sprintf("TimeMode(%d)", int(m))
	}
}

func (m *TimeMode) Set(s string) error {
	switch strings.ToLower(s) {
	case "cpu":
		*m = CPUTime
	case "wall":
		*m = WallTime
	default:
		return fmt.Errorf("unknown time mode %q (expected cpu or wall)", s)
	}
	return nil
}

func (m TimeMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *TimeMode) UnmarshalText(text []byte) error { return m.Set(string(text)) }

// SchedulerKind selects what triggers captures.
type SchedulerKind int

const (
	// SignalScheduler triggers each target thread from its own timer.
	SignalScheduler SchedulerKind = iota
	// TimerThreadScheduler triggers all target threads from one timer.
	TimerThreadScheduler
)

func (k SchedulerKind) String() string {
	switch k {
	case SignalScheduler:
		return "signal"
	case TimerThreadScheduler:
		return "timer_thread"
	default:
		return fmt.Sprintf("SchedulerKind(%d)", int(k))
	}
}

func (k *SchedulerKind) Set(s string) error {
	switch strings.ToLower(s) {
	case "signal":
		*k = SignalScheduler
	case "timer_thread", "timer-thread":
		*k = TimerThreadScheduler
	default:
		return fmt.Errorf("unknown scheduler %q (expected signal or timer_thread)", s)
	}
	return nil
}

func (k SchedulerKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *SchedulerKind) UnmarshalText(text []byte) error { return k.Set(string(text)) }
