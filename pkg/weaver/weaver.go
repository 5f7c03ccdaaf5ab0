// Package weaver merges the interpreter stack and the native stack captured
// for one sample into a single call sequence.
//
// Both stacks are walked from the root. The native stack is followed until
// the interpreter loop is entered (the sentinel function), then the
// interpreter stack is followed until a function implemented in native code
// is called, at which point the native stack takes over again.
package weaver

import (
	"github.com/grafana/pf2/pkg/model"
)

// DefaultSentinel is the native function of the Ruby VM that runs
// interpreted code.
const DefaultSentinel = "vm_exec_core"

// SentinelMatcher reports whether a native function marks the transition
// from native code into the interpreter.
type SentinelMatcher interface {
	IsSentinel(fn *model.Function) bool
}

// SentinelFunc adapts a function to a SentinelMatcher.
type SentinelFunc func(fn *model.Function) bool

func (f SentinelFunc) IsSentinel(fn *model.Function) bool { return f(fn) }

// FunctionName matches native functions whose name is exactly name.
func FunctionName(name string) SentinelMatcher {
	return SentinelFunc(func(fn *model.Function) bool {
		return fn.Name != nil && *fn.Name == name
	})
}

type Option func(*Weaver)

// WithSentinel replaces the default sentinel matcher.
func WithSentinel(m SentinelMatcher) Option {
	return func(w *Weaver) {
		if m != nil {
			w.sentinel = m
		}
	}
}

// Weaver weaves stacks of samples of one profile. The profile must be valid.
type Weaver struct {
	profile  *model.Profile
	sentinel SentinelMatcher
}

func New(p *model.Profile, opts ...Option) *Weaver {
	w := &Weaver{
		profile:  p,
		sentinel: FunctionName(DefaultSentinel),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type mode uint8

const (
	modeNative mode = iota
	modeInterpreted
)

// Weave returns the woven stack root first. stack and native are leaf first
// and are not modified. Every frame of both inputs appears exactly once in
// the result.
func (w *Weaver) Weave(stack, native []int) []int {
	interpreted := model.StackOf(stack)
	nat := model.StackOf(native)
	woven := make([]int, 0, len(stack)+len(native))

	current := modeNative
	for interpreted.Len() > 0 || nat.Len() > 0 {
		switch current {
		case modeNative:
			loc, ok := nat.Pop()
			if !ok {
				current = modeInterpreted
				continue
			}
			woven = append(woven, loc)
			if w.sentinel.IsSentinel(w.profile.Function(loc)) {
				current = modeInterpreted
			}

		case modeInterpreted:
			loc, ok := interpreted.Pop()
			if !ok {
				current = modeNative
				continue
			}
			woven = append(woven, loc)
			if w.callsNative(loc, nat) {
				current = modeNative
			}
		}
	}
	return woven
}

// callsNative reports whether the interpreted frame at loc is a bridge into
// native code that is present in the remaining native frames.
func (w *Weaver) callsNative(loc int, remaining *model.Stack[int]) bool {
	addr := w.profile.Function(loc).StartAddress
	if addr == nil {
		return false
	}
	var found bool
	remaining.Each(func(n int) bool {
		if a := w.profile.Function(n).StartAddress; a != nil && *a == *addr {
			found = true
		}
		return !found
	})
	return found
}
