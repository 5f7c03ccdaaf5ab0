package testhelper

import (
	"fmt"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/atomic"

	"github.com/grafana/pf2/pkg/model"
	"github.com/grafana/pf2/pkg/sampler"
)

// FakeCapturer is an in-memory sampler.Capturer. Every capture returns the
// same stacks: Depth interpreted frames and NativeDepth native frames, leaf
// first.
type FakeCapturer struct {
	Threads     []model.ThreadID
	Current     model.ThreadID
	Depth       int
	NativeDepth int
	// DropEvery makes every n-th capture fail with sampler.ErrDropped.
	DropEvery uint64
	// RegisterErr is returned by RegisterThread when set.
	RegisterErr error

	captures atomic.Uint64
	inFlight atomic.Int64

	mu         sync.Mutex
	registered map[model.ThreadID]sampler.Limits
}

func NewFakeCapturer(threads ...model.ThreadID) *FakeCapturer {
	c := &FakeCapturer{
		Threads:     threads,
		Depth:       3,
		NativeDepth: 0,
		registered:  make(map[model.ThreadID]sampler.Limits),
	}
	if len(threads) > 0 {
		c.Current = threads[0]
	}
	return c
}

func (c *FakeCapturer) LiveThreads() []model.ThreadID { return c.Threads }

func (c *FakeCapturer) CurrentThread() model.ThreadID { return c.Current }

func (c *FakeCapturer) RegisterThread(tid model.ThreadID, limits sampler.Limits) error {
	if c.RegisterErr != nil {
		return c.RegisterErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registered[tid] = limits
	return nil
}

// Registered returns the limits tid was registered with.
func (c *FakeCapturer) Registered(tid model.ThreadID) (sampler.Limits, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.registered[tid]
	return l, ok
}

func (c *FakeCapturer) Capture(tid model.ThreadID, symbols *sampler.SymbolTable) (model.Sample, error) {
	c.inFlight.Inc()
	defer c.inFlight.Dec()
	n := c.captures.Inc()
	if c.DropEvery > 0 && n%c.DropEvery == 0 {
		return model.Sample{}, sampler.ErrDropped
	}
	stack := lo.Times(c.Depth, func(i int) int {
		fn := symbols.Function(model.Function{
			Name:           lo.ToPtr(fmt.Sprintf("frame%d", i)),
			Filename:       lo.ToPtr("main.rb"),
			StartLine:      lo.ToPtr(int32(i + 1)),
			Implementation: model.Interpreted,
		})
		return symbols.Location(model.Location{FunctionIndex: fn, Lineno: lo.ToPtr(int32(i + 1))})
	})
	native := lo.Times(c.NativeDepth, func(i int) int {
		fn := symbols.Function(model.Function{
			Name:           lo.ToPtr(fmt.Sprintf("native%d", i)),
			StartAddress:   lo.ToPtr(uint64(0x1000 * (i + 1))),
			Implementation: model.Native,
		})
		return symbols.Location(model.Location{FunctionIndex: fn, Address: lo.ToPtr(uint64(0x1000*(i+1) + 4))})
	})
	return model.Sample{Stack: stack, NativeStack: native}, nil
}

// Captures returns the number of Capture calls.
func (c *FakeCapturer) Captures() uint64 { return c.captures.Load() }

// InFlight returns the number of Capture calls that have not returned.
func (c *FakeCapturer) InFlight() int64 { return c.inFlight.Load() }
