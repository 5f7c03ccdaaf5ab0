package sampler

import (
	"github.com/grafana/pf2/pkg/model"
)

// RingBuffer hands captured samples from the capturing goroutines to the
// collector. Push never blocks.
type RingBuffer struct {
	ch chan model.Sample
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{ch: make(chan model.Sample, capacity)}
}

// Push adds s and reports whether there was room for it.
func (r *RingBuffer) Push(s model.Sample) bool {
	select {
	case r.ch <- s:
		return true
	default:
		return false
	}
}

// C returns the receiving end of the buffer. It is closed by Close.
func (r *RingBuffer) C() <-chan model.Sample { return r.ch }

// Close must only be called once no Push is in flight.
func (r *RingBuffer) Close() { close(r.ch) }
