package sampler

import (
	"context"
	"sync"
	"time"

	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/grafana/pf2/pkg/model"
)

// Scheduler triggers captures of the target threads every interval.
type Scheduler interface {
	// Install starts triggering. Cancelling ctx stops triggering, Uninstall
	// must still be called.
	Install(ctx context.Context) error
	// Uninstall stops triggering and returns once no capture is in flight.
	Uninstall()
}

// NewScheduler returns a scheduler of the given kind calling tick for every
// thread in threads.
func NewScheduler(kind SchedulerKind, interval time.Duration, threads []model.ThreadID, tick func(model.ThreadID)) (Scheduler, error) {
	if interval <= 0 {
		return nil, errors.Errorf("invalid interval %s", interval)
	}
	switch kind {
	case SignalScheduler:
		return &signalScheduler{interval: interval, threads: threads, tick: tick}, nil
	case TimerThreadScheduler:
		return newTimerThreadScheduler(interval, threads, tick), nil
	default:
		return nil, errors.Errorf("unknown scheduler %s", kind)
	}
}

// signalScheduler runs one timer per thread.
type signalScheduler struct {
	interval time.Duration
	threads  []model.ThreadID
	tick     func(model.ThreadID)

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

func (s *signalScheduler) Install(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.group != nil {
		return errors.New("scheduler already installed")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.group, ctx = errgroup.WithContext(ctx)
	for _, tid := range s.threads {
		s.group.Go(func() error {
			ticker := time.NewTicker(s.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					s.tick(tid)
				}
			}
		})
	}
	return nil
}

func (s *signalScheduler) Uninstall() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.group == nil {
		return
	}
	s.cancel()
	_ = s.group.Wait()
	s.group = nil
}

// timerThreadScheduler visits all threads from a single timer service.
type timerThreadScheduler struct {
	threads []model.ThreadID
	tick    func(model.ThreadID)
	service services.Service
}

func newTimerThreadScheduler(interval time.Duration, threads []model.ThreadID, tick func(model.ThreadID)) *timerThreadScheduler {
	s := &timerThreadScheduler{threads: threads, tick: tick}
	s.service = services.NewTimerService(interval, nil, s.iteration, nil)
	return s
}

func (s *timerThreadScheduler) iteration(ctx context.Context) error {
	for _, tid := range s.threads {
		if ctx.Err() != nil {
			return nil
		}
		s.tick(tid)
	}
	return nil
}

func (s *timerThreadScheduler) Install(ctx context.Context) error {
	return services.StartAndAwaitRunning(ctx, s.service)
}

func (s *timerThreadScheduler) Uninstall() {
	_ = services.StopAndAwaitTerminated(context.Background(), s.service)
}
