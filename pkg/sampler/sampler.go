package sampler

import (
	"context"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/grafana/pf2/pkg/model"
)

// DefaultBufferSize is the number of captured samples that may wait for the
// collector before new captures are dropped.
const DefaultBufferSize = 4096

var currentTime = time.Now

type Config struct {
	Interval   time.Duration
	Scheduler  SchedulerKind
	Limits     Limits
	Threads    []model.ThreadID
	BufferSize int
}

// Result holds everything captured between Start and Stop.
type Result struct {
	Functions []model.Function
	Locations []model.Location
	Samples   []model.Sample
}

// Sampler owns the scheduling source, the symbol table and the collector of
// one sampling run. A Sampler cannot be restarted.
type Sampler struct {
	cfg      Config
	capturer Capturer
	logger   log.Logger

	symbols   *SymbolTable
	buffer    *RingBuffer
	scheduler Scheduler

	start     time.Time
	collected atomic.Uint64
	dropped   atomic.Uint64

	mu      sync.Mutex
	started bool
	stopped bool
	done    chan struct{}
	samples []model.Sample
}

func New(cfg Config, capturer Capturer, logger log.Logger) *Sampler {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	return &Sampler{
		cfg:      cfg,
		capturer: capturer,
		logger:   logger,
		symbols:  NewSymbolTable(),
		buffer:   NewRingBuffer(cfg.BufferSize),
		done:     make(chan struct{}),
	}
}

// Start registers the target threads and installs the scheduler.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("sampler already started")
	}

	threads := s.cfg.Threads
	if threads == nil {
		threads = s.capturer.LiveThreads()
	}
	for _, tid := range threads {
		if err := s.capturer.RegisterThread(tid, s.cfg.Limits); err != nil {
			return errors.Wrapf(err, "register thread %d", tid)
		}
	}
	scheduler, err := NewScheduler(s.cfg.Scheduler, s.cfg.Interval, threads, s.capture)
	if err != nil {
		return err
	}

	s.start = currentTime()
	go s.collect()
	if err = scheduler.Install(ctx); err != nil {
		s.buffer.Close()
		<-s.done
		s.started, s.stopped = true, true
		return errors.Wrap(err, "install scheduler")
	}
	s.scheduler = scheduler
	s.started = true
	level.Debug(s.logger).Log("msg", "sampler started", "threads", len(threads), "scheduler", s.cfg.Scheduler, "interval", s.cfg.Interval)
	return nil
}

// Stop uninstalls the scheduler, waits for in-flight captures and returns
// the captured data.
func (s *Sampler) Stop() (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopped {
		return nil, errors.New("sampler not running")
	}
	s.stopped = true
	s.scheduler.Uninstall()
	s.buffer.Close()
	<-s.done

	if s.samples == nil {
		s.samples = []model.Sample{}
	}
	functions, locations := s.symbols.Snapshot()
	level.Debug(s.logger).Log("msg", "sampler stopped", "collected", s.collected.Load(), "dropped", s.dropped.Load())
	return &Result{
		Functions: functions,
		Locations: locations,
		Samples:   s.samples,
	}, nil
}

// Collected returns the number of samples recorded so far.
func (s *Sampler) Collected() uint64 { return s.collected.Load() }

// Dropped returns the number of captures that were attempted but discarded.
func (s *Sampler) Dropped() uint64 { return s.dropped.Load() }

// StartTime is the time the scheduler was installed.
func (s *Sampler) StartTime() time.Time { return s.start }

// capture runs on the scheduler goroutines.
func (s *Sampler) capture(tid model.ThreadID) {
	sample, err := s.capturer.Capture(tid, s.symbols)
	if err != nil {
		s.dropped.Inc()
		if !errors.Is(err, ErrDropped) {
			level.Warn(s.logger).Log("msg", "capture failed", "tid", tid, "err", err)
		}
		return
	}
	sample.ThreadID = tid
	sample.ElapsedTime = currentTime().Sub(s.start)
	if !s.buffer.Push(sample) {
		s.dropped.Inc()
	}
}

// collect drains the buffer until it is closed.
func (s *Sampler) collect() {
	defer close(s.done)
	last := make(map[model.ThreadID]time.Duration)
	for sample := range s.buffer.C() {
		sample.Stack = truncate(sample.Stack, s.cfg.Limits.MaxDepth)
		sample.NativeStack = truncate(sample.NativeStack, s.cfg.Limits.MaxNativeDepth)
		if prev, ok := last[sample.ThreadID]; ok && sample.ElapsedTime < prev {
			sample.ElapsedTime = prev
		}
		last[sample.ThreadID] = sample.ElapsedTime
		s.samples = append(s.samples, sample)
		s.collected.Inc()
	}
}

// truncate keeps the limit leaf-most frames of a leaf first stack.
func truncate(stack []int, limit int) []int {
	if stack == nil {
		return []int{}
	}
	if limit > 0 && len(stack) > limit {
		return stack[:limit]
	}
	return stack
}
