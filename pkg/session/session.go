// Package session is the control plane of the profiler: it validates the
// configuration, guarantees a single active session per process and turns
// the captured data into a Profile when the session is stopped.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"

	"github.com/grafana/pf2/pkg/model"
	"github.com/grafana/pf2/pkg/sampler"
	"github.com/grafana/pf2/pkg/util"
)

// active is set while a session of this process is running.
var active atomic.Bool

var currentTime = time.Now

type options struct {
	logger log.Logger
	reg    prometheus.Registerer
}

type Option func(*options)

func WithLogger(logger log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRegisterer registers the session metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.reg = reg }
}

// Session holds a validated configuration. It can be started any number of
// times, but only one session of the process can be active at once.
type Session struct {
	cfg      Config
	capturer sampler.Capturer
	logger   log.Logger
	metrics  *metrics
}

// New validates cfg and returns a session that is not started.
func New(cfg Config, capturer sampler.Capturer, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if capturer == nil {
		return nil, errors.New("session: nil capturer")
	}
	o := options{logger: util.Logger}
	for _, opt := range opts {
		opt(&o)
	}
	return &Session{
		cfg:      cfg,
		capturer: capturer,
		logger:   log.With(o.logger, "component", "session"),
		metrics:  newMetrics(o.reg),
	}, nil
}

func (s *Session) Config() Config { return s.cfg }

// Active is a running session.
type Active struct {
	id      uuid.UUID
	session *Session
	sampler *sampler.Sampler
	logger  log.Logger
	start   time.Time

	mu      sync.Mutex
	stopped bool
}

// Start installs the scheduling source. It fails with a *StateError if a
// session is already active in the process.
func (s *Session) Start() (*Active, error) {
	if !active.CompareAndSwap(false, true) {
		return nil, &StateError{Op: "start", Reason: "a session is already active"}
	}
	smp := sampler.New(s.cfg.samplerConfig(), s.capturer, s.logger)
	if err := smp.Start(context.Background()); err != nil {
		active.Store(false)
		return nil, err
	}
	a := &Active{id: uuid.New(), session: s, sampler: smp, start: smp.StartTime()}
	a.logger = log.With(s.logger, "session_id", a.id)
	s.metrics.started.Inc()
	level.Info(a.logger).Log("msg", "session started", "interval", s.cfg.Interval, "time_mode", s.cfg.TimeMode, "scheduler", s.cfg.Scheduler)
	return a, nil
}

// Stop tears down the scheduling source, waits for in-flight captures and
// returns the profile. Calling Stop again fails with a *StateError.
func (a *Active) Stop() (*model.Profile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return nil, &StateError{Op: "stop", Reason: "session is not active"}
	}
	a.stopped = true
	defer active.Store(false)

	res, err := a.sampler.Stop()
	if err != nil {
		return nil, err
	}
	duration := currentTime().Sub(a.start)
	p := &model.Profile{
		StartTime:            a.start,
		Duration:             duration,
		Interval:             a.session.cfg.Interval,
		CollectedSampleCount: a.sampler.Collected(),
		DroppedSampleCount:   a.sampler.Dropped(),
		Functions:            res.Functions,
		Locations:            res.Locations,
		Samples:              res.Samples,
	}

	m := a.session.metrics
	m.collected.Add(float64(p.CollectedSampleCount))
	m.dropped.Add(float64(p.DroppedSampleCount))
	m.duration.Observe(duration.Seconds())
	level.Info(a.logger).Log(
		"msg", "session stopped",
		"duration", duration,
		"collected", p.CollectedSampleCount,
		"dropped", p.DroppedSampleCount,
	)
	return p, nil
}

// ID identifies this run in logs.
func (a *Active) ID() uuid.UUID { return a.id }

// CollectedSampleCount returns the number of samples recorded so far.
func (a *Active) CollectedSampleCount() uint64 { return a.sampler.Collected() }

// DroppedSampleCount returns the number of captures discarded so far.
func (a *Active) DroppedSampleCount() uint64 { return a.sampler.Dropped() }

// Profile samples the calling thread while fn runs. The session is stopped
// when fn returns or panics; a panic is re-raised after the stop. The profile
// is returned along with fn's error, if any.
func Profile(cfg Config, capturer sampler.Capturer, fn func() error, opts ...Option) (p *model.Profile, err error) {
	if capturer == nil {
		return nil, errors.New("session: nil capturer")
	}
	cfg.Threads = []model.ThreadID{capturer.CurrentThread()}
	s, err := New(cfg, capturer, opts...)
	if err != nil {
		return nil, err
	}
	a, err := s.Start()
	if err != nil {
		return nil, err
	}

	defer func() {
		r := recover()
		profile, stopErr := a.Stop()
		p = profile
		if stopErr != nil {
			err = multierror.Append(err, stopErr)
		}
		if r != nil {
			panic(r)
		}
	}()

	if fnErr := fn(); fnErr != nil {
		err = multierror.Append(err, fmt.Errorf("profiled function: %w", fnErr))
	}
	return p, err
}
