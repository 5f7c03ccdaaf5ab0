// Package server exposes the profile of a running session over HTTP.
package server

import (
	"bytes"
	"net/http"
	"strconv"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grafana/pf2/pkg/model"
	"github.com/grafana/pf2/pkg/report"
	"github.com/grafana/pf2/pkg/session"
	"github.com/grafana/pf2/pkg/util"
)

type options struct {
	reg      prometheus.Registerer
	gatherer prometheus.Gatherer
	product  string
}

type Option func(*options)

// WithRegistry registers the server metrics with reg and serves reg on
// /metrics. The default registry is used otherwise.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.reg = reg
		o.gatherer = reg
	}
}

// WithProduct sets the product name written to firefox reports.
func WithProduct(product string) Option {
	return func(o *options) { o.product = product }
}

// Server keeps one session running. Every profile request stops it, reports
// what it collected and starts the next one.
type Server struct {
	sess     *session.Session
	logger   log.Logger
	gatherer prometheus.Gatherer
	product  string
	requests *prometheus.CounterVec

	mu     sync.Mutex
	active *session.Active
}

// New starts a session and returns the server serving its profiles.
func New(sess *session.Session, logger log.Logger, opts ...Option) (*Server, error) {
	o := options{
		reg:      prometheus.DefaultRegisterer,
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = util.Logger
	}
	s := &Server{
		sess:     sess,
		logger:   log.With(logger, "component", "server"),
		gatherer: o.gatherer,
		product:  o.product,
		requests: util.RegisterOrGet(o.reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pf2_http_requests_total",
			Help: "Number of profile requests by format and status code.",
		}, []string{"format", "code"})),
	}
	active, err := sess.Start()
	if err != nil {
		return nil, err
	}
	s.active = active
	return s, nil
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/profile", s.profileHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

func (s *Server) profileHandler(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("format")
	if name == "" {
		name = report.Firefox.String()
	}
	format, err := report.ParseFormat(name)
	if err != nil {
		s.writeError(w, "unknown", http.StatusBadRequest, err)
		return
	}
	emitter, err := report.New(format, report.WithLogger(s.logger), report.WithProduct(s.product))
	if err != nil {
		s.writeError(w, format.String(), http.StatusBadRequest, err)
		return
	}

	p, err := s.rotate()
	if err != nil {
		s.writeError(w, format.String(), http.StatusInternalServerError, err)
		return
	}
	var buf bytes.Buffer
	if err = emitter.Emit(&buf, p); err != nil {
		s.writeError(w, format.String(), http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	if _, err = w.Write(buf.Bytes()); err != nil {
		level.Warn(s.logger).Log("msg", "failed to write profile", "err", err)
	}
	s.requests.WithLabelValues(format.String(), strconv.Itoa(http.StatusOK)).Inc()
	level.Debug(s.logger).Log(
		"msg", "profile served",
		"format", format,
		"samples", len(p.Samples),
		"size", humanize.Bytes(uint64(buf.Len())),
	)
}

// rotate stops the running session and starts the next one. A failure to
// start the next session is logged; the following request reports it.
func (s *Server) rotate() (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		active, err := s.sess.Start()
		if err != nil {
			return nil, errors.Wrap(err, "no session running")
		}
		s.active = active
	}
	p, err := s.active.Stop()
	s.active = nil
	if err != nil {
		return nil, err
	}
	active, err := s.sess.Start()
	if err != nil {
		level.Error(s.logger).Log("msg", "failed to start next session", "err", err)
		return p, nil
	}
	s.active = active
	return p, nil
}

func (s *Server) writeError(w http.ResponseWriter, format string, code int, err error) {
	level.Warn(s.logger).Log("msg", "profile request failed", "format", format, "code", code, "err", err)
	s.requests.WithLabelValues(format, strconv.Itoa(code)).Inc()
	http.Error(w, err.Error(), code)
}

// Close stops the running session.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	_, err := s.active.Stop()
	s.active = nil
	return err
}
