// Package report turns a stopped profile into one of the supported output
// formats.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-kit/log"

	"github.com/grafana/pf2/pkg/model"
	"github.com/grafana/pf2/pkg/report/firefox"
	"github.com/grafana/pf2/pkg/report/pprof"
	"github.com/grafana/pf2/pkg/util"
	"github.com/grafana/pf2/pkg/weaver"
)

type Format int

const (
	// Firefox is the Firefox Profiler processed profile format.
	Firefox Format = iota + 1
	// Pprof is the gzip compressed profile.proto format.
	Pprof
)

func (f Format) String() string {
	switch f {
	case Firefox:
		return "firefox"
	case Pprof:
		return "pprof"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ContentType returns the media type of the encoded report.
func (f Format) ContentType() string {
	switch f {
	case Firefox:
		return "application/json"
	case Pprof:
		return "application/octet-stream"
	default:
		return ""
	}
}

// ParseFormat resolves a format name as given on the command line or in a
// query string.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "firefox", "ff":
		return Firefox, nil
	case "pprof":
		return Pprof, nil
	default:
		return 0, &UnsupportedOutputError{Format: s}
	}
}

// Set implements flag.Value.
func (f *Format) Set(s string) error {
	v, err := ParseFormat(s)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Emitter writes a report of a profile. Implementations validate the profile
// before writing anything to w.
type Emitter interface {
	Emit(w io.Writer, p *model.Profile) error
}

type options struct {
	logger     log.Logger
	product    string
	weaverOpts []weaver.Option
}

type Option func(*options)

// WithSentinel sets the native function marking the entry into the
// interpreter.
func WithSentinel(m weaver.SentinelMatcher) Option {
	return func(o *options) {
		o.weaverOpts = append(o.weaverOpts, weaver.WithSentinel(m))
	}
}

func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithProduct sets the process name shown by the Firefox profiler.
func WithProduct(product string) Option {
	return func(o *options) {
		o.product = product
	}
}

// New returns the emitter for f.
func New(f Format, opts ...Option) (Emitter, error) {
	o := options{
		logger:  util.Logger,
		product: firefox.DefaultProduct,
	}
	for _, opt := range opts {
		opt(&o)
	}
	logger := log.With(o.logger, "format", f.String())
	switch f {
	case Firefox:
		return firefox.NewEmitter(logger, o.product, o.weaverOpts...), nil
	case Pprof:
		return pprof.NewEmitter(logger, o.weaverOpts...), nil
	default:
		return nil, &UnsupportedOutputError{Format: f.String()}
	}
}
