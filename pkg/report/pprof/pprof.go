// Package pprof emits profiles as gzip compressed profile.proto.
package pprof

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"github.com/grafana/pf2/pkg/model"
	"github.com/grafana/pf2/pkg/pproflite"
	"github.com/grafana/pf2/pkg/weaver"
)

// DefaultPeriod is the per-sample value used when a profile has no samples.
const DefaultPeriod = 9 * time.Millisecond

var (
	gzipWriterPool = sync.Pool{
		New: func() any {
			return gzip.NewWriter(io.Discard)
		},
	}
	bufPool = sync.Pool{
		New: func() any {
			return bytes.NewBuffer(nil)
		},
	}
)

type Emitter struct {
	logger     log.Logger
	weaverOpts []weaver.Option
}

func NewEmitter(logger log.Logger, opts ...weaver.Option) *Emitter {
	return &Emitter{logger: logger, weaverOpts: opts}
}

// Emit writes p to w. Nothing is written if p is malformed.
func (e *Emitter) Emit(w io.Writer, p *model.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	buf := bufPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		bufPool.Put(buf)
	}()
	if err := e.encode(buf, p); err != nil {
		return err
	}
	raw := buf.Len()

	gzipWriter := gzipWriterPool.Get().(*gzip.Writer)
	gzipWriter.Reset(w)
	defer func() {
		gzipWriter.Reset(io.Discard)
		gzipWriterPool.Put(gzipWriter)
	}()
	if _, err := gzipWriter.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, "gzip write")
	}
	if err := gzipWriter.Close(); err != nil {
		return errors.Wrap(err, "gzip close")
	}
	level.Debug(e.logger).Log("msg", "encoded pprof profile", "samples", len(p.Samples), "uncompressed_bytes", raw)
	return nil
}

// Period returns the value attributed to each sample of p.
func Period(p *model.Profile) time.Duration {
	if len(p.Samples) == 0 {
		return DefaultPeriod
	}
	return p.Duration / time.Duration(len(p.Samples))
}

func (e *Emitter) encode(w io.Writer, p *model.Profile) error {
	enc := pproflite.NewEncoder(w)
	strs := newStringTable()
	period := int64(Period(p))

	samplesType := strs.add("samples")
	countUnit := strs.add("count")
	cpuType := strs.add("cpu")
	nanosUnit := strs.add("nanoseconds")

	fields := make([]pproflite.Field, 0, 2+len(p.Samples)+len(p.Locations)+len(p.Functions))
	fields = append(fields,
		pproflite.SampleType{ValueType: pproflite.ValueType{Type: samplesType, Unit: countUnit}},
		pproflite.SampleType{ValueType: pproflite.ValueType{Type: cpuType, Unit: nanosUnit}},
	)

	wv := weaver.New(p, e.weaverOpts...)
	for i := range p.Samples {
		s := &p.Samples[i]
		woven := wv.Weave(s.Stack, s.NativeStack)
		// Woven stacks are root first, profile.proto wants the leaf first.
		ids := make([]uint64, len(woven))
		for j, loc := range woven {
			ids[len(woven)-1-j] = uint64(loc) + 1
		}
		fields = append(fields, pproflite.Sample{LocationID: ids, Value: []int64{1, period}})
	}

	for i := range p.Locations {
		loc := &p.Locations[i]
		l := pproflite.Location{
			ID:   uint64(i) + 1,
			Line: []pproflite.Line{{FunctionID: uint64(loc.FunctionIndex) + 1}},
		}
		if loc.Address != nil {
			l.Address = *loc.Address
		}
		if loc.Lineno != nil {
			l.Line[0].Line = int64(*loc.Lineno)
		}
		fields = append(fields, l)
	}

	for i := range p.Functions {
		fn := &p.Functions[i]
		f := pproflite.Function{ID: uint64(i) + 1}
		if fn.Name != nil {
			f.Name = strs.add(*fn.Name)
			f.SystemName = f.Name
		}
		if fn.Filename != nil {
			f.FileName = strs.add(*fn.Filename)
		}
		if fn.StartLine != nil {
			f.StartLine = int64(*fn.StartLine)
		}
		fields = append(fields, f)
	}

	for _, s := range strs.values {
		fields = append(fields, pproflite.StringTable{Value: s})
	}
	fields = append(fields,
		pproflite.TimeNanos{Value: p.StartTime.UnixNano()},
		pproflite.DurationNanos{Value: int64(p.Duration)},
		pproflite.PeriodType{ValueType: pproflite.ValueType{Type: cpuType, Unit: nanosUnit}},
		pproflite.Period{Value: period},
	)

	for _, f := range fields {
		if err := enc.Encode(f); err != nil {
			return errors.Wrap(err, "encode pprof")
		}
	}
	return nil
}

type stringTable struct {
	values []string
	index  map[string]int64
}

// newStringTable returns a table holding the empty string at index 0.
func newStringTable() *stringTable {
	return &stringTable{
		values: []string{""},
		index:  map[string]int64{"": 0},
	}
}

func (t *stringTable) add(s string) int64 {
	if id, ok := t.index[s]; ok {
		return id
	}
	id := int64(len(t.values))
	t.values = append(t.values, s)
	t.index[s] = id
	return id
}
