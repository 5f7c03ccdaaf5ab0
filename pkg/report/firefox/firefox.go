// Package firefox emits profiles in the Firefox Profiler processed profile
// format.
package firefox

import (
	"fmt"
	"io"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/grafana/pf2/pkg/model"
	"github.com/grafana/pf2/pkg/stacktree"
	"github.com/grafana/pf2/pkg/weaver"
)

const (
	DefaultProduct = "ruby"
	// DefaultInterval is reported when the profile does not record its
	// sampling interval.
	DefaultInterval = 10 * time.Millisecond

	formatVersion              = 28
	preprocessedProfileVersion = 47
)

// Category indices into Meta.Categories.
const (
	CategoryLogs = iota
	CategoryNative
	CategoryInterpreted
	CategoryNativeFrame
)

var categories = []Category{
	CategoryLogs:        {Name: "Logs", Color: "grey", Subcategories: []string{"Unused"}},
	CategoryNative:      {Name: "Native", Color: "blue", Subcategories: []string{"Code"}},
	CategoryInterpreted: {Name: "Interpreted", Color: "red", Subcategories: []string{"Code"}},
	CategoryNativeFrame: {Name: "Native", Color: "lightblue", Subcategories: []string{"Code"}},
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Emitter struct {
	logger     log.Logger
	product    string
	weaverOpts []weaver.Option
}

func NewEmitter(logger log.Logger, product string, opts ...weaver.Option) *Emitter {
	if product == "" {
		product = DefaultProduct
	}
	return &Emitter{logger: logger, product: product, weaverOpts: opts}
}

// Emit writes p as JSON. Nothing is written if p is malformed.
func (e *Emitter) Emit(w io.Writer, p *model.Profile) error {
	r, err := e.Build(p)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(w).Encode(r); err != nil {
		return errors.Wrap(err, "encode firefox profile")
	}
	return nil
}

// Build converts p into a report.
func (e *Emitter) Build(p *model.Profile) (*Report, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	r := &Report{
		Meta: Meta{
			Interval:                   durationMillis(interval),
			StartTime:                  float64(p.StartTime.UnixNano()) / 1e6,
			Product:                    e.product,
			Version:                    formatVersion,
			PreprocessedProfileVersion: preprocessedProfileVersion,
			Symbolicated:               true,
			Categories:                 categories,
			MarkerSchema:               []any{},
		},
		Libs:     []any{},
		Counters: []any{},
		Threads:  []ThreadReport{},
	}

	w := weaver.New(p, e.weaverOpts...)
	for i, g := range groupByThread(p.Samples) {
		t := newThreadBuilder(p, w, g.tid)
		r.Threads = append(r.Threads, t.build(e.product, i == 0, g.samples))
	}
	level.Debug(e.logger).Log("msg", "built firefox profile", "threads", len(r.Threads), "samples", len(p.Samples))
	return r, nil
}

type threadSamples struct {
	tid     model.ThreadID
	samples []*model.Sample
}

// groupByThread keeps threads in the order they first appear.
func groupByThread(samples []model.Sample) []threadSamples {
	var groups []threadSamples
	index := make(map[model.ThreadID]int)
	for i := range samples {
		s := &samples[i]
		g, ok := index[s.ThreadID]
		if !ok {
			g = len(groups)
			index[s.ThreadID] = g
			groups = append(groups, threadSamples{tid: s.ThreadID})
		}
		groups[g].samples = append(groups[g].samples, s)
	}
	return groups
}

type threadBuilder struct {
	profile *model.Profile
	weaver  *weaver.Weaver
	tid     model.ThreadID

	strings     []string
	stringIndex map[string]int
}

func newThreadBuilder(p *model.Profile, w *weaver.Weaver, tid model.ThreadID) *threadBuilder {
	return &threadBuilder{
		profile:     p,
		weaver:      w,
		tid:         tid,
		strings:     []string{},
		stringIndex: make(map[string]int),
	}
}

func (t *threadBuilder) build(product string, main bool, samples []*model.Sample) ThreadReport {
	funcs := t.funcTable()
	frames := t.frameTable()
	stacks, samplesTable := t.stackAndSamples(samples)
	return ThreadReport{
		ProcessType:   "default",
		ProcessName:   product,
		PausedRanges:  []any{},
		Name:          fmt.Sprintf("Thread (tid: %d)", t.tid),
		IsMainThread:  main,
		IsJSTracer:    true,
		PID:           uint64(t.tid),
		TID:           uint64(t.tid),
		Samples:       samplesTable,
		Markers:       emptyMarkers(),
		StackTable:    stacks,
		FrameTable:    frames,
		StringArray:   t.strings,
		FuncTable:     funcs,
		ResourceTable: ResourceTable{Lib: []any{}, Name: []any{}, Host: []any{}, Type: []any{}},
		NativeSymbols: []any{},
	}
}

func (t *threadBuilder) funcTable() FuncTable {
	n := len(t.profile.Functions)
	ft := FuncTable{
		Name:          make([]int, 0, n),
		IsJS:          make([]bool, 0, n),
		RelevantForJS: make([]bool, 0, n),
		Resource:      make([]int, 0, n),
		FileName:      make([]*int, 0, n),
		LineNumber:    make([]*int32, 0, n),
		ColumnNumber:  make([]*int32, 0, n),
		Length:        n,
	}
	for i := range t.profile.Functions {
		fn := &t.profile.Functions[i]
		ft.Name = append(ft.Name, t.stringID(displayName(fn)))
		ft.IsJS = append(ft.IsJS, fn.Implementation == model.Interpreted)
		ft.RelevantForJS = append(ft.RelevantForJS, false)
		ft.Resource = append(ft.Resource, -1)
		var file *int
		if fn.Filename != nil {
			id := t.stringID(*fn.Filename)
			file = &id
		}
		ft.FileName = append(ft.FileName, file)
		ft.LineNumber = append(ft.LineNumber, fn.StartLine)
		ft.ColumnNumber = append(ft.ColumnNumber, nil)
	}
	return ft
}

func (t *threadBuilder) frameTable() FrameTable {
	n := len(t.profile.Locations)
	ft := FrameTable{
		Address:        make([]*uint64, 0, n),
		Category:       make([]int, 0, n),
		Subcategory:    make([]int, 0, n),
		Func:           make([]int, 0, n),
		InnerWindowID:  make([]*int, 0, n),
		Implementation: make([]*string, 0, n),
		Line:           make([]*int32, 0, n),
		Column:         make([]*int32, 0, n),
		Optimizations:  make([]any, 0, n),
		InlineDepth:    make([]int, 0, n),
		NativeSymbol:   make([]*int, 0, n),
		Length:         n,
	}
	for i := range t.profile.Locations {
		loc := &t.profile.Locations[i]
		ft.Address = append(ft.Address, loc.Address)
		ft.Category = append(ft.Category, t.category(i))
		ft.Subcategory = append(ft.Subcategory, 0)
		ft.Func = append(ft.Func, loc.FunctionIndex)
		ft.InnerWindowID = append(ft.InnerWindowID, nil)
		ft.Implementation = append(ft.Implementation, nil)
		ft.Line = append(ft.Line, loc.Lineno)
		ft.Column = append(ft.Column, nil)
		ft.Optimizations = append(ft.Optimizations, nil)
		ft.InlineDepth = append(ft.InlineDepth, 0)
		ft.NativeSymbol = append(ft.NativeSymbol, nil)
	}
	return ft
}

// stackAndSamples builds the stack table from the woven stacks of the
// thread. Rows are laid out breadth first, so a prefix row always precedes
// its children.
func (t *threadBuilder) stackAndSamples(samples []*model.Sample) (StackTable, SamplesTable) {
	tree := stacktree.New()
	leaves := make([]int, len(samples))
	for i, s := range samples {
		leaves[i] = tree.Insert(t.weaver.Weave(s.Stack, s.NativeStack))
	}

	n := tree.Len()
	st := StackTable{
		Frame:       make([]int, 0, n),
		Category:    make([]int, 0, n),
		Subcategory: make([]int, 0, n),
		Prefix:      make([]*int, 0, n),
		Length:      n,
	}
	rows := make([]int, n)
	tree.Walk(func(node stacktree.Node) {
		rows[node.ID] = len(st.Frame)
		st.Frame = append(st.Frame, node.Location)
		st.Category = append(st.Category, t.category(node.Location))
		st.Subcategory = append(st.Subcategory, 0)
		var prefix *int
		if node.HasPrefix() {
			row := rows[node.Prefix]
			prefix = &row
		}
		st.Prefix = append(st.Prefix, prefix)
	})

	m := len(samples)
	sm := SamplesTable{
		EventDelay: make([]int, 0, m),
		Stack:      make([]*int, 0, m),
		Time:       make([]int64, 0, m),
		Duration:   make([]int, 0, m),
		WeightType: "samples",
		Length:     m,
	}
	for i, s := range samples {
		var stack *int
		if leaves[i] != stacktree.RootID {
			row := rows[leaves[i]]
			stack = &row
		}
		sm.Stack = append(sm.Stack, stack)
		sm.Time = append(sm.Time, s.ElapsedTime.Nanoseconds()/int64(time.Millisecond))
		sm.Duration = append(sm.Duration, 1)
		sm.EventDelay = append(sm.EventDelay, 0)
	}
	return st, sm
}

func (t *threadBuilder) category(loc int) int {
	if t.profile.Function(loc).Implementation == model.Native {
		return CategoryNativeFrame
	}
	return CategoryInterpreted
}

// stringID returns the id of s in the thread's string array.
func (t *threadBuilder) stringID(s string) int {
	if id, ok := t.stringIndex[s]; ok {
		return id
	}
	id := len(t.strings)
	t.strings = append(t.strings, s)
	t.stringIndex[s] = id
	return id
}

func displayName(fn *model.Function) string {
	name := "<unknown>"
	if fn.Name != nil {
		name = *fn.Name
	}
	if fn.Implementation == model.Native {
		return "Native: " + name
	}
	return name
}

func emptyMarkers() MarkersTable {
	return MarkersTable{
		Data:      []any{},
		Name:      []any{},
		Time:      []any{},
		StartTime: []any{},
		EndTime:   []any{},
		Phase:     []any{},
		Category:  []any{},
	}
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
