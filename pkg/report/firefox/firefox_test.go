package firefox_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/go-kit/log"
	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/pf2/pkg/model"
	"github.com/grafana/pf2/pkg/report/firefox"
	"github.com/grafana/pf2/pkg/testhelper"
)

func newEmitter() *firefox.Emitter {
	return firefox.NewEmitter(log.NewNopLogger(), "")
}

func TestBuild_Empty(t *testing.T) {
	r, err := newEmitter().Build(&model.Profile{})
	require.NoError(t, err)
	assert.Empty(t, r.Threads)
	assert.Equal(t, 10.0, r.Meta.Interval)
	assert.Equal(t, "ruby", r.Meta.Product)

	var buf bytes.Buffer
	require.NoError(t, newEmitter().Emit(&buf, &model.Profile{}))
	var decoded map[string]any
	require.NoError(t, jsoniter.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, []any{}, decoded["threads"])
	assert.Equal(t, []any{}, decoded["libs"])
	assert.Equal(t, []any{}, decoded["counters"])
}

func TestBuild_SimpleProfile(t *testing.T) {
	r, err := newEmitter().Build(testhelper.SimpleProfile())
	require.NoError(t, err)
	require.Len(t, r.Threads, 1)
	th := r.Threads[0]

	assert.Equal(t, "Thread (tid: 1)", th.Name)
	assert.True(t, th.IsMainThread)
	assert.Equal(t, 5, th.StackTable.Length)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, th.StackTable.Frame)
	assert.Equal(t, []*int{nil, lo.ToPtr(0), lo.ToPtr(1), lo.ToPtr(2), lo.ToPtr(3)}, th.StackTable.Prefix)
	assert.Equal(t, []int{2, 2, 2, 2, 2}, th.StackTable.Category)
	assert.Equal(t, []string{"foo", "main.rb", "bar", "baz", "qux", "quux"}, th.StringArray)

	assert.Equal(t, 5, th.FuncTable.Length)
	assert.Equal(t, []int{0, 2, 3, 4, 5}, th.FuncTable.Name)
	assert.Equal(t, []*int{lo.ToPtr(1), lo.ToPtr(1), lo.ToPtr(1), lo.ToPtr(1), lo.ToPtr(1)}, th.FuncTable.FileName)
	assert.Equal(t, []bool{true, true, true, true, true}, th.FuncTable.IsJS)

	assert.Equal(t, 5, th.FrameTable.Length)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, th.FrameTable.Func)
	assert.Equal(t, int32(30), *th.FrameTable.Line[2])

	assert.Equal(t, 2, th.Samples.Length)
	assert.Equal(t, []*int{lo.ToPtr(2), lo.ToPtr(4)}, th.Samples.Stack)
	assert.Equal(t, []int64{1, 2}, th.Samples.Time)
	assert.Equal(t, []int{1, 1}, th.Samples.Duration)
}

func TestBuild_Threads(t *testing.T) {
	b := testhelper.NewProfileBuilder(1737730800000000000, time.Second)
	b.Interval = 9 * time.Millisecond
	main := b.InterpretedFunction("<main>", "main.rb", 1)
	cfunc := b.BridgeFunction("Integer#times", 0xbeef)
	sleep := b.InterpretedFunction("sleep", "<internal:kernel>", 1)
	cmain := b.NativeFunction("main", 0)
	vm := b.NativeFunction("vm_exec_core", 0)
	times := b.NativeFunction("rb_int_times", 0xbeef)
	b.Functions = append(b.Functions, model.Function{Implementation: model.Native})
	l0 := b.Location(main, 2)
	l1 := b.Location(cfunc, 2)
	l2 := b.Location(sleep, 5)
	l3 := b.NativeLocation(cmain, 0x10)
	l4 := b.NativeLocation(vm, 0x20)
	l5 := b.NativeLocation(times, 0xbeef+4)
	l6 := b.NativeLocation(6, 0x30)

	b.ForStacks(20, 1500*time.Microsecond, []int{l1, l0}, []int{l6, l5, l4, l3})
	b.ForStacks(10, 2*time.Millisecond, []int{l2}, nil)
	b.ForStacks(20, 3999*time.Microsecond, []int{l1, l0}, []int{l5, l4, l3})
	b.ForStacks(10, 4*time.Millisecond, nil, nil)

	r, err := firefox.NewEmitter(log.NewNopLogger(), "app").Build(b.Profile)
	require.NoError(t, err)
	assert.Equal(t, 9.0, r.Meta.Interval)
	assert.Equal(t, float64(1737730800000), r.Meta.StartTime)
	require.Len(t, r.Threads, 2)
	assert.Equal(t, uint64(20), r.Threads[0].TID)
	assert.Equal(t, uint64(10), r.Threads[1].TID)
	assert.True(t, r.Threads[0].IsMainThread)
	assert.False(t, r.Threads[1].IsMainThread)
	assert.Equal(t, "app", r.Threads[1].ProcessName)

	th := r.Threads[0]
	// main vm_exec_core <main> Integer#times rb_int_times (unknown)
	assert.Equal(t, []int{l3, l4, l0, l1, l5, l6}, th.StackTable.Frame)
	assert.Equal(t, []int{3, 3, 2, 2, 3, 3}, th.StackTable.Category)
	assert.Equal(t, []*int{lo.ToPtr(5), lo.ToPtr(4)}, th.Samples.Stack)
	assert.Equal(t, []int64{1, 3}, th.Samples.Time)
	assert.Equal(t, "Native: rb_int_times", th.StringArray[th.FuncTable.Name[times]])
	assert.Equal(t, "Native: <unknown>", th.StringArray[th.FuncTable.Name[6]])
	assert.Nil(t, th.FuncTable.FileName[times])
	assert.Equal(t, lo.ToPtr(uint64(0xbeef+4)), th.FrameTable.Address[l5])
	assert.Equal(t, 3, th.FrameTable.Category[l5])

	th = r.Threads[1]
	assert.Equal(t, []int{l2}, th.StackTable.Frame)
	assert.Equal(t, []*int{lo.ToPtr(0), nil}, th.Samples.Stack)
	// String ids are per thread.
	assert.Equal(t, "<main>", th.StringArray[0])
}

func TestEmit_Malformed(t *testing.T) {
	p := testhelper.SimpleProfile()
	p.Samples[0].Stack = append(p.Samples[0].Stack, 99)

	var buf bytes.Buffer
	err := newEmitter().Emit(&buf, p)
	var malformed *model.MalformedProfileError
	require.ErrorAs(t, err, &malformed)
	assert.Zero(t, buf.Len())
}

func TestEmit_Keys(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newEmitter().Emit(&buf, testhelper.SimpleProfile()))

	var decoded struct {
		Meta    map[string]any   `json:"meta"`
		Threads []map[string]any `json:"threads"`
	}
	require.NoError(t, jsoniter.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded.Meta["categories"], 4)
	require.Len(t, decoded.Threads, 1)
	for _, key := range []string{
		"processType", "processName", "name", "pid", "tid", "samples", "markers",
		"stackTable", "frameTable", "stringArray", "funcTable", "resourceTable", "nativeSymbols",
	} {
		assert.Contains(t, decoded.Threads[0], key)
	}
	for _, table := range []string{"samples", "markers", "stackTable", "frameTable", "funcTable", "resourceTable"} {
		assert.Contains(t, decoded.Threads[0][table], "length", table)
	}
	prefix := decoded.Threads[0]["stackTable"].(map[string]any)["prefix"].([]any)
	assert.Nil(t, prefix[0])
	assert.Equal(t, 0.0, prefix[1])
}
