package model_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/pf2/pkg/model"
	"github.com/grafana/pf2/pkg/testhelper"
)

func TestProfile_Validate(t *testing.T) {
	for _, tc := range []struct {
		name    string
		mutate  func(p *model.Profile)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*model.Profile) {},
		},
		{
			name: "dangling function",
			mutate: func(p *model.Profile) {
				p.Locations[3].FunctionIndex = 42
			},
			wantErr: "location 3 references function 42",
		},
		{
			name: "negative function",
			mutate: func(p *model.Profile) {
				p.Locations[0].FunctionIndex = -1
			},
			wantErr: "location 0 references function -1",
		},
		{
			name: "dangling stack location",
			mutate: func(p *model.Profile) {
				p.Samples[1].Stack = append(p.Samples[1].Stack, 5)
			},
			wantErr: "sample 1: stack references location 5",
		},
		{
			name: "dangling native location",
			mutate: func(p *model.Profile) {
				p.Samples[0].NativeStack = []int{7}
			},
			wantErr: "sample 0: native_stack references location 7",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := testhelper.SimpleProfile()
			tc.mutate(p)
			err := p.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			var malformed *model.MalformedProfileError
			require.ErrorAs(t, err, &malformed)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestProfile_Function(t *testing.T) {
	p := testhelper.SimpleProfile()
	p.Locations[1].FunctionIndex = 4
	assert.Equal(t, "quux", *p.Function(1).Name)
}

func TestDumpRoundTrip(t *testing.T) {
	b := testhelper.NewProfileBuilder(1737730800000000123, 1500*time.Millisecond)
	b.Interval = 9 * time.Millisecond
	b.CollectedSampleCount = 3
	b.DroppedSampleCount = 1
	main := b.InterpretedFunction("<main>", "main.rb", 1)
	cfunc := b.BridgeFunction("Integer#times", 0xdeadbeef)
	native := b.NativeFunction("rb_int_times", 0xdeadbeef)
	b.Functions = append(b.Functions, model.Function{Implementation: model.Native})
	l0 := b.Location(main, 3)
	l1 := b.Location(cfunc, 3)
	l2 := b.NativeLocation(native, 0xdeadbeef+12)
	b.Locations = append(b.Locations, model.Location{FunctionIndex: 3})
	b.ForStacks(7, 10*time.Millisecond, []int{l1, l0}, []int{l2, 3})
	b.ForStacks(8, 11*time.Millisecond, []int{l0}, []int{})

	var buf bytes.Buffer
	require.NoError(t, model.WriteDump(&buf, b.Profile))
	assert.Contains(t, buf.String(), `"start_timestamp_ns":1737730800000000123`)
	assert.Contains(t, buf.String(), `"implementation":"native"`)
	assert.Contains(t, buf.String(), `"name":null`)

	actual, err := model.ReadDump(&buf)
	require.NoError(t, err)
	require.True(t, b.StartTime.Equal(actual.StartTime))
	actual.StartTime = b.StartTime
	require.Equal(t, b.Profile, actual)
}

func TestDumpRoundTrip_ZeroStartTime(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, model.WriteDump(&buf, &model.Profile{}))
	assert.Contains(t, buf.String(), `"start_timestamp_ns":0`)

	actual, err := model.ReadDump(&buf)
	require.NoError(t, err)
	assert.True(t, actual.StartTime.IsZero())
	assert.Equal(t, time.Time{}, actual.StartTime)
}

func TestReadDump_Invalid(t *testing.T) {
	_, err := model.ReadDump(bytes.NewBufferString(`{"functions": [{"implementation": "wasm"}]}`))
	require.Error(t, err)
}

func TestImplementation_Text(t *testing.T) {
	var impl model.Implementation
	require.NoError(t, impl.UnmarshalText([]byte("ruby")))
	assert.Equal(t, model.Interpreted, impl)
	require.NoError(t, impl.UnmarshalText([]byte("native")))
	assert.Equal(t, model.Native, impl)
	_, err := model.Implementation(9).MarshalText()
	require.Error(t, err)
}

func TestStack(t *testing.T) {
	in := []int{1, 2, 3}
	s := model.StackOf(in)
	in[2] = 42

	var seen []int
	s.Each(func(v int) bool {
		seen = append(seen, v)
		return v != 2
	})
	assert.Equal(t, []int{3, 2}, seen)

	for _, expected := range []int{3, 2, 1} {
		v, ok := s.Pop()
		require.True(t, ok)
		assert.Equal(t, expected, v)
	}
	assert.Equal(t, 0, s.Len())
	_, ok := s.Pop()
	assert.False(t, ok)
}

func TestQueue(t *testing.T) {
	var q model.Queue[string]
	q.Push("a")
	q.Push("b")
	v, _ := q.Pop()
	assert.Equal(t, "a", v)
	q.Push("c")
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, []string{"b", "c"}, lo.Times(2, func(int) string {
		v, _ := q.Pop()
		return v
	}))
	_, ok := q.Pop()
	assert.False(t, ok)
}
