package util

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/log/level"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

func TestNewLogger(t *testing.T) {
	for _, tc := range []struct {
		verbose bool
		lines   int
	}{
		{verbose: false, lines: 1},
		{verbose: true, lines: 2},
	} {
		t.Run(fmt.Sprint(tc.verbose), func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, tc.verbose)
			require.NoError(t, level.Debug(logger).Log("msg", "debug"))
			require.NoError(t, level.Info(logger).Log("msg", "info"))
			out := strings.TrimSpace(buf.String())
			assert.Len(t, strings.Split(out, "\n"), tc.lines)
			assert.Contains(t, out, "level=info")
			assert.Contains(t, out, "ts=")
		})
	}
}

func TestAsyncWriter_Write(t *testing.T) {
	var buf lockedBuffer
	w := NewAsyncWriter(&buf, 64, time.Hour)
	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Empty(t, buf.String())
	require.NoError(t, w.Close())
	assert.Equal(t, "hello", buf.String())
}

func TestAsyncWriter_Overflow(t *testing.T) {
	var buf lockedBuffer
	w := NewAsyncWriter(&buf, 8, time.Hour)
	_, _ = w.Write([]byte("hello"))
	_, _ = w.Write([]byte("world"))
	assert.Equal(t, "hello", buf.String())
	require.NoError(t, w.Close())
	assert.Equal(t, "helloworld", buf.String())
}

func TestAsyncWriter_Interval(t *testing.T) {
	var buf lockedBuffer
	w := NewAsyncWriter(&buf, 1024, time.Millisecond)
	defer w.Close()
	_, _ = w.Write([]byte("tick"))
	require.Eventually(t, func() bool { return buf.String() == "tick" }, time.Second, time.Millisecond)
}

func TestAsyncWriter_Close(t *testing.T) {
	var buf lockedBuffer
	w := NewAsyncWriter(&buf, 64, time.Hour)
	_, _ = w.Write([]byte("hello"))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	_, err := w.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
	assert.Equal(t, "hello", buf.String())
}

func TestAsyncWriter_ConcurrentWrites(t *testing.T) {
	var buf lockedBuffer
	w := NewAsyncWriter(&buf, 50, time.Millisecond)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = fmt.Fprintf(w, "hello %d\n", i)
		}()
	}
	wg.Wait()
	require.NoError(t, w.Close())
	assert.Len(t, buf.String(), 80)
}
