package util

import (
	"bytes"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Logger is a nop global logger
var Logger = log.NewNopLogger()

// NewLogger returns a logfmt logger writing to w. Debug lines are filtered
// out unless verbose is set.
func NewLogger(w io.Writer, verbose bool) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	if verbose {
		return level.NewFilter(logger, level.AllowDebug())
	}
	return level.NewFilter(logger, level.AllowInfo())
}

// AsyncWriter batches log lines and writes them to the underlying writer
// once the batch exceeds bufSize or from a background goroutine every
// flushInterval. Write errors of the underlying writer are ignored.
type AsyncWriter struct {
	w       io.Writer
	bufSize int

	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func NewAsyncWriter(w io.Writer, bufSize int, flushInterval time.Duration) *AsyncWriter {
	aw := &AsyncWriter{
		w:       w,
		bufSize: bufSize,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	aw.buf.Grow(bufSize)
	go aw.loop(flushInterval)
	return aw
}

func (aw *AsyncWriter) Write(p []byte) (int, error) {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	if aw.closed {
		return 0, os.ErrClosed
	}
	if aw.buf.Len()+len(p) > aw.bufSize {
		aw.flushLocked()
	}
	return aw.buf.Write(p)
}

func (aw *AsyncWriter) flushLocked() {
	if aw.buf.Len() == 0 {
		return
	}
	_, _ = aw.w.Write(aw.buf.Bytes())
	aw.buf.Reset()
}

func (aw *AsyncWriter) loop(interval time.Duration) {
	defer close(aw.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			aw.mu.Lock()
			aw.flushLocked()
			aw.mu.Unlock()
		case <-aw.stop:
			return
		}
	}
}

// Close flushes everything written so far. Writes after Close fail with
// os.ErrClosed.
func (aw *AsyncWriter) Close() error {
	aw.once.Do(func() {
		close(aw.stop)
		<-aw.done
		aw.mu.Lock()
		defer aw.mu.Unlock()
		aw.flushLocked()
		aw.closed = true
	})
	return nil
}
