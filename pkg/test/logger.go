// SPDX-License-Identifier: AGPL-3.0-only

package test

import (
	"bytes"
	"testing"

	"github.com/go-kit/log"
)

type testingWriter struct {
	t testing.TB
}

func (w testingWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}

// NewTestingLogger returns a logfmt logger writing through t.Log, so that
// output is attached to the test that produced it.
func NewTestingLogger(t testing.TB) log.Logger {
	return log.NewLogfmtLogger(log.NewSyncWriter(testingWriter{t: t}))
}
