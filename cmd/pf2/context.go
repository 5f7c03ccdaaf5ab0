package main

import (
	"context"
	"io"
	"os"

	"github.com/go-kit/log"
)

type contextKey uint8

const (
	contextKeyOutput contextKey = iota
	contextKeyLogger
)

func withOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, contextKeyOutput, w)
}

func output(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(contextKeyOutput).(io.Writer); ok {
		return w
	}
	return os.Stdout
}

func withLogger(ctx context.Context, logger log.Logger) context.Context {
	return context.WithValue(ctx, contextKeyLogger, logger)
}

func logger(ctx context.Context) log.Logger {
	if l, ok := ctx.Value(contextKeyLogger).(log.Logger); ok {
		return l
	}
	return log.NewNopLogger()
}
