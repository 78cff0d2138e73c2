package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Log destinations understood by Open. Anything else is a file path.
const (
	Stderr  = "stderr"
	Stdout  = "stdout"
	Discard = "discard"
)

type slogKeyT struct{}

var slogKey slogKeyT

type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(handler slog.Handler) ContextHandler {
	return ContextHandler{
		Handler: handler,
	}
}

func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if a, ok := ctx.Value(slogKey).([]slog.Attr); ok {
		r.AddAttrs(a...)
	}

	return h.Handler.Handle(ctx, r)
}

// ContextAttrs returns a context whose log records get attrs appended.
func ContextAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	a, ok := ctx.Value(slogKey).([]slog.Attr)
	if !ok || a == nil {
		a = make([]slog.Attr, 0, len(attrs))
	} else {
		a = append([]slog.Attr(nil), a...)
	}
	a = append(a, attrs...)
	return context.WithValue(ctx, slogKey, a)
}

func New(verbose bool, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	base := slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: false,
		Level:     level,
	})
	ctxHandler := NewContextHandler(base)
	return slog.New(ctxHandler)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// Open resolves a log destination. stdout and stderr are the streams to use
// for Stdout and Stderr; callers pass the original terminal streams so the
// log does not end up in captured output. A path is opened for appending.
func Open(dest string, stdout, stderr io.Writer) (io.WriteCloser, error) {
	switch dest {
	case "", Discard:
		return nopCloser{io.Discard}, nil
	case Stdout:
		return nopCloser{stdout}, nil
	case Stderr:
		return nopCloser{stderr}, nil
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", dest, err)
	}
	return f, nil
}
