// Package capture collects the text a running task writes to stdout and stderr,
// so a renderer can poll it.
//
// Two implementations exist:
//   - Process redirects the process wide stdout/stderr (file descriptors 1 and 2
//     on unix) into pipes. Anything written by the task, including fmt.Println,
//     the log package or child processes, is captured.
//   - Buffer is a pair of in-memory writers a task writes to explicitly.
//
// Both expose Drain, which is non-blocking and returns text written since the
// previous call. Order within one stream is preserved, there is no ordering
// between stdout and stderr.
package capture

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"
)

var (
	ErrCaptureSetup  = errors.New("output capture setup failed")
	ErrAlreadyActive = errors.New("output capture is already active")
)

// Channel is what the coordinator needs from an output capture.
type Channel interface {
	// Stdout returns the writer standing for standard output.
	Stdout() io.Writer
	// Stderr returns the writer standing for standard error.
	Stderr() io.Writer
	// Drain returns text produced since the last call, or an empty string.
	Drain() string
}

// stream accumulates bytes until drained. An incomplete UTF-8 sequence at
// the end is kept for the next drain.
type stream struct {
	mx      sync.Mutex
	pending []byte
}

func (s *stream) Write(p []byte) (int, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.pending = append(s.pending, p...)
	return len(p), nil
}

func (s *stream) drainTo(sb *strings.Builder) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if len(s.pending) == 0 {
		return
	}
	n := complete(s.pending)
	sb.WriteString(strings.ToValidUTF8(string(s.pending[:n]), string(utf8.RuneError)))
	rest := len(s.pending) - n
	copy(s.pending, s.pending[n:])
	s.pending = s.pending[:rest]
}

// flush drains everything, including an incomplete trailing sequence.
func (s *stream) flushTo(sb *strings.Builder) {
	s.mx.Lock()
	defer s.mx.Unlock()
	sb.WriteString(strings.ToValidUTF8(string(s.pending), string(utf8.RuneError)))
	s.pending = s.pending[:0]
}

// complete returns the length of the longest prefix of b not ending in the
// middle of a UTF-8 sequence.
func complete(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return len(b)
		}
		return i
	}
	return len(b)
}

func drain(out, err *stream) string {
	var sb strings.Builder
	out.drainTo(&sb)
	err.drainTo(&sb)
	return sb.String()
}

// Buffer is a Channel backed by memory only. The task must write to
// Stdout() and Stderr() explicitly.
type Buffer struct {
	out stream
	err stream
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Stdout() io.Writer { return &b.out }
func (b *Buffer) Stderr() io.Writer { return &b.err }

func (b *Buffer) Drain() string {
	return drain(&b.out, &b.err)
}

type channelKeyT struct{}

var channelKey channelKeyT

// WithChannel returns a context carrying ch, so a task can look up the
// writers it is supposed to use.
func WithChannel(ctx context.Context, ch Channel) context.Context {
	return context.WithValue(ctx, channelKey, ch)
}

// Stdout returns the stdout writer of the channel stored in ctx, or os.Stdout.
func Stdout(ctx context.Context) io.Writer {
	if ch, ok := ctx.Value(channelKey).(Channel); ok {
		return ch.Stdout()
	}
	return os.Stdout
}

// Stderr returns the stderr writer of the channel stored in ctx, or os.Stderr.
func Stderr(ctx context.Context) io.Writer {
	if ch, ok := ctx.Value(channelKey).(Channel); ok {
		return ch.Stderr()
	}
	return os.Stderr
}
