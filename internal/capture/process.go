package capture

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// only one Process may own stdout/stderr at a time
var active atomic.Bool

// closeGrace is how long Close lets the readers drain the pipes. A child
// process that inherited stdout or stderr keeps the pipe open after the
// descriptors are restored.
const closeGrace = 200 * time.Millisecond

// Process captures the process wide standard output and error.
type Process struct {
	out stream
	err stream

	stdout *redirect
	stderr *redirect

	g       errgroup.Group
	closeMx sync.Mutex
	closed  bool
}

// Start redirects stdout and stderr of the whole process into pipes read by
// two background goroutines. It must be called before anything that should be
// captured runs. Errors wrap ErrCaptureSetup and are meant to be fatal.
func Start() (*Process, error) {
	if !active.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: %w", ErrCaptureSetup, ErrAlreadyActive)
	}

	p := &Process{}
	var err error
	p.stdout, err = redirectStream(&os.Stdout, 1)
	if err != nil {
		active.Store(false)
		return nil, fmt.Errorf("%w: stdout: %w", ErrCaptureSetup, err)
	}
	p.stderr, err = redirectStream(&os.Stderr, 2)
	if err != nil {
		_ = p.stdout.restore()
		active.Store(false)
		return nil, fmt.Errorf("%w: stderr: %w", ErrCaptureSetup, err)
	}

	p.g.Go(func() error {
		return pump(&p.out, p.stdout.r)
	})
	p.g.Go(func() error {
		return pump(&p.err, p.stderr.r)
	})
	return p, nil
}

func pump(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	if errors.Is(err, os.ErrClosed) || errors.Is(err, os.ErrDeadlineExceeded) {
		return nil
	}
	return err
}

// Stdout returns the write end of the stdout pipe.
func (p *Process) Stdout() io.Writer { return p.stdout.w }

// Stderr returns the write end of the stderr pipe.
func (p *Process) Stderr() io.Writer { return p.stderr.w }

// Original returns the standard output and error as they were before Start.
// A renderer draws to these until Close.
func (p *Process) Original() (stdout, stderr *os.File) {
	return p.stdout.orig, p.stderr.orig
}

func (p *Process) Drain() string {
	p.closeMx.Lock()
	closed := p.closed
	p.closeMx.Unlock()
	if closed {
		var sb strings.Builder
		p.out.flushTo(&sb)
		p.err.flushTo(&sb)
		return sb.String()
	}
	return drain(&p.out, &p.err)
}

// Close restores the original descriptors, lets the readers consume what is
// left in the pipes for at most closeGrace and releases the process wide
// capture. Text still pending is returned by the next Drain. Whatever a
// still running child writes afterwards is lost.
func (p *Process) Close() error {
	p.closeMx.Lock()
	defer p.closeMx.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	errs := []error{
		p.stdout.restore(),
		p.stderr.restore(),
	}
	deadline := time.Now().Add(closeGrace)
	for _, r := range []*os.File{p.stdout.r, p.stderr.r} {
		if err := r.SetReadDeadline(deadline); err != nil {
			slog.Debug("capture reader has no deadline", "error", err)
		}
	}
	if err := p.g.Wait(); err != nil {
		slog.Debug("capture reader stopped", "error", err)
		errs = append(errs, err)
	}
	errs = append(errs, p.stdout.r.Close(), p.stderr.r.Close())
	active.Store(false)
	return errors.Join(errs...)
}
