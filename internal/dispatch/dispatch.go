package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/CZERTAINLY/cliform/internal/log"
	"github.com/CZERTAINLY/cliform/internal/schema"

	"github.com/google/uuid"
)

var (
	ErrRunNotStarted = errors.New("run not started")
	ErrRunInProgress = errors.New("run in progress")
	ErrNothingToRun  = errors.New("nothing to run")
)

// State of a Dispatcher.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// RunFunc is the user callback. It reports progress by writing to stdout and
// stderr; nothing it returns is interpreted. ctx is cancelled by
// Dispatcher.Cancel, observing it is optional.
type RunFunc func(ctx context.Context, inv *schema.Invocation)

// Handle identifies one run.
type Handle struct {
	ID      uuid.UUID
	Started time.Time
}

// Result describes a finished run.
type Result struct {
	Handle
	Stopped time.Time
	// Panic holds the recovered value when the callback panicked. A panic
	// still ends the run the same way a normal return does.
	Panic any
	Err   error
}

// task is sent exactly once from Start to the worker goroutine.
type task struct {
	fn  RunFunc
	inv *schema.Invocation
}

type run struct {
	handle Handle
	cancel context.CancelFunc
	done   chan struct{}
	result Result // written by the worker before done is closed
}

// Dispatcher runs at most one callback at a time in a background goroutine.
// Completion is observed by calling Poll, it never blocks.
type Dispatcher struct {
	mx     sync.Mutex
	stderr io.Writer
	active *run
	last   Result
}

// New returns an idle dispatcher. Panic reports of callbacks go to stderr.
func New(stderr io.Writer) *Dispatcher {
	if stderr == nil {
		stderr = io.Discard
	}
	return &Dispatcher{
		stderr: stderr,
		last:   Result{Err: ErrRunNotStarted},
	}
}

// Start spawns a goroutine running fn(inv). It returns ErrRunInProgress and
// does nothing when a run is still active.
func (d *Dispatcher) Start(ctx context.Context, inv *schema.Invocation, fn RunFunc) (Handle, error) {
	if inv == nil || fn == nil {
		return Handle{}, ErrNothingToRun
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.active != nil {
		return Handle{}, ErrRunInProgress
	}

	r := &run{
		handle: Handle{
			ID:      uuid.New(),
			Started: time.Now().UTC(),
		},
		done: make(chan struct{}),
	}
	ctx = log.ContextAttrs(ctx, slog.String("run_id", r.handle.ID.String()))
	ctx, r.cancel = context.WithCancel(ctx)

	handoff := make(chan task, 1)
	go d.work(ctx, r, handoff)
	handoff <- task{fn: fn, inv: inv}
	close(handoff)

	d.active = r
	slog.DebugContext(ctx, "run started", "tokens", schema.Quote(inv.Tokens()))
	return r.handle, nil
}

func (d *Dispatcher) work(ctx context.Context, r *run, handoff <-chan task) {
	defer close(r.done)
	t, ok := <-handoff
	r.result.Handle = r.handle
	defer func() {
		r.result.Stopped = time.Now().UTC()
		if p := recover(); p != nil {
			r.result.Panic = p
			_, _ = fmt.Fprintf(d.stderr, "panic: %v\n\n%s", p, debug.Stack())
			slog.ErrorContext(ctx, "run panicked", "panic", p)
		}
	}()
	if !ok {
		r.result.Err = ErrNothingToRun
		return
	}
	t.fn(ctx, t.inv)
}

// Poll reports whether a run is active. When the active run has finished it
// moves the dispatcher back to Idle and records the run's Result.
func (d *Dispatcher) Poll() bool {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.active == nil {
		return false
	}
	select {
	case <-d.active.done:
		d.active.cancel()
		d.last = d.active.result
		d.active = nil
		slog.Debug("run finished",
			"run_id", d.last.ID.String(),
			"duration", d.last.Stopped.Sub(d.last.Started).String(),
			"panicked", d.last.Panic != nil,
		)
		return false
	default:
		return true
	}
}

// State returns Running until Poll observes the end of the run.
func (d *Dispatcher) State() State {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.active != nil {
		return Running
	}
	return Idle
}

// Handle returns the active run, if any.
func (d *Dispatcher) Handle() (Handle, bool) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.active == nil {
		return Handle{}, false
	}
	return d.active.handle, true
}

// Cancel cancels the context given to the active callback. The run stays
// active until the callback returns.
func (d *Dispatcher) Cancel() {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.active != nil {
		d.active.cancel()
	}
}

// LastResult returns the result of the last run observed by Poll, or a
// result with ErrRunNotStarted.
func (d *Dispatcher) LastResult() Result {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.last
}
