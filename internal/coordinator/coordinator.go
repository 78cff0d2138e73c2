// Package coordinator connects the form generated from a cobra command with
// the background run of the user callback and the captured output of that run.
//
// A host calls Tick once per frame (drain captured output, then poll the run),
// reads Output and the form entries, and calls Run or Clear on user request.
// Every method is meant to be called from the host's goroutine.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/CZERTAINLY/cliform/internal/capture"
	"github.com/CZERTAINLY/cliform/internal/dispatch"
	"github.com/CZERTAINLY/cliform/internal/form"
	"github.com/CZERTAINLY/cliform/internal/schema"

	"github.com/spf13/cobra"
)

var ErrNoCommand = errors.New("command is nil")

// Options tweak a Coordinator. The zero value is usable.
type Options struct {
	// Program is the first token of the serialized invocation. Defaults to
	// the path of the running executable.
	Program string
}

type Coordinator struct {
	info        schema.AppInfo
	descriptors []schema.Descriptor
	program     string

	store      *form.Store
	parser     *schema.Parser
	fn         dispatch.RunFunc
	channel    capture.Channel
	dispatcher *dispatch.Dispatcher

	mx  sync.Mutex
	buf strings.Builder
}

// New reads the arguments of cmd once and prepares an empty form for them.
func New(cmd *cobra.Command, fn dispatch.RunFunc, channel capture.Channel, opts Options) (*Coordinator, error) {
	if cmd == nil {
		return nil, ErrNoCommand
	}
	if fn == nil {
		return nil, dispatch.ErrNothingToRun
	}
	if channel == nil {
		return nil, fmt.Errorf("%w: no output channel", capture.ErrCaptureSetup)
	}
	program := opts.Program
	if program == "" {
		program = schema.Program(cmd)
	}

	descriptors := schema.Extract(cmd)
	return &Coordinator{
		info:        schema.NewAppInfo(cmd),
		descriptors: descriptors,
		program:     program,
		store:       form.NewStore(descriptors),
		parser:      schema.NewParser(cmd),
		fn:          fn,
		channel:     channel,
		dispatcher:  dispatch.New(channel.Stderr()),
	}, nil
}

func (c *Coordinator) AppInfo() schema.AppInfo {
	return c.info
}

// Descriptors returns the form arguments in declaration order.
func (c *Coordinator) Descriptors() []schema.Descriptor {
	return append([]schema.Descriptor(nil), c.descriptors...)
}

// Entry returns the form state of name.
func (c *Coordinator) Entry(name string) (form.Entry, bool) {
	return c.store.Get(name)
}

// Set changes the form state of an existing argument; unknown names panic.
func (c *Coordinator) Set(name string, e form.Entry) {
	c.store.Set(name, e)
}

// Tokens serializes the current form.
func (c *Coordinator) Tokens() []string {
	return form.Serialize(c.program, c.descriptors, c.store)
}

// Run validates the form and starts the callback. While a run is active it
// returns dispatch.ErrRunInProgress and changes nothing. A validation error
// is appended to the output and returned as *schema.ParseError; no run is
// started. On success the output is cleared before the callback starts.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.dispatcher.State() == dispatch.Running {
		return dispatch.ErrRunInProgress
	}

	tokens := c.Tokens()
	inv, err := c.parser.Parse(tokens)
	if err != nil {
		slog.DebugContext(ctx, "form validation failed", "tokens", schema.Quote(tokens), "error", err)
		c.appendOutput("Error: " + err.Error() + "\n")
		return err
	}

	c.mx.Lock()
	c.buf.Reset()
	c.mx.Unlock()
	// anything captured before the run belongs to nobody
	if stale := c.channel.Drain(); stale != "" {
		slog.DebugContext(ctx, "discarding output captured while idle", "bytes", len(stale))
	}

	h, err := c.dispatcher.Start(capture.WithChannel(ctx, c.channel), inv, c.fn)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "run started", "run_id", h.ID.String())
	return nil
}

// Tick drains the captured output into the buffer and then polls the active
// run. It returns whether a run is still active.
func (c *Coordinator) Tick() bool {
	if text := c.channel.Drain(); text != "" {
		c.appendOutput(text)
	}
	return c.dispatcher.Poll()
}

// Running reports the state as of the last Tick.
func (c *Coordinator) Running() bool {
	return c.dispatcher.State() == dispatch.Running
}

func (c *Coordinator) State() dispatch.State {
	return c.dispatcher.State()
}

// Cancel cancels the context of the active callback, if any.
func (c *Coordinator) Cancel() {
	c.dispatcher.Cancel()
}

// LastResult returns the result of the last finished run.
func (c *Coordinator) LastResult() dispatch.Result {
	return c.dispatcher.LastResult()
}

// Output returns a snapshot of the output buffer.
func (c *Coordinator) Output() string {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.buf.String()
}

// Clear empties the output buffer. It does nothing while a run is active.
func (c *Coordinator) Clear() {
	if c.Running() {
		return
	}
	c.mx.Lock()
	defer c.mx.Unlock()
	c.buf.Reset()
}

func (c *Coordinator) appendOutput(s string) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.buf.WriteString(s)
}
