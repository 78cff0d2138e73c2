package coordinator_test

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CZERTAINLY/cliform/internal/capture"
	"github.com/CZERTAINLY/cliform/internal/coordinator"
	"github.com/CZERTAINLY/cliform/internal/dispatch"
	"github.com/CZERTAINLY/cliform/internal/form"
	"github.com/CZERTAINLY/cliform/internal/schema"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func greeterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "greeter",
		Version: "1.2.3",
		Short:   "A builder example",
	}
	cmd.Flags().String("name", "Joe", "Your name")
	cmd.Flags().Bool("goodbye", false, "Say goodbye")
	return cmd
}

func greet(ctx context.Context, inv *schema.Invocation) {
	name, _ := inv.String("name")
	fmt.Fprintf(capture.Stdout(ctx), "Hello, %s!\n", name)
	if goodbye, _ := inv.Bool("goodbye"); goodbye {
		fmt.Fprintln(capture.Stdout(ctx), "Goodbye!")
	}
}

func newCoordinator(t *testing.T, cmd *cobra.Command, fn dispatch.RunFunc) *coordinator.Coordinator {
	t.Helper()
	c, err := coordinator.New(cmd, fn, capture.NewBuffer(), coordinator.Options{Program: cmd.Name()})
	require.NoError(t, err)
	return c
}

// tickUntilIdle drives the coordinator like a host does.
func tickUntilIdle(t *testing.T, c *coordinator.Coordinator) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !c.Tick()
	}, 2*time.Second, time.Millisecond)
	// one more tick picks up text written right before the callback returned
	c.Tick()
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := coordinator.New(nil, greet, capture.NewBuffer(), coordinator.Options{})
	require.ErrorIs(t, err, coordinator.ErrNoCommand)
	_, err = coordinator.New(greeterCmd(), nil, capture.NewBuffer(), coordinator.Options{})
	require.ErrorIs(t, err, dispatch.ErrNothingToRun)
	_, err = coordinator.New(greeterCmd(), greet, nil, coordinator.Options{})
	require.ErrorIs(t, err, capture.ErrCaptureSetup)

	c := newCoordinator(t, greeterCmd(), greet)
	require.Equal(t, "greeter", c.AppInfo().Name)
	require.Len(t, c.Descriptors(), 2)
	require.Equal(t, []string{"greeter"}, c.Tokens())
	require.Equal(t, dispatch.Idle, c.State())

	e, ok := c.Entry("name")
	require.True(t, ok)
	require.Zero(t, e)
	require.Panics(t, func() { c.Set("nope", form.Entry{}) })
}

func TestRunRoundTrip(t *testing.T) {
	t.Parallel()
	c := newCoordinator(t, greeterCmd(), greet)

	c.Set("name", form.Entry{Text: "Ann"})
	c.Set("goodbye", form.Entry{FlagSet: true})
	require.Equal(t, []string{"greeter", "--name", "Ann", "--goodbye"}, c.Tokens())

	require.NoError(t, c.Run(t.Context()))
	tickUntilIdle(t, c)
	require.Equal(t, "Hello, Ann!\nGoodbye!\n", c.Output())

	c.Set("name", form.Entry{})
	c.Set("goodbye", form.Entry{})
	require.NoError(t, c.Run(t.Context()))
	tickUntilIdle(t, c)
	require.Equal(t, "Hello, Joe!\n", c.Output(), "buffer is reset on every run")
}

func TestRunFizzBuzzDefaults(t *testing.T) {
	t.Parallel()

	cmd := &cobra.Command{Use: "fizzbuzz"}
	cmd.Flags().Uint("fizz", 3, "")
	cmd.Flags().Uint("buzz", 5, "")
	cmd.Flags().Uint("number", 100, "")
	cmd.Flags().Bool("verbose", false, "")

	got := make(chan map[string]string, 1)
	c := newCoordinator(t, cmd, func(_ context.Context, inv *schema.Invocation) {
		m := make(map[string]string)
		for _, name := range []string{"fizz", "buzz", "number", "verbose"} {
			m[name], _ = inv.String(name)
		}
		got <- m
	})

	require.NoError(t, c.Run(t.Context()))
	tickUntilIdle(t, c)
	require.Equal(t, map[string]string{
		"fizz":    "3",
		"buzz":    "5",
		"number":  "100",
		"verbose": "false",
	}, <-got)
}

func TestRunValidationError(t *testing.T) {
	t.Parallel()

	cmd := greeterCmd()
	cmd.Flags().Int("count", 1, "")
	var calls atomic.Int32
	c := newCoordinator(t, cmd, func(ctx context.Context, inv *schema.Invocation) {
		calls.Add(1)
		greet(ctx, inv)
	})

	require.NoError(t, c.Run(t.Context()))
	tickUntilIdle(t, c)
	require.Equal(t, "Hello, Joe!\n", c.Output())

	c.Set("count", form.Entry{Text: "many"})
	err := c.Run(t.Context())
	var perr *schema.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, dispatch.Idle, c.State())
	require.False(t, c.Tick())

	out := c.Output()
	require.True(t, strings.HasPrefix(out, "Hello, Joe!\nError: invalid argument \"many\""), out)
	require.True(t, strings.HasSuffix(out, "\n"))
	require.Equal(t, int32(1), calls.Load())
}

func TestRunAtMostOne(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var calls atomic.Int32
	c := newCoordinator(t, greeterCmd(), func(ctx context.Context, _ *schema.Invocation) {
		calls.Add(1)
		fmt.Fprint(capture.Stdout(ctx), "working")
		<-release
	})

	require.NoError(t, c.Run(t.Context()))
	require.True(t, c.Running())
	require.Eventually(t, func() bool {
		c.Tick()
		return c.Output() == "working"
	}, 2*time.Second, time.Millisecond)

	for range 3 {
		require.ErrorIs(t, c.Run(t.Context()), dispatch.ErrRunInProgress)
	}
	c.Clear()
	require.Equal(t, "working", c.Output(), "clear is ignored while running")

	close(release)
	tickUntilIdle(t, c)
	require.Equal(t, int32(1), calls.Load())

	c.Clear()
	require.Empty(t, c.Output())
}

func TestRunOutputOrder(t *testing.T) {
	t.Parallel()

	c := newCoordinator(t, greeterCmd(), func(ctx context.Context, _ *schema.Invocation) {
		for i := range 500 {
			fmt.Fprintf(capture.Stdout(ctx), "%d\n", i)
		}
	})
	require.NoError(t, c.Run(t.Context()))

	// buffer only grows during a run
	var prev int
	var shrunk atomic.Bool
	require.Eventually(t, func() bool {
		running := c.Tick()
		n := len(c.Output())
		if n < prev {
			shrunk.Store(true)
		}
		prev = n
		return !running
	}, 2*time.Second, time.Millisecond)
	c.Tick()
	require.False(t, shrunk.Load())

	lines := strings.Split(strings.TrimSuffix(c.Output(), "\n"), "\n")
	require.Len(t, lines, 500)
	for i, line := range lines {
		require.Equal(t, fmt.Sprint(i), line)
	}
}

func TestRunPanic(t *testing.T) {
	t.Parallel()

	c := newCoordinator(t, greeterCmd(), func(ctx context.Context, _ *schema.Invocation) {
		fmt.Fprintln(capture.Stdout(ctx), "before")
		panic("This is a panic message.")
	})
	require.NoError(t, c.Run(t.Context()))
	tickUntilIdle(t, c)

	out := c.Output()
	require.Contains(t, out, "before\n")
	require.Contains(t, out, "panic: This is a panic message.")
	require.Equal(t, "This is a panic message.", c.LastResult().Panic)
}

func TestCancel(t *testing.T) {
	t.Parallel()

	c := newCoordinator(t, greeterCmd(), func(ctx context.Context, _ *schema.Invocation) {
		<-ctx.Done()
		fmt.Fprintln(capture.Stderr(ctx), "cancelled")
	})
	require.NoError(t, c.Run(t.Context()))
	require.True(t, c.Tick())
	c.Cancel()
	tickUntilIdle(t, c)
	require.Equal(t, "cancelled\n", c.Output())
}
