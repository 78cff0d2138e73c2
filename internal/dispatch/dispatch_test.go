package dispatch_test

import (
	"bytes"
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/CZERTAINLY/cliform/internal/dispatch"
	"github.com/CZERTAINLY/cliform/internal/schema"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func invocation(t *testing.T, tokens ...string) *schema.Invocation {
	t.Helper()
	cmd := &cobra.Command{Use: "greeter"}
	cmd.Flags().String("name", "Joe", "Your name")
	inv, err := schema.NewParser(cmd).Parse(append([]string{"greeter"}, tokens...))
	require.NoError(t, err)
	return inv
}

// waitIdle polls the way a host does: a tick at a time.
func waitIdle(t *testing.T, d *dispatch.Dispatcher) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !d.Poll()
	}, 2*time.Second, time.Millisecond)
	require.Equal(t, dispatch.Idle, d.State())
}

func TestDispatcher(t *testing.T) {
	t.Parallel()

	d := dispatch.New(nil)
	require.Equal(t, dispatch.Idle, d.State())
	require.False(t, d.Poll())
	require.ErrorIs(t, d.LastResult().Err, dispatch.ErrRunNotStarted)

	release := make(chan struct{})
	var got atomic.Value
	var calls atomic.Int32
	fn := func(_ context.Context, inv *schema.Invocation) {
		calls.Add(1)
		name, _ := inv.String("name")
		got.Store(name)
		<-release
	}

	t.Run("start", func(t *testing.T) {
		h, err := d.Start(t.Context(), invocation(t, "--name", "Ann"), fn)
		require.NoError(t, err)
		require.NotZero(t, h.ID)
		require.Equal(t, dispatch.Running, d.State())
		require.True(t, d.Poll())

		active, ok := d.Handle()
		require.True(t, ok)
		require.Equal(t, h, active)
	})

	t.Run("in progress", func(t *testing.T) {
		for range 3 {
			_, err := d.Start(t.Context(), invocation(t), fn)
			require.ErrorIs(t, err, dispatch.ErrRunInProgress)
		}
		require.Equal(t, dispatch.Running, d.State())
	})

	t.Run("finish", func(t *testing.T) {
		close(release)
		waitIdle(t, d)
		require.Equal(t, int32(1), calls.Load())
		require.Equal(t, "Ann", got.Load())

		_, ok := d.Handle()
		require.False(t, ok)
		res := d.LastResult()
		require.NoError(t, res.Err)
		require.Nil(t, res.Panic)
		require.False(t, res.Stopped.Before(res.Started))
	})

	t.Run("restart", func(t *testing.T) {
		_, err := d.Start(t.Context(), invocation(t), func(context.Context, *schema.Invocation) {})
		require.NoError(t, err)
		waitIdle(t, d)
	})
}

func TestDispatcherPanic(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	d := dispatch.New(&stderr)
	_, err := d.Start(t.Context(), invocation(t), func(context.Context, *schema.Invocation) {
		panic("This is a panic message.")
	})
	require.NoError(t, err)
	waitIdle(t, d)

	require.Equal(t, "This is a panic message.", d.LastResult().Panic)
	require.Contains(t, stderr.String(), "panic: This is a panic message.")
}

func TestDispatcherGoexit(t *testing.T) {
	t.Parallel()

	d := dispatch.New(nil)
	_, err := d.Start(t.Context(), invocation(t), func(context.Context, *schema.Invocation) {
		runtime.Goexit()
	})
	require.NoError(t, err)
	waitIdle(t, d)
	require.Nil(t, d.LastResult().Panic)
}

func TestDispatcherCancel(t *testing.T) {
	t.Parallel()

	d := dispatch.New(nil)
	d.Cancel() // no-op while idle

	_, err := d.Start(t.Context(), invocation(t), func(ctx context.Context, _ *schema.Invocation) {
		<-ctx.Done()
	})
	require.NoError(t, err)
	require.True(t, d.Poll())
	d.Cancel()
	waitIdle(t, d)
}

func TestDispatcherNothingToRun(t *testing.T) {
	t.Parallel()

	d := dispatch.New(nil)
	_, err := d.Start(t.Context(), nil, func(context.Context, *schema.Invocation) {})
	require.ErrorIs(t, err, dispatch.ErrNothingToRun)
	_, err = d.Start(t.Context(), invocation(t), nil)
	require.ErrorIs(t, err, dispatch.ErrNothingToRun)
	require.Equal(t, dispatch.Idle, d.State())
}

func TestDispatcherConcurrentStart(t *testing.T) {
	t.Parallel()

	d := dispatch.New(nil)
	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(context.Context, *schema.Invocation) {
		calls.Add(1)
		<-release
	}
	inv := invocation(t)

	var started atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			if _, err := d.Start(t.Context(), inv, fn); err == nil {
				started.Add(1)
			}
		})
	}
	wg.Wait()
	require.Equal(t, int32(1), started.Load())

	close(release)
	waitIdle(t, d)
	require.Equal(t, int32(1), calls.Load())
}

func TestPollConvergence(t *testing.T) {
	t.Parallel()
	inv := invocation(t)

	synctest.Test(t, func(t *testing.T) {
		d := dispatch.New(nil)
		_, err := d.Start(t.Context(), inv, func(context.Context, *schema.Invocation) {
			time.Sleep(time.Second)
		})
		require.NoError(t, err)

		const tick = 100 * time.Millisecond
		ticks := 0
		for d.Poll() {
			time.Sleep(tick)
			synctest.Wait()
			ticks++
		}
		require.Equal(t, dispatch.Idle, d.State())
		require.LessOrEqual(t, ticks, 11)
	})
}

func TestStateString(t *testing.T) {
	t.Parallel()
	require.Equal(t, "idle", dispatch.Idle.String())
	require.Equal(t, "running", dispatch.Running.String())
	require.Equal(t, "State(7)", dispatch.State(7).String())
}
