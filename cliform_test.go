package cliform_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/CZERTAINLY/cliform"
	"github.com/CZERTAINLY/cliform/internal/model"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const (
	ctrlC = "\x03"
	ctrlR = "\x12"
)

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

func writersConfig() *cliform.Config {
	cfg := cliform.DefaultConfig()
	cfg.Capture = model.CaptureWriters
	cfg.UI.AltScreen = false
	cfg.UI.Theme = model.ThemePlain
	return &cfg
}

// TestRunSetup drives a whole program through its input: type a name, run,
// wait for the callback and quit.
func TestRunSetup(t *testing.T) {
	in, keys := io.Pipe()
	t.Cleanup(func() {
		_ = keys.Close()
	})
	var out bytes.Buffer

	greeted := make(chan string, 1)
	var setup bool
	opts := cliform.Options{
		Config:  writersConfig(),
		Program: "greeter",
		Setup: func(m *cliform.Model) {
			setup = true
			m.Styles.Title = m.Styles.Title.Underline(true)
		},
		ProgramOptions: []tea.ProgramOption{
			tea.WithInput(in),
			tea.WithOutput(&out),
			tea.WithoutSignalHandler(),
		},
	}

	errc := make(chan error, 1)
	go func() {
		errc <- cliform.RunSetup(greeterCmd(), opts, func(ctx context.Context, inv *cliform.Invocation) {
			name, err := inv.String("name")
			if err != nil {
				name = err.Error()
			}
			fmt.Fprintf(cliform.Stdout(ctx), "Hello, %s!\n", name)
			greeted <- name
		})
	}()

	_, err := io.WriteString(keys, "Ann"+ctrlR)
	require.NoError(t, err)
	select {
	case name := <-greeted:
		require.Equal(t, "Ann", name)
	case <-time.After(5 * time.Second):
		t.Fatal("callback was not started")
	}

	_, err = io.WriteString(keys, ctrlC)
	require.NoError(t, err)
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("program did not quit")
	}
	require.True(t, setup)
	require.Contains(t, out.String(), "greeter")
}

func TestRunSetupInvalidConfig(t *testing.T) {
	cfg := writersConfig()
	cfg.UI.Theme = "neon"
	err := cliform.RunSetup(greeterCmd(), cliform.Options{Config: cfg}, func(context.Context, *cliform.Invocation) {})
	require.ErrorIs(t, err, model.ErrInvalidConfig)
}

func TestRunSetupNoCommand(t *testing.T) {
	err := cliform.RunSetup(nil, cliform.Options{Config: writersConfig()}, func(context.Context, *cliform.Invocation) {})
	require.ErrorIs(t, err, cliform.ErrNoCommand)
}
