// Package cliform turns a cobra command into an interactive terminal form.
//
// The flags of the command become editors. On run the form is serialized into
// command line tokens, validated by cobra's own flag parser and handed to the
// callback, which runs in the background while everything it writes to stdout
// and stderr shows up in the output pane.
//
//	cmd := &cobra.Command{Use: "greeter", Version: "1.2.3"}
//	cmd.Flags().String("name", "Joe", "Your name")
//	err := cliform.Run(cmd, func(ctx context.Context, inv *cliform.Invocation) {
//		name, _ := inv.String("name")
//		fmt.Printf("Hello, %s!\n", name)
//	})
//
// At most one run is active at a time.
package cliform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/CZERTAINLY/cliform/internal/capture"
	"github.com/CZERTAINLY/cliform/internal/coordinator"
	"github.com/CZERTAINLY/cliform/internal/dispatch"
	"github.com/CZERTAINLY/cliform/internal/log"
	"github.com/CZERTAINLY/cliform/internal/model"
	"github.com/CZERTAINLY/cliform/internal/schema"
	"github.com/CZERTAINLY/cliform/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

type (
	// RunFunc is the callback started on every run. It may write to
	// os.Stdout and os.Stderr, or to Stdout(ctx) and Stderr(ctx).
	RunFunc = dispatch.RunFunc
	// Invocation holds the validated values of one run.
	Invocation = schema.Invocation
	// ParseError is the validation error shown in the output pane.
	ParseError = schema.ParseError
	Config     = model.Config
	Model      = tui.Model
	Styles     = tui.Styles
	KeyMap     = tui.KeyMap
)

// AnnotationAuthor is the cobra.Command annotation shown as the author.
const AnnotationAuthor = schema.AnnotationAuthor

var (
	ErrNoCommand     = coordinator.ErrNoCommand
	ErrRunInProgress = dispatch.ErrRunInProgress
	ErrCaptureSetup  = capture.ErrCaptureSetup
)

// Options tweak RunSetup. The zero value loads the configuration the usual
// way and runs the form full screen.
type Options struct {
	// Config is used as is instead of loading configuration.
	Config *Config
	// ConfigPath overrides the lookup of cliform.yaml and CLIFORM_CONFIG.
	ConfigPath string
	// WriteDefaultConfig stores the default configuration into the user
	// config dir when there is none.
	WriteDefaultConfig bool
	// Program is the first token of every invocation. Defaults to the path
	// of the running executable.
	Program string
	// Setup is called once with the form model before the program starts.
	Setup func(*Model)
	// ProgramOptions are appended to the options of the bubbletea program.
	ProgramOptions []tea.ProgramOption
}

func DefaultConfig() Config {
	return model.DefaultConfig()
}

// Stdout returns the writer the callback should use for standard output.
// It is equivalent to os.Stdout when the whole process output is captured.
func Stdout(ctx context.Context) io.Writer {
	return capture.Stdout(ctx)
}

// Stderr is Stdout for standard error.
func Stderr(ctx context.Context) io.Writer {
	return capture.Stderr(ctx)
}

// Run shows cmd as a form and calls fn on every run.
func Run(cmd *cobra.Command, fn RunFunc) error {
	return RunSetup(cmd, Options{}, fn)
}

// RunSetup is Run with options. It returns when the user quits the form. An
// error setting up the output capture is returned before anything is shown.
func RunSetup(cmd *cobra.Command, opts Options, fn RunFunc) error {
	if cmd == nil {
		return ErrNoCommand
	}
	cfg, err := config(opts)
	if err != nil {
		return err
	}

	var channel capture.Channel
	var stdout, stderr io.Writer = os.Stdout, os.Stderr
	switch cfg.Capture {
	case model.CaptureWriters:
		channel = capture.NewBuffer()
	default:
		p, err := capture.Start()
		if err != nil {
			return err
		}
		defer func() {
			_ = p.Close()
		}()
		stdout, stderr = p.Original()
		channel = p
	}

	logw, err := log.Open(cfg.Log, stdout, stderr)
	if err != nil {
		return err
	}
	defer func() {
		_ = logw.Close()
	}()
	prev := slog.Default()
	slog.SetDefault(log.New(cfg.Verbose, logw))
	defer slog.SetDefault(prev)

	ctx := log.ContextAttrs(context.Background(), slog.Group("cliform",
		slog.String("cmd", cmd.Name()),
		slog.Int("pid", os.Getpid()),
	))
	slog.DebugContext(ctx, "cliform start", "config", cfg)

	coord, err := coordinator.New(cmd, fn, channel, coordinator.Options{Program: opts.Program})
	if err != nil {
		return err
	}
	// the callback is not waited for on exit
	defer coord.Cancel()

	m := tui.New(ctx, coord, cfg.UI)
	if opts.Setup != nil {
		opts.Setup(&m)
	}

	popts := []tea.ProgramOption{tea.WithOutput(stdout)}
	if cfg.UI.AltScreen {
		popts = append(popts, tea.WithAltScreen())
	}
	popts = append(popts, opts.ProgramOptions...)
	if _, err := tea.NewProgram(m, popts...).Run(); err != nil {
		return fmt.Errorf("running form: %w", err)
	}
	return nil
}

func config(opts Options) (Config, error) {
	if opts.Config != nil {
		if err := opts.Config.Validate(); err != nil {
			return Config{}, fmt.Errorf("parsing config: %w", err)
		}
		return *opts.Config, nil
	}

	if err := model.LoadEnv(model.DotEnvName); err != nil {
		return Config{}, err
	}

	path := opts.ConfigPath
	if path == "" {
		path = model.FindConfig(model.ConfigDirs()...)
	}
	if path == "" && opts.WriteDefaultConfig {
		if err := writeDefault(); err != nil {
			return Config{}, err
		}
	}

	cfg, err := model.LoadConfig(path)
	if err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

func writeDefault() error {
	d, err := os.UserConfigDir()
	if err != nil {
		return fmt.Errorf("locating user config dir: %w", err)
	}
	path := filepath.Join(d, "cliform", model.ConfigName)
	err = model.WriteConfig(path, model.DefaultConfig())
	if errors.Is(err, os.ErrPermission) {
		// a read only home is not a reason to refuse to start
		return nil
	}
	return err
}
