package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/CZERTAINLY/cliform/internal/log"
)

const (
	CaptureProcess = "process"
	CaptureWriters = "writers"

	ThemeDark  = "dark"
	ThemeLight = "light"
	ThemePlain = "plain"

	LogStderr  = log.Stderr
	LogStdout  = log.Stdout
	LogDiscard = log.Discard
)

const (
	minTickInterval = time.Millisecond
	maxTickInterval = time.Second
)

type Config struct {
	Version int    `mapstructure:"version" yaml:"version"` // fixed 0 for now
	Verbose bool   `mapstructure:"verbose" yaml:"verbose"`
	Log     string `mapstructure:"log" yaml:"log"`         // "stderr"|"stdout"|"discard"|path
	Capture string `mapstructure:"capture" yaml:"capture"` // "process"|"writers"
	UI      UI     `mapstructure:"ui" yaml:"ui"`
}

// UI configures the terminal form.
type UI struct {
	// TickInterval is how often captured output is drained and the run polled.
	TickInterval time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
	Theme        string        `mapstructure:"theme" yaml:"theme"` // "dark"|"light"|"plain"
	AltScreen    bool          `mapstructure:"alt_screen" yaml:"alt_screen"`
}

// MarshalYAML writes TickInterval in its human form (50ms) instead of
// nanoseconds, so the written file can be read back.
func (u UI) MarshalYAML() (any, error) {
	return struct {
		TickInterval string `yaml:"tick_interval"`
		Theme        string `yaml:"theme"`
		AltScreen    bool   `yaml:"alt_screen"`
	}{
		TickInterval: u.TickInterval.String(),
		Theme:        u.Theme,
		AltScreen:    u.AltScreen,
	}, nil
}

func DefaultConfig() Config {
	return Config{
		Version: 0,
		Verbose: false,
		Log:     LogDiscard,
		Capture: CaptureProcess,
		UI: UI{
			TickInterval: 50 * time.Millisecond,
			Theme:        ThemeDark,
			AltScreen:    true,
		},
	}
}

// Validate returns every problem found, joined by errors.Join. Each of them
// is a ConfigError.
func (c Config) Validate() error {
	var errs []error
	if c.Version != 0 {
		errs = append(errs, ConfigError{
			Path:    "version",
			Value:   c.Version,
			Message: "unsupported version, must be 0",
		})
	}
	switch c.Capture {
	case CaptureProcess, CaptureWriters:
	default:
		errs = append(errs, enumError("capture", c.Capture, CaptureProcess, CaptureWriters))
	}
	switch c.UI.Theme {
	case ThemeDark, ThemeLight, ThemePlain:
	default:
		errs = append(errs, enumError("ui.theme", c.UI.Theme, ThemeDark, ThemeLight, ThemePlain))
	}
	if c.UI.TickInterval < minTickInterval || c.UI.TickInterval > maxTickInterval {
		errs = append(errs, ConfigError{
			Path:    "ui.tick_interval",
			Value:   c.UI.TickInterval,
			Message: fmt.Sprintf("must be between %s and %s", minTickInterval, maxTickInterval),
		})
	}
	return errors.Join(errs...)
}
