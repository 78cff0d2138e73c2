package model

import (
	"fmt"
	"log/slog"
	"strings"
)

// ConfigError describes one invalid configuration value.
type ConfigError struct {
	Path    string // ui.theme
	Value   any
	Message string
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: got %v", e.Path, e.Message, e.Value)
}

func (e ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

func (e ConfigError) Attr(name string) slog.Attr {
	return slog.GroupAttrs(
		name,
		slog.String("path", e.Path),
		slog.Any("value", e.Value),
		slog.String("message", e.Message),
	)
}

// ConfigErrDetails flattens err, as returned by Config.Validate or LoadConfig,
// into its ConfigError values.
func ConfigErrDetails(err error) []ConfigError {
	switch x := err.(type) {
	case nil:
		return nil
	case ConfigError:
		return []ConfigError{x}
	case interface{ Unwrap() []error }:
		var ret []ConfigError
		for _, e := range x.Unwrap() {
			ret = append(ret, ConfigErrDetails(e)...)
		}
		return ret
	case interface{ Unwrap() error }:
		return ConfigErrDetails(x.Unwrap())
	}
	return nil
}

func enumError(path string, got string, values ...string) ConfigError {
	return ConfigError{
		Path:    path,
		Value:   fmt.Sprintf("%q", got),
		Message: fmt.Sprintf("possible values (%s)", strings.Join(values, ",")),
	}
}
