package schema

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	ErrNoTokens         = errors.New("no tokens: program name is required")
	ErrUnknownArgument  = errors.New("unknown argument")
	ErrArgumentMismatch = errors.New("argument type mismatch")
	ErrNotResettable    = errors.New("argument can't be reset to its default between runs")
)

// ParseError is returned when serialized tokens are rejected by the command's parser.
// The message is the one produced by cobra/pflag and is meant for the user.
type ParseError struct {
	Tokens []string
	Err    error
}

func (e *ParseError) Error() string {
	return e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parser validates token sequences with the parsing logic of a cobra command.
// It mutates the flag state of the command, so a Parser must not be used
// concurrently with anything else reading cmd's flags.
type Parser struct {
	cmd *cobra.Command
	// fixed holds the declared values of flags that can't be reset
	fixed map[string]string
}

func NewParser(cmd *cobra.Command) *Parser {
	_ = cmd.LocalFlags()
	p := &Parser{cmd: cmd, fixed: make(map[string]string)}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		declared := f.Value.String()
		if !resettable(f) {
			p.fixed[f.Name] = declared
		}
	})
	return p
}

// Parse feeds tokens (program name first) through the command's flag parser and
// validators. Every flag is reset to its default first, so omitted arguments
// resolve to the declared defaults and not to values of a previous parse.
func (p *Parser) Parse(tokens []string) (*Invocation, error) {
	if len(tokens) == 0 {
		return nil, &ParseError{Err: ErrNoTokens}
	}
	tokens = append([]string(nil), tokens...)

	_ = p.cmd.LocalFlags()
	fs := p.cmd.Flags()
	p.reset(fs)

	if err := p.cmd.ParseFlags(tokens[1:]); err != nil {
		return nil, &ParseError{Tokens: tokens, Err: err}
	}
	if err := p.rejectFixed(fs); err != nil {
		return nil, &ParseError{Tokens: tokens, Err: err}
	}
	if err := restoreSliceDefaults(fs); err != nil {
		return nil, &ParseError{Tokens: tokens, Err: err}
	}

	args := fs.Args()
	if err := p.cmd.ValidateArgs(args); err != nil {
		return nil, &ParseError{Tokens: tokens, Err: err}
	}
	if err := p.cmd.ValidateRequiredFlags(); err != nil {
		return nil, &ParseError{Tokens: tokens, Err: err}
	}
	if err := p.cmd.ValidateFlagGroups(); err != nil {
		return nil, &ParseError{Tokens: tokens, Err: err}
	}

	return p.snapshot(fs, tokens, args), nil
}

// reset puts every flag back to its declared default. Slice values are emptied,
// because pflag appends to a slice once it was set. restoreSliceDefaults puts
// the default back on those not given on the command line. Fixed flags are
// never set, so they still hold their declared value.
func (p *Parser) reset(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		f.Changed = false
		if _, ok := p.fixed[f.Name]; ok {
			return
		}
		var err error
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			err = sv.Replace(nil)
		} else {
			err = f.Value.Set(f.DefValue)
		}
		if err != nil {
			slog.Debug("can't reset flag to default", "flag", f.Name, "default", f.DefValue, "error", err)
		}
	})
}

// rejectFixed fails when the tokens set a flag that can't be reset, since
// every later parse would see that value instead of the default.
func (p *Parser) rejectFixed(fs *pflag.FlagSet) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		if _, ok := p.fixed[f.Name]; ok && f.Changed {
			errs = append(errs, fmt.Errorf("%w: --%s (%s)", ErrNotResettable, f.Name, f.Value.Type()))
		}
	})
	return errors.Join(errs...)
}

// accumulating values merge every Set into what they already hold, or run
// user code on Set
var accumulating = map[string]struct{}{
	"stringToString": {},
	"stringToInt":    {},
	"stringToInt64":  {},
	"func":           {},
	"boolfunc":       {},
}

// resettable reports whether f can be put back to its declared default
// before each parse. A nil net.IP prints "<nil>", which it can't parse.
func resettable(f *pflag.Flag) bool {
	if _, ok := f.Value.(pflag.SliceValue); ok {
		return true
	}
	if _, ok := accumulating[f.Value.Type()]; ok {
		return false
	}
	if err := f.Value.Set(f.DefValue); err != nil {
		return false
	}
	return f.Value.String() == f.DefValue
}

func restoreSliceDefaults(fs *pflag.FlagSet) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		sv, ok := f.Value.(pflag.SliceValue)
		if !ok || f.Changed {
			return
		}
		if err := sv.Replace(splitSlice(f.DefValue)); err != nil {
			errs = append(errs, fmt.Errorf("restoring default of flag %q: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}

func (p *Parser) snapshot(fs *pflag.FlagSet, tokens, args []string) *Invocation {
	inv := &Invocation{
		tokens: tokens,
		args:   append([]string(nil), args...),
		values: make(map[string]value),
	}
	fs.VisitAll(func(f *pflag.Flag) {
		v := value{
			typ:     f.Value.Type(),
			raw:     f.Value.String(),
			changed: f.Changed,
		}
		if declared, ok := p.fixed[f.Name]; ok {
			v.raw = declared
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			v.slice = append([]string(nil), sv.GetSlice()...)
			v.isSlice = true
		}
		inv.values[f.Name] = v
	})
	return inv
}

// Quote renders tokens the way a shell user would type them; used in logs.
func Quote(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		if t == "" || strings.ContainsAny(t, " \t\"'") {
			quoted[i] = fmt.Sprintf("%q", t)
			continue
		}
		quoted[i] = t
	}
	return strings.Join(quoted, " ")
}
