package schema

import (
	"encoding/csv"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Kind tells how an argument is edited and serialized.
type Kind int

const (
	// KindValue is an argument accepting a text value (--name value).
	KindValue Kind = iota
	// KindFlag is a boolean style argument (--verbose).
	KindFlag
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindFlag:
		return "flag"
	default:
		return "unknown"
	}
}

// Descriptor is an immutable snapshot of one argument declared by a command.
type Descriptor struct {
	Name        string
	DisplayName string
	Description string
	Default     string // first declared default, empty if none
	Required    bool
	Kind        Kind
}

// TakesValue reports whether the argument is serialized as --name value.
func (d Descriptor) TakesValue() bool {
	return d.Kind == KindValue
}

// reserved flags are never turned into form entries
var reserved = map[string]struct{}{
	"help":    {},
	"version": {},
}

// Extract returns the editable arguments of cmd in their declaration order.
// Meta flags (help, version), hidden flags and flags that can't be reset to
// their default between runs (maps, a nil net.IP) are skipped.
func Extract(cmd *cobra.Command) []Descriptor {
	// LocalFlags merges the persistent flags into cmd.Flags()
	_ = cmd.LocalFlags()

	fs := cmd.Flags()
	sorted := fs.SortFlags
	fs.SortFlags = false
	defer func() {
		fs.SortFlags = sorted
	}()

	var ret []Descriptor
	fs.VisitAll(func(f *pflag.Flag) {
		if _, ok := reserved[f.Name]; ok || f.Hidden {
			return
		}
		if !resettable(f) {
			slog.Debug("flag left out of the form", "flag", f.Name, "type", f.Value.Type())
			return
		}
		kind := KindValue
		if f.NoOptDefVal != "" {
			kind = KindFlag
		}
		ret = append(ret, Descriptor{
			Name:        f.Name,
			DisplayName: DisplayName(f.Name),
			Description: f.Usage,
			Default:     firstDefault(f),
			Required:    isRequired(f),
			Kind:        kind,
		})
	})
	return ret
}

// DisplayName turns a flag name into a label: "dry-run" -> "Dry run".
func DisplayName(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '-' || r == '_' {
			return ' '
		}
		return r
	}, name)
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

func firstDefault(f *pflag.Flag) string {
	if _, ok := f.Value.(pflag.SliceValue); ok {
		values := splitSlice(f.DefValue)
		if len(values) == 0 {
			return ""
		}
		return values[0]
	}
	return f.DefValue
}

// splitSlice parses the "[a,b]" form pflag uses to print slice values.
func splitSlice(s string) []string {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if s == "" {
		return nil
	}
	values, err := csv.NewReader(strings.NewReader(s)).Read()
	if err != nil {
		return strings.Split(s, ",")
	}
	return values
}

func isRequired(f *pflag.Flag) bool {
	values, ok := f.Annotations[cobra.BashCompOneRequiredFlag]
	return ok && len(values) > 0 && values[0] == "true"
}
