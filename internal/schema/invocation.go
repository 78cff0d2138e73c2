package schema

import (
	"fmt"
	"slices"
	"strconv"
	"time"
)

type value struct {
	typ     string
	raw     string
	slice   []string
	isSlice bool
	changed bool
}

// Invocation is the validated result of a parse. It is a copy of the flag
// values taken right after parsing, so it stays valid while the command's
// flags are parsed again.
type Invocation struct {
	tokens []string
	args   []string
	values map[string]value
}

// Tokens returns the token sequence the invocation was parsed from.
func (i *Invocation) Tokens() []string {
	return append([]string(nil), i.tokens...)
}

// Args returns the positional arguments.
func (i *Invocation) Args() []string {
	return append([]string(nil), i.args...)
}

// Changed reports whether the argument was given explicitly.
func (i *Invocation) Changed(name string) bool {
	return i.values[name].changed
}

func (i *Invocation) lookup(name string) (value, error) {
	v, ok := i.values[name]
	if !ok {
		return value{}, fmt.Errorf("%w: %s", ErrUnknownArgument, name)
	}
	return v, nil
}

// pflag type names each typed getter accepts
var (
	boolTypes     = []string{"bool"}
	intTypes      = []string{"int", "int8", "int16", "int32", "int64", "count"}
	uintTypes     = []string{"uint", "uint8", "uint16", "uint32", "uint64"}
	floatTypes    = []string{"float32", "float64"}
	durationTypes = []string{"duration"}
)

// typed looks name up and checks that its pflag type is one of types.
func (i *Invocation) typed(name, want string, types []string) (value, error) {
	v, err := i.lookup(name)
	if err != nil {
		return value{}, err
	}
	if !slices.Contains(types, v.typ) {
		return value{}, fmt.Errorf("%w: %s is %s, not %s", ErrArgumentMismatch, name, v.typ, want)
	}
	return v, nil
}

// String returns the textual form of any argument.
func (i *Invocation) String(name string) (string, error) {
	v, err := i.lookup(name)
	if err != nil {
		return "", err
	}
	return v.raw, nil
}

func (i *Invocation) Bool(name string) (bool, error) {
	v, err := i.typed(name, "bool", boolTypes)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(v.raw)
	if err != nil {
		return false, mismatch(name, v, "bool", err)
	}
	return b, nil
}

// Int works for int, int8-64 and count arguments. Values beyond the range
// of int are a mismatch.
func (i *Invocation) Int(name string) (int, error) {
	v, err := i.typed(name, "int", intTypes)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v.raw)
	if err != nil {
		return 0, mismatch(name, v, "int", err)
	}
	return n, nil
}

// Uint works for uint and uint8-64 arguments.
func (i *Invocation) Uint(name string) (uint, error) {
	v, err := i.typed(name, "uint", uintTypes)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(v.raw, 10, 0)
	if err != nil {
		return 0, mismatch(name, v, "uint", err)
	}
	return uint(n), nil
}

// Float64 works for float32 and float64 arguments.
func (i *Invocation) Float64(name string) (float64, error) {
	v, err := i.typed(name, "float64", floatTypes)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v.raw, 64)
	if err != nil {
		return 0, mismatch(name, v, "float64", err)
	}
	return f, nil
}

func (i *Invocation) Duration(name string) (time.Duration, error) {
	v, err := i.typed(name, "duration", durationTypes)
	if err != nil {
		return 0, err
	}
	d, err := time.ParseDuration(v.raw)
	if err != nil {
		return 0, mismatch(name, v, "duration", err)
	}
	return d, nil
}

// StringSlice returns the elements of a slice or array argument.
func (i *Invocation) StringSlice(name string) ([]string, error) {
	v, err := i.lookup(name)
	if err != nil {
		return nil, err
	}
	if !v.isSlice {
		return nil, fmt.Errorf("%w: %s is %s, not a slice", ErrArgumentMismatch, name, v.typ)
	}
	return append([]string(nil), v.slice...), nil
}

func mismatch(name string, v value, want string, err error) error {
	return fmt.Errorf("%w: %s is %s, not %s: %w", ErrArgumentMismatch, name, v.typ, want, err)
}
