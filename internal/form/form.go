// Package form holds the editable state of the generated form and turns it
// back into command line tokens.
package form

import (
	"fmt"

	"github.com/CZERTAINLY/cliform/internal/schema"
)

// Entry is the editable state of one argument. FlagSet is used by flag arguments,
// Text by value arguments. An empty Text means "use the declared default".
type Entry struct {
	FlagSet bool
	Text    string
}

// Store maps argument names to their entries. The set of names is fixed at
// construction; it is owned by the UI goroutine and is not safe for concurrent use.
type Store struct {
	entries map[string]Entry
}

// NewStore seeds an empty entry for every descriptor. Declared defaults are not
// copied in, they are only shown as a placeholder.
func NewStore(descriptors []schema.Descriptor) *Store {
	entries := make(map[string]Entry, len(descriptors))
	for _, d := range descriptors {
		if _, ok := entries[d.Name]; ok {
			panic(fmt.Sprintf("form: duplicate argument %q", d.Name))
		}
		entries[d.Name] = Entry{}
	}
	return &Store{entries: entries}
}

// Get returns the entry for name. The second value is false for unknown names.
func (s *Store) Get(name string) (Entry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

// Set replaces the entry of an existing argument. Unknown names are a programming
// error and panic.
func (s *Store) Set(name string, e Entry) {
	if _, ok := s.entries[name]; !ok {
		panic(fmt.Sprintf("form: unknown argument %q", name))
	}
	s.entries[name] = e
}

// Serialize turns the form into a token sequence accepted by the command's
// parser: program first, then per descriptor in declaration order either
// "--name value", "--name" or nothing.
func Serialize(program string, descriptors []schema.Descriptor, s *Store) []string {
	ret := make([]string, 0, 1+2*len(descriptors))
	ret = append(ret, program)
	for _, d := range descriptors {
		e := s.entries[d.Name]
		switch d.Kind {
		case schema.KindValue:
			if e.Text != "" {
				ret = append(ret, "--"+d.Name, e.Text)
			}
		case schema.KindFlag:
			if e.FlagSet {
				ret = append(ret, "--"+d.Name)
			}
		}
	}
	return ret
}
