//go:build !unix

package capture

import (
	"fmt"
	"os"
)

// redirect swaps the os.Stdout/os.Stderr variables. Output written through
// the original descriptor, for example by child processes, is not captured.
type redirect struct {
	target **os.File
	orig   *os.File
	r, w   *os.File
}

func redirectStream(target **os.File, _ int) (*redirect, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating pipe: %w", err)
	}
	orig := *target
	*target = w
	return &redirect{
		target: target,
		orig:   orig,
		r:      r,
		w:      w,
	}, nil
}

func (r *redirect) restore() error {
	*r.target = r.orig
	return r.w.Close()
}
