//go:build unix

package capture

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// redirect points a standard file descriptor at the write end of a pipe.
// The descriptor itself is replaced, so os.Stdout, cgo code and child
// processes inheriting it all end up in the pipe.
type redirect struct {
	fd    int
	saved int
	orig  *os.File
	r, w  *os.File
}

func redirectStream(target **os.File, fd int) (*redirect, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating pipe: %w", err)
	}
	saved, err := unix.Dup(fd)
	if err != nil {
		_ = r.Close()
		_ = w.Close()
		return nil, fmt.Errorf("duplicating fd %d: %w", fd, err)
	}
	unix.CloseOnExec(saved)
	orig := os.NewFile(uintptr(saved), (*target).Name())

	if err := unix.Dup2(int(w.Fd()), fd); err != nil {
		_ = r.Close()
		_ = w.Close()
		_ = orig.Close()
		return nil, fmt.Errorf("redirecting fd %d: %w", fd, err)
	}
	return &redirect{
		fd:    fd,
		saved: saved,
		orig:  orig,
		r:     r,
		w:     w,
	}, nil
}

// restore points the descriptor back to the original file and closes the
// write end, so the reader sees EOF. The duplicate returned by Original is
// closed too.
func (r *redirect) restore() error {
	var errs []error
	if err := unix.Dup2(r.saved, r.fd); err != nil {
		errs = append(errs, fmt.Errorf("restoring fd %d: %w", r.fd, err))
	}
	if err := r.w.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := r.orig.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
