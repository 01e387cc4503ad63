package dfs

import (
	"fmt"

	"github.com/jdefrancesco/dups/internal/dlog"
)

// WalkError reports a directory or entry the walker could not read. The
// subtree below it is skipped.
type WalkError struct {
	Path string
	Err  error
}

func (e *WalkError) Error() string { return fmt.Sprintf("walk %s: %v", e.Path, e.Err) }
func (e *WalkError) Unwrap() error { return e.Err }

// ReadError reports a file that could not be hashed. The file is left out
// of every duplicate group.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string { return fmt.Sprintf("read %s: %v", e.Path, e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// DeleteError reports a redundant copy that could not be removed.
type DeleteError struct {
	Path string
	Err  error
}

func (e *DeleteError) Error() string { return fmt.Sprintf("delete %s: %v", e.Path, e.Err) }
func (e *DeleteError) Unwrap() error { return e.Err }

// MoveError reports a redundant copy that could not be moved to Target.
type MoveError struct {
	Path   string
	Target string
	Err    error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("move %s to %s: %v", e.Path, e.Target, e.Err)
}
func (e *MoveError) Unwrap() error { return e.Err }

// Diagnostics collects the fail-soft errors of one scan. Every warning is
// also written to the log.
type Diagnostics struct {
	warnings []error
}

// Warn records err and logs it at warn level.
func (d *Diagnostics) Warn(err error) {
	if err == nil {
		return
	}
	d.warnings = append(d.warnings, err)
	dlog.Dlogger.Warn(err.Error())
}

// Warnings returns the recorded warnings in the order they occurred.
func (d *Diagnostics) Warnings() []error {
	return append([]error(nil), d.warnings...)
}

// Len returns the number of warnings recorded so far.
func (d *Diagnostics) Len() int { return len(d.warnings) }
