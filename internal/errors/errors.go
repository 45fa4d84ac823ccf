// Package errors defines the error kinds surfaced by sitegen.
//
// Errors fall into four categories with distinct severities: PathError
// (unusable input root, fatal to the requested operation), RenderError
// (one entry failed to render or copy, never fatal to a build pass),
// BindError (dev server could not acquire its listener, fatal to
// development mode), and WatchError (filesystem notification problems,
// surfaced but recoverable). All types implement Unwrap so callers can
// use errors.Is/As against the underlying cause.
package errors

import (
	"errors"
	"fmt"
)

// PathError reports an input root that does not exist or is not a
// directory. A build pass aborts before any output is written.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("input path %q: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// RenderError reports a single entry that failed to render or copy.
// The offending entry is omitted from output; the rest of the build
// pass continues.
type RenderError struct {
	// Path is the source path relative to the input root.
	Path string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %q: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// BindError reports that the dev server could not acquire its listen
// address. Surfaced to the caller rather than silently retried.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// WatchError reports a failed or lost filesystem notification
// subscription.
type WatchError struct {
	Err error
}

func (e *WatchError) Error() string {
	return fmt.Sprintf("watch: %v", e.Err)
}

func (e *WatchError) Unwrap() error { return e.Err }

// NewRenderError wraps err as a RenderError for the given source path.
// Returns nil if err is nil.
func NewRenderError(path string, err error) error {
	if err == nil {
		return nil
	}
	return &RenderError{Path: path, Err: err}
}

// IsFatal reports whether err should abort the operation that produced
// it. RenderErrors are the only non-fatal kind.
func IsFatal(err error) bool {
	var re *RenderError
	return err != nil && !errors.As(err, &re)
}
