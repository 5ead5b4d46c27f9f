// pkg/remote/errors.go
package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSuchElement is returned when a single-element lookup matched nothing.
	ErrNoSuchElement = errors.New("no such element")
	// ErrStaleElement means a previously resolved element no longer belongs to the live document.
	ErrStaleElement = errors.New("stale element reference")
	// ErrSessionNotReady is returned for any element operation while no driver handle is live.
	ErrSessionNotReady = errors.New("session not ready: open a page before searching")
	// ErrNoSuchWindow is returned after the current window has been closed.
	ErrNoSuchWindow = errors.New("no such window")
	// ErrInvalidSelector is returned for an unknown strategy or empty pattern.
	ErrInvalidSelector = errors.New("invalid selector")
	// ErrUnsupported is returned when a driver cannot perform an operation at all.
	ErrUnsupported = errors.New("operation not supported by driver")
)

// Error records a failed driver operation.
type Error struct {
	Op  string
	By  *By
	Err error
}

func (e *Error) Error() string {
	if e.By != nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.By, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap annotates err with the operation (and optional selector) that produced it.
// A nil err stays nil.
func Wrap(op string, by *By, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, By: by, Err: err}
}

// IsDriverError reports whether err came from the driver layer.
func IsDriverError(err error) bool {
	if err == nil {
		return false
	}
	var de *Error
	if errors.As(err, &de) {
		return true
	}
	return errors.Is(err, ErrNoSuchElement) ||
		errors.Is(err, ErrStaleElement) ||
		errors.Is(err, ErrSessionNotReady) ||
		errors.Is(err, ErrNoSuchWindow)
}
