// pkg/asli/errors.go
package asli

import (
	"errors"

	"github.com/xkilldash9x/asli/pkg/remote"
	"github.com/xkilldash9x/asli/pkg/wait"
)

var (
	// ErrIndexOutOfRange is returned when an indexed element lies outside its collection.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrUnsupportedBrowser is returned by NewSession and Configure for unknown browser kinds.
	ErrUnsupportedBrowser = errors.New("unsupported browser")

	// Re-exported so callers can classify failures without importing the lower layers.
	ErrSessionNotReady = remote.ErrSessionNotReady
	ErrNotFound        = remote.ErrNoSuchElement
	ErrTimeout         = wait.ErrTimeout
	ErrAssertionFailed = wait.ErrAssertionFailed
)

// isMissing reports errors that mean "the element is not there right now".
func isMissing(err error) bool {
	return errors.Is(err, remote.ErrNoSuchElement) || errors.Is(err, ErrIndexOutOfRange)
}
