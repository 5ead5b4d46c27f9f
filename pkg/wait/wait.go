// pkg/wait/wait.go

// Package wait implements the polling engine behind blocking waits and fluent
// assertions. Predicates are re-evaluated at a fixed interval on the calling
// goroutine until they hold or the timeout expires.
package wait

import (
	"errors"
	"fmt"
	"time"
)

// DefaultInterval is the poll period used when a Poller has none configured.
const DefaultInterval = 50 * time.Millisecond

var (
	// ErrTimeout is the soft failure of an expired wait.
	ErrTimeout = errors.New("wait timed out")
	// ErrAssertionFailed is the hard failure of an expired assurance.
	ErrAssertionFailed = errors.New("assertion failed")
)

// Severity selects which error an expired assurance produces.
type Severity int

const (
	// Soft expiry is reported as ErrTimeout.
	Soft Severity = iota
	// Hard expiry is reported as ErrAssertionFailed.
	Hard
)

func (s Severity) String() string {
	if s == Hard {
		return "hard"
	}
	return "soft"
}

// Predicate is polled until it returns true.
type Predicate func() bool

// Error describes an expired wait.
type Error struct {
	Severity    Severity
	Description string
	Timeout     time.Duration
	Polls       int
}

func (e *Error) Error() string {
	if e.Severity == Hard {
		return fmt.Sprintf("assertion failed: condition %s not met within %v (%d polls)", e.Description, e.Timeout, e.Polls)
	}
	return fmt.Sprintf("wait time has expired for condition %s after %v (%d polls)", e.Description, e.Timeout, e.Polls)
}

// Is matches ErrTimeout for soft errors and ErrAssertionFailed for hard ones.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Severity == Soft
	case ErrAssertionFailed:
		return e.Severity == Hard
	}
	return false
}

// Poller evaluates predicates at a fixed interval.
type Poller struct {
	Interval time.Duration
	// sleep is swapped in tests.
	sleep func(time.Duration)
	now   func() time.Time
}

// NewPoller returns a Poller with the given interval, or DefaultInterval when
// interval is not positive.
func NewPoller(interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{Interval: interval}
}

// For blocks until p holds, failing with ErrTimeout after timeout.
func (pl *Poller) For(p Predicate, timeout time.Duration, description string) error {
	return pl.Assure(p, timeout, Soft, description)
}

// Assure blocks until p holds. On expiry the error matches ErrTimeout or
// ErrAssertionFailed according to severity. The predicate is evaluated at least
// once and one last time at the deadline.
func (pl *Poller) Assure(p Predicate, timeout time.Duration, severity Severity, description string) error {
	now, sleep := pl.clock()
	interval := pl.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	deadline := now().Add(timeout)
	polls := 0
	for {
		polls++
		if p() {
			return nil
		}
		remaining := deadline.Sub(now())
		if remaining <= 0 {
			break
		}
		if remaining < interval {
			sleep(remaining)
			continue
		}
		sleep(interval)
	}

	return &Error{
		Severity:    severity,
		Description: description,
		Timeout:     timeout,
		Polls:       polls,
	}
}

func (pl *Poller) clock() (func() time.Time, func(time.Duration)) {
	now, sleep := pl.now, pl.sleep
	if now == nil {
		now = time.Now
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	return now, sleep
}

var defaultPoller = NewPoller(DefaultInterval)

// For polls p with DefaultInterval until it holds or timeout expires.
func For(p Predicate, timeout time.Duration, description string) error {
	return defaultPoller.For(p, timeout, description)
}

// Assure polls p with DefaultInterval and reports expiry with the given severity.
func Assure(p Predicate, timeout time.Duration, severity Severity, description string) error {
	return defaultPoller.Assure(p, timeout, severity, description)
}
