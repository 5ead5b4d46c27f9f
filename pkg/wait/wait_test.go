// pkg/wait/wait_test.go
package wait

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock advances only when the poller sleeps.
type fakeClock struct {
	t      time.Time
	sleeps []time.Duration
}

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.t = c.t.Add(d)
}

func newFakePoller(interval time.Duration) (*Poller, *fakeClock) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	p := NewPoller(interval)
	p.now = clk.now
	p.sleep = clk.sleep
	return p, clk
}

func TestPoller_ImmediateSuccess(t *testing.T) {
	p, clk := newFakePoller(50 * time.Millisecond)
	err := p.For(func() bool { return true }, time.Second, "always")
	require.NoError(t, err)
	assert.Empty(t, clk.sleeps, "a predicate that already holds must not sleep")
}

func TestPoller_FlipsBeforeTimeout(t *testing.T) {
	p, clk := newFakePoller(50 * time.Millisecond)
	start := clk.now()
	flipAt := start.Add(230 * time.Millisecond)

	err := p.For(func() bool { return !clk.now().Before(flipAt) }, time.Second, "flip")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, clk.now().Sub(start))
}

func TestPoller_FinalCheckAtDeadline(t *testing.T) {
	p, clk := newFakePoller(50 * time.Millisecond)
	start := clk.now()
	flipAt := start.Add(120 * time.Millisecond)

	// The deadline falls between two polls, the last evaluation happens exactly on it.
	err := p.For(func() bool { return !clk.now().Before(flipAt) }, 120*time.Millisecond, "late flip")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{50 * time.Millisecond, 50 * time.Millisecond, 20 * time.Millisecond}, clk.sleeps)
}

func TestPoller_TimeoutIsSoft(t *testing.T) {
	p, clk := newFakePoller(50 * time.Millisecond)
	start := clk.now()

	err := p.For(func() bool { return false }, 200*time.Millisecond, "element is visible")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.False(t, errors.Is(err, ErrAssertionFailed))
	assert.Contains(t, err.Error(), "element is visible")
	assert.Equal(t, 200*time.Millisecond, clk.now().Sub(start), "must not block past the timeout")

	var werr *Error
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, 5, werr.Polls)
	assert.Equal(t, "wait time has expired for condition element is visible after 200ms (5 polls)", err.Error())
}

func TestPoller_AssureHard(t *testing.T) {
	p, _ := newFakePoller(0)
	assert.Equal(t, DefaultInterval, p.Interval)

	err := p.Assure(func() bool { return false }, 100*time.Millisecond, Hard, "text is 'after'")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAssertionFailed)
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.Equal(t, "assertion failed: condition text is 'after' not met within 100ms (3 polls)", err.Error())
}

func TestFor_RealClockBounds(t *testing.T) {
	start := time.Now()
	err := For(func() bool { return false }, 100*time.Millisecond, "never")
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 100*time.Millisecond+3*DefaultInterval)
}

func TestFor_RealClockFlip(t *testing.T) {
	flip := time.Now().Add(60 * time.Millisecond)
	err := For(func() bool { return time.Now().After(flip) }, time.Second, "flip")
	assert.NoError(t, err)
}

func TestAssure_ZeroTimeoutEvaluatesOnce(t *testing.T) {
	calls := 0
	err := Assure(func() bool { calls++; return false }, 0, Soft, "zero")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 1, calls)
}

func TestSeverity_String(t *testing.T) {
	assert.Equal(t, "soft", Soft.String())
	assert.Equal(t, "hard", Hard.String())
}
