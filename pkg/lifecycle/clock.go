package lifecycle

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Clock is a monotonic-enough source of "now", injectable so tests can
// drive the runner deterministically instead of sleeping wall-clock time.
type Clock interface {
	Now() time.Time
}

// clockAdapter satisfies Clock on top of github.com/benbjohnson/clock,
// which gives production code a real wall clock and tests a fully
// controllable clock.Mock without this package hand-rolling either one.
type clockAdapter struct {
	c clock.Clock
}

// NewClock wraps clock.New(), the real wall-clock implementation.
func NewClock() Clock {
	return clockAdapter{c: clock.New()}
}

// NewClockFrom wraps an arbitrary clock.Clock, most commonly a *clock.Mock
// constructed with clock.NewMock() in tests.
func NewClockFrom(c clock.Clock) Clock {
	return clockAdapter{c: c}
}

func (a clockAdapter) Now() time.Time { return a.c.Now() }
