package lifecycle

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Sleeper suspends the calling goroutine for at least d, measured against
// the Clock it was built from. Sleep returns ErrInterrupted if ctx is
// cancelled before d elapses. This is the runner's only suspension point:
// neither TokenCell operations nor scheduler arithmetic block.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// clockSleeper sleeps against a github.com/benbjohnson/clock.Clock, so
// that in tests a *clock.Mock advancing past the timer's deadline releases
// the sleep exactly as a real clock would after d elapses.
type clockSleeper struct {
	c clock.Clock
}

// NewSleeper builds a Sleeper backed by c. Pass clock.New() in production
// and clock.NewMock() in tests.
func NewSleeper(c clock.Clock) Sleeper {
	return clockSleeper{c: c}
}

func (s clockSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ErrInterrupted
		default:
			return nil
		}
	}

	timer := s.c.Timer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ErrInterrupted
	}
}
