package lifecycle

import (
	"testing"
	"time"
)

// fixedRandom returns a constant value from Float64, useful for pinning
// jitter to a known point in its range.
type fixedRandom float64

func (f fixedRandom) Float64() float64 { return float64(f) }

func TestSchedulerGraceBounds(t *testing.T) {
	tests := []struct {
		name string
		ttl  time.Duration
		rand float64
	}{
		{"low end", time.Hour, 0},
		{"high end", time.Hour, 0.999999},
		{"midpoint", 2 * time.Hour, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewRenewalScheduler(fixedRandom(tt.rand))
			grace := s.Grace(tt.ttl)

			lower := time.Duration(0.10 * float64(tt.ttl))
			upper := time.Duration(0.20 * float64(tt.ttl))

			if grace < lower || grace > upper {
				t.Fatalf("grace %v out of bounds [%v, %v]", grace, lower, upper)
			}
		})
	}
}

func TestSchedulerGraceZeroTTL(t *testing.T) {
	s := NewRenewalScheduler(fixedRandom(0.5))
	if g := s.Grace(0); g != 0 {
		t.Fatalf("expected zero grace for zero TTL, got %v", g)
	}
	if g := s.Grace(-time.Second); g != 0 {
		t.Fatalf("expected zero grace for negative TTL, got %v", g)
	}
}

func TestSchedulerRenewalDeadline(t *testing.T) {
	s := NewRenewalScheduler(fixedRandom(0))
	expiration := time.Unix(1000, 0)
	grace := 100 * time.Second

	deadline := s.RenewalDeadline(expiration, grace)
	want := expiration.Add(-grace)

	if !deadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", deadline, want)
	}
}

func TestSchedulerNextSleepExitsAtDeadline(t *testing.T) {
	s := NewRenewalScheduler(fixedRandom(0))

	// TTL=0 => grace=0 => renewalDeadline == expiration == now: the very
	// next sleep always lands at or past the deadline.
	now := time.Unix(0, 0)
	deadline := now

	_, exceeds := s.NextSleep(now, deadline, 0)
	if !exceeds {
		t.Fatal("expected TTL=0 boundary to immediately exceed the deadline")
	}
}

func TestSchedulerNextSleepStaysWithinDeadlineWhenFarOut(t *testing.T) {
	s := NewRenewalScheduler(fixedRandom(0))

	now := time.Unix(0, 0)
	deadline := now.Add(time.Hour)
	grace := 6 * time.Minute

	sleep, exceeds := s.NextSleep(now, deadline, grace)
	if exceeds {
		t.Fatalf("did not expect to exceed deadline with an hour remaining, sleep=%v", sleep)
	}
	if now.Add(sleep).After(deadline) {
		t.Fatalf("now+sleep (%v) must not be after deadline (%v)", now.Add(sleep), deadline)
	}
	if sleep <= 0 {
		t.Fatalf("expected a positive sleep, got %v", sleep)
	}
}
