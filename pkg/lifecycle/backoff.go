package lifecycle

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	backoffInitialInterval = 1 * time.Second
	backoffMaxInterval     = 8 * time.Minute
	backoffMultiplier      = 2.0
	backoffJitterFraction  = 0.10
)

// BackoffPolicy paces repeated Login attempts with exponential backoff:
// sleep for the current duration, then double it, clamped at a maximum.
// The doubling-and-clamping arithmetic is delegated to
// cenkalti/backoff/v4's ExponentialBackOff rather than hand-rolled; its own
// randomization is disabled (RandomizationFactor: 0) because this package
// applies jitter itself through an injected RandomSource so that test runs
// stay seed-reproducible, which the upstream library's package-level
// math/rand source does not allow.
type BackoffPolicy struct {
	base    *backoff.ExponentialBackOff
	sleeper Sleeper
	random  RandomSource
}

// NewBackoffPolicy builds a BackoffPolicy that sleeps via sleeper and
// jitters via random.
func NewBackoffPolicy(sleeper Sleeper, random RandomSource) *BackoffPolicy {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     backoffInitialInterval,
		RandomizationFactor: 0,
		Multiplier:          backoffMultiplier,
		MaxInterval:         backoffMaxInterval,
		MaxElapsedTime:      0, // retry forever
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	return &BackoffPolicy{base: b, sleeper: sleeper, random: random}
}

// Step sleeps for the current nominal duration (jittered to 100%-110% of
// nominal) and then advances to the next nominal duration, doubling and
// clamping to backoffMaxInterval. It returns ErrInterrupted if ctx is
// cancelled during the sleep, propagated unchanged to the caller so the
// acquisition loop can terminate.
func (b *BackoffPolicy) Step(ctx context.Context) error {
	nominal := b.base.NextBackOff()
	if nominal == backoff.Stop {
		nominal = backoffMaxInterval
	}

	jittered := nominal + time.Duration(b.random.Float64()*backoffJitterFraction*float64(nominal))

	return b.sleeper.Sleep(ctx, jittered)
}

// Reset restarts the policy from its initial 1-second interval. Per this
// package's documented behavior, the acquisition loop always constructs a
// fresh BackoffPolicy (equivalently, calls Reset) on every S1 entry rather
// than carrying accumulated backoff across a successful login.
func (b *BackoffPolicy) Reset() {
	b.base.Reset()
}
