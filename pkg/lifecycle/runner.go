package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Runner is the top-level state machine: acquire -> renew-loop ->
// re-acquire, owning the TokenCell and driving the RenewalScheduler. It
// suspends only inside its Sleeper; TokenCell operations and scheduler
// arithmetic never block.
type Runner struct {
	login Login
	renew Renew

	clock     Clock
	sleeper   Sleeper
	random    RandomSource
	scheduler *RenewalScheduler

	cell   *TokenCell
	logger *slog.Logger
}

// newRunner builds a Runner. cfg has already been validated by the
// caller (StartBackground).
func newRunner(cfg Config, clock Clock, sleeper Sleeper, random RandomSource) *Runner {
	return &Runner{
		login:     cfg.Login,
		renew:     cfg.Renew,
		clock:     clock,
		sleeper:   sleeper,
		random:    random,
		scheduler: NewRenewalScheduler(random),
		cell:      NewTokenCell(),
		logger:    cfg.logger(),
	}
}

// Run drives the state machine until ctx is cancelled. If initial is
// non-nil, the runner enters the renew-loop (S2) directly instead of
// performing an initial Login (S0->S2); otherwise it starts by acquiring
// a fresh lease (S0->S1).
func (r *Runner) Run(ctx context.Context, initial *AuthResult) {
	if initial != nil {
		r.store(r.clock.Now(), *initial)
		if !r.renewLoop(ctx) {
			return // cancelled
		}
	}

	for {
		if !r.acquireLoop(ctx) {
			return // cancelled
		}
		if !r.renewLoop(ctx) {
			return // cancelled
		}
		// renew-loop exited because it could not schedule another
		// attempt before the grace boundary; fall back to acquisition.
	}
}

// acquireLoop is state S1 (with S3 interleaved as its backoff). It
// retries Login forever, pacing retries with a fresh BackoffPolicy, until
// a call succeeds or ctx is cancelled. Returns false if cancelled.
func (r *Runner) acquireLoop(ctx context.Context) bool {
	backoffPolicy := NewBackoffPolicy(r.sleeper, r.random)

	for {
		attempt := uuid.NewString()
		now := r.clock.Now()
		result, err := r.login.Login(ctx)
		if err != nil {
			err = NewBackendError("login", err)
			r.logger.Error("login failed", "attempt_id", attempt, "error", err)

			if stepErr := backoffPolicy.Step(ctx); stepErr != nil {
				return false
			}
			continue
		}

		r.logger.Info("login succeeded", "attempt_id", attempt)
		r.store(now, result)
		return true
	}
}

// renewLoop is state S2. It renews the current lease until the scheduler
// determines the next sleep would land at or past the renewal deadline,
// at which point it returns true so the caller re-acquires. Returns false
// if cancelled mid-sleep.
func (r *Runner) renewLoop(ctx context.Context) bool {
	token, ok := r.cell.Load()
	if !ok {
		// Unreachable via the public entry points, but fail closed by
		// re-acquiring rather than panicking on a nil token.
		return true
	}

	grace := r.scheduler.Grace(token.RemainingTTL(r.clock.Now()))

	for {
		token, _ = r.cell.Load()

		if token.Result.Renewable {
			attempt := uuid.NewString()
			now := r.clock.Now()
			renewed, err := r.renew.Renew(ctx, token.Result)
			if err != nil {
				r.logger.Warn("renew failed, continuing renew loop", "attempt_id", attempt, "error", NewBackendError("renew", err))
			} else {
				r.logger.Info("renew succeeded", "attempt_id", attempt)
				token = NewTokenWithExpiration(now, renewed)
				r.cell.Store(token)
				grace = r.scheduler.Grace(token.RemainingTTL(now))
			}
		}

		deadline := r.scheduler.RenewalDeadline(token.Expiration, grace)
		now := r.clock.Now()
		sleep, exceedsDeadline := r.scheduler.NextSleep(now, deadline, grace)
		if exceedsDeadline {
			return true
		}

		if err := r.sleeper.Sleep(ctx, sleep); err != nil {
			return false
		}
	}
}

func (r *Runner) store(now time.Time, result AuthResult) {
	r.cell.Store(NewTokenWithExpiration(now, result))
}
