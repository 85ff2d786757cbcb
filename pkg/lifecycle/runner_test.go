package lifecycle

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

// countingLogin succeeds every call and counts how many fresh leases it
// issued, used to assert S-HAPPY's "tokens_created >= 1" and
// S-FLAKY-RENEW's "tokens_created is small" properties.
type countingLogin struct {
	calls int32
	ttl   time.Duration
}

func (c *countingLogin) Login(ctx context.Context) (AuthResult, error) {
	atomic.AddInt32(&c.calls, 1)
	return AuthResult{ClientToken: "tok", LeaseDurationSeconds: int(c.ttl.Seconds()), Renewable: true}, nil
}

// flakyRenew fails a fraction of calls, seeded for reproducibility.
type flakyRenew struct {
	mu       sync.Mutex
	rnd      *rand.Rand
	failRate float64
	ttl      time.Duration
	renewed  int32
}

func (f *flakyRenew) Renew(ctx context.Context, current AuthResult) (AuthResult, error) {
	f.mu.Lock()
	fail := f.rnd.Float64() < f.failRate
	f.mu.Unlock()

	if fail {
		return AuthResult{}, errors.New("simulated renew failure")
	}
	atomic.AddInt32(&f.renewed, 1)
	return AuthResult{ClientToken: current.ClientToken, LeaseDurationSeconds: int(f.ttl.Seconds()), Renewable: true}, nil
}

func newHarness(seed int64) (*clock.Mock, Sleeper, RandomSource) {
	mc := clock.NewMock()
	return mc, NewSleeper(mc), NewRandomSource(seed)
}

// pumpClock advances mc in steps, yielding between steps so the runner
// goroutine (blocked on a mock timer) gets scheduled and can re-arm its
// next timer before the following advance - the coordination the test
// Sleeper/Clock pairing in this package is built for.
func pumpClock(mc *clock.Mock, step time.Duration, steps int) {
	for i := 0; i < steps; i++ {
		mc.Add(step)
		time.Sleep(time.Millisecond)
	}
}

func TestScenarioHappyPath(t *testing.T) {
	mc, sleeper, random := newHarness(1)
	login := &countingLogin{ttl: time.Hour}
	renew := &flakyRenew{rnd: rand.New(rand.NewSource(1)), failRate: 0, ttl: time.Hour}

	cfg := Config{Login: login, Renew: renew}
	runner := newRunner(cfg, NewClockFrom(mc), sleeper, random)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		runner.Run(ctx, nil)
	}()

	// Scaled-down stand-in for the spec's "advance 8 days in 50ms ticks":
	// enough renewal cycles to exercise sustained renewal without the
	// unit test running millions of iterations.
	pumpClock(mc, time.Minute, 2000)

	token, ok := runner.cell.Load()
	if !ok {
		t.Fatal("expected an initialized token after pumping the clock")
	}
	if token.Expiration.Before(mc.Now()) {
		t.Fatalf("expected a still-valid token, expiration %v is before now %v", token.Expiration, mc.Now())
	}
	if atomic.LoadInt32(&login.calls) < 1 {
		t.Fatal("expected at least one Login call")
	}

	cancel()
	<-done
}

func TestScenarioFlakyRenewStillMostlyValid(t *testing.T) {
	mc, sleeper, random := newHarness(2)
	login := &countingLogin{ttl: time.Hour}
	renew := &flakyRenew{rnd: rand.New(rand.NewSource(2)), failRate: 0.2, ttl: time.Hour}

	cfg := Config{Login: login, Renew: renew}
	runner := newRunner(cfg, NewClockFrom(mc), sleeper, random)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		runner.Run(ctx, nil)
	}()

	pumpClock(mc, time.Minute, 2000)

	token, ok := runner.cell.Load()
	if !ok {
		t.Fatal("expected an initialized token")
	}
	if token.Expiration.Before(mc.Now()) {
		t.Fatalf("reader observed an expired token at %v (expiration %v)", mc.Now(), token.Expiration)
	}

	// A 20% renew failure rate should not force many re-acquisitions: the
	// renew-loop keeps retrying within the same lease until the grace
	// window closes, so Login should be called far less often than Renew
	// is attempted.
	if logins := atomic.LoadInt32(&login.calls); logins > 5 {
		t.Fatalf("expected few re-acquisitions under transient renew failures, got %d logins", logins)
	}

	cancel()
	<-done
}

func TestScenarioNonRenewableReacquires(t *testing.T) {
	mc, sleeper, random := newHarness(3)
	login := &countingLogin{ttl: 60 * time.Second}
	// Renew is never called because Renewable is always false; fail
	// loudly if it is.
	renew := RenewFunc(func(ctx context.Context, current AuthResult) (AuthResult, error) {
		t.Fatal("Renew should not be called for a non-renewable lease")
		return AuthResult{}, nil
	})

	loginFunc := LoginFunc(func(ctx context.Context) (AuthResult, error) {
		atomic.AddInt32(&login.calls, 1)
		return AuthResult{ClientToken: "tok", LeaseDurationSeconds: 60, Renewable: false}, nil
	})

	cfg := Config{Login: loginFunc, Renew: renew}
	runner := newRunner(cfg, NewClockFrom(mc), sleeper, random)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		runner.Run(ctx, nil)
	}()

	// 60s TTL with grace in [6s,12s]: well within 5 minutes of simulated
	// time the loop must have re-acquired multiple times.
	pumpClock(mc, time.Second, 300)

	if atomic.LoadInt32(&login.calls) < 2 {
		t.Fatalf("expected multiple re-acquisitions for a non-renewable 60s lease, got %d", login.calls)
	}

	cancel()
	<-done
}

func TestScenarioCancelDuringRenewSleepStopsCleanly(t *testing.T) {
	mc, sleeper, random := newHarness(4)
	login := &countingLogin{ttl: time.Hour}
	renew := &flakyRenew{rnd: rand.New(rand.NewSource(4)), failRate: 0, ttl: time.Hour}

	cfg := Config{Login: login, Renew: renew}
	runner := newRunner(cfg, NewClockFrom(mc), sleeper, random)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		runner.Run(ctx, nil)
	}()

	pumpClock(mc, time.Minute, 5)

	before, ok := runner.cell.Load()
	if !ok {
		t.Fatal("expected a token before cancellation")
	}

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop within one sleep quantum after cancellation")
	}

	after, ok := runner.cell.Load()
	if !ok || after.Result.ClientToken != before.Result.ClientToken {
		t.Fatalf("expected the last published token to remain readable after cancel")
	}
}

func TestScenarioInitialTokenSkipsLogin(t *testing.T) {
	mc, sleeper, random := newHarness(5)
	login := LoginFunc(func(ctx context.Context) (AuthResult, error) {
		t.Fatal("Login should not be called when an initial token is supplied")
		return AuthResult{}, nil
	})
	renew := &flakyRenew{rnd: rand.New(rand.NewSource(5)), failRate: 0, ttl: time.Hour}

	cfg := Config{Login: login, Renew: renew}
	runner := newRunner(cfg, NewClockFrom(mc), sleeper, random)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initial := AuthResult{ClientToken: "preset", LeaseDurationSeconds: 3600, Renewable: true}

	done := make(chan struct{})
	go func() {
		defer close(done)
		runner.Run(ctx, &initial)
	}()

	// Give the runner a moment to publish the initial token before we
	// assert on it; no real sleep should be needed since Store happens
	// synchronously at the top of Run, but a short pump is defensive
	// against goroutine scheduling.
	pumpClock(mc, time.Millisecond, 1)

	token, ok := runner.cell.Load()
	if !ok || token.Result.ClientToken != "preset" {
		t.Fatalf("expected the preset token to be published immediately, got %+v ok=%v", token, ok)
	}

	cancel()
	<-done
}
