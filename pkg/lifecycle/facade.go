package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Config is the configuration surface recognized when starting a Runner.
type Config struct {
	// Login obtains a fresh lease. Required.
	Login Login
	// Renew extends an existing lease. Required.
	Renew Renew
	// InitialToken, if set, is a pre-fetched AuthResult. Supplying one
	// lets the caller perform a synchronous Login itself and surface any
	// error before going background; the runner then enters the
	// renew-loop directly instead of calling Login first.
	InitialToken *AuthResult
	// Logger receives structured logs of state transitions and
	// collaborator failures. Defaults to slog.Default().
	Logger *slog.Logger

	// testClock and testSeed back StartBackground's internal clock/random
	// construction in tests; production callers never set them.
	testClock clock.Clock
	testSeed  *int64
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c Config) validate() error {
	if c.Login == nil {
		return newUsageError(ErrMissingLogin)
	}
	if c.Renew == nil {
		return newUsageError(ErrMissingRenew)
	}
	return nil
}

// Handle is returned by StartBackground. It lets application code read the
// currently published credential and cancel the background runner.
type Handle struct {
	cell   *TokenCell
	cancel context.CancelFunc
	done   chan struct{}
}

// Current returns the currently published token and whether the cell has
// been initialized yet. Callers that have not called AwaitReady should
// check the second return value before trusting the first.
func (h *Handle) Current() (AuthResult, bool) {
	t, ok := h.cell.Load()
	if !ok {
		return AuthResult{}, false
	}
	return t.Result, true
}

// AwaitReady blocks until the first successful Login (or the caller's
// InitialToken) has been published, or until ctx is done. On success it
// returns a Reader whose Get always returns a non-empty AuthResult.
func (h *Handle) AwaitReady(ctx context.Context) (*Reader, error) {
	if !h.cell.AwaitInitialized(ctx) {
		return nil, ctx.Err()
	}
	return &Reader{cell: h.cell}, nil
}

// Cancel signals the runner to exit at its next suspension point. It does
// not block; use Wait to block until the runner goroutine has exited.
func (h *Handle) Cancel() {
	h.cancel()
}

// Wait blocks until the runner goroutine has exited, which happens only
// after Cancel (or the ctx passed to StartBackground ends).
func (h *Handle) Wait() {
	<-h.done
}

// Reader is a read-only capability over the published credential, handed
// out once the cell is known to be initialized.
type Reader struct {
	cell *TokenCell
}

// Get returns the latest published AuthResult. Because the cell was
// already observed initialized when the Reader was constructed, and the
// cell never re-empties, Get always succeeds.
func (r *Reader) Get() AuthResult {
	t, _ := r.cell.Load()
	return t.Result
}

var seedOnce sync.Once
var seedSrc int64

func defaultSeed() int64 {
	seedOnce.Do(func() { seedSrc = time.Now().UnixNano() })
	return seedSrc
}

// StartBackground validates cfg and spawns a Runner on a background
// goroutine, returning a Handle immediately. If cfg.InitialToken is set,
// it is published before StartBackground returns, so AwaitReady on the
// returned Handle will not block.
func StartBackground(ctx context.Context, cfg Config) (*Handle, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	realClock := cfg.testClock
	if realClock == nil {
		realClock = clock.New()
	}

	seed := defaultSeed()
	if cfg.testSeed != nil {
		seed = *cfg.testSeed
	}

	lcClock := NewClockFrom(realClock)
	sleeper := NewSleeper(realClock)
	random := NewRandomSource(seed)

	runner := newRunner(cfg, lcClock, sleeper, random)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	// Publish the initial token here, before the goroutine starts, so the
	// Handle is already initialized when it is returned (S0->S2).
	if cfg.InitialToken != nil {
		runner.store(lcClock.Now(), *cfg.InitialToken)
	}

	go func() {
		defer close(done)
		if cfg.InitialToken != nil && !runner.renewLoop(runCtx) {
			return // cancelled
		}
		runner.Run(runCtx, nil)
	}()

	return &Handle{cell: runner.cell, cancel: cancel, done: done}, nil
}
