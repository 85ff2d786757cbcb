package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
)

// TokenCell is a single-writer, multi-reader holder of the current
// TokenWithExpiration. Store/Load synchronize through an atomic pointer
// (store-release / load-acquire), so a reader observing a non-empty cell
// also observes a fully constructed AuthResult. The "initialized" signal
// is a channel closed exactly once, the instant the first non-empty value
// is stored; it is never reset, even if the cell is later replaced.
type TokenCell struct {
	value     atomic.Pointer[TokenWithExpiration]
	readyOnce sync.Once
	readyCh   chan struct{}
}

// NewTokenCell builds an empty TokenCell.
func NewTokenCell() *TokenCell {
	return &TokenCell{readyCh: make(chan struct{})}
}

// Store replaces the current value. If this is the first non-empty store,
// it raises the initialized signal.
func (c *TokenCell) Store(t TokenWithExpiration) {
	c.value.Store(&t)
	c.readyOnce.Do(func() { close(c.readyCh) })
}

// Load returns the current value and whether the cell holds one.
func (c *TokenCell) Load() (TokenWithExpiration, bool) {
	p := c.value.Load()
	if p == nil {
		return TokenWithExpiration{}, false
	}
	return *p, true
}

// AwaitInitialized blocks until the cell has been stored to at least once,
// or until ctx is done. It returns true if initialization was observed,
// false if ctx ended first.
func (c *TokenCell) AwaitInitialized(ctx context.Context) bool {
	select {
	case <-c.readyCh:
		return true
	case <-ctx.Done():
		return false
	}
}
