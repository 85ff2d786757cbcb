package lifecycle

import (
	"math/rand"
	"sync"
)

// RandomSource produces uniform doubles in [0,1). It is used only by the
// LifecycleRunner's own goroutine (never concurrently), so implementations
// need not be safe for concurrent use unless documented otherwise.
type RandomSource interface {
	Float64() float64
}

// lockedRand wraps math/rand.Rand so a seeded source can also be shared
// safely with a BackoffPolicy created on the same goroutine; the lock is
// defensive rather than required by the single-goroutine contract above.
type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomSource returns a RandomSource seeded with seed. Tests pass a
// fixed seed for reproducible jitter; production code seeds from
// time.Now().UnixNano().
func NewRandomSource(seed int64) RandomSource {
	return &lockedRand{rnd: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rnd.Float64()
}
