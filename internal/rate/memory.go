package rate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	xrate "golang.org/x/time/rate"
)

// MemoryLimiter keeps one in-process token bucket per subject.
type MemoryLimiter struct {
	config  Config
	now     func() time.Time
	buckets sync.Map // subject -> *memoryBucket
}

type memoryBucket struct {
	limiter  *xrate.Limiter
	lastSeen atomic.Int64
	now      func() time.Time
}

// NewMemoryLimiter creates an in-process [MemoryLimiter].
func NewMemoryLimiter(cfg Config) (*MemoryLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &MemoryLimiter{config: cfg, now: time.Now}, nil
}

// WithClock replaces the time source. Intended for tests and simulations.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	if now != nil {
		l.now = now
	}
	return l
}

// Resolve returns the subject's bucket, atomically creating a full one if absent.
func (l *MemoryLimiter) Resolve(subject string) Bucket {
	if v, ok := l.buckets.Load(subject); ok {
		return v.(*memoryBucket)
	}

	fresh := &memoryBucket{
		limiter: xrate.NewLimiter(xrate.Every(l.config.RefillEvery), l.config.Capacity),
		now:     l.now,
	}
	fresh.lastSeen.Store(l.now().UnixNano())

	actual, _ := l.buckets.LoadOrStore(subject, fresh)
	return actual.(*memoryBucket)
}

// Len returns the number of live buckets.
func (l *MemoryLimiter) Len() int {
	n := 0
	l.buckets.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Sweep drops buckets idle for longer than idle and returns how many were removed.
// A dropped bucket is recreated full on the subject's next request.
func (l *MemoryLimiter) Sweep(idle time.Duration) int {
	cutoff := l.now().Add(-idle).UnixNano()
	removed := 0
	l.buckets.Range(func(key, value any) bool {
		b := value.(*memoryBucket)
		if b.lastSeen.Load() < cutoff {
			if l.buckets.CompareAndDelete(key, value) {
				removed++
			}
		}
		return true
	})
	return removed
}

func (b *memoryBucket) TryConsume(_ context.Context, cost int) (bool, error) {
	if cost < 1 {
		cost = 1
	}
	now := b.now()
	b.lastSeen.Store(now.UnixNano())
	return b.limiter.AllowN(now, cost), nil
}
