package rate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newRedisLimiterTest(t *testing.T, cfg Config, clock *manualClock) (*RedisLimiter, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l, err := NewRedisLimiter(rdb, "test", cfg)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	l.WithClock(clock.Now)
	return l, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func limitersUnderTest(t *testing.T, cfg Config, clock *manualClock) (map[string]Limiter, func()) {
	t.Helper()
	mem, err := NewMemoryLimiter(cfg)
	if err != nil {
		t.Fatalf("new memory limiter: %v", err)
	}
	mem.WithClock(clock.Now)
	rl, done := newRedisLimiterTest(t, cfg, clock)
	return map[string]Limiter{"memory": mem, "redis": rl}, done
}

func TestConfigValidate(t *testing.T) {
	bad := []Config{
		{Capacity: 0, RefillEvery: time.Second},
		{Capacity: 1, RefillEvery: 0},
		{Capacity: -3, RefillEvery: time.Second},
	}
	for _, cfg := range bad {
		if _, err := NewMemoryLimiter(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig for %+v, got %v", cfg, err)
		}
	}
	if _, err := NewRedisLimiter(nil, "x", Config{Capacity: 1, RefillEvery: time.Microsecond}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected sub-millisecond refill to be rejected, got %v", err)
	}
}

func TestBurstCapacityThenReject(t *testing.T) {
	clock := newManualClock()
	limiters, done := limitersUnderTest(t, Config{Capacity: 3, RefillEvery: time.Hour}, clock)
	defer done()

	for name, l := range limiters {
		b := l.Resolve("user-1")
		for i := 0; i < 3; i++ {
			ok, err := b.TryConsume(context.Background(), 1)
			if err != nil {
				t.Fatalf("%s: consume %d: %v", name, i, err)
			}
			if !ok {
				t.Fatalf("%s: consume %d should be admitted", name, i)
			}
		}
		ok, err := b.TryConsume(context.Background(), 1)
		if err != nil {
			t.Fatalf("%s: fourth consume: %v", name, err)
		}
		if ok {
			t.Fatalf("%s: fourth consume should be rejected", name)
		}
	}
}

func TestRefillAfterInterval(t *testing.T) {
	clock := newManualClock()
	limiters, done := limitersUnderTest(t, Config{Capacity: 2, RefillEvery: time.Minute}, clock)
	defer done()

	ctx := context.Background()
	for name, l := range limiters {
		b := l.Resolve("refill-" + name)
		for i := 0; i < 2; i++ {
			if ok, _ := b.TryConsume(ctx, 1); !ok {
				t.Fatalf("%s: initial consume %d rejected", name, i)
			}
		}
		if ok, _ := b.TryConsume(ctx, 1); ok {
			t.Fatalf("%s: exhausted bucket admitted a request", name)
		}
	}

	clock.Advance(time.Minute)

	for name, l := range limiters {
		b := l.Resolve("refill-" + name)
		if ok, _ := b.TryConsume(ctx, 1); !ok {
			t.Fatalf("%s: one token should be back after one interval", name)
		}
		if ok, _ := b.TryConsume(ctx, 1); ok {
			t.Fatalf("%s: only one token should have been refilled", name)
		}
	}
}

func TestSubjectsAreIndependent(t *testing.T) {
	clock := newManualClock()
	limiters, done := limitersUnderTest(t, Config{Capacity: 1, RefillEvery: time.Hour}, clock)
	defer done()

	ctx := context.Background()
	for name, l := range limiters {
		if ok, _ := l.Resolve("a").TryConsume(ctx, 1); !ok {
			t.Fatalf("%s: subject a rejected", name)
		}
		if ok, _ := l.Resolve("b").TryConsume(ctx, 1); !ok {
			t.Fatalf("%s: subject b must not share a's bucket", name)
		}
	}
}

func TestConcurrentFirstAccessSharesOneBucket(t *testing.T) {
	clock := newManualClock()
	limiters, done := limitersUnderTest(t, Config{Capacity: 5, RefillEvery: time.Hour}, clock)
	defer done()

	for name, l := range limiters {
		const workers = 48
		var admitted atomic.Int64
		var wg sync.WaitGroup
		start := make(chan struct{})
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				<-start
				ok, err := l.Resolve("burst").TryConsume(context.Background(), 1)
				if err == nil && ok {
					admitted.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		if got := admitted.Load(); got != 5 {
			t.Fatalf("%s: expected exactly 5 admissions, got %d", name, got)
		}
	}
}

func TestMemorySweepDropsIdleBuckets(t *testing.T) {
	clock := newManualClock()
	l, err := NewMemoryLimiter(Config{Capacity: 1, RefillEvery: time.Hour})
	if err != nil {
		t.Fatalf("new memory limiter: %v", err)
	}
	l.WithClock(clock.Now)

	ctx := context.Background()
	_, _ = l.Resolve("idle").TryConsume(ctx, 1)
	clock.Advance(2 * time.Hour)
	_, _ = l.Resolve("active").TryConsume(ctx, 1)

	if removed := l.Sweep(time.Hour); removed != 1 {
		t.Fatalf("expected one idle bucket removed, got %d", removed)
	}
	if l.Len() != 1 {
		t.Fatalf("expected one live bucket, got %d", l.Len())
	}
	if ok, _ := l.Resolve("idle").TryConsume(ctx, 1); !ok {
		t.Fatal("a swept bucket is recreated full")
	}
}

func TestRedisBackendUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	l, err := NewRedisLimiter(rdb, "down", Config{Capacity: 1, RefillEvery: time.Second})
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	mr.Close()

	if _, err := l.Resolve("u").TryConsume(context.Background(), 1); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}
