package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goFlag/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	ErrSubmissionRateLimited        = errors.New("submission rate limited")
	ErrInvalidSubmissionRateLimited = errors.New("invalid submission rate limited")
	ErrLimiterUnavailable           = errors.New("submission limiter unavailable")
)

const (
	submissionPrefix = "fsa"
	invalidPrefix    = "fsi"
)

// FlagConfig configures one flag limiter.
type FlagConfig struct {
	Capacity    int
	RefillEvery time.Duration
}

// FlagLimiter throttles one kind of flag attempt per user.
type FlagLimiter struct {
	limiter rate.Limiter
	limited error
}

// NewSubmissionLimiter gates every submission attempt. A nil redis client
// keeps buckets in process memory.
func NewSubmissionLimiter(redisClient redis.UniversalClient, cfg FlagConfig) (*FlagLimiter, error) {
	return newFlagLimiter(redisClient, submissionPrefix, cfg, ErrSubmissionRateLimited)
}

// NewInvalidSubmissionLimiter gates wrong-flag attempts. A nil redis client
// keeps buckets in process memory.
func NewInvalidSubmissionLimiter(redisClient redis.UniversalClient, cfg FlagConfig) (*FlagLimiter, error) {
	return newFlagLimiter(redisClient, invalidPrefix, cfg, ErrInvalidSubmissionRateLimited)
}

// NewFlagLimiter wraps an existing rate limiter. limited is returned on exhaustion.
func NewFlagLimiter(limiter rate.Limiter, limited error) *FlagLimiter {
	return &FlagLimiter{limiter: limiter, limited: limited}
}

func newFlagLimiter(redisClient redis.UniversalClient, prefix string, cfg FlagConfig, limited error) (*FlagLimiter, error) {
	rc := rate.Config{Capacity: cfg.Capacity, RefillEvery: cfg.RefillEvery}

	var (
		l   rate.Limiter
		err error
	)
	if redisClient != nil {
		l, err = rate.NewRedisLimiter(redisClient, prefix, rc)
	} else {
		l, err = rate.NewMemoryLimiter(rc)
	}
	if err != nil {
		return nil, fmt.Errorf("%s limiter: %w", prefix, err)
	}
	return NewFlagLimiter(l, limited), nil
}

// Enforce spends one token from the user's bucket. It returns the limiter's
// rate-limit error when the bucket is empty.
func (l *FlagLimiter) Enforce(ctx context.Context, userID string) error {
	if l == nil || l.limiter == nil {
		return nil
	}
	ok, err := l.limiter.Resolve(userID).TryConsume(ctx, 1)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	if !ok {
		return l.limited
	}
	return nil
}

// Sweep evicts idle in-memory buckets. Redis buckets expire on their own.
func (l *FlagLimiter) Sweep(idle time.Duration) int {
	if l == nil {
		return 0
	}
	if m, ok := l.limiter.(*rate.MemoryLimiter); ok {
		return m.Sweep(idle)
	}
	return 0
}
