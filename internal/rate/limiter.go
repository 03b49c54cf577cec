package rate

import (
	"context"
	"time"
)

// Config holds token bucket tuning parameters.
type Config struct {
	Capacity    int
	RefillEvery time.Duration
}

// Validate reports whether the bucket parameters are usable.
func (c Config) Validate() error {
	if c.Capacity < 1 || c.RefillEvery <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// fullRefill is the time an empty bucket needs to become full again.
func (c Config) fullRefill() time.Duration {
	return time.Duration(c.Capacity) * c.RefillEvery
}

// Bucket is the per-subject admission state.
type Bucket interface {
	// TryConsume removes cost tokens if available. It never blocks.
	TryConsume(ctx context.Context, cost int) (bool, error)
}

// Limiter resolves the bucket owned by a subject, creating it full on first use.
type Limiter interface {
	Resolve(subject string) Bucket
}
