package rate

import "errors"

var (
	// ErrInvalidConfig is returned when a bucket capacity or refill interval is not positive.
	ErrInvalidConfig = errors.New("invalid rate limit config")
	// ErrBackendUnavailable is returned when bucket state cannot be read or written.
	ErrBackendUnavailable = errors.New("rate limit backend unavailable")
)
