package goFlag

import (
	"errors"
	"time"

	"github.com/MrEthical07/goFlag/internal"
)

// Config defines a public type used by goFlag APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Keys              KeysConfig
	Submission        SubmissionLimitConfig
	InvalidSubmission SubmissionLimitConfig
	RateLimit         RateLimitConfig
	Storage           StorageConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
}

/*
====================================
KEYS CONFIG
====================================
*/

// KeysConfig sizes generated key material.
//
// CacheServerKey keeps the server key sealed in process memory after the
// first read. Disable it when several instances share one store and a
// rotation on one instance must be observed by the others immediately.
type KeysConfig struct {
	UserKeyLength   int
	ModuleKeyLength int
	ServerKeyLength int
	CacheServerKey  bool
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// SubmissionLimitConfig configures one per-user token bucket: Capacity
// tokens, one token restored every RefillEvery.
type SubmissionLimitConfig struct {
	Capacity    int
	RefillEvery time.Duration
}

// RateLimitConfig selects the bucket backend.
//
// Distributed keeps buckets in Redis so every instance shares them; it
// requires a Redis client on the [Builder]. In-memory buckets are lost on
// restart and are evicted after IdleBucketTTL by a sweeper running every
// SweepInterval (zero disables the sweeper).
type RateLimitConfig struct {
	Distributed   bool
	IdleBucketTTL time.Duration
	SweepInterval time.Duration
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig configures the secret and submission backends.
type StorageConfig struct {
	RedisPrefix string
	AutoMigrate bool
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig defines a public type used by goFlag APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by goFlag APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Keys: KeysConfig{
			UserKeyLength:   internal.UserKeySize,
			ModuleKeyLength: internal.ModuleKeySize,
			ServerKeyLength: internal.ServerKeySize,
			CacheServerKey:  true,
		},
		Submission: SubmissionLimitConfig{
			Capacity:    10,
			RefillEvery: 6 * time.Second,
		},
		InvalidSubmission: SubmissionLimitConfig{
			Capacity:    5,
			RefillEvery: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Distributed:   false,
			IdleBucketTTL: 30 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
		Storage: StorageConfig{
			RedisPrefix: "fg",
			AutoMigrate: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate returns the first configuration error found, or nil.
// Validate does not mutate shared global state and can be used concurrently.
func (c *Config) Validate() error {
	// Keys
	if c.Keys.UserKeyLength < internal.UserKeySize {
		return errors.New("Keys UserKeyLength must be >= 16")
	}
	if c.Keys.ModuleKeyLength < internal.ModuleKeySize {
		return errors.New("Keys ModuleKeyLength must be >= 16")
	}
	if c.Keys.ServerKeyLength < internal.ServerKeySize {
		return errors.New("Keys ServerKeyLength must be >= 32")
	}

	// Buckets
	if c.Submission.Capacity <= 0 {
		return errors.New("Submission Capacity must be > 0")
	}
	if c.Submission.RefillEvery <= 0 {
		return errors.New("Submission RefillEvery must be > 0")
	}
	if c.InvalidSubmission.Capacity <= 0 {
		return errors.New("InvalidSubmission Capacity must be > 0")
	}
	if c.InvalidSubmission.RefillEvery <= 0 {
		return errors.New("InvalidSubmission RefillEvery must be > 0")
	}
	if c.RateLimit.Distributed {
		if c.Submission.RefillEvery < time.Millisecond || c.InvalidSubmission.RefillEvery < time.Millisecond {
			return errors.New("distributed rate limiting requires RefillEvery >= 1ms")
		}
	}
	if c.RateLimit.IdleBucketTTL < 0 {
		return errors.New("RateLimit IdleBucketTTL must be >= 0")
	}
	if c.RateLimit.SweepInterval < 0 {
		return errors.New("RateLimit SweepInterval must be >= 0")
	}
	if c.RateLimit.SweepInterval > 0 && c.RateLimit.IdleBucketTTL <= 0 {
		return errors.New("RateLimit IdleBucketTTL must be > 0 when SweepInterval is set")
	}

	// Storage
	if c.Storage.RedisPrefix == "" {
		return errors.New("Storage RedisPrefix must not be empty")
	}

	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	return nil
}
