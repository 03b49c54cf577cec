package goFlag

import (
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Submission.Capacity != 10 || cfg.Submission.RefillEvery != 6*time.Second {
		t.Fatalf("unexpected submission defaults: %+v", cfg.Submission)
	}
	if cfg.InvalidSubmission.Capacity != 5 || cfg.InvalidSubmission.RefillEvery != 30*time.Second {
		t.Fatalf("unexpected invalid submission defaults: %+v", cfg.InvalidSubmission)
	}
}

func TestMultiInstanceConfigValid(t *testing.T) {
	cfg := MultiInstanceConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("multi-instance config invalid: %v", err)
	}
	if !cfg.RateLimit.Distributed || cfg.Keys.CacheServerKey {
		t.Fatalf("unexpected multi-instance config: %+v", cfg)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"short user key", func(c *Config) { c.Keys.UserKeyLength = 8 }},
		{"short module key", func(c *Config) { c.Keys.ModuleKeyLength = 15 }},
		{"short server key", func(c *Config) { c.Keys.ServerKeyLength = 16 }},
		{"zero submission capacity", func(c *Config) { c.Submission.Capacity = 0 }},
		{"zero submission refill", func(c *Config) { c.Submission.RefillEvery = 0 }},
		{"negative invalid capacity", func(c *Config) { c.InvalidSubmission.Capacity = -1 }},
		{"zero invalid refill", func(c *Config) { c.InvalidSubmission.RefillEvery = 0 }},
		{"distributed sub-millisecond refill", func(c *Config) {
			c.RateLimit.Distributed = true
			c.Submission.RefillEvery = time.Microsecond
		}},
		{"sweep without idle ttl", func(c *Config) {
			c.RateLimit.SweepInterval = time.Minute
			c.RateLimit.IdleBucketTTL = 0
		}},
		{"empty redis prefix", func(c *Config) { c.Storage.RedisPrefix = "" }},
		{"audit without buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestWithConfigCopiesValue(t *testing.T) {
	cfg := testConfig()
	b := New().WithConfig(cfg)
	cfg.Submission.Capacity = 99

	if b.config.Submission.Capacity != 3 {
		t.Fatalf("builder config mutated through caller copy: %d", b.config.Submission.Capacity)
	}
}
