package goFlag

// DefaultConfig returns the configuration used by [New] when
// [Builder.WithConfig] is not called: in-memory buckets, a cached server key
// and conservative submission limits.
func DefaultConfig() Config {
	return defaultConfig()
}

// MultiInstanceConfig returns a configuration for several engine instances
// sharing one Redis or Postgres deployment. Buckets live in Redis and the
// server key is re-read from the store on every derivation, so a rotation is
// observed by every instance.
func MultiInstanceConfig() Config {
	cfg := defaultConfig()
	cfg.Keys.CacheServerKey = false
	cfg.RateLimit.Distributed = true
	cfg.RateLimit.SweepInterval = 0
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	return cfg
}
