package goFlag

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goFlag/internal"
	internalaudit "github.com/MrEthical07/goFlag/internal/audit"
	"github.com/MrEthical07/goFlag/internal/limiters"
	"github.com/MrEthical07/goFlag/internal/secrets"
	"github.com/MrEthical07/goFlag/internal/stores"
	"github.com/MrEthical07/goFlag/internal/stores/pgstore"
	"github.com/redis/go-redis/v9"
)

// Storage backend names reported by [Engine.SecurityReport].
const (
	StorageBackendPostgres = "postgres"
	StorageBackendRedis    = "redis"
	StorageBackendMemory   = "memory"
)

// Builder assembles an [Engine]. A Builder is single-use: after a
// successful [Builder.Build] every further call fails.
//
// Storage is selected from what was supplied: a database handle wins, then
// in-memory storage when requested explicitly, then Redis. The Redis client
// also backs rate limiting when Config.RateLimit.Distributed is set.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	db     *sql.DB

	inMemory bool

	modules   ModuleProvider
	auditSink AuditSink
	logger    *slog.Logger

	keyGenerator internal.KeyGenerator
	now          func() time.Time

	built bool
}

// New returns a Builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used for distributed rate limits and, when no
// database or in-memory storage is chosen, for keys and submissions. Redis
// storage needs a single node or a failover client: its ledger script
// touches several keys at once, so a *redis.ClusterClient is rejected by
// Build unless another storage backend is configured.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithDatabase stores keys and submissions in PostgreSQL through db, which
// must have been opened with the pgx driver. Migrations run during Build
// when Config.Storage.AutoMigrate is set.
func (b *Builder) WithDatabase(db *sql.DB) *Builder {
	b.db = db
	return b
}

// WithInMemoryStorage keeps keys and submissions in process memory. Keys do
// not survive a restart; use it for tests and single-process tooling.
func (b *Builder) WithInMemoryStorage() *Builder {
	b.inMemory = true
	return b
}

func (b *Builder) WithModuleProvider(p ModuleProvider) *Builder {
	b.modules = p
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

func (b *Builder) withKeyGenerator(gen internal.KeyGenerator) *Builder {
	b.keyGenerator = gen
	return b
}

func (b *Builder) withClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and returns a ready [Engine].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.modules == nil {
		return nil, errors.New("module provider required")
	}
	if b.db != nil && b.inMemory {
		return nil, errors.New("WithDatabase and WithInMemoryStorage are mutually exclusive")
	}
	if cfg.RateLimit.Distributed && b.redis == nil {
		return nil, errors.New("distributed rate limiting requires redis client")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	kv, ledger, backend, err := b.buildStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	var limiterRedis redis.UniversalClient
	if cfg.RateLimit.Distributed {
		limiterRedis = b.redis
	}
	submissionLimiter, err := limiters.NewSubmissionLimiter(limiterRedis, limiters.FlagConfig{
		Capacity:    cfg.Submission.Capacity,
		RefillEvery: cfg.Submission.RefillEvery,
	})
	if err != nil {
		return nil, err
	}
	invalidLimiter, err := limiters.NewInvalidSubmissionLimiter(limiterRedis, limiters.FlagConfig{
		Capacity:    cfg.InvalidSubmission.Capacity,
		RefillEvery: cfg.InvalidSubmission.RefillEvery,
	})
	if err != nil {
		return nil, err
	}

	generate := b.keyGenerator
	if generate == nil {
		generate = internal.DefaultKeyGenerator()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:            cloneConfig(cfg),
		logger:            logger,
		storageBackend:    backend,
		modules:           b.modules,
		ledger:            ledger,
		submissionLimiter: submissionLimiter,
		invalidLimiter:    invalidLimiter,
		generate:          generate,
		now:               now,
	}
	engine.secrets = secrets.New(kv, generate, engine.dynamicModuleKey, secrets.Config{
		UserKeyLength:   cfg.Keys.UserKeyLength,
		ServerKeyLength: cfg.Keys.ServerKeyLength,
		CacheServerKey:  cfg.Keys.CacheServerKey,
	})
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Logger:     logger,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.initFlows()

	if !cfg.RateLimit.Distributed && cfg.RateLimit.SweepInterval > 0 {
		engine.startSweeper(cfg.RateLimit.SweepInterval, cfg.RateLimit.IdleBucketTTL)
	}

	for _, w := range cfg.Lint().BySeverity(LintWarn) {
		logger.Warn("goFlag: config lint", "code", w.Code, "severity", w.Severity.String(), "message", w.Message)
	}

	b.built = true

	return engine, nil
}

func (b *Builder) buildStorage(cfg Config, logger *slog.Logger) (stores.KeyValue, stores.Ledger, string, error) {
	switch {
	case b.db != nil:
		if cfg.Storage.AutoMigrate {
			if err := pgstore.Migrate(context.Background(), b.db); err != nil {
				return nil, nil, "", err
			}
			logger.Info("goFlag: database migrations applied")
		}
		s := pgstore.New(b.db)
		return s, s, StorageBackendPostgres, nil
	case b.inMemory:
		s := stores.NewMemoryStore()
		return s, s, StorageBackendMemory, nil
	case b.redis != nil:
		if _, ok := b.redis.(*redis.ClusterClient); ok {
			return nil, nil, "", errors.New("redis storage does not support cluster clients: use a single node, WithDatabase or WithInMemoryStorage")
		}
		s := stores.NewRedisStore(b.redis, cfg.Storage.RedisPrefix)
		return s, s, StorageBackendRedis, nil
	default:
		return nil, nil, "", errors.New("storage backend required: WithDatabase, WithRedis or WithInMemoryStorage")
	}
}
