package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KEYS[1] bucket hash
// ARGV: capacity, refill interval ms, now ms, cost, ttl ms
const tokenBucketScript = `
local capacity = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
  tokens = capacity
  ts = now
end

if now > ts then
  local refill = math.floor((now - ts) / interval)
  if refill > 0 then
    tokens = math.min(capacity, tokens + refill)
    ts = ts + refill * interval
  end
end
if tokens >= capacity then
  ts = now
end

local allowed = 0
if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', string.format('%d', tokens), 'ts', string.format('%d', ts))
redis.call('PEXPIRE', KEYS[1], ttl)
return allowed
`

var tokenBucketLua = redis.NewScript(tokenBucketScript)

// RedisLimiter keeps token buckets in Redis so that several processes share them.
type RedisLimiter struct {
	redis  redis.UniversalClient
	prefix string
	config Config
	now    func() time.Time
}

// NewRedisLimiter creates a [RedisLimiter] storing buckets under prefix.
func NewRedisLimiter(redisClient redis.UniversalClient, prefix string, cfg Config) (*RedisLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RefillEvery < time.Millisecond {
		return nil, ErrInvalidConfig
	}
	if prefix == "" {
		prefix = "frl"
	}
	return &RedisLimiter{
		redis:  redisClient,
		prefix: prefix,
		config: cfg,
		now:    time.Now,
	}, nil
}

// WithClock replaces the time source. Intended for tests.
func (l *RedisLimiter) WithClock(now func() time.Time) *RedisLimiter {
	if now != nil {
		l.now = now
	}
	return l
}

// Resolve returns a handle to the subject's bucket. Bucket state is created
// lazily and atomically by the first TryConsume.
func (l *RedisLimiter) Resolve(subject string) Bucket {
	return redisBucket{limiter: l, key: l.prefix + ":" + subject}
}

type redisBucket struct {
	limiter *RedisLimiter
	key     string
}

func (b redisBucket) TryConsume(ctx context.Context, cost int) (bool, error) {
	if cost < 1 {
		cost = 1
	}
	l := b.limiter
	ttl := l.config.fullRefill()
	if ttl < time.Second {
		ttl = time.Second
	}

	allowed, err := tokenBucketLua.Run(ctx, l.redis, []string{b.key},
		l.config.Capacity,
		l.config.RefillEvery.Milliseconds(),
		l.now().UnixMilli(),
		cost,
		ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return allowed == 1, nil
}
