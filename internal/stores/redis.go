package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

const setIfAbsentScript = `
if redis.call('SETNX', KEYS[1], ARGV[1]) == 1 then
  return ARGV[1]
end
return redis.call('GET', KEYS[1])
`

// KEYS: solved set, user list, module list, ledger index
// ARGV: module id, encoded record, valid ("1"/"0")
const insertSubmissionScript = `
if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 1 then
  return 0
end
if ARGV[3] == '1' then
  redis.call('SADD', KEYS[1], ARGV[1])
end
redis.call('RPUSH', KEYS[2], ARGV[2])
redis.call('RPUSH', KEYS[3], ARGV[2])
redis.call('SADD', KEYS[4], KEYS[1], KEYS[2], KEYS[3])
return 1
`

// KEYS: ledger index
// ARGV: user list key prefix
const deleteLedgerScript = `
local keys = redis.call('SMEMBERS', KEYS[1])
local n = 0
local plen = string.len(ARGV[1])
for _, k in ipairs(keys) do
  if string.sub(k, 1, plen) == ARGV[1] then
    n = n + redis.call('LLEN', k)
  end
  redis.call('DEL', k)
end
redis.call('DEL', KEYS[1])
return n
`

var (
	setIfAbsentLua      = redis.NewScript(setIfAbsentScript)
	insertSubmissionLua = redis.NewScript(insertSubmissionScript)
	deleteLedgerLua     = redis.NewScript(deleteLedgerScript)
)

// RedisStore implements [KeyValue] and [Ledger] on Redis.
//
// Key layout (prefix defaults to "fg"):
//   - <prefix>:kv:<key>       secret material
//   - <prefix>:su:<user>      list of the user's submissions (JSON)
//   - <prefix>:sm:<module>    list of the module's submissions (JSON)
//   - <prefix>:ss:<user>      set of modules the user has solved
//   - <prefix>:sidx           index of all ledger keys, used by DeleteAll
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a [RedisStore] using prefix as its key namespace.
func NewRedisStore(redisClient redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "fg"
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisStore) kvKey(key string) string           { return s.prefix + ":kv:" + key }
func (s *RedisStore) userListKey(userID string) string  { return s.prefix + ":su:" + userID }
func (s *RedisStore) moduleListKey(modID string) string { return s.prefix + ":sm:" + modID }
func (s *RedisStore) solvedSetKey(userID string) string { return s.prefix + ":ss:" + userID }
func (s *RedisStore) ledgerIndexKey() string            { return s.prefix + ":sidx" }

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.redis.Get(ctx, s.kvKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return v, nil
}

func (s *RedisStore) SetIfAbsent(ctx context.Context, key string, value []byte) ([]byte, error) {
	stored, err := setIfAbsentLua.Run(ctx, s.redis, []string{s.kvKey(key)}, value).Text()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return []byte(stored), nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.redis.Set(ctx, s.kvKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Insert(ctx context.Context, sub Submission) error {
	encoded, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	valid := "0"
	if sub.Valid {
		valid = "1"
	}

	keys := []string{
		s.solvedSetKey(sub.UserID),
		s.userListKey(sub.UserID),
		s.moduleListKey(sub.ModuleID),
		s.ledgerIndexKey(),
	}
	inserted, err := insertSubmissionLua.Run(ctx, s.redis, keys, sub.ModuleID, encoded, valid).Int()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if inserted == 0 {
		return ErrAlreadySolved
	}
	return nil
}

func (s *RedisStore) ListByUser(ctx context.Context, userID string) ([]Submission, error) {
	return s.list(ctx, s.userListKey(userID))
}

func (s *RedisStore) ListByModule(ctx context.Context, moduleID string) ([]Submission, error) {
	return s.list(ctx, s.moduleListKey(moduleID))
}

func (s *RedisStore) HasValid(ctx context.Context, userID, moduleID string) (bool, error) {
	ok, err := s.redis.SIsMember(ctx, s.solvedSetKey(userID), moduleID).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return ok, nil
}

func (s *RedisStore) SolvedModules(ctx context.Context, userID string) ([]string, error) {
	modules, err := s.redis.SMembers(ctx, s.solvedSetKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	sort.Strings(modules)
	return modules, nil
}

func (s *RedisStore) DeleteAll(ctx context.Context) (int64, error) {
	n, err := deleteLedgerLua.Run(ctx, s.redis, []string{s.ledgerIndexKey()}, s.prefix+":su:").Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return n, nil
}

func (s *RedisStore) list(ctx context.Context, key string) ([]Submission, error) {
	raw, err := s.redis.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	out := make([]Submission, 0, len(raw))
	for _, item := range raw {
		var sub Submission
		if err := json.Unmarshal([]byte(item), &sub); err != nil {
			return nil, fmt.Errorf("decode submission: %w", err)
		}
		out = append(out, sub)
	}
	return out, nil
}
