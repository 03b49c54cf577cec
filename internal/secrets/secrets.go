// Package secrets owns the three key sources that flag derivation combines:
// per-user keys, per-module keys and the global server key.
//
// User keys and the server key are created lazily through a single-winner
// write on the backing [stores.KeyValue], so concurrent first requests agree
// on one value. The server key is additionally cached in a memguard enclave,
// sealed while at rest in process memory.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrEthical07/goFlag/internal"
	"github.com/MrEthical07/goFlag/internal/stores"
	"github.com/awnumar/memguard"
)

const (
	serverKeyName = "config:server_key"
	userKeyPrefix = "user:"
)

var (
	ErrEmptySubject   = errors.New("empty subject id")
	ErrEmptyKey       = errors.New("stored key is empty")
	ErrNoModuleLookup = errors.New("module key lookup not configured")
)

// ModuleKeyFunc returns a module's key, or an error when the module is
// unknown or not configured for dynamic flags.
type ModuleKeyFunc func(ctx context.Context, moduleID string) ([]byte, error)

// Config sizes generated keys.
type Config struct {
	UserKeyLength   int
	ServerKeyLength int
	CacheServerKey  bool
}

// Store resolves and lazily creates secret key material.
type Store struct {
	kv         stores.KeyValue
	generate   internal.KeyGenerator
	moduleKeys ModuleKeyFunc
	config     Config

	mu        sync.RWMutex
	serverKey *memguard.Enclave
}

// New creates a secret [Store]. A nil generator uses crypto/rand.
func New(kv stores.KeyValue, generate internal.KeyGenerator, moduleKeys ModuleKeyFunc, cfg Config) *Store {
	if generate == nil {
		generate = internal.DefaultKeyGenerator()
	}
	if cfg.UserKeyLength <= 0 {
		cfg.UserKeyLength = internal.UserKeySize
	}
	if cfg.ServerKeyLength <= 0 {
		cfg.ServerKeyLength = internal.ServerKeySize
	}
	return &Store{
		kv:         kv,
		generate:   generate,
		moduleKeys: moduleKeys,
		config:     cfg,
	}
}

// UserKey returns the user's key, creating and persisting one on first use.
func (s *Store) UserKey(ctx context.Context, userID string) ([]byte, error) {
	if userID == "" {
		return nil, ErrEmptySubject
	}
	return s.getOrCreate(ctx, userKeyPrefix+userID, s.config.UserKeyLength)
}

// ModuleKey returns the key of a dynamic-flag module.
func (s *Store) ModuleKey(ctx context.Context, moduleID string) ([]byte, error) {
	if moduleID == "" {
		return nil, ErrEmptySubject
	}
	if s.moduleKeys == nil {
		return nil, ErrNoModuleLookup
	}
	key, err := s.moduleKeys(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	return key, nil
}

// ServerKey returns the global server key, creating it if it was never set.
//
// Without caching every call reads the store and callers never wait on each
// other. With caching only the first fill is serialized.
func (s *Store) ServerKey(ctx context.Context) ([]byte, error) {
	if !s.config.CacheServerKey {
		return s.getOrCreate(ctx, serverKeyName, s.config.ServerKeyLength)
	}

	s.mu.RLock()
	enc := s.serverKey
	s.mu.RUnlock()
	if enc != nil {
		return openEnclave(enc)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.serverKey != nil {
		return openEnclave(s.serverKey)
	}
	key, err := s.getOrCreate(ctx, serverKeyName, s.config.ServerKeyLength)
	if err != nil {
		return nil, err
	}
	s.serverKey = memguard.NewEnclave(cloneBytes(key))
	return key, nil
}

// RotateServerKey replaces the server key. Every dynamic flag derived from
// the previous key stops verifying.
func (s *Store) RotateServerKey(ctx context.Context) ([]byte, error) {
	fresh, err := s.generate(s.config.ServerKeyLength)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Set(ctx, serverKeyName, fresh); err != nil {
		return nil, err
	}
	if s.config.CacheServerKey {
		s.serverKey = memguard.NewEnclave(cloneBytes(fresh))
	} else {
		s.serverKey = nil
	}
	return fresh, nil
}

// DropCache forgets the cached server key so the next read hits the store.
// It reports whether a cached key was present.
func (s *Store) DropCache() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	had := s.serverKey != nil
	s.serverKey = nil
	return had
}

func (s *Store) getOrCreate(ctx context.Context, name string, size int) ([]byte, error) {
	key, err := s.kv.Get(ctx, name)
	switch {
	case err == nil:
	case errors.Is(err, stores.ErrKeyNotFound):
		fresh, genErr := s.generate(size)
		if genErr != nil {
			return nil, genErr
		}
		key, err = s.kv.SetIfAbsent(ctx, name, fresh)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if len(key) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyKey, name)
	}
	return key, nil
}

func openEnclave(enc *memguard.Enclave) ([]byte, error) {
	buf, err := enc.Open()
	if err != nil {
		return nil, err
	}
	defer buf.Destroy()
	return cloneBytes(buf.Bytes()), nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
