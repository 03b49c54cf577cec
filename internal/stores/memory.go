package stores

import (
	"context"
	"sort"
	"sync"
)

type solveKey struct {
	userID   string
	moduleID string
}

// MemoryStore implements [KeyValue] and [Ledger] in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	values      map[string][]byte
	submissions []Submission
	solved      map[solveKey]struct{}
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string][]byte),
		solved: make(map[solveKey]struct{}),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := cloneBytes(v)
	if out == nil {
		out = []byte{}
	}
	return out, nil
}

func (s *MemoryStore) SetIfAbsent(_ context.Context, key string, value []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.values[key]; ok {
		return cloneBytes(existing), nil
	}
	s.values[key] = cloneBytes(value)
	return cloneBytes(value), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.values[key] = cloneBytes(value)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Insert(_ context.Context, sub Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := solveKey{userID: sub.UserID, moduleID: sub.ModuleID}
	if _, ok := s.solved[k]; ok {
		return ErrAlreadySolved
	}
	if sub.Valid {
		s.solved[k] = struct{}{}
	}
	s.submissions = append(s.submissions, sub)
	return nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]Submission, error) {
	return s.filter(func(sub Submission) bool { return sub.UserID == userID }), nil
}

func (s *MemoryStore) ListByModule(_ context.Context, moduleID string) ([]Submission, error) {
	return s.filter(func(sub Submission) bool { return sub.ModuleID == moduleID }), nil
}

func (s *MemoryStore) HasValid(_ context.Context, userID, moduleID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.solved[solveKey{userID: userID, moduleID: moduleID}]
	return ok, nil
}

func (s *MemoryStore) SolvedModules(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for k := range s.solved {
		if k.userID == userID {
			out = append(out, k.moduleID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) DeleteAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.submissions))
	s.submissions = nil
	s.solved = make(map[solveKey]struct{})
	return n, nil
}

func (s *MemoryStore) filter(keep func(Submission) bool) []Submission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Submission
	for _, sub := range s.submissions {
		if keep(sub) {
			out = append(out, sub)
		}
	}
	return out
}
