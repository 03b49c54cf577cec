package stores

import (
	"context"
	"errors"
	"time"
)

var (
	ErrKeyNotFound        = errors.New("key not found")
	ErrAlreadySolved      = errors.New("module already solved")
	ErrBackendUnavailable = errors.New("store backend unavailable")
)

// KeyValue persists secret key material.
type KeyValue interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetIfAbsent(ctx context.Context, key string, value []byte) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Submission is one recorded flag attempt.
type Submission struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ModuleID    string    `json:"module_id"`
	Flag        string    `json:"flag"`
	SubmittedAt time.Time `json:"submitted_at"`
	Valid       bool      `json:"valid"`
}

// Ledger is the append-only submission log. Insert refuses every row for a
// (user, module) pair that already has a valid row.
type Ledger interface {
	Insert(ctx context.Context, sub Submission) error
	ListByUser(ctx context.Context, userID string) ([]Submission, error)
	ListByModule(ctx context.Context, moduleID string) ([]Submission, error)
	HasValid(ctx context.Context, userID, moduleID string) (bool, error)
	SolvedModules(ctx context.Context, userID string) ([]string, error)
	DeleteAll(ctx context.Context) (int64, error)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
