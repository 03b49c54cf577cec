package goFlag

import (
	"context"
	"strings"
	"time"
)

// FlagSource describes how a module's flag is produced. It is either a
// [StaticFlag] or a [DynamicFlag]; no other implementations exist.
type FlagSource interface {
	isFlagSource()
}

// StaticFlag is a fixed flag shared by every user. Comparison trims
// surrounding whitespace and ignores letter case.
type StaticFlag struct {
	Value string
}

// DynamicFlag derives a per-user flag from Key, the user's key and the
// server key. The flag itself is never stored.
type DynamicFlag struct {
	Key []byte
}

func (StaticFlag) isFlagSource()  {}
func (DynamicFlag) isFlagSource() {}

// Module is an exercise that can be solved by submitting its flag.
type Module struct {
	ID      string
	Locator string
	Flag    FlagSource
}

// ModuleProvider resolves modules by id or locator. Implementations must
// return an error matching [ErrModuleNotFound] when no module exists, and
// must be safe for concurrent use.
type ModuleProvider interface {
	FindModuleByID(ctx context.Context, id string) (Module, error)
	FindModuleByLocator(ctx context.Context, locator string) (Module, error)
}

// Submission is one recorded flag attempt. Rows are append-only; at most one
// row per (UserID, ModuleID) has Valid set.
type Submission struct {
	ID          string
	UserID      string
	ModuleID    string
	Flag        string
	SubmittedAt time.Time
	Valid       bool
}

func validateModule(m Module) error {
	if m.ID == "" {
		return ErrModuleMisconfigured
	}
	switch f := m.Flag.(type) {
	case StaticFlag:
		if strings.TrimSpace(f.Value) == "" {
			return ErrModuleMisconfigured
		}
	case DynamicFlag:
		if len(f.Key) == 0 {
			return ErrModuleMisconfigured
		}
	default:
		return ErrModuleMisconfigured
	}
	return nil
}
