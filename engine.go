package goFlag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/goFlag/internal"
	internalaudit "github.com/MrEthical07/goFlag/internal/audit"
	"github.com/MrEthical07/goFlag/internal/flagkey"
	internalflows "github.com/MrEthical07/goFlag/internal/flows"
	"github.com/MrEthical07/goFlag/internal/limiters"
	"github.com/MrEthical07/goFlag/internal/secrets"
	"github.com/MrEthical07/goFlag/internal/stores"
)

const (
	// PurposeFlag derives the submittable flag of a dynamic module.
	PurposeFlag = flagkey.PurposeFlag
	// PurposeCSRFPseudonym derives a per-user, per-module pseudonym for
	// collaborating modules. The result is not wrapped as a flag.
	PurposeCSRFPseudonym = flagkey.PurposeCSRFPseudonym
)

// Engine is the flag derivation, verification and submission engine.
// Construct it with [Builder.Build]; all methods are safe for concurrent use.
type Engine struct {
	config            Config
	logger            *slog.Logger
	storageBackend    string
	modules           ModuleProvider
	secrets           *secrets.Store
	ledger            stores.Ledger
	submissionLimiter *limiters.FlagLimiter
	invalidLimiter    *limiters.FlagLimiter
	generate          internal.KeyGenerator
	flows             *internalflows.Service
	verifyDeps        internalflows.VerifyDeps
	audit             *internalaudit.Dispatcher
	metrics           *Metrics
	now               func() time.Time

	stopSweep chan struct{}
	sweepWG   sync.WaitGroup
	closeOnce sync.Once
}

// Close stops the bucket sweeper and flushes pending audit events. It does
// not close the Redis client or database handle passed to the [Builder].
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		if e.stopSweep != nil {
			close(e.stopSweep)
			e.sweepWG.Wait()
		}
		if e.audit != nil {
			e.audit.Close()
		}
	})
}

// AuditDropped returns the number of audit events dropped because the
// dispatcher buffer was full or the caller's context ended while waiting.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDroppedByType splits [Engine.AuditDropped] by event type, so a lost
// module_already_solved event can be told apart from a lost
// flag_submission_invalid one.
func (e *Engine) AuditDroppedByType() map[string]uint64 {
	if e == nil || e.audit == nil {
		return map[string]uint64{}
	}
	return e.audit.DroppedByType()
}

// AuditStats returns delivery counters of the audit dispatcher. It is zero
// when auditing is disabled.
func (e *Engine) AuditStats() AuditStats {
	if e == nil {
		return AuditStats{}
	}
	return e.audit.Stats()
}

// StorageBackend names the backend holding keys and submissions: one of
// [StorageBackendPostgres], [StorageBackendRedis] or [StorageBackendMemory].
func (e *Engine) StorageBackend() string {
	if e == nil {
		return ""
	}
	return e.storageBackend
}

// MetricsSnapshot returns a point-in-time copy of the engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) startSweeper(interval, idle time.Duration) {
	e.stopSweep = make(chan struct{})
	e.sweepWG.Add(1)
	go func() {
		defer e.sweepWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n := e.submissionLimiter.Sweep(idle) + e.invalidLimiter.Sweep(idle)
				if n > 0 {
					e.logger.Debug("goFlag: evicted idle rate limit buckets", "count", n)
				}
			case <-e.stopSweep:
				return
			}
		}
	}()
}

/*
====================================
MODULE LOOKUP
====================================
*/

func (e *Engine) findModule(ctx context.Context, moduleID string) (Module, error) {
	if e == nil || e.modules == nil {
		return Module{}, ErrEngineNotReady
	}
	m, err := e.modules.FindModuleByID(ctx, moduleID)
	if err != nil {
		return Module{}, err
	}
	if err := validateModule(m); err != nil {
		return Module{}, fmt.Errorf("%w: module %q", err, moduleID)
	}
	return m, nil
}

func (e *Engine) lookupFlagModule(ctx context.Context, moduleID string) (internalflows.FlagModule, error) {
	m, err := e.findModule(ctx, moduleID)
	if err != nil {
		return internalflows.FlagModule{}, err
	}
	switch f := m.Flag.(type) {
	case StaticFlag:
		return internalflows.FlagModule{ID: m.ID, Static: true, StaticFlag: f.Value}, nil
	case DynamicFlag:
		return internalflows.FlagModule{ID: m.ID, Key: f.Key}, nil
	default:
		return internalflows.FlagModule{}, ErrModuleMisconfigured
	}
}

func (e *Engine) dynamicModuleKey(ctx context.Context, moduleID string) ([]byte, error) {
	m, err := e.findModule(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	f, ok := m.Flag.(DynamicFlag)
	if !ok {
		return nil, ErrModuleNotDynamic
	}
	return f.Key, nil
}

/*
====================================
ERROR MAPPING
====================================
*/

// storeError maps secret and ledger backend failures onto public sentinels.
// Errors that already carry a public sentinel pass through unchanged.
func (e *Engine) storeError(ctx context.Context, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrModuleNotFound),
		errors.Is(err, ErrModuleNotDynamic),
		errors.Is(err, ErrModuleMisconfigured),
		errors.Is(err, ErrEngineNotReady),
		errors.Is(err, ErrStoreUnavailable):
		return err
	case errors.Is(err, internal.ErrRNGFailure):
		e.logger.ErrorContext(ctx, "goFlag: key generation failed", "op", op, "err", err)
		return fmt.Errorf("%w: %v", ErrRNGFailure, err)
	case errors.Is(err, flagkey.ErrEmptyKey),
		errors.Is(err, flagkey.ErrEmptyPurpose):
		return fmt.Errorf("%w: %v", ErrCryptoFailure, err)
	default:
		e.metricInc(MetricStoreFailure)
		e.logger.WarnContext(ctx, "goFlag: store operation failed", "op", op, "err", err)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func (e *Engine) limiterError(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiters.ErrSubmissionRateLimited):
		return ErrSubmissionRateLimited
	case errors.Is(err, limiters.ErrInvalidSubmissionRateLimited):
		return ErrInvalidSubmissionRateLimited
	default:
		e.metricInc(MetricLimiterFailure)
		e.logger.WarnContext(ctx, "goFlag: rate limiter unavailable", "err", err)
		return fmt.Errorf("%w: %v", ErrRateLimiterUnavailable, err)
	}
}
