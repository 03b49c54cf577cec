package goFlag

import (
	"context"
	"errors"
	"strings"
	"time"

	internalflows "github.com/MrEthical07/goFlag/internal/flows"
)

// VerifyFlag reports whether flag solves moduleID for userID without
// recording anything.
//
// Every call spends one token from the user's submission bucket. A wrong
// flag, or an unknown module, also spends one token from the invalid bucket;
// once that bucket is empty the result is [ErrInvalidSubmissionRateLimited]
// instead of false. Empty input is rejected with [ErrInvalidSubmission]
// before any token is spent.
func (e *Engine) VerifyFlag(ctx context.Context, userID, moduleID, flag string) (bool, error) {
	if e == nil || e.flows == nil {
		return false, ErrEngineNotReady
	}
	return e.flows.Verify(ctx, userID, moduleID, flag)
}

// Submit verifies flag and records the attempt.
//
// Verification errors are returned unchanged and nothing is recorded. Any
// attempt, right or wrong, on a module the user already solved fails with
// [ErrModuleAlreadySolved] and is not recorded; this holds under concurrent
// submissions because the ledger insert itself enforces it. Wrong flags on
// unsolved modules are always recorded.
func (e *Engine) Submit(ctx context.Context, userID, moduleID, flag string) (Submission, error) {
	if e == nil || e.flows == nil {
		return Submission{}, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}

	rec, err := e.flows.Submit(ctx, userID, moduleID, flag)

	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricSubmitLatency, time.Since(start))
	}
	if err != nil {
		return Submission{}, err
	}
	return submissionFromRecord(rec), nil
}

// SubmitByLocator resolves a module by its locator and submits flag for it.
// An unknown locator is throttled exactly like an unknown module id.
func (e *Engine) SubmitByLocator(ctx context.Context, userID, locator, flag string) (Submission, error) {
	if e == nil || e.flows == nil {
		return Submission{}, ErrEngineNotReady
	}
	if userID == "" || locator == "" || strings.TrimSpace(flag) == "" {
		return Submission{}, ErrInvalidSubmission
	}

	m, err := e.modules.FindModuleByLocator(ctx, locator)
	if err != nil {
		if !errors.Is(err, ErrModuleNotFound) {
			return Submission{}, err
		}
		deps := e.verifyDeps
		deps.LookupModule = func(context.Context, string) (internalflows.FlagModule, error) {
			return internalflows.FlagModule{}, err
		}
		_, verr := internalflows.RunVerify(ctx, userID, locator, flag, deps)
		return Submission{}, verr
	}

	return e.Submit(ctx, userID, m.ID, flag)
}
