package goFlag

import (
	"context"
	"strconv"
)

// Submissions returns every recorded attempt of userID, oldest first.
func (e *Engine) Submissions(ctx context.Context, userID string) ([]Submission, error) {
	if e == nil || e.ledger == nil {
		return nil, ErrEngineNotReady
	}
	rows, err := e.ledger.ListByUser(ctx, userID)
	if err != nil {
		return nil, e.storeError(ctx, "list_by_user", err)
	}
	out := make([]Submission, 0, len(rows))
	for _, row := range rows {
		out = append(out, submissionFromStore(row))
	}
	return out, nil
}

// ModuleSubmissions returns every recorded attempt for moduleID, oldest first.
func (e *Engine) ModuleSubmissions(ctx context.Context, moduleID string) ([]Submission, error) {
	if e == nil || e.ledger == nil {
		return nil, ErrEngineNotReady
	}
	rows, err := e.ledger.ListByModule(ctx, moduleID)
	if err != nil {
		return nil, e.storeError(ctx, "list_by_module", err)
	}
	out := make([]Submission, 0, len(rows))
	for _, row := range rows {
		out = append(out, submissionFromStore(row))
	}
	return out, nil
}

// HasSolved reports whether a valid submission exists for userID and moduleID.
func (e *Engine) HasSolved(ctx context.Context, userID, moduleID string) (bool, error) {
	if e == nil || e.ledger == nil {
		return false, ErrEngineNotReady
	}
	ok, err := e.ledger.HasValid(ctx, userID, moduleID)
	if err != nil {
		return false, e.storeError(ctx, "has_valid", err)
	}
	return ok, nil
}

// SolvedModules returns the ids of the modules userID has solved, sorted.
func (e *Engine) SolvedModules(ctx context.Context, userID string) ([]string, error) {
	if e == nil || e.ledger == nil {
		return nil, ErrEngineNotReady
	}
	ids, err := e.ledger.SolvedModules(ctx, userID)
	if err != nil {
		return nil, e.storeError(ctx, "solved_modules", err)
	}
	return ids, nil
}

// ResetSubmissions deletes every recorded submission and returns how many
// were removed. Keys and rate limit buckets are untouched.
func (e *Engine) ResetSubmissions(ctx context.Context) (int64, error) {
	if e == nil || e.ledger == nil {
		return 0, ErrEngineNotReady
	}
	n, err := e.ledger.DeleteAll(ctx)
	if err != nil {
		return 0, e.storeError(ctx, "delete_all", err)
	}
	e.metricInc(MetricSubmissionsReset)
	e.logger.WarnContext(ctx, "goFlag: submissions reset", "count", n)
	e.emitAudit(ctx, auditEventSubmissionsReset, true, "", "", nil, func() map[string]string {
		return map[string]string{"count": strconv.FormatInt(n, 10)}
	})
	return n, nil
}
