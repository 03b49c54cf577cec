package flows

import (
	"context"
	"fmt"
	"time"
)

// SubmissionRecord is the ledger row produced by RunSubmit.
type SubmissionRecord struct {
	ID          string
	UserID      string
	ModuleID    string
	Flag        string
	SubmittedAt time.Time
	Valid       bool
}

type SubmitMetrics struct {
	Recorded      int
	AlreadySolved int
	StoreFailure  int
}

type SubmitEvents struct {
	Valid         string
	Invalid       string
	AlreadySolved string
}

type SubmitErrors struct {
	EngineNotReady      error
	ModuleAlreadySolved error
	StoreUnavailable    error
}

type SubmitDeps struct {
	Verify          func(ctx context.Context, userID, moduleID, flag string) (bool, error)
	NewID           func() string
	Now             func() time.Time
	Insert          func(context.Context, SubmissionRecord) error
	IsAlreadySolved func(error) bool

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID, moduleID string, err error, metadata func() map[string]string)

	Metrics SubmitMetrics
	Events  SubmitEvents
	Errors  SubmitErrors
}

// RunSubmit verifies flag and records the attempt in the ledger.
//
// Verification errors are returned unchanged and nothing is recorded. A valid
// attempt for an already-solved module returns Errors.ModuleAlreadySolved and
// is not recorded either; the ledger insert is the only place that decides.
func RunSubmit(ctx context.Context, userID, moduleID, flag string, deps SubmitDeps) (SubmissionRecord, error) {
	normalizeSubmitDeps(&deps)

	if deps.Verify == nil || deps.Insert == nil || deps.NewID == nil {
		return SubmissionRecord{}, deps.Errors.EngineNotReady
	}

	valid, err := deps.Verify(ctx, userID, moduleID, flag)
	if err != nil {
		return SubmissionRecord{}, err
	}

	rec := SubmissionRecord{
		ID:          deps.NewID(),
		UserID:      userID,
		ModuleID:    moduleID,
		Flag:        flag,
		SubmittedAt: deps.Now().UTC(),
		Valid:       valid,
	}

	if err := deps.Insert(ctx, rec); err != nil {
		if deps.IsAlreadySolved(err) {
			deps.MetricInc(deps.Metrics.AlreadySolved)
			deps.EmitAudit(ctx, deps.Events.AlreadySolved, false, userID, moduleID, deps.Errors.ModuleAlreadySolved, nil)
			return SubmissionRecord{}, deps.Errors.ModuleAlreadySolved
		}
		deps.MetricInc(deps.Metrics.StoreFailure)
		return SubmissionRecord{}, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}

	deps.MetricInc(deps.Metrics.Recorded)
	event := deps.Events.Invalid
	if valid {
		event = deps.Events.Valid
	}
	deps.EmitAudit(ctx, event, valid, userID, moduleID, nil, func() map[string]string {
		return map[string]string{"submission_id": rec.ID}
	})

	return rec, nil
}

func normalizeSubmitDeps(deps *SubmitDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.IsAlreadySolved == nil {
		deps.IsAlreadySolved = func(error) bool { return false }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
}
