package goFlag

import (
	"context"
	"errors"

	"github.com/MrEthical07/goFlag/internal/flagkey"
	internalflows "github.com/MrEthical07/goFlag/internal/flows"
	"github.com/MrEthical07/goFlag/internal/stores"
	"github.com/google/uuid"
)

func (e *Engine) initFlows() {
	e.verifyDeps = e.verifyFlowDeps()
	e.flows = internalflows.New(internalflows.Deps{
		Verify: e.verifyDeps,
		Submit: e.submitFlowDeps(),
	})
}

func (e *Engine) verifyFlowDeps() internalflows.VerifyDeps {
	return internalflows.VerifyDeps{
		EnforceSubmission: func(ctx context.Context, userID string) error {
			return e.limiterError(ctx, e.submissionLimiter.Enforce(ctx, userID))
		},
		EnforceInvalid: func(ctx context.Context, userID string) error {
			return e.limiterError(ctx, e.invalidLimiter.Enforce(ctx, userID))
		},
		IsRateLimited: func(err error) bool {
			return errors.Is(err, ErrSubmissionRateLimited) || errors.Is(err, ErrInvalidSubmissionRateLimited)
		},
		LookupModule: e.lookupFlagModule,
		DeriveFlag: func(ctx context.Context, userID string, moduleKey []byte) (string, error) {
			return e.deriveWithModuleKey(ctx, flagkey.PurposeFlag, userID, moduleKey)
		},
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Metrics: internalflows.VerifyMetrics{
			SubmissionRateLimited: int(MetricSubmissionRateLimited),
			InvalidRateLimited:    int(MetricInvalidRateLimited),
			FlagValid:             int(MetricFlagValid),
			FlagInvalid:           int(MetricFlagInvalid),
		},
		Events: internalflows.VerifyEvents{
			SubmissionRateLimited: auditEventSubmissionRateLimited,
			InvalidRateLimited:    auditEventInvalidRateLimited,
		},
		Errors: internalflows.VerifyErrors{
			EngineNotReady:               ErrEngineNotReady,
			InvalidSubmission:            ErrInvalidSubmission,
			SubmissionRateLimited:        ErrSubmissionRateLimited,
			InvalidSubmissionRateLimited: ErrInvalidSubmissionRateLimited,
			ModuleNotFound:               ErrModuleNotFound,
		},
	}
}

func (e *Engine) submitFlowDeps() internalflows.SubmitDeps {
	return internalflows.SubmitDeps{
		NewID: func() string { return uuid.NewString() },
		Now:   e.now,
		Insert: func(ctx context.Context, rec internalflows.SubmissionRecord) error {
			err := e.ledger.Insert(ctx, stores.Submission{
				ID:          rec.ID,
				UserID:      rec.UserID,
				ModuleID:    rec.ModuleID,
				Flag:        rec.Flag,
				SubmittedAt: rec.SubmittedAt,
				Valid:       rec.Valid,
			})
			if err != nil && !errors.Is(err, stores.ErrAlreadySolved) {
				e.logger.WarnContext(ctx, "goFlag: submission insert failed", "user_id", rec.UserID, "module_id", rec.ModuleID, "err", err)
			}
			return err
		},
		IsAlreadySolved: func(err error) bool {
			return errors.Is(err, stores.ErrAlreadySolved)
		},
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Metrics: internalflows.SubmitMetrics{
			Recorded:      int(MetricSubmissionRecorded),
			AlreadySolved: int(MetricModuleAlreadySolved),
			StoreFailure:  int(MetricStoreFailure),
		},
		Events: internalflows.SubmitEvents{
			Valid:         auditEventSubmissionValid,
			Invalid:       auditEventSubmissionInvalid,
			AlreadySolved: auditEventModuleAlreadySolved,
		},
		Errors: internalflows.SubmitErrors{
			EngineNotReady:      ErrEngineNotReady,
			ModuleAlreadySolved: ErrModuleAlreadySolved,
			StoreUnavailable:    ErrStoreUnavailable,
		},
	}
}

func submissionFromRecord(rec internalflows.SubmissionRecord) Submission {
	return Submission{
		ID:          rec.ID,
		UserID:      rec.UserID,
		ModuleID:    rec.ModuleID,
		Flag:        rec.Flag,
		SubmittedAt: rec.SubmittedAt,
		Valid:       rec.Valid,
	}
}

func submissionFromStore(sub stores.Submission) Submission {
	return Submission{
		ID:          sub.ID,
		UserID:      sub.UserID,
		ModuleID:    sub.ModuleID,
		Flag:        sub.Flag,
		SubmittedAt: sub.SubmittedAt,
		Valid:       sub.Valid,
	}
}
