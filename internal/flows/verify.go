package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goFlag/internal/flagkey"
)

// FlagModule is the verification view of a module: either a static flag or a
// dynamic module key.
type FlagModule struct {
	ID         string
	Static     bool
	StaticFlag string
	Key        []byte
}

type VerifyMetrics struct {
	SubmissionRateLimited int
	InvalidRateLimited    int
	FlagValid             int
	FlagInvalid           int
}

type VerifyEvents struct {
	SubmissionRateLimited string
	InvalidRateLimited    string
}

type VerifyErrors struct {
	EngineNotReady               error
	InvalidSubmission            error
	SubmissionRateLimited        error
	InvalidSubmissionRateLimited error
	ModuleNotFound               error
}

type VerifyDeps struct {
	EnforceSubmission func(context.Context, string) error
	EnforceInvalid    func(context.Context, string) error
	IsRateLimited     func(error) bool

	LookupModule func(context.Context, string) (FlagModule, error)
	DeriveFlag   func(ctx context.Context, userID string, moduleKey []byte) (string, error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID, moduleID string, err error, metadata func() map[string]string)

	Metrics VerifyMetrics
	Events  VerifyEvents
	Errors  VerifyErrors
}

// RunVerify decides whether flag solves moduleID for userID.
//
// Rate limiting happens before any comparison. A wrong flag, or an unknown
// module, is charged to the invalid bucket; once that bucket is empty the
// caller receives Errors.InvalidSubmissionRateLimited instead of false.
func RunVerify(ctx context.Context, userID, moduleID, flag string, deps VerifyDeps) (bool, error) {
	normalizeVerifyDeps(&deps)

	if deps.LookupModule == nil || deps.DeriveFlag == nil {
		return false, deps.Errors.EngineNotReady
	}
	if userID == "" || moduleID == "" || strings.TrimSpace(flag) == "" {
		return false, deps.Errors.InvalidSubmission
	}

	if err := deps.EnforceSubmission(ctx, userID); err != nil {
		if deps.IsRateLimited(err) {
			deps.MetricInc(deps.Metrics.SubmissionRateLimited)
			deps.EmitAudit(ctx, deps.Events.SubmissionRateLimited, false, userID, moduleID, deps.Errors.SubmissionRateLimited, nil)
			return false, deps.Errors.SubmissionRateLimited
		}
		return false, err
	}

	valid, lookupErr := compareFlag(ctx, userID, moduleID, flag, deps)
	if lookupErr != nil && !isModuleNotFound(lookupErr, deps) {
		return false, lookupErr
	}

	if !valid {
		if err := deps.EnforceInvalid(ctx, userID); err != nil {
			if deps.IsRateLimited(err) {
				deps.MetricInc(deps.Metrics.InvalidRateLimited)
				deps.EmitAudit(ctx, deps.Events.InvalidRateLimited, false, userID, moduleID, deps.Errors.InvalidSubmissionRateLimited, nil)
				return false, deps.Errors.InvalidSubmissionRateLimited
			}
			return false, err
		}
		deps.MetricInc(deps.Metrics.FlagInvalid)
		if lookupErr != nil {
			return false, lookupErr
		}
		return false, nil
	}

	deps.MetricInc(deps.Metrics.FlagValid)
	return true, nil
}

// compareFlag reports whether flag matches the module's expected value.
// A module-not-found error still counts as an invalid attempt; any other
// error aborts the flow.
func compareFlag(ctx context.Context, userID, moduleID, flag string, deps VerifyDeps) (bool, error) {
	mod, err := deps.LookupModule(ctx, moduleID)
	if err != nil {
		return false, err
	}

	if mod.Static {
		return flagkey.Match(flag, mod.StaticFlag), nil
	}

	expected, err := deps.DeriveFlag(ctx, userID, mod.Key)
	if err != nil {
		return false, err
	}
	return flagkey.Match(flag, expected), nil
}

func isModuleNotFound(err error, deps VerifyDeps) bool {
	return deps.Errors.ModuleNotFound != nil && errors.Is(err, deps.Errors.ModuleNotFound)
}

func normalizeVerifyDeps(deps *VerifyDeps) {
	if deps.EnforceSubmission == nil {
		deps.EnforceSubmission = func(context.Context, string) error { return nil }
	}
	if deps.EnforceInvalid == nil {
		deps.EnforceInvalid = func(context.Context, string) error { return nil }
	}
	if deps.IsRateLimited == nil {
		deps.IsRateLimited = func(error) bool { return false }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
}
