package goFlag

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventSubmissionValid       = "flag_submission_valid"
	auditEventSubmissionInvalid     = "flag_submission_invalid"
	auditEventSubmissionRateLimited = "flag_submission_rate_limited"
	auditEventInvalidRateLimited    = "flag_invalid_rate_limited"
	auditEventModuleAlreadySolved   = "module_already_solved"
	auditEventServerKeyRotated      = "server_key_rotated"
	auditEventSubmissionsReset      = "submissions_reset"
)

// AuditErrorCode defines a public type used by goFlag APIs.
//
// AuditErrorCode values are the stable error strings carried in [AuditEvent].Error.
type AuditErrorCode string

const (
	auditErrInvalidSubmission AuditErrorCode = "invalid_submission"
	auditErrRateLimited       AuditErrorCode = "rate_limited"
	auditErrModuleNotFound    AuditErrorCode = "module_not_found"
	auditErrModuleConfig      AuditErrorCode = "module_misconfigured"
	auditErrAlreadySolved     AuditErrorCode = "already_solved"
	auditErrUnavailable       AuditErrorCode = "backend_unavailable"
	auditErrInternal          AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	moduleID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		ModuleID:  moduleID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidSubmission):
		return auditErrInvalidSubmission
	case errors.Is(err, ErrSubmissionRateLimited),
		errors.Is(err, ErrInvalidSubmissionRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrModuleNotFound):
		return auditErrModuleNotFound
	case errors.Is(err, ErrModuleNotDynamic),
		errors.Is(err, ErrModuleMisconfigured):
		return auditErrModuleConfig
	case errors.Is(err, ErrModuleAlreadySolved):
		return auditErrAlreadySolved
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrRateLimiterUnavailable),
		errors.Is(err, ErrRNGFailure):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
