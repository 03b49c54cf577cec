package goFlag

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goFlag/internal/flagkey"
)

// DeriveFlag returns the dynamic flag of moduleID for userID, wrapped as
// flag{...}. It fails with [ErrModuleNotDynamic] for static modules.
func (e *Engine) DeriveFlag(ctx context.Context, userID, moduleID string) (string, error) {
	return e.Derive(ctx, userID, moduleID, PurposeFlag)
}

// CSRFPseudonym returns the per-user, per-module pseudonym derived under
// [PurposeCSRFPseudonym].
func (e *Engine) CSRFPseudonym(ctx context.Context, userID, moduleID string) (string, error) {
	return e.Derive(ctx, userID, moduleID, PurposeCSRFPseudonym)
}

// Derive computes HMAC-SHA256(serverKey, purpose || userKey || moduleKey)
// and encodes it as lower-case unpadded base32. Only [PurposeFlag] output is
// wrapped as flag{...}.
//
// The user key and the server key are created on first use. The result is
// deterministic for a fixed set of keys and is never stored.
func (e *Engine) Derive(ctx context.Context, userID, moduleID, purpose string) (string, error) {
	if e == nil || e.secrets == nil {
		return "", ErrEngineNotReady
	}
	if userID == "" || moduleID == "" || purpose == "" {
		return "", ErrInvalidSubmission
	}

	moduleKey, err := e.secrets.ModuleKey(ctx, moduleID)
	if err != nil {
		return "", e.storeError(ctx, "module_key", err)
	}
	out, err := e.deriveWithModuleKey(ctx, purpose, userID, moduleKey)
	if err != nil {
		return "", err
	}
	e.metricInc(MetricFlagDerived)
	return out, nil
}

func (e *Engine) deriveWithModuleKey(ctx context.Context, purpose, userID string, moduleKey []byte) (string, error) {
	userKey, err := e.secrets.UserKey(ctx, userID)
	if err != nil {
		return "", e.storeError(ctx, "user_key", err)
	}
	serverKey, err := e.secrets.ServerKey(ctx)
	if err != nil {
		return "", e.storeError(ctx, "server_key", err)
	}
	out, err := flagkey.Derive(purpose, userKey, moduleKey, serverKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCryptoFailure, err)
	}
	return out, nil
}

// UserKey returns the per-user key, creating it on first use. Concurrent
// first calls for the same user all observe the same key.
func (e *Engine) UserKey(ctx context.Context, userID string) ([]byte, error) {
	if e == nil || e.secrets == nil {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrInvalidSubmission
	}
	key, err := e.secrets.UserKey(ctx, userID)
	if err != nil {
		return nil, e.storeError(ctx, "user_key", err)
	}
	return key, nil
}

// RotateServerKey replaces the global server key. Every dynamic flag and
// pseudonym derived before the rotation stops matching.
func (e *Engine) RotateServerKey(ctx context.Context) error {
	if e == nil || e.secrets == nil {
		return ErrEngineNotReady
	}
	if _, err := e.secrets.RotateServerKey(ctx); err != nil {
		return e.storeError(ctx, "rotate_server_key", err)
	}
	e.metricInc(MetricServerKeyRotated)
	e.logger.WarnContext(ctx, "goFlag: server key rotated")
	e.emitAudit(ctx, auditEventServerKeyRotated, true, "", "", nil, nil)
	return nil
}

// ReloadServerKey drops the locally cached server key so the next
// derivation reads it from storage again. Call it on every instance after
// another instance rotated the key. Without [KeysConfig.CacheServerKey] it
// does nothing.
func (e *Engine) ReloadServerKey(ctx context.Context) error {
	if e == nil || e.secrets == nil {
		return ErrEngineNotReady
	}
	if e.secrets.DropCache() {
		e.logger.InfoContext(ctx, "goFlag: cached server key dropped")
	}
	return nil
}

// NewModuleKey returns fresh random key material for a [DynamicFlag].
func (e *Engine) NewModuleKey() ([]byte, error) {
	if e == nil || e.generate == nil {
		return nil, ErrEngineNotReady
	}
	key, err := e.generate(e.config.Keys.ModuleKeyLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRNGFailure, err)
	}
	return key, nil
}
