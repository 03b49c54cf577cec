package goFlag

import "errors"

var (
	// ErrInvalidSubmission is an exported constant or variable used by the flag engine.
	ErrInvalidSubmission = errors.New("invalid flag submission")
	// ErrSubmissionRateLimited is an exported constant or variable used by the flag engine.
	ErrSubmissionRateLimited = errors.New("flag submission rate limited")
	// ErrInvalidSubmissionRateLimited is an exported constant or variable used by the flag engine.
	ErrInvalidSubmissionRateLimited = errors.New("invalid flag submission rate limited")
	// ErrModuleNotFound is an exported constant or variable used by the flag engine.
	ErrModuleNotFound = errors.New("module not found")
	// ErrModuleNotDynamic is an exported constant or variable used by the flag engine.
	ErrModuleNotDynamic = errors.New("module does not use a dynamic flag")
	// ErrModuleMisconfigured is an exported constant or variable used by the flag engine.
	ErrModuleMisconfigured = errors.New("module misconfigured")
	// ErrModuleAlreadySolved is an exported constant or variable used by the flag engine.
	ErrModuleAlreadySolved = errors.New("module already solved")
	// ErrRNGFailure is an exported constant or variable used by the flag engine.
	ErrRNGFailure = errors.New("random source failure")
	// ErrCryptoFailure is an exported constant or variable used by the flag engine.
	ErrCryptoFailure = errors.New("flag derivation failure")
	// ErrStoreUnavailable is an exported constant or variable used by the flag engine.
	ErrStoreUnavailable = errors.New("store backend unavailable")
	// ErrRateLimiterUnavailable is an exported constant or variable used by the flag engine.
	ErrRateLimiterUnavailable = errors.New("rate limiter backend unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the flag engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
