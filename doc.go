// Package goFlag provides the flag derivation, verification, rate limiting and
// submission ledger engine of a capture-the-flag training platform.
//
// Dynamic flags are never stored. They are recomputed on demand as
// HMAC-SHA256(serverKey, purpose || userKey || moduleKey), encoded as
// lower-case unpadded base32 and wrapped as flag{...}. Static flags live on
// the module definition and are compared after trimming and case folding.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goFlag is the public surface. It exposes [Engine], [Builder], [Config], the
// [Module] and [Submission] value types and the sentinel errors. Key storage,
// token buckets, the submission ledger, flow orchestration and audit dispatch
// live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Persist a derived dynamic flag anywhere.
//   - Compare flags before the submission bucket admitted the attempt.
//   - Decide "already solved" outside the ledger's atomic insert.
//   - Expose Redis clients, SQL handles or key material other than through
//     [Engine.UserKey] and [Engine.NewModuleKey].
package goFlag
