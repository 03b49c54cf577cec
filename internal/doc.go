// Package internal contains helper utilities that are intentionally private to goFlag,
// including secure random key generation.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flagkey: HMAC flag derivation, encoding and comparison
//   - flows: pure-function flow orchestrators for verify and submit
//   - limiters: submission and invalid-submission limiters
//   - metrics: lock-free counters and the submit latency histogram
//   - rate: token bucket primitives (in-memory and Redis-backed)
//   - secrets: user, module and server key access with get-or-create
//   - security: static security posture report
//   - stores: key-value and ledger backends (memory, Redis, Postgres)
//
// # What this package must NOT do
//
//   - Export types that appear in the public goFlag API.
//   - Be imported by any package outside the goFlag module.
package internal
