// Package limiters provides the two flag-submission throttles built on top of
// the internal/rate primitives.
//
// # Limiters
//
//   - Submission limiter: spends one token for every submission attempt,
//     valid or not, before the flag is compared.
//   - Invalid-submission limiter: spends one token only for wrong flags (or
//     unknown modules). Exhaustion replaces the "wrong flag" answer with a
//     throttling error.
//
// All limiters are nil-safe: calling Enforce on a nil receiver returns nil.
//
// # Architecture boundaries
//
// Each limiter owns its own bucket namespace and error types. Capacities
// come from Config structs supplied at construction time.
//
// # What this package must NOT do
//
//   - Import goFlag or any sibling internal package except internal/rate.
//   - Refund tokens.
package limiters
