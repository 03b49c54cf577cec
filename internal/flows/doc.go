// Package flows contains the pure-function orchestrators behind every flag
// submission operation on the root Engine.
//
// Each flow receives a Deps struct of function values, metric ids, audit event
// names and the error values it may return. The root package builds these once
// at Build time. Flows never import goFlag.
//
// # Ordering
//
// RunVerify executes in a fixed order: input validation, submission-bucket
// admission, module lookup and comparison, invalid-bucket charge on failure.
// RunSubmit runs RunVerify and then a single atomic ledger insert.
//
// # What this package must NOT do
//
//   - Touch Redis, SQL or any backend directly.
//   - Store or log flag values beyond what the ledger records.
package flows
