// Package security builds the static security posture report of a flag
// engine from its resolved configuration.
//
// # What this package must NOT do
//
//   - Read keys, submissions or any runtime state. The report is derived
//     from configuration only.
package security
