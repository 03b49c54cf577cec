// Package stores provides the persistence contracts and backends behind the
// secret store and the submission ledger.
//
// # Contracts
//
//   - [KeyValue] holds secret key material. Get distinguishes "never created"
//     ([ErrKeyNotFound]) from an empty value. SetIfAbsent is a single-winner
//     write: every concurrent caller gets back the value that was stored first.
//   - [Ledger] is the append-only submission log. Insert of any row fails
//     with [ErrAlreadySolved] when a valid row already exists for the same
//     (user, module), and in that case records nothing. The check and the
//     write are one atomic step in every backend.
//
// # Backends
//
//   - [MemoryStore]: mutex-guarded maps, for tests and single-process demos.
//   - [RedisStore]: SETNX for keys, a Lua script for the ledger insert.
//   - pgstore: PostgreSQL; a partial unique index enforces one valid solve.
//
// # What this package must NOT do
//
//   - Import goFlag or any sibling internal package.
//   - Log or expose key material.
//   - Derive or compare flags. Those decisions belong to internal/flows.
package stores
