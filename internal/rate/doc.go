// Package rate provides the token-bucket primitives behind flag submission
// throttling.
//
// # Bucket semantics
//
// Each subject owns one bucket holding up to Capacity tokens. A token is
// returned every RefillEvery. TryConsume never blocks or queues: it reports
// whether the requested cost was available and, if so, removes it. Consumed
// tokens are never refunded.
//
// Two backends exist:
//   - [MemoryLimiter] keeps golang.org/x/time/rate limiters in a sync.Map.
//     Bucket creation uses LoadOrStore so racing first requests share one
//     bucket. State is lost on restart.
//   - [RedisLimiter] keeps {tokens, ts} in a Redis hash and refills/consumes
//     in a single Lua script, so several engine instances share buckets.
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters).
//   - Be imported outside the goFlag module.
package rate
