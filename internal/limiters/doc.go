// Package limiters provides domain-specific rate limiters built on top of the
// internal/rate primitives.
//
// # Limiters
//
//   - [PasswordResetLimiter]: per-email and per-IP throttle for forgot-password requests.
//
// All limiters are nil-safe: calling any method on a nil receiver returns nil.
//
// # Architecture boundaries
//
// Each limiter owns its own action namespace and error types. Policy thresholds
// come from Config structs supplied at construction time.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting; flow functions decide consequences.
package limiters
