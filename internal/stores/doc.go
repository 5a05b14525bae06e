// Package stores provides the Redis-backed password-reset record store.
//
// # Design
//
// Records are versioned and binary encoded under pwreset:{sha256 digest} with a TTL
// covering the token lifetime plus a grace period. Redemption uses a WATCH/MULTI
// optimistic transaction with retry on contention, so a token is marked used at
// most once. Used records stay readable until the TTL lapses.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control for reset records. It
// does NOT generate tokens, throttle requests or touch credentials; those belong
// to internal/random.go, internal/limiters and internal/flows.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package.
//   - Store or log plaintext reset tokens.
package stores
