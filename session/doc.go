// Package session provides the Redis-backed session and revocation registry.
//
// # Key scheme
//
//	session:{refresh_jti}      binary session record, TTL = refresh lifetime
//	revoked:{jti}              expiry unix seconds, TTL = remaining token lifetime
//	usersessions:{user_id}     HASH refresh_jti -> "access_jti:access_exp"
//
// Every mutation is either a single command, a MULTI/EXEC pipeline or a Lua
// script, so concurrent request handlers never need in-process locks. Rotation
// and mass revocation run as scripts and are therefore serialized against each
// other by Redis.
//
// # Architecture boundaries
//
// This package owns the [Registry] (Redis operations) and the [Session] model. It
// does NOT interpret JWT tokens or decide what a missing session means; reuse
// detection is the caller's policy.
//
// # What this package must NOT do
//
//   - Import authcore, jwt, or permission (no upward imports).
//   - Perform application-level authorization decisions.
//   - Store token strings; only identifiers and timestamps.
package session
