// Package rate provides the Redis-backed fixed-window counter used to throttle
// login attempts.
//
// # Window semantics
//
// Windows are aligned to floor(now / window). Each attempt runs INCR and, on the
// first hit, PEXPIRE in one Lua script, so a counter can never be left without a
// TTL. Keys have the shape:
//
//	ratelimit:{action}:{identifier}:{window_index}
//
// # What this package must NOT do
//
//   - Decide what to do when a request is limited (the engine maps that to errors and audit).
//   - Be imported outside the authcore module.
package rate
