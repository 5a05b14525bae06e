// Package internal holds helpers private to authcore, currently secure random
// identifiers and reset tokens.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - envconfig: environment and .env loading for the server binary
//   - flows: flow orchestrators behind every Engine operation
//   - limiters: the password-reset request limiter
//   - rate: Redis fixed-window counters
//   - stores: the Redis password-reset token store
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
package internal
