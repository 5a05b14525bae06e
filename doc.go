// Package authcore is the identity, session and access-control core of the
// SentinelGrid conflict-monitoring platform. It issues HS256 access and refresh
// tokens, keeps sessions and revocations in Redis, rate-limits logins per client
// IP, runs the single-use password-reset flow and enforces the
// viewer < analyst < admin role hierarchy.
//
// Engine methods are safe to call from multiple goroutines after initialization
// through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config], the
// [CredentialStore] and [ResetNotifier] ports and value types ([User],
// [Principal], [LoginResult], [MetricsSnapshot]). Flow orchestration, reset-token
// storage, rate limiting and audit dispatch live under internal/ and are never
// exported. Durable user storage is supplied by the host; store/postgres and
// store/memory ship ready-made implementations.
//
// # Failure model
//
// Every store round trip is bounded by [StoreConfig.OperationTimeout]. When Redis
// or the credential store cannot answer, the operation fails closed with an
// error matching [ErrStoreUnavailable]; no token is accepted and no session is
// issued on an indeterminate answer.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Log passwords, hashes, raw tokens or reset tokens.
//   - Import any sub-package that re-imports authcore (no import cycles).
package authcore
