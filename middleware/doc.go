// Package middleware exposes HTTP middleware adapters for bearer authentication
// and role requirements built on top of authcore.Engine.
//
// # Guards
//
//   - [Guard] authenticates the Authorization: Bearer header and injects the
//     resolved [authcore.Principal] into the request context.
//   - [RequireRole] rejects principals below a minimum role with 403.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT implement
// authentication logic itself; all decisions are delegated to
// Engine.Authenticate and Engine.Authorize.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Put error details in responses beyond the status class.
package middleware
