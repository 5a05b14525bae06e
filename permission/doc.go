// Package permission defines the closed role set and the total order used by
// authcore authorization checks.
//
// # Hierarchy
//
//	viewer(1) < analyst(2) < admin(3)
//
// A principal holding role R satisfies a requirement Q iff Level(R) >= Level(Q).
// There are no per-resource ACLs and no dynamic permission sets; the whole policy
// is a single integer comparison.
//
// # Architecture boundaries
//
// This package is a pure in-memory value type with no I/O. The jwt, session and
// root packages carry [Role] values; transport packages only call [Allows].
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import authcore, jwt, or session.
//   - Accept roles outside the three declared constants.
package permission
