// Package postgres implements [authcore.CredentialStore] and an append-only
// [authcore.AuditSink] on PostgreSQL through the pgx database/sql driver.
//
// Schema changes ship as embedded migrations applied with [Migrate].
//
// # Architecture boundaries
//
// The store never hashes or verifies passwords, and never sees tokens. Missing
// rows map to [authcore.ErrUserNotFound]; a unique violation on the email index
// maps to [authcore.ErrDuplicateEmail]. Every other driver error is returned
// as-is and the engine treats it as an outage.
package postgres
