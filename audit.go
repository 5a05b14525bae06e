package authcore

import (
	"io"

	internalaudit "github.com/sentinelgrid/authcore/internal/audit"
)

// Audit actions recorded by the Engine.
const (
	AuditRegister               = "REGISTER"
	AuditLogin                  = "LOGIN"
	AuditLoginFailed            = "LOGIN_FAILED"
	AuditLoginRateLimited       = "LOGIN_RATE_LIMITED"
	AuditLogout                 = "LOGOUT"
	AuditLogoutAll              = "LOGOUT_ALL"
	AuditTokenRefresh           = "TOKEN_REFRESH"
	AuditTokenReuseDetected     = "TOKEN_REUSE_DETECTED"
	AuditPasswordResetRequested = "PASSWORD_RESET_REQUESTED"
	AuditPasswordResetCompleted = "PASSWORD_RESET_COMPLETED"
	AuditPasswordResetFailed    = "PASSWORD_RESET_FAILED"
	AuditRoleChanged            = "ROLE_CHANGED"
	AuditAccountDeactivated     = "ACCOUNT_DEACTIVATED"
)

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
// A returned error is reported as [ErrAuditWriteFailed]; it never fails the
// operation that produced the event.
type AuditSink = internalaudit.Sink

// AuditSinkFunc adapts a function to [AuditSink].
type AuditSinkFunc = internalaudit.SinkFunc

// MultiSink fans events out to several sinks.
type MultiSink = internalaudit.MultiSink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes newline-delimited JSON events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
