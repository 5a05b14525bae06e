package authcore

import (
	"context"
	"errors"

	internalaudit "github.com/sentinelgrid/authcore/internal/audit"
)

// AuditErrorCode is the stable error label written to [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrInvalidCredentials  AuditErrorCode = "invalid_credentials"
	auditErrAccountInactive     AuditErrorCode = "account_inactive"
	auditErrRateLimited         AuditErrorCode = "rate_limited"
	auditErrTokenReuse          AuditErrorCode = "token_reuse"
	auditErrTokenInvalid        AuditErrorCode = "token_invalid"
	auditErrTokenExpired        AuditErrorCode = "token_expired"
	auditErrTokenRevoked        AuditErrorCode = "token_revoked"
	auditErrUserNotFound        AuditErrorCode = "user_not_found"
	auditErrDuplicate           AuditErrorCode = "duplicate"
	auditErrPasswordPolicy      AuditErrorCode = "password_policy"
	auditErrInvalidEmail        AuditErrorCode = "invalid_email"
	auditErrResetInvalid        AuditErrorCode = "reset_token_invalid"
	auditErrResetExpired        AuditErrorCode = "reset_token_expired"
	auditErrResetUsed           AuditErrorCode = "reset_token_used"
	auditErrSessionInvalidation AuditErrorCode = "session_invalidation_failed"
	auditErrNotifierUnavailable AuditErrorCode = "notifier_unavailable"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

// resourceDetail is lifted out of details into AuditEvent.Resource.
const resourceDetail = "resource"

func (e *Engine) emitAudit(
	ctx context.Context,
	action string,
	success bool,
	userID string,
	err error,
	detailsBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var details map[string]string
	if detailsBuilder != nil {
		details = detailsBuilder()
	}
	var resource string
	if r, ok := details[resourceDetail]; ok {
		resource = r
		delete(details, resourceDetail)
	}

	now := e.now().UTC()
	event := AuditEvent{
		ID:        internalaudit.NewID(now),
		Timestamp: now,
		Action:    action,
		UserID:    userID,
		Resource:  resource,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		RequestID: requestIDFromContext(ctx),
		Success:   success,
		Details:   details,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountInactive):
		return auditErrAccountInactive
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrPasswordResetRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenReuseDetected):
		return auditErrTokenReuse
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenRevoked):
		return auditErrTokenRevoked
	case errors.Is(err, ErrTokenInvalid):
		return auditErrTokenInvalid
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrDuplicateEmail):
		return auditErrDuplicate
	case errors.Is(err, ErrWeakPassword):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrInvalidEmail):
		return auditErrInvalidEmail
	case errors.Is(err, ErrResetTokenInvalid):
		return auditErrResetInvalid
	case errors.Is(err, ErrResetTokenExpired):
		return auditErrResetExpired
	case errors.Is(err, ErrResetTokenUsed):
		return auditErrResetUsed
	case errors.Is(err, ErrSessionInvalidationFailed):
		return auditErrSessionInvalidation
	case errors.Is(err, ErrNotifierUnavailable):
		return auditErrNotifierUnavailable
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
