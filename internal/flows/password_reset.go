package flows

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ResetRecord is the flow-local reset token record.
type ResetRecord struct {
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Used      bool
}

// ResetStore persists reset records by token digest. Redeem marks a record used
// exactly once and returns the host's invalid, expired or used sentinels.
type ResetStore interface {
	Save(ctx context.Context, digest string, record ResetRecord, retention time.Duration) error
	Redeem(ctx context.Context, digest string) (ResetRecord, error)
}

type PasswordResetMetrics struct {
	PasswordResetRequest        int
	PasswordResetRateLimited    int
	PasswordResetConfirmSuccess int
	PasswordResetConfirmFailure int
	NotifierFailure             int
	SessionInvalidated          int
}

type PasswordResetEvents struct {
	PasswordResetRequested string
	PasswordResetCompleted string
	PasswordResetFailed    string
}

type PasswordResetErrors struct {
	EngineNotReady            error
	RateLimited               error
	ResetTokenInvalid         error
	WeakPassword              error
	UserNotFound              error
	NotifierUnavailable       error
	SessionInvalidationFailed error
}

type PasswordResetDeps struct {
	TokenTTL      time.Duration
	GracePeriod   time.Duration
	NotifyTimeout time.Duration

	ClientIPFromContext func(context.Context) string
	Now                 func() time.Time
	// Delay pads the unknown-email path so it costs about as much as a real send.
	Delay func(context.Context)

	// CheckRequestLimiter returns Errors.RateLimited when throttled; other errors are outages.
	CheckRequestLimiter func(ctx context.Context, email, ip string) error

	Users    UserStore
	Sessions SessionRegistry
	Resets   ResetStore

	NewToken            func() (token, digest string, err error)
	TokenDigest         func(token string) (string, error)
	CheckPasswordPolicy func(string) error
	HashPassword        func(string) (string, error)
	Notify              func(ctx context.Context, email, token string) error

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics PasswordResetMetrics
	Events  PasswordResetEvents
	Errors  PasswordResetErrors
}

func normalizePasswordResetDeps(deps *PasswordResetDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noAudit
	}
	if deps.Warn == nil {
		deps.Warn = noWarn
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.Delay == nil {
		deps.Delay = func(context.Context) {}
	}
}

// RunRequestPasswordReset issues a reset token for an active account and hands it
// to the notifier. Unknown, malformed and inactive emails return nil after the
// same padding delay so callers cannot tell them apart.
func RunRequestPasswordReset(ctx context.Context, email string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)
	if deps.Users == nil || deps.Resets == nil || deps.NewToken == nil || deps.Notify == nil {
		return deps.Errors.EngineNotReady
	}

	email = NormalizeEmail(email)
	ip := deps.ClientIPFromContext(ctx)

	if deps.CheckRequestLimiter != nil {
		if err := deps.CheckRequestLimiter(ctx, email, ip); err != nil {
			if errors.Is(err, deps.Errors.RateLimited) {
				deps.MetricInc(deps.Metrics.PasswordResetRateLimited)
				deps.EmitAudit(ctx, deps.Events.PasswordResetRequested, false, "", err, func() map[string]string {
					return map[string]string{"email": email, "reason": "rate_limited"}
				})
			}
			return err
		}
	}

	if !ValidEmail(email) {
		deps.Delay(ctx)
		return nil
	}

	user, err := deps.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, deps.Errors.UserNotFound) {
			return err
		}
		deps.Delay(ctx)
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequested, false, "", nil, func() map[string]string {
			return map[string]string{"email": email, "reason": "unknown_email"}
		})
		return nil
	}
	if !user.Active {
		deps.Delay(ctx)
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequested, false, user.ID, nil, func() map[string]string {
			return map[string]string{"reason": "inactive"}
		})
		return nil
	}

	token, digest, err := deps.NewToken()
	if err != nil {
		return err
	}
	now := deps.Now()
	record := ResetRecord{
		UserID:    user.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(deps.TokenTTL),
	}
	if err := deps.Resets.Save(ctx, digest, record, deps.TokenTTL+deps.GracePeriod); err != nil {
		return err
	}
	deps.MetricInc(deps.Metrics.PasswordResetRequest)

	notifyCtx := ctx
	if deps.NotifyTimeout > 0 {
		var cancel context.CancelFunc
		notifyCtx, cancel = context.WithTimeout(ctx, deps.NotifyTimeout)
		defer cancel()
	}
	if err := deps.Notify(notifyCtx, user.Email, token); err != nil {
		deps.MetricInc(deps.Metrics.NotifierFailure)
		deps.Warn("authcore: reset notifier failed for user %s: %v", user.ID, err)
		notifyErr := fmt.Errorf("%w: %v", deps.Errors.NotifierUnavailable, err)
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequested, false, user.ID, notifyErr, func() map[string]string {
			return map[string]string{"reason": "notifier_failed"}
		})
		return notifyErr
	}

	deps.EmitAudit(ctx, deps.Events.PasswordResetRequested, true, user.ID, nil, nil)
	return nil
}

// RunResetPassword redeems a reset token, stores the new password hash and
// revokes every session of the user, in that order.
//
// The token is claimed before the password is written so two concurrent
// redemptions cannot both succeed. When revocation fails after the password
// changed, the returned error joins Errors.SessionInvalidationFailed with the cause.
func RunResetPassword(ctx context.Context, token, newPassword string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)
	if deps.Users == nil || deps.Sessions == nil || deps.Resets == nil ||
		deps.TokenDigest == nil || deps.HashPassword == nil || deps.CheckPasswordPolicy == nil {
		return deps.Errors.EngineNotReady
	}

	fail := func(userID string, err error) error {
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetFailed, false, userID, err, nil)
		return err
	}

	digest, err := deps.TokenDigest(token)
	if err != nil {
		return fail("", deps.Errors.ResetTokenInvalid)
	}
	if err := deps.CheckPasswordPolicy(newPassword); err != nil {
		return fail("", errors.Join(deps.Errors.WeakPassword, err))
	}

	record, err := deps.Resets.Redeem(ctx, digest)
	if err != nil {
		return fail("", err)
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return fail(record.UserID, err)
	}
	if err := deps.Users.UpdatePasswordHash(ctx, record.UserID, hash); err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			return fail(record.UserID, deps.Errors.ResetTokenInvalid)
		}
		deps.Warn("authcore: reset token for user %s consumed but password not stored: %v", record.UserID, err)
		return fail(record.UserID, err)
	}

	n, err := deps.Sessions.RevokeAllForUser(ctx, record.UserID)
	if err != nil {
		deps.Warn("authcore: password reset stored for user %s but sessions were not revoked: %v", record.UserID, err)
		joined := errors.Join(deps.Errors.SessionInvalidationFailed, err)
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetCompleted, false, record.UserID, joined, func() map[string]string {
			return map[string]string{"password_updated": "true"}
		})
		return joined
	}
	for i := 0; i < n; i++ {
		deps.MetricInc(deps.Metrics.SessionInvalidated)
	}

	deps.MetricInc(deps.Metrics.PasswordResetConfirmSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordResetCompleted, true, record.UserID, nil, func() map[string]string {
		return map[string]string{"sessions_revoked": fmt.Sprint(n)}
	})
	return nil
}
