package authcore

import "context"

// RequestPasswordReset issues a single-use reset token for email and hands it
// to the [ResetNotifier].
//
// The result does not reveal whether the account exists: unknown and inactive
// emails return nil after a short random delay. Callers should answer
// [ErrNotifierUnavailable] with the same generic response as success; only
// [ErrPasswordResetRateLimited] and [ErrStoreUnavailable] warrant a distinct reply.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return e.settle(e.flow.RequestPasswordReset(ctx, email))
}

// ResetPassword redeems token and sets newPassword. The token is consumed before
// the password is written; a second redemption fails with [ErrResetTokenUsed]
// and one at or after expiry with [ErrResetTokenExpired]. Every session of the
// user is revoked on success.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return e.settle(e.flow.ResetPassword(ctx, token, newPassword))
}
