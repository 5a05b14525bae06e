package authcore

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	// The two cases are indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned when a deactivated account logs in, refreshes or authenticates.
	ErrAccountInactive = errors.New("account inactive")
	// ErrNoCredential is returned when a request carries no bearer token.
	ErrNoCredential = errors.New("no credential presented")
	// ErrTokenInvalid covers bad signatures, malformed tokens and wrong token types.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned for a correctly signed token at or after its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked is returned for a token whose jti is in the revocation registry.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenReuseDetected is returned when an already-rotated refresh token is presented.
	// Every session of the owning user has been revoked by the time it is returned.
	ErrTokenReuseDetected = errors.New("refresh token reuse detected")
	// ErrLoginRateLimited is returned once a client exceeds the login attempt budget.
	// Use [RetryAfter] to read the wait.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrForbidden is returned when the principal's role is below the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrDuplicateEmail is returned by registration for an email that already exists.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrWeakPassword is returned when a password fails the length policy.
	ErrWeakPassword = errors.New("password does not meet policy")
	// ErrInvalidEmail is returned for an email that does not parse as an address.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidRole is returned for a role outside viewer, analyst and admin.
	ErrInvalidRole = errors.New("invalid role")
	// ErrUserNotFound is returned by a [CredentialStore] when no user matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrResetTokenInvalid is returned for an unknown or malformed reset token.
	ErrResetTokenInvalid = errors.New("reset token invalid")
	// ErrResetTokenExpired is returned for a reset token presented at or after its expiry.
	ErrResetTokenExpired = errors.New("reset token expired")
	// ErrResetTokenUsed is returned for a reset token that was already redeemed.
	ErrResetTokenUsed = errors.New("reset token already used")
	// ErrPasswordResetRateLimited is returned internally when forgot-password is throttled.
	// The public response stays generic.
	ErrPasswordResetRateLimited = errors.New("password reset rate limited")
	// ErrStoreUnavailable is returned when the credential store or the ephemeral store
	// cannot answer. The operation's outcome is indeterminate, not negative.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotifierUnavailable is returned when the reset notifier fails or times out.
	ErrNotifierUnavailable = errors.New("notifier unavailable")
	// ErrAuditWriteFailed wraps audit sink failures passed to the failure hook.
	ErrAuditWriteFailed = errors.New("audit write failed")
	// ErrSessionInvalidationFailed is returned when a password change succeeded but
	// outstanding sessions could not be revoked.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	// ErrEngineNotReady is returned by methods of a nil or closed [Engine].
	ErrEngineNotReady = errors.New("engine not initialized")
)

// RateLimitError carries the wait before the next allowed attempt. It matches
// [ErrLoginRateLimited] under errors.Is.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrLoginRateLimited, e.RetryAfter)
}

// Is reports whether target is [ErrLoginRateLimited].
func (e *RateLimitError) Is(target error) bool {
	return target == ErrLoginRateLimited
}

// RetryAfter extracts the wait from a rate-limit error. ok is false for any
// other error.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

func storeUnavailable(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
