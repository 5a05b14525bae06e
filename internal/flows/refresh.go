package flows

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/sentinelgrid/authcore/jwt"
)

// RefreshMetrics carries metric IDs needed by the refresh flow.
type RefreshMetrics struct {
	RefreshSuccess       int
	RefreshFailure       int
	RefreshReuseDetected int
	SessionInvalidated   int
}

// RefreshEvents carries audit event names used by the refresh flow.
type RefreshEvents struct {
	TokenRefresh       string
	TokenReuseDetected string
}

// RefreshErrors carries host-level sentinel errors used by the refresh flow.
type RefreshErrors struct {
	EngineNotReady     error
	TokenInvalid       error
	TokenRevoked       error
	TokenReuseDetected error
	AccountInactive    error
	UserNotFound       error
	SessionNotFound    error
}

// RefreshDeps captures refresh rotation dependencies.
type RefreshDeps struct {
	Now func() time.Time

	// DecodeRefresh returns host token errors (invalid or expired).
	DecodeRefresh func(string) (*jwt.Claims, error)
	Users         UserStore
	Sessions      SessionRegistry
	Minter        Minter

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics RefreshMetrics
	Events  RefreshEvents
	Errors  RefreshErrors
}

func normalizeRefreshDeps(deps *RefreshDeps) {
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
	if deps.Minter.Now == nil {
		deps.Minter.Now = deps.Now
	}
}

// RunRefresh validates a refresh token, rotates its session and returns a new pair.
//
// A correctly signed, unexpired, unrevoked refresh token whose session is gone
// was already rotated: every session of the user is revoked and
// Errors.TokenReuseDetected is returned.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) (*LoginResult, error) {
	normalizeRefreshDeps(&deps)
	if deps.DecodeRefresh == nil || deps.Users == nil || deps.Sessions == nil || !deps.Minter.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	fail := func(err error) (*LoginResult, error) {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		return nil, err
	}

	claims, err := deps.DecodeRefresh(refreshToken)
	if err != nil {
		return fail(err)
	}
	userID, jti := claims.Subject, claims.ID

	revoked, err := deps.Sessions.IsRevoked(ctx, jti)
	if err != nil {
		return fail(err)
	}
	if revoked {
		return fail(deps.Errors.TokenRevoked)
	}

	old, err := deps.Sessions.GetSession(ctx, jti)
	if err != nil {
		if errors.Is(err, deps.Errors.SessionNotFound) {
			return fail(reuseDetected(ctx, userID, jti, deps))
		}
		return fail(err)
	}
	if old.UserID != userID {
		return fail(deps.Errors.TokenInvalid)
	}

	user, err := deps.Users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			if delErr := deps.Sessions.DeleteSession(ctx, jti); delErr != nil {
				deps.Warn("authcore: orphan session cleanup failed: %v", delErr)
			}
			return fail(deps.Errors.TokenInvalid)
		}
		return fail(err)
	}
	if !user.Active {
		if delErr := deps.Sessions.DeleteSession(ctx, jti); delErr != nil {
			deps.Warn("authcore: inactive user session cleanup failed for user %s: %v", user.ID, delErr)
		}
		return fail(deps.Errors.AccountInactive)
	}

	tokens, next, ttl, err := deps.Minter.Mint(user)
	if err != nil {
		return fail(err)
	}

	err = deps.Sessions.Rotate(ctx, jti, next, ttl, old.AccessJTI, old.AccessExpiresAt)
	if err != nil {
		if errors.Is(err, deps.Errors.SessionNotFound) {
			// A concurrent refresh of the same token rotated first.
			return fail(reuseDetected(ctx, userID, jti, deps))
		}
		return fail(err)
	}

	deps.MetricInc(deps.Metrics.RefreshSuccess)
	deps.EmitAudit(ctx, deps.Events.TokenRefresh, true, user.ID, nil, func() map[string]string {
		return map[string]string{
			"previous_session_id": jti,
			"session_id":          next.RefreshJTI,
		}
	})
	return &LoginResult{Tokens: tokens, User: user}, nil
}

func reuseDetected(ctx context.Context, userID, jti string, deps RefreshDeps) error {
	deps.MetricInc(deps.Metrics.RefreshReuseDetected)

	n, err := deps.Sessions.RevokeAllForUser(ctx, userID)
	for i := 0; i < n; i++ {
		deps.MetricInc(deps.Metrics.SessionInvalidated)
	}
	deps.EmitAudit(ctx, deps.Events.TokenReuseDetected, false, userID, deps.Errors.TokenReuseDetected, func() map[string]string {
		return map[string]string{
			"session_id":       jti,
			"sessions_revoked": strconv.Itoa(n),
		}
	})
	if err != nil {
		deps.Warn("authcore: mass revocation after refresh reuse failed for user %s: %v", userID, err)
		return errors.Join(deps.Errors.TokenReuseDetected, err)
	}
	return deps.Errors.TokenReuseDetected
}
