package flows

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/sentinelgrid/authcore/jwt"
)

// LogoutMetrics carries metric IDs needed by logout flows.
type LogoutMetrics struct {
	Logout             int
	LogoutAll          int
	SessionInvalidated int
}

// LogoutEvents carries audit event names used by logout flows.
type LogoutEvents struct {
	Logout    string
	LogoutAll string
}

// LogoutErrors carries host-level sentinel errors used by logout flows.
type LogoutErrors struct {
	EngineNotReady  error
	NoCredential    error
	TokenRevoked    error
	SessionNotFound error
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Now          func() time.Time
	DecodeAccess func(string) (*jwt.Claims, error)
	Sessions     SessionRegistry

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics LogoutMetrics
	Events  LogoutEvents
	Errors  LogoutErrors
}

func normalizeLogoutDeps(deps *LogoutDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noAudit
	}
}

// RunLogout ends the session behind an access token: the access jti and the
// session's refresh jti are revoked until their natural expiry and the session
// is deleted. A second call with the same token fails with Errors.TokenRevoked.
func RunLogout(ctx context.Context, accessToken string, deps LogoutDeps) error {
	normalizeLogoutDeps(&deps)
	if deps.DecodeAccess == nil || deps.Sessions == nil {
		return deps.Errors.EngineNotReady
	}
	if accessToken == "" {
		return deps.Errors.NoCredential
	}

	claims, err := deps.DecodeAccess(accessToken)
	if err != nil {
		return err
	}
	revoked, err := deps.Sessions.IsRevoked(ctx, claims.ID)
	if err != nil {
		return err
	}
	if revoked {
		return deps.Errors.TokenRevoked
	}

	now := deps.Now()
	if claims.SessionID != "" {
		sess, err := deps.Sessions.GetSession(ctx, claims.SessionID)
		switch {
		case err == nil:
			if err := deps.Sessions.Revoke(ctx, claims.SessionID, remaining(time.Unix(sess.ExpiresAt, 0), now)); err != nil {
				return err
			}
			if err := deps.Sessions.DeleteSession(ctx, claims.SessionID); err != nil {
				return err
			}
		case errors.Is(err, deps.Errors.SessionNotFound):
			// Already rotated away or expired; the access token is all that is left.
		default:
			return err
		}
	}

	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	if err := deps.Sessions.Revoke(ctx, claims.ID, remaining(exp, now)); err != nil {
		return err
	}

	deps.MetricInc(deps.Metrics.Logout)
	deps.EmitAudit(ctx, deps.Events.Logout, true, claims.Subject, nil, func() map[string]string {
		return map[string]string{"session_id": claims.SessionID}
	})
	return nil
}

// RunLogoutAll revokes every session of userID and returns how many were live.
func RunLogoutAll(ctx context.Context, userID string, deps LogoutDeps) (int, error) {
	normalizeLogoutDeps(&deps)
	if deps.Sessions == nil {
		return 0, deps.Errors.EngineNotReady
	}

	n, err := deps.Sessions.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		deps.MetricInc(deps.Metrics.SessionInvalidated)
	}
	deps.MetricInc(deps.Metrics.LogoutAll)
	deps.EmitAudit(ctx, deps.Events.LogoutAll, true, userID, nil, func() map[string]string {
		return map[string]string{"sessions_revoked": strconv.Itoa(n)}
	})
	return n, nil
}
