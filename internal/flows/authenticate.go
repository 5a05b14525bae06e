package flows

import (
	"context"
	"errors"
	"time"

	"github.com/sentinelgrid/authcore/jwt"
	"github.com/sentinelgrid/authcore/permission"
)

// Principal is the flow-local authenticated identity.
type Principal struct {
	User      UserRecord
	Role      permission.Role
	TokenID   string
	SessionID string
	ExpiresAt time.Time
}

// AuthenticateMetrics carries metric IDs needed by the authenticate flow.
type AuthenticateMetrics struct {
	AuthenticateSuccess int
	AuthenticateFailure int
}

// AuthenticateErrors carries host-level sentinel errors used by the authenticate flow.
type AuthenticateErrors struct {
	EngineNotReady  error
	NoCredential    error
	TokenInvalid    error
	TokenRevoked    error
	AccountInactive error
	UserNotFound    error
}

// AuthenticateDeps captures authentication gate dependencies.
type AuthenticateDeps struct {
	DecodeAccess func(string) (*jwt.Claims, error)
	Users        UserStore
	Sessions     SessionRegistry

	MetricInc func(int)

	Metrics AuthenticateMetrics
	Errors  AuthenticateErrors
}

// RunAuthenticate resolves a bearer token to a principal. The order is fixed:
// decode (signature, then expiry), revocation, user lookup, active flag. A forged
// or expired token never reaches a store.
func RunAuthenticate(ctx context.Context, token string, deps AuthenticateDeps) (*Principal, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = noMetric
	}
	if deps.DecodeAccess == nil || deps.Users == nil || deps.Sessions == nil {
		return nil, deps.Errors.EngineNotReady
	}

	p, err := authenticate(ctx, token, deps)
	if err != nil {
		deps.MetricInc(deps.Metrics.AuthenticateFailure)
		return nil, err
	}
	deps.MetricInc(deps.Metrics.AuthenticateSuccess)
	return p, nil
}

func authenticate(ctx context.Context, token string, deps AuthenticateDeps) (*Principal, error) {
	if token == "" {
		return nil, deps.Errors.NoCredential
	}

	claims, err := deps.DecodeAccess(token)
	if err != nil {
		return nil, err
	}
	role, err := permission.ParseRole(claims.Role)
	if err != nil {
		return nil, deps.Errors.TokenInvalid
	}

	revoked, err := deps.Sessions.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, deps.Errors.TokenRevoked
	}

	user, err := deps.Users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			return nil, deps.Errors.TokenInvalid
		}
		return nil, err
	}
	if !user.Active {
		return nil, deps.Errors.AccountInactive
	}

	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return &Principal{
		User:      user,
		Role:      role,
		TokenID:   claims.ID,
		SessionID: claims.SessionID,
		ExpiresAt: exp,
	}, nil
}
