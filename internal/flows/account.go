package flows

import (
	"context"
	"errors"
	"strconv"

	"github.com/sentinelgrid/authcore/permission"
)

// AccountMetrics carries metric IDs needed by account administration flows.
type AccountMetrics struct {
	RoleChanged        int
	AccountDeactivated int
	SessionInvalidated int
}

// AccountEvents carries audit action names for account administration.
type AccountEvents struct {
	RoleChanged        string
	AccountDeactivated string
}

// AccountErrors carries host-level sentinel errors used by account flows.
type AccountErrors struct {
	EngineNotReady            error
	InvalidRole               error
	UserNotFound              error
	SessionInvalidationFailed error
}

// AccountDeps captures role and activation management dependencies.
type AccountDeps struct {
	Users    UserStore
	Sessions SessionRegistry

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics AccountMetrics
	Events  AccountEvents
	Errors  AccountErrors
}

func normalizeAccountDeps(deps *AccountDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = noMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noAudit
	}
	if deps.Warn == nil {
		deps.Warn = noWarn
	}
}

// RunUpdateRole changes the stored role of userID. Tokens already issued keep
// the role they were signed with until they expire or are refreshed.
func RunUpdateRole(ctx context.Context, userID string, role permission.Role, deps AccountDeps) (UserRecord, error) {
	normalizeAccountDeps(&deps)
	if deps.Users == nil {
		return UserRecord{}, deps.Errors.EngineNotReady
	}
	if !role.Valid() {
		return UserRecord{}, deps.Errors.InvalidRole
	}

	before, err := deps.Users.GetUserByID(ctx, userID)
	if err != nil {
		return UserRecord{}, err
	}
	if before.Role == role {
		return before, nil
	}

	after, err := deps.Users.UpdateRole(ctx, userID, role)
	if err != nil {
		return UserRecord{}, err
	}

	deps.MetricInc(deps.Metrics.RoleChanged)
	deps.EmitAudit(ctx, deps.Events.RoleChanged, true, userID, nil, func() map[string]string {
		return map[string]string{
			"resource": "user:" + userID,
			"from":     before.Role.String(),
			"to":       after.Role.String(),
		}
	})
	return after, nil
}

// RunSetActive toggles account activation. Deactivation also revokes every
// session of the user; reactivation does not restore them.
func RunSetActive(ctx context.Context, userID string, active bool, deps AccountDeps) (UserRecord, error) {
	normalizeAccountDeps(&deps)
	if deps.Users == nil || deps.Sessions == nil {
		return UserRecord{}, deps.Errors.EngineNotReady
	}

	user, err := deps.Users.SetActive(ctx, userID, active)
	if err != nil {
		return UserRecord{}, err
	}
	if active {
		return user, nil
	}

	deps.MetricInc(deps.Metrics.AccountDeactivated)
	n, err := deps.Sessions.RevokeAllForUser(ctx, userID)
	if err != nil {
		deps.Warn("authcore: user %s deactivated but sessions were not revoked: %v", userID, err)
		joined := errors.Join(deps.Errors.SessionInvalidationFailed, err)
		deps.EmitAudit(ctx, deps.Events.AccountDeactivated, false, userID, joined, func() map[string]string {
			return map[string]string{"resource": "user:" + userID}
		})
		return user, joined
	}
	for i := 0; i < n; i++ {
		deps.MetricInc(deps.Metrics.SessionInvalidated)
	}
	deps.EmitAudit(ctx, deps.Events.AccountDeactivated, true, userID, nil, func() map[string]string {
		return map[string]string{
			"resource":         "user:" + userID,
			"sessions_revoked": strconv.Itoa(n),
		}
	})
	return user, nil
}
