package authcore

import (
	"context"

	"github.com/sentinelgrid/authcore/permission"
)

// GetUser returns the public view of a stored account.
func (e *Engine) GetUser(ctx context.Context, userID string) (User, error) {
	if !e.ready() {
		return User{}, ErrEngineNotReady
	}
	ctx, cancel := context.WithTimeout(ctx, e.config.Store.OperationTimeout)
	defer cancel()

	u, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return User{}, e.settle(mapCredentialErr(err))
	}
	return publicUser(u), nil
}

// UpdateRole changes the stored role of userID. Access tokens already issued
// keep their role claim until they expire; the new role applies from the next
// login or refresh.
func (e *Engine) UpdateRole(ctx context.Context, userID string, role permission.Role) (User, error) {
	if !e.ready() {
		return User{}, ErrEngineNotReady
	}
	u, err := e.flow.UpdateRole(ctx, userID, role)
	if err != nil {
		return User{}, e.settle(err)
	}
	return publicUser(fromFlowUser(u)), nil
}

// Deactivate disables login for userID and revokes every outstanding session.
// When revocation fails the account stays deactivated and the error matches
// [ErrSessionInvalidationFailed].
func (e *Engine) Deactivate(ctx context.Context, userID string) (User, error) {
	return e.setActive(ctx, userID, false)
}

// Activate re-enables login for userID. Previously revoked sessions stay revoked.
func (e *Engine) Activate(ctx context.Context, userID string) (User, error) {
	return e.setActive(ctx, userID, true)
}

func (e *Engine) setActive(ctx context.Context, userID string, active bool) (User, error) {
	if !e.ready() {
		return User{}, ErrEngineNotReady
	}
	u, err := e.flow.SetActive(ctx, userID, active)
	if err != nil {
		if u.ID == "" {
			return User{}, e.settle(err)
		}
		return publicUser(fromFlowUser(u)), e.settle(err)
	}
	return publicUser(fromFlowUser(u)), nil
}
