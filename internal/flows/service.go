package flows

import (
	"context"

	"github.com/sentinelgrid/authcore/permission"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Authenticate.DecodeAccess != nil && s.deps.Login.Users != nil
}

func (s Service) Register(ctx context.Context, req RegisterRequest) (UserRecord, error) {
	return RunRegister(ctx, req, s.deps.Register)
}

func (s Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	return RunLogin(ctx, email, password, s.deps.Login)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	return RunAuthenticate(ctx, accessToken, s.deps.Authenticate)
}

func (s Service) Logout(ctx context.Context, accessToken string) error {
	return RunLogout(ctx, accessToken, s.deps.Logout)
}

func (s Service) LogoutAll(ctx context.Context, userID string) (int, error) {
	return RunLogoutAll(ctx, userID, s.deps.Logout)
}

func (s Service) RequestPasswordReset(ctx context.Context, email string) error {
	return RunRequestPasswordReset(ctx, email, s.deps.PasswordReset)
}

func (s Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	return RunResetPassword(ctx, token, newPassword, s.deps.PasswordReset)
}

func (s Service) UpdateRole(ctx context.Context, userID string, role permission.Role) (UserRecord, error) {
	return RunUpdateRole(ctx, userID, role, s.deps.Account)
}

func (s Service) SetActive(ctx context.Context, userID string, active bool) (UserRecord, error) {
	return RunSetActive(ctx, userID, active, s.deps.Account)
}

func (s Service) ActiveSessions(ctx context.Context, userID string) ([]string, error) {
	return RunActiveSessions(ctx, userID, s.deps.Introspection)
}

func (s Service) Health(ctx context.Context) Health {
	return RunHealth(ctx, s.deps.Introspection)
}
