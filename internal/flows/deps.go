package flows

import (
	"context"
	"strings"
	"time"

	"github.com/sentinelgrid/authcore/jwt"
	"github.com/sentinelgrid/authcore/permission"
	"github.com/sentinelgrid/authcore/session"
)

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Register      RegisterDeps
	Login         LoginDeps
	Refresh       RefreshDeps
	Authenticate  AuthenticateDeps
	Logout        LogoutDeps
	PasswordReset PasswordResetDeps
	Account       AccountDeps
	Introspection IntrospectionDeps
}

// UserRecord is the flow-local account model.
type UserRecord struct {
	ID           string
	Email        string
	PasswordHash string
	Role         permission.Role
	Active       bool
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// UserStore is the credential-store view flows depend on. Implementations
// return the host's user-not-found and duplicate sentinels.
type UserStore interface {
	CreateUser(ctx context.Context, user UserRecord) (UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
	UpdateRole(ctx context.Context, userID string, role permission.Role) (UserRecord, error)
	SetActive(ctx context.Context, userID string, active bool) (UserRecord, error)
	RecordLogin(ctx context.Context, userID string, at time.Time) error
	Ping(ctx context.Context) error
}

// SessionRegistry is the session and revocation view flows depend on.
// [session.Registry] satisfies it; the Engine wraps it to add timeouts.
type SessionRegistry interface {
	CreateSession(ctx context.Context, s *session.Session, ttl time.Duration) error
	GetSession(ctx context.Context, refreshJTI string) (*session.Session, error)
	DeleteSession(ctx context.Context, refreshJTI string) error
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Rotate(ctx context.Context, oldRefreshJTI string, next *session.Session, ttl time.Duration, previousAccessJTI string, previousAccessExp int64) error
	RevokeAllForUser(ctx context.Context, userID string) (int, error)
	ActiveSessionIDs(ctx context.Context, userID string) ([]string, error)
	Ping(ctx context.Context) (time.Duration, error)
}

// AuditFunc records one audit event. details may be nil and is only called when
// auditing is enabled.
type AuditFunc func(ctx context.Context, action string, success bool, userID string, err error, details func() map[string]string)

// TokenPair is a freshly minted access and refresh token for one session.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessJTI        string
	RefreshJTI       string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Minter issues token pairs and the session records that back them.
type Minter struct {
	IssueAccessToken  func(userID, role, sessionID string) (jwt.Issued, error)
	IssueRefreshToken func(userID string) (jwt.Issued, error)
	ExpiryGrace       time.Duration
	Now               func() time.Time
}

// Mint signs a refresh token, then an access token bound to it, and returns the
// session record keyed by the refresh jti together with its TTL.
func (m Minter) Mint(user UserRecord) (TokenPair, *session.Session, time.Duration, error) {
	refresh, err := m.IssueRefreshToken(user.ID)
	if err != nil {
		return TokenPair{}, nil, 0, err
	}
	access, err := m.IssueAccessToken(user.ID, user.Role.String(), refresh.JTI)
	if err != nil {
		return TokenPair{}, nil, 0, err
	}

	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	ttl := refresh.ExpiresAt.Sub(now()) + m.ExpiryGrace
	if ttl <= 0 {
		ttl = m.ExpiryGrace + time.Second
	}

	sess := &session.Session{
		RefreshJTI:      refresh.JTI,
		UserID:          user.ID,
		AccessJTI:       access.JTI,
		AccessExpiresAt: access.ExpiresAt.Unix(),
		IssuedAt:        refresh.IssuedAt.Unix(),
		ExpiresAt:       refresh.ExpiresAt.Unix(),
	}
	return TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		AccessJTI:        access.JTI,
		RefreshJTI:       refresh.JTI,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, sess, ttl, nil
}

func (m Minter) ready() bool {
	return m.IssueAccessToken != nil && m.IssueRefreshToken != nil
}

// NormalizeEmail trims and lower-cases an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func noAudit(context.Context, string, bool, string, error, func() map[string]string) {}

func noMetric(int) {}

func noWarn(string, ...any) {}

func remaining(exp time.Time, now time.Time) time.Duration {
	d := exp.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
