package authcore

import (
	"context"
	"time"

	"github.com/sentinelgrid/authcore/permission"
)

// CredentialStore is the durable identity store the Engine reads and writes.
// Implementations live in store/postgres and store/memory.
//
// Emails arrive normalized (trimmed, lower-case). Lookups that find nothing
// return [ErrUserNotFound]; CreateUser returns [ErrDuplicateEmail] for an existing
// email. Any other error is treated as an outage and surfaces as [ErrStoreUnavailable].
type CredentialStore interface {
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
	UpdateRole(ctx context.Context, userID string, role permission.Role) (UserRecord, error)
	SetActive(ctx context.Context, userID string, active bool) (UserRecord, error)
	RecordLogin(ctx context.Context, userID string, at time.Time) error
	Ping(ctx context.Context) error
}

// UserRecord is the account record stored by a [CredentialStore].
type UserRecord struct {
	ID           string
	Email        string
	PasswordHash string
	Role         permission.Role
	Active       bool
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// CreateUserInput is the input for [CredentialStore.CreateUser]. The ID is
// assigned by the Engine.
type CreateUserInput struct {
	ID           string
	Email        string
	PasswordHash string
	Role         permission.Role
	CreatedAt    time.Time
}

// User is the public view of an account, safe to return to clients.
type User struct {
	ID          string          `json:"id"`
	Email       string          `json:"email"`
	Role        permission.Role `json:"role"`
	Active      bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	LastLoginAt *time.Time      `json:"last_login_at,omitempty"`
}

// Principal is the identity resolved by [Engine.Authenticate]. Role is the
// snapshot carried by the access token, not the stored role.
type Principal struct {
	User
	TokenID   string
	SessionID string
	ExpiresAt time.Time
}

// LoginResult is returned by [Engine.Login] and [Engine.Refresh].
type LoginResult struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	User             User
}

// ExpiresIn returns the access token lifetime relative to now, in whole seconds.
func (r *LoginResult) ExpiresIn(now time.Time) int64 {
	if r == nil {
		return 0
	}
	d := r.AccessExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// ResetNotifier delivers password-reset tokens, typically by email. It must not
// log the token.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// NotifierFunc adapts a function to [ResetNotifier].
type NotifierFunc func(ctx context.Context, email, token string) error

// SendPasswordReset calls f.
func (f NotifierFunc) SendPasswordReset(ctx context.Context, email, token string) error {
	return f(ctx, email, token)
}

// HealthStatus is returned by [Engine.Health].
type HealthStatus struct {
	RedisAvailable bool
	RedisLatency   time.Duration
	StoreAvailable bool
	StoreLatency   time.Duration
}

// Healthy reports whether both stores answered.
func (h HealthStatus) Healthy() bool {
	return h.RedisAvailable && h.StoreAvailable
}

func publicUser(u UserRecord) User {
	return User{
		ID:          u.ID,
		Email:       u.Email,
		Role:        u.Role,
		Active:      u.Active,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}
