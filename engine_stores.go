package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/sentinelgrid/authcore/internal/flows"
	"github.com/sentinelgrid/authcore/internal/stores"
	"github.com/sentinelgrid/authcore/permission"
	"github.com/sentinelgrid/authcore/session"
)

// registryAdapter bounds every registry call by the store timeout and maps
// registry errors onto the Engine taxonomy. session.ErrSessionNotFound passes
// through unchanged; flows treat it as a negative answer.
type registryAdapter struct {
	registry *session.Registry
	timeout  time.Duration
	warn     func(string, ...any)
}

func (a registryAdapter) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.timeout)
}

func (a registryAdapter) mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrSessionNotFound):
		return session.ErrSessionNotFound
	case errors.Is(err, session.ErrSessionCorrupt):
		a.warn("corrupt session record: %v", err)
		return ErrTokenInvalid
	default:
		return storeUnavailable(err)
	}
}

func (a registryAdapter) CreateSession(ctx context.Context, s *session.Session, ttl time.Duration) error {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	return a.mapErr(a.registry.CreateSession(ctx, s, ttl))
}

func (a registryAdapter) GetSession(ctx context.Context, refreshJTI string) (*session.Session, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	s, err := a.registry.GetSession(ctx, refreshJTI)
	return s, a.mapErr(err)
}

func (a registryAdapter) DeleteSession(ctx context.Context, refreshJTI string) error {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	return a.mapErr(a.registry.DeleteSession(ctx, refreshJTI))
}

func (a registryAdapter) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	return a.mapErr(a.registry.Revoke(ctx, jti, ttl))
}

func (a registryAdapter) IsRevoked(ctx context.Context, jti string) (bool, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	revoked, err := a.registry.IsRevoked(ctx, jti)
	return revoked, a.mapErr(err)
}

func (a registryAdapter) Rotate(ctx context.Context, oldRefreshJTI string, next *session.Session, ttl time.Duration, previousAccessJTI string, previousAccessExp int64) error {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	return a.mapErr(a.registry.Rotate(ctx, oldRefreshJTI, next, ttl, previousAccessJTI, previousAccessExp))
}

func (a registryAdapter) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	n, err := a.registry.RevokeAllForUser(ctx, userID)
	return n, a.mapErr(err)
}

func (a registryAdapter) ActiveSessionIDs(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	ids, err := a.registry.ActiveSessionIDs(ctx, userID)
	return ids, a.mapErr(err)
}

func (a registryAdapter) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	d, err := a.registry.Ping(ctx)
	return d, a.mapErr(err)
}

// credentialAdapter exposes a CredentialStore to flows. Not-found and
// duplicate answers pass through; everything else becomes ErrStoreUnavailable.
type credentialAdapter struct {
	store   CredentialStore
	timeout time.Duration
}

func (a credentialAdapter) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.timeout)
}

func mapCredentialErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrDuplicateEmail):
		return err
	default:
		return storeUnavailable(err)
	}
}

func toFlowUser(u UserRecord) flows.UserRecord {
	return flows.UserRecord{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		Active:       u.Active,
		CreatedAt:    u.CreatedAt,
		LastLoginAt:  u.LastLoginAt,
	}
}

func fromFlowUser(u flows.UserRecord) UserRecord {
	return UserRecord{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		Active:       u.Active,
		CreatedAt:    u.CreatedAt,
		LastLoginAt:  u.LastLoginAt,
	}
}

func (a credentialAdapter) CreateUser(ctx context.Context, user flows.UserRecord) (flows.UserRecord, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	created, err := a.store.CreateUser(ctx, CreateUserInput{
		ID:           user.ID,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
		CreatedAt:    user.CreatedAt,
	})
	if err != nil {
		return flows.UserRecord{}, mapCredentialErr(err)
	}
	return toFlowUser(created), nil
}

func (a credentialAdapter) GetUserByEmail(ctx context.Context, email string) (flows.UserRecord, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	u, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return flows.UserRecord{}, mapCredentialErr(err)
	}
	return toFlowUser(u), nil
}

func (a credentialAdapter) GetUserByID(ctx context.Context, userID string) (flows.UserRecord, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	u, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return flows.UserRecord{}, mapCredentialErr(err)
	}
	return toFlowUser(u), nil
}

func (a credentialAdapter) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	return mapCredentialErr(a.store.UpdatePasswordHash(ctx, userID, passwordHash))
}

func (a credentialAdapter) UpdateRole(ctx context.Context, userID string, role permission.Role) (flows.UserRecord, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	u, err := a.store.UpdateRole(ctx, userID, role)
	if err != nil {
		return flows.UserRecord{}, mapCredentialErr(err)
	}
	return toFlowUser(u), nil
}

func (a credentialAdapter) SetActive(ctx context.Context, userID string, active bool) (flows.UserRecord, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	u, err := a.store.SetActive(ctx, userID, active)
	if err != nil {
		return flows.UserRecord{}, mapCredentialErr(err)
	}
	return toFlowUser(u), nil
}

func (a credentialAdapter) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	return mapCredentialErr(a.store.RecordLogin(ctx, userID, at))
}

func (a credentialAdapter) Ping(ctx context.Context) error {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	if err := a.store.Ping(ctx); err != nil {
		return storeUnavailable(err)
	}
	return nil
}

// resetAdapter maps the Redis reset-record store onto flow records and the
// Engine's reset-token errors.
type resetAdapter struct {
	store   *stores.PasswordResetStore
	timeout time.Duration
	warn    func(string, ...any)
}

func (a resetAdapter) Save(ctx context.Context, digest string, record flows.ResetRecord, retention time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	err := a.store.Save(ctx, digest, &stores.PasswordResetRecord{
		UserID:    record.UserID,
		IssuedAt:  record.IssuedAt.Unix(),
		ExpiresAt: record.ExpiresAt.Unix(),
	}, retention)
	if err != nil {
		return storeUnavailable(err)
	}
	return nil
}

func (a resetAdapter) Redeem(ctx context.Context, digest string) (flows.ResetRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	rec, err := a.store.Redeem(ctx, digest)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrResetNotFound):
			return flows.ResetRecord{}, ErrResetTokenInvalid
		case errors.Is(err, stores.ErrResetExpired):
			return flows.ResetRecord{}, ErrResetTokenExpired
		case errors.Is(err, stores.ErrResetUsed):
			return flows.ResetRecord{}, ErrResetTokenUsed
		case errors.Is(err, stores.ErrResetCorrupt):
			a.warn("corrupt reset record: %v", err)
			return flows.ResetRecord{}, ErrResetTokenInvalid
		default:
			return flows.ResetRecord{}, storeUnavailable(err)
		}
	}
	return flows.ResetRecord{
		UserID:    rec.UserID,
		IssuedAt:  time.Unix(rec.IssuedAt, 0),
		ExpiresAt: time.Unix(rec.ExpiresAt, 0),
		Used:      rec.Used,
	}, nil
}
