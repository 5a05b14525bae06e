package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sentinelgrid/authcore"
	"github.com/sentinelgrid/authcore/permission"
)

const pgUniqueViolation = "23505"

const userColumns = `id, email, password_hash, role, is_active, created_at, last_login_at`

// Store is the Postgres credential store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps an open pool. now stamps updated_at and may be nil.
func NewStore(db *sql.DB, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{db: db, now: now}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (authcore.UserRecord, error) {
	var (
		rec       authcore.UserRecord
		role      string
		lastLogin sql.NullTime
	)
	if err := row.Scan(&rec.ID, &rec.Email, &rec.PasswordHash, &role, &rec.Active, &rec.CreatedAt, &lastLogin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return authcore.UserRecord{}, authcore.ErrUserNotFound
		}
		return authcore.UserRecord{}, err
	}

	parsed, err := permission.ParseRole(role)
	if err != nil {
		return authcore.UserRecord{}, fmt.Errorf("postgres: user %s: %w", rec.ID, err)
	}
	rec.Role = parsed
	if lastLogin.Valid {
		t := lastLogin.Time
		rec.LastLoginAt = &t
	}
	return rec, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// CreateUser inserts an active user and maps a unique email violation to [authcore.ErrDuplicateEmail].
func (s *Store) CreateUser(ctx context.Context, input authcore.CreateUserInput) (authcore.UserRecord, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, role, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, TRUE, $5, $5)`,
		input.ID, input.Email, input.PasswordHash, string(input.Role), input.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return authcore.UserRecord{}, authcore.ErrDuplicateEmail
		}
		return authcore.UserRecord{}, err
	}

	return authcore.UserRecord{
		ID:           input.ID,
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		Active:       true,
		CreatedAt:    input.CreatedAt,
	}, nil
}

// GetUserByEmail looks a user up by case-insensitive email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (authcore.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

// GetUserByID looks a user up by id.
func (s *Store) GetUserByID(ctx context.Context, userID string) (authcore.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

// UpdatePasswordHash replaces the stored password hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		userID, passwordHash, s.now().UTC(),
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateRole sets the user's role and returns the updated record.
func (s *Store) UpdateRole(ctx context.Context, userID string, role permission.Role) (authcore.UserRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE users SET role = $2, updated_at = $3 WHERE id = $1 RETURNING `+userColumns,
		userID, string(role), s.now().UTC(),
	)
	return scanUser(row)
}

// SetActive flips the account's active flag and returns the updated record.
func (s *Store) SetActive(ctx context.Context, userID string, active bool) (authcore.UserRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE users SET is_active = $2, updated_at = $3 WHERE id = $1 RETURNING `+userColumns,
		userID, active, s.now().UTC(),
	)
	return scanUser(row)
}

// RecordLogin stamps last_login_at.
func (s *Store) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, userID, at.UTC())
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}
