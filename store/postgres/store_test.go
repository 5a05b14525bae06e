package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sentinelgrid/authcore"
	"github.com/sentinelgrid/authcore/permission"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		_ = db.Close()
	})
	return NewStore(db, func() time.Time { return fixedNow }), mock
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "is_active", "created_at", "last_login_at"})
}

func TestCreateUser(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO users").
		WithArgs("u-1", "a@example.com", "hash", "viewer", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec, err := store.CreateUser(context.Background(), authcore.CreateUserInput{
		ID: "u-1", Email: "a@example.com", PasswordHash: "hash", Role: permission.RoleViewer, CreatedAt: fixedNow,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if !rec.Active || rec.Role != permission.RoleViewer || rec.ID != "u-1" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestCreateUserUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_users_email_norm"})

	_, err := store.CreateUser(context.Background(), authcore.CreateUserInput{ID: "u-2", Email: "a@example.com"})
	if !errors.Is(err, authcore.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestCreateUserOtherErrorPassesThrough(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO users").WillReturnError(boom)

	_, err := store.CreateUser(context.Background(), authcore.CreateUserInput{ID: "u-2", Email: "a@example.com"})
	if !errors.Is(err, boom) || errors.Is(err, authcore.ErrDuplicateEmail) {
		t.Fatalf("expected driver error, got %v", err)
	}
}

func TestGetUserByEmail(t *testing.T) {
	store, mock := newMockStore(t)
	last := fixedNow.Add(-time.Hour)
	mock.ExpectQuery("FROM users WHERE lower\\(email\\) = lower\\(\\$1\\)").
		WithArgs("a@example.com").
		WillReturnRows(userRows().AddRow("u-1", "a@example.com", "hash", "analyst", true, fixedNow, last))

	rec, err := store.GetUserByEmail(context.Background(), "a@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if rec.Role != permission.RoleAnalyst || rec.LastLoginAt == nil || !rec.LastLoginAt.Equal(last) {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestGetUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM users WHERE id").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	if _, err := store.GetUserByID(context.Background(), "missing"); !errors.Is(err, authcore.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGetUserRejectsUnknownRole(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM users WHERE id").
		WithArgs("u-1").
		WillReturnRows(userRows().AddRow("u-1", "a@example.com", "hash", "superuser", true, fixedNow, nil))

	_, err := store.GetUserByID(context.Background(), "u-1")
	if err == nil || errors.Is(err, authcore.ErrUserNotFound) {
		t.Fatalf("expected a corrupt-row error, got %v", err)
	}
}

func TestUpdatePasswordHash(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE users SET password_hash").
		WithArgs("u-1", "new-hash", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users SET password_hash").
		WithArgs("missing", "new-hash", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.UpdatePasswordHash(context.Background(), "u-1", "new-hash"); err != nil {
		t.Fatalf("UpdatePasswordHash: %v", err)
	}
	if err := store.UpdatePasswordHash(context.Background(), "missing", "new-hash"); !errors.Is(err, authcore.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUpdateRoleAndSetActive(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("UPDATE users SET role").
		WithArgs("u-1", "admin", fixedNow).
		WillReturnRows(userRows().AddRow("u-1", "a@example.com", "hash", "admin", true, fixedNow, nil))
	mock.ExpectQuery("UPDATE users SET is_active").
		WithArgs("u-1", false, fixedNow).
		WillReturnRows(userRows().AddRow("u-1", "a@example.com", "hash", "admin", false, fixedNow, nil))
	mock.ExpectQuery("UPDATE users SET is_active").
		WithArgs("missing", true, fixedNow).
		WillReturnError(sql.ErrNoRows)

	ctx := context.Background()
	rec, err := store.UpdateRole(ctx, "u-1", permission.RoleAdmin)
	if err != nil || rec.Role != permission.RoleAdmin {
		t.Fatalf("UpdateRole: %+v %v", rec, err)
	}
	rec, err = store.SetActive(ctx, "u-1", false)
	if err != nil || rec.Active {
		t.Fatalf("SetActive: %+v %v", rec, err)
	}
	if _, err := store.SetActive(ctx, "missing", true); !errors.Is(err, authcore.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRecordLoginAndPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewStore(db, nil)

	mock.ExpectExec("UPDATE users SET last_login_at").
		WithArgs("u-1", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectPing()

	if err := store.RecordLogin(context.Background(), "u-1", fixedNow); err != nil {
		t.Fatalf("RecordLogin: %v", err)
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMigrateValidatesArguments(t *testing.T) {
	if err := Migrate("", "up"); err == nil {
		t.Fatal("empty dsn must fail")
	}
	for _, direction := range []string{"", "sideways", "UP"} {
		if err := Migrate("postgres://localhost/authcore", direction); err == nil {
			t.Fatalf("direction %q must fail", direction)
		}
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	for _, name := range []string{"migrations/000001_init.up.sql", "migrations/000001_init.down.sql"} {
		data, err := migrationFS.ReadFile(name)
		if err != nil || len(data) == 0 {
			t.Fatalf("missing embedded migration %s: %v", name, err)
		}
	}
}
