//go:build integration

package test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sentinelgrid/authcore"
	"github.com/sentinelgrid/authcore/permission"
	"github.com/sentinelgrid/authcore/store/postgres"
)

// newPostgresEngine runs migrations against DATABASE_URL and truncates both
// tables. Tests are skipped when the variable is unset.
func newPostgresEngine(t *testing.T) (*authcore.Engine, *sql.DB) {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	if err := postgres.Migrate(dsn, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.Open(ctx, dsn, postgres.DefaultPoolConfig())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := db.ExecContext(ctx, "TRUNCATE users, audit_events"); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
		_ = db.Close()
	})

	engine, err := authcore.New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithCredentialStore(postgres.NewStore(db, nil)).
		WithAuditSink(postgres.NewAuditSink(db)).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, db
}

func TestPostgresConcurrentRegisterSingleWinner(t *testing.T) {
	engine, _ := newPostgresEngine(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		created    int
		duplicates int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Case variants normalize to the same address.
			email := "Race@Example.com"
			if i%2 == 0 {
				email = "race@example.com"
			}
			_, err := engine.Register(ctx, email, testPassword)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, authcore.ErrDuplicateEmail):
				duplicates++
			default:
				t.Errorf("unexpected register error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if created != 1 || duplicates != workers-1 {
		t.Fatalf("expected one account, got created=%d duplicates=%d", created, duplicates)
	}
}

func TestPostgresAccountStateRoundTrip(t *testing.T) {
	engine, db := newPostgresEngine(t)
	ctx := context.Background()

	res := registerAndLogin(t, engine, "pg-state@example.com")
	u, err := engine.GetUser(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.LastLoginAt == nil {
		t.Fatal("login must record last_login_at")
	}

	if _, err := engine.UpdateRole(ctx, u.ID, permission.RoleAdmin); err != nil {
		t.Fatalf("update role: %v", err)
	}
	if _, err := engine.Deactivate(ctx, u.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := engine.Login(ctx, "pg-state@example.com", testPassword); !errors.Is(err, authcore.ErrAccountInactive) {
		t.Fatalf("expected inactive account, got %v", err)
	}
	if _, err := engine.Authenticate(ctx, res.AccessToken); err == nil {
		t.Fatal("deactivation must end existing sessions")
	}

	after, err := engine.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if after.Role != permission.RoleAdmin || after.Active {
		t.Fatalf("unexpected stored state: %+v", after)
	}

	// Audit writes are asynchronous.
	engine.Close()
	var n int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM audit_events WHERE user_id = $1", u.ID).Scan(&n); err != nil {
		t.Fatalf("count audit events: %v", err)
	}
	if n == 0 {
		t.Fatalf("expected audit events for %s", u.ID)
	}
}
