package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sentinelgrid/authcore"
	"github.com/sentinelgrid/authcore/permission"
)

func seed(t *testing.T, s *Store, id, email string) authcore.UserRecord {
	t.Helper()
	rec, err := s.CreateUser(context.Background(), authcore.CreateUserInput{
		ID:           id,
		Email:        email,
		PasswordHash: "hash-" + id,
		Role:         permission.RoleViewer,
		CreatedAt:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create %s: %v", email, err)
	}
	return rec
}

func TestCreateAndLookup(t *testing.T) {
	s := New()
	ctx := context.Background()
	rec := seed(t, s, "u-1", "a@example.com")
	if !rec.Active || rec.Role != permission.RoleViewer {
		t.Fatalf("unexpected record: %+v", rec)
	}

	byEmail, err := s.GetUserByEmail(ctx, "a@example.com")
	if err != nil || byEmail.ID != "u-1" {
		t.Fatalf("lookup by email: %+v %v", byEmail, err)
	}
	byID, err := s.GetUserByID(ctx, "u-1")
	if err != nil || byID.Email != "a@example.com" {
		t.Fatalf("lookup by id: %+v %v", byID, err)
	}

	if _, err := s.GetUserByEmail(ctx, "b@example.com"); !errors.Is(err, authcore.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := s.GetUserByID(ctx, "missing"); !errors.Is(err, authcore.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestDuplicateEmail(t *testing.T) {
	s := New()
	seed(t, s, "u-1", "a@example.com")
	_, err := s.CreateUser(context.Background(), authcore.CreateUserInput{ID: "u-2", Email: "a@example.com"})
	if !errors.Is(err, authcore.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("duplicate must not be stored, len=%d", s.Len())
	}
}

func TestUpdates(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, "u-1", "a@example.com")

	if err := s.UpdatePasswordHash(ctx, "u-1", "new-hash"); err != nil {
		t.Fatalf("update hash: %v", err)
	}
	rec, err := s.UpdateRole(ctx, "u-1", permission.RoleAdmin)
	if err != nil || rec.Role != permission.RoleAdmin || rec.PasswordHash != "new-hash" {
		t.Fatalf("update role: %+v %v", rec, err)
	}
	rec, err = s.SetActive(ctx, "u-1", false)
	if err != nil || rec.Active {
		t.Fatalf("deactivate: %+v %v", rec, err)
	}

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if err := s.RecordLogin(ctx, "u-1", at); err != nil {
		t.Fatalf("record login: %v", err)
	}
	got, _ := s.GetUserByID(ctx, "u-1")
	if got.LastLoginAt == nil || !got.LastLoginAt.Equal(at) {
		t.Fatalf("last login not recorded: %+v", got.LastLoginAt)
	}

	*got.LastLoginAt = time.Time{}
	again, _ := s.GetUserByID(ctx, "u-1")
	if !again.LastLoginAt.Equal(at) {
		t.Fatal("returned records must not alias stored state")
	}

	for name, err := range map[string]error{
		"hash":   s.UpdatePasswordHash(ctx, "missing", "x"),
		"login":  s.RecordLogin(ctx, "missing", at),
		"active": func() error { _, err := s.SetActive(ctx, "missing", true); return err }(),
		"role":   func() error { _, err := s.UpdateRole(ctx, "missing", permission.RoleAdmin); return err }(),
	} {
		if !errors.Is(err, authcore.ErrUserNotFound) {
			t.Fatalf("%s on missing user: expected ErrUserNotFound, got %v", name, err)
		}
	}
}

func TestConcurrentCreateSameEmail(t *testing.T) {
	s := New()
	const workers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.CreateUser(context.Background(), authcore.CreateUserInput{
				ID:    fmt.Sprintf("u-%d", i),
				Email: "race@example.com",
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if wins != 1 || s.Len() != 1 {
		t.Fatalf("expected one account, wins=%d len=%d", wins, s.Len())
	}
}
