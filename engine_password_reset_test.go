package authcore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

const newTestPassword = "new-password-for-alice"

func TestPasswordResetSingleUse(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	u := env.register(t, "alice@example.com", testPassword)
	before := env.login(t, "alice@example.com", testPassword)

	if err := env.engine.RequestPasswordReset(ctx, "Alice@Example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	token := env.notifier.last(t, "alice@example.com")

	if err := env.engine.ResetPassword(ctx, token, newTestPassword); err != nil {
		t.Fatalf("reset: %v", err)
	}
	mustErr(t, env.engine.ResetPassword(ctx, token, "another-new-password"), ErrResetTokenUsed)

	_, err := env.engine.Authenticate(ctx, before.AccessToken)
	mustErr(t, err, ErrTokenRevoked)
	_, err = env.engine.Login(ctx, "alice@example.com", testPassword)
	mustErr(t, err, ErrInvalidCredentials)
	env.login(t, "alice@example.com", newTestPassword)

	if ids, _ := env.engine.ActiveSessions(ctx, u.ID); len(ids) != 1 {
		t.Fatalf("expected only the post-reset session, got %v", ids)
	}
	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricPasswordResetConfirmSuccess] != 1 || snap.Counters[MetricPasswordResetConfirmFailure] != 1 {
		t.Fatalf("unexpected reset counters: %+v", snap.Counters)
	}
}

func TestPasswordResetExpiresAtBoundary(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	env.register(t, "alice@example.com", testPassword)

	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	token := env.notifier.last(t, "alice@example.com")

	env.clock.Advance(time.Hour)
	mustErr(t, env.engine.ResetPassword(ctx, token, newTestPassword), ErrResetTokenExpired)
	env.login(t, "alice@example.com", testPassword)
}

func TestPasswordResetUnknownTokens(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	mustErr(t, env.engine.ResetPassword(ctx, "not-a-token", newTestPassword), ErrResetTokenInvalid)
	mustErr(t, env.engine.ResetPassword(ctx, strings.Repeat("A", 43), newTestPassword), ErrResetTokenInvalid)
}

func TestPasswordResetWeakPasswordKeepsToken(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	env.register(t, "alice@example.com", testPassword)

	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	token := env.notifier.last(t, "alice@example.com")

	mustErr(t, env.engine.ResetPassword(ctx, token, "short"), ErrWeakPassword)
	if err := env.engine.ResetPassword(ctx, token, newTestPassword); err != nil {
		t.Fatalf("token must survive a policy rejection: %v", err)
	}
}

func TestPasswordResetDoesNotRevealAccounts(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	u := env.register(t, "alice@example.com", testPassword)
	if _, err := env.engine.Deactivate(ctx, u.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	for _, email := range []string{"nobody@example.com", "alice@example.com", "not an email"} {
		if err := env.engine.RequestPasswordReset(ctx, email); err != nil {
			t.Fatalf("request for %q must look successful, got %v", email, err)
		}
	}
	if env.notifier.count("nobody@example.com") != 0 || env.notifier.count("alice@example.com") != 0 {
		t.Fatal("no token may be sent for unknown or inactive accounts")
	}
}

func TestPasswordResetNotifierFailure(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	env.register(t, "alice@example.com", testPassword)
	env.notifier.err = errors.New("smtp down")

	mustErr(t, env.engine.RequestPasswordReset(ctx, "alice@example.com"), ErrNotifierUnavailable)
	if got := env.engine.MetricsSnapshot().Counters[MetricNotifierFailure]; got != 1 {
		t.Fatalf("expected 1 notifier failure, got %d", got)
	}
}

func TestPasswordResetNotifierTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.PasswordReset.NotifyTimeout = 20 * time.Millisecond
	slow := NotifierFunc(func(ctx context.Context, _, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	})
	env := newTestEnv(t, cfg, func(b *Builder) { b.WithResetNotifier(slow) })
	env.register(t, "alice@example.com", testPassword)

	mustErr(t, env.engine.RequestPasswordReset(context.Background(), "alice@example.com"), ErrNotifierUnavailable)
}

func TestPasswordResetRequestThrottle(t *testing.T) {
	cfg := testConfig()
	cfg.PasswordReset.MaxRequests = 2
	env := newTestEnv(t, cfg)
	ctx := WithClientIP(context.Background(), "203.0.113.9")
	env.register(t, "alice@example.com", testPassword)

	for i := 0; i < 2; i++ {
		if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
	mustErr(t, env.engine.RequestPasswordReset(ctx, "alice@example.com"), ErrPasswordResetRateLimited)
	if env.notifier.count("alice@example.com") != 2 {
		t.Fatalf("expected 2 deliveries, got %d", env.notifier.count("alice@example.com"))
	}
}

func TestPasswordResetRedemptionRace(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	env.register(t, "alice@example.com", testPassword)
	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	token := env.notifier.last(t, "alice@example.com")

	const workers = 4
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() { errs <- env.engine.ResetPassword(ctx, token, newTestPassword) }()
	}
	var wins, used int
	for i := 0; i < workers; i++ {
		switch err := <-errs; {
		case err == nil:
			wins++
		case errors.Is(err, ErrResetTokenUsed):
			used++
		default:
			t.Fatalf("unexpected reset error: %v", err)
		}
	}
	if wins != 1 || used != workers-1 {
		t.Fatalf("expected one redemption, got wins=%d used=%d", wins, used)
	}
}

func TestPasswordResetWithoutNotifier(t *testing.T) {
	env := newTestEnv(t, testConfig(), func(b *Builder) { b.WithResetNotifier(nil) })
	env.register(t, "alice@example.com", testPassword)

	mustErr(t, env.engine.RequestPasswordReset(context.Background(), "alice@example.com"), ErrEngineNotReady)
}
