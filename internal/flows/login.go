package flows

import (
	"context"
	"errors"
	"time"
)

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	Tokens TokenPair
	User   UserRecord
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess         int
	LoginFailure         int
	LoginRateLimited     int
	SessionCreated       int
	PasswordHashUpgraded int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	Login            string
	LoginFailed      string
	LoginRateLimited string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	AccountInactive    error
	UserNotFound       error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	PasswordUpgradeOnLogin bool

	ClientIPFromContext func(context.Context) string
	Now                 func() time.Time

	// CheckLoginRate counts one attempt for ip. A non-nil error is an outage.
	CheckLoginRate func(ctx context.Context, ip string) (allowed bool, retryAfter time.Duration, err error)
	RateLimited    func(retryAfter time.Duration) error

	Users                UserStore
	Sessions             SessionRegistry
	VerifyPassword       func(plaintext, hash string) (bool, error)
	EqualizeTiming       func(plaintext string)
	PasswordNeedsUpgrade func(string) (bool, error)
	HashPassword         func(string) (string, error)
	Minter               Minter

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noAudit
	}
	if deps.Warn == nil {
		deps.Warn = noWarn
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.EqualizeTiming == nil {
		deps.EqualizeTiming = func(string) {}
	}
	if deps.Minter.Now == nil {
		deps.Minter.Now = deps.Now
	}
	if deps.RateLimited == nil {
		deps.RateLimited = func(time.Duration) error { return errLoginRateLimited }
	}
}

var errLoginRateLimited = errors.New("login rate limited")

// RunLogin executes rate limit, credential check, token issuance and session
// creation in that order. Unknown emails and wrong passwords fail identically.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (*LoginResult, error) {
	normalizeLoginDeps(&deps)
	if deps.Users == nil || deps.Sessions == nil || deps.VerifyPassword == nil || !deps.Minter.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	ip := deps.ClientIPFromContext(ctx)
	email = NormalizeEmail(email)

	if deps.CheckLoginRate != nil && ip != "" {
		allowed, retryAfter, err := deps.CheckLoginRate(ctx, ip)
		if err != nil {
			return nil, err
		}
		if !allowed {
			deps.MetricInc(deps.Metrics.LoginRateLimited)
			limited := deps.RateLimited(retryAfter)
			deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, "", limited, func() map[string]string {
				return map[string]string{
					"email":       email,
					"retry_after": retryAfter.String(),
				}
			})
			return nil, limited
		}
	}

	user, err := deps.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, deps.Errors.UserNotFound) {
			return nil, err
		}
		deps.EqualizeTiming(password)
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailed, false, "", deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{"email": email, "reason": "unknown_email"}
		})
		return nil, deps.Errors.InvalidCredentials
	}

	ok, verifyErr := deps.VerifyPassword(password, user.PasswordHash)
	if verifyErr != nil || !ok {
		reason := "bad_password"
		if verifyErr != nil {
			reason = "hash_format"
			deps.Warn("authcore: stored hash for user %s is unreadable: %v", user.ID, verifyErr)
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailed, false, user.ID, deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return nil, deps.Errors.InvalidCredentials
	}

	if !user.Active {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailed, false, user.ID, deps.Errors.AccountInactive, func() map[string]string {
			return map[string]string{"reason": "inactive"}
		})
		return nil, deps.Errors.AccountInactive
	}

	if deps.PasswordUpgradeOnLogin && deps.PasswordNeedsUpgrade != nil && deps.HashPassword != nil {
		upgradeHash(ctx, user, password, deps)
	}

	tokens, sess, ttl, err := deps.Minter.Mint(user)
	if err != nil {
		return nil, err
	}
	if err := deps.Sessions.CreateSession(ctx, sess, ttl); err != nil {
		return nil, err
	}
	deps.MetricInc(deps.Metrics.SessionCreated)

	now := deps.Now().UTC()
	if err := deps.Users.RecordLogin(ctx, user.ID, now); err != nil {
		deps.Warn("authcore: last login update failed for user %s: %v", user.ID, err)
	} else {
		user.LastLoginAt = &now
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.Login, true, user.ID, nil, func() map[string]string {
		return map[string]string{"session_id": sess.RefreshJTI}
	})
	return &LoginResult{Tokens: tokens, User: user}, nil
}

func upgradeHash(ctx context.Context, user UserRecord, password string, deps LoginDeps) {
	needs, err := deps.PasswordNeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := deps.HashPassword(password)
	if err != nil {
		deps.Warn("authcore: password rehash failed for user %s: %v", user.ID, err)
		return
	}
	if err := deps.Users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		deps.Warn("authcore: password hash upgrade not stored for user %s: %v", user.ID, err)
		return
	}
	deps.MetricInc(deps.Metrics.PasswordHashUpgraded)
}
