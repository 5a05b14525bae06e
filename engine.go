package authcore

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	internalaudit "github.com/sentinelgrid/authcore/internal/audit"
	"github.com/sentinelgrid/authcore/internal/flows"
	"github.com/sentinelgrid/authcore/internal/limiters"
	"github.com/sentinelgrid/authcore/internal/rate"
	"github.com/sentinelgrid/authcore/internal/stores"
	"github.com/sentinelgrid/authcore/jwt"
	"github.com/sentinelgrid/authcore/password"
	"github.com/sentinelgrid/authcore/permission"
	"github.com/sentinelgrid/authcore/session"
)

// TokenTypeBearer is the token_type reported in login and refresh responses.
const TokenTypeBearer = "Bearer"

// Engine defines a public type used by authcore APIs.
//
// Engine instances are built once by [Builder.Build] and are safe for concurrent
// use. All cross-request state lives in Redis and the [CredentialStore].
type Engine struct {
	config Config
	now    func() time.Time
	logger *log.Logger

	store        CredentialStore
	notifier     ResetNotifier
	registry     *session.Registry
	loginLimiter *rate.Limiter
	resetLimiter *limiters.PasswordResetLimiter
	resetStore   *stores.PasswordResetStore
	hasher       *password.Hasher
	dummyHash    string
	jwtManager   *jwt.Manager
	audit        *internalaudit.Dispatcher
	metrics      *Metrics

	resetDelayMin time.Duration
	resetDelayMax time.Duration

	flow   flows.Service
	closed atomic.Bool
}

// Close stops the audit dispatcher after draining buffered events. Later calls
// on the Engine return [ErrEngineNotReady].
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events discarded because the buffer
// was full or the request ended first.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of every counter.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) warn(format string, args ...any) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Printf(format, args...)
}

func (e *Engine) ready() bool {
	return e != nil && !e.closed.Load() && e.flow.Initialized()
}

// settle counts fail-closed outages before the error reaches the caller.
func (e *Engine) settle(err error) error {
	if err != nil && errors.Is(err, ErrStoreUnavailable) {
		e.metricInc(MetricStoreUnavailable)
	}
	return err
}

func (e *Engine) decodeAccess(token string) (*jwt.Claims, error) {
	claims, err := e.jwtManager.DecodeAccess(token)
	return claims, mapTokenErr(err)
}

func (e *Engine) decodeRefresh(token string) (*jwt.Claims, error) {
	claims, err := e.jwtManager.DecodeRefresh(token)
	return claims, mapTokenErr(err)
}

func mapTokenErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrTokenInvalid
	}
}

func loginResult(r *flows.LoginResult) *LoginResult {
	return &LoginResult{
		AccessToken:      r.Tokens.AccessToken,
		RefreshToken:     r.Tokens.RefreshToken,
		TokenType:        TokenTypeBearer,
		AccessExpiresAt:  r.Tokens.AccessExpiresAt,
		RefreshExpiresAt: r.Tokens.RefreshExpiresAt,
		User:             publicUser(fromFlowUser(r.User)),
	}
}

// Register creates an account with the configured default role. The email is
// trimmed and lower-cased before it is stored.
func (e *Engine) Register(ctx context.Context, email, password string) (User, error) {
	if !e.ready() {
		return User{}, ErrEngineNotReady
	}
	u, err := e.flow.Register(ctx, flows.RegisterRequest{Email: email, Password: password})
	if err != nil {
		return User{}, e.settle(err)
	}
	return publicUser(fromFlowUser(u)), nil
}

// Login verifies credentials and opens a session. The client IP attached with
// [WithClientIP] is the rate-limit key; without one the limiter is skipped.
//
// Unknown emails and wrong passwords both return [ErrInvalidCredentials]. A
// limited attempt returns a [*RateLimitError] matching [ErrLoginRateLimited].
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	res, err := e.flow.Login(ctx, email, password)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricLoginLatency, time.Since(start))
	}
	if err != nil {
		return nil, e.settle(err)
	}
	return loginResult(res), nil
}

// Refresh exchanges a refresh token for a new pair and rotates the session.
// Presenting an already-rotated token revokes every session of the user and
// returns [ErrTokenReuseDetected].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flow.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, e.settle(err)
	}
	return loginResult(res), nil
}

// Authenticate resolves a bearer access token to a [Principal]. The checks run
// in order: signature and type, expiry, role claim, revocation, account state.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	p, err := e.flow.Authenticate(ctx, accessToken)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	}
	if err != nil {
		return nil, e.settle(err)
	}

	user := publicUser(fromFlowUser(p.User))
	user.Role = p.Role
	return &Principal{
		User:      user,
		TokenID:   p.TokenID,
		SessionID: p.SessionID,
		ExpiresAt: p.ExpiresAt,
	}, nil
}

// Authorize reports whether p holds at least the required role. It is a pure
// check against the role snapshot carried by the token.
func (e *Engine) Authorize(p *Principal, required permission.Role) error {
	if p == nil {
		return ErrNoCredential
	}
	if !required.Valid() {
		return ErrInvalidRole
	}
	if !permission.Allows(p.Role, required) {
		e.metricInc(MetricAuthorizationDenied)
		return ErrForbidden
	}
	return nil
}

// Logout ends the session behind accessToken. Using the token again afterwards
// fails with [ErrTokenRevoked].
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return e.settle(e.flow.Logout(ctx, accessToken))
}

// LogoutAll revokes every session of userID and returns how many were live.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	n, err := e.flow.LogoutAll(ctx, userID)
	return n, e.settle(err)
}
