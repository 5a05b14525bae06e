package authcore

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelgrid/authcore/internal"
	"github.com/sentinelgrid/authcore/internal/flows"
	"github.com/sentinelgrid/authcore/internal/limiters"
	"github.com/sentinelgrid/authcore/internal/rate"
	"github.com/sentinelgrid/authcore/session"
)

// buildFlows wires every flow once; the returned service is immutable.
func (e *Engine) buildFlows() flows.Service {
	cfg := e.config
	timeout := cfg.Store.OperationTimeout

	users := credentialAdapter{store: e.store, timeout: timeout}
	sessions := registryAdapter{registry: e.registry, timeout: timeout, warn: e.warn}
	resets := resetAdapter{store: e.resetStore, timeout: timeout, warn: e.warn}

	metricInc := func(id int) { e.metricInc(MetricID(id)) }
	warn := func(format string, args ...any) { e.warn(format, args...) }

	minter := flows.Minter{
		IssueAccessToken:  e.jwtManager.IssueAccessToken,
		IssueRefreshToken: e.jwtManager.IssueRefreshToken,
		ExpiryGrace:       cfg.Session.ExpiryGrace,
		Now:               e.now,
	}

	var notify func(ctx context.Context, email, token string) error
	if e.notifier != nil {
		notify = e.notifier.SendPasswordReset
	}

	return flows.New(flows.Deps{
		Register: flows.RegisterDeps{
			DefaultRole:         cfg.Account.DefaultRole,
			Now:                 e.now,
			NewUserID:           uuid.NewString,
			CheckPasswordPolicy: e.hasher.CheckPolicy,
			HashPassword:        e.hasher.Hash,
			Users:               users,
			MetricInc:           metricInc,
			EmitAudit:           e.emitAudit,
			Metrics: flows.RegisterMetrics{
				RegisterSuccess:   int(MetricRegisterSuccess),
				RegisterDuplicate: int(MetricRegisterDuplicate),
			},
			Events: flows.RegisterEvents{Register: AuditRegister},
			Errors: flows.RegisterErrors{
				EngineNotReady: ErrEngineNotReady,
				InvalidEmail:   ErrInvalidEmail,
				WeakPassword:   ErrWeakPassword,
				DuplicateEmail: ErrDuplicateEmail,
			},
		},
		Login: flows.LoginDeps{
			PasswordUpgradeOnLogin: cfg.Password.UpgradeOnLogin,
			ClientIPFromContext:    clientIPFromContext,
			Now:                    e.now,
			CheckLoginRate:         e.checkLoginRate,
			RateLimited: func(retryAfter time.Duration) error {
				return &RateLimitError{RetryAfter: retryAfter}
			},
			Users:    users,
			Sessions: sessions,
			VerifyPassword: func(plaintext, hash string) (bool, error) {
				return e.hasher.Verify(plaintext, hash)
			},
			EqualizeTiming: func(plaintext string) {
				_, _ = e.hasher.Verify(plaintext, e.dummyHash)
			},
			PasswordNeedsUpgrade: e.hasher.NeedsUpgrade,
			HashPassword:         e.hasher.Hash,
			Minter:               minter,
			MetricInc:            metricInc,
			EmitAudit:            e.emitAudit,
			Warn:                 warn,
			Metrics: flows.LoginMetrics{
				LoginSuccess:         int(MetricLoginSuccess),
				LoginFailure:         int(MetricLoginFailure),
				LoginRateLimited:     int(MetricLoginRateLimited),
				SessionCreated:       int(MetricSessionCreated),
				PasswordHashUpgraded: int(MetricPasswordHashUpgraded),
			},
			Events: flows.LoginEvents{
				Login:            AuditLogin,
				LoginFailed:      AuditLoginFailed,
				LoginRateLimited: AuditLoginRateLimited,
			},
			Errors: flows.LoginErrors{
				EngineNotReady:     ErrEngineNotReady,
				InvalidCredentials: ErrInvalidCredentials,
				AccountInactive:    ErrAccountInactive,
				UserNotFound:       ErrUserNotFound,
			},
		},
		Refresh: flows.RefreshDeps{
			Now:           e.now,
			DecodeRefresh: e.decodeRefresh,
			Users:         users,
			Sessions:      sessions,
			Minter:        minter,
			MetricInc:     metricInc,
			EmitAudit:     e.emitAudit,
			Warn:          warn,
			Metrics: flows.RefreshMetrics{
				RefreshSuccess:       int(MetricRefreshSuccess),
				RefreshFailure:       int(MetricRefreshFailure),
				RefreshReuseDetected: int(MetricRefreshReuseDetected),
				SessionInvalidated:   int(MetricSessionInvalidated),
			},
			Events: flows.RefreshEvents{
				TokenRefresh:       AuditTokenRefresh,
				TokenReuseDetected: AuditTokenReuseDetected,
			},
			Errors: flows.RefreshErrors{
				EngineNotReady:     ErrEngineNotReady,
				TokenInvalid:       ErrTokenInvalid,
				TokenRevoked:       ErrTokenRevoked,
				TokenReuseDetected: ErrTokenReuseDetected,
				AccountInactive:    ErrAccountInactive,
				UserNotFound:       ErrUserNotFound,
				SessionNotFound:    session.ErrSessionNotFound,
			},
		},
		Authenticate: flows.AuthenticateDeps{
			DecodeAccess: e.decodeAccess,
			Users:        users,
			Sessions:     sessions,
			MetricInc:    metricInc,
			Metrics: flows.AuthenticateMetrics{
				AuthenticateSuccess: int(MetricAuthenticateSuccess),
				AuthenticateFailure: int(MetricAuthenticateFailure),
			},
			Errors: flows.AuthenticateErrors{
				EngineNotReady:  ErrEngineNotReady,
				NoCredential:    ErrNoCredential,
				TokenInvalid:    ErrTokenInvalid,
				TokenRevoked:    ErrTokenRevoked,
				AccountInactive: ErrAccountInactive,
				UserNotFound:    ErrUserNotFound,
			},
		},
		Logout: flows.LogoutDeps{
			Now:          e.now,
			DecodeAccess: e.decodeAccess,
			Sessions:     sessions,
			MetricInc:    metricInc,
			EmitAudit:    e.emitAudit,
			Metrics: flows.LogoutMetrics{
				Logout:             int(MetricLogout),
				LogoutAll:          int(MetricLogoutAll),
				SessionInvalidated: int(MetricSessionInvalidated),
			},
			Events: flows.LogoutEvents{
				Logout:    AuditLogout,
				LogoutAll: AuditLogoutAll,
			},
			Errors: flows.LogoutErrors{
				EngineNotReady:  ErrEngineNotReady,
				NoCredential:    ErrNoCredential,
				TokenRevoked:    ErrTokenRevoked,
				SessionNotFound: session.ErrSessionNotFound,
			},
		},
		PasswordReset: flows.PasswordResetDeps{
			TokenTTL:            cfg.PasswordReset.TokenTTL,
			GracePeriod:         cfg.PasswordReset.GracePeriod,
			NotifyTimeout:       cfg.PasswordReset.NotifyTimeout,
			ClientIPFromContext: clientIPFromContext,
			Now:                 e.now,
			Delay:               e.resetDelay,
			CheckRequestLimiter: e.checkResetRate,
			Users:               users,
			Sessions:            sessions,
			Resets:              resets,
			NewToken:            internal.NewResetToken,
			TokenDigest:         internal.ResetTokenDigest,
			CheckPasswordPolicy: e.hasher.CheckPolicy,
			HashPassword:        e.hasher.Hash,
			Notify:              notify,
			MetricInc:           metricInc,
			EmitAudit:           e.emitAudit,
			Warn:                warn,
			Metrics: flows.PasswordResetMetrics{
				PasswordResetRequest:        int(MetricPasswordResetRequest),
				PasswordResetRateLimited:    int(MetricPasswordResetRateLimited),
				PasswordResetConfirmSuccess: int(MetricPasswordResetConfirmSuccess),
				PasswordResetConfirmFailure: int(MetricPasswordResetConfirmFailure),
				NotifierFailure:             int(MetricNotifierFailure),
				SessionInvalidated:          int(MetricSessionInvalidated),
			},
			Events: flows.PasswordResetEvents{
				PasswordResetRequested: AuditPasswordResetRequested,
				PasswordResetCompleted: AuditPasswordResetCompleted,
				PasswordResetFailed:    AuditPasswordResetFailed,
			},
			Errors: flows.PasswordResetErrors{
				EngineNotReady:            ErrEngineNotReady,
				RateLimited:               ErrPasswordResetRateLimited,
				ResetTokenInvalid:         ErrResetTokenInvalid,
				WeakPassword:              ErrWeakPassword,
				UserNotFound:              ErrUserNotFound,
				NotifierUnavailable:       ErrNotifierUnavailable,
				SessionInvalidationFailed: ErrSessionInvalidationFailed,
			},
		},
		Account: flows.AccountDeps{
			Users:     users,
			Sessions:  sessions,
			MetricInc: metricInc,
			EmitAudit: e.emitAudit,
			Warn:      warn,
			Metrics: flows.AccountMetrics{
				RoleChanged:        int(MetricRoleChanged),
				AccountDeactivated: int(MetricAccountDeactivated),
				SessionInvalidated: int(MetricSessionInvalidated),
			},
			Events: flows.AccountEvents{
				RoleChanged:        AuditRoleChanged,
				AccountDeactivated: AuditAccountDeactivated,
			},
			Errors: flows.AccountErrors{
				EngineNotReady:            ErrEngineNotReady,
				InvalidRole:               ErrInvalidRole,
				UserNotFound:              ErrUserNotFound,
				SessionInvalidationFailed: ErrSessionInvalidationFailed,
			},
		},
		Introspection: flows.IntrospectionDeps{
			Users:    users,
			Sessions: sessions,
			Errors: flows.IntrospectionErrors{
				EngineNotReady: ErrEngineNotReady,
				UserNotFound:   ErrUserNotFound,
			},
		},
	})
}

func (e *Engine) checkLoginRate(ctx context.Context, ip string) (bool, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Store.OperationTimeout)
	defer cancel()

	d, err := e.loginLimiter.CheckAndIncrement(ctx, rate.ActionLogin, ip)
	if err != nil {
		return false, 0, storeUnavailable(err)
	}
	return d.Allowed, d.RetryAfter, nil
}

func (e *Engine) checkResetRate(ctx context.Context, email, ip string) error {
	ctx, cancel := context.WithTimeout(ctx, e.config.Store.OperationTimeout)
	defer cancel()

	err := e.resetLimiter.CheckRequest(ctx, email, ip)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiters.ErrResetRateLimited):
		return ErrPasswordResetRateLimited
	default:
		return storeUnavailable(err)
	}
}

// resetDelay sleeps for a random duration in the configured range or until ctx ends.
func (e *Engine) resetDelay(ctx context.Context) {
	if e.resetDelayMax <= 0 {
		return
	}
	d := e.resetDelayMin
	if span := e.resetDelayMax - e.resetDelayMin; span > 0 {
		d += rand.N(span)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
