package authcore

import (
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/sentinelgrid/authcore/internal/audit"
	"github.com/sentinelgrid/authcore/internal/limiters"
	"github.com/sentinelgrid/authcore/internal/rate"
	"github.com/sentinelgrid/authcore/internal/stores"
	"github.com/sentinelgrid/authcore/jwt"
	"github.com/sentinelgrid/authcore/password"
	"github.com/sentinelgrid/authcore/session"
)

// Builder defines a public type used by authcore APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store         CredentialStore
	auditSink     AuditSink
	notifier      ResetNotifier
	onAuditFail   func(AuditEvent, error)
	now           func() time.Time
	logger        *log.Logger
	resetDelayMin time.Duration
	resetDelayMax time.Duration

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config:        defaultConfig(),
		resetDelayMin: 20 * time.Millisecond,
		resetDelayMax: 40 * time.Millisecond,
	}
}

// WithConfig replaces the whole configuration. The secret is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the ephemeral store for sessions, revocations, rate-limit
// counters and reset tokens. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the durable user store. Required.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithAuditSink sets where audit events are written. Without one, events are
// discarded.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithResetNotifier sets the delivery channel for password-reset tokens.
// Without one, forgot-password requests fail with [ErrEngineNotReady].
func (b *Builder) WithResetNotifier(n ResetNotifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditFailureHook registers fn for sink write failures. fn runs on the
// dispatcher goroutine and receives an error wrapping [ErrAuditWriteFailed].
func (b *Builder) WithAuditFailureHook(fn func(AuditEvent, error)) *Builder {
	b.onAuditFail = fn
	return b
}

// WithClock overrides time.Now for token issuance, validation and expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithLogger sets the logger for operational warnings. Defaults to the standard
// logger with an "authcore: " prefix.
func (b *Builder) WithLogger(l *log.Logger) *Builder {
	b.logger = l
	return b
}

// WithResetDelay sets the padding range applied to forgot-password requests for
// unknown accounts. Zero disables it.
func (b *Builder) WithResetDelay(min, max time.Duration) *Builder {
	b.resetDelayMin = min
	b.resetDelayMax = max
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles login and authenticate latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine. A Builder can be
// built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.resetDelayMax < b.resetDelayMin {
		return nil, errors.New("reset delay max must be >= min")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = log.New(log.Writer(), "authcore: ", log.LstdFlags)
	}

	engine := &Engine{
		config:        cloneConfig(cfg),
		now:           now,
		logger:        logger,
		store:         b.store,
		notifier:      b.notifier,
		resetDelayMin: b.resetDelayMin,
		resetDelayMax: b.resetDelayMax,
	}

	engine.metrics = NewMetrics(cfg.Metrics)
	engine.registry = session.NewRegistry(b.redis, now)
	engine.loginLimiter = rate.New(b.redis, rate.Config{
		Enabled:     cfg.RateLimit.Enabled,
		MaxAttempts: cfg.RateLimit.MaxAttempts,
		Window:      cfg.RateLimit.Window,
		Now:         now,
	})
	engine.resetLimiter = limiters.NewPasswordResetLimiter(b.redis, limiters.PasswordResetConfig{
		EnableEmailThrottle: cfg.PasswordReset.EnableEmailThrottle,
		EnableIPThrottle:    cfg.PasswordReset.EnableIPThrottle,
		MaxAttempts:         cfg.PasswordReset.MaxRequests,
		Window:              cfg.PasswordReset.RequestWindow,
		Now:                 now,
	})
	engine.resetStore = stores.NewPasswordResetStore(b.redis, now)

	hasher, err := password.New(password.Config{
		Algorithm:  cfg.Password.Algorithm,
		BcryptCost: cfg.Password.BcryptCost,
		Argon2:     cfg.Password.Argon2,
		MinLength:  cfg.Password.MinLength,
		MaxLength:  cfg.Password.MaxLength,
	})
	if err != nil {
		return nil, err
	}
	engine.hasher = hasher

	dummy, err := hasher.Hash("authcore-timing-equalizer")
	if err != nil {
		return nil, err
	}
	engine.dummyHash = dummy

	jm, err := jwt.NewManager(jwt.Config{
		Secret:     cloneBytes(cfg.JWT.Secret),
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Issuer:     cfg.JWT.Issuer,
		Leeway:     cfg.JWT.Leeway,
		Now:        now,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	onFailure := b.onAuditFail
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:      cfg.Audit.Enabled,
		BufferSize:   cfg.Audit.BufferSize,
		DropIfFull:   cfg.Audit.DropIfFull,
		WriteTimeout: cfg.Audit.WriteTimeout,
		OnFailure: func(event internalaudit.Event, err error) {
			engine.metricInc(MetricAuditWriteFailed)
			wrapped := errors.Join(ErrAuditWriteFailed, err)
			engine.warn("audit write failed for %s: %v", event.Action, err)
			if onFailure != nil {
				onFailure(event, wrapped)
			}
		},
		OnDrop: func(internalaudit.Event) {
			engine.metricInc(MetricAuditDropped)
		},
	}, b.auditSink)

	engine.flow = engine.buildFlows()

	b.built = true

	return engine, nil
}
