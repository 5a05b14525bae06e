package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sentinelgrid/authcore/internal/rate"
)

var (
	ErrResetRateLimited      = errors.New("reset rate limited")
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
)

const (
	actionResetEmail = "pwreset_email"
	actionResetIP    = "pwreset_ip"
)

type PasswordResetConfig struct {
	EnableEmailThrottle bool
	EnableIPThrottle    bool
	MaxAttempts         int
	Window              time.Duration
	Now                 func() time.Time
}

type PasswordResetLimiter struct {
	counter *rate.Limiter
	config  PasswordResetConfig
}

func NewPasswordResetLimiter(redisClient redis.UniversalClient, cfg PasswordResetConfig) *PasswordResetLimiter {
	return &PasswordResetLimiter{
		counter: rate.New(redisClient, rate.Config{
			Enabled:     cfg.EnableEmailThrottle || cfg.EnableIPThrottle,
			MaxAttempts: cfg.MaxAttempts,
			Window:      cfg.Window,
			Now:         cfg.Now,
		}),
		config: cfg,
	}
}

// CheckRequest counts one forgot-password request against the email and IP
// budgets. The email is expected in normalized form.
func (l *PasswordResetLimiter) CheckRequest(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableEmailThrottle && email != "" {
		if err := l.enforce(ctx, actionResetEmail, email); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforce(ctx, actionResetIP, ip); err != nil {
			return err
		}
	}
	return nil
}

func (l *PasswordResetLimiter) Cooldown() time.Duration {
	if l == nil {
		return 0
	}
	return l.config.Window
}

func (l *PasswordResetLimiter) enforce(ctx context.Context, action, identifier string) error {
	d, err := l.counter.CheckAndIncrement(ctx, action, identifier)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	if !d.Allowed {
		return ErrResetRateLimited
	}
	return nil
}
