package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActionLogin is the action namespace for login attempts keyed by client IP.
const ActionLogin = "login"

const keyPrefix = "ratelimit:"

// KEYS: counter key
// ARGV: window ms
const incrementScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`

var incrementLua = redis.NewScript(incrementScript)

// Config holds rate limiter tuning parameters.
type Config struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
	Now         func() time.Time
}

// Decision is the outcome of one counted attempt.
type Decision struct {
	Allowed    bool
	Count      int64
	RetryAfter time.Duration
}

// Limiter enforces fixed-window attempt budgets using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckAndIncrement counts one attempt for identifier under action and reports
// whether it stays within budget. Every attempt counts, successful or not.
func (l *Limiter) CheckAndIncrement(ctx context.Context, action, identifier string) (Decision, error) {
	if !l.config.Enabled || l.config.MaxAttempts <= 0 || !l.windowed() {
		return Decision{Allowed: true}, nil
	}

	now := l.config.Now()
	count, err := incrementLua.Run(
		ctx,
		l.redis,
		[]string{l.key(action, identifier, now)},
		l.config.Window.Milliseconds(),
	).Int64()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	d := Decision{Allowed: count <= int64(l.config.MaxAttempts), Count: count}
	if !d.Allowed {
		d.RetryAfter = l.retryAfter(now)
	}
	return d, nil
}

// Attempts returns the counter for the current window without incrementing it.
func (l *Limiter) Attempts(ctx context.Context, action, identifier string) (int64, error) {
	if !l.windowed() {
		return 0, nil
	}
	count, err := l.redis.Get(ctx, l.key(action, identifier, l.config.Now())).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}

// Reset clears the current window's counter for identifier.
func (l *Limiter) Reset(ctx context.Context, action, identifier string) error {
	if !l.windowed() {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(action, identifier, l.config.Now())).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration {
	return l.config.Window
}

// windowed reports whether Window spans at least one millisecond, the
// granularity of window indexes and PEXPIRE.
func (l *Limiter) windowed() bool {
	return l.config.Window >= time.Millisecond
}

func (l *Limiter) key(action, identifier string, now time.Time) string {
	return keyPrefix + action + ":" + identifier + ":" + strconv.FormatInt(l.windowIndex(now), 10)
}

func (l *Limiter) windowIndex(now time.Time) int64 {
	return now.UnixMilli() / l.config.Window.Milliseconds()
}

// retryAfter is the time until the current window closes, rounded up to whole seconds.
func (l *Limiter) retryAfter(now time.Time) time.Duration {
	windowMS := l.config.Window.Milliseconds()
	remaining := time.Duration(windowMS-now.UnixMilli()%windowMS) * time.Millisecond
	if rem := remaining % time.Second; rem != 0 {
		remaining += time.Second - rem
	}
	return remaining
}
