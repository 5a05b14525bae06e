package rate

import "errors"

var (
	// ErrRateLimited is the error form of a limited [Decision].
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps every Redis failure seen by the limiter.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
