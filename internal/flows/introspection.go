package flows

import (
	"context"
	"time"
)

// IntrospectionErrors carries host-level sentinel errors used by read-only flows.
type IntrospectionErrors struct {
	EngineNotReady error
	UserNotFound   error
}

// IntrospectionDeps captures session listing and health probe dependencies.
type IntrospectionDeps struct {
	Users    UserStore
	Sessions SessionRegistry
	Errors   IntrospectionErrors
}

// Health is a point-in-time probe of both backing stores.
type Health struct {
	RedisAvailable bool
	RedisLatency   time.Duration
	StoreAvailable bool
	StoreLatency   time.Duration
}

// RunActiveSessions returns the refresh jtis of the user's live sessions.
func RunActiveSessions(ctx context.Context, userID string, deps IntrospectionDeps) ([]string, error) {
	if deps.Sessions == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if userID == "" {
		return nil, deps.Errors.UserNotFound
	}
	return deps.Sessions.ActiveSessionIDs(ctx, userID)
}

// RunHealth pings Redis and the credential store. It never returns an error;
// failures show up as unavailable components.
func RunHealth(ctx context.Context, deps IntrospectionDeps) Health {
	var h Health
	if deps.Sessions != nil {
		latency, err := deps.Sessions.Ping(ctx)
		h.RedisAvailable = err == nil
		h.RedisLatency = latency
	}
	if deps.Users != nil {
		start := time.Now()
		err := deps.Users.Ping(ctx)
		h.StoreLatency = time.Since(start)
		h.StoreAvailable = err == nil
	}
	return h
}
