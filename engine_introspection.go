package authcore

import "context"

// ActiveSessions returns the session ids (refresh jtis) of userID's live sessions.
func (e *Engine) ActiveSessions(ctx context.Context, userID string) ([]string, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ids, err := e.flow.ActiveSessions(ctx, userID)
	return ids, e.settle(err)
}

// Health pings Redis and the credential store, each bounded by the store
// operation timeout.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if !e.ready() {
		return HealthStatus{}
	}
	h := e.flow.Health(ctx)
	return HealthStatus{
		RedisAvailable: h.RedisAvailable,
		RedisLatency:   h.RedisLatency,
		StoreAvailable: h.StoreAvailable,
		StoreLatency:   h.StoreLatency,
	}
}
