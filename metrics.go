package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID defines a public type used by authcore APIs.
//
// MetricID values index the fixed counter array; the numbering is stable within a release.
type MetricID uint16

const (
	// MetricRegisterSuccess counts accounts created through registration.
	MetricRegisterSuccess MetricID = iota
	// MetricRegisterDuplicate counts registrations rejected for an existing email.
	MetricRegisterDuplicate
	// MetricLoginSuccess counts logins that issued a token pair.
	MetricLoginSuccess
	// MetricLoginFailure counts logins rejected for bad credentials or an inactive account.
	MetricLoginFailure
	// MetricLoginRateLimited counts logins rejected by the per-IP limiter.
	MetricLoginRateLimited
	// MetricRefreshSuccess counts successful refresh rotations.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh attempts.
	MetricRefreshFailure
	// MetricRefreshReuseDetected counts presentations of already-rotated refresh tokens.
	MetricRefreshReuseDetected
	// MetricAuthenticateSuccess counts bearer tokens resolved to a principal.
	MetricAuthenticateSuccess
	// MetricAuthenticateFailure counts bearer tokens rejected by the authentication gate.
	MetricAuthenticateFailure
	// MetricAuthorizationDenied counts role checks that failed.
	MetricAuthorizationDenied
	// MetricSessionCreated counts sessions written to the registry.
	MetricSessionCreated
	// MetricSessionInvalidated counts sessions ended by mass revocation.
	MetricSessionInvalidated
	// MetricLogout counts single-session logouts.
	MetricLogout
	// MetricLogoutAll counts logout-everywhere calls.
	MetricLogoutAll
	// MetricPasswordResetRequest counts accepted forgot-password requests.
	MetricPasswordResetRequest
	// MetricPasswordResetRateLimited counts throttled forgot-password requests.
	MetricPasswordResetRateLimited
	// MetricPasswordResetConfirmSuccess counts redeemed reset tokens.
	MetricPasswordResetConfirmSuccess
	// MetricPasswordResetConfirmFailure counts rejected reset redemptions.
	MetricPasswordResetConfirmFailure
	// MetricPasswordHashUpgraded counts hashes rewritten at login.
	MetricPasswordHashUpgraded
	// MetricRoleChanged counts role updates.
	MetricRoleChanged
	// MetricAccountDeactivated counts deactivations.
	MetricAccountDeactivated
	// MetricNotifierFailure counts reset notifier failures and timeouts.
	MetricNotifierFailure
	// MetricStoreUnavailable counts operations failed closed on a store outage.
	MetricStoreUnavailable
	// MetricAuditDropped counts audit events discarded because the buffer was full.
	MetricAuditDropped
	// MetricAuditWriteFailed counts audit events the sink rejected.
	MetricAuditWriteFailed
	// MetricAuthenticateLatency is the authentication gate latency histogram.
	MetricAuthenticateLatency
	// MetricLoginLatency is the login latency histogram.
	MetricLoginLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics defines a public type used by authcore APIs.
//
// Metrics is a fixed array of padded atomic counters plus latency histograms. A nil
// or disabled Metrics ignores every call.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot defines a public type used by authcore APIs.
//
// MetricsSnapshot is a point-in-time copy; Histograms holds per-bucket (non-cumulative) counts.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a [Metrics] configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc describes the inc operation and its observable behavior.
//
// Inc is a single atomic add and can be used concurrently.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe describes the observe operation and its observable behavior.
//
// Observe records d into the histogram for id. Only latency metric ids accept observations.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if !isLatencyMetric(id) {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current counter for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot returns empty maps when metrics are disabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if isLatencyMetric(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range latencyMetrics {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

var latencyMetrics = [...]MetricID{MetricAuthenticateLatency, MetricLoginLatency}

func isLatencyMetric(id MetricID) bool {
	return id == MetricAuthenticateLatency || id == MetricLoginLatency
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
