package internaldefs

import (
	"github.com/sentinelgrid/authcore"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authcore.MetricRegisterSuccess, Name: "authcore_register_success_total", Help: "Accounts created through registration."},
	{ID: authcore.MetricRegisterDuplicate, Name: "authcore_register_duplicate_total", Help: "Registrations rejected for an existing email."},
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful login attempts."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed login attempts."},
	{ID: authcore.MetricLoginRateLimited, Name: "authcore_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: authcore.MetricRefreshReuseDetected, Name: "authcore_refresh_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: authcore.MetricAuthenticateSuccess, Name: "authcore_authenticate_success_total", Help: "Bearer tokens resolved to a principal."},
	{ID: authcore.MetricAuthenticateFailure, Name: "authcore_authenticate_failure_total", Help: "Bearer tokens rejected by the authentication gate."},
	{ID: authcore.MetricAuthorizationDenied, Name: "authcore_authorization_denied_total", Help: "Role checks that failed."},
	{ID: authcore.MetricSessionCreated, Name: "authcore_session_created_total", Help: "Created sessions."},
	{ID: authcore.MetricSessionInvalidated, Name: "authcore_session_invalidated_total", Help: "Sessions ended by mass revocation."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Single-session logout operations."},
	{ID: authcore.MetricLogoutAll, Name: "authcore_logout_all_total", Help: "Logout-all operations."},
	{ID: authcore.MetricPasswordResetRequest, Name: "authcore_password_reset_request_total", Help: "Accepted password reset requests."},
	{ID: authcore.MetricPasswordResetRateLimited, Name: "authcore_password_reset_rate_limited_total", Help: "Throttled password reset requests."},
	{ID: authcore.MetricPasswordResetConfirmSuccess, Name: "authcore_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: authcore.MetricPasswordResetConfirmFailure, Name: "authcore_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: authcore.MetricPasswordHashUpgraded, Name: "authcore_password_hash_upgraded_total", Help: "Password hashes rewritten at login."},
	{ID: authcore.MetricRoleChanged, Name: "authcore_role_changed_total", Help: "Role updates."},
	{ID: authcore.MetricAccountDeactivated, Name: "authcore_account_deactivated_total", Help: "Account deactivations."},
	{ID: authcore.MetricNotifierFailure, Name: "authcore_notifier_failure_total", Help: "Reset notifier failures and timeouts."},
	{ID: authcore.MetricStoreUnavailable, Name: "authcore_store_unavailable_total", Help: "Operations failed closed on a store outage."},
	{ID: authcore.MetricAuditDropped, Name: "authcore_audit_dropped_total", Help: "Dropped audit events due to dispatcher backpressure."},
	{ID: authcore.MetricAuditWriteFailed, Name: "authcore_audit_write_failed_total", Help: "Audit events rejected by the sink."},
}

var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricAuthenticateLatency, Name: "authcore_authenticate_latency_seconds", Help: "Authentication gate latency."},
	{ID: authcore.MetricLoginLatency, Name: "authcore_login_latency_seconds", Help: "Login latency."},
}

// HistogramBounds are the bucket upper bounds in seconds as rendered in
// Prometheus le labels. The last bucket is +Inf.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramUpperBounds are the finite bounds of HistogramBounds.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names the per-bucket OTel gauges.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
