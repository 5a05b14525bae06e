// Package prometheus exposes authcore engine metrics as a client_golang
// [prom.Collector].
//
// [NewCollector] reads [authcore.Engine.MetricsSnapshot] on every scrape.
// Counter names are prefixed authcore_*_total; latency histograms are
// authcore_authenticate_latency_seconds and authcore_login_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry. Callers pick the registry.
//   - Mutate engine state.
package prometheus
