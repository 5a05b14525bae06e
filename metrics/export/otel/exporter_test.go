package otel

import (
	"context"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/sentinelgrid/authcore"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot authcore.MetricsSnapshot
}

func (f *fakeSource) MetricsSnapshot() authcore.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := authcore.MetricsSnapshot{
		Counters:   make(map[authcore.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[authcore.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findInt64(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			}
		}
	}
	return 0, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters: map[authcore.MetricID]uint64{
			authcore.MetricLoginSuccess: 3,
			authcore.MetricAuditDropped: 1,
		},
		Histograms: map[authcore.MetricID][]uint64{
			authcore.MetricAuthenticateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
		},
	}}

	exp, err := NewExporter(provider.Meter("authcore-test"), src)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	cases := map[string]int64{
		"authcore_login_success_total":                          3,
		"authcore_audit_dropped_total":                          1,
		"authcore_logout_total":                                 0,
		"authcore_authenticate_latency_seconds_bucket_le_0_005": 1,
		"authcore_authenticate_latency_seconds_count":           8,
		"authcore_login_latency_seconds_count":                  0,
	}
	for name, want := range cases {
		got, ok := findInt64(rm, name)
		if !ok {
			t.Fatalf("metric %s not collected", name)
		}
		if got != want {
			t.Fatalf("%s: expected %d, got %d", name, want, got)
		}
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader()
	if _, err := NewExporter(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewExporter(provider.Meter("authcore-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
}

func TestExporterStopsObservingAfterClose(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters: map[authcore.MetricID]uint64{authcore.MetricLogout: 2},
	}}
	exp, err := NewExporter(provider.Meter("authcore-test"), src)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	if err := exp.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if _, ok := findInt64(rm, "authcore_logout_total"); ok {
		t.Fatal("closed exporter must not report observations")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters:   map[authcore.MetricID]uint64{authcore.MetricLoginSuccess: 1},
		Histograms: map[authcore.MetricID][]uint64{authcore.MetricLoginLatency: {1, 0, 0, 0, 0, 0, 0, 0}},
	}}
	exp, err := NewExporter(provider.Meter("authcore-test"), src)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[authcore.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
