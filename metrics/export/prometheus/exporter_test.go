package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/sentinelgrid/authcore"
)

type fakeSource struct {
	snapshot authcore.MetricsSnapshot
}

func (f fakeSource) MetricsSnapshot() authcore.MetricsSnapshot { return f.snapshot }

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	return rec.Body.String()
}

func TestCollectorRendersCountersAndHistograms(t *testing.T) {
	c := NewCollector(fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters: map[authcore.MetricID]uint64{
			authcore.MetricLoginSuccess:         7,
			authcore.MetricRefreshReuseDetected: 1,
		},
		Histograms: map[authcore.MetricID][]uint64{
			authcore.MetricAuthenticateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
		},
	}})

	out := scrape(t, c.Handler())
	for _, want := range []string{
		"authcore_login_success_total 7",
		"authcore_refresh_reuse_detected_total 1",
		"authcore_store_unavailable_total 0",
		`authcore_authenticate_latency_seconds_bucket{le="0.005"} 1`,
		`authcore_authenticate_latency_seconds_bucket{le="+Inf"} 36`,
		"authcore_authenticate_latency_seconds_count 36",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "authcore_login_latency_seconds") {
		t.Fatal("histograms absent from the snapshot must not be emitted")
	}
}

func TestCollectorRegistersOnCallerRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	if err := reg.Register(NewCollector(fakeSource{})); err != nil {
		t.Fatalf("register: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected counter families from an empty snapshot")
	}
}

func BenchmarkCollect(b *testing.B) {
	c := NewCollector(fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters: map[authcore.MetricID]uint64{
			authcore.MetricLoginSuccess:   1000,
			authcore.MetricLoginFailure:   40,
			authcore.MetricRefreshSuccess: 800,
		},
		Histograms: map[authcore.MetricID][]uint64{
			authcore.MetricLoginLatency: {10, 20, 30, 40, 50, 60, 70, 80},
		},
	}})
	reg := prom.NewRegistry()
	reg.MustRegister(c)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = reg.Gather()
	}
}
