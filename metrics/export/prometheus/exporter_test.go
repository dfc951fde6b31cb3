package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	connectshare "github.com/alinasr783/connect-share"
)

type fakeSource struct {
	snapshot  connectshare.MetricsSnapshot
	dropped   uint64
	mounted   int
	listening bool
}

func (f fakeSource) MetricsSnapshot() connectshare.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                          { return f.dropped }
func (f fakeSource) Mounted() int                                  { return f.mounted }
func (f fakeSource) Listening() bool                               { return f.listening }

func emptySnapshot() connectshare.MetricsSnapshot {
	return connectshare.MetricsSnapshot{
		Counters:   map[connectshare.MetricID]uint64{},
		Histograms: map[connectshare.MetricID][]uint64{},
	}
}

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporter(fakeSource{snapshot: emptySnapshot(), mounted: 2})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
	if got := NewExporter().Render(); got != "" {
		t.Fatalf("expected empty output without sources, got:\n%s", got)
	}
}

func TestRenderIncludesCountersHistogramAndGauges(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: connectshare.MetricsSnapshot{
			Counters: map[connectshare.MetricID]uint64{
				connectshare.MetricSessionFetch:   7,
				connectshare.MetricProfilePatched: 2,
			},
			Histograms: map[connectshare.MetricID][]uint64{
				connectshare.MetricFetchLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped:   2,
		mounted:   3,
		listening: true,
	})

	out := exp.Render()
	for _, want := range []string{
		"connectshare_session_fetch_total 7",
		"connectshare_profile_patched_total 2",
		"connectshare_teardown_error_total 0",
		"connectshare_session_fetch_latency_seconds_bucket{le=\"0.005\"} 1",
		"connectshare_session_fetch_latency_seconds_bucket{le=\"+Inf\"} 36",
		"connectshare_session_fetch_latency_seconds_count 36",
		"connectshare_audit_dropped_total 2",
		"# TYPE connectshare_mounted_consumers gauge",
		"connectshare_mounted_consumers 3",
		"connectshare_auth_listeners 1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderSumsSources(t *testing.T) {
	a := fakeSource{
		snapshot: connectshare.MetricsSnapshot{
			Counters:   map[connectshare.MetricID]uint64{connectshare.MetricAuthSignedIn: 1},
			Histograms: map[connectshare.MetricID][]uint64{connectshare.MetricFetchLatency: {1}},
		},
		mounted:   1,
		listening: true,
	}
	b := fakeSource{
		snapshot: connectshare.MetricsSnapshot{
			Counters:   map[connectshare.MetricID]uint64{connectshare.MetricAuthSignedIn: 4},
			Histograms: map[connectshare.MetricID][]uint64{connectshare.MetricFetchLatency: {0, 2}},
		},
		mounted: 2,
	}

	out := NewExporter(a, nil, b).Render()
	for _, want := range []string{
		"connectshare_auth_signed_in_total 5",
		"connectshare_session_fetch_latency_seconds_bucket{le=\"0.01\"} 3",
		"connectshare_mounted_consumers 3",
		"connectshare_auth_listeners 1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: connectshare.MetricsSnapshot{
			Counters:   map[connectshare.MetricID]uint64{connectshare.MetricSessionFetch: 1},
			Histograms: map[connectshare.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewExporter(fakeSource{
		snapshot: connectshare.MetricsSnapshot{
			Counters: map[connectshare.MetricID]uint64{
				connectshare.MetricSessionFetch:        1000,
				connectshare.MetricSessionFetchFailure: 40,
				connectshare.MetricAuthSignedIn:        800,
				connectshare.MetricAuthTokenRefreshed:  600,
				connectshare.MetricProfilePatched:      20,
			},
			Histograms: map[connectshare.MetricID][]uint64{
				connectshare.MetricFetchLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}

func TestExporterFuncRelistsSources(t *testing.T) {
	src := fakeSource{
		snapshot: connectshare.MetricsSnapshot{
			Counters:   map[connectshare.MetricID]uint64{connectshare.MetricSessionFetch: 1},
			Histograms: map[connectshare.MetricID][]uint64{},
		},
		mounted: 1,
	}
	var live []MetricsSource
	exp := NewExporterFunc(func() []MetricsSource { return live })

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output with no live sources, got:\n%s", got)
	}

	live = []MetricsSource{src, src}
	out := exp.Render()
	for _, want := range []string{"connectshare_session_fetch_total 2", "connectshare_mounted_consumers 2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}
