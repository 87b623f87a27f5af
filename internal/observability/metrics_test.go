package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordAggregateOutcomes(t *testing.T) {
	m := NewMetrics()
	m.ObserveAggregateOperation("Documents.Document.Update", "success", 20*time.Millisecond)
	m.IncAggregateConflict("Documents.Document.Update")
	m.IncAggregateConflict("Documents.Document.Update")
	m.IncSideEffectFailure("search_sync")
	m.AddCacheBumps(3)
	m.AddCacheBumps(-1)

	if got := testutil.ToFloat64(m.aggregateConflict.WithLabelValues("Documents.Document.Update")); got != 2 {
		t.Fatalf("conflicts: want=2 got=%v", got)
	}
	if got := testutil.ToFloat64(m.sideEffectFailure.WithLabelValues("search_sync")); got != 1 {
		t.Fatalf("side effect failures: want=1 got=%v", got)
	}
	if got := testutil.ToFloat64(m.cacheBumps); got != 3 {
		t.Fatalf("cache bumps: want=3 got=%v", got)
	}
	if got := testutil.CollectAndCount(m.aggregateLatency); got != 1 {
		t.Fatalf("latency series: want=1 got=%d", got)
	}
}

func TestMetricsHandlerExposesNamespace(t *testing.T) {
	m := NewMetrics()
	m.IncSearchSync("ok")
	m.IncVersionCache(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, name := range []string{"cordee_search_sync_total", "cordee_history_version_cache_total", "cordee_cache_bumps_total"} {
		if !strings.Contains(body, name) {
			t.Fatalf("missing %s in exposition", name)
		}
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveAggregateOperation("op", "success", time.Second)
	m.IncAggregateRetry("op")
	m.IncSearchSync("failed")
	m.SetSearchRetryDepth(4)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 503 {
		t.Fatalf("status: want=503 got=%d", rec.Code)
	}
}

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" api-key = abc ,broken, x=")
	if len(got) != 1 || got["api-key"] != "abc" {
		t.Fatalf("headers: got=%v", got)
	}
	if ParseHeaders("") != nil {
		t.Fatalf("empty headers should be nil")
	}
}
