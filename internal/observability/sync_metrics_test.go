package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/riskibarqy/scouting-sync/internal/platform/ratelimit"
	"github.com/riskibarqy/scouting-sync/internal/platform/resilience"
)

func TestSyncMetrics_Counters(t *testing.T) {
	t.Parallel()

	metrics := NewSyncMetrics()
	metrics.ObserveCell("passing", "success")
	metrics.ObserveCell("passing", "success")
	metrics.ObserveCell("passing", "error")
	metrics.ObserveRecords("passing", 42)
	metrics.ObserveRun(3 * time.Second)
	metrics.ObserveDispatch(ratelimit.DispatchEvent{Seq: 1, QueueWait: 250 * time.Millisecond})

	if got := testutil.ToFloat64(metrics.cellsTotal.WithLabelValues("passing", "success")); got != 2 {
		t.Fatalf("expected 2 successful cells, got=%v", got)
	}
	if got := testutil.ToFloat64(metrics.cellsTotal.WithLabelValues("passing", "error")); got != 1 {
		t.Fatalf("expected 1 failed cell, got=%v", got)
	}
	if got := testutil.ToFloat64(metrics.recordsWritten.WithLabelValues("passing")); got != 42 {
		t.Fatalf("expected 42 records, got=%v", got)
	}
	if got := testutil.ToFloat64(metrics.runsTotal); got != 1 {
		t.Fatalf("expected 1 run, got=%v", got)
	}
	if got := testutil.ToFloat64(metrics.dispatchesTotal); got != 1 {
		t.Fatalf("expected 1 dispatch, got=%v", got)
	}
}

func TestSyncMetrics_BreakerState(t *testing.T) {
	t.Parallel()

	metrics := NewSyncMetrics()
	metrics.ObserveBreakerState("statsapi", resilience.CircuitStateClosed, resilience.CircuitStateOpen)
	if got := testutil.ToFloat64(metrics.breakerState.WithLabelValues("statsapi")); got != 1 {
		t.Fatalf("expected open breaker gauge 1, got=%v", got)
	}

	metrics.ObserveBreakerState("statsapi", resilience.CircuitStateHalfOpen, resilience.CircuitStateClosed)
	if got := testutil.ToFloat64(metrics.breakerState.WithLabelValues("statsapi")); got != 0 {
		t.Fatalf("expected closed breaker gauge 0, got=%v", got)
	}
}

func TestSyncMetrics_Handler(t *testing.T) {
	t.Parallel()

	metrics := NewSyncMetrics()
	metrics.ObserveCell("physical", "skipped")

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `scouting_sync_cells_total{domain="physical",outcome="skipped"} 1`) {
		t.Fatalf("metrics output missing cell counter:\n%s", body)
	}
}
