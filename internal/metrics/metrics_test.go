package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveInference(t *testing.T) {
	before := testutil.ToFloat64(InferredAtoms.WithLabelValues("test_rule"))
	fixBefore := testutil.ToFloat64(InferenceRuns.WithLabelValues("fixpoint"))

	ObserveInference(time.Now(), true, map[string]int{"test_rule": 3})

	if got := testutil.ToFloat64(InferredAtoms.WithLabelValues("test_rule")) - before; got != 3 {
		t.Errorf("inferred atoms delta = %v, want 3", got)
	}
	if got := testutil.ToFloat64(InferenceRuns.WithLabelValues("fixpoint")) - fixBefore; got != 1 {
		t.Errorf("fixpoint runs delta = %v, want 1", got)
	}
}

func TestObserveQuery(t *testing.T) {
	before := testutil.ToFloat64(QueriesTotal.WithLabelValues("unknown", "error"))
	ObserveQuery("", false)
	if got := testutil.ToFloat64(QueriesTotal.WithLabelValues("unknown", "error")) - before; got != 1 {
		t.Errorf("query delta = %v, want 1", got)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	AnalysisRuns.Inc()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/prometheus", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "holmes_analysis_runs_total") {
		t.Error("expected holmes_analysis_runs_total in output")
	}
}
