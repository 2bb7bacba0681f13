// Package metrics exposes Prometheus collectors for the reasoning pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// InferenceRuns counts forward chaining runs by whether they reached a fixpoint.
	InferenceRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "holmes_inference_runs_total",
		Help: "Total forward chaining runs by outcome",
	}, []string{"outcome"})

	// InferredAtoms counts atoms derived per rule.
	InferredAtoms = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "holmes_inferred_atoms_total",
		Help: "Total atoms derived by inference, by rule",
	}, []string{"rule_id"})

	// InferenceDuration tracks forward chaining latency.
	InferenceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "holmes_inference_duration_seconds",
		Help:    "Forward chaining duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	// QueriesTotal counts HGNNQL commands by command and status.
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "holmes_hgnnql_queries_total",
		Help: "Total HGNNQL queries by command and status",
	}, []string{"command", "status"})

	// AnalysisRuns counts complete analysis pipeline runs.
	AnalysisRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "holmes_analysis_runs_total",
		Help: "Total complete analysis runs",
	})

	// AtomsAdded counts atoms recorded through the case service by type.
	AtomsAdded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "holmes_atoms_added_total",
		Help: "Total atoms added through the case service, by atom type",
	}, []string{"atom_type"})

	// LeadsGenerated tracks leads from the latest training run by priority.
	LeadsGenerated = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "holmes_leads_generated",
		Help: "Leads produced by the latest training run, by priority",
	}, []string{"priority"})

	// ActiveCases tracks cases held by the registry.
	ActiveCases = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "holmes_active_cases",
		Help: "Cases currently held in memory",
	})
)

// ObserveInference records one forward chaining run.
func ObserveInference(start time.Time, fixpoint bool, firings map[string]int) {
	InferenceDuration.Observe(time.Since(start).Seconds())
	outcome := "capped"
	if fixpoint {
		outcome = "fixpoint"
	}
	InferenceRuns.WithLabelValues(outcome).Inc()
	for rule, n := range firings {
		InferredAtoms.WithLabelValues(rule).Add(float64(n))
	}
}

// ObserveQuery records one HGNNQL command.
func ObserveQuery(command string, ok bool) {
	if command == "" {
		command = "unknown"
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	QueriesTotal.WithLabelValues(command, status).Inc()
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HTTPRequests counts API requests by method, route pattern and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "holmes_http_requests_total",
	Help: "Total HTTP requests by method, route and status",
}, []string{"method", "route", "status"})
