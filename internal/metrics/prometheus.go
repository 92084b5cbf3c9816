package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Consensus run metrics
	ConsensusRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consilium_consensus_runs_total",
			Help: "Total number of consensus runs",
		},
		[]string{"status"}, // status: success|error
	)

	ConsensusDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "consilium_consensus_duration_seconds",
			Help:    "Consensus run duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	FinalScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "consilium_final_score",
			Help: "Latest consensus final score per symbol",
		},
		[]string{"symbol"},
	)

	ConsensusStrength = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "consilium_consensus_strength",
			Help: "Latest consensus strength per symbol",
		},
		[]string{"symbol"},
	)

	ConflictsDetected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "consilium_conflicts_detected_total",
			Help: "Total number of module conflicts flagged across runs",
		},
	)

	// Module metrics
	FallbackOpinions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consilium_fallback_opinions_total",
			Help: "Total fallback opinions emitted per module",
		},
		[]string{"module"},
	)

	ModuleInferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "consilium_module_inference_duration_seconds",
			Help:    "Per-module inference duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"module"},
	)
)

// Register registers all metrics with the default registry
func Register() {
	prometheus.MustRegister(
		ConsensusRuns,
		ConsensusDuration,
		FinalScore,
		ConsensusStrength,
		ConflictsDetected,
		FallbackOpinions,
		ModuleInferenceDuration,
	)
}

// Handler returns the HTTP handler exposing the metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
