package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Analyses counts finished analyses by outcome (ok, degraded,
	// generation_failed, error).
	Analyses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legisrag",
			Subsystem: "pipeline",
			Name:      "analyses_total",
			Help:      "Invoice analyses by outcome",
		},
		[]string{"outcome"},
	)

	// StageDuration observes each pipeline stage.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "legisrag",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of analysis stages",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)
)
