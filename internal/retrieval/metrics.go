package retrieval

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BuildDuration tracks index build latency, embedding included.
	BuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "legisrag",
			Subsystem: "retrieval",
			Name:      "index_build_duration_seconds",
			Help:      "Duration of similarity index builds in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)

	// SegmentsEmbedded counts segments embedded during builds. A segment
	// is counted once per process.
	SegmentsEmbedded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "legisrag",
			Subsystem: "retrieval",
			Name:      "segments_embedded_total",
			Help:      "Total number of corpus segments embedded",
		},
	)

	// RetrieveDuration tracks retrieval latency, query embedding included.
	RetrieveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "legisrag",
			Subsystem: "retrieval",
			Name:      "retrieve_duration_seconds",
			Help:      "Duration of retrievals in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// Operations counts builds and retrievals by outcome.
	// Labels: operation (build, retrieve), result (success, empty_corpus,
	// embedding_provider, invalid_query, error)
	Operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legisrag",
			Subsystem: "retrieval",
			Name:      "operations_total",
			Help:      "Total number of index builds and retrievals by result",
		},
		[]string{"operation", "result"},
	)

	// CachedIndexes reports how many indexes the cache holds.
	CachedIndexes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "legisrag",
			Subsystem: "retrieval",
			Name:      "cached_indexes",
			Help:      "Number of similarity indexes held by the index cache",
		},
	)
)

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrEmptyCorpus):
		return "empty_corpus"
	case errors.Is(err, ErrEmbeddingProvider):
		return "embedding_provider"
	case errors.Is(err, ErrInvalidQuery):
		return "invalid_query"
	default:
		return "error"
	}
}
