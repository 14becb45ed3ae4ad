package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SearchDuration tracks index search latency.
	// Labels: backend (flat, chromem)
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "legisrag",
			Subsystem: "vectorstore",
			Name:      "search_duration_seconds",
			Help:      "Duration of nearest-neighbour searches in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"backend"},
	)

	// SearchesTotal counts index searches.
	// Labels: backend, result (success, error)
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legisrag",
			Subsystem: "vectorstore",
			Name:      "searches_total",
			Help:      "Total number of nearest-neighbour searches",
		},
		[]string{"backend", "result"},
	)

	// IndexedVectors records the size of every index built.
	IndexedVectors = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "legisrag",
			Subsystem: "vectorstore",
			Name:      "index_vectors",
			Help:      "Number of vectors per built index",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		},
		[]string{"backend"},
	)
)

func observeSearch(backend Backend, start time.Time, err error) {
	SearchDuration.WithLabelValues(string(backend)).Observe(time.Since(start).Seconds())
	result := "success"
	if err != nil {
		result = "error"
	}
	SearchesTotal.WithLabelValues(string(backend), result).Inc()
}
