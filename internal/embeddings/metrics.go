package embeddings

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/legisrag/internal/embeddings"

// Operation names an embedding call in metrics.
type Operation string

const (
	OpDocuments Operation = "embed_documents"
	OpQuery     Operation = "embed_query"
)

// Metrics records embedding calls of one provider.
type Metrics struct {
	provider string
	duration metric.Float64Histogram
	texts    metric.Int64Counter
	batch    metric.Int64Histogram
	errors   metric.Int64Counter
}

// NewMetrics creates instruments on the global meter provider. Instrument
// creation failures are logged and leave that instrument unrecorded.
func NewMetrics(provider string, logger *zap.Logger) *Metrics {
	return newMetrics(otel.Meter(instrumentationName), provider, logger)
}

func newMetrics(meter metric.Meter, provider string, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{provider: provider}
	var err error

	if m.duration, err = meter.Float64Histogram(
		"legisrag.embedding.duration_seconds",
		metric.WithDescription("Duration of embedding calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	); err != nil {
		logger.Warn("embedding duration histogram unavailable", zap.Error(err))
	}

	// Corpus texts embedded; with cached segment vectors this only grows
	// on the first build of a category.
	if m.texts, err = meter.Int64Counter(
		"legisrag.embedding.texts_total",
		metric.WithDescription("Texts sent to the embedding provider"),
		metric.WithUnit("{text}"),
	); err != nil {
		logger.Warn("embedding texts counter unavailable", zap.Error(err))
	}

	if m.batch, err = meter.Int64Histogram(
		"legisrag.embedding.batch_size",
		metric.WithDescription("Texts per embedding call"),
		metric.WithUnit("{text}"),
		metric.WithExplicitBucketBoundaries(1, 8, 16, 32, 64, 100, 250, 500),
	); err != nil {
		logger.Warn("embedding batch histogram unavailable", zap.Error(err))
	}

	if m.errors, err = meter.Int64Counter(
		"legisrag.embedding.errors_total",
		metric.WithDescription("Failed embedding calls by reason"),
		metric.WithUnit("{error}"),
	); err != nil {
		logger.Warn("embedding errors counter unavailable", zap.Error(err))
	}
	return m
}

// Record records one call of op over n texts.
func (m *Metrics) Record(ctx context.Context, model string, op Operation, d time.Duration, n int, err error) {
	attrs := metric.WithAttributes(
		attribute.String("provider", m.provider),
		attribute.String("model", model),
		attribute.String("operation", string(op)),
	)
	if m.duration != nil {
		m.duration.Record(ctx, d.Seconds(), attrs)
	}
	if n > 0 {
		if m.batch != nil {
			m.batch.Record(ctx, int64(n), attrs)
		}
		if m.texts != nil && err == nil && op == OpDocuments {
			m.texts.Add(ctx, int64(n), attrs)
		}
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", m.provider),
			attribute.String("operation", string(op)),
			attribute.String("reason", errorReason(err)),
		))
	}
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrEmptyInput):
		return "empty_input"
	default:
		return "provider"
	}
}
