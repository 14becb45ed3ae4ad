package mcp

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/legisrag/internal/corpus"
	"github.com/fyrsmithlabs/legisrag/internal/extraction"
	"github.com/fyrsmithlabs/legisrag/internal/retrieval"
)

const instrumentationName = "github.com/fyrsmithlabs/legisrag/internal/mcp"

// Error reasons attached to tool errors and the errors metric.
const (
	reasonValidation        = "validation_error"
	reasonEmptyCorpus       = "empty_corpus"
	reasonEmbeddingProvider = "embedding_provider"
	reasonCorpusLoad        = "corpus_load"
	reasonTimeout           = "timeout"
	reasonCanceled          = "canceled"
	reasonInternal          = "internal_error"
)

// toolMetrics records MCP tool calls.
type toolMetrics struct {
	calls    metric.Int64Counter
	latency  metric.Float64Histogram
	failures metric.Int64Counter
	inFlight metric.Int64UpDownCounter
}

func newToolMetrics(logger *zap.Logger) *toolMetrics {
	return newToolMetricsWith(otel.Meter(instrumentationName), logger)
}

func newToolMetricsWith(meter metric.Meter, logger *zap.Logger) *toolMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &toolMetrics{}
	var err error

	if m.calls, err = meter.Int64Counter(
		"legisrag.mcp.tool.calls_total",
		metric.WithDescription("MCP tool calls by tool"),
		metric.WithUnit("{call}"),
	); err != nil {
		logger.Warn("mcp calls counter unavailable", zap.Error(err))
	}
	if m.latency, err = meter.Float64Histogram(
		"legisrag.mcp.tool.duration_seconds",
		metric.WithDescription("MCP tool call latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	); err != nil {
		logger.Warn("mcp latency histogram unavailable", zap.Error(err))
	}
	if m.failures, err = meter.Int64Counter(
		"legisrag.mcp.tool.errors_total",
		metric.WithDescription("Failed MCP tool calls by tool and reason"),
		metric.WithUnit("{error}"),
	); err != nil {
		logger.Warn("mcp errors counter unavailable", zap.Error(err))
	}
	if m.inFlight, err = meter.Int64UpDownCounter(
		"legisrag.mcp.tool.in_flight",
		metric.WithDescription("MCP tool calls being served"),
		metric.WithUnit("{call}"),
	); err != nil {
		logger.Warn("mcp in-flight gauge unavailable", zap.Error(err))
	}
	return m
}

// track marks a call to tool as started. The returned func ends it and
// records err, if any, under its reason.
func (m *toolMetrics) track(ctx context.Context, tool string) func(err error) {
	start := time.Now()
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	// Record even when the client cancels the call.
	ctx = context.WithoutCancel(ctx)
	if m.inFlight != nil {
		m.inFlight.Add(ctx, 1, attrs)
	}
	return func(err error) {
		if m.inFlight != nil {
			m.inFlight.Add(ctx, -1, attrs)
		}
		if m.calls != nil {
			m.calls.Add(ctx, 1, attrs)
		}
		if m.latency != nil {
			m.latency.Record(ctx, time.Since(start).Seconds(), attrs)
		}
		if err != nil && m.failures != nil {
			m.failures.Add(ctx, 1, metric.WithAttributes(
				attribute.String("tool", tool),
				attribute.String("reason", categorizeError(err)),
			))
		}
	}
}

// categorizeError maps err onto the retrieval error taxonomy.
func categorizeError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errInvalidInput),
		errors.Is(err, retrieval.ErrInvalidQuery),
		errors.Is(err, extraction.ErrEmptyInvoice):
		return reasonValidation
	case errors.Is(err, retrieval.ErrEmptyCorpus):
		return reasonEmptyCorpus
	case errors.Is(err, retrieval.ErrEmbeddingProvider):
		return reasonEmbeddingProvider
	case errors.Is(err, corpus.ErrCorpusLoad):
		return reasonCorpusLoad
	case errors.Is(err, context.DeadlineExceeded):
		return reasonTimeout
	case errors.Is(err, context.Canceled):
		return reasonCanceled
	default:
		return reasonInternal
	}
}
