package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/legisrag/internal/corpus"
	"github.com/fyrsmithlabs/legisrag/internal/extraction"
	"github.com/fyrsmithlabs/legisrag/internal/retrieval"
)

func newTestMetrics(t *testing.T) (*toolMetrics, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return newToolMetricsWith(mp.Meter(instrumentationName), zap.NewNop()), reader
}

func collect(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumInt64(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestToolMetrics_Track(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.track(ctx, ToolRetrieveLegislation)(nil)
	m.track(ctx, ToolRetrieveLegislation)(fmt.Errorf("search: %w", retrieval.ErrEmptyCorpus))

	got := collect(t, reader)
	require.Contains(t, got, "legisrag.mcp.tool.calls_total")
	require.Contains(t, got, "legisrag.mcp.tool.duration_seconds")
	require.Contains(t, got, "legisrag.mcp.tool.errors_total")

	assert.Equal(t, int64(2), sumInt64(t, got["legisrag.mcp.tool.calls_total"]))
	assert.Equal(t, int64(1), sumInt64(t, got["legisrag.mcp.tool.errors_total"]))
	assert.Zero(t, sumInt64(t, got["legisrag.mcp.tool.in_flight"]))

	errs := got["legisrag.mcp.tool.errors_total"].Data.(metricdata.Sum[int64])
	require.Len(t, errs.DataPoints, 1)
	reason, ok := errs.DataPoints[0].Attributes.Value(attribute.Key("reason"))
	require.True(t, ok)
	assert.Equal(t, reasonEmptyCorpus, reason.AsString())
}

func TestToolMetrics_InFlight(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx, cancel := context.WithCancel(context.Background())

	first := m.track(ctx, ToolAnalyzeInvoice)
	second := m.track(ctx, ToolAnalyzeInvoice)
	cancel()
	first(context.Canceled)

	got := collect(t, reader)
	assert.Equal(t, int64(1), sumInt64(t, got["legisrag.mcp.tool.in_flight"]))
	second(nil)
	got = collect(t, reader)
	assert.Zero(t, sumInt64(t, got["legisrag.mcp.tool.in_flight"]))
	assert.Equal(t, int64(2), sumInt64(t, got["legisrag.mcp.tool.calls_total"]))
}

func TestToolMetrics_NilInstruments(t *testing.T) {
	m := &toolMetrics{}
	assert.NotPanics(t, func() {
		m.track(context.Background(), "tool")(errors.New("boom"))
	})
}

func TestNewToolMetrics_NilLogger(t *testing.T) {
	assert.NotNil(t, newToolMetrics(nil))
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"invalid input", fmt.Errorf("%w: path is required", errInvalidInput), reasonValidation},
		{"invalid query", fmt.Errorf("%w: no query terms", retrieval.ErrInvalidQuery), reasonValidation},
		{"empty invoice", extraction.ErrEmptyInvoice, reasonValidation},
		{"empty corpus", fmt.Errorf("%w: category ISS", retrieval.ErrEmptyCorpus), reasonEmptyCorpus},
		{"embedding provider", fmt.Errorf("%w: quota", retrieval.ErrEmbeddingProvider), reasonEmbeddingProvider},
		{"corpus load", fmt.Errorf("reload: %w", corpus.ErrCorpusLoad), reasonCorpusLoad},
		{"deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), reasonTimeout},
		{"canceled", context.Canceled, reasonCanceled},
		{"other", errors.New("disk on fire"), reasonInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, categorizeError(tt.err))
		})
	}
}
