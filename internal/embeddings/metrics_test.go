package embeddings

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
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

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := newMetrics(mp.Meter(instrumentationName), ProviderGemini, nil)
	ctx := context.Background()

	m.Record(ctx, "gemini-embedding-001", OpDocuments, 120*time.Millisecond, 32, nil)
	m.Record(ctx, "gemini-embedding-001", OpDocuments, 80*time.Millisecond, 8, nil)
	m.Record(ctx, "gemini-embedding-001", OpQuery, 20*time.Millisecond, 1, nil)
	m.Record(ctx, "gemini-embedding-001", OpDocuments, 5*time.Second, 16, fmt.Errorf("call: %w", context.DeadlineExceeded))

	got := collect(t, reader)

	duration, ok := got["legisrag.embedding.duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var calls uint64
	for _, dp := range duration.DataPoints {
		calls += dp.Count
	}
	assert.Equal(t, uint64(4), calls)
	assert.Len(t, duration.DataPoints, 2, "one series per operation")

	texts, ok := got["legisrag.embedding.texts_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, texts.DataPoints, 1, "queries and failed calls are not counted")
	assert.Equal(t, int64(40), texts.DataPoints[0].Value)

	errs, ok := got["legisrag.embedding.errors_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, errs.DataPoints, 1)
	reason, _ := errs.DataPoints[0].Attributes.Value("reason")
	assert.Equal(t, "timeout", reason.AsString())
	provider, _ := errs.DataPoints[0].Attributes.Value("provider")
	assert.Equal(t, ProviderGemini, provider.AsString())
}

func TestErrorReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: context.DeadlineExceeded, want: "timeout"},
		{err: fmt.Errorf("wrapped: %w", context.Canceled), want: "canceled"},
		{err: fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput), want: "empty_input"},
		{err: errors.New("status 503"), want: "provider"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorReason(tt.err), tt.err.Error())
	}
}

func TestNewMetrics_GlobalMeter(t *testing.T) {
	m := NewMetrics(ProviderHash, nil)
	require.NotNil(t, m)
	// The global no-op meter accepts records without a reader.
	m.Record(context.Background(), "hash-64", OpQuery, time.Millisecond, 1, nil)
}
