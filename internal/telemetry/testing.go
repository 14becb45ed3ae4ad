package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

// Recorder is a Telemetry backed by in-memory span and metric readers.
//
// Package-level tracers bind to the first global provider set in a process,
// so a test binary should Install at most one Recorder.
type Recorder struct {
	*Telemetry

	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
}

// NewRecorder returns an enabled, healthy Recorder.
func NewRecorder() *Recorder {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	spans := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	tel := &Telemetry{
		config:         cfg,
		logger:         zap.NewNop(),
		tracerProvider: trace.NewTracerProvider(trace.WithSpanProcessor(spans)),
		meterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
	tel.healthy.Store(true)
	return &Recorder{Telemetry: tel, spans: spans, reader: reader}
}

// Install sets the recorder's providers as the global ones until the test
// ends.
func (r *Recorder) Install(tb testing.TB) {
	tb.Helper()
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	otel.SetTracerProvider(r.tracerProvider)
	otel.SetMeterProvider(r.meterProvider)
	tb.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})
}

// Ended returns the finished spans in end order.
func (r *Recorder) Ended() []trace.ReadOnlySpan {
	return r.spans.Ended()
}

// Span returns the last ended span called name, or nil.
func (r *Recorder) Span(name string) trace.ReadOnlySpan {
	ended := r.Ended()
	for i := len(ended) - 1; i >= 0; i-- {
		if ended[i].Name() == name {
			return ended[i]
		}
	}
	return nil
}

// SpanNames lists the ended spans by name.
func (r *Recorder) SpanNames() []string {
	ended := r.Ended()
	names := make([]string, 0, len(ended))
	for _, s := range ended {
		names = append(names, s.Name())
	}
	return names
}

// Attrs returns the attributes of the span called name as plain Go values,
// keyed by attribute name. It fails tb when no such span ended.
func (r *Recorder) Attrs(tb testing.TB, name string) map[string]any {
	tb.Helper()
	span := r.Span(name)
	if span == nil {
		tb.Fatalf("span %q not recorded; ended spans: %v", name, r.SpanNames())
		return nil
	}
	out := make(map[string]any, len(span.Attributes()))
	for _, kv := range span.Attributes() {
		out[string(kv.Key)] = plainValue(kv.Value)
	}
	return out
}

// Collect reads the current metric state.
func (r *Recorder) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	err := r.reader.Collect(ctx, &rm)
	return rm, err
}

// Metric returns the collected metric called name.
func (r *Recorder) Metric(ctx context.Context, name string) (metricdata.Metrics, bool) {
	rm, err := r.Collect(ctx)
	if err != nil {
		return metricdata.Metrics{}, false
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func plainValue(v attribute.Value) any {
	switch v.Type() {
	case attribute.STRING:
		return v.AsString()
	case attribute.INT64:
		return v.AsInt64()
	case attribute.FLOAT64:
		return v.AsFloat64()
	case attribute.BOOL:
		return v.AsBool()
	default:
		return v.AsInterface()
	}
}
