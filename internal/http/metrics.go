package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/legisrag/internal/http"

// apiMetrics counts API requests per route and the error kinds they fail with.
type apiMetrics struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
	failures metric.Int64Counter
}

func newAPIMetrics(logger *zap.Logger) *apiMetrics {
	return newAPIMetricsWith(otel.Meter(instrumentationName), logger)
}

func newAPIMetricsWith(meter metric.Meter, logger *zap.Logger) *apiMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &apiMetrics{}
	var err error

	if m.requests, err = meter.Int64Counter(
		"legisrag.http.requests_total",
		metric.WithDescription("API requests by route, method and status"),
		metric.WithUnit("{request}"),
	); err != nil {
		logger.Warn("http requests counter unavailable", zap.Error(err))
	}
	// Analyze latency is dominated by the generation call, so the upper
	// buckets reach past a minute.
	if m.latency, err = meter.Float64Histogram(
		"legisrag.http.request_duration_seconds",
		metric.WithDescription("API request latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	); err != nil {
		logger.Warn("http latency histogram unavailable", zap.Error(err))
	}
	if m.inFlight, err = meter.Int64UpDownCounter(
		"legisrag.http.in_flight_requests",
		metric.WithDescription("Requests being served"),
		metric.WithUnit("{request}"),
	); err != nil {
		logger.Warn("http in-flight gauge unavailable", zap.Error(err))
	}
	if m.failures, err = meter.Int64Counter(
		"legisrag.http.failures_total",
		metric.WithDescription("Failed API requests by route and error kind"),
		metric.WithUnit("{request}"),
	); err != nil {
		logger.Warn("http failures counter unavailable", zap.Error(err))
	}
	return m
}

// middleware must run inside requestLogger so it sees the handler's error
// before echo writes it.
func (m *apiMetrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			ctx := context.WithoutCancel(c.Request().Context())
			if m.inFlight != nil {
				m.inFlight.Add(ctx, 1)
				defer m.inFlight.Add(ctx, -1)
			}

			err := next(c)

			route := routeLabel(c.Path())
			status, kind := outcome(c, err)
			attrs := metric.WithAttributes(
				attribute.String("route", route),
				attribute.String("method", c.Request().Method),
				attribute.Int("status", status),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.latency != nil {
				m.latency.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if kind != "" && m.failures != nil {
				m.failures.Add(ctx, 1, metric.WithAttributes(
					attribute.String("route", route),
					attribute.String("kind", kind),
				))
			}
			return err
		}
	}
}

// outcome returns the status the response will carry and, for failures,
// the ErrorResponse kind.
func outcome(c echo.Context, err error) (int, string) {
	if err == nil {
		status := c.Response().Status
		if !c.Response().Committed || status == 0 {
			// Nothing written; net/http answers 200.
			status = http.StatusOK
		}
		if status >= http.StatusBadRequest {
			return status, kindInternal
		}
		return status, ""
	}
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		return http.StatusInternalServerError, kindInternal
	}
	switch msg := he.Message.(type) {
	case ErrorResponse:
		return he.Code, msg.Kind
	default:
		if he.Code == http.StatusNotFound || he.Code == http.StatusMethodNotAllowed {
			return he.Code, kindInvalidRequest
		}
		return he.Code, kindInternal
	}
}

// routeLabel maps the matched route onto the metric label. Routes are fixed
// so the echo pattern is already low-cardinality; unmatched requests share
// one label.
func routeLabel(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}
