package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestAPIMetrics_Middleware(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m := newAPIMetricsWith(mp.Meter(instrumentationName), nil)

	e := echo.New()
	e.Use(m.middleware())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.POST("/api/v1/retrieve", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, newErrorResponse(kindEmptyCorpus, "no corpus loaded"))
	})

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/health"},
		{http.MethodGet, "/health"},
		{http.MethodPost, "/api/v1/retrieve"},
	} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(r.method, r.path, nil))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	got := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			got[md.Name] = md
		}
	}

	requests, ok := got["legisrag.http.requests_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, requests.DataPoints, 2, "one series per route")
	byRoute := map[string]int64{}
	for _, dp := range requests.DataPoints {
		route, _ := dp.Attributes.Value("route")
		byRoute[route.AsString()] += dp.Value
		if route.AsString() == "/api/v1/retrieve" {
			status, _ := dp.Attributes.Value("status")
			assert.Equal(t, int64(http.StatusUnprocessableEntity), status.AsInt64())
		}
	}
	assert.Equal(t, map[string]int64{"/health": 2, "/api/v1/retrieve": 1}, byRoute)

	latency, ok := got["legisrag.http.request_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range latency.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)

	inFlight, ok := got["legisrag.http.in_flight_requests"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	for _, dp := range inFlight.DataPoints {
		assert.Zero(t, dp.Value)
	}

	failures, ok := got["legisrag.http.failures_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, failures.DataPoints, 1)
	kind, _ := failures.DataPoints[0].Attributes.Value("kind")
	assert.Equal(t, kindEmptyCorpus, kind.AsString())
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		commit     bool
		wantStatus int
		wantKind   string
	}{
		{name: "success", wantStatus: http.StatusOK},
		{name: "nothing written", status: 0, wantStatus: http.StatusOK},
		{name: "status set but not written", status: http.StatusAccepted, wantStatus: http.StatusOK},
		{name: "no content", status: http.StatusNoContent, commit: true, wantStatus: http.StatusNoContent},
		{name: "written error status", status: http.StatusServiceUnavailable, commit: true, wantStatus: http.StatusServiceUnavailable, wantKind: kindInternal},
		{
			name:       "typed error",
			err:        echo.NewHTTPError(http.StatusBadGateway, newErrorResponse(kindEmbeddingProvider, "down")),
			wantStatus: http.StatusBadGateway,
			wantKind:   kindEmbeddingProvider,
		},
		{name: "not found", err: echo.ErrNotFound, wantStatus: http.StatusNotFound, wantKind: kindInvalidRequest},
		{name: "plain error", err: context.Canceled, wantStatus: http.StatusInternalServerError, wantKind: kindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
			if tt.commit {
				c.Response().WriteHeader(tt.status)
			} else {
				c.Response().Status = tt.status
			}
			status, kind := outcome(c, tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantKind, kind)
		})
	}
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "unmatched", routeLabel(""))
	assert.Equal(t, "/api/v1/analyze", routeLabel("/api/v1/analyze"))
}
