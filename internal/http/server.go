// Package http provides the legisrag HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/legisrag/internal/logging"
	"github.com/fyrsmithlabs/legisrag/internal/pipeline"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server provides HTTP endpoints for legisrag.
type Server struct {
	echo     *echo.Echo
	analyzer *pipeline.Analyzer
	logger   *zap.Logger
	config   *Config
	metrics  *apiMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// RequestTimeout bounds retrieve and analyze handlers. Zero disables it.
	RequestTimeout time.Duration
	// MaxBodyBytes limits request bodies.
	MaxBodyBytes int64
	// CorpusPath is reloaded by POST /api/v1/corpus/reload. Empty disables
	// the endpoint.
	CorpusPath string
	// Version is reported by GET /health.
	Version string
}

// DefaultMaxBodyBytes is used when Config.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 4 << 20

// NewServer creates a new HTTP server.
func NewServer(analyzer *pipeline.Analyzer, logger *zap.Logger, cfg *Config) (*Server, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9090,
		}
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		analyzer: analyzer,
		logger:   logger,
		config:   cfg,
		metrics:  newAPIMetrics(logger),
	}

	e.Use(middleware.Recover())
	e.Use(requestID())
	e.Use(s.requestLogger())
	e.Use(s.metrics.middleware())
	e.Use(s.bodyLimit())

	s.registerRoutes()
	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/retrieve", s.handleRetrieve)
	v1.POST("/analyze", s.handleAnalyze)
	v1.POST("/corpus/reload", s.handleReload)
}

// requestID honours a well-formed X-Request-ID and replaces anything else
// with a fresh UUID. The ID is stored in the request context for logging.
func requestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(echo.HeaderXRequestID)
			if logging.ValidateID(id) != nil {
				id = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
			return next(c)
		}
	}
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Let echo write the response so the logged status is final.
				c.Error(err)
			}

			fields := append(logging.ContextFields(c.Request().Context()),
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Int64("bytes_out", c.Response().Size),
				zap.Duration("duration", time.Since(start)),
			)
			if c.Response().Status >= http.StatusInternalServerError {
				s.logger.Warn("http request", append(fields, zap.Error(err))...)
			} else {
				s.logger.Info("http request", fields...)
			}
			return nil
		}
	}
}

func (s *Server) bodyLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.ContentLength > s.config.MaxBodyBytes {
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
					newErrorResponse(kindBodyTooLarge, fmt.Sprintf("request body exceeds %d bytes", s.config.MaxBodyBytes)))
			}
			req.Body = http.MaxBytesReader(c.Response(), req.Body, s.config.MaxBodyBytes)
			return next(c)
		}
	}
}

// withTimeout derives the handler context.
func (s *Server) withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	ctx := c.Request().Context()
	if s.config.RequestTimeout > 0 {
		return context.WithTimeout(ctx, s.config.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
