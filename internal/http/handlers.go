package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fyrsmithlabs/legisrag/internal/corpus"
	"github.com/fyrsmithlabs/legisrag/internal/extraction"
	"github.com/fyrsmithlabs/legisrag/internal/logging"
	"github.com/fyrsmithlabs/legisrag/internal/pipeline"
	"github.com/fyrsmithlabs/legisrag/internal/retrieval"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// handleHealth reports the loaded corpus. Without a corpus the service
// cannot answer queries and reports 503.
func (s *Server) handleHealth(c echo.Context) error {
	snap := s.analyzer.Store().Snapshot()
	if snap == nil {
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status:  "no_corpus",
			Version: s.config.Version,
			Tags:    []string{},
		})
	}
	loadedAt := snap.LoadedAt
	return c.JSON(http.StatusOK, HealthResponse{
		Status:         "ok",
		Version:        s.config.Version,
		CorpusVersion:  snap.Version,
		CorpusSource:   snap.Source,
		CorpusLoadedAt: &loadedAt,
		Segments:       snap.Len(),
		Embedded:       snap.EmbeddedCount(),
		Tags:           snap.Tags(),
	})
}

// handleRetrieve runs a retrieval for explicit terms.
func (s *Server) handleRetrieve(c echo.Context) error {
	var req RetrieveRequest
	if err := c.Bind(&req); err != nil {
		if isBodyTooLarge(err) {
			return s.bodyTooLarge()
		}
		s.logger.Warn("invalid retrieve request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, newErrorResponse(kindInvalidRequest, "invalid request body"))
	}
	if strings.TrimSpace(req.Category) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, newErrorResponse(kindInvalidQuery, "category field is required"))
	}

	ctx, cancel := s.withTimeout(c)
	defer cancel()

	fc := req.Context()
	ctx = logging.WithCategory(ctx, fc.Category)
	snap := s.analyzer.Store().Snapshot()

	passages, err := s.analyzer.Search(ctx, fc, req.K)
	if err != nil {
		return s.retrievalError(ctx, err)
	}

	resp := RetrieveResponse{
		Category: fc.Category,
		Passages: pipeline.Summarize(passages),
	}
	if snap != nil {
		resp.CorpusVersion = snap.Version
	}
	return c.JSON(http.StatusOK, resp)
}

// handleAnalyze analyzes the raw invoice in the request body.
func (s *Server) handleAnalyze(c echo.Context) error {
	invoice, err := io.ReadAll(c.Request().Body)
	if err != nil {
		if isBodyTooLarge(err) {
			return s.bodyTooLarge()
		}
		return echo.NewHTTPError(http.StatusBadRequest, newErrorResponse(kindInvalidRequest, "reading request body failed"))
	}

	ctx, cancel := s.withTimeout(c)
	defer cancel()

	report, err := s.analyzer.Analyze(ctx, invoice)
	if err != nil {
		if errors.Is(err, extraction.ErrEmptyInvoice) {
			return echo.NewHTTPError(http.StatusBadRequest, newErrorResponse(kindInvalidRequest, "invoice body is empty"))
		}
		return s.retrievalError(ctx, err)
	}

	return c.JSON(http.StatusOK, AnalyzeResponse{
		Report:     report,
		Passages:   pipeline.Summarize(report.Passages),
		DurationMS: report.Duration.Milliseconds(),
	})
}

// handleReload reloads the configured corpus file.
func (s *Server) handleReload(c echo.Context) error {
	if s.config.CorpusPath == "" {
		return echo.NewHTTPError(http.StatusConflict, newErrorResponse(kindUnavailable, "no corpus path configured"))
	}

	snap, err := s.analyzer.Store().LoadFile(s.config.CorpusPath)
	if err != nil {
		s.logger.Error("corpus reload failed, keeping previous snapshot",
			append(logging.ContextFields(c.Request().Context()),
				zap.String("path", s.config.CorpusPath),
				zap.Error(err),
			)...)
		return echo.NewHTTPError(http.StatusUnprocessableEntity, newErrorResponse(kindCorpusLoad, err.Error())).SetInternal(err)
	}

	return c.JSON(http.StatusOK, ReloadResponse{
		CorpusVersion: snap.Version,
		Source:        snap.Source,
		Segments:      snap.Len(),
		Embedded:      snap.EmbeddedCount(),
	})
}

// retrievalError maps the retrieval error taxonomy onto HTTP statuses.
func (s *Server) retrievalError(ctx context.Context, err error) error {
	status, kind := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", append(logging.ContextFields(ctx), zap.Error(err))...)
	}
	return echo.NewHTTPError(status, newErrorResponse(kind, err.Error())).SetInternal(err)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, retrieval.ErrInvalidQuery):
		return http.StatusBadRequest, kindInvalidQuery
	case errors.Is(err, retrieval.ErrEmptyCorpus):
		return http.StatusUnprocessableEntity, kindEmptyCorpus
	case errors.Is(err, retrieval.ErrEmbeddingProvider):
		return http.StatusBadGateway, kindEmbeddingProvider
	case errors.Is(err, corpus.ErrCorpusLoad):
		return http.StatusUnprocessableEntity, kindCorpusLoad
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, kindTimeout
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads this response.
		return 499, kindTimeout
	}
	return http.StatusInternalServerError, kindInternal
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func (s *Server) bodyTooLarge() error {
	return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
		newErrorResponse(kindBodyTooLarge, fmt.Sprintf("request body exceeds %d bytes", s.config.MaxBodyBytes)))
}
