// Package pipeline runs the invoice analysis: extract the fiscal context,
// select and index the matching legislation, retrieve passages and write
// the savings report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/legisrag/internal/corpus"
	"github.com/fyrsmithlabs/legisrag/internal/extraction"
	"github.com/fyrsmithlabs/legisrag/internal/fiscal"
	"github.com/fyrsmithlabs/legisrag/internal/insight"
	"github.com/fyrsmithlabs/legisrag/internal/logging"
	"github.com/fyrsmithlabs/legisrag/internal/retrieval"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("legisrag.pipeline")

// Report is the outcome of one analysis.
type Report struct {
	ID       string              `json:"id"`
	Context  fiscal.Context      `json:"context"`
	Passages []retrieval.Passage `json:"-"`
	Markdown string              `json:"markdown"`
	// Degraded is set when no statutory basis could be matched; Markdown
	// then explains why instead of analyzing passages.
	Degraded       bool   `json:"degraded"`
	DegradedReason string `json:"degraded_reason,omitempty"`
	// GenerationError is set when the report model failed; Markdown is then
	// insight.FailedReport.
	GenerationError string        `json:"generation_error,omitempty"`
	Duration        time.Duration `json:"duration"`
}

// Deps are the collaborators of an Analyzer.
type Deps struct {
	Store     *corpus.Store
	Extractor extraction.Extractor
	Cache     *retrieval.IndexCache
	Retriever *retrieval.Retriever
	Generator insight.Generator
}

// Analyzer runs analyses. It is safe for concurrent use.
type Analyzer struct {
	store     *corpus.Store
	extractor extraction.Extractor
	cache     *retrieval.IndexCache
	retriever *retrieval.Retriever
	generator insight.Generator
	k         int
	logger    *zap.Logger
}

// NewAnalyzer returns an analyzer retrieving k passages per invoice
// (retrieval.DefaultK when k <= 0).
func NewAnalyzer(deps Deps, k int, logger *zap.Logger) (*Analyzer, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("pipeline: corpus store required")
	case deps.Extractor == nil:
		return nil, errors.New("pipeline: extractor required")
	case deps.Cache == nil:
		return nil, errors.New("pipeline: index cache required")
	case deps.Retriever == nil:
		return nil, errors.New("pipeline: retriever required")
	case deps.Generator == nil:
		return nil, errors.New("pipeline: generator required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if k <= 0 {
		k = retrieval.DefaultK
	}
	return &Analyzer{
		store:     deps.Store,
		extractor: deps.Extractor,
		cache:     deps.Cache,
		retriever: deps.Retriever,
		generator: deps.Generator,
		k:         k,
		logger:    logger,
	}, nil
}

// Analyze runs the whole pipeline for one invoice.
//
// Retrieval failures do not fail the call: the report comes back degraded
// with the reason. A failing report model yields insight.FailedReport. The
// error return is reserved for an empty invoice and for cancellation.
func (a *Analyzer) Analyze(ctx context.Context, invoice []byte) (report *Report, err error) {
	start := time.Now()
	report = &Report{ID: uuid.NewString()}
	ctx = logging.WithAnalysisID(ctx, report.ID)

	ctx, span := tracer.Start(ctx, "Analyzer.Analyze")
	defer span.End()
	span.SetAttributes(attribute.String("analysis.id", report.ID), attribute.Int("invoice_bytes", len(invoice)))

	defer func() {
		outcome := "ok"
		switch {
		case err != nil:
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case report.Degraded:
			outcome = "degraded"
		case report.GenerationError != "":
			outcome = "generation_failed"
		}
		Analyses.WithLabelValues(outcome).Inc()
		if err == nil {
			report.Duration = time.Since(start)
			span.SetAttributes(attribute.String("outcome", outcome))
			a.log(ctx).Info("analysis complete",
				zap.String("outcome", outcome),
				zap.Int("passages", len(report.Passages)),
				zap.Duration("duration", report.Duration),
			)
		}
	}()

	// Extract
	stage := time.Now()
	fc, err := a.extractor.Extract(ctx, invoice)
	StageDuration.WithLabelValues("extract").Observe(time.Since(stage).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, extraction.ErrEmptyInvoice) {
			return nil, err
		}
		a.log(ctx).Error("context extraction failed", zap.Error(err))
		return a.degrade(report, fmt.Sprintf("não foi possível classificar a nota fiscal: %v", err)), nil
	}
	fc = fc.Normalize()
	report.Context = fc
	ctx = logging.WithCategory(ctx, fc.Category)
	span.SetAttributes(attribute.String("category", fc.Category))
	if !fc.HasTerms() {
		return a.handleRetrievalError(ctx, report, fmt.Errorf("%w: no query terms", retrieval.ErrInvalidQuery))
	}

	// Filter and index
	stage = time.Now()
	idx, err := a.cache.Index(ctx, a.store.Snapshot(), fc.Category)
	StageDuration.WithLabelValues("index").Observe(time.Since(stage).Seconds())
	if err != nil {
		return a.handleRetrievalError(ctx, report, err)
	}

	// Retrieve
	stage = time.Now()
	passages, err := a.retriever.Retrieve(ctx, idx, retrieval.QueryFromContext(fc), a.k)
	StageDuration.WithLabelValues("retrieve").Observe(time.Since(stage).Seconds())
	if err != nil {
		return a.handleRetrievalError(ctx, report, err)
	}
	if len(passages) == 0 {
		return a.degrade(report, "nenhum trecho de legislação foi encontrado"), nil
	}
	report.Passages = passages

	// Generate
	stage = time.Now()
	markdown, err := a.generator.Generate(ctx, insight.Request{Invoice: invoice, Context: fc, Passages: passages})
	StageDuration.WithLabelValues("generate").Observe(time.Since(stage).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		a.log(ctx).Error("report generation failed", zap.Error(err))
		report.Markdown = insight.FailedReport()
		report.GenerationError = err.Error()
		return report, nil
	}
	report.Markdown = markdown
	return report, nil
}

// handleRetrievalError degrades the report on retrieval taxonomy errors.
// An invalid query can only come from the extractor's output here, so it
// degrades too but is logged as an error.
func (a *Analyzer) handleRetrievalError(ctx context.Context, report *Report, err error) (*Report, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	switch {
	case errors.Is(err, retrieval.ErrEmptyCorpus):
		a.log(ctx).Warn("no legislation for category", zap.Error(err))
		return a.degrade(report, fmt.Sprintf("nenhum trecho de legislação para a categoria %q", report.Context.Category)), nil
	case errors.Is(err, retrieval.ErrEmbeddingProvider):
		a.log(ctx).Error("embedding provider failed", zap.Error(err))
		return a.degrade(report, "o provedor de embeddings falhou"), nil
	case errors.Is(err, retrieval.ErrInvalidQuery):
		a.log(ctx).Error("extractor produced no usable search terms", zap.Error(err))
		return a.degrade(report, "a extração não produziu termos de busca"), nil
	default:
		a.log(ctx).Error("retrieval failed", zap.Error(err))
		return a.degrade(report, "falha na busca de legislação"), nil
	}
}

func (a *Analyzer) degrade(report *Report, reason string) *Report {
	report.Degraded = true
	report.DegradedReason = reason
	report.Markdown = insight.DegradedReport(report.Context, reason)
	return report
}

// Search retrieves up to k passages for fc from the current corpus; k == 0
// means the analyzer default. Unlike Analyze it returns retrieval errors
// unchanged.
func (a *Analyzer) Search(ctx context.Context, fc fiscal.Context, k int) ([]retrieval.Passage, error) {
	if k == 0 {
		k = a.k
	}
	if k < 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", retrieval.ErrInvalidQuery, k)
	}
	fc = fc.Normalize()
	if !fc.HasTerms() {
		return nil, fmt.Errorf("%w: no query terms", retrieval.ErrInvalidQuery)
	}
	idx, err := a.cache.Index(ctx, a.store.Snapshot(), fc.Category)
	if err != nil {
		return nil, err
	}
	return a.retriever.Retrieve(ctx, idx, retrieval.QueryFromContext(fc), k)
}

// Store returns the corpus store the analyzer reads.
func (a *Analyzer) Store() *corpus.Store { return a.store }

// K returns the default number of passages per query.
func (a *Analyzer) K() int { return a.k }

func (a *Analyzer) log(ctx context.Context) *zap.Logger {
	return a.logger.With(logging.ContextFields(ctx)...)
}
