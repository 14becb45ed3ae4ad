package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/legisrag/internal/fiscal"
	"github.com/fyrsmithlabs/legisrag/internal/logging"
	"github.com/fyrsmithlabs/legisrag/internal/pipeline"
	"github.com/fyrsmithlabs/legisrag/internal/retrieval"
)

// Tool names.
const (
	ToolRetrieveLegislation = "retrieve_legislation"
	ToolAnalyzeInvoice      = "analyze_invoice"
)

// ===== RETRIEVAL TOOLS =====

type retrieveInput struct {
	Category   string   `json:"category" jsonschema:"required,Fiscal category to search, e.g. ICMS, ICMS-ST, ISS, IPI, PIS, COFINS"`
	ShortTerms []string `json:"short_terms,omitempty" jsonschema:"Short keyword search terms"`
	LongTerms  []string `json:"long_terms,omitempty" jsonschema:"Longer descriptive search phrases"`
	K          int      `json:"k,omitempty" jsonschema:"Maximum passages to return (default: server setting)"`
}

type retrieveOutput struct {
	Category      string                    `json:"category" jsonschema:"Canonical category searched"`
	CorpusVersion uint64                    `json:"corpus_version" jsonschema:"Version of the corpus snapshot searched"`
	Passages      []pipeline.PassageSummary `json:"passages" jsonschema:"Ranked passages, closest first"`
	Count         int                       `json:"count" jsonschema:"Number of passages returned"`
}

type analyzeInput struct {
	Invoice string `json:"invoice,omitempty" jsonschema:"Invoice content (NF-e XML or text)"`
	Path    string `json:"path,omitempty" jsonschema:"Path of an invoice file to read instead of inline content"`
}

type analyzeOutput struct {
	ReportID        string                    `json:"report_id" jsonschema:"Analysis identifier"`
	Context         fiscal.Context            `json:"context" jsonschema:"Fiscal context extracted from the invoice"`
	Markdown        string                    `json:"markdown" jsonschema:"Savings report in markdown"`
	Degraded        bool                      `json:"degraded" jsonschema:"True when no statutory basis could be matched"`
	DegradedReason  string                    `json:"degraded_reason,omitempty" jsonschema:"Why the report is degraded"`
	GenerationError string                    `json:"generation_error,omitempty" jsonschema:"Report model failure, if any"`
	Passages        []pipeline.PassageSummary `json:"passages" jsonschema:"Passages the report is based on"`
	DurationMS      int64                     `json:"duration_ms" jsonschema:"Analysis duration in milliseconds"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolRetrieveLegislation,
		Description: "Retrieve ranked legislation passages for a fiscal category. Passages tagged with the category or 'general' are searched with the short and long terms; each term set is one pass and results are merged by minimum distance.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args retrieveInput) (*mcp.CallToolResult, retrieveOutput, error) {
		return s.retrieve(ctx, args)
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolAnalyzeInvoice,
		Description: "Analyze an invoice: extract its fiscal context, retrieve the applicable legislation and write a tax savings report. Pass the invoice inline or a file path, not both.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args analyzeInput) (*mcp.CallToolResult, analyzeOutput, error) {
		return s.analyze(ctx, args)
	})
}

func (s *Server) retrieve(ctx context.Context, args retrieveInput) (*mcp.CallToolResult, retrieveOutput, error) {
	done := s.metrics.track(ctx, ToolRetrieveLegislation)
	var toolErr error
	defer func() { done(toolErr) }()

	fc := fiscal.Context{
		Category:   fiscal.NormalizeCategory(args.Category),
		ShortTerms: args.ShortTerms,
		LongTerms:  args.LongTerms,
	}.Normalize()
	if fc.Category == "" {
		toolErr = fmt.Errorf("%w: category is required", retrieval.ErrInvalidQuery)
		return nil, retrieveOutput{}, s.toolError(ctx, toolErr)
	}

	ctx = logging.WithRequestID(ctx, uuid.NewString())
	ctx = logging.WithCategory(ctx, fc.Category)
	snap := s.analyzer.Store().Snapshot()

	passages, err := s.analyzer.Search(ctx, fc, args.K)
	if err != nil {
		toolErr = err
		return nil, retrieveOutput{}, s.toolError(ctx, err)
	}

	out := retrieveOutput{
		Category: fc.Category,
		Passages: pipeline.Summarize(passages),
		Count:    len(passages),
	}
	if snap != nil {
		out.CorpusVersion = snap.Version
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: formatPassages(out.Category, out.Passages)},
		},
	}, out, nil
}

func (s *Server) analyze(ctx context.Context, args analyzeInput) (*mcp.CallToolResult, analyzeOutput, error) {
	done := s.metrics.track(ctx, ToolAnalyzeInvoice)
	var toolErr error
	defer func() { done(toolErr) }()

	ctx = logging.WithRequestID(ctx, uuid.NewString())

	invoice, err := s.invoiceBytes(args)
	if err != nil {
		toolErr = err
		return nil, analyzeOutput{}, s.toolError(ctx, err)
	}

	report, err := s.analyzer.Analyze(ctx, invoice)
	if err != nil {
		toolErr = err
		return nil, analyzeOutput{}, s.toolError(ctx, err)
	}

	out := analyzeOutput{
		ReportID:        report.ID,
		Context:         report.Context,
		Markdown:        report.Markdown,
		Degraded:        report.Degraded,
		DegradedReason:  report.DegradedReason,
		GenerationError: report.GenerationError,
		Passages:        pipeline.Summarize(report.Passages),
		DurationMS:      report.Duration.Milliseconds(),
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: report.Markdown},
		},
	}, out, nil
}

// errInvalidInput marks tool arguments that cannot be acted on.
var errInvalidInput = errors.New("invalid input")

// invoiceBytes returns the inline invoice or reads the named file, which
// must be a regular file no larger than the configured limit.
func (s *Server) invoiceBytes(args analyzeInput) ([]byte, error) {
	switch {
	case args.Invoice != "" && args.Path != "":
		return nil, fmt.Errorf("%w: pass either invoice or path, not both", errInvalidInput)
	case args.Invoice != "":
		return []byte(args.Invoice), nil
	case args.Path == "":
		return nil, fmt.Errorf("%w: invoice or path is required", errInvalidInput)
	}

	f, err := os.Open(args.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening invoice: %w", errInvalidInput, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat invoice: %w", errInvalidInput, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", errInvalidInput, args.Path)
	}
	if info.Size() > s.config.MaxInvoiceBytes {
		return nil, fmt.Errorf("%w: invoice is %d bytes, limit is %d", errInvalidInput, info.Size(), s.config.MaxInvoiceBytes)
	}

	data, err := io.ReadAll(io.LimitReader(f, s.config.MaxInvoiceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading invoice: %w", err)
	}
	if int64(len(data)) > s.config.MaxInvoiceBytes {
		return nil, fmt.Errorf("%w: invoice exceeds %d bytes", errInvalidInput, s.config.MaxInvoiceBytes)
	}
	return data, nil
}

// toolError prefixes err with its kind so clients can branch on it, and
// logs failures that are not the caller's fault.
func (s *Server) toolError(ctx context.Context, err error) error {
	kind := categorizeError(err)
	switch kind {
	case reasonValidation, reasonEmptyCorpus:
	default:
		s.logger.Error("tool call failed", append(logging.ContextFields(ctx),
			zap.String("reason", kind),
			zap.Error(err),
		)...)
	}
	return fmt.Errorf("%s: %w", kind, err)
}

func formatPassages(category string, passages []pipeline.PassageSummary) string {
	if len(passages) == 0 {
		return fmt.Sprintf("No passages found for %s", category)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d passage(s) for %s:", len(passages), category)
	for _, p := range passages {
		source := p.Citation
		if source == "" {
			source = p.ID
		}
		fmt.Fprintf(&b, "\n%d. %s (distance %.4f)", p.Rank, source, p.Distance)
	}
	return b.String()
}
