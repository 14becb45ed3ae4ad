package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/legisrag/internal/fiscal"
	"github.com/fyrsmithlabs/legisrag/internal/llm"
	"go.uber.org/zap"
)

// New builds the extractor chain for cfg. client may be nil, in which case
// auto resolves to the heuristic extractor and llm fails with ErrNoClient.
func New(cfg Config, client llm.Client, logger *zap.Logger) (Extractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderAuto
	}
	if provider == ProviderAuto {
		provider = ProviderHeuristic
		if client != nil {
			provider = ProviderLLM
		}
	}

	switch provider {
	case ProviderHeuristic:
		return NewHeuristicExtractor(cfg, logger)
	case ProviderLLM:
		primary, err := NewLLMExtractor(client, cfg, logger)
		if err != nil {
			return nil, err
		}
		if !cfg.Fallback {
			return primary, nil
		}
		heuristic, err := NewHeuristicExtractor(cfg, logger)
		if err != nil {
			return nil, err
		}
		return NewFallbackExtractor(logger, primary, heuristic), nil
	default:
		return nil, fmt.Errorf("extraction: unknown provider %q", cfg.Provider)
	}
}

// FallbackExtractor tries extractors in order and returns the first
// context that carries search terms.
type FallbackExtractor struct {
	extractors []Extractor
	logger     *zap.Logger
}

// NewFallbackExtractor chains extractors.
func NewFallbackExtractor(logger *zap.Logger, extractors ...Extractor) *FallbackExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackExtractor{extractors: extractors, logger: logger}
}

// Extract implements Extractor. A context without terms counts as a
// failure while a later extractor remains. Cancellation stops the chain.
func (f *FallbackExtractor) Extract(ctx context.Context, invoice []byte) (fiscal.Context, error) {
	var errs []error
	var last fiscal.Context
	for i, ext := range f.extractors {
		fc, err := ext.Extract(ctx, invoice)
		if err == nil && (fc.HasTerms() || i == len(f.extractors)-1) {
			return fc, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fiscal.Context{}, ctxErr
		}
		if errors.Is(err, ErrEmptyInvoice) {
			return fiscal.Context{}, err
		}
		if err == nil {
			last = fc
			err = fmt.Errorf("extractor %d produced no search terms", i)
		}
		errs = append(errs, err)
		f.logger.Warn("extractor failed, trying next",
			zap.Int("extractor", i),
			zap.Error(err),
		)
	}
	if last.Category != "" {
		return last, nil
	}
	if len(errs) == 0 {
		return fiscal.Context{}, ErrNoCategory
	}
	return fiscal.Context{}, errors.Join(errs...)
}

var _ Extractor = (*FallbackExtractor)(nil)
