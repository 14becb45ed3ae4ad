package embeddings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/legisrag/internal/vectorstore"
	"go.uber.org/zap"
)

var (
	// ErrEmptyInput indicates empty or nil input texts
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider names accepted by NewProvider.
const (
	ProviderFastEmbed = "fastembed"
	ProviderTEI       = "tei"
	ProviderGemini    = "gemini"
	ProviderHash      = "hash"
)

// Provider is the interface for embedding providers.
type Provider interface {
	vectorstore.Embedder
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Model identifies the model producing the vectors. Vectors from
	// different models must never share an index.
	Model() string
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is the provider type: "fastembed", "tei", "gemini" or "hash".
	Provider string
	// Model is the embedding model name
	Model string
	// BaseURL is the TEI URL (only used for TEI provider)
	BaseURL string
	// APIKey authenticates against TEI (optional) or Gemini (required).
	APIKey string
	// CacheDir is the model cache directory (only used for FastEmbed)
	CacheDir string
	// Dimension overrides model dimension detection. Gemini uses it as the
	// requested output dimensionality, hash as the vector length.
	Dimension int
	// Timeout bounds a single remote embedding call.
	Timeout time.Duration
	// Logger receives provider diagnostics. Nil means no logging.
	Logger *zap.Logger
}

// detectDimensionFromModel returns the embedding dimension for a model name.
// Falls back to 384 if model is unknown.
func detectDimensionFromModel(model string) int {
	if dim, ok := fastEmbedModelDimension(model); ok {
		return dim
	}
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "gemini-embedding"):
		return 3072
	case strings.Contains(m, "text-embedding-004"), strings.Contains(m, "multilingual-e5-base"):
		return 768
	case strings.Contains(m, "base"):
		return 768
	case strings.Contains(m, "large"):
		return 1024
	case strings.Contains(m, "small"), strings.Contains(m, "mini"):
		return 384
	default:
		return 384
	}
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		p   Provider
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case ProviderFastEmbed, "":
		p, err = newFastEmbed(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
			Logger:   logger,
		})
	case ProviderTEI:
		p, err = newTEI(TEIConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			Dimension: cfg.Dimension,
			Timeout:   cfg.Timeout,
			Logger:    logger,
		})
	case ProviderGemini:
		p, err = newGemini(GeminiConfig{
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			Dimension: cfg.Dimension,
			Timeout:   cfg.Timeout,
			Logger:    logger,
		})
	case ProviderHash:
		p = NewHashProvider(cfg.Dimension)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("embedding provider ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", p.Model()),
		zap.Int("dimension", p.Dimension()),
	)
	return p, nil
}

// The constructors return concrete pointers; these keep a failed
// construction from turning into a non-nil Provider holding a nil pointer.

func newFastEmbed(cfg FastEmbedConfig) (Provider, error) {
	p, err := NewFastEmbedProvider(cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newTEI(cfg TEIConfig) (Provider, error) {
	p, err := NewTEIProvider(cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newGemini(cfg GeminiConfig) (Provider, error) {
	p, err := NewGeminiProvider(cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}
