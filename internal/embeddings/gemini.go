package embeddings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/legisrag/internal/llm"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultGeminiEmbeddingModel is used when no model is configured.
const DefaultGeminiEmbeddingModel = "gemini-embedding-001"

// geminiBatchLimit is the most contents the API accepts per request.
const geminiBatchLimit = 100

// Task types understood by the Gemini embedding models.
const (
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// GeminiConfig configures the Gemini embedding provider.
type GeminiConfig struct {
	Model  string
	APIKey string `json:"-"`
	// BaseURL overrides the API endpoint.
	BaseURL string
	// Dimension is the requested output dimensionality. Zero keeps the
	// model default.
	Dimension int
	Timeout   time.Duration
	Logger    *zap.Logger
}

type embedContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)

// GeminiProvider embeds text with the Gemini embedding API. Documents and
// queries are embedded with different task types, as the model expects.
type GeminiProvider struct {
	model     string
	dimension int
	requested int
	timeout   time.Duration
	embed     embedContentFunc
	metrics   *Metrics
}

// NewGeminiProvider creates a Gemini embedding provider.
func NewGeminiProvider(cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini embeddings require an API key", ErrInvalidConfig)
	}
	if cfg.Dimension < 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	client, err := llm.NewGenAIClient(context.Background(), cfg.APIKey, cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return newGeminiProvider(cfg, client.Models.EmbedContent), nil
}

func newGeminiProvider(cfg GeminiConfig, embed embedContentFunc) *GeminiProvider {
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiEmbeddingModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dim := cfg.Dimension
	if dim == 0 {
		dim = detectDimensionFromModel(model)
	}
	return &GeminiProvider{
		model:     model,
		dimension: dim,
		requested: cfg.Dimension,
		timeout:   timeout,
		embed:     embed,
		metrics:   NewMetrics(ProviderGemini, logger),
	}
}

// EmbedDocuments implements vectorstore.Embedder. Inputs larger than one
// API batch are sent in several requests.
func (g *GeminiProvider) EmbedDocuments(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	start := time.Now()
	defer func() {
		g.metrics.Record(ctx, g.model, OpDocuments, time.Since(start), len(texts), err)
	}()

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	vectors = make([][]float32, 0, len(texts))
	for lo := 0; lo < len(texts); lo += geminiBatchLimit {
		hi := min(lo+geminiBatchLimit, len(texts))
		batch, err := g.call(ctx, texts[lo:hi], taskRetrievalDocument)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// EmbedQuery implements vectorstore.Embedder.
func (g *GeminiProvider) EmbedQuery(ctx context.Context, text string) (vector []float32, err error) {
	start := time.Now()
	defer func() {
		g.metrics.Record(ctx, g.model, OpQuery, time.Since(start), 1, err)
	}()

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	vectors, err := g.call(ctx, []string{text}, taskRetrievalQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (g *GeminiProvider) call(ctx context.Context, texts []string, task string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = &genai.Content{Role: "user", Parts: []*genai.Part{{Text: t}}}
	}
	config := &genai.EmbedContentConfig{TaskType: task}
	if g.requested > 0 {
		config.OutputDimensionality = genai.Ptr(int32(g.requested))
	}

	resp, err := g.embed(ctx, g.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrEmbeddingFailed, got, len(texts))
	}

	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at position %d", ErrEmbeddingFailed, i)
		}
		out[i] = e.Values
	}
	return out, nil
}

// Dimension implements Provider.
func (g *GeminiProvider) Dimension() int { return g.dimension }

// Model implements Provider.
func (g *GeminiProvider) Model() string { return g.model }

// Close implements Provider.
func (g *GeminiProvider) Close() error { return nil }
