package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Defaults for GeminiConfig.
const (
	DefaultGeminiModel = "gemini-2.5-flash"
	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = 1 * time.Second
	defaultTemperature = float32(0.2)
)

var tracer = otel.Tracer("legisrag.llm")

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	APIKey string `json:"-"`
	Model  string
	// BaseURL overrides the Gemini API endpoint.
	BaseURL string
	// Timeout bounds one attempt.
	Timeout time.Duration
	// MinInterval is the minimum delay between two calls. Zero disables
	// rate limiting.
	MinInterval time.Duration
	MaxRetries  int
	Temperature float32
	Logger      *zap.Logger
}

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// GeminiClient implements Client on the Gemini API.
type GeminiClient struct {
	model       string
	generate    generateFunc
	limiter     *rate.Limiter
	timeout     time.Duration
	maxRetries  int
	backoff     time.Duration
	temperature float32
	logger      *zap.Logger
}

// NewGenAIClient creates a genai client for the Gemini API backend.
func NewGenAIClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return client, nil
}

// NewGeminiClient creates a client for cfg.Model.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	client, err := NewGenAIClient(ctx, cfg.APIKey, cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	return newGeminiClient(cfg, client.Models.GenerateContent), nil
}

func newGeminiClient(cfg GeminiConfig, generate generateFunc) *GeminiClient {
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	} else if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.MinInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}

	return &GeminiClient{
		model:       model,
		generate:    generate,
		limiter:     limiter,
		timeout:     timeout,
		maxRetries:  maxRetries,
		backoff:     defaultBaseBackoff,
		temperature: temperature,
		logger:      logger,
	}
}

// Model implements Client.
func (g *GeminiClient) Model() string { return g.model }

// Complete sends req to the model, waiting for the rate limiter first and
// retrying transient failures with exponential backoff.
func (g *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	ctx, span := tracer.Start(ctx, "GeminiClient.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", g.model),
		attribute.Bool("llm.json", req.JSON),
		attribute.Int("llm.prompt_chars", len(req.Prompt)),
	)

	if strings.TrimSpace(req.Prompt) == "" {
		err := fmt.Errorf("llm: empty prompt")
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: scrubSecrets(req.Prompt)}},
	}}
	config := g.buildConfig(req)

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := g.backoff * time.Duration(1<<(attempt-1))
			g.logger.Debug("retrying model call",
				zap.String("model", g.model),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter error: %w", err)
		}

		text, err := g.attempt(ctx, contents, config)
		if err == nil {
			span.SetAttributes(attribute.Int("llm.attempts", attempt+1), attribute.Int("llm.response_chars", len(text)))
			span.SetStatus(codes.Ok, "success")
			return text, nil
		}
		lastErr = err
		if !isRetryableError(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", err
		}
	}

	err := fmt.Errorf("max retries exceeded: %w", lastErr)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return "", err
}

func (g *GeminiClient) attempt(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.generate(ctx, g.model, contents, config)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			// The per-attempt deadline expired, not the caller's.
			return "", &retryableError{err: fmt.Errorf("model call timed out after %s: %w", g.timeout, err)}
		}
		return "", classify(err)
	}

	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		return "", &retryableError{err: ErrEmptyResponse}
	}
	return text, nil
}

func (g *GeminiClient) buildConfig(req Request) *genai.GenerateContentConfig {
	temperature := g.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	return cfg
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.Text != "" && !part.Thought {
				sb.WriteString(part.Text)
			}
		}
		// Only the first candidate with content is used.
		if sb.Len() > 0 {
			break
		}
	}
	return sb.String()
}

var secretPatterns = []struct {
	regex       *regexp.Regexp
	replacement string
}{
	{
		regexp.MustCompile(`(GEMINI_API_KEY|GOOGLE_API_KEY|LEGISRAG_[A-Z_]*API_KEY)\s*=\s*([^\s]+)`),
		"$1=[REDACTED:ENV_SECRET]",
	},
	{
		regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`),
		"[REDACTED:GOOGLE_KEY]",
	},
	{
		regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-\.=]{20,}`),
		"[REDACTED:BEARER_TOKEN]",
	},
	{
		regexp.MustCompile(`(?i)(password|passwd|senha)\s*[:=]\s*["']?\s*([^"'\s]{4,})["']?`),
		"$1=[REDACTED:PASSWORD]",
	},
}

// scrubSecrets removes credentials that may have been pasted into an
// invoice or a report prompt before it leaves the process.
func scrubSecrets(content string) string {
	for _, p := range secretPatterns {
		content = p.regex.ReplaceAllString(content, p.replacement)
	}
	return content
}

var _ Client = (*GeminiClient)(nil)
