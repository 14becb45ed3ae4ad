// Package config provides configuration loading for legisrag.
//
// Configuration is read from an optional YAML file and overridden by
// LEGISRAG_* environment variables. Defaults() holds every default.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds the complete legisrag configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Corpus        CorpusConfig        `koanf:"corpus"`
	Embeddings    EmbeddingsConfig    `koanf:"embeddings"`
	Index         IndexConfig         `koanf:"index"`
	Retrieval     RetrievalConfig     `koanf:"retrieval"`
	Extraction    ExtractionConfig    `koanf:"extraction"`
	Generation    GenerationConfig    `koanf:"generation"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	RequestTimeout  Duration `koanf:"request_timeout"`
	MaxBodyBytes    int64    `koanf:"max_body_bytes"`
}

// CorpusConfig locates the legislation catalog.
type CorpusConfig struct {
	// Path is a .json, .yaml or .toml catalog file.
	Path     string      `koanf:"path"`
	Watch    bool        `koanf:"watch"`
	Debounce Duration    `koanf:"debounce"`
	Chunk    ChunkConfig `koanf:"chunk"`
	Fetch    FetchConfig `koanf:"fetch"`
}

// ChunkConfig sizes ingested segments.
type ChunkConfig struct {
	Size    int `koanf:"size"`
	Overlap int `koanf:"overlap"`
}

// FetchConfig configures the legislation search endpoint used by ingest.
type FetchConfig struct {
	Endpoint    string   `koanf:"endpoint"`
	Timeout     Duration `koanf:"timeout"`
	MinInterval Duration `koanf:"min_interval"`
	RowLimit    int      `koanf:"row_limit"`
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	// Provider is fastembed, tei, gemini or hash.
	Provider  string   `koanf:"provider"`
	Model     string   `koanf:"model"`
	BaseURL   string   `koanf:"base_url"`
	APIKey    Secret   `koanf:"api_key"`
	CacheDir  string   `koanf:"cache_dir"`
	Dimension int      `koanf:"dimension"`
	Timeout   Duration `koanf:"timeout"`
}

// IndexConfig configures similarity index builds.
type IndexConfig struct {
	// Backend is flat or chromem.
	Backend   string `koanf:"backend"`
	Workers   int    `koanf:"workers"`
	BatchSize int    `koanf:"batch_size"`
}

// RetrievalConfig configures passage retrieval.
type RetrievalConfig struct {
	K                int    `koanf:"k"`
	FallbackCategory string `koanf:"fallback_category"`
}

// ExtractionConfig configures invoice classification.
type ExtractionConfig struct {
	// Provider is auto, heuristic or llm.
	Provider        string  `koanf:"provider"`
	Fallback        bool    `koanf:"fallback"`
	MaxInvoiceBytes int     `koanf:"max_invoice_bytes"`
	MinWeight       float64 `koanf:"min_weight"`
}

// GenerationConfig configures the generative model.
type GenerationConfig struct {
	// Provider is auto, gemini or extractive. Auto uses gemini when an API
	// key is set.
	Provider    string   `koanf:"provider"`
	Model       string   `koanf:"model"`
	APIKey      Secret   `koanf:"api_key"`
	BaseURL     string   `koanf:"base_url"`
	Timeout     Duration `koanf:"timeout"`
	MinInterval Duration `koanf:"min_interval"`
	MaxRetries  int      `koanf:"max_retries"`
	Temperature float64  `koanf:"temperature"`
}

// LoggingConfig holds the logging settings exposed to operators.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool    `koanf:"enable_telemetry"`
	EnableMetrics   bool    `koanf:"enable_metrics"`
	ServiceName     string  `koanf:"service_name"`
	OTLPEndpoint    string  `koanf:"otlp_endpoint"`
	OTLPProtocol    string  `koanf:"otlp_protocol"`
	OTLPInsecure    bool    `koanf:"otlp_insecure"`
	SampleRate      float64 `koanf:"sample_rate"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            9090,
			ShutdownTimeout: Duration(10 * time.Second),
			RequestTimeout:  Duration(2 * time.Minute),
			MaxBodyBytes:    4 << 20,
		},
		Corpus: CorpusConfig{
			Path:     "corpus.json",
			Watch:    false,
			Debounce: Duration(500 * time.Millisecond),
			Chunk:    ChunkConfig{Size: 1000, Overlap: 100},
			Fetch: FetchConfig{
				Timeout:     Duration(30 * time.Second),
				MinInterval: Duration(time.Second),
				RowLimit:    50,
			},
		},
		Embeddings: EmbeddingsConfig{
			Provider: "fastembed",
			Timeout:  Duration(30 * time.Second),
		},
		Index: IndexConfig{
			Backend:   "flat",
			BatchSize: 32,
		},
		Retrieval: RetrievalConfig{
			K:                5,
			FallbackCategory: "general",
		},
		Extraction: ExtractionConfig{
			Provider:        "auto",
			Fallback:        true,
			MaxInvoiceBytes: 64 * 1024,
			MinWeight:       0.3,
		},
		Generation: GenerationConfig{
			Provider:    "auto",
			Model:       "gemini-2.5-flash",
			Timeout:     Duration(60 * time.Second),
			MinInterval: Duration(3 * time.Second),
			MaxRetries:  3,
			Temperature: 0.2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: false,
			EnableMetrics:   true,
			ServiceName:     "legisrag",
			OTLPEndpoint:    "localhost:4317",
			OTLPProtocol:    "grpc",
			OTLPInsecure:    true,
			SampleRate:      1.0,
		},
	}
}

var (
	embeddingProviders = []string{"fastembed", "tei", "gemini", "hash"}
	indexBackends      = []string{"flat", "chromem"}
	extractProviders   = []string{"auto", "heuristic", "llm"}
	generateProviders  = []string{"auto", "gemini", "extractive"}
	logLevels          = []string{"trace", "debug", "info", "warn", "error"}
)

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max body bytes must be positive"))
	}

	if c.Corpus.Chunk.Size <= 0 || c.Corpus.Chunk.Overlap < 0 || c.Corpus.Chunk.Overlap >= c.Corpus.Chunk.Size {
		errs = append(errs, fmt.Errorf("invalid chunking: size %d, overlap %d", c.Corpus.Chunk.Size, c.Corpus.Chunk.Overlap))
	}
	if c.Corpus.Fetch.Endpoint != "" {
		if err := validateURL(c.Corpus.Fetch.Endpoint); err != nil {
			errs = append(errs, fmt.Errorf("corpus fetch endpoint: %w", err))
		}
	}

	if !oneOf(c.Embeddings.Provider, embeddingProviders) {
		errs = append(errs, fmt.Errorf("unknown embeddings provider %q (want one of %s)", c.Embeddings.Provider, strings.Join(embeddingProviders, ", ")))
	}
	if c.Embeddings.Provider == "tei" {
		if err := validateURL(c.Embeddings.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("embeddings base_url: %w", err))
		}
	}
	if c.Embeddings.Provider == "gemini" && !c.Embeddings.APIKey.IsSet() {
		errs = append(errs, errors.New("embeddings provider gemini requires an API key"))
	}
	if c.Embeddings.Dimension < 0 {
		errs = append(errs, errors.New("embeddings dimension cannot be negative"))
	}

	if !oneOf(c.Index.Backend, indexBackends) {
		errs = append(errs, fmt.Errorf("unknown index backend %q (want one of %s)", c.Index.Backend, strings.Join(indexBackends, ", ")))
	}
	if c.Index.Workers < 0 || c.Index.BatchSize < 0 {
		errs = append(errs, errors.New("index workers and batch size cannot be negative"))
	}

	if c.Retrieval.K <= 0 {
		errs = append(errs, fmt.Errorf("retrieval k must be positive, got %d", c.Retrieval.K))
	}

	if !oneOf(c.Extraction.Provider, extractProviders) {
		errs = append(errs, fmt.Errorf("unknown extraction provider %q (want one of %s)", c.Extraction.Provider, strings.Join(extractProviders, ", ")))
	}
	if c.Extraction.Provider == "llm" && !c.Generation.APIKey.IsSet() {
		errs = append(errs, errors.New("extraction provider llm requires a generation API key"))
	}

	if !oneOf(c.Generation.Provider, generateProviders) {
		errs = append(errs, fmt.Errorf("unknown generation provider %q (want one of %s)", c.Generation.Provider, strings.Join(generateProviders, ", ")))
	}
	if c.Generation.Provider == "gemini" && !c.Generation.APIKey.IsSet() {
		errs = append(errs, errors.New("generation provider gemini requires an API key"))
	}
	if c.Generation.MaxRetries < 0 {
		errs = append(errs, errors.New("generation max retries cannot be negative"))
	}

	if !oneOf(strings.ToLower(c.Logging.Level), logLevels) {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("log format must be 'json' or 'console', got %q", c.Logging.Format))
	}

	if c.Observability.EnableTelemetry {
		if c.Observability.ServiceName == "" {
			errs = append(errs, errors.New("service name required when telemetry is enabled"))
		}
		if c.Observability.OTLPProtocol != "grpc" && c.Observability.OTLPProtocol != "http" {
			errs = append(errs, fmt.Errorf("otlp protocol must be 'grpc' or 'http', got %q", c.Observability.OTLPProtocol))
		}
	}
	if c.Observability.SampleRate < 0 || c.Observability.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("sample rate must be within [0, 1], got %v", c.Observability.SampleRate))
	}

	return errors.Join(errs...)
}

// UseGemini reports whether generation goes through the Gemini API.
func (c *Config) UseGemini() bool {
	switch c.Generation.Provider {
	case "gemini":
		return true
	case "auto":
		return c.Generation.APIKey.IsSet()
	}
	return false
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
