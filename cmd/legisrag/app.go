package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/legisrag/internal/config"
	"github.com/fyrsmithlabs/legisrag/internal/corpus"
	"github.com/fyrsmithlabs/legisrag/internal/embeddings"
	"github.com/fyrsmithlabs/legisrag/internal/extraction"
	"github.com/fyrsmithlabs/legisrag/internal/insight"
	"github.com/fyrsmithlabs/legisrag/internal/llm"
	"github.com/fyrsmithlabs/legisrag/internal/logging"
	"github.com/fyrsmithlabs/legisrag/internal/pipeline"
	"github.com/fyrsmithlabs/legisrag/internal/retrieval"
	"github.com/fyrsmithlabs/legisrag/internal/telemetry"
	"github.com/fyrsmithlabs/legisrag/internal/vectorstore"
)

// app holds the components shared by the commands.
type app struct {
	cfg       *config.Config
	log       *logging.Logger
	logger    *zap.Logger
	telemetry *telemetry.Telemetry
	embedder  embeddings.Provider
	builder   *retrieval.Builder
	store     *corpus.Store
	analyzer  *pipeline.Analyzer
}

type appOptions struct {
	// stderrLogs keeps stdout free for command output or a stdio protocol.
	stderrLogs bool
	// loadCorpus loads cfg.Corpus.Path before returning.
	loadCorpus bool
}

// newApp loads the configuration and wires the analysis pipeline.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return newAppWithConfig(ctx, cfg, opts)
}

func newAppWithConfig(ctx context.Context, cfg *config.Config, opts appOptions) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close(ctx)
		}
	}()

	logCfg, err := logging.FromConfig(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logging config: %w", err)
	}
	if opts.stderrLogs {
		logCfg.Output.Stdout = false
		logCfg.Output.Stderr = true
	}
	a.log, err = logging.NewLogger(logCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	a.logger = a.log.Underlying()

	a.telemetry, err = telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version), a.logger)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	a.embedder, err = embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		BaseURL:   cfg.Embeddings.BaseURL,
		APIKey:    cfg.Embeddings.APIKey.Value(),
		CacheDir:  cfg.Embeddings.CacheDir,
		Dimension: cfg.Embeddings.Dimension,
		Timeout:   cfg.Embeddings.Timeout.Duration(),
		Logger:    a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	// One client serves extraction and generation so the minimum interval
	// between model calls holds across both stages.
	var client llm.Client
	if cfg.Generation.APIKey.IsSet() {
		client, err = llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:      cfg.Generation.APIKey.Value(),
			Model:       cfg.Generation.Model,
			BaseURL:     cfg.Generation.BaseURL,
			Timeout:     cfg.Generation.Timeout.Duration(),
			MinInterval: cfg.Generation.MinInterval.Duration(),
			MaxRetries:  cfg.Generation.MaxRetries,
			Temperature: float32(cfg.Generation.Temperature),
			Logger:      a.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating model client: %w", err)
		}
	}

	extractCfg := extraction.DefaultConfig()
	extractCfg.Provider = cfg.Extraction.Provider
	extractCfg.Fallback = cfg.Extraction.Fallback
	extractCfg.MaxInvoiceBytes = cfg.Extraction.MaxInvoiceBytes
	extractCfg.MinWeight = cfg.Extraction.MinWeight
	extractor, err := extraction.New(extractCfg, client, a.logger)
	if err != nil {
		return nil, fmt.Errorf("creating extractor: %w", err)
	}

	var generator insight.Generator = insight.ExtractiveGenerator{}
	if cfg.UseGemini() {
		if client == nil {
			return nil, errors.New("gemini generation requires an API key")
		}
		generator = insight.NewLLMGenerator(client, cfg.Extraction.MaxInvoiceBytes, a.logger)
	}

	backend, err := vectorstore.ParseBackend(cfg.Index.Backend)
	if err != nil {
		return nil, err
	}
	a.builder = retrieval.NewBuilder(a.embedder, retrieval.BuilderConfig{
		Backend:   backend,
		Workers:   cfg.Index.Workers,
		BatchSize: cfg.Index.BatchSize,
	}, a.logger)

	a.store = corpus.NewStore(a.logger)
	if opts.loadCorpus {
		if _, err := a.store.LoadFile(cfg.Corpus.Path); err != nil {
			return nil, err
		}
	}

	a.analyzer, err = pipeline.NewAnalyzer(pipeline.Deps{
		Store:     a.store,
		Extractor: extractor,
		Cache:     retrieval.NewIndexCache(retrieval.NewFilter(cfg.Retrieval.FallbackCategory), a.builder, a.logger),
		Retriever: retrieval.NewRetriever(a.embedder, a.logger),
		Generator: generator,
	}, cfg.Retrieval.K, a.logger)
	if err != nil {
		return nil, fmt.Errorf("creating analyzer: %w", err)
	}

	a.logger.Debug("pipeline ready",
		zap.String("embeddings", a.embedder.Model()),
		zap.String("index_backend", string(backend)),
		zap.Bool("gemini", cfg.UseGemini()),
		zap.Int("k", cfg.Retrieval.K),
	)
	return a, nil
}

// Close releases the provider and flushes telemetry and logs.
func (a *app) Close(ctx context.Context) {
	if a.embedder != nil {
		if err := a.embedder.Close(); err != nil && a.logger != nil {
			a.logger.Warn("closing embedding provider", zap.Error(err))
		}
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(context.WithoutCancel(ctx)); err != nil && a.logger != nil {
			a.logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}
