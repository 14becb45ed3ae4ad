package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/legisrag/internal/corpus"
	httpapi "github.com/fyrsmithlabs/legisrag/internal/http"
)

func newServeCmd() *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the retrieval and analysis HTTP API.

The corpus at corpus.path is loaded at startup. A corpus that fails to load
is logged and the service starts without one: /health reports no_corpus
until POST /api/v1/corpus/reload (or the file watcher, with corpus.watch)
installs a valid catalog.

Examples:
  legisrag serve
  legisrag serve --port 8080
  LEGISRAG_CORPUS_WATCH=true legisrag serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			return runServe(ctx, a)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen address (overrides server.http_host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.http_port)")
	return cmd
}

// runServe serves HTTP until ctx is done, then shuts down gracefully.
func runServe(ctx context.Context, a *app) error {
	cfg := a.cfg

	if snap, err := a.store.LoadFile(cfg.Corpus.Path); err != nil {
		a.logger.Warn("starting without corpus", zap.String("path", cfg.Corpus.Path), zap.Error(err))
	} else {
		a.logger.Info("corpus loaded",
			zap.String("path", cfg.Corpus.Path),
			zap.Int("segments", snap.Len()),
			zap.Int("embedded", snap.EmbeddedCount()),
		)
	}

	if cfg.Corpus.Watch {
		w, err := corpus.NewWatcher(a.store, cfg.Corpus.Path, a.logger,
			corpus.WithDebounce(cfg.Corpus.Debounce.Duration()))
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("starting corpus watcher: %w", err)
		}
		defer w.Stop()
	}

	srv, err := httpapi.NewServer(a.analyzer, a.logger, &httpapi.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout.Duration(),
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		CorpusPath:     cfg.Corpus.Path,
		Version:        version,
	})
	if err != nil {
		return fmt.Errorf("creating HTTP server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout.Duration()))
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	if err := <-errCh; err != nil {
		return fmt.Errorf("HTTP server: %w", err)
	}
	a.logger.Info("server shutdown complete")
	return nil
}
