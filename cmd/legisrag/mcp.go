package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/legisrag/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools on stdio",
		Long: `Serve the retrieve_legislation and analyze_invoice MCP tools over the
stdio transport. Logs go to stderr; stdout carries the protocol.

Examples:
  # Register with an MCP client
  {"command": "legisrag", "args": ["mcp"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, appOptions{stderrLogs: true, loadCorpus: true})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			srv, err := mcp.NewServer(&mcp.Config{
				Name:            "legisrag",
				Version:         version,
				Logger:          a.logger,
				MaxInvoiceBytes: a.cfg.Server.MaxBodyBytes,
			}, a.analyzer)
			if err != nil {
				return err
			}

			a.logger.Info("corpus loaded for MCP",
				zap.String("path", a.cfg.Corpus.Path),
				zap.Int("segments", a.store.Snapshot().Len()),
			)
			return srv.Run(ctx)
		},
	}
}
