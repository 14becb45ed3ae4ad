// Legisrag finds the tax legislation that applies to an invoice and writes
// a savings report from it.
//
// Usage:
//
//	# Serve the HTTP API
//	legisrag serve
//
//	# Serve MCP tools on stdio
//	legisrag mcp
//
//	# Analyze one invoice
//	legisrag analyze nfe.xml
//
// Configuration is read from ~/.config/legisrag/config.yaml (or --config)
// and LEGISRAG_* environment variables.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "legisrag",
		Short: "Tax legislation retrieval for invoices",
		Long: `legisrag classifies an invoice by tax category, retrieves the applicable
legislation passages from a local corpus and writes a savings report.

It runs as an HTTP service (serve), as MCP tools over stdio (mcp) or as a
one-shot command (analyze, search).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/legisrag/config.yaml)")

	root.AddCommand(
		newServeCmd(),
		newMCPCmd(),
		newAnalyzeCmd(),
		newSearchCmd(),
		newIngestCmd(),
		newEmbedCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "legisrag by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}
