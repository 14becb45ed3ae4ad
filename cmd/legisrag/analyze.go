package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/legisrag/internal/pipeline"
)

// analyzeResult is the --json output of analyze.
type analyzeResult struct {
	*pipeline.Report
	Passages   []pipeline.PassageSummary `json:"passages"`
	DurationMS int64                     `json:"duration_ms"`
}

func newAnalyzeCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "analyze <invoice>",
		Short: "Analyze one invoice and print the report",
		Long: `Analyze an invoice file (NF-e XML or text) and print the markdown report.
Use "-" to read the invoice from stdin.

Examples:
  legisrag analyze nfe.xml
  cat nfe.xml | legisrag analyze -
  legisrag analyze --json nfe.xml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invoice, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, appOptions{stderrLogs: true, loadCorpus: true})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			report, err := a.analyzer.Analyze(ctx, invoice)
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(analyzeResult{
					Report:     report,
					Passages:   pipeline.Summarize(report.Passages),
					DurationMS: report.Duration.Milliseconds(),
				})
			}
			_, err = fmt.Fprintln(out, report.Markdown)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	return cmd
}

// readInput reads path, or r when path is "-".
func readInput(r io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return data, nil
}
