package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/legisrag/internal/fiscal"
	"github.com/fyrsmithlabs/legisrag/internal/pipeline"
	"github.com/fyrsmithlabs/legisrag/internal/retrieval"
)

type searchResult struct {
	Category      string                    `json:"category"`
	CorpusVersion uint64                    `json:"corpus_version"`
	Passages      []pipeline.PassageSummary `json:"passages"`
}

func newSearchCmd() *cobra.Command {
	var (
		category   string
		shortTerms []string
		longTerms  []string
		k          int
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Retrieve legislation passages for a category",
		Long: `Retrieve the passages closest to the given terms among the legislation
tagged with the category or the fallback category.

Examples:
  legisrag search --category ICMS-ST --short "substituição tributária" --short cerveja
  legisrag search --category PIS --long "alíquota zero na revenda" -k 3 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fc := fiscal.Context{
				Category:   fiscal.NormalizeCategory(category),
				ShortTerms: shortTerms,
				LongTerms:  longTerms,
			}.Normalize()
			if fc.Category == "" {
				return errors.New("--category is required")
			}
			if !fc.HasTerms() {
				return errors.New("at least one --short or --long term is required")
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, appOptions{stderrLogs: true, loadCorpus: true})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			passages, err := a.analyzer.Search(ctx, fc, k)
			if err != nil {
				return searchError(fc.Category, err)
			}

			res := searchResult{
				Category:      fc.Category,
				CorpusVersion: a.store.Snapshot().Version,
				Passages:      pipeline.Summarize(passages),
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			return renderPassages(cmd.OutOrStdout(), res.Category, res.CorpusVersion, res.Passages)
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "fiscal category (ICMS, ICMS-ST, ISS, IPI, PIS, COFINS)")
	cmd.Flags().StringArrayVarP(&shortTerms, "short", "s", nil, "short search term (repeatable)")
	cmd.Flags().StringArrayVarP(&longTerms, "long", "l", nil, "long search phrase (repeatable)")
	cmd.Flags().IntVarP(&k, "k", "k", 0, "passages to return (default retrieval.k)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print passages as JSON")
	return cmd
}

// searchError rewords retrieval failures for a terminal user.
func searchError(category string, err error) error {
	switch {
	case errors.Is(err, retrieval.ErrEmptyCorpus):
		return fmt.Errorf("no legislation tagged %s (or the fallback category) in the corpus: %w", category, err)
	case errors.Is(err, retrieval.ErrEmbeddingProvider):
		return fmt.Errorf("embedding provider failed, check the embeddings settings: %w", err)
	}
	return err
}
