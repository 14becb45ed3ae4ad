package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/legisrag/internal/corpus"
)

func newEmbedCmd() *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Precompute corpus embeddings",
		Long: `Embed every segment of a corpus file with the configured provider and
write the vectors back, so later loads skip provider calls. Segments that
already carry a vector are kept as they are.

Examples:
  legisrag embed --corpus corpus.json
  legisrag embed --corpus corpus.json --out corpus.embedded.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, appOptions{stderrLogs: true})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if in == "" {
				in = a.cfg.Corpus.Path
			}
			if out == "" {
				out = in
			}
			total, embedded, err := runEmbed(ctx, a, in, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Embedded %d of %d segment(s) with %s into %s\n",
				embedded, total, a.embedder.Model(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "corpus", "", "corpus file to embed (default corpus.path)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: overwrite --corpus)")
	return cmd
}

func runEmbed(ctx context.Context, a *app, in, out string) (total, embedded int, err error) {
	segments, err := readCorpus(in)
	if err != nil {
		return 0, 0, err
	}
	format, err := corpus.FormatFromPath(out)
	if err != nil {
		return 0, 0, err
	}

	embedded, err = a.builder.EmbedAll(ctx, segments)
	if err != nil {
		return len(segments), embedded, err
	}
	if err := writeCorpus(out, segments, format); err != nil {
		return len(segments), embedded, err
	}
	a.logger.Info("corpus embedded",
		zap.String("in", in),
		zap.String("out", out),
		zap.Int("segments", len(segments)),
		zap.Int("embedded", embedded),
		zap.String("model", a.embedder.Model()),
	)
	return len(segments), embedded, nil
}
