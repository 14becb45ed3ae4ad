package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/legisrag/internal/corpus"
	"github.com/fyrsmithlabs/legisrag/internal/fiscal"
)

type ingestOptions struct {
	terms    []string
	category string
	general  bool
	out      string
	appendTo bool
	endpoint string
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch legislation pages into a corpus file",
		Long: `Search the legislation portal for each term, split the pages into
segments tagged with the category and write them to a corpus file. The
output format follows the file extension (.json, .yaml, .toml).

Examples:
  legisrag ingest --term ICMS --category ICMS --out corpus.json
  legisrag ingest --term "substituição tributária" --category ICMS-ST --out corpus.json --append`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, appOptions{stderrLogs: true})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			n, err := runIngest(ctx, a, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d segment(s) to %s\n", n, opts.out)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&opts.terms, "term", "t", nil, "portal search term (repeatable)")
	cmd.Flags().StringVarP(&opts.category, "category", "c", "", "category tag for the fetched segments")
	cmd.Flags().BoolVar(&opts.general, "general", false, "also tag segments as general")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "corpus file to write")
	cmd.Flags().BoolVar(&opts.appendTo, "append", false, "merge into an existing corpus file, replacing segments with the same id")
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "portal search endpoint (overrides corpus.fetch.endpoint)")
	_ = cmd.MarkFlagRequired("term")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// runIngest fetches, chunks and writes segments, returning how many the
// output file holds.
func runIngest(ctx context.Context, a *app, opts ingestOptions) (int, error) {
	category := fiscal.NormalizeCategory(opts.category)
	if category == "" {
		return 0, errors.New("category is required")
	}
	format, err := corpus.FormatFromPath(opts.out)
	if err != nil {
		return 0, err
	}

	tags := []string{category}
	if opts.general {
		tags = append(tags, a.cfg.Retrieval.FallbackCategory)
	}
	chunker, err := corpus.NewChunker(corpus.ChunkerConfig{
		ChunkSize:    a.cfg.Corpus.Chunk.Size,
		ChunkOverlap: a.cfg.Corpus.Chunk.Overlap,
		Tags:         tags,
	})
	if err != nil {
		return 0, err
	}

	fetchCfg := a.cfg.Corpus.Fetch
	endpoint := fetchCfg.Endpoint
	if opts.endpoint != "" {
		endpoint = opts.endpoint
	}
	fetcher := corpus.NewFetcher(corpus.FetcherConfig{
		Endpoint:    endpoint,
		Timeout:     fetchCfg.Timeout.Duration(),
		RowLimit:    fetchCfg.RowLimit,
		MinInterval: fetchCfg.MinInterval.Duration(),
	}, a.logger)

	var segments []*corpus.Segment
	for _, term := range opts.terms {
		pages, err := fetcher.Search(ctx, term)
		if err != nil {
			return 0, fmt.Errorf("searching %q: %w", term, err)
		}
		segs, err := chunker.Segments(pages)
		if err != nil {
			return 0, err
		}
		a.logger.Info("term ingested",
			zap.String("term", term),
			zap.Int("pages", len(pages)),
			zap.Int("segments", len(segs)),
		)
		segments = append(segments, segs...)
	}

	if opts.appendTo {
		existing, err := readCorpus(opts.out)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return 0, err
		}
		segments = mergeSegments(existing, segments)
	} else {
		segments = mergeSegments(nil, segments)
	}
	if len(segments) == 0 {
		return 0, errors.New("no legislation pages found for the given terms")
	}

	if err := writeCorpus(opts.out, segments, format); err != nil {
		return 0, err
	}
	return len(segments), nil
}

// mergeSegments appends update to base; a segment in update replaces the
// one with the same id, keeping its position.
func mergeSegments(base, update []*corpus.Segment) []*corpus.Segment {
	out := make([]*corpus.Segment, 0, len(base)+len(update))
	pos := make(map[string]int, len(base)+len(update))
	for _, seg := range slices.Concat(base, update) {
		if i, ok := pos[seg.ID]; ok {
			out[i] = seg
			continue
		}
		pos[seg.ID] = len(out)
		out = append(out, seg)
	}
	return out
}

// readCorpus parses the corpus file at path.
func readCorpus(path string) ([]*corpus.Segment, error) {
	format, err := corpus.FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return corpus.Parse(raw, format)
}

// writeCorpus encodes segments and replaces path atomically so a watching
// server never reads a partial file.
func writeCorpus(path string, segments []*corpus.Segment, format corpus.Format) error {
	data, err := corpus.Encode(segments, format)
	if err != nil {
		return fmt.Errorf("encoding corpus: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing corpus: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("writing corpus: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing corpus: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
