package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/legisrag/internal/corpus"
	"github.com/fyrsmithlabs/legisrag/internal/fiscal"
	"github.com/fyrsmithlabs/legisrag/internal/vectorstore"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// DefaultK is the number of passages returned when none is requested.
const DefaultK = 5

// Query holds the two term sets searched for. Each non-empty set is one
// retrieval pass.
type Query struct {
	ShortTerms []string `json:"short_terms,omitempty"`
	LongTerms  []string `json:"long_terms,omitempty"`
}

// QueryFromContext returns the query terms of a fiscal context.
func QueryFromContext(fc fiscal.Context) Query {
	return Query{ShortTerms: fc.ShortTerms, LongTerms: fc.LongTerms}
}

// passes returns one query text per term set with at least one non-blank
// term. Terms of a set are joined with spaces.
func (q Query) passes() []string {
	var out []string
	for _, set := range [][]string{q.ShortTerms, q.LongTerms} {
		terms := make([]string, 0, len(set))
		for _, t := range set {
			if t = strings.Join(strings.Fields(t), " "); t != "" {
				terms = append(terms, t)
			}
		}
		if len(terms) > 0 {
			out = append(out, strings.Join(terms, " "))
		}
	}
	return out
}

// Passage is one ranked retrieval result.
type Passage struct {
	Segment *corpus.Segment
	// Distance is the index distance; lower is closer.
	Distance float32
	// Rank starts at 1.
	Rank int
}

// Retriever runs queries against indexes built with the same embedder.
type Retriever struct {
	embedder vectorstore.Embedder
	logger   *zap.Logger
}

// NewRetriever returns a retriever embedding queries with embedder, which
// must be the embedder the indexes were built with.
func NewRetriever(embedder vectorstore.Embedder, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{embedder: embedder, logger: logger}
}

// Retrieve returns at most k passages from idx, ordered by ascending
// distance and then by segment id. With both term sets present it runs two
// passes and keeps, for a segment found by both, its minimum distance.
//
// Retrieve fails with ErrInvalidQuery when k <= 0 or no term is usable,
// and with ErrEmbeddingProvider when a query cannot be embedded or does
// not match the index dimension. An empty index yields an empty result.
func (r *Retriever) Retrieve(ctx context.Context, idx *Index, q Query, k int) (passages []Passage, err error) {
	ctx, span := tracer.Start(ctx, "Retriever.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k), attribute.Int("index_size", idx.Len()))

	start := time.Now()
	defer func() {
		RetrieveDuration.Observe(time.Since(start).Seconds())
		Operations.WithLabelValues("retrieve", resultLabel(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidQuery, k)
	}
	texts := q.passes()
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no query terms", ErrInvalidQuery)
	}
	if idx.Len() == 0 {
		return []Passage{}, nil
	}

	best := make(map[string]float32)
	for pass, text := range texts {
		matches, err := r.search(ctx, idx, text, k, pass)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if d, seen := best[m.ID]; !seen || m.Distance < d {
				best[m.ID] = m.Distance
			}
		}
	}

	merged := make([]vectorstore.Match, 0, len(best))
	for id, d := range best {
		merged = append(merged, vectorstore.Match{ID: id, Distance: d})
	}
	vectorstore.SortMatches(merged)
	if len(merged) > k {
		merged = merged[:k]
	}

	passages = make([]Passage, len(merged))
	for i, m := range merged {
		passages[i] = Passage{Segment: idx.segments[m.ID], Distance: m.Distance, Rank: i + 1}
	}
	span.SetAttributes(attribute.Int("passes", len(texts)), attribute.Int("results_count", len(passages)))
	span.SetStatus(codes.Ok, "success")
	return passages, nil
}

func (r *Retriever) search(ctx context.Context, idx *Index, text string, k, pass int) ([]vectorstore.Match, error) {
	ctx, span := tracer.Start(ctx, "Retriever.pass")
	defer span.End()
	span.SetAttributes(attribute.Int("pass", pass), attribute.Int("query_chars", len(text)))

	vec, err := r.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", ErrEmbeddingProvider, err)
	}
	if len(vec) != idx.Dimension() {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, index has %d", ErrEmbeddingProvider, len(vec), idx.Dimension())
	}

	matches, err := idx.vectors.Search(ctx, vec, k)
	if err != nil {
		if errors.Is(err, vectorstore.ErrDimensionMismatch) || errors.Is(err, vectorstore.ErrEmptyVector) {
			return nil, fmt.Errorf("%w: %w", ErrEmbeddingProvider, err)
		}
		return nil, fmt.Errorf("searching index: %w", err)
	}
	r.logger.Debug("retrieval pass",
		zap.Int("pass", pass),
		zap.Int("matches", len(matches)),
	)
	return matches, nil
}
