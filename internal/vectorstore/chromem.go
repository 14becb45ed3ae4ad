package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var chromemTracer = otel.Tracer("legisrag.vectorstore.chromem")

const chromemCollection = "segments"

// errNoEmbeddingFunc is returned if chromem ever tries to embed text itself.
// Every document and query reaching the collection carries its vector.
var errNoEmbeddingFunc = errors.New("chromem index only accepts precomputed vectors")

// ChromemIndex keeps vectors in an in-memory chromem-go collection.
//
// chromem-go compares normalized vectors by dot product, so vectors are
// normalized on the way in and distances are reported as 1 - cosine
// similarity. Results are re-sorted by (distance, id) because chromem does
// not guarantee an order among equal similarities.
type ChromemIndex struct {
	collection *chromem.Collection
	count      int
	dim        int
}

// NewChromemIndex builds a chromem collection from entries.
func NewChromemIndex(ctx context.Context, entries []Entry) (*ChromemIndex, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Build")
	defer span.End()
	span.SetAttributes(attribute.Int("document_count", len(entries)))

	db := chromem.NewDB()
	collection, err := db.CreateCollection(chromemCollection, nil, func(context.Context, string) ([]float32, error) {
		return nil, errNoEmbeddingFunc
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	idx := &ChromemIndex{collection: collection}
	if len(entries) == 0 {
		return idx, nil
	}
	if err := validateEntries(entries); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		content := e.Content
		if content == "" {
			content = e.ID
		}
		docs[i] = chromem.Document{
			ID:        e.ID,
			Content:   content,
			Embedding: normalize(e.Vector),
		}
	}

	// Vectors are precomputed so concurrency only parallelizes the inserts.
	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("adding documents: %w", err)
	}

	idx.count = len(entries)
	idx.dim = len(entries[0].Vector)
	span.SetStatus(codes.Ok, "success")
	return idx, nil
}

// Search implements Index.
func (c *ChromemIndex) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k), attribute.Int("vectors", c.count))

	start := time.Now()
	matches, err := c.search(ctx, query, k)
	observeSearch(BackendChromem, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("results_count", len(matches)))
	return matches, nil
}

func (c *ChromemIndex) search(ctx context.Context, query []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if c.count == 0 {
		return []Match{}, nil
	}
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query", ErrEmptyVector)
	}
	if len(query) != c.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(query), c.dim)
	}

	// chromem requires nResults <= document count. Ties at the cut-off
	// could otherwise be decided by chromem's internal order, so fetch
	// everything and cut after the deterministic sort.
	results, err := c.collection.QueryEmbedding(ctx, normalize(query), c.count, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{ID: r.ID, Distance: 1 - r.Similarity}
	}
	SortMatches(matches)
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// Len implements Index.
func (c *ChromemIndex) Len() int { return c.count }

// Dimension implements Index.
func (c *ChromemIndex) Dimension() int { return c.dim }

// Backend implements Index.
func (c *ChromemIndex) Backend() Backend { return BackendChromem }

func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sumSq == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sumSq)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}
