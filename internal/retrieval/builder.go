package retrieval

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/fyrsmithlabs/legisrag/internal/corpus"
	"github.com/fyrsmithlabs/legisrag/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("legisrag.retrieval")

// Builder defaults.
const (
	DefaultBatchSize = 32
)

// BuilderConfig configures a Builder.
type BuilderConfig struct {
	// Backend selects the index implementation. Empty means flat.
	Backend vectorstore.Backend
	// Workers bounds concurrent embedding batches. Zero means GOMAXPROCS.
	Workers int
	// BatchSize is the number of segments per embedding call.
	BatchSize int
}

// Builder builds similarity indexes over filtered segment sets.
type Builder struct {
	embedder  vectorstore.Embedder
	backend   vectorstore.Backend
	workers   int
	batchSize int
	logger    *zap.Logger
}

// NewBuilder returns a builder embedding missing vectors with embedder.
func NewBuilder(embedder vectorstore.Embedder, cfg BuilderConfig, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	backend := cfg.Backend
	if backend == "" {
		backend = vectorstore.BackendFlat
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Builder{
		embedder:  embedder,
		backend:   backend,
		workers:   workers,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Build embeds the segments lacking a cached vector and indexes all of
// them. Vectors are cached on the segments, so a second build over the
// same segments makes no embedding calls. Any embedding failure aborts the
// build with ErrEmbeddingProvider.
func (b *Builder) Build(ctx context.Context, segments []*corpus.Segment) (idx *Index, err error) {
	ctx, span := tracer.Start(ctx, "Builder.Build")
	defer span.End()
	span.SetAttributes(
		attribute.Int("segments", len(segments)),
		attribute.String("backend", string(b.backend)),
	)

	start := time.Now()
	defer func() {
		BuildDuration.Observe(time.Since(start).Seconds())
		Operations.WithLabelValues("build", resultLabel(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	embedded, err := b.EmbedAll(ctx, segments)
	if err != nil {
		return nil, err
	}

	entries := make([]vectorstore.Entry, 0, len(segments))
	bySegment := make(map[string]*corpus.Segment, len(segments))
	for _, seg := range segments {
		if _, dup := bySegment[seg.ID]; dup {
			continue
		}
		vec, ok := seg.Embedding()
		if !ok {
			return nil, fmt.Errorf("%w: segment %q has no embedding after build", ErrEmbeddingProvider, seg.ID)
		}
		bySegment[seg.ID] = seg
		entries = append(entries, vectorstore.Entry{ID: seg.ID, Vector: vec, Content: seg.Text})
	}

	vectors, err := vectorstore.New(ctx, b.backend, entries)
	if err != nil {
		if errors.Is(err, vectorstore.ErrDimensionMismatch) || errors.Is(err, vectorstore.ErrEmptyVector) {
			// Cached vectors from another model, or a provider returning
			// inconsistent lengths.
			return nil, fmt.Errorf("%w: %w", ErrEmbeddingProvider, err)
		}
		return nil, fmt.Errorf("building %s index: %w", b.backend, err)
	}

	span.SetAttributes(attribute.Int("embedded", embedded), attribute.Int("dimension", vectors.Dimension()))
	span.SetStatus(codes.Ok, "success")
	b.logger.Debug("similarity index built",
		zap.Int("segments", len(entries)),
		zap.Int("embedded", embedded),
		zap.String("backend", string(b.backend)),
		zap.Int("dimension", vectors.Dimension()),
		zap.Duration("duration", time.Since(start)),
	)

	return &Index{
		vectors:  vectors,
		segments: bySegment,
		builtAt:  time.Now(),
	}, nil
}

// EmbedAll caches an embedding on every segment lacking one, in parallel
// batches. It returns the number of segments embedded by this call.
func (b *Builder) EmbedAll(ctx context.Context, segments []*corpus.Segment) (int, error) {
	if len(segments) == 0 {
		return 0, nil
	}

	ctx, span := tracer.Start(ctx, "Builder.EmbedAll")
	defer span.End()

	var embedded atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for lo := 0; lo < len(segments); lo += b.batchSize {
		batch := segments[lo:min(lo+b.batchSize, len(segments))]
		g.Go(func() error {
			n, err := corpus.EmbedMissing(gctx, batch, b.embedder.EmbedDocuments)
			if err != nil {
				return err
			}
			embedded.Add(int64(n))
			return nil
		})
	}

	err := g.Wait()
	n := int(embedded.Load())
	SegmentsEmbedded.Add(float64(n))
	span.SetAttributes(attribute.Int("embedded", n))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return n, fmt.Errorf("%w: %w", ErrEmbeddingProvider, err)
	}
	return n, nil
}

// Index is a read-only similarity index over one filter result. It is
// safe for concurrent use.
type Index struct {
	vectors  vectorstore.Index
	segments map[string]*corpus.Segment
	builtAt  time.Time
}

// Len returns the number of indexed segments.
func (i *Index) Len() int {
	if i == nil || i.vectors == nil {
		return 0
	}
	return i.vectors.Len()
}

// Dimension returns the vector length, or 0 for an empty index.
func (i *Index) Dimension() int {
	if i == nil || i.vectors == nil {
		return 0
	}
	return i.vectors.Dimension()
}

// Backend reports the vector backend.
func (i *Index) Backend() vectorstore.Backend {
	if i == nil || i.vectors == nil {
		return ""
	}
	return i.vectors.Backend()
}

// BuiltAt reports when the index was built.
func (i *Index) BuiltAt() time.Time { return i.builtAt }

// Contains reports whether the segment with the given id is indexed.
func (i *Index) Contains(id string) bool {
	if i == nil {
		return false
	}
	_, ok := i.segments[id]
	return ok
}
