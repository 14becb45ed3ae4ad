package vectorstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var flatTracer = otel.Tracer("legisrag.vectorstore.flat")

// FlatIndex is an exact index: every search scans all vectors.
//
// Vectors are stored in one contiguous slice. Distances are squared
// Euclidean, which orders results the same way as Euclidean distance and
// matches what FAISS IndexFlatL2 reports.
type FlatIndex struct {
	ids  []string
	data []float32
	dim  int
}

// NewFlatIndex copies entries into a new index.
func NewFlatIndex(entries []Entry) (*FlatIndex, error) {
	idx := &FlatIndex{ids: make([]string, 0, len(entries))}
	if len(entries) == 0 {
		return idx, nil
	}

	if err := validateEntries(entries); err != nil {
		return nil, err
	}
	idx.dim = len(entries[0].Vector)
	idx.data = make([]float32, 0, len(entries)*idx.dim)
	for _, e := range entries {
		idx.ids = append(idx.ids, e.ID)
		idx.data = append(idx.data, e.Vector...)
	}
	return idx, nil
}

// Search implements Index.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	_, span := flatTracer.Start(ctx, "FlatIndex.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k), attribute.Int("vectors", len(f.ids)))

	start := time.Now()
	matches, err := f.search(query, k)
	observeSearch(BackendFlat, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("results_count", len(matches)))
	return matches, nil
}

func (f *FlatIndex) search(query []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if len(f.ids) == 0 {
		return []Match{}, nil
	}
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query", ErrEmptyVector)
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(query), f.dim)
	}

	all := make([]Match, len(f.ids))
	for i, id := range f.ids {
		all[i] = Match{ID: id, Distance: squaredL2(query, f.data[i*f.dim:(i+1)*f.dim])}
	}
	SortMatches(all)

	if k < len(all) {
		all = all[:k]
	}
	return all, nil
}

// Len implements Index.
func (f *FlatIndex) Len() int { return len(f.ids) }

// Dimension implements Index.
func (f *FlatIndex) Dimension() int { return f.dim }

// Backend implements Index.
func (f *FlatIndex) Backend() Backend { return BackendFlat }

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// SortMatches orders matches by ascending distance, then ascending id.
func SortMatches(m []Match) {
	slices.SortFunc(m, func(a, b Match) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func validateEntries(entries []Entry) error {
	dim := len(entries[0].Vector)
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("%w: entry %d has no id", ErrInvalidConfig, i)
		}
		if len(e.Vector) == 0 {
			return fmt.Errorf("%w: entry %d (%q)", ErrEmptyVector, i, e.ID)
		}
		if len(e.Vector) != dim {
			return fmt.Errorf("%w: entry %d (%q) has %d dimensions, expected %d", ErrDimensionMismatch, i, e.ID, len(e.Vector), dim)
		}
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateID, e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	return nil
}
