package corpus

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

// Segment is an immutable unit of retrievable legal text.
//
// Every field except the embedding is fixed at load time. The embedding is
// written at most once, by EmbedMissing, and read lock-free afterwards.
type Segment struct {
	ID       string
	Text     string
	Citation string

	// tags is sorted and free of duplicates.
	tags []string

	// embedMu serializes the single write of embedding.
	embedMu   sync.Mutex
	embedding atomic.Pointer[[]float32]
}

// NewSegment builds a segment. Tags are trimmed, deduplicated and sorted.
func NewSegment(id, text, citation string, tags []string) *Segment {
	return &Segment{
		ID:       id,
		Text:     text,
		Citation: citation,
		tags:     normalizeTags(tags),
	}
}

// Tags returns a copy of the segment's category tags.
func (s *Segment) Tags() []string {
	return slices.Clone(s.tags)
}

// HasTag reports whether tag is one of the segment's category tags.
// Matching is exact.
func (s *Segment) HasTag(tag string) bool {
	_, found := slices.BinarySearch(s.tags, tag)
	return found
}

// Embedding returns the cached vector, if one has been computed or loaded.
// The returned slice must not be modified.
func (s *Segment) Embedding() ([]float32, bool) {
	v := s.embedding.Load()
	if v == nil {
		return nil, false
	}
	return *v, true
}

// setEmbedding stores v unless a vector is already cached. It reports
// whether v was stored.
func (s *Segment) setEmbedding(v []float32) bool {
	cp := slices.Clone(v)
	return s.embedding.CompareAndSwap(nil, &cp)
}

// sameContent reports whether two segments carry identical text, citation
// and tags, meaning a cached embedding of one is valid for the other.
func (s *Segment) sameContent(o *Segment) bool {
	return s.ID == o.ID && s.Text == o.Text && s.Citation == o.Citation && slices.Equal(s.tags, o.tags)
}

// EmbedFunc computes one vector per input text, in order.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// EmbedMissing computes and caches embeddings for the segments in batch that
// do not have one yet. It returns how many segments were embedded.
//
// Segments are locked in ID order before checking the cache, so concurrent
// callers with overlapping batches never embed the same segment twice and
// never deadlock. If embed fails nothing is cached for the batch.
func EmbedMissing(ctx context.Context, batch []*Segment, embed EmbedFunc) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	ordered := slices.Clone(batch)
	slices.SortFunc(ordered, func(a, b *Segment) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	ordered = slices.CompactFunc(ordered, func(a, b *Segment) bool { return a == b })

	for _, seg := range ordered {
		seg.embedMu.Lock()
	}
	defer func() {
		for _, seg := range ordered {
			seg.embedMu.Unlock()
		}
	}()

	pending := make([]*Segment, 0, len(ordered))
	texts := make([]string, 0, len(ordered))
	for _, seg := range ordered {
		if _, ok := seg.Embedding(); ok {
			continue
		}
		pending = append(pending, seg)
		texts = append(texts, seg.Text)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	vectors, err := embed(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(vectors) != len(pending) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(pending))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return 0, fmt.Errorf("embedder returned an empty vector for segment %q", pending[i].ID)
		}
	}

	for i, seg := range pending {
		seg.setEmbedding(vectors[i])
	}
	return len(pending), nil
}
