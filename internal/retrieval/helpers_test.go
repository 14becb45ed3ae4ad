package retrieval_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fyrsmithlabs/legisrag/internal/corpus"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder maps known texts to fixed vectors and counts calls.
type fakeEmbedder struct {
	vectors map[string][]float32

	mu       sync.Mutex
	embedded map[string]int

	docCalls   atomic.Int64
	queryCalls atomic.Int64
	failDocs   error
	failQuery  error

	// started and release, when set, hold EmbedDocuments until release
	// closes or ctx ends.
	started chan struct{}
	release chan struct{}
}

func newFakeEmbedder(vectors map[string][]float32) *fakeEmbedder {
	return &fakeEmbedder{vectors: vectors, embedded: make(map[string]int)}
}

func (f *fakeEmbedder) lookup(text string) ([]float32, error) {
	v, ok := f.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.docCalls.Add(1)
	if f.release != nil {
		f.started <- struct{}{}
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failDocs != nil {
		return nil, f.failDocs
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.lookup(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
		f.mu.Lock()
		f.embedded[t]++
		f.mu.Unlock()
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queryCalls.Add(1)
	if f.failQuery != nil {
		return nil, f.failQuery
	}
	return f.lookup(text)
}

func (f *fakeEmbedder) timesEmbedded(text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embedded[text]
}

// The three-segment corpus: A (ICMS, Art.1), B (ISS, Art.2), C (general, Art.99).
const (
	textA = "Art. 1 O ICMS incide sobre a circulação de mercadorias."
	textB = "Art. 2 O ISS incide sobre a prestação de serviços."
	textC = "Art. 99 Disposições gerais aplicáveis a todos os tributos."

	queryNearA   = "circulação de mercadorias"
	queryNearB   = "prestação de serviços"
	queryNearC   = "disposições gerais"
	queryBetween = "mercadorias e serviços"
)

func scenarioVectors() map[string][]float32 {
	return map[string][]float32{
		textA:        {1, 0, 0},
		textB:        {0, 1, 0},
		textC:        {0, 0, 1},
		queryNearA:   {0.9, 0.1, 0},
		queryNearB:   {0.1, 0.9, 0},
		queryNearC:   {0, 0.2, 0.9},
		queryBetween: {0.5, 0.5, 0},
	}
}

func scenarioSegments() []*corpus.Segment {
	return []*corpus.Segment{
		corpus.NewSegment("A", textA, "Art.1", []string{"ICMS"}),
		corpus.NewSegment("B", textB, "Art.2", []string{"ISS"}),
		corpus.NewSegment("C", textC, "Art.99", []string{"general"}),
	}
}

func snapshotOf(t *testing.T, segments []*corpus.Segment) *corpus.Snapshot {
	t.Helper()
	snap := corpus.NewStore(nil).Replace(segments, "test")
	require.NotNil(t, snap)
	return snap
}

func segmentIDs(segs []*corpus.Segment) []string {
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = s.ID
	}
	return out
}
