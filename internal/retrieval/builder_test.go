package retrieval_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fyrsmithlabs/legisrag/internal/corpus"
	"github.com/fyrsmithlabs/legisrag/internal/retrieval"
	"github.com/fyrsmithlabs/legisrag/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_EmbedsOncePerSegment(t *testing.T) {
	emb := newFakeEmbedder(scenarioVectors())
	b := retrieval.NewBuilder(emb, retrieval.BuilderConfig{BatchSize: 1}, nil)
	segments := scenarioSegments()

	idx, err := b.Build(context.Background(), segments)
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, 3, idx.Dimension())
	assert.Equal(t, vectorstore.BackendFlat, idx.Backend())
	calls := emb.docCalls.Load()
	assert.Equal(t, int64(3), calls)

	again, err := b.Build(context.Background(), segments)
	require.NoError(t, err)
	assert.Equal(t, 3, again.Len())
	assert.Equal(t, calls, emb.docCalls.Load(), "second build must not call the provider")

	// A subset of already embedded segments is free as well.
	_, err = b.Build(context.Background(), segments[:2])
	require.NoError(t, err)
	assert.Equal(t, calls, emb.docCalls.Load())
}

func TestBuilder_ConcurrentBuildsEmbedEachSegmentOnce(t *testing.T) {
	vectors := make(map[string][]float32)
	var segments []*corpus.Segment
	for i := 0; i < 64; i++ {
		text := "segmento " + string(rune('a'+i%26)) + string(rune('a'+i/26))
		vectors[text] = []float32{float32(i), 1}
		segments = append(segments, corpus.NewSegment(text, text, "Art."+text, []string{"general"}))
	}
	emb := newFakeEmbedder(vectors)
	b := retrieval.NewBuilder(emb, retrieval.BuilderConfig{Workers: 4, BatchSize: 5}, nil)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			// Different starting points give overlapping, differently split batches.
			rotated := append(append([]*corpus.Segment{}, segments[offset:]...), segments[:offset]...)
			_, err := b.Build(context.Background(), rotated)
			assert.NoError(t, err)
		}(g * 7)
	}
	wg.Wait()

	for text := range vectors {
		assert.Equal(t, 1, emb.timesEmbedded(text), text)
	}
}

func TestBuilder_FailureAbortsBuild(t *testing.T) {
	emb := newFakeEmbedder(scenarioVectors())
	emb.failDocs = errors.New("provider unavailable")
	b := retrieval.NewBuilder(emb, retrieval.BuilderConfig{}, nil)
	segments := scenarioSegments()

	idx, err := b.Build(context.Background(), segments)
	assert.ErrorIs(t, err, retrieval.ErrEmbeddingProvider)
	assert.Nil(t, idx)
	for _, seg := range segments {
		_, ok := seg.Embedding()
		assert.False(t, ok)
	}
}

func TestBuilder_PartialFailureAbortsBuild(t *testing.T) {
	vectors := scenarioVectors()
	delete(vectors, textB)
	emb := newFakeEmbedder(vectors)
	b := retrieval.NewBuilder(emb, retrieval.BuilderConfig{BatchSize: 1, Workers: 1}, nil)

	idx, err := b.Build(context.Background(), scenarioSegments())
	assert.ErrorIs(t, err, retrieval.ErrEmbeddingProvider)
	assert.Nil(t, idx)
}

func TestBuilder_MixedDimensions(t *testing.T) {
	vectors := scenarioVectors()
	vectors[textC] = []float32{0, 1}
	b := retrieval.NewBuilder(newFakeEmbedder(vectors), retrieval.BuilderConfig{}, nil)

	_, err := b.Build(context.Background(), scenarioSegments())
	assert.ErrorIs(t, err, retrieval.ErrEmbeddingProvider)
}

func TestBuilder_EmptySubset(t *testing.T) {
	emb := newFakeEmbedder(nil)
	idx, err := retrieval.NewBuilder(emb, retrieval.BuilderConfig{}, nil).Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
	assert.Zero(t, emb.docCalls.Load())
}

func TestBuilder_ChromemBackend(t *testing.T) {
	emb := newFakeEmbedder(scenarioVectors())
	b := retrieval.NewBuilder(emb, retrieval.BuilderConfig{Backend: vectorstore.BackendChromem}, nil)

	idx, err := b.Build(context.Background(), scenarioSegments())
	require.NoError(t, err)
	assert.Equal(t, vectorstore.BackendChromem, idx.Backend())
	assert.True(t, idx.Contains("B"))
	assert.False(t, idx.Contains("Z"))
}
