package corpus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingEmbed(calls *atomic.Int64) EmbedFunc {
	return func(_ context.Context, texts []string) ([][]float32, error) {
		calls.Add(int64(len(texts)))
		out := make([][]float32, len(texts))
		for i, t := range texts {
			out[i] = []float32{float32(len(t)), 1}
		}
		return out, nil
	}
}

func TestSegment_Tags(t *testing.T) {
	seg := NewSegment("a", "text", "Art.1", []string{" ICMS", "general", "ICMS", ""})

	assert.Equal(t, []string{"ICMS", "general"}, seg.Tags())
	assert.True(t, seg.HasTag("ICMS"))
	assert.True(t, seg.HasTag("general"))
	assert.False(t, seg.HasTag("icms"), "tag matching is exact")
}

func TestEmbedMissing_ComputesOnce(t *testing.T) {
	segs := []*Segment{
		NewSegment("b", "second", "Art.2", []string{"ISS"}),
		NewSegment("a", "first", "Art.1", []string{"ICMS"}),
	}
	var calls atomic.Int64

	n, err := EmbedMissing(context.Background(), segs, countingEmbed(&calls))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(2), calls.Load())

	n, err = EmbedMissing(context.Background(), segs, countingEmbed(&calls))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(2), calls.Load(), "cached segments must not be embedded again")

	v, ok := segs[1].Embedding()
	require.True(t, ok)
	assert.Equal(t, []float32{5, 1}, v)
}

func TestEmbedMissing_ConcurrentOverlappingBatches(t *testing.T) {
	a := NewSegment("a", "alpha", "Art.1", []string{"ICMS"})
	b := NewSegment("b", "beta", "Art.2", []string{"ISS"})
	c := NewSegment("c", "gamma", "Art.99", []string{"general"})

	var calls atomic.Int64
	embed := countingEmbed(&calls)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		batch := []*Segment{a, c}
		if i%2 == 0 {
			batch = []*Segment{c, b, a}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := EmbedMissing(context.Background(), batch, embed)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(3), calls.Load(), "each segment is embedded exactly once")
}

func TestEmbedMissing_FailureCachesNothing(t *testing.T) {
	segs := []*Segment{
		NewSegment("a", "alpha", "Art.1", []string{"ICMS"}),
		NewSegment("b", "beta", "Art.2", []string{"ISS"}),
	}
	boom := errors.New("provider down")

	_, err := EmbedMissing(context.Background(), segs, func(context.Context, []string) ([][]float32, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	for _, s := range segs {
		_, ok := s.Embedding()
		assert.False(t, ok)
	}
}

func TestEmbedMissing_RejectsShortResponse(t *testing.T) {
	segs := []*Segment{
		NewSegment("a", "alpha", "Art.1", []string{"ICMS"}),
		NewSegment("b", "beta", "Art.2", []string{"ISS"}),
	}

	_, err := EmbedMissing(context.Background(), segs, func(context.Context, []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 vectors for 2 texts")
}

func TestEmbedding_ReturnsCopyOfInput(t *testing.T) {
	seg := NewSegment("a", "alpha", "Art.1", []string{"ICMS"})
	in := []float32{1, 2, 3}
	require.True(t, seg.setEmbedding(in))
	in[0] = 42

	v, ok := seg.Embedding()
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, v)
	assert.False(t, seg.setEmbedding([]float32{9}), "embedding is write-once")
}
