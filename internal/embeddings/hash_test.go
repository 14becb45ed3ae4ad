package embeddings

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestHashProvider_Deterministic(t *testing.T) {
	p1, p2 := NewHashProvider(128), NewHashProvider(128)
	ctx := context.Background()

	a, err := p1.EmbedQuery(ctx, "Substituição tributária do ICMS")
	require.NoError(t, err)
	b, err := p2.EmbedQuery(ctx, "substituicao TRIBUTARIA do icms")
	require.NoError(t, err)

	assert.Equal(t, a, b, "accents and case are folded")
	assert.Len(t, a, 128)
}

func TestHashProvider_Normalized(t *testing.T) {
	p := NewHashProvider(0)
	vectors, err := p.EmbedDocuments(context.Background(), []string{"Art. 1 ICMS", "!!!"})
	require.NoError(t, err)
	for _, v := range vectors {
		assert.Len(t, v, DefaultHashDimension)
		assert.InDelta(t, 1.0, math.Sqrt(cosine(v, v)), 1e-5)
	}
}

func TestHashProvider_LexicalOverlap(t *testing.T) {
	p := NewHashProvider(512)
	ctx := context.Background()
	docs, err := p.EmbedDocuments(ctx, []string{
		"imposto sobre circulação de mercadorias ICMS",
		"imposto sobre serviços de qualquer natureza ISS",
	})
	require.NoError(t, err)
	q, err := p.EmbedQuery(ctx, "circulação de mercadorias")
	require.NoError(t, err)

	assert.Greater(t, cosine(q, docs[0]), cosine(q, docs[1]))
}

func TestHashProvider_Errors(t *testing.T) {
	p := NewHashProvider(8)
	_, err := p.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
	_, err = p.EmbedQuery(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyInput)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.EmbedQuery(ctx, "ICMS")
	assert.ErrorIs(t, err, context.Canceled)
}
