package vectorstore_test

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/legisrag/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var backends = []vectorstore.Backend{vectorstore.BackendFlat, vectorstore.BackendChromem}

func testEntries() []vectorstore.Entry {
	return []vectorstore.Entry{
		{ID: "A", Vector: []float32{1, 0, 0}, Content: "ICMS"},
		{ID: "B", Vector: []float32{0, 1, 0}, Content: "ISS"},
		{ID: "C", Vector: []float32{0, 0, 1}, Content: "general"},
		{ID: "D", Vector: []float32{0.7, 0.7, 0}, Content: "ICMS and ISS"},
	}
}

func ids(matches []vectorstore.Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.ID
	}
	return out
}

func TestIndex_SearchOrdering(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			idx, err := vectorstore.New(context.Background(), backend, testEntries())
			require.NoError(t, err)
			assert.Equal(t, 4, idx.Len())
			assert.Equal(t, 3, idx.Dimension())
			assert.Equal(t, backend, idx.Backend())

			matches, err := idx.Search(context.Background(), []float32{0.9, 0.1, 0}, 3)
			require.NoError(t, err)
			require.Len(t, matches, 3)
			assert.Equal(t, []string{"A", "D", "B"}, ids(matches))

			for i := 1; i < len(matches); i++ {
				assert.LessOrEqual(t, matches[i-1].Distance, matches[i].Distance)
			}
		})
	}
}

func TestIndex_KLargerThanIndex(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			idx, err := vectorstore.New(context.Background(), backend, testEntries()[:1])
			require.NoError(t, err)

			matches, err := idx.Search(context.Background(), []float32{0, 0, 1}, 5)
			require.NoError(t, err)
			assert.Equal(t, []string{"A"}, ids(matches))
		})
	}
}

func TestIndex_TiesBreakByID(t *testing.T) {
	entries := []vectorstore.Entry{
		{ID: "z", Vector: []float32{1, 0}},
		{ID: "m", Vector: []float32{1, 0}},
		{ID: "a", Vector: []float32{1, 0}},
	}
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			idx, err := vectorstore.New(context.Background(), backend, entries)
			require.NoError(t, err)

			for i := 0; i < 5; i++ {
				matches, err := idx.Search(context.Background(), []float32{1, 0}, 2)
				require.NoError(t, err)
				assert.Equal(t, []string{"a", "m"}, ids(matches))
			}
		})
	}
}

func TestIndex_Empty(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			idx, err := vectorstore.New(context.Background(), backend, nil)
			require.NoError(t, err)
			assert.Equal(t, 0, idx.Len())

			matches, err := idx.Search(context.Background(), []float32{1, 2, 3}, 5)
			require.NoError(t, err)
			assert.Empty(t, matches)
		})
	}
}

func TestIndex_Errors(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			idx, err := vectorstore.New(context.Background(), backend, testEntries())
			require.NoError(t, err)

			_, err = idx.Search(context.Background(), []float32{1, 0}, 1)
			assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)

			_, err = idx.Search(context.Background(), []float32{1, 0, 0}, 0)
			assert.ErrorIs(t, err, vectorstore.ErrInvalidK)

			_, err = idx.Search(context.Background(), nil, 1)
			assert.ErrorIs(t, err, vectorstore.ErrEmptyVector)
		})
	}
}

func TestNew_RejectsBadEntries(t *testing.T) {
	tests := []struct {
		name    string
		entries []vectorstore.Entry
		wantErr error
	}{
		{
			name:    "mixed dimensions",
			entries: []vectorstore.Entry{{ID: "a", Vector: []float32{1}}, {ID: "b", Vector: []float32{1, 2}}},
			wantErr: vectorstore.ErrDimensionMismatch,
		},
		{
			name:    "empty vector",
			entries: []vectorstore.Entry{{ID: "a"}},
			wantErr: vectorstore.ErrEmptyVector,
		},
		{
			name:    "duplicate id",
			entries: []vectorstore.Entry{{ID: "a", Vector: []float32{1}}, {ID: "a", Vector: []float32{2}}},
			wantErr: vectorstore.ErrDuplicateID,
		},
		{
			name:    "missing id",
			entries: []vectorstore.Entry{{Vector: []float32{1}}},
			wantErr: vectorstore.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		for _, backend := range backends {
			t.Run(tt.name+"/"+string(backend), func(t *testing.T) {
				_, err := vectorstore.New(context.Background(), backend, tt.entries)
				assert.ErrorIs(t, err, tt.wantErr)
			})
		}
	}
}

func TestFlatIndex_SquaredL2(t *testing.T) {
	idx, err := vectorstore.NewFlatIndex([]vectorstore.Entry{{ID: "a", Vector: []float32{1, 2}}})
	require.NoError(t, err)

	matches, err := idx.Search(context.Background(), []float32{4, 6}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 25.0, matches[0].Distance, 1e-6)
}

func TestChromemIndex_CosineDistance(t *testing.T) {
	idx, err := vectorstore.NewChromemIndex(context.Background(), []vectorstore.Entry{
		{ID: "same", Vector: []float32{2, 0}},
		{ID: "orthogonal", Vector: []float32{0, 3}},
	})
	require.NoError(t, err)

	matches, err := idx.Search(context.Background(), []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.InDelta(t, 0.0, matches[0].Distance, 1e-5)
	assert.InDelta(t, 1.0, matches[1].Distance, 1e-5)
}

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    vectorstore.Backend
		wantErr bool
	}{
		{"", vectorstore.BackendFlat, false},
		{"flat", vectorstore.BackendFlat, false},
		{" Chromem ", vectorstore.BackendChromem, false},
		{"faiss", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := vectorstore.ParseBackend(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
