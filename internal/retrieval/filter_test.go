package retrieval_test

import (
	"testing"

	"github.com/fyrsmithlabs/legisrag/internal/corpus"
	"github.com/fyrsmithlabs/legisrag/internal/fiscal"
	"github.com/fyrsmithlabs/legisrag/internal/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Apply(t *testing.T) {
	snap := snapshotOf(t, scenarioSegments())
	f := retrieval.NewFilter("")
	assert.Equal(t, "general", f.Fallback())

	tests := []struct {
		name     string
		category string
		want     []string
	}{
		{"exact match plus fallback", "ICMS", []string{"A", "C"}},
		{"other exact match", "ISS", []string{"B", "C"}},
		{"unknown category falls back to general", "PIS", []string{"C"}},
		{"empty category", "", []string{"C"}},
		{"fallback category itself", "general", []string{"C"}},
		{"match is exact", "icms", []string{"C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Apply(snap, fiscal.Context{Category: tt.category})
			require.NoError(t, err)
			assert.Equal(t, tt.want, segmentIDs(got))
		})
	}
}

func TestFilter_Deterministic(t *testing.T) {
	snap := snapshotOf(t, scenarioSegments())
	f := retrieval.NewFilter("general")

	first, err := f.ApplyCategory(snap, "ICMS")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := f.ApplyCategory(snap, "ICMS")
		require.NoError(t, err)
		assert.Equal(t, segmentIDs(first), segmentIDs(again))
	}
}

func TestFilter_SegmentInBothSetsAppearsOnce(t *testing.T) {
	snap := snapshotOf(t, []*corpus.Segment{
		corpus.NewSegment("A", "a", "Art.1", []string{"ICMS", "general"}),
		corpus.NewSegment("B", "b", "Art.2", []string{"general"}),
		corpus.NewSegment("0", "z", "Art.0", []string{"ICMS"}),
	})

	got, err := retrieval.NewFilter("general").ApplyCategory(snap, "ICMS")
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "A", "B"}, segmentIDs(got))
}

func TestFilter_EmptyCorpus(t *testing.T) {
	snap := snapshotOf(t, []*corpus.Segment{
		corpus.NewSegment("A", textA, "Art.1", []string{"ICMS"}),
		corpus.NewSegment("B", textB, "Art.2", []string{"ISS"}),
	})
	f := retrieval.NewFilter("general")

	_, err := f.ApplyCategory(snap, "PIS")
	assert.ErrorIs(t, err, retrieval.ErrEmptyCorpus)

	_, err = f.ApplyCategory(nil, "ICMS")
	assert.ErrorIs(t, err, retrieval.ErrEmptyCorpus)

	got, err := f.ApplyCategory(snap, "ICMS")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, segmentIDs(got))
}

func TestFilter_CustomFallback(t *testing.T) {
	snap := snapshotOf(t, []*corpus.Segment{
		corpus.NewSegment("A", "a", "Art.1", []string{"ICMS"}),
		corpus.NewSegment("G", "g", "Art.9", []string{"geral"}),
	})
	got, err := retrieval.NewFilter("geral").ApplyCategory(snap, "COFINS")
	require.NoError(t, err)
	assert.Equal(t, []string{"G"}, segmentIDs(got))
}
