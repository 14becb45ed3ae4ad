package corpus

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func segmentIDs(segs []*Segment) []string {
	ids := make([]string, len(segs))
	for i, s := range segs {
		ids[i] = s.ID
	}
	return ids
}

func TestStore_LoadAndGetByCategory(t *testing.T) {
	store := NewStore(zap.NewNop())
	assert.Nil(t, store.Snapshot())
	assert.Nil(t, store.GetByCategory("ICMS"))

	snap, err := store.Load([]byte(jsonCorpus), FormatJSON, "inline")
	require.NoError(t, err)

	assert.Equal(t, uint64(1), snap.Version)
	assert.Equal(t, 3, snap.Len())
	assert.Equal(t, []string{"ICMS", "ISS", "general"}, snap.Tags())
	assert.Equal(t, []string{"A"}, segmentIDs(store.GetByCategory("ICMS")))
	assert.Equal(t, []string{"C"}, segmentIDs(store.GetByCategory("general")))
	assert.Empty(t, store.GetByCategory("PIS"))

	seg, ok := snap.Get("B")
	require.True(t, ok)
	assert.Equal(t, "Art.2", seg.Citation)
}

func TestStore_FailedLoadKeepsSnapshot(t *testing.T) {
	store := NewStore(nil)
	first, err := store.Load([]byte(jsonCorpus), FormatJSON, "inline")
	require.NoError(t, err)

	_, err = store.Load([]byte(`[]`), FormatJSON, "inline")
	require.ErrorIs(t, err, ErrCorpusLoad)

	assert.Same(t, first, store.Snapshot())
}

func TestStore_ReloadSwapsSnapshotAtomically(t *testing.T) {
	store := NewStore(nil)
	old, err := store.Load([]byte(jsonCorpus), FormatJSON, "v1")
	require.NoError(t, err)

	a, _ := old.Get("A")
	require.True(t, a.setEmbedding([]float32{1, 0}))

	updated := `[
	  {"id": "A", "text": "ICMS incide sobre circulação de mercadorias.", "citation": "Art.1", "category_tags": ["ICMS"]},
	  {"id": "B", "text": "ISS alterado.", "citation": "Art.2", "category_tags": ["ISS"]},
	  {"id": "D", "text": "PIS e COFINS.", "citation": "Art.5", "category_tags": ["PIS", "COFINS"]}
	]`
	next, err := store.Load([]byte(updated), FormatJSON, "v2")
	require.NoError(t, err)

	assert.Equal(t, uint64(2), next.Version)
	assert.Same(t, next, store.Snapshot())

	// The old snapshot is untouched for readers still holding it.
	assert.Equal(t, []string{"A", "B", "C"}, segmentIDs(old.Segments()))
	oldB, _ := old.Get("B")
	assert.Equal(t, "ISS incide sobre serviços.", oldB.Text)

	// Unchanged segments keep their instance and cached embedding.
	newA, _ := next.Get("A")
	assert.Same(t, a, newA)
	v, ok := newA.Embedding()
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0}, v)

	newB, _ := next.Get("B")
	assert.NotSame(t, oldB, newB)
	assert.Equal(t, []string{"D"}, segmentIDs(next.GetByCategory("PIS")))
}

func TestStore_ReplaceLeavesCallerSliceAlone(t *testing.T) {
	store := NewStore(nil)
	old, err := store.Load([]byte(jsonCorpus), FormatJSON, "v1")
	require.NoError(t, err)
	oldA, _ := old.Get("A")

	fresh, err := Parse([]byte(jsonCorpus), FormatJSON)
	require.NoError(t, err)
	before := slices.Clone(fresh)

	next := store.Replace(fresh, "v2")

	newA, _ := next.Get("A")
	assert.Same(t, oldA, newA, "unchanged segment reused in the snapshot")
	for i := range fresh {
		assert.Same(t, before[i], fresh[i], "caller slice rewritten at %d", i)
	}
}

func TestStore_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.json")
	require.NoError(t, os.WriteFile(path, []byte(jsonCorpus), 0o600))

	store := NewStore(nil)
	snap, err := store.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, snap.Source)
	assert.Equal(t, 3, snap.Len())

	_, err = store.LoadFile(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrCorpusLoad)

	_, err = store.LoadFile(filepath.Join(dir, "corpus.txt"))
	assert.ErrorIs(t, err, ErrCorpusLoad)
}
