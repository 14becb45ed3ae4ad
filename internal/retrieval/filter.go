package retrieval

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/legisrag/internal/corpus"
	"github.com/fyrsmithlabs/legisrag/internal/fiscal"
)

// DefaultFallbackCategory tags segments that apply to every invoice.
const DefaultFallbackCategory = fiscal.CategoryGeneral

// Filter narrows a corpus snapshot to the segments relevant to a fiscal
// context.
type Filter struct {
	fallback string
}

// NewFilter returns a filter using fallback as the fallback category. An
// empty fallback selects DefaultFallbackCategory.
func NewFilter(fallback string) *Filter {
	fallback = strings.TrimSpace(fallback)
	if fallback == "" {
		fallback = DefaultFallbackCategory
	}
	return &Filter{fallback: fallback}
}

// Fallback returns the fallback category.
func (f *Filter) Fallback() string { return f.fallback }

// Apply returns every segment tagged with the context category (exact
// match) or with the fallback category, ordered by id. The result depends
// only on the snapshot and the category.
func (f *Filter) Apply(snap *corpus.Snapshot, fc fiscal.Context) ([]*corpus.Segment, error) {
	return f.ApplyCategory(snap, fc.Category)
}

// ApplyCategory is Apply for a bare category label.
func (f *Filter) ApplyCategory(snap *corpus.Snapshot, category string) ([]*corpus.Segment, error) {
	segments, _, err := f.resolve(snap, category)
	return segments, err
}

// resolve is ApplyCategory that also names the result: category when some
// segment carries it, the fallback otherwise. Categories with the same
// name select the same segments.
func (f *Filter) resolve(snap *corpus.Snapshot, category string) ([]*corpus.Segment, string, error) {
	if snap == nil {
		return nil, "", fmt.Errorf("%w: no corpus loaded", ErrEmptyCorpus)
	}

	var exact []*corpus.Segment
	if category != "" && category != f.fallback {
		exact = snap.GetByCategory(category)
	}
	general := snap.GetByCategory(f.fallback)
	if len(exact) == 0 && len(general) == 0 {
		return nil, "", fmt.Errorf("%w: category %q, fallback %q", ErrEmptyCorpus, category, f.fallback)
	}
	if len(exact) == 0 {
		return general, f.fallback, nil
	}
	return mergeByID(exact, general), category, nil
}

// mergeByID merges two id-ordered segment lists, dropping segments
// present in both.
func mergeByID(a, b []*corpus.Segment) []*corpus.Segment {
	out := make([]*corpus.Segment, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].ID < b[j].ID:
			out = append(out, a[i])
			i++
		case a[i].ID > b[j].ID:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
