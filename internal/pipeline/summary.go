package pipeline

import (
	"github.com/fyrsmithlabs/legisrag/internal/retrieval"
)

// PassageSummary is the wire form of a ranked passage.
type PassageSummary struct {
	Rank     int      `json:"rank"`
	ID       string   `json:"id"`
	Citation string   `json:"citation,omitempty"`
	Distance float32  `json:"distance"`
	Tags     []string `json:"category_tags"`
	Text     string   `json:"text"`
}

// Summarize converts passages to their wire form, keeping rank order.
func Summarize(passages []retrieval.Passage) []PassageSummary {
	out := make([]PassageSummary, 0, len(passages))
	for _, p := range passages {
		s := PassageSummary{Rank: p.Rank, Distance: p.Distance}
		if p.Segment != nil {
			s.ID = p.Segment.ID
			s.Citation = p.Segment.Citation
			s.Tags = p.Segment.Tags()
			s.Text = p.Segment.Text
		}
		out = append(out, s)
	}
	return out
}
