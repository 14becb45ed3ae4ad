package corpus

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/tmc/langchaingo/textsplitter"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 100
)

// ChunkerConfig controls how ingested pages are split into segments.
type ChunkerConfig struct {
	// ChunkSize is the maximum segment length in characters. Default: 1000.
	ChunkSize int
	// ChunkOverlap is the number of characters shared by adjacent segments.
	// Default: 100.
	ChunkOverlap int
	// Tags are applied to every produced segment.
	Tags []string
}

// Chunker turns ingested pages into corpus segments.
type Chunker struct {
	splitter textsplitter.TextSplitter
	tags     []string
}

// NewChunker creates a chunker backed by a recursive character splitter.
func NewChunker(cfg ChunkerConfig) (*Chunker, error) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.ChunkOverlap == 0 {
		cfg.ChunkOverlap = defaultChunkOverlap
	}
	if cfg.ChunkSize < 0 || cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("invalid chunking: size %d, overlap %d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	tags := normalizeTags(cfg.Tags)
	if len(tags) == 0 {
		return nil, fmt.Errorf("at least one category tag is required")
	}

	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", " ", ""}),
		),
		tags: tags,
	}, nil
}

// Segments splits each page and returns the resulting segments. Segment ids
// are "<slug of path>#<n>" and the citation is the page path.
func (c *Chunker) Segments(pages []Page) ([]*Segment, error) {
	var out []*Segment
	for _, p := range pages {
		chunks, err := c.splitter.SplitText(p.Content)
		if err != nil {
			return nil, fmt.Errorf("splitting %s: %w", p.Path, err)
		}
		base := Slug(p.Path)
		n := 0
		for _, chunk := range chunks {
			if strings.TrimSpace(chunk) == "" {
				continue
			}
			n++
			out = append(out, NewSegment(fmt.Sprintf("%s#%d", base, n), chunk, p.Path, c.tags))
		}
	}
	return out, nil
}

// Slug reduces a path or title to a lowercase ASCII identifier.
func Slug(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.TrimPrefix(strings.TrimPrefix(folded, "https://"), "http://")

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
