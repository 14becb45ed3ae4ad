package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format identifies the serialization of a corpus catalog.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath infers the catalog format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("unsupported corpus file extension %q (want .json, .yaml, .yml or .toml)", filepath.Ext(path))
}

// Entry is the serialized form of a segment.
type Entry struct {
	ID           string    `json:"id" yaml:"id" toml:"id"`
	Text         string    `json:"text" yaml:"text" toml:"text"`
	Citation     string    `json:"citation" yaml:"citation" toml:"citation"`
	CategoryTags []string  `json:"category_tags" yaml:"category_tags" toml:"category_tags"`
	Embedding    []float32 `json:"embedding,omitempty" yaml:"embedding,omitempty" toml:"embedding,omitempty"`
}

// catalog is the object form of a corpus file. JSON and YAML also accept a
// bare list of entries.
type catalog struct {
	Segments []Entry `json:"segments" yaml:"segments" toml:"segments"`
}

// Parse decodes and validates a raw corpus. Any malformed entry fails the
// whole corpus with a *LoadError.
func Parse(raw []byte, format Format) ([]*Segment, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, corpusError("corpus is empty", nil)
	}

	entries, err := decodeEntries(raw, format)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, corpusError("corpus contains no segments", nil)
	}

	return buildSegments(entries)
}

func decodeEntries(raw []byte, format Format) ([]Entry, error) {
	switch format {
	case FormatJSON, "":
		trimmed := bytes.TrimSpace(raw)
		if trimmed[0] == '[' {
			var entries []Entry
			if err := json.Unmarshal(trimmed, &entries); err != nil {
				return nil, corpusError("decoding json", err)
			}
			return entries, nil
		}
		var c catalog
		if err := json.Unmarshal(trimmed, &c); err != nil {
			return nil, corpusError("decoding json", err)
		}
		return c.Segments, nil

	case FormatYAML:
		var doc yaml.Node
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, corpusError("decoding yaml", err)
		}
		if len(doc.Content) == 0 {
			return nil, nil
		}
		root := doc.Content[0]
		if root.Kind == yaml.SequenceNode {
			var entries []Entry
			if err := root.Decode(&entries); err != nil {
				return nil, corpusError("decoding yaml", err)
			}
			return entries, nil
		}
		var c catalog
		if err := root.Decode(&c); err != nil {
			return nil, corpusError("decoding yaml", err)
		}
		return c.Segments, nil

	case FormatTOML:
		var c catalog
		if err := toml.Unmarshal(raw, &c); err != nil {
			return nil, corpusError("decoding toml", err)
		}
		return c.Segments, nil
	}
	return nil, corpusError(fmt.Sprintf("unsupported format %q", format), nil)
}

func buildSegments(entries []Entry) ([]*Segment, error) {
	segments := make([]*Segment, 0, len(entries))
	seen := make(map[string]int, len(entries))
	dim := 0

	for i, e := range entries {
		id := strings.TrimSpace(e.ID)
		switch {
		case id == "":
			return nil, entryError(i, "", "id", "missing")
		case strings.TrimSpace(e.Text) == "":
			return nil, entryError(i, id, "text", "missing")
		case strings.TrimSpace(e.Citation) == "":
			return nil, entryError(i, id, "citation", "missing")
		}
		tags := normalizeTags(e.CategoryTags)
		if len(tags) == 0 {
			return nil, entryError(i, id, "category_tags", "missing")
		}
		if first, dup := seen[id]; dup {
			return nil, entryError(i, id, "id", fmt.Sprintf("duplicate of entry %d", first))
		}
		seen[id] = i

		seg := NewSegment(id, e.Text, strings.TrimSpace(e.Citation), tags)
		if len(e.Embedding) > 0 {
			if dim == 0 {
				dim = len(e.Embedding)
			}
			if len(e.Embedding) != dim {
				return nil, entryError(i, id, "embedding", fmt.Sprintf("dimension %d differs from %d", len(e.Embedding), dim))
			}
			seg.setEmbedding(e.Embedding)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// Encode serializes segments, including cached embeddings, in the given
// format. The output round-trips through Parse.
func Encode(segments []*Segment, format Format) ([]byte, error) {
	c := catalog{Segments: make([]Entry, 0, len(segments))}
	for _, s := range segments {
		e := Entry{
			ID:           s.ID,
			Text:         s.Text,
			Citation:     s.Citation,
			CategoryTags: s.Tags(),
		}
		if v, ok := s.Embedding(); ok {
			e.Embedding = slices.Clone(v)
		}
		c.Segments = append(c.Segments, e)
	}

	switch format {
	case FormatJSON, "":
		return json.MarshalIndent(c, "", "  ")
	case FormatYAML:
		return yaml.Marshal(c)
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
