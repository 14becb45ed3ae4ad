// Package corpus holds the legal-text catalog that retrieval runs against.
//
// A Store owns an immutable Snapshot of segments. Reloading builds a new
// snapshot and swaps it in atomically, so readers holding the previous
// snapshot are never affected. Segments whose content is unchanged across a
// reload are carried over together with their cached embeddings.
package corpus

import (
	"fmt"
	"os"
	"slices"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Snapshot is an immutable view of the corpus at one load.
type Snapshot struct {
	Version  uint64
	Source   string
	LoadedAt time.Time

	segments []*Segment
	byID     map[string]*Segment
	byTag    map[string][]*Segment
}

func newSnapshot(version uint64, source string, segments []*Segment) *Snapshot {
	sorted := slices.Clone(segments)
	slices.SortFunc(sorted, func(a, b *Segment) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	snap := &Snapshot{
		Version:  version,
		Source:   source,
		LoadedAt: time.Now(),
		segments: sorted,
		byID:     make(map[string]*Segment, len(sorted)),
		byTag:    make(map[string][]*Segment),
	}
	for _, s := range sorted {
		snap.byID[s.ID] = s
		for _, tag := range s.tags {
			snap.byTag[tag] = append(snap.byTag[tag], s)
		}
	}
	return snap
}

// Len returns the number of segments.
func (s *Snapshot) Len() int { return len(s.segments) }

// Segments returns all segments ordered by id.
func (s *Snapshot) Segments() []*Segment { return slices.Clone(s.segments) }

// Get returns the segment with the given id.
func (s *Snapshot) Get(id string) (*Segment, bool) {
	seg, ok := s.byID[id]
	return seg, ok
}

// GetByCategory returns the segments tagged with tag, ordered by id.
func (s *Snapshot) GetByCategory(tag string) []*Segment {
	return slices.Clone(s.byTag[tag])
}

// Tags returns every category tag present in the snapshot, sorted.
func (s *Snapshot) Tags() []string {
	tags := make([]string, 0, len(s.byTag))
	for t := range s.byTag {
		tags = append(tags, t)
	}
	slices.Sort(tags)
	return tags
}

// EmbeddedCount returns how many segments have a cached embedding.
func (s *Snapshot) EmbeddedCount() int {
	n := 0
	for _, seg := range s.segments {
		if _, ok := seg.Embedding(); ok {
			n++
		}
	}
	return n
}

// Store holds the current corpus snapshot.
type Store struct {
	current atomic.Pointer[Snapshot]
	version atomic.Uint64
	logger  *zap.Logger
}

// NewStore creates an empty store. Call Load or LoadFile before reading.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{logger: logger}
}

// Snapshot returns the current snapshot, or nil if nothing was loaded yet.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// GetByCategory returns the segments of the current snapshot tagged with tag.
func (s *Store) GetByCategory(tag string) []*Segment {
	snap := s.current.Load()
	if snap == nil {
		return nil
	}
	return snap.GetByCategory(tag)
}

// Load parses raw and replaces the current snapshot. On error the current
// snapshot is left untouched.
func (s *Store) Load(raw []byte, format Format, source string) (*Snapshot, error) {
	segments, err := Parse(raw, format)
	if err != nil {
		return nil, err
	}
	return s.Replace(segments, source), nil
}

// LoadFile reads a corpus file, inferring its format from the extension.
func (s *Store) LoadFile(path string) (*Snapshot, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, corpusError("resolving format", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, corpusError(fmt.Sprintf("reading %s", path), err)
	}
	return s.Load(raw, format, path)
}

// Replace installs segments as the new snapshot. Segments identical to one
// in the previous snapshot are replaced by the previous instance so their
// cached embedding survives the reload. The caller's slice is not modified.
func (s *Store) Replace(segments []*Segment, source string) *Snapshot {
	prev := s.current.Load()
	reused := 0
	if prev != nil {
		segments = slices.Clone(segments)
		for i, seg := range segments {
			old, ok := prev.byID[seg.ID]
			if !ok || !old.sameContent(seg) {
				continue
			}
			if _, cached := seg.Embedding(); cached {
				if _, oldCached := old.Embedding(); !oldCached {
					continue
				}
			}
			segments[i] = old
			reused++
		}
	}

	snap := newSnapshot(s.version.Add(1), source, segments)
	s.current.Store(snap)

	s.logger.Info("corpus snapshot loaded",
		zap.Uint64("version", snap.Version),
		zap.String("source", source),
		zap.Int("segments", snap.Len()),
		zap.Int("tags", len(snap.byTag)),
		zap.Int("embedded", snap.EmbeddedCount()),
		zap.Int("reused", reused),
	)
	return snap
}
