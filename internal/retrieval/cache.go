package retrieval

import (
	"context"
	"fmt"
	"sync"

	"github.com/fyrsmithlabs/legisrag/internal/corpus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// IndexCache builds at most one index per (snapshot version, category) and
// reuses it until a newer snapshot is seen. Concurrent requests for the
// same key share one build.
type IndexCache struct {
	filter  *Filter
	builder *Builder
	logger  *zap.Logger

	group singleflight.Group

	mu      sync.Mutex
	version uint64
	indexes map[string]*Index
}

// NewIndexCache returns an empty cache.
func NewIndexCache(filter *Filter, builder *Builder, logger *zap.Logger) *IndexCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexCache{
		filter:  filter,
		builder: builder,
		logger:  logger,
		indexes: make(map[string]*Index),
	}
}

// Index returns the index over the filter result for category in snap,
// building it on first use. Categories no segment carries share the
// fallback-only index. Filter errors (ErrEmptyCorpus) and build errors are
// not cached.
//
// The build is shared by every caller waiting on the same key and outlives
// any one of them: a caller whose ctx ends gets ctx.Err() while the others
// keep waiting for the index.
func (c *IndexCache) Index(ctx context.Context, snap *corpus.Snapshot, category string) (*Index, error) {
	segments, name, err := c.filter.resolve(snap, category)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%d/%s", snap.Version, name)

	if idx, ok := c.lookup(snap.Version, key); ok {
		return idx, nil
	}

	buildCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		if idx, ok := c.lookup(snap.Version, key); ok {
			return idx, nil
		}
		idx, err := c.builder.Build(buildCtx, segments)
		if err != nil {
			return nil, err
		}
		c.store(snap.Version, key, idx)
		c.logger.Info("similarity index cached",
			zap.Uint64("corpus_version", snap.Version),
			zap.String("category", name),
			zap.Int("segments", idx.Len()),
		)
		return idx, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("shared index build", zap.String("key", key))
		}
		return res.Val.(*Index), nil
	}
}

func (c *IndexCache) lookup(version uint64, key string) (*Index, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if version != c.version {
		return nil, false
	}
	idx, ok := c.indexes[key]
	return idx, ok
}

func (c *IndexCache) store(version uint64, key string, idx *Index) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case version > c.version:
		c.version = version
		c.indexes = make(map[string]*Index)
	case version < c.version:
		// Built from a snapshot that has since been replaced.
		return
	}
	c.indexes[key] = idx
	CachedIndexes.Set(float64(len(c.indexes)))
}

// Len returns the number of cached indexes.
func (c *IndexCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.indexes)
}

// Reset drops every cached index.
func (c *IndexCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexes = make(map[string]*Index)
	CachedIndexes.Set(0)
}
