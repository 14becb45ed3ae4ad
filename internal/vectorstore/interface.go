// Package vectorstore defines the in-memory similarity index used for
// legal-segment retrieval.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for index operations.
var (
	// ErrInvalidConfig indicates an unknown backend or bad index options.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDimensionMismatch indicates vectors of different lengths were mixed,
	// typically because index and query were embedded by different models.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyVector indicates an entry or query without a vector.
	ErrEmptyVector = errors.New("empty vector")

	// ErrInvalidK indicates a non-positive result count.
	ErrInvalidK = errors.New("k must be positive")

	// ErrDuplicateID indicates two entries share an id.
	ErrDuplicateID = errors.New("duplicate entry id")
)

// Embedder generates vector embeddings from text.
//
// Documents and queries are embedded through separate methods because some
// models prefix or encode them differently. Both must come from the same
// model for distances to be meaningful.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts, in order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Entry is one vector to index.
type Entry struct {
	ID     string
	Vector []float32
	// Content is optional and only kept by backends that store documents.
	Content string
}

// Match is a search hit. Lower distance means more similar.
type Match struct {
	ID       string  `json:"id"`
	Distance float32 `json:"distance"`
}

// Index is an immutable nearest-neighbour structure. Implementations are
// safe for concurrent Search calls once constructed.
type Index interface {
	// Search returns up to k matches ordered by ascending distance, ties
	// broken by ascending id. An empty index returns no matches.
	Search(ctx context.Context, query []float32, k int) ([]Match, error)

	// Len returns the number of indexed vectors.
	Len() int

	// Dimension returns the vector length, or 0 for an empty index.
	Dimension() int

	// Backend names the implementation.
	Backend() Backend
}

// Backend selects an Index implementation.
type Backend string

const (
	// BackendFlat is exact brute-force search by squared Euclidean distance.
	BackendFlat Backend = "flat"

	// BackendChromem delegates to an in-memory chromem-go collection and
	// reports cosine distance (1 - cosine similarity).
	BackendChromem Backend = "chromem"
)
