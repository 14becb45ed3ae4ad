package retrieval

import "errors"

var (
	// ErrEmptyCorpus means neither the context category nor the fallback
	// category matched any segment. Callers report that no applicable
	// legislation was found and continue.
	ErrEmptyCorpus = errors.New("no applicable legislation: no segment matches the category or the fallback category")

	// ErrEmbeddingProvider means an embedding call failed, or returned
	// vectors that do not fit the index, while building or querying. No
	// partial index is ever returned. Callers may retry.
	ErrEmbeddingProvider = errors.New("embedding provider failed")

	// ErrInvalidQuery means the query has no usable terms or k is not
	// positive. It is a precondition violation and never retried.
	ErrInvalidQuery = errors.New("invalid retrieval query")
)
