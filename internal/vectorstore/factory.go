package vectorstore

import (
	"context"
	"fmt"
	"strings"
)

// ParseBackend validates a backend name. The empty string selects the flat
// index.
func ParseBackend(name string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(name))) {
	case BackendFlat, "":
		return BackendFlat, nil
	case BackendChromem:
		return BackendChromem, nil
	}
	return "", fmt.Errorf("%w: unsupported index backend %q (supported: flat, chromem)", ErrInvalidConfig, name)
}

// New builds an index of the given backend over entries.
func New(ctx context.Context, backend Backend, entries []Entry) (Index, error) {
	var (
		idx Index
		err error
	)
	switch backend {
	case BackendFlat, "":
		idx, err = NewFlatIndex(entries)
	case BackendChromem:
		idx, err = NewChromemIndex(ctx, entries)
	default:
		return nil, fmt.Errorf("%w: unsupported index backend %q", ErrInvalidConfig, backend)
	}
	if err != nil {
		return nil, err
	}
	IndexedVectors.WithLabelValues(string(idx.Backend())).Observe(float64(idx.Len()))
	return idx, nil
}
