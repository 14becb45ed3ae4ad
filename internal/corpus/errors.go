package corpus

import (
	"errors"
	"fmt"
)

// ErrCorpusLoad matches every corpus loading failure. Use errors.As with
// *LoadError for the offending entry.
var ErrCorpusLoad = errors.New("corpus load failed")

// LoadError reports a malformed or empty corpus.
type LoadError struct {
	// Index is the position of the offending entry, or -1 when the failure
	// concerns the corpus as a whole.
	Index int
	// ID is the offending entry's id, when it has one.
	ID string
	// Field names the missing or invalid field, if any.
	Field  string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	msg := ErrCorpusLoad.Error()
	switch {
	case e.Index >= 0 && e.ID != "":
		msg += fmt.Sprintf(": entry %d (%q)", e.Index, e.ID)
	case e.Index >= 0:
		msg += fmt.Sprintf(": entry %d", e.Index)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(": field %q", e.Field)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is makes every LoadError match ErrCorpusLoad.
func (e *LoadError) Is(target error) bool { return target == ErrCorpusLoad }

func corpusError(reason string, err error) *LoadError {
	return &LoadError{Index: -1, Reason: reason, Err: err}
}

func entryError(index int, id, field, reason string) *LoadError {
	return &LoadError{Index: index, ID: id, Field: field, Reason: reason}
}
