// Package llm wraps the generative model used to classify invoices and to
// write savings reports.
//
// Client is the seam the extraction and insight packages depend on.
// GeminiClient implements it on google.golang.org/genai with a minimum
// interval between calls and retries with exponential backoff for
// transient failures.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrNoAPIKey is returned when a client is created without credentials.
	ErrNoAPIKey = errors.New("llm: API key required")

	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("llm: empty response from model")
)

// Request is a single prompt sent to the model.
type Request struct {
	// System is an optional system instruction.
	System string
	// Prompt is the user content.
	Prompt string
	// JSON asks the model to answer with a JSON document.
	JSON bool
	// Temperature overrides the client default when non-nil.
	Temperature *float32
}

// Client completes prompts.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	// Model names the model answering requests.
	Model() string
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

// Complete implements Client.
func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Model implements Client.
func (f ClientFunc) Model() string { return "func" }
