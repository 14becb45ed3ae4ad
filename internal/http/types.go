package http

import (
	"time"

	"github.com/fyrsmithlabs/legisrag/internal/fiscal"
	"github.com/fyrsmithlabs/legisrag/internal/pipeline"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status         string     `json:"status"`
	Version        string     `json:"version,omitempty"`
	CorpusVersion  uint64     `json:"corpus_version"`
	CorpusSource   string     `json:"corpus_source,omitempty"`
	CorpusLoadedAt *time.Time `json:"corpus_loaded_at,omitempty"`
	Segments       int        `json:"segments"`
	Embedded       int        `json:"embedded"`
	Tags           []string   `json:"category_tags"`
}

// RetrieveRequest is the request body for POST /api/v1/retrieve.
type RetrieveRequest struct {
	Category   string   `json:"category"`
	ShortTerms []string `json:"short_terms"`
	LongTerms  []string `json:"long_terms"`
	// K is the number of passages; zero means the server default.
	K int `json:"k"`
}

// Context converts the request to a fiscal context.
func (r RetrieveRequest) Context() fiscal.Context {
	return fiscal.Context{
		Category:   fiscal.NormalizeCategory(r.Category),
		ShortTerms: r.ShortTerms,
		LongTerms:  r.LongTerms,
	}.Normalize()
}

// RetrieveResponse is the response body for POST /api/v1/retrieve.
type RetrieveResponse struct {
	Category      string                    `json:"category"`
	CorpusVersion uint64                    `json:"corpus_version"`
	Passages      []pipeline.PassageSummary `json:"passages"`
}

// AnalyzeResponse is the response body for POST /api/v1/analyze.
type AnalyzeResponse struct {
	*pipeline.Report
	Passages   []pipeline.PassageSummary `json:"passages"`
	DurationMS int64                     `json:"duration_ms"`
}

// ReloadResponse is the response body for POST /api/v1/corpus/reload.
type ReloadResponse struct {
	CorpusVersion uint64 `json:"corpus_version"`
	Source        string `json:"source"`
	Segments      int    `json:"segments"`
	Embedded      int    `json:"embedded"`
}

// Error kinds reported in ErrorResponse.Kind.
const (
	kindInvalidRequest    = "invalid_request"
	kindInvalidQuery      = "invalid_query"
	kindEmptyCorpus       = "empty_corpus"
	kindEmbeddingProvider = "embedding_provider"
	kindCorpusLoad        = "corpus_load"
	kindBodyTooLarge      = "body_too_large"
	kindTimeout           = "timeout"
	kindUnavailable       = "unavailable"
	kindInternal          = "internal"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func newErrorResponse(kind, msg string) ErrorResponse {
	return ErrorResponse{Error: msg, Kind: kind}
}
