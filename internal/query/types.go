// Package query implements the retrieval-augmented answer flow: cache lookup,
// semantic or full-context retrieval, prompt assembly, generation with
// degradation, and response caching.
package query

import "fmt"

// Top-k bounds accepted on a request.
const (
	MinTopK     = 1
	MaxTopK     = 100
	DefaultTopK = 5
)

// Request is a question scoped to course materials.
type Request struct {
	// Query is the student's question.
	Query string `json:"query"`

	// CourseID restricts retrieval to one course when non-empty.
	CourseID string `json:"course_id,omitempty"`

	// ModuleID restricts retrieval to one module when non-empty.
	ModuleID string `json:"module_id,omitempty"`

	// TopK is the number of chunks to retrieve in semantic mode (1-100,
	// default 5). Ignored in full-context mode.
	TopK int `json:"top_k,omitempty"`

	// FullContext retrieves ALL chunks for the course/module in reading
	// order instead of the top-k most similar ones. Requires CourseID.
	FullContext bool `json:"full_context,omitempty"`

	// IncludeSources controls whether source attributions are returned.
	// Defaults to true at the HTTP boundary.
	IncludeSources bool `json:"include_sources"`
}

// Validate checks request fields that have hard bounds. TopK zero means
// "use the default" and is filled in here.
func (r *Request) Validate() error {
	if r.Query == "" {
		return fmt.Errorf("query: query text is required")
	}
	if r.TopK == 0 {
		r.TopK = DefaultTopK
	}
	if r.TopK < MinTopK || r.TopK > MaxTopK {
		return fmt.Errorf("query: top_k must be between %d and %d, got %d", MinTopK, MaxTopK, r.TopK)
	}
	return nil
}

// Source attributes part of an answer to a stored chunk.
type Source struct {
	// ChunkID is the stored chunk's identifier.
	ChunkID string `json:"chunk_id"`

	// Score is the retrieval similarity score (1.0 in full-context mode).
	Score float32 `json:"score"`

	// SourceURI locates the original document, with a #page=N or #t=S
	// fragment when the chunk has a page or timestamp locator.
	SourceURI string `json:"source_uri"`

	// SourceType classifies the originating document.
	SourceType string `json:"source_type"`

	// TextPreview is the first 200 bytes of the chunk text.
	TextPreview string `json:"text_preview"`

	// StartTimeSeconds and EndTimeSeconds locate video chunks in time.
	StartTimeSeconds *int `json:"start_time_seconds,omitempty"`
	EndTimeSeconds   *int `json:"end_time_seconds,omitempty"`
}

// Debug carries per-request observability data.
type Debug struct {
	// SearchLatencyMS is the retrieval time. Zero on cache hits.
	SearchLatencyMS float64 `json:"search_latency_ms"`

	// LLMLatencyMS is the generation time. Zero on cache hits and when no
	// generation happened.
	LLMLatencyMS float64 `json:"llm_latency_ms"`

	// TotalLatencyMS is the end-to-end handling time.
	TotalLatencyMS float64 `json:"total_latency_ms"`

	// ChunksRetrieved is how many chunks retrieval produced.
	ChunksRetrieved int `json:"chunks_retrieved"`

	// TokensUsed is the provider-reported token usage, nil when unknown.
	TokensUsed *int `json:"tokens_used,omitempty"`

	// CacheHit is true when the answer came from the response cache.
	CacheHit bool `json:"cache_hit"`
}

// Response is the answer to a Request.
type Response struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Debug   Debug    `json:"debug"`
}
