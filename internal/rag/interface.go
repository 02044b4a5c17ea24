// Package rag defines the contracts between the retrieval core and its
// external collaborators: vector storage, embedding, and language-model
// completion. Concrete implementations (Qdrant, OpenAI, eino chat models)
// satisfy these interfaces so the query and ingestion layers never depend
// on a specific backend.
package rag

import (
	"context"
)

// Payload is the durable record shape stored alongside every vector.
// Other services read these fields back out of the store — treat it as a
// public contract.
type Payload struct {
	// Text is the chunk body.
	Text string

	// CourseID and ModuleID are the tenancy scope used for filtering.
	CourseID string
	ModuleID string

	// SourceType classifies the originating document (pdf, docx, txt, notes, video).
	SourceType string

	// SourceURI locates the original document.
	SourceURI string

	// VideoID and NotesID carry source-specific identifiers, empty if unset.
	VideoID string
	NotesID string

	// ChunkIndex is the chunk's 0-based position within its document.
	ChunkIndex int

	// PageNumber, StartTimeSeconds, EndTimeSeconds locate the chunk within
	// the source. Nil when not applicable.
	PageNumber       *int
	StartTimeSeconds *int
	EndTimeSeconds   *int

	// ContentHash is the deterministic dedup hash of the chunk body.
	ContentHash string

	// CreatedAt is the chunk creation timestamp, RFC 3339.
	CreatedAt string
}

// Record is one (id, vector, payload) triple to be persisted.
type Record struct {
	// ID is the unique point identifier (UUID).
	ID string

	// Vector is the pre-computed embedding for the payload text.
	Vector []float32

	// Payload is the durable metadata stored with the vector.
	Payload Payload
}

// Result is one retrieved point. Score is the cosine similarity assigned by
// the store for ranked searches; full-context scans carry no ranking and the
// caller assigns a uniform score instead.
type Result struct {
	// ID is the point identifier.
	ID string

	// Score is the similarity score from a ranked search (0.0–1.0).
	Score float32

	// Payload is the stored metadata.
	Payload Payload
}

// Filters scopes a search or scan to a tenancy partition. Empty fields are
// not applied; both set means both must match (equality).
type Filters struct {
	// CourseID filters by course when non-empty.
	CourseID string

	// ModuleID filters by module when non-empty.
	ModuleID string
}

// VectorStore persists and retrieves embedded chunks.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or updates a batch of records with pre-computed vectors.
	Upsert(ctx context.Context, records []Record) error

	// Search performs a similarity search scoped by filters, returning at
	// most limit results ranked by score, discarding results below
	// scoreThreshold. A threshold of 0 effectively disables score filtering.
	Search(ctx context.Context, vector []float32, f Filters, limit int, scoreThreshold float32) ([]Result, error)

	// Scan returns up to limit records matching filters without ranking —
	// no query vector required. Used by full-context retrieval; the caller
	// owns ordering.
	Scan(ctx context.Context, f Filters, limit int) ([]Result, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Completion is the result of a language-model call.
type Completion struct {
	// Text is the generated answer.
	Text string

	// TokensUsed is the total token usage reported by the provider.
	// Zero when the provider does not report usage.
	TokensUsed int
}

// Completer is the language-model collaborator. A Completer maps a system
// instruction and a user prompt to generated text. Failures are returned as
// errors; the query layer is responsible for degrading them into
// answer-shaped text rather than failing the request.
// Implementations must be safe to call from multiple goroutines.
type Completer interface {
	// Complete generates a response for the given prompts.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (Completion, error)
}
