// Package chunking implements the token-aware text splitting pipeline:
// it turns extracted course material into token-bounded, overlapping chunks
// with provenance metadata and content hashes, ready for embedding and
// upsert into the vector store.
package chunking

import (
	"strings"
	"time"
)

// SourceType classifies the origin of ingested material.
type SourceType string

const (
	// SourceTypePDF is a PDF document, extracted page by page.
	SourceTypePDF SourceType = "pdf"
	// SourceTypeDocx is a Word document.
	SourceTypeDocx SourceType = "docx"
	// SourceTypeTxt is a plain text file.
	SourceTypeTxt SourceType = "txt"
	// SourceTypeNotes is instructor- or student-authored notes (plain text).
	SourceTypeNotes SourceType = "notes"
	// SourceTypeVideo is a video whose transcript segments carry timestamps.
	SourceTypeVideo SourceType = "video"
)

// ParseSourceType normalizes and validates a declared source type string.
// The second return value is false for anything outside the known set.
func ParseSourceType(s string) (SourceType, bool) {
	switch t := SourceType(strings.ToLower(strings.TrimSpace(s))); t {
	case SourceTypePDF, SourceTypeDocx, SourceTypeTxt, SourceTypeNotes, SourceTypeVideo:
		return t, true
	default:
		return "", false
	}
}

// ExtractedContent is one unit of source text produced by an extractor,
// plus its optional locator (page for documents, time range for transcripts).
// Instances are immutable once created.
type ExtractedContent struct {
	// Text is the extracted text. Extractors trim it; empty blocks are skipped.
	Text string

	// PageNumber is the 1-based page this block came from, if applicable.
	PageNumber *int

	// StartTimeSeconds is the transcript segment start, if applicable.
	StartTimeSeconds *int

	// EndTimeSeconds is the transcript segment end, if applicable.
	EndTimeSeconds *int

	// Metadata is an open key-value bag of extractor-specific fields.
	// Keys matching known metadata fields (course_id, module_id, ...) override
	// the base metadata during aggregation; unknown keys are carried as-is.
	Metadata map[string]string
}

// SourceMetadata is the per-document metadata attached to every chunk cut
// from it. The ingestion pipeline builds one from the ingest request and the
// aggregator specializes it per content block.
type SourceMetadata struct {
	// CourseID and ModuleID form the tenancy scope. Never empty for ingested data.
	CourseID string
	ModuleID string

	// SourceType classifies the originating document.
	SourceType SourceType

	// SourceURI locates the original document (e.g. blob://course/module/file.pdf).
	SourceURI string

	// VideoID is set when the source is a video.
	VideoID string

	// NotesID is set when the source is a notes document.
	NotesID string

	// PageNumber locates document-type sources within the file.
	PageNumber *int

	// StartTimeSeconds and EndTimeSeconds locate transcript-type sources in time.
	StartTimeSeconds *int
	EndTimeSeconds   *int

	// Extra carries open key-value metadata that survives into the chunk.
	Extra map[string]string
}

// ChunkMetadata is the identity and provenance of a single chunk. It is the
// durable payload contract stored alongside the vector — other services read
// these fields back out of the vector store.
type ChunkMetadata struct {
	// ID is the unique chunk identifier, generated at creation.
	ID string

	// CourseID and ModuleID are the tenancy scope inherited from the source.
	CourseID string
	ModuleID string

	// SourceType classifies the originating document.
	SourceType SourceType

	// SourceURI locates the original document.
	SourceURI string

	// VideoID and NotesID carry source-specific identifiers, empty if unset.
	VideoID string
	NotesID string

	// ChunkText is a redundant copy of the chunk body for payload storage.
	ChunkText string

	// ChunkIndex is the 0-based position of this chunk in the final
	// aggregated list. For a list of length N the indices are exactly 0..N-1
	// in list order.
	ChunkIndex int

	// PageNumber, StartTimeSeconds, EndTimeSeconds locate the chunk within
	// the source, copied untouched from the originating content block.
	PageNumber       *int
	StartTimeSeconds *int
	EndTimeSeconds   *int

	// ContentHash is a deterministic hash of the trimmed chunk text, used for
	// deduplication. Not required to be globally unique.
	ContentHash string

	// CreatedAt is the timestamp at chunk creation (UTC).
	CreatedAt time.Time

	// Extra carries open key-value metadata inherited from the source.
	Extra map[string]string
}

// Chunk is a bounded span of source text plus its metadata — the unit of
// embedding and retrieval. Only Embedding (attached later by the embedding
// step) and ChunkIndex (overwritten during aggregation re-indexing) are
// mutated after creation.
type Chunk struct {
	// Text is the chunk body.
	Text string

	// Metadata is the chunk's identity and provenance.
	Metadata ChunkMetadata

	// Embedding is the dense vector for Text, attached by the embedding step.
	// Nil until embedded.
	Embedding []float32
}
