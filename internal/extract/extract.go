// Package extract turns uploaded course files into text blocks ready for
// chunking. A registry maps source types to extractors; types without a
// dedicated extractor fall back to plain-text extraction so unknown uploads
// degrade to "treat it as text" rather than failing.
package extract

import (
	"github.com/lektor-ai/lektor-go/internal/chunking"
)

// Extractor converts raw file bytes into extracted text blocks. Extractors
// return one block per natural unit of the source (page, transcript segment)
// so downstream chunking can attach locators.
type Extractor interface {
	Extract(content []byte, filename string) ([]chunking.ExtractedContent, error)
}

// Registry resolves the extractor for a source type.
type Registry struct {
	extractors map[chunking.SourceType]Extractor
	fallback   Extractor
}

// NewRegistry returns a registry with the built-in extractors: plain text
// for txt and notes, a transcription placeholder for video. PDF and DOCX
// resolve to the plain-text fallback until a dedicated extractor is
// registered.
func NewRegistry() *Registry {
	text := &TextExtractor{}
	r := &Registry{
		extractors: make(map[chunking.SourceType]Extractor),
		fallback:   text,
	}
	r.Register(chunking.SourceTypeTxt, text)
	r.Register(chunking.SourceTypeNotes, text)
	r.Register(chunking.SourceTypeVideo, &VideoExtractor{})
	return r
}

// Register installs or replaces the extractor for a source type.
func (r *Registry) Register(t chunking.SourceType, e Extractor) {
	r.extractors[t] = e
}

// Get returns the extractor for a source type, falling back to plain text
// when no dedicated extractor is registered.
func (r *Registry) Get(t chunking.SourceType) Extractor {
	if e, ok := r.extractors[t]; ok {
		return e
	}
	return r.fallback
}
