package extract

import (
	"fmt"

	"github.com/lektor-ai/lektor-go/internal/chunking"
)

// VideoExtractor stands in for a transcription backend. Until one is wired
// up it produces a single placeholder block so the upload is tracked in the
// index and can be re-ingested once transcripts are available.
type VideoExtractor struct{}

// Extract returns a placeholder block marking the transcription as pending.
func (VideoExtractor) Extract(_ []byte, filename string) ([]chunking.ExtractedContent, error) {
	return []chunking.ExtractedContent{{
		Text:     fmt.Sprintf("[Video transcription pending - no transcription backend configured. File: %s]", filename),
		Metadata: map[string]string{"transcription_status": "pending"},
	}}, nil
}
