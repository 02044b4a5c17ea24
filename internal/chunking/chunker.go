package chunking

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lektor-ai/lektor-go/internal/tokenizer"
)

// ErrInvalidConfiguration is returned when the chunking parameters can never
// terminate (overlap >= chunk size). The input is rejected before any
// processing — no partial chunk list is ever produced.
var ErrInvalidConfiguration = errors.New("chunking: invalid configuration")

// ErrDivergence is returned when the chunking loop exceeds its iteration
// bound. This is an internal invariant violation — a bug in the break or
// advance logic — never a normal outcome for valid input.
var ErrDivergence = errors.New("chunking: divergence")

// breakDelimiters are the natural-break markers searched for, in priority
// order, when a chunk window does not reach the end of the document. The
// first delimiter with any occurrence in the search region wins, at its
// rightmost position.
var breakDelimiters = []string{"\n\n", "\n", ". ", "! ", "? "}

const (
	// breakSearchFraction bounds the natural-break search to the last 20% of
	// the decoded window.
	breakSearchFraction = 0.8

	// breakFloorFraction rejects break points in the first half of the
	// window, preventing pathological tiny chunks when a delimiter sits
	// too early.
	breakFloorFraction = 0.5

	// iterationSlack is added to the token count to form the chunking loop's
	// iteration bound.
	iterationSlack = 100
)

// Chunker splits raw text into token-bounded, overlapping chunks.
// It is a pure CPU-bound transformation with no suspension points and is
// safe to run concurrently from any goroutine.
type Chunker struct {
	// codec is the token encoder used for window arithmetic.
	codec tokenizer.Codec
}

// New constructs a Chunker over the given token codec.
func New(codec tokenizer.Codec) *Chunker {
	return &Chunker{codec: codec}
}

// ChunkText splits text into chunks of at most chunkSize tokens with
// overlap tokens shared between consecutive chunks, snapping chunk ends to
// natural breaks where possible.
//
// overlap must be strictly less than chunkSize or ErrInvalidConfiguration is
// returned. Empty or whitespace-only text yields an empty chunk list, not an
// error. ChunkIndex values of the returned list are exactly 0..N-1 in order.
func (c *Chunker) ChunkText(text string, chunkSize, overlap int, src SourceMetadata) ([]Chunk, error) {
	if overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap_tokens (%d) must be less than chunk_size_tokens (%d)",
			ErrInvalidConfiguration, overlap, chunkSize)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	tokens := c.codec.Encode(text)
	totalTokens := len(tokens)
	if totalTokens == 0 {
		return nil, nil
	}

	var chunks []Chunk
	startToken := 0
	chunkIndex := 0

	// The window must advance by at least one token per iteration, so any
	// run longer than this is a logic defect, not a large document.
	maxIterations := totalTokens + iterationSlack
	iterations := 0

	for startToken < totalTokens {
		iterations++
		if iterations > maxIterations {
			return nil, fmt.Errorf("%w: loop exceeded %d iterations at token %d/%d",
				ErrDivergence, maxIterations, startToken, totalTokens)
		}

		endToken := min(startToken+chunkSize, totalTokens)
		chunkText := c.codec.Decode(tokens[startToken:endToken])

		// Snap to a natural break unless the window already reaches the end.
		if endToken < totalTokens {
			if cut, ok := findBreak(chunkText); ok {
				chunkText = strings.TrimSpace(chunkText[:cut])
				// The truncated text's token count is authoritative for
				// overlap math — never assume proportionality.
				endToken = startToken + c.codec.CountTokens(chunkText)
			}
		}

		chunkText = strings.TrimSpace(chunkText)
		if chunkText != "" {
			chunks = append(chunks, Chunk{
				Text:     chunkText,
				Metadata: newMetadata(chunkText, chunkIndex, src),
			})
			chunkIndex++
		}

		if endToken >= totalTokens {
			break
		}

		// The +1 floor guarantees forward progress even when a natural break
		// pulled endToken back into the overlap region.
		startToken = max(endToken-overlap, startToken+1)
	}

	return chunks, nil
}

// ChunkExtracted chunks a sequence of extracted content blocks in input
// order, merging base with each block's locator fields and metadata
// overrides, then re-indexes the merged chunk list sequentially (0..N-1).
// Page and timestamp fields survive untouched from the originating block.
func (c *Chunker) ChunkExtracted(contents []ExtractedContent, chunkSize, overlap int, base SourceMetadata) ([]Chunk, error) {
	var all []Chunk

	for _, content := range contents {
		meta := base
		if content.PageNumber != nil {
			meta.PageNumber = content.PageNumber
		}
		if content.StartTimeSeconds != nil {
			meta.StartTimeSeconds = content.StartTimeSeconds
		}
		if content.EndTimeSeconds != nil {
			meta.EndTimeSeconds = content.EndTimeSeconds
		}
		applyOverrides(&meta, content.Metadata)

		chunks, err := c.ChunkText(content.Text, chunkSize, overlap, meta)
		if err != nil {
			return nil, err
		}
		all = append(all, chunks...)
	}

	// Per-block indices are meaningless across blocks — overwrite them with
	// a single contiguous sequence matching list order.
	for i := range all {
		all[i].Metadata.ChunkIndex = i
	}

	return all, nil
}

// findBreak searches the last 20% of s for a natural break and returns the
// byte offset just past the delimiter. The break is accepted only when it
// falls after the midpoint of s.
func findBreak(s string) (int, bool) {
	searchStart := int(float64(len(s)) * breakSearchFraction)
	region := s[searchStart:]

	for _, delim := range breakDelimiters {
		pos := strings.LastIndex(region, delim)
		if pos == -1 {
			continue
		}
		cut := searchStart + pos + len(delim)
		if float64(cut) > float64(len(s))*breakFloorFraction {
			return cut, true
		}
		return 0, false
	}

	return 0, false
}

// applyOverrides merges an open metadata bag into meta. Known keys override
// the corresponding struct fields; everything else lands in Extra. Later
// values win on collision.
func applyOverrides(meta *SourceMetadata, overrides map[string]string) {
	if len(overrides) == 0 {
		return
	}

	// Copy-on-write so sibling blocks never share an Extra map.
	extra := make(map[string]string, len(meta.Extra)+len(overrides))
	for k, v := range meta.Extra {
		extra[k] = v
	}

	for k, v := range overrides {
		switch k {
		case "course_id":
			meta.CourseID = v
		case "module_id":
			meta.ModuleID = v
		case "source_type":
			meta.SourceType = SourceType(v)
		case "source_uri":
			meta.SourceURI = v
		case "video_id":
			meta.VideoID = v
		case "notes_id":
			meta.NotesID = v
		default:
			extra[k] = v
		}
	}
	meta.Extra = extra
}

// newMetadata builds the ChunkMetadata for one emitted chunk.
func newMetadata(text string, index int, src SourceMetadata) ChunkMetadata {
	return ChunkMetadata{
		ID:               uuid.NewString(),
		CourseID:         src.CourseID,
		ModuleID:         src.ModuleID,
		SourceType:       src.SourceType,
		SourceURI:        src.SourceURI,
		VideoID:          src.VideoID,
		NotesID:          src.NotesID,
		ChunkText:        text,
		ChunkIndex:       index,
		PageNumber:       src.PageNumber,
		StartTimeSeconds: src.StartTimeSeconds,
		EndTimeSeconds:   src.EndTimeSeconds,
		ContentHash:      ContentHash(text),
		CreatedAt:        time.Now().UTC(),
		Extra:            src.Extra,
	}
}

// ContentHash returns the deterministic dedup hash for a trimmed chunk body.
// It is stable across processes and not security-sensitive.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
