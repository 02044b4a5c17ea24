package chunking

import (
	"errors"
	"strings"
	"testing"
)

// runeCodec is a deterministic test codec where every rune is one token.
// It makes token arithmetic exact and human-checkable without pulling the
// tiktoken BPE tables into unit tests.
type runeCodec struct{}

func (runeCodec) Encode(text string) []int {
	runes := []rune(text)
	tokens := make([]int, len(runes))
	for i, r := range runes {
		tokens[i] = int(r)
	}
	return tokens
}

func (runeCodec) Decode(tokens []int) string {
	runes := make([]rune, len(tokens))
	for i, t := range tokens {
		runes[i] = rune(t)
	}
	return string(runes)
}

func (runeCodec) CountTokens(text string) int { return len([]rune(text)) }

func newTestChunker() *Chunker { return New(runeCodec{}) }

func TestChunkTextRejectsInvalidOverlap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		chunkSize int
		overlap   int
	}{
		{"overlap equals chunk size", 100, 100},
		{"overlap exceeds chunk size", 100, 150},
		{"zero chunk size", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := newTestChunker().ChunkText("some text", tt.chunkSize, tt.overlap, SourceMetadata{})
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("got %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestChunkTextEmptyInput(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "   ", "\n\t  \n"} {
		chunks, err := newTestChunker().ChunkText(text, 100, 10, SourceMetadata{})
		if err != nil {
			t.Fatalf("ChunkText(%q): unexpected error %v", text, err)
		}
		if len(chunks) != 0 {
			t.Fatalf("ChunkText(%q): got %d chunks, want 0", text, len(chunks))
		}
	}
}

func TestChunkTextShortInputSingleChunk(t *testing.T) {
	t.Parallel()

	chunks, err := newTestChunker().ChunkText("This is a very short text.", 100, 10, SourceMetadata{})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != "This is a very short text." {
		t.Errorf("chunk text = %q, want trimmed input", chunks[0].Text)
	}
	if chunks[0].Metadata.ChunkIndex != 0 {
		t.Errorf("chunk index = %d, want 0", chunks[0].Metadata.ChunkIndex)
	}
}

func TestChunkTextLongDocument(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("This is a test sentence. ", 100)
	chunks, err := newTestChunker().ChunkText(text, 100, 10, SourceMetadata{})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want more than one", len(chunks))
	}

	codec := runeCodec{}
	trimmed := strings.TrimSpace(text)
	for i, ch := range chunks {
		if ch.Metadata.ChunkIndex != i {
			t.Errorf("chunk %d: index = %d, want %d", i, ch.Metadata.ChunkIndex, i)
		}
		if got := codec.CountTokens(ch.Text); got > 100 {
			t.Errorf("chunk %d: %d tokens, want <= 100", i, got)
		}
		if ch.Text == "" {
			t.Errorf("chunk %d: empty text emitted", i)
		}
	}

	// The tail of the document must survive intact — no dropped tokens.
	last := chunks[len(chunks)-1]
	if !strings.HasSuffix(trimmed, last.Text) {
		t.Errorf("last chunk %q is not a suffix of the document", last.Text)
	}
}

func TestChunkTextOverlapWithoutNaturalBreaks(t *testing.T) {
	t.Parallel()

	// No break delimiters anywhere, so every window is cut at exactly
	// chunkSize tokens and the overlap math is fully predictable.
	text := strings.Repeat("abcdefghij", 50)
	const chunkSize, overlap = 100, 10

	chunks, err := newTestChunker().ChunkText(text, chunkSize, overlap, SourceMetadata{})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want more than one", len(chunks))
	}

	// Consecutive chunks share exactly overlap tokens.
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1].Text, chunks[i].Text
		if !strings.HasSuffix(prev, cur[:overlap]) {
			t.Errorf("chunk %d does not start with the previous chunk's overlap region", i)
		}
	}

	// Dropping each chunk's overlap prefix reconstructs the full input.
	var sb strings.Builder
	sb.WriteString(chunks[0].Text)
	for i := 1; i < len(chunks); i++ {
		sb.WriteString(chunks[i].Text[overlap:])
	}
	if sb.String() != text {
		t.Error("concatenation with overlap removed does not reproduce the input")
	}
}

func TestChunkTextNaturalBreakSnapping(t *testing.T) {
	t.Parallel()

	// A sentence boundary sits inside the last 20% of the first window, past
	// the midpoint, so the first chunk must end at that boundary.
	text := strings.Repeat("x", 85) + ". " + strings.Repeat("y", 60)
	chunks, err := newTestChunker().ChunkText(text, 100, 0, SourceMetadata{})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if want := strings.Repeat("x", 85) + "."; chunks[0].Text != want {
		t.Errorf("first chunk = %q, want cut at sentence boundary", chunks[0].Text)
	}
	if want := strings.Repeat("y", 60); chunks[1].Text != want {
		t.Errorf("second chunk = %q, want remainder after break", chunks[1].Text)
	}
}

func TestChunkTextIdempotent(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("Lecture four covers recursion. It builds on lecture three. ", 40)
	src := SourceMetadata{CourseID: "cs-101", ModuleID: "m4", SourceType: SourceTypeNotes}

	first, err := newTestChunker().ChunkText(text, 80, 8, src)
	if err != nil {
		t.Fatal(err)
	}
	second, err := newTestChunker().ChunkText(text, 80, 8, src)
	if err != nil {
		t.Fatal(err)
	}

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Text != second[i].Text {
			t.Errorf("chunk %d: text differs between runs", i)
		}
		if first[i].Metadata.ContentHash != second[i].Metadata.ContentHash {
			t.Errorf("chunk %d: content hash differs between runs", i)
		}
	}
}

func TestChunkTextMetadataAttached(t *testing.T) {
	t.Parallel()

	page := 7
	src := SourceMetadata{
		CourseID:   "cs-101",
		ModuleID:   "m2",
		SourceType: SourceTypePDF,
		SourceURI:  "blob://cs-101/m2/slides.pdf",
		PageNumber: &page,
	}

	chunks, err := newTestChunker().ChunkText("Short page body.", 100, 10, src)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}

	m := chunks[0].Metadata
	if m.ID == "" {
		t.Error("chunk ID not generated")
	}
	if m.CourseID != "cs-101" || m.ModuleID != "m2" {
		t.Errorf("tenancy scope = (%q, %q), want (cs-101, m2)", m.CourseID, m.ModuleID)
	}
	if m.SourceType != SourceTypePDF {
		t.Errorf("source type = %q, want pdf", m.SourceType)
	}
	if m.PageNumber == nil || *m.PageNumber != 7 {
		t.Error("page number not carried through")
	}
	if m.ChunkText != chunks[0].Text {
		t.Error("ChunkText copy does not match chunk body")
	}
	if m.ContentHash != ContentHash(chunks[0].Text) {
		t.Error("content hash does not match chunk body")
	}
	if m.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func TestChunkExtractedReindexesAcrossBlocks(t *testing.T) {
	t.Parallel()

	p1, p2 := 1, 2
	contents := []ExtractedContent{
		{Text: strings.Repeat("Alpha beta gamma. ", 20), PageNumber: &p1},
		{Text: strings.Repeat("Delta epsilon zeta. ", 20), PageNumber: &p2},
	}
	base := SourceMetadata{CourseID: "cs-101", ModuleID: "m1", SourceType: SourceTypePDF}

	chunks, err := newTestChunker().ChunkExtracted(contents, 60, 6, base)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 4 {
		t.Fatalf("got %d chunks, want at least 2 per block", len(chunks))
	}

	sawSecondPage := false
	for i, ch := range chunks {
		if ch.Metadata.ChunkIndex != i {
			t.Errorf("chunk %d: index = %d after re-indexing", i, ch.Metadata.ChunkIndex)
		}
		if ch.Metadata.PageNumber == nil {
			t.Errorf("chunk %d: page number lost", i)
			continue
		}
		if sawSecondPage && *ch.Metadata.PageNumber == 1 {
			t.Errorf("chunk %d: block order not preserved", i)
		}
		if *ch.Metadata.PageNumber == 2 {
			sawSecondPage = true
		}
	}
	if !sawSecondPage {
		t.Error("no chunks from the second block")
	}
}

func TestChunkExtractedMetadataOverrides(t *testing.T) {
	t.Parallel()

	contents := []ExtractedContent{
		{
			Text:     "Segment transcript text here.",
			Metadata: map[string]string{"module_id": "m9", "language": "en"},
		},
	}
	base := SourceMetadata{
		CourseID:   "cs-101",
		ModuleID:   "m1",
		SourceType: SourceTypeVideo,
		Extra:      map[string]string{"language": "de", "speaker": "prof"},
	}

	chunks, err := newTestChunker().ChunkExtracted(contents, 100, 10, base)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}

	m := chunks[0].Metadata
	if m.ModuleID != "m9" {
		t.Errorf("module_id = %q, block override should win", m.ModuleID)
	}
	if m.Extra["language"] != "en" {
		t.Errorf("extra language = %q, block value should win", m.Extra["language"])
	}
	if m.Extra["speaker"] != "prof" {
		t.Errorf("extra speaker = %q, base value should survive", m.Extra["speaker"])
	}
}

func TestParseSourceType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    string
		want  SourceType
		valid bool
	}{
		{"pdf", SourceTypePDF, true},
		{"PDF", SourceTypePDF, true},
		{" video ", SourceTypeVideo, true},
		{"notes", SourceTypeNotes, true},
		{"docx", SourceTypeDocx, true},
		{"txt", SourceTypeTxt, true},
		{"epub", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseSourceType(tt.in)
		if got != tt.want || ok != tt.valid {
			t.Errorf("ParseSourceType(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.valid)
		}
	}
}
