package extract

import (
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/lektor-ai/lektor-go/internal/chunking"
)

func TestTextExtractorUTF8(t *testing.T) {
	t.Parallel()

	blocks, err := (TextExtractor{}).Extract([]byte("  lecture notes on joins  \n"), "notes.txt")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("len(blocks) = %d, want 1", len(blocks))
	}
	if blocks[0].Text != "lecture notes on joins" {
		t.Errorf("Text = %q, want trimmed content", blocks[0].Text)
	}
}

func TestTextExtractorEmptyFile(t *testing.T) {
	t.Parallel()

	for _, content := range [][]byte{nil, []byte("   \n\t  ")} {
		blocks, err := (TextExtractor{}).Extract(content, "empty.txt")
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		if len(blocks) != 0 {
			t.Errorf("Extract(%q) = %d blocks, want 0", content, len(blocks))
		}
	}
}

func TestTextExtractorUTF16(t *testing.T) {
	t.Parallel()

	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	content, err := enc.Bytes([]byte("größe matters"))
	if err != nil {
		t.Fatal(err)
	}

	blocks, err := (TextExtractor{}).Extract(content, "notes.txt")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Text != "größe matters" {
		t.Errorf("blocks = %+v, want UTF-16 decoded text", blocks)
	}
}

func TestTextExtractorLatin1Fallback(t *testing.T) {
	t.Parallel()

	content, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte("café"))
	if err != nil {
		t.Fatal(err)
	}

	blocks, err := (TextExtractor{}).Extract(content, "notes.txt")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Text != "café" {
		t.Errorf("blocks = %+v, want Latin-1 decoded text", blocks)
	}
}

func TestVideoExtractorPlaceholder(t *testing.T) {
	t.Parallel()

	blocks, err := (VideoExtractor{}).Extract([]byte{0x00, 0x01}, "lecture.mp4")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("len(blocks) = %d, want 1", len(blocks))
	}
	if !strings.Contains(blocks[0].Text, "lecture.mp4") {
		t.Errorf("placeholder should name the file, got %q", blocks[0].Text)
	}
	if blocks[0].Metadata["transcription_status"] != "pending" {
		t.Errorf("Metadata = %v, want transcription_status=pending", blocks[0].Metadata)
	}
}

func TestRegistryResolution(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	if _, ok := r.Get(chunking.SourceTypeTxt).(*TextExtractor); !ok {
		t.Error("txt should resolve to TextExtractor")
	}
	if _, ok := r.Get(chunking.SourceTypeVideo).(*VideoExtractor); !ok {
		t.Error("video should resolve to VideoExtractor")
	}
	// No dedicated PDF extractor registered: falls back to plain text.
	if _, ok := r.Get(chunking.SourceTypePDF).(*TextExtractor); !ok {
		t.Error("pdf should fall back to TextExtractor")
	}
}

type stubExtractor struct{}

func (stubExtractor) Extract([]byte, string) ([]chunking.ExtractedContent, error) {
	return nil, nil
}

func TestRegistryOverride(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(chunking.SourceTypePDF, stubExtractor{})
	if _, ok := r.Get(chunking.SourceTypePDF).(stubExtractor); !ok {
		t.Error("registered extractor should take precedence over the fallback")
	}
}
