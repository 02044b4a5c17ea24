package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/lektor-ai/lektor-go/internal/chunking"
)

// TextExtractor handles plain-text files. It tries UTF-8 first, then UTF-16
// when a byte-order mark is present, then Latin-1, which accepts any byte
// sequence. Decoding therefore never fails; garbage in yields mojibake out,
// same as any other text tool.
type TextExtractor struct{}

// Extract decodes the file and returns it as a single block. Empty or
// whitespace-only files yield no blocks.
func (TextExtractor) Extract(content []byte, _ string) ([]chunking.ExtractedContent, error) {
	text := strings.TrimSpace(decodeText(content))
	if text == "" {
		return nil, nil
	}
	return []chunking.ExtractedContent{{Text: text}}, nil
}

var (
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}
)

func decodeText(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}

	if bytes.HasPrefix(content, utf16LEBOM) || bytes.HasPrefix(content, utf16BEBOM) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		if decoded, err := dec.Bytes(content); err == nil {
			return string(decoded)
		}
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(content)
	if err != nil {
		// Latin-1 maps every byte; this path exists only to satisfy the API.
		return strings.ToValidUTF8(string(content), "")
	}
	return string(decoded)
}
