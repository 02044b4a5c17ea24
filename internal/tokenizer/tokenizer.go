// Package tokenizer wraps a tiktoken BPE encoder behind the small Codec
// interface the chunking pipeline needs: token counting plus a stable
// encode/decode round-trip. The cl100k_base encoding is used — it matches
// the GPT-4 / text-embedding-3 family the service runs against.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the tiktoken encoding used when none is specified.
// cl100k_base covers gpt-4, gpt-3.5-turbo, and the text-embedding-ada-002 /
// text-embedding-3-small/large embedding models.
const DefaultEncoding = "cl100k_base"

// Codec converts between text and token ids. Implementations must be
// deterministic: identical input always yields identical output. Decoding a
// partial token sequence may normalize whitespace at the boundaries, but must
// itself be stable.
// Implementations must be safe to call from multiple goroutines.
type Codec interface {
	// Encode converts text to a sequence of token ids.
	Encode(text string) []int

	// Decode converts a sequence of token ids back to text.
	Decode(tokens []int) string

	// CountTokens returns the number of tokens Encode would produce.
	CountTokens(text string) int
}

// Tiktoken is a Codec backed by a tiktoken BPE encoder.
type Tiktoken struct {
	// enc is the underlying tiktoken encoder.
	enc *tiktoken.Tiktoken
}

// New constructs a Tiktoken codec for the named encoding.
// An unknown encoding name is a configuration error — the encoder tables are
// resolved at construction so the chunker never fails mid-document.
func New(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: unknown encoding %q: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Encode converts text to a sequence of token ids.
// Special tokens are treated as ordinary text (nothing is allowed or
// disallowed) so arbitrary course material can never trip the encoder.
func (t *Tiktoken) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Decode converts a sequence of token ids back to text.
func (t *Tiktoken) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// CountTokens returns the number of tokens in text.
func (t *Tiktoken) CountTokens(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}
