package embedder

import "strings"

// Normalize canonicalizes text before embedding or cache-key derivation:
// newlines are replaced with spaces and surrounding whitespace is trimmed.
// Texts that differ only in line wrapping therefore share one embedding and
// one cache entry.
func Normalize(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
}

// ZeroVector returns an all-zero embedding of the given dimensionality.
// Used as the stand-in vector for empty inputs and failed batches so output
// slices stay parallel to their inputs.
func ZeroVector(dimensions int) []float32 {
	return make([]float32, dimensions)
}
