package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// FullContextTopK is the sentinel substituted for top_k when deriving the
// query key for a full-context request. It keeps full-context results from
// ever colliding with top-k-limited results for the same query and scope,
// since no semantic-mode request can carry a negative top_k.
const FullContextTopK = -1

// Key namespace prefixes. Keeping them distinct means an embedding vector
// can never be deserialized as a query result or vice versa.
const (
	embeddingPrefix = "emb:"
	queryPrefix     = "qry:"
)

// EmbeddingKey derives the cache key for an embedding of text.
// The caller must pass the exact normalized text that is sent to the
// embedding provider (newlines collapsed, trimmed) — normalize once, then
// reuse the same string for both the key and the provider call.
func EmbeddingKey(text string) string {
	return embeddingPrefix + hashString(text)
}

// QueryKey derives the cache key for a query result from the full dispatch
// tuple. courseID and moduleID may be empty; effectiveTopK is the requested
// top_k in semantic-search mode and FullContextTopK in full-context mode.
func QueryKey(query, courseID, moduleID string, effectiveTopK int) string {
	parts := fmt.Sprintf("%s|%s|%s|%d", query, courseID, moduleID, effectiveTopK)
	return queryPrefix + hashString(parts)
}

// hashString returns a fixed-length, collision-resistant digest of s.
func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:32]
}
