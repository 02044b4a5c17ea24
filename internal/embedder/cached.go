package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lektor-ai/lektor-go/internal/cache"
	"github.com/lektor-ai/lektor-go/internal/rag"
)

// Cached wraps an Embedder with normalization and a read-through cache for
// single-text embedding, the pattern the query path uses. Cache keys are
// derived from the normalized text, so the same question phrased with
// different line breaks hits the same entry.
type Cached struct {
	inner      rag.Embedder
	store      cache.Cache
	dimensions int
	log        *slog.Logger
}

// NewCached constructs a caching wrapper around inner. dimensions is the
// vector length returned for empty inputs.
func NewCached(inner rag.Embedder, store cache.Cache, dimensions int, log *slog.Logger) *Cached {
	if store == nil {
		store = cache.Noop{}
	}
	return &Cached{inner: inner, store: store, dimensions: dimensions, log: log}
}

// EmbedOne embeds a single text with normalization and caching. Empty or
// whitespace-only input returns a zero vector without calling the backend.
func (c *Cached) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	normalized := Normalize(text)
	if normalized == "" {
		return ZeroVector(c.dimensions), nil
	}

	key := cache.EmbeddingKey(normalized)
	if raw, ok := c.store.Get(ctx, key); ok {
		var vec []float32
		if err := json.Unmarshal(raw, &vec); err == nil {
			return vec, nil
		}
		c.log.Warn("embedder: discarding undecodable cached embedding", slog.String("key", key))
	}

	vecs, err := c.inner.Embed(ctx, []string{normalized})
	if err != nil {
		return nil, fmt.Errorf("embedder: embed query text: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder: expected 1 embedding, got %d", len(vecs))
	}

	if raw, err := json.Marshal(vecs[0]); err == nil {
		c.store.Set(ctx, key, raw, cache.EmbeddingTTL)
	}

	return vecs[0], nil
}

// Embed satisfies rag.Embedder by delegating to the wrapped backend without
// per-text caching. Batch ingestion goes through the Batcher instead.
func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.Embed(ctx, texts)
}
