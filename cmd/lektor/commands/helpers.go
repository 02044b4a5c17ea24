package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lektor-ai/lektor-go/internal/cache"
	"github.com/lektor-ai/lektor-go/internal/config"
	"github.com/lektor-ai/lektor-go/internal/embedder"
	"github.com/lektor-ai/lektor-go/internal/jobs"
	"github.com/lektor-ai/lektor-go/internal/logging"
	"github.com/lektor-ai/lektor-go/internal/rag"
)

// buildLogger constructs the structured logger from resolved settings.
func buildLogger(s config.Settings) *slog.Logger {
	return logging.NewWith(s.LogLevel, s.LogFormat)
}

// buildCache connects the response/embedding cache. When REDIS_URL is set it
// returns a Redis-backed cache plus the connection for health probes; when
// unset or unreachable it falls back to an in-process cache so the service
// still runs, just without cross-instance sharing.
func buildCache(s config.Settings, log *slog.Logger) (cache.Cache, *cache.Redis) {
	if s.RedisURL == "" {
		log.Info("cache: REDIS_URL not set, using in-process cache")
		return cache.NewMemory(), nil
	}

	rc, err := cache.NewRedis(s.RedisURL, log)
	if err != nil {
		log.Warn("cache: Redis unavailable, falling back to in-process cache",
			slog.Any("error", err))
		return cache.NewMemory(), nil
	}

	log.Info("cache: Redis connected")
	return rc, rc
}

// buildVectorStore connects to Qdrant and ensures the collection exists.
func buildVectorStore(ctx context.Context, s config.Settings) (*rag.QdrantStore, error) {
	store, err := rag.NewQdrantStore(ctx, &s.Qdrant)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w",
			s.Qdrant.Host, s.Qdrant.Port, err)
	}
	return store, nil
}

// buildEmbedders constructs the embedding stack: the raw provider client, a
// cache-backed wrapper for single query embeddings, and a rate-paced batcher
// for ingestion.
func buildEmbedders(s config.Settings, store cache.Cache, log *slog.Logger) (*embedder.Cached, *embedder.Batcher, error) {
	embedder.WarnIfMisconfigured(s.Embedding, log)

	base, err := embedder.New(s.Embedding)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	cached := embedder.NewCached(base, store, s.Embedding.Dimensions, log)
	batcher := embedder.NewBatcher(base, s.Embedding.Dimensions, log)
	return cached, batcher, nil
}

// openJobStore opens the SQLite job store at the configured path, or the
// default (~/.lektor/jobs.db) when unset.
func openJobStore(s config.Settings) (*jobs.SQLiteStore, error) {
	path := s.JobsDBPath
	if path == "" {
		var err error
		path, err = jobs.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve job store path: %w", err)
		}
	}
	store, err := jobs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open job store at %s: %w", path, err)
	}
	return store, nil
}
