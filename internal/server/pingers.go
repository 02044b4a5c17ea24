package server

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/lektor-ai/lektor-go/internal/cache"
)

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
// It satisfies the Pinger interface and feeds both GET /api/ready and the
// qdrant_connected flag of GET /api/health.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if _, err := p.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// RedisPinger probes the Redis cache backing the response and embedding
// caches. Redis being down degrades performance, not correctness, but
// operators still want it surfaced.
type RedisPinger struct {
	// client is the Redis cache to probe.
	client *cache.Redis
}

// NewRedisPinger constructs a RedisPinger for the given Redis cache.
func NewRedisPinger(client *cache.Redis) *RedisPinger {
	return &RedisPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *RedisPinger) Name() string { return "redis" }

// Ping issues a Redis PING.
func (p *RedisPinger) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}
