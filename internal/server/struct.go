package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lektor-ai/lektor-go/internal/jobs"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// MaxUploadBytes caps the size of ingest uploads (default: 100 MiB).
	MaxUploadBytes int64
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready
	// and reflected in GET /api/health connectivity flags. If empty,
	// /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Registry receives the server's Prometheus metrics. If nil, a private
	// registry is created; /metrics serves whichever registry is used.
	Registry *prometheus.Registry
	// Version is reported by GET /api/health.
	Version string
}

// Server is the HTTP front end of the retrieval service.
type Server struct {
	// engine answers queries.
	engine answerer
	// pipeline processes uploads in the background.
	pipeline ingestRunner
	// jobs is the ingestion job status store.
	jobs jobs.Store
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// handler is the fully wrapped root handler, exposed for tests.
	handler http.Handler
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes.
	pingers []Pinger
	// metrics holds this instance's Prometheus collectors.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// ingestResponse is the JSON body returned by POST /api/ingest.
type ingestResponse struct {
	// JobID identifies the background job for later polling.
	JobID string `json:"job_id"`
	// Status is the job's lifecycle state at response time.
	Status string `json:"status"`
	// Message is a human-readable status detail.
	Message string `json:"message"`
	// ChunksCount is how many chunks were indexed, when known.
	ChunksCount *int `json:"chunks_count,omitempty"`
}

// jobResponse is the JSON body returned by GET /api/jobs/{id}.
type jobResponse struct {
	JobID       string `json:"job_id"`
	Status      string `json:"status"`
	Message     string `json:"message"`
	CourseID    string `json:"course_id"`
	ModuleID    string `json:"module_id"`
	SourceType  string `json:"source_type"`
	Filename    string `json:"filename"`
	ChunksCount *int   `json:"chunks_count,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// healthResponse is the JSON body returned by GET /api/health.
type healthResponse struct {
	// Status is "healthy" whenever the process is serving requests.
	Status string `json:"status"`
	// Version is the build version string.
	Version string `json:"version"`
	// QdrantConnected and RedisConnected report dependency reachability at
	// probe time. False when the dependency is down or not configured.
	QdrantConnected bool `json:"qdrant_connected"`
	RedisConnected  bool `json:"redis_connected"`
}
