// Package server exposes the retrieval service over HTTP: query answering,
// document ingestion with background job tracking, health and readiness
// probes, and Prometheus metrics.
// The server is started by the `lektor serve` CLI command.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lektor-ai/lektor-go/internal/ingestion"
	"github.com/lektor-ai/lektor-go/internal/jobs"
	"github.com/lektor-ai/lektor-go/internal/logging"
	"github.com/lektor-ai/lektor-go/internal/query"
)

// answerer is the interface handleQuery calls. *query.Engine satisfies it;
// tests inject a fake.
type answerer interface {
	Answer(ctx context.Context, req query.Request) (query.Response, error)
}

// ingestRunner is the interface the ingest handler dispatches background
// work to. *ingestion.Pipeline satisfies it; tests inject a fake.
type ingestRunner interface {
	Run(ctx context.Context, jobID string, req ingestion.Request)
}

// New constructs a Server from its collaborators and config.
func New(engine answerer, pipeline ingestRunner, jobStore jobs.Store, cfg *Config) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("server: query engine must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout covers LLM generation, which can be slow.
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 100 << 20 // 100 MiB
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	if cfg.APIKey == "" {
		log.Warn("server: no API key configured, authentication disabled")
	}

	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		engine:   engine,
		pipeline: pipeline,
		jobs:     jobStore,
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(reg),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	mux := http.NewServeMux()
	mux.Handle("POST /api/query", rl.middleware(authMiddleware(cfg.APIKey, http.HandlerFunc(s.handleQuery))))
	mux.Handle("POST /api/ingest", rl.middleware(authMiddleware(cfg.APIKey, http.HandlerFunc(s.handleIngest))))
	mux.Handle("GET /api/jobs/{id}", authMiddleware(cfg.APIKey, http.HandlerFunc(s.handleJob)))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.handler = requestLogger(log, s.metrics, mux)
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}
