// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// queryRequestsTotal counts completed /api/query requests, partitioned
	// by outcome: "ok", "cache_hit", or "error".
	queryRequestsTotal *prometheus.CounterVec

	// queryDurationSeconds records the wall-clock duration of each
	// /api/query request, generation included.
	queryDurationSeconds prometheus.Histogram

	// queryCacheHitsTotal counts answers served from the response cache.
	queryCacheHitsTotal prometheus.Counter

	// chunksRetrieved records how many chunks each query pulled as context.
	chunksRetrieved prometheus.Histogram

	// ingestJobsTotal counts ingestion jobs by lifecycle state: "queued",
	// "completed", "failed".
	ingestJobsTotal *prometheus.CounterVec

	// chunksIndexedTotal counts chunks written to the vector store.
	chunksIndexedTotal prometheus.Counter

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, path, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		queryRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lektor",
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total number of /api/query requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		queryDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lektor",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/query requests, generation included.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		queryCacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lektor",
			Subsystem: "query",
			Name:      "cache_hits_total",
			Help:      "Number of answers served from the response cache.",
		}),

		chunksRetrieved: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lektor",
			Subsystem: "query",
			Name:      "chunks_retrieved",
			Help:      "Number of context chunks retrieved per query.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 500, 1000},
		}),

		ingestJobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lektor",
			Subsystem: "ingest",
			Name:      "jobs_total",
			Help:      "Total number of ingestion jobs, partitioned by lifecycle state.",
		}, []string{"status"}),

		chunksIndexedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lektor",
			Subsystem: "ingest",
			Name:      "chunks_indexed_total",
			Help:      "Total number of chunks written to the vector store.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lektor",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, path, and status code.",
		}, []string{"method", "path", "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lektor",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}
