package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lektor-ai/lektor-go/internal/chunking"
	"github.com/lektor-ai/lektor-go/internal/ingestion"
	"github.com/lektor-ai/lektor-go/internal/jobs"
	"github.com/lektor-ai/lektor-go/internal/logging"
	"github.com/lektor-ai/lektor-go/internal/query"
)

// handleQuery handles POST /api/query: decode, validate, answer, encode.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req query.Request
	// include_sources defaults to true; JSON decoding overrides it only when
	// the field is present.
	req.IncludeSources = true
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := s.engine.Answer(r.Context(), req)
	if err != nil {
		log.Error("query failed", slog.String("error", err.Error()))
		s.metrics.queryRequestsTotal.WithLabelValues("error").Inc()
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	outcome := "ok"
	if resp.Debug.CacheHit {
		outcome = "cache_hit"
		s.metrics.queryCacheHitsTotal.Inc()
	}
	s.metrics.queryRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.queryDurationSeconds.Observe(time.Since(start).Seconds())
	s.metrics.chunksRetrieved.Observe(float64(resp.Debug.ChunksRetrieved))

	writeJSON(w, http.StatusOK, resp, log)
}

// handleIngest handles POST /api/ingest. The multipart form carries the file
// plus course_id, module_id, source_type, and optional video_id/notes_id
// fields. The upload is validated and acknowledged with 202 Accepted; the
// pipeline runs in the background under a detached context.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	courseID := r.FormValue("course_id")
	moduleID := r.FormValue("module_id")
	if courseID == "" || moduleID == "" {
		http.Error(w, "course_id and module_id are required", http.StatusBadRequest)
		return
	}
	sourceType, ok := chunking.ParseSourceType(r.FormValue("source_type"))
	if !ok {
		http.Error(w, "source_type must be one of: pdf, docx, txt, notes, video", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		log.Error("ingest: reading upload failed", slog.String("error", err.Error()))
		http.Error(w, "could not read upload", http.StatusBadRequest)
		return
	}

	filename := header.Filename
	if filename == "" {
		filename = "unknown"
	}

	jobID := uuid.NewString()
	job := jobs.Job{
		ID:         jobID,
		Status:     jobs.StatusQueued,
		Message:    "Ingestion job queued successfully",
		CourseID:   courseID,
		ModuleID:   moduleID,
		SourceType: string(sourceType),
		Filename:   filename,
	}
	if err := s.jobs.Create(r.Context(), job); err != nil {
		log.Error("ingest: creating job record failed", slog.String("error", err.Error()))
		http.Error(w, "could not queue ingestion", http.StatusInternalServerError)
		return
	}

	s.metrics.ingestJobsTotal.WithLabelValues("queued").Inc()

	ingestReq := ingestion.Request{
		CourseID:   courseID,
		ModuleID:   moduleID,
		SourceType: sourceType,
		VideoID:    r.FormValue("video_id"),
		NotesID:    r.FormValue("notes_id"),
		Filename:   filename,
		Content:    content,
	}

	// The job outlives the HTTP request; run it under a fresh context that
	// carries only the logger.
	go func() {
		bgCtx := logging.WithLogger(context.Background(), s.log)
		s.pipeline.Run(bgCtx, jobID, ingestReq)
		s.observeJobOutcome(bgCtx, jobID)
	}()

	writeJSON(w, http.StatusAccepted, ingestResponse{
		JobID:   jobID,
		Status:  string(jobs.StatusQueued),
		Message: "Ingestion job queued successfully",
	}, log)
}

// observeJobOutcome records terminal job metrics after a pipeline run.
func (s *Server) observeJobOutcome(ctx context.Context, jobID string) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return
	}
	s.metrics.ingestJobsTotal.WithLabelValues(string(job.Status)).Inc()
	if job.Status == jobs.StatusCompleted && job.ChunksCount != nil {
		s.metrics.chunksIndexedTotal.Add(float64(*job.ChunksCount))
	}
}

// handleJob handles GET /api/jobs/{id}.
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	job, err := s.jobs.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, jobs.ErrNotFound) {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error("job lookup failed", slog.String("error", err.Error()))
		http.Error(w, "job lookup failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, jobResponse{
		JobID:       job.ID,
		Status:      string(job.Status),
		Message:     job.Message,
		CourseID:    job.CourseID,
		ModuleID:    job.ModuleID,
		SourceType:  job.SourceType,
		Filename:    job.Filename,
		ChunksCount: job.ChunksCount,
		CreatedAt:   job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   job.UpdatedAt.UTC().Format(time.RFC3339),
	}, log)
}

// healthProbeTimeout bounds the per-dependency connectivity probe in
// GET /api/health. Shorter than the readiness probe because health is polled
// frequently.
const healthProbeTimeout = 2 * time.Second

// handleHealth handles GET /api/health. The process is "healthy" whenever it
// can respond; dependency flags report best-effort connectivity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", Version: s.cfg.Version}

	for _, p := range s.pingers {
		probeCtx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
		err := p.Ping(probeCtx)
		cancel()
		switch p.Name() {
		case "qdrant":
			resp.QdrantConnected = err == nil
		case "redis":
			resp.RedisConnected = err == nil
		}
	}

	writeJSON(w, http.StatusOK, resp, logging.FromContext(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v any, log *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("response encode error", slog.String("error", err.Error()))
	}
}
