// Package ingestion runs the document indexing pipeline: extract text,
// chunk it, embed the chunks, and upsert them into the vector store, with
// job status tracked throughout. Pipeline failures are recorded on the job
// record; they never propagate to the upload request, which was already
// acknowledged.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lektor-ai/lektor-go/internal/chunking"
	"github.com/lektor-ai/lektor-go/internal/extract"
	"github.com/lektor-ai/lektor-go/internal/jobs"
	"github.com/lektor-ai/lektor-go/internal/rag"
)

const (
	// upsertBatchSize caps points per vector store call to prevent timeouts.
	upsertBatchSize = 100
	// defaultBatchDelay paces consecutive upsert batches.
	defaultBatchDelay = 300 * time.Millisecond
	// defaultRetryDelay precedes the single retry of a failed batch.
	defaultRetryDelay = time.Second
)

// BatchEmbedder embeds many texts, substituting zero vectors for failures.
type BatchEmbedder interface {
	EmbedAll(ctx context.Context, texts []string) ([][]float32, error)
}

// Config tunes the pipeline's chunking parameters.
type Config struct {
	// ChunkSizeTokens is the token window per chunk.
	ChunkSizeTokens int
	// OverlapTokens is the token overlap between consecutive chunks.
	OverlapTokens int
}

// Request describes one uploaded document.
type Request struct {
	// CourseID and ModuleID scope the document for retrieval filtering.
	CourseID string
	ModuleID string

	// SourceType selects the extractor and is stored with every chunk.
	SourceType chunking.SourceType

	// VideoID and NotesID are optional source-specific identifiers.
	VideoID string
	NotesID string

	// Filename is the original upload name, used in the source URI.
	Filename string

	// Content is the raw file bytes.
	Content []byte
}

// Pipeline indexes documents. It is safe for concurrent use; each Run call
// processes one document independently.
type Pipeline struct {
	registry *extract.Registry
	chunker  *chunking.Chunker
	embedder BatchEmbedder
	store    rag.VectorStore
	jobs     jobs.Store
	cfg      Config
	log      *slog.Logger

	// batchDelay and retryDelay are overridable for tests.
	batchDelay time.Duration
	retryDelay time.Duration
}

// New constructs a Pipeline over the given collaborators.
func New(registry *extract.Registry, chunker *chunking.Chunker, emb BatchEmbedder, store rag.VectorStore, jobStore jobs.Store, cfg Config, log *slog.Logger) *Pipeline {
	return &Pipeline{
		registry:   registry,
		chunker:    chunker,
		embedder:   emb,
		store:      store,
		jobs:       jobStore,
		cfg:        cfg,
		log:        log,
		batchDelay: defaultBatchDelay,
		retryDelay: defaultRetryDelay,
	}
}

// Run processes one document under the given job ID, recording progress and
// the outcome on the job record. A document that yields no text or no chunks
// completes successfully with a zero count; only pipeline errors mark the
// job failed.
func (p *Pipeline) Run(ctx context.Context, jobID string, req Request) {
	log := p.log.With(slog.String("job_id", jobID), slog.String("filename", req.Filename))
	p.setStatus(ctx, jobID, jobs.StatusProcessing, "Processing document", nil)

	log.Info("ingestion: processing document",
		slog.String("course_id", req.CourseID),
		slog.String("module_id", req.ModuleID),
		slog.String("source_type", string(req.SourceType)),
		slog.Int("bytes", len(req.Content)),
	)

	blocks, err := p.registry.Get(req.SourceType).Extract(req.Content, req.Filename)
	if err != nil {
		p.fail(ctx, jobID, log, fmt.Errorf("extract: %w", err))
		return
	}
	if len(blocks) == 0 {
		zero := 0
		p.setStatus(ctx, jobID, jobs.StatusCompleted, "No content could be extracted from the file", &zero)
		log.Info("ingestion: no extractable content, nothing indexed")
		return
	}

	base := chunking.SourceMetadata{
		CourseID:   req.CourseID,
		ModuleID:   req.ModuleID,
		SourceType: req.SourceType,
		SourceURI:  fmt.Sprintf("blob://%s/%s/%s", req.CourseID, req.ModuleID, req.Filename),
		VideoID:    req.VideoID,
		NotesID:    req.NotesID,
	}

	chunks, err := p.chunker.ChunkExtracted(blocks, p.cfg.ChunkSizeTokens, p.cfg.OverlapTokens, base)
	if err != nil {
		p.fail(ctx, jobID, log, fmt.Errorf("chunk: %w", err))
		return
	}
	if len(chunks) == 0 {
		zero := 0
		p.setStatus(ctx, jobID, jobs.StatusCompleted, "No chunks generated from content", &zero)
		log.Info("ingestion: content produced no chunks, nothing indexed")
		return
	}
	log.Info("ingestion: chunked document", slog.Int("blocks", len(blocks)), slog.Int("chunks", len(chunks)))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedAll(ctx, texts)
	if err != nil {
		p.fail(ctx, jobID, log, fmt.Errorf("embed: %w", err))
		return
	}

	records := make([]rag.Record, len(chunks))
	for i, c := range chunks {
		records[i] = toRecord(c, vectors[i])
	}

	count, err := p.upsertAll(ctx, records, log)
	if err != nil {
		p.fail(ctx, jobID, log, fmt.Errorf("upsert: %w", err))
		return
	}

	p.setStatus(ctx, jobID, jobs.StatusCompleted, fmt.Sprintf("Successfully ingested %s", req.Filename), &count)
	log.Info("ingestion: document indexed", slog.Int("chunks", count))
}

// upsertAll writes records in paced batches, retrying each failed batch once
// before giving up. Returns how many records were written.
func (p *Pipeline) upsertAll(ctx context.Context, records []rag.Record, log *slog.Logger) (int, error) {
	total := 0
	for start := 0; start < len(records); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		if start > 0 {
			if err := sleepCtx(ctx, p.batchDelay); err != nil {
				return total, err
			}
		}

		if err := p.store.Upsert(ctx, batch); err != nil {
			log.Warn("ingestion: upsert batch failed, retrying",
				slog.Int("batch_start", start), slog.String("error", err.Error()))
			if err := sleepCtx(ctx, p.retryDelay); err != nil {
				return total, err
			}
			if err := p.store.Upsert(ctx, batch); err != nil {
				return total, fmt.Errorf("batch at %d: %w", start, err)
			}
		}
		total += len(batch)
	}
	return total, nil
}

// toRecord flattens a chunk into its stored record form.
func toRecord(c chunking.Chunk, vector []float32) rag.Record {
	m := c.Metadata
	return rag.Record{
		ID:     m.ID,
		Vector: vector,
		Payload: rag.Payload{
			Text:             c.Text,
			CourseID:         m.CourseID,
			ModuleID:         m.ModuleID,
			SourceType:       string(m.SourceType),
			SourceURI:        m.SourceURI,
			VideoID:          m.VideoID,
			NotesID:          m.NotesID,
			ChunkIndex:       m.ChunkIndex,
			PageNumber:       m.PageNumber,
			StartTimeSeconds: m.StartTimeSeconds,
			EndTimeSeconds:   m.EndTimeSeconds,
			ContentHash:      m.ContentHash,
			CreatedAt:        m.CreatedAt.Format(time.RFC3339),
		},
	}
}

func (p *Pipeline) fail(ctx context.Context, jobID string, log *slog.Logger, err error) {
	log.Error("ingestion: job failed", slog.String("error", err.Error()))
	p.setStatus(ctx, jobID, jobs.StatusFailed, "Ingestion failed: "+err.Error(), nil)
}

func (p *Pipeline) setStatus(ctx context.Context, jobID string, status jobs.Status, message string, chunks *int) {
	if err := p.jobs.Update(ctx, jobID, status, message, chunks); err != nil {
		p.log.Error("ingestion: could not update job status",
			slog.String("job_id", jobID), slog.String("status", string(status)), slog.String("error", err.Error()))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
