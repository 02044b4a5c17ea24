package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lektor-ai/lektor-go/internal/chunking"
	"github.com/lektor-ai/lektor-go/internal/config"
	"github.com/lektor-ai/lektor-go/internal/extract"
	"github.com/lektor-ai/lektor-go/internal/ingestion"
	"github.com/lektor-ai/lektor-go/internal/jobs"
	"github.com/lektor-ai/lektor-go/internal/logging"
	"github.com/lektor-ai/lektor-go/internal/tokenizer"
)

// NewIngestCmd constructs the `lektor ingest` command, which indexes a local
// file into the vector store without going through the HTTP server.
func NewIngestCmd() *cobra.Command {
	var courseID string
	var moduleID string
	var sourceType string
	var videoID string
	var notesID string

	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Index a course material file into the vector store",
		Long: `Extract, chunk, embed, and index a local file into Qdrant.

The file is processed synchronously with the same pipeline the HTTP server
runs in the background: text extraction, token-window chunking with overlap,
batched embedding, and paced upserts. The job is recorded in the local job
store so 'lektor serve' deployments sharing the store see it too.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_COLLECTION    Collection name (default: course_rag)
  EMBEDDING_PROVIDER   Embedding backend: ollama, openai, azure (default: ollama)
  CHUNK_SIZE_TOKENS    Tokens per chunk (default: 500)
  CHUNK_OVERLAP_TOKENS Token overlap between chunks (default: 50)

Examples:
  lektor ingest --course cs101 --module week1 syllabus.txt
  lektor ingest --course cs101 --module week3 --type video --video-id lec7 lecture7.mp4
  lektor ingest --course bio200 --module intro --type notes notes.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			settings := config.Resolve()
			log := buildLogger(settings)
			ctx = logging.WithLogger(ctx, log)

			if courseID == "" || moduleID == "" {
				return fmt.Errorf("ingest: --course and --module are required")
			}

			st, ok := chunking.ParseSourceType(sourceType)
			if !ok {
				return fmt.Errorf("ingest: invalid source type %q (valid: pdf, docx, txt, notes, video)", sourceType)
			}

			path := args[0]
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("ingest: failed to read %s: %w", path, err)
			}

			cacheStore, redisConn := buildCache(settings, log)
			if redisConn != nil {
				defer func() { _ = redisConn.Close() }()
			}

			store, err := buildVectorStore(ctx, settings)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = store.Close() }()

			_, batcher, err := buildEmbedders(settings, cacheStore, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			codec, err := tokenizer.New(tokenizer.DefaultEncoding)
			if err != nil {
				return fmt.Errorf("ingest: failed to load tokenizer: %w", err)
			}

			jobStore, err := openJobStore(settings)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = jobStore.Close() }()

			pipeline := ingestion.New(
				extract.NewRegistry(),
				chunking.New(codec),
				batcher,
				store,
				jobStore,
				settings.Chunking,
				log,
			)

			jobID := uuid.NewString()
			filename := filepath.Base(path)
			if err := jobStore.Create(ctx, jobs.Job{
				ID:         jobID,
				Status:     jobs.StatusQueued,
				Message:    "Ingestion job queued successfully",
				CourseID:   courseID,
				ModuleID:   moduleID,
				SourceType: string(st),
				Filename:   filename,
			}); err != nil {
				return fmt.Errorf("ingest: failed to record job: %w", err)
			}

			log.Info("starting ingestion",
				slog.String("job_id", jobID),
				slog.String("file", filename),
				slog.String("course_id", courseID),
				slog.String("module_id", moduleID),
			)

			pipeline.Run(ctx, jobID, ingestion.Request{
				CourseID:   courseID,
				ModuleID:   moduleID,
				SourceType: st,
				VideoID:    videoID,
				NotesID:    notesID,
				Filename:   filename,
				Content:    content,
			})

			job, err := jobStore.Get(ctx, jobID)
			if err != nil {
				return fmt.Errorf("ingest: failed to read job result: %w", err)
			}

			if job.Status == jobs.StatusFailed {
				return fmt.Errorf("ingest: %s", job.Message)
			}

			chunks := 0
			if job.ChunksCount != nil {
				chunks = *job.ChunksCount
			}
			fmt.Printf("%s (%d chunks indexed, job %s)\n", job.Message, chunks, jobID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&courseID, "course", "c", "", "Course identifier (required)")
	cmd.Flags().StringVarP(&moduleID, "module", "m", "", "Module identifier (required)")
	cmd.Flags().StringVarP(&sourceType, "type", "t", "txt", "Source type (pdf, docx, txt, notes, video)")
	cmd.Flags().StringVar(&videoID, "video-id", "", "Video identifier for video sources")
	cmd.Flags().StringVar(&notesID, "notes-id", "", "Notes identifier for notes sources")

	return cmd
}
