package ingestion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/lektor-ai/lektor-go/internal/chunking"
	"github.com/lektor-ai/lektor-go/internal/extract"
	"github.com/lektor-ai/lektor-go/internal/jobs"
	"github.com/lektor-ai/lektor-go/internal/rag"
)

// runeCodec counts one token per rune, keeping chunk boundaries predictable.
type runeCodec struct{}

func (runeCodec) Encode(text string) []int {
	tokens := make([]int, 0, len(text))
	for _, r := range text {
		tokens = append(tokens, int(r))
	}
	return tokens
}

func (runeCodec) Decode(tokens []int) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteRune(rune(t))
	}
	return b.String()
}

func (c runeCodec) CountTokens(text string) int { return len(c.Encode(text)) }

type fakeBatchEmbedder struct {
	calls int
	fail  bool
}

func (f *fakeBatchEmbedder) EmbedAll(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("embedder down")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

// recordingStore captures upserted records and can fail the first n calls.
type recordingStore struct {
	records   []rag.Record
	calls     int
	failFirst int
}

func (s *recordingStore) Upsert(_ context.Context, recs []rag.Record) error {
	s.calls++
	if s.calls <= s.failFirst {
		return errors.New("qdrant unavailable")
	}
	s.records = append(s.records, recs...)
	return nil
}

func (s *recordingStore) Search(context.Context, []float32, rag.Filters, int, float32) ([]rag.Result, error) {
	return nil, nil
}
func (s *recordingStore) Scan(context.Context, rag.Filters, int) ([]rag.Result, error) {
	return nil, nil
}
func (s *recordingStore) Close() error { return nil }

func newTestPipeline(t *testing.T, emb BatchEmbedder, store rag.VectorStore) (*Pipeline, *jobs.SQLiteStore) {
	t.Helper()
	jobStore, err := jobs.Open(":memory:")
	if err != nil {
		t.Fatalf("open job store: %v", err)
	}
	t.Cleanup(func() { _ = jobStore.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := New(extract.NewRegistry(), chunking.New(runeCodec{}), emb, store, jobStore,
		Config{ChunkSizeTokens: 100, OverlapTokens: 10}, log)
	p.batchDelay = 0
	p.retryDelay = 0
	return p, jobStore
}

func createJob(t *testing.T, store jobs.Store, id string) {
	t.Helper()
	err := store.Create(context.Background(), jobs.Job{
		ID: id, CourseID: "cs101", ModuleID: "week-3", SourceType: "txt", Filename: "notes.txt",
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
}

func TestPipelineIndexesDocument(t *testing.T) {
	t.Parallel()

	store := &recordingStore{}
	p, jobStore := newTestPipeline(t, &fakeBatchEmbedder{}, store)
	createJob(t, jobStore, "job-1")

	text := strings.Repeat("Indexes speed up lookups. ", 30)
	p.Run(context.Background(), "job-1", Request{
		CourseID:   "cs101",
		ModuleID:   "week-3",
		SourceType: chunking.SourceTypeTxt,
		Filename:   "notes.txt",
		Content:    []byte(text),
	})

	job, err := jobStore.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != jobs.StatusCompleted {
		t.Fatalf("status = %s (%s), want completed", job.Status, job.Message)
	}
	if job.ChunksCount == nil || *job.ChunksCount != len(store.records) {
		t.Errorf("chunks count = %v, want %d", job.ChunksCount, len(store.records))
	}
	if len(store.records) == 0 {
		t.Fatal("no records upserted")
	}

	rec := store.records[0]
	if rec.Payload.SourceURI != "blob://cs101/week-3/notes.txt" {
		t.Errorf("SourceURI = %q, want blob URI", rec.Payload.SourceURI)
	}
	if rec.Payload.CourseID != "cs101" || rec.Payload.SourceType != "txt" {
		t.Errorf("payload scope = %+v", rec.Payload)
	}
	if rec.Payload.ContentHash == "" || rec.Payload.CreatedAt == "" {
		t.Errorf("payload missing hash or timestamp: %+v", rec.Payload)
	}
	if len(rec.Vector) != 3 {
		t.Errorf("vector not attached: %v", rec.Vector)
	}
	for i, r := range store.records {
		if r.Payload.ChunkIndex != i {
			t.Errorf("record %d has chunk index %d", i, r.Payload.ChunkIndex)
		}
	}
}

func TestPipelineEmptyFileCompletesWithZeroChunks(t *testing.T) {
	t.Parallel()

	store := &recordingStore{}
	emb := &fakeBatchEmbedder{}
	p, jobStore := newTestPipeline(t, emb, store)
	createJob(t, jobStore, "job-2")

	p.Run(context.Background(), "job-2", Request{
		CourseID:   "cs101",
		ModuleID:   "week-3",
		SourceType: chunking.SourceTypeTxt,
		Filename:   "empty.txt",
		Content:    []byte("   \n  "),
	})

	job, err := jobStore.Get(context.Background(), "job-2")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != jobs.StatusCompleted {
		t.Errorf("empty input is a defined success, got status %s", job.Status)
	}
	if job.ChunksCount == nil || *job.ChunksCount != 0 {
		t.Errorf("chunks count = %v, want 0", job.ChunksCount)
	}
	if emb.calls != 0 || store.calls != 0 {
		t.Errorf("no embedding or upsert should happen for empty input, got %d/%d calls", emb.calls, store.calls)
	}
}

func TestPipelineEmbedderFailureMarksJobFailed(t *testing.T) {
	t.Parallel()

	store := &recordingStore{}
	p, jobStore := newTestPipeline(t, &fakeBatchEmbedder{fail: true}, store)
	createJob(t, jobStore, "job-3")

	p.Run(context.Background(), "job-3", Request{
		CourseID:   "cs101",
		ModuleID:   "week-3",
		SourceType: chunking.SourceTypeTxt,
		Filename:   "notes.txt",
		Content:    []byte("some real content"),
	})

	job, err := jobStore.Get(context.Background(), "job-3")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != jobs.StatusFailed {
		t.Errorf("status = %s, want failed", job.Status)
	}
	if !strings.Contains(job.Message, "Ingestion failed") {
		t.Errorf("message = %q, want failure detail", job.Message)
	}
}

func TestPipelineUpsertRetriesOnce(t *testing.T) {
	t.Parallel()

	store := &recordingStore{failFirst: 1}
	p, jobStore := newTestPipeline(t, &fakeBatchEmbedder{}, store)
	createJob(t, jobStore, "job-4")

	p.Run(context.Background(), "job-4", Request{
		CourseID:   "cs101",
		ModuleID:   "week-3",
		SourceType: chunking.SourceTypeTxt,
		Filename:   "notes.txt",
		Content:    []byte("retryable content"),
	})

	job, err := jobStore.Get(context.Background(), "job-4")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != jobs.StatusCompleted {
		t.Errorf("transient upsert failure should be retried, got status %s (%s)", job.Status, job.Message)
	}
	if store.calls != 2 {
		t.Errorf("store called %d times, want 2 (initial + retry)", store.calls)
	}
}

func TestPipelinePersistentUpsertFailure(t *testing.T) {
	t.Parallel()

	store := &recordingStore{failFirst: 10}
	p, jobStore := newTestPipeline(t, &fakeBatchEmbedder{}, store)
	createJob(t, jobStore, "job-5")

	p.Run(context.Background(), "job-5", Request{
		CourseID:   "cs101",
		ModuleID:   "week-3",
		SourceType: chunking.SourceTypeTxt,
		Filename:   "notes.txt",
		Content:    []byte("content that cannot be stored"),
	})

	job, err := jobStore.Get(context.Background(), "job-5")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != jobs.StatusFailed {
		t.Errorf("status = %s, want failed after retry exhausted", job.Status)
	}
	if store.calls != 2 {
		t.Errorf("store called %d times, want 2 (one batch, one retry)", store.calls)
	}
}
