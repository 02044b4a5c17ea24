package query

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/lektor-ai/lektor-go/internal/cache"
	"github.com/lektor-ai/lektor-go/internal/rag"
)

func intPtr(n int) *int { return &n }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore returns canned results and records call counts.
type fakeStore struct {
	searchResults []rag.Result
	scanResults   []rag.Result
	searchCalls   int
	scanCalls     int
	lastFilters   rag.Filters
	lastLimit     int
	lastThreshold float32
}

func (f *fakeStore) Upsert(context.Context, []rag.Record) error { return nil }

func (f *fakeStore) Search(_ context.Context, _ []float32, filters rag.Filters, limit int, threshold float32) ([]rag.Result, error) {
	f.searchCalls++
	f.lastFilters = filters
	f.lastLimit = limit
	f.lastThreshold = threshold
	return f.searchResults, nil
}

func (f *fakeStore) Scan(_ context.Context, filters rag.Filters, limit int) ([]rag.Result, error) {
	f.scanCalls++
	f.lastFilters = filters
	f.lastLimit = limit
	return f.scanResults, nil
}

func (f *fakeStore) Close() error { return nil }

type fakeQueryEmbedder struct {
	calls int
}

func (f *fakeQueryEmbedder) EmbedOne(context.Context, string) ([]float32, error) {
	f.calls++
	return []float32{0.1, 0.2, 0.3}, nil
}

// fakeCompleter echoes a fixed answer and records the prompts it saw.
type fakeCompleter struct {
	answer     string
	tokens     int
	err        error
	calls      int
	lastSystem string
	lastUser   string
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (rag.Completion, error) {
	f.calls++
	f.lastSystem = system
	f.lastUser = user
	if f.err != nil {
		return rag.Completion{}, f.err
	}
	return rag.Completion{Text: f.answer, TokensUsed: f.tokens}, nil
}

func pdfResult(id, text string, page int, score float32) rag.Result {
	return rag.Result{
		ID:    id,
		Score: score,
		Payload: rag.Payload{
			Text:       text,
			CourseID:   "cs101",
			ModuleID:   "week-3",
			SourceType: "pdf",
			SourceURI:  "blob://cs101/week-3/lecture.pdf",
			PageNumber: intPtr(page),
		},
	}
}

func newTestEngine(store *fakeStore, emb *fakeQueryEmbedder, comp *fakeCompleter, responses cache.Cache) *Engine {
	return NewEngine(store, emb, comp, Options{ResponseCache: responses}, discardLogger())
}

func TestAnswerSemanticFlow(t *testing.T) {
	t.Parallel()

	store := &fakeStore{searchResults: []rag.Result{
		pdfResult("c1", "B-trees keep data sorted.", 4, 0.91),
		pdfResult("c2", "Leaf nodes hold the records.", 5, 0.85),
	}}
	emb := &fakeQueryEmbedder{}
	comp := &fakeCompleter{answer: "B-trees keep data sorted [Source 1].", tokens: 120}
	engine := newTestEngine(store, emb, comp, cache.NewMemory())

	resp, err := engine.Answer(context.Background(), Request{
		Query:          "what is a b-tree",
		CourseID:       "cs101",
		TopK:           2,
		IncludeSources: true,
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if resp.Answer != comp.answer {
		t.Errorf("Answer = %q, want %q", resp.Answer, comp.answer)
	}
	if emb.calls != 1 || store.searchCalls != 1 || store.scanCalls != 0 {
		t.Errorf("calls = embed %d, search %d, scan %d; want 1, 1, 0", emb.calls, store.searchCalls, store.scanCalls)
	}
	if store.lastFilters.CourseID != "cs101" || store.lastLimit != 2 {
		t.Errorf("search scoped to (%q, limit %d), want (cs101, 2)", store.lastFilters.CourseID, store.lastLimit)
	}
	if comp.lastSystem != SystemPrompt {
		t.Error("system prompt not passed through")
	}
	if !strings.Contains(comp.lastUser, "[Source 1] (pdf - Course: cs101, Module: week-3)") {
		t.Errorf("user prompt missing source label:\n%s", comp.lastUser)
	}
	if !strings.Contains(comp.lastUser, "what is a b-tree") {
		t.Error("user prompt missing question")
	}

	if len(resp.Sources) != 2 {
		t.Fatalf("len(Sources) = %d, want 2", len(resp.Sources))
	}
	if resp.Sources[0].SourceURI != "blob://cs101/week-3/lecture.pdf#page=4" {
		t.Errorf("SourceURI = %q, want page fragment", resp.Sources[0].SourceURI)
	}
	if resp.Debug.ChunksRetrieved != 2 || resp.Debug.CacheHit {
		t.Errorf("Debug = %+v, want 2 chunks and no cache hit", resp.Debug)
	}
	if resp.Debug.TokensUsed == nil || *resp.Debug.TokensUsed != 120 {
		t.Errorf("TokensUsed = %v, want 120", resp.Debug.TokensUsed)
	}
}

func TestAnswerCacheHitSkipsRetrievalAndGeneration(t *testing.T) {
	t.Parallel()

	store := &fakeStore{searchResults: []rag.Result{pdfResult("c1", "text", 1, 0.9)}}
	emb := &fakeQueryEmbedder{}
	comp := &fakeCompleter{answer: "cached answer"}
	engine := newTestEngine(store, emb, comp, cache.NewMemory())

	req := Request{Query: "what is a b-tree", CourseID: "cs101", TopK: 5, IncludeSources: true}

	if _, err := engine.Answer(context.Background(), req); err != nil {
		t.Fatalf("first Answer: %v", err)
	}
	resp, err := engine.Answer(context.Background(), req)
	if err != nil {
		t.Fatalf("second Answer: %v", err)
	}

	if !resp.Debug.CacheHit {
		t.Fatal("second identical request should hit the response cache")
	}
	if resp.Answer != "cached answer" {
		t.Errorf("Answer = %q, want cached answer", resp.Answer)
	}
	if emb.calls != 1 || store.searchCalls != 1 || comp.calls != 1 {
		t.Errorf("collaborators re-invoked on cache hit: embed %d, search %d, complete %d", emb.calls, store.searchCalls, comp.calls)
	}
	if resp.Debug.SearchLatencyMS != 0 || resp.Debug.LLMLatencyMS != 0 {
		t.Errorf("cache hit latencies = (%v, %v), want (0, 0)", resp.Debug.SearchLatencyMS, resp.Debug.LLMLatencyMS)
	}
	if resp.Debug.ChunksRetrieved != 1 {
		t.Errorf("ChunksRetrieved = %d, want 1 (from cached sources)", resp.Debug.ChunksRetrieved)
	}
}

func TestAnswerNoResultsSkipsGeneration(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	comp := &fakeCompleter{answer: "should not be called"}
	engine := newTestEngine(store, &fakeQueryEmbedder{}, comp, cache.NewMemory())

	resp, err := engine.Answer(context.Background(), Request{Query: "anything", TopK: 5, IncludeSources: true})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if resp.Answer != NoContextResponse {
		t.Errorf("Answer = %q, want the no-context response", resp.Answer)
	}
	if comp.calls != 0 {
		t.Errorf("completer called %d times on empty retrieval, want 0", comp.calls)
	}
	if len(resp.Sources) != 0 || resp.Debug.ChunksRetrieved != 0 {
		t.Errorf("expected empty sources, got %+v", resp)
	}
	if resp.Debug.LLMLatencyMS != 0 {
		t.Errorf("LLMLatencyMS = %v, want 0", resp.Debug.LLMLatencyMS)
	}
}

func TestAnswerFullContextMode(t *testing.T) {
	t.Parallel()

	video := func(id string, start, idx int) rag.Result {
		return rag.Result{
			ID: id,
			Payload: rag.Payload{
				Text:             "transcript " + id,
				CourseID:         "cs101",
				SourceType:       "video",
				SourceURI:        "blob://cs101/week-3/lecture.mp4",
				VideoID:          "vid-1",
				ChunkIndex:       idx,
				StartTimeSeconds: intPtr(start),
			},
		}
	}
	// Store order deliberately scrambled.
	store := &fakeStore{scanResults: []rag.Result{video("b", 120, 1), video("c", 120, 2), video("a", 30, 0)}}
	emb := &fakeQueryEmbedder{}
	comp := &fakeCompleter{answer: "summary"}
	engine := newTestEngine(store, emb, comp, cache.NewMemory())

	resp, err := engine.Answer(context.Background(), Request{
		Query:          "summarize the lecture",
		CourseID:       "cs101",
		FullContext:    true,
		TopK:           5,
		IncludeSources: true,
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if emb.calls != 0 {
		t.Errorf("full-context mode embedded the query %d times, want 0", emb.calls)
	}
	if store.scanCalls != 1 || store.searchCalls != 0 {
		t.Errorf("calls = scan %d, search %d; want 1, 0", store.scanCalls, store.searchCalls)
	}

	gotOrder := []string{resp.Sources[0].ChunkID, resp.Sources[1].ChunkID, resp.Sources[2].ChunkID}
	wantOrder := []string{"a", "b", "c"}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("reading order = %v, want %v", gotOrder, wantOrder)
		}
	}
	for _, s := range resp.Sources {
		if s.Score != 1.0 {
			t.Errorf("full-context score = %v, want 1.0", s.Score)
		}
	}
	if resp.Sources[1].SourceURI != "blob://cs101/week-3/lecture.mp4#t=120" {
		t.Errorf("SourceURI = %q, want timestamp fragment", resp.Sources[1].SourceURI)
	}
}

func TestAnswerFullContextIsolatedFromSemanticCache(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		searchResults: []rag.Result{pdfResult("c1", "semantic", 1, 0.9)},
		scanResults:   []rag.Result{pdfResult("c1", "full", 1, 0)},
	}
	comp := &fakeCompleter{answer: "answer"}
	engine := newTestEngine(store, &fakeQueryEmbedder{}, comp, cache.NewMemory())

	semantic := Request{Query: "same question", CourseID: "cs101", TopK: 5, IncludeSources: true}
	full := Request{Query: "same question", CourseID: "cs101", TopK: 5, FullContext: true, IncludeSources: true}

	if _, err := engine.Answer(context.Background(), semantic); err != nil {
		t.Fatal(err)
	}
	resp, err := engine.Answer(context.Background(), full)
	if err != nil {
		t.Fatal(err)
	}

	if resp.Debug.CacheHit {
		t.Error("full-context request must not reuse the semantic cache entry")
	}
	if store.scanCalls != 1 {
		t.Errorf("scanCalls = %d, want 1", store.scanCalls)
	}
}

func TestAnswerGenerationFailureDegrades(t *testing.T) {
	t.Parallel()

	store := &fakeStore{searchResults: []rag.Result{pdfResult("c1", "some context", 1, 0.9)}}
	comp := &fakeCompleter{err: errors.New("model timeout")}
	engine := newTestEngine(store, &fakeQueryEmbedder{}, comp, cache.NewMemory())

	resp, err := engine.Answer(context.Background(), Request{Query: "q", TopK: 5, IncludeSources: true})
	if err != nil {
		t.Fatalf("generation failure must not fail the request: %v", err)
	}

	want := "Error generating answer: model timeout"
	if resp.Answer != want {
		t.Errorf("Answer = %q, want %q", resp.Answer, want)
	}
	if len(resp.Sources) != 1 {
		t.Errorf("sources should still be attached, got %d", len(resp.Sources))
	}
	if resp.Debug.TokensUsed != nil {
		t.Errorf("TokensUsed = %v, want nil", resp.Debug.TokensUsed)
	}
}

func TestAnswerExcludesSourcesWhenDisabled(t *testing.T) {
	t.Parallel()

	store := &fakeStore{searchResults: []rag.Result{pdfResult("c1", "ctx", 1, 0.9)}}
	comp := &fakeCompleter{answer: "a"}
	engine := newTestEngine(store, &fakeQueryEmbedder{}, comp, cache.NewMemory())

	resp, err := engine.Answer(context.Background(), Request{Query: "q", TopK: 5, IncludeSources: false})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("len(Sources) = %d, want 0", len(resp.Sources))
	}
	if resp.Debug.ChunksRetrieved != 1 {
		t.Errorf("ChunksRetrieved = %d, want 1", resp.Debug.ChunksRetrieved)
	}
}

func TestRequestValidate(t *testing.T) {
	t.Parallel()

	r := Request{Query: "q"}
	if err := r.Validate(); err != nil {
		t.Fatalf("default top_k should validate: %v", err)
	}
	if r.TopK != DefaultTopK {
		t.Errorf("TopK = %d, want %d", r.TopK, DefaultTopK)
	}

	for _, bad := range []Request{
		{Query: ""},
		{Query: "q", TopK: -1},
		{Query: "q", TopK: 101},
	} {
		bad := bad
		if err := bad.Validate(); err == nil {
			t.Errorf("Validate(%+v) should fail", bad)
		}
	}
}

func TestPreviewTruncates(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 500)
	if got := preview(long); len(got) != 200 {
		t.Errorf("len(preview) = %d, want 200", len(got))
	}
	if got := preview("short"); got != "short" {
		t.Errorf("preview(short) = %q", got)
	}
}

func TestBuildPromptDefaults(t *testing.T) {
	t.Parallel()

	p := BuildPrompt([]contextChunk{{Text: "body"}}, "q")
	if !strings.Contains(p, "[Source 1] (document - Course: N/A, Module: N/A)") {
		t.Errorf("missing defaulted label:\n%s", p)
	}
}
