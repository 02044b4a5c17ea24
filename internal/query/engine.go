package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/lektor-ai/lektor-go/internal/cache"
	"github.com/lektor-ai/lektor-go/internal/rag"
)

// fullContextScanLimit bounds how many chunks a full-context scan may pull.
const fullContextScanLimit = 1000

// QueryEmbedder embeds a single question, typically with normalization and
// caching behind it.
type QueryEmbedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Engine orchestrates the answer flow. It degrades rather than fails: an
// empty retrieval result and a broken LLM both still produce an
// answer-shaped response. Engine is safe for concurrent use.
type Engine struct {
	store     rag.VectorStore
	embedder  QueryEmbedder
	completer rag.Completer
	responses cache.Cache

	// scoreThreshold filters semantic results; 0 disables filtering.
	scoreThreshold float32

	log *slog.Logger
}

// Options tunes an Engine beyond its required collaborators.
type Options struct {
	// ScoreThreshold discards semantic search results scoring below it.
	// Zero keeps everything.
	ScoreThreshold float32

	// ResponseCache stores completed answers. Nil disables response caching.
	ResponseCache cache.Cache
}

// NewEngine constructs an Engine over the given collaborators.
func NewEngine(store rag.VectorStore, emb QueryEmbedder, completer rag.Completer, opts Options, log *slog.Logger) *Engine {
	responses := opts.ResponseCache
	if responses == nil {
		responses = cache.Noop{}
	}
	return &Engine{
		store:          store,
		embedder:       emb,
		completer:      completer,
		responses:      responses,
		scoreThreshold: opts.ScoreThreshold,
		log:            log,
	}
}

// cachedResponse is the JSON shape persisted in the response cache. Only the
// answer and sources are cached; debug timings are always fresh.
type cachedResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Answer executes the full query flow for a validated request.
func (e *Engine) Answer(ctx context.Context, req Request) (Response, error) {
	if err := req.Validate(); err != nil {
		return Response{}, err
	}

	start := time.Now()

	// Full-context and semantic answers must never share cache entries, so
	// the key uses a sentinel in place of top_k for full-context requests.
	effectiveTopK := req.TopK
	if req.FullContext {
		effectiveTopK = cache.FullContextTopK
	}
	key := cache.QueryKey(req.Query, req.CourseID, req.ModuleID, effectiveTopK)

	if raw, ok := e.responses.Get(ctx, key); ok {
		var hit cachedResponse
		if err := json.Unmarshal(raw, &hit); err == nil {
			return Response{
				Answer:  hit.Answer,
				Sources: hit.Sources,
				Debug: Debug{
					TotalLatencyMS:  msSince(start),
					ChunksRetrieved: len(hit.Sources),
					CacheHit:        true,
				},
			}, nil
		}
		e.log.Warn("query: discarding undecodable cached response", slog.String("key", key))
	}

	results, searchLatencyMS, err := e.retrieve(ctx, req)
	if err != nil {
		return Response{}, err
	}

	if len(results) == 0 {
		return Response{
			Answer:  NoContextResponse,
			Sources: []Source{},
			Debug: Debug{
				SearchLatencyMS: searchLatencyMS,
				TotalLatencyMS:  msSince(start),
			},
		}, nil
	}

	chunks := make([]contextChunk, len(results))
	for i, r := range results {
		chunks[i] = contextChunk{
			Text:       r.Payload.Text,
			SourceType: r.Payload.SourceType,
			CourseID:   r.Payload.CourseID,
			ModuleID:   r.Payload.ModuleID,
		}
	}
	userPrompt := BuildPrompt(chunks, req.Query)

	llmStart := time.Now()
	var answer string
	var tokensUsed *int
	completion, err := e.completer.Complete(ctx, SystemPrompt, userPrompt)
	if err != nil {
		// Generation failure degrades into answer text so the student still
		// gets a response with its sources attached.
		e.log.Error("query: generation failed", slog.String("error", err.Error()))
		answer = "Error generating answer: " + err.Error()
	} else {
		answer = completion.Text
		if completion.TokensUsed > 0 {
			tokensUsed = &completion.TokensUsed
		}
	}
	llmLatencyMS := msSince(llmStart)

	sources := []Source{}
	if req.IncludeSources {
		sources = buildSources(results)
	}

	if raw, err := json.Marshal(cachedResponse{Answer: answer, Sources: sources}); err == nil {
		e.responses.Set(ctx, key, raw, cache.QueryTTL)
	}

	return Response{
		Answer:  answer,
		Sources: sources,
		Debug: Debug{
			SearchLatencyMS: searchLatencyMS,
			LLMLatencyMS:    llmLatencyMS,
			TotalLatencyMS:  msSince(start),
			ChunksRetrieved: len(results),
			TokensUsed:      tokensUsed,
			CacheHit:        false,
		},
	}, nil
}

// retrieve fetches context chunks for the request, in reading order for
// full-context mode or by similarity otherwise. The returned latency covers
// only the store call, not query embedding.
func (e *Engine) retrieve(ctx context.Context, req Request) ([]rag.Result, float64, error) {
	filters := rag.Filters{CourseID: req.CourseID, ModuleID: req.ModuleID}

	if req.FullContext && req.CourseID != "" {
		searchStart := time.Now()
		results, err := e.store.Scan(ctx, filters, fullContextScanLimit)
		if err != nil {
			return nil, 0, fmt.Errorf("query: full-context scan: %w", err)
		}
		sortReadingOrder(results)
		for i := range results {
			results[i].Score = 1.0
		}
		return results, msSince(searchStart), nil
	}

	vector, err := e.embedder.EmbedOne(ctx, req.Query)
	if err != nil {
		return nil, 0, fmt.Errorf("query: embed question: %w", err)
	}

	searchStart := time.Now()
	results, err := e.store.Search(ctx, vector, filters, req.TopK, e.scoreThreshold)
	if err != nil {
		return nil, 0, fmt.Errorf("query: semantic search: %w", err)
	}
	return results, msSince(searchStart), nil
}

// sortReadingOrder orders chunks the way a student would read them: by
// timestamp for video material, then by chunk index. Missing locators sort
// as zero. The sort is stable so store order breaks remaining ties.
func sortReadingOrder(results []rag.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		si, sj := startSeconds(results[i]), startSeconds(results[j])
		if si != sj {
			return si < sj
		}
		return results[i].Payload.ChunkIndex < results[j].Payload.ChunkIndex
	})
}

func startSeconds(r rag.Result) int {
	if r.Payload.StartTimeSeconds == nil {
		return 0
	}
	return *r.Payload.StartTimeSeconds
}

// buildSources converts retrieval results into attributions, appending a
// page or timestamp fragment to the source URI when the chunk has one.
func buildSources(results []rag.Result) []Source {
	sources := make([]Source, 0, len(results))
	for _, r := range results {
		p := r.Payload
		uri := p.SourceURI
		switch {
		case p.PageNumber != nil && *p.PageNumber > 0:
			uri += fmt.Sprintf("#page=%d", *p.PageNumber)
		case p.StartTimeSeconds != nil && *p.StartTimeSeconds > 0:
			uri += fmt.Sprintf("#t=%d", *p.StartTimeSeconds)
		}

		sources = append(sources, Source{
			ChunkID:          r.ID,
			Score:            r.Score,
			SourceURI:        uri,
			SourceType:       sourceTypeOrDefault(p.SourceType),
			TextPreview:      preview(p.Text),
			StartTimeSeconds: p.StartTimeSeconds,
			EndTimeSeconds:   p.EndTimeSeconds,
		})
	}
	return sources
}

func sourceTypeOrDefault(t string) string {
	if t == "" {
		return "document"
	}
	return t
}

// preview truncates chunk text to a 200-byte attribution snippet.
func preview(text string) string {
	const max = 200
	if len(text) <= max {
		return text
	}
	return text[:max]
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t)) / float64(time.Millisecond)
}
