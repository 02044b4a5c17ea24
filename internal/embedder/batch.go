package embedder

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/lektor-ai/lektor-go/internal/rag"
)

const (
	// defaultBatchSize is how many texts are sent per backend call.
	defaultBatchSize = 16
	// defaultBatchInterval paces consecutive backend calls.
	defaultBatchInterval = 100 * time.Millisecond
)

// Batcher embeds large text sets in rate-limited batches. It never fails as
// a whole: a batch whose backend call errors yields zero vectors for its
// texts so the output stays parallel to the input, and the error is logged.
// Ingestion can then persist what succeeded rather than aborting a whole
// document over one transient failure.
type Batcher struct {
	inner      rag.Embedder
	limiter    *rate.Limiter
	batchSize  int
	dimensions int
	log        *slog.Logger
}

// NewBatcher constructs a Batcher over inner. dimensions is the vector
// length used for zero-vector placeholders.
func NewBatcher(inner rag.Embedder, dimensions int, log *slog.Logger) *Batcher {
	return &Batcher{
		inner:      inner,
		limiter:    rate.NewLimiter(rate.Every(defaultBatchInterval), 1),
		batchSize:  defaultBatchSize,
		dimensions: dimensions,
		log:        log,
	}
}

// EmbedAll embeds texts in batches and returns a slice parallel to the
// input. Each text is normalized first; empty texts receive zero vectors
// without a backend call. The only error returned is context cancellation.
func (b *Batcher) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	// Collect the indexes that actually need a backend call.
	var pending []int
	for i, t := range texts {
		if Normalize(t) == "" {
			out[i] = ZeroVector(b.dimensions)
		} else {
			pending = append(pending, i)
		}
	}

	for start := 0; start < len(pending); start += b.batchSize {
		end := start + b.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		idxs := pending[start:end]

		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		batch := make([]string, len(idxs))
		for j, i := range idxs {
			batch[j] = Normalize(texts[i])
		}

		vecs, err := b.inner.Embed(ctx, batch)
		if err != nil {
			b.log.Warn("embedder: batch failed, substituting zero vectors",
				slog.Int("batch_start", start),
				slog.Int("batch_len", len(batch)),
				slog.String("error", err.Error()),
			)
			for _, i := range idxs {
				out[i] = ZeroVector(b.dimensions)
			}
			continue
		}

		for j, i := range idxs {
			out[i] = vecs[j]
		}
	}

	return out, nil
}
