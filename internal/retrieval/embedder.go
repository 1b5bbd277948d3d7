package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/artisan/internal/engine"
)

// DefaultBatchSize is the number of texts sent per embedding call.
const DefaultBatchSize = 5

// EmbedderConfig controls batching and failure handling for document embedding.
type EmbedderConfig struct {
	BatchSize    int
	BatchDelay   time.Duration // pause between consecutive batches
	Timeout      time.Duration // per call; 0 means no limit
	MaxRetries   int
	RetryBackoff time.Duration // first retry delay, doubled per attempt
}

// DefaultEmbedderConfig returns the settings used when nothing is configured.
func DefaultEmbedderConfig() EmbedderConfig {
	return EmbedderConfig{
		BatchSize:    DefaultBatchSize,
		BatchDelay:   time.Second,
		Timeout:      60 * time.Second,
		RetryBackoff: 500 * time.Millisecond,
	}
}

// Embedder wraps an Engine to generate text embeddings.
type Embedder struct {
	engine engine.Engine
	model  string
	cfg    EmbedderConfig

	// pause waits between batches and retries; replaced in tests.
	pause func(ctx context.Context, d time.Duration) error
}

// NewEmbedder creates an Embedder using the given Engine and model name.
func NewEmbedder(e engine.Engine, model string, cfg EmbedderConfig) *Embedder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Embedder{engine: e, model: model, cfg: cfg, pause: sleepCtx}
}

// Model returns the embedding model name.
func (e *Embedder) Model() string { return e.model }

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	vec, err := e.engine.Embed(ctx, e.model, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	return vec, nil
}

// EmbedDocuments embeds texts in batches and never fails as a whole: the
// result always has len(texts) entries, and every slot of a failed batch is
// nil. Callers drop zero-length vectors before indexing.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	failed := 0

	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(texts))

		if start > 0 {
			if err := e.pause(ctx, e.cfg.BatchDelay); err != nil {
				slog.Warn("embedding interrupted", "done", start, "total", len(texts), "error", err)
				failed += len(texts) - start
				break
			}
		}

		vecs, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			slog.Warn("embedding batch failed", "start", start, "size", end-start, "error", err)
			failed += end - start
			continue
		}
		copy(out[start:end], vecs)
		slog.Debug("embedded batch", "start", start, "size", end-start)
	}

	slog.Info("document embedding finished", "total", len(texts), "failed", failed)
	return out
}

func (e *Embedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := e.pause(ctx, retryDelay(e.cfg.RetryBackoff, attempt)); err != nil {
				return nil, err
			}
		}
		vecs, err := e.callBatch(ctx, batch)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (e *Embedder) callBatch(ctx context.Context, batch []string) ([][]float32, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	vecs, err := e.engine.EmbedBatch(ctx, e.model, batch)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(batch) {
		return nil, fmt.Errorf("got %d embeddings for %d inputs", len(vecs), len(batch))
	}
	return vecs, nil
}

// retryDelay returns base doubled for each attempt after the first.
func retryDelay(base time.Duration, attempt int) time.Duration {
	if attempt <= 1 {
		return base
	}
	return base << (attempt - 1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
