package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/artisan/internal/catalog"
	"github.com/kalambet/artisan/internal/engine"
)

// mockEngine implements engine.Engine for testing.
type mockEngine struct {
	embedFn      func(ctx context.Context, model string, text string) ([]float32, error)
	embedBatchFn func(ctx context.Context, model string, texts []string) ([][]float32, error)

	mu         sync.Mutex
	batchCalls int
}

func (m *mockEngine) Name() string { return "mock" }
func (m *mockEngine) Chat(_ context.Context, _ string, _ []engine.Message, _ engine.ChatOptions) (string, error) {
	return "", errors.New("not implemented")
}
func (m *mockEngine) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	return m.embedFn(ctx, model, text)
}
func (m *mockEngine) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batchCalls++
	m.mu.Unlock()
	return m.embedBatchFn(ctx, model, texts)
}
func (m *mockEngine) IsRunning(_ context.Context) bool               { return true }
func (m *mockEngine) ListModels(_ context.Context) ([]string, error) { return nil, nil }
func (m *mockEngine) HasModel(_ context.Context, _ string) bool      { return true }
func (m *mockEngine) PullModel(_ context.Context, _ string, _ func(engine.PullProgress)) error {
	return errors.New("not implemented")
}

func makeVector(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(i+1) * 0.001
	}
	return v
}

func vectorsFor(texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = makeVector(8)
	}
	return out
}

// newTestEmbedder returns an Embedder whose pauses are recorded instead of slept.
func newTestEmbedder(e engine.Engine, cfg EmbedderConfig) (*Embedder, *[]time.Duration) {
	emb := NewEmbedder(e, "mxbai-embed-large", cfg)
	var pauses []time.Duration
	emb.pause = func(ctx context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return ctx.Err()
	}
	return emb, &pauses
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strings.Repeat("x", i+1)
	}
	return out
}

func TestEmbed_ReturnsDimension(t *testing.T) {
	mock := &mockEngine{
		embedFn: func(_ context.Context, _ string, _ string) ([]float32, error) {
			return makeVector(384), nil
		},
	}
	e := NewEmbedder(mock, "mxbai-embed-large", DefaultEmbedderConfig())

	vec, err := e.Embed(context.Background(), "tajine")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 384 {
		t.Errorf("got %d dimensions, want 384", len(vec))
	}
}

func TestEmbed_Error(t *testing.T) {
	mock := &mockEngine{
		embedFn: func(_ context.Context, _ string, _ string) ([]float32, error) {
			return nil, errors.New("connection refused")
		},
	}
	e := NewEmbedder(mock, "mxbai-embed-large", DefaultEmbedderConfig())

	if _, err := e.Embed(context.Background(), "tajine"); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestEmbedDocuments_BatchesAndPauses(t *testing.T) {
	var sizes []int
	mock := &mockEngine{
		embedBatchFn: func(_ context.Context, _ string, in []string) ([][]float32, error) {
			sizes = append(sizes, len(in))
			return vectorsFor(in), nil
		},
	}
	e, pauses := newTestEmbedder(mock, EmbedderConfig{BatchSize: 5, BatchDelay: time.Second})

	vecs := e.EmbedDocuments(context.Background(), texts(12))
	if len(vecs) != 12 {
		t.Fatalf("got %d vectors, want 12", len(vecs))
	}
	for i, v := range vecs {
		if len(v) != 8 {
			t.Errorf("vecs[%d] has %d dims, want 8", i, len(v))
		}
	}
	if want := []int{5, 5, 2}; !equalInts(sizes, want) {
		t.Errorf("batch sizes = %v, want %v", sizes, want)
	}
	// A pause between consecutive batches only: three batches, two pauses.
	if len(*pauses) != 2 {
		t.Errorf("got %d pauses, want 2", len(*pauses))
	}
}

func TestEmbedDocuments_FailedBatchKeepsLength(t *testing.T) {
	mock := &mockEngine{
		embedBatchFn: func(_ context.Context, _ string, in []string) ([][]float32, error) {
			if in[0] == strings.Repeat("x", 6) {
				return nil, errors.New("timeout")
			}
			return vectorsFor(in), nil
		},
	}
	e, pauses := newTestEmbedder(mock, EmbedderConfig{BatchSize: 5, BatchDelay: time.Second})

	vecs := e.EmbedDocuments(context.Background(), texts(12))
	if len(vecs) != 12 {
		t.Fatalf("got %d vectors, want 12", len(vecs))
	}
	for i, v := range vecs {
		failed := i >= 5 && i < 10
		if failed && len(v) != 0 {
			t.Errorf("vecs[%d] should be empty after a failed batch", i)
		}
		if !failed && len(v) == 0 {
			t.Errorf("vecs[%d] is empty, want a vector", i)
		}
	}
	// The delay applies regardless of outcome.
	if len(*pauses) != 2 {
		t.Errorf("got %d pauses, want 2", len(*pauses))
	}
}

func TestEmbedDocuments_CountMismatchIsFailure(t *testing.T) {
	mock := &mockEngine{
		embedBatchFn: func(_ context.Context, _ string, in []string) ([][]float32, error) {
			return vectorsFor(in[:1]), nil
		},
	}
	e, _ := newTestEmbedder(mock, EmbedderConfig{BatchSize: 3})

	vecs := e.EmbedDocuments(context.Background(), texts(3))
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vecs))
	}
	for i, v := range vecs {
		if len(v) != 0 {
			t.Errorf("vecs[%d] = %v, want empty", i, v)
		}
	}
}

func TestEmbedDocuments_AllFail(t *testing.T) {
	mock := &mockEngine{
		embedBatchFn: func(_ context.Context, _ string, _ []string) ([][]float32, error) {
			return nil, errors.New("unreachable")
		},
	}
	e, _ := newTestEmbedder(mock, EmbedderConfig{BatchSize: 2})

	vecs := e.EmbedDocuments(context.Background(), texts(5))
	if len(vecs) != 5 {
		t.Fatalf("got %d vectors, want 5", len(vecs))
	}
	if _, _, err := FilterValid(make([]catalog.Document, 5), vecs); !errors.Is(err, ErrNoValidEmbeddings) {
		t.Errorf("FilterValid error = %v, want ErrNoValidEmbeddings", err)
	}
}

func TestEmbedDocuments_RetriesWithBackoff(t *testing.T) {
	calls := 0
	mock := &mockEngine{
		embedBatchFn: func(_ context.Context, _ string, in []string) ([][]float32, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("busy")
			}
			return vectorsFor(in), nil
		},
	}
	e, pauses := newTestEmbedder(mock, EmbedderConfig{BatchSize: 5, MaxRetries: 2, RetryBackoff: 100 * time.Millisecond})

	vecs := e.EmbedDocuments(context.Background(), texts(2))
	if len(vecs[0]) == 0 || len(vecs[1]) == 0 {
		t.Fatalf("expected vectors after retry, got %v", vecs)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(*pauses) != 2 || (*pauses)[0] != want[0] || (*pauses)[1] != want[1] {
		t.Errorf("pauses = %v, want %v", *pauses, want)
	}
}

func TestEmbedDocuments_CancelledKeepsLength(t *testing.T) {
	mock := &mockEngine{
		embedBatchFn: func(_ context.Context, _ string, in []string) ([][]float32, error) {
			return vectorsFor(in), nil
		},
	}
	e, _ := newTestEmbedder(mock, EmbedderConfig{BatchSize: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	vecs := e.EmbedDocuments(ctx, texts(5))
	if len(vecs) != 5 {
		t.Fatalf("got %d vectors, want 5", len(vecs))
	}
	if mock.batchCalls != 1 {
		t.Errorf("batch calls = %d, want 1 (stop at the first pause)", mock.batchCalls)
	}
}

func TestEmbedDocuments_EmptyInput(t *testing.T) {
	mock := &mockEngine{
		embedBatchFn: func(_ context.Context, _ string, _ []string) ([][]float32, error) {
			t.Fatal("should not be called for empty input")
			return nil, nil
		},
	}
	e, _ := newTestEmbedder(mock, DefaultEmbedderConfig())

	if vecs := e.EmbedDocuments(context.Background(), nil); len(vecs) != 0 {
		t.Errorf("got %v, want empty", vecs)
	}
}

func TestRetryDelay(t *testing.T) {
	base := 500 * time.Millisecond
	for attempt, want := range map[int]time.Duration{1: base, 2: time.Second, 3: 2 * time.Second} {
		if got := retryDelay(base, attempt); got != want {
			t.Errorf("retryDelay(%v, %d) = %v, want %v", base, attempt, got, want)
		}
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
