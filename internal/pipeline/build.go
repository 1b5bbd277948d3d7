package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kalambet/artisan/internal/catalog"
	"github.com/kalambet/artisan/internal/composer"
	"github.com/kalambet/artisan/internal/engine"
	"github.com/kalambet/artisan/internal/retrieval"
	"github.com/kalambet/artisan/internal/storage"
)

// Options configures Build.
type Options struct {
	Engine     engine.Engine
	ChatModel  string
	EmbedModel string
	AutoPull   bool

	Manifest catalog.Manifest
	DataDir  string

	Embedding        retrieval.EmbedderConfig
	IndexBackend     string
	TopK             int
	MaxContextTokens int

	Temperature       float64
	GenerationTimeout time.Duration
	RenderHTML        bool

	// Progress receives model readiness output; nil discards it.
	Progress io.Writer
}

// Build loads, embeds and indexes the catalog. It never fails: any fatal
// problem yields an unavailable Service carrying the cause.
func Build(ctx context.Context, opts Options) *Service {
	st := Status{
		ChatModel:    opts.ChatModel,
		EmbedModel:   opts.EmbedModel,
		IndexBackend: opts.IndexBackend,
		BuiltAt:      time.Now().UTC(),
	}
	if st.IndexBackend == "" {
		st.IndexBackend = retrieval.BackendMemory
	}
	if opts.Engine != nil {
		st.Backend = opts.Engine.Name()
	}

	svc, err := build(ctx, opts, &st)
	if err != nil {
		slog.Error("catalog assistant unavailable", "error", err)
		return Unavailable(err, st)
	}
	slog.Info("catalog assistant ready",
		"documents", st.Documents, "dropped", st.Dropped, "index", st.IndexBackend)
	return svc
}

func build(ctx context.Context, opts Options, st *Status) (*Service, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("no inference engine configured")
	}
	progress := opts.Progress
	if progress == nil {
		progress = io.Discard
	}

	if err := engine.EnsureReady(ctx, opts.Engine, opts.ChatModel, opts.EmbedModel, opts.AutoPull, progress); err != nil {
		return nil, err
	}

	records, reports, err := catalog.Load(opts.Manifest, opts.DataDir)
	st.Tables = tableStatuses(reports)
	if err != nil {
		return nil, err
	}

	docs := catalog.SynthesizeAll(records)
	slog.Info("catalog normalized", "records", len(records), "tables", len(reports))

	embedder := retrieval.NewEmbedder(opts.Engine, opts.EmbedModel, opts.Embedding)
	vecs := embedder.EmbedDocuments(ctx, catalog.Texts(docs))

	store, err := storage.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening catalog store: %w", err)
	}

	index, err := retrieval.BuildIndex(ctx, st.IndexBackend, store, docs, vecs)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("building index: %w", err)
	}
	st.Documents = index.Len()
	st.Dropped = len(docs) - index.Len()
	st.Ready = true
	if st.Dropped > 0 {
		slog.Warn("documents dropped without embedding", "dropped", st.Dropped)
	}

	retriever := retrieval.NewRetriever(embedder, index, opts.TopK)
	assistant := NewAssistant(retriever, composer.New(opts.MaxContextTokens), opts.Engine, AssistantConfig{
		ChatModel:   opts.ChatModel,
		Temperature: opts.Temperature,
		Timeout:     opts.GenerationTimeout,
		RenderHTML:  opts.RenderHTML,
	})

	return &Service{assistant: assistant, store: store, status: *st}, nil
}

func tableStatuses(reports []catalog.TableReport) []TableStatus {
	out := make([]TableStatus, len(reports))
	for i, r := range reports {
		out[i] = TableStatus{Name: r.Name, Path: r.Path, Records: r.Records}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	return out
}
