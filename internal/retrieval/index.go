package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/kalambet/artisan/internal/catalog"
	"github.com/kalambet/artisan/internal/storage"
)

var (
	ErrNoValidEmbeddings = errors.New("no valid embeddings")
	ErrLengthMismatch    = errors.New("documents and vectors differ in length")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrQueryEmbedding    = errors.New("query embedding failed")
)

// Index backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// ScoredDocument is a catalog document with its similarity to a query.
type ScoredDocument struct {
	catalog.Document
	Score float32 `json:"score"`
}

// Index is an immutable nearest-neighbor index over document embeddings.
// Implementations are safe for concurrent Search calls.
type Index interface {
	// Search returns up to k documents ordered by descending cosine
	// similarity. Equal scores keep build order.
	Search(ctx context.Context, query []float32, k int) ([]ScoredDocument, error)

	// Len is the number of indexed documents.
	Len() int

	// Dim is the embedding dimension.
	Dim() int
}

// FilterValid drops documents whose vector is empty and checks the rest share
// one dimension.
func FilterValid(docs []catalog.Document, vecs [][]float32) ([]catalog.Document, [][]float32, error) {
	if len(docs) != len(vecs) {
		return nil, nil, fmt.Errorf("%w: %d documents, %d vectors", ErrLengthMismatch, len(docs), len(vecs))
	}

	var (
		keptDocs []catalog.Document
		keptVecs [][]float32
		dim      int
	)
	for i, v := range vecs {
		if len(v) == 0 {
			continue
		}
		if dim == 0 {
			dim = len(v)
		} else if len(v) != dim {
			return nil, nil, fmt.Errorf("%w: document %s has %d, want %d", ErrDimensionMismatch, docs[i].ID, len(v), dim)
		}
		keptDocs = append(keptDocs, docs[i])
		keptVecs = append(keptVecs, v)
	}
	if len(keptDocs) == 0 {
		return nil, nil, ErrNoValidEmbeddings
	}
	return keptDocs, keptVecs, nil
}

// BuildIndex records every document in store, when one is given, and returns
// a searchable index over those with a valid embedding.
func BuildIndex(ctx context.Context, backend string, store *storage.Store, docs []catalog.Document, vecs [][]float32) (Index, error) {
	validDocs, validVecs, err := FilterValid(docs, vecs)
	if err != nil {
		return nil, err
	}

	if store != nil {
		entries := make([]storage.Entry, len(docs))
		for i, d := range docs {
			entries[i] = storage.Entry{Position: i, Document: d, Embedding: vecs[i]}
		}
		if err := store.SaveEntries(ctx, entries); err != nil {
			return nil, fmt.Errorf("saving catalog entries: %w", err)
		}
	}

	switch backend {
	case "", BackendMemory:
		return NewMemoryIndex(validDocs, validVecs)
	case BackendSQLite:
		if store == nil {
			return nil, fmt.Errorf("sqlite index requires a store")
		}
		return NewSQLiteIndex(store, len(validDocs), len(validVecs[0])), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q (want %s or %s)", backend, BackendMemory, BackendSQLite)
	}
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine computes dot(a,b) / (aNorm * bNorm) with precomputed norms.
// A zero norm yields 0.
func cosine(a, b []float32, aNorm, bNorm float32) float32 {
	if len(a) != len(b) || aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (float64(aNorm) * float64(bNorm)))
}
