package retrieval

import (
	"context"
	"fmt"
	"strings"
)

// DefaultTopK is the number of documents retrieved per question.
const DefaultTopK = 2

// QueryEmbedder embeds a single query text. *Embedder implements it.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever combines query embedding and index search.
type Retriever struct {
	embedder QueryEmbedder
	index    Index
	topK     int
}

// NewRetriever creates a Retriever. topK <= 0 selects DefaultTopK.
func NewRetriever(embedder QueryEmbedder, index Index, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{embedder: embedder, index: index, topK: topK}
}

// TopK returns the configured number of results.
func (r *Retriever) TopK() int { return r.topK }

// Index returns the underlying index.
func (r *Retriever) Index() Index { return r.index }

// Retrieve returns the configured number of documents closest to question.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]ScoredDocument, error) {
	return r.RetrieveK(ctx, question, r.topK)
}

// RetrieveK is Retrieve with an explicit k.
func (r *Retriever) RetrieveK(ctx context.Context, question string, k int) ([]ScoredDocument, error) {
	res, err := r.Lookup(ctx, question, k)
	if err != nil {
		return nil, err
	}
	return res.Documents, nil
}

// Result holds the query vector and the documents found for it.
type Result struct {
	Vector    []float32
	Documents []ScoredDocument
}

// Lookup embeds the trimmed question and searches the index for k documents.
func (r *Retriever) Lookup(ctx context.Context, question string, k int) (Result, error) {
	vec, err := r.embedder.Embed(ctx, strings.TrimSpace(question))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrQueryEmbedding, err)
	}
	if len(vec) == 0 {
		return Result{}, fmt.Errorf("%w: empty vector", ErrQueryEmbedding)
	}
	docs, err := r.index.Search(ctx, vec, k)
	if err != nil {
		return Result{}, err
	}
	return Result{Vector: vec, Documents: docs}, nil
}
