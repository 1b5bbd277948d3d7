package retrieval

import (
	"container/heap"
	"context"
	"fmt"

	"github.com/kalambet/artisan/internal/storage"
)

var _ Index = (*SQLiteIndex)(nil)

// SQLiteIndex performs brute-force cosine search over the embeddings held in
// a storage.Store. Only positions and scores are kept during the scan; full
// documents are fetched for the top-k winners.
type SQLiteIndex struct {
	store *storage.Store
	n     int
	dim   int
}

// NewSQLiteIndex wraps a store whose entries are already saved. n and dim
// describe the embedded entries.
func NewSQLiteIndex(store *storage.Store, n, dim int) *SQLiteIndex {
	return &SQLiteIndex{store: store, n: n, dim: dim}
}

func (s *SQLiteIndex) Len() int { return s.n }
func (s *SQLiteIndex) Dim() int { return s.dim }

func (s *SQLiteIndex) Search(ctx context.Context, query []float32, k int) ([]ScoredDocument, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), s.dim)
	}

	qn := norm(query)
	h := &candidateHeap{}
	err := s.store.ScanEmbeddings(ctx, func(pos int, vec []float32) error {
		c := candidate{pos: pos, score: cosine(query, vec, qn, norm(vec))}
		if h.Len() < k {
			heap.Push(h, c)
		} else if c.beats((*h)[0]) {
			(*h)[0] = c
			heap.Fix(h, 0)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning embeddings: %w", err)
	}
	if h.Len() == 0 {
		return nil, nil
	}

	top := make([]candidate, h.Len())
	for i := len(top) - 1; i >= 0; i-- {
		top[i] = heap.Pop(h).(candidate)
	}

	positions := make([]int, len(top))
	for i, c := range top {
		positions[i] = c.pos
	}
	entries, err := s.store.EntriesAt(ctx, positions)
	if err != nil {
		return nil, err
	}

	results := make([]ScoredDocument, 0, len(top))
	for _, c := range top {
		e, ok := entries[c.pos]
		if !ok {
			return nil, fmt.Errorf("entry at position %d disappeared", c.pos)
		}
		results = append(results, ScoredDocument{Document: e.Document, Score: c.score})
	}
	return results, nil
}

type candidate struct {
	pos   int
	score float32
}

// beats reports whether c ranks ahead of o: higher score, then earlier position.
func (c candidate) beats(o candidate) bool {
	if c.score != o.score {
		return c.score > o.score
	}
	return c.pos < o.pos
}

// candidateHeap keeps the worst-ranked candidate at the root.
type candidateHeap []candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return h[j].beats(h[i]) }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
