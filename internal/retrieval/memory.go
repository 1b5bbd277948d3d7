package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/kalambet/artisan/internal/catalog"
)

var _ Index = (*MemoryIndex)(nil)

type memoryEntry struct {
	doc  catalog.Document
	vec  []float32
	norm float32
}

// MemoryIndex keeps documents and vectors in a slice and scores all of them
// on every search.
type MemoryIndex struct {
	entries []memoryEntry
	dim     int
}

// NewMemoryIndex builds an index from parallel docs and vecs. Pairs with an
// empty vector are dropped.
func NewMemoryIndex(docs []catalog.Document, vecs [][]float32) (*MemoryIndex, error) {
	docs, vecs, err := FilterValid(docs, vecs)
	if err != nil {
		return nil, err
	}
	idx := &MemoryIndex{entries: make([]memoryEntry, len(docs)), dim: len(vecs[0])}
	for i := range docs {
		idx.entries[i] = memoryEntry{doc: docs[i], vec: vecs[i], norm: norm(vecs[i])}
	}
	return idx, nil
}

func (m *MemoryIndex) Len() int { return len(m.entries) }
func (m *MemoryIndex) Dim() int { return m.dim }

func (m *MemoryIndex) Search(_ context.Context, query []float32, k int) ([]ScoredDocument, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(query) != m.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), m.dim)
	}

	qn := norm(query)
	scored := make([]ScoredDocument, len(m.entries))
	for i, e := range m.entries {
		scored[i] = ScoredDocument{Document: e.doc, Score: cosine(query, e.vec, qn, e.norm)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}
