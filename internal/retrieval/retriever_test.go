package retrieval

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	vec   []float32
	err   error
	texts []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.texts = append(s.texts, text)
	return s.vec, s.err
}

func TestRetrieve_DefaultTopK(t *testing.T) {
	docs, vecs := testDocs(5), axisVectors(5, 5)
	idx, err := NewMemoryIndex(docs, vecs)
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}
	emb := &stubEmbedder{vec: vecs[3]}
	r := NewRetriever(emb, idx, 0)

	got, err := r.Retrieve(context.Background(), "  tajine de Safi \n")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != DefaultTopK {
		t.Fatalf("got %d documents, want %d", len(got), DefaultTopK)
	}
	if got[0].ID != docs[3].ID {
		t.Errorf("top = %s, want %s", got[0].ID, docs[3].ID)
	}
	if emb.texts[0] != "tajine de Safi" {
		t.Errorf("embedded %q, want trimmed question", emb.texts[0])
	}
}

func TestRetrieveK_Override(t *testing.T) {
	docs, vecs := testDocs(5), axisVectors(5, 5)
	idx, _ := NewMemoryIndex(docs, vecs)
	r := NewRetriever(&stubEmbedder{vec: vecs[0]}, idx, 2)

	got, err := r.RetrieveK(context.Background(), "bol", 4)
	if err != nil {
		t.Fatalf("RetrieveK: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("got %d documents, want 4", len(got))
	}
}

func TestRetrieve_QueryEmbeddingFails(t *testing.T) {
	docs, vecs := testDocs(2), axisVectors(2, 2)
	idx, _ := NewMemoryIndex(docs, vecs)

	r := NewRetriever(&stubEmbedder{err: errors.New("connection refused")}, idx, 2)
	if _, err := r.Retrieve(context.Background(), "bol"); !errors.Is(err, ErrQueryEmbedding) {
		t.Errorf("err = %v, want ErrQueryEmbedding", err)
	}

	r = NewRetriever(&stubEmbedder{vec: nil}, idx, 2)
	if _, err := r.Retrieve(context.Background(), "bol"); !errors.Is(err, ErrQueryEmbedding) {
		t.Errorf("empty vector: err = %v, want ErrQueryEmbedding", err)
	}
}
