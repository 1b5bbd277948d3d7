package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kalambet/artisan/internal/catalog"
	"github.com/kalambet/artisan/internal/pipeline"
	"github.com/kalambet/artisan/internal/retrieval"
	"github.com/kalambet/artisan/internal/storage"
)

const testToken = "test-token-12345"

type fakeAssistant struct {
	ready     bool
	docs      []retrieval.ScoredDocument
	searchErr error

	mu        sync.Mutex
	questions []string
	searchK   int
}

func (f *fakeAssistant) Ready() bool { return f.ready }

func (f *fakeAssistant) Answer(_ context.Context, q string) pipeline.Response {
	if !f.ready {
		return pipeline.Response{Text: pipeline.MsgUninitialized}
	}
	f.mu.Lock()
	f.questions = append(f.questions, q)
	f.mu.Unlock()
	if strings.TrimSpace(q) == "" {
		return pipeline.Response{Text: pipeline.MsgEmptyQuestion}
	}
	return pipeline.Response{Text: "## Réponse\n\n**Tajine**"}
}

func (f *fakeAssistant) Search(_ context.Context, _ string, k int) ([]retrieval.ScoredDocument, error) {
	f.mu.Lock()
	f.searchK = k
	f.mu.Unlock()
	if !f.ready {
		return nil, pipeline.ErrUnavailable
	}
	return f.docs, f.searchErr
}

func (f *fakeAssistant) Status() pipeline.Status {
	st := pipeline.Status{Ready: f.ready, Documents: len(f.docs)}
	if !f.ready {
		st.Cause = "no valid embeddings"
	}
	return st
}

func testRecord(row int, ref, name string) catalog.Record {
	return catalog.Record{
		Table: "poterie", Row: row, Reference: ref, Name: name,
		Category: "Poterie", Origin: "Safi", Date: catalog.Sentinel, Label: "non",
		Certification: "non disponible", Description: name + " 30 cm",
		Dimensions: "30 cm", Price: catalog.Sentinel,
	}
}

func openCatalog(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	entries := []storage.Entry{
		{Position: 0, Document: catalog.Synthesize(testRecord(1, "PT-1", "Tajine")), Embedding: []float32{1, 0}},
		{Position: 1, Document: catalog.Synthesize(testRecord(2, "PT-2", "Vase")), Embedding: nil},
		{Position: 2, Document: catalog.Synthesize(testRecord(3, "PT-3", "Bol")), Embedding: []float32{0, 1}},
	}
	if err := store.SaveEntries(context.Background(), entries); err != nil {
		t.Fatalf("SaveEntries: %v", err)
	}
	return store
}

func newTestHandler(t *testing.T, a *fakeAssistant, token string) http.Handler {
	t.Helper()
	return NewHandler(Deps{Assistant: a, Catalog: openCatalog(t), Token: token})
}

func postAsk(h http.Handler, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rr, req)
	return rr
}

func decodeAnswer(t *testing.T, rr *httptest.ResponseRecorder) pipeline.Response {
	t.Helper()
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp pipeline.Response
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, &fakeAssistant{ready: true}, "")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var body map[string]string
	json.NewDecoder(rr.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v, want status=ok", body)
	}
}

func TestAsk_Answers(t *testing.T) {
	a := &fakeAssistant{ready: true}
	h := newTestHandler(t, a, "")

	resp := decodeAnswer(t, postAsk(h, `{"question":"Quels tajines ?"}`))
	if resp.Text != "## Réponse\n\n**Tajine**" {
		t.Errorf("response = %q", resp.Text)
	}
	if len(a.questions) != 1 || a.questions[0] != "Quels tajines ?" {
		t.Errorf("questions = %v", a.questions)
	}
}

func TestAsk_InvalidRequests(t *testing.T) {
	bodies := map[string]string{
		"empty body":       "",
		"malformed json":   `{"question":`,
		"missing question": `{"q":"tajine"}`,
		"null question":    `{"question":null}`,
		"not an object":    `["tajine"]`,
		"wrong type":       `{"question":42}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			a := &fakeAssistant{ready: true}
			h := newTestHandler(t, a, "")
			resp := decodeAnswer(t, postAsk(h, body))
			if resp.Text != pipeline.MsgInvalidRequest {
				t.Errorf("response = %q, want %q", resp.Text, pipeline.MsgInvalidRequest)
			}
			if len(a.questions) != 0 {
				t.Errorf("assistant called for invalid request: %v", a.questions)
			}
		})
	}
}

func TestAsk_EmptyQuestion(t *testing.T) {
	h := newTestHandler(t, &fakeAssistant{ready: true}, "")
	resp := decodeAnswer(t, postAsk(h, `{"question":"   "}`))
	if resp.Text != pipeline.MsgEmptyQuestion {
		t.Errorf("response = %q, want %q", resp.Text, pipeline.MsgEmptyQuestion)
	}
}

func TestAsk_Uninitialized(t *testing.T) {
	h := newTestHandler(t, &fakeAssistant{ready: false}, "")
	// Checked before the body is read, like the invalid-body case.
	resp := decodeAnswer(t, postAsk(h, `not json`))
	if resp.Text != pipeline.MsgUninitialized {
		t.Errorf("response = %q, want %q", resp.Text, pipeline.MsgUninitialized)
	}
}

func TestAsk_RateLimited(t *testing.T) {
	a := &fakeAssistant{ready: true}
	h := NewHandler(Deps{Assistant: a, AskRate: 0.001, AskBurst: 1})

	first := decodeAnswer(t, postAsk(h, `{"question":"tajine"}`))
	if first.Text == MsgBusy {
		t.Fatal("first request should pass the limiter")
	}
	rr := postAsk(h, `{"question":"tajine"}`)
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	if second := decodeAnswer(t, rr); second.Text != MsgBusy {
		t.Errorf("response = %q, want %q", second.Text, MsgBusy)
	}
}

func TestStatus(t *testing.T) {
	h := newTestHandler(t, &fakeAssistant{ready: false}, "")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	var st pipeline.Status
	json.NewDecoder(rr.Body).Decode(&st)
	if st.Ready || st.Cause == "" {
		t.Errorf("status = %+v, want not ready with a cause", st)
	}
}

func TestCatalog_List(t *testing.T) {
	h := newTestHandler(t, &fakeAssistant{ready: true}, "")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/catalog?limit=2&offset=1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var page struct {
		Total   int `json:"total"`
		Entries []struct {
			ID       string         `json:"id"`
			Embedded bool           `json:"embedded"`
			Record   catalog.Record `json:"record"`
		} `json:"entries"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 3 || len(page.Entries) != 2 {
		t.Fatalf("total=%d entries=%d, want 3 and 2", page.Total, len(page.Entries))
	}
	if page.Entries[0].ID == page.Entries[1].ID {
		t.Errorf("entries share id %q", page.Entries[0].ID)
	}
	if page.Entries[0].Record.Reference != "PT-2" || page.Entries[0].Embedded {
		t.Errorf("first entry = %+v, want PT-2 without embedding", page.Entries[0])
	}
	if !page.Entries[1].Embedded {
		t.Error("PT-3 should report an embedding")
	}
}

func TestCatalog_GetByReference(t *testing.T) {
	h := newTestHandler(t, &fakeAssistant{ready: true}, "")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/catalog/PT-1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"PRODUIT: Tajine`) {
		t.Errorf("body = %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/catalog/NOPE", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestCatalog_RequiresToken(t *testing.T) {
	h := newTestHandler(t, &fakeAssistant{ready: true}, testToken)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/catalog", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("without token: status = %d, want 401", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/catalog", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("with token: status = %d, want 200", rr.Code)
	}

	// /ask stays open.
	if resp := decodeAnswer(t, postAsk(h, `{"question":"bol"}`)); resp.Text == "" {
		t.Error("empty /ask response")
	}
}

func TestCatalog_NotLoaded(t *testing.T) {
	h := NewHandler(Deps{Assistant: &fakeAssistant{}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/catalog", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=-1", 20},
		{"limit=abc", 20},
		{"limit=500", 100},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/catalog?"+tt.query, nil)
		if got := parseIntParam(r, "limit", 20, 100); got != tt.want {
			t.Errorf("parseIntParam(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

