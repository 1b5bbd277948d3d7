package pipeline

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/artisan/internal/engine"
	"github.com/kalambet/artisan/internal/retrieval"
)

// Response is the user-facing result of a question. It is always well formed.
type Response struct {
	Text string `json:"response"`
	HTML string `json:"html,omitempty"`
}

// Session traces one question through retrieval and generation.
// Sessions are logged at debug level and never stored.
type Session struct {
	ID          uuid.UUID
	Question    string
	QueryVector []float32
	Documents   []retrieval.ScoredDocument
	Prompt      []engine.Message
	Answer      Response
	Err         error

	Started        time.Time
	RetrievalTime  time.Duration
	GenerationTime time.Duration
}

func newSession(question string) *Session {
	return &Session{ID: uuid.New(), Question: question, Started: time.Now()}
}

// DocumentIDs returns the IDs of the retrieved documents, best first.
func (s *Session) DocumentIDs() []string {
	ids := make([]string, len(s.Documents))
	for i, d := range s.Documents {
		ids[i] = d.ID
	}
	return ids
}

func (s *Session) log() {
	attrs := []any{
		"session", s.ID.String(),
		"question", s.Question,
		"documents", s.DocumentIDs(),
		"retrieval_ms", s.RetrievalTime.Milliseconds(),
		"generation_ms", s.GenerationTime.Milliseconds(),
		"total_ms", time.Since(s.Started).Milliseconds(),
	}
	if s.Err != nil {
		attrs = append(attrs, "error", s.Err)
	}
	slog.Debug("query session", attrs...)
}
