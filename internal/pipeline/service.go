package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/artisan/internal/retrieval"
	"github.com/kalambet/artisan/internal/storage"
)

// ErrUnavailable is returned by Service operations when the build failed.
var ErrUnavailable = errors.New("catalog assistant unavailable")

// TableStatus reports how one catalog table loaded.
type TableStatus struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Records int    `json:"records"`
	Error   string `json:"error,omitempty"`
}

// Status summarizes the Service for /status and `artisan status`.
type Status struct {
	Ready        bool          `json:"ready"`
	Cause        string        `json:"cause,omitempty"`
	Backend      string        `json:"backend,omitempty"`
	ChatModel    string        `json:"chat_model,omitempty"`
	EmbedModel   string        `json:"embed_model,omitempty"`
	IndexBackend string        `json:"index_backend,omitempty"`
	Documents    int           `json:"documents"`
	Dropped      int           `json:"dropped"`
	Tables       []TableStatus `json:"tables,omitempty"`
	BuiltAt      time.Time     `json:"built_at"`
}

// Service is the handle on the catalog assistant. It is either ready, with an
// Assistant, or unavailable with the cause recorded. A Service never changes
// state after Build returns it, so it is safe for concurrent use.
type Service struct {
	assistant *Assistant
	store     *storage.Store
	status    Status
	cause     error
}

// Unavailable returns a Service that answers every question with the
// uninitialized message.
func Unavailable(cause error, st Status) *Service {
	st.Ready = false
	if cause != nil {
		st.Cause = cause.Error()
	}
	return &Service{status: st, cause: cause}
}

// Ready reports whether questions can be answered.
func (s *Service) Ready() bool {
	return s != nil && s.assistant != nil
}

// Err returns nil when ready and an error wrapping ErrUnavailable otherwise.
func (s *Service) Err() error {
	if s.Ready() {
		return nil
	}
	if s == nil || s.cause == nil {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, s.cause)
}

// Answer returns the cleaned answer for question, or the uninitialized
// message when the Service is unavailable.
func (s *Service) Answer(ctx context.Context, question string) Response {
	if !s.Ready() {
		return Response{Text: MsgUninitialized}
	}
	return s.assistant.Answer(ctx, question)
}

// Ask is Answer returning the whole session.
func (s *Service) Ask(ctx context.Context, question string) (*Session, error) {
	if !s.Ready() {
		return nil, s.Err()
	}
	return s.assistant.Ask(ctx, question), nil
}

// Search returns the k catalog documents closest to question. k <= 0 uses
// the configured default.
func (s *Service) Search(ctx context.Context, question string, k int) ([]retrieval.ScoredDocument, error) {
	if !s.Ready() {
		return nil, s.Err()
	}
	return s.assistant.Search(ctx, question, k)
}

// Status returns a snapshot of the build outcome.
func (s *Service) Status() Status {
	if s == nil {
		return Status{Cause: ErrUnavailable.Error()}
	}
	st := s.status
	st.Tables = append([]TableStatus(nil), s.status.Tables...)
	return st
}

// Store returns the catalog store, or nil if the build stopped before it
// was filled.
func (s *Service) Store() *storage.Store {
	if s == nil {
		return nil
	}
	return s.store
}

// Close releases the catalog store.
func (s *Service) Close() error {
	if s == nil || s.store == nil {
		return nil
	}
	return s.store.Close()
}
