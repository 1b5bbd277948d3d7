package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/artisan/internal/composer"
	"github.com/kalambet/artisan/internal/engine"
	"github.com/kalambet/artisan/internal/retrieval"
)

// User-facing messages.
const (
	MsgUninitialized  = "Système non initialisé. Veuillez vérifier les logs du serveur."
	MsgInvalidRequest = "Requête invalide"
	MsgEmptyQuestion  = "Veuillez poser une question"
)

// DefaultTemperature is the sampling temperature for answers.
const DefaultTemperature = 0.7

// AssistantConfig controls answer generation.
type AssistantConfig struct {
	ChatModel   string
	Temperature float64
	Timeout     time.Duration // generation call; 0 means no limit
	RenderHTML  bool
}

// Assistant answers questions from retrieved catalog documents.
type Assistant struct {
	retriever *retrieval.Retriever
	composer  *composer.Composer
	engine    engine.Engine
	cfg       AssistantConfig
}

// NewAssistant wires retrieval, prompt composition and generation.
func NewAssistant(r *retrieval.Retriever, c *composer.Composer, e engine.Engine, cfg AssistantConfig) *Assistant {
	return &Assistant{retriever: r, composer: c, engine: e, cfg: cfg}
}

// Answer returns the response for question. Failures become "Erreur: ..."
// text, and timeouts "Service indisponible: ...".
func (a *Assistant) Answer(ctx context.Context, question string) Response {
	return a.Ask(ctx, question).Answer
}

// Ask runs question through the full flow and returns its session.
func (a *Assistant) Ask(ctx context.Context, question string) (s *Session) {
	s = newSession(question)
	defer s.log()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while answering", "session", s.ID.String(), "panic", r)
			s.fail(fmt.Errorf("internal error: %v", r))
		}
	}()

	q := strings.TrimSpace(question)
	if q == "" {
		s.Answer = Response{Text: MsgEmptyQuestion}
		return s
	}

	start := time.Now()
	res, err := a.retriever.Lookup(ctx, q, a.retriever.TopK())
	s.RetrievalTime = time.Since(start)
	if err != nil {
		s.fail(err)
		return s
	}
	s.QueryVector = res.Vector
	s.Documents = res.Documents
	s.Prompt = a.composer.Compose(q, res.Documents)

	start = time.Now()
	raw, err := a.generate(ctx, s.Prompt)
	s.GenerationTime = time.Since(start)
	if err != nil {
		s.fail(err)
		return s
	}

	s.Answer = Response{Text: composer.Clean(raw)}
	if a.cfg.RenderHTML {
		html, err := composer.RenderHTML(s.Answer.Text)
		if err != nil {
			slog.Warn("rendering answer html", "session", s.ID.String(), "error", err)
		} else {
			s.Answer.HTML = html
		}
	}
	return s
}

func (a *Assistant) generate(ctx context.Context, msgs []engine.Message) (string, error) {
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}
	out, err := a.engine.Chat(ctx, a.cfg.ChatModel, msgs, engine.Temperature(a.cfg.Temperature))
	if err != nil {
		return "", fmt.Errorf("generation: %w", err)
	}
	return out, nil
}

// Search returns the k documents closest to question without generating.
func (a *Assistant) Search(ctx context.Context, question string, k int) ([]retrieval.ScoredDocument, error) {
	if k <= 0 {
		k = a.retriever.TopK()
	}
	return a.retriever.RetrieveK(ctx, question, k)
}

func (s *Session) fail(err error) {
	s.Err = err
	s.Answer = failureResponse(err)
}

func failureResponse(err error) Response {
	if errors.Is(err, context.DeadlineExceeded) {
		return Response{Text: "Service indisponible: " + err.Error()}
	}
	return Response{Text: "Erreur: " + err.Error()}
}
