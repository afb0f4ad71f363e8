// Package conversation implements a question-answering session over one document index.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/domain/chunk"
	domconv "github.com/kailas-cloud/docchat/internal/domain/conversation"
	"github.com/kailas-cloud/docchat/internal/domain/document"
	"github.com/kailas-cloud/docchat/internal/domain/index"
	"github.com/kailas-cloud/docchat/internal/logger"
	"github.com/kailas-cloud/docchat/internal/metrics"
	"github.com/kailas-cloud/docchat/internal/usecase/ingest"
)

// State is the externally visible lifecycle state of a session.
type State string

const (
	// StateEmpty means no documents have been ingested yet.
	StateEmpty State = "empty"
	// StateReady means questions can be asked.
	StateReady State = "ready"
	// StateAnswering means a question is in flight.
	StateAnswering State = "answering"
)

// Options tunes answering.
type Options struct {
	TopK       int
	LLMTimeout time.Duration // deadline for the language model call; none when <= 0
}

// Answer is the result of a successful Ask.
type Answer struct {
	Text    string
	History []domconv.Message
	Sources []chunk.Hit
}

// Deps are the collaborators shared by all sessions.
type Deps struct {
	Builder   IndexBuilder
	Retriever Retriever
	Model     domain.LanguageModel
}

// Session owns one message history and references the active index.
//
// The index and history are immutable values published through atomic pointers, so
// readers never block and never see partial writes. At most one Ask and one Ingest run
// at a time; a second concurrent call gets domain.ErrBusy.
type Session struct {
	id   string
	deps Deps
	opts Options

	index     atomic.Pointer[index.Index]
	history   atomic.Pointer[domconv.History]
	answering atomic.Bool
	ingesting atomic.Bool
}

// NewSession creates an empty session.
func NewSession(id string, deps Deps, opts Options) *Session {
	if opts.TopK <= 0 {
		opts.TopK = domain.DefaultPipelineConfig().TopK
	}
	s := &Session{id: id, deps: deps, opts: opts}
	s.history.Store(&domconv.History{})
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State reports the current lifecycle state.
func (s *Session) State() State {
	switch {
	case s.answering.Load():
		return StateAnswering
	case s.index.Load() == nil:
		return StateEmpty
	default:
		return StateReady
	}
}

// Documents lists the document IDs in the active index.
func (s *Session) Documents() []string {
	if ix := s.index.Load(); ix != nil {
		return ix.Documents()
	}
	return nil
}

// History returns a snapshot of the conversation.
func (s *Session) History() []domconv.Message {
	return s.history.Load().Messages()
}

// Ingest builds a new index from raws and swaps it in only when fully built.
// On any error, including cancellation, the previous index stays active.
func (s *Session) Ingest(ctx context.Context, raws []document.Raw) (ingest.Stats, error) {
	if !s.ingesting.CompareAndSwap(false, true) {
		return ingest.Stats{}, fmt.Errorf("ingest in progress: %w", domain.ErrBusy)
	}
	defer s.ingesting.Store(false)

	ctx, _ = logger.With(ctx, zap.String("session_id", s.id))
	ix, stats, err := s.deps.Builder.Build(ctx, raws)
	if err != nil {
		return ingest.Stats{}, err
	}
	if err := ctx.Err(); err != nil {
		return ingest.Stats{}, fmt.Errorf("ingest: %w", err)
	}

	s.index.Store(ix)
	return stats, nil
}

// Ask answers question against the active index.
//
// The human turn is recorded before any external call. If retrieval or generation fails
// the turn stays as a pending (unanswered) message; the next Ask replaces it, and
// DiscardPending removes it. If the caller cancels, the history is restored exactly.
func (s *Session) Ask(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("question is required: %w", domain.ErrInvalidRequest)
	}
	if !s.answering.CompareAndSwap(false, true) {
		return Answer{}, fmt.Errorf("question in flight: %w", domain.ErrBusy)
	}
	defer s.answering.Store(false)

	ctx, log := logger.With(ctx, zap.String("session_id", s.id))
	start := time.Now()

	ans, err := s.ask(ctx, question)
	status := askStatus(err)
	metrics.AskTotal.WithLabelValues(status).Inc()
	if err != nil {
		log.Warn("Ask failed", zap.String("status", status), zap.Error(err))
		return Answer{}, err
	}

	metrics.AskDuration.Observe(time.Since(start).Seconds())
	log.Info("Question answered",
		zap.Int("sources", len(ans.Sources)),
		zap.Int("history", len(ans.History)),
		zap.Duration("duration", time.Since(start)),
	)
	return ans, nil
}

func (s *Session) ask(ctx context.Context, question string) (Answer, error) {
	ix := s.index.Load()
	if ix == nil {
		return Answer{}, domain.ErrNoIndex
	}

	before := s.history.Load()
	prior := before.DropPending()
	pending, err := prior.Append(domconv.Human(question))
	if err != nil {
		return Answer{}, fmt.Errorf("record question: %w", err)
	}
	s.history.Store(&pending)

	hits, err := s.deps.Retriever.Retrieve(ctx, ix, question, s.opts.TopK)
	if err != nil {
		return Answer{}, s.fail(ctx, before, fmt.Errorf("retrieve: %w", err))
	}

	gen, err := s.generate(ctx, domain.Prompt{
		Instructions: renderInstructions(hits),
		History:      prior.Messages(),
		Question:     question,
	})
	if err != nil {
		return Answer{}, s.fail(ctx, before, err)
	}

	answered, err := pending.Append(domconv.Assistant(gen.Text))
	if err != nil {
		return Answer{}, fmt.Errorf("record answer: %w", err)
	}
	s.history.Store(&answered)

	return Answer{Text: gen.Text, History: answered.Messages(), Sources: hits}, nil
}

func (s *Session) generate(ctx context.Context, prompt domain.Prompt) (domain.GenerationResult, error) {
	callCtx, cancel := ctx, func() {}
	if s.opts.LLMTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, s.opts.LLMTimeout)
	}
	defer cancel()

	gen, err := s.deps.Model.Generate(callCtx, prompt)
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("generate: %w", domain.AsProviderError(err, domain.ErrLanguageModel))
	}
	if strings.TrimSpace(gen.Text) == "" {
		return domain.GenerationResult{}, fmt.Errorf("generate: empty answer: %w", domain.ErrLanguageModel)
	}
	domain.UsageFromContext(ctx).AddGenerationTokens(gen.TotalTokens)
	return gen, nil
}

// fail restores the pre-call history when the caller went away; other failures keep
// the pending human turn.
func (s *Session) fail(ctx context.Context, before *domconv.History, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		s.history.Store(before)
	}
	return err
}

// DiscardPending removes an unanswered human turn. It reports whether one was removed.
func (s *Session) DiscardPending() (bool, error) {
	if !s.answering.CompareAndSwap(false, true) {
		return false, fmt.Errorf("question in flight: %w", domain.ErrBusy)
	}
	defer s.answering.Store(false)

	h := s.history.Load()
	if !h.Pending() {
		return false, nil
	}
	dropped := h.DropPending()
	s.history.Store(&dropped)
	return true, nil
}

func askStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrNoIndex):
		return "no_index"
	case errors.Is(err, domain.ErrExternalServiceTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrEmbeddingProvider):
		return "embedding_error"
	case errors.Is(err, domain.ErrLanguageModel):
		return "llm_error"
	case errors.Is(err, domain.ErrEmptyIndex):
		return "empty_index"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}
