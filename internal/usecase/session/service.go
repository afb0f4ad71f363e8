// Package session keeps conversation sessions in memory, keyed by ID, with idle expiry.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/domain/conversation"
	"github.com/kailas-cloud/docchat/internal/domain/document"
	"github.com/kailas-cloud/docchat/internal/metrics"
	convuc "github.com/kailas-cloud/docchat/internal/usecase/conversation"
	"github.com/kailas-cloud/docchat/internal/usecase/ingest"
)

// Options configures session lifetime.
type Options struct {
	TTL             time.Duration // idle time before a session expires; never when <= 0
	JanitorInterval time.Duration
	MaxSessions     int // 0 = unlimited
}

type entry struct {
	conv     Conversation
	lastUsed time.Time
}

// Info is a read-only view of a session.
type Info struct {
	ID        string
	State     convuc.State
	Documents []string
	Messages  int
	LastUsed  time.Time
}

// Service owns all live sessions.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	factory Factory
	opts    Options
	now     func() time.Time
	logger  *zap.Logger
}

// New creates a session service.
func New(factory Factory, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessions: make(map[string]*entry),
		factory:  factory,
		opts:     opts,
		now:      time.Now,
		logger:   logger,
	}
}

// NewFactory returns a Factory producing conversation engines with shared collaborators.
func NewFactory(deps convuc.Deps, opts convuc.Options) Factory {
	return func(id string) Conversation {
		return convuc.NewSession(id, deps, opts)
	}
}

// Create starts an empty session.
func (s *Service) Create(_ context.Context) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.MaxSessions > 0 && len(s.sessions) >= s.opts.MaxSessions {
		return Info{}, fmt.Errorf("limit %d reached: %w", s.opts.MaxSessions, domain.ErrTooManySessions)
	}

	id := uuid.NewString()
	e := &entry{conv: s.factory(id), lastUsed: s.now()}
	s.sessions[id] = e
	metrics.ActiveSessions.Set(float64(len(s.sessions)))

	s.logger.Info("Session created", zap.String("session_id", id))
	return info(e), nil
}

// Get returns a session's state.
func (s *Service) Get(_ context.Context, id string) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(id)
	if err != nil {
		return Info{}, err
	}
	return info(e), nil
}

// Delete removes a session. In-flight calls on it finish against their snapshot.
func (s *Service) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("session %q: %w", id, domain.ErrSessionNotFound)
	}
	delete(s.sessions, id)
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.logger.Info("Session deleted", zap.String("session_id", id))
	return nil
}

// Ingest replaces the session's knowledge base.
func (s *Service) Ingest(ctx context.Context, id string, raws []document.Raw) (ingest.Stats, error) {
	e, err := s.touch(id)
	if err != nil {
		return ingest.Stats{}, err
	}
	return e.conv.Ingest(ctx, raws)
}

// Ask answers a question within a session.
func (s *Service) Ask(ctx context.Context, id, question string) (convuc.Answer, error) {
	e, err := s.touch(id)
	if err != nil {
		return convuc.Answer{}, err
	}
	return e.conv.Ask(ctx, question)
}

// History returns the session's messages.
func (s *Service) History(_ context.Context, id string) ([]conversation.Message, error) {
	e, err := s.touch(id)
	if err != nil {
		return nil, err
	}
	return e.conv.History(), nil
}

// DiscardPending drops an unanswered question from the session history.
func (s *Service) DiscardPending(_ context.Context, id string) (bool, error) {
	e, err := s.touch(id)
	if err != nil {
		return false, err
	}
	return e.conv.DiscardPending()
}

// Len returns the number of live sessions.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many were removed.
// Sessions with a question in flight are kept.
func (s *Service) Sweep() int {
	if s.opts.TTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.opts.TTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		if !s.expired(e, cutoff) {
			continue
		}
		delete(s.sessions, id)
		removed++
		s.logger.Info("Session expired", zap.String("session_id", id))
	}
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	return removed
}

// Run sweeps expired sessions until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if s.opts.TTL <= 0 || s.opts.JanitorInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.opts.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("Expired sessions removed", zap.Int("count", n))
			}
		}
	}
}

func (s *Service) touch(id string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(id)
}

// lookup finds a live session and marks it used. An idle session past its TTL that the
// janitor has not reached yet is removed here. Callers hold s.mu.
func (s *Service) lookup(id string) (*entry, error) {
	e, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, domain.ErrSessionNotFound)
	}
	now := s.now()
	if s.opts.TTL > 0 && s.expired(e, now.Add(-s.opts.TTL)) {
		delete(s.sessions, id)
		metrics.ActiveSessions.Set(float64(len(s.sessions)))
		return nil, fmt.Errorf("session %q expired: %w", id, domain.ErrSessionNotFound)
	}
	e.lastUsed = now
	return e, nil
}

func (s *Service) expired(e *entry, cutoff time.Time) bool {
	return !e.lastUsed.After(cutoff) && e.conv.State() != convuc.StateAnswering
}

func info(e *entry) Info {
	return Info{
		ID:        e.conv.ID(),
		State:     e.conv.State(),
		Documents: e.conv.Documents(),
		Messages:  len(e.conv.History()),
		LastUsed:  e.lastUsed,
	}
}
