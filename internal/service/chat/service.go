package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/travel-assistant/backend/internal/conversation"
	"github.com/zhouzirui/travel-assistant/backend/internal/metrics"
	"github.com/zhouzirui/travel-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/travel-assistant/backend/internal/model/persona"
)

var (
	ErrPersonaRequired   = errors.New("persona id is required")
	ErrPersonaNotFound   = errors.New("persona not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrUnknownQuickReply = errors.New("unknown quick reply")
	// ErrQuickRepliesHidden is returned once the conversation has moved past the greeting.
	ErrQuickRepliesHidden = errors.New("quick replies are no longer available")
)

// Config controls conversation timings and session lifetime.
type Config struct {
	Conversation conversation.Config
	// IdleTTL closes sessions without activity for this long. Zero disables eviction.
	IdleTTL       time.Duration
	EvictInterval time.Duration
}

type entry struct {
	session chat.Session
	conv    *conversation.Conversation
}

// Service mounts one conversation per session and keeps them in memory.
type Service struct {
	personas persona.Store
	cfg      Config
	log      zerolog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
}

// Option customizes the Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.log = logger }
}

// WithClock replaces time.Now for session timestamps and idle eviction. It is
// handed to every conversation so activity is measured on the same clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService bootstraps the in-memory chat service.
func NewService(personas persona.Store, cfg Config, opts ...Option) *Service {
	s := &Service{
		personas: personas,
		cfg:      cfg,
		log:      zerolog.Nop(),
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession mounts a new conversation seeded with the persona greeting.
func (s *Service) CreateSession(_ context.Context, personaID string) (chat.Session, error) {
	if personaID == "" {
		return chat.Session{}, ErrPersonaRequired
	}
	p, ok := s.personas.FindByID(personaID)
	if !ok {
		return chat.Session{}, ErrPersonaNotFound
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		PersonaID: personaID,
		CreatedAt: s.now().UTC(),
	}

	conv := conversation.New(p,
		conversation.WithSessionID(session.ID),
		conversation.WithConfig(s.cfg.Conversation),
		conversation.WithLogger(s.log),
		conversation.WithClock(s.now),
		conversation.WithObserver(metrics.ConversationObserver{}),
	)

	s.mu.Lock()
	s.sessions[session.ID] = &entry{session: session, conv: conv}
	s.mu.Unlock()

	metrics.SessionsCreated.Inc()
	metrics.SessionsActive.Inc()
	s.log.Info().Str("session_id", session.ID).Str("persona_id", personaID).Msg("session created")

	return session, nil
}

func (s *Service) lookup(sessionID string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	return e.session, nil
}

// Conversation returns the live conversation of a session.
func (s *Service) Conversation(sessionID string) (*conversation.Conversation, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return e.conv, nil
}

// LoadTranscript returns the messages of the provided session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return e.conv.Messages(), nil
}

// State returns a snapshot of the session's conversation.
func (s *Service) State(_ context.Context, sessionID string) (chat.State, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return chat.State{}, err
	}
	return e.conv.Snapshot(), nil
}

// SetInput replaces the session's input buffer.
func (s *Service) SetInput(_ context.Context, sessionID, text string) error {
	e, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	e.conv.SetInputBuffer(text)
	return nil
}

// Submit sends a user message. The boolean reports whether it was accepted;
// blank text and submissions rejected by the busy policy are not errors.
func (s *Service) Submit(_ context.Context, sessionID, text string) (bool, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return false, err
	}
	return e.conv.Submit(text), nil
}

// SelectQuickReply submits one of the persona's quick-reply phrases.
func (s *Service) SelectQuickReply(_ context.Context, sessionID, phrase string) (bool, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return false, err
	}
	if !e.conv.Persona().HasQuickReply(phrase) {
		return false, ErrUnknownQuickReply
	}
	if !e.conv.ShowQuickReplies() {
		return false, ErrQuickRepliesHidden
	}
	// the menu can still close between the check and the selection; that case
	// is reported as not accepted
	return e.conv.SelectQuickReply(phrase), nil
}

// CloseSession unmounts a session, cancelling any pending reply.
func (s *Service) CloseSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	e, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	e.conv.Close()
	metrics.SessionsActive.Dec()
	s.log.Info().Str("session_id", sessionID).Msg("session closed")
	return nil
}

// SessionCount returns the number of mounted sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Shutdown closes every session.
func (s *Service) Shutdown() {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.sessions))
	for id, e := range s.sessions {
		entries = append(entries, e)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, e := range entries {
		e.conv.Close()
		metrics.SessionsActive.Dec()
	}
	s.log.Info().Int("sessions", len(entries)).Msg("chat service shut down")
}
