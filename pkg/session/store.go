// Package session owns per-conversation message history.
//
// Invariants:
// - Histories are append-only; truncation only shapes the view handed to the
//   provider, never the stored history.
// - A session id has at most one active run; a second concurrent run is
//   rejected with ErrSessionBusy, never queued.
// - Sessions are independent and safe under concurrent access.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one immutable turn in a session's history.
type Message struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	ToolName   string    `json:"tool_name,omitempty"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Archiver mirrors history to long-term storage. The store never reads its
// own truth back from the archiver during a run; it is a write-behind copy
// plus a warm-start source.
type Archiver interface {
	Append(ctx context.Context, sessionID string, msg Message) error
	Recent(ctx context.Context, sessionID string, limit int) ([]Message, error)
}

// ErrSessionBusy is returned when a run is requested for a session that
// already has one active.
var ErrSessionBusy = errors.New("session already has an active run")

type state struct {
	messages     []Message
	activeSkills map[string]struct{}
	createdAt    time.Time
	lastActiveAt time.Time
	running      bool
}

// Store holds all session histories for the process.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*state
	archiver Archiver
	logger   zerolog.Logger
}

// Config holds store construction options.
type Config struct {
	// Archiver is optional; nil disables long-term mirroring.
	Archiver Archiver
	Logger   zerolog.Logger
}

// New creates an empty session store.
func New(cfg Config) *Store {
	return &Store{
		sessions: make(map[string]*state),
		archiver: cfg.Archiver,
		logger:   cfg.Logger,
	}
}

func (s *Store) get(id string) *state {
	st, ok := s.sessions[id]
	if !ok {
		now := time.Now()
		st = &state{
			activeSkills: make(map[string]struct{}),
			createdAt:    now,
			lastActiveAt: now,
		}
		s.sessions[id] = st
	}
	return st
}

// Append adds one message to a session's history, creating the session on
// first use. An archiver failure is logged but does not fail the append;
// the in-process history stays authoritative for the run.
func (s *Store) Append(ctx context.Context, id string, msg Message) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if msg.Role == "" {
		return fmt.Errorf("message role cannot be empty")
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	s.mu.Lock()
	st := s.get(id)
	st.messages = append(st.messages, msg)
	st.lastActiveAt = time.Now()
	s.mu.Unlock()

	if s.archiver != nil {
		if err := s.archiver.Append(ctx, id, msg); err != nil {
			s.logger.Warn().
				Str("session_id", id).
				Err(err).
				Msg("Failed to mirror message to archiver")
		}
	}

	return nil
}

// Messages returns a copy of the full stored history.
func (s *Store) Messages(id string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sessions[id]
	if !ok {
		return nil
	}
	out := make([]Message, len(st.messages))
	copy(out, st.messages)
	return out
}

// View returns the most recent messages that fit the token budget, dropping
// the oldest whole turns first, plus the number of turns dropped. Re-applying
// the same budget to a view that already fits drops nothing. The most recent
// turn is always kept even if it alone exceeds the budget.
func (s *Store) View(id string, budget int) ([]Message, int) {
	msgs := s.Messages(id)
	if budget <= 0 || len(msgs) == 0 {
		return msgs, 0
	}

	total := 0
	for i := range msgs {
		total += estimateTokens(msgs[i].Content)
	}

	dropped := 0
	for total > budget && len(msgs) > 1 {
		total -= estimateTokens(msgs[0].Content)
		msgs = msgs[1:]
		dropped++
	}

	return msgs, dropped
}

// Warm loads recent history from the archiver into an empty session, so a
// restarted process keeps conversational context. No-op without an archiver
// or when the session already has messages.
func (s *Store) Warm(ctx context.Context, id string, limit int) error {
	if s.archiver == nil {
		return nil
	}

	s.mu.RLock()
	st, ok := s.sessions[id]
	populated := ok && len(st.messages) > 0
	s.mu.RUnlock()
	if populated {
		return nil
	}

	msgs, err := s.archiver.Recent(ctx, id, limit)
	if err != nil {
		return fmt.Errorf("failed to load archived history: %w", err)
	}
	if len(msgs) == 0 {
		return nil
	}

	s.mu.Lock()
	st = s.get(id)
	if len(st.messages) == 0 {
		st.messages = append(st.messages, msgs...)
	}
	s.mu.Unlock()

	s.logger.Debug().
		Str("session_id", id).
		Int("messages", len(msgs)).
		Msg("Session warmed from archive")
	return nil
}

// BeginRun claims the session's single run slot. Callers must pair it with
// EndRun. A concurrent second claim fails immediately with ErrSessionBusy.
func (s *Store) BeginRun(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.get(id)
	if st.running {
		return fmt.Errorf("%w: %s", ErrSessionBusy, id)
	}
	st.running = true
	return nil
}

// EndRun releases the session's run slot.
func (s *Store) EndRun(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.sessions[id]; ok {
		st.running = false
		st.lastActiveAt = time.Now()
	}
}

// ActivateSkill marks a skill active for the session.
func (s *Store) ActivateSkill(id, skill string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(id).activeSkills[skill] = struct{}{}
}

// DeactivateSkill removes a skill from the session's active set.
func (s *Store) DeactivateSkill(id, skill string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.sessions[id]; ok {
		delete(st.activeSkills, skill)
	}
}

// ActiveSkills lists the session's active skill names.
func (s *Store) ActiveSkills(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sessions[id]
	if !ok {
		return nil
	}
	skills := make([]string, 0, len(st.activeSkills))
	for name := range st.activeSkills {
		skills = append(skills, name)
	}
	return skills
}

// IDs lists all known session ids.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Len reports the number of known sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// estimateTokens approximates the token cost of content, 1 token per 4 chars.
func estimateTokens(content string) int {
	return (len(content) + 3) / 4
}
