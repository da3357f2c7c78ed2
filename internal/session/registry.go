package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrNotFound      = errors.New("session not found")
	ErrNotConfigured = errors.New("session not configured")
	ErrConfigured    = errors.New("session already configured")
	ErrTurnInFlight  = errors.New("assistant turn in flight")
	ErrSealed        = errors.New("session sealed")
)

// Registry is the process-wide map from connection identity to session state.
// It is the only mutable structure shared across connections; every session
// mutation happens under the registry lock so per-connection handlers and the
// janitor never race.
type Registry struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	inactivityTimeout time.Duration
	onExpire          func(*Session)
}

func NewRegistry(inactivityTimeout time.Duration) *Registry {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 10 * time.Minute
	}
	return &Registry{
		sessions:          make(map[string]*Session),
		inactivityTimeout: inactivityTimeout,
	}
}

func (r *Registry) SetExpireHook(hook func(*Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onExpire = hook
}

// Create registers a new uninitialized session for a connection identity.
func (r *Registry) Create(connID string) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:             connID,
		Phase:          PhaseUninitialized,
		StartedAt:      now,
		LastActivityAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[connID] = s
	return clone(s)
}

func (r *Registry) Get(connID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

// Configure seeds the history with the system directive and the scripted
// opening line, moving the session to Active. A second configure is rejected.
func (r *Registry) Configure(connID, directive, openingLine string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return ErrNotFound
	}
	if s.Phase != PhaseUninitialized {
		return ErrConfigured
	}
	s.History = append(s.History,
		Message{Role: RoleSystem, Content: directive},
		Message{Role: RoleUser, Content: openingLine},
	)
	s.Phase = PhaseActive
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// BeginTurn accepts a user utterance: it takes the turn lock, appends the
// user entry, and moves the session to AwaitingAssistant. Callers map the
// typed errors to silent drops per the protocol-misuse policy.
func (r *Registry) BeginTurn(connID, userText string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return ErrNotFound
	}
	switch {
	case s.Phase == PhaseSealed:
		return ErrSealed
	case s.Phase == PhaseUninitialized:
		return ErrNotConfigured
	case s.TurnLocked || s.Phase == PhaseAwaitingAssistant:
		return ErrTurnInFlight
	}
	s.TurnLocked = true
	s.Phase = PhaseAwaitingAssistant
	s.History = append(s.History, Message{Role: RoleUser, Content: userText})
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// CompleteTurn appends the assistant reply and returns the session to Active.
// The turn lock stays held until ReleaseTurn after the playback cooldown.
func (r *Registry) CompleteTurn(connID, assistantText string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return ErrNotFound
	}
	s.History = append(s.History, Message{Role: RoleAssistant, Content: assistantText})
	s.Phase = PhaseActive
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// AbortTurn returns control to Active without appending anything; used when
// generation failed and the apology turn replaced the reply.
func (r *Registry) AbortTurn(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return ErrNotFound
	}
	s.TurnLocked = false
	if s.Phase == PhaseAwaitingAssistant {
		s.Phase = PhaseActive
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// ReleaseTurn clears the turn lock once the estimated playback window of the
// reply has elapsed.
func (r *Registry) ReleaseTurn(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return ErrNotFound
	}
	s.TurnLocked = false
	return nil
}

// BeginFeedback appends the switch-out-of-character directive and moves the
// session to AwaitingAssistant under the turn lock, so a repeated request is
// rejected while the feedback turn generates. Rejected once sealed. A pending
// playback cooldown does not block it: the reply is already complete.
func (r *Registry) BeginFeedback(connID, directive string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return ErrNotFound
	}
	if s.Phase == PhaseSealed {
		return ErrSealed
	}
	if s.Phase == PhaseUninitialized {
		return ErrNotConfigured
	}
	if s.Phase == PhaseAwaitingAssistant {
		return ErrTurnInFlight
	}
	s.TurnLocked = true
	s.Phase = PhaseAwaitingAssistant
	s.History = append(s.History, Message{Role: RoleUser, Content: directive})
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// AbortFeedback drops the directive appended by BeginFeedback and returns the
// session to Active, so the client can request feedback again after a
// generation failure.
func (r *Registry) AbortFeedback(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return ErrNotFound
	}
	if s.Phase != PhaseAwaitingAssistant {
		return nil
	}
	if n := len(s.History); n > 0 && s.History[n-1].Role == RoleUser {
		s.History = s.History[:n-1]
	}
	s.TurnLocked = false
	s.Phase = PhaseActive
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// Seal appends the feedback turn and closes the session. A sealed session
// accepts no further user or audio events.
func (r *Registry) Seal(connID, feedbackText string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return ErrNotFound
	}
	if s.Phase == PhaseSealed {
		return ErrSealed
	}
	s.History = append(s.History, Message{Role: RoleAssistant, Content: feedbackText})
	s.Phase = PhaseSealed
	s.TurnLocked = false
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// History returns a copy of the append-only conversation history.
func (r *Registry) History(connID string) ([]Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Message, len(s.History))
	copy(out, s.History)
	return out, nil
}

// TouchAudio records inbound audio activity; it drives the keep-alive policy.
func (r *Registry) TouchAudio(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	s.LastAudioActivity = now
	s.LastActivityAt = now
	return nil
}

func (r *Registry) Touch(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return ErrNotFound
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// Remove discards the session on disconnect. No persistence.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, connID)
}

func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// StartJanitor expires sessions whose connections went silent without a clean
// disconnect, so the registry never grows unbounded.
func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.expireInactive()
			}
		}
	}()
}

func (r *Registry) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	r.mu.Lock()
	for id, s := range r.sessions {
		if now.Sub(s.LastActivityAt) < r.inactivityTimeout {
			continue
		}
		expired = append(expired, clone(s))
		delete(r.sessions, id)
	}
	hook := r.onExpire
	r.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func clone(s *Session) *Session {
	c := *s
	c.History = make([]Message, len(s.History))
	copy(c.History, s.History)
	return &c
}
