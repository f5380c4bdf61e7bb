package impersonate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// sessionState is one authenticated session: its bound identity plus an
// optional impersonation marker
type sessionState struct {
	identity      Identity
	impersonation *ImpersonationSession
}

// InMemSessionStore implements SessionStore using an in-memory map
type InMemSessionStore struct {
	sessions map[uuid.UUID]*sessionState
	mu       sync.Mutex
}

// NewInMemSessionStore creates a new in-memory session store
func NewInMemSessionStore() *InMemSessionStore {
	return &InMemSessionStore{
		sessions: make(map[uuid.UUID]*sessionState),
	}
}

// BindIdentity binds an identity to a session, creating the session if needed.
// Used at login time and by tests to seed session state.
func (s *InMemSessionStore) BindIdentity(sessionID uuid.UUID, identity Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = &sessionState{identity: identity}
}

// ActiveIdentity returns the identity currently bound to a session
func (s *InMemSessionStore) ActiveIdentity(sessionID uuid.UUID) (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, exists := s.sessions[sessionID]
	if !exists {
		return Identity{}, false
	}
	return state.identity, true
}

// GetImpersonation returns the impersonation marker for a session, or nil
func (s *InMemSessionStore) GetImpersonation(ctx context.Context, sessionID uuid.UUID) (*ImpersonationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, exists := s.sessions[sessionID]
	if !exists || state.impersonation == nil {
		return nil, nil
	}
	// Copy so callers cannot mutate the stored marker
	session := *state.impersonation
	return &session, nil
}

// SetImpersonation attaches an impersonation marker to a session
func (s *InMemSessionStore) SetImpersonation(ctx context.Context, sessionID uuid.UUID, session ImpersonationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, exists := s.sessions[sessionID]
	if !exists {
		state = &sessionState{}
		s.sessions[sessionID] = state
	}
	state.impersonation = &session
	return nil
}

// CreateIdentity creates a brand-new session identity
func (s *InMemSessionStore) CreateIdentity(ctx context.Context, userID uuid.UUID) (Identity, error) {
	return Identity{
		ID:       uuid.New(),
		UserID:   userID,
		IssuedAt: time.Now().UTC(),
	}, nil
}

// SwapIdentity atomically clears the impersonation marker and binds the
// session to the given identity
func (s *InMemSessionStore) SwapIdentity(ctx context.Context, sessionID uuid.UUID, identity Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, exists := s.sessions[sessionID]
	if !exists {
		state = &sessionState{}
		s.sessions[sessionID] = state
	}
	state.impersonation = nil
	state.identity = identity
	return nil
}
