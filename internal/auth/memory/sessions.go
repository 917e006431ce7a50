// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/apiauth/internal/auth"
)

// SessionRepository implements auth.SessionRepository in memory.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[ulid.ULID]auth.Session
}

// NewSessionRepository creates an empty SessionRepository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[ulid.ULID]auth.Session)}
}

// Create stores a copy of session.
func (r *SessionRepository) Create(_ context.Context, session *auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return oops.Code("SESSION_CREATE_FAILED").With("id", session.ID.String()).Errorf("session already exists")
	}
	r.sessions[session.ID] = *session
	return nil
}

// FindBySessionID returns copies of the sessions with the given session id,
// oldest first.
func (r *SessionRepository) FindBySessionID(_ context.Context, sessionID string) ([]*auth.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*auth.Session
	for _, s := range r.sessions {
		if s.SessionID == sessionID {
			c := s
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *auth.Session) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
	return out, nil
}

// Delete removes a session by row ID.
func (r *SessionRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return oops.Code("SESSION_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	delete(r.sessions, id)
	return nil
}

// Len returns the number of stored sessions.
func (r *SessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
