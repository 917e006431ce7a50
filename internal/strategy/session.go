// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package strategy

import (
	"context"

	"github.com/samber/oops"

	"github.com/holomush/apiauth/internal/auth"
)

// DefaultSessionCookie is the session cookie name when none is configured.
const DefaultSessionCookie = "_my_session_id"

// SessionAuth keeps sessions in a shared in-memory Registry keyed by the
// value of a session cookie.
type SessionAuth struct {
	NullAuth
	cookie   string
	users    auth.CredentialStore
	registry *Registry
	opts     options
}

// NewSessionAuth creates a SessionAuth reading the named cookie.
func NewSessionAuth(cookie string, users auth.CredentialStore, registry *Registry, opts ...Option) *SessionAuth {
	if cookie == "" {
		cookie = DefaultSessionCookie
	}
	return &SessionAuth{
		cookie:   cookie,
		users:    users,
		registry: registry,
		opts:     buildOptions(opts),
	}
}

// Name returns "session_auth".
func (*SessionAuth) Name() string { return KindSession }

// CookieName returns the session cookie name.
func (s *SessionAuth) CookieName() string { return s.cookie }

// Marker returns the session cookie.
func (s *SessionAuth) Marker(r Request) Marker {
	return cookieMarker(r, s.cookie)
}

// CreateSession registers a new session id for userID.
func (s *SessionAuth) CreateSession(_ context.Context, userID int64) (string, error) {
	if userID <= 0 {
		return "", nil
	}
	id, err := s.opts.tokens()
	if err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").With("strategy", KindSession).Wrap(err)
	}
	s.registry.Put(id, Entry{UserID: userID, CreatedAt: s.opts.now()})
	return id, nil
}

// UserIDForSessionID returns the user id registered under sessionID.
func (s *SessionAuth) UserIDForSessionID(_ context.Context, sessionID string) (int64, bool, error) {
	if sessionID == "" {
		return 0, false, nil
	}
	e, ok := s.registry.Get(sessionID)
	if !ok {
		return 0, false, nil
	}
	return e.UserID, true, nil
}

// CurrentUser returns the user whose session the cookie names.
func (s *SessionAuth) CurrentUser(ctx context.Context, r Request) (*auth.User, error) {
	return currentUserFromCookie(ctx, r, s.cookie, s.UserIDForSessionID, s.users)
}

// DestroySession removes the session the cookie names.
func (s *SessionAuth) DestroySession(_ context.Context, r Request) (bool, error) {
	m := s.Marker(r)
	if !m.Present() {
		return false, nil
	}
	return s.registry.Delete(m.Value), nil
}
