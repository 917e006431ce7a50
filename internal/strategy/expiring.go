// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package strategy

import (
	"context"
	"time"

	"github.com/holomush/apiauth/internal/auth"
)

// expiry treats sessions older than ttl as invalid. A ttl <= 0 never expires.
type expiry struct {
	ttl time.Duration
}

func (e expiry) expired(createdAt, now time.Time) bool {
	if e.ttl <= 0 {
		return false
	}
	if createdAt.IsZero() {
		return true
	}
	return createdAt.Add(e.ttl).Before(now)
}

// ExpiringSessionAuth is a SessionAuth whose sessions lapse after a TTL.
// Expired entries stay in the registry until destroyed.
type ExpiringSessionAuth struct {
	session *SessionAuth
	expiry  expiry
}

// NewExpiringSessionAuth wraps session with a TTL. The wrapped strategy's
// clock is used for both creation and expiry checks.
func NewExpiringSessionAuth(session *SessionAuth, ttl time.Duration) *ExpiringSessionAuth {
	return &ExpiringSessionAuth{session: session, expiry: expiry{ttl: ttl}}
}

// Name returns "session_exp_auth".
func (*ExpiringSessionAuth) Name() string { return KindExpiringSession }

// TTL returns the session lifetime; zero or negative means no expiry.
func (e *ExpiringSessionAuth) TTL() time.Duration { return e.expiry.ttl }

// CookieName returns the session cookie name.
func (e *ExpiringSessionAuth) CookieName() string { return e.session.CookieName() }

// RequiresAuth delegates to the wrapped SessionAuth.
func (e *ExpiringSessionAuth) RequiresAuth(path string, excluded []string) bool {
	return e.session.RequiresAuth(path, excluded)
}

// Marker delegates to the wrapped SessionAuth.
func (e *ExpiringSessionAuth) Marker(r Request) Marker {
	return e.session.Marker(r)
}

// CreateSession delegates to the wrapped SessionAuth.
func (e *ExpiringSessionAuth) CreateSession(ctx context.Context, userID int64) (string, error) {
	return e.session.CreateSession(ctx, userID)
}

// UserIDForSessionID returns the user id for an unexpired session.
func (e *ExpiringSessionAuth) UserIDForSessionID(_ context.Context, sessionID string) (int64, bool, error) {
	if sessionID == "" {
		return 0, false, nil
	}
	entry, ok := e.session.registry.Get(sessionID)
	if !ok || e.expiry.expired(entry.CreatedAt, e.session.opts.now()) {
		return 0, false, nil
	}
	return entry.UserID, true, nil
}

// CurrentUser returns the user of an unexpired session.
func (e *ExpiringSessionAuth) CurrentUser(ctx context.Context, r Request) (*auth.User, error) {
	return currentUserFromCookie(ctx, r, e.session.cookie, e.UserIDForSessionID, e.session.users)
}

// DestroySession delegates to the wrapped SessionAuth.
func (e *ExpiringSessionAuth) DestroySession(ctx context.Context, r Request) (bool, error) {
	return e.session.DestroySession(ctx, r)
}
