// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package strategy

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/apiauth/internal/auth"
)

// DatabaseSessionAuth keeps sessions in an auth.SessionRepository so they
// survive restarts, with the same cookie marker and TTL rule as
// ExpiringSessionAuth.
type DatabaseSessionAuth struct {
	NullAuth
	cookie   string
	users    auth.CredentialStore
	sessions auth.SessionRepository
	expiry   expiry
	opts     options
}

// NewDatabaseSessionAuth creates a DatabaseSessionAuth.
func NewDatabaseSessionAuth(cookie string, users auth.CredentialStore, sessions auth.SessionRepository, ttl time.Duration, opts ...Option) *DatabaseSessionAuth {
	if cookie == "" {
		cookie = DefaultSessionCookie
	}
	return &DatabaseSessionAuth{
		cookie:   cookie,
		users:    users,
		sessions: sessions,
		expiry:   expiry{ttl: ttl},
		opts:     buildOptions(opts),
	}
}

// Name returns "session_db_auth".
func (*DatabaseSessionAuth) Name() string { return KindDatabaseSession }

// CookieName returns the session cookie name.
func (d *DatabaseSessionAuth) CookieName() string { return d.cookie }

// TTL returns the session lifetime; zero or negative means no expiry.
func (d *DatabaseSessionAuth) TTL() time.Duration { return d.expiry.ttl }

// Marker returns the session cookie.
func (d *DatabaseSessionAuth) Marker(r Request) Marker {
	return cookieMarker(r, d.cookie)
}

// CreateSession persists a new session for userID.
func (d *DatabaseSessionAuth) CreateSession(ctx context.Context, userID int64) (string, error) {
	if userID <= 0 {
		return "", nil
	}
	id, err := d.opts.tokens()
	if err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").With("strategy", KindDatabaseSession).Wrap(err)
	}
	session, err := auth.NewSession(id, userID, d.opts.now())
	if err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").With("strategy", KindDatabaseSession).Wrap(err)
	}
	if err := d.sessions.Create(ctx, session); err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").
			With("strategy", KindDatabaseSession).
			With("user_id", userID).
			Wrap(err)
	}
	return id, nil
}

// UserIDForSessionID returns the user id of the oldest stored session with
// this id, unless it has expired. Expired rows are left in place.
func (d *DatabaseSessionAuth) UserIDForSessionID(ctx context.Context, sessionID string) (int64, bool, error) {
	if sessionID == "" {
		return 0, false, nil
	}
	found, err := d.sessions.FindBySessionID(ctx, sessionID)
	if err != nil {
		return 0, false, oops.Code("SESSION_LOOKUP_FAILED").With("strategy", KindDatabaseSession).Wrap(err)
	}
	if len(found) == 0 {
		return 0, false, nil
	}
	s := found[0]
	if d.expiry.expired(s.CreatedAt, d.opts.now()) {
		return 0, false, nil
	}
	return s.UserID, true, nil
}

// CurrentUser returns the user of an unexpired stored session.
func (d *DatabaseSessionAuth) CurrentUser(ctx context.Context, r Request) (*auth.User, error) {
	return currentUserFromCookie(ctx, r, d.cookie, d.UserIDForSessionID, d.users)
}

// DestroySession deletes the first stored session the cookie names.
func (d *DatabaseSessionAuth) DestroySession(ctx context.Context, r Request) (bool, error) {
	m := d.Marker(r)
	if !m.Present() {
		return false, nil
	}
	found, err := d.sessions.FindBySessionID(ctx, m.Value)
	if err != nil {
		return false, oops.Code("SESSION_DESTROY_FAILED").With("strategy", KindDatabaseSession).Wrap(err)
	}
	if len(found) == 0 {
		return false, nil
	}
	err = d.sessions.Delete(ctx, found[0].ID)
	if errors.Is(err, auth.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, oops.Code("SESSION_DESTROY_FAILED").
			With("strategy", KindDatabaseSession).
			With("id", found[0].ID.String()).
			Wrap(err)
	}
	return true, nil
}
