// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session is a persisted login session.
type Session struct {
	ID        ulid.ULID
	SessionID string // opaque cookie value
	UserID    int64
	CreatedAt time.Time
}

// NewSession creates a validated Session stamped with createdAt.
func NewSession(sessionID string, userID int64, createdAt time.Time) (*Session, error) {
	if sessionID == "" {
		return nil, oops.Code("SESSION_INVALID_ID").Errorf("session id cannot be empty")
	}
	if userID <= 0 {
		return nil, oops.Code("SESSION_INVALID_USER").With("user_id", userID).Errorf("user id must be positive")
	}
	if createdAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_CREATED_AT").Errorf("creation time cannot be zero")
	}
	return &Session{
		ID:        ulid.Make(),
		SessionID: sessionID,
		UserID:    userID,
		CreatedAt: createdAt,
	}, nil
}

// SessionRepository persists sessions for database-backed strategies.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// FindBySessionID returns the sessions stored under a session id,
	// oldest first. Returns an empty slice when there are none.
	FindBySessionID(ctx context.Context, sessionID string) ([]*Session, error)

	// Delete removes a session by its row ID.
	// Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id ulid.ULID) error
}
