// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/apiauth/internal/auth"
)

// SessionRepository implements auth.SessionRepository using PostgreSQL.
// Session ids are stored as their SHA-256 hash.
type SessionRepository struct {
	pool poolIface
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool poolIface) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_sessions (id, token_hash, user_id, created_at)
		VALUES ($1, $2, $3, $4)
	`,
		session.ID.String(),
		auth.HashToken(session.SessionID),
		session.UserID,
		session.CreatedAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert user_session").
			With("user_id", session.UserID).
			Wrap(err)
	}
	return nil
}

// FindBySessionID returns the sessions stored under sessionID, oldest first.
func (r *SessionRepository) FindBySessionID(ctx context.Context, sessionID string) ([]*auth.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, created_at
		FROM user_sessions
		WHERE token_hash = $1
		ORDER BY created_at, id
	`, auth.HashToken(sessionID))
	if err != nil {
		return nil, oops.Code("SESSION_FIND_FAILED").With("operation", "find sessions by token hash").Wrap(err)
	}
	defer rows.Close()

	var sessions []*auth.Session
	for rows.Next() {
		var (
			idStr     string
			userID    int64
			createdAt time.Time
		)
		if err := rows.Scan(&idStr, &userID, &createdAt); err != nil {
			return nil, oops.Code("SESSION_SCAN_FAILED").Wrap(err)
		}
		id, err := ulid.Parse(idStr)
		if err != nil {
			return nil, oops.Code("SESSION_PARSE_FAILED").With("id", idStr).Wrap(err)
		}
		sessions = append(sessions, &auth.Session{
			ID:        id,
			SessionID: sessionID,
			UserID:    userID,
			CreatedAt: createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("SESSION_FIND_FAILED").With("operation", "iterate sessions").Wrap(err)
	}
	return sessions, nil
}

// Delete removes a session by its row ID.
func (r *SessionRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM user_sessions WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}
