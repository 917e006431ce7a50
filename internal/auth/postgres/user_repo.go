// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/holomush/apiauth/internal/auth"
)

const userColumns = `id, email, hashed_password, session_id, reset_token`

// UserRepository implements auth.CredentialStore using PostgreSQL.
type UserRepository struct {
	pool poolIface
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool}
}

// Find returns the lowest-ID user matching every filter entry.
func (r *UserRepository) Find(ctx context.Context, filter auth.Fields) (*auth.User, error) {
	if err := filter.ValidateFilter(); err != nil {
		return nil, err
	}

	keys := filter.Keys()
	conds := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		conds[i] = fmt.Sprintf("%s = $%d", k, i+1)
		args[i] = filter[k]
	}

	//nolint:gosec // column names come from the validated Field set
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY id LIMIT 1`

	var u auth.User
	err := r.pool.QueryRow(ctx, query, args...).
		Scan(&u.ID, &u.Email, &u.HashedPassword, &u.SessionID, &u.ResetToken)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_FIND_FAILED").
			With("operation", "find user").
			With("fields", fieldNames(keys)).
			Wrap(err)
	}
	return &u, nil
}

// Insert stores a new user and returns it with its generated ID.
func (r *UserRepository) Insert(ctx context.Context, email string, hashedPassword []byte) (*auth.User, error) {
	u := &auth.User{Email: email, HashedPassword: hashedPassword}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, hashed_password)
		VALUES ($1, $2)
		RETURNING id
	`, email, hashedPassword).Scan(&u.ID)
	if isUniqueViolation(err) {
		return nil, oops.Code("USER_DUPLICATE").Wrap(auth.ErrDuplicateUser)
	}
	if err != nil {
		return nil, oops.Code("USER_INSERT_FAILED").With("operation", "insert user").Wrap(err)
	}
	return u, nil
}

// Update sets the given columns on the user with the given ID.
func (r *UserRepository) Update(ctx context.Context, id int64, fields auth.Fields) error {
	if err := fields.ValidateUpdate(); err != nil {
		return err
	}
	if len(fields) == 0 {
		return r.exists(ctx, id)
	}

	keys := fields.Keys()
	sets := make([]string, len(keys))
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		sets[i] = fmt.Sprintf("%s = $%d", k, i+1)
		args = append(args, fields[k])
	}
	args = append(args, id)

	//nolint:gosec // column names come from the validated Field set
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))

	result, err := r.pool.Exec(ctx, query, args...)
	if isUniqueViolation(err) {
		return oops.Code("USER_DUPLICATE").With("id", id).Wrap(auth.ErrDuplicateUser)
	}
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("id", id).
			With("fields", fieldNames(keys)).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) exists(ctx context.Context, id int64) error {
	var found int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM users WHERE id = $1`, id).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return oops.Code("USER_FIND_FAILED").With("operation", "check user exists").With("id", id).Wrap(err)
	}
	return nil
}

func fieldNames(keys []auth.Field) []string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = string(k)
	}
	return names
}
