// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memory provides in-process implementations of the auth stores.
// Contents are lost when the process exits.
package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/samber/oops"

	"github.com/holomush/apiauth/internal/auth"
)

// UserStore implements auth.CredentialStore with a map guarded by a RWMutex.
type UserStore struct {
	mu     sync.RWMutex
	users  map[int64]*auth.User
	nextID int64
}

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[int64]*auth.User)}
}

// Find returns a copy of the lowest-ID user matching the filter.
func (s *UserStore) Find(_ context.Context, filter auth.Fields) (*auth.User, error) {
	if err := filter.ValidateFilter(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *auth.User
	for _, u := range s.users {
		if u.Matches(filter) && (found == nil || u.ID < found.ID) {
			found = u
		}
	}
	if found == nil {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return found.Clone(), nil
}

// Insert stores a new user with the next sequential ID.
func (s *UserStore) Insert(_ context.Context, email string, hashedPassword []byte) (*auth.User, error) {
	if email == "" {
		return nil, oops.Code("USER_INVALID_EMAIL").Errorf("email cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			return nil, oops.Code("USER_DUPLICATE").With("email", email).Wrap(auth.ErrDuplicateUser)
		}
	}

	s.nextID++
	u := &auth.User{
		ID:             s.nextID,
		Email:          email,
		HashedPassword: bytes.Clone(hashedPassword),
	}
	s.users[u.ID] = u
	return u.Clone(), nil
}

// Update applies fields to the user with the given ID.
func (s *UserStore) Update(_ context.Context, id int64, fields auth.Fields) error {
	if err := fields.ValidateUpdate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	if email, ok := fields[auth.FieldEmail].(string); ok && email != u.Email {
		for _, other := range s.users {
			if other.Email == email {
				return oops.Code("USER_DUPLICATE").With("email", email).Wrap(auth.ErrDuplicateUser)
			}
		}
	}
	u.Apply(fields)
	return nil
}

// Len returns the number of stored users.
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
