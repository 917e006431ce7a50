// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"bytes"
	"context"
	"slices"

	"github.com/samber/oops"
)

// Field names a column of the user record.
type Field string

// Fields accepted by CredentialStore filters and updates.
const (
	FieldID             Field = "id"
	FieldEmail          Field = "email"
	FieldHashedPassword Field = "hashed_password"
	FieldSessionID      Field = "session_id"
	FieldResetToken     Field = "reset_token"
)

// Fields maps column names to values. Value types are int64 for id, string
// for email, []byte for hashed_password, and string or nil for session_id and
// reset_token. A nil value in an update clears the column.
type Fields map[Field]any

// User is a registered account.
type User struct {
	ID             int64
	Email          string
	HashedPassword []byte
	SessionID      *string // nil when logged out
	ResetToken     *string // nil when no reset is pending
}

// CredentialStore persists users.
type CredentialStore interface {
	// Find returns the first user matching every filter entry.
	// Returns ErrNotFound if none matches and ErrInvalidAttribute for
	// unknown fields or an empty filter.
	Find(ctx context.Context, filter Fields) (*User, error)

	// Insert creates a user and returns it with its assigned ID.
	// Returns ErrDuplicateUser if the email is taken.
	Insert(ctx context.Context, email string, hashedPassword []byte) (*User, error)

	// Update sets the given fields on the user with the given ID.
	// Returns ErrNotFound if the user does not exist and
	// ErrInvalidAttribute for unknown fields or an attempt to change id.
	Update(ctx context.Context, id int64, fields Fields) error
}

// ValidateFilter checks that a lookup filter is non-empty and well-typed.
func (f Fields) ValidateFilter() error {
	if len(f) == 0 {
		return oops.Code("USER_INVALID_ATTRIBUTE").Wrapf(ErrInvalidAttribute, "filter is empty")
	}
	for _, k := range f.Keys() {
		if f[k] == nil {
			return oops.Code("USER_INVALID_ATTRIBUTE").
				With("field", string(k)).
				Wrapf(ErrInvalidAttribute, "filter value is nil")
		}
		if err := checkField(k, f[k]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateUpdate checks that an update is well-typed and does not touch id.
func (f Fields) ValidateUpdate() error {
	for _, k := range f.Keys() {
		if k == FieldID {
			return oops.Code("USER_INVALID_ATTRIBUTE").
				With("field", string(k)).
				Wrapf(ErrInvalidAttribute, "id cannot be updated")
		}
		if err := checkField(k, f[k]); err != nil {
			return err
		}
	}
	return nil
}

// Keys returns the field names in sorted order.
func (f Fields) Keys() []Field {
	keys := make([]Field, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func checkField(k Field, v any) error {
	ok := false
	switch k {
	case FieldID:
		_, ok = v.(int64)
	case FieldEmail:
		_, ok = v.(string)
	case FieldHashedPassword:
		_, ok = v.([]byte)
	case FieldSessionID, FieldResetToken:
		if v == nil {
			ok = true
		} else {
			_, ok = v.(string)
		}
	default:
		return oops.Code("USER_INVALID_ATTRIBUTE").
			With("field", string(k)).
			Wrapf(ErrInvalidAttribute, "unknown field %q", k)
	}
	if !ok {
		return oops.Code("USER_INVALID_ATTRIBUTE").
			With("field", string(k)).
			Wrapf(ErrInvalidAttribute, "field %q has wrong type %T", k, v)
	}
	return nil
}

// Matches reports whether u satisfies every entry of a validated filter.
func (u *User) Matches(filter Fields) bool {
	for k, v := range filter {
		switch k {
		case FieldID:
			if u.ID != v.(int64) {
				return false
			}
		case FieldEmail:
			if u.Email != v.(string) {
				return false
			}
		case FieldHashedPassword:
			if !bytes.Equal(u.HashedPassword, v.([]byte)) {
				return false
			}
		case FieldSessionID:
			if u.SessionID == nil || *u.SessionID != v.(string) {
				return false
			}
		case FieldResetToken:
			if u.ResetToken == nil || *u.ResetToken != v.(string) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Apply sets the fields of a validated update on u.
func (u *User) Apply(fields Fields) {
	for k, v := range fields {
		switch k {
		case FieldEmail:
			u.Email = v.(string)
		case FieldHashedPassword:
			u.HashedPassword = bytes.Clone(v.([]byte))
		case FieldSessionID:
			u.SessionID = optionalString(v)
		case FieldResetToken:
			u.ResetToken = optionalString(v)
		}
	}
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	c := *u
	c.HashedPassword = bytes.Clone(u.HashedPassword)
	if u.SessionID != nil {
		s := *u.SessionID
		c.SessionID = &s
	}
	if u.ResetToken != nil {
		s := *u.ResetToken
		c.ResetToken = &s
	}
	return &c
}

func optionalString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}
