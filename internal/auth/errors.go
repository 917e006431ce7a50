// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateUser is returned when registering an email that already exists.
var ErrDuplicateUser = errors.New("user already exists")

// ErrUserNotFound is returned by the reset flow when no user has the given email.
var ErrUserNotFound = errors.New("user not found")

// ErrInvalidResetToken is returned when a reset token matches no user.
var ErrInvalidResetToken = errors.New("invalid reset token")

// ErrInvalidAttribute is returned when a filter or update names an unknown
// field or carries a value of the wrong type.
var ErrInvalidAttribute = errors.New("invalid attribute")

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = errors.New("password cannot be empty")
