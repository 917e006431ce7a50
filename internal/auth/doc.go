// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides the credential and session primitives of the API.
//
// # Domain Types
//
// User is the persisted credential record. Fields carries filter and update
// values keyed by the column names accepted by a CredentialStore; it is
// checked with Fields.Validate before reaching storage. Session is a
// persisted login session used by database-backed strategies.
//
// # Services
//
// Service coordinates the account lifecycle on top of a CredentialStore and
// a PasswordHasher:
//   - RegisterUser, ValidLogin - account creation and credential checks
//   - CreateSession, GetUserFromSessionID, DestroySession - per-user session id
//   - GetResetPasswordToken, UpdatePassword - password reset flow
//
// Services are created with New*Service constructors that validate dependencies.
package auth
