// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package strategy

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/samber/oops"

	"github.com/holomush/apiauth/internal/auth"
)

// AuthorizationHeader carries Basic credentials.
const AuthorizationHeader = "Authorization"

var basicPattern = regexp.MustCompile(`^Basic (\S+)$`)

// BasicAuth authenticates the Authorization header against the credential store.
type BasicAuth struct {
	NullAuth
	users  auth.CredentialStore
	hasher auth.PasswordHasher
	logger *slog.Logger
}

// NewBasicAuth creates a BasicAuth.
func NewBasicAuth(users auth.CredentialStore, hasher auth.PasswordHasher, opts ...Option) *BasicAuth {
	o := buildOptions(opts)
	return &BasicAuth{users: users, hasher: hasher, logger: o.logger}
}

// Name returns "basic_auth".
func (*BasicAuth) Name() string { return KindBasic }

// Marker returns the Authorization header.
func (*BasicAuth) Marker(r Request) Marker {
	return headerMarker(r, AuthorizationHeader)
}

// ExtractBase64Marker returns the token of a "Basic <token>" header, or "".
func ExtractBase64Marker(header string) string {
	m := basicPattern.FindStringSubmatch(strings.TrimSpace(header))
	if m == nil {
		return ""
	}
	return m[1]
}

// DecodeBase64Marker decodes a standard base64 token into UTF-8 text.
// Reports false for invalid base64, non-zero padding bits or invalid UTF-8.
func DecodeBase64Marker(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	b, err := base64.StdEncoding.Strict().DecodeString(token)
	if err != nil || !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}

// ExtractCredentials splits "email:password" on the first colon.
func ExtractCredentials(decoded string) (email, password string, ok bool) {
	email, password, ok = strings.Cut(decoded, ":")
	if !ok {
		return "", "", false
	}
	return email, password, true
}

// CurrentUser returns the user whose email and password the header carries.
func (b *BasicAuth) CurrentUser(ctx context.Context, r Request) (*auth.User, error) {
	m := b.Marker(r)
	if !m.Present() {
		return nil, nil
	}
	decoded, ok := DecodeBase64Marker(ExtractBase64Marker(m.Value))
	if !ok {
		return nil, nil
	}
	email, password, ok := ExtractCredentials(decoded)
	if !ok {
		return nil, nil
	}

	u, err := b.users.Find(ctx, auth.Fields{auth.FieldEmail: email})
	if errors.Is(err, auth.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("STRATEGY_USER_LOOKUP_FAILED").With("strategy", KindBasic).Wrap(err)
	}

	valid, err := b.hasher.Verify(password, u.HashedPassword)
	if err != nil {
		b.logger.WarnContext(ctx, "stored password hash unusable", "user_id", u.ID, "error", err)
		return nil, nil
	}
	if !valid {
		return nil, nil
	}
	return u, nil
}
