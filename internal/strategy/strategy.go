// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package strategy implements the request authentication strategies.
//
// Each variant satisfies Strategy. Variants compose rather than inherit:
// BasicAuth and SessionAuth embed NullAuth for the steps they do not change,
// ExpiringSessionAuth wraps a *SessionAuth and adds a TTL check, and
// DatabaseSessionAuth reads the same session cookie but keeps its sessions
// in an auth.SessionRepository.
package strategy

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/samber/oops"

	"github.com/holomush/apiauth/internal/auth"
)

// Strategy authenticates requests.
type Strategy interface {
	// Name identifies the strategy in logs and metrics.
	Name() string

	// RequiresAuth reports whether path must be authenticated.
	RequiresAuth(path string, excluded []string) bool

	// Marker extracts the raw credential marker from the request.
	Marker(r Request) Marker

	// CurrentUser resolves the request to a user. It returns (nil, nil)
	// when the request is unauthenticated or its credentials are invalid,
	// and an error only when the credential store fails.
	CurrentUser(ctx context.Context, r Request) (*auth.User, error)

	// CreateSession starts a session for userID and returns its id, or ""
	// if the strategy has no sessions or userID is not valid.
	CreateSession(ctx context.Context, userID int64) (string, error)

	// DestroySession ends the session carried by the request and reports
	// whether one was removed.
	DestroySession(ctx context.Context, r Request) (bool, error)
}

// MarkerSource says which transport field a marker was read from.
type MarkerSource int

// Marker sources.
const (
	SourceNone MarkerSource = iota
	SourceHeader
	SourceCookie
)

// String returns the source name.
func (s MarkerSource) String() string {
	switch s {
	case SourceHeader:
		return "header"
	case SourceCookie:
		return "cookie"
	default:
		return "none"
	}
}

// Marker is the raw credential read from a request: the value of the named
// header or cookie given by Source.
type Marker struct {
	Source MarkerSource
	Name   string
	Value  string
}

// Present reports whether the marker carries a value.
func (m Marker) Present() bool {
	return m.Source != SourceNone && m.Value != ""
}

// RequiresAuth reports whether path needs authentication given the excluded
// paths. An empty path or an empty exclusion list always requires auth.
// Otherwise path gains a trailing slash if it lacks one and is exempt only
// on an exact match.
func RequiresAuth(path string, excluded []string) bool {
	if path == "" || len(excluded) == 0 {
		return true
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return !slices.Contains(excluded, path)
}

// NullAuth requires authentication everywhere and never authenticates.
type NullAuth struct{}

// Name returns "none".
func (NullAuth) Name() string { return KindNone }

// RequiresAuth delegates to the package RequiresAuth.
func (NullAuth) RequiresAuth(path string, excluded []string) bool {
	return RequiresAuth(path, excluded)
}

// Marker returns an absent marker.
func (NullAuth) Marker(Request) Marker { return Marker{} }

// CurrentUser returns nil.
func (NullAuth) CurrentUser(context.Context, Request) (*auth.User, error) { return nil, nil }

// CreateSession returns "".
func (NullAuth) CreateSession(context.Context, int64) (string, error) { return "", nil }

// DestroySession returns false.
func (NullAuth) DestroySession(context.Context, Request) (bool, error) { return false, nil }

// userByID fetches a user, mapping a miss to (nil, nil).
func userByID(ctx context.Context, users auth.CredentialStore, id int64) (*auth.User, error) {
	u, err := users.Find(ctx, auth.Fields{auth.FieldID: id})
	if errors.Is(err, auth.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("STRATEGY_USER_LOOKUP_FAILED").With("user_id", id).Wrap(err)
	}
	return u, nil
}

// sessionLookup maps a session id to a user id.
type sessionLookup func(ctx context.Context, sessionID string) (int64, bool, error)

// currentUserFromCookie reads the session cookie, maps it through lookup
// and fetches the user.
func currentUserFromCookie(ctx context.Context, r Request, cookie string, lookup sessionLookup, users auth.CredentialStore) (*auth.User, error) {
	m := cookieMarker(r, cookie)
	if !m.Present() {
		return nil, nil
	}
	userID, ok, err := lookup(ctx, m.Value)
	if err != nil || !ok {
		return nil, err
	}
	return userByID(ctx, users, userID)
}
