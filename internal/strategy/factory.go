// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package strategy

import (
	"time"

	"github.com/samber/oops"

	"github.com/holomush/apiauth/internal/auth"
)

// Strategy kinds accepted by New.
const (
	KindNone            = "none"
	KindAuth            = "auth"
	KindBasic           = "basic_auth"
	KindSession         = "session_auth"
	KindExpiringSession = "session_exp_auth"
	KindDatabaseSession = "session_db_auth"
)

// Kinds lists every kind New accepts, "" excluded.
var Kinds = []string{KindNone, KindAuth, KindBasic, KindSession, KindExpiringSession, KindDatabaseSession}

// ErrUnknownStrategy is returned by New for an unrecognized kind.
var ErrUnknownStrategy = oops.Code("STRATEGY_UNKNOWN").Errorf("unknown auth strategy")

// Deps carries what the strategies may need. Each kind checks only the
// fields it uses.
type Deps struct {
	Users    auth.CredentialStore
	Hasher   auth.PasswordHasher
	Registry *Registry
	Sessions auth.SessionRepository
	Cookie   string
	TTL      time.Duration
	Options  []Option
}

// New builds the strategy for kind. "" and "auth" select NullAuth.
func New(kind string, deps Deps) (Strategy, error) {
	switch kind {
	case "", KindNone, KindAuth:
		return NullAuth{}, nil
	case KindBasic:
		if deps.Users == nil || deps.Hasher == nil {
			return nil, missingDep(kind, "users and hasher")
		}
		return NewBasicAuth(deps.Users, deps.Hasher, deps.Options...), nil
	case KindSession, KindExpiringSession:
		if deps.Users == nil || deps.Registry == nil {
			return nil, missingDep(kind, "users and registry")
		}
		s := NewSessionAuth(deps.Cookie, deps.Users, deps.Registry, deps.Options...)
		if kind == KindSession {
			return s, nil
		}
		return NewExpiringSessionAuth(s, deps.TTL), nil
	case KindDatabaseSession:
		if deps.Users == nil || deps.Sessions == nil {
			return nil, missingDep(kind, "users and sessions")
		}
		return NewDatabaseSessionAuth(deps.Cookie, deps.Users, deps.Sessions, deps.TTL, deps.Options...), nil
	default:
		return nil, oops.Code("STRATEGY_UNKNOWN").With("kind", kind).Wrap(ErrUnknownStrategy)
	}
}

func missingDep(kind, deps string) error {
	return oops.Code("STRATEGY_MISSING_DEP").
		With("kind", kind).
		Errorf("%s strategy requires %s", kind, deps)
}
