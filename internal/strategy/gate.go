// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package strategy

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/holomush/apiauth/internal/auth"
	"github.com/holomush/apiauth/pkg/errutil"
)

// Gate outcomes reported to a Recorder.
const (
	ResultExcluded     = "excluded"
	ResultUnauthorized = "unauthorized"
	ResultForbidden    = "forbidden"
	ResultError        = "error"
	ResultOK           = "ok"
)

// Recorder receives one call per request passing through a Gate.
type Recorder interface {
	RecordAuthCheck(strategy, result string)
}

type userKey struct{}

// WithUser returns ctx carrying the authenticated user.
func WithUser(ctx context.Context, u *auth.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the user stored by WithUser, or nil.
func UserFromContext(ctx context.Context) *auth.User {
	u, _ := ctx.Value(userKey{}).(*auth.User)
	return u
}

type gate struct {
	strategy Strategy
	excluded []string
	cookie   string
	recorder Recorder
	logger   *slog.Logger
}

// GateOption configures Gate.
type GateOption func(*gate)

// WithSessionCookie makes the gate treat the named cookie as a credential
// marker in addition to the strategy's own. Cookie-based strategies supply
// their cookie name automatically.
func WithSessionCookie(name string) GateOption {
	return func(g *gate) { g.cookie = name }
}

// WithRecorder reports every decision to r.
func WithRecorder(r Recorder) GateOption {
	return func(g *gate) { g.recorder = r }
}

// WithGateLogger sets the logger for store failures.
func WithGateLogger(logger *slog.Logger) GateOption {
	return func(g *gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Gate returns middleware that enforces s on every path not in excluded.
// Requests without any credential marker get 401, requests whose marker does
// not resolve to a user get 403, and store failures get 500. Authenticated
// requests continue with the user available through UserFromContext.
func Gate(s Strategy, excluded []string, opts ...GateOption) func(http.Handler) http.Handler {
	g := &gate{strategy: s, excluded: excluded, logger: slog.Default()}
	if c, ok := s.(interface{ CookieName() string }); ok {
		g.cookie = c.CookieName()
	}
	for _, opt := range opts {
		opt(g)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := FromHTTP(r)
			if !g.strategy.RequiresAuth(req.Path(), g.excluded) {
				g.record(ResultExcluded)
				next.ServeHTTP(w, r)
				return
			}

			if !g.strategy.Marker(req).Present() && !cookieMarker(req, g.cookie).Present() {
				g.record(ResultUnauthorized)
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			u, err := g.strategy.CurrentUser(r.Context(), req)
			if err != nil {
				g.record(ResultError)
				errutil.LogErrorContext(r.Context(), g.logger, "resolve current user", err)
				writeError(w, http.StatusInternalServerError, "Internal Server Error")
				return
			}
			if u == nil {
				g.record(ResultForbidden)
				writeError(w, http.StatusForbidden, "Forbidden")
				return
			}

			g.record(ResultOK)
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

func (g *gate) record(result string) {
	if g.recorder != nil {
		g.recorder.RecordAuthCheck(g.strategy.Name(), result)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may have disconnected
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
