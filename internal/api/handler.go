// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package api serves the authenticated HTTP API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/holomush/apiauth/internal/auth"
	"github.com/holomush/apiauth/internal/strategy"
	"github.com/holomush/apiauth/pkg/errutil"
)

// ProfileCookie carries the session id stored on the user record by the
// /sessions routes. It is independent of the strategy's session cookie.
const ProfileCookie = "session_id"

// Metrics receives API events.
type Metrics interface {
	strategy.Recorder
	RecordSessionCreated(strategy string)
	RecordSessionDestroyed(strategy string)
	RecordUserRegistered()
}

// Config holds the Handler dependencies.
type Config struct {
	Strategy strategy.Strategy
	Service  *auth.Service
	Users    auth.CredentialStore
	Hasher   auth.PasswordHasher

	// Excluded lists paths the gate lets through unauthenticated.
	Excluded []string
	// SessionCookie names the cookie set on login. Cookie-based strategies
	// override it with their own.
	SessionCookie string

	Metrics Metrics // optional
	Logger  *slog.Logger
}

// Handler serves /api/v1.
type Handler struct {
	strategy strategy.Strategy
	service  *auth.Service
	users    auth.CredentialStore
	hasher   auth.PasswordHasher
	excluded []string
	cookie   string
	metrics  Metrics
	logger   *slog.Logger
}

// New creates a Handler.
func New(cfg Config) (*Handler, error) {
	switch {
	case cfg.Strategy == nil:
		return nil, oops.Code("API_INVALID_CONFIG").Errorf("strategy is required")
	case cfg.Service == nil:
		return nil, oops.Code("API_INVALID_CONFIG").Errorf("auth service is required")
	case cfg.Users == nil:
		return nil, oops.Code("API_INVALID_CONFIG").Errorf("credential store is required")
	case cfg.Hasher == nil:
		return nil, oops.Code("API_INVALID_CONFIG").Errorf("password hasher is required")
	}

	h := &Handler{
		strategy: cfg.Strategy,
		service:  cfg.Service,
		users:    cfg.Users,
		hasher:   cfg.Hasher,
		excluded: cfg.Excluded,
		cookie:   cfg.SessionCookie,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
	if c, ok := cfg.Strategy.(interface{ CookieName() string }); ok {
		h.cookie = c.CookieName()
	}
	if h.cookie == "" {
		h.cookie = strategy.DefaultSessionCookie
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h, nil
}

// Routes returns the API router. Account routes (registration, password
// reset and the /sessions profile flow) bypass the gate; everything else is
// gated by the strategy.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Post("/users", h.HandleRegister)
			r.Post("/reset_password", h.HandleResetToken)
			r.Put("/reset_password", h.HandleUpdatePassword)
			r.Post("/sessions", h.HandleProfileLogin)
			r.Delete("/sessions", h.HandleProfileLogout)
			r.Get("/profile", h.HandleProfile)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.gate())
			r.Get("/status", h.HandleStatus)
			r.Get("/unauthorized", h.HandleUnauthorized)
			r.Get("/forbidden", h.HandleForbidden)
			r.Get("/users/me", h.HandleMe)
			r.Post("/auth_session/login", h.HandleLogin)
			r.Delete("/auth_session/logout", h.HandleLogout)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	return r
}

func (h *Handler) gate() func(http.Handler) http.Handler {
	opts := []strategy.GateOption{
		strategy.WithSessionCookie(h.cookie),
		strategy.WithGateLogger(h.logger),
	}
	if h.metrics != nil {
		opts = append(opts, strategy.WithRecorder(h.metrics))
	}
	return strategy.Gate(h.strategy, h.excluded, opts...)
}

// HandleStatus implements GET /api/v1/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// HandleUnauthorized implements GET /api/v1/unauthorized.
func (h *Handler) HandleUnauthorized(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusUnauthorized, "Unauthorized")
}

// HandleForbidden implements GET /api/v1/forbidden.
func (h *Handler) HandleForbidden(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusForbidden, "Forbidden")
}

// HandleMe implements GET /api/v1/users/me.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	u := strategy.UserFromContext(r.Context())
	if u == nil {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	writeJSON(w, http.StatusOK, toUserJSON(u))
}

// HandleLogin implements POST /api/v1/auth_session/login.
//
// Input: form fields email, password.
// Output: the user, with the session cookie set.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email := r.FormValue("email")
	password := r.FormValue("password")

	if email == "" {
		writeError(w, http.StatusBadRequest, "email missing")
		return
	}
	if password == "" {
		writeError(w, http.StatusBadRequest, "password missing")
		return
	}

	u, err := h.users.Find(ctx, auth.Fields{auth.FieldEmail: email})
	if errors.Is(err, auth.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no user found for this email")
		return
	}
	if err != nil {
		h.internalError(w, r, "login lookup failed", err)
		return
	}

	ok, err := h.hasher.Verify(password, u.HashedPassword)
	if err != nil {
		h.internalError(w, r, "password verification failed", err)
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "wrong password")
		return
	}

	sessionID, err := h.strategy.CreateSession(ctx, u.ID)
	if err != nil {
		h.internalError(w, r, "session creation failed", err)
		return
	}
	if sessionID != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     h.cookie,
			Value:    sessionID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		if h.metrics != nil {
			h.metrics.RecordSessionCreated(h.strategy.Name())
		}
	}

	h.logger.InfoContext(ctx, "user logged in", "user_id", u.ID, "strategy", h.strategy.Name())
	writeJSON(w, http.StatusOK, toUserJSON(u))
}

// HandleLogout implements DELETE /api/v1/auth_session/logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	destroyed, err := h.strategy.DestroySession(r.Context(), strategy.FromHTTP(r))
	if err != nil {
		h.internalError(w, r, "session destroy failed", err)
		return
	}
	if !destroyed {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if h.metrics != nil {
		h.metrics.RecordSessionDestroyed(h.strategy.Name())
	}
	http.SetCookie(w, &http.Cookie{Name: h.cookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{})
}

// HandleRegister implements POST /api/v1/users.
//
// Input: form fields email, password.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")
	if email == "" || password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	_, err := h.service.RegisterUser(r.Context(), email, password)
	if errors.Is(err, auth.ErrDuplicateUser) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "email already registered"})
		return
	}
	if err != nil {
		h.internalError(w, r, "registration failed", err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordUserRegistered()
	}
	writeJSON(w, http.StatusCreated, map[string]string{"email": email, "message": "user created"})
}

// HandleResetToken implements POST /api/v1/reset_password.
func (h *Handler) HandleResetToken(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email missing")
		return
	}

	token, err := h.service.GetResetPasswordToken(r.Context(), email)
	if errors.Is(err, auth.ErrUserNotFound) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	if err != nil {
		h.internalError(w, r, "reset token failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": email, "reset_token": token})
}

// HandleUpdatePassword implements PUT /api/v1/reset_password.
//
// Input: form fields email, reset_token, new_password.
func (h *Handler) HandleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	token := r.FormValue("reset_token")
	password := r.FormValue("new_password")
	if token == "" || password == "" {
		writeError(w, http.StatusBadRequest, "reset_token and new_password are required")
		return
	}

	err := h.service.UpdatePassword(r.Context(), token, password)
	if errors.Is(err, auth.ErrInvalidResetToken) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	if err != nil {
		h.internalError(w, r, "password update failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": email, "message": "Password updated"})
}

// HandleProfileLogin implements POST /api/v1/sessions.
//
// Input: form fields email, password.
// Output: the email, with the profile cookie set.
func (h *Handler) HandleProfileLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email := r.FormValue("email")
	password := r.FormValue("password")
	if email == "" || password == "" || !h.service.ValidLogin(ctx, email, password) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	sessionID, err := h.service.CreateSession(ctx, email)
	if err != nil {
		h.internalError(w, r, "profile session creation failed", err)
		return
	}
	if sessionID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     ProfileCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"email": email, "message": "logged in"})
}

// HandleProfile implements GET /api/v1/profile.
func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := h.profileUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": u.Email})
}

// HandleProfileLogout implements DELETE /api/v1/sessions.
func (h *Handler) HandleProfileLogout(w http.ResponseWriter, r *http.Request) {
	u, ok := h.profileUser(w, r)
	if !ok {
		return
	}
	if err := h.service.DestroySession(r.Context(), u.ID); err != nil {
		h.internalError(w, r, "profile session destroy failed", err)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: ProfileCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{})
}

// profileUser resolves the profile cookie. It writes 403 and reports false
// when the cookie is missing or unknown.
func (h *Handler) profileUser(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	var sessionID string
	if c, err := r.Cookie(ProfileCookie); err == nil {
		sessionID = c.Value
	}
	u, err := h.service.GetUserFromSessionID(r.Context(), sessionID)
	if err != nil {
		h.internalError(w, r, "profile lookup failed", err)
		return nil, false
	}
	if u == nil {
		writeError(w, http.StatusForbidden, "Forbidden")
		return nil, false
	}
	return u, true
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	errutil.LogErrorContext(r.Context(), h.logger, msg, err)
	writeError(w, http.StatusInternalServerError, "Internal Server Error")
}

type userJSON struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

func toUserJSON(u *auth.User) userJSON {
	return userJSON{ID: u.ID, Email: u.Email}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may have disconnected
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
