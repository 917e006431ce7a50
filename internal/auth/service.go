// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/apiauth/pkg/errutil"
)

var tracer = otel.Tracer("apiauth/auth")

// dummyPassword is hashed once and verified against when an email is unknown,
// so failed logins for unknown and known accounts take comparable time.
const dummyPassword = "apiauth-timing-equalizer"

// Service provides account and session operations.
type Service struct {
	users     CredentialStore
	hasher    PasswordHasher
	tokens    TokenGenerator
	logger    *slog.Logger
	dummyHash func() ([]byte, error)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger used for login failures and store errors.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTokenGenerator overrides the source of session ids and reset tokens.
func WithTokenGenerator(gen TokenGenerator) ServiceOption {
	return func(s *Service) {
		if gen != nil {
			s.tokens = gen
		}
	}
}

// NewAuthService creates a new Service.
func NewAuthService(users CredentialStore, hasher PasswordHasher, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("credential store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("password hasher is required")
	}

	s := &Service{
		users:  users,
		hasher: hasher,
		tokens: GenerateToken,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dummyHash = sync.OnceValues(func() ([]byte, error) {
		return s.hasher.Hash(dummyPassword)
	})
	return s, nil
}

// RegisterUser hashes the password and stores a new user.
// Returns ErrDuplicateUser if the email is already registered.
func (s *Service) RegisterUser(ctx context.Context, email, password string) (_ *User, err error) {
	ctx, span := tracer.Start(ctx, "auth.register_user")
	defer func() { endSpan(span, err) }()

	if email == "" {
		return nil, oops.Code("AUTH_INVALID_EMAIL").Errorf("email cannot be empty")
	}

	_, err = s.users.Find(ctx, Fields{FieldEmail: email})
	switch {
	case err == nil:
		return nil, oops.Code("AUTH_DUPLICATE_USER").Wrapf(ErrDuplicateUser, "user %s already exists", email)
	case !errors.Is(err, ErrNotFound):
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "find user by email").Wrap(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}

	user, err := s.users.Insert(ctx, email, hash)
	if errors.Is(err, ErrDuplicateUser) {
		// lost a race with a concurrent registration
		return nil, oops.Code("AUTH_DUPLICATE_USER").Wrapf(ErrDuplicateUser, "user %s already exists", email)
	}
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "insert user").Wrap(err)
	}

	span.SetAttributes(attribute.Int64("user.id", user.ID))
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// ValidLogin reports whether the email and password identify a user.
// Store and hash failures are logged and reported as false.
func (s *Service) ValidLogin(ctx context.Context, email, password string) bool {
	ctx, span := tracer.Start(ctx, "auth.valid_login")
	defer span.End()

	user, err := s.users.Find(ctx, Fields{FieldEmail: email})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			errutil.LogErrorContext(ctx, s.logger, "login lookup failed", err)
		}
		s.verifyDummy(password)
		s.logger.InfoContext(ctx, "login rejected", "email", email, "reason", "unknown user")
		return false
	}

	ok, err := s.hasher.Verify(password, user.HashedPassword)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "password verification failed", err)
		return false
	}
	if !ok {
		s.logger.InfoContext(ctx, "login rejected", "email", email, "reason", "wrong password")
	}
	span.SetAttributes(attribute.Bool("auth.valid", ok))
	return ok
}

func (s *Service) verifyDummy(password string) {
	hash, err := s.dummyHash()
	if err != nil {
		return
	}
	//nolint:errcheck // result is discarded, only the elapsed time matters
	s.hasher.Verify(password, hash)
}

// CreateSession stores a fresh session id on the user with the given email.
// Returns "" without error if no such user exists.
func (s *Service) CreateSession(ctx context.Context, email string) (_ string, err error) {
	ctx, span := tracer.Start(ctx, "auth.create_session")
	defer func() { endSpan(span, err) }()

	user, err := s.users.Find(ctx, Fields{FieldEmail: email})
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", oops.Code("AUTH_SESSION_CREATE_FAILED").With("operation", "find user by email").Wrap(err)
	}

	sessionID, err := s.tokens()
	if err != nil {
		return "", oops.Code("AUTH_SESSION_CREATE_FAILED").With("operation", "generate session id").Wrap(err)
	}

	if err = s.users.Update(ctx, user.ID, Fields{FieldSessionID: sessionID}); err != nil {
		return "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "store session id").
			With("user_id", user.ID).
			Wrap(err)
	}
	return sessionID, nil
}

// GetUserFromSessionID returns the user holding sessionID, or nil if the id
// is empty or unknown.
func (s *Service) GetUserFromSessionID(ctx context.Context, sessionID string) (_ *User, err error) {
	if sessionID == "" {
		return nil, nil
	}

	ctx, span := tracer.Start(ctx, "auth.get_user_from_session_id")
	defer func() { endSpan(span, err) }()

	user, err := s.users.Find(ctx, Fields{FieldSessionID: sessionID})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("AUTH_SESSION_LOOKUP_FAILED").With("operation", "find user by session id").Wrap(err)
	}
	return user, nil
}

// DestroySession clears the session id of a user. Unknown users are ignored.
func (s *Service) DestroySession(ctx context.Context, userID int64) (err error) {
	ctx, span := tracer.Start(ctx, "auth.destroy_session", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer func() { endSpan(span, err) }()

	err = s.users.Update(ctx, userID, Fields{FieldSessionID: nil})
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return oops.Code("AUTH_SESSION_DESTROY_FAILED").With("user_id", userID).Wrap(err)
	}
	return nil
}

// GetResetPasswordToken issues a reset token for the user with the given email,
// replacing any earlier one. Returns ErrUserNotFound if no such user exists.
func (s *Service) GetResetPasswordToken(ctx context.Context, email string) (_ string, err error) {
	ctx, span := tracer.Start(ctx, "auth.get_reset_password_token")
	defer func() { endSpan(span, err) }()

	user, err := s.users.Find(ctx, Fields{FieldEmail: email})
	if errors.Is(err, ErrNotFound) {
		return "", oops.Code("AUTH_USER_NOT_FOUND").Wrapf(ErrUserNotFound, "no user with email %s", email)
	}
	if err != nil {
		return "", oops.Code("AUTH_RESET_FAILED").With("operation", "find user by email").Wrap(err)
	}

	token, err := s.tokens()
	if err != nil {
		return "", oops.Code("AUTH_RESET_FAILED").With("operation", "generate reset token").Wrap(err)
	}

	if err = s.users.Update(ctx, user.ID, Fields{FieldResetToken: token}); err != nil {
		return "", oops.Code("AUTH_RESET_FAILED").
			With("operation", "store reset token").
			With("user_id", user.ID).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "reset token issued", "user_id", user.ID)
	return token, nil
}

// UpdatePassword sets a new password for the user holding resetToken and
// clears the token. Returns ErrInvalidResetToken if no user holds it.
func (s *Service) UpdatePassword(ctx context.Context, resetToken, password string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.update_password")
	defer func() { endSpan(span, err) }()

	if resetToken == "" {
		return oops.Code("AUTH_INVALID_RESET_TOKEN").Wrap(ErrInvalidResetToken)
	}

	user, err := s.users.Find(ctx, Fields{FieldResetToken: resetToken})
	if errors.Is(err, ErrNotFound) {
		return oops.Code("AUTH_INVALID_RESET_TOKEN").Wrap(ErrInvalidResetToken)
	}
	if err != nil {
		return oops.Code("AUTH_PASSWORD_UPDATE_FAILED").With("operation", "find user by reset token").Wrap(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return oops.Code("AUTH_PASSWORD_UPDATE_FAILED").With("operation", "hash password").Wrap(err)
	}

	err = s.users.Update(ctx, user.ID, Fields{
		FieldHashedPassword: hash,
		FieldResetToken:     nil,
	})
	if err != nil {
		return oops.Code("AUTH_PASSWORD_UPDATE_FAILED").
			With("operation", "store password").
			With("user_id", user.ID).
			Wrap(err)
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
