// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package strategy

import (
	"log/slog"
	"time"

	"github.com/holomush/apiauth/internal/auth"
)

type options struct {
	now    func() time.Time
	tokens auth.TokenGenerator
	logger *slog.Logger
}

// Option configures a strategy.
type Option func(*options)

// WithClock sets the time source for session creation and expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithTokenGenerator sets the source of new session ids.
func WithTokenGenerator(gen auth.TokenGenerator) Option {
	return func(o *options) {
		if gen != nil {
			o.tokens = gen
		}
	}
}

// WithLogger sets the strategy logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:    time.Now,
		tokens: auth.GenerateToken,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
