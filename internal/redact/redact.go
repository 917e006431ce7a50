// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package redact masks personally identifiable fields in log output.
package redact

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Redaction replaces masked values.
const Redaction = "***"

// Separator delimits field=value pairs in free-form log messages.
const Separator = ";"

// PIIFields are masked by default.
var PIIFields = []string{"name", "email", "phone", "ssn", "password"}

// FilterDatum replaces the value of every "field=value" pair in message,
// up to the next separator, with redaction. Fields match anywhere, so
// "user_email=x" is masked as well as "email=x".
func FilterDatum(fields []string, redaction, message, separator string) string {
	if len(fields) == 0 || message == "" {
		return message
	}
	return pattern(fields, separator).ReplaceAllString(message, "${1}="+escapeReplacement(redaction))
}

func pattern(fields []string, separator string) *regexp.Regexp {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = regexp.QuoteMeta(f)
	}
	sep := regexp.QuoteMeta(separator)
	value := `[^` + sep + `]*`
	if separator == "" {
		value = `.*`
	}
	return regexp.MustCompile(`(` + strings.Join(quoted, "|") + `)=` + value)
}

func escapeReplacement(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}

// Handler wraps a slog.Handler and masks attributes whose key names a PII
// field, as well as field=value pairs in the message.
type Handler struct {
	inner   slog.Handler
	fields  map[string]struct{}
	message *regexp.Regexp
}

// NewHandler wraps inner. With no fields, PIIFields are used. Keys are
// matched case-insensitively.
func NewHandler(inner slog.Handler, fields ...string) *Handler {
	if len(fields) == 0 {
		fields = PIIFields
	}
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[strings.ToLower(f)] = struct{}{}
	}
	return &Handler{inner: inner, fields: set, message: pattern(fields, Separator)}
}

// Enabled reports whether the inner handler handles level.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle masks the record and passes it on.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	msg := h.message.ReplaceAllString(r.Message, "${1}="+escapeReplacement(Redaction))
	out := slog.NewRecord(r.Time, r.Level, msg, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.mask(a))
		return true
	})
	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.inner.Handle(ctx, out)
}

// WithAttrs masks attrs before handing them to the inner handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.mask(a)
	}
	return &Handler{inner: h.inner.WithAttrs(masked), fields: h.fields, message: h.message}
}

// WithGroup returns a handler that opens group name.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name), fields: h.fields, message: h.message}
}

func (h *Handler) mask(a slog.Attr) slog.Attr {
	if _, ok := h.fields[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, Redaction)
	}
	v := a.Value.Resolve()
	if v.Kind() != slog.KindGroup {
		return slog.Attr{Key: a.Key, Value: v}
	}
	group := v.Group()
	masked := make([]any, len(group))
	for i, g := range group {
		masked[i] = h.mask(g)
	}
	return slog.Group(a.Key, masked...)
}
