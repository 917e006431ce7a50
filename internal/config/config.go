// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads apiauth settings from a YAML file, the environment
// and command-line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/apiauth/internal/strategy"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "APIAUTH_"

// Keys recognized in files, environment and flags.
const (
	KeyAuthType        = "auth_type"
	KeySessionName     = "session_name"
	KeySessionDuration = "session_duration"
	KeyExcludedPaths   = "excluded_paths"
	KeyDatabaseURL     = "database_url"
	KeyListenAddr      = "listen_addr"
	KeyMetricsAddr     = "metrics_addr"
	KeyLogFormat       = "log_format"
	KeyLogLevel        = "log_level"
	KeyBcryptCost      = "bcrypt_cost"
)

// Defaults.
const (
	DefaultListenAddr  = ":5000"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultLogFormat   = "json"
	DefaultLogLevel    = "info"
)

// DefaultExcludedPaths are served without authentication.
var DefaultExcludedPaths = []string{
	"/api/v1/status/",
	"/api/v1/unauthorized/",
	"/api/v1/forbidden/",
	"/api/v1/auth_session/login/",
}

// Config holds the resolved settings.
type Config struct {
	AuthType    string `koanf:"auth_type"`
	SessionName string `koanf:"session_name"`
	DatabaseURL string `koanf:"database_url"`
	ListenAddr  string `koanf:"listen_addr"`
	MetricsAddr string `koanf:"metrics_addr"`
	LogFormat   string `koanf:"log_format"`
	LogLevel    string `koanf:"log_level"`
	BcryptCost  int    `koanf:"bcrypt_cost"`

	// SessionDuration is the session TTL. Zero or negative never expires.
	SessionDuration time.Duration `koanf:"-"`
	ExcludedPaths   []string      `koanf:"-"`

	// Warnings lists recoverable problems found while loading, for logging
	// once a logger is configured.
	Warnings []string `koanf:"-"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		SessionName:   strategy.DefaultSessionCookie,
		ListenAddr:    DefaultListenAddr,
		MetricsAddr:   DefaultMetricsAddr,
		LogFormat:     DefaultLogFormat,
		LogLevel:      DefaultLogLevel,
		ExcludedPaths: slices.Clone(DefaultExcludedPaths),
	}
}

// Load reads path (if non-empty), then APIAUTH_* environment variables, then
// the flags in flags that were explicitly set. Flag names use dashes where
// keys use underscores. The result is not validated.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagKey(flags)), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	if k.Exists(KeySessionDuration) {
		seconds, err := parseSeconds(k.Get(KeySessionDuration))
		if err != nil {
			cfg.Warnings = append(cfg.Warnings,
				fmt.Sprintf("%s %q is not a whole number of seconds, sessions will not expire",
					KeySessionDuration, fmt.Sprint(k.Get(KeySessionDuration))))
		}
		cfg.SessionDuration = time.Duration(seconds) * time.Second
	}

	if k.Exists(KeyExcludedPaths) {
		cfg.ExcludedPaths = splitList(k.Get(KeyExcludedPaths))
	}

	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.AuthType != "" && !slices.Contains(strategy.Kinds, c.AuthType) {
		return oops.Code("CONFIG_INVALID").
			With("key", KeyAuthType).
			Errorf("%s must be one of %s, got %q", KeyAuthType, strings.Join(strategy.Kinds, ", "), c.AuthType)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").
			With("key", KeyLogFormat).
			Errorf("%s must be 'json' or 'text', got %q", KeyLogFormat, c.LogFormat)
	}
	if c.ListenAddr == "" {
		return oops.Code("CONFIG_INVALID").With("key", KeyListenAddr).Errorf("%s is required", KeyListenAddr)
	}
	if c.AuthType == strategy.KindDatabaseSession && c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", KeyDatabaseURL).
			Errorf("%s is required for %s", KeyDatabaseURL, strategy.KindDatabaseSession)
	}
	return nil
}

func envKey(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
}

func flagKey(flags *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		if !f.Changed || f.Name == "config" {
			return "", nil
		}
		return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
	}
}

// parseSeconds returns 0 and an error for anything but a whole number.
func parseSeconds(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, oops.Errorf("fractional seconds %v", n)
		}
		return int(n), nil
	default:
		i, err := strconv.Atoi(strings.TrimSpace(fmt.Sprint(v)))
		if err != nil {
			return 0, oops.Wrap(err)
		}
		return i, nil
	}
}

// splitList accepts a YAML list, a string slice or a comma-separated string.
func splitList(v any) []string {
	var raw []string
	switch l := v.(type) {
	case []string:
		raw = l
	case []any:
		for _, item := range l {
			raw = append(raw, fmt.Sprint(item))
		}
	case string:
		raw = strings.Split(l, ",")
	}

	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RegisterFlags adds a flag for every key to fs. Flag defaults are only
// documentation: Load applies a flag only when it was set.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("auth-type", d.AuthType, "auth strategy ("+strings.Join(strategy.Kinds, ", ")+")")
	fs.String("session-name", d.SessionName, "session cookie name")
	fs.Int("session-duration", 0, "session lifetime in seconds (0 = never expires)")
	fs.StringSlice("excluded-paths", d.ExcludedPaths, "paths served without authentication")
	fs.String("database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.String("listen-addr", d.ListenAddr, "API listen address")
	fs.String("metrics-addr", d.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", d.LogFormat, "log format (json or text)")
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.Int("bcrypt-cost", 0, "bcrypt cost (0 = library default)")
}
