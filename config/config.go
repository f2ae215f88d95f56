// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joeshaw/envdecode"
)

// Registry backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// ErrUnknownBackend is returned for an unsupported DIALOG_REGISTRY_BACKEND.
var ErrUnknownBackend = errors.New("config: unknown registry backend")

// Config for a dialog runtime. Defaults are provided via struct tags.
type Config struct {
	// RegistryBackend is "memory" or "redis". ENV: DIALOG_REGISTRY_BACKEND
	RegistryBackend string `env:"DIALOG_REGISTRY_BACKEND,default=memory"`
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for registry keys in Redis. ENV: DIALOG_KEY_PREFIX
	KeyPrefix string `env:"DIALOG_KEY_PREFIX,default=dialog:registry:"`
	// GroupID scopes shared registry state to one process group. ENV: DIALOG_GROUP_ID
	GroupID string `env:"DIALOG_GROUP_ID"`
	// ThemeDir holds *.json theme files; empty disables file themes. ENV: DIALOG_THEME_DIR
	ThemeDir string `env:"DIALOG_THEME_DIR"`
	// DefaultCancelable seeds new builders. ENV: DIALOG_DEFAULT_CANCELABLE
	DefaultCancelable bool `env:"DIALOG_DEFAULT_CANCELABLE,default=true"`
	// LogLevel is debug, info, warn or error. ENV: DIALOG_LOG_LEVEL
	LogLevel string `env:"DIALOG_LOG_LEVEL,default=info"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		RegistryBackend:   BackendMemory,
		RedisAddr:         "localhost:6379",
		KeyPrefix:         "dialog:registry:",
		DefaultCancelable: true,
		LogLevel:          "info",
	}
}

// FromEnv decodes the configuration from environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("config: decode env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch c.RegistryBackend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.RegistryBackend)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level named by LogLevel, defaulting to info.
func (c Config) Level() slog.Level {
	l, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: log level %q: %w", s, err)
	}
	return l, nil
}
