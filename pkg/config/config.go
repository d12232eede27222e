/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Package config reads runtime settings from the environment, after
// loading any .env files found next to the working directory or at the
// module root.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid value")

// Environment variables read by FromEnv.
const (
	EnvBackend   = "EVBRIDGE_BACKEND"
	EnvLibxev    = "LIBXEV_PATH"
	EnvLogLevel  = "EVBRIDGE_LOG_LEVEL"
	EnvMaxEvents = "EVBRIDGE_MAX_EVENTS"
	EnvXevTick   = "EVBRIDGE_XEV_TICK"
)

// Backend names a scheduler implementation.
type Backend string

const (
	BackendAsync Backend = "async"
	BackendXev   Backend = "xev"
)

// Config holds the settings shared by the commands.
type Config struct {
	Backend    Backend
	LibxevPath string
	LogLevel   zerolog.Level
	MaxEvents  int
	XevTick    time.Duration
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Backend:  BackendAsync,
		LogLevel: zerolog.InfoLevel,
		XevTick:  10 * time.Millisecond,
	}
}

// Load reads .env files and then the process environment.
func Load() (Config, error) {
	LoadDotEnv()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, starting from Default.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()

	if v := strings.TrimSpace(getenv(EnvBackend)); v != "" {
		b, err := ParseBackend(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvBackend, err)
		}
		cfg.Backend = b
	}

	cfg.LibxevPath = strings.TrimSpace(getenv(EnvLibxev))

	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		lvl, err := zerolog.ParseLevel(strings.ToLower(v))
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s=%q: %w", ErrInvalid, EnvLogLevel, v, err)
		}
		cfg.LogLevel = lvl
	}

	if v := strings.TrimSpace(getenv(EnvMaxEvents)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("%w: %s=%q: want a non-negative integer", ErrInvalid, EnvMaxEvents, v)
		}
		cfg.MaxEvents = n
	}

	if v := strings.TrimSpace(getenv(EnvXevTick)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("%w: %s=%q: want a positive duration", ErrInvalid, EnvXevTick, v)
		}
		cfg.XevTick = d
	}

	return cfg, nil
}

// ParseBackend validates a backend name.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendAsync, BackendXev:
		return b, nil
	default:
		return "", fmt.Errorf("%w: unknown backend %q (want %s or %s)", ErrInvalid, s, BackendAsync, BackendXev)
	}
}

// Logger returns a console logger writing to w at the configured level.
func (c Config) Logger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		Level(c.LogLevel).
		With().
		Timestamp().
		Logger()
}

// LoadDotEnv loads .env from the working directory and from the enclosing
// module root. Variables already set in the environment win.
func LoadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}
	paths := []string{filepath.Join(cwd, ".env")}
	if root, err := findModuleRoot(cwd); err == nil && root != cwd {
		paths = append(paths, filepath.Join(root, ".env"))
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}
}

func findModuleRoot(start string) (string, error) {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found")
		}
		dir = parent
	}
}
