// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zerolog logger used across llmcli.
//
// Diagnostics go to a JSON log file by default so they never mix with a
// streamed response on the terminal. Debug mode writes human-readable lines
// to stderr instead.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config selects where and how much to log.
type Config struct {
	// Level is a zerolog level name. Unknown names mean info.
	Level string

	// File receives JSON lines. Empty disables file logging.
	File string

	// Debug logs at debug level to Console (stderr if nil) in console format.
	Debug   bool
	Console io.Writer
}

// New returns the configured logger and a closer for the log file.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	level := ParseLevel(cfg.Level)

	if cfg.Debug {
		out := cfg.Console
		if out == nil {
			out = os.Stderr
		}
		cw := zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
		return zerolog.New(cw).Level(zerolog.DebugLevel).With().Timestamp().Logger(), nopCloser{}, nil
	}

	if cfg.File == "" {
		return zerolog.Nop(), nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("failed to open log file: %w", err)
	}

	return zerolog.New(f).Level(level).With().Timestamp().Logger(), f, nil
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || name == "" {
		return zerolog.InfoLevel
	}
	return level
}

// TraceDuration logs start and finish of name at trace level.
// Usage: defer logging.TraceDuration(log, "Client.Chat")()
func TraceDuration(log zerolog.Logger, name string) func() {
	start := time.Now()
	log.Trace().Str("method", name).Msg("start")
	return func() {
		log.Trace().Str("method", name).Dur("duration", time.Since(start)).Msg("finish")
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
