// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/llmcli/internal/util"
)

// =============================================================================
// SETTINGS STRUCTURES
// =============================================================================

// Settings is the user-editable settings.toml.
type Settings struct {
	// DefaultModel overrides the default alias from models.yaml.
	DefaultModel string `toml:"default_model"`

	// ChatDir overrides where chats are stored.
	ChatDir string `toml:"chat_dir"`

	Chat      ChatSettings     `toml:"chat"`
	UI        UISettings       `toml:"ui"`
	Retry     RetrySettings    `toml:"retry"`
	Log       LogSettings      `toml:"log"`
	Providers ProviderSettings `toml:"providers"`
}

// ChatSettings controls titles and prompts.
type ChatSettings struct {
	// SmartTitleMinMessages is the non-system message count that triggers
	// smart title generation.
	SmartTitleMinMessages int `toml:"smart_title_min_messages"`

	// SmartTitleSample is how many leading messages the title model sees.
	SmartTitleSample int `toml:"smart_title_sample"`

	// TitleMaxLength caps titles, ellipsis included.
	TitleMaxLength int `toml:"title_max_length"`

	// TitleModel generates smart titles. Empty means the chat's own model.
	TitleModel string `toml:"title_model"`

	// DefaultPrompt names the system prompt used when none is given.
	DefaultPrompt string `toml:"default_prompt"`
}

// UISettings controls terminal output.
type UISettings struct {
	// Renderer is "auto", "styled" or "plain".
	Renderer string `toml:"renderer"`

	EnableThinking bool `toml:"enable_thinking"`
	ShowThinking   bool `toml:"show_thinking"`

	// Markdown renders replayed transcripts through glamour.
	Markdown bool `toml:"markdown"`
	WordWrap int  `toml:"word_wrap"`
}

// RetrySettings bounds provider retries.
type RetrySettings struct {
	MaxAttempts int `toml:"max_attempts"`
	MinDelayMs  int `toml:"min_delay_ms"`
	MaxDelayMs  int `toml:"max_delay_ms"`
}

// MinDelay returns the first backoff interval.
func (r RetrySettings) MinDelay() time.Duration {
	return time.Duration(r.MinDelayMs) * time.Millisecond
}

// MaxDelay returns the backoff ceiling.
func (r RetrySettings) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMs) * time.Millisecond
}

// LogSettings controls the diagnostic log.
type LogSettings struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// ProviderSettings tunes provider transports. API keys are never read from
// this file; they come from the environment.
type ProviderSettings struct {
	// BaseURLs maps provider name to an alternate API endpoint.
	BaseURLs map[string]string `toml:"base_urls"`

	// TimeoutSeconds bounds a whole streamed response.
	TimeoutSeconds int `toml:"timeout_seconds"`

	// Referer and AppTitle are sent to OpenRouter for attribution.
	Referer  string `toml:"referer"`
	AppTitle string `toml:"app_title"`
}

// Timeout returns the per-request timeout, zero meaning none.
func (p ProviderSettings) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// BaseURL returns the configured endpoint override for provider.
func (p ProviderSettings) BaseURL(provider string) string {
	return p.BaseURLs[provider]
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns settings with every field populated.
func Default() *Settings {
	return &Settings{
		Chat: ChatSettings{
			SmartTitleMinMessages: 8,
			SmartTitleSample:      8,
			TitleMaxLength:        60,
			DefaultPrompt:         "general",
		},
		UI: UISettings{
			Renderer:       "auto",
			EnableThinking: true,
			ShowThinking:   true,
			Markdown:       true,
			WordWrap:       100,
		},
		Retry: RetrySettings{
			MaxAttempts: 3,
			MinDelayMs:  4000,
			MaxDelayMs:  10000,
		},
		Log: LogSettings{
			Level: "info",
		},
		Providers: ProviderSettings{
			BaseURLs:       map[string]string{},
			TimeoutSeconds: 300,
			Referer:        "https://github.com/jeranaias/llmcli",
			AppTitle:       "llmcli",
		},
	}
}

// SetDefaults fills zero values left by a partial settings file.
func (s *Settings) SetDefaults() {
	d := Default()
	if s.Chat.SmartTitleMinMessages <= 0 {
		s.Chat.SmartTitleMinMessages = d.Chat.SmartTitleMinMessages
	}
	if s.Chat.SmartTitleSample <= 0 {
		s.Chat.SmartTitleSample = d.Chat.SmartTitleSample
	}
	if s.Chat.TitleMaxLength <= 0 {
		s.Chat.TitleMaxLength = d.Chat.TitleMaxLength
	}
	if s.Chat.DefaultPrompt == "" {
		s.Chat.DefaultPrompt = d.Chat.DefaultPrompt
	}
	if s.UI.Renderer == "" {
		s.UI.Renderer = d.UI.Renderer
	}
	if s.UI.WordWrap <= 0 {
		s.UI.WordWrap = d.UI.WordWrap
	}
	if s.Retry.MaxAttempts <= 0 {
		s.Retry.MaxAttempts = d.Retry.MaxAttempts
	}
	if s.Retry.MinDelayMs <= 0 {
		s.Retry.MinDelayMs = d.Retry.MinDelayMs
	}
	if s.Retry.MaxDelayMs <= 0 {
		s.Retry.MaxDelayMs = d.Retry.MaxDelayMs
	}
	if s.Log.Level == "" {
		s.Log.Level = d.Log.Level
	}
	if s.Providers.BaseURLs == nil {
		s.Providers.BaseURLs = map[string]string{}
	}
	if s.Providers.TimeoutSeconds <= 0 {
		s.Providers.TimeoutSeconds = d.Providers.TimeoutSeconds
	}
	if s.Providers.Referer == "" {
		s.Providers.Referer = d.Providers.Referer
	}
	if s.Providers.AppTitle == "" {
		s.Providers.AppTitle = d.Providers.AppTitle
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
// Supported variables:
//   - LLMCLI_CHAT_DIR (or LLM_CLI_CHAT_DIR): overrides chat_dir
//   - LLMCLI_MODEL: overrides default_model
//   - LLMCLI_LOG_LEVEL: overrides log.level
//   - LLMCLI_RENDERER: overrides ui.renderer
//   - LLMCLI_SHOW_THINKING: overrides ui.show_thinking
func (s *Settings) ApplyEnvOverrides() {
	if dir := os.Getenv("LLM_CLI_CHAT_DIR"); dir != "" {
		s.ChatDir = dir
	}
	if dir := os.Getenv("LLMCLI_CHAT_DIR"); dir != "" {
		s.ChatDir = dir
	}
	if model := os.Getenv("LLMCLI_MODEL"); model != "" {
		s.DefaultModel = model
	}
	if level := os.Getenv("LLMCLI_LOG_LEVEL"); level != "" {
		s.Log.Level = level
	}
	if r := os.Getenv("LLMCLI_RENDERER"); r != "" {
		s.UI.Renderer = r
	}
	if v := os.Getenv("LLMCLI_SHOW_THINKING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			s.UI.ShowThinking = b
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the settings and returns ValidateErrors on failure.
func (s *Settings) Validate() error {
	var errs ValidateErrors

	switch strings.ToLower(s.UI.Renderer) {
	case "auto", "styled", "plain":
	default:
		errs = append(errs, ValidationError{
			Field:   "ui.renderer",
			Message: fmt.Sprintf("invalid renderer '%s', must be one of: auto, styled, plain", s.UI.Renderer),
		})
	}

	if s.Chat.TitleMaxLength < 10 {
		errs = append(errs, ValidationError{
			Field:   "chat.title_max_length",
			Message: fmt.Sprintf("must be at least 10, got %d", s.Chat.TitleMaxLength),
		})
	}

	if s.Retry.MaxAttempts > 10 {
		errs = append(errs, ValidationError{
			Field:   "retry.max_attempts",
			Message: fmt.Sprintf("must be at most 10, got %d", s.Retry.MaxAttempts),
		})
	}
	if s.Retry.MinDelayMs > s.Retry.MaxDelayMs {
		errs = append(errs, ValidationError{
			Field:   "retry.min_delay_ms",
			Message: fmt.Sprintf("must not exceed retry.max_delay_ms (%d > %d)", s.Retry.MinDelayMs, s.Retry.MaxDelayMs),
		})
	}

	switch strings.ToLower(s.Log.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("unknown level '%s'", s.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// LoadSettings reads path (missing file means defaults), applies environment
// overrides, fills defaults and validates.
func LoadSettings(path string) (*Settings, error) {
	s, err := readSettingsFile(path)
	if err != nil {
		return nil, err
	}

	s.ApplyEnvOverrides()
	s.SetDefaults()
	if err := s.Validate(); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return s, nil
}

// readSettingsFile decodes path over the defaults without looking at the
// environment.
func readSettingsFile(path string) (*Settings, error) {
	s := Default()

	if _, err := os.Stat(path); err == nil {
		if err := ensureSecurePermissions(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
		}
		if _, err := toml.DecodeFile(path, s); err != nil {
			return nil, &ConfigError{Path: path, Err: err}
		}
	} else if !os.IsNotExist(err) {
		return nil, &ConfigError{Path: path, Err: err}
	}

	s.SetDefaults()
	return s, nil
}

// SaveSettings writes s to path as TOML with owner-only permissions.
func SaveSettings(s *Settings, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# llmcli settings\n")
	buf.WriteString("# API keys are read from the environment, not from this file.\n\n")
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// ensureSecurePermissions tightens a settings file to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		if err := os.Chmod(path, 0o600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}
