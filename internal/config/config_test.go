// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// SETTINGS TESTS
// =============================================================================

func TestLoadSettings_MissingFileUsesDefaults(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), SettingsFileName))
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, d.Chat, s.Chat)
	assert.Equal(t, d.Retry, s.Retry)
	assert.True(t, s.UI.ShowThinking)
}

func TestLoadSettings_PartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFileName)
	require.NoError(t, os.WriteFile(path, []byte(`
default_model = "haiku"

[ui]
renderer = "plain"
show_thinking = false

[retry]
max_attempts = 5
`), 0o644))

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "haiku", s.DefaultModel)
	assert.Equal(t, "plain", s.UI.Renderer)
	assert.False(t, s.UI.ShowThinking)
	assert.Equal(t, 5, s.Retry.MaxAttempts)
	assert.Equal(t, 4*time.Second, s.Retry.MinDelay())
	assert.Equal(t, 60, s.Chat.TitleMaxLength)
}

func TestLoadSettings_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFileName)
	require.NoError(t, os.WriteFile(path, []byte("default_model = [unterminated"), 0o600))

	_, err := LoadSettings(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestSettings_Validate(t *testing.T) {
	s := Default()
	s.UI.Renderer = "fancy"
	s.Retry.MinDelayMs = 20000

	err := s.Validate()
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 2)
}

func TestSettings_EnvOverrides(t *testing.T) {
	t.Setenv("LLM_CLI_CHAT_DIR", "/tmp/legacy-chats")
	t.Setenv("LLMCLI_LOG_LEVEL", "debug")

	s := Default()
	s.ApplyEnvOverrides()
	assert.Equal(t, "/tmp/legacy-chats", s.ChatDir)
	assert.Equal(t, "debug", s.Log.Level)

	t.Setenv("LLMCLI_CHAT_DIR", "/tmp/chats")
	s.ApplyEnvOverrides()
	assert.Equal(t, "/tmp/chats", s.ChatDir)
}

func TestSaveSettings_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFileName)
	s := Default()
	s.UI.ShowThinking = false
	s.Providers.BaseURLs["openai"] = "http://localhost:8080/v1"

	require.NoError(t, SaveSettings(s, path))

	loaded, err := LoadSettings(path)
	require.NoError(t, err)
	assert.False(t, loaded.UI.ShowThinking)
	assert.Equal(t, "http://localhost:8080/v1", loaded.Providers.BaseURL("openai"))
}

// =============================================================================
// MODELS TESTS
// =============================================================================

func TestDefaultModels(t *testing.T) {
	m, err := DefaultModels()
	require.NoError(t, err)

	ref, ok := m.Resolve("sonnet")
	require.True(t, ok)
	assert.Equal(t, "anthropic", ref.Provider)

	caps := m.Capabilities(ref.Provider, ref.ModelID)
	assert.True(t, caps.SupportsThinking)
	assert.Equal(t, 16000, caps.MaxTokens)

	_, ok = m.Resolve(m.Default())
	assert.True(t, ok, "default alias must resolve")

	// Model ids resolve directly, including ones containing a slash.
	ref, ok = m.Resolve("anthropic/claude-sonnet-4")
	require.True(t, ok)
	assert.Equal(t, "openrouter", ref.Provider)
}

func TestParseModels_UserMerge(t *testing.T) {
	base := []byte(`
openai:
  gpt-4o:
    supports_search: false
anthropic:
  claude-x:
    supports_thinking: true
aliases:
  default: openai/gpt-4o
  claude: anthropic/claude-x
`)
	user := []byte(`
openai:
  gpt-5:
    supports_thinking: true
aliases:
  default: openai/gpt-5
  five: openai/gpt-5
`)

	m, err := ParseModels(base, user)
	require.NoError(t, err)

	// Provider sections extend.
	assert.ElementsMatch(t, []string{"gpt-4o", "gpt-5"}, m.ModelsFor("openai"))
	assert.True(t, m.Capabilities("openai", "gpt-5").SupportsThinking)

	// Aliases are replaced wholesale.
	_, ok := m.Resolve("claude")
	assert.False(t, ok)
	_, ok = m.Resolve("five")
	assert.True(t, ok)
	assert.Equal(t, "gpt-5", m.Default())
	assert.Equal(t, []string{"five"}, m.Aliases())

	// Base model ids remain usable.
	_, ok = m.Resolve("claude-x")
	assert.True(t, ok)
}

func TestParseModels_UnknownCapabilitiesAreZero(t *testing.T) {
	m, err := ParseModels([]byte("openai:\n  gpt-4o:\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, ModelCapabilities{}, m.Capabilities("openai", "nope"))
	assert.Equal(t, DefaultFallbackModel, m.Default())
}

func TestParseModels_InvalidYAML(t *testing.T) {
	_, err := ParseModels(defaultModelsYAML, []byte("openai: [unclosed"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

// =============================================================================
// LOADER TESTS
// =============================================================================

func TestLoader_CachesUntilInvalidated(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(dir)

	s1, err := l.Settings()
	require.NoError(t, err)
	s2, err := l.Settings()
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	require.NoError(t, os.WriteFile(l.SettingsPath(), []byte(`default_model = "opus"`), 0o600))

	s3, err := l.Settings()
	require.NoError(t, err)
	assert.Same(t, s1, s3, "cached value served until invalidated")

	l.Invalidate()
	s4, err := l.Settings()
	require.NoError(t, err)
	assert.Equal(t, "opus", s4.DefaultModel)
}

func TestLoader_ReloadKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(dir)

	m1, err := l.Models()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(l.ModelsPath(), []byte("openai: [bad"), 0o600))
	require.Error(t, l.Reload())

	m2, err := l.Models()
	require.NoError(t, err)
	assert.Same(t, m1, m2)
}

func TestLoader_WatchInvalidates(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(dir)

	_, err := l.Settings()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Watch(ctx) }()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(l.SettingsPath(), []byte(`default_model = "grok"`), 0o600))

	require.Eventually(t, func() bool {
		s, err := l.Settings()
		return err == nil && s.DefaultModel == "grok"
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

// =============================================================================
// PROMPTS TESTS
// =============================================================================

func TestLoadPrompt(t *testing.T) {
	dir := t.TempDir()

	builtin, err := LoadPrompt(dir, "general")
	require.NoError(t, err)
	assert.NotEmpty(t, builtin)

	require.NoError(t, os.WriteFile(filepath.Join(dir, PromptFileName("general")), []byte("  custom  \n"), 0o644))
	custom, err := LoadPrompt(dir, "general")
	require.NoError(t, err)
	assert.Equal(t, "custom", custom)

	_, err = LoadPrompt(dir, "missing")
	assert.ErrorIs(t, err, ErrPromptNotFound)

	_, err = LoadPrompt(dir, "../etc")
	assert.ErrorIs(t, err, ErrPromptNotFound)
}

func TestListPrompts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prompt_review.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	assert.Equal(t, []string{"code", "general", "review"}, ListPrompts(dir))
}

func TestResolvePaths(t *testing.T) {
	t.Setenv("LLMCLI_DATA_DIR", "/data/llmcli")

	s := Default()
	p, err := ResolvePaths("/cfg", s)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data/llmcli", ChatsDirName), p.ChatDir)
	assert.Equal(t, filepath.Join("/cfg", SettingsFileName), p.SettingsFile)

	s.ChatDir = "/elsewhere"
	p, err = ResolvePaths("/cfg", s)
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere", p.ChatDir)
}

func TestLoader_UpdateKeepsEnvOutOfFile(t *testing.T) {
	t.Setenv("LLMCLI_CHAT_DIR", "/tmp/from-env")
	l := NewLoader(t.TempDir())

	s, err := l.Settings()
	require.NoError(t, err)
	require.Equal(t, "/tmp/from-env", s.ChatDir)

	require.NoError(t, l.Update(func(s *Settings) { s.UI.ShowThinking = false }))

	data, err := os.ReadFile(l.SettingsPath())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "/tmp/from-env")

	s, err = l.Settings()
	require.NoError(t, err)
	assert.False(t, s.UI.ShowThinking)
	assert.Equal(t, "/tmp/from-env", s.ChatDir)
}
