// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import "github.com/jeranaias/llmcli/internal/config"

// Capabilities describes what a model supports.
type Capabilities = config.ModelCapabilities

// Options are the per-request toggles.
type Options struct {
	EnableSearch   bool
	EnableThinking bool
	ShowThinking   bool

	// Silent suppresses all terminal output; the response is still
	// accumulated and returned.
	Silent bool

	// Settings overrides provider request fields (temperature and the like).
	Settings map[string]any
}

// DefaultOptions returns thinking enabled and shown, search off.
func DefaultOptions() Options {
	return Options{EnableThinking: true, ShowThinking: true}
}

// SilentOptions is used for internal completions such as title generation.
func SilentOptions() Options {
	return Options{Silent: true}
}

// ThinkingVisible reports whether a thinking section should be rendered.
func (o Options) ThinkingVisible(caps Capabilities) bool {
	return caps.SupportsThinking && o.EnableThinking && o.ShowThinking && !o.Silent
}
