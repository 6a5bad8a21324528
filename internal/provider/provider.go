// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jeranaias/llmcli/internal/config"
	"github.com/jeranaias/llmcli/internal/llm"
)

// Provider section names as they appear in models.yaml.
const (
	OpenAI     = "openai"
	Anthropic  = "anthropic"
	DeepSeek   = "deepseek"
	XAI        = "xai"
	Gemini     = "gemini"
	OpenRouter = "openrouter"
)

// DefaultBaseURLs are the public API roots. Gemini is empty because the SDK
// knows its own endpoint.
var DefaultBaseURLs = map[string]string{
	OpenAI:     "https://api.openai.com/v1",
	Anthropic:  "https://api.anthropic.com/v1",
	DeepSeek:   "https://api.deepseek.com",
	XAI:        "https://api.x.ai/v1",
	OpenRouter: "https://openrouter.ai/api/v1",
	Gemini:     "",
}

// keyVars lists the environment variables holding each provider's API key,
// in lookup order.
var keyVars = map[string][]string{
	OpenAI:     {"OPENAI_API_KEY"},
	Anthropic:  {"ANTHROPIC_API_KEY"},
	DeepSeek:   {"DEEPSEEK_API_KEY"},
	XAI:        {"XAI_API_KEY"},
	Gemini:     {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	OpenRouter: {"OPENROUTER_API_KEY"},
}

// Names returns every provider this package can adapt.
func Names() []string {
	return []string{OpenAI, Anthropic, DeepSeek, XAI, Gemini, OpenRouter}
}

// Config is shared by all adapters.
type Config struct {
	Models   llm.ModelSource
	Settings config.ProviderSettings

	// HTTPClient overrides the transport client. When nil and
	// Settings.TimeoutSeconds is set, a client with that timeout is used.
	HTTPClient *http.Client

	// Getenv looks up API keys. Defaults to os.Getenv.
	Getenv func(string) string

	Log zerolog.Logger
}

func (c Config) getenv(key string) string {
	if c.Getenv != nil {
		return c.Getenv(key)
	}
	return os.Getenv(key)
}

// APIKey returns the key for provider, or a configuration error naming the
// variable to set.
func (c Config) APIKey(provider string) (string, error) {
	vars := keyVars[provider]
	for _, v := range vars {
		if key := strings.TrimSpace(c.getenv(v)); key != "" {
			return key, nil
		}
	}
	if len(vars) == 0 {
		return "", &config.ConfigError{Err: fmt.Errorf("unknown provider %q", provider)}
	}
	return "", &config.ConfigError{Err: fmt.Errorf("%s API key not found: set %s", provider, strings.Join(vars, " or "))}
}

// BaseURL returns the configured override or the public default.
func (c Config) BaseURL(provider string) string {
	if u := c.Settings.BaseURL(provider); u != "" {
		return strings.TrimRight(u, "/")
	}
	return DefaultBaseURLs[provider]
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	if t := c.Settings.Timeout(); t > 0 {
		return &http.Client{Timeout: t}
	}
	return nil
}

// RegisterAll adds a lazy factory for every provider to reg. Keys are only
// looked up when a provider is first resolved.
func RegisterAll(reg *llm.Registry, cfg Config) {
	reg.Register(OpenAI, func() (llm.Provider, error) { return newOpenAIFamily(OpenAI, cfg) })
	reg.Register(DeepSeek, func() (llm.Provider, error) { return newOpenAIFamily(DeepSeek, cfg) })
	reg.Register(Anthropic, func() (llm.Provider, error) { return newAnthropic(cfg) })
	reg.Register(XAI, func() (llm.Provider, error) { return newCompatible(XAI, cfg) })
	reg.Register(OpenRouter, func() (llm.Provider, error) { return newCompatible(OpenRouter, cfg) })
	reg.Register(Gemini, func() (llm.Provider, error) { return newGemini(cfg) })
}

// base carries what every adapter shares.
type base struct {
	name   string
	models llm.ModelSource
	log    zerolog.Logger
}

func newBase(name string, cfg Config) base {
	return base{
		name:   name,
		models: cfg.Models,
		log:    cfg.Log.With().Str("provider", name).Logger(),
	}
}

// Name returns the provider section name.
func (b base) Name() string { return b.name }

// Capabilities looks modelID up in the current table.
func (b base) Capabilities(modelID string) llm.Capabilities {
	if b.models == nil {
		return llm.Capabilities{}
	}
	table, err := b.models.Models()
	if err != nil {
		b.log.Warn().Err(err).Msg("model table unavailable")
		return llm.Capabilities{}
	}
	return table.Capabilities(b.name, modelID)
}
