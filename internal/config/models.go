// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var defaultModelsYAML []byte

// DefaultFallbackModel is used when no models.yaml names a default.
const DefaultFallbackModel = "gpt-4o"

const aliasesKey = "aliases"

// ModelCapabilities is the static descriptor of one (provider, model) pair.
type ModelCapabilities struct {
	SupportsSearch   bool           `yaml:"supports_search"`
	SupportsThinking bool           `yaml:"supports_thinking"`
	MaxTokens        int            `yaml:"max_tokens,omitempty"`
	ExtraParams      map[string]any `yaml:"extra_params,omitempty"`
}

// ModelRef identifies a model at a provider.
type ModelRef struct {
	Provider string
	ModelID  string
}

func (r ModelRef) String() string {
	return r.Provider + "/" + r.ModelID
}

// Models is the merged capability table and alias map.
type Models struct {
	providers    map[string]map[string]ModelCapabilities
	aliases      map[string]ModelRef
	named        []string
	defaultAlias string
}

// DefaultModels parses only the embedded table.
func DefaultModels() (*Models, error) {
	return ParseModels(defaultModelsYAML, nil)
}

// ParseModels merges user over base. User provider sections extend the base
// ones model by model; a user aliases section replaces the base aliases.
func ParseModels(base, user []byte) (*Models, error) {
	baseDoc, err := decodeModelsDoc(base)
	if err != nil {
		return nil, &ConfigError{Path: "models.yaml (built-in)", Err: err}
	}
	userDoc, err := decodeModelsDoc(user)
	if err != nil {
		return nil, &ConfigError{Path: "models.yaml (user)", Err: err}
	}

	m := &Models{
		providers: map[string]map[string]ModelCapabilities{},
		aliases:   map[string]ModelRef{},
	}

	for _, doc := range []*modelsDoc{baseDoc, userDoc} {
		for provider, models := range doc.providers {
			if m.providers[provider] == nil {
				m.providers[provider] = map[string]ModelCapabilities{}
			}
			for id, caps := range models {
				m.providers[provider][id] = caps
			}
		}
	}

	aliasSpecs := baseDoc.aliases
	if userDoc.hasAliases {
		aliasSpecs = userDoc.aliases
	}

	// Every model id is its own alias.
	for provider, models := range m.providers {
		for id := range models {
			m.aliases[id] = ModelRef{Provider: provider, ModelID: id}
		}
	}

	m.defaultAlias = DefaultFallbackModel
	for alias, spec := range aliasSpecs {
		provider, id, ok := strings.Cut(spec, "/")
		if !ok || provider == "" || id == "" {
			continue
		}
		if alias == "default" {
			m.defaultAlias = id
			if _, known := m.aliases[id]; !known {
				m.aliases[id] = ModelRef{Provider: provider, ModelID: id}
			}
			continue
		}
		m.aliases[alias] = ModelRef{Provider: provider, ModelID: id}
		m.named = append(m.named, alias)
	}
	sort.Strings(m.named)

	return m, nil
}

// Resolve maps an alias (or bare model id) to its provider and model.
func (m *Models) Resolve(alias string) (ModelRef, bool) {
	ref, ok := m.aliases[alias]
	return ref, ok
}

// Capabilities returns the descriptor for a model. Unknown models get the
// zero value.
func (m *Models) Capabilities(provider, modelID string) ModelCapabilities {
	return m.providers[provider][modelID]
}

// Default returns the alias used when the user names no model.
func (m *Models) Default() string {
	return m.defaultAlias
}

// Aliases returns the configured short names, sorted.
func (m *Models) Aliases() []string {
	return append([]string(nil), m.named...)
}

// AllNames returns every resolvable name, sorted.
func (m *Models) AllNames() []string {
	names := make([]string, 0, len(m.aliases))
	for name := range m.aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Providers returns the provider names that have at least one model.
func (m *Models) Providers() []string {
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ModelsFor returns the model ids configured for provider, sorted.
func (m *Models) ModelsFor(provider string) []string {
	ids := make([]string, 0, len(m.providers[provider]))
	for id := range m.providers[provider] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// =============================================================================
// YAML DECODING
// =============================================================================

type modelsDoc struct {
	providers  map[string]map[string]ModelCapabilities
	aliases    map[string]string
	hasAliases bool
}

func decodeModelsDoc(data []byte) (*modelsDoc, error) {
	doc := &modelsDoc{
		providers: map[string]map[string]ModelCapabilities{},
		aliases:   map[string]string{},
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return doc, nil
	}

	var sections map[string]yaml.Node
	if err := yaml.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	for name, node := range sections {
		if name == aliasesKey {
			if err := node.Decode(&doc.aliases); err != nil {
				return nil, fmt.Errorf("aliases: %w", err)
			}
			doc.hasAliases = true
			continue
		}
		if node.Kind != yaml.MappingNode {
			// Scalars and lists at the top level are not provider sections.
			continue
		}
		models := map[string]ModelCapabilities{}
		if err := node.Decode(&models); err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		doc.providers[name] = models
	}

	if doc.aliases == nil {
		doc.aliases = map[string]string{}
	}
	return doc, nil
}
