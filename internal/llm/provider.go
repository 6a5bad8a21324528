// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/jeranaias/llmcli/internal/config"
	"github.com/jeranaias/llmcli/internal/model"
)

// Provider adapts one provider family to the event model.
type Provider interface {
	// Name is the provider section name in models.yaml.
	Name() string

	// Capabilities returns the static descriptor for modelID.
	Capabilities(modelID string) Capabilities

	// Stream starts a response. Errors that occur before the first event
	// are returned directly; later ones are yielded by the Stream.
	Stream(ctx context.Context, messages []model.Message, modelID string, opts Options) (Stream, error)
}

// ModelSource supplies the current model table. config.Loader satisfies it.
type ModelSource interface {
	Models() (*config.Models, error)
}

// StaticModels is a ModelSource over a fixed table.
type StaticModels struct {
	Table *config.Models
}

// Models returns the fixed table.
func (s StaticModels) Models() (*config.Models, error) {
	return s.Table, nil
}

// ProviderFactory builds a provider on first use.
type ProviderFactory func() (Provider, error)

// Registry maps aliases to providers. Providers are constructed lazily so a
// missing API key only matters for the provider actually used.
type Registry struct {
	source ModelSource

	mu        sync.Mutex
	factories map[string]ProviderFactory
	providers map[string]Provider
}

// NewRegistry creates an empty registry over source.
func NewRegistry(source ModelSource) *Registry {
	return &Registry{
		source:    source,
		factories: map[string]ProviderFactory{},
		providers: map[string]Provider{},
	}
}

// Register adds a factory for the named provider.
func (r *Registry) Register(name string, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	delete(r.providers, name)
}

// RegisterProvider adds an already constructed provider.
func (r *Registry) RegisterProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Models returns the current model table.
func (r *Registry) Models() (*config.Models, error) {
	return r.source.Models()
}

// Resolve maps alias to a provider and model id.
func (r *Registry) Resolve(alias string) (Provider, string, error) {
	table, err := r.source.Models()
	if err != nil {
		return nil, "", err
	}

	ref, ok := table.Resolve(alias)
	if !ok {
		return nil, "", &ModelNotFoundError{Alias: alias, Available: table.Aliases()}
	}

	p, err := r.provider(ref.Provider)
	if err != nil {
		return nil, "", err
	}
	if p == nil {
		return nil, "", &ModelNotFoundError{
			Alias:  alias,
			Reason: fmt.Sprintf("no adapter for provider %q", ref.Provider),
		}
	}
	return p, ref.ModelID, nil
}

func (r *Registry) provider(name string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	factory, ok := r.factories[name]
	if !ok {
		return nil, nil
	}
	p, err := factory()
	if err != nil {
		return nil, err
	}
	r.providers[name] = p
	return p, nil
}
