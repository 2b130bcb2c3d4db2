// Package llm is the provider-agnostic model client used by the analysis
// collaborators and the agent loop.
package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultProvider is assumed for model IDs without a provider prefix.
const DefaultProvider = "anthropic"

// Client sends one request to a model and returns the whole reply.
type Client interface {
	Complete(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
}

// ProviderFactory builds a Client for one model of a provider.
type ProviderFactory func(modelName string) (Client, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]ProviderFactory{}
)

// RegisterProvider makes a provider available to NewClient. Provider
// packages call it from init.
func RegisterProvider(name string, factory ProviderFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Providers lists the registered provider names.
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewClient returns a Client for modelID, written "provider:model-name".
// A bare model name uses DefaultProvider.
func NewClient(modelID string) (Client, error) {
	if !strings.Contains(modelID, ":") {
		modelID = DefaultProvider + ":" + modelID
	}
	provider, modelName, err := ParseModelID(modelID)
	if err != nil {
		return nil, fmt.Errorf("new client: %w", err)
	}
	registryMu.RLock()
	factory, ok := registry[provider]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no provider %q for model %q (registered: %s)", provider, modelID, strings.Join(Providers(), ", "))
	}
	return factory(modelName)
}
