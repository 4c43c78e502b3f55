package provider

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rhuss/schach/pkg/api"
)

// ErrDuplicateProvider indicates an attempt to register the same provider twice.
var ErrDuplicateProvider = errors.New("provider already registered")

// Registry maps provider IDs to adapters. Adding a vendor means registering
// another adapter; nothing else changes.
type Registry struct {
	mu       sync.RWMutex
	adapters map[api.ProviderID]Adapter
	order    []api.ProviderID
}

// NewRegistry constructs a registry holding the given adapters.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[api.ProviderID]Adapter)}
	for _, a := range adapters {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an adapter.
func (r *Registry) Register(a Adapter) error {
	if a == nil {
		return errors.New("adapter must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[a.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProvider, a.ID())
	}
	r.adapters[a.ID()] = a
	r.order = append(r.order, a.ID())
	return nil
}

// Lookup returns the adapter for id, or a configuration error.
func (r *Registry) Lookup(id api.ProviderID) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[id]
	if !ok {
		return nil, api.NewConfigurationError("unknown provider %q", id)
	}
	return a, nil
}

// Resolve returns the adapter for id together with the descriptor of modelID
// from that adapter's catalog.
func (r *Registry) Resolve(id api.ProviderID, modelID string) (Adapter, api.ModelDescriptor, error) {
	a, err := r.Lookup(id)
	if err != nil {
		return nil, api.ModelDescriptor{}, err
	}
	if modelID == "" {
		return nil, api.ModelDescriptor{}, api.NewConfigurationError("%s: model id is required", id)
	}
	m, ok := FindModel(a.Models(), modelID)
	if !ok {
		return nil, api.ModelDescriptor{}, api.NewConfigurationError("%s: unknown model %q", id, modelID)
	}
	return a, m, nil
}

// Adapters returns all adapters in registration order.
func (r *Registry) Adapters() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Adapter, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.adapters[id])
	}
	return out
}
