// Package platform hosts the venue adapters and the registry the router
// resolves them through.
package platform

import (
	"sort"
	"sync"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

// Registry maps venue names to adapter factories. Registration happens at
// wiring time; resolution is concurrent-safe.
type Registry struct {
	mu        sync.RWMutex
	factories map[domain.Venue]domain.AdapterFactory
}

var _ domain.VenueRegistry = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[domain.Venue]domain.AdapterFactory)}
}

// Register installs a factory for the venue, replacing any prior one.
func (r *Registry) Register(venue domain.Venue, factory domain.AdapterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[venue] = factory
}

// Resolve returns the factory for the venue.
func (r *Registry) Resolve(venue domain.Venue) (domain.AdapterFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[venue]
	return factory, ok
}

// Venues lists the registered venue names, sorted.
func (r *Registry) Venues() []domain.Venue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Venue, 0, len(r.factories))
	for v := range r.factories {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
