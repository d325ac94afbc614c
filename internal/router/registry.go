// Package router selects inference providers under live health constraints:
// a registry of provider descriptors, a health tracker fed by request
// outcomes and background probes, and a routing engine with tier-ordered,
// health-aware failover.
package router

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/atelierhq/loom-core/internal/config"
)

// ErrUnknownProvider is returned for operations naming an unregistered
// provider.
var ErrUnknownProvider = errors.New("unknown provider")

// Registry is the owned store of provider descriptors. Descriptors are
// immutable at runtime except the enabled flag.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*providerState
}

type providerState struct {
	desc    config.ProviderDescriptor
	enabled bool
}

// NewRegistry builds a registry from validated provider descriptors.
func NewRegistry(descs []config.ProviderDescriptor) *Registry {
	r := &Registry{providers: make(map[string]*providerState, len(descs))}
	for _, d := range descs {
		r.providers[d.Name] = &providerState{desc: d, enabled: d.Enabled}
	}
	return r
}

// Get returns the descriptor and live enabled flag for one provider.
func (r *Registry) Get(name string) (config.ProviderDescriptor, bool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return config.ProviderDescriptor{}, false, false
	}
	return p.desc, p.enabled, true
}

// List returns every descriptor sorted by name, with the live enabled flag
// folded into the Enabled field.
func (r *Registry) List() []config.ProviderDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]config.ProviderDescriptor, 0, len(r.providers))
	for _, p := range r.providers {
		d := p.desc
		d.Enabled = p.enabled
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetEnabled flips one provider's enabled flag. Effective for the very next
// route call.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	p.enabled = enabled
	return nil
}

// Reload replaces the provider set after a config hot reload. The file is
// the source of truth: enabled flags set through the admin API since the
// previous load are overwritten.
func (r *Registry) Reload(descs []config.ProviderDescriptor) {
	next := make(map[string]*providerState, len(descs))
	for _, d := range descs {
		next[d.Name] = &providerState{desc: d, enabled: d.Enabled}
	}
	r.mu.Lock()
	r.providers = next
	r.mu.Unlock()
}
