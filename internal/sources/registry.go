// internal/sources/registry.go
package sources

import (
	"fmt"
	"sort"
	"sync"

	"github.com/valpere/AutoScrapexter/internal/browser"
	"github.com/valpere/AutoScrapexter/internal/utils"
)

// Registry holds the configured adapters keyed by source name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates a registry holding adapters.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an adapter. Names must be unique.
func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[a.Name()]; exists {
		return fmt.Errorf("source %q already registered", a.Name())
	}
	r.adapters[a.Name()] = a
	return nil
}

// Get returns the adapter for name.
func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns the registered source names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select returns the adapters for names, or all of them when names is empty.
// Unknown names are reported.
func (r *Registry) Select(names []string) ([]Adapter, error) {
	if len(names) == 0 {
		names = r.Names()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Adapter, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		a, ok := r.adapters[name]
		if !ok {
			return nil, fmt.Errorf("unknown source %q", name)
		}
		out = append(out, a)
	}
	return out, nil
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}

// Pools picks the session pool for a profile's renderer kind.
type Pools struct {
	Browser *browser.SessionPool
	HTTP    *browser.SessionPool
}

func (p Pools) forProfile(profile SiteProfile) (Sessions, error) {
	switch profile.Renderer {
	case RendererHTTP:
		if p.HTTP == nil {
			return nil, fmt.Errorf("profile %s wants the http renderer but none is configured", profile.Name)
		}
		return p.HTTP, nil
	default:
		if p.Browser != nil {
			return p.Browser, nil
		}
		// Without a browser, fall back to static fetching.
		if p.HTTP != nil {
			return p.HTTP, nil
		}
		return nil, fmt.Errorf("profile %s: no renderer available", profile.Name)
	}
}

// BuildRegistry creates one SiteAdapter per profile.
func BuildRegistry(profiles []SiteProfile, pools Pools, logger utils.Logger, opts ...AdapterOption) (*Registry, error) {
	reg, _ := NewRegistry()
	for _, profile := range profiles {
		sessions, err := pools.forProfile(profile)
		if err != nil {
			return nil, err
		}
		adapter, err := NewSiteAdapter(profile, sessions, logger, opts...)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(adapter); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
