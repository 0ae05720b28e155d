package adapter

import (
	"fmt"
	"sync"
)

// Registry holds the harnessed adapters the engine iterates. Registration
// order is preserved so fetch passes and status listings are stable.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Harness
	order  []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Harness)}
}

// Register adds a harnessed adapter. Duplicate source names are rejected;
// every adapter identity must be unique.
func (r *Registry) Register(h *Harness) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := h.SourceName()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("adapter %q already registered", name)
	}
	r.byName[name] = h
	r.order = append(r.order, name)
	return nil
}

// Get looks up a harness by source name.
func (r *Registry) Get(name string) (*Harness, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byName[name]
	return h, ok
}

// Discovery returns the discovery harnesses in registration order.
func (r *Registry) Discovery() []*Harness {
	return r.ofType(TypeDiscovery)
}

// Results returns the results harnesses in registration order.
func (r *Registry) Results() []*Harness {
	return r.ofType(TypeResults)
}

// Names returns every registered source name in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) ofType(t Type) []*Harness {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Harness
	for _, name := range r.order {
		if h := r.byName[name]; h.AdapterType() == t {
			out = append(out, h)
		}
	}
	return out
}
