package capability

import (
	"sort"
	"sync"
)

// Registry tracks which message types and element capabilities this
// process can serve. Consumers and workers register what they handle at
// startup; the admin surface reads the registry to know which scenario
// elements are executable.
type Registry struct {
	mu    sync.Mutex
	names map[string]int
}

func NewRegistry() *Registry {
	return &Registry{names: make(map[string]int)}
}

// Register records a subscriber for name. Multiple subscribers for the
// same name are counted.
func (r *Registry) Register(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[name]++
}

// Unregister removes one subscriber for name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.names[name] <= 1 {
		delete(r.names, name)
		return
	}
	r.names[name]--
}

// HasSubscribers reports whether at least one subscriber is registered
// for name.
func (r *Registry) HasSubscribers(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.names[name] > 0
}

// Names returns the registered capability names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
