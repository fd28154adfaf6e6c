package provider

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Registry maps provider tags to adapters. It is typically populated at
// startup and read on every request.
type Registry struct {
	mu       sync.RWMutex
	adapters map[Tag]Adapter
}

// NewRegistry creates a registry holding the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[Tag]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for a.Tag().
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[a.Tag()]; exists {
		slog.Warn("replacing provider adapter", "provider", string(a.Tag()))
	}
	r.adapters[a.Tag()] = a
}

// Get returns the adapter for tag.
func (r *Registry) Get(tag Tag) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[tag]
	if !ok {
		return nil, fmt.Errorf("no adapter configured for provider %q", tag)
	}
	return a, nil
}

// Tags returns the registered provider tags in sorted order.
func (r *Registry) Tags() []Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]Tag, 0, len(r.adapters))
	for t := range r.adapters {
		tags = append(tags, t)
	}
	slices.Sort(tags)
	return tags
}
