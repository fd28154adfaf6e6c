package dispatch

import (
	"context"
	"sync"
)

// inFlightRegistry tracks submitted requests for explicit cancellation.
// It maps request IDs to their cancel functions from submission until the
// terminal delta is produced.
//
// All methods are safe for concurrent access.
type inFlightRegistry struct {
	mu      sync.Mutex
	entries map[string]context.CancelFunc
}

func newInFlightRegistry() *inFlightRegistry {
	return &inFlightRegistry{
		entries: make(map[string]context.CancelFunc),
	}
}

// register adds a request. It reports false if the ID is already in use.
func (r *inFlightRegistry) register(id string, cancel context.CancelFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[id]; exists {
		return false
	}
	r.entries[id] = cancel
	return true
}

// cancel cancels a request by calling its cancel function. Returns true
// if the request was found, false if it already finished or never
// existed.
func (r *inFlightRegistry) cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.entries[id]
	if !ok {
		return false
	}
	cancel()
	delete(r.entries, id)
	return true
}

// remove drops a finished request without cancelling it.
func (r *inFlightRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

func (r *inFlightRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
