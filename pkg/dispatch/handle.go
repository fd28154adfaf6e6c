package dispatch

import (
	"context"
	"io"
	"sync"

	"github.com/rhuss/strom/pkg/provider"
)

// Handle is the caller's side of one submitted request. Deltas arrive in
// the order the provider produced them and the stream always ends with a
// single terminal delta (completion or error), after which Poll returns
// io.EOF.
//
// A Handle may be polled from one goroutine at a time.
type Handle struct {
	id     string
	deltas chan provider.Delta
	done   chan struct{}
	cancel context.CancelFunc

	// tail is written once by the worker before deltas is closed.
	mu       sync.Mutex
	tail     provider.Delta
	tailSent bool
}

func newHandle(id string, capacity int, cancel context.CancelFunc) *Handle {
	return &Handle{
		id:     id,
		deltas: make(chan provider.Delta, capacity),
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

// ID returns the request ID.
func (h *Handle) ID() string {
	return h.id
}

// Poll returns the next delta. It blocks until a delta is available or
// ctx is done. After the terminal delta it returns io.EOF.
func (h *Handle) Poll(ctx context.Context) (provider.Delta, error) {
	select {
	case d, ok := <-h.deltas:
		if ok {
			return d, nil
		}
		return h.takeTail()
	case <-ctx.Done():
		return provider.Delta{}, ctx.Err()
	}
}

// Cancel stops the request. Its stream ends with a cancelled error unless
// it already finished.
func (h *Handle) Cancel() {
	h.cancel()
}

// Done returns a channel that is closed once the request has released
// its slot and produced its terminal delta.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) finish(tail provider.Delta) {
	h.mu.Lock()
	h.tail = tail
	h.mu.Unlock()
	close(h.deltas)
	close(h.done)
}

func (h *Handle) takeTail() (provider.Delta, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tailSent {
		return provider.Delta{}, io.EOF
	}
	h.tailSent = true
	return h.tail, nil
}
