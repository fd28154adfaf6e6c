package dispatch

import "sync"

const outcomeWindow = 32

// outcomes keeps the success or failure of the most recent requests and
// reports the failure ratio, one of the buffer descriptor features.
type outcomes struct {
	mu     sync.Mutex
	ring   [outcomeWindow]bool
	next   int
	count  int
	failed int
}

func (o *outcomes) record(failed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.count == outcomeWindow {
		if o.ring[o.next] {
			o.failed--
		}
	} else {
		o.count++
	}
	o.ring[o.next] = failed
	if failed {
		o.failed++
	}
	o.next = (o.next + 1) % outcomeWindow
}

func (o *outcomes) rate() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.count == 0 {
		return 0
	}
	return float64(o.failed) / float64(o.count)
}
