package buffer

// Thresholds on the rolling mean, as a fraction of the current size.
const (
	growThreshold   = 0.8
	shrinkThreshold = 0.3
)

// Limits bound a State and control how fast it moves.
type Limits struct {
	Min    int
	Max    int
	Growth float64
	Shrink float64
	Window int
}

// State is the dynamic buffer state of one connection. It is owned by the
// goroutine reading that connection and is not safe for concurrent use.
type State struct {
	limits Limits
	size   int

	ring  []int
	next  int
	count int
	sum   int
}

// NewState creates a state starting at initial, clamped to the limits.
func NewState(initial int, l Limits) *State {
	if l.Window <= 0 {
		l.Window = DefaultWindow
	}
	if l.Max < l.Min {
		l.Max = l.Min
	}
	return &State{
		limits: l,
		size:   clampInt(initial, l.Min, l.Max),
		ring:   make([]int, l.Window),
	}
}

// Size returns the current buffer size.
func (s *State) Size() int {
	return s.size
}

// Limits returns the bounds this state was created with.
func (s *State) Limits() Limits {
	return s.limits
}

// Adjust records an observed chunk size and returns the new buffer size.
// The chunk enters the rolling window (dropping the oldest); if the
// window mean exceeds 0.8 of the current size the buffer grows by the
// growth factor, if it falls below 0.3 it shrinks by the shrink factor.
// The result always stays within [Min, Max].
func (s *State) Adjust(chunk int) int {
	if s.count == len(s.ring) {
		s.sum -= s.ring[s.next]
	} else {
		s.count++
	}
	s.ring[s.next] = chunk
	s.sum += chunk
	s.next = (s.next + 1) % len(s.ring)

	mean := float64(s.sum) / float64(s.count)
	current := float64(s.size)

	switch {
	case mean > growThreshold*current:
		s.size = min(s.limits.Max, int(current*s.limits.Growth))
	case mean < shrinkThreshold*current:
		s.size = max(s.limits.Min, int(current*s.limits.Shrink))
	}
	return s.size
}
