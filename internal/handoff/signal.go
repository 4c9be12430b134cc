package handoff

import "sync/atomic"

// SignalSender is the writer end of the person signal.
type SignalSender interface {
	Offer(bool)
}

// Signal is a bounded, lossy boolean hand-off. When full, the oldest unread
// value is discarded to make room so readers always see the freshest values.
type Signal struct {
	ch      chan bool
	offered atomic.Uint64
	dropped atomic.Uint64
}

// NewSignal creates a signal hand-off holding up to capacity values.
func NewSignal(capacity int) *Signal {
	if capacity < 1 {
		capacity = 1
	}
	return &Signal{ch: make(chan bool, capacity)}
}

// Offer enqueues v without blocking.
func (s *Signal) Offer(v bool) {
	s.offered.Add(1)
	for {
		select {
		case s.ch <- v:
			return
		default:
		}
		// full: evict the oldest value and retry
		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
	}
}

// C exposes the receive side for readers that want to select on it.
func (s *Signal) C() <-chan bool { return s.ch }

// Drain reads every value currently queued. It returns whether any of them was
// true and how many were read; n == 0 means "no new signal".
func (s *Signal) Drain() (seen bool, n int) {
	for {
		select {
		case v := <-s.ch:
			seen = seen || v
			n++
		default:
			return seen, n
		}
	}
}

// Offered returns the number of values offered since creation.
func (s *Signal) Offered() uint64 { return s.offered.Load() }

// Dropped returns the number of values evicted unread.
func (s *Signal) Dropped() uint64 { return s.dropped.Load() }
