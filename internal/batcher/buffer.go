// Package batcher holds detections that have arrived faster than the
// simulation realizes them. The buffer is unordered from the consumer's
// point of view: every batch tick removes one uniformly random event.
package batcher

import (
	"slices"

	"github.com/banshee-data/cellwatch/internal/detection"
	"github.com/banshee-data/cellwatch/internal/grid"
)

// Buffer accumulates detection events between batch ticks. It is owned by
// the simulation loop and is not safe for concurrent use.
type Buffer struct {
	events []detection.Event
	rng    grid.Rand
	limit  int

	pushed  uint64
	taken   uint64
	dropped uint64
}

// NewBuffer creates a buffer drawing on rng. limit <= 0 leaves the buffer
// unbounded; otherwise pushing beyond limit discards the oldest events.
func NewBuffer(rng grid.Rand, limit int) *Buffer {
	return &Buffer{rng: rng, limit: max(limit, 0)}
}

// Push appends events and returns how many older events were discarded to
// stay within the limit. Push never blocks.
func (b *Buffer) Push(events ...detection.Event) int {
	b.events = append(b.events, events...)
	b.pushed += uint64(len(events))
	if b.limit == 0 || len(b.events) <= b.limit {
		return 0
	}
	over := len(b.events) - b.limit
	b.events = slices.Delete(b.events, 0, over)
	b.dropped += uint64(over)
	return over
}

// PushBatch appends every event of one delivered batch.
func (b *Buffer) PushBatch(batch detection.Batch) int {
	return b.Push(batch...)
}

// Tick removes and returns one uniformly random event. It reports false when
// the buffer is empty.
func (b *Buffer) Tick() (detection.Event, bool) {
	if len(b.events) == 0 {
		return detection.Event{}, false
	}
	i := b.rng.Intn(len(b.events))
	e := b.events[i]
	b.events = slices.Delete(b.events, i, i+1)
	b.taken++
	return e, true
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int { return len(b.events) }

// Stats are lifetime buffer totals.
type Stats struct {
	Buffered int    `json:"buffered"`
	Pushed   uint64 `json:"pushed"`
	Taken    uint64 `json:"taken"`
	Dropped  uint64 `json:"dropped"`
	Limit    int    `json:"limit"`
}

// Stats returns the current depth and lifetime totals.
func (b *Buffer) Stats() Stats {
	return Stats{
		Buffered: len(b.events),
		Pushed:   b.pushed,
		Taken:    b.taken,
		Dropped:  b.dropped,
		Limit:    b.limit,
	}
}
