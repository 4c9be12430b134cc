package handoff

import (
	"sync"
	"time"
)

// Frame is an opaque raster artifact from the perception process, forwarded
// to a preview surface without interpretation.
type Frame struct {
	Seq         uint64
	Data        []byte
	ContentType string
	CapturedAt  time.Time
}

// FrameSender is the producer end of the latest-frame slot.
type FrameSender interface {
	Publish(*Frame)
}

// LatestFrame is a capacity-one, latest-wins slot. Publish overwrites any
// unread frame; TryTake empties the slot.
type LatestFrame struct {
	mu        sync.Mutex
	frame     *Frame
	seq       uint64
	published uint64
	drops     uint64
}

// NewLatestFrame returns an empty slot.
func NewLatestFrame() *LatestFrame {
	return &LatestFrame{}
}

// Publish stores f, replacing an unread frame if one is present. A zero Seq
// is assigned the next sequence number. Nil frames are ignored.
func (l *LatestFrame) Publish(f *Frame) {
	if f == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.frame != nil {
		l.drops++
	}
	l.seq++
	if f.Seq == 0 {
		f.Seq = l.seq
	}
	l.frame = f
	l.published++
}

// TryTake removes and returns the pending frame, if any.
func (l *LatestFrame) TryTake() (*Frame, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f := l.frame
	l.frame = nil
	return f, f != nil
}

// FrameStats is a snapshot of slot counters.
type FrameStats struct {
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
	Pending   bool   `json:"pending"`
}

// Stats returns the slot counters.
func (l *LatestFrame) Stats() FrameStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return FrameStats{Published: l.published, Dropped: l.drops, Pending: l.frame != nil}
}
