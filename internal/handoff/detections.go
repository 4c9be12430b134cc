package handoff

import (
	"sync/atomic"

	"github.com/banshee-data/cellwatch/internal/detection"
)

// DetectionSender is the producer end of the detection hand-off.
type DetectionSender interface {
	// Send offers a batch without blocking and reports whether it was queued.
	Send(detection.Batch) bool
}

// Detections is a bounded many-writer, single-reader queue of detection
// batches. Writers never block: when the queue is full the batch is dropped
// and counted.
type Detections struct {
	ch      chan detection.Batch
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewDetections creates a detection hand-off holding up to capacity batches.
func NewDetections(capacity int) *Detections {
	if capacity < 1 {
		capacity = 1
	}
	return &Detections{ch: make(chan detection.Batch, capacity)}
}

// Send queues a batch if there is room. Empty batches are accepted and
// counted so producers can signal "frame processed, nothing seen".
func (d *Detections) Send(b detection.Batch) bool {
	select {
	case d.ch <- b:
		d.sent.Add(1)
		return true
	default:
		d.dropped.Add(1)
		return false
	}
}

// Drain hands every batch currently queued to fn and returns the number of
// batches drained. It returns immediately when the queue is empty.
func (d *Detections) Drain(fn func(detection.Batch)) int {
	n := 0
	for {
		select {
		case b := <-d.ch:
			fn(b)
			n++
		default:
			return n
		}
	}
}

// Len returns the number of queued batches.
func (d *Detections) Len() int { return len(d.ch) }

// Cap returns the queue capacity.
func (d *Detections) Cap() int { return cap(d.ch) }

// Sent returns the number of batches accepted since creation.
func (d *Detections) Sent() uint64 { return d.sent.Load() }

// Dropped returns the number of batches refused because the queue was full.
func (d *Detections) Dropped() uint64 { return d.dropped.Load() }
