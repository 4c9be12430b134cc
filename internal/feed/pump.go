package feed

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/banshee-data/cellwatch/internal/detection"
	"github.com/banshee-data/cellwatch/internal/handoff"
)

// Stats are lifetime counters for one Pump.
type Stats struct {
	Payloads uint64 `json:"payloads"`
	Batches  uint64 `json:"batches"`
	Events   uint64 `json:"events"`
	Rejected uint64 `json:"rejected"`
	Dropped  uint64 `json:"dropped"`
}

// Pump parses raw payloads into detection batches and offers them to the
// detection hand-off. It is safe for concurrent use, so one Pump may serve
// several sources.
type Pump struct {
	sink          handoff.DetectionSender
	minConfidence float64

	payloads atomic.Uint64
	batches  atomic.Uint64
	events   atomic.Uint64
	rejected atomic.Uint64
	dropped  atomic.Uint64
}

// NewPump returns a Pump that discards detections below minConfidence.
func NewPump(sink handoff.DetectionSender, minConfidence float64) *Pump {
	return &Pump{sink: sink, minConfidence: minConfidence}
}

// Handle parses one payload and offers the resulting batch. Parse failures
// are counted and returned; a full hand-off is counted but is not an error.
// Batches left empty by the confidence filter are not forwarded.
func (p *Pump) Handle(payload []byte) error {
	p.payloads.Add(1)
	batch, err := detection.Parse(payload, p.minConfidence)
	if err != nil {
		p.rejected.Add(1)
		return err
	}
	if len(batch) == 0 {
		return nil
	}
	if !p.sink.Send(batch) {
		p.dropped.Add(1)
		return nil
	}
	p.batches.Add(1)
	p.events.Add(uint64(len(batch)))
	return nil
}

// Run consumes lines until the channel is closed or ctx is done.
func (p *Pump) Run(ctx context.Context, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := p.Handle([]byte(line)); err != nil && !errors.Is(err, detection.ErrEmptyPayload) {
				logf("rejected payload: %v", err)
			}
		}
	}
}

// Stats returns the current counters.
func (p *Pump) Stats() Stats {
	return Stats{
		Payloads: p.payloads.Load(),
		Batches:  p.batches.Load(),
		Events:   p.events.Load(),
		Rejected: p.rejected.Load(),
		Dropped:  p.dropped.Load(),
	}
}

// LineSource is the subscription side of a Mux.
type LineSource interface {
	Subscribe() (string, chan string)
	Unsubscribe(id string)
}

// Attach subscribes p to src right away, so no line broadcast after it
// returns is missed, and returns the loop that pumps those lines until ctx
// is done or the source closes the subscription.
func (p *Pump) Attach(src LineSource) func(ctx context.Context) error {
	id, lines := src.Subscribe()
	return func(ctx context.Context) error {
		defer src.Unsubscribe(id)
		return p.Run(ctx, lines)
	}
}
