// Package signal distributes the "person-class detection realized" signal
// to external subscribers: in-process channels, a gRPC stream and an SSE
// route. Subscribers that fall behind miss values; the simulation loop is
// never slowed by them.
package signal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/cellwatch/internal/monitoring"
	"github.com/banshee-data/cellwatch/internal/timeutil"
)

var logf = monitoring.Prefixed("signal")

// DefaultSubscriberBuffer is the per-subscriber backlog used when Subscribe
// is given a non-positive size.
const DefaultSubscriberBuffer = 16

// Event is one delivered signal value.
type Event struct {
	Seq    uint64    `json:"seq"`
	Person bool      `json:"person"`
	At     time.Time `json:"at"`
}

// Source is the read side of the signal hand-off.
type Source interface {
	C() <-chan bool
}

// Broker drains a signal source and fans every value out to its
// subscribers without blocking.
type Broker struct {
	src   Source
	clock timeutil.Clock

	mu          sync.Mutex
	subscribers map[string]chan Event
	closed      bool

	seq       atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewBroker creates a broker reading src.
func NewBroker(src Source, clock timeutil.Clock) *Broker {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Broker{src: src, clock: clock, subscribers: make(map[string]chan Event)}
}

// Subscribe registers a subscriber with the given backlog. The channel is
// closed on Unsubscribe or when Run returns.
func (b *Broker) Subscribe(buffer int) (string, <-chan Event) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	id := uuid.NewString()
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subscribers[id] = ch
	logf("subscriber %s connected (total %d)", id, len(b.subscribers))
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
		logf("subscriber %s disconnected (remaining %d)", id, len(b.subscribers))
	}
}

// Run forwards values until ctx is done, then closes every subscriber.
func (b *Broker) Run(ctx context.Context) error {
	defer b.shutdown()
	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-b.src.C():
			b.publish(v)
		}
	}
}

func (b *Broker) publish(v bool) {
	ev := Event{Seq: b.seq.Add(1), Person: v, At: b.clock.Now()}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
			b.delivered.Add(1)
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *Broker) shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Stats are broker totals.
type Stats struct {
	Published   uint64 `json:"published"`
	Delivered   uint64 `json:"delivered"`
	Dropped     uint64 `json:"dropped"`
	Subscribers int    `json:"subscribers"`
}

// Stats returns the current totals.
func (b *Broker) Stats() Stats {
	b.mu.Lock()
	n := len(b.subscribers)
	b.mu.Unlock()
	return Stats{
		Published:   b.seq.Load(),
		Delivered:   b.delivered.Load(),
		Dropped:     b.dropped.Load(),
		Subscribers: n,
	}
}
