package batcher

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cellwatch/internal/detection"
)

type fixedRand int

func (r fixedRand) Intn(n int) int { return int(r) % n }

func events(classIDs ...int) []detection.Event {
	out := make([]detection.Event, len(classIDs))
	for i, id := range classIDs {
		out[i] = detection.Event{ClassID: id, Confidence: 0.9}
	}
	return out
}

func TestTick_Empty(t *testing.T) {
	b := NewBuffer(fixedRand(0), 0)
	_, ok := b.Tick()
	assert.False(t, ok)
	assert.Equal(t, uint64(0), b.Stats().Taken)
}

func TestTick_RemovesChosenElement(t *testing.T) {
	b := NewBuffer(fixedRand(1), 0)
	b.Push(events(10, 11, 12)...)

	e, ok := b.Tick()
	require.True(t, ok)
	assert.Equal(t, 11, e.ClassID)
	assert.Equal(t, 2, b.Len())

	var rest []int
	for {
		e, ok := b.Tick()
		if !ok {
			break
		}
		rest = append(rest, e.ClassID)
	}
	if diff := cmp.Diff([]int{12, 10}, rest); diff != "" {
		t.Errorf("remaining order mismatch (-want +got):\n%s", diff)
	}
}

func TestTick_EveryEventConsumedOnce(t *testing.T) {
	b := NewBuffer(rand.New(rand.NewSource(7)), 0)
	in := events(0, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	b.PushBatch(in)

	seen := map[int]int{}
	for {
		e, ok := b.Tick()
		if !ok {
			break
		}
		seen[e.ClassID]++
	}
	assert.Len(t, seen, len(in))
	for id, n := range seen {
		assert.Equal(t, 1, n, "class %d", id)
	}
}

// A producer delivering N events per second against a one-per-second drain
// grows the buffer by N-1 per second.
func TestBuffer_GrowsUnderSustainedLoad(t *testing.T) {
	const perSecond, seconds = 5, 10
	b := NewBuffer(rand.New(rand.NewSource(1)), 0)

	for s := 0; s < seconds; s++ {
		for i := 0; i < perSecond; i++ {
			assert.Equal(t, 0, b.Push(events(i)...))
		}
		_, ok := b.Tick()
		require.True(t, ok)
	}

	assert.Equal(t, (perSecond-1)*seconds, b.Len())
	st := b.Stats()
	assert.Equal(t, uint64(perSecond*seconds), st.Pushed)
	assert.Equal(t, uint64(seconds), st.Taken)
	assert.Zero(t, st.Dropped)
}

func TestPush_LimitDropsOldest(t *testing.T) {
	b := NewBuffer(fixedRand(0), 3)

	assert.Equal(t, 0, b.Push(events(1, 2)...))
	assert.Equal(t, 2, b.Push(events(3, 4, 5)...))
	assert.Equal(t, 3, b.Len())

	var got []int
	for {
		e, ok := b.Tick()
		if !ok {
			break
		}
		got = append(got, e.ClassID)
	}
	assert.Equal(t, []int{3, 4, 5}, got)
	assert.Equal(t, uint64(2), b.Stats().Dropped)
	assert.Equal(t, 3, b.Stats().Limit)
}

func TestNewBuffer_NegativeLimitIsUnbounded(t *testing.T) {
	b := NewBuffer(fixedRand(0), -4)
	b.Push(events(make([]int, 100)...)...)
	assert.Equal(t, 100, b.Len())
}
