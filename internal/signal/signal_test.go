package signal

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/banshee-data/cellwatch/internal/handoff"
	"github.com/banshee-data/cellwatch/internal/testutil"
	"github.com/banshee-data/cellwatch/internal/timeutil"
)

func startBroker(t *testing.T) (*Broker, *handoff.Signal, context.CancelFunc) {
	t.Helper()
	sig := handoff.NewSignal(8)
	b := NewBroker(sig, timeutil.NewMockClock(testutil.Epoch))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return b, sig, cancel
}

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signal")
		return Event{}
	}
}

func TestBroker_FanOut(t *testing.T) {
	b, sig, _ := startBroker(t)
	_, a := b.Subscribe(4)
	_, c := b.Subscribe(4)

	sig.Offer(true)
	sig.Offer(false)

	for _, ch := range []<-chan Event{a, c} {
		first := receive(t, ch)
		second := receive(t, ch)
		assert.Equal(t, Event{Seq: 1, Person: true, At: testutil.Epoch}, first)
		assert.Equal(t, Event{Seq: 2, Person: false, At: testutil.Epoch}, second)
	}
	require.Eventually(t, func() bool { return b.Stats().Delivered == 4 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, Stats{Published: 2, Delivered: 4, Subscribers: 2}, b.Stats())
}

func TestBroker_SlowSubscriberDrops(t *testing.T) {
	b, sig, _ := startBroker(t)
	_, slow := b.Subscribe(1)

	for i := 0; i < 3; i++ {
		sig.Offer(true)
	}
	require.Eventually(t, func() bool {
		st := b.Stats()
		return st.Delivered+st.Dropped == 3
	}, 2*time.Second, time.Millisecond)

	assert.Equal(t, uint64(1), b.Stats().Delivered)
	assert.Equal(t, uint64(2), b.Stats().Dropped)
	assert.Equal(t, uint64(1), receive(t, slow).Seq)
}

func TestBroker_ShutdownClosesSubscribers(t *testing.T) {
	b, _, cancel := startBroker(t)
	id, ch := b.Subscribe(0)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber not closed on shutdown")
	}

	b.Unsubscribe(id)
	_, late := b.Subscribe(1)
	_, ok := <-late
	assert.False(t, ok)
}

func TestGRPC_WatchStreamsSignal(t *testing.T) {
	b, sig, _ := startBroker(t)

	lis := bufconn.Listen(1 << 20)
	srvCtx, stopSrv := context.WithCancel(context.Background())
	defer stopSrv()
	served := make(chan error, 1)
	go func() { served <- NewServer(b).ServeListener(srvCtx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan bool, 8)
	watched := make(chan error, 1)
	go func() { watched <- Watch(ctx, conn, func(v bool) { got <- v }) }()

	require.Eventually(t, func() bool { return b.Stats().Subscribers == 1 }, 5*time.Second, 5*time.Millisecond)
	sig.Offer(true)
	sig.Offer(false)

	for _, want := range []bool{true, false} {
		select {
		case v := <-got:
			assert.Equal(t, want, v)
		case <-time.After(5 * time.Second):
			t.Fatal("no value over gRPC")
		}
	}

	cancel()
	select {
	case err := <-watched:
		assert.Equal(t, codes.Canceled, status.Code(err))
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
	require.Eventually(t, func() bool { return b.Stats().Subscribers == 0 }, 5*time.Second, 5*time.Millisecond)

	stopSrv()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestSSE_StreamsEvents(t *testing.T) {
	b, sig, _ := startBroker(t)
	srv := httptest.NewServer(b)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return b.Stats().Subscribers == 1 }, 2*time.Second, 5*time.Millisecond)
	sig.Offer(true)

	scanner := bufio.NewScanner(resp.Body)
	var data string
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NotEmpty(t, data)
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.True(t, ev.Person)
	assert.Equal(t, uint64(1), ev.Seq)
}

func TestSSE_RejectsNonGet(t *testing.T) {
	b := NewBroker(handoff.NewSignal(1), nil)
	w := httptest.NewRecorder()
	b.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
