package debugapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cellwatch/internal/feed"
	"github.com/banshee-data/cellwatch/internal/grid"
	"github.com/banshee-data/cellwatch/internal/handoff"
	"github.com/banshee-data/cellwatch/internal/journal"
	"github.com/banshee-data/cellwatch/internal/sim"
	"github.com/banshee-data/cellwatch/internal/testutil"
)

type fakeEngine struct {
	snap  *grid.Snapshot
	stats *sim.Stats
}

func (f *fakeEngine) Snapshot() *grid.Snapshot { return f.snap }
func (f *fakeEngine) Stats() *sim.Stats        { return f.stats }

type fakePump struct{ st feed.Stats }

func (f fakePump) Stats() feed.Stats { return f.st }

type fakeJournal struct{ st journal.Stats }

func (f fakeJournal) Stats() journal.Stats { return f.st }

func testSnapshot() *grid.Snapshot {
	return &grid.Snapshot{
		Width:  4,
		Height: 3,
		Cells: []grid.CellView{
			{ID: "a", X: 0, Y: 0, ClassID: 0, Neighbors: 1},
			{ID: "b", X: 1, Y: 0, ClassID: 0, Neighbors: 1},
			{ID: "c", X: 3, Y: 2, ClassID: 2},
		},
	}
}

func TestShowStats(t *testing.T) {
	eng := &fakeEngine{}
	srv := NewServer(Options{
		Engine:  eng,
		Pump:    fakePump{st: feed.Stats{Payloads: 4, Batches: 3}},
		Journal: fakeJournal{st: journal.Stats{RunID: "run", Written: 9}},
	})
	mux := srv.ServeMux()

	w := testutil.Serve(t, mux, testutil.LocalRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	eng.stats = &sim.Stats{Ticks: 12, Cells: 3, Realized: 5, GridWidth: 4, GridHeight: 3}
	w = testutil.Serve(t, mux, testutil.LocalRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got StatsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	if diff := cmp.Diff(eng.stats, got.Sim); diff != "" {
		t.Errorf("sim stats mismatch (-want +got):\n%s", diff)
	}
	require.NotNil(t, got.Feed)
	assert.Equal(t, uint64(3), got.Feed.Batches)
	require.NotNil(t, got.Journal)
	assert.Equal(t, uint64(9), got.Journal.Written)
	assert.Nil(t, got.Signal)
}

func TestShowGrid(t *testing.T) {
	eng := &fakeEngine{snap: testSnapshot()}
	mux := NewServer(Options{Engine: eng}).ServeMux()

	w := testutil.Serve(t, mux, testutil.LocalRequest(http.MethodGet, "/api/grid", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got grid.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	if diff := cmp.Diff(eng.snap, &got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	w = testutil.Serve(t, mux, testutil.LocalRequest(http.MethodPost, "/api/grid", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestGridChart(t *testing.T) {
	mux := NewServer(Options{Engine: &fakeEngine{snap: testSnapshot()}}).ServeMux()

	w := testutil.Serve(t, mux, testutil.LocalRequest(http.MethodGet, "/debug/grid-chart", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	body := w.Body.String()
	assert.Contains(t, body, "class 0")
	assert.Contains(t, body, "class 2")
}

func TestGridPNG(t *testing.T) {
	for _, snap := range []*grid.Snapshot{testSnapshot(), {}} {
		mux := NewServer(Options{Engine: &fakeEngine{snap: snap}}).ServeMux()
		w := testutil.Serve(t, mux, testutil.LocalRequest(http.MethodGet, "/debug/grid.png", nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG\r\n\x1a\n")))
	}
}

func TestByClass_FlipsRows(t *testing.T) {
	groups, classes := byClass(testSnapshot())
	assert.Equal(t, []int{0, 2}, classes)
	assert.Equal(t, [][2]float64{{0, 2}, {1, 2}}, groups[0])
	assert.Equal(t, [][2]float64{{3, 0}}, groups[2])
}

func TestPreview(t *testing.T) {
	store := NewPreviewStore()
	mux := NewServer(Options{Engine: &fakeEngine{}, Preview: store}).ServeMux()

	w := testutil.Serve(t, mux, testutil.LocalRequest(http.MethodGet, "/debug/preview", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	store.ShowFrame(&handoff.Frame{Seq: 7, Data: []byte("jpeg"), ContentType: "image/jpeg"})
	store.ShowFrame(&handoff.Frame{Seq: 8})
	store.ShowFrame(nil)
	assert.Equal(t, uint64(1), store.Shown())

	w = testutil.Serve(t, mux, testutil.LocalRequest(http.MethodGet, "/debug/preview", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "7", w.Header().Get("X-Frame-Seq"))
	assert.Equal(t, "jpeg", w.Body.String())
}

func TestLoggingMiddleware_PassesStatus(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	w := testutil.Serve(t, h, testutil.LocalRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, statusCodeColor(http.StatusAccepted), "202")
}
