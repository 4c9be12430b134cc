package debugapi

import (
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/banshee-data/cellwatch/internal/handoff"
	"github.com/banshee-data/cellwatch/internal/sim"
)

// PreviewStore keeps the last valid preview frame handed over by the loop.
type PreviewStore struct {
	frame atomic.Pointer[handoff.Frame]
	shown atomic.Uint64
}

var _ sim.PreviewSink = (*PreviewStore)(nil)

// NewPreviewStore returns an empty store.
func NewPreviewStore() *PreviewStore { return &PreviewStore{} }

// ShowFrame replaces the stored frame. Empty frames are ignored so the last
// good one stays visible.
func (p *PreviewStore) ShowFrame(f *handoff.Frame) {
	if f == nil || len(f.Data) == 0 {
		return
	}
	p.frame.Store(f)
	p.shown.Add(1)
}

// Latest returns the stored frame, or nil.
func (p *PreviewStore) Latest() *handoff.Frame { return p.frame.Load() }

// Shown counts the frames accepted so far.
func (p *PreviewStore) Shown() uint64 { return p.shown.Load() }

func (p *PreviewStore) serveHTTP(w http.ResponseWriter, r *http.Request) {
	f := p.Latest()
	if f == nil {
		http.Error(w, "no preview frame yet", http.StatusNotFound)
		return
	}
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(f.Seq, 10))
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
	w.Write(f.Data)
}
