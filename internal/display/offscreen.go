package display

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"sync"

	"tailscale.com/tsweb"

	"github.com/banshee-data/cellwatch/internal/sim"
)

// ErrNoFrame is returned before the first render has completed.
var ErrNoFrame = errors.New("no rendered frame yet")

// Offscreen is a double-buffered canvas for headless runs. Each Fill starts
// a new frame and publishes the previous one, which readers can encode while
// the loop keeps drawing. Publishing is skipped, never waited for, while a
// reader holds the front buffer.
type Offscreen struct {
	display sim.Display
	back    ImageCanvas
	pending bool

	mu    sync.RWMutex
	front *image.RGBA
}

var _ sim.Canvas = (*Offscreen)(nil)

// NewOffscreen sizes each frame from display's viewport.
func NewOffscreen(display sim.Display) *Offscreen {
	return &Offscreen{display: display}
}

// Fill implements sim.Canvas.
func (o *Offscreen) Fill(col color.Color) {
	if o.pending && o.mu.TryLock() {
		o.front, o.back.Img = o.back.Img, o.front
		o.mu.Unlock()
		o.pending = false
	}
	vp := o.display.Viewport()
	want := image.Rect(0, 0, max(vp.Width, 0), max(vp.Height, 0))
	if o.back.Img == nil || o.back.Img.Bounds() != want {
		o.back.Img = image.NewRGBA(want)
	}
	o.back.Fill(col)
	o.pending = true
}

// Line implements sim.Canvas.
func (o *Offscreen) Line(x0, y0, x1, y1 float32, col color.Color) {
	o.back.Line(x0, y0, x1, y1, col)
}

// Rect implements sim.Canvas.
func (o *Offscreen) Rect(x, y, w, h float32, col color.Color) {
	o.back.Rect(x, y, w, h, col)
}

// WritePNG encodes the last published frame.
func (o *Offscreen) WritePNG(w io.Writer) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.front == nil {
		return ErrNoFrame
	}
	return png.Encode(w, o.front)
}

// AttachAdminRoutes serves the last published frame as a PNG.
func (o *Offscreen) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("render.png", "Last frame drawn by the headless loop", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		if err := o.WritePNG(w); err != nil {
			w.Header().Del("Content-Type")
			http.Error(w, err.Error(), http.StatusNotFound)
		}
	})
}
