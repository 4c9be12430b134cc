// Package display provides the viewport sources the loop runs against when
// no window is open, and an image canvas for off-screen renders.
package display

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"tailscale.com/tsweb"

	"github.com/banshee-data/cellwatch/internal/config"
	"github.com/banshee-data/cellwatch/internal/httputil"
	"github.com/banshee-data/cellwatch/internal/monitoring"
	"github.com/banshee-data/cellwatch/internal/sim"
)

var logf = monitoring.Prefixed("display")

// Headless is a fixed-size display. The viewport only changes through
// Resize, which the debug route exposes for servers without a window.
type Headless struct {
	mu sync.RWMutex
	vp sim.Viewport
}

var _ sim.Display = (*Headless)(nil)

// NewHeadless returns a display reporting a width x height viewport.
func NewHeadless(width, height int) *Headless {
	return &Headless{vp: sim.Viewport{Width: width, Height: height}}
}

// Viewport implements sim.Display.
func (h *Headless) Viewport() sim.Viewport {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.vp
}

// MaxViewportSize bounds each viewport axis in pixels.
const MaxViewportSize = config.MaxWindowSize

// Resize changes the reported viewport. Negative sizes and sizes above
// MaxViewportSize are rejected.
func (h *Headless) Resize(width, height int) error {
	if width < 0 || height < 0 || width > MaxViewportSize || height > MaxViewportSize {
		return fmt.Errorf("invalid viewport %dx%d: each axis must be between 0 and %d", width, height, MaxViewportSize)
	}
	h.mu.Lock()
	h.vp = sim.Viewport{Width: width, Height: height}
	h.mu.Unlock()
	logf("viewport resized to %dx%d", width, height)
	return nil
}

// AttachAdminRoutes adds a viewport route: GET reports it, POST with width
// and height form values resizes it.
func (h *Headless) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("viewport", "Headless viewport (POST width, height to resize)", func(w http.ResponseWriter, r *http.Request) {
		if !httputil.AllowMethods(w, r, http.MethodGet, http.MethodPost) {
			return
		}
		if r.Method == http.MethodPost {
			width, errW := strconv.Atoi(r.FormValue("width"))
			height, errH := strconv.Atoi(r.FormValue("height"))
			if errW != nil || errH != nil {
				httputil.WriteJSONError(w, http.StatusBadRequest, "width and height must be integers")
				return
			}
			if err := h.Resize(width, height); err != nil {
				httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		httputil.WriteJSONOK(w, h.Viewport())
	})
}
