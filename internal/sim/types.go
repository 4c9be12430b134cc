package sim

import (
	"image/color"
	"time"

	"github.com/banshee-data/cellwatch/internal/handoff"
)

// Viewport is the drawable area in pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GridSize derives grid dimensions for square cells of cellSize pixels.
func (v Viewport) GridSize(cellSize int) (width, height int) {
	if cellSize <= 0 {
		return 0, 0
	}
	return max(v.Width, 0) / cellSize, max(v.Height, 0) / cellSize
}

// Display reports the current viewport. It is polled every render tick.
type Display interface {
	Viewport() Viewport
}

// Canvas is the drawing surface the render pass paints on.
type Canvas interface {
	Fill(c color.Color)
	Line(x0, y0, x1, y1 float32, c color.Color)
	Rect(x, y, w, h float32, c color.Color)
}

// PreviewSink receives the latest frame forwarded from the perception
// process. Implementations must not block.
type PreviewSink interface {
	ShowFrame(f *handoff.Frame)
}

// RecordKind names a simulation occurrence written to a Recorder.
type RecordKind string

const (
	RecordPlaced     RecordKind = "placed"
	RecordUnplaced   RecordKind = "unplaced"
	RecordStallClear RecordKind = "stall_clear"
	RecordResize     RecordKind = "resize"
	RecordOverflow   RecordKind = "overflow"
)

// Record describes one occurrence. Fields not relevant to Kind are zero.
type Record struct {
	Kind       RecordKind
	At         time.Time
	ClassID    int
	Confidence float64
	CellID     string
	X, Y       int
	Count      int
	Width      int
	Height     int
}

// Recorder consumes simulation records. Record is called on the loop
// goroutine and must not block.
type Recorder interface {
	Record(r Record)
}

var (
	colorBackground = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorGridLine   = color.RGBA{R: 225, G: 225, B: 225, A: 255}
	colorCell       = color.RGBA{A: 255}
)
