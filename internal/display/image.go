package display

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/banshee-data/cellwatch/internal/sim"
)

// ImageCanvas renders onto an in-memory RGBA image. Lines must be
// horizontal or vertical, which is all the grid render draws.
type ImageCanvas struct {
	Img *image.RGBA
}

var _ sim.Canvas = (*ImageCanvas)(nil)

// NewImageCanvas allocates a canvas for vp.
func NewImageCanvas(vp sim.Viewport) *ImageCanvas {
	return &ImageCanvas{Img: image.NewRGBA(image.Rect(0, 0, max(vp.Width, 0), max(vp.Height, 0)))}
}

// Fill paints the whole image.
func (c *ImageCanvas) Fill(col color.Color) {
	draw.Draw(c.Img, c.Img.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
}

// Line draws a one pixel axis-aligned line.
func (c *ImageCanvas) Line(x0, y0, x1, y1 float32, col color.Color) {
	switch {
	case x0 == x1:
		c.Rect(x0, min(y0, y1), 1, abs32(y1-y0), col)
	case y0 == y1:
		c.Rect(min(x0, x1), y0, abs32(x1-x0), 1, col)
	}
}

// Rect fills a rectangle, clipped to the image.
func (c *ImageCanvas) Rect(x, y, w, h float32, col color.Color) {
	r := image.Rect(
		int(math.Floor(float64(x))), int(math.Floor(float64(y))),
		int(math.Ceil(float64(x+w))), int(math.Ceil(float64(y+h))),
	).Intersect(c.Img.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(c.Img, r, image.NewUniform(col), image.Point{}, draw.Src)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
