package sim

// Render paints the grid onto c: a white background, light grid lines every
// cell across the whole viewport, and one black square per occupant inset
// by a pixel so neighbouring cells stay visually distinct.
func (e *Engine) Render(c Canvas) {
	c.Fill(colorBackground)

	cs := e.cellSize
	w, h := float32(e.viewport.Width), float32(e.viewport.Height)
	for x := 0; x < e.viewport.Width; x += cs {
		c.Line(float32(x), 0, float32(x), h, colorGridLine)
	}
	for y := 0; y < e.viewport.Height; y += cs {
		c.Line(0, float32(y), w, float32(y), colorGridLine)
	}

	size := float32(cs - 1)
	for y := 0; y < e.grid.Height(); y++ {
		for x := 0; x < e.grid.Width(); x++ {
			if e.grid.At(x, y) != nil {
				c.Rect(float32(x*cs), float32(y*cs), size, size, colorCell)
			}
		}
	}
}
