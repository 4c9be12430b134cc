package grid

import "time"

// CellView is an immutable copy of a cell's observable state.
type CellView struct {
	ID         string `json:"id"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	ClassID    int    `json:"class_id"`
	JustPlaced bool   `json:"just_placed,omitempty"`
	Permanent  bool   `json:"permanent,omitempty"`
	Neighbors  int    `json:"neighbors"`
}

// Snapshot is a point-in-time copy of the grid, safe to hand to other
// goroutines.
type Snapshot struct {
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	Cells      []CellView `json:"cells"`
	Stalled    bool       `json:"stalled"`
	StallSince time.Time  `json:"stall_since,omitempty"`
	Counters   Counters   `json:"counters"`
}

// Snapshot copies the grid's state in row-major order.
func (g *Grid) Snapshot() *Snapshot {
	s := &Snapshot{
		Width:    g.width,
		Height:   g.height,
		Cells:    make([]CellView, 0, g.Occupied()),
		Stalled:  g.stallWaiting,
		Counters: g.Counters(),
	}
	if g.stallWaiting {
		s.StallSince = g.stallSince
	}
	g.ForEach(func(c *Cell) {
		s.Cells = append(s.Cells, CellView{
			ID:         c.id.String(),
			X:          c.x,
			Y:          c.y,
			ClassID:    c.classID,
			JustPlaced: c.justPlaced,
			Permanent:  c.permanent,
			Neighbors:  g.NeighborsOf(c.x, c.y),
		})
	})
	return s
}

// NeighborCounts returns the neighbour count of every occupant.
func (s *Snapshot) NeighborCounts() []float64 {
	out := make([]float64, len(s.Cells))
	for i, c := range s.Cells {
		out[i] = float64(c.Neighbors)
	}
	return out
}
