package grid

import (
	"time"

	"github.com/google/uuid"
)

// Cell is one grid occupant spawned by a realized detection. Its position
// always matches the slot holding it; only the Grid rewrites it.
type Cell struct {
	id       uuid.UUID
	classID  int
	placedAt time.Time

	x, y   int
	inGrid bool

	justPlaced bool
	permanent  bool
}

// NewCell creates a cell for a detection of classID. The cell starts in the
// JustPlaced state and has no position until the Grid places it.
func NewCell(classID int, placedAt time.Time) *Cell {
	return &Cell{
		id:         uuid.New(),
		classID:    classID,
		placedAt:   placedAt,
		justPlaced: true,
	}
}

// ID returns the cell's identity, stable across moves and resizes.
func (c *Cell) ID() uuid.UUID { return c.id }

// ClassID returns the detector class the cell was spawned from.
func (c *Cell) ClassID() int { return c.classID }

// PlacedAt returns when the cell was created.
func (c *Cell) PlacedAt() time.Time { return c.placedAt }

// Pos returns the cell's current slot.
func (c *Cell) Pos() Pos { return Pos{X: c.x, Y: c.y} }

// JustPlaced reports whether the cell is still in its one-update grace period.
func (c *Cell) JustPlaced() bool { return c.justPlaced }

// Permanent reports whether the cell is exempt from the stall clear.
func (c *Cell) Permanent() bool { return c.permanent }

// MarkPermanent exempts the cell from ClearTransient. Nothing in the
// simulation sets it today; it exists for pinned markers.
func (c *Cell) MarkPermanent() { c.permanent = true }

// Update advances the cell one simulation tick and reports whether it moved.
//
// The first call after creation only ends the grace period. After that a
// cell with fewer than 2 or more than 3 occupied neighbours steps to a
// random empty neighbour, if there is one; with 2 or 3 it stays put.
func (c *Cell) Update(g *Grid) bool {
	if c.justPlaced {
		c.justPlaced = false
		return false
	}

	n := g.NeighborsOf(c.x, c.y)
	if n >= 2 && n <= 3 {
		return false
	}

	// lonely (n < 2) and overcrowded (n > 3) cells relocate the same way
	empty := g.EmptyNeighbors(c.x, c.y)
	if len(empty) == 0 {
		return false
	}
	g.move(c, empty[g.rng.Intn(len(empty))])
	return true
}
