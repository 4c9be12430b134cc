package grid

import (
	"math/rand"
	"time"

	"github.com/banshee-data/cellwatch/internal/timeutil"
)

// DefaultStallTimeout is how long the grid may stay full before every
// transient cell is cleared.
const DefaultStallTimeout = 30 * time.Second

// Rand is the randomness the grid and its cells draw on. *rand.Rand
// satisfies it; tests pass a seeded source or a scripted sequence.
type Rand interface {
	Intn(n int) int
}

// Pos is a slot coordinate.
type Pos struct {
	X, Y int
}

// Options configures a Grid. Zero values select the defaults.
type Options struct {
	Rand         Rand
	Clock        timeutil.Clock
	StallTimeout time.Duration
}

// Grid is a width x height toroidal array of optional cells stored row-major.
type Grid struct {
	width, height int
	slots         []*Cell

	rng          Rand
	clock        timeutil.Clock
	stallTimeout time.Duration

	// full-grid stall timer: unset, or waiting since stallSince
	stallWaiting bool
	stallSince   time.Time

	stallClears     uint64
	lastCleared     int
	placedTotal     uint64
	movedTotal      uint64
	droppedOnResize uint64
}

// New creates an empty grid. Negative dimensions are treated as zero.
func New(width, height int, opts Options) *Grid {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.StallTimeout <= 0 {
		opts.StallTimeout = DefaultStallTimeout
	}
	width, height = max(width, 0), max(height, 0)
	return &Grid{
		width:        width,
		height:       height,
		slots:        make([]*Cell, width*height),
		rng:          opts.Rand,
		clock:        opts.Clock,
		stallTimeout: opts.StallTimeout,
	}
}

// Width returns the number of columns.
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows.
func (g *Grid) Height() int { return g.height }

func (g *Grid) inBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// At returns the occupant of (x, y), or nil when empty or out of range.
func (g *Grid) At(x, y int) *Cell {
	if !g.inBounds(x, y) {
		return nil
	}
	return g.slots[y*g.width+x]
}

// Occupied returns the number of occupied slots.
func (g *Grid) Occupied() int {
	n := 0
	for _, c := range g.slots {
		if c != nil {
			n++
		}
	}
	return n
}

// Place puts c into the empty slot (x, y). It is a no-op returning false
// when the slot is out of range or occupied, or when c already sits in a
// grid slot.
func (g *Grid) Place(x, y int, c *Cell) bool {
	if c == nil || c.inGrid || !g.inBounds(x, y) {
		return false
	}
	i := y*g.width + x
	if g.slots[i] != nil {
		return false
	}
	g.slots[i] = c
	c.x, c.y = x, y
	c.inGrid = true
	g.placedTotal++
	return true
}

// move relocates c to the empty slot p, clearing its old slot in the same
// step so the cell and its slot never disagree.
func (g *Grid) move(c *Cell, p Pos) {
	g.slots[c.y*g.width+c.x] = nil
	g.slots[p.Y*g.width+p.X] = c
	c.x, c.y = p.X, p.Y
	g.movedTotal++
}

func (g *Grid) wrap(x, y int) (int, int) {
	return ((x % g.width) + g.width) % g.width, ((y % g.height) + g.height) % g.height
}

// NeighborsOf counts occupied slots among the 8 toroidal neighbours of
// (x, y). On grids narrower than 3 slots several offsets wrap onto the same
// slot and each offset is counted. Offsets that wrap back onto (x, y) are
// skipped, so a cell never counts itself: a lone cell on a grid one slot
// wide has no neighbours.
func (g *Grid) NeighborsOf(x, y int) int {
	if g.width == 0 || g.height == 0 {
		return 0
	}
	x, y = g.wrap(x, y)
	n := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := g.wrap(x+dx, y+dy)
			if nx == x && ny == y {
				continue
			}
			if g.slots[ny*g.width+nx] != nil {
				n++
			}
		}
	}
	return n
}

// EmptyNeighbors lists the empty toroidal neighbours of (x, y) in offset
// order (dy outer, dx inner).
func (g *Grid) EmptyNeighbors(x, y int) []Pos {
	if g.width == 0 || g.height == 0 {
		return nil
	}
	x, y = g.wrap(x, y)
	var out []Pos
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := g.wrap(x+dx, y+dy)
			if nx == x && ny == y {
				continue
			}
			if g.slots[ny*g.width+nx] == nil {
				out = append(out, Pos{X: nx, Y: ny})
			}
		}
	}
	return out
}

// RandomEmptyPosition samples uniformly among the currently empty slots
// without touching the stall timer.
func (g *Grid) RandomEmptyPosition() (Pos, bool) {
	empty := make([]int, 0, len(g.slots))
	for i, c := range g.slots {
		if c == nil {
			empty = append(empty, i)
		}
	}
	if len(empty) == 0 {
		return Pos{}, false
	}
	i := empty[g.rng.Intn(len(empty))]
	return Pos{X: i % g.width, Y: i / g.width}, true
}

// FindRandomEmptyPosition returns a uniformly chosen empty slot, applying the
// full-grid stall policy when none exists:
//
//   - the first failed search starts the stall timer and reports none;
//   - failed searches before StallTimeout has elapsed report none;
//   - once StallTimeout has elapsed every transient cell is cleared, the
//     timer is reset and the search is repeated.
//
// A successful search always resets the timer.
func (g *Grid) FindRandomEmptyPosition() (Pos, bool) {
	if p, ok := g.RandomEmptyPosition(); ok {
		g.stallWaiting = false
		return p, true
	}

	now := g.clock.Now()
	if !g.stallWaiting {
		g.stallWaiting = true
		g.stallSince = now
		return Pos{}, false
	}
	if now.Sub(g.stallSince) < g.stallTimeout {
		return Pos{}, false
	}

	g.lastCleared = g.ClearTransient()
	g.stallClears++
	g.stallWaiting = false
	return g.RandomEmptyPosition()
}

// StallSince reports when the grid was first seen full, if the stall timer
// is running.
func (g *Grid) StallSince() (time.Time, bool) {
	return g.stallSince, g.stallWaiting
}

// ClearTransient removes every cell that is not permanent and returns how
// many were removed.
func (g *Grid) ClearTransient() int {
	n := 0
	for i, c := range g.slots {
		if c != nil && !c.permanent {
			c.inGrid = false
			g.slots[i] = nil
			n++
		}
	}
	return n
}

// Resize reallocates the grid to width x height. Cells inside the
// overlapping rectangle keep their identity and state and have their
// positions rewritten; cells outside it are dropped.
func (g *Grid) Resize(width, height int) {
	width, height = max(width, 0), max(height, 0)
	if width == g.width && height == g.height {
		return
	}
	slots := make([]*Cell, width*height)
	keepW, keepH := min(g.width, width), min(g.height, height)
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			c := g.slots[y*g.width+x]
			if c == nil {
				continue
			}
			if x < keepW && y < keepH {
				slots[y*width+x] = c
				c.x, c.y = x, y
				continue
			}
			c.inGrid = false
			g.droppedOnResize++
		}
	}
	g.width, g.height = width, height
	g.slots = slots
}

// Step calls Update on every occupied slot once, scanning rows top to
// bottom and columns left to right. Iteration follows slots, not a fixed
// roster of cells, so a cell that moves forward into a slot not yet scanned
// is updated again in the same step. It returns how many updates moved a
// cell.
func (g *Grid) Step() int {
	moved := 0
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			if c := g.slots[y*g.width+x]; c != nil {
				if c.Update(g) {
					moved++
				}
			}
		}
	}
	return moved
}

// ForEach calls fn for every occupant in row-major order.
func (g *Grid) ForEach(fn func(c *Cell)) {
	for _, c := range g.slots {
		if c != nil {
			fn(c)
		}
	}
}

// Counters are lifetime totals kept by the grid.
type Counters struct {
	Placed          uint64 `json:"placed"`
	Moves           uint64 `json:"moves"`
	StallClears     uint64 `json:"stall_clears"`
	LastClearCount  int    `json:"last_clear_count"`
	DroppedOnResize uint64 `json:"dropped_on_resize"`
}

// Counters returns the lifetime totals.
func (g *Grid) Counters() Counters {
	return Counters{
		Placed:          g.placedTotal,
		Moves:           g.movedTotal,
		StallClears:     g.stallClears,
		LastClearCount:  g.lastCleared,
		DroppedOnResize: g.droppedOnResize,
	}
}
