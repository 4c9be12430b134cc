// Package grid owns the toroidal occupancy grid and the cells living on it.
//
// Responsibilities: random placement over empty slots, the full-grid stall
// policy, content-preserving resize, neighbour counting with wraparound, and
// the per-cell JustPlaced -> Settled movement rules.
// Key types: Grid, Cell, Pos, Snapshot.
//
// A Grid and its cells are not safe for concurrent use. Exactly one
// goroutine (the simulation loop) may touch them; other goroutines read the
// immutable Snapshot values the loop publishes.
package grid
