// Package sim runs the simulation loop: it drains delivered detections into
// the buffer, releases one buffered detection per batch tick into the grid,
// steps every cell at the simulation cadence and draws the grid at the
// render cadence.
//
// The Engine is the single writer of the grid. Every exported method except
// Snapshot, Stats, Detections, Frames and Signal must be called from the
// goroutine that drives the loop (Run, or a display's update callback).
// Other goroutines observe the simulation through immutable snapshots.
package sim
