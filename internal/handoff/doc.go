// Package handoff implements the three typed hand-offs that are the only
// cross-goroutine surface of the simulation: the detection channel, the
// latest-frame slot and the person signal.
//
// Producers hold send ends (Send, Publish, Offer) which never block. The
// simulation loop holds the drain ends (Drain, TryTake) which never block
// either: an empty hand-off is the expected steady state, not an error.
package handoff
