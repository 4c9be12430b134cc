package sim

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/cellwatch/internal/batcher"
	"github.com/banshee-data/cellwatch/internal/grid"
	"github.com/banshee-data/cellwatch/internal/handoff"
)

// Stats summarises the loop for logs and the debug API.
type Stats struct {
	UpdatedAt  time.Time `json:"updated_at"`
	Ticks      uint64    `json:"ticks"`
	BatchTicks uint64    `json:"batch_ticks"`
	GridWidth  int       `json:"grid_width"`
	GridHeight int       `json:"grid_height"`
	Viewport   Viewport  `json:"viewport"`
	Cells      int       `json:"cells"`
	Stalled    bool      `json:"stalled"`

	Realized  uint64 `json:"realized"`
	Unplaced  uint64 `json:"unplaced"`
	Signalled uint64 `json:"signalled"`

	NeighborMean   float64 `json:"neighbor_mean"`
	NeighborStdDev float64 `json:"neighbor_stddev"`

	Buffer            batcher.Stats      `json:"buffer"`
	DetectionsSent    uint64             `json:"detections_sent"`
	DetectionsDropped uint64             `json:"detections_dropped"`
	SignalDropped     uint64             `json:"signal_dropped"`
	Frames            handoff.FrameStats `json:"frames"`
	Grid              grid.Counters      `json:"grid"`
}

func (e *Engine) collectStats(snap *grid.Snapshot, now time.Time) *Stats {
	mean, std := neighborSpread(snap.NeighborCounts())
	return &Stats{
		UpdatedAt:         now,
		Ticks:             e.ticks,
		BatchTicks:        e.batchTicks,
		GridWidth:         snap.Width,
		GridHeight:        snap.Height,
		Viewport:          e.viewport,
		Cells:             len(snap.Cells),
		Stalled:           snap.Stalled,
		Realized:          e.realized,
		Unplaced:          e.unplaced,
		Signalled:         e.signalled,
		NeighborMean:      mean,
		NeighborStdDev:    std,
		Buffer:            e.buffer.Stats(),
		DetectionsSent:    e.detections.Sent(),
		DetectionsDropped: e.detections.Dropped(),
		SignalDropped:     e.signal.Dropped(),
		Frames:            e.frames.Stats(),
		Grid:              snap.Counters,
	}
}

// neighborSpread returns the mean and sample standard deviation of the
// neighbour counts, with zero spread for fewer than two cells.
func neighborSpread(counts []float64) (mean, std float64) {
	switch len(counts) {
	case 0:
		return 0, 0
	case 1:
		return counts[0], 0
	}
	return stat.MeanStdDev(counts, nil)
}

func (e *Engine) logStats() {
	s := e.Stats()
	if s == nil {
		return
	}
	logf("ticks=%d cells=%d grid=%dx%d buffered=%d realized=%d unplaced=%d dropped_batches=%d dropped_frames=%d stall_clears=%d neighbors=%.2f±%.2f",
		s.Ticks, s.Cells, s.GridWidth, s.GridHeight, s.Buffer.Buffered, s.Realized, s.Unplaced,
		s.DetectionsDropped, s.Frames.Dropped, s.Grid.StallClears, s.NeighborMean, s.NeighborStdDev)
}
