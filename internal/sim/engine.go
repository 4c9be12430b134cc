package sim

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/banshee-data/cellwatch/internal/batcher"
	"github.com/banshee-data/cellwatch/internal/config"
	"github.com/banshee-data/cellwatch/internal/detection"
	"github.com/banshee-data/cellwatch/internal/grid"
	"github.com/banshee-data/cellwatch/internal/handoff"
	"github.com/banshee-data/cellwatch/internal/monitoring"
	"github.com/banshee-data/cellwatch/internal/timeutil"
)

var logf = monitoring.Prefixed("sim")

// Options wires an Engine to its collaborators. Only Config is required;
// nil hand-offs are created from the configured queue sizes.
type Options struct {
	Config *config.Config
	Clock  timeutil.Clock
	Rand   grid.Rand

	Detections *handoff.Detections
	Frames     *handoff.LatestFrame
	Signal     *handoff.Signal

	Preview  PreviewSink
	Recorder Recorder

	// Viewport sizes the initial grid; zero uses the configured window.
	Viewport Viewport
}

// Engine owns the grid, the detection buffer and the cadence bookkeeping.
type Engine struct {
	clock    timeutil.Clock
	grid     *grid.Grid
	buffer   *batcher.Buffer
	cellSize int
	viewport Viewport

	detections *handoff.Detections
	frames     *handoff.LatestFrame
	signal     *handoff.Signal
	preview    PreviewSink
	recorder   Recorder

	simInterval    time.Duration
	batchInterval  time.Duration
	statsInterval  time.Duration
	renderInterval time.Duration
	personClass    int

	started   bool
	lastSim   time.Time
	lastBatch time.Time
	lastStats time.Time

	ticks      uint64
	batchTicks uint64
	realized   uint64
	unplaced   uint64
	signalled  uint64

	snapshot atomic.Pointer[grid.Snapshot]
	stats    atomic.Pointer[Stats]
}

// New builds an Engine from opts.
func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Empty()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	rng := opts.Rand
	if rng == nil {
		seed := cfg.GetSeed()
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}

	vp := opts.Viewport
	if vp.Width <= 0 || vp.Height <= 0 {
		vp = Viewport{Width: cfg.GetWindowWidth(), Height: cfg.GetWindowHeight()}
	}
	cellSize := cfg.GetCellSize()
	w, h := vp.GridSize(cellSize)

	e := &Engine{
		clock:    clock,
		cellSize: cellSize,
		viewport: vp,
		grid: grid.New(w, h, grid.Options{
			Rand:         rng,
			Clock:        clock,
			StallTimeout: cfg.GetStallTimeout(),
		}),
		buffer:         batcher.NewBuffer(rng, cfg.GetMaxBufferedDetections()),
		detections:     opts.Detections,
		frames:         opts.Frames,
		signal:         opts.Signal,
		preview:        opts.Preview,
		recorder:       opts.Recorder,
		simInterval:    cfg.GetSimInterval(),
		batchInterval:  cfg.GetBatchInterval(),
		statsInterval:  cfg.GetStatsInterval(),
		renderInterval: cfg.GetRenderInterval(),
		personClass:    cfg.GetPersonClassID(),
	}
	if e.detections == nil {
		e.detections = handoff.NewDetections(cfg.GetDetectionQueueSize())
	}
	if e.frames == nil {
		e.frames = handoff.NewLatestFrame()
	}
	if e.signal == nil {
		e.signal = handoff.NewSignal(cfg.GetSignalQueueSize())
	}
	e.publish(clock.Now())
	return e, nil
}

// Detections returns the producer end of the detection hand-off.
func (e *Engine) Detections() *handoff.Detections { return e.detections }

// Frames returns the latest-frame slot.
func (e *Engine) Frames() *handoff.LatestFrame { return e.frames }

// Signal returns the person-signal hand-off.
func (e *Engine) Signal() *handoff.Signal { return e.signal }

// Grid exposes the grid to code running on the loop goroutine.
func (e *Engine) Grid() *grid.Grid { return e.grid }

// CellSize returns the cell edge in pixels.
func (e *Engine) CellSize() int { return e.cellSize }

// Advance runs one render tick at the clock's current time: it applies a
// viewport change, forwards the latest frame, and runs the simulation and
// batch ticks that have come due. Both cadences follow a fixed schedule
// independent of the render rate.
func (e *Engine) Advance(vp Viewport) {
	now := e.clock.Now()
	if !e.started {
		e.started = true
		e.lastSim, e.lastBatch, e.lastStats = now, now, now
	}

	resized := e.observe(vp, now)
	e.forwardFrame()

	simDue := due(&e.lastSim, e.simInterval, now)
	batchDue := due(&e.lastBatch, e.batchInterval, now)
	if simDue || batchDue {
		e.drain(now)
	}
	if batchDue {
		e.batchTick(now)
	}
	if simDue {
		e.grid.Step()
		e.ticks++
	}
	if simDue || batchDue || resized {
		e.publish(now)
	}

	if e.statsInterval > 0 && now.Sub(e.lastStats) >= e.statsInterval {
		e.lastStats = now
		e.logStats()
	}
}

// due reports whether a tick scheduled every interval after *last has been
// reached and moves *last to that tick. Ticks missed during a stall longer
// than interval collapse into one.
func due(last *time.Time, interval time.Duration, now time.Time) bool {
	if now.Sub(*last) < interval {
		return false
	}
	*last = last.Add(interval)
	if now.Sub(*last) >= interval {
		*last = now
	}
	return true
}

// observe resizes the grid when the viewport maps to different dimensions.
func (e *Engine) observe(vp Viewport, now time.Time) bool {
	e.viewport = vp
	w, h := vp.GridSize(e.cellSize)
	if w == e.grid.Width() && h == e.grid.Height() {
		return false
	}
	before := e.grid.Counters().DroppedOnResize
	oldW, oldH := e.grid.Width(), e.grid.Height()
	e.grid.Resize(w, h)
	dropped := int(e.grid.Counters().DroppedOnResize - before)
	logf("resized grid %dx%d -> %dx%d (viewport %dx%d), dropped %d cells", oldW, oldH, w, h, vp.Width, vp.Height, dropped)
	e.record(Record{Kind: RecordResize, At: now, Width: w, Height: h, Count: dropped})
	return true
}

func (e *Engine) forwardFrame() {
	f, ok := e.frames.TryTake()
	if !ok || e.preview == nil {
		return
	}
	e.preview.ShowFrame(f)
}

// drain moves every queued batch into the buffer.
func (e *Engine) drain(now time.Time) {
	e.detections.Drain(func(b detection.Batch) {
		if over := e.buffer.PushBatch(b); over > 0 {
			e.record(Record{Kind: RecordOverflow, At: now, Count: over})
		}
	})
}

// batchTick realizes at most one buffered detection.
func (e *Engine) batchTick(now time.Time) {
	ev, ok := e.buffer.Tick()
	if !ok {
		return
	}
	e.batchTicks++

	if ev.ClassID == e.personClass {
		e.signal.Offer(true)
		e.signalled++
	}

	clears := e.grid.Counters().StallClears
	p, ok := e.grid.FindRandomEmptyPosition()
	if c := e.grid.Counters(); c.StallClears != clears {
		logf("grid stalled full, cleared %d transient cells", c.LastClearCount)
		e.record(Record{Kind: RecordStallClear, At: now, Count: c.LastClearCount})
	}
	if !ok {
		e.unplaced++
		e.record(Record{Kind: RecordUnplaced, At: now, ClassID: ev.ClassID, Confidence: ev.Confidence})
		return
	}

	cell := grid.NewCell(ev.ClassID, now)
	e.grid.Place(p.X, p.Y, cell)
	e.realized++
	e.record(Record{
		Kind:       RecordPlaced,
		At:         now,
		ClassID:    ev.ClassID,
		Confidence: ev.Confidence,
		CellID:     cell.ID().String(),
		X:          p.X,
		Y:          p.Y,
	})
}

func (e *Engine) record(r Record) {
	if e.recorder != nil {
		e.recorder.Record(r)
	}
}

// publish refreshes the snapshot and stats read by other goroutines.
func (e *Engine) publish(now time.Time) {
	snap := e.grid.Snapshot()
	e.snapshot.Store(snap)
	e.stats.Store(e.collectStats(snap, now))
}

// Snapshot returns the grid as of the last simulation tick or resize. Safe
// for concurrent use.
func (e *Engine) Snapshot() *grid.Snapshot { return e.snapshot.Load() }

// Stats returns loop counters as of the last simulation tick or resize. Safe
// for concurrent use.
func (e *Engine) Stats() *Stats { return e.stats.Load() }
