// Package journal is a write-only SQLite audit log of simulation records:
// realized placements, unplaced and dropped detections, stall clears and
// resizes. Nothing is ever read back into the grid.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/cellwatch/internal/monitoring"
	"github.com/banshee-data/cellwatch/internal/sim"
	"github.com/banshee-data/cellwatch/internal/timeutil"
	"github.com/banshee-data/cellwatch/internal/version"
)

var logf = monitoring.Prefixed("journal")

// DefaultBuffer is the record backlog used when Options.Buffer is unset.
const DefaultBuffer = 1024

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
}

// Options configure a Journal.
type Options struct {
	// Buffer is the number of records held between the loop and the writer.
	Buffer int
	// FlushInterval bounds how long a record waits before being committed.
	FlushInterval time.Duration
	// BatchSize commits early once this many records are pending.
	BatchSize int
	// Clock times flushes and run registration; nil uses the wall clock.
	Clock timeutil.Clock
}

func (o Options) normalize() Options {
	if o.Buffer <= 0 {
		o.Buffer = DefaultBuffer
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = time.Second
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 256
	}
	if o.Clock == nil {
		o.Clock = timeutil.RealClock{}
	}
	return o
}

// Journal implements sim.Recorder. Record never blocks; records that do not
// fit in the backlog are counted as dropped.
type Journal struct {
	db    *sql.DB
	path  string
	runID string
	opts  Options

	records chan sim.Record

	mu     sync.RWMutex
	closed bool

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

var _ sim.Recorder = (*Journal)(nil)

// Open opens or creates the database at path, applies migrations and
// registers a new run.
func Open(path string, opts Options) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	// A single connection keeps WAL pragmas and writes on one handle.
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	opts = opts.normalize()
	j := &Journal{
		db:      db,
		path:    path,
		runID:   uuid.NewString(),
		opts:    opts,
		records: make(chan sim.Record, opts.Buffer),
	}
	if _, err := db.Exec(
		`INSERT INTO runs (run_id, started_ns, version, git_sha) VALUES (?, ?, ?, ?)`,
		j.runID, opts.Clock.Now().UnixNano(), version.Version, version.GitSHA,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to register run: %w", err)
	}
	logf("opened %s (run %s)", path, j.runID)
	return j, nil
}

// RunID identifies the records written by this process.
func (j *Journal) RunID() string { return j.runID }

// Record queues r for writing.
func (j *Journal) Record(r sim.Record) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.dropped.Add(1)
		return
	}
	select {
	case j.records <- r:
	default:
		j.dropped.Add(1)
	}
}

// Run writes queued records until ctx is done, then flushes what is left.
func (j *Journal) Run(ctx context.Context) error {
	ticker := j.opts.Clock.NewTicker(j.opts.FlushInterval)
	defer ticker.Stop()

	pending := make([]sim.Record, 0, j.opts.BatchSize)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		if err := j.write(pending); err != nil {
			j.failed.Add(uint64(len(pending)))
			logf("failed to write %d records: %v", len(pending), err)
		} else {
			j.written.Add(uint64(len(pending)))
		}
		pending = pending[:0]
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case r := <-j.records:
					pending = append(pending, r)
				default:
					flush()
					return nil
				}
			}
		case r := <-j.records:
			pending = append(pending, r)
			if len(pending) >= j.opts.BatchSize {
				flush()
			}
		case <-ticker.C():
			flush()
		}
	}
}

func (j *Journal) write(records []sim.Record) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO records (
			run_id, kind, at_unix_ns, class_id, confidence,
			cell_id, x, y, count, width, height
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(
			j.runID, string(r.Kind), r.At.UnixNano(), r.ClassID, r.Confidence,
			r.CellID, r.X, r.Y, r.Count, r.Width, r.Height,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Counts returns the number of records per kind written for this run.
func (j *Journal) Counts(ctx context.Context) (map[sim.RecordKind]int, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM records WHERE run_id = ? GROUP BY kind`, j.runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[sim.RecordKind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[sim.RecordKind(kind)] = n
	}
	return counts, rows.Err()
}

// SchemaVersion reports the applied migration version.
func (j *Journal) SchemaVersion() (uint, bool, error) {
	return migrateVersion(j.db)
}

// Stats are writer totals.
type Stats struct {
	RunID    string `json:"run_id"`
	Written  uint64 `json:"written"`
	Dropped  uint64 `json:"dropped"`
	Failed   uint64 `json:"failed"`
	Buffered int    `json:"buffered"`
}

// Stats returns the current totals.
func (j *Journal) Stats() Stats {
	return Stats{
		RunID:    j.runID,
		Written:  j.written.Load(),
		Dropped:  j.dropped.Load(),
		Failed:   j.failed.Load(),
		Buffered: len(j.records),
	}
}

// Close stops accepting records and closes the database. Run must have
// returned first for queued records to be kept.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	j.mu.Unlock()
	return j.db.Close()
}
