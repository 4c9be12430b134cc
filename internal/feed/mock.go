package feed

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"
)

// errPortClosed is returned by TestablePort after Close.
var errPortClosed = errors.New("detection port closed")

// FixturePort is a Porter that repeats a fixed set of lines at an interval,
// standing in for a detector bridge during development. Commands written to
// it are kept for inspection.
type FixturePort struct {
	r    *io.PipeReader
	w    *io.PipeWriter
	stop chan struct{}
	once sync.Once

	mu      sync.Mutex
	written bytes.Buffer
}

// NewFixturePort starts emitting lines, cycling through them every interval.
func NewFixturePort(lines [][]byte, interval time.Duration) *FixturePort {
	r, w := io.Pipe()
	p := &FixturePort{r: r, w: w, stop: make(chan struct{})}

	go func() {
		defer w.Close()
		if len(lines) == 0 {
			<-p.stop
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				line := lines[i%len(lines)]
				if !bytes.HasSuffix(line, []byte("\n")) {
					line = append(append([]byte(nil), line...), '\n')
				}
				if _, err := w.Write(line); err != nil {
					return
				}
			}
		}
	}()
	return p
}

// Read reads emitted lines.
func (p *FixturePort) Read(b []byte) (int, error) { return p.r.Read(b) }

// Write records b.
func (p *FixturePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

// Written returns everything written so far.
func (p *FixturePort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

// Close stops the emitter and unblocks readers.
func (p *FixturePort) Close() error {
	p.once.Do(func() { close(p.stop) })
	return p.r.Close()
}

// TestablePort implements Porter with scripted reads and captured writes.
type TestablePort struct {
	mu sync.Mutex

	// ReadBuffer holds data returned by Read.
	ReadBuffer *bytes.Buffer
	// WriteBuffer captures data written to the port.
	WriteBuffer *bytes.Buffer
	// ReadError is returned by the next Read call if set.
	ReadError error
	// ShortWrite makes Write report one byte fewer than it was given.
	ShortWrite bool
	// Closed indicates whether Close was called.
	Closed bool
	// BlockReads makes Read wait for data or Close instead of returning EOF.
	BlockReads bool

	readCond *sync.Cond
}

// NewTestablePort creates an empty TestablePort.
func NewTestablePort() *TestablePort {
	t := &TestablePort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	t.readCond = sync.NewCond(&t.mu)
	return t
}

// Read returns buffered data, blocking when BlockReads is set.
func (t *TestablePort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}
	for t.BlockReads && !t.Closed && t.ReadBuffer.Len() == 0 {
		t.readCond.Wait()
	}
	if t.Closed {
		return 0, errPortClosed
	}
	return t.ReadBuffer.Read(p)
}

// Write captures p.
func (t *TestablePort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Closed {
		return 0, errPortClosed
	}
	n, err := t.WriteBuffer.Write(p)
	if t.ShortWrite && n > 0 {
		n--
	}
	return n, err
}

// Close marks the port closed and wakes blocked readers.
func (t *TestablePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	t.readCond.Broadcast()
	return nil
}

// AddReadData appends data for subsequent reads.
func (t *TestablePort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadBuffer.Write(data)
	t.readCond.Broadcast()
}

// Written returns everything written so far.
func (t *TestablePort) Written() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.WriteBuffer.String()
}
