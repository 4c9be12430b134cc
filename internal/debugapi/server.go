// Package debugapi serves the live grid, loop statistics, preview frames
// and the signal stream over HTTP.
package debugapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/cellwatch/internal/feed"
	"github.com/banshee-data/cellwatch/internal/grid"
	"github.com/banshee-data/cellwatch/internal/httputil"
	"github.com/banshee-data/cellwatch/internal/journal"
	"github.com/banshee-data/cellwatch/internal/monitoring"
	"github.com/banshee-data/cellwatch/internal/sim"
	"github.com/banshee-data/cellwatch/internal/signal"
	"github.com/banshee-data/cellwatch/internal/version"
)

var logf = monitoring.Prefixed("http")

// Engine is the read side of the simulation the API reports on.
type Engine interface {
	Snapshot() *grid.Snapshot
	Stats() *sim.Stats
}

// SignalBroker streams signal events and reports delivery totals.
type SignalBroker interface {
	http.Handler
	Stats() signal.Stats
}

// PumpStats reports ingest totals.
type PumpStats interface {
	Stats() feed.Stats
}

// JournalStats reports journal writer totals.
type JournalStats interface {
	Stats() journal.Stats
}

// Options wire the API to the running components. Only Engine is required.
type Options struct {
	Engine  Engine
	Broker  SignalBroker
	Pump    PumpStats
	Journal JournalStats
	Preview *PreviewStore
}

// Server holds the handlers.
type Server struct {
	engine  Engine
	broker  SignalBroker
	pump    PumpStats
	journal JournalStats
	preview *PreviewStore
}

// NewServer creates the API server.
func NewServer(opts Options) *Server {
	return &Server{
		engine:  opts.Engine,
		broker:  opts.Broker,
		pump:    opts.Pump,
		journal: opts.Journal,
		preview: opts.Preview,
	}
}

// StatsResponse is the body of /api/stats. Sections for components that are
// not running are omitted.
type StatsResponse struct {
	Version string         `json:"version"`
	Sim     *sim.Stats     `json:"sim"`
	Feed    *feed.Stats    `json:"feed,omitempty"`
	Signal  *signal.Stats  `json:"signal,omitempty"`
	Journal *journal.Stats `json:"journal,omitempty"`
}

// ServeMux returns a mux with the JSON API and the debug routes attached.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/grid", s.showGrid)
	if s.broker != nil {
		mux.Handle("/api/signal", s.broker)
	}
	s.AttachAdminRoutes(mux)
	return mux
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	st := s.engine.Stats()
	if st == nil {
		httputil.Unavailable(w, "no statistics yet")
		return
	}
	resp := StatsResponse{Version: version.Version, Sim: st}
	if s.pump != nil {
		v := s.pump.Stats()
		resp.Feed = &v
	}
	if s.broker != nil {
		v := s.broker.Stats()
		resp.Signal = &v
	}
	if s.journal != nil {
		v := s.journal.Stats()
		resp.Journal = &v
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) showGrid(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet) {
		return
	}
	snap := s.engine.Snapshot()
	if snap == nil {
		httputil.Unavailable(w, "no grid snapshot yet")
		return
	}
	httputil.WriteJSONOK(w, snap)
}

const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE routes streaming through the middleware.
func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	code := strconv.Itoa(statusCode)
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + code + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + code + colorReset
	case statusCode >= 400:
		return colorBoldRed + code + colorReset
	default:
		return code
	}
}

// LoggingMiddleware logs method, path, status and duration of each request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		logf("[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}
