package journal

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/cellwatch/internal/sim"
)

var recordKinds = []sim.RecordKind{
	sim.RecordPlaced, sim.RecordUnplaced, sim.RecordStallClear, sim.RecordResize, sim.RecordOverflow,
}

// AttachAdminRoutes mounts a tailsql console over the journal and a JSON
// counts route on the tsweb debug mux.
func (j *Journal) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(j.path), j.db, &tailsql.DBOptions{
		Label: "Detection journal",
	})
	debug.Handle("tailsql/", "SQL over the detection journal", tsql.NewMux())

	debug.HandleFunc("journal-backup", "Create and download a gzipped copy of the journal", j.serveBackup)

	debug.HandleFunc("journal-counts", "Records written this run, by kind", func(w http.ResponseWriter, r *http.Request) {
		counts, err := j.Counts(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "run %s\n", j.runID)
		for _, kind := range recordKinds {
			fmt.Fprintf(w, "%-12s %d\n", kind, counts[kind])
		}
	})
	return nil
}
