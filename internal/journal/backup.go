package journal

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/cellwatch/internal/security"
)

// Backup writes a consistent copy of the journal into dir with VACUUM INTO
// and returns the new file's path.
func (j *Journal) Backup(ctx context.Context, dir string, at time.Time) (string, error) {
	name := security.SanitizeFilename(fmt.Sprintf("journal-backup-%s-%d.db", j.runID, at.UnixNano()))
	path := filepath.Join(dir, name)
	if err := security.ValidatePathWithinDirectory(path, dir); err != nil {
		return "", err
	}
	if _, err := j.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	return path, nil
}

// serveBackup creates a backup next to the journal, streams it gzipped and
// removes it.
func (j *Journal) serveBackup(w http.ResponseWriter, r *http.Request) {
	path, err := j.Backup(r.Context(), filepath.Dir(j.path), j.opts.Clock.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			logf("failed to remove backup %s: %v", path, err)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to open backup: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filepath.Base(path)))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Encoding", "gzip")
	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := io.Copy(gz, f); err != nil {
		logf("failed to stream backup: %v", err)
	}
}
