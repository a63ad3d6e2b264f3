// Package inbox turns PDFs dropped into a directory into ingestion jobs.
package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"docrag/internal/model"
)

const importedDir = "imported"

// Importer is satisfied by app.IngestService.
type Importer interface {
	ImportFile(ctx context.Context, path string) (*model.Document, *model.JobRecord, error)
}

// Watcher imports every PDF that appears in dir. Files are imported once
// they stop changing for settle, then moved to dir/imported.
type Watcher struct {
	dir      string
	importer Importer
	settle   time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

func NewWatcher(dir string, importer Importer, settle time.Duration) *Watcher {
	if settle <= 0 {
		settle = time.Second
	}
	return &Watcher{
		dir:      dir,
		importer: importer,
		settle:   settle,
		pending:  make(map[string]*time.Timer),
	}
}

// Run imports files already in dir and then watches it until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Join(w.dir, importedDir), 0o755); err != nil {
		return fmt.Errorf("create inbox dir failed: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create inbox watcher failed: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch inbox dir failed: %w", err)
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read inbox dir failed: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.schedule(ctx, filepath.Join(w.dir, e.Name()))
		}
	}
	slog.Info("inbox watcher started", "dir", w.dir)

	defer w.stopPending()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				w.schedule(ctx, ev.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("inbox watcher error", "error", err)
		}
	}
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// schedule (re)arms the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	if !isPDF(path) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok && t.Stop() {
		t.Reset(w.settle)
		return
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == t {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		w.importFile(ctx, path)
	})
	w.pending[path] = t
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) importFile(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	doc, job, err := w.importer.ImportFile(ctx, path)
	if err != nil {
		slog.Error("inbox import failed", "file", path, "error", err)
		return
	}
	dst := filepath.Join(w.dir, importedDir, filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		slog.Warn("move imported file failed", "file", path, "error", err)
	}
	slog.Info("inbox file imported", "file", filepath.Base(path), "document_id", doc.ID, "job_id", job.ID)
}
