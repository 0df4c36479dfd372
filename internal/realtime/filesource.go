package realtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"claridoc/internal/logging"
)

// mirrorExt is the extension of mirrored document files: <docID>.txt.
const mirrorExt = ".txt"

// ContentUpdater stores an externally edited document. The store publishes the
// resulting update to subscribers.
type ContentUpdater interface {
	UpdateContent(ctx context.Context, docID, content string) error
}

// FileSourceStats tracks watcher activity.
type FileSourceStats struct {
	Imported  int
	Skipped   int
	Errors    int
	LastPath  string
	LastEvent time.Time
}

// FileSource watches a mirror directory and imports external edits to
// <docID>.txt through a ContentUpdater.
type FileSource struct {
	dir         string
	updater     ContentUpdater
	debounceDur time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	pending map[string]time.Time
	last    map[string]string // docID -> content last exported or imported
	stats   FileSourceStats
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewFileSource creates a source for dir. Call Start to begin watching.
func NewFileSource(dir string, updater ContentUpdater) *FileSource {
	return &FileSource{
		dir:         dir,
		updater:     updater,
		debounceDur: 250 * time.Millisecond,
		pending:     make(map[string]time.Time),
		last:        make(map[string]string),
	}
}

// Dir returns the mirror directory.
func (fs *FileSource) Dir() string { return fs.dir }

// SetDebounce changes how long a file must be quiet before it is imported.
func (fs *FileSource) SetDebounce(d time.Duration) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if d > 0 {
		fs.debounceDur = d
	}
}

// Path returns the mirror file path for docID.
func (fs *FileSource) Path(docID string) string {
	return filepath.Join(fs.dir, docID+mirrorExt)
}

// Start creates the directory if needed and begins watching. Non-blocking.
func (fs *FileSource) Start(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.running {
		return nil
	}

	if err := os.MkdirAll(fs.dir, 0755); err != nil {
		return fmt.Errorf("create mirror dir: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(fs.dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", fs.dir, err)
	}

	fs.watcher = w
	fs.stopCh = make(chan struct{})
	fs.doneCh = make(chan struct{})
	fs.running = true
	go fs.run(ctx, w, fs.stopCh, fs.doneCh)

	logging.Realtime("FileSource: watching %s", fs.dir)
	return nil
}

// Stop ends the watch loop and waits for it.
func (fs *FileSource) Stop() {
	fs.mu.Lock()
	if !fs.running {
		fs.mu.Unlock()
		return
	}
	fs.running = false
	w, stopCh, doneCh := fs.watcher, fs.stopCh, fs.doneCh
	fs.mu.Unlock()

	close(stopCh)
	<-doneCh
	if err := w.Close(); err != nil {
		logging.RealtimeWarn("FileSource: error closing watcher: %v", err)
	}
	logging.Realtime("FileSource: stopped")
}

// Export writes content to the mirror file for docID. The write is remembered so
// the resulting filesystem event is not imported back.
func (fs *FileSource) Export(docID, content string) error {
	fs.mu.Lock()
	fs.last[docID] = content
	fs.mu.Unlock()

	if err := os.MkdirAll(fs.dir, 0755); err != nil {
		return fmt.Errorf("create mirror dir: %w", err)
	}
	if err := os.WriteFile(fs.Path(docID), []byte(content), 0644); err != nil {
		return fmt.Errorf("export %s: %w", docID, err)
	}
	return nil
}

// Publish implements Publisher by exporting the pushed value to the mirror.
func (fs *FileSource) Publish(ev Event) {
	if err := fs.Export(ev.DocumentID, ev.Content); err != nil {
		logging.RealtimeWarn("FileSource: %v", err)
	}
}

// Stats returns a snapshot of watcher activity.
func (fs *FileSource) Stats() FileSourceStats {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.stats
}

func (fs *FileSource) run(ctx context.Context, w *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			fs.handleEvent(ev)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logging.RealtimeWarn("FileSource: watcher error: %v", err)
			fs.mu.Lock()
			fs.stats.Errors++
			fs.mu.Unlock()
		case <-ticker.C:
			fs.processSettled(ctx)
		}
	}
}

func (fs *FileSource) handleEvent(ev fsnotify.Event) {
	if !strings.HasSuffix(ev.Name, mirrorExt) {
		return
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}

	fs.mu.Lock()
	fs.pending[ev.Name] = time.Now()
	fs.stats.LastPath = ev.Name
	fs.stats.LastEvent = time.Now()
	fs.mu.Unlock()
	logging.RealtimeDebug("FileSource: %s %s", ev.Op, ev.Name)
}

func (fs *FileSource) processSettled(ctx context.Context) {
	fs.mu.Lock()
	now := time.Now()
	var ready []string
	for path, at := range fs.pending {
		if now.Sub(at) >= fs.debounceDur {
			ready = append(ready, path)
			delete(fs.pending, path)
		}
	}
	fs.mu.Unlock()

	for _, path := range ready {
		fs.importFile(ctx, path)
	}
}

func (fs *FileSource) importFile(ctx context.Context, path string) {
	docID := strings.TrimSuffix(filepath.Base(path), mirrorExt)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.RealtimeWarn("FileSource: read %s: %v", path, err)
		}
		return
	}
	content := string(data)

	fs.mu.Lock()
	if prev, ok := fs.last[docID]; ok && prev == content {
		fs.stats.Skipped++
		fs.mu.Unlock()
		return
	}
	fs.mu.Unlock()

	if err := fs.updater.UpdateContent(ctx, docID, content); err != nil {
		logging.RealtimeWarn("FileSource: import %s: %v", docID, err)
		fs.mu.Lock()
		fs.stats.Errors++
		fs.mu.Unlock()
		return
	}

	fs.mu.Lock()
	fs.last[docID] = content
	fs.stats.Imported++
	fs.mu.Unlock()
	logging.Realtime("FileSource: imported %s (%d bytes)", docID, len(content))
}
