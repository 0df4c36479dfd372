// Package usage records model token usage per workspace.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"claridoc/internal/logging"
)

// FileName is the tracker's file inside the workspace state directory.
const FileName = "usage.json"

const (
	dataVersion      = "1"
	defaultSaveDelay = 5 * time.Second
	unknownDimension = "unknown"
)

type (
	trackerKey   struct{}
	documentKey  struct{}
	operationKey struct{}
)

// Tracker aggregates token usage and persists it with a debounced save.
type Tracker struct {
	mu        sync.Mutex
	data      UsageData
	filePath  string
	saveDelay time.Duration
	dirty     bool
	saveTimer *time.Timer
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithSaveDelay sets how long Record waits before writing to disk. Zero
// disables the background save; Save and Close still write.
func WithSaveDelay(d time.Duration) Option {
	return func(t *Tracker) { t.saveDelay = d }
}

// NewTracker opens the tracker stored in dir, creating dir if needed. A
// corrupt file is logged and replaced by empty counters.
func NewTracker(dir string, opts ...Option) (*Tracker, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create usage dir: %w", err)
	}

	t := &Tracker{
		filePath:  filepath.Join(dir, FileName),
		saveDelay: defaultSaveDelay,
		data:      UsageData{Version: dataVersion, Aggregate: newAggregate()},
	}
	for _, opt := range opts {
		opt(t)
	}

	if err := t.Load(); err != nil {
		logging.APIWarn("usage: ignoring unreadable %s: %v", t.filePath, err)
		t.data = UsageData{Version: dataVersion, Aggregate: newAggregate()}
	}
	return t, nil
}

// Path returns the backing file.
func (t *Tracker) Path() string { return t.filePath }

// Load reads the usage data from disk. A missing file is not an error.
func (t *Tracker) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var loaded UsageData
	if err := json.Unmarshal(data, &loaded); err != nil {
		return err
	}
	loaded.Aggregate.ensureMaps()
	t.data = loaded
	return nil
}

// Save writes the usage data to disk.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saveLocked()
}

func (t *Tracker) saveLocked() error {
	data, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(t.filePath, data, 0644); err != nil {
		return err
	}
	t.dirty = false
	return nil
}

// Record adds one model call. The document and operation are taken from ctx.
func (t *Tracker) Record(ctx context.Context, model string, input, output int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	agg := &t.data.Aggregate
	agg.Total.Add(input, output)
	addToMap(agg.ByModel, model, input, output)
	addToMap(agg.ByOperation, valueOr(ctx, operationKey{}), input, output)
	addToMap(agg.ByDocument, valueOr(ctx, documentKey{}), input, output)
	t.data.Updated = time.Now().UTC()

	t.dirty = true
	if t.saveDelay > 0 && t.saveTimer == nil {
		t.saveTimer = time.AfterFunc(t.saveDelay, t.flush)
	}
}

func (t *Tracker) flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.saveTimer = nil
	if !t.dirty {
		return
	}
	if err := t.saveLocked(); err != nil {
		logging.APIWarn("usage: save failed: %v", err)
	}
}

// Close cancels the pending save and writes any unsaved counts.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.saveTimer != nil {
		t.saveTimer.Stop()
		t.saveTimer = nil
	}
	if !t.dirty {
		return nil
	}
	return t.saveLocked()
}

// Stats returns a copy of the aggregated stats.
func (t *Tracker) Stats() AggregatedStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := t.data.Aggregate
	stats.ByModel = copyTokenCountsMap(stats.ByModel)
	stats.ByOperation = copyTokenCountsMap(stats.ByOperation)
	stats.ByDocument = copyTokenCountsMap(stats.ByDocument)
	return stats
}

// Updated returns when usage was last recorded.
func (t *Tracker) Updated() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data.Updated
}

func copyTokenCountsMap(src map[string]TokenCounts) map[string]TokenCounts {
	if src == nil {
		return nil
	}
	dst := make(map[string]TokenCounts, len(src))
	for key, counts := range src {
		dst[key] = counts
	}
	return dst
}

func addToMap(m map[string]TokenCounts, key string, input, output int) {
	entry := m[key]
	entry.Add(input, output)
	m[key] = entry
}

func valueOr(ctx context.Context, key any) string {
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v
	}
	return unknownDimension
}

// Context Helpers

// NewContext returns a new context carrying the tracker.
func NewContext(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// FromContext retrieves the tracker from the context.
func FromContext(ctx context.Context) *Tracker {
	t, _ := ctx.Value(trackerKey{}).(*Tracker)
	return t
}

// WithDocument attributes calls made with ctx to a document.
func WithDocument(ctx context.Context, docID string) context.Context {
	return context.WithValue(ctx, documentKey{}, docID)
}

// WithOperation labels calls made with ctx, e.g. "model call".
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}
