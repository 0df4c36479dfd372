// Package autosave writes the open document back to the store after edits settle.
//
// Every change cancels the pending write and schedules a new one a fixed window
// later. When the window expires the latest content is written unless it equals
// what was last persisted.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"claridoc/internal/logging"
)

// DefaultWindow is the debounce window used when none is configured.
const DefaultWindow = 2 * time.Second

// defaultWriteTimeout bounds a scheduled write, which has no caller context.
const defaultWriteTimeout = 30 * time.Second

// ErrNoDocument is returned by SaveNow when no document is open.
var ErrNoDocument = errors.New("no document open")

// Writer persists document content.
type Writer interface {
	UpdateContent(ctx context.Context, docID, content string) error
}

// Option configures a Persister.
type Option func(*Persister)

// WithWindow sets the debounce window.
func WithWindow(d time.Duration) Option {
	return func(p *Persister) {
		if d > 0 {
			p.window = d
		}
	}
}

// WithScheduler replaces the timer-backed scheduler.
func WithScheduler(s Scheduler) Option {
	return func(p *Persister) { p.sched = s }
}

// WithWriteTimeout bounds each scheduled write.
func WithWriteTimeout(d time.Duration) Option {
	return func(p *Persister) {
		if d > 0 {
			p.writeTimeout = d
		}
	}
}

// Persister debounces writes for one open document at a time.
type Persister struct {
	writer       Writer
	sched        Scheduler
	window       time.Duration
	writeTimeout time.Duration

	mu        sync.Mutex
	docID     string
	latest    string
	persisted string
	cancel    CancelFunc
	gen       uint64 // bumped on every schedule/cancel; stale fires compare against it
}

// New returns a persister writing through w.
func New(w Writer, opts ...Option) *Persister {
	p := &Persister{
		writer:       w,
		sched:        TimerScheduler{},
		window:       DefaultWindow,
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Open re-arms the persister for docID whose stored content is content.
// Any pending write for the previous document is dropped, not flushed.
func (p *Persister) Open(docID, content string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cancelLocked()
	p.docID = docID
	p.latest = content
	p.persisted = content
	logging.AutosaveDebug("armed for %s", docID)
}

// Close cancels the pending write without flushing it.
func (p *Persister) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cancelLocked()
	if p.docID != "" {
		logging.AutosaveDebug("disarmed for %s", p.docID)
	}
	p.docID = ""
	p.latest = ""
	p.persisted = ""
}

// Changed records new content and restarts the debounce window.
func (p *Persister) Changed(content string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.docID == "" {
		return
	}
	p.latest = content
	p.cancelLocked()
	gen := p.gen
	p.cancel = p.sched.Schedule(p.window, func() { p.fire(gen) })
}

// MarkPersisted records content that the store already holds, e.g. a remote
// update, and cancels the pending write.
func (p *Persister) MarkPersisted(content string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cancelLocked()
	p.latest = content
	p.persisted = content
}

// SaveNow writes the latest content immediately, whether or not it changed,
// and returns the write error.
func (p *Persister) SaveNow(ctx context.Context) error {
	p.mu.Lock()
	p.cancelLocked()
	docID, content := p.docID, p.latest
	p.mu.Unlock()

	if docID == "" {
		return ErrNoDocument
	}
	if err := p.writer.UpdateContent(ctx, docID, content); err != nil {
		logging.AutosaveWarn("manual save of %s failed: %v", docID, err)
		return fmt.Errorf("save %s: %w", docID, err)
	}

	p.mu.Lock()
	if p.docID == docID {
		p.persisted = content
	}
	p.mu.Unlock()
	logging.Autosave("saved %s (%d bytes)", docID, len(content))
	return nil
}

// Pending reports whether a write is scheduled.
func (p *Persister) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Dirty reports whether the latest content differs from what was last persisted.
func (p *Persister) Dirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.docID != "" && p.latest != p.persisted
}

func (p *Persister) cancelLocked() {
	p.gen++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Persister) fire(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.docID == "" {
		p.mu.Unlock()
		return
	}
	p.cancel = nil
	docID, content := p.docID, p.latest
	if content == p.persisted {
		p.mu.Unlock()
		logging.AutosaveDebug("%s unchanged since last save, skipping", docID)
		return
	}
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
	defer cancel()

	timer := logging.StartTimer(logging.CategoryAutosave, "autosave "+docID)
	err := p.writer.UpdateContent(ctx, docID, content)
	timer.Stop()
	if err != nil {
		logging.AutosaveWarn("autosave of %s failed: %v", docID, err)
		return
	}

	p.mu.Lock()
	if p.docID == docID {
		p.persisted = content
	}
	p.mu.Unlock()
	logging.Autosave("autosaved %s (%d bytes)", docID, len(content))
}
