// Package editor holds the state of one editing session: the open document,
// its undo history, search, chat, autosave and realtime subscription.
//
// All state lives in Session behind a single mutex and is replaced by whole
// values. Model calls, store I/O and subscription changes happen outside the
// lock.
package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"claridoc/internal/autosave"
	"claridoc/internal/chat"
	"claridoc/internal/command"
	"claridoc/internal/history"
	"claridoc/internal/logging"
	"claridoc/internal/orchestrator"
	"claridoc/internal/realtime"
	"claridoc/internal/search"
	"claridoc/internal/store"
)

var (
	// ErrNoDocument is returned by operations that need an open document.
	ErrNoDocument = autosave.ErrNoDocument
	// ErrTurnInProgress is returned by Ask while another turn is running.
	ErrTurnInProgress = errors.New("an assistant turn is already in progress")
)

const (
	replyFailed      = "Sorry, I encountered an error. Please try again."
	replyRateLimited = "The assistant is receiving too many requests. Please try again shortly."
)

// Store is the persistence the session needs.
type Store interface {
	GetDocument(ctx context.Context, id string) (store.Document, error)
	UpdateContent(ctx context.Context, id, content string) error
	LoadTurns(ctx context.Context, docID string) ([]chat.Turn, error)
	AppendTurns(ctx context.Context, docID string, turns ...chat.Turn) error
	ClearTurns(ctx context.Context, docID string) error
}

// Assistant runs one conversational turn.
type Assistant interface {
	Turn(ctx context.Context, buf orchestrator.Buffer, req orchestrator.Request) (orchestrator.Result, error)
}

// Option configures a Session.
type Option func(*options)

type options struct {
	historyLimit int
	autosave     []autosave.Option
}

// WithHistoryLimit sets the undo depth.
func WithHistoryLimit(n int) Option {
	return func(o *options) { o.historyLimit = n }
}

// WithAutosaveWindow sets the autosave debounce window.
func WithAutosaveWindow(d time.Duration) Option {
	return func(o *options) { o.autosave = append(o.autosave, autosave.WithWindow(d)) }
}

// WithScheduler replaces the autosave timer scheduler.
func WithScheduler(s autosave.Scheduler) Option {
	return func(o *options) { o.autosave = append(o.autosave, autosave.WithScheduler(s)) }
}

// Session is the editing state for one user.
type Session struct {
	store      Store
	assistant  Assistant
	persister  *autosave.Persister
	reconciler *realtime.Reconciler

	mu      sync.Mutex
	docID   string
	title   string
	content string
	gen     uint64 // bumped on every Open/Close
	history *history.History
	search  *search.Index
	turns   []chat.Turn
	busy    bool
	written []string // own writes whose echo has not arrived yet, oldest first
}

// New creates a session. sub may be nil to disable realtime updates.
func New(st Store, sub realtime.Subscriber, assistant Assistant, opts ...Option) *Session {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		store:     st,
		assistant: assistant,
		history:   history.New(o.historyLimit),
		search:    search.New(),
	}
	s.persister = autosave.New(writerFunc(s.write), o.autosave...)
	if sub != nil {
		s.reconciler = realtime.NewReconciler(sub, s)
	}
	return s
}

type writerFunc func(ctx context.Context, docID, content string) error

func (f writerFunc) UpdateContent(ctx context.Context, docID, content string) error {
	return f(ctx, docID, content)
}

// write stores content and remembers it until its echo arrives on the push
// channel, so the echo is not mistaken for a remote edit.
func (s *Session) write(ctx context.Context, docID, content string) error {
	s.mu.Lock()
	own := docID == s.docID
	if own {
		s.written = append(s.written, content)
	}
	s.mu.Unlock()

	err := s.store.UpdateContent(ctx, docID, content)
	if err != nil && own {
		s.mu.Lock()
		if docID == s.docID {
			s.forgetWrite(content)
		}
		s.mu.Unlock()
	}
	return err
}

// forgetWrite drops the newest pending write equal to content.
func (s *Session) forgetWrite(content string) {
	for i := len(s.written) - 1; i >= 0; i-- {
		if s.written[i] == content {
			s.written = append(s.written[:i], s.written[i+1:]...)
			return
		}
	}
}

// consumeEcho reports whether content is the echo of a pending own write. The
// matching write and any older ones, whose echoes were skipped, are dropped.
func (s *Session) consumeEcho(content string) bool {
	for i, w := range s.written {
		if w == content {
			s.written = s.written[i+1:]
			return true
		}
	}
	return false
}

// Open loads docID and its chat history, resets undo history and re-arms
// autosave and the realtime subscription.
func (s *Session) Open(ctx context.Context, docID string) error {
	timer := logging.StartTimer(logging.CategorySession, "Open "+docID)
	defer timer.Stop()

	var doc store.Document
	var turns []chat.Turn
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.store.GetDocument(gctx, docID)
		if err != nil {
			return fmt.Errorf("load document: %w", err)
		}
		doc = d
		return nil
	})
	g.Go(func() error {
		t, err := s.store.LoadTurns(gctx, docID)
		if err != nil {
			return fmt.Errorf("load chat history: %w", err)
		}
		turns = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if s.reconciler != nil {
		s.reconciler.Stop()
	}

	s.mu.Lock()
	s.gen++
	s.docID = doc.ID
	s.title = doc.Title
	s.content = doc.Content
	s.turns = turns
	s.history.Reset()
	s.written = nil
	if err := s.search.Update(doc.Content); err != nil {
		logging.SessionWarn("search refresh failed: %v", err)
	}
	s.mu.Unlock()

	s.persister.Open(doc.ID, doc.Content)
	if s.reconciler != nil {
		if err := s.reconciler.Follow(context.WithoutCancel(ctx), doc.ID); err != nil {
			logging.SessionWarn("realtime updates unavailable for %s: %v", doc.ID, err)
		}
	}

	logging.Session("opened %s (%q, %d bytes, %d chat turns)", doc.ID, doc.Title, len(doc.Content), len(turns))
	return nil
}

// Close releases the document without flushing a pending autosave.
func (s *Session) Close() {
	if s.reconciler != nil {
		s.reconciler.Stop()
	}
	s.persister.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docID != "" {
		logging.Session("closed %s", s.docID)
	}
	s.gen++
	s.docID, s.title, s.content = "", "", ""
	s.turns = nil
	s.history.Reset()
	_ = s.search.Update("")
}

// DocumentID returns the open document id, or "".
func (s *Session) DocumentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docID
}

// Title returns the open document title.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// Content returns the current buffer.
func (s *Session) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

// Dirty reports whether there are edits not yet persisted.
func (s *Session) Dirty() bool { return s.persister.Dirty() }

// replaceLocked records the current content for undo and swaps in next.
// The caller must hold s.mu and call persister.Changed after unlocking.
func (s *Session) replaceLocked(next string) {
	s.history.Record(s.content)
	s.content = next
	if err := s.search.Update(next); err != nil {
		logging.SessionWarn("search refresh failed: %v", err)
	}
}

// Type replaces the buffer with a direct user edit.
func (s *Session) Type(next string) error {
	s.mu.Lock()
	if s.docID == "" {
		s.mu.Unlock()
		return ErrNoDocument
	}
	if next == s.content {
		s.mu.Unlock()
		return nil
	}
	s.replaceLocked(next)
	s.mu.Unlock()

	s.persister.Changed(next)
	return nil
}

// Apply runs an edit command against the buffer. A failed command leaves the
// buffer untouched and returns the *command.Error.
func (s *Session) Apply(cmd command.Command) error {
	s.mu.Lock()
	if s.docID == "" {
		s.mu.Unlock()
		return ErrNoDocument
	}
	next, err := command.Execute(cmd, s.content)
	if err != nil {
		s.mu.Unlock()
		logging.SessionDebug("%s rejected: %v", cmd.Name(), err)
		return err
	}
	s.replaceLocked(next)
	s.mu.Unlock()

	s.persister.Changed(next)
	logging.SessionDebug("applied %s", cmd.Name())
	return nil
}

// Undo restores the previous content. It reports false when there is nothing to undo.
func (s *Session) Undo() bool {
	return s.step(s.history.Undo, "undo")
}

// Redo reapplies undone content. It reports false when there is nothing to redo.
func (s *Session) Redo() bool {
	return s.step(s.history.Redo, "redo")
}

func (s *Session) step(move func(string) (string, bool), op string) bool {
	s.mu.Lock()
	next, ok := move(s.content)
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.content = next
	if err := s.search.Update(next); err != nil {
		logging.SessionWarn("search refresh failed: %v", err)
	}
	undo, redo := s.history.Len()
	s.mu.Unlock()

	s.persister.Changed(next)
	logging.SessionDebug("%s (undo=%d redo=%d)", op, undo, redo)
	return true
}

// CanUndo and CanRedo report whether Undo and Redo would change the buffer.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo()
}

// Save writes the buffer now, whether or not it changed.
func (s *Session) Save(ctx context.Context) error {
	return s.persister.SaveNow(ctx)
}

// ReplaceRemote implements realtime.Target: a pushed value that differs from
// the buffer replaces it. Each own write is ignored once, when its echo
// arrives; after that the same value from another writer applies normally.
func (s *Session) ReplaceRemote(docID, content string) bool {
	s.mu.Lock()
	if docID != s.docID {
		s.mu.Unlock()
		return false
	}
	if s.consumeEcho(content) {
		s.mu.Unlock()
		logging.SessionDebug("ignoring echo of own write to %s", docID)
		return false
	}
	if content == s.content {
		s.mu.Unlock()
		return false
	}
	// a foreign write supersedes every pending own write
	s.written = nil
	s.content = content
	if err := s.search.Update(content); err != nil {
		logging.SessionWarn("search refresh failed: %v", err)
	}
	s.mu.Unlock()

	s.persister.MarkPersisted(content)
	logging.Session("remote update replaced %s (%d bytes)", docID, len(content))
	return true
}

// Find sets the search query against the buffer and returns the match count.
func (s *Session) Find(query string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.search.SetQuery(query, s.content); err != nil {
		return 0, err
	}
	return s.search.Count(), nil
}

// NextMatch advances the active match, wrapping, and returns it.
func (s *Session) NextMatch() (search.Match, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search.Next()
	return s.search.Current()
}

// PrevMatch moves the active match back, wrapping, and returns it.
func (s *Session) PrevMatch() (search.Match, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search.Prev()
	return s.search.Current()
}

// SearchState is a snapshot of the search index.
type SearchState struct {
	Query   string
	Matches []search.Match
	Active  int
}

// Search returns the current query, its matches and the active index.
func (s *Session) Search() SearchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SearchState{
		Query:   s.search.Query(),
		Matches: s.search.Matches(),
		Active:  s.search.Active(),
	}
}

// Turns returns a copy of the chat history of the open document.
func (s *Session) Turns() []chat.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Busy reports whether an assistant turn is running.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Ask sends a chat message to the assistant. Both the user turn and the reply
// are appended to the chat history; an assistant failure is recorded as an
// apology turn and returned. A successful edit goes through undo history and
// autosave like any other edit.
func (s *Session) Ask(ctx context.Context, text string, att *chat.Attachment) (chat.Turn, error) {
	if strings.TrimSpace(text) == "" && att == nil {
		return chat.Turn{}, orchestrator.ErrEmptyMessage
	}
	if err := att.Validate(); err != nil {
		return chat.Turn{}, err
	}

	s.mu.Lock()
	if s.docID == "" {
		s.mu.Unlock()
		return chat.Turn{}, ErrNoDocument
	}
	if s.busy {
		s.mu.Unlock()
		return chat.Turn{}, ErrTurnInProgress
	}
	s.busy = true
	docID, gen := s.docID, s.gen
	prior := make([]chat.Turn, len(s.turns))
	copy(prior, s.turns)
	user := chat.UserTurn(text, att)
	s.turns = append(s.turns, user)
	s.mu.Unlock()

	res, err := s.assistant.Turn(ctx, orchestrator.BufferFunc(s.Content), orchestrator.Request{
		History:    prior,
		Message:    text,
		Attachment: att,
	})

	reply := res.Reply
	if err != nil {
		logging.SessionWarn("assistant turn on %s failed: %v", docID, err)
		msg := replyFailed
		if errors.Is(err, orchestrator.ErrRateLimited) {
			msg = replyRateLimited
		}
		reply = chat.ModelTurn(msg, nil)
	}

	s.mu.Lock()
	s.busy = false
	current := gen == s.gen
	applied := false
	if current {
		s.turns = append(s.turns, reply)
		if err == nil && res.Changed && res.Content != s.content {
			s.replaceLocked(res.Content)
			applied = true
		}
	} else if res.Changed {
		logging.SessionWarn("dropping assistant edit for %s: document no longer open", docID)
	}
	s.mu.Unlock()

	if applied {
		s.persister.Changed(res.Content)
	}
	if perr := s.store.AppendTurns(context.WithoutCancel(ctx), docID, user, reply); perr != nil {
		logging.SessionWarn("persist chat turns for %s: %v", docID, perr)
	}
	return reply, err
}

// ClearChat removes the chat history of the open document.
func (s *Session) ClearChat(ctx context.Context) error {
	s.mu.Lock()
	docID := s.docID
	if docID == "" {
		s.mu.Unlock()
		return ErrNoDocument
	}
	s.turns = nil
	s.mu.Unlock()

	if err := s.store.ClearTurns(ctx, docID); err != nil {
		return fmt.Errorf("clear chat history: %w", err)
	}
	logging.Session("cleared chat history of %s", docID)
	return nil
}
