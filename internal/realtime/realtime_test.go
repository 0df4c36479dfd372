package realtime

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHubDeliversPerDocument(t *testing.T) {
	h := NewHub(4)
	ctx := context.Background()

	a, err := h.Subscribe(ctx, "a")
	require.NoError(t, err)
	defer a.Close()
	b, err := h.Subscribe(ctx, "b")
	require.NoError(t, err)
	defer b.Close()

	h.Publish(Event{DocumentID: "a", Content: "for a"})
	ev := recv(t, a.Events())
	assert.Equal(t, "for a", ev.Content)
	assert.NotZero(t, ev.Seq)
	assert.False(t, ev.At.IsZero())

	select {
	case ev := <-b.Events():
		t.Fatalf("b received %+v", ev)
	default:
	}
}

func TestHubKeepsNewestWhenFull(t *testing.T) {
	h := NewHub(2)
	s, err := h.Subscribe(context.Background(), "doc")
	require.NoError(t, err)
	defer s.Close()

	for _, c := range []string{"1", "2", "3", "4"} {
		h.Publish(Event{DocumentID: "doc", Content: c})
	}
	assert.Equal(t, "3", recv(t, s.Events()).Content)
	assert.Equal(t, "4", recv(t, s.Events()).Content)
}

func TestHubCloseAndContextCancel(t *testing.T) {
	h := NewHub(1)
	s, err := h.Subscribe(context.Background(), "doc")
	require.NoError(t, err)
	assert.Equal(t, 1, h.Subscribers("doc"))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	_, ok := <-s.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, h.Subscribers("doc"))

	ctx, cancel := context.WithCancel(context.Background())
	s, err = h.Subscribe(ctx, "doc")
	require.NoError(t, err)
	cancel()
	select {
	case _, ok := <-s.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not released on cancel")
	}
	assert.Equal(t, 0, h.Subscribers("doc"))

	_, err = h.Subscribe(ctx, "doc")
	assert.ErrorIs(t, err, context.Canceled)
}

// buffer is a Target holding one document, with last-writer-wins semantics.
type buffer struct {
	mu      sync.Mutex
	docID   string
	content string
	applied chan string
}

func newBuffer(docID, content string) *buffer {
	return &buffer{docID: docID, content: content, applied: make(chan string, 8)}
}

func (b *buffer) ReplaceRemote(docID, content string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if docID != b.docID || content == b.content {
		return false
	}
	b.content = content
	b.applied <- content
	return true
}

func (b *buffer) get() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.content
}

func waitApplied(t *testing.T, b *buffer) string {
	t.Helper()
	select {
	case c := <-b.applied:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("remote update not applied")
		return ""
	}
}

func TestReconcilerLastWriterWins(t *testing.T) {
	h := NewHub(8)
	b := newBuffer("doc", "local")
	r := NewReconciler(h, b)
	require.NoError(t, r.Follow(context.Background(), "doc"))
	defer r.Stop()

	h.Publish(Event{DocumentID: "doc", Content: "local"})
	h.Publish(Event{DocumentID: "doc", Content: "remote"})
	assert.Equal(t, "remote", waitApplied(t, b))
	assert.Equal(t, "remote", b.get())
	assert.Equal(t, "doc", r.Following())
}

func TestReconcilerHoldsOneSubscription(t *testing.T) {
	h := NewHub(8)
	b := newBuffer("two", "")
	r := NewReconciler(h, b)

	require.NoError(t, r.Follow(context.Background(), "one"))
	require.NoError(t, r.Follow(context.Background(), "two"))
	assert.Equal(t, 0, h.Subscribers("one"))
	assert.Equal(t, 1, h.Subscribers("two"))

	h.Publish(Event{DocumentID: "one", Content: "stale"})
	h.Publish(Event{DocumentID: "two", Content: "fresh"})
	assert.Equal(t, "fresh", waitApplied(t, b))

	r.Stop()
	assert.Equal(t, 0, h.Subscribers("two"))
	assert.Equal(t, "", r.Following())
	r.Stop()
}

func TestReconcilerSurvivesDroppedSubscription(t *testing.T) {
	h := NewHub(8)
	r := NewReconciler(h, newBuffer("doc", ""))
	require.NoError(t, r.Follow(context.Background(), "doc"))

	// drop the subscription out from under the consumer
	h.mu.Lock()
	var subs []*hubSubscription
	for s := range h.subs["doc"] {
		subs = append(subs, s)
	}
	h.mu.Unlock()
	for _, s := range subs {
		s.release()
	}

	r.Stop()
}

type failingSubscriber struct{}

func (failingSubscriber) Subscribe(context.Context, string) (Subscription, error) {
	return nil, errors.New("offline")
}

func TestReconcilerSubscribeError(t *testing.T) {
	r := NewReconciler(failingSubscriber{}, newBuffer("doc", ""))
	err := r.Follow(context.Background(), "doc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offline")
	assert.Equal(t, "", r.Following())
	r.Stop()
}

type recordingUpdater struct {
	mu      sync.Mutex
	updates map[string]string
	ch      chan string
}

func (u *recordingUpdater) UpdateContent(_ context.Context, docID, content string) error {
	u.mu.Lock()
	u.updates[docID] = content
	u.mu.Unlock()
	u.ch <- docID
	return nil
}

func TestFileSourceImportsExternalEdits(t *testing.T) {
	dir := t.TempDir()
	u := &recordingUpdater{updates: map[string]string{}, ch: make(chan string, 8)}
	fs := NewFileSource(dir, u)
	fs.SetDebounce(20 * time.Millisecond)
	require.NoError(t, fs.Start(context.Background()))
	defer fs.Stop()

	require.NoError(t, os.WriteFile(fs.Path("doc-1"), []byte("edited outside"), 0644))
	require.NoError(t, os.WriteFile(dir+"/ignored.md", []byte("x"), 0644))

	select {
	case id := <-u.ch:
		assert.Equal(t, "doc-1", id)
	case <-time.After(3 * time.Second):
		t.Fatal("external edit not imported")
	}
	u.mu.Lock()
	assert.Equal(t, "edited outside", u.updates["doc-1"])
	u.mu.Unlock()
	assert.Equal(t, 1, fs.Stats().Imported)
}

func TestFileSourceDoesNotReimportExports(t *testing.T) {
	dir := t.TempDir()
	u := &recordingUpdater{updates: map[string]string{}, ch: make(chan string, 8)}
	fs := NewFileSource(dir, u)
	fs.SetDebounce(20 * time.Millisecond)
	require.NoError(t, fs.Start(context.Background()))
	defer fs.Stop()

	fs.Publish(Event{DocumentID: "doc-2", Content: "from the store"})
	data, err := os.ReadFile(fs.Path("doc-2"))
	require.NoError(t, err)
	assert.Equal(t, "from the store", string(data))

	select {
	case id := <-u.ch:
		t.Fatalf("exported file %s was imported back", id)
	case <-time.After(300 * time.Millisecond):
	}
}
