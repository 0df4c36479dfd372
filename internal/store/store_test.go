package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claridoc/internal/chat"
	"claridoc/internal/realtime"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(ev realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func newTestStore(t *testing.T, opts ...Option) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewLocalStore(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Ping(context.Background()))

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Contains(t, stats, "documents")
	assert.Contains(t, stats, "chat_turns")
	assert.Equal(t, CurrentSchemaVersion, s.SchemaVersion())
	assert.Equal(t, DriverModernc, s.Driver())
}

func TestCreateGetList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateDocument(ctx, "alice", "First")
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "", first.Content)

	second, err := s.CreateDocument(ctx, "alice", "  Second  ")
	require.NoError(t, err)
	assert.Equal(t, "Second", second.Title)

	_, err = s.CreateDocument(ctx, "bob", "Other owner")
	require.NoError(t, err)

	_, err = s.CreateDocument(ctx, "alice", "   ")
	assert.Error(t, err)

	got, err := s.GetDocument(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Title, got.Title)
	assert.True(t, first.CreatedAt.Equal(got.CreatedAt))

	// touching the first document moves it to the front
	require.NoError(t, s.UpdateContent(ctx, first.ID, "hello"))
	docs, err := s.ListDocuments(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, first.ID, docs[0].ID)
	assert.Equal(t, "hello", docs[0].Content)
	assert.Equal(t, second.ID, docs[1].ID)
	assert.False(t, docs[0].UpdatedAt.Before(docs[0].CreatedAt))
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetDocument(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.UpdateContent(context.Background(), "nope", "x")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.RenameDocument(context.Background(), "nope", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatePublishes(t *testing.T) {
	pub := &recordingPublisher{}
	s := newTestStore(t, WithPublisher(pub))
	ctx := context.Background()

	d, err := s.CreateDocument(ctx, "alice", "Doc")
	require.NoError(t, err)
	require.NoError(t, s.UpdateContent(ctx, d.ID, "line 1\nline 2"))

	second := &recordingPublisher{}
	s.AddPublisher(second)
	require.NoError(t, s.UpdateContent(ctx, d.ID, "line 1"))

	require.Len(t, pub.events, 2)
	assert.Equal(t, d.ID, pub.events[0].DocumentID)
	assert.Equal(t, "line 1\nline 2", pub.events[0].Content)
	require.Len(t, second.events, 1)
	assert.Equal(t, "line 1", second.events[0].Content)

	// failed updates publish nothing
	_ = s.UpdateContent(ctx, "missing", "x")
	assert.Len(t, pub.events, 2)
}

func TestUpdateReachesHubSubscribers(t *testing.T) {
	hub := realtime.NewHub(4)
	s := newTestStore(t, WithPublisher(hub))
	ctx := context.Background()

	d, err := s.CreateDocument(ctx, "alice", "Doc")
	require.NoError(t, err)
	sub, err := hub.Subscribe(ctx, d.ID)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, s.UpdateContent(ctx, d.ID, "pushed"))
	ev := <-sub.Events()
	assert.Equal(t, "pushed", ev.Content)
}

func TestRename(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d, err := s.CreateDocument(ctx, "alice", "Old")
	require.NoError(t, err)

	require.NoError(t, s.RenameDocument(ctx, d.ID, "New"))
	got, err := s.GetDocument(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Title)
}

func TestTurns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	turns := []chat.Turn{
		chat.UserTurn("delete line 2", &chat.Attachment{Name: "notes.txt", MIMEType: "text/plain", Data: []byte("x")}),
		chat.ModelTurn("Document updated.", &chat.ToolCall{Name: "delete_lines", Args: map[string]any{"start_line": 2, "end_line": 2}}),
		chat.UserTurn("thanks", nil),
	}
	require.NoError(t, s.AppendTurns(ctx, "doc-1", turns[:2]...))
	require.NoError(t, s.AppendTurns(ctx, "doc-1", turns[2]))
	require.NoError(t, s.AppendTurns(ctx, "doc-2", chat.UserTurn("elsewhere", nil)))
	require.NoError(t, s.AppendTurns(ctx, "doc-1"))

	got, err := s.LoadTurns(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, chat.RoleUser, got[0].Role)
	assert.Equal(t, "delete line 2", got[0].Text)
	require.NotNil(t, got[0].Attachment)
	assert.Equal(t, "notes.txt", got[0].Attachment.Name)
	assert.Equal(t, "text/plain", got[0].Attachment.MIMEType)
	assert.Nil(t, got[0].Attachment.Data)

	assert.Equal(t, chat.RoleModel, got[1].Role)
	require.NotNil(t, got[1].ToolCall)
	assert.Equal(t, "delete_lines", got[1].ToolCall.Name)
	assert.Equal(t, map[string]any{"start_line": float64(2), "end_line": float64(2)}, got[1].ToolCall.Args)

	assert.Nil(t, got[2].ToolCall)
	assert.Nil(t, got[2].Attachment)
	assert.True(t, turns[2].At.Equal(got[2].At))

	require.NoError(t, s.ClearTurns(ctx, "doc-1"))
	got, err = s.LoadTurns(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, got)

	other, err := s.LoadTurns(ctx, "doc-2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestReopenFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "claridoc.db")
	ctx := context.Background()

	s, err := NewLocalStore(path)
	require.NoError(t, err)
	d, err := s.CreateDocument(ctx, "alice", "Persistent")
	require.NoError(t, err)
	require.NoError(t, s.UpdateContent(ctx, d.ID, "kept"))
	require.NoError(t, s.Close())

	s, err = NewLocalStore(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.GetDocument(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Content)
	assert.Equal(t, path, s.Path())
}

func TestMigratesVersionOneDatabase(t *testing.T) {
	s := newTestStore(t)

	// rebuild chat_turns without the later columns, as a v1 database had it
	_, err := s.db.Exec(`
		DROP TABLE chat_turns;
		DELETE FROM schema_versions;
		CREATE TABLE chat_turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);`)
	require.NoError(t, err)
	assert.Equal(t, 1, GetSchemaVersion(s.db))
	assert.False(t, columnExists(s.db, "chat_turns", "tool_name"))

	require.NoError(t, RunMigrations(s.db))
	assert.Equal(t, CurrentSchemaVersion, GetSchemaVersion(s.db))
	for _, m := range pendingMigrations {
		assert.True(t, columnExists(s.db, m.Table, m.Column), m.Column)
	}

	// idempotent
	require.NoError(t, RunMigrations(s.db))
}
