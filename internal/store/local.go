// Package store persists documents and their chat history in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3" // cgo driver, registered as "sqlite3"
	_ "modernc.org/sqlite"          // pure Go driver, registered as "sqlite"

	"claridoc/internal/logging"
	"claridoc/internal/realtime"
)

// Driver names accepted by WithDriver.
const (
	DriverModernc = "sqlite"
	DriverCgo     = "sqlite3"
)

// ErrNotFound is returned when a document id does not exist.
var ErrNotFound = errors.New("document not found")

// Option configures a LocalStore.
type Option func(*LocalStore)

// WithDriver selects the database/sql driver. Defaults to DriverModernc.
func WithDriver(name string) Option {
	return func(s *LocalStore) {
		if name != "" {
			s.driver = name
		}
	}
}

// WithPublisher sets the publisher notified after every content update.
func WithPublisher(p realtime.Publisher) Option {
	return func(s *LocalStore) { s.publishers = append(s.publishers, p) }
}

// LocalStore is the SQLite-backed document and chat store.
type LocalStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	driver string

	pubMu      sync.RWMutex
	publishers []realtime.Publisher
}

// NewLocalStore opens (creating if needed) the database at path.
// ":memory:" gives a private in-memory database.
func NewLocalStore(path string, opts ...Option) (*LocalStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewLocalStore")
	defer timer.Stop()

	s := &LocalStore{dbPath: path, driver: DriverModernc}
	for _, opt := range opts {
		opt(s)
	}
	logging.Store("Initializing LocalStore at path: %s (driver %s)", path, s.driver)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.StoreError("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(s.driver, path)
	if err != nil {
		logging.StoreError("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection: keeps :memory: a single database and serializes writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
		}
		if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
			logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
		}
	}
	s.db = db

	if err := s.initialize(); err != nil {
		logging.StoreError("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("LocalStore initialization complete")
	return s, nil
}

func (s *LocalStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id, updated_at);

	CREATE TABLE IF NOT EXISTS chat_turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id TEXT NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_turns_document ON chat_turns(document_id, id);

	CREATE TABLE IF NOT EXISTS schema_versions (
		version INTEGER NOT NULL,
		applied_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// AddPublisher registers another publisher for content updates.
func (s *LocalStore) AddPublisher(p realtime.Publisher) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.publishers = append(s.publishers, p)
}

func (s *LocalStore) publish(ev realtime.Event) {
	s.pubMu.RLock()
	pubs := append([]realtime.Publisher(nil), s.publishers...)
	s.pubMu.RUnlock()

	for _, p := range pubs {
		p.Publish(ev)
	}
}

// Path returns the database path.
func (s *LocalStore) Path() string { return s.dbPath }

// Driver returns the database/sql driver name in use.
func (s *LocalStore) Driver() string { return s.driver }

// SchemaVersion returns the applied schema version.
func (s *LocalStore) SchemaVersion() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return GetSchemaVersion(s.db)
}

// Ping checks the database connection.
func (s *LocalStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	logging.StoreDebug("Closing LocalStore %s", s.dbPath)
	return s.db.Close()
}
