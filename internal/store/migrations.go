package store

import (
	"database/sql"
	"fmt"
	"time"

	"claridoc/internal/logging"
)

// Schema versions:
// v1: documents and chat_turns (role, text)
// v2: chat_turns tool call columns
// v3: chat_turns attachment metadata columns
const CurrentSchemaVersion = 3

// Migration adds a column to an existing table.
type Migration struct {
	Version int
	Table   string
	Column  string
	Def     string
}

// pendingMigrations lists columns added after v1. Databases created by older
// builds gain them on open.
var pendingMigrations = []Migration{
	{2, "chat_turns", "tool_name", "TEXT NOT NULL DEFAULT ''"},
	{2, "chat_turns", "tool_args", "TEXT NOT NULL DEFAULT ''"},
	{3, "chat_turns", "attachment_name", "TEXT NOT NULL DEFAULT ''"},
	{3, "chat_turns", "attachment_mime", "TEXT NOT NULL DEFAULT ''"},
}

// RunMigrations applies pending column migrations and records the schema version.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	from := GetSchemaVersion(db)
	if from >= CurrentSchemaVersion {
		logging.StoreDebug("Schema at version %d, nothing to migrate", from)
		return nil
	}

	applied := 0
	for _, m := range pendingMigrations {
		if columnExists(db, m.Table, m.Column) {
			logging.StoreDebug("Column already exists, skipping: %s.%s", m.Table, m.Column)
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("migration %s.%s: %w", m.Table, m.Column, err)
		}
		logging.Store("Migration applied: added %s.%s (v%d)", m.Table, m.Column, m.Version)
		applied++
	}

	if _, err := db.Exec("INSERT INTO schema_versions (version, applied_at) VALUES (?, ?)",
		CurrentSchemaVersion, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	logging.Store("Schema migrated v%d -> v%d (%d columns added)", from, CurrentSchemaVersion, applied)
	return nil
}

// GetSchemaVersion returns the recorded schema version, or 1 for a database
// that predates version tracking.
func GetSchemaVersion(db *sql.DB) int {
	var version int
	err := db.QueryRow("SELECT version FROM schema_versions ORDER BY version DESC LIMIT 1").Scan(&version)
	if err != nil {
		logging.StoreDebug("No schema version recorded: %v", err)
		return 1
	}
	return version
}

// columnExists checks if a column exists in a table using PRAGMA table_info.
func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		logging.StoreDebug("PRAGMA table_info(%s) failed: %v", table, err)
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

// tableExists checks if a table exists in the database.
func tableExists(db *sql.DB, table string) bool {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count); err != nil {
		logging.StoreDebug("Table existence check failed for %s: %v", table, err)
		return false
	}
	return count > 0
}
