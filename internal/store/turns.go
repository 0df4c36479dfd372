package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"claridoc/internal/chat"
	"claridoc/internal/logging"
)

// =============================================================================
// CHAT HISTORY
// =============================================================================
//
// Turns are stored per document. Attachment bytes are not persisted; only the
// name and MIME type are kept so reloaded history can still mention them.

// LoadTurns returns the chat history of docID in insertion order.
func (s *LocalStore) LoadTurns(ctx context.Context, docID string) ([]chat.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, text, tool_name, tool_args, attachment_name, attachment_mime, created_at
		 FROM chat_turns WHERE document_id = ? ORDER BY id`, docID)
	if err != nil {
		logging.StoreError("Failed to load chat for %s: %v", docID, err)
		return nil, fmt.Errorf("load turns: %w", err)
	}
	defer rows.Close()

	var turns []chat.Turn
	for rows.Next() {
		var role, text, toolName, toolArgs, attName, attMIME string
		var created int64
		if err := rows.Scan(&role, &text, &toolName, &toolArgs, &attName, &attMIME, &created); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}

		t := chat.Turn{Role: chat.Role(role), Text: text, At: time.Unix(0, created)}
		if toolName != "" {
			call := &chat.ToolCall{Name: toolName}
			if toolArgs != "" {
				if err := json.Unmarshal([]byte(toolArgs), &call.Args); err != nil {
					logging.StoreDebug("Ignoring malformed tool args on %s turn: %v", docID, err)
				}
			}
			t.ToolCall = call
		}
		if attMIME != "" {
			t.Attachment = &chat.Attachment{Name: attName, MIMEType: attMIME}
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	logging.StoreDebug("Loaded %d chat turns for %s", len(turns), docID)
	return turns, nil
}

// AppendTurns stores turns for docID in one transaction.
func (s *LocalStore) AppendTurns(ctx context.Context, docID string, turns ...chat.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append turns: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chat_turns (document_id, role, text, tool_name, tool_args, attachment_name, attachment_mime, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare append turns: %w", err)
	}
	defer stmt.Close()

	for _, t := range turns {
		var toolName, toolArgs, attName, attMIME string
		if t.ToolCall != nil {
			toolName = t.ToolCall.Name
			if t.ToolCall.Args != nil {
				b, err := json.Marshal(t.ToolCall.Args)
				if err != nil {
					return fmt.Errorf("encode tool args: %w", err)
				}
				toolArgs = string(b)
			}
		}
		if t.Attachment != nil {
			attName, attMIME = t.Attachment.Name, t.Attachment.MIMEType
		}
		at := t.At
		if at.IsZero() {
			at = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, docID, string(t.Role), t.Text, toolName, toolArgs, attName, attMIME, at.UnixNano()); err != nil {
			logging.StoreError("Failed to append chat turn for %s: %v", docID, err)
			return fmt.Errorf("append turn: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append turns: %w", err)
	}
	logging.StoreDebug("Appended %d chat turns for %s", len(turns), docID)
	return nil
}

// ClearTurns deletes the chat history of docID.
func (s *LocalStore) ClearTurns(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM chat_turns WHERE document_id = ?", docID)
	if err != nil {
		return fmt.Errorf("clear turns: %w", err)
	}
	n, _ := res.RowsAffected()
	logging.Store("Cleared %d chat turns for %s", n, docID)
	return nil
}

// Stats returns row counts per table.
func (s *LocalStore) Stats(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	for _, table := range []string{"documents", "chat_turns"} {
		if !tableExists(s.db, table) {
			continue
		}
		var n int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		stats[table] = n
	}
	return stats, nil
}
