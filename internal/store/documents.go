package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"claridoc/internal/logging"
	"claridoc/internal/realtime"
)

// Document is a stored document row.
type Document struct {
	ID        string
	Title     string
	Content   string
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const documentColumns = "id, title, content, user_id, created_at, updated_at"

func scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var d Document
	var created, updated int64
	if err := row.Scan(&d.ID, &d.Title, &d.Content, &d.OwnerID, &created, &updated); err != nil {
		return Document{}, err
	}
	d.CreatedAt = time.Unix(0, created)
	d.UpdatedAt = time.Unix(0, updated)
	return d, nil
}

// ListDocuments returns the owner's documents, most recently updated first.
func (s *LocalStore) ListDocuments(ctx context.Context, ownerID string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE user_id = ? ORDER BY updated_at DESC, created_at DESC",
		ownerID)
	if err != nil {
		logging.StoreError("Failed to list documents for %s: %v", ownerID, err)
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	logging.StoreDebug("Listed %d documents for %s", len(docs), ownerID)
	return docs, nil
}

// CreateDocument inserts an empty document and returns the stored row.
func (s *LocalStore) CreateDocument(ctx context.Context, ownerID, title string) (Document, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Document{}, errors.New("document title is required")
	}

	now := time.Now()
	d := Document{
		ID:        uuid.NewString(),
		Title:     title,
		OwnerID:   ownerID,
		CreatedAt: time.Unix(0, now.UnixNano()),
		UpdatedAt: time.Unix(0, now.UnixNano()),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO documents ("+documentColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		d.ID, d.Title, d.Content, d.OwnerID, now.UnixNano(), now.UnixNano())
	if err != nil {
		logging.StoreError("Failed to create document %q: %v", title, err)
		return Document{}, fmt.Errorf("create document: %w", err)
	}
	logging.Store("Created document %s (%q) for %s", d.ID, d.Title, ownerID)
	return d, nil
}

// GetDocument returns the document with id, or ErrNotFound.
func (s *LocalStore) GetDocument(ctx context.Context, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, err := scanDocument(s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	return d, nil
}

// UpdateContent replaces the content of id, bumps updated_at and publishes the
// new value to every registered publisher.
func (s *LocalStore) UpdateContent(ctx context.Context, id, content string) error {
	timer := logging.StartTimer(logging.CategoryStore, "UpdateContent")
	defer timer.Stop()

	now := time.Now()

	s.mu.Lock()
	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET content = ?, updated_at = ? WHERE id = ?",
		content, now.UnixNano(), id)
	s.mu.Unlock()
	if err != nil {
		logging.StoreError("Failed to update document %s: %v", id, err)
		return fmt.Errorf("update document %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	logging.StoreDebug("Updated document %s (%d bytes)", id, len(content))
	s.publish(realtime.Event{DocumentID: id, Content: content, At: now})
	return nil
}

// RenameDocument changes a document title.
func (s *LocalStore) RenameDocument(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("document title is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET title = ?, updated_at = ? WHERE id = ?",
		title, time.Now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("rename document %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
