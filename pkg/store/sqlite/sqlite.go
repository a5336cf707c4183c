// Package sqlite provides a SQLite-backed store.Driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quillworksco/folio/pkg/notebook"
	"github.com/quillworksco/folio/pkg/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS notebooks (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS sources (
	id TEXT PRIMARY KEY,
	notebook_id TEXT NOT NULL REFERENCES notebooks(id) ON DELETE CASCADE,
	title TEXT NOT NULL DEFAULT '',
	extracted_text TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	deleted_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sources_notebook ON sources(notebook_id);
`

// Driver implements store.Driver using SQLite.
type Driver struct {
	db *sql.DB
}

// NewDriver creates a new SQLite-backed store.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

// CreateNotebook stores a new notebook.
func (s *Driver) CreateNotebook(ctx context.Context, nb *notebook.Notebook) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notebooks (id, name, created_at) VALUES (?, ?, ?)`,
		nb.ID, nb.Name, nb.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting notebook: %w", err)
	}
	return nil
}

// GetNotebook retrieves a notebook by ID.
func (s *Driver) GetNotebook(ctx context.Context, id string) (*notebook.Notebook, error) {
	var nb notebook.Notebook
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM notebooks WHERE id = ?`, id,
	).Scan(&nb.ID, &nb.Name, &nb.CreatedAt)
	switch err {
	case nil:
		return &nb, nil
	case sql.ErrNoRows:
		return nil, store.NotFoundError{Kind: "notebook", ID: id}
	default:
		return nil, fmt.Errorf("querying notebook: %w", err)
	}
}

// ListNotebooks returns all notebooks in creation order.
func (s *Driver) ListNotebooks(ctx context.Context) ([]*notebook.Notebook, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM notebooks ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying notebooks: %w", err)
	}
	defer rows.Close()

	var notebooks []*notebook.Notebook
	for rows.Next() {
		var nb notebook.Notebook
		if err := rows.Scan(&nb.ID, &nb.Name, &nb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notebook: %w", err)
		}
		notebooks = append(notebooks, &nb)
	}
	return notebooks, rows.Err()
}

// DeleteNotebook removes a notebook and all of its sources.
func (s *Driver) DeleteNotebook(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notebooks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting notebook: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if n == 0 {
		return store.NotFoundError{Kind: "notebook", ID: id}
	}
	return nil
}

// AddSource stores a new source under its notebook.
func (s *Driver) AddSource(ctx context.Context, src *notebook.Source) error {
	if _, err := s.GetNotebook(ctx, src.NotebookID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (id, notebook_id, title, extracted_text, content_hash, created_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		src.ID, src.NotebookID, src.Title, src.ExtractedText, src.ContentHash, src.CreatedAt, src.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting source: %w", err)
	}
	return nil
}

// GetSource retrieves a source by ID, soft-deleted sources included.
func (s *Driver) GetSource(ctx context.Context, id string) (*notebook.Source, error) {
	var src notebook.Source
	var deletedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, notebook_id, title, extracted_text, content_hash, created_at, deleted_at
		 FROM sources WHERE id = ?`, id,
	).Scan(&src.ID, &src.NotebookID, &src.Title, &src.ExtractedText, &src.ContentHash, &src.CreatedAt, &deletedAt)
	switch err {
	case nil:
		if deletedAt.Valid {
			t := deletedAt.Time
			src.DeletedAt = &t
		}
		return &src, nil
	case sql.ErrNoRows:
		return nil, store.NotFoundError{Kind: "source", ID: id}
	default:
		return nil, fmt.Errorf("querying source: %w", err)
	}
}

// ListSources returns a notebook's non-deleted sources in creation order.
func (s *Driver) ListSources(ctx context.Context, notebookID string) ([]*notebook.Source, error) {
	if _, err := s.GetNotebook(ctx, notebookID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, notebook_id, title, extracted_text, content_hash, created_at
		 FROM sources WHERE notebook_id = ? AND deleted_at IS NULL
		 ORDER BY created_at, id`, notebookID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	var sources []*notebook.Source
	for rows.Next() {
		var src notebook.Source
		if err := rows.Scan(&src.ID, &src.NotebookID, &src.Title, &src.ExtractedText, &src.ContentHash, &src.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		sources = append(sources, &src)
	}
	return sources, rows.Err()
}

// RemoveSource soft-deletes a source.
func (s *Driver) RemoveSource(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sources SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("soft-deleting source: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if n == 0 {
		// Already deleted is a no-op; missing is an error.
		if _, err := s.GetSource(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Driver) Close() error {
	return s.db.Close()
}

var _ store.Driver = (*Driver)(nil)
