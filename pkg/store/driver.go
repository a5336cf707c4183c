// Package store defines the interface for persisting notebooks and their
// sources in a storage backend, with implementations in subpackages.
package store

import (
	"context"

	"github.com/quillworksco/folio/pkg/notebook"
)

// Driver persists notebooks and sources. Sources are soft-deleted so a
// later ingestion pass can clean their vectors out of the index.
type Driver interface {
	// CreateNotebook stores a new notebook.
	CreateNotebook(ctx context.Context, nb *notebook.Notebook) error

	// GetNotebook retrieves a notebook by ID.
	GetNotebook(ctx context.Context, id string) (*notebook.Notebook, error)

	// ListNotebooks returns all notebooks in creation order.
	ListNotebooks(ctx context.Context) ([]*notebook.Notebook, error)

	// DeleteNotebook removes a notebook and all of its sources.
	DeleteNotebook(ctx context.Context, id string) error

	// AddSource stores a new source under its notebook.
	AddSource(ctx context.Context, src *notebook.Source) error

	// GetSource retrieves a source by ID, soft-deleted sources included.
	GetSource(ctx context.Context, id string) (*notebook.Source, error)

	// ListSources returns a notebook's non-deleted sources in creation order.
	ListSources(ctx context.Context, notebookID string) ([]*notebook.Source, error)

	// RemoveSource soft-deletes a source.
	RemoveSource(ctx context.Context, id string) error

	// Close closes the store and releases any resources.
	Close() error
}
