// Package inmemory provides a map-backed store.Driver, used by tests and
// throwaway environments.
package inmemory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/quillworksco/folio/pkg/notebook"
	"github.com/quillworksco/folio/pkg/store"
)

// Driver implements store.Driver using in-memory maps.
type Driver struct {
	mu sync.RWMutex

	// notebooks and sources key on record ID; order slices preserve
	// creation order for listing.
	notebooks     map[string]*notebook.Notebook
	notebookOrder []string
	sources       map[string]*notebook.Source
	sourceOrder   []string
}

// NewDriver creates a new in-memory store.
func NewDriver() *Driver {
	return &Driver{
		notebooks: make(map[string]*notebook.Notebook),
		sources:   make(map[string]*notebook.Source),
	}
}

// CreateNotebook stores a new notebook.
func (s *Driver) CreateNotebook(_ context.Context, nb *notebook.Notebook) error {
	if nb == nil {
		return errors.New("cannot store nil notebook")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notebooks[nb.ID]; ok {
		return errors.New("notebook already exists: " + nb.ID)
	}

	cp := *nb
	s.notebooks[nb.ID] = &cp
	s.notebookOrder = append(s.notebookOrder, nb.ID)
	return nil
}

// GetNotebook retrieves a notebook by ID.
func (s *Driver) GetNotebook(_ context.Context, id string) (*notebook.Notebook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nb, ok := s.notebooks[id]
	if !ok {
		return nil, store.NotFoundError{Kind: "notebook", ID: id}
	}

	cp := *nb
	return &cp, nil
}

// ListNotebooks returns all notebooks in creation order.
func (s *Driver) ListNotebooks(_ context.Context) ([]*notebook.Notebook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notebooks := make([]*notebook.Notebook, 0, len(s.notebookOrder))
	for _, id := range s.notebookOrder {
		cp := *s.notebooks[id]
		notebooks = append(notebooks, &cp)
	}
	return notebooks, nil
}

// DeleteNotebook removes a notebook and all of its sources.
func (s *Driver) DeleteNotebook(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notebooks[id]; !ok {
		return store.NotFoundError{Kind: "notebook", ID: id}
	}

	delete(s.notebooks, id)
	s.notebookOrder = remove(s.notebookOrder, id)

	kept := s.sourceOrder[:0]
	for _, srcID := range s.sourceOrder {
		if s.sources[srcID].NotebookID == id {
			delete(s.sources, srcID)
			continue
		}
		kept = append(kept, srcID)
	}
	s.sourceOrder = kept
	return nil
}

// AddSource stores a new source under its notebook.
func (s *Driver) AddSource(_ context.Context, src *notebook.Source) error {
	if src == nil {
		return errors.New("cannot store nil source")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notebooks[src.NotebookID]; !ok {
		return store.NotFoundError{Kind: "notebook", ID: src.NotebookID}
	}
	if _, ok := s.sources[src.ID]; ok {
		return errors.New("source already exists: " + src.ID)
	}

	cp := *src
	s.sources[src.ID] = &cp
	s.sourceOrder = append(s.sourceOrder, src.ID)
	return nil
}

// GetSource retrieves a source by ID, soft-deleted sources included.
func (s *Driver) GetSource(_ context.Context, id string) (*notebook.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src, ok := s.sources[id]
	if !ok {
		return nil, store.NotFoundError{Kind: "source", ID: id}
	}

	cp := *src
	return &cp, nil
}

// ListSources returns a notebook's non-deleted sources in creation order.
func (s *Driver) ListSources(_ context.Context, notebookID string) ([]*notebook.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.notebooks[notebookID]; !ok {
		return nil, store.NotFoundError{Kind: "notebook", ID: notebookID}
	}

	var sources []*notebook.Source
	for _, id := range s.sourceOrder {
		src := s.sources[id]
		if src.NotebookID != notebookID || src.Deleted() {
			continue
		}
		cp := *src
		sources = append(sources, &cp)
	}
	return sources, nil
}

// RemoveSource soft-deletes a source.
func (s *Driver) RemoveSource(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.sources[id]
	if !ok {
		return store.NotFoundError{Kind: "source", ID: id}
	}
	if src.Deleted() {
		return nil
	}

	now := time.Now().UTC()
	src.DeletedAt = &now
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Driver) Close() error {
	return nil
}

func remove(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

var _ store.Driver = (*Driver)(nil)
