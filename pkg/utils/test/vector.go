package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/quillworksco/folio/pkg/vector"
)

// MockIndex is a test vector index backed by in-memory maps. Query results
// are scripted per collection via SetQueryResults.
type MockIndex struct {
	mu sync.Mutex

	collections  map[string]map[string]vector.Record
	queryResults map[string][]vector.Match

	// Err, when set, fails every operation with that error
	Err error

	// UpsertBatches records each Upsert call's records in order
	UpsertBatches [][]vector.Record

	// DeletedSources records collection/source pairs passed to DeleteBySource
	DeletedSources []string

	// QueryCalls counts Query invocations
	QueryCalls int
}

func NewMockIndex() *MockIndex {
	return &MockIndex{
		collections:  make(map[string]map[string]vector.Record),
		queryResults: make(map[string][]vector.Match),
	}
}

// SetQueryResults scripts what Query returns for a collection.
func (m *MockIndex) SetQueryResults(collection string, matches []vector.Match) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryResults[collection] = matches
}

// Records returns a copy of everything stored in a collection.
func (m *MockIndex) Records(collection string) []vector.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	var records []vector.Record
	for _, rec := range m.collections[collection] {
		records = append(records, rec)
	}
	return records
}

func (m *MockIndex) EnsureCollection(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.collections[collection]; !ok {
		m.collections[collection] = make(map[string]vector.Record)
	}
	return nil
}

func (m *MockIndex) Upsert(_ context.Context, collection string, records []vector.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.collections[collection]; !ok {
		m.collections[collection] = make(map[string]vector.Record)
	}

	m.UpsertBatches = append(m.UpsertBatches, records)
	for _, rec := range records {
		m.collections[collection][rec.ID] = rec
	}
	return nil
}

func (m *MockIndex) Get(_ context.Context, collection string, ids []string) ([]vector.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	recs, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, collection)
	}

	var records []vector.Record
	for _, id := range ids {
		if rec, found := recs[id]; found {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (m *MockIndex) Query(_ context.Context, collection, _ string, limit int) ([]vector.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.QueryCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	if _, ok := m.collections[collection]; !ok {
		return nil, fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, collection)
	}

	matches := m.queryResults[collection]
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (m *MockIndex) DeleteBySource(_ context.Context, collection, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	m.DeletedSources = append(m.DeletedSources, collection+"/"+sourceID)
	for id, rec := range m.collections[collection] {
		if rec.Metadata[vector.MetaSourceID] == sourceID {
			delete(m.collections[collection], id)
		}
	}
	return nil
}

func (m *MockIndex) DeleteCollection(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	delete(m.collections, collection)
	delete(m.queryResults, collection)
	return nil
}

func (m *MockIndex) Count(_ context.Context, collection string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return 0, m.Err
	}
	recs, ok := m.collections[collection]
	if !ok {
		return 0, fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, collection)
	}
	return len(recs), nil
}

func (m *MockIndex) Close() error {
	return nil
}

var _ vector.Index = (*MockIndex)(nil)
