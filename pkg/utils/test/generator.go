package testutils

import (
	"context"
	"sync"

	"github.com/quillworksco/folio/pkg/llm"
)

// MockGenerator is a test generator that returns a scripted completion.
type MockGenerator struct {
	mu sync.Mutex

	// Completion is returned from every Generate call
	Completion string

	// Err, when set, fails every Generate call
	Err error

	// Requests records every request in order
	Requests []llm.Request
}

func NewMockGenerator(completion string) *MockGenerator {
	return &MockGenerator{Completion: completion}
}

func (m *MockGenerator) Generate(_ context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Completion, nil
}

func (m *MockGenerator) Close() error {
	return nil
}

var _ llm.Generator = (*MockGenerator)(nil)
