package nop

import (
	"context"

	"github.com/quillworksco/folio/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishNotebookEvent validates input and otherwise does nothing.
func (p *Publisher) PublishNotebookEvent(_ context.Context, event *eventstream.NotebookEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
