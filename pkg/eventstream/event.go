package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeNotebookIngested is emitted after a notebook's sources are
	// ingested into its vector collection.
	EventTypeNotebookIngested = "folio.notebook.ingested"

	// EventTypeNotebookPurged is emitted after a notebook's vector
	// collection is deleted.
	EventTypeNotebookPurged = "folio.notebook.purged"
)

// NotebookEvent is a transport-neutral event payload describing an index
// mutation on a notebook.
type NotebookEvent struct {
	SchemaVersion  int       `json:"schema_version"`
	EventType      string    `json:"event_type"`
	EventID        string    `json:"event_id"`
	EmittedAt      time.Time `json:"emitted_at"`
	NotebookID     string    `json:"notebook_id"`
	Collection     string    `json:"collection"`
	ChunksIngested int       `json:"chunks_ingested,omitempty"`
	SourcesSkipped int       `json:"sources_skipped,omitempty"`
}

// NewNotebookEvent creates an event of the given type with a fresh event ID.
func NewNotebookEvent(eventType, notebookID, collection string) *NotebookEvent {
	return &NotebookEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		NotebookID:    notebookID,
		Collection:    collection,
	}
}
