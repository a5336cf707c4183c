// Package notebook defines the core domain records for the folio system.
// A Notebook groups research sources; each Source carries the plain text
// extracted from the original material upstream of this system.
package notebook

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Notebook is a named container for research sources. Each notebook maps to
// exactly one collection in the vector index.
type Notebook struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Source is one piece of research material belonging to a notebook. The text
// has already been extracted from its original form (PDF, web page, ...)
// before it reaches folio.
type Source struct {
	ID            string     `json:"id"`
	NotebookID    string     `json:"notebook_id"`
	Title         string     `json:"title,omitempty"`
	ExtractedText string     `json:"extracted_text"`
	ContentHash   string     `json:"content_hash"`
	CreatedAt     time.Time  `json:"created_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// Deleted reports whether the source has been soft-deleted.
func (s *Source) Deleted() bool {
	return s.DeletedAt != nil
}

// Ingestible reports whether the source should participate in vector
// ingestion: not deleted and carrying non-empty extracted text.
func (s *Source) Ingestible() bool {
	return !s.Deleted() && s.ExtractedText != ""
}

// New creates a notebook with a fresh ID.
func New(name string) *Notebook {
	return &Notebook{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
}

// NewSource creates a source for a notebook, fingerprinting its text.
func NewSource(notebookID, title, extractedText string) *Source {
	return &Source{
		ID:            uuid.NewString(),
		NotebookID:    notebookID,
		Title:         title,
		ExtractedText: extractedText,
		ContentHash:   ContentHash(extractedText),
		CreatedAt:     time.Now().UTC(),
	}
}

// ContentHash fingerprints source text. Unchanged text hashes identically,
// which lets re-ingestion skip sources whose content has not moved.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
