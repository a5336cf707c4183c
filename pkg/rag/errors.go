package rag

import (
	"errors"

	"github.com/quillworksco/folio/pkg/llm"
	"github.com/quillworksco/folio/pkg/segment"
	"github.com/quillworksco/folio/pkg/vector"
)

var (
	// ErrNotebookNotFound indicates the referenced notebook does not exist.
	ErrNotebookNotFound = errors.New("notebook not found")

	// ErrIngestionInProgress indicates another ingestion already holds the
	// notebook's lock.
	ErrIngestionInProgress = errors.New("ingestion already in progress for notebook")

	// ErrInvalidConfiguration re-exports the chunking validation error so
	// callers can match it without importing pkg/segment.
	ErrInvalidConfiguration = segment.ErrInvalidConfiguration

	// ErrBackendUnavailable re-exports the vector backend error.
	ErrBackendUnavailable = vector.ErrBackendUnavailable

	// ErrGenerationFailed re-exports the llm generation error.
	ErrGenerationFailed = llm.ErrGeneration
)
