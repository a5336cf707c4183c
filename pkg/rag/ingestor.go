package rag

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/quillworksco/folio/pkg/eventstream"
	"github.com/quillworksco/folio/pkg/notebook"
	"github.com/quillworksco/folio/pkg/segment"
	"github.com/quillworksco/folio/pkg/store"
	"github.com/quillworksco/folio/pkg/vector"
)

const (
	// DefaultChunkSize is the default chunk size in characters.
	DefaultChunkSize = 1000

	// DefaultOverlap is the default overlap between consecutive chunks.
	DefaultOverlap = 200

	// DefaultBatchSize caps how many records go into one upsert call.
	DefaultBatchSize = 100
)

// Ingestor chunks notebook sources and writes them into the notebook's
// vector collection. At most one ingestion runs per notebook at a time.
type Ingestor struct {
	store     store.Driver
	index     vector.Index
	publisher eventstream.Publisher
	batchSize int
	logger    *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// IngestorConfig holds configuration for the ingestor.
type IngestorConfig struct {
	// BatchSize caps records per upsert call. Defaults to DefaultBatchSize.
	BatchSize int
}

// IngestOptions tune one ingestion pass.
type IngestOptions struct {
	// ChunkSize in characters. Defaults to DefaultChunkSize if zero.
	ChunkSize int

	// Overlap in characters carried between consecutive chunks.
	// Defaults to DefaultOverlap if ChunkSize is zero too; otherwise
	// taken as given.
	Overlap int

	// Force re-ingests sources even when their content hash is unchanged.
	Force bool
}

// NewIngestor creates an ingestor. The publisher may be a nop publisher
// when eventing is disabled.
func NewIngestor(c IngestorConfig, st store.Driver, idx vector.Index, pub eventstream.Publisher, logger *zap.Logger) *Ingestor {
	batchSize := c.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &Ingestor{
		store:     st,
		index:     idx,
		publisher: pub,
		batchSize: batchSize,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}
}

// notebookLock returns the mutex guarding one notebook's ingestion.
func (ing *Ingestor) notebookLock(notebookID string) *sync.Mutex {
	ing.mu.Lock()
	defer ing.mu.Unlock()

	lock, ok := ing.locks[notebookID]
	if !ok {
		lock = &sync.Mutex{}
		ing.locks[notebookID] = lock
	}
	return lock
}

// IngestNotebook ingests every non-deleted source of the notebook. Sources
// whose content hash already matches the indexed copy are skipped unless
// opts.Force is set. Re-ingesting unchanged content is a no-op; changed
// content replaces the source's previous chunks.
func (ing *Ingestor) IngestNotebook(ctx context.Context, notebookID string, opts IngestOptions) (*IngestResult, error) {
	chunkSize := opts.ChunkSize
	overlap := opts.Overlap
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
		if overlap == 0 {
			overlap = DefaultOverlap
		}
	}
	// Validate before touching any backend.
	if err := segment.ValidateConfig(chunkSize, overlap); err != nil {
		return nil, err
	}

	nb, err := ing.store.GetNotebook(ctx, notebookID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotebookNotFound, notebookID)
		}
		return nil, err
	}

	lock := ing.notebookLock(notebookID)
	if !lock.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrIngestionInProgress, notebookID)
	}
	defer lock.Unlock()

	collection := vector.CollectionName(notebookID)
	if err := ing.index.EnsureCollection(ctx, collection); err != nil {
		return nil, err
	}

	sources, err := ing.store.ListSources(ctx, notebookID)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{NotebookID: notebookID}
	for _, src := range sources {
		// Deleted or empty sources contribute no chunks. Only sources
		// skipped for an unchanged content hash count as skipped.
		if !src.Ingestible() {
			continue
		}

		if !opts.Force {
			unchanged, err := ing.sourceUnchanged(ctx, collection, src)
			if err != nil {
				return nil, err
			}
			if unchanged {
				result.SourcesSkipped++
				continue
			}
		}

		ingested, err := ing.ingestSource(ctx, collection, src, chunkSize, overlap)
		if err != nil {
			return nil, fmt.Errorf("ingesting source %s: %w", src.ID, err)
		}
		result.ChunksIngested += ingested
	}

	ing.logger.Info("ingested notebook",
		zap.String("notebook_id", notebookID),
		zap.String("notebook_name", nb.Name),
		zap.Int("chunks_ingested", result.ChunksIngested),
		zap.Int("sources_skipped", result.SourcesSkipped),
	)

	event := eventstream.NewNotebookEvent(eventstream.EventTypeNotebookIngested, notebookID, collection)
	event.ChunksIngested = result.ChunksIngested
	event.SourcesSkipped = result.SourcesSkipped
	ing.publish(ctx, event)

	return result, nil
}

// sourceUnchanged checks the indexed copy of the source's first chunk. A
// matching content hash means the whole source is current.
func (ing *Ingestor) sourceUnchanged(ctx context.Context, collection string, src *notebook.Source) (bool, error) {
	records, err := ing.index.Get(ctx, collection, []string{ChunkID(src.ID, 0)})
	if err != nil {
		if errors.Is(err, vector.ErrCollectionNotFound) {
			return false, nil
		}
		return false, err
	}
	if len(records) == 0 {
		return false, nil
	}
	return records[0].Metadata[vector.MetaContentHash] == src.ContentHash, nil
}

func (ing *Ingestor) ingestSource(ctx context.Context, collection string, src *notebook.Source, chunkSize, overlap int) (int, error) {
	pieces, err := segment.Split(src.ExtractedText, chunkSize, overlap)
	if err != nil {
		return 0, err
	}

	// Clear the source's previous chunks so stale trailing chunks from a
	// longer earlier version cannot survive.
	if err := ing.index.DeleteBySource(ctx, collection, src.ID); err != nil {
		return 0, err
	}

	records := make([]vector.Record, len(pieces))
	for i, piece := range pieces {
		records[i] = vector.Record{
			ID:   ChunkID(src.ID, piece.Index),
			Text: piece.Text,
			Metadata: map[string]string{
				vector.MetaNotebookID:  src.NotebookID,
				vector.MetaSourceID:    src.ID,
				vector.MetaChunkIndex:  strconv.Itoa(piece.Index),
				vector.MetaContentHash: src.ContentHash,
			},
		}
	}

	for start := 0; start < len(records); start += ing.batchSize {
		end := start + ing.batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := ing.index.Upsert(ctx, collection, records[start:end]); err != nil {
			return 0, err
		}
	}

	return len(records), nil
}

// PurgeSource removes a source's chunks from the notebook's collection.
func (ing *Ingestor) PurgeSource(ctx context.Context, notebookID, sourceID string) error {
	if err := ing.checkNotebook(ctx, notebookID); err != nil {
		return err
	}

	err := ing.index.DeleteBySource(ctx, vector.CollectionName(notebookID), sourceID)
	if errors.Is(err, vector.ErrCollectionNotFound) {
		return nil
	}
	return err
}

// PurgeNotebook deletes the notebook's entire vector collection.
func (ing *Ingestor) PurgeNotebook(ctx context.Context, notebookID string) error {
	if err := ing.checkNotebook(ctx, notebookID); err != nil {
		return err
	}

	collection := vector.CollectionName(notebookID)
	if err := ing.index.DeleteCollection(ctx, collection); err != nil {
		return err
	}

	ing.publish(ctx, eventstream.NewNotebookEvent(eventstream.EventTypeNotebookPurged, notebookID, collection))
	return nil
}

// Count returns how many chunks the notebook's collection holds. A notebook
// that has never been ingested counts zero.
func (ing *Ingestor) Count(ctx context.Context, notebookID string) (int, error) {
	if err := ing.checkNotebook(ctx, notebookID); err != nil {
		return 0, err
	}

	count, err := ing.index.Count(ctx, vector.CollectionName(notebookID))
	if errors.Is(err, vector.ErrCollectionNotFound) {
		return 0, nil
	}
	return count, err
}

func (ing *Ingestor) checkNotebook(ctx context.Context, notebookID string) error {
	_, err := ing.store.GetNotebook(ctx, notebookID)
	if store.IsNotFound(err) {
		return fmt.Errorf("%w: %s", ErrNotebookNotFound, notebookID)
	}
	return err
}

// publish sends an event best-effort. Event delivery failures never fail
// the index mutation they describe.
func (ing *Ingestor) publish(ctx context.Context, event *eventstream.NotebookEvent) {
	if err := ing.publisher.PublishNotebookEvent(ctx, event); err != nil {
		ing.logger.Warn("failed to publish notebook event",
			zap.String("event_type", event.EventType),
			zap.String("notebook_id", event.NotebookID),
			zap.Error(err),
		)
	}
}
