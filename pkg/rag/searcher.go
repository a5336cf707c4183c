package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/quillworksco/folio/pkg/store"
	"github.com/quillworksco/folio/pkg/vector"
)

// DefaultSearchLimit is how many results a search returns when the caller
// does not say.
const DefaultSearchLimit = 5

// Searcher runs ranked similarity searches over a notebook's collection.
type Searcher struct {
	store  store.Driver
	index  vector.Index
	logger *zap.Logger
}

// NewSearcher creates a searcher.
func NewSearcher(st store.Driver, idx vector.Index, logger *zap.Logger) *Searcher {
	return &Searcher{
		store:  st,
		index:  idx,
		logger: logger,
	}
}

// Search returns up to limit chunks ranked by similarity to the query.
// A zero limit means DefaultSearchLimit; a negative limit is a caller
// error. A notebook that exists but has never been ingested yields no
// results. Ties on score break deterministically by chunk index, then by
// the source's creation order.
func (s *Searcher) Search(ctx context.Context, notebookID, query string, limit int) ([]SimilarityResult, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit=%d (require limit >= 1)", ErrInvalidConfiguration, limit)
	}
	if limit == 0 {
		limit = DefaultSearchLimit
	}

	if _, err := s.store.GetNotebook(ctx, notebookID); err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotebookNotFound, notebookID)
		}
		return nil, err
	}

	matches, err := s.index.Query(ctx, vector.CollectionName(notebookID), query, limit)
	if err != nil {
		if errors.Is(err, vector.ErrCollectionNotFound) {
			return nil, nil
		}
		return nil, err
	}

	results := make([]SimilarityResult, 0, len(matches))
	for _, match := range matches {
		chunkIndex, _ := strconv.Atoi(match.Metadata[vector.MetaChunkIndex])
		results = append(results, SimilarityResult{
			ChunkID:    match.ID,
			SourceID:   match.Metadata[vector.MetaSourceID],
			ChunkIndex: chunkIndex,
			Text:       match.Text,
			Score:      match.Score,
		})
	}

	sourceRank, err := s.sourceCreationRank(ctx, notebookID)
	if err != nil {
		return nil, err
	}
	rank := func(sourceID string) int {
		if r, ok := sourceRank[sourceID]; ok {
			return r
		}
		// Chunks whose source was removed after ingestion sort last.
		return len(sourceRank)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].ChunkIndex != results[j].ChunkIndex {
			return results[i].ChunkIndex < results[j].ChunkIndex
		}
		if ri, rj := rank(results[i].SourceID), rank(results[j].SourceID); ri != rj {
			return ri < rj
		}
		return results[i].SourceID < results[j].SourceID
	})

	s.logger.Debug("similarity search",
		zap.String("notebook_id", notebookID),
		zap.Int("limit", limit),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// sourceCreationRank maps each of the notebook's source IDs to its position
// in creation order, for breaking score ties.
func (s *Searcher) sourceCreationRank(ctx context.Context, notebookID string) (map[string]int, error) {
	sources, err := s.store.ListSources(ctx, notebookID)
	if err != nil {
		return nil, err
	}

	rank := make(map[string]int, len(sources))
	for i, src := range sources {
		rank[src.ID] = i
	}
	return rank, nil
}
