// Package chroma provides a Chroma-backed vector.Index over Chroma's REST
// API. Chroma reports squared L2 distances; the adapter normalizes them to
// [0,1] similarity via 1/(1+distance), so 1.0 is an exact match.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quillworksco/folio/pkg/embeddings"
	"github.com/quillworksco/folio/pkg/vector"
)

// Index implements vector.Index using Chroma's REST API. Collections are
// created lazily per notebook; their ids are cached per name.
type Index struct {
	baseURL    string
	embedder   embeddings.Embedder
	httpClient *http.Client
	retry      vector.Retry
	logger     *zap.Logger

	mu          sync.RWMutex
	collections map[string]string // name -> chroma collection id
}

// Config holds configuration for the Chroma index.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// Timeout bounds each HTTP call. Defaults to 60s if zero.
	Timeout time.Duration
}

// NewIndex creates a new Chroma-backed vector index. The embedder computes
// query and record embeddings client-side before they are sent to Chroma.
func NewIndex(c Config, embedder embeddings.Embedder, logger *zap.Logger) (*Index, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Index{
		baseURL:  c.URL,
		embedder: embedder,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retry:       vector.NewRetry(logger),
		logger:      logger,
		collections: make(map[string]string),
	}, nil
}

func (x *Index) collectionsURL() string {
	return fmt.Sprintf("%s/api/v2/tenants/default_tenant/databases/default_database/collections", x.baseURL)
}

// doJSON performs one HTTP round trip, decoding a JSON response into out
// when out is non-nil. Transport failures and 5xx responses are wrapped as
// ErrBackendUnavailable so the retry layer can tell them apart from
// permanent errors.
func (x *Index) doJSON(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", vector.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		raw, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("%w: chroma returned status %d: %s",
			vector.ErrBackendUnavailable, resp.StatusCode, string(raw))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("chroma returned status %d: %s", resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

// lookupCollection resolves a collection name to its Chroma id, optionally
// creating the collection when absent.
func (x *Index) lookupCollection(ctx context.Context, name string, create bool) (string, error) {
	x.mu.RLock()
	id, ok := x.collections[name]
	x.mu.RUnlock()
	if ok {
		return id, nil
	}

	var collection chromaCollection
	status, err := x.doJSON(ctx, http.MethodGet, x.collectionsURL()+"/"+name, nil, &collection)
	switch {
	case err == nil:
		x.mu.Lock()
		x.collections[name] = collection.ID
		x.mu.Unlock()
		return collection.ID, nil
	case status == http.StatusNotFound && create:
		// fall through to creation
	case status == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, name)
	default:
		return "", fmt.Errorf("getting collection %q: %w", name, err)
	}

	createBody := map[string]any{"name": name, "get_or_create": true}
	if _, err := x.doJSON(ctx, http.MethodPost, x.collectionsURL(), createBody, &collection); err != nil {
		return "", fmt.Errorf("creating collection %q: %w", name, err)
	}

	x.mu.Lock()
	x.collections[name] = collection.ID
	x.mu.Unlock()

	x.logger.Debug("created chroma collection",
		zap.String("collection", name),
		zap.String("collection_id", collection.ID),
	)

	return collection.ID, nil
}

// EnsureCollection creates the collection if it does not exist yet.
func (x *Index) EnsureCollection(ctx context.Context, collection string) error {
	return x.retry.Do(ctx, "ensure_collection", func() error {
		_, err := x.lookupCollection(ctx, collection, true)
		return err
	})
}

// Upsert writes records into the collection, overwriting by ID.
func (x *Index) Upsert(ctx context.Context, collection string, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, len(records))
	docs := make([]string, len(records))
	embs := make([][]float32, len(records))
	metas := make([]map[string]any, len(records))

	for i, rec := range records {
		embedding, err := x.embedder.Embed(ctx, rec.Text)
		if err != nil {
			return fmt.Errorf("embedding record %s: %w", rec.ID, err)
		}

		ids[i] = rec.ID
		docs[i] = rec.Text
		embs[i] = embedding
		metas[i] = make(map[string]any, len(rec.Metadata))
		for k, v := range rec.Metadata {
			metas[i][k] = v
		}
	}

	reqBody := chromaUpsertRequest{
		IDs:        ids,
		Embeddings: embs,
		Documents:  docs,
		Metadatas:  metas,
	}

	return x.retry.Do(ctx, "upsert", func() error {
		id, err := x.lookupCollection(ctx, collection, true)
		if err != nil {
			return err
		}

		url := fmt.Sprintf("%s/%s/upsert", x.collectionsURL(), id)
		if _, err := x.doJSON(ctx, http.MethodPost, url, reqBody, nil); err != nil {
			return fmt.Errorf("upserting %d records: %w", len(records), err)
		}

		x.logger.Debug("upserted records into chroma",
			zap.String("collection", collection),
			zap.Int("count", len(records)),
		)
		return nil
	})
}

// Get retrieves records by their IDs.
func (x *Index) Get(ctx context.Context, collection string, ids []string) ([]vector.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var records []vector.Record
	err := x.retry.Do(ctx, "get", func() error {
		id, err := x.lookupCollection(ctx, collection, false)
		if err != nil {
			return err
		}

		reqBody := chromaGetRequest{
			IDs:     ids,
			Include: []string{"documents", "metadatas"},
		}

		var getResp chromaGetResponse
		url := fmt.Sprintf("%s/%s/get", x.collectionsURL(), id)
		if _, err := x.doJSON(ctx, http.MethodPost, url, reqBody, &getResp); err != nil {
			return fmt.Errorf("getting records: %w", err)
		}

		records = make([]vector.Record, len(getResp.IDs))
		for i, recID := range getResp.IDs {
			records[i] = vector.Record{ID: recID}
			if i < len(getResp.Documents) {
				records[i].Text = getResp.Documents[i]
			}
			if i < len(getResp.Metadatas) {
				records[i].Metadata = stringMetadata(getResp.Metadatas[i])
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Query embeds queryText and returns up to limit matches ranked by score.
func (x *Index) Query(ctx context.Context, collection, queryText string, limit int) ([]vector.Match, error) {
	if limit <= 0 {
		limit = 10
	}

	embedding, err := x.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	var matches []vector.Match
	err = x.retry.Do(ctx, "query", func() error {
		id, err := x.lookupCollection(ctx, collection, false)
		if err != nil {
			return err
		}

		reqBody := chromaQueryRequest{
			QueryEmbeddings: [][]float32{embedding},
			NResults:        limit,
			Include:         []string{"documents", "metadatas", "distances"},
		}

		var queryResp chromaQueryResponse
		url := fmt.Sprintf("%s/%s/query", x.collectionsURL(), id)
		if _, err := x.doJSON(ctx, http.MethodPost, url, reqBody, &queryResp); err != nil {
			return fmt.Errorf("querying: %w", err)
		}

		matches = nil
		if len(queryResp.IDs) == 0 || len(queryResp.IDs[0]) == 0 {
			return nil
		}

		ids := queryResp.IDs[0]
		var distances []float64
		if len(queryResp.Distances) > 0 {
			distances = queryResp.Distances[0]
		}
		var docs []string
		if len(queryResp.Documents) > 0 {
			docs = queryResp.Documents[0]
		}
		var metas []map[string]any
		if len(queryResp.Metadatas) > 0 {
			metas = queryResp.Metadatas[0]
		}

		matches = make([]vector.Match, 0, len(ids))
		for i, recID := range ids {
			match := vector.Match{Record: vector.Record{ID: recID}}
			if i < len(docs) {
				match.Text = docs[i]
			}
			if i < len(metas) {
				match.Metadata = stringMetadata(metas[i])
			}
			// Lower distance = higher similarity.
			if i < len(distances) {
				match.Score = 1.0 / (1.0 + distances[i])
			}
			matches = append(matches, match)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	x.logger.Debug("queried chroma",
		zap.String("collection", collection),
		zap.Int("results", len(matches)),
	)

	return matches, nil
}

// DeleteBySource removes every record belonging to the given source.
func (x *Index) DeleteBySource(ctx context.Context, collection, sourceID string) error {
	return x.retry.Do(ctx, "delete_by_source", func() error {
		id, err := x.lookupCollection(ctx, collection, false)
		if err != nil {
			return err
		}

		reqBody := chromaDeleteRequest{
			Where: map[string]any{vector.MetaSourceID: sourceID},
		}

		url := fmt.Sprintf("%s/%s/delete", x.collectionsURL(), id)
		if _, err := x.doJSON(ctx, http.MethodPost, url, reqBody, nil); err != nil {
			return fmt.Errorf("deleting records for source %s: %w", sourceID, err)
		}
		return nil
	})
}

// DeleteCollection removes the collection and everything in it.
func (x *Index) DeleteCollection(ctx context.Context, collection string) error {
	return x.retry.Do(ctx, "delete_collection", func() error {
		status, err := x.doJSON(ctx, http.MethodDelete, x.collectionsURL()+"/"+collection, nil, nil)
		if status == http.StatusNotFound {
			// Already gone; deleting is idempotent.
			err = nil
		}
		if err != nil {
			return fmt.Errorf("deleting collection %q: %w", collection, err)
		}

		x.mu.Lock()
		delete(x.collections, collection)
		x.mu.Unlock()
		return nil
	})
}

// Count returns the number of records in the collection.
func (x *Index) Count(ctx context.Context, collection string) (int, error) {
	var count int
	err := x.retry.Do(ctx, "count", func() error {
		id, err := x.lookupCollection(ctx, collection, false)
		if err != nil {
			return err
		}

		url := fmt.Sprintf("%s/%s/count", x.collectionsURL(), id)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("creating count request: %w", err)
		}

		resp, err := x.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", vector.ErrBackendUnavailable, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading count response: %w", err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: chroma returned status %d: %s",
				vector.ErrBackendUnavailable, resp.StatusCode, string(raw))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("chroma returned status %d: %s", resp.StatusCode, string(raw))
		}

		// The count endpoint returns a bare integer body.
		count, err = strconv.Atoi(string(bytes.TrimSpace(raw)))
		if err != nil {
			return fmt.Errorf("parsing count response %q: %w", string(raw), err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Close releases resources held by the index.
func (x *Index) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

// stringMetadata narrows a Chroma metadata map to the string values the
// record schema uses.
func stringMetadata(meta map[string]any) map[string]string {
	if meta == nil {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

var _ vector.Index = (*Index)(nil)
