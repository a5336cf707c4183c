// Package qdrantidx provides a Qdrant-backed vector.Index over Qdrant's
// gRPC API. Collections are created with cosine distance, so Qdrant's
// native score is already a [0,1] higher-is-better similarity; the adapter
// only clamps it against floating point drift.
package qdrantidx

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/quillworksco/folio/pkg/embeddings"
	"github.com/quillworksco/folio/pkg/vector"
)

// Index implements vector.Index using the Qdrant gRPC client.
type Index struct {
	client     *qdrant.Client
	embedder   embeddings.Embedder
	dimensions uint64
	timeout    time.Duration
	retry      vector.Retry
	logger     *zap.Logger
}

// Config holds configuration for the Qdrant index.
type Config struct {
	// Host is the Qdrant gRPC host. Defaults to "localhost" if empty.
	Host string

	// Port is the Qdrant gRPC port. Defaults to 6334 if zero.
	Port int

	// APIKey enables authentication when non-empty.
	APIKey string

	// UseTLS enables TLS on the gRPC connection.
	UseTLS bool

	// Dimensions is the embedding vector size, required at collection
	// creation time.
	Dimensions uint64

	// Timeout bounds each backend call. Defaults to 60s if zero.
	Timeout time.Duration
}

// NewIndex creates a new Qdrant-backed vector index.
func NewIndex(c Config, embedder embeddings.Embedder, logger *zap.Logger) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}

	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 6334
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}

	logger.Info("connected to qdrant",
		zap.String("host", host),
		zap.Int("port", port),
		zap.Uint64("dimensions", c.Dimensions),
	)

	return &Index{
		client:     client,
		embedder:   embedder,
		dimensions: c.Dimensions,
		timeout:    timeout,
		retry:      vector.NewRetry(logger),
		logger:     logger,
	}, nil
}

// wrapErr classifies gRPC failures: connectivity problems become
// ErrBackendUnavailable (and thus retryable), the rest pass through.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
		return fmt.Errorf("%w: %s: %v", vector.ErrBackendUnavailable, op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func (x *Index) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, x.timeout)
}

// EnsureCollection creates the collection if it does not exist yet.
func (x *Index) EnsureCollection(ctx context.Context, collection string) error {
	return x.retry.Do(ctx, "ensure_collection", func() error {
		opCtx, cancel := x.opCtx(ctx)
		defer cancel()

		exists, err := x.client.CollectionExists(opCtx, collection)
		if err != nil {
			return wrapErr("checking collection", err)
		}
		if exists {
			return nil
		}

		err = x.client.CreateCollection(opCtx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     x.dimensions,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return wrapErr("creating collection", err)
		}

		x.logger.Debug("created qdrant collection", zap.String("collection", collection))
		return nil
	})
}

// Upsert writes records into the collection, overwriting by ID.
func (x *Index) Upsert(ctx context.Context, collection string, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i, rec := range records {
		embedding, err := x.embedder.Embed(ctx, rec.Text)
		if err != nil {
			return fmt.Errorf("embedding record %s: %w", rec.ID, err)
		}

		payload := make(map[string]any, len(rec.Metadata)+1)
		for k, v := range rec.Metadata {
			payload[k] = v
		}
		payload["text"] = rec.Text

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(rec.ID),
			Vectors: qdrant.NewVectors(embedding...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	return x.retry.Do(ctx, "upsert", func() error {
		opCtx, cancel := x.opCtx(ctx)
		defer cancel()

		_, err := x.client.Upsert(opCtx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return wrapErr("upserting points", err)
		}

		x.logger.Debug("upserted records into qdrant",
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

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(id)
	}

	var records []vector.Record
	err := x.retry.Do(ctx, "get", func() error {
		opCtx, cancel := x.opCtx(ctx)
		defer cancel()

		exists, err := x.client.CollectionExists(opCtx, collection)
		if err != nil {
			return wrapErr("checking collection", err)
		}
		if !exists {
			return fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, collection)
		}

		points, err := x.client.Get(opCtx, &qdrant.GetPoints{
			CollectionName: collection,
			Ids:            pointIDs,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return wrapErr("getting points", err)
		}

		records = make([]vector.Record, 0, len(points))
		for _, point := range points {
			records = append(records, recordFromPayload(point.GetId(), point.GetPayload()))
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
		opCtx, cancel := x.opCtx(ctx)
		defer cancel()

		exists, err := x.client.CollectionExists(opCtx, collection)
		if err != nil {
			return wrapErr("checking collection", err)
		}
		if !exists {
			return fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, collection)
		}

		points, err := x.client.Query(opCtx, &qdrant.QueryPoints{
			CollectionName: collection,
			Query:          qdrant.NewQuery(embedding...),
			Limit:          qdrant.PtrOf(uint64(limit)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return wrapErr("querying points", err)
		}

		matches = make([]vector.Match, 0, len(points))
		for _, point := range points {
			match := vector.Match{
				Record: recordFromPayload(point.GetId(), point.GetPayload()),
				Score:  clampScore(float64(point.GetScore())),
			}
			matches = append(matches, match)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	x.logger.Debug("queried qdrant",
		zap.String("collection", collection),
		zap.Int("results", len(matches)),
	)

	return matches, nil
}

// DeleteBySource removes every record belonging to the given source.
func (x *Index) DeleteBySource(ctx context.Context, collection, sourceID string) error {
	return x.retry.Do(ctx, "delete_by_source", func() error {
		opCtx, cancel := x.opCtx(ctx)
		defer cancel()

		_, err := x.client.Delete(opCtx, &qdrant.DeletePoints{
			CollectionName: collection,
			Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
				Must: []*qdrant.Condition{
					qdrant.NewMatch(vector.MetaSourceID, sourceID),
				},
			}),
			Wait: qdrant.PtrOf(true),
		})
		return wrapErr("deleting points", err)
	})
}

// DeleteCollection removes the collection and everything in it.
func (x *Index) DeleteCollection(ctx context.Context, collection string) error {
	return x.retry.Do(ctx, "delete_collection", func() error {
		opCtx, cancel := x.opCtx(ctx)
		defer cancel()

		return wrapErr("deleting collection", x.client.DeleteCollection(opCtx, collection))
	})
}

// Count returns the number of records in the collection.
func (x *Index) Count(ctx context.Context, collection string) (int, error) {
	var count int
	err := x.retry.Do(ctx, "count", func() error {
		opCtx, cancel := x.opCtx(ctx)
		defer cancel()

		exists, err := x.client.CollectionExists(opCtx, collection)
		if err != nil {
			return wrapErr("checking collection", err)
		}
		if !exists {
			return fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, collection)
		}

		n, err := x.client.Count(opCtx, &qdrant.CountPoints{
			CollectionName: collection,
			Exact:          qdrant.PtrOf(true),
		})
		if err != nil {
			return wrapErr("counting points", err)
		}
		count = int(n)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Close releases the gRPC connection.
func (x *Index) Close() error {
	return x.client.Close()
}

// recordFromPayload rebuilds a Record from a Qdrant point payload. The chunk
// text lives under the reserved "text" payload key; everything else is
// string metadata.
func recordFromPayload(id *qdrant.PointId, payload map[string]*qdrant.Value) vector.Record {
	rec := vector.Record{
		ID:       id.GetUuid(),
		Metadata: make(map[string]string),
	}
	if rec.ID == "" {
		rec.ID = strconv.FormatUint(id.GetNum(), 10)
	}

	for k, v := range payload {
		s := v.GetStringValue()
		if s == "" {
			continue
		}
		if k == "text" {
			rec.Text = s
			continue
		}
		rec.Metadata[k] = s
	}
	return rec
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

var _ vector.Index = (*Index)(nil)
