// Package sqlitevec provides an embedded vector.Index backed by SQLite with
// the sqlite-vec extension. It exists for single-machine deployments and
// tests where running a remote vector backend is overkill. sqlite-vec
// reports L2 distances; scores are normalized to [0,1] via 1/(1+distance).
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/quillworksco/folio/pkg/embeddings"
	"github.com/quillworksco/folio/pkg/vector"
)

// Index implements vector.Index using SQLite with sqlite-vec. Collections
// share one pair of tables, partitioned by collection name.
type Index struct {
	db       *sql.DB
	embedder embeddings.Embedder
	logger   *zap.Logger
}

// Config holds configuration for the sqlite-vec index.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the embedding vector size. Required.
	Dimensions uint
}

// NewIndex creates a new sqlite-vec backed vector index.
func NewIndex(c Config, embedder embeddings.Embedder, logger *zap.Logger) (*Index, error) {
	// enable connections to have the sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_collections (
			name TEXT PRIMARY KEY
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating collections table: %w", err)
	}

	// vec0 virtual tables use integer rowids, so chunk records keep a
	// mapping from string ids to rowids alongside their text and metadata.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_chunks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			chunk_id TEXT NOT NULL,
			source_id TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}',
			UNIQUE (collection, chunk_id)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating chunks table: %w", err)
	}

	// Partitioning by collection keeps KNN queries scoped to one notebook.
	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(collection text partition key, embedding float[%d])`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec vector index initialized",
		zap.String("db_path", c.DBPath),
		zap.Uint("dimensions", c.Dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &Index{
		db:       db,
		embedder: embedder,
		logger:   logger,
	}, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// EnsureCollection creates the collection if it does not exist yet.
func (x *Index) EnsureCollection(ctx context.Context, collection string) error {
	_, err := x.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO vec_collections(name) VALUES (?)`, collection,
	)
	if err != nil {
		return fmt.Errorf("ensuring collection %q: %w", collection, err)
	}
	return nil
}

func (x *Index) collectionExists(ctx context.Context, collection string) (bool, error) {
	var name string
	err := x.db.QueryRowContext(ctx,
		`SELECT name FROM vec_collections WHERE name = ?`, collection,
	).Scan(&name)
	switch err {
	case nil:
		return true, nil
	case sql.ErrNoRows:
		return false, nil
	default:
		return false, fmt.Errorf("checking collection %q: %w", collection, err)
	}
}

// Upsert writes records into the collection, overwriting by ID.
func (x *Index) Upsert(ctx context.Context, collection string, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	if err := x.EnsureCollection(ctx, collection); err != nil {
		return err
	}

	// Embed outside the transaction: embedding is a network call and must
	// not hold the write lock.
	blobs := make([][]byte, len(records))
	for i, rec := range records {
		embedding, err := x.embedder.Embed(ctx, rec.Text)
		if err != nil {
			return fmt.Errorf("embedding record %s: %w", rec.ID, err)
		}
		blobs[i] = serializeFloat32(embedding)
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for i, rec := range records {
		metaJSON, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for record %s: %w", rec.ID, err)
		}

		var existingRowID int64
		err = tx.QueryRowContext(ctx,
			`SELECT rowid FROM vec_chunks WHERE collection = ? AND chunk_id = ?`,
			collection, rec.ID,
		).Scan(&existingRowID)

		switch err {
		case nil:
			if _, err := tx.ExecContext(ctx,
				`UPDATE vec_chunks SET source_id = ?, text = ?, metadata = ? WHERE rowid = ?`,
				rec.Metadata[vector.MetaSourceID], rec.Text, string(metaJSON), existingRowID,
			); err != nil {
				return fmt.Errorf("updating record %s: %w", rec.ID, err)
			}

			// vec0 does not support UPDATE; replace via DELETE + INSERT.
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM vec_embeddings WHERE rowid = ?`, existingRowID,
			); err != nil {
				return fmt.Errorf("deleting old embedding for record %s: %w", rec.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_embeddings(rowid, collection, embedding) VALUES (?, ?, ?)`,
				existingRowID, collection, blobs[i],
			); err != nil {
				return fmt.Errorf("re-inserting embedding for record %s: %w", rec.ID, err)
			}
		case sql.ErrNoRows:
			result, err := tx.ExecContext(ctx,
				`INSERT INTO vec_chunks(collection, chunk_id, source_id, text, metadata) VALUES (?, ?, ?, ?, ?)`,
				collection, rec.ID, rec.Metadata[vector.MetaSourceID], rec.Text, string(metaJSON),
			)
			if err != nil {
				return fmt.Errorf("inserting record %s: %w", rec.ID, err)
			}

			rowID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for record %s: %w", rec.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_embeddings(rowid, collection, embedding) VALUES (?, ?, ?)`,
				rowID, collection, blobs[i],
			); err != nil {
				return fmt.Errorf("inserting embedding for record %s: %w", rec.ID, err)
			}
		default:
			return fmt.Errorf("checking for existing record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	x.logger.Debug("upserted records into sqlite-vec",
		zap.String("collection", collection),
		zap.Int("count", len(records)),
	)

	return nil
}

// Get retrieves records by their IDs.
func (x *Index) Get(ctx context.Context, collection string, ids []string) ([]vector.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	exists, err := x.collectionExists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, collection)
	}

	placeholders := make([]string, len(ids))
	args := []any{collection}
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(
		`SELECT chunk_id, text, metadata FROM vec_chunks WHERE collection = ? AND chunk_id IN (%s)`,
		strings.Join(placeholders, ","),
	)

	rows, err := x.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []vector.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}

	return records, nil
}

// Query embeds queryText and returns up to limit matches ranked by score.
func (x *Index) Query(ctx context.Context, collection, queryText string, limit int) ([]vector.Match, error) {
	if limit <= 0 {
		limit = 10
	}

	exists, err := x.collectionExists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, collection)
	}

	embedding, err := x.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// KNN query via vec0 MATCH scoped to the collection partition, then
	// JOIN back for the chunk id, text, and metadata.
	rows, err := x.db.QueryContext(ctx, `
		SELECT
			c.chunk_id,
			c.text,
			c.metadata,
			ve.distance
		FROM vec_embeddings ve
		INNER JOIN vec_chunks c ON c.rowid = ve.rowid
		WHERE ve.collection = ?
			AND ve.embedding MATCH ?
			AND ve.k = ?
		ORDER BY ve.distance
	`, collection, serializeFloat32(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var matches []vector.Match
	for rows.Next() {
		var chunkID, text, metaJSON string
		var distance float64
		if err := rows.Scan(&chunkID, &text, &metaJSON, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}

		meta := make(map[string]string)
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata for %s: %w", chunkID, err)
		}

		matches = append(matches, vector.Match{
			Record: vector.Record{
				ID:       chunkID,
				Text:     text,
				Metadata: meta,
			},
			// Lower distance = higher similarity.
			Score: 1.0 / (1.0 + distance),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	x.logger.Debug("queried sqlite-vec",
		zap.String("collection", collection),
		zap.Int("results", len(matches)),
	)

	return matches, nil
}

// DeleteBySource removes every record belonging to the given source.
func (x *Index) DeleteBySource(ctx context.Context, collection, sourceID string) error {
	return x.deleteWhere(ctx,
		`SELECT rowid FROM vec_chunks WHERE collection = ? AND source_id = ?`,
		collection, sourceID,
	)
}

// DeleteCollection removes the collection and everything in it.
func (x *Index) DeleteCollection(ctx context.Context, collection string) error {
	if err := x.deleteWhere(ctx,
		`SELECT rowid FROM vec_chunks WHERE collection = ?`,
		collection,
	); err != nil {
		return err
	}

	if _, err := x.db.ExecContext(ctx,
		`DELETE FROM vec_collections WHERE name = ?`, collection,
	); err != nil {
		return fmt.Errorf("deleting collection %q: %w", collection, err)
	}
	return nil
}

// deleteWhere removes the chunks selected by rowQuery together with their
// vec0 embeddings.
func (x *Index) deleteWhere(ctx context.Context, rowQuery string, args ...any) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, rowQuery, args...)
	if err != nil {
		return fmt.Errorf("querying rowids for deletion: %w", err)
	}

	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			rows.Close()
			return fmt.Errorf("scanning rowid: %w", err)
		}
		rowIDs = append(rowIDs, rowID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rowids: %w", err)
	}

	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM vec_embeddings WHERE rowid = ?`, rowID,
		); err != nil {
			return fmt.Errorf("deleting embedding rowid %d: %w", rowID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM vec_chunks WHERE rowid = ?`, rowID,
		); err != nil {
			return fmt.Errorf("deleting chunk rowid %d: %w", rowID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	x.logger.Debug("deleted records from sqlite-vec",
		zap.Int("count", len(rowIDs)),
	)

	return nil
}

// Count returns the number of records in the collection.
func (x *Index) Count(ctx context.Context, collection string) (int, error) {
	exists, err := x.collectionExists(ctx, collection)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, collection)
	}

	var count int
	err = x.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vec_chunks WHERE collection = ?`, collection,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return count, nil
}

// Close releases resources held by the index.
func (x *Index) Close() error {
	return x.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (vector.Record, error) {
	var chunkID, text, metaJSON string
	if err := row.Scan(&chunkID, &text, &metaJSON); err != nil {
		return vector.Record{}, fmt.Errorf("scanning record: %w", err)
	}

	meta := make(map[string]string)
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return vector.Record{}, fmt.Errorf("unmarshaling metadata for %s: %w", chunkID, err)
	}

	return vector.Record{ID: chunkID, Text: text, Metadata: meta}, nil
}

var _ vector.Index = (*Index)(nil)
