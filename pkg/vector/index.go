// Package vector provides the interface and shared types for per-notebook
// vector index backends. Backends embed and store chunk records and answer
// ranked similarity queries; everything else about them is opaque to the
// rest of the system.
package vector

import "context"

// Metadata keys every chunk record carries. Adapters persist these alongside
// the vector so that hash checks and per-source deletes work on any backend.
const (
	MetaNotebookID  = "notebook_id"
	MetaSourceID    = "source_id"
	MetaChunkIndex  = "chunk_index"
	MetaContentHash = "content_hash"
)

// Record is one chunk stored in a collection. ID is deterministic per
// (source, chunk index), so upserting the same chunk twice overwrites it.
type Record struct {
	// ID is the unique identifier for the record within its collection.
	ID string

	// Text is the chunk text that gets embedded and stored.
	Text string

	// Metadata holds the string-encoded chunk attributes (see Meta* keys).
	Metadata map[string]string
}

// Match is a query result: a stored record plus its normalized similarity.
type Match struct {
	Record

	// Score is the similarity in [0,1]; higher means more relevant. How a
	// backend's native metric maps onto this range is an adapter decision
	// and is documented per adapter.
	Score float64
}

// Index handles storage and retrieval of embedded chunks, one collection
// per notebook.
type Index interface {
	// EnsureCollection creates the collection if it does not exist yet.
	// Calling it for an existing collection is a no-op.
	EnsureCollection(ctx context.Context, collection string) error

	// Upsert writes records into the collection, overwriting by ID.
	// Implementations receive pre-bounded batches from the caller.
	Upsert(ctx context.Context, collection string, records []Record) error

	// Get retrieves records by their IDs. Missing IDs are simply absent
	// from the result, not an error.
	Get(ctx context.Context, collection string, ids []string) ([]Record, error)

	// Query embeds queryText and returns up to limit matches ranked by
	// descending score. Querying a collection that does not exist returns
	// ErrCollectionNotFound.
	Query(ctx context.Context, collection string, queryText string, limit int) ([]Match, error)

	// DeleteBySource removes every record whose source_id metadata matches.
	DeleteBySource(ctx context.Context, collection, sourceID string) error

	// DeleteCollection removes the collection and everything in it.
	DeleteCollection(ctx context.Context, collection string) error

	// Count returns the number of records in the collection.
	Count(ctx context.Context, collection string) (int, error)

	// Close releases any resources held by the index.
	Close() error
}
