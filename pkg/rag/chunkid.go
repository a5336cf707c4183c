package rag

import (
	"strconv"

	"github.com/google/uuid"
)

// chunkNamespace scopes deterministic chunk IDs. Stable across releases:
// changing it would orphan every previously ingested chunk.
var chunkNamespace = uuid.MustParse("8a6e0804-2bd0-4672-b79d-d97027f9071a")

// ChunkID derives a deterministic UUID for a chunk from its source and
// position. Re-ingesting the same source yields the same IDs, which makes
// upserts idempotent.
func ChunkID(sourceID string, chunkIndex int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(sourceID+":"+strconv.Itoa(chunkIndex))).String()
}
