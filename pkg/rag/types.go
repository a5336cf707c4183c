// Package rag implements the retrieval pipeline over a notebook's sources:
// chunked ingestion into a vector collection, ranked similarity search, and
// grounded question answering with citations.
package rag

// IngestResult summarizes one ingestion pass over a notebook.
type IngestResult struct {
	NotebookID     string `json:"notebook_id"`
	ChunksIngested int    `json:"chunks_ingested"`
	SourcesSkipped int    `json:"sources_skipped"`
}

// SimilarityResult is one ranked chunk from a similarity search.
type SimilarityResult struct {
	ChunkID    string  `json:"chunk_id"`
	SourceID   string  `json:"source_id"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// Citation points an answer back at one supporting chunk.
type Citation struct {
	SourceID   string  `json:"source_id"`
	ChunkID    string  `json:"chunk_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet"`
}

// Answer is the outcome of asking a question against a notebook.
type Answer struct {
	Question   string     `json:"question"`
	Text       string     `json:"text"`
	Confidence float64    `json:"confidence"`
	Citations  []Citation `json:"citations,omitempty"`
}
