package chroma

// chromaCollection represents a Chroma collection response.
type chromaCollection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// chromaUpsertRequest is the request body for upserting records.
type chromaUpsertRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas,omitempty"`
}

// chromaQueryRequest is the request body for querying.
type chromaQueryRequest struct {
	QueryEmbeddings [][]float32 `json:"query_embeddings"`
	NResults        int         `json:"n_results"`
	Include         []string    `json:"include"`
}

// chromaQueryResponse is the response from a query.
type chromaQueryResponse struct {
	IDs       [][]string         `json:"ids"`
	Distances [][]float64        `json:"distances"`
	Documents [][]string         `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
}

// chromaGetRequest is the request body for getting records.
type chromaGetRequest struct {
	IDs     []string `json:"ids"`
	Include []string `json:"include"`
}

// chromaGetResponse is the response from getting records.
type chromaGetResponse struct {
	IDs       []string         `json:"ids"`
	Documents []string         `json:"documents"`
	Metadatas []map[string]any `json:"metadatas"`
}

// chromaDeleteRequest is the request body for deleting records, either by
// explicit ids or by a metadata filter.
type chromaDeleteRequest struct {
	IDs   []string       `json:"ids,omitempty"`
	Where map[string]any `json:"where,omitempty"`
}
