package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/quillworksco/folio/pkg/notebook"
	"github.com/quillworksco/folio/pkg/rag"
	"github.com/quillworksco/folio/pkg/store"
)

// CreateNotebookRequest is the body for POST /v1/notebooks.
type CreateNotebookRequest struct {
	Name string `json:"name"`
}

// AddSourceRequest is the body for POST /v1/notebooks/:id/sources.
type AddSourceRequest struct {
	Title         string `json:"title"`
	ExtractedText string `json:"extracted_text"`
}

// IngestRequest is the body for POST /v1/notebooks/:id/ingest.
type IngestRequest struct {
	ChunkSize int  `json:"chunk_size,omitempty"`
	Overlap   int  `json:"overlap,omitempty"`
	Force     bool `json:"force,omitempty"`
}

// AskRequest is the body for POST /v1/notebooks/:id/ask.
type AskRequest struct {
	Question    string  `json:"question"`
	Limit       int     `json:"limit,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// SearchResponse wraps ranked search results.
type SearchResponse struct {
	Query   string                 `json:"query"`
	Results []rag.SimilarityResult `json:"results"`
}

// CountResponse reports a notebook's chunk count.
type CountResponse struct {
	NotebookID string `json:"notebook_id"`
	Chunks     int    `json:"chunks"`
}

// fail maps domain errors onto HTTP statuses.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, rag.ErrNotebookNotFound) || store.IsNotFound(err):
		status = fiber.StatusNotFound
	case errors.Is(err, rag.ErrInvalidConfiguration):
		status = fiber.StatusBadRequest
	case errors.Is(err, rag.ErrIngestionInProgress):
		status = fiber.StatusConflict
	case errors.Is(err, rag.ErrBackendUnavailable):
		status = fiber.StatusServiceUnavailable
	case errors.Is(err, rag.ErrGenerationFailed):
		status = fiber.StatusBadGateway
	}

	if status == fiber.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleCreateNotebook creates a notebook from a name.
func (s *Server) handleCreateNotebook(c *fiber.Ctx) error {
	var req CreateNotebookRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "name is required"})
	}

	nb := notebook.New(req.Name)
	if err := s.store.CreateNotebook(c.Context(), nb); err != nil {
		return s.fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(nb)
}

// handleListNotebooks returns all notebooks.
func (s *Server) handleListNotebooks(c *fiber.Ctx) error {
	notebooks, err := s.store.ListNotebooks(c.Context())
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(map[string]any{
		"count":     len(notebooks),
		"notebooks": notebooks,
	})
}

// handleGetNotebook returns a single notebook by ID.
func (s *Server) handleGetNotebook(c *fiber.Ctx) error {
	nb, err := s.store.GetNotebook(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(nb)
}

// handleDeleteNotebook removes a notebook, its sources, and its vectors.
func (s *Server) handleDeleteNotebook(c *fiber.Ctx) error {
	ctx := c.Context()
	id := c.Params("id")

	// Purge the collection first; store deletion would orphan it.
	if err := s.ingestor.PurgeNotebook(ctx, id); err != nil {
		return s.fail(c, err)
	}
	if err := s.store.DeleteNotebook(ctx, id); err != nil {
		return s.fail(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// handleAddSource attaches extracted text to a notebook.
func (s *Server) handleAddSource(c *fiber.Ctx) error {
	var req AddSourceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.ExtractedText == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "extracted_text is required"})
	}

	src := notebook.NewSource(c.Params("id"), req.Title, req.ExtractedText)
	if err := s.store.AddSource(c.Context(), src); err != nil {
		return s.fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(src)
}

// handleListSources returns a notebook's non-deleted sources.
func (s *Server) handleListSources(c *fiber.Ctx) error {
	sources, err := s.store.ListSources(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(map[string]any{
		"count":   len(sources),
		"sources": sources,
	})
}

// handleRemoveSource soft-deletes a source and purges its vectors. The
// source must belong to the notebook named in the path.
func (s *Server) handleRemoveSource(c *fiber.Ctx) error {
	ctx := c.Context()
	notebookID := c.Params("id")
	sourceID := c.Params("sourceID")

	src, err := s.store.GetSource(ctx, sourceID)
	if err != nil {
		return s.fail(c, err)
	}
	if src.NotebookID != notebookID {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error: "source " + sourceID + " does not belong to notebook " + notebookID,
		})
	}

	if err := s.store.RemoveSource(ctx, sourceID); err != nil {
		return s.fail(c, err)
	}
	if err := s.ingestor.PurgeSource(ctx, notebookID, sourceID); err != nil {
		return s.fail(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// handleIngest runs an ingestion pass over the notebook.
func (s *Server) handleIngest(c *fiber.Ctx) error {
	var req IngestRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
		}
	}

	result, err := s.ingestor.IngestNotebook(c.Context(), c.Params("id"), rag.IngestOptions{
		ChunkSize: req.ChunkSize,
		Overlap:   req.Overlap,
		Force:     req.Force,
	})
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(result)
}

// handleSearch handles GET /v1/notebooks/:id/search requests.
// Query parameters:
//   - query (required): the search query text
//   - limit (optional, default 5): number of results to return
func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "query parameter is required"})
	}

	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "limit must be a positive integer"})
		}
		limit = parsed
	}

	results, err := s.searcher.Search(c.Context(), c.Params("id"), query, limit)
	if err != nil {
		return s.fail(c, err)
	}
	if results == nil {
		results = []rag.SimilarityResult{}
	}

	return c.JSON(SearchResponse{Query: query, Results: results})
}

// handleAsk answers a question against the notebook.
func (s *Server) handleAsk(c *fiber.Ctx) error {
	var req AskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "question is required"})
	}

	answer, err := s.answerer.Ask(c.Context(), c.Params("id"), req.Question, rag.AskOptions{
		Limit:       req.Limit,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(answer)
}

// handleVectorCount reports how many chunks the notebook's collection holds.
func (s *Server) handleVectorCount(c *fiber.Ctx) error {
	id := c.Params("id")
	count, err := s.ingestor.Count(c.Context(), id)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(CountResponse{NotebookID: id, Chunks: count})
}

// handlePurgeVectors drops the notebook's collection, keeping its sources.
func (s *Server) handlePurgeVectors(c *fiber.Ctx) error {
	if err := s.ingestor.PurgeNotebook(c.Context(), c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
