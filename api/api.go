package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/quillworksco/folio/pkg/rag"
	"github.com/quillworksco/folio/pkg/store"
)

// Server is the API server for managing and querying notebooks.
type Server struct {
	config   Config
	store    store.Driver
	ingestor *rag.Ingestor
	searcher *rag.Searcher
	answerer *rag.Answerer
	logger   *zap.Logger
	app      *fiber.App
}

// NewServer creates a new API server. The store is injected to allow sharing
// with other components.
func NewServer(config Config, st store.Driver, ingestor *rag.Ingestor, searcher *rag.Searcher, answerer *rag.Answerer, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:   config,
		store:    st,
		ingestor: ingestor,
		searcher: searcher,
		answerer: answerer,
		logger:   logger,
		app:      app,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Post("/notebooks", s.handleCreateNotebook)
	v1.Get("/notebooks", s.handleListNotebooks)
	v1.Get("/notebooks/:id", s.handleGetNotebook)
	v1.Delete("/notebooks/:id", s.handleDeleteNotebook)

	v1.Post("/notebooks/:id/sources", s.handleAddSource)
	v1.Get("/notebooks/:id/sources", s.handleListSources)
	v1.Delete("/notebooks/:id/sources/:sourceID", s.handleRemoveSource)

	v1.Post("/notebooks/:id/ingest", s.handleIngest)
	v1.Get("/notebooks/:id/search", s.handleSearch)
	v1.Post("/notebooks/:id/ask", s.handleAsk)

	v1.Get("/notebooks/:id/vectors/count", s.handleVectorCount)
	v1.Delete("/notebooks/:id/vectors", s.handlePurgeVectors)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
