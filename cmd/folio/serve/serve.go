// Package servecmder provides the serve command for running the folio API server.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quillworksco/folio/api"
	"github.com/quillworksco/folio/pkg/config"
	"github.com/quillworksco/folio/pkg/dotdir"
	embeddingutils "github.com/quillworksco/folio/pkg/embeddings/utils"
	"github.com/quillworksco/folio/pkg/eventstream"
	"github.com/quillworksco/folio/pkg/eventstream/kafka"
	"github.com/quillworksco/folio/pkg/eventstream/nop"
	llmutils "github.com/quillworksco/folio/pkg/llm/utils"
	"github.com/quillworksco/folio/pkg/logger"
	"github.com/quillworksco/folio/pkg/rag"
	"github.com/quillworksco/folio/pkg/store"
	storeutils "github.com/quillworksco/folio/pkg/store/utils"
	"github.com/quillworksco/folio/pkg/vector"
	vectorutils "github.com/quillworksco/folio/pkg/vector/utils"
)

type ServeCommander struct {
	listen    string
	configDir string
	debug     bool
	logger    *zap.Logger
}

const serveLongDesc string = `Run the folio API server.

The server exposes notebook management, ingestion, similarity search, and
question answering over HTTP. Storage, vector store, embedding, and LLM
providers come from config.toml; use folio config to change them.

Examples:
  folio serve
  folio serve --listen :9090
  folio serve --config-dir /etc/folio`

const serveShortDesc string = "Run the folio API server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			return cmder.run(cmd.Flags().Changed("listen"))
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address for the API server to listen on")

	return cmd
}

func (c *ServeCommander) run(listenChanged bool) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if listenChanged {
		cfg.API.Listen = c.listen
	}

	ctx := context.Background()

	driver, err := c.createDriver(ctx, cfg)
	if err != nil {
		return err
	}
	defer driver.Close()

	index, err := c.createIndex(cfg)
	if err != nil {
		return err
	}
	defer index.Close()

	generator, err := llmutils.NewGenerator(&llmutils.NewGeneratorOpts{
		ProviderType: cfg.LLM.Provider,
		TargetURL:    cfg.LLM.Target,
		Model:        cfg.LLM.Model,
		APIKey:       cfg.LLM.APIKey,
	})
	if err != nil {
		return fmt.Errorf("creating llm generator: %w", err)
	}
	defer generator.Close()

	publisher, err := c.createPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	ingestor := rag.NewIngestor(rag.IngestorConfig{
		BatchSize: cfg.Ingest.BatchSize,
	}, driver, index, publisher, c.logger)
	searcher := rag.NewSearcher(driver, index, c.logger)
	answerer := rag.NewAnswerer(searcher, generator, c.logger)

	apiServer := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
	}, driver, ingestor, searcher, answerer, c.logger)

	c.logger.Info("starting folio",
		zap.String("listen", cfg.API.Listen),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("vector_store", cfg.VectorStore.Provider),
		zap.String("embedding", cfg.Embedding.Provider),
		zap.String("llm", cfg.LLM.Provider),
	)

	// Channel to capture errors from goroutines
	errChan := make(chan error, 1)

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return apiServer.Shutdown()
	}
}

func (c *ServeCommander) createDriver(ctx context.Context, cfg *config.Config) (store.Driver, error) {
	sqlitePath := cfg.Storage.SQLitePath
	if cfg.Storage.Driver == "sqlite" && sqlitePath == "" {
		path, err := c.dotdirPath("folio.db")
		if err != nil {
			return nil, err
		}
		sqlitePath = path
	}

	driver, err := storeutils.NewDriver(ctx, &storeutils.NewDriverOpts{
		DriverType:  cfg.Storage.Driver,
		SQLitePath:  sqlitePath,
		PostgresURL: cfg.Storage.PostgresURL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating store driver: %w", err)
	}

	c.logger.Info("using notebook storage",
		zap.String("driver", cfg.Storage.Driver),
		zap.String("sqlite_path", sqlitePath),
	)
	return driver, nil
}

func (c *ServeCommander) createIndex(cfg *config.Config) (vector.Index, error) {
	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		APIKey:       cfg.Embedding.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	target := cfg.VectorStore.Target
	if cfg.VectorStore.Provider == "sqlitevec" && target == "" {
		path, err := c.dotdirPath("vectors.db")
		if err != nil {
			return nil, err
		}
		target = path
	}

	index, err := vectorutils.NewIndex(&vectorutils.NewIndexOpts{
		ProviderType: cfg.VectorStore.Provider,
		TargetURL:    target,
		Dimensions:   cfg.Embedding.Dimensions,
		Embedder:     embedder,
		Logger:       c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating vector index: %w", err)
	}
	return index, nil
}

func (c *ServeCommander) createPublisher(cfg *config.Config) (eventstream.Publisher, error) {
	if !cfg.Events.Enabled {
		return nop.NewPublisher(), nil
	}

	publisher, err := kafka.NewPublisher(kafka.Config{
		Brokers: cfg.Events.Brokers,
		Topic:   cfg.Events.Topic,
	}, c.logger)
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}
	return publisher, nil
}

// dotdirPath resolves a file name inside the active .folio/ directory.
func (c *ServeCommander) dotdirPath(name string) (string, error) {
	dir, err := dotdir.NewManager().Target(c.configDir)
	if err != nil {
		return "", fmt.Errorf("resolving folio directory: %w", err)
	}
	return filepath.Join(dir, name), nil
}
