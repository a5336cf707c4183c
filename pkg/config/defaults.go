package config

const (
	defaultStorageDriver = "sqlite"
	defaultAPIListen     = ":8081"

	defaultClientAPITarget = "http://localhost:8081"

	defaultVectorProvider = "sqlitevec"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultLLMProvider = "ollama"
	defaultLLMTarget   = "http://localhost:11434"
	defaultLLMModel    = "llama3.2"

	defaultChunkSize = 1000
	defaultOverlap   = 200
	defaultBatchSize = 100

	defaultEventsTopic = "folio.notebook.events"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		LLM: LLMConfig{
			Provider: defaultLLMProvider,
			Target:   defaultLLMTarget,
			Model:    defaultLLMModel,
		},
		Ingest: IngestConfig{
			ChunkSize: defaultChunkSize,
			Overlap:   defaultOverlap,
			BatchSize: defaultBatchSize,
		},
		Events: EventsConfig{
			Topic: defaultEventsTopic,
		},
	}
}
