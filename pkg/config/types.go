package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent folio configuration stored as config.toml
// in the .folio/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	LLM         LLMConfig         `toml:"llm"`
	Ingest      IngestConfig      `toml:"ingest"`
	Events      EventsConfig      `toml:"events"`
}

// StorageConfig holds notebook store settings.
type StorageConfig struct {
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresURL string `toml:"postgres_url,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to the running
// API server (e.g. folio ingest, folio search, folio ask).
// Values are full URLs (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// LLMConfig holds generation provider settings.
type LLMConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Model    string `toml:"model,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`
}

// IngestConfig holds chunking settings.
type IngestConfig struct {
	ChunkSize int `toml:"chunk_size,omitempty"`
	Overlap   int `toml:"overlap,omitempty"`
	BatchSize int `toml:"batch_size,omitempty"`
}

// EventsConfig holds event stream settings. Eventing is off unless brokers
// are configured.
type EventsConfig struct {
	Enabled bool     `toml:"enabled,omitempty"`
	Brokers []string `toml:"brokers,omitempty"`
	Topic   string   `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error { c.Storage.Driver = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_url": {
		get: func(c *Config) string { return c.Storage.PostgresURL },
		set: func(c *Config, v string) error { c.Storage.PostgresURL = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"vector_store.provider": {
		get: func(c *Config) string { return c.VectorStore.Provider },
		set: func(c *Config, v string) error { c.VectorStore.Provider = v; return nil },
	},
	"vector_store.target": {
		get: func(c *Config) string { return c.VectorStore.Target },
		set: func(c *Config, v string) error { c.VectorStore.Target = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.api_key": {
		get: func(c *Config) string { return c.Embedding.APIKey },
		set: func(c *Config, v string) error { c.Embedding.APIKey = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"llm.provider": {
		get: func(c *Config) string { return c.LLM.Provider },
		set: func(c *Config, v string) error { c.LLM.Provider = v; return nil },
	},
	"llm.target": {
		get: func(c *Config) string { return c.LLM.Target },
		set: func(c *Config, v string) error { c.LLM.Target = v; return nil },
	},
	"llm.model": {
		get: func(c *Config) string { return c.LLM.Model },
		set: func(c *Config, v string) error { c.LLM.Model = v; return nil },
	},
	"llm.api_key": {
		get: func(c *Config) string { return c.LLM.APIKey },
		set: func(c *Config, v string) error { c.LLM.APIKey = v; return nil },
	},
	"ingest.chunk_size": {
		get: func(c *Config) string { return strconv.Itoa(c.Ingest.ChunkSize) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for ingest.chunk_size: %w", err)
			}
			c.Ingest.ChunkSize = n
			return nil
		},
	},
	"ingest.overlap": {
		get: func(c *Config) string { return strconv.Itoa(c.Ingest.Overlap) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for ingest.overlap: %w", err)
			}
			c.Ingest.Overlap = n
			return nil
		},
	},
	"ingest.batch_size": {
		get: func(c *Config) string { return strconv.Itoa(c.Ingest.BatchSize) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for ingest.batch_size: %w", err)
			}
			c.Ingest.BatchSize = n
			return nil
		},
	},
	"events.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Events.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for events.enabled: %w", err)
			}
			c.Events.Enabled = b
			return nil
		},
	},
	"events.brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.Brokers, ",") },
		set: func(c *Config, v string) error {
			var brokers []string
			for _, b := range strings.Split(v, ",") {
				if b = strings.TrimSpace(b); b != "" {
					brokers = append(brokers, b)
				}
			}
			c.Events.Brokers = brokers
			return nil
		},
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}
