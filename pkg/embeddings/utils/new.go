// Package embeddingutils constructs embedders from provider configuration.
package embeddingutils

import (
	"fmt"

	"github.com/quillworksco/folio/pkg/embeddings"
	"github.com/quillworksco/folio/pkg/embeddings/ollama"
	"github.com/quillworksco/folio/pkg/embeddings/openai"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
}

func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.ProviderType {
	case "ollama":
		return ollama.NewEmbedder(ollama.Config{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	case "openai":
		return openai.NewEmbedder(openai.Config{
			BaseURL: o.TargetURL,
			Model:   o.Model,
			APIKey:  o.APIKey,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
}
