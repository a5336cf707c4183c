// Package llmutils constructs generators from provider configuration.
package llmutils

import (
	"fmt"

	"github.com/quillworksco/folio/pkg/llm"
	"github.com/quillworksco/folio/pkg/llm/ollama"
	"github.com/quillworksco/folio/pkg/llm/openai"
)

type NewGeneratorOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
}

func NewGenerator(o *NewGeneratorOpts) (llm.Generator, error) {
	switch o.ProviderType {
	case "ollama":
		return ollama.NewGenerator(ollama.Config{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	case "openai":
		return openai.NewGenerator(openai.Config{
			BaseURL: o.TargetURL,
			Model:   o.Model,
			APIKey:  o.APIKey,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", o.ProviderType)
	}
}
