package llm

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// NewProvider creates a new LLM provider based on configuration.
// An empty provider name means the LLM is disabled and returns nil.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		return nil, nil

	default:
		return nil, goerr.New("unknown LLM provider (supported: openai, anthropic, ollama)",
			goerr.V("provider", config.Provider))
	}
}

// NewEmbedder returns the provider's embedder when an embedding model is
// configured and supported, otherwise a local HashEmbedder of dims dimensions
func NewEmbedder(p Provider, config Config, dims int) Embedder {
	if config.EmbeddingModel != "" {
		if e, ok := p.(Embedder); ok {
			return e
		}
	}
	return NewHashEmbedder(dims)
}
