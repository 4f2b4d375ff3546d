// Package llm talks to the reasoning and embedding collaborators:
// OpenAI-compatible APIs, Ollama and Anthropic.
package llm

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/model"
)

var (
	// ErrEmbeddingUnsupported is returned by providers without an embeddings API
	ErrEmbeddingUnsupported = goerr.New("embeddings not supported by provider")

	// ErrEmptyResponse is returned when the model produced no text
	ErrEmptyResponse = goerr.New("empty response from model")
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete runs a single prompt to completion
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Streamer is implemented by providers that can deliver output incrementally
type Streamer interface {
	// CompleteStream calls onChunk for every text fragment as it arrives.
	// Returning an error from onChunk aborts the stream.
	CompleteStream(ctx context.Context, req CompletionRequest, onChunk func(string) error) (*CompletionResponse, error)
}

// Embedder turns texts into vectors for similarity search
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// CompletionRequest is the input of one model call
type CompletionRequest struct {
	System      string
	Prompt      string
	Model       string // Overrides the configured model when set
	MaxTokens   int
	Temperature float32
}

// CompletionResponse is the output of one model call
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// EmbeddingModel enables the provider's embeddings API; empty uses the local hash embedder
	EmbeddingModel string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, OpenAI-compatible gateways)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	Temperature float32

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "ollama",
		Model:       "mistral",
		Timeout:     60,
		MaxTokens:   1000,
		Temperature: 0.3,
	}
}

// ConfigFromModel converts the application config into an llm.Config
func ConfigFromModel(cfg model.LLMConfig, httpCfg model.HTTPConfig) Config {
	return Config{
		Provider:       cfg.Provider,
		Model:          cfg.Model,
		EmbeddingModel: cfg.EmbeddingModel,
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Timeout:        cfg.Timeout,
		MaxTokens:      cfg.MaxTokens,
		Temperature:    cfg.Temperature,
		HTTPProxy:      httpCfg.HTTPProxy,
		HTTPSProxy:     httpCfg.HTTPSProxy,
		NoProxy:        httpCfg.NoProxy,
	}
}

// Stream runs req on p, streaming through onChunk when p supports it.
// Non-streaming providers deliver the whole answer as a single chunk.
func Stream(ctx context.Context, p Provider, req CompletionRequest, onChunk func(string) error) (*CompletionResponse, error) {
	if s, ok := p.(Streamer); ok {
		return s.CompleteStream(ctx, req, onChunk)
	}

	resp, err := p.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if onChunk != nil {
		if err := onChunk(resp.Text); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (c Config) maxTokens(req CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 1000
}

func (c Config) temperature(req CompletionRequest) float32 {
	if req.Temperature > 0 {
		return req.Temperature
	}
	return c.Temperature
}
