package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/logging"
	"github.com/ppiankov/verity/internal/util"
	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider, Streamer and Embedder for OpenAI-compatible APIs
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, goerr.New("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Transport: util.NewTransport(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// IsAvailable checks if the provider is properly configured
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	if _, err := p.client.ListModels(ctx); err != nil {
		logging.From(ctx).Warn("OpenAI API check failed", "error", err)
		return false
	}
	return true
}

func (p *OpenAIProvider) model(req CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	if p.config.Model != "" {
		return p.config.Model
	}
	return openai.GPT4oMini
}

func (p *OpenAIProvider) timeout() time.Duration {
	if p.config.Timeout > 0 {
		return time.Duration(p.config.Timeout) * time.Second
	}
	return 30 * time.Second
}

func (p *OpenAIProvider) chatRequest(req CompletionRequest) openai.ChatCompletionRequest {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	return openai.ChatCompletionRequest{
		Model:       p.model(req),
		Messages:    messages,
		MaxTokens:   p.config.maxTokens(req),
		Temperature: p.config.temperature(req),
	}
}

// Complete runs a chat completion
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, p.chatRequest(req))
	if err != nil {
		return nil, goerr.Wrap(err, "OpenAI chat completion", goerr.V("model", p.model(req)))
	}

	if len(resp.Choices) == 0 {
		return nil, goerr.Wrap(ErrEmptyResponse, "no choices from OpenAI")
	}

	return &CompletionResponse{
		Text:       strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:      resp.Model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// CompleteStream runs a streaming chat completion
func (p *OpenAIProvider) CompleteStream(ctx context.Context, req CompletionRequest, onChunk func(string) error) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	chatReq := p.chatRequest(req)
	chatReq.Stream = true

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, goerr.Wrap(err, "OpenAI chat stream", goerr.V("model", chatReq.Model))
	}
	defer func() { _ = stream.Close() }()

	var sb strings.Builder
	modelName := chatReq.Model
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "OpenAI stream receive")
		}
		if chunk.Model != "" {
			modelName = chunk.Model
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if onChunk != nil {
			if err := onChunk(delta); err != nil {
				return nil, err
			}
		}
	}

	if sb.Len() == 0 {
		return nil, goerr.Wrap(ErrEmptyResponse, "empty OpenAI stream")
	}

	return &CompletionResponse{
		Text:  strings.TrimSpace(sb.String()),
		Model: modelName,
	}, nil
}

// Embed returns one vector per text using the configured embedding model
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddingModel := openai.EmbeddingModel(p.config.EmbeddingModel)
	if embeddingModel == "" {
		embeddingModel = openai.SmallEmbedding3
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: embeddingModel,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "OpenAI embeddings", goerr.V("model", embeddingModel))
	}
	if len(resp.Data) != len(texts) {
		return nil, goerr.New("embedding count mismatch",
			goerr.V("want", len(texts)), goerr.V("got", len(resp.Data)))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, goerr.New("embedding index out of range", goerr.V("index", d.Index))
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
