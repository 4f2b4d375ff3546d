package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/logging"
	"github.com/ppiankov/verity/internal/util"
)

// OllamaProvider implements Provider, Streamer and Embedder for a local Ollama server
type OllamaProvider struct {
	baseURL    string
	httpClient *http.Client
	config     Config
}

// Ollama API structures
type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	System  string        `json:"system,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"` // Max tokens
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`

	// Token counts (only present when done=true)
	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
	EvalCount       int `json:"eval_count,omitempty"`
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second // local models are slow to load
	}

	return &OllamaProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: util.NewTransport(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		},
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable checks that the Ollama server answers
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		logging.From(ctx).Warn("Ollama availability check failed", "error", err)
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		logging.From(ctx).Warn("Ollama availability check failed", "base_url", p.baseURL, "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		logging.From(ctx).Warn("Ollama availability check failed", "base_url", p.baseURL, "status", resp.StatusCode)
		return false
	}
	return true
}

func (p *OllamaProvider) generateRequest(req CompletionRequest, stream bool) (ollamaRequest, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = p.config.Model
	}
	if modelName == "" {
		return ollamaRequest{}, goerr.New("ollama model must be specified (e.g., mistral, llama3.1:8b)")
	}

	return ollamaRequest{
		Model:  modelName,
		Prompt: req.Prompt,
		Stream: stream,
		System: req.System,
		Options: ollamaOptions{
			Temperature: p.config.temperature(req),
			NumPredict:  p.config.maxTokens(req),
		},
	}, nil
}

// Complete runs a prompt through /api/generate
func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	apiReq, err := p.generateRequest(req, false)
	if err != nil {
		return nil, err
	}

	httpResp, err := p.post(ctx, "/api/generate", apiReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	var resp ollamaResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, goerr.Wrap(err, "decode ollama response")
	}

	text := strings.TrimSpace(resp.Response)
	if text == "" {
		return nil, goerr.Wrap(ErrEmptyResponse, "empty ollama response", goerr.V("model", apiReq.Model))
	}

	return &CompletionResponse{
		Text:       text,
		Model:      resp.Model,
		TokensUsed: resp.PromptEvalCount + resp.EvalCount,
	}, nil
}

// CompleteStream reads the newline-delimited JSON stream of /api/generate
func (p *OllamaProvider) CompleteStream(ctx context.Context, req CompletionRequest, onChunk func(string) error) (*CompletionResponse, error) {
	apiReq, err := p.generateRequest(req, true)
	if err != nil {
		return nil, err
	}

	httpResp, err := p.post(ctx, "/api/generate", apiReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	var sb strings.Builder
	result := &CompletionResponse{Model: apiReq.Model}

	scanner := bufio.NewScanner(httpResp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk ollamaResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return nil, goerr.Wrap(err, "decode ollama stream chunk")
		}
		if chunk.Error != "" {
			return nil, goerr.New("ollama stream error", goerr.V("error", chunk.Error))
		}

		if chunk.Response != "" {
			sb.WriteString(chunk.Response)
			if onChunk != nil {
				if err := onChunk(chunk.Response); err != nil {
					return nil, err
				}
			}
		}

		if chunk.Done {
			if chunk.Model != "" {
				result.Model = chunk.Model
			}
			result.TokensUsed = chunk.PromptEvalCount + chunk.EvalCount
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, goerr.Wrap(err, "read ollama stream")
	}

	result.Text = strings.TrimSpace(sb.String())
	if result.Text == "" {
		return nil, goerr.Wrap(ErrEmptyResponse, "empty ollama stream", goerr.V("model", apiReq.Model))
	}
	return result, nil
}

// Embed calls /api/embed with the configured embedding model
func (p *OllamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddingModel := p.config.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = "nomic-embed-text"
	}

	httpResp, err := p.post(ctx, "/api/embed", ollamaEmbedRequest{Model: embeddingModel, Input: texts})
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	var resp ollamaEmbedResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, goerr.Wrap(err, "decode ollama embeddings")
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, goerr.New("embedding count mismatch",
			goerr.V("want", len(texts)), goerr.V("got", len(resp.Embeddings)))
	}
	return resp.Embeddings, nil
}

// post sends a JSON body and returns the response when the status is 200
func (p *OllamaProvider) post(ctx context.Context, path string, body any) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, goerr.Wrap(err, "marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, goerr.Wrap(err, "create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, goerr.Wrap(err, "execute request", goerr.V("path", path))
	}

	if httpResp.StatusCode != http.StatusOK {
		defer func() { _ = httpResp.Body.Close() }()
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64*1024))

		var apiErr ollamaError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return nil, goerr.New("ollama API error",
				goerr.V("status", httpResp.StatusCode), goerr.V("error", apiErr.Error))
		}
		return nil, goerr.New("ollama API error",
			goerr.V("status", httpResp.StatusCode), goerr.V("body", string(respBody)))
	}

	return httpResp, nil
}
