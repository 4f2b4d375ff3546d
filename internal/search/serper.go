package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/model"
	"github.com/ppiankov/verity/internal/util"
)

// SerperConfig configures the serper.dev Google search API
type SerperConfig struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	Timeout    time.Duration

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// SerperProvider searches Google through serper.dev
type SerperProvider struct {
	cfg        SerperConfig
	httpClient *http.Client
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
}

type serperResponse struct {
	Organic []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Position int    `json:"position"`
	} `json:"organic"`
}

// NewSerperProvider creates a serper.dev provider
func NewSerperProvider(cfg SerperConfig) (*SerperProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://google.serper.dev"
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}

	return &SerperProvider{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   defaultTimeout(cfg.Timeout),
			Transport: util.NewTransport(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
		},
	}, nil
}

// Name returns the provider name
func (p *SerperProvider) Name() string {
	return "serper"
}

// Search returns the top organic results for claim
func (p *SerperProvider) Search(ctx context.Context, claim string) ([]model.EvidenceSource, error) {
	body, err := json.Marshal(serperRequest{Q: claim, Num: p.cfg.MaxResults})
	if err != nil {
		return nil, goerr.Wrap(err, "marshal search request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "create search request")
	}
	req.Header.Set("X-API-KEY", p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "search request", goerr.V("claim", claim))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, goerr.New("search API error",
			goerr.V("status", resp.StatusCode), goerr.V("body", string(snippet)))
	}

	var parsed serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, goerr.Wrap(err, "decode search response")
	}

	sources := make([]model.EvidenceSource, 0, len(parsed.Organic))
	seen := make(map[string]bool)
	for _, r := range parsed.Organic {
		if r.Link == "" || seen[r.Link] {
			continue
		}
		seen[r.Link] = true
		sources = append(sources, model.EvidenceSource{
			Title:   r.Title,
			URL:     r.Link,
			Snippet: r.Snippet,
		})
	}

	return limitSources(sources, p.cfg.MaxResults), nil
}
