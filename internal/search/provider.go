// Package search finds candidate evidence sources for a claim.
package search

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/model"
)

// ErrNoAPIKey is returned when a hosted search provider has no key configured
var ErrNoAPIKey = goerr.New("search API key is required")

// Provider returns candidate sources for a claim, in rank order
type Provider interface {
	Name() string
	Search(ctx context.Context, claim string) ([]model.EvidenceSource, error)
}

// NewProvider builds the provider named in cfg
func NewProvider(cfg model.SearchConfig, httpCfg model.HTTPConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "serper", "":
		return NewSerperProvider(SerperConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			MaxResults: cfg.MaxResults,
			Timeout:    httpCfg.Timeout,
			HTTPProxy:  httpCfg.HTTPProxy,
			HTTPSProxy: httpCfg.HTTPSProxy,
			NoProxy:    httpCfg.NoProxy,
		})
	case "static":
		return LoadStaticProvider(cfg.StaticFile, cfg.MaxResults)
	default:
		return nil, goerr.New("unknown search provider (supported: serper, static)",
			goerr.V("provider", cfg.Provider))
	}
}

func limitSources(sources []model.EvidenceSource, max int) []model.EvidenceSource {
	if max > 0 && len(sources) > max {
		return sources[:max]
	}
	return sources
}

func defaultTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}
