package search

import (
	"context"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/model"
	"gopkg.in/yaml.v3"
)

// StaticFile is the YAML layout read by the static provider:
//
//	default:
//	  - {title: ..., url: ..., snippet: ...}
//	claims:
//	  "the earth is flat":
//	    - {title: ..., url: ...}
type StaticFile struct {
	Default []model.EvidenceSource            `yaml:"default"`
	Claims  map[string][]model.EvidenceSource `yaml:"claims"`
}

// StaticProvider serves sources from a fixed list; useful offline and in demos
type StaticProvider struct {
	byClaim    map[string][]model.EvidenceSource
	fallback   []model.EvidenceSource
	maxResults int
}

// NewStaticProvider creates a provider from an in-memory source list
func NewStaticProvider(file StaticFile, maxResults int) *StaticProvider {
	p := &StaticProvider{
		byClaim:    make(map[string][]model.EvidenceSource, len(file.Claims)),
		fallback:   file.Default,
		maxResults: maxResults,
	}
	for claim, sources := range file.Claims {
		p.byClaim[normalizeClaim(claim)] = sources
	}
	return p
}

// LoadStaticProvider reads a StaticFile from path
func LoadStaticProvider(path string, maxResults int) (*StaticProvider, error) {
	if path == "" {
		return nil, goerr.New("static search provider needs search.static_file")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "read static sources", goerr.V("path", path))
	}

	var file StaticFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, goerr.Wrap(err, "parse static sources", goerr.V("path", path))
	}

	return NewStaticProvider(file, maxResults), nil
}

// Name returns the provider name
func (p *StaticProvider) Name() string {
	return "static"
}

// Search returns the sources listed for claim, or the default list
func (p *StaticProvider) Search(_ context.Context, claim string) ([]model.EvidenceSource, error) {
	sources, ok := p.byClaim[normalizeClaim(claim)]
	if !ok {
		sources = p.fallback
	}
	out := append([]model.EvidenceSource(nil), sources...)
	return limitSources(out, p.maxResults), nil
}

func normalizeClaim(claim string) string {
	return strings.Join(strings.Fields(strings.ToLower(claim)), " ")
}
