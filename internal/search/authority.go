package search

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/ppiankov/verity/internal/logging"
	"github.com/ppiankov/verity/internal/model"
)

// AuthorityClassifier classifies sources into authority tiers
type AuthorityClassifier struct {
	domainMap    map[string]model.AuthorityTier
	primary      []string
	secondary    []string
	pathPatterns []compiledPattern
}

type compiledPattern struct {
	pattern *regexp.Regexp
	tier    model.AuthorityTier
}

// NewAuthorityClassifier creates a classifier. A nil config uses the
// defaults from model.DefaultConfig. Patterns that fail to compile are
// skipped with a warning.
func NewAuthorityClassifier(config *model.AuthorityConfig) *AuthorityClassifier {
	if config == nil {
		defaults := model.DefaultConfig()
		config = &defaults.Authority
	}

	c := &AuthorityClassifier{
		domainMap: make(map[string]model.AuthorityTier, len(config.DomainMap)),
		primary:   normalizeDomains(config.PrimaryDomains),
		secondary: normalizeDomains(config.SecondaryDomains),
	}
	for host, tier := range config.DomainMap {
		c.domainMap[strings.ToLower(host)] = model.ParseAuthorityTier(tier)
	}
	for _, p := range config.PathPatterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			logging.Default().Warn("skipping invalid authority path pattern", "pattern", p.Pattern, "error", err)
			continue
		}
		c.pathPatterns = append(c.pathPatterns, compiledPattern{pattern: re, tier: model.ParseAuthorityTier(p.Tier)})
	}
	return c
}

func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), ".")
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}

// Classify classifies a URL into an authority tier
func (a *AuthorityClassifier) Classify(rawURL string) model.AuthorityTier {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return model.TierTertiary
	}
	host := strings.ToLower(parsed.Hostname())

	// Explicit mappings win
	if tier, ok := a.domainMap[host]; ok {
		return tier
	}

	if matchesDomain(host, a.primary) {
		return model.TierPrimary
	}
	if matchesDomain(host, a.secondary) {
		return model.TierSecondary
	}

	for _, cp := range a.pathPatterns {
		if cp.pattern.MatchString(parsed.Path) {
			return cp.tier
		}
	}

	// Government and academic TLDs
	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".ac.uk") {
		return model.TierPrimary
	}

	return model.TierTertiary
}

// matchesDomain reports whether host is one of domains or a subdomain of one
func matchesDomain(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// classifiedProvider tags every result of the wrapped provider with its tier
type classifiedProvider struct {
	Provider
	classifier *AuthorityClassifier
}

// WithAuthority wraps p so that returned sources carry an authority tier
func WithAuthority(p Provider, c *AuthorityClassifier) Provider {
	if c == nil {
		return p
	}
	return &classifiedProvider{Provider: p, classifier: c}
}

func (p *classifiedProvider) Search(ctx context.Context, claim string) ([]model.EvidenceSource, error) {
	sources, err := p.Provider.Search(ctx, claim)
	if err != nil {
		return nil, err
	}
	for i := range sources {
		sources[i].Authority = p.classifier.Classify(sources[i].URL)
	}
	return sources, nil
}
