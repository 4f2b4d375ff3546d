package model

import "strings"

// EvidenceSource is a candidate document returned by the search provider for a claim
type EvidenceSource struct {
	Title     string        `json:"title" yaml:"title"`
	URL       string        `json:"url" yaml:"url"`
	Snippet   string        `json:"snippet,omitempty" yaml:"snippet,omitempty"`
	Authority AuthorityTier `json:"authority,omitempty" yaml:"authority,omitempty"`
}

// AuthorityTier is a coarse classification of how authoritative a source's
// host is. The empty tier means the source was not classified.
type AuthorityTier string

const (
	TierPrimary   AuthorityTier = "primary"   // Laws, statutes, papers, official bodies
	TierSecondary AuthorityTier = "secondary" // Encyclopedias, wire services, major publishers
	TierTertiary  AuthorityTier = "tertiary"  // Everything else
)

// ParseAuthorityTier accepts tier names and their numeric ranks ("1".."3").
// Unknown input is tertiary.
func ParseAuthorityTier(s string) AuthorityTier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "primary", "1":
		return TierPrimary
	case "secondary", "2":
		return TierSecondary
	default:
		return TierTertiary
	}
}

// SourceSummary is produced exactly once per reachable source by the summarize stage
type SourceSummary struct {
	SourceURL string `json:"source_url"`
	LongForm  string `json:"long_form"`
	ShortForm string `json:"short_form"`
	Failed    bool   `json:"failed,omitempty"` // Summarizer failed; LongForm holds the sentinel text
}
