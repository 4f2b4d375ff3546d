package adapters

import (
	"strings"

	"golang.org/x/net/html"
)

// LegalAdapter narrows legal and government pages to their main body
type LegalAdapter struct {
	BaseAdapter
	legalDomains map[string]bool
}

// NewLegalAdapter creates a new legal document adapter
func NewLegalAdapter() *LegalAdapter {
	return &LegalAdapter{
		legalDomains: map[string]bool{
			"legislation.gov.uk": true,
			"law.cornell.edu":    true,
			"gov.uk":             true,
			"justice.gov":        true,
		},
	}
}

// Name returns the adapter name
func (a *LegalAdapter) Name() string {
	return "legal"
}

// CanHandle checks if this is a legal document URL
func (a *LegalAdapter) CanHandle(rawURL string, contentType string) bool {
	lowerURL := strings.ToLower(rawURL)

	for domain := range a.legalDomains {
		if strings.Contains(lowerURL, domain) {
			return true
		}
	}

	return strings.Contains(lowerURL, "/statute") ||
		strings.Contains(lowerURL, "/legal") ||
		strings.Contains(lowerURL, "/law/") ||
		strings.Contains(lowerURL, "/regulation")
}

// ContentRoot prefers <main>, then <article> or role=main
func (a *LegalAdapter) ContentRoot(doc *html.Node) *html.Node {
	if main := a.FindFirst(doc, func(n *html.Node) bool { return isElement(n, "main") }); main != nil {
		return main
	}

	if article := a.FindFirst(doc, func(n *html.Node) bool {
		return isElement(n, "article") || (n.Type == html.ElementNode && a.GetAttribute(n, "role") == "main")
	}); article != nil {
		return article
	}

	return doc
}

// Skip drops site navigation
func (a *LegalAdapter) Skip(n *html.Node) bool {
	return isElement(n, "nav", "header", "footer", "aside")
}
