package adapters

import (
	"strings"

	"golang.org/x/net/html"
)

// WikipediaAdapter keeps article prose and drops citation markers and navboxes
type WikipediaAdapter struct {
	BaseAdapter
	skipClasses []string
}

// NewWikipediaAdapter creates a new Wikipedia adapter
func NewWikipediaAdapter() *WikipediaAdapter {
	return &WikipediaAdapter{
		skipClasses: []string{
			"reference", "mw-editsection", "navbox", "reflist",
			"mw-references-wrap", "hatnote", "noprint",
		},
	}
}

// Name returns the adapter name
func (a *WikipediaAdapter) Name() string {
	return "wikipedia"
}

// CanHandle matches any *.wikipedia.org page
func (a *WikipediaAdapter) CanHandle(rawURL string, contentType string) bool {
	return strings.Contains(strings.ToLower(rawURL), "wikipedia.org/")
}

// ContentRoot returns the article body when present
func (a *WikipediaAdapter) ContentRoot(doc *html.Node) *html.Node {
	content := a.FindFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode &&
			(a.HasClass(n, "mw-parser-output") || a.GetAttribute(n, "id") == "mw-content-text")
	})
	if content == nil {
		return doc
	}
	return content
}

// Skip drops footnote markers, edit links and navigation boxes
func (a *WikipediaAdapter) Skip(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, class := range a.skipClasses {
		if a.HasClass(n, class) {
			return true
		}
	}
	return false
}
