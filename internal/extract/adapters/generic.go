package adapters

import "golang.org/x/net/html"

// GenericAdapter is the fallback adapter for unknown domains
type GenericAdapter struct {
	BaseAdapter
}

// NewGenericAdapter creates a new generic adapter
func NewGenericAdapter() *GenericAdapter {
	return &GenericAdapter{}
}

// Name returns the adapter name
func (a *GenericAdapter) Name() string {
	return "generic"
}

// CanHandle always returns true (fallback adapter)
func (a *GenericAdapter) CanHandle(url string, contentType string) bool {
	return true
}

// ContentRoot keeps the whole document
func (a *GenericAdapter) ContentRoot(doc *html.Node) *html.Node {
	return doc
}

// Skip drops nothing beyond the extractor's own script/style filtering
func (a *GenericAdapter) Skip(n *html.Node) bool {
	return false
}
