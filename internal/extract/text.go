// Package extract turns fetched pages into the plain text handed to the summarizer.
package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/extract/adapters"
	"golang.org/x/net/html"
)

// DefaultMaxChars caps extracted text so one page cannot blow the prompt budget
const DefaultMaxChars = 4000

// Page is the readable content of one document
type Page struct {
	Title   string
	Text    string
	Adapter string
}

// TextExtractor extracts visible text from HTML
type TextExtractor struct {
	maxChars int
	registry *adapters.Registry
}

// NewTextExtractor creates a text extractor that truncates to maxChars runes
func NewTextExtractor(maxChars int) *TextExtractor {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &TextExtractor{
		maxChars: maxChars,
		registry: adapters.NewRegistry(),
	}
}

// Extract returns the page title and its visible text, one non-empty line
// per text node, truncated to the configured limit.
func (e *TextExtractor) Extract(htmlContent, sourceURL, contentType string) (*Page, error) {
	if isPlainText(contentType) {
		return &Page{Text: Truncate(joinLines(strings.Split(htmlContent, "\n")), e.maxChars), Adapter: "plain"}, nil
	}

	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, goerr.Wrap(err, "parse html", goerr.V("url", sourceURL))
	}

	adapter := e.registry.FindAdapter(sourceURL, contentType)
	root := adapter.ContentRoot(doc)

	return &Page{
		Title:   findTitle(doc),
		Text:    Truncate(joinLines(visibleLines(root, adapter.Skip)), e.maxChars),
		Adapter: adapter.Name(),
	}, nil
}

// visibleLines collects text nodes, skipping scripts and styles
func visibleLines(n *html.Node, skip func(*html.Node) bool) []string {
	var lines []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "template":
				return
			}
			if skip(n) {
				return
			}
		}

		if n.Type == html.TextNode {
			lines = append(lines, n.Data)
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return lines
}

func findTitle(doc *html.Node) string {
	var title string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)
	return title
}

// joinLines trims every line, drops blanks and joins with newlines
func joinLines(raw []string) string {
	var buf strings.Builder
	for _, chunk := range raw {
		for _, line := range strings.Split(chunk, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(line)
		}
	}
	return buf.String()
}

// Truncate cuts s to at most maxChars runes
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i]
		}
		n++
	}
	return s
}

func isPlainText(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "text/plain")
}

// IsSupportedContentType reports whether a response body can be read as text
func IsSupportedContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	if ct == "" {
		return true
	}
	return strings.Contains(ct, "html") || strings.Contains(ct, "xml") || strings.HasPrefix(ct, "text/")
}
