package extract

import (
	"strings"
	"testing"
)

func TestExtract_StripsScriptsAndBlankLines(t *testing.T) {
	htmlContent := `<html><head><title> Moon facts </title><style>p{color:red}</style></head>
<body>
  <script>var x = 1;</script>
  <noscript>enable js</noscript>
  <h1>The Moon</h1>

  <p>The Moon is Earth's only natural satellite.</p>
  <p>   </p>
</body></html>`

	page, err := NewTextExtractor(0).Extract(htmlContent, "https://example.com/moon", "text/html")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if page.Title != "Moon facts" {
		t.Errorf("Expected title 'Moon facts', got %q", page.Title)
	}
	if page.Adapter != "generic" {
		t.Errorf("Expected generic adapter, got %s", page.Adapter)
	}

	for _, unwanted := range []string{"var x", "color:red", "enable js"} {
		if strings.Contains(page.Text, unwanted) {
			t.Errorf("Text should not contain %q: %q", unwanted, page.Text)
		}
	}

	for _, line := range strings.Split(page.Text, "\n") {
		if strings.TrimSpace(line) == "" {
			t.Errorf("Text contains a blank line: %q", page.Text)
		}
	}

	if !strings.Contains(page.Text, "The Moon\n") || !strings.Contains(page.Text, "only natural satellite") {
		t.Errorf("Unexpected text: %q", page.Text)
	}
}

func TestExtract_Truncates(t *testing.T) {
	body := "<p>" + strings.Repeat("é", 50) + "</p>"

	page, err := NewTextExtractor(10).Extract(body, "https://example.com", "text/html")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if page.Text != strings.Repeat("é", 10) {
		t.Errorf("Expected 10 runes, got %q", page.Text)
	}
}

func TestExtract_PlainText(t *testing.T) {
	page, err := NewTextExtractor(0).Extract("first\n\n  second  \n", "https://example.com/a.txt", "text/plain; charset=utf-8")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if page.Text != "first\nsecond" {
		t.Errorf("Unexpected text: %q", page.Text)
	}
}

func TestExtract_WikipediaDropsReferences(t *testing.T) {
	htmlContent := `<html><body>
<div id="mw-navigation">Main menu</div>
<div id="mw-content-text"><div class="mw-parser-output">
<p>Water boils at 100 degrees<sup class="reference">[1]</sup> at sea level.</p>
<span class="mw-editsection">edit</span>
<div class="navbox">Related topics</div>
</div></div></body></html>`

	page, err := NewTextExtractor(0).Extract(htmlContent, "https://en.wikipedia.org/wiki/Water", "text/html")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if page.Adapter != "wikipedia" {
		t.Fatalf("Expected wikipedia adapter, got %s", page.Adapter)
	}
	for _, unwanted := range []string{"Main menu", "[1]", "edit", "Related topics"} {
		if strings.Contains(page.Text, unwanted) {
			t.Errorf("Text should not contain %q: %q", unwanted, page.Text)
		}
	}
	if !strings.Contains(page.Text, "Water boils at 100 degrees") {
		t.Errorf("Missing article prose: %q", page.Text)
	}
}

func TestExtract_LegalUsesMain(t *testing.T) {
	htmlContent := `<html><body><nav>Home | About</nav><main><p>Section 1 applies.</p></main><footer>Contact</footer></body></html>`

	page, err := NewTextExtractor(0).Extract(htmlContent, "https://www.legislation.gov.uk/ukpga/2010/15", "text/html")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if page.Text != "Section 1 applies." {
		t.Errorf("Unexpected text: %q", page.Text)
	}
}

func TestIsSupportedContentType(t *testing.T) {
	tests := []struct {
		ct   string
		want bool
	}{
		{"", true},
		{"text/html; charset=utf-8", true},
		{"application/xhtml+xml", true},
		{"text/plain", true},
		{"application/pdf", false},
		{"image/png", false},
	}

	for _, tt := range tests {
		if got := IsSupportedContentType(tt.ct); got != tt.want {
			t.Errorf("IsSupportedContentType(%q) = %v, want %v", tt.ct, got, tt.want)
		}
	}
}
