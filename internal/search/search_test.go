package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/verity/internal/model"
)

func TestSerperProvider_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/search" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-API-KEY") != "serper-key" {
			t.Errorf("Expected X-API-KEY header, got %q", r.Header.Get("X-API-KEY"))
		}
		var req serperRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Q != "The Earth is flat" {
			t.Errorf("Unexpected query %q", req.Q)
		}

		_, _ = w.Write([]byte(`{"organic":[
			{"title":"A","link":"https://a.example","snippet":"sa"},
			{"title":"B","link":"https://b.example","snippet":"sb"},
			{"title":"A again","link":"https://a.example","snippet":"dup"},
			{"title":"C","link":"https://c.example"},
			{"title":"D","link":"https://d.example"}
		]}`))
	}))
	defer server.Close()

	provider, err := NewSerperProvider(SerperConfig{APIKey: "serper-key", BaseURL: server.URL, MaxResults: 3})
	if err != nil {
		t.Fatalf("NewSerperProvider failed: %v", err)
	}

	sources, err := provider.Search(context.Background(), "The Earth is flat")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	want := []string{"https://a.example", "https://b.example", "https://c.example"}
	if len(sources) != len(want) {
		t.Fatalf("Expected %d sources, got %d", len(want), len(sources))
	}
	for i, u := range want {
		if sources[i].URL != u {
			t.Errorf("Source %d: expected %s, got %s", i, u, sources[i].URL)
		}
	}
	if sources[0].Title != "A" || sources[0].Snippet != "sa" {
		t.Errorf("Unexpected first source: %+v", sources[0])
	}
}

func TestSerperProvider_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	provider, _ := NewSerperProvider(SerperConfig{APIKey: "k", BaseURL: server.URL})
	if _, err := provider.Search(context.Background(), "claim"); err == nil {
		t.Error("Expected error for 403")
	}
}

func TestNewSerperProvider_NoKey(t *testing.T) {
	_, err := NewSerperProvider(SerperConfig{})
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("Expected ErrNoAPIKey, got %v", err)
	}
}

func TestStaticProvider(t *testing.T) {
	content := `default:
  - title: Generic
    url: https://generic.example
claims:
  "The  Earth is FLAT":
    - title: NASA
      url: https://nasa.example
      snippet: Earth is an oblate spheroid
    - title: Wiki
      url: https://wiki.example
`
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	provider, err := NewProvider(model.SearchConfig{Provider: "static", StaticFile: path, MaxResults: 5}, model.HTTPConfig{})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	sources, err := provider.Search(context.Background(), "the earth is flat")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(sources) != 2 || sources[0].Title != "NASA" || sources[0].Snippet == "" {
		t.Errorf("Unexpected sources: %+v", sources)
	}

	sources, _ = provider.Search(context.Background(), "unknown claim")
	if len(sources) != 1 || sources[0].URL != "https://generic.example" {
		t.Errorf("Expected default sources, got %+v", sources)
	}
}

func TestNewProvider_Unknown(t *testing.T) {
	if _, err := NewProvider(model.SearchConfig{Provider: "altavista"}, model.HTTPConfig{}); err == nil {
		t.Error("Expected error for unknown provider")
	}
}
