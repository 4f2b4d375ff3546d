package util

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNormalizeUserAgent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Verity/0.1 (+https://github.com/ppiankov/verity)", "Verity"},
		{"curl/8.0", "curl"},
		{"plain", "plain"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeUserAgent(tt.in); got != tt.want {
			t.Errorf("NormalizeUserAgent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRobotsChecker_CanFetch(t *testing.T) {
	var robotsHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsHits.Add(1)
			_, _ = fmt.Fprint(w, "User-agent: Verity\nDisallow: /private\nCrawl-delay: 2\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewRobotsChecker("Verity/0.1", 5*time.Second)
	ctx := context.Background()

	allowed, delay, err := checker.CanFetch(ctx, server.URL+"/public/page")
	if err != nil {
		t.Fatalf("CanFetch failed: %v", err)
	}
	if !allowed {
		t.Error("expected /public/page to be allowed")
	}
	if delay != 2*time.Second {
		t.Errorf("expected crawl delay 2s, got %v", delay)
	}

	allowed, _, err = checker.CanFetch(ctx, server.URL+"/private/doc")
	if err != nil {
		t.Fatalf("CanFetch failed: %v", err)
	}
	if allowed {
		t.Error("expected /private/doc to be disallowed")
	}

	if robotsHits.Load() != 1 {
		t.Errorf("expected robots.txt to be fetched once, got %d", robotsHits.Load())
	}
}

func TestRobotsChecker_MissingRobotsAllows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	checker := NewRobotsChecker("Verity/0.1", 5*time.Second)
	allowed, _, err := checker.CanFetch(context.Background(), server.URL+"/anything")
	if err != nil {
		t.Fatalf("CanFetch failed: %v", err)
	}
	if !allowed {
		t.Error("expected fetch to be allowed without robots.txt")
	}
}

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.local:3128", "", "internal.example")

	req, _ := http.NewRequest(http.MethodGet, "https://example.com/page", nil)
	got, err := proxy(req)
	if err != nil {
		t.Fatalf("proxy func failed: %v", err)
	}
	if got == nil || got.Host != "proxy.local:3128" {
		t.Errorf("expected proxy.local:3128, got %v", got)
	}

	req, _ = http.NewRequest(http.MethodGet, "https://internal.example/page", nil)
	got, err = proxy(req)
	if err != nil {
		t.Fatalf("proxy func failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected no proxy for NO_PROXY host, got %v", got)
	}
}
