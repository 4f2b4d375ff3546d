package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// recordSleeps replaces the backoff sleep for the duration of the test and
// returns the requested delays
func recordSleeps(t *testing.T) func() []time.Duration {
	t.Helper()
	var (
		mu     sync.Mutex
		delays []time.Duration
	)
	orig := fetchSleepFunc
	fetchSleepFunc = func(d time.Duration) {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
	}
	t.Cleanup(func() { fetchSleepFunc = orig })
	return func() []time.Duration {
		mu.Lock()
		defer mu.Unlock()
		return append([]time.Duration(nil), delays...)
	}
}

// statusSequence serves the given statuses in order, then 200 with body
func statusSequence(body string, statuses ...int) (*httptest.Server, *atomic.Int32) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(hits.Add(1))
		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	return srv, &hits
}

func TestFetchWithRetry(t *testing.T) {
	tests := []struct {
		name     string
		statuses []int
		attempts int
		wantHits int32
		wantCode int // 0 means success
		wantWait []time.Duration
	}{
		{"first try", nil, 3, 1, 0, nil},
		{"503 twice then ok", []int{503, 503}, 3, 3, 0, []time.Duration{500 * time.Millisecond, time.Second}},
		{"429 then ok", []int{429}, 3, 2, 0, []time.Duration{500 * time.Millisecond}},
		{"404 is permanent", []int{404}, 3, 1, 404, nil},
		{"403 is permanent", []int{403}, 3, 1, 403, nil},
		{"exhausted", []int{500, 502, 503, 504}, 3, 3, 503, []time.Duration{500 * time.Millisecond, time.Second}},
		{"single attempt", []int{503}, 1, 1, 503, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sleeps := recordSleeps(t)
			srv, hits := statusSequence("<p>claim evidence</p>", tt.statuses...)
			defer srv.Close()

			f := NewFetcher(5*time.Second, "verity-test", 1<<20, false, "", "", "").WithMaxAttempts(tt.attempts)
			result, err := f.FetchWithRetry(context.Background(), srv.URL)

			if got := hits.Load(); got != tt.wantHits {
				t.Errorf("hits = %d, want %d", got, tt.wantHits)
			}
			if got := sleeps(); len(got) != len(tt.wantWait) {
				t.Errorf("sleeps = %v, want %v", got, tt.wantWait)
			} else {
				for i := range got {
					if got[i] != tt.wantWait[i] {
						t.Errorf("sleep[%d] = %v, want %v", i, got[i], tt.wantWait[i])
					}
				}
			}

			if tt.wantCode == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if result.HTML != "<p>claim evidence</p>" || result.StatusCode != http.StatusOK {
					t.Errorf("result = %+v", result)
				}
				if !strings.HasPrefix(result.ContentType, "text/html") {
					t.Errorf("content type = %q", result.ContentType)
				}
				return
			}

			var se *statusError
			if !errors.As(err, &se) {
				t.Fatalf("expected statusError, got %v", err)
			}
			if se.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", se.Code, tt.wantCode)
			}
		})
	}
}

func TestFetch_HeadersAndBodyLimit(t *testing.T) {
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, "verity-test/1.0", 10, false, "", "", "")
	result, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if ua, _ := gotUA.Load().(string); ua != "verity-test/1.0" {
		t.Errorf("user agent = %q", ua)
	}
	if len(result.HTML) != 10 {
		t.Errorf("body length = %d, want 10", len(result.HTML))
	}
}

func TestFetch_RedirectCap(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/final":
			_, _ = w.Write([]byte("landed"))
		case "/r1":
			http.Redirect(w, r, srv.URL+"/final", http.StatusFound)
		default:
			http.Redirect(w, r, srv.URL+r.URL.Path+"x", http.StatusFound)
		}
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, "verity-test", 1<<20, false, "", "", "")

	result, err := f.Fetch(context.Background(), srv.URL+"/r1")
	if err != nil {
		t.Fatal(err)
	}
	if result.FinalURL != srv.URL+"/final" {
		t.Errorf("final url = %q", result.FinalURL)
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/loop"); err == nil {
		t.Error("expected redirect loop to fail")
	}
}

func TestFetchWithRetry_CancelledDuringBackoff(t *testing.T) {
	srv, hits := statusSequence("ok", 503, 503, 503)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	orig := fetchSleepFunc
	fetchSleepFunc = func(time.Duration) { cancel() }
	t.Cleanup(func() { fetchSleepFunc = orig })

	f := NewFetcher(5*time.Second, "verity-test", 1<<20, false, "", "", "")
	_, err := f.FetchWithRetry(ctx, srv.URL)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsRetryableFetchError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"500", &statusError{Code: 500}, true},
		{"429", &statusError{Code: 429}, true},
		{"wrapped 502", goerr.Wrap(&statusError{Code: 502}, "fetch source"), true},
		{"404", &statusError{Code: 404}, false},
		{"401", &statusError{Code: 401}, false},
		{"timeout", goerr.Wrap(timeoutErr{}, "fetch"), true},
		{"refused", errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), true},
		{"reset", errors.New("read: connection reset by peer"), true},
		{"bad url", errors.New("create request: invalid URL"), false},
		{"short body", errors.New("read body: unexpected EOF"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableFetchError(tt.err); got != tt.retryable {
				t.Errorf("isRetryableFetchError(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}
