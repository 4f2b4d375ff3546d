package pipeline_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/ppiankov/verity/internal/llm"
	"github.com/ppiankov/verity/internal/memory"
	"github.com/ppiankov/verity/internal/model"
	"github.com/ppiankov/verity/internal/pipeline"
)

// scriptedProvider answers summary prompts with fixed text and judge
// prompts with a Supports verdict
type scriptedProvider struct{}

func (scriptedProvider) Name() string                     { return "scripted" }
func (scriptedProvider) IsAvailable(context.Context) bool { return true }

func (scriptedProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	switch {
	case strings.HasPrefix(req.Prompt, "You will receive a claim"):
		return &llm.CompletionResponse{Text: "Verdict: Supports\nConfidence: 70%\nReason: The page says so."}, nil
	case strings.Contains(req.Prompt, "briefly"):
		return &llm.CompletionResponse{Text: "The sky is blue."}, nil
	default:
		return &llm.CompletionResponse{Text: "The article explains that the sky is blue."}, nil
	}
}

func TestNewPipeline_RequiresProvider(t *testing.T) {
	cfg := model.DefaultConfig()
	_, err := pipeline.NewPipeline(&cfg, nil, nil)
	gt.Error(t, err)
}

func TestNewPipeline_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/article":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(`<html><head><script>var x;</script></head><body><p>The sky is blue.</p></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	staticFile := filepath.Join(t.TempDir(), "sources.yaml")
	sources := "default:\n" +
		"  - {title: Article, url: \"" + srv.URL + "/article\"}\n" +
		"  - {title: Missing, url: \"" + srv.URL + "/missing\"}\n"
	gt.NoError(t, os.WriteFile(staticFile, []byte(sources), 0o600)).Required()

	cfg := model.DefaultConfig()
	cfg.Search.Provider = "static"
	cfg.Search.StaticFile = staticFile
	cfg.HTTP.RespectRobots = false
	cfg.Cache.Enabled = false
	cfg.RateLimiting.RequestsPerSecond = 0

	ctx := context.Background()
	mem := memory.NewStore(mustOpenVolatile(t), llm.NewHashEmbedder(64), 3)

	orch, err := pipeline.NewPipeline(&cfg, scriptedProvider{}, mem)
	gt.NoError(t, err).Required()

	report, err := orch.Check(ctx, "The sky is blue")
	gt.NoError(t, err).Required()

	gt.B(t, report.Complete).True()
	gt.A(t, report.Sources).Length(2)
	for _, s := range report.Sources {
		gt.V(t, s.Authority).Equal(model.TierTertiary)
	}
	gt.A(t, report.Unreachable).Length(1)
	gt.V(t, report.Unreachable[0]).Equal(srv.URL + "/missing")
	gt.A(t, report.Judgments).Length(1)
	gt.V(t, report.Judgments[0].Verdict).Equal(model.VerdictSupports)
	gt.V(t, report.Judgments[0].Confidence).Equal(70)
	gt.V(t, report.Aggregate.Majority).Equal(model.VerdictSupports)
	gt.V(t, report.Aggregate.Total).Equal(1)

	matches := mem.Query(ctx, "The sky is blue", 3)
	gt.A(t, matches).Length(1)
	gt.V(t, matches[0].Record.URL).Equal(srv.URL + "/article")
	gt.V(t, matches[0].Record.Verdict).Equal(model.VerdictSupports)
}

func mustOpenVolatile(t *testing.T) memory.Repository {
	t.Helper()
	repo, err := memory.OpenLocal(context.Background(), "")
	gt.NoError(t, err).Required()
	return repo
}
