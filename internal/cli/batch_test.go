package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/ppiankov/verity/internal/llm"
	"github.com/ppiankov/verity/internal/model"
	"github.com/ppiankov/verity/internal/pipeline"
)

func TestReportFilename(t *testing.T) {
	tests := []struct {
		claim  string
		prefix string
	}{
		{"The Earth is flat", "the-earth-is-flat-"},
		{"  Coffee / tea: which?  ", "coffee-tea-which-"},
		{"???", "claim-"},
	}
	for _, tt := range tests {
		got := reportFilename(tt.claim)
		if !strings.HasPrefix(got, tt.prefix) || !strings.HasSuffix(got, ".json") {
			t.Errorf("reportFilename(%q) = %q, want prefix %q", tt.claim, got, tt.prefix)
		}
		if strings.ContainsAny(got, `/\:?`) {
			t.Errorf("reportFilename(%q) = %q contains unsafe characters", tt.claim, got)
		}
	}

	if reportFilename("The Earth is flat") == reportFilename("The Earth is flat!") {
		t.Error("distinct claims should not share a filename")
	}
	long := reportFilename(strings.Repeat("word ", 100))
	if len(long) > 80 {
		t.Errorf("filename too long: %d", len(long))
	}
}

type oneSource struct{}

func (oneSource) Search(context.Context, string) ([]model.EvidenceSource, error) {
	return []model.EvidenceSource{{Title: "A", URL: "https://a.example/"}}, nil
}

type fixedText struct{}

func (fixedText) FetchText(context.Context, string) string { return "page" }

type passSummarizer struct{}

func (passSummarizer) Summarize(_ context.Context, text string) (string, string, error) {
	return text, text, nil
}

type supportJudge struct{}

func (supportJudge) Judge(context.Context, string, string) (llm.ParseResult, error) {
	return llm.ParseJudgment("Verdict: Supports\nConfidence: 80%\nReason: ok"), nil
}

func TestStreamCheck(t *testing.T) {
	orch := pipeline.NewOrchestrator(oneSource{}, fixedText{}, passSummarizer{}, supportJudge{})

	var buf bytes.Buffer
	if err := streamCheck(context.Background(), orch, "Water is wet", &buf); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{
		"Searching web for: Water is wet",
		"Found source: https://a.example/",
		"Final Verdict for claim: Supports",
		"1 articles support the claim",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
