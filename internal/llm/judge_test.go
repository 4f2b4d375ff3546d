package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/verity/internal/model"
)

func TestExtractConfidence(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"76.5%", 77, true},
		{"0.25", 25, true},
		{"150", 100, true},
		{"-5", 0, true},
		{"85", 85, true},
		{"85/100", 85, true},
		{"1.0", 100, true},
		{"1", 1, true},
		{"0", 0, true},
		{"00076.5%", 77, true},
		{"[90]", 90, true},
		{"about 62.4 percent", 62, true},
		{"-12.5%", 0, true},
		{"high", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ExtractConfidence(tt.in)
			if ok != tt.ok {
				t.Fatalf("ExtractConfidence(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("ExtractConfidence(%q) = %d, want %d", tt.in, got, tt.want)
			}
			if got < 0 || got > 100 {
				t.Errorf("ExtractConfidence(%q) = %d out of range", tt.in, got)
			}
		})
	}
}

func TestParseJudgment_Success(t *testing.T) {
	raw := `---
Verdict: Refutes
Confidence: 92
Reason: The article documents satellite imagery
showing the curvature of the Earth.
---`

	res := ParseJudgment(raw)
	if !res.Ok {
		t.Fatalf("Expected success, got failure %s (%s)", res.Failure, res.Detail)
	}
	if res.Verdict != model.VerdictRefutes {
		t.Errorf("Expected Refutes, got %s", res.Verdict)
	}
	if res.Confidence != 92 {
		t.Errorf("Expected 92, got %d", res.Confidence)
	}
	if res.Reason != "The article documents satellite imagery showing the curvature of the Earth." {
		t.Errorf("Unexpected reason: %q", res.Reason)
	}
}

func TestParseJudgment_MarkdownAndCase(t *testing.T) {
	raw := "**Verdict:** supports\n**confidence**: 0.8\n- Reason: Matches the claim."

	res := ParseJudgment(raw)
	if !res.Ok {
		t.Fatalf("Expected success, got failure %s", res.Failure)
	}
	if res.Verdict != model.VerdictSupports || res.Confidence != 80 {
		t.Errorf("Unexpected result: %+v", res)
	}
}

func TestParseJudgment_Failures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ParseFailure
	}{
		{"empty", "  \n ", FailureEmptyOutput},
		{"no verdict", "Confidence: 50\nReason: x", FailureMissingVerdict},
		{"unknown verdict", "Verdict: Inconclusive\nConfidence: 50\nReason: x", FailureUnknownVerdict},
		{"no confidence", "Verdict: Supports\nReason: x", FailureMissingConfidence},
		{"bad confidence", "Verdict: Supports\nConfidence: high\nReason: x", FailureInvalidConfidence},
		{"no reason", "Verdict: Supports\nConfidence: 50", FailureMissingReason},
		{"free text", "I think the claim is probably false.", FailureMissingVerdict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseJudgment(tt.raw)
			if res.Ok {
				t.Fatalf("Expected failure, got %+v", res)
			}
			if res.Failure != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, res.Failure)
			}
			if res.Raw != tt.raw {
				t.Error("Expected raw text to be preserved")
			}
		})
	}
}

func TestParseResult_Judgment_DegradesToNeutral(t *testing.T) {
	src := model.EvidenceSource{Title: "NASA", URL: "https://nasa.gov/earth"}
	res := ParseJudgment("Verdict: Maybe\nConfidence: 70\nReason: unsure")

	j := res.Judgment(src, "summary")
	if j.Verdict != model.VerdictNeutral {
		t.Errorf("Expected Neutral, got %s", j.Verdict)
	}
	if j.Confidence != 0 {
		t.Errorf("Expected confidence 0, got %d", j.Confidence)
	}
	if !strings.HasPrefix(j.Reason, "Failed to parse judgment: unknown_verdict") {
		t.Errorf("Unexpected reason: %q", j.Reason)
	}
	if !j.ParseFailed || j.SourceURL != src.URL || j.SourceTitle != src.Title || j.Summary != "summary" {
		t.Errorf("Unexpected judgment: %+v", j)
	}
}

func TestJudge_Judge(t *testing.T) {
	provider := &MockProvider{
		name: "mock",
		respond: func(req CompletionRequest) (string, error) {
			if !strings.Contains(req.Prompt, "The Earth is flat") || !strings.Contains(req.Prompt, "round planet") {
				t.Errorf("Expected claim and summary in prompt: %q", req.Prompt)
			}
			return "Verdict: Refutes\nConfidence: 95%\nReason: Photos show a round planet.", nil
		},
	}
	judge := NewJudge(provider)

	res, err := judge.Judge(context.Background(), "The Earth is flat", "Photos from orbit show a round planet.")
	if err != nil {
		t.Fatalf("Judge failed: %v", err)
	}
	if !res.Ok || res.Verdict != model.VerdictRefutes || res.Confidence != 95 {
		t.Errorf("Unexpected result: %+v", res)
	}
}

func TestJudge_ProviderError(t *testing.T) {
	provider := &MockProvider{
		name:    "mock",
		respond: func(CompletionRequest) (string, error) { return "", errors.New("boom") },
	}

	if _, err := NewJudge(provider).Judge(context.Background(), "c", "s"); err == nil {
		t.Error("Expected provider error to propagate")
	}
}
