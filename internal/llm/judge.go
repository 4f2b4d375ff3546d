package llm

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/model"
)

const judgeSystem = "You are a reliable fact-checking assistant. You judge claims only against the evidence you are given."

const judgeTemplate = `You will receive a claim to evaluate and a summary of a source article.

Decide whether the article summary:
1. Supports the claim
2. Refutes the claim
3. Is Neutral or inconclusive

Explain your reasoning and give a confidence score from 0 to 100 (without the %% symbol).

Respond exactly in this format:
Verdict: [Supports / Refutes / Neutral]
Confidence: [0-100]
Reason: [short explanation]

Claim: %q
Article Summary: %q
`

// ParseFailure is the reason code of a judgment that could not be parsed
type ParseFailure string

const (
	FailureEmptyOutput       ParseFailure = "empty_output"
	FailureMissingVerdict    ParseFailure = "missing_verdict"
	FailureUnknownVerdict    ParseFailure = "unknown_verdict"
	FailureMissingConfidence ParseFailure = "missing_confidence"
	FailureInvalidConfidence ParseFailure = "invalid_confidence"
	FailureMissingReason     ParseFailure = "missing_reason"
	FailureJudgeError        ParseFailure = "judge_error" // the model call itself failed
)

// ParseResult is the outcome of parsing a judge response.
// When Ok is false only Raw, Failure and Detail are meaningful.
type ParseResult struct {
	Ok         bool
	Verdict    model.Verdict
	Confidence int
	Reason     string

	Raw     string
	Failure ParseFailure
	Detail  string
}

func parseFailed(raw string, code ParseFailure, detail string) ParseResult {
	return ParseResult{Raw: raw, Failure: code, Detail: detail}
}

// Judgment converts the result into a Judgment for source.
// Failed parses degrade to Neutral with zero confidence.
func (r ParseResult) Judgment(source model.EvidenceSource, summary string) model.Judgment {
	j := model.Judgment{
		SourceURL:   source.URL,
		SourceTitle: source.Title,
		Summary:     summary,
	}
	if !r.Ok {
		j.Verdict = model.VerdictNeutral
		j.Confidence = 0
		j.Reason = "Failed to parse judgment: " + string(r.Failure)
		if r.Detail != "" {
			j.Reason += " (" + r.Detail + ")"
		}
		j.ParseFailed = true
		return j
	}
	j.Verdict = r.Verdict
	j.Confidence = r.Confidence
	j.Reason = r.Reason
	return j
}

var judgeKeyPattern = regexp.MustCompile(`(?i)^[\s\-\*#>]*\**\s*(verdict|confidence|reason)\s*\**\s*:\s*\**\s*(.*)$`)

// ParseJudgment parses "Verdict: / Confidence: / Reason:" output.
// Keys are case-insensitive and may carry markdown emphasis; the reason may
// span several lines. All three keys are required.
func ParseJudgment(raw string) ParseResult {
	if strings.TrimSpace(raw) == "" {
		return parseFailed(raw, FailureEmptyOutput, "")
	}

	fields := make(map[string]string)
	current := ""
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.Trim(trimmed, "-") == "" {
			continue
		}
		if m := judgeKeyPattern.FindStringSubmatch(trimmed); m != nil {
			key := strings.ToLower(m[1])
			if _, seen := fields[key]; seen {
				current = ""
				continue
			}
			current = key
			fields[key] = strings.TrimSpace(strings.TrimRight(m[2], "*"))
			continue
		}
		if current == "reason" {
			fields["reason"] += " " + trimmed
		}
	}

	verdictText, ok := fields["verdict"]
	if !ok || verdictText == "" {
		return parseFailed(raw, FailureMissingVerdict, "")
	}
	verdict, ok := model.ParseVerdict(verdictText)
	if !ok {
		return parseFailed(raw, FailureUnknownVerdict, verdictText)
	}

	confidenceText, ok := fields["confidence"]
	if !ok || confidenceText == "" {
		return parseFailed(raw, FailureMissingConfidence, "")
	}
	confidence, ok := ExtractConfidence(confidenceText)
	if !ok {
		return parseFailed(raw, FailureInvalidConfidence, confidenceText)
	}

	reason := strings.TrimSpace(fields["reason"])
	if reason == "" {
		return parseFailed(raw, FailureMissingReason, "")
	}

	return ParseResult{
		Ok:         true,
		Verdict:    verdict,
		Confidence: confidence,
		Reason:     reason,
		Raw:        raw,
	}
}

var numberPattern = regexp.MustCompile(`[-+]?(?:\d+(?:\.\d*)?|\.\d+)`)

// ExtractConfidence converts a model-written confidence into an integer in [0,100].
//
// A trailing % marks a percentage. Without it, a decimal value in [0,1] such
// as "0.25" is read as a fraction; anything else is already a percentage.
// Values are rounded half away from zero, then clamped.
func ExtractConfidence(s string) (int, bool) {
	s = strings.TrimSpace(s)
	match := numberPattern.FindString(s)
	if match == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}

	percent := strings.Contains(s, "%")
	if !percent && strings.Contains(match, ".") && v >= 0 && v <= 1 {
		v *= 100
	}

	v = math.Round(v)
	switch {
	case v < 0:
		return 0, true
	case v > 100:
		return 100, true
	}
	return int(v), true
}

// Judge asks the model whether a summary supports a claim
type Judge struct {
	provider Provider
}

// NewJudge creates a judge on top of provider
func NewJudge(provider Provider) *Judge {
	return &Judge{provider: provider}
}

// Judge evaluates summary against claim. A model error is returned as an
// error; a malformed answer is returned as a failed ParseResult.
func (j *Judge) Judge(ctx context.Context, claim, summary string) (ParseResult, error) {
	if j.provider == nil {
		return ParseResult{}, goerr.New("judge disabled: no LLM provider configured")
	}

	resp, err := j.provider.Complete(ctx, CompletionRequest{
		System:      judgeSystem,
		Prompt:      fmt.Sprintf(judgeTemplate, claim, summary),
		Temperature: 0.1,
	})
	if err != nil {
		return ParseResult{}, goerr.Wrap(err, "judge completion")
	}

	return ParseJudgment(resp.Text), nil
}
