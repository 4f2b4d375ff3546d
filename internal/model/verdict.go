package model

import "strings"

// Verdict is the per-source stance of a summary towards a claim
type Verdict string

const (
	VerdictSupports Verdict = "Supports"
	VerdictRefutes  Verdict = "Refutes"
	VerdictNeutral  Verdict = "Neutral"
)

// Verdicts lists every verdict in tie-break order
var Verdicts = []Verdict{VerdictSupports, VerdictRefutes, VerdictNeutral}

// ParseVerdict maps the first word of model output onto a Verdict.
// Matching is case-insensitive and accepts singular forms ("support", "refute").
func ParseVerdict(s string) (Verdict, bool) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return VerdictNeutral, false
	}
	switch strings.Trim(fields[0], "[]().,;*:\"'") {
	case "supports", "support", "supported":
		return VerdictSupports, true
	case "refutes", "refute", "refuted":
		return VerdictRefutes, true
	case "neutral":
		return VerdictNeutral, true
	}
	return VerdictNeutral, false
}

// Memorable reports whether judgments with this verdict are stored in memory.
// Neutral judgments carry no stance and are never persisted.
func (v Verdict) Memorable() bool {
	return v == VerdictSupports || v == VerdictRefutes
}

// Judgment is the immutable result of judging one source summary against a claim
type Judgment struct {
	SourceURL   string  `json:"source_url"`
	SourceTitle string  `json:"source_title"`
	Summary     string  `json:"summary"`
	Verdict     Verdict `json:"verdict"`
	Confidence  int     `json:"confidence"` // Always within [0,100]
	Reason      string  `json:"reason"`
	ParseFailed bool    `json:"parse_failed,omitempty"`
}

// AggregateVerdict is the majority vote over every Judgment of one evaluation.
// It is derived on demand and never stored.
type AggregateVerdict struct {
	Majority Verdict `json:"majority"`
	Support  int     `json:"support"`
	Refute   int     `json:"refute"`
	Neutral  int     `json:"neutral"`
	Total    int     `json:"total"`
}

// Count returns the number of judgments with verdict v
func (a AggregateVerdict) Count(v Verdict) int {
	switch v {
	case VerdictSupports:
		return a.Support
	case VerdictRefutes:
		return a.Refute
	default:
		return a.Neutral
	}
}
