package pipeline

import (
	"fmt"
	"strings"

	"github.com/ppiankov/verity/internal/model"
)

// Render formats one event as a human-readable text block ending in a newline.
// The completion marker renders as "".
func Render(e model.Event) string {
	switch e.Kind {
	case model.EventSearching:
		return fmt.Sprintf("🌐 Searching web for: %s\n", e.Claim)
	case model.EventSourceFound:
		return fmt.Sprintf("✔️ Found source: %s\n", sourceURL(e.Source))
	case model.EventSourceUnreachable:
		return fmt.Sprintf("Skipping source (unreachable or empty): %s\n", sourceURL(e.Source))
	case model.EventSummarizing:
		return "\n🧠 Summarizing all resources\n"
	case model.EventSummaryReady:
		if e.Summary == nil {
			return ""
		}
		return fmt.Sprintf("\n🔍 Summary of %s:\n%s\n", e.Summary.SourceURL, strings.TrimSpace(e.Summary.ShortForm))
	case model.EventJudging:
		return fmt.Sprintf("\n⚖️ Judging claim against %d sources\n", e.Count)
	case model.EventJudgmentReady:
		if e.Judgment == nil {
			return ""
		}
		return fmt.Sprintf("\n💡 Judgment for %s:\nVerdict: %s\nReason: %s\n",
			e.Judgment.SourceURL, e.Judgment.Verdict, strings.TrimSpace(e.Judgment.Reason))
	case model.EventFinalVerdict:
		if e.Aggregate == nil {
			return ""
		}
		return "\n📊 Final Verdict:\n" + RenderAggregate(*e.Aggregate)
	}
	return ""
}

// RenderAggregate formats the vote counts of an evaluation
func RenderAggregate(a model.AggregateVerdict) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Final Verdict for claim: %s\n", a.Majority)
	fmt.Fprintf(&b, "%d articles support the claim\n", a.Support)
	fmt.Fprintf(&b, "%d articles refute the claim\n", a.Refute)
	fmt.Fprintf(&b, "%d articles take a neutral stand on the claim\n", a.Neutral)
	fmt.Fprintf(&b, "Total articles referred: %d\n", a.Total)
	return b.String()
}

func sourceURL(s *model.EvidenceSource) string {
	if s == nil {
		return ""
	}
	return s.URL
}
