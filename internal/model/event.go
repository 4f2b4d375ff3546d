package model

// EventKind identifies a progress event emitted by the fact-check pipeline
type EventKind string

const (
	EventSearching         EventKind = "searching"          // Search provider is being queried
	EventSourceFound       EventKind = "source_found"       // Source content was extracted
	EventSourceUnreachable EventKind = "source_unreachable" // Source fetch returned no content
	EventSummarizing       EventKind = "summarizing"        // Summarize stage started
	EventSummaryReady      EventKind = "summary_ready"      // One source summary completed
	EventJudging           EventKind = "judging"            // Judgments are about to be emitted
	EventJudgmentReady     EventKind = "judgment_ready"     // One source judgment, in registration order
	EventFinalVerdict      EventKind = "final_verdict"      // Aggregate over all judgments
	EventDone              EventKind = "done"               // Completion marker, always last
)

// Event is one incremental unit of pipeline output.
// Only the fields relevant to Kind are set.
type Event struct {
	Kind      EventKind         `json:"kind"`
	Claim     string            `json:"claim,omitempty"`
	Source    *EvidenceSource   `json:"source,omitempty"`
	Summary   *SourceSummary    `json:"summary,omitempty"`
	Judgment  *Judgment         `json:"judgment,omitempty"`
	Aggregate *AggregateVerdict `json:"aggregate,omitempty"`
	Count     int               `json:"count,omitempty"`
}

// IsTerminal reports whether e is the completion marker
func (e Event) IsTerminal() bool {
	return e.Kind == EventDone
}
