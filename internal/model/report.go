package model

import "time"

// Report is the complete outcome of one claim evaluation, used by batch mode
type Report struct {
	Claim       string           `json:"claim"`
	CheckedAt   time.Time        `json:"checked_at"`
	Sources     []EvidenceSource `json:"sources"`
	Unreachable []string         `json:"unreachable,omitempty"`
	Summaries   []SourceSummary  `json:"summaries,omitempty"`
	Judgments   []Judgment       `json:"judgments"`
	Aggregate   AggregateVerdict `json:"aggregate"`
	Complete    bool             `json:"complete"` // Completion marker was observed
}

// Apply folds one progress event into the report
func (r *Report) Apply(e Event) {
	switch e.Kind {
	case EventSearching:
		r.Claim = e.Claim
	case EventSourceFound:
		if e.Source != nil {
			r.Sources = append(r.Sources, *e.Source)
		}
	case EventSourceUnreachable:
		if e.Source != nil {
			r.Sources = append(r.Sources, *e.Source)
			r.Unreachable = append(r.Unreachable, e.Source.URL)
		}
	case EventSummaryReady:
		if e.Summary != nil {
			r.Summaries = append(r.Summaries, *e.Summary)
		}
	case EventJudgmentReady:
		if e.Judgment != nil {
			r.Judgments = append(r.Judgments, *e.Judgment)
		}
	case EventFinalVerdict:
		if e.Aggregate != nil {
			r.Aggregate = *e.Aggregate
		}
	case EventDone:
		r.Complete = true
	}
}
