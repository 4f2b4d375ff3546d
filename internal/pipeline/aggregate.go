package pipeline

import "github.com/ppiankov/verity/internal/model"

// Aggregate folds judgments into a majority verdict. Ties go to the verdict
// listed first in model.Verdicts; an empty set is Neutral with total 0.
func Aggregate(judgments []model.Judgment) model.AggregateVerdict {
	agg := model.AggregateVerdict{Majority: model.VerdictNeutral}
	for _, j := range judgments {
		switch j.Verdict {
		case model.VerdictSupports:
			agg.Support++
		case model.VerdictRefutes:
			agg.Refute++
		default:
			agg.Neutral++
		}
	}
	agg.Total = agg.Support + agg.Refute + agg.Neutral
	if agg.Total == 0 {
		return agg
	}

	best := -1
	for _, v := range model.Verdicts {
		if n := agg.Count(v); n > best {
			best = n
			agg.Majority = v
		}
	}
	return agg
}
