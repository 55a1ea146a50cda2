package optimize

import (
	"sort"

	"github.com/ardoise-data/building.review/internal/building"
)

// Objectives is the maximization vector of one trial. The order is fixed
// throughout the package: automation, precision, recall.
type Objectives struct {
	Automation float64 `json:"automation"`
	Precision  float64 `json:"precision"`
	Recall     float64 `json:"recall"`
}

// Dominates reports strict Pareto dominance: at least as good on every
// objective and strictly better on at least one.
func (a Objectives) Dominates(b Objectives) bool {
	if a.Automation < b.Automation || a.Precision < b.Precision || a.Recall < b.Recall {
		return false
	}
	return a.Automation > b.Automation || a.Precision > b.Precision || a.Recall > b.Recall
}

// TrialStatus marks whether a trial produced a usable objective vector.
type TrialStatus string

const (
	TrialOK     TrialStatus = "ok"
	TrialFailed TrialStatus = "failed"
)

// Trial is one evaluated ThresholdSet. Seq is the deterministic proposal
// sequence number; failed trials keep their slot in the history but never
// enter the front.
type Trial struct {
	Seq        int                   `json:"seq"`
	Thresholds building.ThresholdSet `json:"thresholds"`
	Objectives Objectives            `json:"objectives"`
	Penalty    float64               `json:"penalty"`
	Status     TrialStatus           `json:"status"`
	Err        string                `json:"error,omitempty"`
}

// Front maintains the running set of non-dominated trials.
type Front struct {
	trials []Trial
}

// Add absorbs a trial: dominated incumbents are dropped, and the trial is
// rejected if any incumbent dominates it. Failed trials are never
// admitted. Returns true when the trial joined the front.
func (f *Front) Add(t Trial) bool {
	if t.Status != TrialOK {
		return false
	}
	kept := f.trials[:0]
	for _, in := range f.trials {
		if t.Objectives.Dominates(in.Objectives) {
			continue
		}
		if in.Objectives.Dominates(t.Objectives) {
			return false
		}
		kept = append(kept, in)
	}
	f.trials = append(kept, t)
	return true
}

// Size returns the number of trials currently on the front.
func (f *Front) Size() int { return len(f.trials) }

// Trials returns a copy of the front ordered by proposal sequence.
func (f *Front) Trials() []Trial {
	out := make([]Trial, len(f.trials))
	copy(out, f.trials)
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}
