package optimize

import "github.com/ardoise-data/building.review/internal/building"

// DecideGroups replays the group-level decision rule over the prepared
// samples with the given thresholds. Clustering happened once at prepare
// time, so a trial costs one pass over the group members.
func DecideGroups(groups []GroupSample, t building.ThresholdSet) []building.Label {
	decisions := make([]building.Label, len(groups))
	for i, g := range groups {
		stats := building.ComputeGroupStats(g.Probabilities, g.Overlays, t)
		decisions[i], _ = building.DecideGroup(stats, t)
	}
	return decisions
}

// EvaluateThresholds scores one ThresholdSet against the prepared groups.
func EvaluateThresholds(groups []GroupSample, t building.ThresholdSet) (Objectives, Metrics) {
	truths := make([]GroupTruth, len(groups))
	for i := range groups {
		truths[i] = groups[i].Truth
	}
	m := ComputeMetrics(truths, DecideGroups(groups, t))
	return m.Objectives(), m
}

// Constraints are the objective floors a deployable threshold set must
// respect. A trial's penalty is the sum of its shortfalls; zero or below
// means all floors are met.
type Constraints struct {
	MinAutomation float64 `json:"min_automation"`
	MinPrecision  float64 `json:"min_precision"`
	MinRecall     float64 `json:"min_recall"`
}

// DefaultConstraints reflect the production floors: precision must stay
// very high, recall high, and at least a third of groups automated.
func DefaultConstraints() Constraints {
	return Constraints{MinAutomation: 0.35, MinPrecision: 0.98, MinRecall: 0.98}
}

// Penalty returns the summed shortfall of an objective vector below the
// configured floors.
func (c Constraints) Penalty(o Objectives) float64 {
	var p float64
	if o.Precision < c.MinPrecision {
		p += c.MinPrecision - o.Precision
	}
	if o.Recall < c.MinRecall {
		p += c.MinRecall - o.Recall
	}
	if o.Automation < c.MinAutomation {
		p += c.MinAutomation - o.Automation
	}
	return p
}
