package building

// GroupStats are the member proportions the group-level decision is made
// from. Each ratio is a matching member count divided by group size.
type GroupStats struct {
	ConfirmedRatio   float64
	RefutedRatio     float64
	OverlayRatio     float64
	HighEntropyRatio float64
	MissingCount     int // members with NaN probability
}

// ComputeGroupStats derives decision proportions for a set of member
// probabilities and overlay flags under the given thresholds. Members
// with NaN probability contribute to the denominator but never to the
// confirmed/refuted/high-entropy counts.
func ComputeGroupStats(probabilities []float64, overlays []bool, t ThresholdSet) GroupStats {
	n := len(probabilities)
	if n == 0 {
		return GroupStats{}
	}
	var confirmed, refuted, overlayed, highEntropy, missing int
	for i, p := range probabilities {
		if overlays[i] {
			overlayed++
		}
		d := ClassifyPoint(p, overlays[i], t)
		if d.MissingProbability {
			missing++
			continue
		}
		switch d.Label {
		case Confirmed:
			confirmed++
		case Refuted:
			refuted++
		}
		if d.HighEntropy {
			highEntropy++
		}
	}
	size := float64(n)
	return GroupStats{
		ConfirmedRatio:   float64(confirmed) / size,
		RefutedRatio:     float64(refuted) / size,
		OverlayRatio:     float64(overlayed) / size,
		HighEntropyRatio: float64(highEntropy) / size,
		MissingCount:     missing,
	}
}

// DecideGroup aggregates member proportions into one group decision.
// The order is fixed: the entropy safeguard is checked first, then
// confirmation, then refutation. The detail code records which rule
// fired for audit output.
func DecideGroup(s GroupStats, t ThresholdSet) (Label, DetailCode) {
	if s.HighEntropyRatio >= t.E2 {
		return Unsure, DetailUnsureByEntropy
	}

	iaConfirmed := s.ConfirmedRatio >= t.C2
	overlayed := s.OverlayRatio >= t.O1

	if iaConfirmed || overlayed {
		switch {
		case iaConfirmed && overlayed:
			return Confirmed, DetailBothConfirmed
		case iaConfirmed:
			return Confirmed, DetailConfirmed
		default:
			return Confirmed, DetailConfirmedByOverlay
		}
	}

	if s.RefutedRatio >= t.R2 && !overlayed {
		return Refuted, DetailRefuted
	}

	return Unsure, DetailBothUnsure
}

// decideArenaGroup computes stats for a clustered group of arena points,
// records the proportions on the group, and propagates the decision to
// every member: the group decision overwrites the point-level tentative
// label.
func decideArenaGroup(arena *PointArena, g *Group, t ThresholdSet) {
	probs := make([]float64, len(g.Members))
	overlays := make([]bool, len(g.Members))
	for i, idx := range g.Members {
		p := arena.At(idx)
		probs[i] = p.Probability
		overlays[i] = p.IsOverlayed
	}
	stats := ComputeGroupStats(probs, overlays, t)
	g.ConfirmedRatio = stats.ConfirmedRatio
	g.RefutedRatio = stats.RefutedRatio
	g.OverlayRatio = stats.OverlayRatio
	g.HighEntropyRatio = stats.HighEntropyRatio

	g.Decision, g.Detail = DecideGroup(stats, t)
	for _, idx := range g.Members {
		p := arena.At(idx)
		p.Label = g.Decision
		p.Detail = g.Detail
		p.GroupID = g.ID
	}
}
