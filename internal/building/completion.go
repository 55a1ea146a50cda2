package building

// CompletionOptions control the rescue pass for isolated high-probability
// points (thin walls and other sparse structures the candidate clustering
// radius misses).
type CompletionOptions struct {
	// Policy is the relaxed adjacency used to merge stranded points with
	// confirmed groups: larger horizontal radius, vertical tolerance
	// increased.
	Policy AdjacencyPolicy
	// MinProbability gates which stranded points may be rescued.
	MinProbability float64
	// OverlayRelaxation multiplies MinProbability for overlayed points.
	OverlayRelaxation float64
}

// DefaultCompletionOptions mirror the production defaults: a relaxed
// radius with generous vertical tolerance and a 0.75 probability gate
// without overlay relaxation.
func DefaultCompletionOptions() CompletionOptions {
	return CompletionOptions{
		Policy:            AdjacencyPolicy{Radius: 5.0, VerticalTolerance: 100.0},
		MinProbability:    0.75,
		OverlayRelaxation: 1.0,
	}
}

// CompleteBuildings re-clusters stranded candidate points together with
// members of already-confirmed groups under the relaxed policy. Any merged
// cluster containing at least one previously confirmed point confirms all
// of its members (confirmation propagates through the relaxed cluster);
// rescued points adopt the group ID of a confirmed member. Returns the
// number of rescued points and of clusters where a merge happened.
func CompleteBuildings(arena *PointArena, t ThresholdSet, opts CompletionOptions) (rescued, merges int, err error) {
	subset := make([]int32, 0)
	for i := range arena.Points {
		p := &arena.Points[i]
		switch {
		case p.Label == Confirmed:
			subset = append(subset, int32(i))
		case p.IsCandidate && p.GroupID == 0 && completionEligible(p, opts):
			subset = append(subset, int32(i))
		}
	}
	if len(subset) == 0 {
		return 0, 0, nil
	}

	clusters, err := Cluster(arena, subset, opts.Policy)
	if err != nil {
		return 0, 0, err
	}

	for i := range clusters {
		c := &clusters[i]
		// The adopting group is the first confirmed member's group.
		var adopter int32
		for _, idx := range c.Members {
			if p := arena.At(idx); p.Label == Confirmed && p.GroupID > 0 {
				adopter = p.GroupID
				break
			}
		}
		if adopter == 0 {
			continue // no previously confirmed point, nothing to propagate
		}
		merged := false
		for _, idx := range c.Members {
			p := arena.At(idx)
			if p.Label == Confirmed {
				continue
			}
			p.Label = Confirmed
			p.Detail = DetailCompleted
			p.GroupID = adopter
			rescued++
			merged = true
		}
		if merged {
			merges++
		}
	}
	return rescued, merges, nil
}

// completionEligible reports whether a stranded candidate point has high
// enough probability to be reconsidered, applying the multiplicative
// overlay relaxation. NaN probabilities always fail the comparison.
func completionEligible(p *Point, opts CompletionOptions) bool {
	if p.Probability >= opts.MinProbability {
		return true
	}
	return p.IsOverlayed && p.Probability >= opts.MinProbability*opts.OverlayRelaxation
}
