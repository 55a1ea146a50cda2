package building

// IdentificationOptions control the pass that surfaces buildings missed
// entirely by the upstream geometric rule.
type IdentificationOptions struct {
	// Policy is the standard candidate-clustering adjacency applied to the
	// non-candidate subset.
	Policy AdjacencyPolicy
	// UseOverlay enables the overlay relaxation of C1 for non-candidate
	// points. Leave false when the database join does not cover points
	// outside the candidate mask.
	UseOverlay bool
}

// IdentifyMissedBuildings clusters non-candidate points that pass the
// point-level confirmation rule and tags each resulting cluster with a
// review ID from a namespace disjoint from candidate group IDs. Labels
// are never changed: these clusters are review candidates only, never
// auto-confirmed into the production classification. Returns the number
// of review clusters and tagged points.
func IdentifyMissedBuildings(arena *PointArena, t ThresholdSet, opts IdentificationOptions) (clusters, points int, err error) {
	subset := make([]int32, 0)
	for i := range arena.Points {
		p := &arena.Points[i]
		if p.IsCandidate {
			continue
		}
		overlayed := opts.UseOverlay && p.IsOverlayed
		d := ClassifyPoint(p.Probability, overlayed, t)
		if d.MissingProbability || d.Label != Confirmed {
			continue
		}
		subset = append(subset, int32(i))
	}
	if len(subset) == 0 {
		return 0, 0, nil
	}

	found, err := Cluster(arena, subset, opts.Policy)
	if err != nil {
		return 0, 0, err
	}

	for i := range found {
		for _, idx := range found[i].Members {
			arena.At(idx).ReviewID = found[i].ID
			points++
		}
	}
	return len(found), points, nil
}
