package building

import (
	"fmt"
	"log"
)

// Options bundle the stage parameters of one pipeline pass. Thresholds
// are passed separately so the same Options can be reused across trials.
type Options struct {
	// CandidatePolicy clusters candidate points: small horizontal radius,
	// no vertical relaxation.
	CandidatePolicy AdjacencyPolicy
	// MinGroupPoints is the smallest cluster that receives a group-level
	// decision. Smaller clusters are treated as unclustered and deferred
	// to the completion pass.
	MinGroupPoints int
	// CrMax bounds the overlay relaxation factor of the threshold set.
	CrMax float64

	Completion CompletionOptions

	Identification IdentificationOptions
	// IdentifyMissed disables the identification pass when false.
	IdentifyMissed bool
}

// DefaultOptions returns the production stage parameters.
func DefaultOptions() Options {
	return Options{
		CandidatePolicy: AdjacencyPolicy{Radius: 1.0},
		MinGroupPoints:  2,
		CrMax:           DefaultCrMax,
		Completion:      DefaultCompletionOptions(),
		Identification: IdentificationOptions{
			Policy:     AdjacencyPolicy{Radius: 1.0},
			UseOverlay: false,
		},
		IdentifyMissed: true,
	}
}

// DecisionSummary counts the outcomes of one pipeline pass.
type DecisionSummary struct {
	Points          int `json:"points"`
	Candidates      int `json:"candidates"`
	Confirmed       int `json:"confirmed"`
	Refuted         int `json:"refuted"`
	Unsure          int `json:"unsure"`
	MissingProba    int `json:"missing_probability"`
	Groups          int `json:"groups"`
	Unclustered     int `json:"unclustered"`
	CompletionMoves int `json:"completion_rescued"`
	CompletionMerge int `json:"completion_merges"`
	ReviewClusters  int `json:"review_clusters"`
	ReviewPoints    int `json:"review_points"`
}

// Apply runs the full decision pipeline over the arena: point
// classification, candidate clustering, group decisions, completion, and
// identification. It is pure in the sense that output labels are a
// function of (positions, probabilities, flags, thresholds) only — prior
// labels are cleared first, so applying twice yields identical output.
func Apply(arena *PointArena, t ThresholdSet, opts Options) (DecisionSummary, error) {
	var sum DecisionSummary

	if err := t.Validate(opts.CrMax); err != nil {
		return sum, fmt.Errorf("thresholds: %w", err)
	}
	if err := opts.CandidatePolicy.Validate(); err != nil {
		return sum, fmt.Errorf("candidate policy: %w", err)
	}
	if err := opts.Completion.Policy.Validate(); err != nil {
		return sum, fmt.Errorf("completion policy: %w", err)
	}
	if opts.IdentifyMissed {
		if err := opts.Identification.Policy.Validate(); err != nil {
			return sum, fmt.Errorf("identification policy: %w", err)
		}
	}

	arena.ResetDecisions()
	sum.Points = arena.Len()
	if sum.Points == 0 {
		return sum, nil
	}

	// Count NaN probabilities among candidates up front so the warning is
	// surfaced even if the point later joins a group.
	candidates := arena.CandidateIndices()
	sum.Candidates = len(candidates)
	for _, idx := range candidates {
		if d := ClassifyPoint(arena.At(idx).Probability, arena.At(idx).IsOverlayed, t); d.MissingProbability {
			sum.MissingProba++
		}
	}

	if len(candidates) > 0 {
		groups, err := Cluster(arena, candidates, opts.CandidatePolicy)
		if err != nil {
			return sum, err
		}

		// Candidates default to refuted-unclustered; decided groups
		// overwrite their members below, completion may rescue the rest.
		// Points without a probability are forced unsure instead.
		for _, idx := range candidates {
			p := arena.At(idx)
			if d := ClassifyPoint(p.Probability, p.IsOverlayed, t); d.MissingProbability {
				p.Label = Unsure
			} else {
				p.Label = Refuted
			}
			p.Detail = DetailUnclustered
		}

		for i := range groups {
			g := &groups[i]
			if g.Size() < opts.MinGroupPoints {
				sum.Unclustered += g.Size()
				continue
			}
			decideArenaGroup(arena, g, t)
			sum.Groups++
		}

		rescued, merges, err := CompleteBuildings(arena, t, opts.Completion)
		if err != nil {
			return sum, err
		}
		sum.CompletionMoves = rescued
		sum.CompletionMerge = merges
	}

	if opts.IdentifyMissed {
		clusters, points, err := IdentifyMissedBuildings(arena, t, opts.Identification)
		if err != nil {
			return sum, err
		}
		sum.ReviewClusters = clusters
		sum.ReviewPoints = points
	}

	for i := range arena.Points {
		switch arena.Points[i].Label {
		case Confirmed:
			sum.Confirmed++
		case Refuted:
			sum.Refuted++
		case Unsure:
			sum.Unsure++
		}
	}

	if sum.MissingProba > 0 {
		log.Printf("[building] %d candidate points had missing probabilities and were forced unsure at point level", sum.MissingProba)
	}
	return sum, nil
}
