package building

// Label is the three-way decision recorded on each point.
type Label uint8

const (
	// Unlabeled means no decision has been made for the point.
	Unlabeled Label = iota
	// Confirmed means the point is accepted as part of a building.
	Confirmed
	// Refuted means the point is rejected as not a building.
	Refuted
	// Unsure defers the point to human review.
	Unsure
)

// String returns the label name as written into output tiles.
func (l Label) String() string {
	switch l {
	case Confirmed:
		return "confirmed"
	case Refuted:
		return "refuted"
	case Unsure:
		return "unsure"
	default:
		return "unlabeled"
	}
}

// DetailCode records which decision rule fired for a point. Codes are
// audit output only; the three-way Label remains the contract.
type DetailCode uint8

const (
	DetailNone DetailCode = iota
	// DetailUnclustered marks candidate points that never joined a group.
	DetailUnclustered
	// DetailUnsureByEntropy marks groups deferred by the entropy safeguard.
	DetailUnsureByEntropy
	// DetailRefuted marks groups refuted by probability alone.
	DetailRefuted
	// DetailRefutedButOverlayed marks refuted groups that sit under a
	// database footprint (kept distinct for audit).
	DetailRefutedButOverlayed
	// DetailConfirmed marks groups confirmed by probability alone.
	DetailConfirmed
	// DetailConfirmedByOverlay marks groups confirmed by the overlay ratio
	// without a sufficient probability ratio.
	DetailConfirmedByOverlay
	// DetailBothConfirmed marks groups where probability and overlay agree.
	DetailBothConfirmed
	// DetailBothUnsure marks groups where neither rule fired.
	DetailBothUnsure
	// DetailCompleted marks points rescued by the completion pass.
	DetailCompleted
)

// String returns the detail code name as written into output tiles.
func (d DetailCode) String() string {
	switch d {
	case DetailUnclustered:
		return "unclustered"
	case DetailUnsureByEntropy:
		return "unsure-by-entropy"
	case DetailRefuted:
		return "ia-refuted"
	case DetailRefutedButOverlayed:
		return "ia-refuted-but-overlayed"
	case DetailConfirmed:
		return "ia-confirmed"
	case DetailConfirmedByOverlay:
		return "confirmed-by-overlay"
	case DetailBothConfirmed:
		return "both-confirmed"
	case DetailBothUnsure:
		return "both-unsure"
	case DetailCompleted:
		return "completed"
	default:
		return ""
	}
}

// Point is one aerial point as consumed by the decision engine. Position
// is in a projected (metric) CRS; probability comes from the external
// model and may be NaN when the model produced no value.
type Point struct {
	X, Y, Z     float64
	Probability float64
	IsCandidate bool // flagged by the upstream geometric rule
	IsOverlayed bool // under a footprint from the building vector database

	// Outputs, written by Apply.
	Label    Label
	Detail   DetailCode
	GroupID  int32 // candidate/completion group, 0 = none
	ReviewID int32 // identification cluster, 0 = none; disjoint namespace
}

// PointArena holds points in a contiguous, index-addressed slice so that
// groups and spatial queries can refer to points by index instead of
// pointer. Indices are stable for the lifetime of a run.
type PointArena struct {
	Points []Point
}

// NewPointArena creates an arena with capacity for n points.
func NewPointArena(n int) *PointArena {
	return &PointArena{Points: make([]Point, 0, n)}
}

// Add appends a point and returns its arena index.
func (a *PointArena) Add(p Point) int32 {
	a.Points = append(a.Points, p)
	return int32(len(a.Points) - 1)
}

// Len returns the number of points in the arena.
func (a *PointArena) Len() int { return len(a.Points) }

// At returns a pointer to the point at index i.
func (a *PointArena) At(i int32) *Point { return &a.Points[i] }

// ResetDecisions clears labels, detail codes, and group attributes so a
// fresh Apply never observes decisions from a previous run.
func (a *PointArena) ResetDecisions() {
	for i := range a.Points {
		p := &a.Points[i]
		p.Label = Unlabeled
		p.Detail = DetailNone
		p.GroupID = 0
		p.ReviewID = 0
	}
}

// CandidateIndices returns arena indices of all candidate building points.
func (a *PointArena) CandidateIndices() []int32 {
	idx := make([]int32, 0, len(a.Points))
	for i := range a.Points {
		if a.Points[i].IsCandidate {
			idx = append(idx, int32(i))
		}
	}
	return idx
}

// NonCandidateIndices returns arena indices of all points outside the
// candidate mask.
func (a *PointArena) NonCandidateIndices() []int32 {
	idx := make([]int32, 0, len(a.Points))
	for i := range a.Points {
		if !a.Points[i].IsCandidate {
			idx = append(idx, int32(i))
		}
	}
	return idx
}
