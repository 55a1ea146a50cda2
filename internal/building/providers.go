package building

import "math"

// ProbabilityProvider supplies the building probability for a point. The
// neural-network inference collaborator sits behind this interface; the
// engine never reaches for it globally.
type ProbabilityProvider interface {
	Probability(x, y, z float64) float64
}

// OverlayProvider reports whether a point falls under a footprint from
// the building vector database.
type OverlayProvider interface {
	Overlayed(x, y float64) bool
}

// ColumnProbabilities is the batch-path provider: probabilities already
// carried on the input tile, addressed by arena index. Out-of-range
// lookups return NaN, the engine's missing-value marker.
type ColumnProbabilities struct {
	arena *PointArena
}

// NewColumnProbabilities wraps an arena whose points carry probabilities.
func NewColumnProbabilities(arena *PointArena) *ColumnProbabilities {
	return &ColumnProbabilities{arena: arena}
}

// Probability returns the stored probability of the point at (x, y, z),
// matched by exact position.
func (c *ColumnProbabilities) Probability(x, y, z float64) float64 {
	for i := range c.arena.Points {
		p := &c.arena.Points[i]
		if p.X == x && p.Y == y && p.Z == z {
			return p.Probability
		}
	}
	return math.NaN()
}

// FillFromProviders populates probability and overlay fields on every
// arena point from the injected providers. Either provider may be nil to
// leave the corresponding column untouched.
func FillFromProviders(arena *PointArena, probs ProbabilityProvider, overlay OverlayProvider) {
	for i := range arena.Points {
		p := &arena.Points[i]
		if probs != nil {
			p.Probability = probs.Probability(p.X, p.Y, p.Z)
		}
		if overlay != nil {
			p.IsOverlayed = overlay.Overlayed(p.X, p.Y)
		}
	}
}
