package building

import "math"

// BinaryEntropy returns the binary entropy of a probability in bits.
// It is defined as 0 at p == 0 and p == 1, and NaN for NaN input.
func BinaryEntropy(p float64) float64 {
	if math.IsNaN(p) {
		return math.NaN()
	}
	if p <= 0 || p >= 1 {
		return 0
	}
	return -(p*math.Log2(p) + (1-p)*math.Log2(1-p))
}

// PointDecision is the tentative per-point outcome before group
// aggregation.
type PointDecision struct {
	Label       Label
	HighEntropy bool
	// MissingProbability is set when the probability was NaN; the point is
	// forced Unsure and counted as a warning, never coerced to 0.
	MissingProbability bool
}

// ClassifyPoint applies the point-level decision rule. Precedence is
// fixed: confirmation is checked before refutation, so a point can never
// be both (the overlap C1+R1 <= 1 resolves to Confirmed).
func ClassifyPoint(probability float64, overlayed bool, t ThresholdSet) PointDecision {
	if math.IsNaN(probability) {
		return PointDecision{Label: Unsure, MissingProbability: true}
	}

	d := PointDecision{HighEntropy: BinaryEntropy(probability) >= t.E1}

	switch {
	case probability >= t.C1:
		d.Label = Confirmed
	case overlayed && probability >= t.C1*t.Cr:
		d.Label = Confirmed
	case (1 - probability) >= t.R1:
		d.Label = Refuted
	default:
		d.Label = Unsure
	}
	return d
}
