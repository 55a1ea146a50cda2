package building

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeGroupStats(t *testing.T) {
	ts := DefaultThresholds() // C1=0.7, R1=0.7, E1=0.9

	probs := []float64{0.9, 0.8, 0.1, 0.5, math.NaN()}
	overlays := []bool{true, false, false, false, false}

	s := ComputeGroupStats(probs, overlays, ts)
	assert.InDelta(t, 0.4, s.ConfirmedRatio, 1e-12)   // 0.9, 0.8
	assert.InDelta(t, 0.2, s.RefutedRatio, 1e-12)     // 0.1
	assert.InDelta(t, 0.2, s.OverlayRatio, 1e-12)     // one overlay
	assert.InDelta(t, 0.2, s.HighEntropyRatio, 1e-12) // 0.5 only
	assert.Equal(t, 1, s.MissingCount)
}

func TestDecideGroup(t *testing.T) {
	ts := ThresholdSet{C1: 0.7, C2: 0.7, R1: 0.7, R2: 0.8, O1: 0.1, E1: 0.9, E2: 0.5, Cr: 1}

	t.Run("confirmed by ratio", func(t *testing.T) {
		// 8 of 10 points confirmed, none refuted, no overlay, C2=0.7.
		s := GroupStats{ConfirmedRatio: 0.8}
		label, detail := DecideGroup(s, ts)
		assert.Equal(t, Confirmed, label)
		assert.Equal(t, DetailConfirmed, detail)
	})

	t.Run("refuted with overlay below O1", func(t *testing.T) {
		s := GroupStats{RefutedRatio: 0.9, OverlayRatio: 0.05}
		label, detail := DecideGroup(s, ts)
		assert.Equal(t, Refuted, label)
		assert.Equal(t, DetailRefuted, detail)
	})

	t.Run("overlay blocks refutation", func(t *testing.T) {
		s := GroupStats{RefutedRatio: 0.9, OverlayRatio: 0.5}
		label, detail := DecideGroup(s, ts)
		assert.Equal(t, Confirmed, label)
		assert.Equal(t, DetailConfirmedByOverlay, detail)
	})

	t.Run("entropy safeguard wins over everything", func(t *testing.T) {
		s := GroupStats{ConfirmedRatio: 1.0, OverlayRatio: 1.0, HighEntropyRatio: 0.6}
		label, detail := DecideGroup(s, ts)
		assert.Equal(t, Unsure, label)
		assert.Equal(t, DetailUnsureByEntropy, detail)
	})

	t.Run("nothing fires", func(t *testing.T) {
		s := GroupStats{ConfirmedRatio: 0.3, RefutedRatio: 0.3}
		label, detail := DecideGroup(s, ts)
		assert.Equal(t, Unsure, label)
		assert.Equal(t, DetailBothUnsure, detail)
	})

	t.Run("both probability and overlay", func(t *testing.T) {
		s := GroupStats{ConfirmedRatio: 0.9, OverlayRatio: 0.9}
		label, detail := DecideGroup(s, ts)
		assert.Equal(t, Confirmed, label)
		assert.Equal(t, DetailBothConfirmed, detail)
	})
}

// A fully confirmed group must come out Confirmed regardless of the
// overlay and entropy thresholds, as long as the safeguard cannot fire.
func TestDecideGroupFullConfirmationAlwaysConfirms(t *testing.T) {
	for _, o1 := range []float64{0, 0.25, 0.5, 0.75, 1} {
		for _, c2 := range []float64{0, 0.5, 1} {
			ts := DefaultThresholds()
			ts.O1 = o1
			ts.C2 = c2
			ts.E2 = 1.0 // safeguard needs every member high-entropy
			s := GroupStats{ConfirmedRatio: 1.0}
			label, _ := DecideGroup(s, ts)
			assert.Equal(t, Confirmed, label, "o1=%v c2=%v", o1, c2)
		}
	}
}

func TestDecideArenaGroupPropagates(t *testing.T) {
	// Spec example: 10 points, 8 with p >= C1, none refuted, C2=0.7.
	arena := NewPointArena(10)
	for i := 0; i < 8; i++ {
		arena.Add(Point{X: float64(i) * 0.1, Probability: 0.9, IsCandidate: true})
	}
	arena.Add(Point{X: 0.8, Probability: 0.5, IsCandidate: true})
	arena.Add(Point{X: 0.9, Probability: 0.5, IsCandidate: true})

	ts := ThresholdSet{C1: 0.7, C2: 0.7, R1: 0.99, R2: 0.8, O1: 0.5, E1: 1, E2: 1, Cr: 1}
	g := Group{ID: 1, Members: allIndices(arena)}
	decideArenaGroup(arena, &g, ts)

	assert.Equal(t, Confirmed, g.Decision)
	assert.InDelta(t, 0.8, g.ConfirmedRatio, 1e-12)
	for _, idx := range g.Members {
		p := arena.At(idx)
		assert.Equal(t, Confirmed, p.Label, "group decision must overwrite member %d", idx)
		assert.Equal(t, int32(1), p.GroupID)
	}
}
