package optimize

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/ardoise-data/building.review/internal/building"
)

// Range is a closed search interval for one threshold.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r Range) sample(rng *rand.Rand) float64 {
	return r.Min + rng.Float64()*(r.Max-r.Min)
}

func (r Range) clamp(v float64) float64 {
	return math.Min(math.Max(v, r.Min), r.Max)
}

func (r Range) width() float64 { return r.Max - r.Min }

// Domain bounds the eight-dimensional threshold search space.
type Domain struct {
	C1 Range `json:"c1"`
	C2 Range `json:"c2"`
	R1 Range `json:"r1"`
	R2 Range `json:"r2"`
	O1 Range `json:"o1"`
	E1 Range `json:"e1"`
	E2 Range `json:"e2"`
	Cr Range `json:"cr"`
}

// DefaultDomain returns the practical sub-ranges the thresholds were
// historically tuned over: probabilities and fractions over the full
// unit interval, overlay/entropy/relaxation parameters over tighter
// ranges where anything lower is known to be useless.
func DefaultDomain() Domain {
	return Domain{
		C1: Range{0, 1},
		C2: Range{0, 1},
		R1: Range{0, 1},
		R2: Range{0, 1},
		O1: Range{0.5, 1},
		E1: Range{0.5, 1},
		E2: Range{0.33, 1},
		Cr: Range{0.5, 1},
	}
}

// Validate rejects inverted or out-of-domain ranges. crMax bounds Cr.
func (d Domain) Validate(crMax float64) error {
	check := func(name string, r Range, lo, hi float64) error {
		if math.IsNaN(r.Min) || math.IsNaN(r.Max) || r.Min > r.Max || r.Min < lo || r.Max > hi {
			return fmt.Errorf("domain %s: range [%v,%v] outside [%v,%v]", name, r.Min, r.Max, lo, hi)
		}
		return nil
	}
	for _, f := range []struct {
		name string
		r    Range
	}{{"c1", d.C1}, {"c2", d.C2}, {"r1", d.R1}, {"r2", d.R2}, {"o1", d.O1}, {"e1", d.E1}, {"e2", d.E2}} {
		if err := check(f.name, f.r, 0, 1); err != nil {
			return err
		}
	}
	return check("cr", d.Cr, 0, crMax)
}

// Sample draws a uniform ThresholdSet from the domain.
func (d Domain) Sample(rng *rand.Rand) building.ThresholdSet {
	return building.ThresholdSet{
		C1: d.C1.sample(rng),
		C2: d.C2.sample(rng),
		R1: d.R1.sample(rng),
		R2: d.R2.sample(rng),
		O1: d.O1.sample(rng),
		E1: d.E1.sample(rng),
		E2: d.E2.sample(rng),
		Cr: d.Cr.sample(rng),
	}
}

// Clamp forces a ThresholdSet back into the domain.
func (d Domain) Clamp(t building.ThresholdSet) building.ThresholdSet {
	return building.ThresholdSet{
		C1: d.C1.clamp(t.C1),
		C2: d.C2.clamp(t.C2),
		R1: d.R1.clamp(t.R1),
		R2: d.R2.clamp(t.R2),
		O1: d.O1.clamp(t.O1),
		E1: d.E1.clamp(t.E1),
		E2: d.E2.clamp(t.E2),
		Cr: d.Cr.clamp(t.Cr),
	}
}

// Sampler proposes threshold sets and observes evaluated trials. The
// propose/observe split keeps the sampling strategy swappable; all
// randomness flows through the runner's seeded source.
type Sampler interface {
	Propose(rng *rand.Rand) building.ThresholdSet
	Observe(t Trial)
}

// UniformSampler draws independently from the domain on every proposal.
type UniformSampler struct {
	Domain Domain
}

// Propose implements Sampler.
func (s *UniformSampler) Propose(rng *rand.Rand) building.ThresholdSet {
	return s.Domain.Sample(rng)
}

// Observe implements Sampler; uniform sampling ignores feedback.
func (s *UniformSampler) Observe(Trial) {}

// Evolutionary sampler tuning constants.
const (
	evoWarmupTrials   = 16   // uniform proposals before evolution kicks in
	evoExploreRate    = 0.15 // fraction of proposals kept uniform afterwards
	evoBlendAlpha     = 0.3  // BLX-alpha crossover expansion
	evoMutationSigma  = 0.08 // gaussian mutation, scaled by range width
	evoArchiveMaxSize = 64
)

// EvolutionarySampler breeds new proposals from the non-dominated archive
// of past trials: tournament parent selection, blend crossover, and
// bounded Gaussian mutation. Early proposals are uniform until the
// archive carries enough signal.
type EvolutionarySampler struct {
	Domain  Domain
	archive Front
	seen    int
}

// Propose implements Sampler.
func (s *EvolutionarySampler) Propose(rng *rand.Rand) building.ThresholdSet {
	if s.seen < evoWarmupTrials || s.archive.Size() < 2 || rng.Float64() < evoExploreRate {
		return s.Domain.Sample(rng)
	}

	parents := s.archive.Trials()
	a := s.tournament(rng, parents)
	b := s.tournament(rng, parents)

	child := building.ThresholdSet{
		C1: s.gene(rng, a.Thresholds.C1, b.Thresholds.C1, s.Domain.C1),
		C2: s.gene(rng, a.Thresholds.C2, b.Thresholds.C2, s.Domain.C2),
		R1: s.gene(rng, a.Thresholds.R1, b.Thresholds.R1, s.Domain.R1),
		R2: s.gene(rng, a.Thresholds.R2, b.Thresholds.R2, s.Domain.R2),
		O1: s.gene(rng, a.Thresholds.O1, b.Thresholds.O1, s.Domain.O1),
		E1: s.gene(rng, a.Thresholds.E1, b.Thresholds.E1, s.Domain.E1),
		E2: s.gene(rng, a.Thresholds.E2, b.Thresholds.E2, s.Domain.E2),
		Cr: s.gene(rng, a.Thresholds.Cr, b.Thresholds.Cr, s.Domain.Cr),
	}
	return s.Domain.Clamp(child)
}

// tournament picks the better of two random archive members, preferring
// lower constraint penalty, then higher automation.
func (s *EvolutionarySampler) tournament(rng *rand.Rand, pool []Trial) Trial {
	a := pool[rng.Intn(len(pool))]
	b := pool[rng.Intn(len(pool))]
	if a.Penalty != b.Penalty {
		if a.Penalty < b.Penalty {
			return a
		}
		return b
	}
	if a.Objectives.Automation >= b.Objectives.Automation {
		return a
	}
	return b
}

// gene blends one threshold from two parents and mutates it.
func (s *EvolutionarySampler) gene(rng *rand.Rand, a, b float64, r Range) float64 {
	lo, hi := math.Min(a, b), math.Max(a, b)
	span := hi - lo
	v := lo - evoBlendAlpha*span + rng.Float64()*(span+2*evoBlendAlpha*span)
	v += rng.NormFloat64() * evoMutationSigma * r.width()
	return r.clamp(v)
}

// Observe implements Sampler: successful trials feed the archive.
func (s *EvolutionarySampler) Observe(t Trial) {
	s.seen++
	if t.Status != TrialOK {
		return
	}
	if s.archive.Size() < evoArchiveMaxSize {
		s.archive.Add(t)
	}
}

// NewSampler builds a sampler by name: "uniform" or "evolutionary".
func NewSampler(name string, domain Domain) (Sampler, error) {
	switch name {
	case "", "evolutionary":
		return &EvolutionarySampler{Domain: domain}, nil
	case "uniform":
		return &UniformSampler{Domain: domain}, nil
	default:
		return nil, fmt.Errorf("unknown sampler %q (want uniform or evolutionary)", name)
	}
}
