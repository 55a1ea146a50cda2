package optimize

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/ardoise-data/building.review/internal/building"
)

// Config controls one optimization run. The seed is explicit: the same
// seed, dataset, and domain produce the same Pareto front.
type Config struct {
	Seed        int64         `json:"seed"`
	Trials      int           `json:"trials"`
	TimeBudget  time.Duration `json:"time_budget,omitempty"`
	Workers     int           `json:"workers"`
	Sampler     string        `json:"sampler"`
	Domain      Domain        `json:"domain"`
	Constraints Constraints   `json:"constraints"`
	CrMax       float64       `json:"cr_max"`
}

// DefaultConfig returns a run configuration suitable for a labelled
// dataset of a few thousand groups.
func DefaultConfig() Config {
	return Config{
		Seed:        1,
		Trials:      400,
		Workers:     4,
		Sampler:     "evolutionary",
		Domain:      DefaultDomain(),
		Constraints: DefaultConstraints(),
		CrMax:       building.DefaultCrMax,
	}
}

// Optimizer runs the multi-objective threshold search.
type Optimizer struct {
	cfg     Config
	sampler Sampler
}

// New validates the configuration and builds an Optimizer.
func New(cfg Config) (*Optimizer, error) {
	if cfg.Trials <= 0 && cfg.TimeBudget <= 0 {
		return nil, fmt.Errorf("optimizer needs a trial or time budget")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.CrMax <= 0 {
		cfg.CrMax = building.DefaultCrMax
	}
	if err := cfg.Domain.Validate(cfg.CrMax); err != nil {
		return nil, err
	}
	sampler, err := NewSampler(cfg.Sampler, cfg.Domain)
	if err != nil {
		return nil, err
	}
	return &Optimizer{cfg: cfg, sampler: sampler}, nil
}

// Run executes the search over the prepared group samples and returns
// the Pareto front plus the full trial history in sequence order.
//
// Proposals are drawn sequentially from the seeded source and evaluated
// in parallel across a bounded worker pool; results are merged back in
// sequence order before the sampler observes them, so the front is
// deterministic for a fixed seed. The budget is checked between batches:
// once exhausted no new trials are admitted, but in-flight trials
// complete.
func (o *Optimizer) Run(ctx context.Context, groups []GroupSample) (*Front, []Trial, error) {
	if len(groups) == 0 {
		return nil, nil, fmt.Errorf("no labelled groups to optimize against")
	}

	var deadline time.Time
	if o.cfg.TimeBudget > 0 {
		deadline = time.Now().Add(o.cfg.TimeBudget)
	}
	budget := o.cfg.Trials
	if budget <= 0 {
		budget = math.MaxInt
	}

	front := &Front{}
	var history []Trial
	rng := rand.New(rand.NewSource(o.cfg.Seed))

	seq := 0
	for seq < budget {
		if err := ctx.Err(); err != nil {
			return front, history, err
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			log.Printf("[optimize] time budget exhausted after %d trials", seq)
			break
		}

		batch := o.cfg.Workers
		if remaining := budget - seq; remaining < batch {
			batch = remaining
		}

		proposals := make([]building.ThresholdSet, batch)
		for i := range proposals {
			proposals[i] = o.sampler.Propose(rng)
		}

		results := make([]Trial, batch)
		var wg sync.WaitGroup
		for i := range proposals {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = o.evaluate(seq+i, proposals[i], groups)
			}(i)
		}
		wg.Wait()

		for _, t := range results {
			o.sampler.Observe(t)
			front.Add(t)
			history = append(history, t)
		}
		seq += batch
	}

	log.Printf("[optimize] finished: %d trials, front size %d", len(history), front.Size())
	return front, history, nil
}

// evaluate scores one proposal. A malformed sample is recorded as a
// failed trial and excluded from the front, never aborting the search.
func (o *Optimizer) evaluate(seq int, ts building.ThresholdSet, groups []GroupSample) Trial {
	t := Trial{Seq: seq, Thresholds: ts}
	if err := ts.Validate(o.cfg.CrMax); err != nil {
		t.Status = TrialFailed
		t.Err = err.Error()
		return t
	}
	objectives, _ := EvaluateThresholds(groups, ts)
	t.Objectives = objectives
	t.Penalty = o.cfg.Constraints.Penalty(objectives)
	t.Status = TrialOK
	return t
}

// SelectBest applies the default deployment policy to a front: among
// trials meeting every constraint floor, pick the one with the highest
// automation; if none qualify, fall back to the highest objective
// product. Callers with a different policy can pick from the front
// themselves.
func SelectBest(front *Front, c Constraints) (Trial, error) {
	trials := front.Trials()
	if len(trials) == 0 {
		return Trial{}, fmt.Errorf("empty pareto front")
	}

	best := -1
	for i, t := range trials {
		if c.Penalty(t.Objectives) > 0 {
			continue
		}
		if best < 0 || t.Objectives.Automation > trials[best].Objectives.Automation {
			best = i
		}
	}
	if best >= 0 {
		return trials[best], nil
	}

	log.Printf("[optimize] no trial on the front meets constraints; falling back to best objective product")
	product := func(o Objectives) float64 { return o.Automation * o.Precision * o.Recall }
	best = 0
	for i := range trials {
		if product(trials[i].Objectives) > product(trials[best].Objectives) {
			best = i
		}
	}
	return trials[best], nil
}
