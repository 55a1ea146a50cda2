package optimize

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ardoise-data/building.review/internal/building"
)

// The optimization workflow runs as four phases, each reading the
// artifacts of the previous one so a crashed or interrupted run resumes
// from the last completed phase:
//
//	prepare  — tile CSVs        -> dataset blob
//	optimize — dataset blob     -> threshold record (+ front dump)
//	evaluate — blob + record    -> evaluation report
//	update   — tile + record    -> labelled tile CSV

// PrepareConfig names the labelled input tiles and the blob to produce.
type PrepareConfig struct {
	Tiles  []string `json:"tiles"`
	Output string   `json:"output"`
}

// Prepare merges labelled tiles into a single dataset blob. Every tile
// must carry ground truth; optimization against unlabelled data is a
// configuration error, not something to discover after hours of search.
func Prepare(cfg PrepareConfig) (*Dataset, error) {
	if len(cfg.Tiles) == 0 {
		return nil, fmt.Errorf("prepare: no input tiles")
	}
	merged := &Dataset{}
	for _, path := range cfg.Tiles {
		ds, err := ReadTileCSV(path)
		if err != nil {
			return nil, fmt.Errorf("prepare %s: %w", path, err)
		}
		if !ds.HasGroundTruth() {
			return nil, fmt.Errorf("prepare %s: tile carries no ground truth", path)
		}
		merged.Points = append(merged.Points, ds.Points...)
		log.Printf("[optimize] prepare: %s contributed %d points", path, len(ds.Points))
	}
	if err := WriteDatasetFile(cfg.Output, merged); err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	log.Printf("[optimize] prepare: wrote %d points to %s", len(merged.Points), cfg.Output)
	return merged, nil
}

// OptimizeConfig drives the search phase.
type OptimizeConfig struct {
	Dataset        string                   `json:"dataset"`
	Output         string                   `json:"output"`
	FrontOutput    string                   `json:"front_output,omitempty"`
	Label          string                   `json:"label,omitempty"`
	Runner         Config                   `json:"runner"`
	Policy         building.AdjacencyPolicy `json:"policy"`
	MinGroupPoints int                      `json:"min_group_points"`
	MinFrac        MinFrac                  `json:"min_frac"`
}

// OptimizeResult is everything the search phase produced.
type OptimizeResult struct {
	Front   *Front
	History []Trial
	Best    Trial
	Summary FrontSummary
}

// frontDump is the persisted form of a Pareto front.
type frontDump struct {
	CreatedAt time.Time    `json:"created_at"`
	Dataset   string       `json:"dataset"`
	Config    Config       `json:"config"`
	Summary   FrontSummary `json:"summary"`
	Trials    []Trial      `json:"trials"`
}

// Optimize loads a prepared dataset, runs the threshold search, and
// persists the selected thresholds (and optionally the whole front).
// Clustering is threshold-independent, so groups are built once up
// front and every trial only re-decides them.
func Optimize(ctx context.Context, cfg OptimizeConfig) (*OptimizeResult, error) {
	ds, err := ReadDatasetFile(cfg.Dataset)
	if err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	groups, err := BuildGroupSamples(ds, cfg.Policy, cfg.MinGroupPoints, cfg.MinFrac)
	if err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	log.Printf("[optimize] %d points clustered into %d labelled groups", len(ds.Points), len(groups))

	opt, err := New(cfg.Runner)
	if err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	front, history, err := opt.Run(ctx, groups)
	if err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	best, err := SelectBest(front, cfg.Runner.Constraints)
	if err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}

	res := &OptimizeResult{
		Front:   front,
		History: history,
		Best:    best,
		Summary: SummarizeFront(front),
	}
	if cfg.Output != "" {
		rec := building.NewThresholdRecord(best.Thresholds, cfg.Label)
		if err := building.SaveThresholdRecord(cfg.Output, rec); err != nil {
			return nil, fmt.Errorf("optimize: %w", err)
		}
		log.Printf("[optimize] best trial %d (automation %.3f, precision %.3f, recall %.3f) saved to %s",
			best.Seq, best.Objectives.Automation, best.Objectives.Precision, best.Objectives.Recall, cfg.Output)
	}
	if cfg.FrontOutput != "" {
		dump := frontDump{
			CreatedAt: time.Now().UTC(),
			Dataset:   cfg.Dataset,
			Config:    cfg.Runner,
			Summary:   res.Summary,
			Trials:    front.Trials(),
		}
		if err := writeJSON(cfg.FrontOutput, dump); err != nil {
			return nil, fmt.Errorf("optimize: %w", err)
		}
	}
	return res, nil
}

// EvaluateConfig scores a threshold record against a held-out dataset.
type EvaluateConfig struct {
	Dataset        string                   `json:"dataset"`
	Thresholds     string                   `json:"thresholds"`
	Output         string                   `json:"output,omitempty"`
	Options        building.Options         `json:"options"`
	Policy         building.AdjacencyPolicy `json:"policy"`
	MinGroupPoints int                      `json:"min_group_points"`
	MinFrac        MinFrac                  `json:"min_frac"`
}

// Evaluate runs the full decision pipeline on a held-out labelled
// dataset and reports both group metrics and the point-level IoU of the
// final confirmed mask against the ground-truth building mask.
func Evaluate(cfg EvaluateConfig) (*Report, error) {
	ds, err := ReadDatasetFile(cfg.Dataset)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	rec, err := building.LoadThresholdRecord(cfg.Thresholds, cfg.Options.CrMax)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	arena := ds.Arena()
	summary, err := building.Apply(arena, rec.Thresholds, cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	groups, err := BuildGroupSamples(ds, cfg.Policy, cfg.MinGroupPoints, cfg.MinFrac)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	_, metrics := EvaluateThresholds(groups, rec.Thresholds)

	// The true building mask is every point the geometric rule got
	// right plus every point it missed.
	predicted := make([]bool, arena.Len())
	truth := make([]bool, arena.Len())
	for i := range ds.Points {
		predicted[i] = arena.Points[i].Label == building.Confirmed
		truth[i] = ds.Points[i].Truth == TruthTruePositive || ds.Points[i].Truth == TruthFalseNegative
	}

	report := &Report{
		CreatedAt:    time.Now().UTC(),
		DatasetPath:  cfg.Dataset,
		Thresholds:   rec.Thresholds,
		Metrics:      metrics,
		PointIoU:     IoUFromMasks(predicted, truth),
		Summary:      summary,
		MissingProba: summary.MissingProba,
	}
	if cfg.Output != "" {
		if err := writeJSON(cfg.Output, report); err != nil {
			return nil, fmt.Errorf("evaluate: %w", err)
		}
	}
	log.Printf("[optimize] evaluate: automation %.3f precision %.3f recall %.3f point IoU %.3f",
		metrics.Automation, metrics.Precision, metrics.Recall, report.PointIoU.Value)
	return report, nil
}

// UpdateConfig labels one production tile with a threshold record.
type UpdateConfig struct {
	Input      string           `json:"input"`
	Output     string           `json:"output"`
	Thresholds string           `json:"thresholds"`
	Options    building.Options `json:"options"`
}

// Update applies the decision pipeline to a tile and writes it back with
// label, detail, group, and review columns appended.
func Update(cfg UpdateConfig) (building.DecisionSummary, error) {
	var zero building.DecisionSummary
	ds, err := ReadTileCSV(cfg.Input)
	if err != nil {
		return zero, fmt.Errorf("update: %w", err)
	}
	rec, err := building.LoadThresholdRecord(cfg.Thresholds, cfg.Options.CrMax)
	if err != nil {
		return zero, fmt.Errorf("update: %w", err)
	}
	arena := ds.Arena()
	summary, err := building.Apply(arena, rec.Thresholds, cfg.Options)
	if err != nil {
		return zero, fmt.Errorf("update: %w", err)
	}
	if err := WriteLabeledTileCSV(cfg.Output, arena); err != nil {
		return zero, fmt.Errorf("update: %w", err)
	}
	log.Printf("[optimize] update: %s -> %s (%d points, %d confirmed, %d refuted, %d unsure)",
		cfg.Input, cfg.Output, summary.Points, summary.Confirmed, summary.Refuted, summary.Unsure)
	return summary, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
