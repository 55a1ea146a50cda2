package optimize

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/ardoise-data/building.review/internal/building"
)

// GroundTruth relates a point to the rule-based classification it is
// meant to correct: a candidate point is either a true or a false
// positive of the geometric rule, and a missed building point is a false
// negative.
type GroundTruth uint8

const (
	TruthNone GroundTruth = iota
	TruthTruePositive
	TruthFalsePositive
	TruthFalseNegative
)

// String returns the truth code as written in tile CSVs.
func (g GroundTruth) String() string {
	switch g {
	case TruthTruePositive:
		return "tp"
	case TruthFalsePositive:
		return "fp"
	case TruthFalseNegative:
		return "fn"
	default:
		return ""
	}
}

func parseGroundTruth(s string) (GroundTruth, error) {
	switch s {
	case "":
		return TruthNone, nil
	case "tp":
		return TruthTruePositive, nil
	case "fp":
		return TruthFalsePositive, nil
	case "fn":
		return TruthFalseNegative, nil
	default:
		return TruthNone, fmt.Errorf("unknown truth code %q", s)
	}
}

// LabelledPoint is one dataset point: the engine's input fields plus the
// ground-truth relation used for optimization and evaluation.
type LabelledPoint struct {
	X, Y, Z     float64
	Probability float64
	Candidate   bool
	Overlay     bool
	Truth       GroundTruth
}

// Dataset is an immutable labelled point set shared by all trials.
type Dataset struct {
	Points []LabelledPoint
}

// Arena converts the dataset into a point arena for the decision engine.
func (d *Dataset) Arena() *building.PointArena {
	arena := building.NewPointArena(len(d.Points))
	for _, lp := range d.Points {
		arena.Add(building.Point{
			X: lp.X, Y: lp.Y, Z: lp.Z,
			Probability: lp.Probability,
			IsCandidate: lp.Candidate,
			IsOverlayed: lp.Overlay,
		})
	}
	return arena
}

// HasGroundTruth reports whether any point carries a truth code.
func (d *Dataset) HasGroundTruth() bool {
	for _, p := range d.Points {
		if p.Truth != TruthNone {
			return true
		}
	}
	return false
}

// tileColumns is the input tile CSV header. The truth column is optional
// outside the prepare phase.
var tileColumns = []string{"x", "y", "z", "candidate", "overlay", "probability", "truth"}

// ReadTileCSV reads a labelled tile. Header order must match
// tileColumns, with the truth column optional. An empty probability
// field becomes NaN, the engine's missing-value marker.
func ReadTileCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tile: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read tile header: %w", err)
	}
	if len(header) < 6 || len(header) > len(tileColumns) {
		return nil, fmt.Errorf("tile %s: expected columns %v, got %v", path, tileColumns, header)
	}
	for i, col := range header {
		if col != tileColumns[i] {
			return nil, fmt.Errorf("tile %s: column %d is %q, want %q", path, i, col, tileColumns[i])
		}
	}
	hasTruth := len(header) == len(tileColumns)

	ds := &Dataset{}
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tile %s line %d: %w", path, line, err)
		}
		p, err := parseTileRecord(rec, hasTruth)
		if err != nil {
			return nil, fmt.Errorf("tile %s line %d: %w", path, line, err)
		}
		ds.Points = append(ds.Points, p)
	}
	return ds, nil
}

func parseTileRecord(rec []string, hasTruth bool) (LabelledPoint, error) {
	var p LabelledPoint
	want := 6
	if hasTruth {
		want = 7
	}
	if len(rec) != want {
		return p, fmt.Errorf("expected %d fields, got %d", want, len(rec))
	}

	var err error
	if p.X, err = strconv.ParseFloat(rec[0], 64); err != nil {
		return p, fmt.Errorf("x: %w", err)
	}
	if p.Y, err = strconv.ParseFloat(rec[1], 64); err != nil {
		return p, fmt.Errorf("y: %w", err)
	}
	if p.Z, err = strconv.ParseFloat(rec[2], 64); err != nil {
		return p, fmt.Errorf("z: %w", err)
	}
	if p.Candidate, err = parseFlag(rec[3]); err != nil {
		return p, fmt.Errorf("candidate: %w", err)
	}
	if p.Overlay, err = parseFlag(rec[4]); err != nil {
		return p, fmt.Errorf("overlay: %w", err)
	}
	if rec[5] == "" {
		p.Probability = math.NaN()
	} else if p.Probability, err = strconv.ParseFloat(rec[5], 64); err != nil {
		return p, fmt.Errorf("probability: %w", err)
	}
	if hasTruth {
		if p.Truth, err = parseGroundTruth(rec[6]); err != nil {
			return p, err
		}
	}
	return p, nil
}

func parseFlag(s string) (bool, error) {
	switch s {
	case "0", "":
		return false, nil
	case "1":
		return true, nil
	default:
		return strconv.ParseBool(s)
	}
}

// WriteLabeledTileCSV writes the decision output for a tile: the input
// columns plus label, detail, group, and review attributes for the
// persistence collaborator.
func WriteLabeledTileCSV(path string, arena *building.PointArena) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output tile: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"x", "y", "z", "candidate", "overlay", "probability", "label", "detail", "group", "review"}
	if err := w.Write(header); err != nil {
		return err
	}

	flag := func(b bool) string {
		if b {
			return "1"
		}
		return "0"
	}
	for i := range arena.Points {
		p := &arena.Points[i]
		proba := ""
		if !math.IsNaN(p.Probability) {
			proba = strconv.FormatFloat(p.Probability, 'g', -1, 64)
		}
		rec := []string{
			strconv.FormatFloat(p.X, 'g', -1, 64),
			strconv.FormatFloat(p.Y, 'g', -1, 64),
			strconv.FormatFloat(p.Z, 'g', -1, 64),
			flag(p.IsCandidate),
			flag(p.IsOverlayed),
			proba,
			p.Label.String(),
			p.Detail.String(),
			strconv.FormatInt(int64(p.GroupID), 10),
			strconv.FormatInt(int64(p.ReviewID), 10),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// MinFrac sets the true-positive fraction cut points that turn a group's
// member truths into a group-level ground truth class.
type MinFrac struct {
	TruePositive  float64 `json:"true_positive"`
	FalsePositive float64 `json:"false_positive"`
}

// DefaultMinFrac matches the labelling campaign the thresholds were
// originally tuned on: >= 95% true positives is a building, < 5% is not,
// anything between is ambiguous.
func DefaultMinFrac() MinFrac {
	return MinFrac{TruePositive: 0.95, FalsePositive: 0.05}
}

// GroupTruth is the ground-truth class of one candidate group.
type GroupTruth uint8

const (
	GroupTruthUnsure GroupTruth = iota
	GroupTruthNotBuilding
	GroupTruthBuilding
)

// GroupSample carries everything a trial needs to re-decide one group:
// member probabilities and overlay flags, plus the derived ground truth.
type GroupSample struct {
	Probabilities []float64
	Overlays      []bool
	Truth         GroupTruth
}

// deriveGroupTruth classifies a group from the fraction of its members
// labelled true positive.
func deriveGroupTruth(truths []GroundTruth, mf MinFrac) GroupTruth {
	var tp int
	for _, t := range truths {
		if t == TruthTruePositive {
			tp++
		}
	}
	frac := float64(tp) / float64(len(truths))
	switch {
	case frac >= mf.TruePositive:
		return GroupTruthBuilding
	case frac < mf.FalsePositive:
		return GroupTruthNotBuilding
	default:
		return GroupTruthUnsure
	}
}

// BuildGroupSamples clusters the dataset's candidate points once and
// extracts per-group samples. Clustering does not depend on thresholds,
// so trials share these samples. Fails fast when the dataset is empty or
// carries no ground truth — there would be nothing to score against.
func BuildGroupSamples(ds *Dataset, policy building.AdjacencyPolicy, minGroupPoints int, mf MinFrac) ([]GroupSample, error) {
	if ds == nil || len(ds.Points) == 0 {
		return nil, fmt.Errorf("labelled dataset is empty")
	}
	if !ds.HasGroundTruth() {
		return nil, fmt.Errorf("labelled dataset has no ground-truth column; cannot evaluate objectives")
	}

	arena := ds.Arena()
	candidates := arena.CandidateIndices()
	if len(candidates) == 0 {
		return nil, fmt.Errorf("labelled dataset has no candidate building points")
	}

	groups, err := building.Cluster(arena, candidates, policy)
	if err != nil {
		return nil, err
	}

	samples := make([]GroupSample, 0, len(groups))
	for _, g := range groups {
		if g.Size() < minGroupPoints {
			continue
		}
		s := GroupSample{
			Probabilities: make([]float64, g.Size()),
			Overlays:      make([]bool, g.Size()),
		}
		truths := make([]GroundTruth, g.Size())
		for i, idx := range g.Members {
			lp := ds.Points[idx]
			s.Probabilities[i] = lp.Probability
			s.Overlays[i] = lp.Overlay
			truths[i] = lp.Truth
		}
		s.Truth = deriveGroupTruth(truths, mf)
		samples = append(samples, s)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no candidate groups of size >= %d in labelled dataset", minGroupPoints)
	}
	return samples, nil
}
