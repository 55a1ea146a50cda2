package optimize

import (
	"sort"
	"time"

	"github.com/ardoise-data/building.review/internal/building"
	"gonum.org/v1/gonum/stat"
)

// Confusion matrix axis order. Rows are ground truth, columns are the
// engine's decision:
//
//	        unsure refuted confirmed
//	unsure     Uu    Ur      Uc
//	not-bldg   Nu    Nr      Nc
//	building   Yu    Yr      Yc
const (
	cmUnsure      = 0
	cmNotBuilding = 1
	cmBuilding    = 2
)

// ConfusionMatrix counts group decisions against group ground truths.
type ConfusionMatrix [3][3]int

func truthRow(t GroupTruth) int {
	switch t {
	case GroupTruthBuilding:
		return cmBuilding
	case GroupTruthNotBuilding:
		return cmNotBuilding
	default:
		return cmUnsure
	}
}

func decisionCol(l building.Label) int {
	switch l {
	case building.Confirmed:
		return 2
	case building.Refuted:
		return 1
	default:
		return 0
	}
}

// Total returns the number of counted groups.
func (cm ConfusionMatrix) Total() int {
	var n int
	for _, row := range cm {
		for _, v := range row {
			n += v
		}
	}
	return n
}

// RowNormalized returns the matrix with each row scaled to sum to 1.
func (cm ConfusionMatrix) RowNormalized() [3][3]float64 {
	var out [3][3]float64
	for r, row := range cm {
		var sum int
		for _, v := range row {
			sum += v
		}
		if sum == 0 {
			continue
		}
		for c, v := range row {
			out[r][c] = float64(v) / float64(sum)
		}
	}
	return out
}

// Metrics scores one set of group decisions against ground truth.
//
// Precision and recall assume a perfect posterior decision for groups
// left unsure: a true building deferred to review is not a miss, so
// precision = (Yu+Yc)/(Yu+Yc+Nc) and recall = (Yu+Yc)/(Yu+Yr+Yc).
type Metrics struct {
	Groups              int             `json:"groups"`
	Confusion           ConfusionMatrix `json:"confusion"`
	ConfusionRowNorm    [3][3]float64   `json:"confusion_row_normalized"`
	Automation          float64         `json:"automation"`
	ProportionUnsure    float64         `json:"proportion_unsure"`
	ProportionRefuted   float64         `json:"proportion_refuted"`
	ProportionConfirmed float64         `json:"proportion_confirmed"`
	Precision           float64         `json:"precision"`
	Recall              float64         `json:"recall"`
	RefutationAccuracy  float64         `json:"refutation_accuracy"`
	ConfirmAccuracy     float64         `json:"confirmation_accuracy"`
}

// ComputeMetrics evaluates decisions against group ground truths. NaN
// ratios (empty denominators) are reported as 0 so objective vectors can
// be compared.
func ComputeMetrics(truths []GroupTruth, decisions []building.Label) Metrics {
	var m Metrics
	m.Groups = len(decisions)
	for i := range decisions {
		m.Confusion[truthRow(truths[i])][decisionCol(decisions[i])]++
	}
	m.ConfusionRowNorm = m.Confusion.RowNormalized()

	total := float64(m.Groups)
	if total == 0 {
		return m
	}

	colSum := func(c int) int {
		return m.Confusion[0][c] + m.Confusion[1][c] + m.Confusion[2][c]
	}
	m.ProportionUnsure = float64(colSum(0)) / total
	m.ProportionRefuted = float64(colSum(1)) / total
	m.ProportionConfirmed = float64(colSum(2)) / total
	m.Automation = m.ProportionRefuted + m.ProportionConfirmed

	if n := colSum(1); n > 0 {
		m.RefutationAccuracy = float64(m.Confusion[cmNotBuilding][1]) / float64(n)
	}
	if n := colSum(2); n > 0 {
		m.ConfirmAccuracy = float64(m.Confusion[cmBuilding][2]) / float64(n)
	}

	yu := m.Confusion[cmBuilding][0]
	yc := m.Confusion[cmBuilding][2]
	nc := m.Confusion[cmNotBuilding][2]
	if tp := yu + yc; tp+nc > 0 {
		m.Precision = float64(tp) / float64(tp+nc)
	}
	if positives := m.Confusion[cmBuilding][0] + m.Confusion[cmBuilding][1] + m.Confusion[cmBuilding][2]; positives > 0 {
		m.Recall = float64(yu+yc) / float64(positives)
	}
	return m
}

// Objectives extracts the maximization vector from the metrics.
func (m Metrics) Objectives() Objectives {
	return Objectives{Automation: m.Automation, Precision: m.Precision, Recall: m.Recall}
}

// IoU is intersection-over-union with its supporting counts.
type IoU struct {
	TruePositive  int     `json:"true_positive"`
	FalseNegative int     `json:"false_negative"`
	FalsePositive int     `json:"false_positive"`
	Value         float64 `json:"iou"`
}

// NewIoU computes the ratio from counts; an empty union yields 0.
func NewIoU(tp, fn, fp int) IoU {
	iou := IoU{TruePositive: tp, FalseNegative: fn, FalsePositive: fp}
	if union := tp + fn + fp; union > 0 {
		iou.Value = float64(tp) / float64(union)
	}
	return iou
}

// IoUFromMasks scores a predicted mask against a truth mask.
func IoUFromMasks(predicted, truth []bool) IoU {
	var tp, fn, fp int
	for i := range predicted {
		switch {
		case predicted[i] && truth[i]:
			tp++
		case truth[i]:
			fn++
		case predicted[i]:
			fp++
		}
	}
	return NewIoU(tp, fn, fp)
}

// CombineIoU merges per-tile IoUs into a total.
func CombineIoU(ious []IoU) IoU {
	var tp, fn, fp int
	for _, i := range ious {
		tp += i.TruePositive
		fn += i.FalseNegative
		fp += i.FalsePositive
	}
	return NewIoU(tp, fn, fp)
}

// Report is the persisted evaluation record: group metrics, the
// point-level IoU of the final confirmed mask, and supporting counts.
type Report struct {
	CreatedAt    time.Time                `json:"created_at"`
	DatasetPath  string                   `json:"dataset_path,omitempty"`
	Thresholds   building.ThresholdSet    `json:"thresholds"`
	Metrics      Metrics                  `json:"metrics"`
	PointIoU     IoU                      `json:"point_iou"`
	Summary      building.DecisionSummary `json:"decision_summary"`
	MissingProba int                      `json:"missing_probability_warnings"`
}

// ObjectiveSummary aggregates one objective across the front.
type ObjectiveSummary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Q25    float64 `json:"q25"`
	Q75    float64 `json:"q75"`
}

// FrontSummary describes the spread of the returned Pareto front.
type FrontSummary struct {
	Trials     int              `json:"trials"`
	Automation ObjectiveSummary `json:"automation"`
	Precision  ObjectiveSummary `json:"precision"`
	Recall     ObjectiveSummary `json:"recall"`
}

// SummarizeFront computes objective statistics over the front's trials.
func SummarizeFront(front *Front) FrontSummary {
	trials := front.Trials()
	s := FrontSummary{Trials: len(trials)}
	if len(trials) == 0 {
		return s
	}

	collect := func(get func(Objectives) float64) ObjectiveSummary {
		values := make([]float64, len(trials))
		for i, t := range trials {
			values[i] = get(t.Objectives)
		}
		// gonum's Quantile requires sorted input.
		sort.Float64s(values)
		return ObjectiveSummary{
			Mean:   stat.Mean(values, nil),
			Median: stat.Quantile(0.5, stat.Empirical, values, nil),
			Q25:    stat.Quantile(0.25, stat.Empirical, values, nil),
			Q75:    stat.Quantile(0.75, stat.Empirical, values, nil),
		}
	}
	s.Automation = collect(func(o Objectives) float64 { return o.Automation })
	s.Precision = collect(func(o Objectives) float64 { return o.Precision })
	s.Recall = collect(func(o Objectives) float64 { return o.Recall })
	return s
}
