package optimize

import (
	"fmt"
	"image/color"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// RenderFrontHTML writes an interactive scatter of the Pareto front:
// automation on X, precision on Y, recall driving the colour ramp.
// Tooltips carry the full threshold set so a reviewer can read a
// candidate operating point straight off the chart.
func RenderFrontHTML(w io.Writer, front *Front, c Constraints) error {
	trials := front.Trials()
	data := make([]opts.ScatterData, 0, len(trials))
	minRecall := 1.0
	for _, t := range trials {
		o := t.Objectives
		if o.Recall < minRecall {
			minRecall = o.Recall
		}
		name := fmt.Sprintf("trial %d: c1=%.3f c2=%.3f r1=%.3f r2=%.3f o1=%.3f e1=%.3f e2=%.3f cr=%.3f",
			t.Seq, t.Thresholds.C1, t.Thresholds.C2, t.Thresholds.R1, t.Thresholds.R2,
			t.Thresholds.O1, t.Thresholds.E1, t.Thresholds.E2, t.Thresholds.Cr)
		data = append(data, opts.ScatterData{Name: name, Value: []interface{}{o.Automation, o.Precision, o.Recall}})
	}
	if len(data) == 0 {
		minRecall = 0
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Threshold Pareto Front", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Pareto Front",
			Subtitle: fmt.Sprintf("trials=%d floors: automation>=%.2f precision>=%.2f recall>=%.2f", len(data), c.MinAutomation, c.MinPrecision, c.MinRecall),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: 1, Name: "Automation", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1, Name: "Precision", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(minRecall),
			Max:        1,
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}},
		}),
	)
	scatter.AddSeries("front", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("render front chart: %w", err)
	}
	return nil
}

// RenderHistoryHTML writes an interactive line chart of the trial
// history: each objective over the proposal sequence, so a reviewer can
// see the sampler converge (or stall). Failed trials plot as gaps.
func RenderHistoryHTML(w io.Writer, history []Trial) error {
	seqs := make([]int, 0, len(history))
	automation := make([]opts.LineData, 0, len(history))
	precision := make([]opts.LineData, 0, len(history))
	recall := make([]opts.LineData, 0, len(history))
	for _, t := range history {
		seqs = append(seqs, t.Seq)
		if t.Status != TrialOK {
			automation = append(automation, opts.LineData{Value: nil})
			precision = append(precision, opts.LineData{Value: nil})
			recall = append(recall, opts.LineData{Value: nil})
			continue
		}
		automation = append(automation, opts.LineData{Value: t.Objectives.Automation})
		precision = append(precision, opts.LineData{Value: t.Objectives.Precision})
		recall = append(recall, opts.LineData{Value: t.Objectives.Recall})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Trial History", Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Trial History",
			Subtitle: fmt.Sprintf("%d trials", len(history)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Trial", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(seqs).
		AddSeries("automation", automation).
		AddSeries("precision", precision).
		AddSeries("recall", recall)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render history chart: %w", err)
	}
	return nil
}

// SaveFrontPlot writes a static PNG of the front for run archives:
// automation vs precision, recall encoded as glyph radius. The feasible
// region above the constraint floors is marked with reference lines.
func SaveFrontPlot(path string, front *Front, c Constraints) error {
	trials := front.Trials()

	p := plot.New()
	p.Title.Text = "Pareto Front"
	p.X.Label.Text = "Automation"
	p.Y.Label.Text = "Precision"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	pts := make(plotter.XYs, len(trials))
	recalls := make([]float64, len(trials))
	for i, t := range trials {
		pts[i] = plotter.XY{X: t.Objectives.Automation, Y: t.Objectives.Precision}
		recalls[i] = t.Objectives.Recall
	}

	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("front scatter: %w", err)
	}
	sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		// Radius 2pt at recall 0 up to 6pt at recall 1.
		return draw.GlyphStyle{
			Color:  color.RGBA{R: 31, G: 158, B: 137, A: 255},
			Radius: vg.Points(2 + 4*recalls[i]),
			Shape:  draw.CircleGlyph{},
		}
	}
	p.Add(sc)
	p.Legend.Add("trial (radius = recall)", sc)
	p.Legend.Top = true
	p.Legend.Left = true

	grey := color.RGBA{R: 158, G: 158, B: 158, A: 255}
	autoFloor, err := plotter.NewLine(plotter.XYs{{X: c.MinAutomation, Y: 0}, {X: c.MinAutomation, Y: 1}})
	if err != nil {
		return fmt.Errorf("automation floor line: %w", err)
	}
	autoFloor.Color = grey
	autoFloor.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(autoFloor)

	precFloor, err := plotter.NewLine(plotter.XYs{{X: 0, Y: c.MinPrecision}, {X: 1, Y: c.MinPrecision}})
	if err != nil {
		return fmt.Errorf("precision floor line: %w", err)
	}
	precFloor.Color = grey
	precFloor.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(precFloor)

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save front plot: %w", err)
	}
	return nil
}
