package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// RenderPairBarChart writes an HTML bar chart of the lowest-probability
// route pairs. limit caps the number of bars; the aggregates are already
// sorted worst-first.
func RenderPairBarChart(w io.Writer, aggs []Aggregate, limit int) error {
	total := len(aggs)
	if limit > 0 && len(aggs) > limit {
		aggs = aggs[:limit]
	}

	labels := make([]string, 0, len(aggs))
	data := make([]opts.BarData, 0, len(aggs))
	for _, a := range aggs {
		labels = append(labels, a.RoutePair)
		data = append(data, opts.BarData{Value: a.MeanProb})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Route Pair On-Time Risk", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Route Pair On-Time Probability", Subtitle: fmt.Sprintf("lowest %d of %d pairs", len(labels), total)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "route pair", AxisLabel: &opts.AxisLabel{Rotate: 45, Show: opts.Bool(true)}}),
		charts.WithYAxisOpts(opts.YAxis{Name: "mean prob", Min: 0, Max: 1}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("mean on-time probability", data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("failed to render route pair bar chart: %w", err)
	}
	return nil
}

// SaveProbHistogram writes a PNG histogram of prediction probabilities.
func SaveProbHistogram(preds []Prediction, bins int, path string) error {
	vals := make(plotter.Values, len(preds))
	for i, pr := range preds {
		vals[i] = pr.Prob
	}

	p := plot.New()
	p.Title.Text = "Predicted On-Time Probability"
	p.X.Label.Text = "probability"
	p.Y.Label.Text = "pairs"

	h, err := plotter.NewHist(vals, bins)
	if err != nil {
		return fmt.Errorf("failed to build probability histogram: %w", err)
	}
	p.Add(h)

	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save probability histogram: %w", err)
	}
	return nil
}
