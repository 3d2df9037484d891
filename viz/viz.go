// Package viz renders filtering output with gonum plot: predicted
// means with their uncertainty band against the observed series.
package viz

import (
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/go-statespace/statespace"
	"github.com/go-statespace/statespace/belief"
)

// NewPredictionPlot plots one group's predictions for one measure:
// the predicted mean as a line, the 95% predictive interval as a
// shaded band and, when obs is not nil, the observations as a scatter.
// It returns error if the output carries no measurement-space
// predictions, the group or measure is out of range, or the
// observation dimensions do not match.
func NewPredictionPlot(out *belief.OverTime, obs *statespace.Series, group int, measure string) (*plot.Plot, error) {
	if out == nil {
		return nil, statespace.Structuralf("no predictions supplied")
	}
	if group < 0 || group >= out.Groups() {
		return nil, statespace.Dimensionf("group %d out of range [0, %d)", group, out.Groups())
	}

	mIdx := -1
	for i, m := range out.Measures() {
		if m == measure {
			mIdx = i
		}
	}
	if mIdx < 0 {
		return nil, statespace.Structuralf("unknown measure %q", measure)
	}

	means, err := out.MeasurementMeans()
	if err != nil {
		return nil, err
	}
	vars, err := out.MeasurementVars()
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = measure
	p.X.Label.Text = "timestep"
	p.Y.Label.Text = measure

	legend := plot.NewLegend()
	legend.Top = true
	p.Legend = legend

	steps := out.Len()

	// 95% band: mean +/- 1.96 std
	band := make(plotter.XYs, 2*steps)
	for t := 0; t < steps; t++ {
		m := means.At(group, t, mIdx)
		s := 1.96 * math.Sqrt(vars.At(group, t, mIdx))
		band[t] = plotter.XY{X: float64(t), Y: m + s}
		band[2*steps-1-t] = plotter.XY{X: float64(t), Y: m - s}
	}
	poly, err := plotter.NewPolygon(band)
	if err != nil {
		return nil, err
	}
	poly.Color = color.RGBA{R: 130, G: 170, B: 230, A: 80}
	poly.LineStyle.Width = 0
	p.Add(poly)
	p.Legend.Add("95% interval", poly)

	meanPts := make(plotter.XYs, steps)
	for t := 0; t < steps; t++ {
		meanPts[t] = plotter.XY{X: float64(t), Y: means.At(group, t, mIdx)}
	}
	meanLine, err := plotter.NewLine(meanPts)
	if err != nil {
		return nil, err
	}
	meanLine.Color = color.RGBA{R: 30, G: 90, B: 200, A: 255}
	p.Add(meanLine)
	p.Legend.Add("predicted", meanLine)

	if obs != nil {
		og, ots, oms := obs.Dims()
		if og != out.Groups() || ots != steps || oms != len(out.Measures()) {
			return nil, statespace.Dimensionf("observed series is [%d x %d x %d], predictions are [%d x %d x %d]",
				og, ots, oms, out.Groups(), steps, len(out.Measures()))
		}

		var obsPts plotter.XYs
		for t := 0; t < steps; t++ {
			if obs.IsMissing(group, t, mIdx) {
				continue
			}
			obsPts = append(obsPts, plotter.XY{X: float64(t), Y: obs.At(group, t, mIdx)})
		}
		scatter, err := plotter.NewScatter(obsPts)
		if err != nil {
			return nil, err
		}
		scatter.GlyphStyle.Color = color.RGBA{R: 200, G: 60, B: 60, A: 255}
		scatter.GlyphStyle.Radius = vg.Points(2)
		p.Add(scatter)
		p.Legend.Add("observed", scatter)
	}

	return p, nil
}
