package report

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/kssrr/sl-spam-classification/pkg/data"
	"github.com/kssrr/sl-spam-classification/pkg/evaluate"
	"github.com/kssrr/sl-spam-classification/pkg/explore"
	"github.com/kssrr/sl-spam-classification/pkg/nn"
)

// ErrNothingToPlot is returned when every value of a plot would be undefined.
var ErrNothingToPlot = errors.New("report: nothing to plot")

var (
	hamColor  = color.RGBA{R: 50, G: 50, B: 255, A: 255}
	spamColor = color.RGBA{R: 255, A: 255}
	valColor  = color.RGBA{R: 255, G: 140, A: 255}
)

// errPoints pairs point estimates with their asymmetric error offsets.
type errPoints struct {
	plotter.XYs
	plotter.YErrors
}

// PlotIntervals draws each model's test estimate of metric with its bootstrap interval.
// Models whose estimate is undefined are left as empty slots.
func PlotIntervals(res *evaluate.Result, metric, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Test %s (%.0f%% bootstrap interval)", metric, 100*res.Confidence)
	p.Y.Label.Text = metric

	names := make([]string, 0, len(res.Models))
	var pts errPoints
	for i, m := range res.Models {
		names = append(names, m.Name)
		iv, ok := m.Intervals[metric]
		if !ok || math.IsNaN(iv.Estimate) || math.IsNaN(iv.Lower) || math.IsNaN(iv.Upper) {
			continue
		}
		pts.XYs = append(pts.XYs, plotter.XY{X: float64(i), Y: iv.Estimate})
		pts.YErrors = append(pts.YErrors, struct{ Low, High float64 }{
			Low:  math.Max(0, iv.Estimate-iv.Lower),
			High: math.Max(0, iv.Upper-iv.Estimate),
		})
	}
	if len(pts.XYs) == 0 {
		return fmt.Errorf("%s intervals: %w", metric, ErrNothingToPlot)
	}

	bars, err := plotter.NewYErrorBars(pts)
	if err != nil {
		return err
	}
	bars.LineStyle.Width = vg.Points(1.5)
	s, err := plotter.NewScatter(pts.XYs)
	if err != nil {
		return err
	}
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Radius = vg.Points(3)
	s.GlyphStyle.Color = hamColor

	p.Add(bars, s, plotter.NewGrid())
	p.NominalX(names...)
	p.X.Min, p.X.Max = -0.5, float64(len(names))-0.5

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// PlotLoss draws the train and validation loss per epoch.
func PlotLoss(hist *nn.History, path string) error {
	if len(hist.Epochs) == 0 {
		return fmt.Errorf("loss curve: %w", ErrNothingToPlot)
	}

	p := plot.New()
	p.Title.Text = "Neural network loss"
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = "Binary cross-entropy"

	train := make(plotter.XYs, len(hist.Epochs))
	val := make(plotter.XYs, len(hist.Epochs))
	for i, e := range hist.Epochs {
		train[i] = plotter.XY{X: float64(e.Epoch), Y: e.TrainLoss}
		val[i] = plotter.XY{X: float64(e.Epoch), Y: e.ValLoss}
	}

	tl, err := plotter.NewLine(train)
	if err != nil {
		return err
	}
	tl.Color = hamColor
	tl.Width = vg.Points(2)

	vl, err := plotter.NewLine(val)
	if err != nil {
		return err
	}
	vl.Color = valColor
	vl.Width = vg.Points(2)

	p.Add(tl, vl)
	p.Legend.Add("train", tl)
	p.Legend.Add("validation", vl)
	p.Legend.Top = true

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// PlotPCA scatters the first two principal components, colored by class.
func PlotPCA(proj *explore.Projection, path string) error {
	var ham, spam plotter.XYs
	for i, pt := range proj.Points {
		xy := plotter.XY{X: pt[0], Y: pt[1]}
		if proj.Labels[i] == data.Spam {
			spam = append(spam, xy)
		} else {
			ham = append(ham, xy)
		}
	}
	if len(ham)+len(spam) == 0 {
		return fmt.Errorf("pca: %w", ErrNothingToPlot)
	}

	p := plot.New()
	p.Title.Text = "PCA projection"
	p.X.Label.Text = axisLabel("PC1", proj.ExplainedRatio, 0)
	p.Y.Label.Text = axisLabel("PC2", proj.ExplainedRatio, 1)

	for _, group := range []struct {
		name  string
		pts   plotter.XYs
		color color.RGBA
	}{
		{"ham", ham, hamColor},
		{"spam", spam, spamColor},
	} {
		if len(group.pts) == 0 {
			continue
		}
		s, err := plotter.NewScatter(group.pts)
		if err != nil {
			return err
		}
		s.GlyphStyle.Color = group.color
		s.GlyphStyle.Shape = draw.CrossGlyph{}
		s.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(s)
		p.Legend.Add(group.name, s)
	}

	return p.Save(5*vg.Inch, 5*vg.Inch, path)
}

func axisLabel(name string, ratio []float64, i int) string {
	if i >= len(ratio) {
		return name
	}
	return fmt.Sprintf("%s (%.1f%%)", name, 100*ratio[i])
}
