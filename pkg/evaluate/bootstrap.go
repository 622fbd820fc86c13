// Package evaluate scores fitted models on the test set, bootstraps confidence
// intervals and compares models with rank-sum tests.
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kssrr/sl-spam-classification/pkg/data"
	"github.com/kssrr/sl-spam-classification/pkg/logger"
	"github.com/kssrr/sl-spam-classification/pkg/model"
	"github.com/kssrr/sl-spam-classification/pkg/stats"
)

var (
	// ErrLength is returned when label slices differ in length.
	ErrLength = errors.New("evaluate: label slices differ in length")
	// ErrNoModels is returned when Bootstrap is called without models.
	ErrNoModels = errors.New("evaluate: no models to evaluate")
)

// Score compares predicted labels with the truth, spam being the positive class.
func Score(yTrue, yPred []int) (model.Metrics, error) {
	if len(yTrue) != len(yPred) {
		return model.Metrics{}, ErrLength
	}
	return model.Score(yTrue, yPred), nil
}

// Entry is a named fitted model.
type Entry struct {
	Name   string
	Scorer model.Scorer
}

// Options controls the bootstrap.
type Options struct {
	Resamples  int
	Confidence float64 // e.g. 0.95 for 2.5/97.5 percentiles
	Workers    int
	Seed       int64 // resample b draws from Seed + b
}

// Interval summarizes the bootstrap distribution of one metric.
type Interval struct {
	Estimate  float64 // on the full test set
	Mean      float64
	Lower     float64
	Upper     float64
	Undefined int       // resamples where the metric was NaN
	Samples   []float64 // one value per resample, NaN included
}

// ModelReport is the test-set evaluation of one model.
type ModelReport struct {
	Name        string
	Point       model.Metrics
	Intervals   map[string]Interval
	Proba       []float64
	Predictions []int
}

// Result is the outcome of a bootstrap over several models.
type Result struct {
	Resamples  int
	Confidence float64
	Models     []ModelReport
}

// Model returns the report of the named model.
func (r *Result) Model(name string) (ModelReport, bool) {
	for _, m := range r.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelReport{}, false
}

// Bootstrap predicts test once per model, then scores every model on the same
// stratified resamples (each class resampled to its own size with replacement).
// Each resample b uses its own rng seeded Seed + b, so results do not depend on Workers.
func Bootstrap(ctx context.Context, models []Entry, test *data.Dataset, opts Options) (*Result, error) {
	if len(models) == 0 {
		return nil, ErrNoModels
	}
	if test.Len() == 0 {
		return nil, fmt.Errorf("evaluate: %w", data.ErrEmpty)
	}
	if opts.Resamples < 1 {
		return nil, fmt.Errorf("evaluate: resamples must be positive, got %d", opts.Resamples)
	}
	log := logger.Named("bootstrap")
	start := time.Now()

	res := &Result{Resamples: opts.Resamples, Confidence: opts.Confidence, Models: make([]ModelReport, len(models))}
	for i, m := range models {
		proba := m.Scorer.PredictProba(test.X)
		pred := model.BinaryPredFromProba(proba, 0.5)
		res.Models[i] = ModelReport{
			Name:        m.Name,
			Point:       model.Score(test.Y, pred),
			Proba:       proba,
			Predictions: pred,
		}
	}

	byClass := data.IndicesByClass(test.Y)
	classes := [][]int{byClass[data.Ham], byClass[data.Spam]}

	// samples[m][metric][b]
	samples := make([][][]float64, len(models))
	for m := range samples {
		samples[m] = make([][]float64, len(model.MetricNames))
		for k := range samples[m] {
			samples[m][k] = make([]float64, opts.Resamples)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for b := 0; b < opts.Resamples; b++ {
		b := b
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(opts.Seed + int64(b)))
			idx := stratifiedResample(classes, rng)

			yTrue := make([]int, len(idx))
			for i, j := range idx {
				yTrue[i] = test.Y[j]
			}
			yPred := make([]int, len(idx))
			for m, rep := range res.Models {
				for i, j := range idx {
					yPred[i] = rep.Predictions[j]
				}
				for k, v := range model.Score(yTrue, yPred).Values() {
					samples[m][k][b] = v
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lowerPct := (1 - opts.Confidence) / 2 * 100
	upperPct := 100 - lowerPct
	for m := range res.Models {
		rep := &res.Models[m]
		point := rep.Point.Values()
		rep.Intervals = make(map[string]Interval, len(model.MetricNames))
		for k, name := range model.MetricNames {
			kept, undefined := stats.DropNaN(samples[m][k])
			iv := Interval{
				Estimate:  point[k],
				Mean:      math.NaN(),
				Lower:     math.NaN(),
				Upper:     math.NaN(),
				Undefined: undefined,
				Samples:   samples[m][k],
			}
			if len(kept) > 0 {
				iv.Mean = stats.Mean(kept)
				iv.Lower = stats.Percentile(kept, lowerPct)
				iv.Upper = stats.Percentile(kept, upperPct)
			}
			rep.Intervals[name] = iv
		}
		log.Info("model evaluated",
			zap.String("model", rep.Name),
			zap.Float64("precision", rep.Point.Precision),
			zap.Float64("recall", rep.Point.Recall),
			zap.Float64("f1", rep.Point.F1),
			zap.Float64("accuracy", rep.Point.Accuracy))
	}

	log.Info("bootstrap finished",
		zap.Int("models", len(models)),
		zap.Int("resamples", opts.Resamples),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// stratifiedResample draws, per class, as many indices as the class has, with replacement.
func stratifiedResample(classes [][]int, rng *rand.Rand) []int {
	total := 0
	for _, c := range classes {
		total += len(c)
	}
	out := make([]int, 0, total)
	for _, c := range classes {
		for range c {
			out = append(out, c[rng.Intn(len(c))])
		}
	}
	return out
}

// MetricRow is one (model, metric) line of the results table.
type MetricRow struct {
	Model     string
	Metric    string
	Estimate  float64
	Mean      float64
	Lower     float64
	Upper     float64
	Undefined int
}

// Rows flattens the result in model order, then metric order.
func (r *Result) Rows() []MetricRow {
	rows := make([]MetricRow, 0, len(r.Models)*len(model.MetricNames))
	for _, m := range r.Models {
		for _, name := range model.MetricNames {
			iv := m.Intervals[name]
			rows = append(rows, MetricRow{
				Model:     m.Name,
				Metric:    name,
				Estimate:  iv.Estimate,
				Mean:      iv.Mean,
				Lower:     iv.Lower,
				Upper:     iv.Upper,
				Undefined: iv.Undefined,
			})
		}
	}
	return rows
}
