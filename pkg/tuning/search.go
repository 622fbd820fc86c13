package tuning

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kssrr/sl-spam-classification/pkg/data"
	"github.com/kssrr/sl-spam-classification/pkg/logger"
	"github.com/kssrr/sl-spam-classification/pkg/model"
	"github.com/kssrr/sl-spam-classification/pkg/split"
	"github.com/kssrr/sl-spam-classification/pkg/stats"
)

// Prepare turns the raw training part and held-out part of one fold into the sets a model
// is fit and scored on. Anything it learns must come from fit alone.
type Prepare func(fit, held *data.Dataset, seed int64) (*data.Dataset, *data.Dataset, error)

// Options controls a search.
type Options struct {
	Folds   int
	Metric  string // selection metric, one of model.MetricNames
	Workers int    // concurrent (configuration, fold) fits; <1 means 1
	Seed    int64  // fold assignment and per-task model seeds
	// Prepare, when set, runs once per fold with seed Seed + fold.
	Prepare Prepare
}

// Summary is the mean and standard error of one metric across folds.
type Summary struct {
	Mean      float64
	StdErr    float64
	Undefined int // folds where the metric was NaN
}

// ConfigScore is the cross-validated performance of one configuration.
type ConfigScore struct {
	Index   int
	Params  model.Params
	Metrics map[string]Summary
}

// Result holds every configuration in enumeration order and the selected one.
type Result struct {
	Family string
	Metric string
	Best   ConfigScore
	Rows   []ConfigScore
}

// Search evaluates every configuration of grid on every stratified fold of train.
// Folds are drawn from train as given, so train should be the raw training part; per-fold
// preprocessing belongs in Options.Prepare. The (configuration c, fold f) model is seeded with Seed + c*1000 + f, so results do not
// depend on scheduling. With one fold every configuration is fit and scored on all of train.
// The best configuration has the highest mean selection metric; ties keep the earlier one.
func Search(ctx context.Context, family string, build model.Builder, grid Grid, train *data.Dataset, opts Options) (*Result, error) {
	if !validMetric(opts.Metric) {
		return nil, fmt.Errorf("tuning: unknown selection metric %q", opts.Metric)
	}
	configs, err := grid.Configurations()
	if err != nil {
		return nil, err
	}
	folds, err := split.StratifiedKFold(train.Y, opts.Folds, rand.New(rand.NewSource(opts.Seed)))
	if err != nil {
		return nil, fmt.Errorf("tuning: %w", err)
	}

	log := logger.Named("search").With(zap.String("family", family))
	log.Info("grid search started",
		zap.Int("configurations", len(configs)),
		zap.Int("folds", folds.K()))
	start := time.Now()

	k := folds.K()
	fitSets := make([]*data.Dataset, k)
	heldSets := make([]*data.Dataset, k)
	for f := 0; f < k; f++ {
		fitSets[f] = train.Subset(folds.TrainIndices(f))
		heldSets[f] = train.Subset(folds.HoldOut(f))
		if opts.Prepare == nil {
			continue
		}
		fitSets[f], heldSets[f], err = opts.Prepare(fitSets[f], heldSets[f], opts.Seed+int64(f))
		if err != nil {
			return nil, fmt.Errorf("tuning: preparing fold %d: %w", f, err)
		}
	}

	// scores[c][f] holds the metrics of configuration c on fold f
	scores := make([][]model.Metrics, len(configs))
	for c := range scores {
		scores[c] = make([]model.Metrics, k)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for c := range configs {
		for f := 0; f < k; f++ {
			c, f := c, f
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				clf, err := build(configs[c], opts.Seed+int64(c)*1000+int64(f))
				if err != nil {
					return fmt.Errorf("tuning: config %d (%s): %w", c, configs[c], err)
				}
				if err := clf.Fit(fitSets[f].X, fitSets[f].Y); err != nil {
					return fmt.Errorf("tuning: config %d (%s) fold %d: %w", c, configs[c], f, err)
				}
				held := heldSets[f]
				scores[c][f] = model.Score(held.Y, clf.Predict(held.X))
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Family: family, Metric: opts.Metric, Rows: make([]ConfigScore, len(configs))}
	for c, params := range configs {
		res.Rows[c] = ConfigScore{Index: c, Params: params, Metrics: aggregate(scores[c])}
	}
	res.Best = selectBest(res.Rows, opts.Metric)

	log.Info("grid search finished",
		zap.String("best", res.Best.Params.String()),
		zap.Float64(opts.Metric, res.Best.Metrics[opts.Metric].Mean),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// aggregate summarizes per-fold metrics; NaN folds are excluded and counted.
func aggregate(folds []model.Metrics) map[string]Summary {
	out := make(map[string]Summary, len(model.MetricNames))
	for mi, name := range model.MetricNames {
		vals := make([]float64, len(folds))
		for f, m := range folds {
			vals[f] = m.Values()[mi]
		}
		kept, undefined := stats.DropNaN(vals)
		s := Summary{Mean: math.NaN(), Undefined: undefined}
		if len(kept) > 0 {
			s.Mean = stats.Mean(kept)
			s.StdErr = stats.StdErr(kept)
		}
		out[name] = s
	}
	return out
}

// selectBest returns the first row with the highest mean metric; NaN means never win.
func selectBest(rows []ConfigScore, metric string) ConfigScore {
	best := rows[0]
	for _, r := range rows[1:] {
		m, b := r.Metrics[metric].Mean, best.Metrics[metric].Mean
		if !math.IsNaN(m) && (math.IsNaN(b) || m > b) {
			best = r
		}
	}
	return best
}

func validMetric(name string) bool {
	for _, m := range model.MetricNames {
		if m == name {
			return true
		}
	}
	return false
}
