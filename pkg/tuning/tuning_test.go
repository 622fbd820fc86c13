package tuning_test

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kssrr/sl-spam-classification/pkg/data"
	"github.com/kssrr/sl-spam-classification/pkg/model"
	"github.com/kssrr/sl-spam-classification/pkg/tuning"
)

// threshold predicts spam when feature 0 exceeds the "cut" parameter.
type threshold struct{ cut float64 }

func (m *threshold) Fit([][]float64, []int) error { return nil }
func (m *threshold) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		if x[0] > m.cut {
			out[i] = 1
		}
	}
	return out
}
func (m *threshold) Predict(X [][]float64) []int { return model.BinaryPredFromProba(m.PredictProba(X), 0.5) }

func thresholdBuilder(calls *atomic.Int64) model.Builder {
	return func(p model.Params, _ int64) (model.Classifier, error) {
		calls.Add(1)
		return &threshold{cut: p.Get("cut", 0)}, nil
	}
}

// lineData puts spam at x >= 0.5 on an evenly spaced line.
func lineData(t *testing.T, n int) *data.Dataset {
	t.Helper()
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		x := float64(i) / float64(n)
		X[i] = []float64{x}
		if x >= 0.5 {
			y[i] = data.Spam
		}
	}
	ds, err := data.New(data.Schema{FeatureNames: []string{"x"}}, X, y)
	require.NoError(t, err)
	return ds
}

func TestConfigurationsOrder(t *testing.T) {
	g := tuning.Grid{"b": {1, 2}, "a": {10, 20, 30}}
	configs, err := g.Configurations()
	require.NoError(t, err)
	require.Len(t, configs, 6)
	assert.Equal(t, model.Params{"a": 10, "b": 1}, configs[0])
	assert.Equal(t, model.Params{"a": 10, "b": 2}, configs[1])
	assert.Equal(t, model.Params{"a": 30, "b": 2}, configs[5])

	again, err := g.Configurations()
	require.NoError(t, err)
	assert.Equal(t, configs, again)

	_, err = tuning.Grid{}.Configurations()
	assert.ErrorIs(t, err, tuning.ErrEmptyGrid)
	_, err = tuning.Grid{"a": nil}.Configurations()
	assert.ErrorIs(t, err, tuning.ErrEmptyGrid)
}

func TestSearchExhaustiveAndSelects(t *testing.T) {
	ds := lineData(t, 100)
	var calls atomic.Int64
	grid := tuning.Grid{"cut": {0.1, 0.49, 0.7}}

	res, err := tuning.Search(context.Background(), "threshold", thresholdBuilder(&calls), grid, ds,
		tuning.Options{Folds: 5, Metric: model.MetricAccuracy, Workers: 3, Seed: 1})
	require.NoError(t, err)

	assert.Equal(t, int64(15), calls.Load(), "3 configurations x 5 folds")
	require.Len(t, res.Rows, 3)
	for i, row := range res.Rows {
		assert.Equal(t, i, row.Index)
	}
	assert.Equal(t, 0.49, res.Best.Params["cut"])
	assert.Equal(t, 1.0, res.Best.Metrics[model.MetricAccuracy].Mean)
	assert.Equal(t, 0.0, res.Best.Metrics[model.MetricAccuracy].StdErr)
}

func TestSearchTiesKeepFirst(t *testing.T) {
	ds := lineData(t, 40)
	var calls atomic.Int64
	// both cuts separate the line perfectly
	grid := tuning.Grid{"cut": {0.48, 0.49}}
	res, err := tuning.Search(context.Background(), "threshold", thresholdBuilder(&calls), grid, ds,
		tuning.Options{Folds: 4, Metric: model.MetricPrecision, Workers: 2, Seed: 3})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Best.Index)
}

func TestSearchSingleFold(t *testing.T) {
	ds := lineData(t, 20)
	var calls atomic.Int64
	res, err := tuning.Search(context.Background(), "threshold", thresholdBuilder(&calls), tuning.Grid{"cut": {0.25}}, ds,
		tuning.Options{Folds: 1, Metric: model.MetricRecall, Workers: 1, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())
	// scored on all of train: cut 0.25 flags 0.3..0.45 as spam too
	assert.Equal(t, 1.0, res.Best.Metrics[model.MetricRecall].Mean)
	assert.InDelta(t, 10.0/14.0, res.Best.Metrics[model.MetricPrecision].Mean, 1e-12)
	assert.Equal(t, 0.0, res.Best.Metrics[model.MetricPrecision].StdErr)
}

func TestSearchUndefinedMetric(t *testing.T) {
	ds := lineData(t, 40)
	var calls atomic.Int64
	// cut above every value: nothing is predicted spam, so precision is undefined on every fold
	res, err := tuning.Search(context.Background(), "threshold", thresholdBuilder(&calls), tuning.Grid{"cut": {2, 0.49}}, ds,
		tuning.Options{Folds: 2, Metric: model.MetricPrecision, Workers: 2, Seed: 1})
	require.NoError(t, err)

	never := res.Rows[0].Metrics[model.MetricPrecision]
	assert.True(t, math.IsNaN(never.Mean))
	assert.Equal(t, 2, never.Undefined)
	assert.Equal(t, 1, res.Best.Index, "a defined metric beats an undefined one")
}

func TestSearchDeterministicWithRealModel(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	X := make([][]float64, 120)
	y := make([]int, 120)
	for i := range X {
		y[i] = i % 3 / 2
		X[i] = []float64{rng.NormFloat64() + float64(y[i]), rng.NormFloat64()}
	}
	ds, err := data.New(data.Schema{FeatureNames: []string{"a", "b"}}, X, y)
	require.NoError(t, err)

	build, err := model.BuilderFor(model.FamilyRF)
	require.NoError(t, err)
	grid := tuning.Grid{"n_trees": {5}, "mtry": {1, 2}}
	run := func(workers int) *tuning.Result {
		res, err := tuning.Search(context.Background(), model.FamilyRF, build, grid, ds,
			tuning.Options{Folds: 3, Metric: model.MetricF1, Workers: workers, Seed: 9})
		require.NoError(t, err)
		return res
	}
	assert.Equal(t, run(1), run(4), "results do not depend on the worker count")
}

// synthetic marks records added by the fold preparation below.
const synthetic = 99.0

// recorder remembers the first feature of every record it was fit or scored on.
type recorder struct {
	mu     *sync.Mutex
	fit    *[]float64
	scored *[]float64
}

func (r *recorder) Fit(X [][]float64, _ []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range X {
		*r.fit = append(*r.fit, x[0])
	}
	return nil
}
func (r *recorder) PredictProba(X [][]float64) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range X {
		*r.scored = append(*r.scored, x[0])
	}
	return make([]float64, len(X))
}
func (r *recorder) Predict(X [][]float64) []int { return model.BinaryPredFromProba(r.PredictProba(X), 0.5) }

func TestSearchPreparesEachFoldSeparately(t *testing.T) {
	ds := lineData(t, 60)
	var mu sync.Mutex
	var fit, scored []float64
	build := func(model.Params, int64) (model.Classifier, error) {
		return &recorder{mu: &mu, fit: &fit, scored: &scored}, nil
	}

	var prepared atomic.Int64
	var seeds sync.Map
	heldTotal := 0
	// appends one synthetic spam record to the training part, like oversampling would
	prepare := func(train, held *data.Dataset, seed int64) (*data.Dataset, *data.Dataset, error) {
		prepared.Add(1)
		seeds.Store(seed, true)
		heldTotal += held.Len()
		X := append(append([][]float64(nil), train.X...), []float64{synthetic})
		y := append(append([]int(nil), train.Y...), data.Spam)
		out, err := data.New(train.Schema, X, y)
		return out, held, err
	}

	_, err := tuning.Search(context.Background(), "recorder", build, tuning.Grid{"c": {1, 2}}, ds,
		tuning.Options{Folds: 3, Metric: model.MetricAccuracy, Workers: 4, Seed: 10, Prepare: prepare})
	require.NoError(t, err)

	assert.Equal(t, int64(3), prepared.Load(), "once per fold, shared across configurations")
	for f := int64(0); f < 3; f++ {
		_, ok := seeds.Load(10 + f)
		assert.True(t, ok, "fold %d seeded with Seed + fold", f)
	}
	assert.Equal(t, ds.Len(), heldTotal, "held-out parts cover the raw set exactly once")
	assert.Len(t, scored, 2*ds.Len())
	assert.NotContains(t, scored, synthetic, "synthetic records are never scored")
	assert.Contains(t, fit, synthetic)
}

func TestSearchPrepareError(t *testing.T) {
	ds := lineData(t, 20)
	var calls atomic.Int64
	boom := errors.New("boom")
	failing := func(*data.Dataset, *data.Dataset, int64) (*data.Dataset, *data.Dataset, error) {
		return nil, nil, boom
	}
	_, err := tuning.Search(context.Background(), "t", thresholdBuilder(&calls), tuning.Grid{"cut": {0.5}}, ds,
		tuning.Options{Folds: 2, Metric: model.MetricF1, Prepare: failing})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), calls.Load(), "no model is built when a fold cannot be prepared")
}

func TestSearchErrors(t *testing.T) {
	ds := lineData(t, 20)
	var calls atomic.Int64
	b := thresholdBuilder(&calls)
	grid := tuning.Grid{"cut": {0.5}}

	_, err := tuning.Search(context.Background(), "t", b, grid, ds, tuning.Options{Folds: 2, Metric: "auc"})
	assert.Error(t, err)

	_, err = tuning.Search(context.Background(), "t", b, grid, ds, tuning.Options{Folds: 0, Metric: model.MetricF1})
	assert.Error(t, err)

	boom := errors.New("boom")
	failing := func(model.Params, int64) (model.Classifier, error) { return nil, boom }
	_, err = tuning.Search(context.Background(), "t", failing, grid, ds, tuning.Options{Folds: 2, Metric: model.MetricF1})
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tuning.Search(ctx, "t", b, grid, ds, tuning.Options{Folds: 2, Metric: model.MetricF1})
	assert.ErrorIs(t, err, context.Canceled)
}
