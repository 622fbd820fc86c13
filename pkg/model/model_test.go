package model_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kssrr/sl-spam-classification/pkg/model"
)

// blobs draws two well separated Gaussian clouds in p dimensions; spam sits around +2, ham around -2.
func blobs(n, p int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		y[i] = i % 2
		center := -2.0
		if y[i] == 1 {
			center = 2.0
		}
		X[i] = make([]float64, p)
		for j := range X[i] {
			X[i][j] = center + rng.NormFloat64()*0.5
		}
	}
	return X, y
}

func accuracy(t *testing.T, c model.Classifier, X [][]float64, y []int) float64 {
	t.Helper()
	return model.Score(y, c.Predict(X)).Accuracy
}

func TestConfusionMetrics(t *testing.T) {
	var yTrue, yPred []int
	add := func(truth, pred, n int) {
		for i := 0; i < n; i++ {
			yTrue = append(yTrue, truth)
			yPred = append(yPred, pred)
		}
	}
	add(1, 1, 50) // TP
	add(0, 1, 5)  // FP
	add(1, 0, 5)  // FN
	add(0, 0, 100)

	c := model.NewConfusion(yTrue, yPred)
	assert.Equal(t, model.Confusion{TP: 50, FP: 5, FN: 5, TN: 100}, c)

	m := c.Metrics()
	assert.InDelta(t, 0.909, m.Precision, 1e-3)
	assert.InDelta(t, 0.909, m.Recall, 1e-3)
	assert.InDelta(t, 0.909, m.F1, 1e-3)
	assert.InDelta(t, 0.9375, m.Accuracy, 1e-9)

	v, err := m.Get(model.MetricAccuracy)
	require.NoError(t, err)
	assert.Equal(t, m.Accuracy, v)
	_, err = m.Get("auc")
	assert.Error(t, err)
}

func TestConfusionUndefined(t *testing.T) {
	// no predicted spam and no actual spam
	m := model.Score([]int{0, 0, 0}, []int{0, 0, 0})
	assert.True(t, math.IsNaN(m.Precision))
	assert.True(t, math.IsNaN(m.Recall))
	assert.True(t, math.IsNaN(m.F1))
	assert.Equal(t, 1.0, m.Accuracy)

	assert.True(t, math.IsNaN(model.Score(nil, nil).Accuracy))
}

func TestNearestNeighbors(t *testing.T) {
	X := [][]float64{{0, 0}, {1, 0}, {0, 2}, {5, 5}, {1, 1}}
	idx := model.NewNearestNeighbors(X)

	assert.Equal(t, []int{1, 4}, idx.KNeighbors(X[0], 2, 0))
	assert.Equal(t, []int{0, 1}, idx.KNeighbors([]float64{0.4, 0}, 2, -1))

	all := idx.AllNeighbors(1)
	require.Len(t, all, len(X))
	assert.Equal(t, []int{1}, all[0])
	assert.Equal(t, []int{4}, all[3])
	// (0,0) and (0,2) are both at squared distance 2 from (1,1); the lower index wins
	assert.Equal(t, []int{1, 0}, idx.KNeighbors(X[4], 2, 4))
}

func TestClassifiersSeparable(t *testing.T) {
	Xtr, ytr := blobs(200, 4, 1)
	Xte, yte := blobs(100, 4, 2)

	for _, family := range model.Families {
		t.Run(family, func(t *testing.T) {
			c, err := model.Build(family, model.Params{"lambda": 1e-3, "n_trees": 20, "mtry": 2}, 7)
			require.NoError(t, err)
			require.NoError(t, c.Fit(Xtr, ytr))
			assert.GreaterOrEqual(t, accuracy(t, c, Xte, yte), 0.95)

			for _, p := range c.PredictProba(Xte) {
				assert.True(t, p >= 0 && p <= 1, "probability %v out of range", p)
			}
		})
	}
}

func TestClassifierErrors(t *testing.T) {
	for _, c := range []model.Classifier{
		model.NewLogisticRegression(0, 0),
		model.NewGaussianNB(1e-9),
		model.NewRandomForest(model.WithNEstimators(2)),
	} {
		assert.ErrorIs(t, c.Fit(nil, nil), model.ErrEmpty)
		assert.ErrorIs(t, c.Fit([][]float64{{1}, {2}}, []int{0}), model.ErrMismatch)
		assert.ErrorIs(t, c.Fit([][]float64{{1}, {2}}, []int{0, 2}), model.ErrLabel)
	}
	assert.ErrorIs(t, model.NewGaussianNB(0).Fit([][]float64{{1}, {2}}, []int{1, 1}), model.ErrSingleClass)
}

func TestLogisticRegressionLassoZeroesNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	X := make([][]float64, 300)
	y := make([]int, 300)
	for i := range X {
		signal := rng.Float64()
		X[i] = []float64{signal, rng.Float64()}
		if signal > 0.5 {
			y[i] = 1
		}
	}

	lasso := model.NewLogisticRegression(0.05, 1)
	require.NoError(t, lasso.Fit(X, y))
	assert.Greater(t, lasso.W[0], 0.5)
	assert.Equal(t, 0.0, lasso.W[1], "pure-noise coefficient is shrunk to exactly zero")

	// deterministic given inputs
	again := model.NewLogisticRegression(0.05, 1)
	require.NoError(t, again.Fit(X, y))
	assert.Equal(t, lasso.W, again.W)
	assert.Equal(t, lasso.Intercept(), again.Intercept())
}

func TestRandomForestReproducible(t *testing.T) {
	X, y := blobs(120, 5, 4)
	build := func() *model.RandomForest {
		rf := model.NewRandomForest(model.WithNEstimators(15), model.WithForestRandomState(11), model.WithForestMaxFeatures(2))
		require.NoError(t, rf.Fit(X, y))
		return rf
	}
	assert.Equal(t, build().PredictProba(X), build().PredictProba(X))
}

func TestDecisionTreeFitIndices(t *testing.T) {
	X := [][]float64{{0}, {1}, {2}, {3}, {10}, {11}}
	y := []int{0, 0, 0, 1, 1, 1}

	tree := model.NewDecisionTreeClassifier()
	require.NoError(t, tree.Fit(X, y))
	assert.Equal(t, y, tree.Predict(X))
	assert.Equal(t, 1, tree.Depth())

	// only rows 0 and 5 are in the sample: a single split between 0 and 11
	stump := model.NewDecisionTreeClassifier()
	require.NoError(t, stump.FitIndices(X, y, []int{0, 0, 5}))
	assert.Equal(t, []float64{0, 1}, stump.PredictProba([][]float64{{4}, {6}}))

	leafy := model.NewDecisionTreeClassifier(model.WithMinSamplesLeaf(4))
	require.NoError(t, leafy.Fit(X, y))
	assert.Equal(t, 0, leafy.Depth(), "no split leaves 4 records on both sides")
	assert.Equal(t, []float64{0.5}, leafy.PredictProba([][]float64{{0}}))
}

func TestDecisionTreeCriterionAndMinDecrease(t *testing.T) {
	X := [][]float64{{0}, {1}, {2}, {3}, {10}, {11}}
	y := []int{0, 0, 0, 1, 1, 1}

	entropy := model.NewDecisionTreeClassifier(model.WithCriterion("entropy"))
	require.NoError(t, entropy.Fit(X, y))
	assert.Equal(t, y, entropy.Predict(X))
	assert.Equal(t, 1, entropy.Depth())

	// the best gini decrease here is 0.5
	strict := model.NewDecisionTreeClassifier(model.WithMinImpurityDecrease(0.6))
	require.NoError(t, strict.Fit(X, y))
	assert.Equal(t, 0, strict.Depth())
}

func TestParamsAndFactory(t *testing.T) {
	p := model.Params{"b": 0.5, "a": 2}
	assert.Equal(t, "a=2 b=0.5", p.String())
	assert.Equal(t, 7.0, p.Get("c", 7))
	assert.Equal(t, 2, p.Int("a", 0))

	_, err := model.Build("svm", nil, 1)
	assert.Error(t, err)
	_, err = model.Build(model.FamilyLogReg, model.Params{"alpha": 2}, 1)
	assert.Error(t, err)
	_, err = model.Build(model.FamilyRF, model.Params{"n_trees": 0}, 1)
	assert.Error(t, err)

	rf, err := model.Build(model.FamilyRF, model.Params{"n_trees": 3, "mtry": 2, "min_leaf": 5}, 9)
	require.NoError(t, err)
	forest := rf.(*model.RandomForest)
	assert.Equal(t, 3, forest.NEstimators)
	assert.Equal(t, 2, forest.MaxFeatures)
	assert.Equal(t, 5, forest.MinSamplesLeaf)
	assert.Equal(t, int64(9), forest.RandomState)
	assert.True(t, forest.Bootstrap)
	assert.Equal(t, 0, forest.MaxDepth)

	rf, err = model.Build(model.FamilyRF, model.Params{"n_trees": 2, "max_depth": 3, "bootstrap": 0}, 9)
	require.NoError(t, err)
	forest = rf.(*model.RandomForest)
	assert.False(t, forest.Bootstrap)
	assert.Equal(t, 3, forest.MaxDepth)
	assert.Equal(t, "Random forest", model.DisplayName(model.FamilyRF))
}
