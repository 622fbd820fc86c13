package split_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kssrr/sl-spam-classification/pkg/data"
	"github.com/kssrr/sl-spam-classification/pkg/split"
)

// imbalanced builds n records of which every third is spam.
func imbalanced(t *testing.T, n int) *data.Dataset {
	t.Helper()
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		X[i] = []float64{float64(i)}
		if i%3 == 0 {
			y[i] = data.Spam
		}
	}
	ds, err := data.New(data.Schema{FeatureNames: []string{"id"}}, X, y)
	require.NoError(t, err)
	return ds
}

func spamShare(ds *data.Dataset) float64 {
	_, spam := ds.ClassCounts()
	return float64(spam) / float64(ds.Len())
}

// TestStratified_PartitionAndProportions checks disjointness, coverage, the 60/20/20 sizes
// and that each part keeps the global class ratio.
func TestStratified_PartitionAndProportions(t *testing.T) {
	ds := imbalanced(t, 900)
	p, err := split.Stratified(ds, 0.6, 0.2, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	seen := map[int]int{}
	for _, part := range [][]int{p.TrainIdx, p.ValidationIdx, p.TestIdx} {
		for _, i := range part {
			seen[i]++
		}
	}
	assert.Len(t, seen, 900, "union covers the dataset")
	for i, c := range seen {
		assert.Equal(t, 1, c, "record %d appears once", i)
	}

	assert.Equal(t, 540, p.Train.Len())
	assert.Equal(t, 180, p.Validation.Len())
	assert.Equal(t, 180, p.Test.Len())

	global := spamShare(ds)
	for _, part := range []*data.Dataset{p.Train, p.Validation, p.Test} {
		assert.InDelta(t, global, spamShare(part), 0.01)
	}
}

// TestStratified_Deterministic checks that a fixed seed reproduces the split.
func TestStratified_Deterministic(t *testing.T) {
	ds := imbalanced(t, 100)
	a, err := split.Stratified(ds, 0.6, 0.2, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	b, err := split.Stratified(ds, 0.6, 0.2, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	assert.Equal(t, a.TestIdx, b.TestIdx)
	assert.Equal(t, a.TrainIdx, b.TrainIdx)
}

// TestStratified_Errors covers bad ratios and too-small classes.
func TestStratified_Errors(t *testing.T) {
	ds := imbalanced(t, 30)
	rng := rand.New(rand.NewSource(1))

	_, err := split.Stratified(ds, 0.8, 0.2, rng)
	assert.ErrorIs(t, err, split.ErrBadRatio)
	_, err = split.Stratified(ds, 0, 0.2, rng)
	assert.ErrorIs(t, err, split.ErrBadRatio)

	tiny, err := data.New(data.Schema{FeatureNames: []string{"a"}},
		[][]float64{{1}, {2}, {3}, {4}, {5}}, []int{0, 0, 0, 1, 1})
	require.NoError(t, err)
	_, err = split.Stratified(tiny, 0.6, 0.2, rng)
	assert.ErrorIs(t, err, split.ErrTooFewMembers)
}

// TestStratifiedKFold_Coverage checks that each record is held out exactly once and
// trained on k-1 times, with stratified folds.
func TestStratifiedKFold_Coverage(t *testing.T) {
	ds := imbalanced(t, 300)
	k := 5
	folds, err := split.StratifiedKFold(ds.Y, k, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	require.Equal(t, k, folds.K())

	held := make([]int, ds.Len())
	trained := make([]int, ds.Len())
	for i := 0; i < k; i++ {
		for _, j := range folds.HoldOut(i) {
			held[j]++
		}
		for _, j := range folds.TrainIndices(i) {
			trained[j]++
		}
		hold := ds.Subset(folds.HoldOut(i))
		assert.InDelta(t, spamShare(ds), spamShare(hold), 0.02)
		assert.InDelta(t, 60, hold.Len(), 1)
	}
	for j := range held {
		assert.Equal(t, 1, held[j])
		assert.Equal(t, k-1, trained[j])
	}
}

// TestStratifiedKFold_SingleFold treats k=1 as train-on-all, score-on-all.
func TestStratifiedKFold_SingleFold(t *testing.T) {
	folds, err := split.StratifiedKFold([]int{0, 1, 0, 1}, 1, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, folds.HoldOut(0))
	assert.Equal(t, []int{0, 1, 2, 3}, folds.TrainIndices(0))
}

// TestStratifiedKFold_Errors covers k < 1 and classes smaller than k.
func TestStratifiedKFold_Errors(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := split.StratifiedKFold([]int{0, 1}, 0, rng)
	assert.ErrorIs(t, err, split.ErrBadFolds)
	_, err = split.StratifiedKFold([]int{0, 0, 0, 0, 1}, 3, rng)
	assert.ErrorIs(t, err, split.ErrTooFewMembers)
}
