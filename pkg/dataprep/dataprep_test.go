package dataprep_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kssrr/sl-spam-classification/pkg/config"
	"github.com/kssrr/sl-spam-classification/pkg/data"
	"github.com/kssrr/sl-spam-classification/pkg/dataprep"
)

func allOn() config.PreprocessConfig {
	return config.Default().Preprocess
}

// synthetic builds n records with: a noisy signal column, its near copy, a mostly-zero
// column and an independent uniform column. Every fourth record is spam.
func synthetic(t *testing.T, n int, seed int64) *data.Dataset {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		if i%4 == 0 {
			y[i] = data.Spam
		}
		signal := rng.Float64()*3 + float64(y[i])*2
		rare := 0.0
		if i == 7 {
			rare = 5
		}
		X[i] = []float64{signal, signal * 1.01, rare, rng.Float64() * 10}
	}
	ds, err := data.New(data.Schema{FeatureNames: []string{"signal", "copy", "rare", "noise"}}, X, y)
	require.NoError(t, err)
	return ds
}

func TestSMOTE_BalancesOnSegments(t *testing.T) {
	ds := synthetic(t, 80, 1)
	ham, spam := ds.ClassCounts()
	require.Equal(t, 60, ham)
	require.Equal(t, 20, spam)

	out, added, err := dataprep.SMOTE(ds, 5, rand.New(rand.NewSource(2)))
	require.NoError(t, err)
	assert.Equal(t, 40, added)
	h, s := out.ClassCounts()
	assert.Equal(t, h, s)

	// originals untouched and first
	assert.Equal(t, ds.X, out.X[:ds.Len()])

	// each synthetic point lies on a segment between two minority originals, so its
	// "copy" column stays exactly 1.01 times its "signal" column
	for _, row := range out.X[ds.Len():] {
		assert.InDelta(t, row[0]*1.01, row[1], 1e-9)
		assert.Equal(t, 0.0, row[2], "rare column is zero for every spam original")
	}
	for _, lab := range out.Y[ds.Len():] {
		assert.Equal(t, data.Spam, lab)
	}
}

func TestSMOTE_EdgeCases(t *testing.T) {
	balanced, err := data.New(data.Schema{FeatureNames: []string{"a"}}, [][]float64{{1}, {2}}, []int{0, 1})
	require.NoError(t, err)
	out, added, err := dataprep.SMOTE(balanced, 5, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Same(t, balanced, out)

	lonely, err := data.New(data.Schema{FeatureNames: []string{"a"}}, [][]float64{{1}, {2}, {3}}, []int{0, 0, 1})
	require.NoError(t, err)
	_, _, err = dataprep.SMOTE(lonely, 5, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, dataprep.ErrTooFewMinority)
}

func TestFit_PrunesAndNormalizes(t *testing.T) {
	train := synthetic(t, 200, 3)
	st, out, err := dataprep.Fit(train, allOn(), rand.New(rand.NewSource(4)))
	require.NoError(t, err)

	assert.Equal(t, []string{"copy"}, st.DroppedCorrelated)
	assert.Equal(t, []string{"rare"}, st.DroppedNZV)
	assert.Equal(t, []string{"signal", "noise"}, out.Schema.FeatureNames)
	assert.Equal(t, []int{0, 3}, st.Keep)

	ham, spam := out.ClassCounts()
	assert.Equal(t, ham, spam)
	assert.Equal(t, 100, st.Synthetic)

	for _, row := range out.X {
		for _, v := range row {
			assert.True(t, v >= 0 && v <= 1, "training values are within [0,1]: %v", v)
		}
	}
}

func TestApply_ReplaysWithoutOversampling(t *testing.T) {
	train := synthetic(t, 200, 5)
	st, _, err := dataprep.Fit(train, allOn(), rand.New(rand.NewSource(6)))
	require.NoError(t, err)

	test := synthetic(t, 40, 7)
	test.X[0][3] = 1000 // beyond the training range

	out, err := dataprep.Apply(st, test)
	require.NoError(t, err)
	assert.Equal(t, test.Len(), out.Len(), "no records are added")
	assert.Equal(t, st.OutputSchema, out.Schema)
	assert.Equal(t, test.Y, out.Y)
	assert.Greater(t, out.X[0][1], 1.0, "out-of-range values are not clamped")

	again, err := dataprep.Apply(st, test)
	require.NoError(t, err)
	assert.Equal(t, out.X, again.X)
}

func TestApply_SchemaMismatch(t *testing.T) {
	st, _, err := dataprep.Fit(synthetic(t, 100, 1), allOn(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	other, err := data.New(data.Schema{FeatureNames: []string{"a", "b"}}, [][]float64{{1, 2}}, []int{0})
	require.NoError(t, err)
	_, err = dataprep.Apply(st, other)
	assert.ErrorIs(t, err, dataprep.ErrSchemaMismatch)
}

func TestFit_StepsCanBeDisabled(t *testing.T) {
	opts := config.PreprocessConfig{LogTransform: true, LogOffset: 1}
	train := synthetic(t, 40, 8)
	st, out, err := dataprep.Fit(train, opts, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	assert.Nil(t, st.Scaler)
	assert.Zero(t, st.Synthetic)
	assert.Equal(t, train.Len(), out.Len())
	assert.Equal(t, train.Schema, out.Schema)
	assert.InDelta(t, math.Log(train.X[3][0]+1), out.X[3][0], 1e-12)
}

func TestNearZeroVariance(t *testing.T) {
	tests := []struct {
		name string
		col  []float64
		want bool
	}{
		{"constant", []float64{3, 3, 3, 3}, true},
		{"tiny variance", []float64{1, 1 + 1e-9, 1, 1}, true},
		{"dominant value and few uniques", append(make([]float64, 99), 1), true},
		{"balanced binary", []float64{0, 1, 0, 1, 0, 1}, false},
		{"continuous", []float64{0.1, 0.5, 0.9, 0.3, 0.7}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dataprep.NearZeroVariance(tt.col, 19, 10))
		})
	}
}

func TestCorrelatedColumns_DropsLaterIndex(t *testing.T) {
	X := [][]float64{
		{1, 2, 5, 1},
		{2, 4, 3, 2},
		{3, 6, 4, 3},
		{4, 8, 1, 4},
	}
	keep, dropped := dataprep.CorrelatedColumns(X, []int{0, 1, 2, 3}, 0.9)
	assert.Equal(t, []int{0, 2}, keep)
	assert.Equal(t, []int{1, 3}, dropped)
}
