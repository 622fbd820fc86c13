package dataprep

import (
	"errors"
	"math/rand"

	"github.com/kssrr/sl-spam-classification/pkg/data"
	"github.com/kssrr/sl-spam-classification/pkg/model"
)

// ErrTooFewMinority is returned when the minority class is too small to interpolate.
var ErrTooFewMinority = errors.New("dataprep: SMOTE needs at least 2 minority records")

// SMOTE balances the classes of ds by appending synthetic minority records. Minority
// records are visited round-robin in index order; each visit draws one of the record's
// k nearest minority neighbours and u ~ U[0,1) and emits x + u*(nbr - x), until both
// classes are equally large. The original records are kept unchanged and in order.
func SMOTE(ds *data.Dataset, k int, rng *rand.Rand) (*data.Dataset, int, error) {
	ham, spam := ds.ClassCounts()
	minority, need := data.Spam, ham-spam
	if spam > ham {
		minority, need = data.Ham, spam-ham
	}
	if need == 0 {
		return ds, 0, nil
	}

	idx := data.IndicesByClass(ds.Y)[minority]
	if len(idx) < 2 {
		return nil, 0, ErrTooFewMinority
	}
	k = min(k, len(idx)-1)

	points := make([][]float64, len(idx))
	for i, r := range idx {
		points[i] = ds.X[r]
	}
	neighbors := model.NewNearestNeighbors(points).AllNeighbors(k)

	X := make([][]float64, 0, ds.Len()+need)
	y := make([]int, 0, ds.Len()+need)
	X = append(X, ds.X...)
	y = append(y, ds.Y...)

	for s := 0; s < need; s++ {
		i := s % len(points)
		x := points[i]
		nbr := points[neighbors[i][rng.Intn(len(neighbors[i]))]]
		u := rng.Float64()

		synth := make([]float64, len(x))
		for j := range x {
			synth[j] = x[j] + u*(nbr[j]-x[j])
		}
		X = append(X, synth)
		y = append(y, minority)
	}

	out, err := data.New(ds.Schema, X, y)
	if err != nil {
		return nil, 0, err
	}
	return out, need, nil
}
