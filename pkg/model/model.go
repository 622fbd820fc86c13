package model

import "errors"

var (
	// ErrEmpty is returned when a model is fit on no rows.
	ErrEmpty = errors.New("model: empty training data")
	// ErrMismatch is returned when X and y lengths (or row widths) disagree.
	ErrMismatch = errors.New("model: X and y length mismatch")
	// ErrLabel is returned when a training label is neither 0 nor 1.
	ErrLabel = errors.New("model: labels must be 0 or 1")
	// ErrSingleClass is returned when training labels contain only one class.
	ErrSingleClass = errors.New("model: training labels contain a single class")
)

// Scorer maps feature rows to spam probabilities in [0, 1].
type Scorer interface {
	PredictProba(X [][]float64) []float64
}

// Classifier is a binary classifier on 0/1 labels (1 = spam).
type Classifier interface {
	Scorer
	Fit(X [][]float64, y []int) error
	Predict(X [][]float64) []int
}

// checkXY validates the shape of a training set and returns the feature count.
func checkXY(X [][]float64, y []int) (int, error) {
	if len(X) == 0 {
		return 0, ErrEmpty
	}
	if len(y) != len(X) {
		return 0, ErrMismatch
	}
	p := len(X[0])
	for i, row := range X {
		if len(row) != p {
			return 0, ErrMismatch
		}
		if y[i] != 0 && y[i] != 1 {
			return 0, ErrLabel
		}
	}
	return p, nil
}

func hasBothClasses(y []int) bool {
	var pos, neg bool
	for _, v := range y {
		if v == 1 {
			pos = true
		} else {
			neg = true
		}
		if pos && neg {
			return true
		}
	}
	return false
}
