package model

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// GaussianNB models each feature as an independent normal per class.
type GaussianNB struct {
	// VarSmoothing is the fraction of the largest feature variance added to every variance.
	VarSmoothing float64

	logPrior [2]float64
	mean     [2][]float64
	variance [2][]float64
}

// NewGaussianNB returns an unfitted classifier.
func NewGaussianNB(varSmoothing float64) *GaussianNB {
	return &GaussianNB{VarSmoothing: varSmoothing}
}

// Fit estimates class priors, means and (population) variances.
func (m *GaussianNB) Fit(X [][]float64, y []int) error {
	p, err := checkXY(X, y)
	if err != nil {
		return err
	}
	if !hasBothClasses(y) {
		return ErrSingleClass
	}

	cols := make([]float64, len(X))
	epsilon := 0.0
	for j := 0; j < p; j++ {
		for i, row := range X {
			cols[i] = row[j]
		}
		_, v := stat.PopMeanVariance(cols, nil)
		epsilon = math.Max(epsilon, v)
	}
	epsilon *= m.VarSmoothing

	byClass := [2][]int{}
	for i, lab := range y {
		byClass[lab] = append(byClass[lab], i)
	}

	for c := 0; c < 2; c++ {
		idx := byClass[c]
		m.logPrior[c] = math.Log(float64(len(idx)) / float64(len(y)))
		m.mean[c] = make([]float64, p)
		m.variance[c] = make([]float64, p)
		vals := make([]float64, len(idx))
		for j := 0; j < p; j++ {
			for k, i := range idx {
				vals[k] = X[i][j]
			}
			mu, v := stat.PopMeanVariance(vals, nil)
			m.mean[c][j] = mu
			// floor keeps the density finite for a constant feature with zero smoothing
			m.variance[c][j] = math.Max(v+epsilon, 1e-12)
		}
	}
	return nil
}

// PredictProba returns P(spam | x) from the log joint likelihoods.
func (m *GaussianNB) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		ll := [2]float64{m.logJoint(row, 0), m.logJoint(row, 1)}
		norm := floats.LogSumExp(ll[:])
		out[i] = math.Exp(ll[1] - norm)
	}
	return out
}

// Predict returns the class labels (0 or 1) based on a 0.5 probability threshold.
func (m *GaussianNB) Predict(X [][]float64) []int {
	return BinaryPredFromProba(m.PredictProba(X), 0.5)
}

func (m *GaussianNB) logJoint(x []float64, c int) float64 {
	s := m.logPrior[c]
	for j, v := range x {
		d := v - m.mean[c][j]
		s -= 0.5*math.Log(2*math.Pi*m.variance[c][j]) + d*d/(2*m.variance[c][j])
	}
	return s
}
