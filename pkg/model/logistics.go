package model

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/kssrr/sl-spam-classification/pkg/nn"
)

// LogisticRegression is binary logistic regression with an elastic-net penalty
//
//	(1/n)·Σ BCE + Lambda·((1-Alpha)/2·‖w‖² + Alpha·‖w‖₁)
//
// fit by full-batch proximal gradient descent. The intercept is not penalized.
type LogisticRegression struct {
	Lambda  float64
	Alpha   float64
	MaxIter int
	Tol     float64 // stop once no coefficient moves by more than Tol

	W    []float64 // weights
	b    float64   // bias
	Iter int       // iterations used by the last Fit
}

// NewLogisticRegression returns an unfitted model.
func NewLogisticRegression(lambda, alpha float64) *LogisticRegression {
	return &LogisticRegression{
		Lambda:  lambda,
		Alpha:   alpha,
		MaxIter: 1000,
		Tol:     1e-6,
	}
}

// Fit starts from zero coefficients, so it is deterministic given its inputs.
func (m *LogisticRegression) Fit(X [][]float64, y []int) error {
	p, err := checkXY(X, y)
	if err != nil {
		return err
	}
	n := len(X)

	A := mat.NewDense(n, p, nil)
	target := mat.NewVecDense(n, nil)
	frob := 0.0
	for i, row := range X {
		A.SetRow(i, row)
		target.SetVec(i, float64(y[i]))
		frob += floats.Dot(row, row)
	}

	// Step size 1/L, with L bounding the Lipschitz constant of the smooth part's gradient.
	l2 := m.Lambda * (1 - m.Alpha)
	L := 0.25*(frob/float64(n)+1) + l2
	step := 1 / L
	shrink := step * m.Lambda * m.Alpha

	w := mat.NewVecDense(p, nil)
	z := mat.NewVecDense(n, nil)
	resid := mat.NewVecDense(n, nil)
	grad := mat.NewVecDense(p, nil)
	b := 0.0

	m.Iter = 0
	for it := 0; it < m.MaxIter; it++ {
		m.Iter = it + 1

		z.MulVec(A, w)
		for i := 0; i < n; i++ {
			resid.SetVec(i, nn.Sigmoid(z.AtVec(i)+b)-target.AtVec(i))
		}
		grad.MulVec(A.T(), resid)
		grad.ScaleVec(1/float64(n), grad)
		gb := mat.Sum(resid) / float64(n)

		maxDelta := math.Abs(step * gb)
		b -= step * gb
		for j := 0; j < p; j++ {
			wj := w.AtVec(j)
			next := softThreshold(wj-step*(grad.AtVec(j)+l2*wj), shrink)
			maxDelta = math.Max(maxDelta, math.Abs(next-wj))
			w.SetVec(j, next)
		}
		if maxDelta < m.Tol {
			break
		}
	}

	m.W = make([]float64, p)
	for j := range m.W {
		m.W[j] = w.AtVec(j)
	}
	m.b = b
	return nil
}

// PredictProba returns the spam probability of each row.
func (m *LogisticRegression) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = nn.Sigmoid(floats.Dot(m.W, row) + m.b)
	}
	return out
}

// Predict returns the class labels (0 or 1) based on a 0.5 probability threshold.
func (m *LogisticRegression) Predict(X [][]float64) []int {
	return BinaryPredFromProba(m.PredictProba(X), 0.5)
}

// Intercept returns the fitted bias.
func (m *LogisticRegression) Intercept() float64 { return m.b }

func softThreshold(v, t float64) float64 {
	switch {
	case v > t:
		return v - t
	case v < -t:
		return v + t
	}
	return 0
}
