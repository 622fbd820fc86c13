package nn

import "math"

// probClip keeps log() finite for saturated predictions.
const probClip = 1e-7

// BCE returns the mean binary cross-entropy of predicted probabilities.
// The training gradient comes from BCEWithLogitsGrad.
func BCE(yTrue, yPred []float64) float64 {
	s := 0.0
	for i, y := range yTrue {
		p := math.Min(math.Max(yPred[i], probClip), 1-probClip)
		s += -(y*math.Log(p) + (1-y)*math.Log(1-p))
	}
	return s / float64(len(yTrue))
}

// BCEWithLogitsGrad returns the gradient of the mean BCE with respect to the
// pre-sigmoid logits, which simplifies to (p - y) / n.
func BCEWithLogitsGrad(yTrue, yPred []float64) []float64 {
	n := float64(len(yTrue))
	grad := make([]float64, len(yTrue))
	for i := range yTrue {
		grad[i] = (yPred[i] - yTrue[i]) / n
	}
	return grad
}

// L2Penalty returns lambda * the sum of squared entries of every weight slice.
func L2Penalty(lambda float64, weights ...[]float64) float64 {
	s := 0.0
	for _, w := range weights {
		for _, v := range w {
			s += v * v
		}
	}
	return lambda * s
}
