package model

import (
	"fmt"
	"math"
)

// Metric names in report order.
const (
	MetricPrecision = "precision"
	MetricRecall    = "recall"
	MetricF1        = "f1"
	MetricAccuracy  = "accuracy"
)

// MetricNames lists every reported metric.
var MetricNames = []string{MetricPrecision, MetricRecall, MetricF1, MetricAccuracy}

// Confusion holds binary confusion counts with spam as the positive class.
type Confusion struct {
	TP, FP, FN, TN int
}

// NewConfusion counts predictions against truth.
func NewConfusion(yTrue, yPred []int) Confusion {
	var c Confusion
	for i := range yTrue {
		switch {
		case yPred[i] == 1 && yTrue[i] == 1:
			c.TP++
		case yPred[i] == 1 && yTrue[i] == 0:
			c.FP++
		case yPred[i] == 0 && yTrue[i] == 1:
			c.FN++
		default:
			c.TN++
		}
	}
	return c
}

// Total is the number of scored records.
func (c Confusion) Total() int { return c.TP + c.FP + c.FN + c.TN }

// Precision is TP/(TP+FP); NaN when nothing was predicted spam.
func (c Confusion) Precision() float64 { return ratio(c.TP, c.TP+c.FP) }

// Recall is TP/(TP+FN); NaN when there is no spam.
func (c Confusion) Recall() float64 { return ratio(c.TP, c.TP+c.FN) }

// Accuracy is (TP+TN)/total; NaN for an empty set.
func (c Confusion) Accuracy() float64 { return ratio(c.TP+c.TN, c.Total()) }

// F1 is the harmonic mean of precision and recall; NaN when either is undefined.
func (c Confusion) F1() float64 {
	if math.IsNaN(c.Precision()) || math.IsNaN(c.Recall()) {
		return math.NaN()
	}
	return ratio(2*c.TP, 2*c.TP+c.FP+c.FN)
}

// Metrics bundles the four point estimates.
type Metrics struct {
	Precision float64
	Recall    float64
	F1        float64
	Accuracy  float64
}

// Metrics computes every metric from the counts.
func (c Confusion) Metrics() Metrics {
	return Metrics{
		Precision: c.Precision(),
		Recall:    c.Recall(),
		F1:        c.F1(),
		Accuracy:  c.Accuracy(),
	}
}

// Score compares predicted labels with the truth.
func Score(yTrue, yPred []int) Metrics {
	return NewConfusion(yTrue, yPred).Metrics()
}

// Get returns a metric by name.
func (m Metrics) Get(name string) (float64, error) {
	switch name {
	case MetricPrecision:
		return m.Precision, nil
	case MetricRecall:
		return m.Recall, nil
	case MetricF1:
		return m.F1, nil
	case MetricAccuracy:
		return m.Accuracy, nil
	}
	return math.NaN(), fmt.Errorf("model: unknown metric %q", name)
}

// Values returns the metrics in MetricNames order.
func (m Metrics) Values() []float64 {
	return []float64{m.Precision, m.Recall, m.F1, m.Accuracy}
}

// BinaryPredFromProba thresholds probabilities: p >= threshold is spam.
func BinaryPredFromProba(proba []float64, threshold float64) []int {
	out := make([]int, len(proba))
	for i, p := range proba {
		if p >= threshold {
			out[i] = 1
		}
	}
	return out
}

func ratio(num, den int) float64 {
	if den == 0 {
		return math.NaN()
	}
	return float64(num) / float64(den)
}
