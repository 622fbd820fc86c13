package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean is the arithmetic mean; an empty slice gives 0.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

// Variance computes the unbiased sample variance; slices shorter than 2 give 0.
func Variance(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	return stat.Variance(x, nil)
}

// Std is the sample standard deviation.
func Std(x []float64) float64 {
	return math.Sqrt(Variance(x))
}

// StdErr returns the standard error of the mean, sd/sqrt(n).
func StdErr(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	return Std(x) / math.Sqrt(float64(len(x)))
}

// MinMax returns the smallest and largest value; an empty slice gives 0, 0.
func MinMax(x []float64) (lo, hi float64) {
	if len(x) == 0 {
		return 0, 0
	}
	return floats.Min(x), floats.Max(x)
}

// DropNaN returns the non-NaN values of x and how many were dropped.
func DropNaN(x []float64) ([]float64, int) {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out, len(x) - len(out)
}

// Percentile returns the p-th percentile (0 <= p <= 100) with linear interpolation at
// rank p/100*(n-1). x is not modified.
func Percentile(x []float64, p float64) float64 {
	n := len(x)
	if n == 0 {
		return math.NaN()
	}
	cp := make([]float64, n)
	copy(cp, x)
	sort.Float64s(cp)
	if p <= 0 {
		return cp[0]
	}
	if p >= 100 {
		return cp[n-1]
	}
	rank := p / 100 * float64(n-1)
	lower := int(rank)
	upper := lower + 1
	weight := rank - float64(lower)
	if upper >= n {
		return cp[lower]
	}
	return cp[lower]*(1-weight) + cp[upper]*weight
}

// Correlation is Pearson's r. Constant or mismatched inputs give 0.
func Correlation(x, y []float64) float64 {
	if len(x) < 2 || len(y) != len(x) {
		return 0
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// Column copies column j of X.
func Column(X [][]float64, j int) []float64 {
	col := make([]float64, len(X))
	for i := range X {
		col[i] = X[i][j]
	}
	return col
}
