package dataprep

import (
	"math"

	"github.com/kssrr/sl-spam-classification/pkg/stats"
)

// LogTransform applies log(x+offset) to every cell, returning new rows.
func LogTransform(X [][]float64, offset float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		r := make([]float64, len(row))
		for j, v := range row {
			r[j] = math.Log(v + offset)
		}
		out[i] = r
	}
	return out
}

// FeatureSelect selects columns by indices.
func FeatureSelect(X [][]float64, indices []int) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		selected := make([]float64, len(indices))
		for j, idx := range indices {
			selected[j] = row[idx]
		}
		out[i] = selected
	}
	return out
}

// CorrelatedColumns scans column pairs (i<j) of the candidate columns in order and
// marks j for removal whenever |r(i, j)| > cutoff and neither has been removed yet.
// It returns the retained and the dropped column indices.
func CorrelatedColumns(X [][]float64, candidates []int, cutoff float64) (keep, dropped []int) {
	cols := make([][]float64, len(candidates))
	for k, c := range candidates {
		cols[k] = stats.Column(X, c)
	}

	removed := make([]bool, len(candidates))
	for a := range candidates {
		if removed[a] {
			continue
		}
		for b := a + 1; b < len(candidates); b++ {
			if removed[b] {
				continue
			}
			if math.Abs(stats.Correlation(cols[a], cols[b])) > cutoff {
				removed[b] = true
			}
		}
	}

	for k, c := range candidates {
		if removed[k] {
			dropped = append(dropped, c)
		} else {
			keep = append(keep, c)
		}
	}
	return keep, dropped
}

// nzvVarianceFloor is the variance below which a column is always near-zero.
const nzvVarianceFloor = 1e-8

// NearZeroVariance reports whether a column is near-constant: the most common value
// outnumbers the second most common by more than freqRatio while fewer than uniqueCut
// percent of the values are distinct, or its variance is below 1e-8.
func NearZeroVariance(col []float64, freqRatio, uniqueCut float64) bool {
	if len(col) == 0 || stats.Variance(col) < nzvVarianceFloor {
		return true
	}

	counts := make(map[float64]int)
	for _, v := range col {
		counts[v]++
	}
	first, second := 0, 0
	for _, c := range counts {
		switch {
		case c > first:
			first, second = c, first
		case c > second:
			second = c
		}
	}

	ratio := math.Inf(1)
	if second > 0 {
		ratio = float64(first) / float64(second)
	}
	uniquePct := 100 * float64(len(counts)) / float64(len(col))
	return ratio > freqRatio && uniquePct < uniqueCut
}
