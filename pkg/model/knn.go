package model

import (
	"runtime"
	"sort"
	"sync"
)

// NearestNeighbors is a brute-force Euclidean neighbor index over a fixed set of points.
type NearestNeighbors struct {
	X [][]float64
}

// NewNearestNeighbors indexes X (rows are not copied).
func NewNearestNeighbors(X [][]float64) *NearestNeighbors {
	return &NearestNeighbors{X: X}
}

// KNeighbors returns the indices of the k points closest to x, nearest first.
// The point at index exclude (use -1 for none) is skipped. Ties go to the lower index.
func (m *NearestNeighbors) KNeighbors(x []float64, k, exclude int) []int {
	type pair struct {
		d float64
		i int
	}
	less := func(a, b pair) bool {
		if a.d != b.d {
			return a.d < b.d
		}
		return a.i < b.i
	}

	// Keep a small sorted slice of the k nearest points found so far.
	nbrs := make([]pair, 0, k+1)
	for j, xj := range m.X {
		if j == exclude {
			continue
		}
		cand := pair{d: euclidSquared(x, xj), i: j}
		if len(nbrs) < k {
			nbrs = append(nbrs, cand)
			sort.Slice(nbrs, func(a, b int) bool { return less(nbrs[a], nbrs[b]) })
		} else if k > 0 && less(cand, nbrs[len(nbrs)-1]) {
			nbrs[len(nbrs)-1] = cand
			sort.Slice(nbrs, func(a, b int) bool { return less(nbrs[a], nbrs[b]) })
		}
	}

	out := make([]int, len(nbrs))
	for i, p := range nbrs {
		out[i] = p.i
	}
	return out
}

// AllNeighbors returns, for every indexed point, its k nearest other points.
// Rows are split across GOMAXPROCS goroutines; the result does not depend on scheduling.
func (m *NearestNeighbors) AllNeighbors(k int) [][]int {
	n := len(m.X)
	out := make([][]int, n)
	if n == 0 {
		return out
	}

	var wg sync.WaitGroup
	workers := runtime.GOMAXPROCS(0)
	rowsPerWorker := (n + workers - 1) / workers

	for w := 0; w < workers; w++ {
		start := w * rowsPerWorker
		end := min(start+rowsPerWorker, n)
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				out[i] = m.KNeighbors(m.X[i], k, i)
			}
		}(start, end)
	}

	wg.Wait()
	return out
}

// euclidSquared computes the squared Euclidean distance between two vectors.
// Squared distance preserves the neighbor order and skips the square root.
func euclidSquared(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
