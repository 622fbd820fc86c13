package explore

import (
	"errors"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// ErrEmpty is returned when PCA is fit on no rows.
var ErrEmpty = errors.New("explore: input data cannot be empty")

// PCA finds the top K principal components by power iteration with deflation.
type PCA struct {
	K          int
	MaxIters   int
	Means      []float64
	Components [][]float64 // K x p, each a unit vector
	Explained  []float64   // approx eigenvalues
	TotalVar   float64     // trace of the sample covariance
}

// NewPCA creates and returns a new PCA model.
func NewPCA(k int, maxIters int) *PCA {
	return &PCA{K: k, MaxIters: maxIters}
}

// Fit computes the components. rng seeds the power-iteration start vectors; each
// component's sign is fixed so its largest-magnitude loading is positive.
func (pca *PCA) Fit(X [][]float64, rng *rand.Rand) error {
	if len(X) < 2 {
		return ErrEmpty
	}
	n, d := len(X), len(X[0])
	k := min(pca.K, d)

	pca.Means = make([]float64, d)
	for _, row := range X {
		floats.Add(pca.Means, row)
	}
	floats.Scale(1/float64(n), pca.Means)

	Z := make([][]float64, n)
	pca.TotalVar = 0
	for i, row := range X {
		Z[i] = make([]float64, d)
		floats.SubTo(Z[i], row, pca.Means)
		pca.TotalVar += floats.Dot(Z[i], Z[i])
	}
	pca.TotalVar /= float64(n - 1)

	pca.Components = make([][]float64, 0, k)
	pca.Explained = make([]float64, 0, k)

	for comp := 0; comp < k; comp++ {
		v := make([]float64, d)
		for j := range v {
			v[j] = rng.Float64() - 0.5
		}
		normalize(v)

		Zv := make([]float64, n)
		for t := 0; t < pca.MaxIters; t++ {
			// w = Zᵀ(Z v)
			parallelRows(n, func(i int) { Zv[i] = floats.Dot(Z[i], v) })
			w := make([]float64, d)
			for i := range Z {
				floats.AddScaled(w, Zv[i], Z[i])
			}
			if normalize(w) == 0 {
				break
			}
			converged := floats.Distance(w, v, 2) < 1e-10
			v = w
			if converged {
				break
			}
		}
		fixSign(v)

		lam := 0.0
		for i := range Z {
			s := floats.Dot(Z[i], v)
			lam += s * s
		}
		pca.Explained = append(pca.Explained, lam/float64(n-1))
		pca.Components = append(pca.Components, v)

		// deflate: Z = Z - (Z v) vᵀ
		parallelRows(n, func(i int) {
			floats.AddScaled(Z[i], -floats.Dot(Z[i], v), v)
		})
	}
	return nil
}

// ExplainedRatio returns each component's share of the total variance.
func (pca *PCA) ExplainedRatio() []float64 {
	out := make([]float64, len(pca.Explained))
	if pca.TotalVar == 0 {
		return out
	}
	for i, e := range pca.Explained {
		out[i] = e / pca.TotalVar
	}
	return out
}

// Transform projects the input data onto the principal components.
func (pca *PCA) Transform(X [][]float64) ([][]float64, error) {
	if len(X) == 0 {
		return nil, ErrEmpty
	}
	if len(X[0]) != len(pca.Means) {
		return nil, errors.New("explore: feature count mismatch between input and training data")
	}

	out := make([][]float64, len(X))
	parallelRows(len(X), func(i int) {
		z := make([]float64, len(pca.Means))
		floats.SubTo(z, X[i], pca.Means)
		t := make([]float64, len(pca.Components))
		for k, c := range pca.Components {
			t[k] = floats.Dot(z, c)
		}
		out[i] = t
	})
	return out, nil
}

// parallelRows runs f(i) for i in [0, n), split into contiguous blocks across GOMAXPROCS goroutines.
func parallelRows(n int, f func(i int)) {
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
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// normalize scales v to unit length in place and returns its original norm.
func normalize(v []float64) float64 {
	norm := floats.Norm(v, 2)
	if norm != 0 {
		floats.Scale(1/norm, v)
	}
	return norm
}

func fixSign(v []float64) {
	best := 0
	for j := range v {
		if math.Abs(v[j]) > math.Abs(v[best]) {
			best = j
		}
	}
	if v[best] < 0 {
		floats.Scale(-1, v)
	}
}
