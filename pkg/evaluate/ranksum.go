package evaluate

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kssrr/sl-spam-classification/pkg/stats"
)

// ErrTooFewValues is returned when a rank-sum sample is empty after dropping NaN.
var ErrTooFewValues = errors.New("evaluate: rank-sum needs at least one value per sample")

// RankSumResult is a two-sided Wilcoxon rank-sum (Mann-Whitney U) test.
type RankSumResult struct {
	U      float64 // Mann-Whitney U of the first sample
	Z      float64
	PValue float64
	N1, N2 int
}

// RankSum tests whether a and b come from the same distribution. NaN values are
// dropped. Ties get average ranks; the p-value uses the normal approximation with
// tie and continuity corrections.
func RankSum(a, b []float64) (RankSumResult, error) {
	x, _ := stats.DropNaN(a)
	y, _ := stats.DropNaN(b)
	n1, n2 := len(x), len(y)
	if n1 == 0 || n2 == 0 {
		return RankSumResult{}, ErrTooFewValues
	}

	type obs struct {
		v     float64
		first bool
	}
	all := make([]obs, 0, n1+n2)
	for _, v := range x {
		all = append(all, obs{v, true})
	}
	for _, v := range y {
		all = append(all, obs{v, false})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].v < all[j].v })

	n := float64(n1 + n2)
	r1, tieSum := 0.0, 0.0
	for i := 0; i < len(all); {
		j := i
		for j < len(all) && all[j].v == all[i].v {
			j++
		}
		// positions i..j-1 share the average of ranks i+1..j
		rank := float64(i+j+1) / 2
		t := float64(j - i)
		tieSum += t*t*t - t
		for k := i; k < j; k++ {
			if all[k].first {
				r1 += rank
			}
		}
		i = j
	}

	fn1, fn2 := float64(n1), float64(n2)
	u := r1 - fn1*(fn1+1)/2
	res := RankSumResult{U: u, PValue: 1, N1: n1, N2: n2}

	sigma := math.Sqrt(fn1 * fn2 / 12 * ((n + 1) - tieSum/(n*(n-1))))
	if sigma == 0 || math.IsNaN(sigma) {
		return res, nil
	}
	d := u - fn1*fn2/2
	correction := 0.0
	if d > 0 {
		correction = 0.5
	} else if d < 0 {
		correction = -0.5
	}
	res.Z = (d - correction) / sigma

	std := distuv.UnitNormal
	res.PValue = math.Min(1, 2*std.CDF(-math.Abs(res.Z)))
	return res, nil
}

// Comparison is a rank-sum test between two models.
type Comparison struct {
	A, B   string
	Metric string
	RankSumResult
}

// CompareModels runs RankSum on the bootstrap distribution of metric for every
// pair of models, in the order the models were evaluated.
func CompareModels(res *Result, metric string) ([]Comparison, error) {
	var out []Comparison
	for i := 0; i < len(res.Models); i++ {
		for j := i + 1; j < len(res.Models); j++ {
			a, b := res.Models[i], res.Models[j]
			ia, ok := a.Intervals[metric]
			if !ok {
				return nil, fmt.Errorf("evaluate: no bootstrap samples for metric %q", metric)
			}
			r, err := RankSum(ia.Samples, b.Intervals[metric].Samples)
			if err != nil {
				return nil, fmt.Errorf("evaluate: %s vs %s on %s: %w", a.Name, b.Name, metric, err)
			}
			out = append(out, Comparison{A: a.Name, B: b.Name, Metric: metric, RankSumResult: r})
		}
	}
	return out, nil
}

// Confidence maps a spam probability to how sure the model was: |p-0.5|*2.
func Confidence(p float64) float64 { return math.Abs(p-0.5) * 2 }

// ConfidenceOnErrors compares, with RankSum, the confidence of model a on the test
// records it misclassified with the confidence of model b on the records b misclassified.
func ConfidenceOnErrors(a, b ModelReport, yTrue []int) (Comparison, error) {
	errConf := func(m ModelReport) []float64 {
		var out []float64
		for i, p := range m.Predictions {
			if p != yTrue[i] {
				out = append(out, Confidence(m.Proba[i]))
			}
		}
		return out
	}
	r, err := RankSum(errConf(a), errConf(b))
	if err != nil {
		return Comparison{}, fmt.Errorf("evaluate: confidence on errors %s vs %s: %w", a.Name, b.Name, err)
	}
	return Comparison{A: a.Name, B: b.Name, Metric: "confidence_on_errors", RankSumResult: r}, nil
}
