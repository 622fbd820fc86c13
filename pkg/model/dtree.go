package model

import (
	"math"
	"math/rand"
	"sort"
	"sync"
)

// parallelSplitMin is the node size from which candidate features are searched on separate goroutines.
const parallelSplitMin = 2048

// DecisionTreeClassifier is a CART-style binary classifier. Leaves store the spam fraction
// of the training records that reached them.
type DecisionTreeClassifier struct {
	MaxDepth            int     // maximum depth (root depth = 0). 0 => no limit
	MinSamplesSplit     int     // minimum samples to attempt a split
	MinSamplesLeaf      int     // minimum samples required in each leaf
	Criterion           string  // "gini" (default) or "entropy"
	MaxFeatures         int     // 0 => all features, >0 => features sampled per split
	MinImpurityDecrease float64 // minimal impurity decrease to accept a split
	RandomState         int64   // seed for feature subsampling

	root *dtNode
}

type dtNode struct {
	isLeaf    bool
	feature   int
	threshold float64 // x <= threshold => left
	left      *dtNode
	right     *dtNode

	n     int
	proba float64 // spam fraction at the leaf
}

// Option functional config
type Option func(*DecisionTreeClassifier)

func WithMaxDepth(d int) Option { return func(t *DecisionTreeClassifier) { t.MaxDepth = d } }
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeClassifier) { t.MinSamplesSplit = n }
}
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeClassifier) { t.MinSamplesLeaf = n }
}
func WithCriterion(c string) Option { return func(t *DecisionTreeClassifier) { t.Criterion = c } }
func WithMaxFeatures(k int) Option  { return func(t *DecisionTreeClassifier) { t.MaxFeatures = k } }
func WithMinImpurityDecrease(v float64) Option {
	return func(t *DecisionTreeClassifier) { t.MinImpurityDecrease = v }
}
func WithRandomState(seed int64) Option {
	return func(t *DecisionTreeClassifier) { t.RandomState = seed }
}

// NewDecisionTreeClassifier returns a classifier with defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	d := &DecisionTreeClassifier{
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Criterion:       "gini",
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Fit trains the tree on every row of X.
func (t *DecisionTreeClassifier) Fit(X [][]float64, y []int) error {
	if _, err := checkXY(X, y); err != nil {
		return err
	}
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	return t.FitIndices(X, y, idx)
}

// FitIndices trains the tree on the rows of X listed in idx. Indices may repeat,
// which is how a bootstrap sample is expressed without copying rows.
func (t *DecisionTreeClassifier) FitIndices(X [][]float64, y []int, idx []int) error {
	p, err := checkXY(X, y)
	if err != nil {
		return err
	}
	if len(idx) == 0 {
		return ErrEmpty
	}

	rnd := rand.New(rand.NewSource(t.RandomState))
	impurity := giniFromCounts
	if t.Criterion == "entropy" {
		impurity = entropyFromCounts
	}

	t.root = t.buildNode(X, y, append([]int(nil), idx...), 0, p, impurity, rnd)
	return nil
}

// PredictProba returns the spam probability of each row.
func (t *DecisionTreeClassifier) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i := range X {
		out[i] = t.predictProbaSingle(X[i])
	}
	return out
}

// Predict labels rows as spam when the leaf spam fraction is at least 0.5.
func (t *DecisionTreeClassifier) Predict(X [][]float64) []int {
	return BinaryPredFromProba(t.PredictProba(X), 0.5)
}

// Depth returns the depth of the fitted tree (a single leaf has depth 0).
func (t *DecisionTreeClassifier) Depth() int {
	var walk func(n *dtNode) int
	walk = func(n *dtNode) int {
		if n == nil || n.isLeaf {
			return 0
		}
		return 1 + max(walk(n.left), walk(n.right))
	}
	return walk(t.root)
}

func (t *DecisionTreeClassifier) predictProbaSingle(x []float64) float64 {
	node := t.root
	if node == nil {
		return math.NaN()
	}
	for !node.isLeaf {
		if x[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.proba
}

// splitResult holds the best split found on a single feature.
type splitResult struct {
	gain      float64
	feature   int
	threshold float64
	leftIdx   []int
	rightIdx  []int
}

// pair is a feature value and the row it came from.
type pair struct {
	v float64
	i int
}

func (t *DecisionTreeClassifier) buildNode(X [][]float64, y []int, idx []int, depth, p int, impurity func([2]int) float64, rnd *rand.Rand) *dtNode {
	node := &dtNode{n: len(idx)}
	counts := countsFromIndices(y, idx)

	leaf := func() *dtNode {
		node.isLeaf = true
		node.proba = float64(counts[1]) / float64(len(idx))
		return node
	}
	if counts[0] == 0 || counts[1] == 0 || len(idx) < t.MinSamplesSplit || len(idx) < 2*max(t.MinSamplesLeaf, 1) {
		return leaf()
	}
	if t.MaxDepth > 0 && depth >= t.MaxDepth {
		return leaf()
	}

	// candidate features: a partial Fisher-Yates draw of MaxFeatures columns
	featIndices := make([]int, p)
	for j := range featIndices {
		featIndices[j] = j
	}
	if t.MaxFeatures > 0 && t.MaxFeatures < p {
		for i := 0; i < t.MaxFeatures; i++ {
			j := i + rnd.Intn(p-i)
			featIndices[i], featIndices[j] = featIndices[j], featIndices[i]
		}
		featIndices = featIndices[:t.MaxFeatures]
	}

	parentImpurity := impurity(counts)
	results := make([]splitResult, len(featIndices))
	if len(idx) >= parallelSplitMin {
		var wg sync.WaitGroup
		for k, f := range featIndices {
			wg.Add(1)
			go func(k, f int) {
				defer wg.Done()
				results[k] = t.findBestSplitForFeature(X, y, idx, f, counts, parentImpurity, impurity)
			}(k, f)
		}
		wg.Wait()
	} else {
		for k, f := range featIndices {
			results[k] = t.findBestSplitForFeature(X, y, idx, f, counts, parentImpurity, impurity)
		}
	}

	// results are in candidate order, so ties resolve the same way on every run
	best := splitResult{feature: -1}
	for _, r := range results {
		if r.feature >= 0 && r.gain > best.gain {
			best = r
		}
	}
	if best.feature == -1 || best.gain <= t.MinImpurityDecrease {
		return leaf()
	}

	node.feature = best.feature
	node.threshold = best.threshold
	node.left = t.buildNode(X, y, best.leftIdx, depth+1, p, impurity, rnd)
	node.right = t.buildNode(X, y, best.rightIdx, depth+1, p, impurity, rnd)
	return node
}

// findBestSplitForFeature scans the sorted values of feature f and returns the
// threshold with the largest impurity decrease that respects MinSamplesLeaf.
func (t *DecisionTreeClassifier) findBestSplitForFeature(X [][]float64, y []int, idx []int, f int, counts [2]int, parentImpurity float64, impurity func([2]int) float64) splitResult {
	result := splitResult{feature: -1}

	vals := make([]pair, len(idx))
	for k, ii := range idx {
		vals[k] = pair{X[ii][f], ii}
	}
	sort.Slice(vals, func(a, b int) bool { return vals[a].v < vals[b].v })

	minLeaf := max(t.MinSamplesLeaf, 1)
	n := float64(len(vals))
	var left [2]int
	bestPos := -1
	for k := 0; k < len(vals)-1; k++ {
		left[y[vals[k].i]]++
		if vals[k].v == vals[k+1].v {
			continue
		}
		nl := k + 1
		if nl < minLeaf || len(vals)-nl < minLeaf {
			continue
		}
		right := [2]int{counts[0] - left[0], counts[1] - left[1]}
		weighted := float64(nl)/n*impurity(left) + float64(len(vals)-nl)/n*impurity(right)
		if gain := parentImpurity - weighted; gain > result.gain {
			result.gain = gain
			result.threshold = (vals[k].v + vals[k+1].v) / 2
			bestPos = k
		}
	}
	if bestPos < 0 {
		return result
	}

	result.feature = f
	result.leftIdx = make([]int, 0, bestPos+1)
	result.rightIdx = make([]int, 0, len(vals)-bestPos-1)
	for k, pv := range vals {
		if k <= bestPos {
			result.leftIdx = append(result.leftIdx, pv.i)
		} else {
			result.rightIdx = append(result.rightIdx, pv.i)
		}
	}
	return result
}

func countsFromIndices(y []int, idx []int) [2]int {
	var c [2]int
	for _, i := range idx {
		c[y[i]]++
	}
	return c
}

func giniFromCounts(c [2]int) float64 {
	n := float64(c[0] + c[1])
	if n == 0 {
		return 0
	}
	p0, p1 := float64(c[0])/n, float64(c[1])/n
	return 1 - p0*p0 - p1*p1
}

func entropyFromCounts(c [2]int) float64 {
	n := float64(c[0] + c[1])
	if n == 0 {
		return 0
	}
	h := 0.0
	for _, k := range c {
		if k > 0 {
			p := float64(k) / n
			h -= p * math.Log2(p)
		}
	}
	return h
}
