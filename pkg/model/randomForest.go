package model

import (
	"math"
	"math/rand"
	"runtime"
	"sync"
)

// RandomForest is a bagged ensemble of decision trees. The spam probability of a row
// is the mean of the per-tree leaf spam fractions.
type RandomForest struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // mtry; 0 => floor(sqrt(p))
	Bootstrap       bool
	RandomState     int64

	Trees []*DecisionTreeClassifier
}

// RandomForestOption functional config for RandomForest
type RandomForestOption func(*RandomForest)

func WithNEstimators(n int) RandomForestOption { return func(rf *RandomForest) { rf.NEstimators = n } }
func WithBootstrap(b bool) RandomForestOption  { return func(rf *RandomForest) { rf.Bootstrap = b } }
func WithForestMaxFeatures(k int) RandomForestOption {
	return func(rf *RandomForest) { rf.MaxFeatures = k }
}
func WithForestMinSamplesLeaf(n int) RandomForestOption {
	return func(rf *RandomForest) { rf.MinSamplesLeaf = n }
}
func WithForestMaxDepth(d int) RandomForestOption {
	return func(rf *RandomForest) { rf.MaxDepth = d }
}
func WithForestRandomState(seed int64) RandomForestOption {
	return func(rf *RandomForest) { rf.RandomState = seed }
}

// NewRandomForest initializes the forest with defaults.
func NewRandomForest(opts ...RandomForestOption) *RandomForest {
	rf := &RandomForest{
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
	}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

// Fit trains the trees on GOMAXPROCS goroutines. Tree i draws its bootstrap sample and
// its feature subsets from RandomState+i, so the fitted forest does not depend on scheduling.
func (rf *RandomForest) Fit(X [][]float64, y []int) error {
	p, err := checkXY(X, y)
	if err != nil {
		return err
	}
	n := len(X)
	mtry := rf.MaxFeatures
	if mtry <= 0 {
		mtry = max(int(math.Sqrt(float64(p))), 1)
	}
	mtry = min(mtry, p)

	rf.Trees = make([]*DecisionTreeClassifier, rf.NEstimators)
	errs := make([]error, rf.NEstimators)

	var wg sync.WaitGroup
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	for i := 0; i < rf.NEstimators; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			seed := rf.RandomState + int64(idx)
			treeRand := rand.New(rand.NewSource(seed))

			// bootstrap sample as an index slice, not a copy of the data
			sampleIndices := make([]int, n)
			for j := range sampleIndices {
				if rf.Bootstrap {
					sampleIndices[j] = treeRand.Intn(n)
				} else {
					sampleIndices[j] = j
				}
			}

			tree := NewDecisionTreeClassifier(
				WithMaxDepth(rf.MaxDepth),
				WithMinSamplesSplit(rf.MinSamplesSplit),
				WithMinSamplesLeaf(rf.MinSamplesLeaf),
				WithMaxFeatures(mtry),
				WithRandomState(seed),
			)
			if err := tree.FitIndices(X, y, sampleIndices); err != nil {
				errs[idx] = err
				return
			}
			rf.Trees[idx] = tree
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// PredictProba averages the tree probabilities, fanning out over trees.
func (rf *RandomForest) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	if len(rf.Trees) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	perTree := make([][]float64, len(rf.Trees))
	var wg sync.WaitGroup
	for k, tree := range rf.Trees {
		wg.Add(1)
		go func(k int, t *DecisionTreeClassifier) {
			defer wg.Done()
			perTree[k] = t.PredictProba(X)
		}(k, tree)
	}
	wg.Wait()

	// sum in tree order so the result is bit-for-bit reproducible
	for _, probs := range perTree {
		for i, p := range probs {
			out[i] += p
		}
	}
	for i := range out {
		out[i] /= float64(len(rf.Trees))
	}
	return out
}

// Predict labels rows as spam when the mean tree probability is at least 0.5.
func (rf *RandomForest) Predict(X [][]float64) []int {
	return BinaryPredFromProba(rf.PredictProba(X), 0.5)
}
