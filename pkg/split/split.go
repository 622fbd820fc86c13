// Package split partitions labeled records into stratified subsets and folds.
// Every function takes an explicit random source; nothing here touches the global rand.
package split

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/kssrr/sl-spam-classification/pkg/data"
)

var (
	// ErrBadRatio is returned when split fractions are outside (0,1) or sum to 1 or more.
	ErrBadRatio = errors.New("split: fractions must be in (0,1) and sum to less than 1")
	// ErrTooFewMembers is returned when a class cannot be spread over the requested parts.
	ErrTooFewMembers = errors.New("split: too few class members to stratify")
	// ErrBadFolds is returned for a fold count below 1.
	ErrBadFolds = errors.New("split: fold count must be at least 1")
)

// Partition holds the three disjoint subsets of a stratified split.
type Partition struct {
	Train, Validation, Test *data.Dataset
	// Index sets into the source dataset, sorted ascending.
	TrainIdx, ValidationIdx, TestIdx []int
}

// Stratified splits ds into train/validation/test with the given fractions, shuffling
// each class separately so every part keeps roughly the overall class ratio.
func Stratified(ds *data.Dataset, trainFrac, valFrac float64, rng *rand.Rand) (*Partition, error) {
	if trainFrac <= 0 || valFrac <= 0 || trainFrac >= 1 || valFrac >= 1 || trainFrac+valFrac >= 1 {
		return nil, ErrBadRatio
	}
	if ds.Len() == 0 {
		return nil, data.ErrEmpty
	}

	var trainIdx, valIdx, testIdx []int
	groups := data.IndicesByClass(ds.Y)
	for _, label := range []int{data.Ham, data.Spam} {
		idx := groups[label]
		n := len(idx)
		if n == 0 {
			continue
		}
		if n < 3 {
			return nil, fmt.Errorf("%w: class %d has %d records, need at least 3", ErrTooFewMembers, label, n)
		}
		shuffled := shuffle(idx, rng)

		nTrain := int(math.Round(float64(n) * trainFrac))
		nVal := int(math.Round(float64(n) * valFrac))
		// every part receives at least one member of the class
		nTrain = clamp(nTrain, 1, n-2)
		nVal = clamp(nVal, 1, n-nTrain-1)

		trainIdx = append(trainIdx, shuffled[:nTrain]...)
		valIdx = append(valIdx, shuffled[nTrain:nTrain+nVal]...)
		testIdx = append(testIdx, shuffled[nTrain+nVal:]...)
	}

	sort.Ints(trainIdx)
	sort.Ints(valIdx)
	sort.Ints(testIdx)
	return &Partition{
		Train:         ds.Subset(trainIdx),
		Validation:    ds.Subset(valIdx),
		Test:          ds.Subset(testIdx),
		TrainIdx:      trainIdx,
		ValidationIdx: valIdx,
		TestIdx:       testIdx,
	}, nil
}

// Folds is a stratified k-fold assignment over n records.
type Folds struct {
	N     int
	Parts [][]int // held-out indices of each fold, sorted ascending
}

// K is the number of folds.
func (f *Folds) K() int { return len(f.Parts) }

// HoldOut returns the held-out indices of fold i.
func (f *Folds) HoldOut(i int) []int {
	if f.K() == 1 {
		return allIndices(f.N)
	}
	return f.Parts[i]
}

// TrainIndices returns the union of every fold but i, sorted ascending.
func (f *Folds) TrainIndices(i int) []int {
	if f.K() == 1 {
		return allIndices(f.N)
	}
	out := make([]int, 0, f.N-len(f.Parts[i]))
	for j, part := range f.Parts {
		if j != i {
			out = append(out, part...)
		}
	}
	sort.Ints(out)
	return out
}

// StratifiedKFold deals each class's shuffled indices round-robin into k folds.
// With k=1 the single fold trains and scores on all records.
func StratifiedKFold(y []int, k int, rng *rand.Rand) (*Folds, error) {
	if k < 1 {
		return nil, ErrBadFolds
	}
	if len(y) == 0 {
		return nil, data.ErrEmpty
	}

	parts := make([][]int, k)
	groups := data.IndicesByClass(y)
	offset := 0
	for _, label := range []int{data.Ham, data.Spam} {
		idx := groups[label]
		if len(idx) == 0 {
			continue
		}
		if len(idx) < k {
			return nil, fmt.Errorf("%w: class %d has %d records for %d folds", ErrTooFewMembers, label, len(idx), k)
		}
		for i, j := range shuffle(idx, rng) {
			// continue the round-robin where the previous class stopped to even out fold sizes
			f := (offset + i) % k
			parts[f] = append(parts[f], j)
		}
		offset += len(idx)
	}
	for _, p := range parts {
		sort.Ints(p)
	}
	return &Folds{N: len(y), Parts: parts}, nil
}

func shuffle(idx []int, rng *rand.Rand) []int {
	out := append([]int(nil), idx...)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
