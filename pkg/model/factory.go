package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Model families with a hyperparameter grid.
const (
	FamilyLogReg = "logreg"
	FamilyNB     = "nb"
	FamilyRF     = "rf"
)

// Families lists the families Build understands, in report order.
var Families = []string{FamilyLogReg, FamilyNB, FamilyRF}

// DisplayName returns a human-readable family name for reports.
func DisplayName(family string) string {
	switch family {
	case FamilyLogReg:
		return "Penalized logistic regression"
	case FamilyNB:
		return "Naive Bayes"
	case FamilyRF:
		return "Random forest"
	case "mlp":
		return "Neural network"
	}
	return family
}

// Params is one hyperparameter configuration: name -> value.
type Params map[string]float64

// Get returns the value for name or dflt when absent.
func (p Params) Get(name string, dflt float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return dflt
}

// Int returns the value for name truncated to an int, or dflt when absent.
func (p Params) Int(name string, dflt int) int {
	if v, ok := p[name]; ok {
		return int(v)
	}
	return dflt
}

// String renders the configuration as "a=1 b=0.5" with names sorted.
func (p Params) String() string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = k + "=" + strconv.FormatFloat(p[k], 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

// Builder creates an unfitted classifier for a configuration and seed.
type Builder func(params Params, seed int64) (Classifier, error)

// BuilderFor returns the Builder of a family.
func BuilderFor(family string) (Builder, error) {
	switch family {
	case FamilyLogReg:
		return func(p Params, _ int64) (Classifier, error) {
			lambda, alpha := p.Get("lambda", 0), p.Get("alpha", 0)
			if lambda < 0 || alpha < 0 || alpha > 1 {
				return nil, fmt.Errorf("model: logreg lambda=%g alpha=%g out of range", lambda, alpha)
			}
			return NewLogisticRegression(lambda, alpha), nil
		}, nil
	case FamilyNB:
		return func(p Params, _ int64) (Classifier, error) {
			vs := p.Get("var_smoothing", 1e-9)
			if vs < 0 {
				return nil, fmt.Errorf("model: nb var_smoothing=%g must be >= 0", vs)
			}
			return NewGaussianNB(vs), nil
		}, nil
	case FamilyRF:
		return func(p Params, seed int64) (Classifier, error) {
			nTrees := p.Int("n_trees", 100)
			if nTrees < 1 {
				return nil, fmt.Errorf("model: rf n_trees=%d must be >= 1", nTrees)
			}
			return NewRandomForest(
				WithNEstimators(nTrees),
				WithForestMaxFeatures(p.Int("mtry", 0)),
				WithForestMinSamplesLeaf(max(p.Int("min_leaf", 1), 1)),
				WithForestMaxDepth(p.Int("max_depth", 0)),
				WithBootstrap(p.Get("bootstrap", 1) != 0),
				WithForestRandomState(seed),
			), nil
		}, nil
	}
	return nil, fmt.Errorf("model: unknown family %q", family)
}

// Build creates an unfitted classifier of the given family.
func Build(family string, params Params, seed int64) (Classifier, error) {
	b, err := BuilderFor(family)
	if err != nil {
		return nil, err
	}
	return b(params, seed)
}
