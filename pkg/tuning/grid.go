// Package tuning runs the cross-validated hyperparameter grid search.
package tuning

import (
	"errors"
	"sort"

	"github.com/kssrr/sl-spam-classification/pkg/model"
)

// ErrEmptyGrid is returned for a grid without parameters or with an empty value list.
var ErrEmptyGrid = errors.New("tuning: grid has no configurations")

// Grid maps each hyperparameter name to the values to try.
type Grid map[string][]float64

// Names returns the parameter names in lexicographic order.
func (g Grid) Names() []string {
	names := make([]string, 0, len(g))
	for k := range g {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Configurations enumerates the cartesian product. Names are walked in lexicographic
// order with the last name varying fastest, and values in their listed order, so the
// enumeration is identical on every call.
func (g Grid) Configurations() ([]model.Params, error) {
	names := g.Names()
	if len(names) == 0 {
		return nil, ErrEmptyGrid
	}
	total := 1
	for _, name := range names {
		if len(g[name]) == 0 {
			return nil, ErrEmptyGrid
		}
		total *= len(g[name])
	}

	out := make([]model.Params, 0, total)
	pos := make([]int, len(names))
	for {
		p := make(model.Params, len(names))
		for i, name := range names {
			p[name] = g[name][pos[i]]
		}
		out = append(out, p)

		// odometer increment
		i := len(names) - 1
		for ; i >= 0; i-- {
			pos[i]++
			if pos[i] < len(g[names[i]]) {
				break
			}
			pos[i] = 0
		}
		if i < 0 {
			return out, nil
		}
	}
}
