package data

import (
	"errors"
	"fmt"
)

// Class labels. Spam is the positive class everywhere in the report.
const (
	Ham  = 0
	Spam = 1
)

var (
	// ErrEmpty is returned when a dataset has no records.
	ErrEmpty = errors.New("data: dataset is empty")
	// ErrShape is returned when rows, labels and schema disagree in size.
	ErrShape = errors.New("data: inconsistent dataset shape")
)

// Schema describes the feature columns of a dataset.
type Schema struct {
	FeatureNames []string
}

// Width is the number of features.
func (s Schema) Width() int { return len(s.FeatureNames) }

// Equal reports whether two schemas name the same features in the same order.
func (s Schema) Equal(o Schema) bool {
	if len(s.FeatureNames) != len(o.FeatureNames) {
		return false
	}
	for i, name := range s.FeatureNames {
		if o.FeatureNames[i] != name {
			return false
		}
	}
	return true
}

// Select returns the schema restricted to the given column indices.
func (s Schema) Select(cols []int) Schema {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = s.FeatureNames[c]
	}
	return Schema{FeatureNames: names}
}

// Dataset is an ordered collection of labeled records.
type Dataset struct {
	Schema Schema
	X      [][]float64
	Y      []int
}

// New builds a dataset and checks its shape.
func New(schema Schema, X [][]float64, y []int) (*Dataset, error) {
	ds := &Dataset{Schema: schema, X: X, Y: y}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// Len is the number of records.
func (d *Dataset) Len() int { return len(d.Y) }

// Validate checks that every row matches the schema width and every label is binary.
func (d *Dataset) Validate() error {
	if len(d.X) != len(d.Y) {
		return fmt.Errorf("%w: %d rows but %d labels", ErrShape, len(d.X), len(d.Y))
	}
	w := d.Schema.Width()
	for i, row := range d.X {
		if len(row) != w {
			return fmt.Errorf("%w: row %d has %d features, schema has %d", ErrShape, i, len(row), w)
		}
		if d.Y[i] != Ham && d.Y[i] != Spam {
			return fmt.Errorf("%w: row %d has label %d", ErrShape, i, d.Y[i])
		}
	}
	return nil
}

// Subset returns the records at idx in that order. Rows are shared, not copied.
func (d *Dataset) Subset(idx []int) *Dataset {
	out := &Dataset{
		Schema: d.Schema,
		X:      make([][]float64, len(idx)),
		Y:      make([]int, len(idx)),
	}
	for i, j := range idx {
		out.X[i] = d.X[j]
		out.Y[i] = d.Y[j]
	}
	return out
}

// ClassCounts returns the number of ham and spam records.
func (d *Dataset) ClassCounts() (ham, spam int) {
	return CountLabels(d.Y)
}

// CountLabels counts ham and spam labels.
func CountLabels(y []int) (ham, spam int) {
	for _, v := range y {
		if v == Spam {
			spam++
		} else {
			ham++
		}
	}
	return
}

// IndicesByClass groups record indices by label, preserving order.
func IndicesByClass(y []int) map[int][]int {
	groups := map[int][]int{Ham: nil, Spam: nil}
	for i, v := range y {
		groups[v] = append(groups[v], i)
	}
	return groups
}
