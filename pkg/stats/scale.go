package stats

import "errors"

// ErrNotFitted is returned when a scaler is used before Fit.
var ErrNotFitted = errors.New("stats: scaler used before Fit")

// MinMaxScaler maps each column to [0, 1] using the minimum and maximum seen by Fit.
// Values outside the fitted range are passed through, so they land outside [0, 1].
type MinMaxScaler struct {
	Min []float64
	Max []float64
	fit bool
}

func NewMinMaxScaler() *MinMaxScaler { return &MinMaxScaler{} }

func (s *MinMaxScaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return errors.New("stats: cannot fit scaler on empty data")
	}
	c := len(X[0])
	s.Min = make([]float64, c)
	s.Max = make([]float64, c)
	for j := 0; j < c; j++ {
		s.Min[j], s.Max[j] = MinMax(Column(X, j))
	}
	s.fit = true
	return nil
}

// Transform scales X with the fitted ranges. Constant columns map to 0.
func (s *MinMaxScaler) Transform(X [][]float64) ([][]float64, error) {
	if !s.fit {
		return nil, ErrNotFitted
	}
	Y := make([][]float64, len(X))
	for i, x := range X {
		if len(x) != len(s.Min) {
			return nil, errors.New("stats: column count differs from fitted data")
		}
		row := make([]float64, len(x))
		for j, v := range x {
			if span := s.Max[j] - s.Min[j]; span != 0 {
				row[j] = (v - s.Min[j]) / span
			}
		}
		Y[i] = row
	}
	return Y, nil
}

// OutOfRange counts the cells of X that fall outside [0, 1].
func OutOfRange(X [][]float64) int {
	n := 0
	for _, row := range X {
		for _, v := range row {
			if v < 0 || v > 1 {
				n++
			}
		}
	}
	return n
}
