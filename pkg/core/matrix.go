package core

import (
	"errors"
	"runtime"
	"sync"
)

// ErrDimension is returned when operand shapes do not line up.
var ErrDimension = errors.New("core: dimension mismatch")

// parallelThreshold is the number of multiply-adds below which MatMul stays on one goroutine.
const parallelThreshold = 1 << 15

// Matrix is a dense row-major matrix.
type Matrix struct {
	R, C int
	Data []float64
}

// NewMatrix allocates a zero matrix.
func NewMatrix(r, c int) *Matrix {
	return &Matrix{R: r, C: c, Data: make([]float64, r*c)}
}

// FromSlice creates a Matrix from a nested slice (copies the values).
func FromSlice(a [][]float64) *Matrix {
	r := len(a)
	if r == 0 {
		return &Matrix{R: 0, C: 0}
	}

	c := len(a[0])
	m := NewMatrix(r, c)
	for i := 0; i < r; i++ {
		copy(m.Row(i), a[i])
	}
	return m
}

// At returns element (i, j)
func (m *Matrix) At(i, j int) float64 { return m.Data[i*m.C+j] }

// Set sets element (i, j)
func (m *Matrix) Set(i, j int, v float64) { m.Data[i*m.C+j] = v }

// Row returns row i as a slice sharing the matrix storage.
func (m *Matrix) Row(i int) []float64 { return m.Data[i*m.C : (i+1)*m.C] }

// Clone Deep Copies of Matrix
func (m *Matrix) Clone() *Matrix {
	n := &Matrix{R: m.R, C: m.C, Data: make([]float64, len(m.Data))}
	copy(n.Data, m.Data)
	return n
}

func (m *Matrix) Transpose() *Matrix {
	t := NewMatrix(m.C, m.R)
	for i := 0; i < m.R; i++ {
		for j := 0; j < m.C; j++ {
			t.Set(j, i, m.At(i, j))
		}
	}
	return t
}

// MatMul returns A·B. Large products are split by rows across GOMAXPROCS goroutines.
func MatMul(A, B *Matrix) (*Matrix, error) {
	if A.C != B.R {
		return nil, ErrDimension
	}

	C := NewMatrix(A.R, B.C)
	mulRows := func(rs, re int) {
		for i := rs; i < re; i++ {
			ci := C.Row(i)
			for k, ai := range A.Row(i) {
				if ai == 0 {
					continue
				}
				for j, b := range B.Row(k) {
					ci[j] += ai * b
				}
			}
		}
	}

	if A.R*A.C*B.C < parallelThreshold {
		mulRows(0, A.R)
		return C, nil
	}

	workers := runtime.GOMAXPROCS(0)
	var wg sync.WaitGroup
	rowsPerWorker := (A.R + workers - 1) / workers

	for w := 0; w < workers; w++ {
		start := w * rowsPerWorker
		end := min(start+rowsPerWorker, A.R)
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(rs, re int) {
			defer wg.Done()
			mulRows(rs, re)
		}(start, end)
	}
	wg.Wait()
	return C, nil
}

// AddRowVector adds v to every row of m in place.
func (m *Matrix) AddRowVector(v []float64) error {
	if len(v) != m.C {
		return ErrDimension
	}
	for i := 0; i < m.R; i++ {
		row := m.Row(i)
		for j := range row {
			row[j] += v[j]
		}
	}
	return nil
}

// SumRows returns the column sums of m (length C).
func (m *Matrix) SumRows() []float64 {
	out := make([]float64, m.C)
	for i := 0; i < m.R; i++ {
		for j, v := range m.Row(i) {
			out[j] += v
		}
	}
	return out
}

// MulElem multiplies m by B element-wise in place.
func (m *Matrix) MulElem(B *Matrix) error {
	if m.R != B.R || m.C != B.C {
		return ErrDimension
	}
	for i := range m.Data {
		m.Data[i] *= B.Data[i]
	}
	return nil
}

// Apply applies f element-wise (in-place, pointer receiver for efficiency).
func (m *Matrix) Apply(f func(float64) float64) {
	for i := 0; i < len(m.Data); i++ {
		m.Data[i] = f(m.Data[i])
	}
}

// Scale multiplies every element by s in place.
func (m *Matrix) Scale(s float64) {
	for i := range m.Data {
		m.Data[i] *= s
	}
}
