package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kssrr/sl-spam-classification/pkg/core"
)

// TestMatMul_Small checks a 2x3 · 3x2 product by hand.
func TestMatMul_Small(t *testing.T) {
	a := core.FromSlice([][]float64{{1, 2, 3}, {4, 5, 6}})
	b := core.FromSlice([][]float64{{7, 8}, {9, 10}, {11, 12}})

	c, err := core.MatMul(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{58, 64, 139, 154}, c.Data)
}

// TestMatMul_ParallelMatchesSerial checks that the row-split path gives the same result
// as a plain triple loop on a product large enough to be parallelized.
func TestMatMul_ParallelMatchesSerial(t *testing.T) {
	a := core.NewMatrix(120, 40)
	b := core.NewMatrix(40, 30)
	for i := range a.Data {
		a.Data[i] = float64(i%7) - 3
	}
	for i := range b.Data {
		b.Data[i] = float64(i%5) * 0.5
	}

	c, err := core.MatMul(a, b)
	require.NoError(t, err)

	for i := 0; i < a.R; i++ {
		for j := 0; j < b.C; j++ {
			want := 0.0
			for k := 0; k < a.C; k++ {
				want += a.At(i, k) * b.At(k, j)
			}
			assert.InDelta(t, want, c.At(i, j), 1e-9)
		}
	}
}

// TestMatMul_DimensionMismatch ensures incompatible shapes are rejected.
func TestMatMul_DimensionMismatch(t *testing.T) {
	_, err := core.MatMul(core.NewMatrix(2, 3), core.NewMatrix(2, 3))
	assert.ErrorIs(t, err, core.ErrDimension)
}

// TestRowHelpers covers AddRowVector, SumRows, MulElem and Transpose.
func TestRowHelpers(t *testing.T) {
	m := core.FromSlice([][]float64{{1, 2}, {3, 4}, {5, 6}})

	require.NoError(t, m.AddRowVector([]float64{10, 20}))
	assert.Equal(t, []float64{11, 22, 13, 24, 15, 26}, m.Data)
	assert.Equal(t, []float64{39, 72}, m.SumRows())
	assert.ErrorIs(t, m.AddRowVector([]float64{1}), core.ErrDimension)

	mask := core.FromSlice([][]float64{{0, 1}, {1, 0}, {2, 2}})
	require.NoError(t, m.MulElem(mask))
	assert.Equal(t, []float64{0, 22, 13, 0, 30, 52}, m.Data)

	tr := m.Transpose()
	assert.Equal(t, 2, tr.R)
	assert.Equal(t, 3, tr.C)
	assert.Equal(t, 13.0, tr.At(0, 1))

	m.Set(0, 0, 9)
	assert.Equal(t, 9.0, m.At(0, 0))
	assert.Equal(t, []float64{9, 22}, m.Row(0))
}
