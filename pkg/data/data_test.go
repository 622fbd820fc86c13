package data_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kssrr/sl-spam-classification/pkg/data"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spam.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestLoadCSV_Headerless checks parsing, default names and malformed row skipping.
func TestLoadCSV_Headerless(t *testing.T) {
	path := writeFile(t, "0.1,0,1\n0.5,2,0\nbad,1,1\n0.3,1\n0.2,0.2,7\n1,1,1\n")

	ds, st, err := data.LoadCSV(path, data.CSVOptions{LabelColumn: -1})
	require.NoError(t, err)

	assert.Equal(t, 3, st.Rows)
	assert.Equal(t, 3, st.Skipped, "unparsable cell, short row and non-binary label are skipped")
	assert.False(t, st.HasHeader)
	assert.Equal(t, []string{"x1", "x2"}, ds.Schema.FeatureNames)
	assert.Equal(t, [][]float64{{0.1, 0}, {0.5, 2}, {1, 1}}, ds.X)
	assert.Equal(t, []int{1, 0, 1}, ds.Y)
}

// TestLoadCSV_HeaderAndLabelColumn checks header detection with a leading label column.
func TestLoadCSV_HeaderAndLabelColumn(t *testing.T) {
	path := writeFile(t, "spam,free,money\n1,0.5,0.1\n0,0,0\n")

	ds, st, err := data.LoadCSV(path, data.CSVOptions{LabelColumn: 0})
	require.NoError(t, err)

	assert.True(t, st.HasHeader)
	assert.Equal(t, []string{"free", "money"}, ds.Schema.FeatureNames)
	assert.Equal(t, []int{1, 0}, ds.Y)
	assert.Equal(t, []float64{0.5, 0.1}, ds.X[0])
}

// TestLoadCSV_MixedFirstRow keeps a first row with a single missing value as data, so its
// cells never become feature names; the row itself is skipped as malformed.
func TestLoadCSV_MixedFirstRow(t *testing.T) {
	path := writeFile(t, "0.4,NA,1\n0.5,2,0\n0.1,0.3,1\n")

	ds, st, err := data.LoadCSV(path, data.CSVOptions{LabelColumn: -1})
	require.NoError(t, err)

	assert.False(t, st.HasHeader)
	assert.Equal(t, 1, st.Skipped)
	assert.Equal(t, 2, st.Rows)
	assert.Equal(t, []string{"x1", "x2"}, ds.Schema.FeatureNames)
	assert.Equal(t, [][]float64{{0.5, 2}, {0.1, 0.3}}, ds.X)
}

// TestLoadCSV_Empty reports files without valid rows.
func TestLoadCSV_Empty(t *testing.T) {
	_, _, err := data.LoadCSV(writeFile(t, ""), data.CSVOptions{LabelColumn: -1})
	assert.ErrorIs(t, err, data.ErrEmpty)

	_, _, err = data.LoadCSV(writeFile(t, "a,b,label\n"), data.CSVOptions{LabelColumn: -1})
	assert.ErrorIs(t, err, data.ErrEmpty)

	_, _, err = data.LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), data.CSVOptions{LabelColumn: -1})
	assert.Error(t, err)
}

// TestStream_Stop ends a stream before it is drained.
func TestStream_Stop(t *testing.T) {
	path := writeFile(t, "1,0\n2,1\n3,0\n")
	s, err := data.StreamCSV(path, data.CSVOptions{LabelColumn: -1})
	require.NoError(t, err)

	first := <-s.Samples
	assert.Equal(t, []float64{1}, first.X)
	s.Stop()
	s.Stop()
	for range s.Samples {
	}
}

// TestDefaultFeatureNames uses the Spambase names for 57 columns.
func TestDefaultFeatureNames(t *testing.T) {
	names := data.DefaultFeatureNames(data.SpambaseWidth)
	require.Len(t, names, 57)
	assert.Equal(t, "word_freq_make", names[0])
	assert.Equal(t, "capital_run_length_total", names[56])
}

// TestDropDuplicates keeps the first occurrence and treats labels as part of the record.
func TestDropDuplicates(t *testing.T) {
	ds, err := data.New(data.Schema{FeatureNames: []string{"a", "b"}},
		[][]float64{{1, 2}, {1, 2}, {1, 2}, {3, 4}}, []int{0, 0, 1, 0})
	require.NoError(t, err)

	out, dropped := data.DropDuplicates(ds)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, []int{0, 1, 0}, out.Y)
	assert.Equal(t, [][]float64{{1, 2}, {1, 2}, {3, 4}}, out.X)
}

// TestDatasetValidate rejects ragged rows and non-binary labels.
func TestDatasetValidate(t *testing.T) {
	schema := data.Schema{FeatureNames: []string{"a"}}
	_, err := data.New(schema, [][]float64{{1}, {1, 2}}, []int{0, 1})
	assert.ErrorIs(t, err, data.ErrShape)
	_, err = data.New(schema, [][]float64{{1}}, []int{2})
	assert.ErrorIs(t, err, data.ErrShape)
	_, err = data.New(schema, [][]float64{{1}}, []int{0, 1})
	assert.ErrorIs(t, err, data.ErrShape)
}

// TestSchema covers equality and column selection.
func TestSchema(t *testing.T) {
	s := data.Schema{FeatureNames: []string{"a", "b", "c"}}
	assert.True(t, s.Equal(data.Schema{FeatureNames: []string{"a", "b", "c"}}))
	assert.False(t, s.Equal(data.Schema{FeatureNames: []string{"a", "c", "b"}}))
	assert.False(t, s.Equal(data.Schema{FeatureNames: []string{"a"}}))
	assert.Equal(t, []string{"c", "a"}, s.Select([]int{2, 0}).FeatureNames)
}

// TestMiniBatches checks batch sizes and the flushed remainder.
func TestMiniBatches(t *testing.T) {
	X := [][]float64{{0}, {1}, {2}, {3}, {4}}
	y := []int{0, 1, 0, 1, 0}

	batches := data.MiniBatches(X, y, []int{4, 3, 2, 1, 0}, 2)
	require.Len(t, batches, 3)
	assert.Equal(t, []int{4, 3}, batches[0].Index)
	assert.Equal(t, [][]float64{{4}, {3}}, batches[0].X)
	assert.Equal(t, []int{0, 1}, batches[0].Y)
	assert.Equal(t, []int{0}, batches[2].Index)
}
