package explore

import (
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"

	"github.com/kssrr/sl-spam-classification/pkg/data"
	"github.com/kssrr/sl-spam-classification/pkg/logger"
	"github.com/kssrr/sl-spam-classification/pkg/stats"
)

// FeatureSummary describes one feature column.
type FeatureSummary struct {
	Name     string
	Mean     float64
	Std      float64
	Min      float64
	Max      float64
	ZeroFrac float64
	HamMean  float64
	SpamMean float64
}

// Summary is the descriptive overview of a dataset.
type Summary struct {
	Rows     int
	Ham      int
	Spam     int
	Features []FeatureSummary
}

// SpamShare is the fraction of spam records.
func (s Summary) SpamShare() float64 {
	if s.Rows == 0 {
		return math.NaN()
	}
	return float64(s.Spam) / float64(s.Rows)
}

// Summarize computes per-feature statistics and class counts.
func Summarize(ds *data.Dataset) Summary {
	ham, spam := ds.ClassCounts()
	s := Summary{Rows: ds.Len(), Ham: ham, Spam: spam}
	byClass := data.IndicesByClass(ds.Y)

	classMean := func(j int, idx []int) float64 {
		if len(idx) == 0 {
			return math.NaN()
		}
		sum := 0.0
		for _, i := range idx {
			sum += ds.X[i][j]
		}
		return sum / float64(len(idx))
	}

	for j, name := range ds.Schema.FeatureNames {
		col := stats.Column(ds.X, j)
		lo, hi := stats.MinMax(col)
		zeros := 0
		for _, v := range col {
			if v == 0 {
				zeros++
			}
		}
		s.Features = append(s.Features, FeatureSummary{
			Name:     name,
			Mean:     stats.Mean(col),
			Std:      stats.Std(col),
			Min:      lo,
			Max:      hi,
			ZeroFrac: float64(zeros) / float64(len(col)),
			HamMean:  classMean(j, byClass[data.Ham]),
			SpamMean: classMean(j, byClass[data.Spam]),
		})
	}
	return s
}

// Projection is a 2-D PCA view of a dataset.
type Projection struct {
	Points         [][]float64 // one (pc1, pc2) pair per record
	Labels         []int
	ExplainedRatio []float64
}

// Project log-transforms and min-max-normalizes the features, then projects them onto
// the first two principal components.
func Project(ds *data.Dataset, rng *rand.Rand) (*Projection, error) {
	if ds.Len() < 2 || ds.Schema.Width() < 2 {
		return nil, fmt.Errorf("explore: projection needs at least 2 rows and 2 features: %w", ErrEmpty)
	}

	logged := make([][]float64, ds.Len())
	for i, row := range ds.X {
		logged[i] = make([]float64, len(row))
		for j, v := range row {
			logged[i][j] = math.Log1p(v)
		}
	}
	scaler := stats.NewMinMaxScaler()
	if err := scaler.Fit(logged); err != nil {
		return nil, err
	}
	scaled, err := scaler.Transform(logged)
	if err != nil {
		return nil, err
	}

	pca := NewPCA(2, 200)
	if err := pca.Fit(scaled, rng); err != nil {
		return nil, err
	}
	points, err := pca.Transform(scaled)
	if err != nil {
		return nil, err
	}

	ratio := pca.ExplainedRatio()
	logger.Named("explore").Info("pca projection",
		zap.Int("rows", ds.Len()),
		zap.Float64s("explained_ratio", ratio))
	return &Projection{Points: points, Labels: ds.Y, ExplainedRatio: ratio}, nil
}
