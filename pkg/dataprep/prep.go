// Package dataprep learns the preprocessing of the training set and replays it on
// validation and test data.
package dataprep

import (
	"errors"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/kssrr/sl-spam-classification/pkg/config"
	"github.com/kssrr/sl-spam-classification/pkg/data"
	"github.com/kssrr/sl-spam-classification/pkg/logger"
	"github.com/kssrr/sl-spam-classification/pkg/stats"
)

// ErrSchemaMismatch is returned when Apply sees features other than the ones Fit saw.
var ErrSchemaMismatch = errors.New("dataprep: schema mismatch")

// State is everything Fit learned from the training set.
type State struct {
	Options      config.PreprocessConfig
	InputSchema  data.Schema
	OutputSchema data.Schema

	Scaler *stats.MinMaxScaler // nil when normalization is disabled
	Keep   []int               // retained input columns, in input order

	Synthetic         int      // records added by SMOTE
	DroppedCorrelated []string // names removed by correlation pruning
	DroppedNZV        []string // names removed as near-zero variance
}

// Fit learns the preprocessing on train and returns it with the transformed
// (and, when enabled, oversampled) training set.
func Fit(train *data.Dataset, opts config.PreprocessConfig, rng *rand.Rand) (*State, *data.Dataset, error) {
	if err := train.Validate(); err != nil {
		return nil, nil, fmt.Errorf("dataprep: training set: %w", err)
	}
	log := logger.Named("dataprep")
	st := &State{Options: opts, InputSchema: train.Schema}

	ds := train
	if opts.Oversample {
		var err error
		ds, st.Synthetic, err = SMOTE(train, opts.Neighbors, rng)
		if err != nil {
			return nil, nil, err
		}
		ham, spam := ds.ClassCounts()
		log.Info("oversampled minority class",
			zap.Int("synthetic", st.Synthetic),
			zap.Int("ham", ham),
			zap.Int("spam", spam))
	}

	X := ds.X
	if opts.LogTransform {
		X = LogTransform(X, opts.LogOffset)
	}
	if opts.Normalize {
		st.Scaler = stats.NewMinMaxScaler()
		if err := st.Scaler.Fit(X); err != nil {
			return nil, nil, err
		}
		var err error
		if X, err = st.Scaler.Transform(X); err != nil {
			return nil, nil, err
		}
	}

	keep := make([]int, train.Schema.Width())
	for j := range keep {
		keep[j] = j
	}
	if opts.PruneCorrelated {
		var dropped []int
		keep, dropped = CorrelatedColumns(X, keep, opts.CorrelationCutoff)
		st.DroppedCorrelated = train.Schema.Select(dropped).FeatureNames
	}
	if opts.PruneNearZeroVariance {
		retained := keep[:0:0]
		var dropped []int
		for _, j := range keep {
			if NearZeroVariance(stats.Column(X, j), opts.FreqRatio, opts.UniqueCut) {
				dropped = append(dropped, j)
			} else {
				retained = append(retained, j)
			}
		}
		keep = retained
		st.DroppedNZV = train.Schema.Select(dropped).FeatureNames
	}
	if len(keep) == 0 {
		return nil, nil, fmt.Errorf("dataprep: every feature was pruned: %w", data.ErrShape)
	}

	st.Keep = keep
	st.OutputSchema = train.Schema.Select(keep)
	log.Info("preprocessing fitted",
		zap.Int("features_in", train.Schema.Width()),
		zap.Int("features_out", len(keep)),
		zap.Strings("dropped_correlated", st.DroppedCorrelated),
		zap.Strings("dropped_nzv", st.DroppedNZV))

	out, err := data.New(st.OutputSchema, FeatureSelect(X, keep), ds.Y)
	if err != nil {
		return nil, nil, err
	}
	return st, out, nil
}

// Apply replays the fitted steps on ds. It never oversamples.
func Apply(st *State, ds *data.Dataset) (*data.Dataset, error) {
	if !ds.Schema.Equal(st.InputSchema) {
		return nil, fmt.Errorf("%w: got %d features, fitted on %d",
			ErrSchemaMismatch, ds.Schema.Width(), st.InputSchema.Width())
	}
	for _, row := range ds.X {
		if len(row) != st.InputSchema.Width() {
			return nil, fmt.Errorf("%w: row width %d", ErrSchemaMismatch, len(row))
		}
	}

	X := ds.X
	if st.Options.LogTransform {
		X = LogTransform(X, st.Options.LogOffset)
	}
	if st.Scaler != nil {
		var err error
		if X, err = st.Scaler.Transform(X); err != nil {
			return nil, err
		}
	}
	X = FeatureSelect(X, st.Keep)

	if st.Scaler != nil {
		if n := stats.OutOfRange(X); n > 0 {
			logger.Named("dataprep").Debug("normalized cells outside [0,1]", zap.Int("cells", n))
		}
	}
	return data.New(st.OutputSchema, X, ds.Y)
}
