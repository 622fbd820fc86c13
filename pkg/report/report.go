// Package report renders the results of an experiment run as CSV tables, a text summary and plots.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kssrr/sl-spam-classification/pkg/dataprep"
	"github.com/kssrr/sl-spam-classification/pkg/evaluate"
	"github.com/kssrr/sl-spam-classification/pkg/explore"
	"github.com/kssrr/sl-spam-classification/pkg/logger"
	"github.com/kssrr/sl-spam-classification/pkg/model"
	"github.com/kssrr/sl-spam-classification/pkg/nn"
	"github.com/kssrr/sl-spam-classification/pkg/tuning"
)

// DataInfo describes the input and the split sizes.
type DataInfo struct {
	Path       string
	Rows       int
	Skipped    int
	Duplicates int
	Train      int
	Validation int
	Test       int
}

// Bundle is everything a run produced. Nil sections are left out of the report.
type Bundle struct {
	RunID string
	Seed  int64
	Data  DataInfo

	Explore    *explore.Summary
	Projection *explore.Projection
	Prep       *dataprep.State
	Searches   []*tuning.Result
	History    *nn.History
	Eval       *evaluate.Result

	Significance    []evaluate.Comparison // pairwise, per metric, over bootstrap samples
	ErrorConfidence []evaluate.Comparison // per-record errors of selected model pairs
}

// WriteAll writes every artifact the bundle supports into dir and returns the written paths.
// Plots whose data is entirely undefined are skipped with a warning.
func WriteAll(dir string, b *Bundle, plots bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: creating %s: %w", dir, err)
	}
	log := logger.Named("report")

	var written []string
	write := func(name string, render func(io.Writer) error) error {
		var buf bytes.Buffer
		if err := render(&buf); err != nil {
			return fmt.Errorf("report: rendering %s: %w", name, err)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("report: writing %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}
	draw := func(name string, render func(path string) error) error {
		path := filepath.Join(dir, name)
		if err := render(path); err != nil {
			if errors.Is(err, ErrNothingToPlot) {
				log.Warn("skipping plot", zap.String("file", name), zap.Error(err))
				return nil
			}
			return fmt.Errorf("report: plotting %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	if err := write("summary.txt", func(w io.Writer) error { return WriteSummary(w, b) }); err != nil {
		return written, err
	}
	if b.Explore != nil {
		if err := write("explore.csv", func(w io.Writer) error { return WriteExplore(w, *b.Explore) }); err != nil {
			return written, err
		}
	}
	for _, s := range b.Searches {
		if err := write("search_"+s.Family+".csv", func(w io.Writer) error { return WriteSearch(w, s) }); err != nil {
			return written, err
		}
	}
	if b.History != nil {
		if err := write("history_mlp.csv", func(w io.Writer) error { return WriteHistory(w, b.History) }); err != nil {
			return written, err
		}
	}
	if b.Eval != nil {
		if err := write("metrics.csv", func(w io.Writer) error { return WriteMetrics(w, b.Eval) }); err != nil {
			return written, err
		}
	}
	if len(b.Significance) > 0 || len(b.ErrorConfidence) > 0 {
		cmps := append(append([]evaluate.Comparison(nil), b.Significance...), b.ErrorConfidence...)
		if err := write("significance.csv", func(w io.Writer) error { return WriteSignificance(w, cmps) }); err != nil {
			return written, err
		}
	}

	if plots {
		if b.Eval != nil {
			for _, metric := range model.MetricNames {
				if err := draw("ci_"+metric+".png", func(path string) error { return PlotIntervals(b.Eval, metric, path) }); err != nil {
					return written, err
				}
			}
		}
		if b.History != nil {
			if err := draw("mlp_loss.png", func(path string) error { return PlotLoss(b.History, path) }); err != nil {
				return written, err
			}
		}
		if b.Projection != nil {
			if err := draw("pca.png", func(path string) error { return PlotPCA(b.Projection, path) }); err != nil {
				return written, err
			}
		}
	}

	log.Info("report written", zap.String("dir", dir), zap.Int("files", len(written)))
	return written, nil
}
