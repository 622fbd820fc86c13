package report

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/kssrr/sl-spam-classification/pkg/evaluate"
	"github.com/kssrr/sl-spam-classification/pkg/explore"
	"github.com/kssrr/sl-spam-classification/pkg/model"
	"github.com/kssrr/sl-spam-classification/pkg/nn"
	"github.com/kssrr/sl-spam-classification/pkg/tuning"
)

// formatFloat renders NaN as "NaN" and everything else in the shortest exact form.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteMetrics writes one row per (model, metric) with the point estimate and bootstrap interval.
func WriteMetrics(w io.Writer, res *evaluate.Result) error {
	var rows [][]string
	for _, r := range res.Rows() {
		rows = append(rows, []string{
			r.Model, r.Metric,
			formatFloat(r.Estimate), formatFloat(r.Mean), formatFloat(r.Lower), formatFloat(r.Upper),
			strconv.Itoa(r.Undefined),
		})
	}
	return writeCSV(w, []string{"model", "metric", "estimate", "mean", "lower", "upper", "undefined"}, rows)
}

// WriteSearch writes one row per configuration with every metric's mean and standard error.
func WriteSearch(w io.Writer, res *tuning.Result) error {
	header := []string{"index", "params"}
	for _, name := range model.MetricNames {
		header = append(header, name+"_mean", name+"_se")
	}
	header = append(header, "selected")

	var rows [][]string
	for _, r := range res.Rows {
		row := []string{strconv.Itoa(r.Index), r.Params.String()}
		for _, name := range model.MetricNames {
			s := r.Metrics[name]
			row = append(row, formatFloat(s.Mean), formatFloat(s.StdErr))
		}
		row = append(row, strconv.FormatBool(r.Index == res.Best.Index))
		rows = append(rows, row)
	}
	return writeCSV(w, header, rows)
}

// WriteSignificance writes the pairwise rank-sum tests.
func WriteSignificance(w io.Writer, cmps []evaluate.Comparison) error {
	var rows [][]string
	for _, c := range cmps {
		rows = append(rows, []string{
			c.A, c.B, c.Metric,
			formatFloat(c.U), formatFloat(c.Z), formatFloat(c.PValue),
			strconv.Itoa(c.N1), strconv.Itoa(c.N2),
		})
	}
	return writeCSV(w, []string{"model_a", "model_b", "metric", "u", "z", "p_value", "n_a", "n_b"}, rows)
}

// WriteHistory writes the per-epoch training log of the network.
func WriteHistory(w io.Writer, hist *nn.History) error {
	var rows [][]string
	for _, e := range hist.Epochs {
		rows = append(rows, []string{
			strconv.Itoa(e.Epoch),
			formatFloat(e.TrainLoss), formatFloat(e.ValLoss), formatFloat(e.ValAccuracy),
			formatFloat(e.LearningRate), e.State.String(),
		})
	}
	return writeCSV(w, []string{"epoch", "train_loss", "val_loss", "val_accuracy", "learning_rate", "state"}, rows)
}

// WriteExplore writes the per-feature descriptive statistics.
func WriteExplore(w io.Writer, s explore.Summary) error {
	var rows [][]string
	for _, f := range s.Features {
		rows = append(rows, []string{
			f.Name,
			formatFloat(f.Mean), formatFloat(f.Std), formatFloat(f.Min), formatFloat(f.Max),
			formatFloat(f.ZeroFrac), formatFloat(f.HamMean), formatFloat(f.SpamMean),
		})
	}
	return writeCSV(w, []string{"feature", "mean", "sd", "min", "max", "zero_frac", "ham_mean", "spam_mean"}, rows)
}
