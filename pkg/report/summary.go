package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/kssrr/sl-spam-classification/pkg/evaluate"
	"github.com/kssrr/sl-spam-classification/pkg/model"
)

func fmtMetric(v float64) string { return fmt.Sprintf("%.4f", v) }

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n%s\n", title, strings.Repeat("=", len(title)))
}

// WriteSummary writes the human-readable report as aligned text tables.
func WriteSummary(w io.Writer, b *Bundle) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Spam classification report\n")
	if b.RunID != "" {
		fmt.Fprintf(tw, "run\t%s\n", b.RunID)
	}
	fmt.Fprintf(tw, "seed\t%d\n", b.Seed)
	fmt.Fprintf(tw, "data\t%s\n", b.Data.Path)
	fmt.Fprintf(tw, "records\t%d (skipped %d, duplicates removed %d)\n", b.Data.Rows, b.Data.Skipped, b.Data.Duplicates)
	if b.Data.Train > 0 {
		fmt.Fprintf(tw, "split\ttrain %d / validation %d / test %d\n", b.Data.Train, b.Data.Validation, b.Data.Test)
	}

	if s := b.Explore; s != nil {
		section(tw, "Classes")
		fmt.Fprintf(tw, "ham\t%d\n", s.Ham)
		fmt.Fprintf(tw, "spam\t%d\t(%.1f%%)\n", s.Spam, 100*s.SpamShare())
	}
	if p := b.Projection; p != nil && len(p.ExplainedRatio) >= 2 {
		fmt.Fprintf(tw, "pca\tPC1 %.1f%%, PC2 %.1f%% of variance\n", 100*p.ExplainedRatio[0], 100*p.ExplainedRatio[1])
	}

	if st := b.Prep; st != nil {
		section(tw, "Preprocessing")
		fmt.Fprintf(tw, "synthetic minority records\t%d\n", st.Synthetic)
		fmt.Fprintf(tw, "features retained\t%d of %d\n", st.OutputSchema.Width(), st.InputSchema.Width())
		fmt.Fprintf(tw, "dropped (correlation)\t%s\n", listOrNone(st.DroppedCorrelated))
		fmt.Fprintf(tw, "dropped (near-zero variance)\t%s\n", listOrNone(st.DroppedNZV))
	}

	for _, s := range b.Searches {
		section(tw, "Grid search: "+model.DisplayName(s.Family))
		fmt.Fprintf(tw, "params\t%s mean\t%s se\n", s.Metric, s.Metric)
		for _, r := range s.Rows {
			mark := ""
			if r.Index == s.Best.Index {
				mark = "\t*"
			}
			m := r.Metrics[s.Metric]
			fmt.Fprintf(tw, "%s\t%s\t%s%s\n", r.Params, fmtMetric(m.Mean), fmtMetric(m.StdErr), mark)
		}
	}

	if h := b.History; h != nil {
		section(tw, "Neural network training")
		fmt.Fprintf(tw, "epochs\t%d\n", len(h.Epochs))
		fmt.Fprintf(tw, "outcome\t%s\n", h.Final)
		fmt.Fprintf(tw, "best epoch\t%d (val loss %.4f)\n", h.BestEpoch, h.BestLoss)
	}

	if e := b.Eval; e != nil {
		section(tw, fmt.Sprintf("Test metrics (%d bootstrap resamples, %.0f%% intervals)", e.Resamples, 100*e.Confidence))
		fmt.Fprintf(tw, "model\tmetric\testimate\tmean\tlower\tupper\tundefined\n")
		for _, r := range e.Rows() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
				r.Model, r.Metric, fmtMetric(r.Estimate), fmtMetric(r.Mean), fmtMetric(r.Lower), fmtMetric(r.Upper), r.Undefined)
		}
	}

	if len(b.Significance) > 0 || len(b.ErrorConfidence) > 0 {
		section(tw, "Rank-sum tests")
		fmt.Fprintf(tw, "model a\tmodel b\tmetric\tU\tp-value\n")
		for _, c := range append(append([]evaluate.Comparison(nil), b.Significance...), b.ErrorConfidence...) {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%.4g\n", c.A, c.B, c.Metric, c.U, c.PValue)
		}
	}

	return tw.Flush()
}

func listOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
