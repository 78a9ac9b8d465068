package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/banshee-data/dental.report/internal/evaluation"
	"github.com/banshee-data/dental.report/internal/teeth"
)

// WriteHeader prints the banner that opens a model's section.
func WriteHeader(w io.Writer, title string) {
	fmt.Fprintf(w, "------------- %s ---------------\n", title)
}

// WriteSummary prints the counts followed by the metrics as percentages.
func WriteSummary(w io.Writer, m ModelResult) {
	c := m.Counts
	fmt.Fprintf(w, "Hits: %d\nErrors: %d\nFalse positives: %d\nFalse negatives: %d\n\n",
		c.Correct, c.Errors(), c.FalsePositive, c.FalseNegative)

	if m.Metrics == nil {
		fmt.Fprintf(w, "Metrics unavailable: %v\n", m.MetricsErr)
		return
	}
	fmt.Fprintf(w, "Error: %.2f%%\n", m.Metrics.Error*100)
	fmt.Fprintf(w, "Accuracy: %.2f%%\n", m.Metrics.Accuracy*100)
	fmt.Fprintf(w, "Precision: %.2f%% (share of positive calls that were correct)\n", m.Metrics.Precision*100)
	fmt.Fprintf(w, "Recall: %.2f%% (share of annotated teeth that were found)\n", m.Metrics.Recall*100)
	fmt.Fprintf(w, "F1-Score: %.4f (harmonic mean of precision and recall)\n", m.Metrics.F1)
}

// WritePerTooth prints one line per tooth in catalogue order. Teeth whose
// ratios are undefined print the reason instead.
func WritePerTooth(w io.Writer, m ModelResult) {
	for _, l := range teeth.Catalog() {
		if lm, ok := m.LabelMetrics[l]; ok {
			fmt.Fprintf(w, "Tooth %s: Error: %.2f, Accuracy: %.2f, Precision: %.2f, Recall: %.2f, F1-Score: %.2f\n",
				l, lm.Error, lm.Accuracy, lm.Precision, lm.Recall, lm.F1)
			continue
		}
		if err, ok := m.LabelErrors[l]; ok {
			fmt.Fprintf(w, "Tooth %s: %v\n", l, err)
		}
	}
}

// WriteDistributions prints a summary table of the resampled metrics.
func WriteDistributions(w io.Writer, m ModelResult) {
	if m.Resample == nil {
		return
	}
	fmt.Fprintf(w, "Sample size: %d pairs per iteration\n", m.Resample.SampleSize)
	if n := len(m.Resample.Skipped); n > 0 {
		fmt.Fprintf(w, "Skipped iterations: %d\n", n)
	}

	summaries := m.Summaries()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "metric\tn\tmean\tstddev\tmin\tp2.5\tp50\tp97.5\tmax")
	for _, name := range evaluation.MetricNames {
		s, ok := summaries[name]
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\n",
			name, s.N, s.Mean, s.StdDev, s.Min, s.P025, s.P50, s.P975, s.Max)
	}
	tw.Flush()
}
