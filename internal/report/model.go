// Package report renders evaluation results as text, PNG charts and an HTML
// page.
package report

import (
	"github.com/banshee-data/dental.report/internal/evaluation"
	"github.com/banshee-data/dental.report/internal/resample"
	"github.com/banshee-data/dental.report/internal/teeth"
)

// ModelResult collects everything computed for one model. Optional parts
// are left nil when the command did not produce them.
type ModelResult struct {
	Name   string
	Policy string
	Pairs  int

	Counts  evaluation.Counts
	Metrics *evaluation.Metrics
	// MetricsErr is set when Metrics could not be computed.
	MetricsErr error

	Labels       evaluation.LabelCounts
	LabelMetrics map[teeth.Label]evaluation.Metrics
	LabelErrors  map[teeth.Label]error

	Resample *resample.Result
}

// Summaries returns the distribution summaries, or nil without resampling.
func (m ModelResult) Summaries() map[string]resample.Summary {
	if m.Resample == nil {
		return nil
	}
	return resample.Summarise(m.Resample.Distributions)
}

// labelOrder lists catalogue labels that have per-tooth metrics.
func (m ModelResult) labelOrder() []teeth.Label {
	var out []teeth.Label
	for _, l := range teeth.Catalog() {
		if _, ok := m.LabelMetrics[l]; ok {
			out = append(out, l)
		}
	}
	return out
}

// metricTitle is the display name of a metric.
func metricTitle(name string) string {
	switch name {
	case evaluation.MetricError:
		return "Error"
	case evaluation.MetricAccuracy:
		return "Accuracy"
	case evaluation.MetricPrecision:
		return "Precision"
	case evaluation.MetricRecall:
		return "Recall"
	case evaluation.MetricF1:
		return "F1-Score"
	}
	return name
}
