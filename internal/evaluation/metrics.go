package evaluation

import (
	"github.com/banshee-data/dental.report/internal/teeth"
)

// Metric names, used as keys for distributions and stored rows.
const (
	MetricError     = "error"
	MetricAccuracy  = "accuracy"
	MetricPrecision = "precision"
	MetricRecall    = "recall"
	MetricF1        = "f1"
)

// MetricNames lists every metric in report order.
var MetricNames = []string{MetricError, MetricAccuracy, MetricPrecision, MetricRecall, MetricF1}

// Metrics are the ratios derived from one Counts. All values lie in [0, 1].
type Metrics struct {
	Error     float64 `json:"error"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Get returns the metric with the given name.
func (m Metrics) Get(name string) (float64, bool) {
	switch name {
	case MetricError:
		return m.Error, true
	case MetricAccuracy:
		return m.Accuracy, true
	case MetricPrecision:
		return m.Precision, true
	case MetricRecall:
		return m.Recall, true
	case MetricF1:
		return m.F1, true
	}
	return 0, false
}

// Values returns the metrics in MetricNames order.
func (m Metrics) Values() []float64 {
	return []float64{m.Error, m.Accuracy, m.Precision, m.Recall, m.F1}
}

// Compute derives Metrics from c. A zero denominator yields a
// *DegenerateMetricError naming the first undefined metric.
func Compute(c Counts) (Metrics, error) {
	if c.TotalSlots == 0 {
		return Metrics{}, &DegenerateMetricError{Metric: MetricAccuracy, Counts: c}
	}
	if c.TruePositive+c.FalsePositive == 0 {
		return Metrics{}, &DegenerateMetricError{Metric: MetricPrecision, Counts: c}
	}
	if c.TruePositive+c.FalseNegative == 0 {
		return Metrics{}, &DegenerateMetricError{Metric: MetricRecall, Counts: c}
	}

	total := float64(c.TotalSlots)
	m := Metrics{
		Error:     float64(c.Errors()) / total,
		Accuracy:  float64(c.Correct) / total,
		Precision: float64(c.TruePositive) / float64(c.TruePositive+c.FalsePositive),
		Recall:    float64(c.TruePositive) / float64(c.TruePositive+c.FalseNegative),
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m, nil
}

// ComputePerLabel derives Metrics for every label in catalog that saw at
// least one slot. Labels whose ratios are undefined are reported in the
// error map instead.
func ComputePerLabel(lc LabelCounts, catalog []teeth.Label) (map[teeth.Label]Metrics, map[teeth.Label]error) {
	out := make(map[teeth.Label]Metrics, len(catalog))
	errs := make(map[teeth.Label]error)
	for _, label := range catalog {
		c, ok := lc[label]
		if !ok || c.TotalSlots == 0 {
			continue
		}
		m, err := Compute(*c)
		if err != nil {
			errs[label] = err
			continue
		}
		out[label] = m
	}
	return out, errs
}
