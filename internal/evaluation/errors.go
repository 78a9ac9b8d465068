package evaluation

import (
	"fmt"

	"github.com/banshee-data/dental.report/internal/teeth"
)

// MissingPredictionError is returned by ThresholdPolicy when the model
// output has no entry for a tooth. The legacy model always emits all 32
// teeth, so a gap means the output file is inconsistent and the pass is
// aborted.
type MissingPredictionError struct {
	Label teeth.Label
}

func (e *MissingPredictionError) Error() string {
	return fmt.Sprintf("model did not return a score for tooth %s", e.Label)
}

// PairError names the file pair whose evaluation failed.
type PairError struct {
	Name string
	Err  error
}

func (e *PairError) Error() string {
	return fmt.Sprintf("evaluate %s: %v", e.Name, e.Err)
}

func (e *PairError) Unwrap() error { return e.Err }

// DegenerateMetricError is returned when a ratio's denominator is zero.
type DegenerateMetricError struct {
	Metric string
	Counts Counts
}

func (e *DegenerateMetricError) Error() string {
	return fmt.Sprintf("%s undefined: zero denominator (correct=%d tp=%d fp=%d fn=%d slots=%d)",
		e.Metric, e.Counts.Correct, e.Counts.TruePositive, e.Counts.FalsePositive,
		e.Counts.FalseNegative, e.Counts.TotalSlots)
}
