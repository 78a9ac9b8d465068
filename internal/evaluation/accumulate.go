// Package evaluation scores model output against annotations tooth by tooth
// and derives classification metrics from the accumulated counts.
package evaluation

import (
	"github.com/banshee-data/dental.report/internal/dataset"
	"github.com/banshee-data/dental.report/internal/monitoring"
	"github.com/banshee-data/dental.report/internal/teeth"
)

// Counts is the confusion tally for one evaluation pass. Start each pass
// from the zero value.
type Counts struct {
	Correct       int `json:"correct"`
	TruePositive  int `json:"true_positive"`
	FalsePositive int `json:"false_positive"`
	FalseNegative int `json:"false_negative"`
	TotalSlots    int `json:"total_slots"`
}

// Record applies one outcome. TotalSlots is not touched.
func (c *Counts) Record(o Outcome) {
	switch o {
	case TruePositive:
		c.Correct++
		c.TruePositive++
	case TrueNegative:
		c.Correct++
	case FalsePositive:
		c.FalsePositive++
	case FalseNegative:
		c.FalseNegative++
	}
}

// Add merges o into c.
func (c *Counts) Add(o Counts) {
	c.Correct += o.Correct
	c.TruePositive += o.TruePositive
	c.FalsePositive += o.FalsePositive
	c.FalseNegative += o.FalseNegative
	c.TotalSlots += o.TotalSlots
}

// Errors is the number of misclassified slots.
func (c Counts) Errors() int { return c.FalsePositive + c.FalseNegative }

// Balanced reports whether every slot received exactly one outcome. It is
// false only when ThresholdPolicy left a tied slot unscored.
func (c Counts) Balanced() bool {
	return c.Correct+c.FalsePositive+c.FalseNegative == c.TotalSlots
}

// LabelCounts holds a Counts per tooth.
type LabelCounts map[teeth.Label]*Counts

// NewLabelCounts returns zeroed counts for every label in catalog.
func NewLabelCounts(catalog []teeth.Label) LabelCounts {
	lc := make(LabelCounts, len(catalog))
	for _, l := range catalog {
		lc[l] = &Counts{}
	}
	return lc
}

// Total sums the per-label counts.
func (lc LabelCounts) Total() Counts {
	var c Counts
	for _, v := range lc {
		c.Add(*v)
	}
	return c
}

// classify scores every catalogued tooth of one pair, calling fn for each.
// It stops at the first policy error.
func classify(pred dataset.Prediction, ann dataset.Annotation, catalog []teeth.Label, policy Policy, fn func(teeth.Label, Outcome)) error {
	hits := pred.Index()
	present := ann.Present()
	for _, label := range catalog {
		hit, found := hits[label]
		o, err := policy.Classify(label, hit, found, present[label])
		if err != nil {
			return err
		}
		if o == Unscored {
			monitoring.Warnf("tooth %s score %v ties the %s policy cut-off; slot left unscored", label, hit.Score, policy.Name())
		}
		fn(label, o)
	}
	return nil
}

// Evaluate scores one prediction/annotation pair against every tooth in
// catalog and adds the outcomes to counts. TotalSlots grows by len(catalog).
// On error counts is left unchanged.
func Evaluate(pred dataset.Prediction, ann dataset.Annotation, catalog []teeth.Label, policy Policy, counts *Counts) error {
	var pass Counts
	err := classify(pred, ann, catalog, policy, func(_ teeth.Label, o Outcome) {
		pass.Record(o)
	})
	if err != nil {
		return err
	}
	pass.TotalSlots = len(catalog)
	counts.Add(pass)
	return nil
}

// EvaluateLabels is Evaluate with the outcomes kept per tooth. Each label's
// TotalSlots grows by one. On error lc is left unchanged.
func EvaluateLabels(pred dataset.Prediction, ann dataset.Annotation, catalog []teeth.Label, policy Policy, lc LabelCounts) error {
	outcomes := make(map[teeth.Label]Outcome, len(catalog))
	err := classify(pred, ann, catalog, policy, func(l teeth.Label, o Outcome) {
		outcomes[l] = o
	})
	if err != nil {
		return err
	}
	for l, o := range outcomes {
		c, ok := lc[l]
		if !ok {
			c = &Counts{}
			lc[l] = c
		}
		c.Record(o)
		c.TotalSlots++
	}
	return nil
}

// Run evaluates every pair into a fresh Counts. The first error aborts the
// pass and no counts are returned.
func Run(pairs []dataset.Pair, catalog []teeth.Label, policy Policy) (Counts, error) {
	var c Counts
	for _, p := range pairs {
		if err := Evaluate(p.Prediction, p.Annotation, catalog, policy, &c); err != nil {
			return Counts{}, &PairError{Name: p.Name, Err: err}
		}
	}
	return c, nil
}

// RunLabels evaluates every pair into fresh per-tooth counts.
func RunLabels(pairs []dataset.Pair, catalog []teeth.Label, policy Policy) (LabelCounts, error) {
	lc := NewLabelCounts(catalog)
	for _, p := range pairs {
		if err := EvaluateLabels(p.Prediction, p.Annotation, catalog, policy, lc); err != nil {
			return nil, &PairError{Name: p.Name, Err: err}
		}
	}
	return lc, nil
}
