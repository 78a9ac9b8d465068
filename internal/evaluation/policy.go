package evaluation

import (
	"fmt"
	"strings"

	"github.com/banshee-data/dental.report/internal/dataset"
	"github.com/banshee-data/dental.report/internal/teeth"
)

// Outcome is the classification of one tooth slot.
type Outcome int

const (
	// Unscored means no counter other than TotalSlots moves. ThresholdPolicy
	// produces it when a score equals the threshold exactly.
	Unscored Outcome = iota
	TruePositive
	TrueNegative
	FalsePositive
	FalseNegative
)

func (o Outcome) String() string {
	switch o {
	case TruePositive:
		return "true_positive"
	case TrueNegative:
		return "true_negative"
	case FalsePositive:
		return "false_positive"
	case FalseNegative:
		return "false_negative"
	default:
		return "unscored"
	}
}

// Policy decides the outcome of one tooth slot from the model's entry for
// that tooth (found reports whether one exists) and whether the tooth is
// annotated.
type Policy interface {
	Name() string
	Classify(label teeth.Label, hit dataset.Entity, found, annotated bool) (Outcome, error)
}

// DefaultThreshold is the legacy model's confidence cut-off.
const DefaultThreshold = 0.1

// ThresholdPolicy evaluates the legacy model, which emits every tooth with a
// confidence score. A tooth counts as detected when its score is strictly
// above Threshold and as absent when strictly below.
type ThresholdPolicy struct {
	Threshold float64
}

// Name implements Policy.
func (p ThresholdPolicy) Name() string { return "threshold" }

// Classify implements Policy. A missing entry is a *MissingPredictionError.
func (p ThresholdPolicy) Classify(label teeth.Label, hit dataset.Entity, found, annotated bool) (Outcome, error) {
	if !found {
		return Unscored, &MissingPredictionError{Label: label}
	}
	switch {
	case hit.Score > p.Threshold && annotated:
		return TruePositive, nil
	case hit.Score > p.Threshold:
		return FalsePositive, nil
	case hit.Score < p.Threshold && annotated:
		return FalseNegative, nil
	case hit.Score < p.Threshold:
		return TrueNegative, nil
	}
	return Unscored, nil
}

// PresenceOnlyPolicy evaluates the current model, which only emits teeth it
// detected. Presence in the output is a positive call.
type PresenceOnlyPolicy struct{}

// Name implements Policy.
func (PresenceOnlyPolicy) Name() string { return "presence" }

// Classify implements Policy.
func (PresenceOnlyPolicy) Classify(_ teeth.Label, _ dataset.Entity, found, annotated bool) (Outcome, error) {
	switch {
	case found && annotated:
		return TruePositive, nil
	case found:
		return FalsePositive, nil
	case annotated:
		return FalseNegative, nil
	default:
		return TrueNegative, nil
	}
}

// ParsePolicy selects a policy by name. "threshold", "legacy" and "old"
// select ThresholdPolicy with the given threshold; "presence", "current" and
// "new" select PresenceOnlyPolicy.
func ParsePolicy(name string, threshold float64) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "threshold", "legacy", "old":
		return ThresholdPolicy{Threshold: threshold}, nil
	case "presence", "current", "new":
		return PresenceOnlyPolicy{}, nil
	}
	return nil, fmt.Errorf("unknown evaluation policy %q", name)
}
