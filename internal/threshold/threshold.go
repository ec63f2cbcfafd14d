// Package threshold classifies metric values against green/yellow/red
// threshold sets and derives the zone layout used to draw them.
//
// It is the single implementation shared by result entry, trend charts and
// threshold editing; all functions are pure.
package threshold

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Violation messages returned by Validate.
const (
	MsgRedMinAboveYellowMin    = "Red min must be ≤ yellow min"
	MsgRedMaxBelowYellowMax    = "Red max must be ≥ yellow max"
	MsgYellowMinAboveYellowMax = "Yellow min must be ≤ yellow max"
	MsgRedMinNotBelowRedMax    = "Red min must be < red max"
)

// Classify returns the outcome of value against t.
//
// A nil value is N/A and an empty set is UNCONFIGURED. Otherwise red bounds
// are checked before yellow bounds so the most severe band wins. Bounds are
// exclusive: a value equal to a bound stays in the less severe band.
// NaN is not filtered here.
func Classify(value *float64, t domain.ThresholdSet) domain.Outcome {
	if value == nil {
		return domain.OutcomeNA
	}
	if t.IsEmpty() {
		return domain.OutcomeUnconfigured
	}

	v := *value
	switch {
	case t.RedMin != nil && v < *t.RedMin:
		return domain.OutcomeRed
	case t.RedMax != nil && v > *t.RedMax:
		return domain.OutcomeRed
	case t.YellowMin != nil && v < *t.YellowMin:
		return domain.OutcomeYellow
	case t.YellowMax != nil && v > *t.YellowMax:
		return domain.OutcomeYellow
	default:
		return domain.OutcomeGreen
	}
}

// ClassifyValue is Classify for a value known to be present.
func ClassifyValue(value float64, t domain.ThresholdSet) domain.Outcome {
	return Classify(&value, t)
}

// Validate checks the ordering invariants of t and returns one message per
// violated invariant. It returns an empty, non-nil slice when t is valid.
func Validate(t domain.ThresholdSet) []string {
	violations := []string{}

	if t.RedMin != nil && t.YellowMin != nil && *t.RedMin > *t.YellowMin {
		violations = append(violations, MsgRedMinAboveYellowMin)
	}
	if t.RedMax != nil && t.YellowMax != nil && *t.RedMax < *t.YellowMax {
		violations = append(violations, MsgRedMaxBelowYellowMax)
	}
	if t.YellowMin != nil && t.YellowMax != nil && *t.YellowMin > *t.YellowMax {
		violations = append(violations, MsgYellowMinAboveYellowMax)
	}
	if t.RedMin != nil && t.RedMax != nil && *t.RedMin >= *t.RedMax {
		violations = append(violations, MsgRedMinNotBelowRedMax)
	}

	return violations
}

// Check wraps Validate as an error for callers that gate writes on it.
func Check(t domain.ThresholdSet) error {
	if v := Validate(t); len(v) > 0 {
		return &domain.ValidationError{Violations: v}
	}
	return nil
}
