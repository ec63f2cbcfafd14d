package threshold

import (
	"math"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// scalePadding is the fraction of the data span added on each side of a scale.
const scalePadding = 0.1

// DetectPattern picks the visual layout family for t. The checks run in a
// fixed order and the first match wins; partial configurations fall back to
// NEUTRAL.
func DetectPattern(t domain.ThresholdSet) domain.Pattern {
	switch {
	case t.YellowMax != nil && t.RedMax != nil && *t.RedMax > *t.YellowMax:
		return domain.PatternLowerIsBetter
	case t.YellowMin != nil && t.RedMin != nil && *t.RedMin < *t.YellowMin:
		return domain.PatternHigherIsBetter
	case t.YellowMin != nil && t.YellowMax != nil:
		return domain.PatternRange
	default:
		return domain.PatternNeutral
	}
}

// BuildLayout computes the scale and colored zones for drawing values against t.
// Zones are ordered by increasing value and tile the whole scale. Only the
// bounds that define the pattern are drawn; any others affect Classify alone.
func BuildLayout(t domain.ThresholdSet, values []float64) domain.Layout {
	pattern := DetectPattern(t)
	scale := buildScale(t, values)

	var zones []domain.Zone
	switch pattern {
	case domain.PatternLowerIsBetter:
		zones = []domain.Zone{
			{From: scale.Min, To: *t.YellowMax, Outcome: domain.OutcomeGreen},
			{From: *t.YellowMax, To: *t.RedMax, Outcome: domain.OutcomeYellow},
			{From: *t.RedMax, To: scale.Max, Outcome: domain.OutcomeRed},
		}
	case domain.PatternHigherIsBetter:
		zones = []domain.Zone{
			{From: scale.Min, To: *t.RedMin, Outcome: domain.OutcomeRed},
			{From: *t.RedMin, To: *t.YellowMin, Outcome: domain.OutcomeYellow},
			{From: *t.YellowMin, To: scale.Max, Outcome: domain.OutcomeGreen},
		}
	case domain.PatternRange:
		zones = []domain.Zone{
			{From: scale.Min, To: *t.YellowMin, Outcome: domain.OutcomeYellow},
			{From: *t.YellowMin, To: *t.YellowMax, Outcome: domain.OutcomeGreen},
			{From: *t.YellowMax, To: scale.Max, Outcome: domain.OutcomeYellow},
		}
	default:
		zones = []domain.Zone{
			{From: scale.Min, To: scale.Max, Outcome: domain.ZoneNeutral},
		}
	}

	return domain.Layout{
		Pattern: pattern,
		Scale:   scale,
		Zones:   dropEmptyZones(zones),
	}
}

// buildScale spans every set threshold and every finite value, padded on both
// sides. With no data at all the scale is [0, 1].
func buildScale(t domain.ThresholdSet, values []float64) domain.Scale {
	lo, hi := math.Inf(1), math.Inf(-1)
	include := func(v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	for _, b := range []*float64{t.RedMin, t.YellowMin, t.YellowMax, t.RedMax} {
		if b != nil {
			include(*b)
		}
	}
	for _, v := range values {
		include(v)
	}

	if math.IsInf(lo, 1) {
		return domain.Scale{Min: 0, Max: 1}
	}

	pad := (hi - lo) * scalePadding
	if pad == 0 {
		pad = 1
	}
	return domain.Scale{Min: lo - pad, Max: hi + pad}
}

func dropEmptyZones(zones []domain.Zone) []domain.Zone {
	out := zones[:0]
	for _, z := range zones {
		if z.To > z.From {
			out = append(out, z)
		}
	}
	return out
}
