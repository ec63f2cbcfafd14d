package domain

// ThresholdSet holds the four optional boundaries that band a metric value
// into green, yellow and red. A nil field is unset.
type ThresholdSet struct {
	YellowMin *float64 `json:"yellow_min"`
	YellowMax *float64 `json:"yellow_max"`
	RedMin    *float64 `json:"red_min"`
	RedMax    *float64 `json:"red_max"`
}

// IsEmpty reports whether no boundary is set.
func (t ThresholdSet) IsEmpty() bool {
	return t.YellowMin == nil && t.YellowMax == nil && t.RedMin == nil && t.RedMax == nil
}

// Clone returns a deep copy so snapshots never share pointers with the
// editable metric configuration.
func (t ThresholdSet) Clone() ThresholdSet {
	return ThresholdSet{
		YellowMin: cloneFloat(t.YellowMin),
		YellowMax: cloneFloat(t.YellowMax),
		RedMin:    cloneFloat(t.RedMin),
		RedMax:    cloneFloat(t.RedMax),
	}
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Float returns a pointer to v. Handy for building threshold sets in code.
func Float(v float64) *float64 {
	return &v
}

// Outcome is the classification of a value against a ThresholdSet.
type Outcome string

const (
	OutcomeGreen        Outcome = "GREEN"
	OutcomeYellow       Outcome = "YELLOW"
	OutcomeRed          Outcome = "RED"
	OutcomeNA           Outcome = "N/A"
	OutcomeUnconfigured Outcome = "UNCONFIGURED"
)

// Severity orders outcomes for comparisons. N/A and UNCONFIGURED carry no severity.
func (o Outcome) Severity() int {
	switch o {
	case OutcomeGreen:
		return 1
	case OutcomeYellow:
		return 2
	case OutcomeRed:
		return 3
	default:
		return 0
	}
}

// Pattern is the visual layout family of a ThresholdSet.
type Pattern string

const (
	PatternLowerIsBetter  Pattern = "LOWER_IS_BETTER"
	PatternHigherIsBetter Pattern = "HIGHER_IS_BETTER"
	PatternRange          Pattern = "RANGE"
	PatternNeutral        Pattern = "NEUTRAL"
)

// ZoneNeutral marks the undifferentiated zone drawn when no pattern applies.
const ZoneNeutral Outcome = "NEUTRAL"

// Zone is one colored band of a rendered scale.
type Zone struct {
	From    float64 `json:"from"`
	To      float64 `json:"to"`
	Outcome Outcome `json:"outcome"`
}

// Scale is the numeric extent of a rendered chart.
type Scale struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Layout describes how a ThresholdSet is drawn: the pattern, the scale and the
// zones ordered left to right by increasing value.
type Layout struct {
	Pattern Pattern `json:"pattern"`
	Scale   Scale   `json:"scale"`
	Zones   []Zone  `json:"zones"`
}
