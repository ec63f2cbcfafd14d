package threshold

import (
	"math/rand"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func f(v float64) *float64 { return &v }

// randomSet builds a threshold set where each bound is set with probability 1/2.
func randomSet(r *rand.Rand) domain.ThresholdSet {
	pick := func() *float64 {
		if r.Intn(2) == 0 {
			return nil
		}
		return f(r.Float64()*20 - 10)
	}
	return domain.ThresholdSet{YellowMin: pick(), YellowMax: pick(), RedMin: pick(), RedMax: pick()}
}

func TestClassifyExamples(t *testing.T) {
	lowerIsBetter := domain.ThresholdSet{YellowMax: f(0.05), RedMax: f(0.10)}
	higherIsBetter := domain.ThresholdSet{YellowMin: f(0.95), RedMin: f(0.90)}
	rangeBased := domain.ThresholdSet{YellowMin: f(10), YellowMax: f(20), RedMin: f(5), RedMax: f(25)}

	tests := []struct {
		name       string
		thresholds domain.ThresholdSet
		value      float64
		expected   domain.Outcome
	}{
		{"LowerGreen", lowerIsBetter, 0.03, domain.OutcomeGreen},
		{"LowerYellow", lowerIsBetter, 0.07, domain.OutcomeYellow},
		{"LowerRed", lowerIsBetter, 0.15, domain.OutcomeRed},
		{"LowerOnYellowBound", lowerIsBetter, 0.05, domain.OutcomeGreen},
		{"LowerOnRedBound", lowerIsBetter, 0.10, domain.OutcomeYellow},
		{"HigherGreen", higherIsBetter, 0.97, domain.OutcomeGreen},
		{"HigherYellow", higherIsBetter, 0.92, domain.OutcomeYellow},
		{"HigherRed", higherIsBetter, 0.85, domain.OutcomeRed},
		{"HigherOnRedBound", higherIsBetter, 0.90, domain.OutcomeYellow},
		{"RangeInside", rangeBased, 15, domain.OutcomeGreen},
		{"RangeLowYellow", rangeBased, 7, domain.OutcomeYellow},
		{"RangeHighYellow", rangeBased, 22, domain.OutcomeYellow},
		{"RangeLowRed", rangeBased, 1, domain.OutcomeRed},
		{"RangeHighRed", rangeBased, 30, domain.OutcomeRed},
		{"OnlyYellowMax", domain.ThresholdSet{YellowMax: f(1)}, 2, domain.OutcomeYellow},
		{"OnlyRedMin", domain.ThresholdSet{RedMin: f(1)}, 0, domain.OutcomeRed},
		{"Negative", domain.ThresholdSet{RedMin: f(-5), YellowMin: f(-1)}, -3, domain.OutcomeYellow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyValue(tt.value, tt.thresholds)
			if got != tt.expected {
				t.Errorf("Classify(%v) = %s, expected %s", tt.value, got, tt.expected)
			}
		})
	}
}

func TestClassifyRedPrecedence(t *testing.T) {
	// Inverted configuration: the value is both below red_min and above
	// yellow_max. Red is checked first.
	ts := domain.ThresholdSet{RedMin: f(10), YellowMax: f(1)}
	if got := ClassifyValue(5, ts); got != domain.OutcomeRed {
		t.Errorf("expected RED, got %s", got)
	}
}

func TestClassifyNAAndUnconfigured(t *testing.T) {
	r := rand.New(rand.NewSource(1))

	t.Run("NilValueIsNA", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			ts := randomSet(r)
			if got := Classify(nil, ts); got != domain.OutcomeNA {
				t.Fatalf("Classify(nil, %+v) = %s, expected N/A", ts, got)
			}
		}
	})

	t.Run("EmptySetIsUnconfigured", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			v := r.NormFloat64() * 1000
			if got := ClassifyValue(v, domain.ThresholdSet{}); got != domain.OutcomeUnconfigured {
				t.Fatalf("Classify(%v, {}) = %s, expected UNCONFIGURED", v, got)
			}
		}
	})
}

func TestClassifyNeverRedWithoutRedBounds(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 500; i++ {
		ts := randomSet(r)
		ts.RedMin, ts.RedMax = nil, nil
		v := r.Float64()*40 - 20
		if got := ClassifyValue(v, ts); got == domain.OutcomeRed {
			t.Fatalf("Classify(%v, %+v) returned RED without red bounds", v, ts)
		}
	}
}

func TestClassifyMonotonic(t *testing.T) {
	r := rand.New(rand.NewSource(3))

	t.Run("LowerIsBetter", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			ym := r.Float64() * 10
			rm := ym + r.Float64()*10 + 0.001
			ts := domain.ThresholdSet{YellowMax: f(ym), RedMax: f(rm)}

			prev := 0
			for x := -5.0; x <= 25; x += 0.05 {
				got := ClassifyValue(x, ts)
				if got.Severity() < prev {
					t.Fatalf("severity decreased at x=%v for %+v", x, ts)
				}
				prev = got.Severity()

				expected := domain.OutcomeGreen
				if x > rm {
					expected = domain.OutcomeRed
				} else if x > ym {
					expected = domain.OutcomeYellow
				}
				if got != expected {
					t.Fatalf("Classify(%v) = %s, expected %s (ym=%v rm=%v)", x, got, expected, ym, rm)
				}
			}
		}
	})

	t.Run("HigherIsBetter", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			rmin := r.Float64() * 10
			ymin := rmin + r.Float64()*10 + 0.001
			ts := domain.ThresholdSet{YellowMin: f(ymin), RedMin: f(rmin)}

			prev := 0
			for x := 25.0; x >= -5; x -= 0.05 {
				got := ClassifyValue(x, ts)
				if got.Severity() < prev {
					t.Fatalf("severity decreased at x=%v for %+v", x, ts)
				}
				prev = got.Severity()

				expected := domain.OutcomeGreen
				if x < rmin {
					expected = domain.OutcomeRed
				} else if x < ymin {
					expected = domain.OutcomeYellow
				}
				if got != expected {
					t.Fatalf("Classify(%v) = %s, expected %s", x, got, expected)
				}
			}
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		thresholds domain.ThresholdSet
		expected   []string
	}{
		{"Empty", domain.ThresholdSet{}, nil},
		{"ValidLower", domain.ThresholdSet{YellowMax: f(0.05), RedMax: f(0.1)}, nil},
		{"ValidFull", domain.ThresholdSet{RedMin: f(1), YellowMin: f(2), YellowMax: f(3), RedMax: f(4)}, nil},
		{"EqualBoundsAllowed", domain.ThresholdSet{RedMin: f(1), YellowMin: f(1), YellowMax: f(1)}, nil},
		{"RedMinAboveYellowMin", domain.ThresholdSet{RedMin: f(0.5), YellowMin: f(0.3)}, []string{MsgRedMinAboveYellowMin}},
		{"YellowMinAboveYellowMax", domain.ThresholdSet{YellowMin: f(0.2), YellowMax: f(0.1)}, []string{MsgYellowMinAboveYellowMax}},
		{"RedMaxBelowYellowMax", domain.ThresholdSet{RedMax: f(1), YellowMax: f(2)}, []string{MsgRedMaxBelowYellowMax}},
		{"RedMinEqualsRedMax", domain.ThresholdSet{RedMin: f(1), RedMax: f(1)}, []string{MsgRedMinNotBelowRedMax}},
		{
			"AllViolated",
			domain.ThresholdSet{RedMin: f(9), YellowMin: f(8), YellowMax: f(2), RedMax: f(1)},
			[]string{MsgRedMinAboveYellowMin, MsgRedMaxBelowYellowMax, MsgYellowMinAboveYellowMax, MsgRedMinNotBelowRedMax},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.thresholds)
			if got == nil {
				t.Fatal("Validate must return a non-nil slice")
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d violations, got %v", len(tt.expected), got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("violation %d: expected %q, got %q", i, tt.expected[i], got[i])
				}
			}
		})
	}
}

func TestCheck(t *testing.T) {
	if err := Check(domain.ThresholdSet{YellowMax: f(1)}); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}

	err := Check(domain.ThresholdSet{YellowMin: f(0.2), YellowMax: f(0.1)})
	verr, ok := err.(*domain.ValidationError)
	if !ok {
		t.Fatalf("expected *domain.ValidationError, got %T", err)
	}
	if len(verr.Violations) != 1 || verr.Violations[0] != MsgYellowMinAboveYellowMax {
		t.Errorf("unexpected violations: %v", verr.Violations)
	}
}
