package formula

import (
	"errors"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine(0)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	if engine.CachedCount() != 0 {
		t.Errorf("expected empty cache, got %d", engine.CachedCount())
	}
}

func TestEvaluate(t *testing.T) {
	engine, _ := NewEngine(10)

	tests := []struct {
		name     string
		expr     string
		inputs   map[string]float64
		expected float64
	}{
		{"Ratio", "inputs.defaults / inputs.accounts", map[string]float64{"defaults": 5, "accounts": 100}, 0.05},
		{"Constant", "0.5", nil, 0.5},
		{"IntLiteral", "3", nil, 3},
		{"Conditional", "inputs.n > 0.0 ? inputs.x / inputs.n : 0.0", map[string]float64{"n": 0, "x": 1}, 0},
		{"IndexSyntax", "inputs['psi'] * 100.0", map[string]float64{"psi": 0.12}, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Evaluate(tt.expr, tt.inputs)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if diff := got - tt.expected; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}

	if engine.CachedCount() != len(tests) {
		t.Errorf("expected %d cached programs, got %d", len(tests), engine.CachedCount())
	}
}

func TestEvaluateErrors(t *testing.T) {
	engine, _ := NewEngine(10)

	tests := []struct {
		name   string
		expr   string
		inputs map[string]float64
	}{
		{"InvalidSyntax", "this is not valid CEL !!!", nil},
		{"StringResult", "'green'", nil},
		{"BoolResult", "inputs.x > 1.0", map[string]float64{"x": 2}},
		{"MissingInput", "inputs.missing * 2.0", map[string]float64{"x": 1}},
		{"DivideByZero", "inputs.x / inputs.y", map[string]float64{"x": 1, "y": 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Evaluate(tt.expr, tt.inputs)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	engine, _ := NewEngine(10)

	if err := engine.Validate("inputs.a + inputs.b"); err != nil {
		t.Errorf("expected valid formula, got %v", err)
	}
	if err := engine.Validate("inputs.a +"); err == nil {
		t.Error("expected error for incomplete formula")
	}
}

func TestProgramCacheBound(t *testing.T) {
	engine, _ := NewEngine(2)

	for _, expr := range []string{"1.0", "2.0", "3.0"} {
		if _, err := engine.Evaluate(expr, nil); err != nil {
			t.Fatalf("Evaluate(%s) failed: %v", expr, err)
		}
	}
	if engine.CachedCount() > 2 {
		t.Errorf("cache exceeded bound: %d", engine.CachedCount())
	}
}
