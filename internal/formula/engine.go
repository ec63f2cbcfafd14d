// Package formula evaluates CEL expressions that compute a metric value from
// named numeric inputs, e.g. `inputs.defaults / inputs.accounts`.
package formula

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// defaultMaxPrograms bounds the compiled program cache.
const defaultMaxPrograms = 1000

// Engine compiles and evaluates metric formulas.
// Compiled programs are cached per expression text.
type Engine struct {
	mu          sync.RWMutex
	env         *cel.Env
	programs    map[string]cel.Program
	maxPrograms int
}

// NewEngine creates a formula engine. maxPrograms <= 0 uses the default.
func NewEngine(maxPrograms int) (*Engine, error) {
	if maxPrograms <= 0 {
		maxPrograms = defaultMaxPrograms
	}

	env, err := cel.NewEnv(
		cel.Variable("inputs", cel.MapType(cel.StringType, cel.DoubleType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:         env,
		programs:    make(map[string]cel.Program),
		maxPrograms: maxPrograms,
	}, nil
}

// Validate compiles expr and checks that it yields a number.
func (e *Engine) Validate(expr string) error {
	_, err := e.program(expr)
	return err
}

// Evaluate runs expr against inputs. Missing inputs, non-numeric output and
// non-finite results are errors.
func (e *Engine) Evaluate(expr string, inputs map[string]float64) (float64, error) {
	prg, err := e.program(expr)
	if err != nil {
		return 0, err
	}

	if inputs == nil {
		inputs = map[string]float64{}
	}

	out, _, err := prg.Eval(map[string]any{"inputs": inputs})
	if err != nil {
		return 0, fmt.Errorf("%w: formula evaluation failed: %v", domain.ErrInvalidInput, err)
	}

	v, ok := toFloat(out)
	if !ok {
		return 0, fmt.Errorf("%w: formula returned %s, expected a number", domain.ErrInvalidInput, out.Type().TypeName())
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: formula result is not finite", domain.ErrInvalidInput)
	}
	return v, nil
}

// CachedCount returns the number of compiled programs held.
func (e *Engine) CachedCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.programs)
}

func (e *Engine) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[expr]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	prg, err := e.compile(expr)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if len(e.programs) >= e.maxPrograms {
		e.programs = make(map[string]cel.Program)
	}
	e.programs[expr] = prg
	e.mu.Unlock()

	return prg, nil
}

func (e *Engine) compile(expr string) (cel.Program, error) {
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: failed to compile formula: %v", domain.ErrInvalidInput, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.DoubleType && outputType != cel.IntType && outputType != cel.DynType {
		return nil, fmt.Errorf("%w: formula must return int or double, got %s", domain.ErrInvalidInput, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}
	return program, nil
}

// toFloat converts a CEL value to float64.
func toFloat(val ref.Val) (float64, bool) {
	switch v := val.(type) {
	case types.Double:
		return float64(v), true
	case types.Int:
		return float64(v), true
	case types.Uint:
		return float64(v), true
	default:
		return 0, false
	}
}
