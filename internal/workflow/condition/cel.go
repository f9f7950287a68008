package condition

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

var celNewEnv = cel.NewEnv

// MaxCacheSize is the maximum number of compiled CEL programs to cache.
const MaxCacheSize = 1000

// CELEvaluator evaluates a trigger's optional CEL expression against an
// event context. Compiled programs are cached with FIFO eviction since the
// set of stored expressions is small and stable.
type CELEvaluator struct {
	env        *cel.Env
	prgCache   map[string]cel.Program
	cacheOrder []string
	cacheMutex sync.RWMutex
}

// NewCELEvaluator creates an evaluator exposing a single `event` variable
// holding the flattened event context.
func NewCELEvaluator() (*CELEvaluator, error) {
	env, err := celNewEnv(
		cel.Variable("event", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, err
	}

	return &CELEvaluator{
		env:        env,
		prgCache:   make(map[string]cel.Program),
		cacheOrder: make([]string, 0, MaxCacheSize),
	}, nil
}

// Evaluate runs the expression against the event context. An empty
// expression matches everything.
func (e *CELEvaluator) Evaluate(expression string, eventCtx map[string]any) (bool, error) {
	if expression == "" {
		return true, nil
	}

	prg, err := e.getProgram(expression)
	if err != nil {
		return false, fmt.Errorf("failed to get CEL program: %w", err)
	}

	out, _, err := prg.Eval(map[string]any{"event": eventCtx})
	if err != nil {
		return false, fmt.Errorf("CEL evaluation error: %w", err)
	}

	match, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL condition must return boolean, got %T", out.Value())
	}
	return match, nil
}

func (e *CELEvaluator) getProgram(expression string) (cel.Program, error) {
	e.cacheMutex.RLock()
	prg, ok := e.prgCache[expression]
	e.cacheMutex.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile failed: %w", issues.Err())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program construction failed: %w", err)
	}

	e.cacheMutex.Lock()
	defer e.cacheMutex.Unlock()

	if existing, ok := e.prgCache[expression]; ok {
		return existing, nil
	}
	if len(e.cacheOrder) >= MaxCacheSize {
		oldest := e.cacheOrder[0]
		e.cacheOrder = e.cacheOrder[1:]
		delete(e.prgCache, oldest)
	}
	e.prgCache[expression] = prg
	e.cacheOrder = append(e.cacheOrder, expression)
	return prg, nil
}
