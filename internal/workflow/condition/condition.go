// Package condition implements trigger condition matching. Stored conditions
// come in two tiers: a small suffix DSL parsed once into an AST, and an
// optional CEL expression for rules the DSL cannot express.
package condition

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Op is a comparison operator in the condition DSL.
type Op int

const (
	OpEq Op = iota
	OpGt
	OpLt
	OpContains
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "eq"
	case OpGt:
		return "gt"
	case OpLt:
		return "lt"
	case OpContains:
		return "contains"
	default:
		return "unknown"
	}
}

// Condition is a single field comparison.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Expr is a conjunction of conditions. A nil or empty Expr always matches.
type Expr []Condition

// suffix -> operator, longest suffix checked first.
var suffixOps = []struct {
	suffix string
	op     Op
}{
	{"_contains", OpContains},
	{"_gt", OpGt},
	{"_lt", OpLt},
}

// ParseExpr converts a stored condition object into an Expr. Keys carry an
// optional operator suffix ("amount_gt"); a key without a recognized suffix
// is a strict equality test on that field. Parsing happens once at trigger
// load, not per event.
func ParseExpr(raw map[string]any) (Expr, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	expr := make(Expr, 0, len(raw))
	for key, want := range raw {
		cond := Condition{Field: key, Op: OpEq, Value: want}
		for _, s := range suffixOps {
			if base, ok := strings.CutSuffix(key, s.suffix); ok && base != "" {
				cond.Field = base
				cond.Op = s.op
				break
			}
		}
		if cond.Op == OpGt || cond.Op == OpLt {
			if _, ok := toFloat(want); !ok {
				return nil, fmt.Errorf("condition %q: %s wants a numeric value, got %T", key, cond.Op, want)
			}
		}
		expr = append(expr, cond)
	}
	return expr, nil
}

// Matches evaluates the expression against an event context. Lookup prefers a
// nested object named after the event category ("invoice" for
// invoice.created), falling back to the flat context. All conditions must
// pass; a missing field fails the expression rather than erroring.
func (e Expr) Matches(category string, ctx map[string]any) bool {
	for _, cond := range e {
		got, ok := lookup(cond.Field, category, ctx)
		if !ok {
			return false
		}
		if !cond.eval(got) {
			return false
		}
	}
	return true
}

func lookup(field, category string, ctx map[string]any) (any, bool) {
	if category != "" {
		if nested, ok := ctx[category].(map[string]any); ok {
			if v, ok := nested[field]; ok {
				return v, true
			}
		}
	}
	v, ok := ctx[field]
	return v, ok
}

func (c Condition) eval(got any) bool {
	switch c.Op {
	case OpEq:
		return equal(got, c.Value)
	case OpGt:
		g, ok1 := toFloat(got)
		w, ok2 := toFloat(c.Value)
		return ok1 && ok2 && g > w
	case OpLt:
		g, ok1 := toFloat(got)
		w, ok2 := toFloat(c.Value)
		return ok1 && ok2 && g < w
	case OpContains:
		return strings.Contains(stringify(got), stringify(c.Value))
	default:
		return false
	}
}

// equal compares with numeric coercion so that a stored json number matches
// an int-valued context field.
func equal(got, want any) bool {
	if got == want {
		return true
	}
	g, ok1 := toFloat(got)
	w, ok2 := toFloat(want)
	if ok1 && ok2 {
		return g == w
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	default:
		return fmt.Sprintf("%v", v)
	}
}
