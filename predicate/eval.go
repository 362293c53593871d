package predicate

import (
	"fmt"
	"strings"
)

// Func is a whitelisted helper callable from a predicate tree.
// It receives the evaluation environment and the node's literal arguments.
type Func func(env *Env, args []any) (any, error)

// Env is the evaluation environment for one record check.
type Env struct {
	TenantID string
	UserID   string

	// Record holds the attributes of the record under evaluation.
	Record map[string]any

	// Funcs resolves whitelisted helper functions by name.
	Funcs map[string]Func
}

// FieldValue resolves a field reference. The reserved name "user_id"
// resolves to the requesting user; everything else reads Record.
func (e *Env) FieldValue(field string) any {
	if field == "user_id" {
		return e.UserID
	}
	if e.Record == nil {
		return nil
	}
	return e.Record[field]
}

// Eval interprets a validated tree against the environment. Unknown fields
// resolve to nil and fail their comparison, so evaluation degrades toward
// false rather than erroring at request time.
func Eval(n *Node, env *Env) (bool, error) {
	if n == nil {
		return false, fmt.Errorf("%w: nil node", ErrInvalid)
	}

	switch n.Kind {
	case KindCompare:
		expected := n.Value
		if n.Func != "" {
			result, err := callFunc(n.Func, n.Args, env)
			if err != nil {
				return false, err
			}
			expected = result
		}
		return compare(n.Op, env.FieldValue(n.Field), expected)

	case KindAnd:
		for _, c := range n.Children {
			ok, err := Eval(c, env)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case KindOr:
		for _, c := range n.Children {
			ok, err := Eval(c, env)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case KindNot:
		ok, err := Eval(n.Children[0], env)
		if err != nil {
			return false, err
		}
		return !ok, nil

	case KindCall:
		result, err := callFunc(n.Func, n.Args, env)
		if err != nil {
			return false, err
		}
		b, ok := result.(bool)
		if !ok {
			return false, fmt.Errorf("%w: function %q did not return a boolean", ErrInvalid, n.Func)
		}
		return b, nil

	default:
		return false, fmt.Errorf("%w: unknown node kind %q", ErrInvalid, n.Kind)
	}
}

func callFunc(name string, args []any, env *Env) (any, error) {
	fn, ok := env.Funcs[name]
	if !ok {
		return nil, fmt.Errorf("%w: function %q is not registered", ErrInvalid, name)
	}
	return fn(env, args)
}

func compare(op Op, actual, expected any) (bool, error) {
	switch op {
	case OpEquals:
		return actual != nil && fmt.Sprint(actual) == fmt.Sprint(expected), nil
	case OpNotEquals:
		return fmt.Sprint(actual) != fmt.Sprint(expected), nil
	case OpIn:
		return inSlice(actual, expected), nil
	case OpNotIn:
		return !inSlice(actual, expected), nil
	case OpContains:
		return actual != nil && strings.Contains(fmt.Sprint(actual), fmt.Sprint(expected)), nil
	case OpStartsWith:
		return actual != nil && strings.HasPrefix(fmt.Sprint(actual), fmt.Sprint(expected)), nil
	case OpGreaterThan:
		return actual != nil && compareNumbers(actual, expected) > 0, nil
	case OpLessThan:
		return actual != nil && compareNumbers(actual, expected) < 0, nil
	case OpGTE:
		return actual != nil && compareNumbers(actual, expected) >= 0, nil
	case OpLTE:
		return actual != nil && compareNumbers(actual, expected) <= 0, nil
	default:
		return false, fmt.Errorf("%w: unknown operator %q", ErrInvalid, op)
	}
}

func inSlice(actual, expected any) bool {
	if actual == nil {
		return false
	}
	s := fmt.Sprint(actual)
	switch v := expected.(type) {
	case []string:
		for _, item := range v {
			if item == s {
				return true
			}
		}
	case []any:
		for _, item := range v {
			if fmt.Sprint(item) == s {
				return true
			}
		}
	}
	return false
}

func compareNumbers(a, b any) int {
	fa := toFloat64(a)
	fb := toFloat64(b)
	if fa < fb {
		return -1
	}
	if fa > fb {
		return 1
	}
	return 0
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	case float32:
		return float64(n)
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%f", &f); err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
