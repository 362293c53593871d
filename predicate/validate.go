package predicate

import (
	"errors"
	"fmt"
)

// MaxDepth is the maximum nesting depth Validate accepts.
const MaxDepth = 16

// ErrInvalid is the sentinel wrapped by all validation failures.
var ErrInvalid = errors.New("predicate: invalid expression")

// Validate checks that a tree is well-formed and closed: only defined node
// kinds and operators, only whitelisted helper functions, bounded depth.
// allowedFuncs maps function names the interpreter can resolve; a nil map
// rejects every function reference.
func Validate(n *Node, allowedFuncs map[string]bool) error {
	return validate(n, allowedFuncs, 0)
}

func validate(n *Node, allowedFuncs map[string]bool, depth int) error {
	if n == nil {
		return fmt.Errorf("%w: nil node", ErrInvalid)
	}
	if depth > MaxDepth {
		return fmt.Errorf("%w: depth exceeds %d", ErrInvalid, MaxDepth)
	}

	switch n.Kind {
	case KindCompare:
		if n.Field == "" {
			return fmt.Errorf("%w: compare node requires a field", ErrInvalid)
		}
		if !n.Op.Valid() {
			return fmt.Errorf("%w: unknown operator %q", ErrInvalid, n.Op)
		}
		if n.Func != "" {
			if n.Value != nil {
				return fmt.Errorf("%w: compare node sets both value and func", ErrInvalid)
			}
			if !allowedFuncs[n.Func] {
				return fmt.Errorf("%w: function %q is not whitelisted", ErrInvalid, n.Func)
			}
		} else if n.Value == nil {
			return fmt.Errorf("%w: compare node requires a value or func", ErrInvalid)
		}
		if len(n.Children) > 0 {
			return fmt.Errorf("%w: compare node must not have children", ErrInvalid)
		}

	case KindAnd, KindOr:
		if len(n.Children) == 0 {
			return fmt.Errorf("%w: %s node requires children", ErrInvalid, n.Kind)
		}
		for _, c := range n.Children {
			if err := validate(c, allowedFuncs, depth+1); err != nil {
				return err
			}
		}

	case KindNot:
		if len(n.Children) != 1 {
			return fmt.Errorf("%w: not node requires exactly one child", ErrInvalid)
		}
		return validate(n.Children[0], allowedFuncs, depth+1)

	case KindCall:
		if n.Func == "" {
			return fmt.Errorf("%w: call node requires a function name", ErrInvalid)
		}
		if !allowedFuncs[n.Func] {
			return fmt.Errorf("%w: function %q is not whitelisted", ErrInvalid, n.Func)
		}
		if len(n.Children) > 0 {
			return fmt.Errorf("%w: call node must not have children", ErrInvalid)
		}

	default:
		return fmt.Errorf("%w: unknown node kind %q", ErrInvalid, n.Kind)
	}

	return nil
}
