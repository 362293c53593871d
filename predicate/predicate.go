// Package predicate defines the closed filter-expression tree exchanged
// between the policy engine and its callers.
//
// A Node is a small, JSON-serializable AST: field comparisons, boolean
// combinators, and calls to explicitly whitelisted helper functions. The
// engine interprets the tree directly — predicate text is never concatenated
// into queries, and custom expressions are validated before they are
// accepted, so the caller's data layer can translate a Node into its own
// parameterized query with no injection surface.
package predicate

// Op is a comparison operator for Compare nodes.
type Op string

const (
	// OpEquals checks for equality.
	OpEquals Op = "eq"

	// OpNotEquals checks for inequality.
	OpNotEquals Op = "neq"

	// OpIn checks if a value is in a set.
	OpIn Op = "in"

	// OpNotIn checks if a value is not in a set.
	OpNotIn Op = "not_in"

	// OpContains checks if a string contains a substring.
	OpContains Op = "contains"

	// OpStartsWith checks if a string starts with a prefix.
	OpStartsWith Op = "starts_with"

	// OpGreaterThan checks if a value is greater than another.
	OpGreaterThan Op = "gt"

	// OpLessThan checks if a value is less than another.
	OpLessThan Op = "lt"

	// OpGTE checks if a value is greater than or equal to another.
	OpGTE Op = "gte"

	// OpLTE checks if a value is less than or equal to another.
	OpLTE Op = "lte"
)

// Valid reports whether the operator is one of the defined values.
func (o Op) Valid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpIn, OpNotIn, OpContains, OpStartsWith,
		OpGreaterThan, OpLessThan, OpGTE, OpLTE:
		return true
	}
	return false
}

// NodeKind discriminates the node variants of the tree.
type NodeKind string

const (
	// KindCompare tests a record field against a literal or function result.
	KindCompare NodeKind = "compare"

	// KindAnd is true when all children are true.
	KindAnd NodeKind = "and"

	// KindOr is true when at least one child is true.
	KindOr NodeKind = "or"

	// KindNot negates its single child.
	KindNot NodeKind = "not"

	// KindCall evaluates a whitelisted helper function as a boolean predicate.
	KindCall NodeKind = "call"
)

// Node is a single node of the predicate tree.
//
// Compare nodes set Field, Op, and either Value (literal) or Func+Args
// (the comparison target is the function result). And/Or/Not nodes set
// Children. Call nodes set Func and Args and must yield a boolean.
type Node struct {
	Kind     NodeKind `json:"kind"`
	Field    string   `json:"field,omitempty"`
	Op       Op       `json:"op,omitempty"`
	Value    any      `json:"value,omitempty"`
	Func     string   `json:"func,omitempty"`
	Args     []any    `json:"args,omitempty"`
	Children []*Node  `json:"children,omitempty"`
}

// Compare builds a field comparison against a literal value.
func Compare(field string, op Op, value any) *Node {
	return &Node{Kind: KindCompare, Field: field, Op: op, Value: value}
}

// CompareFunc builds a field comparison against the result of a whitelisted
// helper function.
func CompareFunc(field string, op Op, fn string, args ...any) *Node {
	return &Node{Kind: KindCompare, Field: field, Op: op, Func: fn, Args: args}
}

// And combines children; true when all are true.
func And(children ...*Node) *Node {
	return &Node{Kind: KindAnd, Children: children}
}

// Or combines children; true when at least one is true.
func Or(children ...*Node) *Node {
	return &Node{Kind: KindOr, Children: children}
}

// Not negates a child node.
func Not(child *Node) *Node {
	return &Node{Kind: KindNot, Children: []*Node{child}}
}

// Call builds a boolean helper-function predicate.
func Call(fn string, args ...any) *Node {
	return &Node{Kind: KindCall, Func: fn, Args: args}
}
