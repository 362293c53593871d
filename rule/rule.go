// Package rule defines the prioritized AccessRule entity with structured
// conditions, distinct from the row filters attached to scopes.
package rule

import (
	"fmt"
	"time"

	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/predicate"
)

// Action is an operation an access rule may grant.
type Action string

const (
	// ActionRead permits reading records.
	ActionRead Action = "read"

	// ActionCreate permits creating records.
	ActionCreate Action = "create"

	// ActionUpdate permits updating records.
	ActionUpdate Action = "update"

	// ActionDelete permits deleting records.
	ActionDelete Action = "delete"

	// ActionExport permits exporting records.
	ActionExport Action = "export"

	// ActionImport permits importing records.
	ActionImport Action = "import"
)

// Valid reports whether the action is one of the defined values.
func (a Action) Valid() bool {
	switch a {
	case ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionExport, ActionImport:
		return true
	}
	return false
}

// Operator is a comparison operator for conditions.
type Operator string

const (
	// OpEquals checks for equality.
	OpEquals Operator = "eq"

	// OpNotEquals checks for inequality.
	OpNotEquals Operator = "neq"

	// OpIn checks if a value is in a set.
	OpIn Operator = "in"

	// OpNotIn checks if a value is not in a set.
	OpNotIn Operator = "not_in"

	// OpContains checks if a string contains a substring.
	OpContains Operator = "contains"

	// OpStartsWith checks if a string starts with a prefix.
	OpStartsWith Operator = "starts_with"

	// OpCustom evaluates a validated predicate expression.
	OpCustom Operator = "custom"
)

// Valid reports whether the operator is one of the defined values.
func (o Operator) Valid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpIn, OpNotIn, OpContains, OpStartsWith, OpCustom:
		return true
	}
	return false
}

// PredicateOp translates the operator to its predicate-tree equivalent.
// OpCustom has no direct translation; the condition carries its own tree.
func (o Operator) PredicateOp() predicate.Op {
	switch o {
	case OpEquals:
		return predicate.OpEquals
	case OpNotEquals:
		return predicate.OpNotEquals
	case OpIn:
		return predicate.OpIn
	case OpNotIn:
		return predicate.OpNotIn
	case OpContains:
		return predicate.OpContains
	case OpStartsWith:
		return predicate.OpStartsWith
	}
	return ""
}

// Condition is a single attribute test within an access rule. Conditions
// in a rule are AND-ed. Value is required unless the operator is Custom, in
// which case Custom carries a validated predicate tree instead.
type Condition struct {
	ID       id.ConditionID  `json:"id"`
	Field    string          `json:"field,omitempty"`
	Operator Operator        `json:"operator"`
	Value    any             `json:"value,omitempty"`
	Custom   *predicate.Node `json:"custom,omitempty"`
}

// Validate checks the condition's one-of invariant.
func (c *Condition) Validate() error {
	if !c.Operator.Valid() {
		return fmt.Errorf("condition: unknown operator %q", c.Operator)
	}
	if c.Operator == OpCustom {
		if c.Custom == nil {
			return fmt.Errorf("condition: custom operator requires an expression")
		}
		if c.Value != nil {
			return fmt.Errorf("condition: custom operator must not set a value")
		}
		return nil
	}
	if c.Custom != nil {
		return fmt.Errorf("condition: %s operator must not set a custom expression", c.Operator)
	}
	if c.Field == "" {
		return fmt.Errorf("condition: field is required")
	}
	if c.Value == nil {
		return fmt.Errorf("condition: value is required for operator %s", c.Operator)
	}
	return nil
}

// AccessRule is an independently prioritized authorization rule. Lower
// Priority evaluates first; ties break on Seq (creation order).
type AccessRule struct {
	ID          id.AccessRuleID `json:"id" db:"id"`
	TenantID    string          `json:"tenant_id" db:"tenant_id"`
	ModuleCode  string          `json:"module_code" db:"module_code"`
	Resource    string          `json:"resource" db:"resource"`
	Actions     []Action        `json:"actions" db:"-"`
	Conditions  []Condition     `json:"conditions,omitempty" db:"-"`
	Priority    int             `json:"priority" db:"priority"`
	Seq         int             `json:"seq" db:"seq"`
	Active      bool            `json:"active" db:"active"`
	Description string          `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// AllowsAction reports whether the rule covers the given action.
func (r *AccessRule) AllowsAction(a Action) bool {
	for _, action := range r.Actions {
		if action == a {
			return true
		}
	}
	return false
}

// ListFilter contains filters for listing access rules.
type ListFilter struct {
	TenantID   string `json:"tenant_id,omitempty"`
	ModuleCode string `json:"module_code,omitempty"`
	Resource   string `json:"resource,omitempty"`
	Active     *bool  `json:"active,omitempty"`
	Search     string `json:"search,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}
