// Package scope defines the hierarchical data-access Scope entity and the
// ScopeRule row filters attached to it.
package scope

import (
	"fmt"
	"time"

	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/predicate"
)

// Kind positions a scope in the tenant-wide breadth ordering.
// Global is the broadest, Personal the narrowest.
type Kind string

const (
	// KindGlobal is the tenant-wide root scope. Exactly one per tenant.
	KindGlobal Kind = "global"

	// KindCompany covers a whole company.
	KindCompany Kind = "company"

	// KindDepartment covers a department.
	KindDepartment Kind = "department"

	// KindTeam covers a team.
	KindTeam Kind = "team"

	// KindPersonal covers a single user's own records.
	KindPersonal Kind = "personal"
)

// breadth ranks kinds from broadest (0) to narrowest.
var breadth = map[Kind]int{
	KindGlobal:     0,
	KindCompany:    1,
	KindDepartment: 2,
	KindTeam:       3,
	KindPersonal:   4,
}

// Breadth returns the breadth rank of a kind (lower = broader).
// Unknown kinds rank below Personal.
func (k Kind) Breadth() int {
	if b, ok := breadth[k]; ok {
		return b
	}
	return len(breadth)
}

// Valid reports whether the kind is one of the defined values.
func (k Kind) Valid() bool {
	_, ok := breadth[k]
	return ok
}

// BroaderThan reports whether k is strictly broader than other.
func (k Kind) BroaderThan(other Kind) bool {
	return k.Breadth() < other.Breadth()
}

// Scope is a node in a tenant's tree of data-access boundaries.
// The parent graph forms a forest keyed by ParentID back-references;
// traversal is computed by repeated lookup, never pointer-chasing.
type Scope struct {
	ID       id.ScopeID   `json:"id" db:"id"`
	TenantID string       `json:"tenant_id" db:"tenant_id"`
	Name     string       `json:"name" db:"name"`
	Kind     Kind         `json:"kind" db:"kind"`
	ParentID *id.ScopeID  `json:"parent_id,omitempty" db:"parent_id"`
	Active   bool         `json:"active" db:"active"`

	// Seq is the per-tenant creation order. Rules attached to this scope
	// inherit it as their evaluation priority.
	Seq int `json:"seq" db:"seq"`

	Metadata  map[string]any `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// Tree is a scope with its resolved children, as returned by subtree queries.
type Tree struct {
	Scope    *Scope  `json:"scope"`
	Children []*Tree `json:"children,omitempty"`
}

// FilterKind selects how a ScopeRule translates to a row filter.
type FilterKind string

const (
	// FilterOwner restricts rows to those owned by the requesting user.
	FilterOwner FilterKind = "owner"

	// FilterDepartment restricts rows to a department id.
	FilterDepartment FilterKind = "department"

	// FilterTeam restricts rows to a team id.
	FilterTeam FilterKind = "team"

	// FilterLocation restricts rows to a location id.
	FilterLocation FilterKind = "location"

	// FilterCustom applies a validated predicate expression.
	FilterCustom FilterKind = "custom"
)

// Valid reports whether the filter kind is one of the defined values.
func (f FilterKind) Valid() bool {
	switch f {
	case FilterOwner, FilterDepartment, FilterTeam, FilterLocation, FilterCustom:
		return true
	}
	return false
}

// AttributeField returns the record attribute a value-based filter kind
// compares against. Empty for Owner and Custom.
func (f FilterKind) AttributeField() string {
	switch f {
	case FilterDepartment:
		return "department_id"
	case FilterTeam:
		return "team_id"
	case FilterLocation:
		return "location_id"
	}
	return ""
}

// Rule is a data-filter attached to a Scope. ModuleCode and Resource support
// the "*" wildcard. Exactly one of FilterValue and CustomPredicate is
// populated, matching FilterKind.
type Rule struct {
	ID              id.ScopeRuleID  `json:"id" db:"id"`
	ScopeID         id.ScopeID      `json:"scope_id" db:"scope_id"`
	ModuleCode      string          `json:"module_code" db:"module_code"`
	Resource        string          `json:"resource" db:"resource"`
	FilterKind      FilterKind      `json:"filter_kind" db:"filter_kind"`
	FilterValue     string          `json:"filter_value,omitempty" db:"filter_value"`
	CustomPredicate *predicate.Node `json:"custom_predicate,omitempty" db:"-"`
	Active          bool            `json:"active" db:"active"`

	// Position is the rule's order within its scope.
	Position  int       `json:"position" db:"position"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Validate checks the one-of invariant between FilterValue and
// CustomPredicate against the declared FilterKind.
func (r *Rule) Validate() error {
	if r.ModuleCode == "" {
		return fmt.Errorf("scope rule: module code is required")
	}
	if r.Resource == "" {
		return fmt.Errorf("scope rule: resource is required")
	}
	if !r.FilterKind.Valid() {
		return fmt.Errorf("scope rule: unknown filter kind %q", r.FilterKind)
	}
	switch r.FilterKind {
	case FilterCustom:
		if r.CustomPredicate == nil {
			return fmt.Errorf("scope rule: custom filter requires a predicate")
		}
		if r.FilterValue != "" {
			return fmt.Errorf("scope rule: custom filter must not set a filter value")
		}
	case FilterOwner:
		if r.FilterValue != "" {
			return fmt.Errorf("scope rule: owner filter must not set a filter value")
		}
		if r.CustomPredicate != nil {
			return fmt.Errorf("scope rule: owner filter must not set a predicate")
		}
	default:
		if r.FilterValue == "" {
			return fmt.Errorf("scope rule: %s filter requires a filter value", r.FilterKind)
		}
		if r.CustomPredicate != nil {
			return fmt.Errorf("scope rule: %s filter must not set a predicate", r.FilterKind)
		}
	}
	return nil
}

// ListFilter contains filters for listing scopes.
type ListFilter struct {
	TenantID string      `json:"tenant_id,omitempty"`
	Kind     Kind        `json:"kind,omitempty"`
	ParentID *id.ScopeID `json:"parent_id,omitempty"`
	Active   *bool       `json:"active,omitempty"`
	Search   string      `json:"search,omitempty"`
	Limit    int         `json:"limit,omitempty"`
	Offset   int         `json:"offset,omitempty"`
}
