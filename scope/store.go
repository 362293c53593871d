package scope

import (
	"context"

	"github.com/xraph/bastion/id"
)

// Store defines persistence operations for scopes and their rules.
type Store interface {
	// CreateScope persists a new scope.
	CreateScope(ctx context.Context, s *Scope) error

	// GetScope retrieves a scope by ID.
	GetScope(ctx context.Context, scopeID id.ScopeID) (*Scope, error)

	// UpdateScope persists changes to a scope.
	UpdateScope(ctx context.Context, s *Scope) error

	// DeleteScope removes a scope and its rules by ID.
	DeleteScope(ctx context.Context, scopeID id.ScopeID) error

	// ListScopes returns scopes matching the filter.
	ListScopes(ctx context.Context, filter *ListFilter) ([]*Scope, error)

	// CountScopes returns the number of scopes matching the filter.
	CountScopes(ctx context.Context, filter *ListFilter) (int64, error)

	// ListChildScopes returns direct children of a parent scope.
	ListChildScopes(ctx context.Context, parentID id.ScopeID) ([]*Scope, error)

	// NextScopeSeq returns the next per-tenant creation sequence number.
	NextScopeSeq(ctx context.Context, tenantID string) (int, error)

	// CreateScopeRule persists a new scope rule.
	CreateScopeRule(ctx context.Context, r *Rule) error

	// GetScopeRule retrieves a scope rule by ID.
	GetScopeRule(ctx context.Context, ruleID id.ScopeRuleID) (*Rule, error)

	// UpdateScopeRule persists changes to a scope rule.
	UpdateScopeRule(ctx context.Context, r *Rule) error

	// DeleteScopeRule removes a scope rule by ID.
	DeleteScopeRule(ctx context.Context, ruleID id.ScopeRuleID) error

	// ListScopeRules returns the rules of a scope ordered by position.
	ListScopeRules(ctx context.Context, scopeID id.ScopeID) ([]*Rule, error)

	// DeleteScopesByTenant removes all scopes and scope rules for a tenant.
	DeleteScopesByTenant(ctx context.Context, tenantID string) error
}
