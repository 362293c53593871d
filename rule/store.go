package rule

import (
	"context"

	"github.com/xraph/bastion/id"
)

// Store defines persistence operations for access rules.
type Store interface {
	// CreateAccessRule persists a new access rule.
	CreateAccessRule(ctx context.Context, r *AccessRule) error

	// GetAccessRule retrieves an access rule by ID.
	GetAccessRule(ctx context.Context, ruleID id.AccessRuleID) (*AccessRule, error)

	// UpdateAccessRule persists changes to an access rule.
	UpdateAccessRule(ctx context.Context, r *AccessRule) error

	// DeleteAccessRule removes an access rule by ID.
	DeleteAccessRule(ctx context.Context, ruleID id.AccessRuleID) error

	// ListAccessRules returns access rules matching the filter.
	ListAccessRules(ctx context.Context, filter *ListFilter) ([]*AccessRule, error)

	// CountAccessRules returns the number of rules matching the filter.
	CountAccessRules(ctx context.Context, filter *ListFilter) (int64, error)

	// ListActiveAccessRules returns all active rules for a tenant.
	ListActiveAccessRules(ctx context.Context, tenantID string) ([]*AccessRule, error)

	// NextAccessRuleSeq returns the next per-tenant creation sequence number.
	NextAccessRuleSeq(ctx context.Context, tenantID string) (int, error)

	// DeleteAccessRulesByTenant removes all access rules for a tenant.
	DeleteAccessRulesByTenant(ctx context.Context, tenantID string) error
}
