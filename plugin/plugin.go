// Package plugin defines the plugin system for Bastion.
// Plugins are notified of lifecycle events (evaluation performed, scope
// created, rule updated, conflicts detected, etc.) and can react — logging,
// metrics, tracing, etc.
//
// Each lifecycle hook is a separate interface so plugins opt in only
// to the events they care about.
package plugin

import (
	"context"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/conflict"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/rule"
	"github.com/xraph/bastion/scope"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// ──────────────────────────────────────────────────
// Evaluation lifecycle hooks
// ──────────────────────────────────────────────────

// BeforeEvaluate is called before a policy evaluation.
// The req parameter is *bastion.EvaluateRequest (passed as any to avoid import cycle).
type BeforeEvaluate interface {
	OnBeforeEvaluate(ctx context.Context, req any) error
}

// AfterEvaluate is called after a policy evaluation completes.
// The req parameter is *bastion.EvaluateRequest; dec is *bastion.Decision.
type AfterEvaluate interface {
	OnAfterEvaluate(ctx context.Context, req, dec any) error
}

// ──────────────────────────────────────────────────
// Scope lifecycle hooks
// ──────────────────────────────────────────────────

// ScopeCreated is called after a scope is created.
type ScopeCreated interface {
	OnScopeCreated(ctx context.Context, s *scope.Scope) error
}

// ScopeUpdated is called after a scope is updated.
type ScopeUpdated interface {
	OnScopeUpdated(ctx context.Context, s *scope.Scope) error
}

// ScopeDeleted is called after a scope is deleted.
type ScopeDeleted interface {
	OnScopeDeleted(ctx context.Context, scopeID id.ScopeID) error
}

// ──────────────────────────────────────────────────
// Access rule lifecycle hooks
// ──────────────────────────────────────────────────

// RuleAdded is called after an access rule is added.
type RuleAdded interface {
	OnRuleAdded(ctx context.Context, r *rule.AccessRule) error
}

// RuleUpdated is called after an access rule is updated.
type RuleUpdated interface {
	OnRuleUpdated(ctx context.Context, r *rule.AccessRule) error
}

// RuleRemoved is called after an access rule is removed.
type RuleRemoved interface {
	OnRuleRemoved(ctx context.Context, ruleID id.AccessRuleID) error
}

// ──────────────────────────────────────────────────
// Assignment lifecycle hooks
// ──────────────────────────────────────────────────

// Assigned is called after a user is assigned to a scope or role.
type Assigned interface {
	OnAssigned(ctx context.Context, a *assignment.Assignment) error
}

// Unassigned is called after an assignment is deactivated.
type Unassigned interface {
	OnUnassigned(ctx context.Context, a *assignment.Assignment) error
}

// ──────────────────────────────────────────────────
// Conflict and scenario hooks
// ──────────────────────────────────────────────────

// ConflictsDetected is called after a conflict scan finds at least one
// conflict.
type ConflictsDetected interface {
	OnConflictsDetected(ctx context.Context, userID string, conflicts []*conflict.Conflict) error
}

// ScenarioCompleted is called after a simulation scenario run completes.
// The result parameter is *bastion.ScenarioResult.
type ScenarioCompleted interface {
	OnScenarioCompleted(ctx context.Context, result any) error
}

// ──────────────────────────────────────────────────
// Shutdown hook
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
