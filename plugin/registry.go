package plugin

import (
	"context"
	"log/slog"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/conflict"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/rule"
	"github.com/xraph/bastion/scope"
)

// Named entry types pair a hook with the plugin name for logging.

type beforeEvaluateEntry struct {
	name string
	hook BeforeEvaluate
}
type afterEvaluateEntry struct {
	name string
	hook AfterEvaluate
}
type scopeCreatedEntry struct {
	name string
	hook ScopeCreated
}
type scopeUpdatedEntry struct {
	name string
	hook ScopeUpdated
}
type scopeDeletedEntry struct {
	name string
	hook ScopeDeleted
}
type ruleAddedEntry struct {
	name string
	hook RuleAdded
}
type ruleUpdatedEntry struct {
	name string
	hook RuleUpdated
}
type ruleRemovedEntry struct {
	name string
	hook RuleRemoved
}
type assignedEntry struct {
	name string
	hook Assigned
}
type unassignedEntry struct {
	name string
	hook Unassigned
}
type conflictsDetectedEntry struct {
	name string
	hook ConflictsDetected
}
type scenarioCompletedEntry struct {
	name string
	hook ScenarioCompleted
}
type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered plugins and dispatches lifecycle events.
// It type-caches plugins at registration time so emit calls iterate
// only over plugins implementing the relevant hook.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	beforeEvaluate    []beforeEvaluateEntry
	afterEvaluate     []afterEvaluateEntry
	scopeCreated      []scopeCreatedEntry
	scopeUpdated      []scopeUpdatedEntry
	scopeDeleted      []scopeDeletedEntry
	ruleAdded         []ruleAddedEntry
	ruleUpdated       []ruleUpdatedEntry
	ruleRemoved       []ruleRemovedEntry
	assigned          []assignedEntry
	unassigned        []unassignedEntry
	conflictsDetected []conflictsDetectedEntry
	scenarioCompleted []scenarioCompletedEntry
	shutdown          []shutdownEntry
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds a plugin and type-asserts it into all applicable
// hook caches. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	if h, ok := p.(BeforeEvaluate); ok {
		r.beforeEvaluate = append(r.beforeEvaluate, beforeEvaluateEntry{name, h})
	}
	if h, ok := p.(AfterEvaluate); ok {
		r.afterEvaluate = append(r.afterEvaluate, afterEvaluateEntry{name, h})
	}
	if h, ok := p.(ScopeCreated); ok {
		r.scopeCreated = append(r.scopeCreated, scopeCreatedEntry{name, h})
	}
	if h, ok := p.(ScopeUpdated); ok {
		r.scopeUpdated = append(r.scopeUpdated, scopeUpdatedEntry{name, h})
	}
	if h, ok := p.(ScopeDeleted); ok {
		r.scopeDeleted = append(r.scopeDeleted, scopeDeletedEntry{name, h})
	}
	if h, ok := p.(RuleAdded); ok {
		r.ruleAdded = append(r.ruleAdded, ruleAddedEntry{name, h})
	}
	if h, ok := p.(RuleUpdated); ok {
		r.ruleUpdated = append(r.ruleUpdated, ruleUpdatedEntry{name, h})
	}
	if h, ok := p.(RuleRemoved); ok {
		r.ruleRemoved = append(r.ruleRemoved, ruleRemovedEntry{name, h})
	}
	if h, ok := p.(Assigned); ok {
		r.assigned = append(r.assigned, assignedEntry{name, h})
	}
	if h, ok := p.(Unassigned); ok {
		r.unassigned = append(r.unassigned, unassignedEntry{name, h})
	}
	if h, ok := p.(ConflictsDetected); ok {
		r.conflictsDetected = append(r.conflictsDetected, conflictsDetectedEntry{name, h})
	}
	if h, ok := p.(ScenarioCompleted); ok {
		r.scenarioCompleted = append(r.scenarioCompleted, scenarioCompletedEntry{name, h})
	}
	if h, ok := p.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// ──────────────────────────────────────────────────
// Evaluation event emitters
// ──────────────────────────────────────────────────

// EmitBeforeEvaluate notifies all plugins that implement BeforeEvaluate.
func (r *Registry) EmitBeforeEvaluate(ctx context.Context, req any) {
	for _, e := range r.beforeEvaluate {
		if err := e.hook.OnBeforeEvaluate(ctx, req); err != nil {
			r.logHookError("OnBeforeEvaluate", e.name, err)
		}
	}
}

// EmitAfterEvaluate notifies all plugins that implement AfterEvaluate.
func (r *Registry) EmitAfterEvaluate(ctx context.Context, req, dec any) {
	for _, e := range r.afterEvaluate {
		if err := e.hook.OnAfterEvaluate(ctx, req, dec); err != nil {
			r.logHookError("OnAfterEvaluate", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Scope event emitters
// ──────────────────────────────────────────────────

// EmitScopeCreated notifies all plugins that implement ScopeCreated.
func (r *Registry) EmitScopeCreated(ctx context.Context, s *scope.Scope) {
	for _, e := range r.scopeCreated {
		if err := e.hook.OnScopeCreated(ctx, s); err != nil {
			r.logHookError("OnScopeCreated", e.name, err)
		}
	}
}

// EmitScopeUpdated notifies all plugins that implement ScopeUpdated.
func (r *Registry) EmitScopeUpdated(ctx context.Context, s *scope.Scope) {
	for _, e := range r.scopeUpdated {
		if err := e.hook.OnScopeUpdated(ctx, s); err != nil {
			r.logHookError("OnScopeUpdated", e.name, err)
		}
	}
}

// EmitScopeDeleted notifies all plugins that implement ScopeDeleted.
func (r *Registry) EmitScopeDeleted(ctx context.Context, scopeID id.ScopeID) {
	for _, e := range r.scopeDeleted {
		if err := e.hook.OnScopeDeleted(ctx, scopeID); err != nil {
			r.logHookError("OnScopeDeleted", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Access rule event emitters
// ──────────────────────────────────────────────────

// EmitRuleAdded notifies all plugins that implement RuleAdded.
func (r *Registry) EmitRuleAdded(ctx context.Context, rl *rule.AccessRule) {
	for _, e := range r.ruleAdded {
		if err := e.hook.OnRuleAdded(ctx, rl); err != nil {
			r.logHookError("OnRuleAdded", e.name, err)
		}
	}
}

// EmitRuleUpdated notifies all plugins that implement RuleUpdated.
func (r *Registry) EmitRuleUpdated(ctx context.Context, rl *rule.AccessRule) {
	for _, e := range r.ruleUpdated {
		if err := e.hook.OnRuleUpdated(ctx, rl); err != nil {
			r.logHookError("OnRuleUpdated", e.name, err)
		}
	}
}

// EmitRuleRemoved notifies all plugins that implement RuleRemoved.
func (r *Registry) EmitRuleRemoved(ctx context.Context, ruleID id.AccessRuleID) {
	for _, e := range r.ruleRemoved {
		if err := e.hook.OnRuleRemoved(ctx, ruleID); err != nil {
			r.logHookError("OnRuleRemoved", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Assignment event emitters
// ──────────────────────────────────────────────────

// EmitAssigned notifies all plugins that implement Assigned.
func (r *Registry) EmitAssigned(ctx context.Context, a *assignment.Assignment) {
	for _, e := range r.assigned {
		if err := e.hook.OnAssigned(ctx, a); err != nil {
			r.logHookError("OnAssigned", e.name, err)
		}
	}
}

// EmitUnassigned notifies all plugins that implement Unassigned.
func (r *Registry) EmitUnassigned(ctx context.Context, a *assignment.Assignment) {
	for _, e := range r.unassigned {
		if err := e.hook.OnUnassigned(ctx, a); err != nil {
			r.logHookError("OnUnassigned", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Conflict and scenario emitters
// ──────────────────────────────────────────────────

// EmitConflictsDetected notifies all plugins that implement ConflictsDetected.
func (r *Registry) EmitConflictsDetected(ctx context.Context, userID string, conflicts []*conflict.Conflict) {
	for _, e := range r.conflictsDetected {
		if err := e.hook.OnConflictsDetected(ctx, userID, conflicts); err != nil {
			r.logHookError("OnConflictsDetected", e.name, err)
		}
	}
}

// EmitScenarioCompleted notifies all plugins that implement ScenarioCompleted.
func (r *Registry) EmitScenarioCompleted(ctx context.Context, result any) {
	for _, e := range r.scenarioCompleted {
		if err := e.hook.OnScenarioCompleted(ctx, result); err != nil {
			r.logHookError("OnScenarioCompleted", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Shutdown emitter
// ──────────────────────────────────────────────────

// EmitShutdown notifies all plugins that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the pipeline.
func (r *Registry) logHookError(hook, pluginName string, err error) {
	r.logger.Warn("plugin hook error",
		slog.String("hook", hook),
		slog.String("plugin", pluginName),
		slog.String("error", err.Error()),
	)
}
