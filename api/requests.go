package api

import (
	"github.com/xraph/bastion/predicate"
	"github.com/xraph/bastion/rule"
)

// ──────────────────────────────────────────────────
// Authorization requests
// ──────────────────────────────────────────────────

// EvaluateRequest is the request body for a policy evaluation.
type EvaluateRequest struct {
	UserID     string         `json:"user_id" description:"User identifier"`
	ModuleCode string         `json:"module_code" description:"Module code (e.g. emr)"`
	Resource   string         `json:"resource" description:"Resource name"`
	Action     string         `json:"action" description:"Action name"`
	Record     map[string]any `json:"record,omitempty" description:"Attributes of the record under evaluation"`
}

// BatchEvaluateRequest contains multiple evaluations.
type BatchEvaluateRequest struct {
	Requests []EvaluateRequest `json:"requests" description:"List of evaluations"`
}

// FilterPredicateRequest is the body for building a row filter predicate.
type FilterPredicateRequest struct {
	UserID     string `json:"user_id" description:"User identifier"`
	ModuleCode string `json:"module_code" description:"Module code"`
	Resource   string `json:"resource" description:"Resource name"`
}

// ──────────────────────────────────────────────────
// Scope requests
// ──────────────────────────────────────────────────

// CreateScopeRequest is the body for creating a scope.
type CreateScopeRequest struct {
	Name     string         `json:"name" description:"Scope name"`
	Kind     string         `json:"kind" description:"Scope kind (global, company, department, team, personal)"`
	ParentID string         `json:"parent_id,omitempty" description:"Parent scope ID"`
	Metadata map[string]any `json:"metadata,omitempty" description:"Custom metadata"`
}

// UpdateScopeRequest is the body for updating a scope.
type UpdateScopeRequest struct {
	Name     *string        `json:"name,omitempty" description:"Scope name"`
	ParentID string         `json:"parent_id,omitempty" description:"New parent scope ID"`
	Active   *bool          `json:"active,omitempty" description:"Active flag"`
	Metadata map[string]any `json:"metadata,omitempty" description:"Custom metadata"`
}

// GetScopeRequest is the path parameter for getting a scope.
type GetScopeRequest struct {
	ScopeID string `path:"scopeId" description:"Scope ID"`
}

// DeleteScopeRequest holds parameters for deleting a scope.
type DeleteScopeRequest struct {
	ScopeID string `path:"scopeId" description:"Scope ID"`
	Cascade bool   `query:"cascade" description:"Delete the whole subtree"`
}

// CloneScopeRequest is the body for cloning a scope.
type CloneScopeRequest struct {
	Name string `json:"name" description:"Name for the cloned scope"`
}

// ListScopesRequest holds query parameters for listing scopes.
type ListScopesRequest struct {
	Kind   string `query:"kind" description:"Filter by scope kind"`
	Active string `query:"active" description:"Filter by active status (true/false)"`
	Search string `query:"search" description:"Search by name"`
	Limit  int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset int    `query:"offset" description:"Results to skip"`
}

// AddScopeRuleRequest is the body for attaching a rule to a scope.
type AddScopeRuleRequest struct {
	ModuleCode      string          `json:"module_code" description:"Module code"`
	Resource        string          `json:"resource" description:"Resource name"`
	FilterKind      string          `json:"filter_kind" description:"Filter kind (owner, department, team, location, custom)"`
	FilterValue     string          `json:"filter_value,omitempty" description:"Filter value for value-bearing kinds"`
	CustomPredicate *predicate.Node `json:"custom_predicate,omitempty" description:"Custom predicate for the custom kind"`
}

// UpdateScopeRuleRequest is the body for updating a scope rule.
type UpdateScopeRuleRequest struct {
	FilterValue     *string         `json:"filter_value,omitempty" description:"Filter value"`
	CustomPredicate *predicate.Node `json:"custom_predicate,omitempty" description:"Custom predicate"`
	Active          *bool           `json:"active,omitempty" description:"Active flag"`
	Position        *int            `json:"position,omitempty" description:"Evaluation position"`
}

// GetScopeRuleRequest is the path parameter for a scope rule.
type GetScopeRuleRequest struct {
	RuleID string `path:"ruleId" description:"Scope rule ID"`
}

// ──────────────────────────────────────────────────
// Access rule requests
// ──────────────────────────────────────────────────

// AddRuleRequest is the body for registering an access rule.
type AddRuleRequest struct {
	ModuleCode  string           `json:"module_code" description:"Module code"`
	Resource    string           `json:"resource" description:"Resource name"`
	Actions     []string         `json:"actions" description:"Granted actions"`
	Conditions  []rule.Condition `json:"conditions,omitempty" description:"Structured conditions"`
	Priority    int              `json:"priority,omitempty" description:"Rule priority"`
	Description string           `json:"description,omitempty" description:"Human-readable description"`
}

// UpdateRuleRequest is the body for updating an access rule.
type UpdateRuleRequest struct {
	Actions     []string         `json:"actions,omitempty" description:"Granted actions"`
	Conditions  []rule.Condition `json:"conditions,omitempty" description:"Structured conditions"`
	Priority    *int             `json:"priority,omitempty" description:"Rule priority"`
	Active      *bool            `json:"active,omitempty" description:"Active flag"`
	Description *string          `json:"description,omitempty" description:"Description"`
}

// GetRuleRequest is the path parameter for an access rule.
type GetRuleRequest struct {
	RuleID string `path:"ruleId" description:"Access rule ID"`
}

// ListRulesRequest holds query parameters for listing access rules.
type ListRulesRequest struct {
	ModuleCode string `query:"module_code" description:"Filter by module code"`
	Resource   string `query:"resource" description:"Filter by resource"`
}

// ──────────────────────────────────────────────────
// Assignment requests
// ──────────────────────────────────────────────────

// AssignRequest is the body for assigning a user to a scope or role.
type AssignRequest struct {
	UserID      string `json:"user_id" description:"User identifier"`
	TargetID    string `json:"target_id" description:"Scope or role ID"`
	EffectiveAt string `json:"effective_at,omitempty" description:"Effective time (RFC3339)"`
	ExpiresAt   string `json:"expires_at,omitempty" description:"Expiration time (RFC3339)"`
	AssignedBy  string `json:"assigned_by,omitempty" description:"Actor performing the assignment"`
	Reason      string `json:"reason,omitempty" description:"Reason for the assignment"`
}

// BulkAssignApiRequest is the body for a bulk assignment.
type BulkAssignApiRequest struct {
	UserIDs     []string `json:"user_ids" description:"Users to assign"`
	TargetIDs   []string `json:"target_ids" description:"Scope or role IDs to assign"`
	Resolution  string   `json:"resolution,omitempty" description:"Conflict resolution mode (manual or auto)"`
	EffectiveAt string   `json:"effective_at,omitempty" description:"Effective time (RFC3339)"`
	ExpiresAt   string   `json:"expires_at,omitempty" description:"Expiration time (RFC3339)"`
	AssignedBy  string   `json:"assigned_by,omitempty" description:"Actor performing the assignment"`
	Reason      string   `json:"reason,omitempty" description:"Reason for the assignment"`
}

// GetAssignmentRequest is the path parameter for an assignment.
type GetAssignmentRequest struct {
	AssignmentID string `path:"assignmentId" description:"Assignment ID"`
}

// ListAssignmentsRequest holds query parameters for listing assignments.
type ListAssignmentsRequest struct {
	UserID  string `query:"user_id" description:"Filter by user ID"`
	ScopeID string `query:"scope_id" description:"Filter by scope ID"`
	RoleID  string `query:"role_id" description:"Filter by role ID"`
	Active  string `query:"active" description:"Filter by active status (true/false)"`
	Limit   int    `query:"limit" description:"Maximum results"`
	Offset  int    `query:"offset" description:"Results to skip"`
}

// UserAssignmentsRequest is the path parameter for per-user assignment views.
type UserAssignmentsRequest struct {
	UserID string `path:"userId" description:"User identifier"`
}

// ──────────────────────────────────────────────────
// Conflict requests
// ──────────────────────────────────────────────────

// ListConflictsRequest holds query parameters for conflict detection.
type ListConflictsRequest struct {
	UserID string `query:"user_id" description:"Detect for a single user; empty scans the tenant"`
}

// ──────────────────────────────────────────────────
// Scenario requests
// ──────────────────────────────────────────────────

// RunScenarioRequest is the body for running a simulation scenario.
type RunScenarioRequest struct {
	Name     string           `json:"name" description:"Scenario name"`
	UserID   string           `json:"user_id" description:"User the scenario evaluates as"`
	ScopeID  string           `json:"scope_id,omitempty" description:"Restrict the replay to grants held through this scope"`
	Requests []ScenarioStep   `json:"requests" description:"Access requests to evaluate in order"`
	Expected []ScenarioExpect `json:"expected,omitempty" description:"Expected outcomes to assert"`
}

// ScenarioStep is one access request within a scenario.
type ScenarioStep struct {
	ModuleCode string         `json:"module_code" description:"Module code"`
	Resource   string         `json:"resource" description:"Resource name"`
	Action     string         `json:"action" description:"Action name"`
	Record     map[string]any `json:"record,omitempty" description:"Record attributes"`
}

// ScenarioExpect asserts the outcome of one scenario request.
type ScenarioExpect struct {
	RequestIndex int    `json:"request_index" description:"Index into the requests list"`
	Outcome      string `json:"outcome" description:"Expected outcome (allow or deny)"`
	Reason       string `json:"reason,omitempty" description:"Explanation of the expectation"`
}

// ──────────────────────────────────────────────────
// Module catalog requests
// ──────────────────────────────────────────────────

// CreateModuleRequest is the body for registering a module.
type CreateModuleRequest struct {
	Code        string         `json:"code" description:"Module code (e.g. emr)"`
	Name        string         `json:"name" description:"Module name"`
	Description string         `json:"description,omitempty" description:"Description"`
	Resources   []ResourceDef  `json:"resources,omitempty" description:"Resource definitions"`
	Metadata    map[string]any `json:"metadata,omitempty" description:"Custom metadata"`
}

// ResourceDef is the input format for a module resource definition.
type ResourceDef struct {
	Name    string     `json:"name" description:"Resource name"`
	Fields  []FieldDef `json:"fields,omitempty" description:"Field definitions"`
	Actions []string   `json:"actions,omitempty" description:"Supported actions"`
}

// FieldDef is the input format for a resource field definition.
type FieldDef struct {
	Name string `json:"name" description:"Field name"`
	Type string `json:"type" description:"Field type"`
}

// UpdateModuleRequest is the body for updating a module.
type UpdateModuleRequest struct {
	Name        string         `json:"name,omitempty" description:"Module name"`
	Description string         `json:"description,omitempty" description:"Description"`
	Resources   []ResourceDef  `json:"resources,omitempty" description:"Resource definitions"`
	Metadata    map[string]any `json:"metadata,omitempty" description:"Custom metadata"`
}

// GetModuleRequest is the path parameter for a module.
type GetModuleRequest struct {
	ModuleID string `path:"moduleId" description:"Module ID"`
}

// ListModulesRequest holds query parameters for listing modules.
type ListModulesRequest struct {
	Search string `query:"search" description:"Search by name"`
	Limit  int    `query:"limit" description:"Maximum results"`
	Offset int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Role requests
// ──────────────────────────────────────────────────

// CreateRoleRequest is the body for creating a role.
type CreateRoleRequest struct {
	Name           string         `json:"name" description:"Role name"`
	Slug           string         `json:"slug" description:"URL-safe slug"`
	Description    string         `json:"description,omitempty" description:"Description"`
	ModuleFamily   string         `json:"module_family,omitempty" description:"Module family the role belongs to"`
	PrivilegeLevel int            `json:"privilege_level,omitempty" description:"Privilege level for overlap resolution"`
	Location       string         `json:"location,omitempty" description:"Location the role is tied to"`
	IsSystem       bool           `json:"is_system,omitempty" description:"System role flag"`
	Metadata       map[string]any `json:"metadata,omitempty" description:"Custom metadata"`
}

// UpdateRoleRequest is the body for updating a role.
type UpdateRoleRequest struct {
	Name           string         `json:"name,omitempty" description:"Role name"`
	Description    string         `json:"description,omitempty" description:"Description"`
	PrivilegeLevel *int           `json:"privilege_level,omitempty" description:"Privilege level"`
	Location       string         `json:"location,omitempty" description:"Location"`
	Active         *bool          `json:"active,omitempty" description:"Active flag"`
	Metadata       map[string]any `json:"metadata,omitempty" description:"Custom metadata"`
}

// GetRoleRequest is the path parameter for getting a role.
type GetRoleRequest struct {
	RoleID string `path:"roleId" description:"Role ID"`
}

// ListRolesRequest holds query parameters for listing roles.
type ListRolesRequest struct {
	ModuleFamily string `query:"module_family" description:"Filter by module family"`
	Search       string `query:"search" description:"Search by name"`
	Limit        int    `query:"limit" description:"Maximum results"`
	Offset       int    `query:"offset" description:"Results to skip"`
}
