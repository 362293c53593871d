// Package bastion provides a hierarchical scope-based access policy engine
// for Go.
//
// Bastion models a tenant-wide tree of data-access scopes with attached row
// filters, a registry of prioritized access rules with structured conditions,
// and user assignments to scopes and roles. The engine resolves each request
// to an allow/deny decision or a composable filter predicate, detects
// conflicting or redundant grants, and replays named scenarios for
// verification. It is tenant-scoped by default via forge.Scope and works
// standalone through WithTenant.
//
//	eng, err := bastion.NewEngine(
//	    bastion.WithStore(memStore),
//	)
//	dec, err := eng.Evaluate(ctx, &bastion.EvaluateRequest{
//	    UserID:     "user_123",
//	    ModuleCode: "crm",
//	    Resource:   "customers",
//	    Action:     rule.ActionRead,
//	    Record:     map[string]any{"department_id": "sales"},
//	})
package bastion

import (
	"time"

	"github.com/xraph/bastion/conflict"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/rule"
)

// EvaluateRequest is the input to a policy evaluation.
type EvaluateRequest struct {
	UserID     string      `json:"user_id"`
	ModuleCode string      `json:"module_code"`
	Resource   string      `json:"resource"`
	Action     rule.Action `json:"action"`

	// Record holds the attributes of the record under evaluation. Optional
	// for requests that are not record-specific.
	Record map[string]any `json:"record,omitempty"`
}

// Outcome is the allow/deny result of an evaluation.
type Outcome string

const (
	// OutcomeAllow means the request is permitted.
	OutcomeAllow Outcome = "allow"

	// OutcomeDeny means the request is denied.
	OutcomeDeny Outcome = "deny"
)

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Outcome Outcome `json:"outcome"`

	// MatchedRuleID is the scope rule or access rule that granted access.
	MatchedRuleID id.ID `json:"matched_rule_id,omitempty"`

	// AppliedScopeID is the scope whose rule matched, when the match came
	// from a scope rule.
	AppliedScopeID id.ScopeID `json:"applied_scope_id,omitempty"`

	Explanation string `json:"explanation,omitempty"`
	EvalTimeNs  int64  `json:"eval_time_ns"`
}

// Allowed reports whether the decision permits the request.
func (d *Decision) Allowed() bool { return d.Outcome == OutcomeAllow }

// ConflictResolution selects how bulk assignment handles detected conflicts.
type ConflictResolution string

const (
	// ResolutionManual rejects the whole batch atomically when any critical
	// conflict is present.
	ResolutionManual ConflictResolution = "manual"

	// ResolutionAuto applies per-conflict resolutions where defined
	// (duplicate grants are skipped, permission overlaps keep the highest
	// privilege) and reports everything else as blocked.
	ResolutionAuto ConflictResolution = "auto"
)

// BulkAssignRequest assigns every target to every user in one transaction.
type BulkAssignRequest struct {
	UserIDs   []string `json:"user_ids"`
	TargetIDs []id.ID  `json:"target_ids"`

	Resolution ConflictResolution `json:"resolution"`

	EffectiveAt *time.Time `json:"effective_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	AssignedBy  string     `json:"assigned_by,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

// PairStatus is the per-(user, target) outcome of a bulk assignment.
type PairStatus string

const (
	// PairCreated means a new assignment was persisted.
	PairCreated PairStatus = "created"

	// PairAlreadyActive means an identical active assignment existed; the
	// pair is a no-op.
	PairAlreadyActive PairStatus = "already_active"

	// PairConflictBlocked means a conflict prevented the assignment.
	PairConflictBlocked PairStatus = "conflict_blocked"
)

// PairResult reports the outcome for one (user, target) pair.
type PairResult struct {
	UserID       string               `json:"user_id"`
	TargetID     id.ID                `json:"target_id"`
	Status       PairStatus           `json:"status"`
	AssignmentID id.AssignmentID      `json:"assignment_id,omitempty"`
	Conflicts    []*conflict.Conflict `json:"conflicts,omitempty"`

	// Deactivated lists prior assignments an auto-resolution turned off.
	Deactivated []id.AssignmentID `json:"deactivated,omitempty"`
}

// BulkResult is the full outcome of a bulk assignment.
type BulkResult struct {
	Pairs   []PairResult `json:"pairs"`
	Created int          `json:"created"`
	Skipped int          `json:"skipped"`
	Blocked int          `json:"blocked"`

	// Conflicts aggregates every conflict detected across the batch,
	// including those auto-resolution settled, for audit.
	Conflicts []*conflict.Conflict `json:"conflicts,omitempty"`
}

// Scenario is a named replay of evaluation requests with expected outcomes.
type Scenario struct {
	ID     id.ScenarioID `json:"id,omitempty"`
	Name   string        `json:"name"`
	UserID string        `json:"user_id"`

	// ScopeID optionally restricts the replay to grants held through that
	// scope. The zero value replays against every effective scope.
	ScopeID id.ScopeID `json:"scope_id,omitempty"`

	Requests []ScenarioRequest     `json:"requests"`
	Expected []ScenarioExpectation `json:"expected"`
}

// ScenarioRequest is one evaluation request inside a scenario.
type ScenarioRequest struct {
	ModuleCode string         `json:"module_code"`
	Resource   string         `json:"resource"`
	Action     rule.Action    `json:"action"`
	Record     map[string]any `json:"record,omitempty"`
}

// ScenarioExpectation pins the expected outcome of one request by index.
type ScenarioExpectation struct {
	RequestIndex int     `json:"request_index"`
	Outcome      Outcome `json:"outcome"`
	Reason       string  `json:"reason,omitempty"`
}

// ScenarioResult is the outcome of a scenario run.
type ScenarioResult struct {
	ScenarioID id.ScenarioID `json:"scenario_id,omitempty"`
	Name       string        `json:"name"`
	Passed     bool          `json:"passed"`

	Requests    []RequestResult `json:"requests"`
	TotalTimeNs int64           `json:"total_time_ns"`
}

// RequestResult is the per-request outcome of a scenario run.
type RequestResult struct {
	Index     int       `json:"index"`
	Decision  *Decision `json:"decision"`
	Expected  Outcome   `json:"expected"`
	Passed    bool      `json:"passed"`
	ElapsedNs int64     `json:"elapsed_ns"`

	// Diagnostic carries the mismatch explanation for failed requests.
	Diagnostic string `json:"diagnostic,omitempty"`
}
