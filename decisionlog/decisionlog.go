// Package decisionlog records policy decisions for audit and debugging.
// The Recorder hooks into the engine's evaluation lifecycle and keeps a
// bounded in-memory log of recent decisions per process.
package decisionlog

import (
	"time"

	"github.com/xraph/bastion/id"
)

// Entry is a single recorded policy decision.
type Entry struct {
	ID         id.DecisionID  `json:"id"`
	TenantID   string         `json:"tenant_id"`
	UserID     string         `json:"user_id"`
	ModuleCode string         `json:"module_code"`
	Resource   string         `json:"resource"`
	Action     string         `json:"action"`
	Outcome    string         `json:"outcome"`
	RuleID     string         `json:"rule_id,omitempty"`
	ScopeID    string         `json:"scope_id,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	EvalTimeNs int64          `json:"eval_time_ns"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// QueryFilter contains filters for querying recorded decisions.
type QueryFilter struct {
	TenantID   string     `json:"tenant_id,omitempty"`
	UserID     string     `json:"user_id,omitempty"`
	ModuleCode string     `json:"module_code,omitempty"`
	Resource   string     `json:"resource,omitempty"`
	Action     string     `json:"action,omitempty"`
	Outcome    string     `json:"outcome,omitempty"`
	After      *time.Time `json:"after,omitempty"`
	Before     *time.Time `json:"before,omitempty"`
	Limit      int        `json:"limit,omitempty"`
}

func (f *QueryFilter) matches(e *Entry) bool {
	if f.TenantID != "" && e.TenantID != f.TenantID {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.ModuleCode != "" && e.ModuleCode != f.ModuleCode {
		return false
	}
	if f.Resource != "" && e.Resource != f.Resource {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if f.After != nil && !e.CreatedAt.After(*f.After) {
		return false
	}
	if f.Before != nil && !e.CreatedAt.Before(*f.Before) {
		return false
	}
	return true
}
