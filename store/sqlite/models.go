package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/module"
	"github.com/xraph/bastion/predicate"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/rule"
	"github.com/xraph/bastion/scope"
)

// ──────────────────────────────────────────────────
// Scope model
// ──────────────────────────────────────────────────

type scopeModel struct {
	grove.BaseModel `grove:"table:bastion_scopes"`
	ID              string    `grove:"id,pk"`
	TenantID        string    `grove:"tenant_id,notnull"`
	Name            string    `grove:"name,notnull"`
	Kind            string    `grove:"kind,notnull"`
	ParentID        *string   `grove:"parent_id"`
	Active          bool      `grove:"active,notnull"`
	Seq             int       `grove:"seq,notnull"`
	Metadata        string    `grove:"metadata"` // JSON text
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func scopeToModel(sc *scope.Scope) (*scopeModel, error) {
	metadata, err := json.Marshal(sc.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal scope metadata: %w", err)
	}
	m := &scopeModel{
		ID:        sc.ID.String(),
		TenantID:  sc.TenantID,
		Name:      sc.Name,
		Kind:      string(sc.Kind),
		Active:    sc.Active,
		Seq:       sc.Seq,
		Metadata:  string(metadata),
		CreatedAt: sc.CreatedAt,
		UpdatedAt: sc.UpdatedAt,
	}
	if sc.ParentID != nil {
		s := sc.ParentID.String()
		m.ParentID = &s
	}
	return m, nil
}

func scopeFromModel(m *scopeModel) (*scope.Scope, error) {
	sid, _ := id.ParseScopeID(m.ID) //nolint:errcheck // stored IDs are always valid
	var metadata map[string]any
	if m.Metadata != "" {
		if err := json.Unmarshal([]byte(m.Metadata), &metadata); err != nil {
			return nil, fmt.Errorf("unmarshal scope metadata: %w", err)
		}
	}
	sc := &scope.Scope{
		ID:        sid,
		TenantID:  m.TenantID,
		Name:      m.Name,
		Kind:      scope.Kind(m.Kind),
		Active:    m.Active,
		Seq:       m.Seq,
		Metadata:  metadata,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.ParentID != nil {
		pid, err := id.ParseScopeID(*m.ParentID)
		if err == nil {
			sc.ParentID = &pid
		}
	}
	return sc, nil
}

// ──────────────────────────────────────────────────
// Scope rule model
// ──────────────────────────────────────────────────

type scopeRuleModel struct {
	grove.BaseModel `grove:"table:bastion_scope_rules"`
	ID              string    `grove:"id,pk"`
	ScopeID         string    `grove:"scope_id,notnull"`
	ModuleCode      string    `grove:"module_code,notnull"`
	Resource        string    `grove:"resource,notnull"`
	FilterKind      string    `grove:"filter_kind,notnull"`
	FilterValue     string    `grove:"filter_value"`
	CustomPredicate string    `grove:"custom_predicate"` // JSON text
	Active          bool      `grove:"active,notnull"`
	Position        int       `grove:"position,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func scopeRuleToModel(r *scope.Rule) (*scopeRuleModel, error) {
	m := &scopeRuleModel{
		ID:          r.ID.String(),
		ScopeID:     r.ScopeID.String(),
		ModuleCode:  r.ModuleCode,
		Resource:    r.Resource,
		FilterKind:  string(r.FilterKind),
		FilterValue: r.FilterValue,
		Active:      r.Active,
		Position:    r.Position,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.CustomPredicate != nil {
		pred, err := json.Marshal(r.CustomPredicate)
		if err != nil {
			return nil, fmt.Errorf("marshal scope rule predicate: %w", err)
		}
		m.CustomPredicate = string(pred)
	}
	return m, nil
}

func scopeRuleFromModel(m *scopeRuleModel) (*scope.Rule, error) {
	rid, _ := id.ParseScopeRuleID(m.ID)  //nolint:errcheck // stored IDs are always valid
	sid, _ := id.ParseScopeID(m.ScopeID) //nolint:errcheck // stored IDs are always valid
	r := &scope.Rule{
		ID:          rid,
		ScopeID:     sid,
		ModuleCode:  m.ModuleCode,
		Resource:    m.Resource,
		FilterKind:  scope.FilterKind(m.FilterKind),
		FilterValue: m.FilterValue,
		Active:      m.Active,
		Position:    m.Position,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.CustomPredicate != "" {
		var pred predicate.Node
		if err := json.Unmarshal([]byte(m.CustomPredicate), &pred); err != nil {
			return nil, fmt.Errorf("unmarshal scope rule predicate: %w", err)
		}
		r.CustomPredicate = &pred
	}
	return r, nil
}

// ──────────────────────────────────────────────────
// Access rule model
// ──────────────────────────────────────────────────

type accessRuleModel struct {
	grove.BaseModel `grove:"table:bastion_access_rules"`
	ID              string    `grove:"id,pk"`
	TenantID        string    `grove:"tenant_id,notnull"`
	ModuleCode      string    `grove:"module_code,notnull"`
	Resource        string    `grove:"resource,notnull"`
	Actions         string    `grove:"actions"`    // JSON text
	Conditions      string    `grove:"conditions"` // JSON text
	Priority        int       `grove:"priority,notnull"`
	Seq             int       `grove:"seq,notnull"`
	Active          bool      `grove:"active,notnull"`
	Description     string    `grove:"description"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func accessRuleToModel(r *rule.AccessRule) (*accessRuleModel, error) {
	actions, err := json.Marshal(r.Actions)
	if err != nil {
		return nil, fmt.Errorf("marshal access rule actions: %w", err)
	}
	conditions, err := json.Marshal(r.Conditions)
	if err != nil {
		return nil, fmt.Errorf("marshal access rule conditions: %w", err)
	}
	return &accessRuleModel{
		ID:          r.ID.String(),
		TenantID:    r.TenantID,
		ModuleCode:  r.ModuleCode,
		Resource:    r.Resource,
		Actions:     string(actions),
		Conditions:  string(conditions),
		Priority:    r.Priority,
		Seq:         r.Seq,
		Active:      r.Active,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

func accessRuleFromModel(m *accessRuleModel) (*rule.AccessRule, error) {
	rid, _ := id.ParseAccessRuleID(m.ID) //nolint:errcheck // stored IDs are always valid
	var actions []rule.Action
	if m.Actions != "" {
		if err := json.Unmarshal([]byte(m.Actions), &actions); err != nil {
			return nil, fmt.Errorf("unmarshal access rule actions: %w", err)
		}
	}
	var conditions []rule.Condition
	if m.Conditions != "" {
		if err := json.Unmarshal([]byte(m.Conditions), &conditions); err != nil {
			return nil, fmt.Errorf("unmarshal access rule conditions: %w", err)
		}
	}
	return &rule.AccessRule{
		ID:          rid,
		TenantID:    m.TenantID,
		ModuleCode:  m.ModuleCode,
		Resource:    m.Resource,
		Actions:     actions,
		Conditions:  conditions,
		Priority:    m.Priority,
		Seq:         m.Seq,
		Active:      m.Active,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

// ──────────────────────────────────────────────────
// Assignment model
// ──────────────────────────────────────────────────

type assignmentModel struct {
	grove.BaseModel `grove:"table:bastion_assignments"`
	ID              string     `grove:"id,pk"`
	TenantID        string     `grove:"tenant_id,notnull"`
	UserID          string     `grove:"user_id,notnull"`
	ScopeID         string     `grove:"scope_id"`
	RoleID          string     `grove:"role_id"`
	EffectiveAt     *time.Time `grove:"effective_at"`
	ExpiresAt       *time.Time `grove:"expires_at"`
	AssignedBy      string     `grove:"assigned_by"`
	Reason          string     `grove:"reason"`
	Active          bool       `grove:"active,notnull"`
	DeactivatedAt   *time.Time `grove:"deactivated_at"`
	CreatedAt       time.Time  `grove:"created_at,notnull"`
	UpdatedAt       time.Time  `grove:"updated_at,notnull"`
}

func assignmentToModel(a *assignment.Assignment) *assignmentModel {
	m := &assignmentModel{
		ID:            a.ID.String(),
		TenantID:      a.TenantID,
		UserID:        a.UserID,
		EffectiveAt:   a.EffectiveAt,
		ExpiresAt:     a.ExpiresAt,
		AssignedBy:    a.AssignedBy,
		Reason:        a.Reason,
		Active:        a.Active,
		DeactivatedAt: a.DeactivatedAt,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
	if !a.ScopeID.IsNil() {
		m.ScopeID = a.ScopeID.String()
	}
	if !a.RoleID.IsNil() {
		m.RoleID = a.RoleID.String()
	}
	return m
}

func assignmentFromModel(m *assignmentModel) *assignment.Assignment {
	aid, _ := id.ParseAssignmentID(m.ID) //nolint:errcheck // stored IDs are always valid
	a := &assignment.Assignment{
		ID:            aid,
		TenantID:      m.TenantID,
		UserID:        m.UserID,
		EffectiveAt:   m.EffectiveAt,
		ExpiresAt:     m.ExpiresAt,
		AssignedBy:    m.AssignedBy,
		Reason:        m.Reason,
		Active:        m.Active,
		DeactivatedAt: m.DeactivatedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.ScopeID != "" {
		sid, err := id.ParseScopeID(m.ScopeID)
		if err == nil {
			a.ScopeID = sid
		}
	}
	if m.RoleID != "" {
		rid, err := id.ParseRoleID(m.RoleID)
		if err == nil {
			a.RoleID = rid
		}
	}
	return a
}

// ──────────────────────────────────────────────────
// Role model
// ──────────────────────────────────────────────────

type roleModel struct {
	grove.BaseModel `grove:"table:bastion_roles"`
	ID              string    `grove:"id,pk"`
	TenantID        string    `grove:"tenant_id,notnull"`
	Name            string    `grove:"name,notnull"`
	Slug            string    `grove:"slug,notnull"`
	Description     string    `grove:"description"`
	ModuleFamily    string    `grove:"module_family"`
	PrivilegeLevel  int       `grove:"privilege_level,notnull"`
	Location        string    `grove:"location"`
	IsSystem        bool      `grove:"is_system,notnull"`
	Active          bool      `grove:"active,notnull"`
	Metadata        string    `grove:"metadata"` // JSON text
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func roleToModel(r *role.Role) (*roleModel, error) {
	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal role metadata: %w", err)
	}
	return &roleModel{
		ID:             r.ID.String(),
		TenantID:       r.TenantID,
		Name:           r.Name,
		Slug:           r.Slug,
		Description:    r.Description,
		ModuleFamily:   r.ModuleFamily,
		PrivilegeLevel: r.PrivilegeLevel,
		Location:       r.Location,
		IsSystem:       r.IsSystem,
		Active:         r.Active,
		Metadata:       string(metadata),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

func roleFromModel(m *roleModel) (*role.Role, error) {
	rid, _ := id.ParseRoleID(m.ID) //nolint:errcheck // stored IDs are always valid
	var metadata map[string]any
	if m.Metadata != "" {
		if err := json.Unmarshal([]byte(m.Metadata), &metadata); err != nil {
			return nil, fmt.Errorf("unmarshal role metadata: %w", err)
		}
	}
	return &role.Role{
		ID:             rid,
		TenantID:       m.TenantID,
		Name:           m.Name,
		Slug:           m.Slug,
		Description:    m.Description,
		ModuleFamily:   m.ModuleFamily,
		PrivilegeLevel: m.PrivilegeLevel,
		Location:       m.Location,
		IsSystem:       m.IsSystem,
		Active:         m.Active,
		Metadata:       metadata,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}, nil
}

// ──────────────────────────────────────────────────
// Module model
// ──────────────────────────────────────────────────

type moduleModel struct {
	grove.BaseModel `grove:"table:bastion_modules"`
	ID              string    `grove:"id,pk"`
	TenantID        string    `grove:"tenant_id,notnull"`
	Code            string    `grove:"code,notnull"`
	Name            string    `grove:"name,notnull"`
	Description     string    `grove:"description"`
	Resources       string    `grove:"resources"` // JSON text
	Metadata        string    `grove:"metadata"`  // JSON text
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func moduleToModel(mod *module.Module) (*moduleModel, error) {
	resources, err := json.Marshal(mod.Resources)
	if err != nil {
		return nil, fmt.Errorf("marshal module resources: %w", err)
	}
	metadata, err := json.Marshal(mod.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal module metadata: %w", err)
	}
	return &moduleModel{
		ID:          mod.ID.String(),
		TenantID:    mod.TenantID,
		Code:        mod.Code,
		Name:        mod.Name,
		Description: mod.Description,
		Resources:   string(resources),
		Metadata:    string(metadata),
		CreatedAt:   mod.CreatedAt,
		UpdatedAt:   mod.UpdatedAt,
	}, nil
}

func moduleFromModel(m *moduleModel) (*module.Module, error) {
	mid, _ := id.ParseModuleID(m.ID) //nolint:errcheck // stored IDs are always valid
	var resources []module.ResourceDef
	if m.Resources != "" {
		if err := json.Unmarshal([]byte(m.Resources), &resources); err != nil {
			return nil, fmt.Errorf("unmarshal module resources: %w", err)
		}
	}
	var metadata map[string]any
	if m.Metadata != "" {
		if err := json.Unmarshal([]byte(m.Metadata), &metadata); err != nil {
			return nil, fmt.Errorf("unmarshal module metadata: %w", err)
		}
	}
	return &module.Module{
		ID:          mid,
		TenantID:    m.TenantID,
		Code:        m.Code,
		Name:        m.Name,
		Description: m.Description,
		Resources:   resources,
		Metadata:    metadata,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

// ──────────────────────────────────────────────────
// Sequence counter model
// ──────────────────────────────────────────────────

type counterModel struct {
	grove.BaseModel `grove:"table:bastion_counters"`
	TenantID        string `grove:"tenant_id,pk"`
	Name            string `grove:"name,pk"`
	Value           int    `grove:"value,notnull"`
}
