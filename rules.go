package bastion

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/predicate"
	"github.com/xraph/bastion/rule"
)

// AddRuleInput describes a new access rule.
type AddRuleInput struct {
	ModuleCode  string           `json:"module_code"`
	Resource    string           `json:"resource"`
	Actions     []rule.Action    `json:"actions"`
	Conditions  []rule.Condition `json:"conditions,omitempty"`
	Priority    int              `json:"priority"`
	Description string           `json:"description,omitempty"`
}

// AddRule registers an access rule. Malformed rules are rejected here so
// evaluation never encounters one: actions must be known, each condition
// must satisfy its one-of invariant, condition fields must exist in the
// module catalog when the module/resource pair is registered, and custom
// expressions must pass the predicate safety validator.
func (e *Engine) AddRule(ctx context.Context, in *AddRuleInput) (*rule.AccessRule, error) {
	tenant := tenantFromContext(ctx)
	lock := e.tenantLock(tenant.tenantID)
	lock.Lock()
	defer lock.Unlock()

	seq, err := e.store.NextAccessRuleSeq(ctx, tenant.tenantID)
	if err != nil {
		return nil, fmt.Errorf("bastion add rule: %w", err)
	}

	now := time.Now().UTC()
	r := &rule.AccessRule{
		ID:          id.NewAccessRuleID(),
		TenantID:    tenant.tenantID,
		ModuleCode:  in.ModuleCode,
		Resource:    in.Resource,
		Actions:     in.Actions,
		Conditions:  in.Conditions,
		Priority:    in.Priority,
		Seq:         seq,
		Active:      true,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i := range r.Conditions {
		if r.Conditions[i].ID.IsNil() {
			r.Conditions[i].ID = id.NewConditionID()
		}
	}
	if err := e.validateAccessRule(ctx, tenant.tenantID, r); err != nil {
		return nil, err
	}

	if err := e.store.CreateAccessRule(ctx, r); err != nil {
		return nil, fmt.Errorf("bastion add rule: %w", err)
	}

	e.invalidateTenant(ctx, tenant.tenantID)
	if e.plugins != nil {
		e.plugins.EmitRuleAdded(ctx, r)
	}
	e.logger.Debug("access rule added",
		"rule_id", r.ID.String(), "tenant_id", tenant.tenantID,
		"module", r.ModuleCode, "resource", r.Resource, "priority", r.Priority)
	return r, nil
}

// UpdateRuleInput patches an access rule. Nil fields are left unchanged.
type UpdateRuleInput struct {
	Actions     []rule.Action    `json:"actions,omitempty"`
	Conditions  []rule.Condition `json:"conditions,omitempty"`
	Priority    *int             `json:"priority,omitempty"`
	Active      *bool            `json:"active,omitempty"`
	Description *string          `json:"description,omitempty"`
}

// UpdateRule applies a patch to an access rule and revalidates it.
func (e *Engine) UpdateRule(ctx context.Context, ruleID id.AccessRuleID, in *UpdateRuleInput) (*rule.AccessRule, error) {
	tenant := tenantFromContext(ctx)
	lock := e.tenantLock(tenant.tenantID)
	lock.Lock()
	defer lock.Unlock()

	r, err := e.getRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	if in.Actions != nil {
		r.Actions = in.Actions
	}
	if in.Conditions != nil {
		r.Conditions = in.Conditions
		for i := range r.Conditions {
			if r.Conditions[i].ID.IsNil() {
				r.Conditions[i].ID = id.NewConditionID()
			}
		}
	}
	if in.Priority != nil {
		r.Priority = *in.Priority
	}
	if in.Active != nil {
		r.Active = *in.Active
	}
	if in.Description != nil {
		r.Description = *in.Description
	}
	if err := e.validateAccessRule(ctx, tenant.tenantID, r); err != nil {
		return nil, err
	}
	r.UpdatedAt = time.Now().UTC()

	if err := e.store.UpdateAccessRule(ctx, r); err != nil {
		return nil, fmt.Errorf("bastion update rule: %w", err)
	}

	e.invalidateTenant(ctx, tenant.tenantID)
	if e.plugins != nil {
		e.plugins.EmitRuleUpdated(ctx, r)
	}
	return r, nil
}

// RemoveRule deletes an access rule from the registry.
func (e *Engine) RemoveRule(ctx context.Context, ruleID id.AccessRuleID) error {
	tenant := tenantFromContext(ctx)
	lock := e.tenantLock(tenant.tenantID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := e.getRule(ctx, ruleID); err != nil {
		return err
	}
	if err := e.store.DeleteAccessRule(ctx, ruleID); err != nil {
		return fmt.Errorf("bastion remove rule: %w", err)
	}

	e.invalidateTenant(ctx, tenant.tenantID)
	if e.plugins != nil {
		e.plugins.EmitRuleRemoved(ctx, ruleID)
	}
	return nil
}

// GetRule retrieves an access rule by ID.
func (e *Engine) GetRule(ctx context.Context, ruleID id.AccessRuleID) (*rule.AccessRule, error) {
	return e.getRule(ctx, ruleID)
}

// ListRulesFor returns the tenant's active rules matching a module/resource
// pair, sorted by priority ascending with creation order breaking ties.
// Wildcard patterns on the stored rules match any requested value.
func (e *Engine) ListRulesFor(ctx context.Context, moduleCode, resource string) ([]*rule.AccessRule, error) {
	tenant := tenantFromContext(ctx)
	all, err := e.store.ListActiveAccessRules(ctx, tenant.tenantID)
	if err != nil {
		return nil, fmt.Errorf("bastion list rules: %w", err)
	}

	var out []*rule.AccessRule
	for _, r := range all {
		if matchRule(r.ModuleCode, r.Resource, moduleCode, resource) {
			out = append(out, r)
		}
	}
	sortRules(out)
	return out, nil
}

func (e *Engine) getRule(ctx context.Context, ruleID id.AccessRuleID) (*rule.AccessRule, error) {
	r, err := e.store.GetAccessRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, ruleID)
	}
	return r, nil
}

// validateAccessRule enforces the registry's write-time invariants.
func (e *Engine) validateAccessRule(ctx context.Context, tenantID string, r *rule.AccessRule) error {
	if r.ModuleCode == "" {
		return fmt.Errorf("%w: module code is required", ErrValidation)
	}
	if r.Resource == "" {
		return fmt.Errorf("%w: resource is required", ErrValidation)
	}
	if len(r.Actions) == 0 {
		return fmt.Errorf("%w: at least one action is required", ErrValidation)
	}
	for _, a := range r.Actions {
		if !a.Valid() {
			return fmt.Errorf("%w: unknown action %q", ErrValidation, a)
		}
	}

	// Resolve the catalog entry, if the module/resource pair is registered.
	// Unregistered pairs accept any field; registered pairs validate
	// strictly against the declared field list.
	var known *moduleFields
	if r.ModuleCode != "*" && r.Resource != "*" {
		mf, err := e.lookupModuleFields(ctx, tenantID, r.ModuleCode, r.Resource)
		if err != nil {
			return err
		}
		known = mf
	}

	for i := range r.Conditions {
		c := &r.Conditions[i]
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: condition %d: %v", ErrValidation, i, err)
		}
		if c.Operator == rule.OpCustom {
			if err := predicate.Validate(c.Custom, e.Functions()); err != nil {
				return fmt.Errorf("%w: condition %d: %v", ErrInvalidPredicate, i, err)
			}
			continue
		}
		if known != nil && !known.has(c.Field) {
			return fmt.Errorf("%w: condition %d: field %q is not defined for %s.%s",
				ErrValidation, i, c.Field, r.ModuleCode, r.Resource)
		}
	}
	return nil
}

type moduleFields struct {
	fields map[string]bool
}

func (m *moduleFields) has(field string) bool { return m.fields[field] }

// lookupModuleFields returns the declared field set for a module/resource
// pair, or nil when the pair is not in the catalog.
func (e *Engine) lookupModuleFields(ctx context.Context, tenantID, moduleCode, resource string) (*moduleFields, error) {
	mod, err := e.store.GetModuleByCode(ctx, tenantID, moduleCode)
	if err != nil {
		return nil, fmt.Errorf("bastion module lookup: %w", err)
	}
	if mod == nil {
		return nil, nil
	}
	res, ok := mod.Resource(resource)
	if !ok {
		return nil, nil
	}
	fields := make(map[string]bool, len(res.Fields))
	for _, f := range res.Fields {
		fields[f.Name] = true
	}
	return &moduleFields{fields: fields}, nil
}

// sortRules orders rules by priority ascending, creation order breaking
// ties. Lower priority evaluates first.
func sortRules(rules []*rule.AccessRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].Seq < rules[j].Seq
	})
}
