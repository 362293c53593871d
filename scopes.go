package bastion

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/predicate"
	"github.com/xraph/bastion/scope"
)

// CreateScopeInput describes a new scope.
type CreateScopeInput struct {
	Name     string         `json:"name"`
	Kind     scope.Kind     `json:"kind"`
	ParentID *id.ScopeID    `json:"parent_id,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// UpdateScopeInput patches an existing scope. Nil fields are left unchanged.
type UpdateScopeInput struct {
	Name     *string        `json:"name,omitempty"`
	ParentID *id.ScopeID    `json:"parent_id,omitempty"`
	Active   *bool          `json:"active,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CreateScope creates a scope after validating its position in the tenant's
// hierarchy.
func (e *Engine) CreateScope(ctx context.Context, in *CreateScopeInput) (*scope.Scope, error) {
	tenant := tenantFromContext(ctx)
	lock := e.tenantLock(tenant.tenantID)
	lock.Lock()
	defer lock.Unlock()

	if in.Name == "" {
		return nil, fmt.Errorf("%w: scope name is required", ErrValidation)
	}
	if !in.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown scope kind %q", ErrValidation, in.Kind)
	}

	if err := e.validatePlacement(ctx, tenant.tenantID, in.Kind, in.ParentID, id.Nil); err != nil {
		return nil, err
	}

	seq, err := e.store.NextScopeSeq(ctx, tenant.tenantID)
	if err != nil {
		return nil, fmt.Errorf("bastion create scope: %w", err)
	}

	now := time.Now().UTC()
	s := &scope.Scope{
		ID:        id.NewScopeID(),
		TenantID:  tenant.tenantID,
		Name:      in.Name,
		Kind:      in.Kind,
		ParentID:  in.ParentID,
		Active:    true,
		Seq:       seq,
		Metadata:  in.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.CreateScope(ctx, s); err != nil {
		return nil, fmt.Errorf("bastion create scope: %w", err)
	}

	e.invalidateTenant(ctx, tenant.tenantID)
	if e.plugins != nil {
		e.plugins.EmitScopeCreated(ctx, s)
	}
	e.logger.Debug("scope created",
		"scope_id", s.ID.String(), "tenant_id", tenant.tenantID, "kind", string(s.Kind))
	return s, nil
}

// GetScope retrieves a scope by ID.
func (e *Engine) GetScope(ctx context.Context, scopeID id.ScopeID) (*scope.Scope, error) {
	s, err := e.store.GetScope(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrScopeNotFound, scopeID)
	}
	return s, nil
}

// ListScopes returns the tenant's scopes matching the filter.
func (e *Engine) ListScopes(ctx context.Context, filter *scope.ListFilter) ([]*scope.Scope, error) {
	tenant := tenantFromContext(ctx)
	if filter == nil {
		filter = &scope.ListFilter{}
	}
	filter.TenantID = tenant.tenantID
	return e.store.ListScopes(ctx, filter)
}

// UpdateScope applies a patch to a scope. Reparenting revalidates the
// hierarchy, including cycle detection.
func (e *Engine) UpdateScope(ctx context.Context, scopeID id.ScopeID, in *UpdateScopeInput) (*scope.Scope, error) {
	tenant := tenantFromContext(ctx)
	lock := e.tenantLock(tenant.tenantID)
	lock.Lock()
	defer lock.Unlock()

	s, err := e.GetScope(ctx, scopeID)
	if err != nil {
		return nil, err
	}

	if in.ParentID != nil && (s.ParentID == nil || s.ParentID.String() != in.ParentID.String()) {
		if err := e.validatePlacement(ctx, tenant.tenantID, s.Kind, in.ParentID, scopeID); err != nil {
			return nil, err
		}
		s.ParentID = in.ParentID
	}
	if in.Name != nil {
		if *in.Name == "" {
			return nil, fmt.Errorf("%w: scope name is required", ErrValidation)
		}
		s.Name = *in.Name
	}
	if in.Active != nil {
		s.Active = *in.Active
	}
	if in.Metadata != nil {
		s.Metadata = in.Metadata
	}
	s.UpdatedAt = time.Now().UTC()

	if err := e.store.UpdateScope(ctx, s); err != nil {
		return nil, fmt.Errorf("bastion update scope: %w", err)
	}

	e.invalidateTenant(ctx, tenant.tenantID)
	if e.plugins != nil {
		e.plugins.EmitScopeUpdated(ctx, s)
	}
	return s, nil
}

// DeleteScope removes a scope. Without cascade, a scope with children is
// rejected with HasChildrenError and a scope with active assignments is
// rejected with HasAssignmentsError. With cascade, the whole subtree is
// removed and every assignment bound to it is soft-deactivated.
func (e *Engine) DeleteScope(ctx context.Context, scopeID id.ScopeID, cascade bool) error {
	tenant := tenantFromContext(ctx)
	lock := e.tenantLock(tenant.tenantID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := e.GetScope(ctx, scopeID); err != nil {
		return err
	}

	children, err := e.store.ListChildScopes(ctx, scopeID)
	if err != nil {
		return fmt.Errorf("bastion delete scope: %w", err)
	}
	if len(children) > 0 && !cascade {
		childIDs := make([]id.ScopeID, len(children))
		for i, c := range children {
			childIDs[i] = c.ID
		}
		return &HasChildrenError{ScopeID: scopeID, Children: childIDs}
	}
	if !cascade {
		assigns, err := e.store.ListForScope(ctx, scopeID)
		if err != nil {
			return fmt.Errorf("bastion delete scope: %w", err)
		}
		var active []id.AssignmentID
		for _, a := range assigns {
			if a.Active {
				active = append(active, a.ID)
			}
		}
		if len(active) > 0 {
			return &HasAssignmentsError{ScopeID: scopeID, Assignments: active}
		}
	}

	// Collect the subtree bottom-up so children are removed before parents.
	order, err := e.subtreeIDs(ctx, scopeID)
	if err != nil {
		return err
	}
	for i := len(order) - 1; i >= 0; i-- {
		sid := order[i]
		if err := e.deactivateScopeAssignments(ctx, sid); err != nil {
			return err
		}
		if err := e.store.DeleteScope(ctx, sid); err != nil {
			return fmt.Errorf("bastion delete scope: %w", err)
		}
		if e.plugins != nil {
			e.plugins.EmitScopeDeleted(ctx, sid)
		}
	}

	e.invalidateTenant(ctx, tenant.tenantID)
	e.logger.Info("scope deleted",
		"scope_id", scopeID.String(), "tenant_id", tenant.tenantID, "cascade", cascade, "removed", len(order))
	return nil
}

// CloneScope deep-copies a scope and its rules under a new name.
// Assignments are not copied.
func (e *Engine) CloneScope(ctx context.Context, scopeID id.ScopeID, newName string) (*scope.Scope, error) {
	tenant := tenantFromContext(ctx)
	lock := e.tenantLock(tenant.tenantID)
	lock.Lock()
	defer lock.Unlock()

	if newName == "" {
		return nil, fmt.Errorf("%w: clone name is required", ErrValidation)
	}

	src, err := e.GetScope(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	if src.Kind == scope.KindGlobal {
		return nil, fmt.Errorf("%w: the global scope cannot be cloned", ErrInvalidHierarchy)
	}

	seq, err := e.store.NextScopeSeq(ctx, tenant.tenantID)
	if err != nil {
		return nil, fmt.Errorf("bastion clone scope: %w", err)
	}

	now := time.Now().UTC()
	clone := &scope.Scope{
		ID:        id.NewScopeID(),
		TenantID:  src.TenantID,
		Name:      newName,
		Kind:      src.Kind,
		ParentID:  src.ParentID,
		Active:    src.Active,
		Seq:       seq,
		Metadata:  copyMetadata(src.Metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.CreateScope(ctx, clone); err != nil {
		return nil, fmt.Errorf("bastion clone scope: %w", err)
	}

	rules, err := e.store.ListScopeRules(ctx, scopeID)
	if err != nil {
		return nil, fmt.Errorf("bastion clone scope: %w", err)
	}
	for _, r := range rules {
		cr := *r
		cr.ID = id.NewScopeRuleID()
		cr.ScopeID = clone.ID
		cr.CreatedAt = now
		cr.UpdatedAt = now
		if err := e.store.CreateScopeRule(ctx, &cr); err != nil {
			return nil, fmt.Errorf("bastion clone scope: %w", err)
		}
	}

	e.invalidateTenant(ctx, tenant.tenantID)
	if e.plugins != nil {
		e.plugins.EmitScopeCreated(ctx, clone)
	}
	return clone, nil
}

// GetSubtree returns the scope and its descendants as a tree.
func (e *Engine) GetSubtree(ctx context.Context, scopeID id.ScopeID) (*scope.Tree, error) {
	root, err := e.GetScope(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	return e.buildTree(ctx, root, 0)
}

// ListAncestors returns the chain from the root down to the given scope,
// the scope itself last.
func (e *Engine) ListAncestors(ctx context.Context, scopeID id.ScopeID) ([]*scope.Scope, error) {
	s, err := e.GetScope(ctx, scopeID)
	if err != nil {
		return nil, err
	}

	chain := []*scope.Scope{s}
	seen := map[string]bool{s.ID.String(): true}
	for s.ParentID != nil {
		parent, err := e.store.GetScope(ctx, *s.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil || seen[parent.ID.String()] {
			break
		}
		seen[parent.ID.String()] = true
		chain = append(chain, parent)
		s = parent
	}

	// Reverse to root-first order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// ──────────────────────────────────────────────────
// Scope rules
// ──────────────────────────────────────────────────

// AddScopeRuleInput describes a new row filter on a scope.
type AddScopeRuleInput struct {
	ModuleCode      string           `json:"module_code"`
	Resource        string           `json:"resource"`
	FilterKind      scope.FilterKind `json:"filter_kind"`
	FilterValue     string           `json:"filter_value,omitempty"`
	CustomPredicate *predicate.Node  `json:"custom_predicate,omitempty"`
}

// AddScopeRule attaches a row filter to a scope. Custom predicates must pass
// the safety validator before acceptance.
func (e *Engine) AddScopeRule(ctx context.Context, scopeID id.ScopeID, in *AddScopeRuleInput) (*scope.Rule, error) {
	tenant := tenantFromContext(ctx)
	lock := e.tenantLock(tenant.tenantID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := e.GetScope(ctx, scopeID); err != nil {
		return nil, err
	}

	existing, err := e.store.ListScopeRules(ctx, scopeID)
	if err != nil {
		return nil, fmt.Errorf("bastion add scope rule: %w", err)
	}

	now := time.Now().UTC()
	r := &scope.Rule{
		ID:              id.NewScopeRuleID(),
		ScopeID:         scopeID,
		ModuleCode:      in.ModuleCode,
		Resource:        in.Resource,
		FilterKind:      in.FilterKind,
		FilterValue:     in.FilterValue,
		CustomPredicate: in.CustomPredicate,
		Active:          true,
		Position:        len(existing),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if r.CustomPredicate != nil {
		if err := predicate.Validate(r.CustomPredicate, e.Functions()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPredicate, err)
		}
	}

	if err := e.store.CreateScopeRule(ctx, r); err != nil {
		return nil, fmt.Errorf("bastion add scope rule: %w", err)
	}
	e.invalidateTenant(ctx, tenant.tenantID)
	return r, nil
}

// UpdateScopeRuleInput patches a scope rule. Nil fields are left unchanged.
type UpdateScopeRuleInput struct {
	FilterValue     *string         `json:"filter_value,omitempty"`
	CustomPredicate *predicate.Node `json:"custom_predicate,omitempty"`
	Active          *bool           `json:"active,omitempty"`
	Position        *int            `json:"position,omitempty"`
}

// UpdateScopeRule applies a patch to a scope rule and revalidates it.
func (e *Engine) UpdateScopeRule(ctx context.Context, ruleID id.ScopeRuleID, in *UpdateScopeRuleInput) (*scope.Rule, error) {
	tenant := tenantFromContext(ctx)
	lock := e.tenantLock(tenant.tenantID)
	lock.Lock()
	defer lock.Unlock()

	r, err := e.store.GetScopeRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrScopeRuleNotFound, ruleID)
	}

	if in.FilterValue != nil {
		r.FilterValue = *in.FilterValue
	}
	if in.CustomPredicate != nil {
		r.CustomPredicate = in.CustomPredicate
	}
	if in.Active != nil {
		r.Active = *in.Active
	}
	if in.Position != nil {
		r.Position = *in.Position
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if r.CustomPredicate != nil {
		if err := predicate.Validate(r.CustomPredicate, e.Functions()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPredicate, err)
		}
	}
	r.UpdatedAt = time.Now().UTC()

	if err := e.store.UpdateScopeRule(ctx, r); err != nil {
		return nil, fmt.Errorf("bastion update scope rule: %w", err)
	}
	e.invalidateTenant(ctx, tenant.tenantID)
	return r, nil
}

// RemoveScopeRule deletes a row filter from its scope.
func (e *Engine) RemoveScopeRule(ctx context.Context, ruleID id.ScopeRuleID) error {
	tenant := tenantFromContext(ctx)
	lock := e.tenantLock(tenant.tenantID)
	lock.Lock()
	defer lock.Unlock()

	r, err := e.store.GetScopeRule(ctx, ruleID)
	if err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("%w: %s", ErrScopeRuleNotFound, ruleID)
	}
	if err := e.store.DeleteScopeRule(ctx, ruleID); err != nil {
		return fmt.Errorf("bastion remove scope rule: %w", err)
	}
	e.invalidateTenant(ctx, tenant.tenantID)
	return nil
}

// ListScopeRules returns the rules of a scope ordered by position.
func (e *Engine) ListScopeRules(ctx context.Context, scopeID id.ScopeID) ([]*scope.Rule, error) {
	if _, err := e.GetScope(ctx, scopeID); err != nil {
		return nil, err
	}
	return e.store.ListScopeRules(ctx, scopeID)
}

// ──────────────────────────────────────────────────
// Hierarchy validation
// ──────────────────────────────────────────────────

// validatePlacement checks a scope's position against the kind ordering:
// a single Global root per tenant, no scope broader than its parent, no
// cycles, bounded depth. selfID is the scope being moved (Nil on create).
func (e *Engine) validatePlacement(ctx context.Context, tenantID string, kind scope.Kind, parentID *id.ScopeID, selfID id.ScopeID) error {
	if kind == scope.KindGlobal {
		if parentID != nil {
			return fmt.Errorf("%w: a global scope cannot have a parent", ErrInvalidHierarchy)
		}
		existing, err := e.store.ListScopes(ctx, &scope.ListFilter{TenantID: tenantID, Kind: scope.KindGlobal})
		if err != nil {
			return fmt.Errorf("bastion validate hierarchy: %w", err)
		}
		for _, s := range existing {
			if s.ID.String() != selfID.String() {
				return fmt.Errorf("%w: tenant already has a global scope", ErrInvalidHierarchy)
			}
		}
		return nil
	}

	if parentID == nil {
		return nil
	}

	parent, err := e.store.GetScope(ctx, *parentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return fmt.Errorf("%w: parent %s", ErrScopeNotFound, parentID)
	}
	if parent.TenantID != tenantID {
		return fmt.Errorf("%w: parent belongs to another tenant", ErrInvalidHierarchy)
	}
	if kind.BroaderThan(parent.Kind) {
		return fmt.Errorf("%w: a %s scope cannot be parented under a %s scope", ErrInvalidHierarchy, kind, parent.Kind)
	}

	// Walk the new parent chain: it must not pass through the scope being
	// moved, and must stay within the depth limit.
	depth := 1
	cur := parent
	seen := map[string]bool{}
	for {
		if !selfID.IsNil() && cur.ID.String() == selfID.String() {
			return fmt.Errorf("%w: reparenting would create a cycle", ErrInvalidHierarchy)
		}
		if seen[cur.ID.String()] {
			return fmt.Errorf("%w: parent chain contains a cycle", ErrInvalidHierarchy)
		}
		seen[cur.ID.String()] = true
		if cur.ParentID == nil {
			break
		}
		next, err := e.store.GetScope(ctx, *cur.ParentID)
		if err != nil {
			return err
		}
		if next == nil {
			break
		}
		cur = next
		depth++
		if e.config.MaxScopeDepth > 0 && depth >= e.config.MaxScopeDepth {
			return fmt.Errorf("%w: scope tree exceeds max depth %d", ErrInvalidHierarchy, e.config.MaxScopeDepth)
		}
	}
	return nil
}

func (e *Engine) buildTree(ctx context.Context, s *scope.Scope, depth int) (*scope.Tree, error) {
	node := &scope.Tree{Scope: s}
	if e.config.MaxScopeDepth > 0 && depth >= e.config.MaxScopeDepth {
		return node, nil
	}
	children, err := e.store.ListChildScopes(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		child, err := e.buildTree(ctx, c, depth+1)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// subtreeIDs returns the scope and its descendants in top-down order.
func (e *Engine) subtreeIDs(ctx context.Context, scopeID id.ScopeID) ([]id.ScopeID, error) {
	order := []id.ScopeID{scopeID}
	queue := []id.ScopeID{scopeID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		children, err := e.store.ListChildScopes(ctx, cur)
		if err != nil {
			return nil, fmt.Errorf("bastion subtree: %w", err)
		}
		for _, c := range children {
			order = append(order, c.ID)
			queue = append(queue, c.ID)
		}
	}
	return order, nil
}

// deactivateScopeAssignments soft-deactivates every assignment bound to the
// scope. Assignment records are never deleted.
func (e *Engine) deactivateScopeAssignments(ctx context.Context, scopeID id.ScopeID) error {
	assigns, err := e.store.ListForScope(ctx, scopeID)
	if err != nil {
		return fmt.Errorf("bastion deactivate assignments: %w", err)
	}
	now := time.Now().UTC()
	for _, a := range assigns {
		if !a.Active {
			continue
		}
		a.Active = false
		a.DeactivatedAt = &now
		a.UpdatedAt = now
		if err := e.store.UpdateAssignment(ctx, a); err != nil {
			return fmt.Errorf("bastion deactivate assignments: %w", err)
		}
		if e.plugins != nil {
			e.plugins.EmitUnassigned(ctx, a)
		}
	}
	return nil
}

func copyMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
