// Package memory provides an in-memory implementation of the Bastion
// composite store. It is intended for testing and development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/module"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/rule"
	"github.com/xraph/bastion/scope"
	"github.com/xraph/bastion/store"
)

// Compile-time interface checks.
var (
	_ scope.Store      = (*Store)(nil)
	_ rule.Store       = (*Store)(nil)
	_ assignment.Store = (*Store)(nil)
	_ role.Store       = (*Store)(nil)
	_ module.Store     = (*Store)(nil)
	_ store.Store      = (*Store)(nil)
)

// Store is a thread-safe in-memory store for all Bastion entities.
// Lookups that find nothing return (nil, nil); the engine maps missing
// records to its own sentinel errors.
type Store struct {
	mu sync.RWMutex

	scopes      map[string]*scope.Scope
	scopeRules  map[string]*scope.Rule
	accessRules map[string]*rule.AccessRule
	assignments map[string]*assignment.Assignment
	roles       map[string]*role.Role
	modules     map[string]*module.Module

	scopeSeq map[string]int // tenantID -> last scope seq
	ruleSeq  map[string]int // tenantID -> last access rule seq
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		scopes:      make(map[string]*scope.Scope),
		scopeRules:  make(map[string]*scope.Rule),
		accessRules: make(map[string]*rule.AccessRule),
		assignments: make(map[string]*assignment.Assignment),
		roles:       make(map[string]*role.Role),
		modules:     make(map[string]*module.Module),
		scopeSeq:    make(map[string]int),
		ruleSeq:     make(map[string]int),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// Snapshot copies the tenant's state under one read lock, so the view is
// internally consistent.
func (s *Store) Snapshot(_ context.Context, tenantID string) (*store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &store.Snapshot{
		TenantID:    tenantID,
		TakenAt:     time.Now().UTC(),
		Scopes:      make(map[string]*scope.Scope),
		ScopeRules:  make(map[string]*scope.Rule),
		AccessRules: make(map[string]*rule.AccessRule),
		Assignments: make(map[string]*assignment.Assignment),
		Roles:       make(map[string]*role.Role),
		Modules:     make(map[string]*module.Module),
	}
	for k, sc := range s.scopes {
		if sc.TenantID == tenantID {
			snap.Scopes[k] = copyScope(sc)
		}
	}
	for k, r := range s.scopeRules {
		if sc, ok := snap.Scopes[r.ScopeID.String()]; ok && sc != nil {
			snap.ScopeRules[k] = copyScopeRule(r)
		}
	}
	for k, r := range s.accessRules {
		if r.TenantID == tenantID {
			snap.AccessRules[k] = copyAccessRule(r)
		}
	}
	for k, a := range s.assignments {
		if a.TenantID == tenantID {
			snap.Assignments[k] = copyAssignment(a)
		}
	}
	for k, r := range s.roles {
		if r.TenantID == tenantID {
			snap.Roles[k] = copyRole(r)
		}
	}
	for k, m := range s.modules {
		if m.TenantID == tenantID {
			snap.Modules[k] = copyModule(m)
		}
	}
	return snap, nil
}

// ──────────────────────────────────────────────────
// Scope Store
// ──────────────────────────────────────────────────

func (s *Store) CreateScope(_ context.Context, sc *scope.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes[sc.ID.String()] = copyScope(sc)
	return nil
}

func (s *Store) GetScope(_ context.Context, scopeID id.ScopeID) (*scope.Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scopes[scopeID.String()]
	if !ok {
		return nil, nil
	}
	return copyScope(sc), nil
}

func (s *Store) UpdateScope(_ context.Context, sc *scope.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes[sc.ID.String()] = copyScope(sc)
	return nil
}

func (s *Store) DeleteScope(_ context.Context, scopeID id.ScopeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scopeID.String()
	delete(s.scopes, key)
	for k, r := range s.scopeRules {
		if r.ScopeID.String() == key {
			delete(s.scopeRules, k)
		}
	}
	return nil
}

func (s *Store) ListScopes(_ context.Context, filter *scope.ListFilter) ([]*scope.Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*scope.Scope, 0, len(s.scopes))
	for _, sc := range s.scopes {
		if filter != nil {
			if filter.TenantID != "" && sc.TenantID != filter.TenantID {
				continue
			}
			if filter.Kind != "" && sc.Kind != filter.Kind {
				continue
			}
			if filter.ParentID != nil && (sc.ParentID == nil || sc.ParentID.String() != filter.ParentID.String()) {
				continue
			}
			if filter.Active != nil && sc.Active != *filter.Active {
				continue
			}
			if filter.Search != "" && !strings.Contains(strings.ToLower(sc.Name), strings.ToLower(filter.Search)) {
				continue
			}
		}
		result = append(result, copyScope(sc))
	}
	sortBySeq(result)
	return applyPagination(result, paginationOptsScope(filter)), nil
}

func (s *Store) CountScopes(ctx context.Context, filter *scope.ListFilter) (int64, error) {
	list, err := s.ListScopes(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) ListChildScopes(_ context.Context, parentID id.ScopeID) ([]*scope.Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*scope.Scope
	pid := parentID.String()
	for _, sc := range s.scopes {
		if sc.ParentID != nil && sc.ParentID.String() == pid {
			result = append(result, copyScope(sc))
		}
	}
	sortBySeq(result)
	return result, nil
}

func (s *Store) NextScopeSeq(_ context.Context, tenantID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopeSeq[tenantID]++
	return s.scopeSeq[tenantID], nil
}

func (s *Store) CreateScopeRule(_ context.Context, r *scope.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopeRules[r.ID.String()] = copyScopeRule(r)
	return nil
}

func (s *Store) GetScopeRule(_ context.Context, ruleID id.ScopeRuleID) (*scope.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.scopeRules[ruleID.String()]
	if !ok {
		return nil, nil
	}
	return copyScopeRule(r), nil
}

func (s *Store) UpdateScopeRule(_ context.Context, r *scope.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopeRules[r.ID.String()] = copyScopeRule(r)
	return nil
}

func (s *Store) DeleteScopeRule(_ context.Context, ruleID id.ScopeRuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scopeRules, ruleID.String())
	return nil
}

func (s *Store) ListScopeRules(_ context.Context, scopeID id.ScopeID) ([]*scope.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*scope.Rule
	key := scopeID.String()
	for _, r := range s.scopeRules {
		if r.ScopeID.String() == key {
			result = append(result, copyScopeRule(r))
		}
	}
	sortByPosition(result)
	return result, nil
}

func (s *Store) DeleteScopesByTenant(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, sc := range s.scopes {
		if sc.TenantID != tenantID {
			continue
		}
		delete(s.scopes, k)
		for rk, r := range s.scopeRules {
			if r.ScopeID.String() == k {
				delete(s.scopeRules, rk)
			}
		}
	}
	delete(s.scopeSeq, tenantID)
	return nil
}

// ──────────────────────────────────────────────────
// Access Rule Store
// ──────────────────────────────────────────────────

func (s *Store) CreateAccessRule(_ context.Context, r *rule.AccessRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessRules[r.ID.String()] = copyAccessRule(r)
	return nil
}

func (s *Store) GetAccessRule(_ context.Context, ruleID id.AccessRuleID) (*rule.AccessRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.accessRules[ruleID.String()]
	if !ok {
		return nil, nil
	}
	return copyAccessRule(r), nil
}

func (s *Store) UpdateAccessRule(_ context.Context, r *rule.AccessRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessRules[r.ID.String()] = copyAccessRule(r)
	return nil
}

func (s *Store) DeleteAccessRule(_ context.Context, ruleID id.AccessRuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accessRules, ruleID.String())
	return nil
}

func (s *Store) ListAccessRules(_ context.Context, filter *rule.ListFilter) ([]*rule.AccessRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*rule.AccessRule, 0, len(s.accessRules))
	for _, r := range s.accessRules {
		if filter != nil {
			if filter.TenantID != "" && r.TenantID != filter.TenantID {
				continue
			}
			if filter.ModuleCode != "" && r.ModuleCode != filter.ModuleCode {
				continue
			}
			if filter.Resource != "" && r.Resource != filter.Resource {
				continue
			}
			if filter.Active != nil && r.Active != *filter.Active {
				continue
			}
			if filter.Search != "" && !strings.Contains(strings.ToLower(r.Description), strings.ToLower(filter.Search)) {
				continue
			}
		}
		result = append(result, copyAccessRule(r))
	}
	sortRulesBySeq(result)
	return applyPagination(result, paginationOptsRule(filter)), nil
}

func (s *Store) CountAccessRules(ctx context.Context, filter *rule.ListFilter) (int64, error) {
	list, err := s.ListAccessRules(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) ListActiveAccessRules(_ context.Context, tenantID string) ([]*rule.AccessRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*rule.AccessRule
	for _, r := range s.accessRules {
		if r.TenantID == tenantID && r.Active {
			result = append(result, copyAccessRule(r))
		}
	}
	sortRulesBySeq(result)
	return result, nil
}

func (s *Store) NextAccessRuleSeq(_ context.Context, tenantID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ruleSeq[tenantID]++
	return s.ruleSeq[tenantID], nil
}

func (s *Store) DeleteAccessRulesByTenant(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, r := range s.accessRules {
		if r.TenantID == tenantID {
			delete(s.accessRules, k)
		}
	}
	delete(s.ruleSeq, tenantID)
	return nil
}

// ──────────────────────────────────────────────────
// Assignment Store
// ──────────────────────────────────────────────────

func (s *Store) CreateAssignment(_ context.Context, a *assignment.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[a.ID.String()] = copyAssignment(a)
	return nil
}

func (s *Store) GetAssignment(_ context.Context, assID id.AssignmentID) (*assignment.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[assID.String()]
	if !ok {
		return nil, nil
	}
	return copyAssignment(a), nil
}

func (s *Store) UpdateAssignment(_ context.Context, a *assignment.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[a.ID.String()] = copyAssignment(a)
	return nil
}

func (s *Store) ListAssignments(_ context.Context, filter *assignment.ListFilter) ([]*assignment.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*assignment.Assignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		if filter != nil {
			if filter.TenantID != "" && a.TenantID != filter.TenantID {
				continue
			}
			if filter.UserID != "" && a.UserID != filter.UserID {
				continue
			}
			if filter.ScopeID != nil && a.ScopeID.String() != filter.ScopeID.String() {
				continue
			}
			if filter.RoleID != nil && a.RoleID.String() != filter.RoleID.String() {
				continue
			}
			if filter.Active != nil && a.Active != *filter.Active {
				continue
			}
		}
		result = append(result, copyAssignment(a))
	}
	sortAssignments(result)
	return applyPagination(result, paginationOptsAssign(filter)), nil
}

func (s *Store) CountAssignments(ctx context.Context, filter *assignment.ListFilter) (int64, error) {
	list, err := s.ListAssignments(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) ListActiveForUser(_ context.Context, tenantID, userID string, at time.Time) ([]*assignment.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*assignment.Assignment
	for _, a := range s.assignments {
		if a.TenantID == tenantID && a.UserID == userID && a.InEffect(at) {
			result = append(result, copyAssignment(a))
		}
	}
	sortAssignments(result)
	return result, nil
}

func (s *Store) ListAllForUser(_ context.Context, tenantID, userID string) ([]*assignment.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*assignment.Assignment
	for _, a := range s.assignments {
		if a.TenantID == tenantID && a.UserID == userID {
			result = append(result, copyAssignment(a))
		}
	}
	sortAssignments(result)
	return result, nil
}

func (s *Store) ListForScope(_ context.Context, scopeID id.ScopeID) ([]*assignment.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*assignment.Assignment
	key := scopeID.String()
	for _, a := range s.assignments {
		if a.ScopeID.String() == key {
			result = append(result, copyAssignment(a))
		}
	}
	sortAssignments(result)
	return result, nil
}

func (s *Store) ListForRole(_ context.Context, roleID id.RoleID) ([]*assignment.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*assignment.Assignment
	key := roleID.String()
	for _, a := range s.assignments {
		if a.RoleID.String() == key {
			result = append(result, copyAssignment(a))
		}
	}
	sortAssignments(result)
	return result, nil
}

// ──────────────────────────────────────────────────
// Role Store
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(_ context.Context, r *role.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[r.ID.String()] = copyRole(r)
	return nil
}

func (s *Store) GetRole(_ context.Context, roleID id.RoleID) (*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[roleID.String()]
	if !ok {
		return nil, nil
	}
	return copyRole(r), nil
}

func (s *Store) GetRoleBySlug(_ context.Context, tenantID, slug string) (*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.roles {
		if r.TenantID == tenantID && r.Slug == slug {
			return copyRole(r), nil
		}
	}
	return nil, nil
}

func (s *Store) UpdateRole(_ context.Context, r *role.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[r.ID.String()] = copyRole(r)
	return nil
}

func (s *Store) DeleteRole(_ context.Context, roleID id.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, roleID.String())
	return nil
}

func (s *Store) ListRoles(_ context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*role.Role, 0, len(s.roles))
	for _, r := range s.roles {
		if filter != nil {
			if filter.TenantID != "" && r.TenantID != filter.TenantID {
				continue
			}
			if filter.ModuleFamily != "" && r.ModuleFamily != filter.ModuleFamily {
				continue
			}
			if filter.Active != nil && r.Active != *filter.Active {
				continue
			}
			if filter.IsSystem != nil && r.IsSystem != *filter.IsSystem {
				continue
			}
			if filter.Search != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(filter.Search)) {
				continue
			}
		}
		result = append(result, copyRole(r))
	}
	return applyPagination(result, paginationOptsRole(filter)), nil
}

func (s *Store) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	list, err := s.ListRoles(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) DeleteRolesByTenant(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, r := range s.roles {
		if r.TenantID == tenantID {
			delete(s.roles, k)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Module Store
// ──────────────────────────────────────────────────

func (s *Store) CreateModule(_ context.Context, m *module.Module) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules[m.ID.String()] = copyModule(m)
	return nil
}

func (s *Store) GetModule(_ context.Context, modID id.ModuleID) (*module.Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.modules[modID.String()]
	if !ok {
		return nil, nil
	}
	return copyModule(m), nil
}

func (s *Store) GetModuleByCode(_ context.Context, tenantID, code string) (*module.Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.modules {
		if m.TenantID == tenantID && m.Code == code {
			return copyModule(m), nil
		}
	}
	return nil, nil
}

func (s *Store) UpdateModule(_ context.Context, m *module.Module) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules[m.ID.String()] = copyModule(m)
	return nil
}

func (s *Store) DeleteModule(_ context.Context, modID id.ModuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.modules, modID.String())
	return nil
}

func (s *Store) ListModules(_ context.Context, filter *module.ListFilter) ([]*module.Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*module.Module, 0, len(s.modules))
	for _, m := range s.modules {
		if filter != nil {
			if filter.TenantID != "" && m.TenantID != filter.TenantID {
				continue
			}
			if filter.Search != "" && !strings.Contains(strings.ToLower(m.Name), strings.ToLower(filter.Search)) {
				continue
			}
		}
		result = append(result, copyModule(m))
	}
	return applyPagination(result, paginationOptsModule(filter)), nil
}

func (s *Store) CountModules(ctx context.Context, filter *module.ListFilter) (int64, error) {
	list, err := s.ListModules(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) DeleteModulesByTenant(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, m := range s.modules {
		if m.TenantID == tenantID {
			delete(s.modules, k)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func copyScope(sc *scope.Scope) *scope.Scope {
	c := *sc
	if sc.ParentID != nil {
		pid := *sc.ParentID
		c.ParentID = &pid
	}
	if sc.Metadata != nil {
		c.Metadata = make(map[string]any, len(sc.Metadata))
		for k, v := range sc.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func copyScopeRule(r *scope.Rule) *scope.Rule {
	c := *r
	return &c
}

func copyAccessRule(r *rule.AccessRule) *rule.AccessRule {
	c := *r
	if r.Actions != nil {
		c.Actions = make([]rule.Action, len(r.Actions))
		copy(c.Actions, r.Actions)
	}
	if r.Conditions != nil {
		c.Conditions = make([]rule.Condition, len(r.Conditions))
		copy(c.Conditions, r.Conditions)
	}
	return &c
}

func copyAssignment(a *assignment.Assignment) *assignment.Assignment {
	c := *a
	return &c
}

func copyRole(r *role.Role) *role.Role {
	c := *r
	return &c
}

func copyModule(m *module.Module) *module.Module {
	c := *m
	if m.Resources != nil {
		c.Resources = make([]module.ResourceDef, len(m.Resources))
		copy(c.Resources, m.Resources)
	}
	return &c
}

func sortBySeq(scopes []*scope.Scope) {
	sort.Slice(scopes, func(i, j int) bool { return scopes[i].Seq < scopes[j].Seq })
}

func sortByPosition(rules []*scope.Rule) {
	sort.Slice(rules, func(i, j int) bool { return rules[i].Position < rules[j].Position })
}

func sortRulesBySeq(rules []*rule.AccessRule) {
	sort.Slice(rules, func(i, j int) bool { return rules[i].Seq < rules[j].Seq })
}

func sortAssignments(assigns []*assignment.Assignment) {
	sort.Slice(assigns, func(i, j int) bool { return assigns[i].CreatedAt.Before(assigns[j].CreatedAt) })
}

// Pagination helpers.
type pagOpts struct{ limit, offset int }

func paginationOptsScope(f *scope.ListFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func paginationOptsRule(f *rule.ListFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func paginationOptsAssign(f *assignment.ListFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func paginationOptsRole(f *role.ListFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func paginationOptsModule(f *module.ListFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func applyPagination[T any](items []*T, p pagOpts) []*T {
	if p.offset > 0 && p.offset < len(items) {
		items = items[p.offset:]
	} else if p.offset > 0 {
		return nil
	}
	if p.limit > 0 && p.limit < len(items) {
		items = items[:p.limit]
	}
	return items
}
