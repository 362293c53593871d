// Package sqlite provides a SQLite implementation of the Bastion
// composite store on top of grove.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/module"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/rule"
	"github.com/xraph/bastion/scope"
	"github.com/xraph/bastion/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a SQLite implementation of the composite Bastion store.
// Lookups that find nothing return (nil, nil); the engine maps missing
// records to its own sentinel errors.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("bastion/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// ──────────────────────────────────────────────────
// Scope operations
// ──────────────────────────────────────────────────

func (s *Store) CreateScope(ctx context.Context, sc *scope.Scope) error {
	now := time.Now().UTC()
	sc.CreatedAt = now
	sc.UpdatedAt = now
	m, err := scopeToModel(sc)
	if err != nil {
		return fmt.Errorf("bastion: create scope: %w", err)
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: create scope: %w", err)
	}
	return nil
}

func (s *Store) GetScope(ctx context.Context, scopeID id.ScopeID) (*scope.Scope, error) {
	m := new(scopeModel)
	err := s.sdb.NewSelect(m).Where("id = ?", scopeID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bastion: get scope: %w", err)
	}
	sc, err := scopeFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("bastion: get scope: %w", err)
	}
	return sc, nil
}

func (s *Store) UpdateScope(ctx context.Context, sc *scope.Scope) error {
	sc.UpdatedAt = time.Now().UTC()
	m, err := scopeToModel(sc)
	if err != nil {
		return fmt.Errorf("bastion: update scope: %w", err)
	}
	if _, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("bastion: update scope: %w", err)
	}
	return nil
}

func (s *Store) DeleteScope(ctx context.Context, scopeID id.ScopeID) error {
	if _, err := s.sdb.NewDelete((*scopeRuleModel)(nil)).
		Where("scope_id = ?", scopeID.String()).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete scope rules: %w", err)
	}
	if _, err := s.sdb.NewDelete((*scopeModel)(nil)).
		Where("id = ?", scopeID.String()).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete scope: %w", err)
	}
	return nil
}

func (s *Store) ListScopes(ctx context.Context, filter *scope.ListFilter) ([]*scope.Scope, error) {
	var models []scopeModel
	q := s.sdb.NewSelect(&models).OrderExpr("seq ASC")
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.Kind != "" {
			q = q.Where("kind = ?", string(filter.Kind))
		}
		if filter.ParentID != nil {
			q = q.Where("parent_id = ?", filter.ParentID.String())
		}
		if filter.Active != nil {
			q = q.Where("active = ?", *filter.Active)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list scopes: %w", err)
	}
	result := make([]*scope.Scope, len(models))
	for i := range models {
		sc, err := scopeFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("bastion: list scopes: %w", err)
		}
		result[i] = sc
	}
	return result, nil
}

func (s *Store) CountScopes(ctx context.Context, filter *scope.ListFilter) (int64, error) {
	q := s.sdb.NewSelect((*scopeModel)(nil))
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.Kind != "" {
			q = q.Where("kind = ?", string(filter.Kind))
		}
		if filter.ParentID != nil {
			q = q.Where("parent_id = ?", filter.ParentID.String())
		}
		if filter.Active != nil {
			q = q.Where("active = ?", *filter.Active)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion: count scopes: %w", err)
	}
	return count, nil
}

func (s *Store) ListChildScopes(ctx context.Context, parentID id.ScopeID) ([]*scope.Scope, error) {
	var models []scopeModel
	err := s.sdb.NewSelect(&models).
		Where("parent_id = ?", parentID.String()).
		OrderExpr("seq ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list child scopes: %w", err)
	}
	result := make([]*scope.Scope, len(models))
	for i := range models {
		sc, err := scopeFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("bastion: list child scopes: %w", err)
		}
		result[i] = sc
	}
	return result, nil
}

func (s *Store) NextScopeSeq(ctx context.Context, tenantID string) (int, error) {
	return s.nextSeq(ctx, tenantID, "scope")
}

func (s *Store) CreateScopeRule(ctx context.Context, r *scope.Rule) error {
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	m, err := scopeRuleToModel(r)
	if err != nil {
		return fmt.Errorf("bastion: create scope rule: %w", err)
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: create scope rule: %w", err)
	}
	return nil
}

func (s *Store) GetScopeRule(ctx context.Context, ruleID id.ScopeRuleID) (*scope.Rule, error) {
	m := new(scopeRuleModel)
	err := s.sdb.NewSelect(m).Where("id = ?", ruleID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bastion: get scope rule: %w", err)
	}
	r, err := scopeRuleFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("bastion: get scope rule: %w", err)
	}
	return r, nil
}

func (s *Store) UpdateScopeRule(ctx context.Context, r *scope.Rule) error {
	r.UpdatedAt = time.Now().UTC()
	m, err := scopeRuleToModel(r)
	if err != nil {
		return fmt.Errorf("bastion: update scope rule: %w", err)
	}
	if _, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("bastion: update scope rule: %w", err)
	}
	return nil
}

func (s *Store) DeleteScopeRule(ctx context.Context, ruleID id.ScopeRuleID) error {
	_, err := s.sdb.NewDelete((*scopeRuleModel)(nil)).
		Where("id = ?", ruleID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: delete scope rule: %w", err)
	}
	return nil
}

func (s *Store) ListScopeRules(ctx context.Context, scopeID id.ScopeID) ([]*scope.Rule, error) {
	var models []scopeRuleModel
	err := s.sdb.NewSelect(&models).
		Where("scope_id = ?", scopeID.String()).
		OrderExpr("position ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list scope rules: %w", err)
	}
	result := make([]*scope.Rule, len(models))
	for i := range models {
		r, err := scopeRuleFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("bastion: list scope rules: %w", err)
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) DeleteScopesByTenant(ctx context.Context, tenantID string) error {
	var models []scopeModel
	if err := s.sdb.NewSelect(&models).Where("tenant_id = ?", tenantID).Scan(ctx); err != nil {
		return fmt.Errorf("bastion: delete tenant scopes: %w", err)
	}
	for i := range models {
		if _, err := s.sdb.NewDelete((*scopeRuleModel)(nil)).
			Where("scope_id = ?", models[i].ID).Exec(ctx); err != nil {
			return fmt.Errorf("bastion: delete tenant scope rules: %w", err)
		}
	}
	if _, err := s.sdb.NewDelete((*scopeModel)(nil)).
		Where("tenant_id = ?", tenantID).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete tenant scopes: %w", err)
	}
	if _, err := s.sdb.NewDelete((*counterModel)(nil)).
		Where("tenant_id = ?", tenantID).
		Where("name = ?", "scope").Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete tenant scope counter: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Access rule operations
// ──────────────────────────────────────────────────

func (s *Store) CreateAccessRule(ctx context.Context, r *rule.AccessRule) error {
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	m, err := accessRuleToModel(r)
	if err != nil {
		return fmt.Errorf("bastion: create access rule: %w", err)
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: create access rule: %w", err)
	}
	return nil
}

func (s *Store) GetAccessRule(ctx context.Context, ruleID id.AccessRuleID) (*rule.AccessRule, error) {
	m := new(accessRuleModel)
	err := s.sdb.NewSelect(m).Where("id = ?", ruleID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bastion: get access rule: %w", err)
	}
	r, err := accessRuleFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("bastion: get access rule: %w", err)
	}
	return r, nil
}

func (s *Store) UpdateAccessRule(ctx context.Context, r *rule.AccessRule) error {
	r.UpdatedAt = time.Now().UTC()
	m, err := accessRuleToModel(r)
	if err != nil {
		return fmt.Errorf("bastion: update access rule: %w", err)
	}
	if _, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("bastion: update access rule: %w", err)
	}
	return nil
}

func (s *Store) DeleteAccessRule(ctx context.Context, ruleID id.AccessRuleID) error {
	_, err := s.sdb.NewDelete((*accessRuleModel)(nil)).
		Where("id = ?", ruleID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: delete access rule: %w", err)
	}
	return nil
}

func (s *Store) ListAccessRules(ctx context.Context, filter *rule.ListFilter) ([]*rule.AccessRule, error) {
	var models []accessRuleModel
	q := s.sdb.NewSelect(&models).OrderExpr("seq ASC")
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.ModuleCode != "" {
			q = q.Where("module_code = ?", filter.ModuleCode)
		}
		if filter.Resource != "" {
			q = q.Where("resource = ?", filter.Resource)
		}
		if filter.Active != nil {
			q = q.Where("active = ?", *filter.Active)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(description) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list access rules: %w", err)
	}
	result := make([]*rule.AccessRule, len(models))
	for i := range models {
		r, err := accessRuleFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("bastion: list access rules: %w", err)
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) CountAccessRules(ctx context.Context, filter *rule.ListFilter) (int64, error) {
	q := s.sdb.NewSelect((*accessRuleModel)(nil))
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.ModuleCode != "" {
			q = q.Where("module_code = ?", filter.ModuleCode)
		}
		if filter.Resource != "" {
			q = q.Where("resource = ?", filter.Resource)
		}
		if filter.Active != nil {
			q = q.Where("active = ?", *filter.Active)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(description) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion: count access rules: %w", err)
	}
	return count, nil
}

func (s *Store) ListActiveAccessRules(ctx context.Context, tenantID string) ([]*rule.AccessRule, error) {
	var models []accessRuleModel
	err := s.sdb.NewSelect(&models).
		Where("tenant_id = ?", tenantID).
		Where("active = ?", true).
		OrderExpr("seq ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list active access rules: %w", err)
	}
	result := make([]*rule.AccessRule, len(models))
	for i := range models {
		r, err := accessRuleFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("bastion: list active access rules: %w", err)
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) NextAccessRuleSeq(ctx context.Context, tenantID string) (int, error) {
	return s.nextSeq(ctx, tenantID, "access_rule")
}

func (s *Store) DeleteAccessRulesByTenant(ctx context.Context, tenantID string) error {
	if _, err := s.sdb.NewDelete((*accessRuleModel)(nil)).
		Where("tenant_id = ?", tenantID).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete tenant access rules: %w", err)
	}
	if _, err := s.sdb.NewDelete((*counterModel)(nil)).
		Where("tenant_id = ?", tenantID).
		Where("name = ?", "access_rule").Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete tenant access rule counter: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Assignment operations
// ──────────────────────────────────────────────────

func (s *Store) CreateAssignment(ctx context.Context, a *assignment.Assignment) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	m := assignmentToModel(a)
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: create assignment: %w", err)
	}
	return nil
}

func (s *Store) GetAssignment(ctx context.Context, assID id.AssignmentID) (*assignment.Assignment, error) {
	m := new(assignmentModel)
	err := s.sdb.NewSelect(m).Where("id = ?", assID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bastion: get assignment: %w", err)
	}
	return assignmentFromModel(m), nil
}

func (s *Store) UpdateAssignment(ctx context.Context, a *assignment.Assignment) error {
	a.UpdatedAt = time.Now().UTC()
	m := assignmentToModel(a)
	if _, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("bastion: update assignment: %w", err)
	}
	return nil
}

func (s *Store) ListAssignments(ctx context.Context, filter *assignment.ListFilter) ([]*assignment.Assignment, error) {
	var models []assignmentModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at ASC")
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.ScopeID != nil {
			q = q.Where("scope_id = ?", filter.ScopeID.String())
		}
		if filter.RoleID != nil {
			q = q.Where("role_id = ?", filter.RoleID.String())
		}
		if filter.Active != nil {
			q = q.Where("active = ?", *filter.Active)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list assignments: %w", err)
	}
	result := make([]*assignment.Assignment, len(models))
	for i := range models {
		result[i] = assignmentFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountAssignments(ctx context.Context, filter *assignment.ListFilter) (int64, error) {
	q := s.sdb.NewSelect((*assignmentModel)(nil))
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.ScopeID != nil {
			q = q.Where("scope_id = ?", filter.ScopeID.String())
		}
		if filter.RoleID != nil {
			q = q.Where("role_id = ?", filter.RoleID.String())
		}
		if filter.Active != nil {
			q = q.Where("active = ?", *filter.Active)
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion: count assignments: %w", err)
	}
	return count, nil
}

func (s *Store) ListActiveForUser(ctx context.Context, tenantID, userID string, at time.Time) ([]*assignment.Assignment, error) {
	var models []assignmentModel
	err := s.sdb.NewSelect(&models).
		Where("tenant_id = ?", tenantID).
		Where("user_id = ?", userID).
		Where("active = ?", true).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list active assignments: %w", err)
	}
	// Effective windows are checked in Go; SQLite stores times as text.
	var result []*assignment.Assignment
	for i := range models {
		a := assignmentFromModel(&models[i])
		if a.InEffect(at) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (s *Store) ListAllForUser(ctx context.Context, tenantID, userID string) ([]*assignment.Assignment, error) {
	var models []assignmentModel
	err := s.sdb.NewSelect(&models).
		Where("tenant_id = ?", tenantID).
		Where("user_id = ?", userID).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list user assignments: %w", err)
	}
	result := make([]*assignment.Assignment, len(models))
	for i := range models {
		result[i] = assignmentFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListForScope(ctx context.Context, scopeID id.ScopeID) ([]*assignment.Assignment, error) {
	var models []assignmentModel
	err := s.sdb.NewSelect(&models).
		Where("scope_id = ?", scopeID.String()).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list scope assignments: %w", err)
	}
	result := make([]*assignment.Assignment, len(models))
	for i := range models {
		result[i] = assignmentFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListForRole(ctx context.Context, roleID id.RoleID) ([]*assignment.Assignment, error) {
	var models []assignmentModel
	err := s.sdb.NewSelect(&models).
		Where("role_id = ?", roleID.String()).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list role assignments: %w", err)
	}
	result := make([]*assignment.Assignment, len(models))
	for i := range models {
		result[i] = assignmentFromModel(&models[i])
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Role operations
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(ctx context.Context, r *role.Role) error {
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	m, err := roleToModel(r)
	if err != nil {
		return fmt.Errorf("bastion: create role: %w", err)
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: create role: %w", err)
	}
	return nil
}

func (s *Store) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	m := new(roleModel)
	err := s.sdb.NewSelect(m).Where("id = ?", roleID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bastion: get role: %w", err)
	}
	r, err := roleFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("bastion: get role: %w", err)
	}
	return r, nil
}

func (s *Store) GetRoleBySlug(ctx context.Context, tenantID, slug string) (*role.Role, error) {
	m := new(roleModel)
	err := s.sdb.NewSelect(m).
		Where("tenant_id = ?", tenantID).
		Where("slug = ?", slug).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bastion: get role by slug: %w", err)
	}
	r, err := roleFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("bastion: get role by slug: %w", err)
	}
	return r, nil
}

func (s *Store) UpdateRole(ctx context.Context, r *role.Role) error {
	r.UpdatedAt = time.Now().UTC()
	m, err := roleToModel(r)
	if err != nil {
		return fmt.Errorf("bastion: update role: %w", err)
	}
	if _, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("bastion: update role: %w", err)
	}
	return nil
}

func (s *Store) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	_, err := s.sdb.NewDelete((*roleModel)(nil)).
		Where("id = ?", roleID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: delete role: %w", err)
	}
	return nil
}

func (s *Store) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	var models []roleModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at ASC")
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.ModuleFamily != "" {
			q = q.Where("module_family = ?", filter.ModuleFamily)
		}
		if filter.Active != nil {
			q = q.Where("active = ?", *filter.Active)
		}
		if filter.IsSystem != nil {
			q = q.Where("is_system = ?", *filter.IsSystem)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list roles: %w", err)
	}
	result := make([]*role.Role, len(models))
	for i := range models {
		r, err := roleFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("bastion: list roles: %w", err)
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	q := s.sdb.NewSelect((*roleModel)(nil))
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.ModuleFamily != "" {
			q = q.Where("module_family = ?", filter.ModuleFamily)
		}
		if filter.Active != nil {
			q = q.Where("active = ?", *filter.Active)
		}
		if filter.IsSystem != nil {
			q = q.Where("is_system = ?", *filter.IsSystem)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion: count roles: %w", err)
	}
	return count, nil
}

func (s *Store) DeleteRolesByTenant(ctx context.Context, tenantID string) error {
	_, err := s.sdb.NewDelete((*roleModel)(nil)).
		Where("tenant_id = ?", tenantID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: delete tenant roles: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Module operations
// ──────────────────────────────────────────────────

func (s *Store) CreateModule(ctx context.Context, mod *module.Module) error {
	now := time.Now().UTC()
	mod.CreatedAt = now
	mod.UpdatedAt = now
	m, err := moduleToModel(mod)
	if err != nil {
		return fmt.Errorf("bastion: create module: %w", err)
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: create module: %w", err)
	}
	return nil
}

func (s *Store) GetModule(ctx context.Context, modID id.ModuleID) (*module.Module, error) {
	m := new(moduleModel)
	err := s.sdb.NewSelect(m).Where("id = ?", modID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bastion: get module: %w", err)
	}
	mod, err := moduleFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("bastion: get module: %w", err)
	}
	return mod, nil
}

func (s *Store) GetModuleByCode(ctx context.Context, tenantID, code string) (*module.Module, error) {
	m := new(moduleModel)
	err := s.sdb.NewSelect(m).
		Where("tenant_id = ?", tenantID).
		Where("code = ?", code).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bastion: get module by code: %w", err)
	}
	mod, err := moduleFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("bastion: get module by code: %w", err)
	}
	return mod, nil
}

func (s *Store) UpdateModule(ctx context.Context, mod *module.Module) error {
	mod.UpdatedAt = time.Now().UTC()
	m, err := moduleToModel(mod)
	if err != nil {
		return fmt.Errorf("bastion: update module: %w", err)
	}
	if _, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("bastion: update module: %w", err)
	}
	return nil
}

func (s *Store) DeleteModule(ctx context.Context, modID id.ModuleID) error {
	_, err := s.sdb.NewDelete((*moduleModel)(nil)).
		Where("id = ?", modID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: delete module: %w", err)
	}
	return nil
}

func (s *Store) ListModules(ctx context.Context, filter *module.ListFilter) ([]*module.Module, error) {
	var models []moduleModel
	q := s.sdb.NewSelect(&models).OrderExpr("code ASC")
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list modules: %w", err)
	}
	result := make([]*module.Module, len(models))
	for i := range models {
		mod, err := moduleFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("bastion: list modules: %w", err)
		}
		result[i] = mod
	}
	return result, nil
}

func (s *Store) CountModules(ctx context.Context, filter *module.ListFilter) (int64, error) {
	q := s.sdb.NewSelect((*moduleModel)(nil))
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion: count modules: %w", err)
	}
	return count, nil
}

func (s *Store) DeleteModulesByTenant(ctx context.Context, tenantID string) error {
	_, err := s.sdb.NewDelete((*moduleModel)(nil)).
		Where("tenant_id = ?", tenantID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: delete tenant modules: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Snapshot
// ──────────────────────────────────────────────────

// Snapshot loads the tenant's full policy state. The engine serializes
// writes per tenant, so the component queries observe a stable state.
func (s *Store) Snapshot(ctx context.Context, tenantID string) (*store.Snapshot, error) {
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

	scopes, err := s.ListScopes(ctx, &scope.ListFilter{TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	for _, sc := range scopes {
		snap.Scopes[sc.ID.String()] = sc
		rules, err := s.ListScopeRules(ctx, sc.ID)
		if err != nil {
			return nil, err
		}
		for _, r := range rules {
			snap.ScopeRules[r.ID.String()] = r
		}
	}

	accessRules, err := s.ListAccessRules(ctx, &rule.ListFilter{TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	for _, r := range accessRules {
		snap.AccessRules[r.ID.String()] = r
	}

	assignments, err := s.ListAssignments(ctx, &assignment.ListFilter{TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	for _, a := range assignments {
		snap.Assignments[a.ID.String()] = a
	}

	roles, err := s.ListRoles(ctx, &role.ListFilter{TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	for _, r := range roles {
		snap.Roles[r.ID.String()] = r
	}

	modules, err := s.ListModules(ctx, &module.ListFilter{TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	for _, m := range modules {
		snap.Modules[m.ID.String()] = m
	}

	return snap, nil
}

// ──────────────────────────────────────────────────
// Sequence counters
// ──────────────────────────────────────────────────

// nextSeq increments and returns the named per-tenant counter. The engine
// serializes writes per tenant, so read-modify-write is safe here.
func (s *Store) nextSeq(ctx context.Context, tenantID, name string) (int, error) {
	m := new(counterModel)
	err := s.sdb.NewSelect(m).
		Where("tenant_id = ?", tenantID).
		Where("name = ?", name).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			m = &counterModel{TenantID: tenantID, Name: name, Value: 1}
			if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
				return 0, fmt.Errorf("bastion: init %s counter: %w", name, err)
			}
			return 1, nil
		}
		return 0, fmt.Errorf("bastion: read %s counter: %w", name, err)
	}
	m.Value++
	if _, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx); err != nil {
		return 0, fmt.Errorf("bastion: advance %s counter: %w", name, err)
	}
	return m.Value, nil
}
