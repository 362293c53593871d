// Package mongo provides a MongoDB implementation of the Bastion composite
// store backed by the Grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/module"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/rule"
	"github.com/xraph/bastion/scope"
	"github.com/xraph/bastion/store"
)

// Collection name constants.
const (
	colScopes      = "bastion_scopes"
	colScopeRules  = "bastion_scope_rules"
	colAccessRules = "bastion_access_rules"
	colAssignments = "bastion_assignments"
	colRoles       = "bastion_roles"
	colModules     = "bastion_modules"
	colCounters    = "bastion_counters"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a MongoDB implementation of the composite Bastion store.
// Lookups that find nothing return (nil, nil); the engine maps missing
// records to its own sentinel errors.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Migrate creates indexes for all bastion collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()
	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("bastion/mongo: migrate %s indexes: %w", col, err)
		}
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

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all bastion collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colScopes: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}}},
			{Keys: bson.D{{Key: "parent_id", Value: 1}}},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "kind", Value: 1}}},
		},
		colScopeRules: {
			{Keys: bson.D{{Key: "scope_id", Value: 1}, {Key: "position", Value: 1}}},
			{Keys: bson.D{{Key: "module_code", Value: 1}, {Key: "resource", Value: 1}}},
		},
		colAccessRules: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}}},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "active", Value: 1}, {Key: "priority", Value: 1}, {Key: "seq", Value: 1}}},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "module_code", Value: 1}, {Key: "resource", Value: 1}}},
		},
		colAssignments: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "user_id", Value: 1}, {Key: "active", Value: 1}}},
			{Keys: bson.D{{Key: "scope_id", Value: 1}}},
			{Keys: bson.D{{Key: "role_id", Value: 1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}},
		},
		colRoles: {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "slug", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}}},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "module_family", Value: 1}}},
		},
		colModules: {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "code", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}}},
		},
		colCounters: {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
}

// ──────────────────────────────────────────────────
// Scope operations
// ──────────────────────────────────────────────────

func (s *Store) CreateScope(ctx context.Context, sc *scope.Scope) error {
	t := now()
	sc.CreatedAt = t
	sc.UpdatedAt = t
	m := scopeToModel(sc)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: create scope: %w", err)
	}
	return nil
}

func (s *Store) GetScope(ctx context.Context, scopeID id.ScopeID) (*scope.Scope, error) {
	var m scopeModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": scopeID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bastion: get scope: %w", err)
	}
	return scopeFromModel(&m), nil
}

func (s *Store) UpdateScope(ctx context.Context, sc *scope.Scope) error {
	sc.UpdatedAt = now()
	m := scopeToModel(sc)
	if _, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx); err != nil {
		return fmt.Errorf("bastion: update scope: %w", err)
	}
	return nil
}

func (s *Store) DeleteScope(ctx context.Context, scopeID id.ScopeID) error {
	if _, err := s.mdb.NewDelete((*scopeRuleModel)(nil)).
		Many().
		Filter(bson.M{"scope_id": scopeID.String()}).
		Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete scope rules: %w", err)
	}
	if _, err := s.mdb.NewDelete((*scopeModel)(nil)).
		Filter(bson.M{"_id": scopeID.String()}).
		Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete scope: %w", err)
	}
	return nil
}

func scopeFilter(filter *scope.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.TenantID != "" {
		f["tenant_id"] = filter.TenantID
	}
	if filter.Kind != "" {
		f["kind"] = string(filter.Kind)
	}
	if filter.ParentID != nil {
		f["parent_id"] = filter.ParentID.String()
	}
	if filter.Active != nil {
		f["active"] = *filter.Active
	}
	if filter.Search != "" {
		f["name"] = bson.M{"$regex": filter.Search, "$options": "i"}
	}
	return f
}

func (s *Store) ListScopes(ctx context.Context, filter *scope.ListFilter) ([]*scope.Scope, error) {
	var models []scopeModel
	q := s.mdb.NewFind(&models).
		Filter(scopeFilter(filter)).
		Sort(bson.D{{Key: "seq", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list scopes: %w", err)
	}
	result := make([]*scope.Scope, len(models))
	for i := range models {
		result[i] = scopeFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountScopes(ctx context.Context, filter *scope.ListFilter) (int64, error) {
	count, err := s.mdb.NewFind((*scopeModel)(nil)).
		Filter(scopeFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion: count scopes: %w", err)
	}
	return count, nil
}

func (s *Store) ListChildScopes(ctx context.Context, parentID id.ScopeID) ([]*scope.Scope, error) {
	var models []scopeModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"parent_id": parentID.String()}).
		Sort(bson.D{{Key: "seq", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list child scopes: %w", err)
	}
	result := make([]*scope.Scope, len(models))
	for i := range models {
		result[i] = scopeFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) NextScopeSeq(ctx context.Context, tenantID string) (int, error) {
	return s.nextSeq(ctx, tenantID, "scope")
}

func (s *Store) DeleteScopesByTenant(ctx context.Context, tenantID string) error {
	scopes, err := s.ListScopes(ctx, &scope.ListFilter{TenantID: tenantID})
	if err != nil {
		return err
	}
	scopeIDs := make([]string, len(scopes))
	for i, sc := range scopes {
		scopeIDs[i] = sc.ID.String()
	}
	if len(scopeIDs) > 0 {
		if _, err := s.mdb.NewDelete((*scopeRuleModel)(nil)).
			Many().
			Filter(bson.M{"scope_id": bson.M{"$in": scopeIDs}}).
			Exec(ctx); err != nil {
			return fmt.Errorf("bastion: delete scope rules by tenant: %w", err)
		}
	}
	if _, err := s.mdb.NewDelete((*scopeModel)(nil)).
		Many().
		Filter(bson.M{"tenant_id": tenantID}).
		Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete scopes by tenant: %w", err)
	}
	return s.resetSeq(ctx, tenantID, "scope")
}

// ──────────────────────────────────────────────────
// Scope rule operations
// ──────────────────────────────────────────────────

func (s *Store) CreateScopeRule(ctx context.Context, r *scope.Rule) error {
	t := now()
	r.CreatedAt = t
	r.UpdatedAt = t
	m := scopeRuleToModel(r)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: create scope rule: %w", err)
	}
	return nil
}

func (s *Store) GetScopeRule(ctx context.Context, ruleID id.ScopeRuleID) (*scope.Rule, error) {
	var m scopeRuleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": ruleID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bastion: get scope rule: %w", err)
	}
	return scopeRuleFromModel(&m), nil
}

func (s *Store) UpdateScopeRule(ctx context.Context, r *scope.Rule) error {
	r.UpdatedAt = now()
	m := scopeRuleToModel(r)
	if _, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx); err != nil {
		return fmt.Errorf("bastion: update scope rule: %w", err)
	}
	return nil
}

func (s *Store) DeleteScopeRule(ctx context.Context, ruleID id.ScopeRuleID) error {
	if _, err := s.mdb.NewDelete((*scopeRuleModel)(nil)).
		Filter(bson.M{"_id": ruleID.String()}).
		Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete scope rule: %w", err)
	}
	return nil
}

func (s *Store) ListScopeRules(ctx context.Context, scopeID id.ScopeID) ([]*scope.Rule, error) {
	var models []scopeRuleModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"scope_id": scopeID.String()}).
		Sort(bson.D{{Key: "position", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list scope rules: %w", err)
	}
	result := make([]*scope.Rule, len(models))
	for i := range models {
		result[i] = scopeRuleFromModel(&models[i])
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Access rule operations
// ──────────────────────────────────────────────────

func (s *Store) CreateAccessRule(ctx context.Context, r *rule.AccessRule) error {
	t := now()
	r.CreatedAt = t
	r.UpdatedAt = t
	m := accessRuleToModel(r)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: create access rule: %w", err)
	}
	return nil
}

func (s *Store) GetAccessRule(ctx context.Context, ruleID id.AccessRuleID) (*rule.AccessRule, error) {
	var m accessRuleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": ruleID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bastion: get access rule: %w", err)
	}
	return accessRuleFromModel(&m), nil
}

func (s *Store) UpdateAccessRule(ctx context.Context, r *rule.AccessRule) error {
	r.UpdatedAt = now()
	m := accessRuleToModel(r)
	if _, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx); err != nil {
		return fmt.Errorf("bastion: update access rule: %w", err)
	}
	return nil
}

func (s *Store) DeleteAccessRule(ctx context.Context, ruleID id.AccessRuleID) error {
	if _, err := s.mdb.NewDelete((*accessRuleModel)(nil)).
		Filter(bson.M{"_id": ruleID.String()}).
		Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete access rule: %w", err)
	}
	return nil
}

func accessRuleFilter(filter *rule.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.TenantID != "" {
		f["tenant_id"] = filter.TenantID
	}
	if filter.ModuleCode != "" {
		f["module_code"] = filter.ModuleCode
	}
	if filter.Resource != "" {
		f["resource"] = filter.Resource
	}
	if filter.Active != nil {
		f["active"] = *filter.Active
	}
	if filter.Search != "" {
		f["description"] = bson.M{"$regex": filter.Search, "$options": "i"}
	}
	return f
}

func (s *Store) ListAccessRules(ctx context.Context, filter *rule.ListFilter) ([]*rule.AccessRule, error) {
	var models []accessRuleModel
	q := s.mdb.NewFind(&models).
		Filter(accessRuleFilter(filter)).
		Sort(bson.D{{Key: "seq", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list access rules: %w", err)
	}
	result := make([]*rule.AccessRule, len(models))
	for i := range models {
		result[i] = accessRuleFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountAccessRules(ctx context.Context, filter *rule.ListFilter) (int64, error) {
	count, err := s.mdb.NewFind((*accessRuleModel)(nil)).
		Filter(accessRuleFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion: count access rules: %w", err)
	}
	return count, nil
}

func (s *Store) ListActiveAccessRules(ctx context.Context, tenantID string) ([]*rule.AccessRule, error) {
	var models []accessRuleModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"tenant_id": tenantID, "active": true}).
		Sort(bson.D{{Key: "seq", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list active access rules: %w", err)
	}
	result := make([]*rule.AccessRule, len(models))
	for i := range models {
		result[i] = accessRuleFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) NextAccessRuleSeq(ctx context.Context, tenantID string) (int, error) {
	return s.nextSeq(ctx, tenantID, "access_rule")
}

func (s *Store) DeleteAccessRulesByTenant(ctx context.Context, tenantID string) error {
	if _, err := s.mdb.NewDelete((*accessRuleModel)(nil)).
		Many().
		Filter(bson.M{"tenant_id": tenantID}).
		Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete access rules by tenant: %w", err)
	}
	return s.resetSeq(ctx, tenantID, "access_rule")
}

// ──────────────────────────────────────────────────
// Assignment operations
// ──────────────────────────────────────────────────

func (s *Store) CreateAssignment(ctx context.Context, a *assignment.Assignment) error {
	t := now()
	a.CreatedAt = t
	a.UpdatedAt = t
	m := assignmentToModel(a)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: create assignment: %w", err)
	}
	return nil
}

func (s *Store) GetAssignment(ctx context.Context, assID id.AssignmentID) (*assignment.Assignment, error) {
	var m assignmentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": assID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bastion: get assignment: %w", err)
	}
	return assignmentFromModel(&m), nil
}

func (s *Store) UpdateAssignment(ctx context.Context, a *assignment.Assignment) error {
	a.UpdatedAt = now()
	m := assignmentToModel(a)
	if _, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx); err != nil {
		return fmt.Errorf("bastion: update assignment: %w", err)
	}
	return nil
}

func assignmentFilter(filter *assignment.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.TenantID != "" {
		f["tenant_id"] = filter.TenantID
	}
	if filter.UserID != "" {
		f["user_id"] = filter.UserID
	}
	if filter.ScopeID != nil {
		f["scope_id"] = filter.ScopeID.String()
	}
	if filter.RoleID != nil {
		f["role_id"] = filter.RoleID.String()
	}
	if filter.Active != nil {
		f["active"] = *filter.Active
	}
	return f
}

func (s *Store) ListAssignments(ctx context.Context, filter *assignment.ListFilter) ([]*assignment.Assignment, error) {
	var models []assignmentModel
	q := s.mdb.NewFind(&models).
		Filter(assignmentFilter(filter)).
		Sort(bson.D{{Key: "created_at", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	count, err := s.mdb.NewFind((*assignmentModel)(nil)).
		Filter(assignmentFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion: count assignments: %w", err)
	}
	return count, nil
}

func (s *Store) ListActiveForUser(ctx context.Context, tenantID, userID string, at time.Time) ([]*assignment.Assignment, error) {
	var models []assignmentModel
	f := bson.M{
		"tenant_id": tenantID,
		"user_id":   userID,
		"active":    true,
		"$and": []bson.M{
			{"$or": []bson.M{{"effective_at": nil}, {"effective_at": bson.M{"$lte": at}}}},
			{"$or": []bson.M{{"expires_at": nil}, {"expires_at": bson.M{"$gt": at}}}},
		},
	}
	if err := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "created_at", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list active assignments: %w", err)
	}
	result := make([]*assignment.Assignment, len(models))
	for i := range models {
		result[i] = assignmentFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListAllForUser(ctx context.Context, tenantID, userID string) ([]*assignment.Assignment, error) {
	var models []assignmentModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"tenant_id": tenantID, "user_id": userID}).
		Sort(bson.D{{Key: "created_at", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list all assignments: %w", err)
	}
	result := make([]*assignment.Assignment, len(models))
	for i := range models {
		result[i] = assignmentFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListForScope(ctx context.Context, scopeID id.ScopeID) ([]*assignment.Assignment, error) {
	var models []assignmentModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"scope_id": scopeID.String()}).
		Sort(bson.D{{Key: "created_at", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list assignments for scope: %w", err)
	}
	result := make([]*assignment.Assignment, len(models))
	for i := range models {
		result[i] = assignmentFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListForRole(ctx context.Context, roleID id.RoleID) ([]*assignment.Assignment, error) {
	var models []assignmentModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"role_id": roleID.String()}).
		Sort(bson.D{{Key: "created_at", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list assignments for role: %w", err)
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
	t := now()
	r.CreatedAt = t
	r.UpdatedAt = t
	m := roleToModel(r)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("bastion: create role: slug %q already exists", r.Slug)
		}
		return fmt.Errorf("bastion: create role: %w", err)
	}
	return nil
}

func (s *Store) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	var m roleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": roleID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bastion: get role: %w", err)
	}
	return roleFromModel(&m), nil
}

func (s *Store) GetRoleBySlug(ctx context.Context, tenantID, slug string) (*role.Role, error) {
	var m roleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"tenant_id": tenantID, "slug": slug}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bastion: get role by slug: %w", err)
	}
	return roleFromModel(&m), nil
}

func (s *Store) UpdateRole(ctx context.Context, r *role.Role) error {
	r.UpdatedAt = now()
	m := roleToModel(r)
	if _, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx); err != nil {
		return fmt.Errorf("bastion: update role: %w", err)
	}
	return nil
}

func (s *Store) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	if _, err := s.mdb.NewDelete((*roleModel)(nil)).
		Filter(bson.M{"_id": roleID.String()}).
		Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete role: %w", err)
	}
	return nil
}

func roleFilter(filter *role.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.TenantID != "" {
		f["tenant_id"] = filter.TenantID
	}
	if filter.ModuleFamily != "" {
		f["module_family"] = filter.ModuleFamily
	}
	if filter.Active != nil {
		f["active"] = *filter.Active
	}
	if filter.IsSystem != nil {
		f["is_system"] = *filter.IsSystem
	}
	if filter.Search != "" {
		f["name"] = bson.M{"$regex": filter.Search, "$options": "i"}
	}
	return f
}

func (s *Store) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	var models []roleModel
	q := s.mdb.NewFind(&models).
		Filter(roleFilter(filter)).
		Sort(bson.D{{Key: "created_at", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list roles: %w", err)
	}
	result := make([]*role.Role, len(models))
	for i := range models {
		result[i] = roleFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	count, err := s.mdb.NewFind((*roleModel)(nil)).
		Filter(roleFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion: count roles: %w", err)
	}
	return count, nil
}

func (s *Store) DeleteRolesByTenant(ctx context.Context, tenantID string) error {
	if _, err := s.mdb.NewDelete((*roleModel)(nil)).
		Many().
		Filter(bson.M{"tenant_id": tenantID}).
		Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete roles by tenant: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Module catalog operations
// ──────────────────────────────────────────────────

func (s *Store) CreateModule(ctx context.Context, md *module.Module) error {
	t := now()
	md.CreatedAt = t
	md.UpdatedAt = t
	m := moduleToModel(md)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("bastion: create module: code %q already exists", md.Code)
		}
		return fmt.Errorf("bastion: create module: %w", err)
	}
	return nil
}

func (s *Store) GetModule(ctx context.Context, modID id.ModuleID) (*module.Module, error) {
	var m moduleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": modID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bastion: get module: %w", err)
	}
	return moduleFromModel(&m), nil
}

func (s *Store) GetModuleByCode(ctx context.Context, tenantID, code string) (*module.Module, error) {
	var m moduleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"tenant_id": tenantID, "code": code}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bastion: get module by code: %w", err)
	}
	return moduleFromModel(&m), nil
}

func (s *Store) UpdateModule(ctx context.Context, md *module.Module) error {
	md.UpdatedAt = now()
	m := moduleToModel(md)
	if _, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx); err != nil {
		return fmt.Errorf("bastion: update module: %w", err)
	}
	return nil
}

func (s *Store) DeleteModule(ctx context.Context, modID id.ModuleID) error {
	if _, err := s.mdb.NewDelete((*moduleModel)(nil)).
		Filter(bson.M{"_id": modID.String()}).
		Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete module: %w", err)
	}
	return nil
}

func moduleFilter(filter *module.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.TenantID != "" {
		f["tenant_id"] = filter.TenantID
	}
	if filter.Search != "" {
		f["name"] = bson.M{"$regex": filter.Search, "$options": "i"}
	}
	return f
}

func (s *Store) ListModules(ctx context.Context, filter *module.ListFilter) ([]*module.Module, error) {
	var models []moduleModel
	q := s.mdb.NewFind(&models).
		Filter(moduleFilter(filter)).
		Sort(bson.D{{Key: "code", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list modules: %w", err)
	}
	result := make([]*module.Module, len(models))
	for i := range models {
		result[i] = moduleFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountModules(ctx context.Context, filter *module.ListFilter) (int64, error) {
	count, err := s.mdb.NewFind((*moduleModel)(nil)).
		Filter(moduleFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion: count modules: %w", err)
	}
	return count, nil
}

func (s *Store) DeleteModulesByTenant(ctx context.Context, tenantID string) error {
	if _, err := s.mdb.NewDelete((*moduleModel)(nil)).
		Many().
		Filter(bson.M{"tenant_id": tenantID}).
		Exec(ctx); err != nil {
		return fmt.Errorf("bastion: delete modules by tenant: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Snapshot and counters
// ──────────────────────────────────────────────────

// Snapshot loads the tenant's full policy state. The engine serializes
// writes per tenant, so the component queries observe a stable state.
func (s *Store) Snapshot(ctx context.Context, tenantID string) (*store.Snapshot, error) {
	snap := &store.Snapshot{
		TenantID:    tenantID,
		TakenAt:     now(),
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
	scopeIDs := make([]string, len(scopes))
	for i, sc := range scopes {
		snap.Scopes[sc.ID.String()] = sc
		scopeIDs[i] = sc.ID.String()
	}

	if len(scopeIDs) > 0 {
		var ruleModels []scopeRuleModel
		if err := s.mdb.NewFind(&ruleModels).
			Filter(bson.M{"scope_id": bson.M{"$in": scopeIDs}}).
			Scan(ctx); err != nil {
			return nil, fmt.Errorf("bastion: snapshot scope rules: %w", err)
		}
		for i := range ruleModels {
			r := scopeRuleFromModel(&ruleModels[i])
			snap.ScopeRules[r.ID.String()] = r
		}
	}

	rules, err := s.ListAccessRules(ctx, &rule.ListFilter{TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	for _, r := range rules {
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

// nextSeq atomically increments and returns the named per-tenant counter.
func (s *Store) nextSeq(ctx context.Context, tenantID, name string) (int, error) {
	var doc struct {
		Value int `bson:"value"`
	}
	err := s.mdb.Collection(colCounters).FindOneAndUpdate(ctx,
		bson.M{"tenant_id": tenantID, "name": name},
		bson.M{"$inc": bson.M{"value": 1}},
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("bastion: next %s seq: %w", name, err)
	}
	return doc.Value, nil
}

// resetSeq removes the named per-tenant counter.
func (s *Store) resetSeq(ctx context.Context, tenantID, name string) error {
	_, err := s.mdb.Collection(colCounters).DeleteOne(ctx,
		bson.M{"tenant_id": tenantID, "name": name})
	if err != nil {
		return fmt.Errorf("bastion: reset %s seq: %w", name, err)
	}
	return nil
}
