package memory

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/module"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/rule"
	"github.com/xraph/bastion/scope"
	"github.com/xraph/bastion/store"
)

// Compile-time check that *Store implements store.Store.
var _ store.Store = (*Store)(nil)

func TestScopeCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	sc := &scope.Scope{
		ID:       id.NewScopeID(),
		TenantID: "t1",
		Name:     "Sales",
		Kind:     scope.KindDepartment,
		Active:   true,
		Seq:      1,
	}

	// Create
	if err := s.CreateScope(ctx, sc); err != nil {
		t.Fatal(err)
	}

	// Get
	got, err := s.GetScope(ctx, sc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Sales" {
		t.Fatalf("expected Sales, got %s", got.Name)
	}

	// Missing records return (nil, nil).
	got, err = s.GetScope(ctx, id.NewScopeID())
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected nil for missing scope")
	}

	// Update
	sc.Name = "Sales EMEA"
	if err := s.UpdateScope(ctx, sc); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetScope(ctx, sc.ID)
	if got.Name != "Sales EMEA" {
		t.Fatal("update failed")
	}

	// List
	list, _ := s.ListScopes(ctx, &scope.ListFilter{TenantID: "t1"})
	if len(list) != 1 {
		t.Fatalf("expected 1 scope, got %d", len(list))
	}

	// Count
	count, _ := s.CountScopes(ctx, &scope.ListFilter{TenantID: "t1"})
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}

	// Delete
	if err := s.DeleteScope(ctx, sc.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetScope(ctx, sc.ID)
	if got != nil {
		t.Fatal("expected nil after delete")
	}
}

func TestScopeChildrenAndSeq(t *testing.T) {
	ctx := context.Background()
	s := New()

	seq1, _ := s.NextScopeSeq(ctx, "t1")
	seq2, _ := s.NextScopeSeq(ctx, "t1")
	if seq1 != 1 || seq2 != 2 {
		t.Fatalf("expected seq 1,2 got %d,%d", seq1, seq2)
	}
	other, _ := s.NextScopeSeq(ctx, "t2")
	if other != 1 {
		t.Fatalf("seq counters must be per tenant, got %d", other)
	}

	parent := &scope.Scope{ID: id.NewScopeID(), TenantID: "t1", Name: "Company", Kind: scope.KindCompany, Active: true, Seq: seq1}
	child := &scope.Scope{ID: id.NewScopeID(), TenantID: "t1", Name: "Engineering", Kind: scope.KindDepartment, ParentID: &parent.ID, Active: true, Seq: seq2}
	if err := s.CreateScope(ctx, parent); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateScope(ctx, child); err != nil {
		t.Fatal(err)
	}

	kids, err := s.ListChildScopes(ctx, parent.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(kids) != 1 || kids[0].ID != child.ID {
		t.Fatalf("expected 1 child, got %d", len(kids))
	}
}

func TestScopeRuleLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	sc := &scope.Scope{ID: id.NewScopeID(), TenantID: "t1", Name: "Support", Kind: scope.KindDepartment, Active: true}
	if err := s.CreateScope(ctx, sc); err != nil {
		t.Fatal(err)
	}

	r1 := &scope.Rule{ID: id.NewScopeRuleID(), ScopeID: sc.ID, ModuleCode: "crm", Resource: "ticket", FilterKind: scope.FilterDepartment, FilterValue: "support", Active: true, Position: 1}
	r0 := &scope.Rule{ID: id.NewScopeRuleID(), ScopeID: sc.ID, ModuleCode: "crm", Resource: "*", FilterKind: scope.FilterOwner, Active: true, Position: 0}
	if err := s.CreateScopeRule(ctx, r1); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateScopeRule(ctx, r0); err != nil {
		t.Fatal(err)
	}

	rules, err := s.ListScopeRules(ctx, sc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].ID != r0.ID || rules[1].ID != r1.ID {
		t.Fatal("rules not ordered by position")
	}

	r1.FilterValue = "support-emea"
	if err := s.UpdateScopeRule(ctx, r1); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetScopeRule(ctx, r1.ID)
	if got.FilterValue != "support-emea" {
		t.Fatal("scope rule update failed")
	}

	if err := s.DeleteScopeRule(ctx, r0.ID); err != nil {
		t.Fatal(err)
	}
	rules, _ = s.ListScopeRules(ctx, sc.ID)
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule after delete, got %d", len(rules))
	}

	// Deleting the scope removes its remaining rules.
	if err := s.DeleteScope(ctx, sc.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetScopeRule(ctx, r1.ID)
	if got != nil {
		t.Fatal("expected scope rules gone with scope")
	}
}

func TestAccessRuleCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	seq, _ := s.NextAccessRuleSeq(ctx, "t1")
	r := &rule.AccessRule{
		ID:         id.NewAccessRuleID(),
		TenantID:   "t1",
		ModuleCode: "crm",
		Resource:   "lead",
		Actions:    []rule.Action{rule.ActionRead, rule.ActionUpdate},
		Priority:   5,
		Seq:        seq,
		Active:     true,
	}
	if err := s.CreateAccessRule(ctx, r); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetAccessRule(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Resource != "lead" || len(got.Actions) != 2 {
		t.Fatal("mismatch")
	}

	r.Priority = 1
	if err := s.UpdateAccessRule(ctx, r); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetAccessRule(ctx, r.ID)
	if got.Priority != 1 {
		t.Fatal("update failed")
	}

	inactive := &rule.AccessRule{ID: id.NewAccessRuleID(), TenantID: "t1", ModuleCode: "crm", Resource: "lead", Actions: []rule.Action{rule.ActionRead}, Seq: 2}
	if err := s.CreateAccessRule(ctx, inactive); err != nil {
		t.Fatal(err)
	}

	active, err := s.ListActiveAccessRules(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != r.ID {
		t.Fatalf("expected only the active rule, got %d", len(active))
	}

	count, _ := s.CountAccessRules(ctx, &rule.ListFilter{TenantID: "t1"})
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}

	if err := s.DeleteAccessRule(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetAccessRule(ctx, r.ID)
	if got != nil {
		t.Fatal("expected nil after delete")
	}
}

func TestAssignmentQueries(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()

	scopeID := id.NewScopeID()
	roleID := id.NewRoleID()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	current := &assignment.Assignment{ID: id.NewAssignmentID(), TenantID: "t1", UserID: "alice", ScopeID: scopeID, Active: true, CreatedAt: now}
	expired := &assignment.Assignment{ID: id.NewAssignmentID(), TenantID: "t1", UserID: "alice", RoleID: roleID, Active: true, ExpiresAt: &past, CreatedAt: now.Add(time.Second)}
	pending := &assignment.Assignment{ID: id.NewAssignmentID(), TenantID: "t1", UserID: "alice", RoleID: roleID, Active: true, EffectiveAt: &future, CreatedAt: now.Add(2 * time.Second)}
	deactivated := &assignment.Assignment{ID: id.NewAssignmentID(), TenantID: "t1", UserID: "alice", ScopeID: id.NewScopeID(), Active: false, CreatedAt: now.Add(3 * time.Second)}
	for _, a := range []*assignment.Assignment{current, expired, pending, deactivated} {
		if err := s.CreateAssignment(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	active, err := s.ListActiveForUser(ctx, "t1", "alice", now)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != current.ID {
		t.Fatalf("expected only the current assignment, got %d", len(active))
	}

	all, _ := s.ListAllForUser(ctx, "t1", "alice")
	if len(all) != 4 {
		t.Fatalf("expected 4 assignments, got %d", len(all))
	}

	byScope, _ := s.ListForScope(ctx, scopeID)
	if len(byScope) != 1 {
		t.Fatalf("expected 1 scope assignment, got %d", len(byScope))
	}

	byRole, _ := s.ListForRole(ctx, roleID)
	if len(byRole) != 2 {
		t.Fatalf("expected 2 role assignments, got %d", len(byRole))
	}

	current.Active = false
	deactAt := now
	current.DeactivatedAt = &deactAt
	if err := s.UpdateAssignment(ctx, current); err != nil {
		t.Fatal(err)
	}
	active, _ = s.ListActiveForUser(ctx, "t1", "alice", now)
	if len(active) != 0 {
		t.Fatalf("expected no active assignments, got %d", len(active))
	}
}

func TestRoleCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	r := &role.Role{
		ID:             id.NewRoleID(),
		TenantID:       "t1",
		Name:           "Sales Manager",
		Slug:           "sales-manager",
		ModuleFamily:   "crm",
		PrivilegeLevel: 2,
		Active:         true,
	}
	if err := s.CreateRole(ctx, r); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetRoleBySlug(ctx, "t1", "sales-manager")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != r.ID {
		t.Fatal("slug lookup mismatch")
	}

	got, _ = s.GetRoleBySlug(ctx, "t2", "sales-manager")
	if got != nil {
		t.Fatal("slug lookup must not cross tenants")
	}

	list, _ := s.ListRoles(ctx, &role.ListFilter{TenantID: "t1", ModuleFamily: "crm"})
	if len(list) != 1 {
		t.Fatalf("expected 1 role, got %d", len(list))
	}

	if err := s.DeleteRole(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetRole(ctx, r.ID)
	if got != nil {
		t.Fatal("expected nil after delete")
	}
}

func TestModuleCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	m := &module.Module{
		ID:       id.NewModuleID(),
		TenantID: "t1",
		Code:     "crm",
		Name:     "Customer Relations",
		Resources: []module.ResourceDef{
			{Name: "lead", Fields: []module.FieldDef{{Name: "owner_id", Type: "string"}, {Name: "department", Type: "string"}}, Actions: []string{"read", "update"}},
		},
	}
	if err := s.CreateModule(ctx, m); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetModuleByCode(ctx, "t1", "crm")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != m.ID {
		t.Fatal("code lookup mismatch")
	}
	if len(got.Resources) != 1 || got.Resources[0].Name != "lead" {
		t.Fatal("resource defs not persisted")
	}

	got, _ = s.GetModuleByCode(ctx, "t1", "erp")
	if got != nil {
		t.Fatal("expected nil for unknown code")
	}

	count, _ := s.CountModules(ctx, &module.ListFilter{TenantID: "t1"})
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}

	if err := s.DeleteModulesByTenant(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	list, _ := s.ListModules(ctx, &module.ListFilter{TenantID: "t1"})
	if len(list) != 0 {
		t.Fatal("expected empty list after tenant delete")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	s := New()

	sc1 := &scope.Scope{ID: id.NewScopeID(), TenantID: "t1", Name: "Ops", Kind: scope.KindDepartment, Active: true}
	sc2 := &scope.Scope{ID: id.NewScopeID(), TenantID: "t2", Name: "Ops", Kind: scope.KindDepartment, Active: true}
	_ = s.CreateScope(ctx, sc1)
	_ = s.CreateScope(ctx, sc2)
	_ = s.CreateScopeRule(ctx, &scope.Rule{ID: id.NewScopeRuleID(), ScopeID: sc1.ID, ModuleCode: "crm", Resource: "*", FilterKind: scope.FilterOwner, Active: true})
	_ = s.CreateScopeRule(ctx, &scope.Rule{ID: id.NewScopeRuleID(), ScopeID: sc2.ID, ModuleCode: "crm", Resource: "*", FilterKind: scope.FilterOwner, Active: true})
	_ = s.CreateAssignment(ctx, &assignment.Assignment{ID: id.NewAssignmentID(), TenantID: "t1", UserID: "alice", ScopeID: sc1.ID, Active: true})
	_ = s.CreateAssignment(ctx, &assignment.Assignment{ID: id.NewAssignmentID(), TenantID: "t2", UserID: "bob", ScopeID: sc2.ID, Active: true})

	snap, err := s.Snapshot(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if snap.TenantID != "t1" {
		t.Fatalf("expected tenant t1, got %s", snap.TenantID)
	}
	if len(snap.Scopes) != 1 || len(snap.ScopeRules) != 1 || len(snap.Assignments) != 1 {
		t.Fatalf("snapshot leaked across tenants: %d scopes, %d rules, %d assignments",
			len(snap.Scopes), len(snap.ScopeRules), len(snap.Assignments))
	}
	if snap.TakenAt.IsZero() {
		t.Fatal("expected TakenAt to be set")
	}

	// Snapshot is a copy. Mutating the store afterwards must not change it.
	sc1.Name = "Renamed"
	_ = s.UpdateScope(ctx, sc1)
	if snap.Scopes[sc1.ID.String()].Name != "Ops" {
		t.Fatal("snapshot must not observe later writes")
	}
}

func TestCopyOnRead(t *testing.T) {
	ctx := context.Background()
	s := New()

	sc := &scope.Scope{ID: id.NewScopeID(), TenantID: "t1", Name: "HR", Kind: scope.KindDepartment, Active: true, Metadata: map[string]any{"region": "emea"}}
	if err := s.CreateScope(ctx, sc); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetScope(ctx, sc.ID)
	got.Name = "mutated"
	got.Metadata["region"] = "apac"

	again, _ := s.GetScope(ctx, sc.ID)
	if again.Name != "HR" || again.Metadata["region"] != "emea" {
		t.Fatal("callers must not be able to mutate stored state")
	}
}

func TestPagination(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i := 0; i < 5; i++ {
		seq, _ := s.NextScopeSeq(ctx, "t1")
		sc := &scope.Scope{ID: id.NewScopeID(), TenantID: "t1", Name: "Team", Kind: scope.KindTeam, Active: true, Seq: seq}
		if err := s.CreateScope(ctx, sc); err != nil {
			t.Fatal(err)
		}
	}

	page, _ := s.ListScopes(ctx, &scope.ListFilter{TenantID: "t1", Limit: 2, Offset: 1})
	if len(page) != 2 {
		t.Fatalf("expected 2 scopes, got %d", len(page))
	}
	if page[0].Seq != 2 || page[1].Seq != 3 {
		t.Fatalf("expected seqs 2,3 got %d,%d", page[0].Seq, page[1].Seq)
	}

	empty, _ := s.ListScopes(ctx, &scope.ListFilter{TenantID: "t1", Offset: 10})
	if len(empty) != 0 {
		t.Fatalf("expected empty page, got %d", len(empty))
	}
}
