package bastion

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/bastion/conflict"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/predicate"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/rule"
	"github.com/xraph/bastion/scope"
	"github.com/xraph/bastion/store/memory"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *memory.Store) {
	t.Helper()
	s := memory.New()
	eng, err := NewEngine(append([]Option{WithStore(s)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return eng, s
}

func mustCreateScope(t *testing.T, ctx context.Context, eng *Engine, name string, kind scope.Kind, parentID *id.ScopeID) *scope.Scope {
	t.Helper()
	s, err := eng.CreateScope(ctx, &CreateScopeInput{Name: name, Kind: kind, ParentID: parentID})
	if err != nil {
		t.Fatalf("create scope %q: %v", name, err)
	}
	return s
}

func mustAssign(t *testing.T, ctx context.Context, eng *Engine, userID string, targetID id.ID) {
	t.Helper()
	if _, err := eng.Assign(ctx, &AssignInput{UserID: userID, TargetID: targetID}); err != nil {
		t.Fatalf("assign %s to %s: %v", userID, targetID, err)
	}
}

func TestNewEngine_RequiresStore(t *testing.T) {
	_, err := NewEngine()
	if err == nil {
		t.Fatal("expected error when store is nil")
	}
}

func TestDepartmentScopeRuleFlow(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	eng, _ := newTestEngine(t)

	sales := mustCreateScope(t, ctx, eng, "Sales Department", scope.KindDepartment, nil)
	if _, err := eng.AddScopeRule(ctx, sales.ID, &AddScopeRuleInput{
		ModuleCode:  "crm",
		Resource:    "customers",
		FilterKind:  scope.FilterDepartment,
		FilterValue: "sales",
	}); err != nil {
		t.Fatal(err)
	}
	mustAssign(t, ctx, eng, "u1", sales.ID)

	dec, err := eng.Evaluate(ctx, &EvaluateRequest{
		UserID: "u1", ModuleCode: "crm", Resource: "customers", Action: rule.ActionRead,
		Record: map[string]any{"department_id": "sales"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !dec.Allowed() {
		t.Fatalf("expected allow for sales record, got %s: %s", dec.Outcome, dec.Explanation)
	}
	if dec.AppliedScopeID.String() != sales.ID.String() {
		t.Fatalf("expected applied scope %s, got %s", sales.ID, dec.AppliedScopeID)
	}

	dec, err = eng.Evaluate(ctx, &EvaluateRequest{
		UserID: "u1", ModuleCode: "crm", Resource: "customers", Action: rule.ActionRead,
		Record: map[string]any{"department_id": "marketing"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if dec.Allowed() {
		t.Fatal("expected deny for marketing record")
	}
}

func TestApprovalLimitRule(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	eng, _ := newTestEngine(t, WithFunction("approval_limit", func(env *predicate.Env, _ []any) (any, error) {
		limits := map[string]float64{"u1": 5000}
		return limits[env.UserID], nil
	}))

	finance := mustCreateScope(t, ctx, eng, "Finance", scope.KindDepartment, nil)
	mustAssign(t, ctx, eng, "u1", finance.ID)

	if _, err := eng.AddRule(ctx, &AddRuleInput{
		ModuleCode: "finance",
		Resource:   "invoices",
		Actions:    []rule.Action{rule.ActionRead},
		Priority:   1,
		Conditions: []rule.Condition{{
			Operator: rule.OpCustom,
			Custom:   predicate.CompareFunc("amount", predicate.OpLTE, "approval_limit"),
		}},
	}); err != nil {
		t.Fatal(err)
	}

	dec, err := eng.Evaluate(ctx, &EvaluateRequest{
		UserID: "u1", ModuleCode: "finance", Resource: "invoices", Action: rule.ActionRead,
		Record: map[string]any{"amount": 4000},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !dec.Allowed() {
		t.Fatalf("expected allow under limit, got %s: %s", dec.Outcome, dec.Explanation)
	}

	dec, err = eng.Evaluate(ctx, &EvaluateRequest{
		UserID: "u1", ModuleCode: "finance", Resource: "invoices", Action: rule.ActionRead,
		Record: map[string]any{"amount": 9000},
	})
	if err != nil {
		t.Fatal(err)
	}
	if dec.Allowed() {
		t.Fatal("expected deny over limit")
	}
}

func TestFailClosed_NoAssignments(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	eng, _ := newTestEngine(t)

	dec, err := eng.Evaluate(ctx, &EvaluateRequest{
		UserID: "ghost", ModuleCode: "crm", Resource: "customers", Action: rule.ActionRead,
	})
	if err != nil {
		t.Fatal(err)
	}
	if dec.Allowed() {
		t.Fatal("expected deny for user with no assignments")
	}
}

func TestPriorityDeterminism(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	eng, _ := newTestEngine(t)

	s := mustCreateScope(t, ctx, eng, "Ops", scope.KindDepartment, nil)
	mustAssign(t, ctx, eng, "u1", s.ID)

	// Both rules match; the lower priority must win regardless of insertion
	// order.
	second, err := eng.AddRule(ctx, &AddRuleInput{
		ModuleCode: "crm", Resource: "leads",
		Actions:    []rule.Action{rule.ActionRead},
		Priority:   2,
		Conditions: []rule.Condition{{Field: "status", Operator: rule.OpEquals, Value: "open"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	first, err := eng.AddRule(ctx, &AddRuleInput{
		ModuleCode: "crm", Resource: "leads",
		Actions:    []rule.Action{rule.ActionRead},
		Priority:   1,
		Conditions: []rule.Condition{{Field: "status", Operator: rule.OpEquals, Value: "open"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	_ = second

	req := &EvaluateRequest{
		UserID: "u1", ModuleCode: "crm", Resource: "leads", Action: rule.ActionRead,
		Record: map[string]any{"status": "open"},
	}
	dec1, err := eng.Evaluate(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if dec1.MatchedRuleID.String() != first.ID.String() {
		t.Fatalf("expected priority-1 rule %s to match, got %s", first.ID, dec1.MatchedRuleID)
	}

	dec2, err := eng.Evaluate(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if dec2.Outcome != dec1.Outcome || dec2.MatchedRuleID.String() != dec1.MatchedRuleID.String() {
		t.Fatal("expected identical decision on repeated evaluation")
	}
}

func TestHierarchyWellFormedness(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	eng, _ := newTestEngine(t)

	team := mustCreateScope(t, ctx, eng, "Platform Team", scope.KindTeam, nil)

	// A department cannot sit under a team.
	_, err := eng.CreateScope(ctx, &CreateScopeInput{
		Name: "Engineering", Kind: scope.KindDepartment, ParentID: &team.ID,
	})
	if !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("expected ErrInvalidHierarchy, got %v", err)
	}

	// Only one global scope per tenant.
	mustCreateScope(t, ctx, eng, "Everything", scope.KindGlobal, nil)
	_, err = eng.CreateScope(ctx, &CreateScopeInput{Name: "Everything Again", Kind: scope.KindGlobal})
	if !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("expected ErrInvalidHierarchy for second global, got %v", err)
	}

	// Reparenting under a descendant is a cycle.
	dept := mustCreateScope(t, ctx, eng, "Engineering", scope.KindDepartment, nil)
	sub := mustCreateScope(t, ctx, eng, "Backend", scope.KindTeam, &dept.ID)
	_, err = eng.UpdateScope(ctx, dept.ID, &UpdateScopeInput{ParentID: &sub.ID})
	if !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("expected ErrInvalidHierarchy for cycle, got %v", err)
	}
}

func TestSoftDeleteInvariant(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	eng, _ := newTestEngine(t)

	s := mustCreateScope(t, ctx, eng, "Sales", scope.KindDepartment, nil)
	a, err := eng.Assign(ctx, &AssignInput{UserID: "u1", TargetID: s.ID})
	if err != nil {
		t.Fatal(err)
	}

	if err := eng.Unassign(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	active, err := eng.ListActiveFor(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active assignments, got %d", len(active))
	}

	all, err := eng.ListAllFor(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(all))
	}
	if all[0].Active {
		t.Fatal("expected audit record to be inactive")
	}
	if all[0].DeactivatedAt == nil {
		t.Fatal("expected deactivation timestamp")
	}
}

func TestConflictSymmetry(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	eng, _ := newTestEngine(t)

	global := mustCreateScope(t, ctx, eng, "Everything", scope.KindGlobal, nil)
	dept := mustCreateScope(t, ctx, eng, "Sales", scope.KindDepartment, nil)
	team := mustCreateScope(t, ctx, eng, "Platform", scope.KindTeam, nil)

	// Global + Department is ambiguous.
	mustAssign(t, ctx, eng, "u1", global.ID)
	mustAssign(t, ctx, eng, "u1", dept.ID)
	conflicts, err := eng.DetectConflicts(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(conflicts))
	}
	if conflicts[0].Kind != conflict.HierarchicalAmbiguity || conflicts[0].Severity != conflict.SeverityCritical {
		t.Fatalf("expected critical hierarchical ambiguity, got %s/%s", conflicts[0].Kind, conflicts[0].Severity)
	}

	// Department + Team of unrelated branches is not.
	mustAssign(t, ctx, eng, "u2", dept.ID)
	mustAssign(t, ctx, eng, "u2", team.ID)
	conflicts, err = eng.DetectConflicts(ctx, "u2")
	if err != nil {
		t.Fatal(err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts for unrelated branches, got %d", len(conflicts))
	}
}

func TestBulkAssignAutoKeepsHighestPrivilege(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	eng, s := newTestEngine(t)

	manager := &role.Role{ID: id.NewRoleID(), TenantID: "t1", Name: "Manager", Slug: "manager", ModuleFamily: "crm", PrivilegeLevel: 1, Active: true}
	admin := &role.Role{ID: id.NewRoleID(), TenantID: "t1", Name: "Admin", Slug: "admin", ModuleFamily: "crm", PrivilegeLevel: 2, Active: true}
	_ = s.CreateRole(ctx, manager)
	_ = s.CreateRole(ctx, admin)

	mustAssign(t, ctx, eng, "u1", manager.ID)

	result, err := eng.BulkAssign(ctx, &BulkAssignRequest{
		UserIDs:    []string{"u1"},
		TargetIDs:  []id.ID{admin.ID},
		Resolution: ResolutionAuto,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(result.Pairs))
	}
	pair := result.Pairs[0]
	if pair.Status != PairCreated {
		t.Fatalf("expected created, got %s", pair.Status)
	}
	if len(pair.Deactivated) != 1 {
		t.Fatalf("expected 1 deactivated grant, got %d", len(pair.Deactivated))
	}

	// The overlap is recorded for audit, not silently resolved.
	var overlap bool
	for _, c := range result.Conflicts {
		if c.Kind == conflict.PermissionOverlap && c.Severity == conflict.SeverityMedium {
			overlap = true
		}
	}
	if !overlap {
		t.Fatal("expected a medium permission overlap conflict in the result")
	}

	// Only the admin grant remains active.
	active, err := eng.ListActiveFor(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].RoleID.String() != admin.ID.String() {
		t.Fatalf("expected only the admin grant active, got %d assignments", len(active))
	}
}

func TestBulkAssignManualRejectsCriticalAtomically(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	eng, _ := newTestEngine(t)

	global := mustCreateScope(t, ctx, eng, "Everything", scope.KindGlobal, nil)
	dept := mustCreateScope(t, ctx, eng, "Sales", scope.KindDepartment, nil)
	mustAssign(t, ctx, eng, "u1", global.ID)

	_, err := eng.BulkAssign(ctx, &BulkAssignRequest{
		UserIDs:    []string{"u1"},
		TargetIDs:  []id.ID{dept.ID},
		Resolution: ResolutionManual,
	})
	if !errors.Is(err, ErrConflictBlocked) {
		t.Fatalf("expected ErrConflictBlocked, got %v", err)
	}
	var blocked *ConflictBlockedError
	if !errors.As(err, &blocked) || len(blocked.Conflicts) == 0 {
		t.Fatal("expected the error to enumerate blocking conflicts")
	}

	// Nothing was applied.
	active, err := eng.ListActiveFor(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Fatalf("expected the batch to be rejected atomically, got %d active assignments", len(active))
	}
}

func TestDeleteScopeCascade(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	eng, _ := newTestEngine(t)

	dept := mustCreateScope(t, ctx, eng, "Engineering", scope.KindDepartment, nil)
	team := mustCreateScope(t, ctx, eng, "Backend", scope.KindTeam, &dept.ID)
	mustAssign(t, ctx, eng, "u1", team.ID)

	err := eng.DeleteScope(ctx, dept.ID, false)
	if !errors.Is(err, ErrHasChildren) {
		t.Fatalf("expected ErrHasChildren, got %v", err)
	}

	if err := eng.DeleteScope(ctx, dept.ID, true); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.GetScope(ctx, team.ID); !errors.Is(err, ErrScopeNotFound) {
		t.Fatalf("expected child scope removed, got %v", err)
	}

	// The child's assignments were deactivated, not deleted.
	active, err := eng.ListActiveFor(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active assignments after cascade, got %d", len(active))
	}
	all, err := eng.ListAllFor(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Active {
		t.Fatal("expected the assignment record preserved inactive")
	}
}

func TestDeleteScopeWithActiveAssignments(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	eng, _ := newTestEngine(t)

	dept := mustCreateScope(t, ctx, eng, "Sales", scope.KindDepartment, nil)
	mustAssign(t, ctx, eng, "u1", dept.ID)

	// A leaf scope with an active assignment is rejected without cascade.
	err := eng.DeleteScope(ctx, dept.ID, false)
	if !errors.Is(err, ErrHasAssignments) {
		t.Fatalf("expected ErrHasAssignments, got %v", err)
	}
	var detail *HasAssignmentsError
	if !errors.As(err, &detail) || len(detail.Assignments) != 1 {
		t.Fatalf("expected one blocking assignment, got %+v", detail)
	}
	if _, err := eng.GetScope(ctx, dept.ID); err != nil {
		t.Fatalf("expected scope to survive rejected delete, got %v", err)
	}
	active, err := eng.ListActiveFor(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Fatalf("expected assignment untouched after rejected delete, got %d active", len(active))
	}

	if err := eng.DeleteScope(ctx, dept.ID, true); err != nil {
		t.Fatal(err)
	}
	active, err = eng.ListActiveFor(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active assignments after cascade, got %d", len(active))
	}
}

func TestGlobalWildcardShortcut(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	eng, _ := newTestEngine(t)

	global := mustCreateScope(t, ctx, eng, "Everything", scope.KindGlobal, nil)
	if _, err := eng.AddScopeRule(ctx, global.ID, &AddScopeRuleInput{
		ModuleCode: "*", Resource: "*", FilterKind: scope.FilterOwner,
	}); err != nil {
		t.Fatal(err)
	}
	mustAssign(t, ctx, eng, "root", global.ID)

	// No rule matches the record, but the global wildcard scope allows.
	dec, err := eng.Evaluate(ctx, &EvaluateRequest{
		UserID: "root", ModuleCode: "billing", Resource: "payouts", Action: rule.ActionDelete,
		Record: map[string]any{"owner_id": "someone-else"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !dec.Allowed() {
		t.Fatalf("expected allow via global wildcard, got %s: %s", dec.Outcome, dec.Explanation)
	}
}

func TestCloneScopeCopiesRulesNotAssignments(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	eng, _ := newTestEngine(t)

	src := mustCreateScope(t, ctx, eng, "Sales", scope.KindDepartment, nil)
	if _, err := eng.AddScopeRule(ctx, src.ID, &AddScopeRuleInput{
		ModuleCode: "crm", Resource: "customers", FilterKind: scope.FilterDepartment, FilterValue: "sales",
	}); err != nil {
		t.Fatal(err)
	}
	mustAssign(t, ctx, eng, "u1", src.ID)

	clone, err := eng.CloneScope(ctx, src.ID, "Sales Copy")
	if err != nil {
		t.Fatal(err)
	}

	rules, err := eng.ListScopeRules(ctx, clone.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected 1 cloned rule, got %d", len(rules))
	}
	if rules[0].ID.String() == "" || rules[0].ScopeID.String() != clone.ID.String() {
		t.Fatal("expected cloned rule to belong to the clone")
	}

	assigns, err := eng.Store().ListForScope(ctx, clone.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(assigns) != 0 {
		t.Fatalf("expected no assignments on clone, got %d", len(assigns))
	}
}

func TestBuildFilterPredicate(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	eng, _ := newTestEngine(t)

	sales := mustCreateScope(t, ctx, eng, "Sales", scope.KindDepartment, nil)
	if _, err := eng.AddScopeRule(ctx, sales.ID, &AddScopeRuleInput{
		ModuleCode: "crm", Resource: "customers", FilterKind: scope.FilterDepartment, FilterValue: "sales",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.AddScopeRule(ctx, sales.ID, &AddScopeRuleInput{
		ModuleCode: "crm", Resource: "customers", FilterKind: scope.FilterOwner,
	}); err != nil {
		t.Fatal(err)
	}
	mustAssign(t, ctx, eng, "u1", sales.ID)

	node, err := eng.BuildFilterPredicate(ctx, "u1", "crm", "customers")
	if err != nil {
		t.Fatal(err)
	}
	if node == nil || node.Kind != predicate.KindOr || len(node.Children) != 2 {
		t.Fatalf("expected an OR of 2 branches, got %+v", node)
	}

	// The tree evaluates the same way the evaluator does.
	ok, err := predicate.Eval(node, &predicate.Env{UserID: "u1", Record: map[string]any{"department_id": "sales"}})
	if err != nil || !ok {
		t.Fatalf("expected department row to pass the filter, ok=%v err=%v", ok, err)
	}
	ok, err = predicate.Eval(node, &predicate.Env{UserID: "u1", Record: map[string]any{"owner_id": "u1", "department_id": "marketing"}})
	if err != nil || !ok {
		t.Fatalf("expected owned row to pass the filter, ok=%v err=%v", ok, err)
	}
	ok, err = predicate.Eval(node, &predicate.Env{UserID: "u1", Record: map[string]any{"department_id": "marketing"}})
	if err != nil || ok {
		t.Fatalf("expected foreign row to fail the filter, ok=%v err=%v", ok, err)
	}

	// Unknown users fail closed.
	if _, err := eng.BuildFilterPredicate(ctx, "ghost", "crm", "customers"); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
}

func TestEvaluateEvalTime(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	eng, _ := newTestEngine(t)

	dec, err := eng.Evaluate(ctx, &EvaluateRequest{
		UserID: "u1", ModuleCode: "crm", Resource: "customers", Action: rule.ActionRead,
	})
	if err != nil {
		t.Fatal(err)
	}
	if dec.EvalTimeNs <= 0 {
		t.Fatal("expected positive eval time")
	}
}
