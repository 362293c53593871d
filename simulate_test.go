package bastion

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/rule"
	"github.com/xraph/bastion/scope"
)

func TestRunScenarioMatchesExpectations(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	eng, _ := newTestEngine(t)

	sales := mustCreateScope(t, ctx, eng, "Sales", scope.KindDepartment, nil)
	if _, err := eng.AddScopeRule(ctx, sales.ID, &AddScopeRuleInput{
		ModuleCode:  "crm",
		Resource:    "customers",
		FilterKind:  scope.FilterDepartment,
		FilterValue: "sales",
	}); err != nil {
		t.Fatal(err)
	}
	mustAssign(t, ctx, eng, "u1", sales.ID)

	result, err := eng.RunScenario(ctx, &Scenario{
		ID:     id.NewScenarioID(),
		Name:   "sales rep visibility",
		UserID: "u1",
		Requests: []ScenarioRequest{
			{ModuleCode: "crm", Resource: "customers", Action: rule.ActionRead,
				Record: map[string]any{"department_id": "sales"}},
			{ModuleCode: "crm", Resource: "customers", Action: rule.ActionRead,
				Record: map[string]any{"department_id": "marketing"}},
		},
		Expected: []ScenarioExpectation{
			{RequestIndex: 0, Outcome: OutcomeAllow},
			{RequestIndex: 1, Outcome: OutcomeDeny},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if !result.Passed {
		t.Fatalf("scenario should pass, requests: %+v", result.Requests)
	}
	if len(result.Requests) != 2 {
		t.Fatalf("got %d request results, want 2", len(result.Requests))
	}
	for _, rr := range result.Requests {
		if !rr.Passed {
			t.Errorf("request %d failed: %s", rr.Index, rr.Diagnostic)
		}
		if rr.Decision == nil || rr.Decision.EvalTimeNs < 0 {
			t.Errorf("request %d missing decision timing", rr.Index)
		}
	}
}

func TestRunScenarioScopeRestriction(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	eng, _ := newTestEngine(t)

	// u1 holds two departments; only Sales grants crm access.
	sales := mustCreateScope(t, ctx, eng, "Sales", scope.KindDepartment, nil)
	support := mustCreateScope(t, ctx, eng, "Support", scope.KindDepartment, nil)
	if _, err := eng.AddScopeRule(ctx, sales.ID, &AddScopeRuleInput{
		ModuleCode:  "crm",
		Resource:    "customers",
		FilterKind:  scope.FilterDepartment,
		FilterValue: "sales",
	}); err != nil {
		t.Fatal(err)
	}
	mustAssign(t, ctx, eng, "u1", sales.ID)
	mustAssign(t, ctx, eng, "u1", support.ID)

	requests := []ScenarioRequest{
		{ModuleCode: "crm", Resource: "customers", Action: rule.ActionRead,
			Record: map[string]any{"department_id": "sales"}},
	}

	// Restricted to Sales the grant still applies.
	result, err := eng.RunScenario(ctx, &Scenario{
		Name:     "sales scope replay",
		UserID:   "u1",
		ScopeID:  sales.ID,
		Requests: requests,
		Expected: []ScenarioExpectation{{RequestIndex: 0, Outcome: OutcomeAllow}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Passed {
		t.Fatalf("scenario restricted to granting scope should pass: %+v", result.Requests)
	}

	// Restricted to Support the Sales grant is out of play.
	result, err = eng.RunScenario(ctx, &Scenario{
		Name:     "support scope replay",
		UserID:   "u1",
		ScopeID:  support.ID,
		Requests: requests,
		Expected: []ScenarioExpectation{{RequestIndex: 0, Outcome: OutcomeDeny}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Passed {
		t.Fatalf("scenario restricted to non-granting scope should deny: %+v", result.Requests)
	}

	// An unknown scope is rejected up front.
	_, err = eng.RunScenario(ctx, &Scenario{
		Name:     "unknown scope",
		UserID:   "u1",
		ScopeID:  id.NewScopeID(),
		Requests: requests,
	})
	if !errors.Is(err, ErrScopeNotFound) {
		t.Fatalf("expected ErrScopeNotFound, got %v", err)
	}
}

func TestRunScenarioReportsMismatch(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	eng, _ := newTestEngine(t)

	result, err := eng.RunScenario(ctx, &Scenario{
		ID:     id.NewScenarioID(),
		Name:   "unassigned user",
		UserID: "ghost",
		Requests: []ScenarioRequest{
			{ModuleCode: "crm", Resource: "customers", Action: rule.ActionRead},
		},
		Expected: []ScenarioExpectation{
			{RequestIndex: 0, Outcome: OutcomeAllow, Reason: "should fail: ghost has no assignments"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if result.Passed {
		t.Fatal("scenario with wrong expectation should not pass")
	}
	rr := result.Requests[0]
	if rr.Passed || rr.Diagnostic == "" {
		t.Fatalf("mismatch should carry a diagnostic, got %+v", rr)
	}
	if rr.Expected != OutcomeAllow || rr.Decision.Outcome != OutcomeDeny {
		t.Fatalf("expected allow-vs-deny mismatch, got %+v", rr)
	}
}

func TestRunScenarioDefaultsActionToRead(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	eng, _ := newTestEngine(t)

	sales := mustCreateScope(t, ctx, eng, "Sales", scope.KindDepartment, nil)
	if _, err := eng.AddScopeRule(ctx, sales.ID, &AddScopeRuleInput{
		ModuleCode: "crm", Resource: "customers", FilterKind: scope.FilterOwner,
	}); err != nil {
		t.Fatal(err)
	}
	mustAssign(t, ctx, eng, "u1", sales.ID)

	result, err := eng.RunScenario(ctx, &Scenario{
		ID:     id.NewScenarioID(),
		UserID: "u1",
		Requests: []ScenarioRequest{
			{ModuleCode: "crm", Resource: "customers",
				Record: map[string]any{"owner_id": "u1"}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Requests[0].Decision.Outcome != OutcomeAllow {
		t.Fatalf("empty action should default to read and allow, got %s", result.Requests[0].Decision.Explanation)
	}
}

func TestRunScenarioValidation(t *testing.T) {
	ctx := WithTenant(context.Background(), "app1", "t1")
	eng, _ := newTestEngine(t)

	_, err := eng.RunScenario(ctx, &Scenario{ID: id.NewScenarioID(), UserID: ""})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("missing user id should fail validation, got %v", err)
	}

	_, err = eng.RunScenario(ctx, &Scenario{ID: id.NewScenarioID(), UserID: "u1"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("empty request list should fail validation, got %v", err)
	}

	_, err = eng.RunScenario(ctx, &Scenario{
		ID:     id.NewScenarioID(),
		UserID: "u1",
		Requests: []ScenarioRequest{
			{ModuleCode: "crm", Resource: "customers"},
		},
		Expected: []ScenarioExpectation{{RequestIndex: 5, Outcome: OutcomeAllow}},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("out-of-range expectation should fail validation, got %v", err)
	}
}
