package plugin

import (
	"context"
	"log/slog"
	"testing"

	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/scope"
)

// testPlugin implements Plugin + ScopeCreated + AfterEvaluate.
type testPlugin struct {
	scopeCreatedCalled  bool
	afterEvaluateCalled bool
}

func (t *testPlugin) Name() string { return "test-plugin" }

func (t *testPlugin) OnScopeCreated(_ context.Context, _ *scope.Scope) error {
	t.scopeCreatedCalled = true
	return nil
}

func (t *testPlugin) OnAfterEvaluate(_ context.Context, _, _ any) error {
	t.afterEvaluateCalled = true
	return nil
}

// minimalPlugin only implements Plugin (no hooks).
type minimalPlugin struct{}

func (m *minimalPlugin) Name() string { return "minimal" }

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(slog.Default())

	tp := &testPlugin{}
	reg.Register(tp)
	reg.Register(&minimalPlugin{})

	if len(reg.Plugins()) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(reg.Plugins()))
	}

	// Should dispatch ScopeCreated to testPlugin only.
	reg.EmitScopeCreated(ctx, &scope.Scope{ID: id.NewScopeID(), Name: "Sales"})
	if !tp.scopeCreatedCalled {
		t.Fatal("OnScopeCreated was not called")
	}

	// Should dispatch AfterEvaluate.
	reg.EmitAfterEvaluate(ctx, nil, nil)
	if !tp.afterEvaluateCalled {
		t.Fatal("OnAfterEvaluate was not called")
	}

	// Should not panic on hooks with no listeners.
	reg.EmitBeforeEvaluate(ctx, nil)
	reg.EmitScopeDeleted(ctx, id.NewScopeID())
	reg.EmitShutdown(ctx)
}
