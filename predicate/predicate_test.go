package predicate

import (
	"encoding/json"
	"errors"
	"testing"
)

func env(record map[string]any) *Env {
	return &Env{TenantID: "t1", UserID: "u1", Record: record}
}

func TestCompareOperators(t *testing.T) {
	tests := []struct {
		name   string
		node   *Node
		record map[string]any
		want   bool
	}{
		{"eq match", Compare("department_id", OpEquals, "sales"), map[string]any{"department_id": "sales"}, true},
		{"eq mismatch", Compare("department_id", OpEquals, "sales"), map[string]any{"department_id": "marketing"}, false},
		{"eq missing field", Compare("department_id", OpEquals, "sales"), map[string]any{}, false},
		{"neq", Compare("status", OpNotEquals, "closed"), map[string]any{"status": "open"}, true},
		{"in", Compare("region", OpIn, []string{"emea", "apac"}), map[string]any{"region": "apac"}, true},
		{"not in", Compare("region", OpNotIn, []any{"emea"}), map[string]any{"region": "na"}, true},
		{"contains", Compare("name", OpContains, "corp"), map[string]any{"name": "acme corp ltd"}, true},
		{"starts with", Compare("code", OpStartsWith, "INV-"), map[string]any{"code": "INV-0042"}, true},
		{"gt", Compare("amount", OpGreaterThan, 100), map[string]any{"amount": 150}, true},
		{"lte", Compare("amount", OpLTE, 5000), map[string]any{"amount": 4000}, true},
		{"lte over limit", Compare("amount", OpLTE, 5000), map[string]any{"amount": 9000}, false},
		{"numeric string", Compare("amount", OpGTE, "10"), map[string]any{"amount": "25"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(tt.node, env(tt.record))
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBooleanCombinators(t *testing.T) {
	record := map[string]any{"department_id": "sales", "amount": 300}

	n := And(
		Compare("department_id", OpEquals, "sales"),
		Compare("amount", OpLessThan, 500),
	)
	if ok, err := Eval(n, env(record)); err != nil || !ok {
		t.Fatalf("expected and=true, got %v err=%v", ok, err)
	}

	n = Or(
		Compare("department_id", OpEquals, "marketing"),
		Compare("amount", OpLessThan, 500),
	)
	if ok, err := Eval(n, env(record)); err != nil || !ok {
		t.Fatalf("expected or=true, got %v err=%v", ok, err)
	}

	n = Not(Compare("department_id", OpEquals, "marketing"))
	if ok, err := Eval(n, env(record)); err != nil || !ok {
		t.Fatalf("expected not=true, got %v err=%v", ok, err)
	}
}

func TestUserIDField(t *testing.T) {
	n := CompareFunc("owner_id", OpEquals, "current_user")

	e := env(map[string]any{"owner_id": "u1"})
	e.Funcs = map[string]Func{
		"current_user": func(env *Env, _ []any) (any, error) { return env.UserID, nil },
	}
	ok, err := Eval(n, e)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected owner match against current user")
	}

	if got := e.FieldValue("user_id"); got != "u1" {
		t.Errorf("expected reserved user_id field, got %v", got)
	}
}

func TestCompareAgainstFuncResult(t *testing.T) {
	n := CompareFunc("amount", OpLTE, "approval_limit")
	e := env(map[string]any{"amount": 4000})
	e.Funcs = map[string]Func{
		"approval_limit": func(_ *Env, _ []any) (any, error) { return 5000, nil },
	}

	ok, err := Eval(n, e)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected 4000 <= approval_limit()")
	}

	e.Record["amount"] = 9000
	ok, err = Eval(n, e)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected 9000 > approval_limit()")
	}
}

func TestCallNode(t *testing.T) {
	n := Call("is_weekend")
	e := env(nil)
	e.Funcs = map[string]Func{
		"is_weekend": func(_ *Env, _ []any) (any, error) { return true, nil },
	}
	ok, err := Eval(n, e)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected call result true")
	}

	e.Funcs["is_weekend"] = func(_ *Env, _ []any) (any, error) { return "yes", nil }
	if _, err := Eval(n, e); err == nil {
		t.Error("expected error for non-boolean call result")
	}
}

func TestUnregisteredFunc(t *testing.T) {
	n := Call("missing")
	if _, err := Eval(n, env(nil)); err == nil {
		t.Error("expected error for unregistered function")
	}
}

func TestValidate(t *testing.T) {
	funcs := map[string]bool{"approval_limit": true}

	tests := []struct {
		name    string
		node    *Node
		wantErr bool
	}{
		{"valid compare", Compare("amount", OpLTE, 100), false},
		{"valid func compare", CompareFunc("amount", OpLTE, "approval_limit"), false},
		{"valid nested", And(Compare("a", OpEquals, 1), Or(Compare("b", OpEquals, 2), Not(Compare("c", OpEquals, 3)))), false},
		{"nil node", nil, true},
		{"missing field", &Node{Kind: KindCompare, Op: OpEquals, Value: 1}, true},
		{"unknown op", &Node{Kind: KindCompare, Field: "a", Op: "matches", Value: 1}, true},
		{"missing value", &Node{Kind: KindCompare, Field: "a", Op: OpEquals}, true},
		{"both value and func", &Node{Kind: KindCompare, Field: "a", Op: OpEquals, Value: 1, Func: "approval_limit"}, true},
		{"non-whitelisted func", CompareFunc("a", OpEquals, "shell_exec"), true},
		{"empty and", &Node{Kind: KindAnd}, true},
		{"not with two children", &Node{Kind: KindNot, Children: []*Node{Compare("a", OpEquals, 1), Compare("b", OpEquals, 2)}}, true},
		{"unknown kind", &Node{Kind: "raw_sql"}, true},
		{"call without func", &Node{Kind: KindCall}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.node, funcs)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("error does not wrap ErrInvalid: %v", err)
			}
		})
	}
}

func TestValidateDepthLimit(t *testing.T) {
	n := Compare("a", OpEquals, 1)
	for i := 0; i < MaxDepth+2; i++ {
		n = Not(n)
	}
	if err := Validate(n, nil); err == nil {
		t.Error("expected depth limit error")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	original := And(
		Compare("department_id", OpEquals, "sales"),
		CompareFunc("amount", OpLTE, "approval_limit", "user"),
	)

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatal(err)
	}

	var restored Node
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatal(err)
	}

	if restored.Kind != KindAnd || len(restored.Children) != 2 {
		t.Fatalf("unexpected restored tree: %+v", restored)
	}
	if restored.Children[1].Func != "approval_limit" {
		t.Errorf("func lost in round-trip: %+v", restored.Children[1])
	}

	if err := Validate(&restored, map[string]bool{"approval_limit": true}); err != nil {
		t.Errorf("restored tree failed validation: %v", err)
	}
}
