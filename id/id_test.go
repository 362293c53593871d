package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/bastion/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"ScopeID", id.NewScopeID, "scope_"},
		{"ScopeRuleID", id.NewScopeRuleID, "srule_"},
		{"AccessRuleID", id.NewAccessRuleID, "arule_"},
		{"AssignmentID", id.NewAssignmentID, "asgn_"},
		{"RoleID", id.NewRoleID, "role_"},
		{"ConflictID", id.NewConflictID, "cflt_"},
		{"ModuleID", id.NewModuleID, "modl_"},
		{"ConditionID", id.NewConditionID, "cond_"},
		{"ScenarioID", id.NewScenarioID, "scen_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	i := id.New(id.PrefixScope)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixScope {
		t.Errorf("expected prefix %q, got %q", id.PrefixScope, i.Prefix())
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"ScopeID", id.NewScopeID, id.ParseScopeID},
		{"ScopeRuleID", id.NewScopeRuleID, id.ParseScopeRuleID},
		{"AccessRuleID", id.NewAccessRuleID, id.ParseAccessRuleID},
		{"AssignmentID", id.NewAssignmentID, id.ParseAssignmentID},
		{"RoleID", id.NewRoleID, id.ParseRoleID},
		{"ConflictID", id.NewConflictID, id.ParseConflictID},
		{"ModuleID", id.NewModuleID, id.ParseModuleID},
		{"ConditionID", id.NewConditionID, id.ParseConditionID},
		{"ScenarioID", id.NewScenarioID, id.ParseScenarioID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseScopeID rejects srule_", id.NewScopeRuleID().String(), id.ParseScopeID},
		{"ParseScopeRuleID rejects arule_", id.NewAccessRuleID().String(), id.ParseScopeRuleID},
		{"ParseAccessRuleID rejects asgn_", id.NewAssignmentID().String(), id.ParseAccessRuleID},
		{"ParseAssignmentID rejects role_", id.NewRoleID().String(), id.ParseAssignmentID},
		{"ParseRoleID rejects cflt_", id.NewConflictID().String(), id.ParseRoleID},
		{"ParseConflictID rejects modl_", id.NewModuleID().String(), id.ParseConflictID},
		{"ParseModuleID rejects cond_", id.NewConditionID().String(), id.ParseModuleID},
		{"ParseConditionID rejects scope_", id.NewScopeID().String(), id.ParseConditionID},
		{"ParseScenarioID rejects scope_", id.NewScopeID().String(), id.ParseScenarioID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parseFn(tt.input)
			if err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseAny(t *testing.T) {
	ids := []id.ID{
		id.NewScopeID(),
		id.NewScopeRuleID(),
		id.NewAccessRuleID(),
		id.NewAssignmentID(),
		id.NewRoleID(),
		id.NewConflictID(),
		id.NewModuleID(),
		id.NewConditionID(),
		id.NewScenarioID(),
	}

	for _, i := range ids {
		t.Run(i.String(), func(t *testing.T) {
			parsed, err := id.ParseAny(i.String())
			if err != nil {
				t.Fatalf("ParseAny(%q) failed: %v", i.String(), err)
			}
			if parsed.String() != i.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), i.String())
			}
		})
	}
}

func TestParseWithPrefix(t *testing.T) {
	i := id.NewScopeID()
	parsed, err := id.ParseWithPrefix(i.String(), id.PrefixScope)
	if err != nil {
		t.Fatalf("ParseWithPrefix failed: %v", err)
	}
	if parsed.String() != i.String() {
		t.Errorf("mismatch: %q != %q", parsed.String(), i.String())
	}

	_, err = id.ParseWithPrefix(i.String(), id.PrefixRole)
	if err == nil {
		t.Error("expected error for wrong prefix")
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := id.Parse("")
	if err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	if i.Prefix() != "" {
		t.Errorf("expected empty prefix, got %q", i.Prefix())
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	original := id.NewScopeID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var restored id.ID
	if unmarshalErr := restored.UnmarshalText(data); unmarshalErr != nil {
		t.Fatalf("UnmarshalText failed: %v", unmarshalErr)
	}
	if restored.String() != original.String() {
		t.Errorf("mismatch: %q != %q", restored.String(), original.String())
	}

	// Nil round-trip.
	var nilID id.ID
	data, err = nilID.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText(nil) failed: %v", err)
	}
	var restored2 id.ID
	if err := restored2.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText(nil) failed: %v", err)
	}
	if !restored2.IsNil() {
		t.Error("expected nil after round-trip of nil ID")
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewAccessRuleID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if scanErr := scanned.Scan(val); scanErr != nil {
		t.Fatalf("Scan failed: %v", scanErr)
	}
	if scanned.String() != original.String() {
		t.Errorf("mismatch: %q != %q", scanned.String(), original.String())
	}

	// Nil round-trip.
	var nilID id.ID
	val, err = nilID.Value()
	if err != nil {
		t.Fatalf("Value(nil) failed: %v", err)
	}
	if val != nil {
		t.Errorf("expected nil value for nil ID, got %v", val)
	}

	var scanned2 id.ID
	if err := scanned2.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if !scanned2.IsNil() {
		t.Error("expected nil after scan of nil")
	}
}

func TestUniqueness(t *testing.T) {
	a := id.NewScopeID()
	b := id.NewScopeID()
	if a.String() == b.String() {
		t.Errorf("two consecutive NewScopeID() calls returned the same ID: %q", a.String())
	}
}
