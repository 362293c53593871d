package decisionlog

import (
	"context"
	"testing"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/rule"
)

func record(t *testing.T, r *Recorder, userID, resource string, outcome bastion.Outcome) {
	t.Helper()
	ctx := bastion.WithTenant(context.Background(), "app1", "t1")
	err := r.OnAfterEvaluate(ctx,
		&bastion.EvaluateRequest{
			UserID:     userID,
			ModuleCode: "crm",
			Resource:   resource,
			Action:     rule.ActionRead,
		},
		&bastion.Decision{Outcome: outcome},
	)
	if err != nil {
		t.Fatalf("OnAfterEvaluate: %v", err)
	}
}

func TestRecorderQuery(t *testing.T) {
	r := NewRecorder()

	record(t, r, "alice", "contacts", bastion.OutcomeAllow)
	record(t, r, "bob", "contacts", bastion.OutcomeDeny)
	record(t, r, "alice", "deals", bastion.OutcomeAllow)

	if got := r.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}

	entries := r.Query(&QueryFilter{UserID: "alice"})
	if len(entries) != 2 {
		t.Fatalf("query by user returned %d entries, want 2", len(entries))
	}
	// Newest first.
	if entries[0].Resource != "deals" {
		t.Errorf("first entry resource = %q, want deals", entries[0].Resource)
	}

	entries = r.Query(&QueryFilter{Outcome: "deny"})
	if len(entries) != 1 || entries[0].UserID != "bob" {
		t.Fatalf("query by outcome returned %+v, want bob's denial", entries)
	}

	entries = r.Query(&QueryFilter{TenantID: "other"})
	if len(entries) != 0 {
		t.Fatalf("query for other tenant returned %d entries, want 0", len(entries))
	}
}

func TestRecorderQueryLimit(t *testing.T) {
	r := NewRecorder()
	for i := 0; i < 5; i++ {
		record(t, r, "alice", "contacts", bastion.OutcomeAllow)
	}

	entries := r.Query(&QueryFilter{Limit: 2})
	if len(entries) != 2 {
		t.Fatalf("limited query returned %d entries, want 2", len(entries))
	}
}

func TestRecorderRingOverwrite(t *testing.T) {
	r := NewRecorder(WithCapacity(3))

	record(t, r, "u1", "contacts", bastion.OutcomeAllow)
	record(t, r, "u2", "contacts", bastion.OutcomeAllow)
	record(t, r, "u3", "contacts", bastion.OutcomeAllow)
	record(t, r, "u4", "contacts", bastion.OutcomeAllow)

	if got := r.Len(); got != 3 {
		t.Fatalf("Len() = %d, want capacity 3", got)
	}

	entries := r.Query(nil)
	if len(entries) != 3 {
		t.Fatalf("query returned %d entries, want 3", len(entries))
	}
	if entries[0].UserID != "u4" || entries[2].UserID != "u2" {
		t.Errorf("ring order wrong: got %s..%s, want u4..u2", entries[0].UserID, entries[2].UserID)
	}

	for _, e := range entries {
		if e.UserID == "u1" {
			t.Error("oldest entry u1 should have been overwritten")
		}
	}
}

func TestRecorderIgnoresUnknownPayloads(t *testing.T) {
	r := NewRecorder()
	if err := r.OnAfterEvaluate(context.Background(), "not-a-request", "not-a-decision"); err != nil {
		t.Fatalf("OnAfterEvaluate: %v", err)
	}
	if got := r.Len(); got != 0 {
		t.Fatalf("Len() = %d, want 0", got)
	}
}
