package cache

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/bastion"
)

func TestMemoryCacheHitMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Minute))

	req := &bastion.EvaluateRequest{
		UserID:     "u1",
		ModuleCode: "emr",
		Resource:   "patient",
		Action:     "read",
	}
	dec := &bastion.Decision{Outcome: bastion.OutcomeAllow}

	// Miss
	_, ok := c.Get(ctx, "t1", req)
	if ok {
		t.Fatal("expected cache miss")
	}

	// Set + Hit
	c.Set(ctx, "t1", req, dec)
	got, ok := c.Get(ctx, "t1", req)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !got.Allowed() {
		t.Fatal("expected allow")
	}
}

func TestMemoryCacheGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Minute))

	req := &bastion.EvaluateRequest{
		UserID:     "u1",
		ModuleCode: "emr",
		Resource:   "patient",
		Action:     "read",
	}
	c.Set(ctx, "t1", req, &bastion.Decision{Outcome: bastion.OutcomeAllow, EvalTimeNs: 100})

	first, ok := c.Get(ctx, "t1", req)
	if !ok {
		t.Fatal("expected cache hit")
	}
	first.EvalTimeNs = 9999
	first.Explanation = "mutated"

	second, ok := c.Get(ctx, "t1", req)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if second.EvalTimeNs != 100 || second.Explanation != "" {
		t.Fatalf("cached entry mutated through returned pointer: %+v", second)
	}
}

func TestMemoryCacheSkipsRecordRequests(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	req := &bastion.EvaluateRequest{
		UserID:     "u1",
		ModuleCode: "emr",
		Resource:   "patient",
		Action:     "read",
		Record:     map[string]any{"owner_id": "u1"},
	}

	c.Set(ctx, "t1", req, &bastion.Decision{Outcome: bastion.OutcomeAllow})
	if _, ok := c.Get(ctx, "t1", req); ok {
		t.Fatal("record-specific requests must not be cached")
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(1 * time.Millisecond))

	req := &bastion.EvaluateRequest{
		UserID:     "u1",
		ModuleCode: "emr",
		Resource:   "patient",
		Action:     "read",
	}

	c.Set(ctx, "t1", req, &bastion.Decision{Outcome: bastion.OutcomeAllow})
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(ctx, "t1", req)
	if ok {
		t.Fatal("expected cache miss after TTL expiry")
	}
}

func TestMemoryCacheInvalidateTenant(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	req1 := &bastion.EvaluateRequest{UserID: "u1", ModuleCode: "emr", Resource: "patient", Action: "read"}
	req2 := &bastion.EvaluateRequest{UserID: "u2", ModuleCode: "emr", Resource: "patient", Action: "write"}

	c.Set(ctx, "t1", req1, &bastion.Decision{Outcome: bastion.OutcomeAllow})
	c.Set(ctx, "t1", req2, &bastion.Decision{Outcome: bastion.OutcomeDeny})
	c.Set(ctx, "t2", req1, &bastion.Decision{Outcome: bastion.OutcomeAllow})

	c.InvalidateTenant(ctx, "t1")

	if _, ok := c.Get(ctx, "t1", req1); ok {
		t.Fatal("t1 req1 should be invalidated")
	}
	if _, ok := c.Get(ctx, "t1", req2); ok {
		t.Fatal("t1 req2 should be invalidated")
	}
	if _, ok := c.Get(ctx, "t2", req1); !ok {
		t.Fatal("t2 req1 should still be cached")
	}
}

func TestMemoryCacheInvalidateUser(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	req1 := &bastion.EvaluateRequest{UserID: "u1", ModuleCode: "emr", Resource: "patient", Action: "read"}
	req2 := &bastion.EvaluateRequest{UserID: "u2", ModuleCode: "emr", Resource: "patient", Action: "read"}

	c.Set(ctx, "t1", req1, &bastion.Decision{Outcome: bastion.OutcomeAllow})
	c.Set(ctx, "t1", req2, &bastion.Decision{Outcome: bastion.OutcomeAllow})

	c.InvalidateUser(ctx, "t1", "u1")

	if _, ok := c.Get(ctx, "t1", req1); ok {
		t.Fatal("u1 should be invalidated")
	}
	if _, ok := c.Get(ctx, "t1", req2); !ok {
		t.Fatal("u2 should still be cached")
	}
}

func TestMemoryCacheMaxSize(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithMaxSize(2))

	for i := 0; i < 5; i++ {
		req := &bastion.EvaluateRequest{
			UserID:     "u1",
			ModuleCode: "emr",
			Resource:   string(rune('a' + i)),
			Action:     "read",
		}
		c.Set(ctx, "t1", req, &bastion.Decision{Outcome: bastion.OutcomeAllow})
	}

	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()
	if size > 2 {
		t.Fatalf("expected max 2 entries, got %d", size)
	}
}
