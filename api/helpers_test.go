package api

import (
	"context"
	"testing"

	"github.com/xraph/bastion"
)

func TestTenantOwned(t *testing.T) {
	ctx := bastion.WithTenant(context.Background(), "app1", "t1")

	if !tenantOwned(ctx, "t1") {
		t.Fatal("record from the request tenant should be owned")
	}
	// A record fetched by ID that belongs to another tenant must read as
	// not found, never leak across tenants.
	if tenantOwned(ctx, "t2") {
		t.Fatal("record from another tenant must not be owned")
	}
	if tenantOwned(context.Background(), "t1") {
		t.Fatal("missing tenant context must not match any record")
	}
}
