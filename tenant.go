package bastion

import (
	"context"

	"github.com/xraph/forge"
)

type tenantRef struct {
	appID    string
	tenantID string
}

// TenantID returns the tenant in effect for the context. It reads the
// Forge scope when present and falls back to the standalone context set
// by WithTenant.
func TenantID(ctx context.Context) string {
	return tenantFromContext(ctx).tenantID
}

// tenantFromContext extracts the tenant from forge.Scope or standalone
// context. Falls back to the explicit tenant when Forge scope is not set
// (standalone mode).
func tenantFromContext(ctx context.Context) tenantRef {
	s, ok := forge.ScopeFrom(ctx)
	if ok {
		return tenantRef{
			appID:    s.AppID(),
			tenantID: s.OrgID(),
		}
	}
	return tenantRef{
		appID:    appIDFromContext(ctx),
		tenantID: tenantIDFromContext(ctx),
	}
}
