package bastion

import "context"

// Cache provides caching for evaluation decisions.
type Cache interface {
	// Get returns a cached decision, if available.
	Get(ctx context.Context, tenantID string, req *EvaluateRequest) (*Decision, bool)

	// Set stores a decision in the cache.
	Set(ctx context.Context, tenantID string, req *EvaluateRequest, dec *Decision)

	// InvalidateTenant removes all cached decisions for a tenant.
	InvalidateTenant(ctx context.Context, tenantID string)

	// InvalidateUser removes all cached decisions for a specific user.
	InvalidateUser(ctx context.Context, tenantID, userID string)
}
