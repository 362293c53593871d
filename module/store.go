package module

import (
	"context"

	"github.com/xraph/bastion/id"
)

// Store defines persistence operations for module catalog entries.
type Store interface {
	// CreateModule persists a new catalog entry.
	CreateModule(ctx context.Context, m *Module) error

	// GetModule retrieves a catalog entry by ID.
	GetModule(ctx context.Context, modID id.ModuleID) (*Module, error)

	// GetModuleByCode retrieves a catalog entry by tenant and module code.
	GetModuleByCode(ctx context.Context, tenantID, code string) (*Module, error)

	// UpdateModule persists changes to a catalog entry.
	UpdateModule(ctx context.Context, m *Module) error

	// DeleteModule removes a catalog entry by ID.
	DeleteModule(ctx context.Context, modID id.ModuleID) error

	// ListModules returns catalog entries matching the filter.
	ListModules(ctx context.Context, filter *ListFilter) ([]*Module, error)

	// CountModules returns the number of entries matching the filter.
	CountModules(ctx context.Context, filter *ListFilter) (int64, error)

	// DeleteModulesByTenant removes all catalog entries for a tenant.
	DeleteModulesByTenant(ctx context.Context, tenantID string) error
}
