// Package role defines role templates with an explicit privilege tier.
//
// Conflict detection compares roles by PrivilegeLevel and ModuleFamily —
// structured attributes set by the administrator — never by matching
// substrings of role names.
package role

import (
	"time"

	"github.com/xraph/bastion/id"
)

// Role is an assignable role definition within a tenant.
type Role struct {
	ID          id.RoleID `json:"id" db:"id"`
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	Name        string    `json:"name" db:"name"`
	Slug        string    `json:"slug" db:"slug"`
	Description string    `json:"description,omitempty" db:"description"`

	// ModuleFamily groups roles that cover the same business area
	// (e.g. "crm", "finance"). Overlap detection only compares roles
	// within the same family.
	ModuleFamily string `json:"module_family" db:"module_family"`

	// PrivilegeLevel ranks roles within a module family; higher grants
	// more. "Keep highest privilege" resolution keeps the highest level.
	PrivilegeLevel int `json:"privilege_level" db:"privilege_level"`

	// Location optionally binds the role to a site. Two roles of the same
	// family with different locations raise a location conflict.
	Location string `json:"location,omitempty" db:"location"`

	IsSystem  bool           `json:"is_system" db:"is_system"`
	Active    bool           `json:"active" db:"active"`
	Metadata  map[string]any `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// ListFilter contains filters for listing roles.
type ListFilter struct {
	TenantID     string `json:"tenant_id,omitempty"`
	ModuleFamily string `json:"module_family,omitempty"`
	Active       *bool  `json:"active,omitempty"`
	IsSystem     *bool  `json:"is_system,omitempty"`
	Search       string `json:"search,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Offset       int    `json:"offset,omitempty"`
}
