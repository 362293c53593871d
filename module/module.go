// Package module defines the catalog of business modules and their
// resources. The catalog backs write-time validation of rule conditions:
// a condition may only reference fields declared for its module/resource
// pair once the pair is registered.
package module

import (
	"time"

	"github.com/xraph/bastion/id"
)

// Module is a catalog entry for a business module (e.g. "crm", "finance").
type Module struct {
	ID          id.ModuleID    `json:"id" db:"id"`
	TenantID    string         `json:"tenant_id" db:"tenant_id"`
	Code        string         `json:"code" db:"code"`
	Name        string         `json:"name" db:"name"`
	Description string         `json:"description,omitempty" db:"description"`
	Resources   []ResourceDef  `json:"resources" db:"-"`
	Metadata    map[string]any `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// ResourceDef declares one resource of a module along with its filterable
// fields and supported actions.
type ResourceDef struct {
	Name    string     `json:"name"`
	Fields  []FieldDef `json:"fields"`
	Actions []string   `json:"actions,omitempty"`
}

// FieldDef declares a filterable field of a resource.
type FieldDef struct {
	Name string `json:"name"`
	Type string `json:"type"` // "string", "number", "bool", "time"
}

// Resource returns the named resource definition, if declared.
func (m *Module) Resource(name string) (*ResourceDef, bool) {
	for i := range m.Resources {
		if m.Resources[i].Name == name {
			return &m.Resources[i], true
		}
	}
	return nil, false
}

// HasField reports whether the resource declares the named field.
func (r *ResourceDef) HasField(name string) bool {
	for _, f := range r.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// ListFilter contains filters for listing catalog entries.
type ListFilter struct {
	TenantID string `json:"tenant_id,omitempty"`
	Search   string `json:"search,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}
