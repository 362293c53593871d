// Package assignment defines the Assignment entity binding a user to a
// scope or a role. Assignments are soft-deactivated, never hard-deleted,
// so the full history remains available for audit reads.
package assignment

import (
	"time"

	"github.com/xraph/bastion/id"
)

// Assignment binds a user to a scope or a role within a tenant. Exactly one
// of ScopeID and RoleID is set. An optional effective window bounds when the
// grant applies.
type Assignment struct {
	ID       id.AssignmentID `json:"id" db:"id"`
	TenantID string          `json:"tenant_id" db:"tenant_id"`
	UserID   string          `json:"user_id" db:"user_id"`
	ScopeID  id.ScopeID      `json:"scope_id,omitempty" db:"scope_id"`
	RoleID   id.RoleID       `json:"role_id,omitempty" db:"role_id"`

	EffectiveAt *time.Time `json:"effective_at,omitempty" db:"effective_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty" db:"expires_at"`

	AssignedBy string `json:"assigned_by,omitempty" db:"assigned_by"`
	Reason     string `json:"reason,omitempty" db:"reason"`

	Active        bool       `json:"active" db:"active"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty" db:"deactivated_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsScope reports whether the assignment targets a scope.
func (a *Assignment) IsScope() bool { return !a.ScopeID.IsNil() }

// IsRole reports whether the assignment targets a role.
func (a *Assignment) IsRole() bool { return !a.RoleID.IsNil() }

// TargetID returns the scope or role the assignment binds to.
func (a *Assignment) TargetID() id.ID {
	if a.IsScope() {
		return a.ScopeID
	}
	return a.RoleID
}

// InEffect reports whether the assignment is active and its effective
// window covers the given instant.
func (a *Assignment) InEffect(at time.Time) bool {
	if !a.Active {
		return false
	}
	if a.EffectiveAt != nil && at.Before(*a.EffectiveAt) {
		return false
	}
	if a.ExpiresAt != nil && !at.Before(*a.ExpiresAt) {
		return false
	}
	return true
}

// WindowOverlaps reports whether two assignments' effective windows
// intersect. Unbounded ends are treated as open intervals.
func (a *Assignment) WindowOverlaps(b *Assignment) bool {
	if a.ExpiresAt != nil && b.EffectiveAt != nil && !b.EffectiveAt.Before(*a.ExpiresAt) {
		return false
	}
	if b.ExpiresAt != nil && a.EffectiveAt != nil && !a.EffectiveAt.Before(*b.ExpiresAt) {
		return false
	}
	return true
}

// ListFilter contains filters for listing assignments. Active=nil includes
// soft-deactivated records (the audit view).
type ListFilter struct {
	TenantID string      `json:"tenant_id,omitempty"`
	UserID   string      `json:"user_id,omitempty"`
	ScopeID  *id.ScopeID `json:"scope_id,omitempty"`
	RoleID   *id.RoleID  `json:"role_id,omitempty"`
	Active   *bool       `json:"active,omitempty"`
	Limit    int         `json:"limit,omitempty"`
	Offset   int         `json:"offset,omitempty"`
}
