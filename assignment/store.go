package assignment

import (
	"context"
	"time"

	"github.com/xraph/bastion/id"
)

// Store defines persistence operations for assignments. There is no hard
// delete: deactivation flips Active and stamps DeactivatedAt, preserving
// the record for audit reads.
type Store interface {
	// CreateAssignment persists a new assignment.
	CreateAssignment(ctx context.Context, a *Assignment) error

	// GetAssignment retrieves an assignment by ID.
	GetAssignment(ctx context.Context, assID id.AssignmentID) (*Assignment, error)

	// UpdateAssignment persists changes to an assignment (deactivation,
	// window edits).
	UpdateAssignment(ctx context.Context, a *Assignment) error

	// ListAssignments returns assignments matching the filter.
	ListAssignments(ctx context.Context, filter *ListFilter) ([]*Assignment, error)

	// CountAssignments returns the number of assignments matching the filter.
	CountAssignments(ctx context.Context, filter *ListFilter) (int64, error)

	// ListActiveForUser returns the user's assignments in effect at the
	// given instant.
	ListActiveForUser(ctx context.Context, tenantID, userID string, at time.Time) ([]*Assignment, error)

	// ListAllForUser returns the user's full assignment history, including
	// soft-deactivated records.
	ListAllForUser(ctx context.Context, tenantID, userID string) ([]*Assignment, error)

	// ListForScope returns all assignments bound to a scope.
	ListForScope(ctx context.Context, scopeID id.ScopeID) ([]*Assignment, error)

	// ListForRole returns all assignments bound to a role.
	ListForRole(ctx context.Context, roleID id.RoleID) ([]*Assignment, error)
}
