package bastion

import (
	"errors"
	"fmt"

	"github.com/xraph/bastion/conflict"
	"github.com/xraph/bastion/id"
)

var (
	// ErrValidation is returned when a scope, rule, or condition is
	// malformed. Malformed definitions are rejected at write time, never
	// discovered during evaluation.
	ErrValidation = errors.New("bastion: validation failed")

	// ErrInvalidHierarchy is returned when a scope mutation would violate
	// the kind ordering or introduce a cycle.
	ErrInvalidHierarchy = errors.New("bastion: invalid scope hierarchy")

	// ErrHasChildren is returned when deleting a scope with children
	// without cascade.
	ErrHasChildren = errors.New("bastion: scope has children")

	// ErrHasAssignments is returned when deleting a scope with active
	// assignments without cascade.
	ErrHasAssignments = errors.New("bastion: scope has active assignments")

	// ErrConflictBlocked is returned when a bulk assignment is rejected
	// because of unresolved conflicts.
	ErrConflictBlocked = errors.New("bastion: assignment blocked by conflicts")

	// ErrUnknownUser is returned when evaluation targets a user with no
	// assignments at all. Evaluation still resolves to deny.
	ErrUnknownUser = errors.New("bastion: user has no assignments")

	// ErrInvalidPredicate is returned when a custom expression fails the
	// predicate safety validator.
	ErrInvalidPredicate = errors.New("bastion: invalid predicate expression")

	// ErrScopeNotFound is returned when a scope cannot be found.
	ErrScopeNotFound = errors.New("bastion: scope not found")

	// ErrScopeRuleNotFound is returned when a scope rule cannot be found.
	ErrScopeRuleNotFound = errors.New("bastion: scope rule not found")

	// ErrRuleNotFound is returned when an access rule cannot be found.
	ErrRuleNotFound = errors.New("bastion: access rule not found")

	// ErrAssignmentNotFound is returned when an assignment cannot be found.
	ErrAssignmentNotFound = errors.New("bastion: assignment not found")

	// ErrRoleNotFound is returned when a role cannot be found.
	ErrRoleNotFound = errors.New("bastion: role not found")

	// ErrModuleNotFound is returned when a module catalog entry cannot be
	// found.
	ErrModuleNotFound = errors.New("bastion: module not found")

	// ErrSystemRoleImmutable is returned when trying to modify a system role.
	ErrSystemRoleImmutable = errors.New("bastion: system role cannot be modified")
)

// HasChildrenError reports a blocked scope deletion together with the
// children that block it. Unwraps to ErrHasChildren.
type HasChildrenError struct {
	ScopeID  id.ScopeID
	Children []id.ScopeID
}

// Error implements the error interface.
func (e *HasChildrenError) Error() string {
	return fmt.Sprintf("bastion: scope %s has %d children; delete with cascade or reparent them first", e.ScopeID, len(e.Children))
}

// Unwrap returns ErrHasChildren for errors.Is matching.
func (e *HasChildrenError) Unwrap() error { return ErrHasChildren }

// HasAssignmentsError reports a blocked scope deletion together with the
// active assignments that block it. Unwraps to ErrHasAssignments.
type HasAssignmentsError struct {
	ScopeID     id.ScopeID
	Assignments []id.AssignmentID
}

// Error implements the error interface.
func (e *HasAssignmentsError) Error() string {
	return fmt.Sprintf("bastion: scope %s has %d active assignments; delete with cascade or unassign them first", e.ScopeID, len(e.Assignments))
}

// Unwrap returns ErrHasAssignments for errors.Is matching.
func (e *HasAssignmentsError) Unwrap() error { return ErrHasAssignments }

// ConflictBlockedError carries every conflict that blocked a bulk
// assignment, so an operator can resolve them all in one pass. Unwraps to
// ErrConflictBlocked.
type ConflictBlockedError struct {
	Conflicts []*conflict.Conflict
}

// Error implements the error interface.
func (e *ConflictBlockedError) Error() string {
	return fmt.Sprintf("bastion: assignment blocked by %d conflicts", len(e.Conflicts))
}

// Unwrap returns ErrConflictBlocked for errors.Is matching.
func (e *ConflictBlockedError) Unwrap() error { return ErrConflictBlocked }
