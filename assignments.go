package bastion

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/conflict"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/store"
)

// AssignInput binds one user to a scope or role.
type AssignInput struct {
	UserID   string `json:"user_id"`
	TargetID id.ID  `json:"target_id"`

	EffectiveAt *time.Time `json:"effective_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	AssignedBy  string     `json:"assigned_by,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

// Assign creates an assignment. Assigning an identical active grant is a
// no-op that returns the existing record.
func (e *Engine) Assign(ctx context.Context, in *AssignInput) (*assignment.Assignment, error) {
	tenant := tenantFromContext(ctx)
	lock := e.tenantLock(tenant.tenantID)
	lock.Lock()
	defer lock.Unlock()

	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if err := e.validateTarget(ctx, tenant.tenantID, in.TargetID); err != nil {
		return nil, err
	}

	existing, err := e.store.ListAllForUser(ctx, tenant.tenantID, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("bastion assign: %w", err)
	}
	for _, a := range existing {
		if a.Active && a.TargetID().String() == in.TargetID.String() {
			return a, nil
		}
	}

	a := buildAssignment(tenant.tenantID, in.UserID, in.TargetID, in.EffectiveAt, in.ExpiresAt, in.AssignedBy, in.Reason)
	if err := e.store.CreateAssignment(ctx, a); err != nil {
		return nil, fmt.Errorf("bastion assign: %w", err)
	}

	e.invalidateUser(ctx, tenant.tenantID, in.UserID)
	if e.plugins != nil {
		e.plugins.EmitAssigned(ctx, a)
	}
	e.logger.Debug("user assigned",
		"assignment_id", a.ID.String(), "user_id", in.UserID, "target_id", in.TargetID.String())
	return a, nil
}

// Unassign soft-deactivates an assignment. The record is never deleted, so
// audit reads still return it with active=false.
func (e *Engine) Unassign(ctx context.Context, assignmentID id.AssignmentID) error {
	tenant := tenantFromContext(ctx)
	lock := e.tenantLock(tenant.tenantID)
	lock.Lock()
	defer lock.Unlock()

	a, err := e.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	if a == nil {
		return fmt.Errorf("%w: %s", ErrAssignmentNotFound, assignmentID)
	}
	if !a.Active {
		return nil
	}

	now := time.Now().UTC()
	a.Active = false
	a.DeactivatedAt = &now
	a.UpdatedAt = now
	if err := e.store.UpdateAssignment(ctx, a); err != nil {
		return fmt.Errorf("bastion unassign: %w", err)
	}

	e.invalidateUser(ctx, tenant.tenantID, a.UserID)
	if e.plugins != nil {
		e.plugins.EmitUnassigned(ctx, a)
	}
	return nil
}

// ListActiveFor returns the user's assignments in effect now.
func (e *Engine) ListActiveFor(ctx context.Context, userID string) ([]*assignment.Assignment, error) {
	tenant := tenantFromContext(ctx)
	return e.store.ListActiveForUser(ctx, tenant.tenantID, userID, time.Now().UTC())
}

// ListAllFor returns the user's full assignment history, including
// soft-deactivated records. This is the audit feed.
func (e *Engine) ListAllFor(ctx context.Context, userID string) ([]*assignment.Assignment, error) {
	tenant := tenantFromContext(ctx)
	return e.store.ListAllForUser(ctx, tenant.tenantID, userID)
}

// bulkPlan is one pair's resolved outcome, staged before anything is
// persisted.
type bulkPlan struct {
	pair       PairResult
	create     *assignment.Assignment
	deactivate []*assignment.Assignment
}

// BulkAssign assigns every target to every user as a single transaction.
//
// Under ResolutionManual, any critical conflict rejects the whole batch
// atomically with a ConflictBlockedError enumerating every blocker; pairs
// with non-critical conflicts are reported as blocked without stopping the
// rest. Under ResolutionAuto, auto-resolvable conflicts apply their
// resolution (duplicates are skipped, permission overlaps keep the highest
// privilege and deactivate the lower grant) and everything else is reported
// as blocked. Nothing is persisted until the whole batch has been planned.
func (e *Engine) BulkAssign(ctx context.Context, req *BulkAssignRequest) (*BulkResult, error) {
	tenant := tenantFromContext(ctx)
	lock := e.tenantLock(tenant.tenantID)
	lock.Lock()
	defer lock.Unlock()

	if len(req.UserIDs) == 0 || len(req.TargetIDs) == 0 {
		return nil, fmt.Errorf("%w: bulk assign requires users and targets", ErrValidation)
	}
	resolution := req.Resolution
	if resolution == "" {
		resolution = ResolutionManual
	}

	for _, targetID := range req.TargetIDs {
		if err := e.validateTarget(ctx, tenant.tenantID, targetID); err != nil {
			return nil, err
		}
	}

	snap, err := e.snapshot(ctx, tenant.tenantID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	// Working set of each user's active assignments, extended as pairs are
	// planned so later pairs in the batch see earlier ones.
	working := make(map[string][]*assignment.Assignment)
	for _, a := range snap.Assignments {
		if a.Active {
			working[a.UserID] = append(working[a.UserID], a)
		}
	}

	var plans []bulkPlan
	var allConflicts []*conflict.Conflict

	for _, userID := range req.UserIDs {
		for _, targetID := range req.TargetIDs {
			plan := e.planPair(snap, working, userID, targetID, req, resolution, now)
			allConflicts = append(allConflicts, plan.pair.Conflicts...)
			if plan.create != nil {
				working[userID] = append(working[userID], plan.create)
			}
			plans = append(plans, plan)
		}
	}

	if resolution == ResolutionManual && conflict.HasCritical(allConflicts) {
		return nil, &ConflictBlockedError{Conflicts: allConflicts}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &BulkResult{Conflicts: allConflicts}
	for _, plan := range plans {
		for _, a := range plan.deactivate {
			a.Active = false
			a.DeactivatedAt = &now
			a.UpdatedAt = now
			if err := e.store.UpdateAssignment(ctx, a); err != nil {
				return nil, fmt.Errorf("bastion bulk assign: %w", err)
			}
			if e.plugins != nil {
				e.plugins.EmitUnassigned(ctx, a)
			}
		}
		if plan.create != nil {
			if err := e.store.CreateAssignment(ctx, plan.create); err != nil {
				return nil, fmt.Errorf("bastion bulk assign: %w", err)
			}
			if e.plugins != nil {
				e.plugins.EmitAssigned(ctx, plan.create)
			}
		}

		switch plan.pair.Status {
		case PairCreated:
			result.Created++
		case PairAlreadyActive:
			result.Skipped++
		case PairConflictBlocked:
			result.Blocked++
		}
		result.Pairs = append(result.Pairs, plan.pair)
	}

	for _, userID := range req.UserIDs {
		e.invalidateUser(ctx, tenant.tenantID, userID)
	}
	e.logger.Info("bulk assign completed",
		"tenant_id", tenant.tenantID, "pairs", len(result.Pairs),
		"created", result.Created, "skipped", result.Skipped, "blocked", result.Blocked)
	return result, nil
}

// planPair resolves one (user, target) pair against the working set.
func (e *Engine) planPair(snap *store.Snapshot, working map[string][]*assignment.Assignment,
	userID string, targetID id.ID, req *BulkAssignRequest, resolution ConflictResolution, now time.Time,
) bulkPlan {
	pair := PairResult{UserID: userID, TargetID: targetID}

	for _, a := range working[userID] {
		if a.TargetID().String() == targetID.String() && a.InEffect(now) {
			pair.Status = PairAlreadyActive
			pair.AssignmentID = a.ID
			return bulkPlan{pair: pair}
		}
	}

	proposed := buildAssignment(snap.TenantID, userID, targetID, req.EffectiveAt, req.ExpiresAt, req.AssignedBy, req.Reason)
	var conflicts []*conflict.Conflict
	for _, existing := range working[userID] {
		conflicts = append(conflicts, pairConflicts(snap, userID, existing, proposed, now)...)
	}
	pair.Conflicts = conflicts

	if len(conflicts) == 0 {
		pair.Status = PairCreated
		pair.AssignmentID = proposed.ID
		return bulkPlan{pair: pair, create: proposed}
	}

	if resolution == ResolutionManual {
		pair.Status = PairConflictBlocked
		return bulkPlan{pair: pair}
	}

	// Auto resolution. Anything that is not auto-resolvable blocks the pair.
	for _, c := range conflicts {
		if !c.AutoResolvable {
			pair.Status = PairConflictBlocked
			return bulkPlan{pair: pair}
		}
	}
	for _, c := range conflicts {
		if c.Kind == conflict.DuplicateGrant {
			pair.Status = PairAlreadyActive
			return bulkPlan{pair: pair}
		}
	}

	// Permission overlaps: keep the highest privilege in the module family.
	proposedRole := snap.Role(targetID.String())
	if proposedRole == nil {
		pair.Status = PairConflictBlocked
		return bulkPlan{pair: pair}
	}
	var deactivate []*assignment.Assignment
	for _, existing := range working[userID] {
		if !existing.IsRole() {
			continue
		}
		held := snap.Role(existing.RoleID.String())
		if held == nil || held.ModuleFamily != proposedRole.ModuleFamily {
			continue
		}
		if held.PrivilegeLevel >= proposedRole.PrivilegeLevel {
			// An equal or higher privilege is already held; keep it.
			pair.Status = PairAlreadyActive
			pair.AssignmentID = existing.ID
			return bulkPlan{pair: pair}
		}
		deactivate = append(deactivate, existing)
		pair.Deactivated = append(pair.Deactivated, existing.ID)
	}

	pair.Status = PairCreated
	pair.AssignmentID = proposed.ID
	return bulkPlan{pair: pair, create: proposed, deactivate: deactivate}
}

// validateTarget checks the target exists and is a scope or role in the
// tenant.
func (e *Engine) validateTarget(ctx context.Context, tenantID string, targetID id.ID) error {
	switch targetID.Prefix() {
	case id.PrefixScope:
		s, err := e.store.GetScope(ctx, targetID)
		if err != nil {
			return err
		}
		if s == nil || s.TenantID != tenantID {
			return fmt.Errorf("%w: %s", ErrScopeNotFound, targetID)
		}
	case id.PrefixRole:
		r, err := e.store.GetRole(ctx, targetID)
		if err != nil {
			return err
		}
		if r == nil || r.TenantID != tenantID {
			return fmt.Errorf("%w: %s", ErrRoleNotFound, targetID)
		}
	default:
		return fmt.Errorf("%w: assignment target must be a scope or role, got %q", ErrValidation, targetID.Prefix())
	}
	return nil
}

func buildAssignment(tenantID, userID string, targetID id.ID,
	effectiveAt, expiresAt *time.Time, assignedBy, reason string,
) *assignment.Assignment {
	now := time.Now().UTC()
	a := &assignment.Assignment{
		ID:          id.NewAssignmentID(),
		TenantID:    tenantID,
		UserID:      userID,
		EffectiveAt: effectiveAt,
		ExpiresAt:   expiresAt,
		AssignedBy:  assignedBy,
		Reason:      reason,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if targetID.Prefix() == id.PrefixScope {
		a.ScopeID = targetID
	} else {
		a.RoleID = targetID
	}
	return a
}
