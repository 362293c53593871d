package bastion

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/conflict"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/scope"
	"github.com/xraph/bastion/store"
)

// DetectConflicts scans one user's active assignments for conflicting or
// redundant grants. The detector never mutates state; auto-resolution is
// applied only when BulkAssign is called with ResolutionAuto.
func (e *Engine) DetectConflicts(ctx context.Context, userID string) ([]*conflict.Conflict, error) {
	tenant := tenantFromContext(ctx)
	snap, err := e.snapshot(ctx, tenant.tenantID)
	if err != nil {
		return nil, err
	}

	conflicts := detectUserConflicts(snap, userID, time.Now().UTC())
	if len(conflicts) > 0 && e.plugins != nil {
		e.plugins.EmitConflictsDetected(ctx, userID, conflicts)
	}
	return conflicts, nil
}

// DetectTenantConflicts scans every user with active assignments in the
// tenant.
func (e *Engine) DetectTenantConflicts(ctx context.Context) ([]*conflict.Conflict, error) {
	tenant := tenantFromContext(ctx)
	snap, err := e.snapshot(ctx, tenant.tenantID)
	if err != nil {
		return nil, err
	}

	users := make(map[string]bool)
	for _, a := range snap.Assignments {
		if a.Active {
			users[a.UserID] = true
		}
	}
	userIDs := make([]string, 0, len(users))
	for userID := range users {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	now := time.Now().UTC()
	var all []*conflict.Conflict
	for _, userID := range userIDs {
		found := detectUserConflicts(snap, userID, now)
		if len(found) > 0 {
			all = append(all, found...)
			if e.plugins != nil {
				e.plugins.EmitConflictsDetected(ctx, userID, found)
			}
		}
	}
	return all, nil
}

// detectUserConflicts compares every pair of the user's active assignments.
func detectUserConflicts(snap *store.Snapshot, userID string, at time.Time) []*conflict.Conflict {
	var assigns []*assignment.Assignment
	for _, a := range snap.Assignments {
		if a.UserID == userID && a.Active {
			assigns = append(assigns, a)
		}
	}
	sort.Slice(assigns, func(i, j int) bool { return assigns[i].ID.String() < assigns[j].ID.String() })

	var out []*conflict.Conflict
	for i := 0; i < len(assigns); i++ {
		for j := i + 1; j < len(assigns); j++ {
			out = append(out, pairConflicts(snap, userID, assigns[i], assigns[j], at)...)
		}
	}
	return out
}

// pairConflicts inspects one pair of assignments held by the same user.
func pairConflicts(snap *store.Snapshot, userID string, a, b *assignment.Assignment, at time.Time) []*conflict.Conflict {
	switch {
	case a.IsScope() && b.IsScope():
		return scopePairConflicts(snap, userID, a, b, at)
	case a.IsRole() && b.IsRole():
		return rolePairConflicts(snap, userID, a, b, at)
	}
	return nil
}

// scopePairConflicts flags co-held scopes where one nests under the other,
// or where the kind pair is one the hierarchy treats as ambiguous
// (Global+Department, Department+Personal). Co-held scopes are independent
// grants; the ambiguity must be resolved by an operator, never merged
// silently.
func scopePairConflicts(snap *store.Snapshot, userID string, a, b *assignment.Assignment, at time.Time) []*conflict.Conflict {
	if !a.InEffect(at) || !b.InEffect(at) {
		return nil
	}
	sa := snap.Scope(a.ScopeID.String())
	sb := snap.Scope(b.ScopeID.String())
	if sa == nil || sb == nil {
		return nil
	}

	nested := snap.IsAncestor(sa.ID.String(), sb.ID.String()) ||
		snap.IsAncestor(sb.ID.String(), sa.ID.String())
	if !nested && !kindPairAmbiguous(sa.Kind, sb.Kind) {
		return nil
	}

	detail := fmt.Sprintf("scopes %q (%s) and %q (%s) overlap hierarchically", sa.Name, sa.Kind, sb.Name, sb.Kind)
	return []*conflict.Conflict{newConflict(a.TenantID, conflict.HierarchicalAmbiguity, conflict.SeverityCritical,
		userID, []id.ID{a.ID, b.ID}, detail, false,
		[]string{"unassign the broader scope", "unassign the narrower scope"}, at)}
}

// kindPairAmbiguous reports the kind combinations that are ambiguous even
// across unrelated branches.
func kindPairAmbiguous(a, b scope.Kind) bool {
	pair := func(x, y scope.Kind) bool {
		return (a == x && b == y) || (a == y && b == x)
	}
	return pair(scope.KindGlobal, scope.KindDepartment) ||
		pair(scope.KindDepartment, scope.KindPersonal)
}

// rolePairConflicts flags duplicate, overlapping, time-bound, and
// location-bound role grants. Privilege tiering reads the role definition's
// PrivilegeLevel attribute.
func rolePairConflicts(snap *store.Snapshot, userID string, a, b *assignment.Assignment, at time.Time) []*conflict.Conflict {
	ra := snap.Role(a.RoleID.String())
	rb := snap.Role(b.RoleID.String())
	if ra == nil || rb == nil {
		return nil
	}

	// Same role on two records: a duplicate when both grants are in effect
	// now, a time conflict when their windows merely overlap.
	if ra.ID.String() == rb.ID.String() {
		if a.InEffect(at) && b.InEffect(at) {
			detail := fmt.Sprintf("role %q is granted twice", ra.Name)
			return []*conflict.Conflict{newConflict(a.TenantID, conflict.DuplicateGrant, conflict.SeverityLow,
				userID, []id.ID{a.ID, b.ID}, detail, true, []string{"skip the duplicate grant"}, at)}
		}
		if a.WindowOverlaps(b) {
			detail := fmt.Sprintf("role %q has two grants with overlapping validity windows", ra.Name)
			return []*conflict.Conflict{newConflict(a.TenantID, conflict.TimeConflict, conflict.SeverityMedium,
				userID, []id.ID{a.ID, b.ID}, detail, false,
				[]string{"adjust the validity windows", "unassign one grant"}, at)}
		}
		return nil
	}

	if !a.InEffect(at) || !b.InEffect(at) {
		return nil
	}
	if ra.ModuleFamily == "" || ra.ModuleFamily != rb.ModuleFamily {
		return nil
	}

	var out []*conflict.Conflict
	if ra.PrivilegeLevel != rb.PrivilegeLevel {
		lower, higher := ra, rb
		if lower.PrivilegeLevel > higher.PrivilegeLevel {
			lower, higher = higher, lower
		}
		detail := fmt.Sprintf("role %q is subsumed by higher-privilege role %q in module family %q",
			lower.Name, higher.Name, ra.ModuleFamily)
		out = append(out, newConflict(a.TenantID, conflict.PermissionOverlap, conflict.SeverityMedium,
			userID, []id.ID{a.ID, b.ID}, detail, true, []string{"keep the highest privilege"}, at))
	}
	if ra.Location != "" && rb.Location != "" && ra.Location != rb.Location {
		detail := fmt.Sprintf("roles %q (%s) and %q (%s) bind the same module family to different locations",
			ra.Name, ra.Location, rb.Name, rb.Location)
		out = append(out, newConflict(a.TenantID, conflict.LocationConflict, conflict.SeverityHigh,
			userID, []id.ID{a.ID, b.ID}, detail, false,
			[]string{"unassign one location-bound role"}, at))
	}
	return out
}

func newConflict(tenantID string, kind conflict.Kind, sev conflict.Severity, userID string,
	involved []id.ID, detail string, auto bool, options []string, at time.Time,
) *conflict.Conflict {
	return &conflict.Conflict{
		ID:                id.NewConflictID(),
		TenantID:          tenantID,
		Kind:              kind,
		Severity:          sev,
		UserID:            userID,
		InvolvedIDs:       involved,
		Description:       detail,
		AutoResolvable:    auto,
		ResolutionOptions: options,
		DetectedAt:        at,
	}
}
