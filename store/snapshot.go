package store

import (
	"sort"
	"time"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/module"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/rule"
	"github.com/xraph/bastion/scope"
)

// Snapshot is an immutable view of one tenant's policy state, taken at a
// single point in time. All maps are keyed by string form of the entity ID.
type Snapshot struct {
	TenantID string
	TakenAt  time.Time

	Scopes      map[string]*scope.Scope
	ScopeRules  map[string]*scope.Rule
	AccessRules map[string]*rule.AccessRule
	Assignments map[string]*assignment.Assignment
	Roles       map[string]*role.Role
	Modules     map[string]*module.Module
}

// Scope returns the scope with the given ID string, or nil.
func (s *Snapshot) Scope(scopeID string) *scope.Scope {
	return s.Scopes[scopeID]
}

// Role returns the role with the given ID string, or nil.
func (s *Snapshot) Role(roleID string) *role.Role {
	return s.Roles[roleID]
}

// ModuleByCode returns the module catalog entry with the given code, or nil.
func (s *Snapshot) ModuleByCode(code string) *module.Module {
	for _, m := range s.Modules {
		if m.Code == code {
			return m
		}
	}
	return nil
}

// Children returns the direct children of the given scope.
func (s *Snapshot) Children(scopeID string) []*scope.Scope {
	var out []*scope.Scope
	for _, sc := range s.Scopes {
		if sc.ParentID != nil && sc.ParentID.String() == scopeID {
			out = append(out, sc)
		}
	}
	return out
}

// Ancestors returns the chain of scopes from the given scope's parent up to
// the root, nearest first. A broken parent link terminates the walk.
func (s *Snapshot) Ancestors(scopeID string) []*scope.Scope {
	var out []*scope.Scope
	sc := s.Scopes[scopeID]
	seen := map[string]bool{scopeID: true}
	for sc != nil && sc.ParentID != nil {
		pid := sc.ParentID.String()
		if seen[pid] {
			break
		}
		seen[pid] = true
		parent := s.Scopes[pid]
		if parent == nil {
			break
		}
		out = append(out, parent)
		sc = parent
	}
	return out
}

// IsAncestor reports whether ancestorID lies on the parent chain of scopeID.
func (s *Snapshot) IsAncestor(ancestorID, scopeID string) bool {
	for _, a := range s.Ancestors(scopeID) {
		if a.ID.String() == ancestorID {
			return true
		}
	}
	return false
}

// Subtree returns the given scope and all its descendants.
func (s *Snapshot) Subtree(scopeID string) []*scope.Scope {
	root := s.Scopes[scopeID]
	if root == nil {
		return nil
	}
	out := []*scope.Scope{root}
	queue := []string{scopeID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range s.Children(cur) {
			out = append(out, child)
			queue = append(queue, child.ID.String())
		}
	}
	return out
}

// ActiveAssignmentsFor returns the user's assignments in effect at the given
// instant.
func (s *Snapshot) ActiveAssignmentsFor(userID string, at time.Time) []*assignment.Assignment {
	var out []*assignment.Assignment
	for _, a := range s.Assignments {
		if a.UserID == userID && a.Active && a.InEffect(at) {
			out = append(out, a)
		}
	}
	return out
}

// AllAssignmentsFor returns every assignment ever recorded for the user,
// including deactivated ones.
func (s *Snapshot) AllAssignmentsFor(userID string) []*assignment.Assignment {
	var out []*assignment.Assignment
	for _, a := range s.Assignments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}

// RulesForScope returns the active scope rules attached to the given scope,
// ordered by position.
func (s *Snapshot) RulesForScope(scopeID string) []*scope.Rule {
	var out []*scope.Rule
	for _, r := range s.ScopeRules {
		if r.ScopeID.String() == scopeID && r.Active {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}
